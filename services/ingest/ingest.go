// Package ingest turns loosely-typed agent reports into canonical update runs.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"pmgmt/services/store"
)

// ErrInvalidReport wraps every failure caused by the report itself.
var ErrInvalidReport = errors.New("invalid report")

const unknown = "unknown"

// knownPackageKeys are lifted into typed fields; anything else lands in
// additional info.
var knownPackageKeys = map[string]struct{}{
	"name":               {},
	"version":            {},
	"current_version":    {},
	"architecture":       {},
	"is_security_update": {},
	"website":            {},
	"description":        {},
	"size":               {},
	"size_bytes":         {},
}

// Report is a normalized run ready to be submitted to the store.
type Report struct {
	Run      store.UpdateRun
	Packages []store.PackageUpdate
}

// Decode reads a JSON object from r keeping numbers in their literal form.
func Decode(r io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var body any
	if err := dec.Decode(&body); err != nil {
		return nil, invalid("decode body: %v", err)
	}
	raw, ok := body.(map[string]any)
	if !ok {
		return nil, invalid("body must be a JSON object")
	}
	if dec.More() {
		return nil, invalid("body must contain a single JSON object")
	}
	return raw, nil
}

// Normalize applies defaults and coercions to a decoded report. Missing
// optional fields never fail a report; an unparseable timestamp or a
// malformed structure does.
func Normalize(raw map[string]any) (Report, error) {
	if raw == nil {
		return Report{}, invalid("empty report")
	}

	ts, err := parseTimestamp(raw["timestamp"])
	if err != nil {
		return Report{}, err
	}

	total, err := intField(raw, "total_updates")
	if err != nil {
		return Report{}, err
	}
	security, err := intField(raw, "security_updates")
	if err != nil {
		return Report{}, err
	}

	dist, err := distribution(raw["distribution"])
	if err != nil {
		return Report{}, err
	}

	run := store.UpdateRun{
		Timestamp:           ts,
		DistributionID:      stringOr(dist["id"], unknown),
		DistributionVersion: stringOr(dist["version"], unknown),
		DistributionName:    stringOr(dist["name"], unknown),
		PackageManager:      stringOr(dist["package_manager"], unknown),
		TotalUpdates:        total,
		SecurityUpdates:     security,
	}

	entries, err := updateEntries(raw["updates"])
	if err != nil {
		return Report{}, err
	}

	pkgs := make([]store.PackageUpdate, 0, len(entries))
	for i, entry := range entries {
		pkg, err := normalizePackage(entry)
		if err != nil {
			return Report{}, fmt.Errorf("updates[%d]: %w", i, err)
		}
		pkgs = append(pkgs, pkg)
	}

	return Report{Run: run, Packages: pkgs}, nil
}

// distribution returns the nested distribution object. A missing or null
// object yields an empty map so every field falls back to its default.
func distribution(v any) (map[string]any, error) {
	if v == nil {
		return map[string]any{}, nil
	}
	dist, ok := v.(map[string]any)
	if !ok {
		return nil, invalid("distribution must be an object")
	}
	return dist, nil
}

func updateEntries(v any) ([]map[string]any, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, invalid("updates must be a list")
	}
	out := make([]map[string]any, 0, len(list))
	for i, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, invalid("updates[%d] must be an object", i)
		}
		out = append(out, entry)
	}
	return out, nil
}

func normalizePackage(entry map[string]any) (store.PackageUpdate, error) {
	security, err := boolValue(entry["is_security_update"])
	if err != nil {
		return store.PackageUpdate{}, err
	}

	pkg := store.PackageUpdate{
		Name:             stringOr(entry["name"], ""),
		Version:          stringOr(entry["version"], ""),
		CurrentVersion:   stringOr(entry["current_version"], ""),
		Architecture:     stringOr(entry["architecture"], ""),
		IsSecurityUpdate: security,
		Website:          optionalString(entry["website"]),
		Description:      optionalString(entry["description"]),
		Size:             packageSize(entry),
	}

	var extra map[string]any
	for k, v := range entry {
		if _, known := knownPackageKeys[k]; known {
			continue
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[k] = v
	}
	pkg.AdditionalInfo = extra

	return pkg, nil
}

// packageSize prefers an exact byte count over the free-text size.
func packageSize(entry map[string]any) *string {
	if s := optionalString(entry["size_bytes"]); s != nil {
		return s
	}
	return optionalString(entry["size"])
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidReport, fmt.Sprintf(format, args...))
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseTimestamp(v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		if v == nil {
			return time.Time{}, invalid("timestamp is required")
		}
		return time.Time{}, invalid("timestamp must be a string, got %T", v)
	}
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, invalid("invalid timestamp %q", s)
}
