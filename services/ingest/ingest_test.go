package ingest

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func mustDecode(t *testing.T, body string) map[string]any {
	t.Helper()
	raw, err := Decode(strings.NewReader(body))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return raw
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "object", body: `{"timestamp":"2024-03-01T10:00:00Z"}`},
		{name: "invalid json", body: `{"timestamp":`, wantErr: true},
		{name: "array body", body: `[1,2,3]`, wantErr: true},
		{name: "trailing object", body: `{} {}`, wantErr: true},
		{name: "empty", body: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidReport) {
				t.Errorf("Decode() error = %v, want ErrInvalidReport", err)
			}
		})
	}
}

func TestNormalizeDefaults(t *testing.T) {
	report, err := Normalize(mustDecode(t, `{
		"timestamp": "2024-03-01T10:00:00Z",
		"updates": [{}]
	}`))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	run := report.Run
	for name, got := range map[string]string{
		"distribution_id":      run.DistributionID,
		"distribution_version": run.DistributionVersion,
		"distribution_name":    run.DistributionName,
		"package_manager":      run.PackageManager,
	} {
		if got != "unknown" {
			t.Errorf("%s = %q, want unknown", name, got)
		}
	}
	if run.TotalUpdates != 0 || run.SecurityUpdates != 0 {
		t.Errorf("counters = %d/%d, want 0/0", run.TotalUpdates, run.SecurityUpdates)
	}

	if len(report.Packages) != 1 {
		t.Fatalf("len(Packages) = %d, want 1", len(report.Packages))
	}
	pkg := report.Packages[0]
	if pkg.Name != "" || pkg.Version != "" || pkg.CurrentVersion != "" || pkg.Architecture != "" {
		t.Errorf("package strings not defaulted to empty: %+v", pkg)
	}
	if pkg.IsSecurityUpdate {
		t.Error("IsSecurityUpdate defaulted to true")
	}
	if pkg.Size != nil || pkg.Website != nil || pkg.Description != nil {
		t.Errorf("optional fields set: %+v", pkg)
	}
	if pkg.AdditionalInfo != nil {
		t.Errorf("AdditionalInfo = %v, want nil", pkg.AdditionalInfo)
	}
}

func TestNormalizeFullReport(t *testing.T) {
	report, err := Normalize(mustDecode(t, `{
		"timestamp": "2024-03-01T12:30:00+02:00",
		"distribution": {
			"id": "debian",
			"version": "12",
			"name": "Debian GNU/Linux 12 (bookworm)",
			"package_manager": "apt"
		},
		"total_updates": 2,
		"security_updates": "1",
		"updates": [
			{
				"name": "openssl",
				"version": "3.0.13-1~deb12u1",
				"current_version": "3.0.11-1~deb12u2",
				"architecture": "amd64",
				"is_security_update": true,
				"website": "https://www.openssl.org",
				"description": "Secure Sockets Layer toolkit",
				"size_bytes": 204800,
				"cve": "CVE-2024-0001"
			},
			{
				"name": "curl",
				"version": "7.88.1-10+deb12u5",
				"is_security_update": "false",
				"size": "1.2 MB"
			}
		]
	}`))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	wantTS := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	if !report.Run.Timestamp.Equal(wantTS) || report.Run.Timestamp.Location() != time.UTC {
		t.Errorf("Timestamp = %v, want %v in UTC", report.Run.Timestamp, wantTS)
	}
	if report.Run.TotalUpdates != 2 || report.Run.SecurityUpdates != 1 {
		t.Errorf("counters = %d/%d, want 2/1", report.Run.TotalUpdates, report.Run.SecurityUpdates)
	}
	if r := report.Run; r.DistributionID != "debian" || r.DistributionVersion != "12" ||
		r.DistributionName != "Debian GNU/Linux 12 (bookworm)" || r.PackageManager != "apt" {
		t.Errorf("distribution = %q/%q/%q/%q", r.DistributionID, r.DistributionVersion, r.DistributionName, r.PackageManager)
	}

	openssl := report.Packages[0]
	if !openssl.IsSecurityUpdate || openssl.Architecture != "amd64" || openssl.CurrentVersion != "3.0.11-1~deb12u2" {
		t.Errorf("openssl = %+v", openssl)
	}
	if openssl.Size == nil || *openssl.Size != "204800" {
		t.Errorf("openssl size = %v, want 204800", openssl.Size)
	}
	if openssl.Website == nil || *openssl.Website != "https://www.openssl.org" {
		t.Errorf("openssl website = %v", openssl.Website)
	}
	if got := openssl.AdditionalInfo["cve"]; got != "CVE-2024-0001" {
		t.Errorf("openssl cve = %v", got)
	}
	if len(openssl.AdditionalInfo) != 1 {
		t.Errorf("openssl AdditionalInfo = %v, want only cve", openssl.AdditionalInfo)
	}

	curl := report.Packages[1]
	if curl.IsSecurityUpdate {
		t.Error(`curl is_security_update "false" coerced to true`)
	}
	if curl.Size == nil || *curl.Size != "1.2 MB" {
		t.Errorf("curl size = %v, want 1.2 MB", curl.Size)
	}
	if curl.AdditionalInfo != nil {
		t.Errorf("curl AdditionalInfo = %v, want nil", curl.AdditionalInfo)
	}
}

func TestNormalizeDistribution(t *testing.T) {
	tests := []struct {
		name    string
		dist    string
		want    [4]string
		wantErr bool
	}{
		{name: "absent", dist: ``, want: [4]string{"unknown", "unknown", "unknown", "unknown"}},
		{name: "null", dist: `,"distribution":null`, want: [4]string{"unknown", "unknown", "unknown", "unknown"}},
		{name: "partial", dist: `,"distribution":{"id":"rhel","package_manager":"dnf"}`, want: [4]string{"rhel", "unknown", "unknown", "dnf"}},
		{name: "flat keys ignored", dist: `,"distribution_id":"debian","package_manager":"apt"`, want: [4]string{"unknown", "unknown", "unknown", "unknown"}},
		{name: "not an object", dist: `,"distribution":"debian"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := Normalize(mustDecode(t, `{"timestamp":"2024-03-01T10:00:00Z"`+tt.dist+`}`))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidReport) {
					t.Fatalf("Normalize() error = %v, want ErrInvalidReport", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			r := report.Run
			got := [4]string{r.DistributionID, r.DistributionVersion, r.DistributionName, r.PackageManager}
			if got != tt.want {
				t.Errorf("distribution = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeSizePrecedence(t *testing.T) {
	tests := []struct {
		name  string
		entry string
		want  *string
	}{
		{name: "size_bytes wins", entry: `{"size_bytes": 204800, "size": "200 KB"}`, want: ptr("204800")},
		{name: "size only", entry: `{"size": "200 KB"}`, want: ptr("200 KB")},
		{name: "size_bytes as string", entry: `{"size_bytes": "1024"}`, want: ptr("1024")},
		{name: "null size_bytes falls back", entry: `{"size_bytes": null, "size": "3 MB"}`, want: ptr("3 MB")},
		{name: "large byte count kept verbatim", entry: `{"size_bytes": 12345678901234}`, want: ptr("12345678901234")},
		{name: "neither", entry: `{}`, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := Normalize(mustDecode(t, `{"timestamp":"2024-03-01T10:00:00Z","updates":[`+tt.entry+`]}`))
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			got := report.Packages[0].Size
			switch {
			case tt.want == nil && got != nil:
				t.Fatalf("Size = %q, want nil", *got)
			case tt.want != nil && (got == nil || *got != *tt.want):
				t.Fatalf("Size = %v, want %q", got, *tt.want)
			}
		})
	}
}

func TestNormalizeExtrasKeepNumbers(t *testing.T) {
	report, err := Normalize(mustDecode(t, `{"timestamp":"2024-03-01T10:00:00Z","updates":[{"name":"x","priority":7,"tags":["a","b"]}]}`))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	info := report.Packages[0].AdditionalInfo
	if n, ok := info["priority"].(json.Number); !ok || n.String() != "7" {
		t.Errorf("priority = %#v, want json.Number 7", info["priority"])
	}
	if tags, ok := info["tags"].([]any); !ok || len(tags) != 2 {
		t.Errorf("tags = %#v", info["tags"])
	}
}

func TestNormalizeTimestamps(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{name: "rfc3339 utc", input: "2024-03-01T10:00:00Z", want: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{name: "fractional seconds", input: "2024-03-01T10:00:00.123456+00:00", want: time.Date(2024, 3, 1, 10, 0, 0, 123456000, time.UTC)},
		{name: "offset converted", input: "2024-03-01T10:00:00-05:00", want: time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)},
		{name: "space separator", input: "2024-03-01 10:00:00+00:00", want: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{name: "naive treated as utc", input: "2024-03-01T10:00:00.5", want: time.Date(2024, 3, 1, 10, 0, 0, 500000000, time.UTC)},
		{name: "naive with space", input: "2024-03-01 10:00:00", want: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{name: "date only", input: "2024-03-01", want: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{name: "garbage", input: "not-a-date", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := Normalize(map[string]any{"timestamp": tt.input})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Normalize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrInvalidReport) {
					t.Errorf("error = %v, want ErrInvalidReport", err)
				}
				return
			}
			if !report.Run.Timestamp.Equal(tt.want) {
				t.Errorf("Timestamp = %v, want %v", report.Run.Timestamp, tt.want)
			}
		})
	}
}

func TestNormalizeRejectsMalformedStructure(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing timestamp", body: `{"updates":[]}`},
		{name: "numeric timestamp", body: `{"timestamp": 1709287200}`},
		{name: "updates not a list", body: `{"timestamp":"2024-03-01T10:00:00Z","updates":{"name":"x"}}`},
		{name: "entry not an object", body: `{"timestamp":"2024-03-01T10:00:00Z","updates":["openssl"]}`},
		{name: "counter not numeric", body: `{"timestamp":"2024-03-01T10:00:00Z","total_updates":"many"}`},
		{name: "fractional counter", body: `{"timestamp":"2024-03-01T10:00:00Z","security_updates":1.5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(mustDecode(t, tt.body))
			if !errors.Is(err, ErrInvalidReport) {
				t.Fatalf("Normalize() error = %v, want ErrInvalidReport", err)
			}
		})
	}
}

func TestNormalizeEmptyUpdates(t *testing.T) {
	report, err := Normalize(mustDecode(t, `{"timestamp":"2024-03-01T10:00:00Z","total_updates":4,"security_updates":2,"updates":[]}`))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if len(report.Packages) != 0 {
		t.Errorf("len(Packages) = %d, want 0", len(report.Packages))
	}
	if report.Run.TotalUpdates != 4 || report.Run.SecurityUpdates != 2 {
		t.Errorf("counters = %d/%d, want 4/2", report.Run.TotalUpdates, report.Run.SecurityUpdates)
	}
}

func TestBoolValue(t *testing.T) {
	tests := []struct {
		input   any
		want    bool
		wantErr bool
	}{
		{input: nil, want: false},
		{input: true, want: true},
		{input: "True", want: true},
		{input: "0", want: false},
		{input: json.Number("1"), want: true},
		{input: float64(0), want: false},
		{input: "maybe", wantErr: true},
		{input: []any{}, wantErr: true},
	}

	for _, tt := range tests {
		got, err := boolValue(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("boolValue(%#v) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("boolValue(%#v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func ptr(s string) *string { return &s }
