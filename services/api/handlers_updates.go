package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"pmgmt/services/ingest"
	"pmgmt/services/store"
)

func (a *API) handleSubmitUpdates(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	host, ok := hostFromContext(r.Context())
	if !ok {
		unauthorizedAPIKey(w, "API key missing")
		return
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.rejectUpdate(w, http.StatusRequestEntityTooLarge, "too_large", err)
			return
		}
		a.rejectUpdate(w, http.StatusBadRequest, "invalid", err)
		return
	}

	body, err := ingest.Decode(bytes.NewReader(raw))
	if err != nil {
		a.rejectUpdate(w, http.StatusBadRequest, "invalid", err)
		return
	}
	report, err := ingest.Normalize(body)
	if err != nil {
		a.rejectUpdate(w, http.StatusBadRequest, "invalid", err)
		return
	}

	run, err := a.store.Hosts.Submit(r.Context(), host.ID, report.Run, report.Packages)
	switch {
	case errors.Is(err, store.ErrHostNotFound):
		// The host was deleted between authentication and commit.
		a.metrics.reports.WithLabelValues("unauthorized").Inc()
		unauthorizedAPIKey(w, "Invalid API key")
		return
	case err != nil:
		a.logger.Error().Err(err).Str("host_id", host.ID.String()).Msg("store update report")
		a.rejectUpdate(w, http.StatusInternalServerError, "error", err)
		return
	}

	a.metrics.reports.WithLabelValues("accepted").Inc()
	a.metrics.packages.Add(float64(len(run.Packages)))
	a.metrics.duration.Observe(time.Since(start).Seconds())

	a.logger.Debug().
		Str("host", host.Hostname).
		Str("run_id", run.ID.String()).
		Int("packages", len(run.Packages)).
		Msg("update report stored")

	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Update information received",
	})

	// Archive and event run after the response has been written.
	a.background(r.Context(), func(ctx context.Context) {
		archiveKey := a.archiveReport(ctx, host.ID, run.ID, raw)

		payload := map[string]any{
			"event_id":         run.ID.String(),
			"host_id":          host.ID,
			"hostname":         host.Hostname,
			"run_id":           run.ID,
			"timestamp":        run.Timestamp,
			"total_updates":    run.TotalUpdates,
			"security_updates": run.SecurityUpdates,
			"packages":         len(run.Packages),
		}
		if archiveKey != "" {
			payload["archive_key"] = archiveKey
		}
		a.publish(ctx, updatesReceivedTopic, payload)
	})
}

func (a *API) rejectUpdate(w http.ResponseWriter, status int, result string, err error) {
	a.metrics.reports.WithLabelValues(result).Inc()
	respondError(w, status, fmt.Errorf("Error processing update data: %w", err))
}
