package api

import (
	"context"

	"github.com/google/uuid"
)

// background runs fn once the handler has returned. fn receives the request
// values without the request's cancellation; each side effect applies its own
// timeout.
func (a *API) background(ctx context.Context, fn func(context.Context)) {
	ctx = context.WithoutCancel(ctx)
	a.pending.Add(1)
	go func() {
		defer a.pending.Done()
		fn(ctx)
	}()
}

// Wait blocks until queued side effects have finished or ctx ends.
func (a *API) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// publishJSON queues an event for publication.
func (a *API) publishJSON(ctx context.Context, subject string, payload map[string]any) {
	if a.store.Bus == nil || subject == "" {
		return
	}
	a.background(ctx, func(ctx context.Context) {
		a.publish(ctx, subject, payload)
	})
}

func (a *API) publish(ctx context.Context, subject string, payload map[string]any) {
	if a.store.Bus == nil || subject == "" {
		return
	}

	ctx, cancel := detached(ctx)
	defer cancel()

	if err := a.store.Bus.Publish(ctx, subject, payload); err != nil {
		a.metrics.sideEffectFailures.WithLabelValues("publish").Inc()
		a.logger.Warn().Err(err).Str("subject", subject).Msg("publish event")
	}
}

// archiveReport returns the object key, or "" when archiving is disabled or failed.
func (a *API) archiveReport(ctx context.Context, hostID, runID uuid.UUID, raw []byte) string {
	if a.store.Archiver == nil {
		return ""
	}

	ctx, cancel := detached(ctx)
	defer cancel()

	key, err := a.store.Archiver.Archive(ctx, hostID, runID, raw)
	if err != nil {
		a.metrics.sideEffectFailures.WithLabelValues("archive").Inc()
		a.logger.Warn().Err(err).
			Str("host_id", hostID.String()).
			Str("run_id", runID.String()).
			Msg("archive report")
		return ""
	}
	return key
}
