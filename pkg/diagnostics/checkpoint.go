package diagnostics

import (
	"context"
	"time"

	"mercator-hq/chaoslab/pkg/annotations"
)

// runCheckpoints records a checkpoint annotation every interval until the
// cumulative elapsed time reaches duration or ctx is cancelled. Annotation
// failures are logged and do not end the loop.
func (o *Orchestrator) runCheckpoints(ctx context.Context, e *entry, interval, duration time.Duration) {
	sessionID := e.snapshot().ID
	start := time.Now()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	checkpoint := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		elapsed := time.Since(start)
		if elapsed >= duration {
			return
		}
		checkpoint++

		_, err := o.annotate(ctx, e, KeyCaptureCheckpoint, "checkpoint", func(r *annotations.Record) error {
			r.TimeRange = annotations.TimeRange{Start: start, End: start.Add(elapsed)}
			return r.SetJSON(map[string]any{
				"checkpoint": checkpoint,
				"elapsed_ms": elapsed.Milliseconds(),
			})
		})
		if err != nil {
			o.logger.Warn("checkpoint annotation failed",
				"session_id", sessionID,
				"checkpoint", checkpoint,
				"error", err,
			)
		}
	}
}
