package autoreply

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/adhocore/gronx"

	"inboxd/pkg/config"
	"inboxd/pkg/dispatch"
	"inboxd/pkg/logger"
	"inboxd/pkg/state"
)

var storedEff *config.EffectiveConfigResult
var storedResponder *dispatch.Responder

// SetEffectiveConfig stores the effective config and responder so tests (or
// admin triggers) can invoke sweeps on-demand.
func SetEffectiveConfig(eff config.EffectiveConfigResult, resp *dispatch.Responder) {
	storedEff = &eff
	storedResponder = resp
}

// RunImmediate triggers a single out-of-office sweep using the stored
// effective config. Returns an error if no effective config was registered.
func RunImmediate() (int, error) {
	if storedEff == nil || storedResponder == nil {
		return 0, fmt.Errorf("no effective config registered for autoreply run")
	}
	if state.PathsVar.AutoReply == "" {
		return 0, fmt.Errorf("state paths not initialized")
	}
	return runOnce(*storedEff, storedResponder)
}

// Start starts the out-of-office sweep scheduler if enabled. Returns a
// cancel func.
func Start(ctx context.Context, eff config.EffectiveConfigResult, resp *dispatch.Responder) (context.CancelFunc, error) {
	ar := eff.Config.AutoReply

	// if auto-reply is not enabled, return no-op cancel
	if !ar.Enabled {
		logger.Info("autoreply_disabled")
		return func() {}, nil
	}

	// Use a stable folder under the DB path for sweep artifacts:
	// <DBPath>/state/autoreply.
	sweepPath := state.PathsVar.AutoReply

	// ensure sweep path exists
	if err := os.MkdirAll(sweepPath, 0o700); err != nil {
		logger.Error("autoreply_path_create_failed", "path", sweepPath, "error", err)
		return nil, err
	}

	// map empty cron to a five-minute sweep; replies are deduplicated by
	// settings hash, so frequent runs are safe.
	cronExpr := ar.Cron
	if cronExpr == "" {
		cronExpr = "*/5 * * * *"
	}
	// validate cron expression using gronx
	if !gronx.IsValid(cronExpr) {
		logger.Error("autoreply_invalid_cron", "cron", ar.Cron)
		return nil, fmt.Errorf("invalid autoreply cron expression: %s", ar.Cron)
	}

	logger.Info("autoreply_enabled", "cron", cronExpr, "batch", ar.BatchSize, "path", sweepPath)
	ctx2, cancel := context.WithCancel(ctx)

	// start scheduler goroutine (pass resolved cron expression)
	go runScheduler(ctx2, eff, resp, cronExpr)

	logger.Info("autoreply_scheduler_started", "path", sweepPath)
	return cancel, nil
}

// runScheduler uses gronx to compute the next tick for the configured cron
// expression and sleeps until that time. This yields sharp scheduling and
// supports full cron syntax.
func runScheduler(ctx context.Context, eff config.EffectiveConfigResult, resp *dispatch.Responder, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("autoreply_scheduler_stopping")
			return
		default:
		}

		// compute next tick after now (UTC). allowCurrent=false so we get the
		// next future tick.
		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("autoreply_nexttick_failed", "cron", cronExpr, "error", err)
			// fallback sleep then retry
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				logger.Info("autoreply_scheduler_stopping")
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait <= 0 {
			// due now-ish; run immediately
			go func() {
				if _, err := runOnce(eff, resp); err != nil {
					logger.Error("autoreply_run_error", "error", err)
				}
			}()
			// small sleep to avoid tight loop
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				logger.Info("autoreply_scheduler_stopping")
				return
			}
			continue
		}

		// wait until the exact next tick or cancellation
		select {
		case <-time.After(wait):
			go func() {
				if _, err := runOnce(eff, resp); err != nil {
					logger.Error("autoreply_run_error", "error", err)
				}
			}()
		case <-ctx.Done():
			logger.Info("autoreply_scheduler_stopping")
			return
		}
	}
}

// runOnce performs a single sweep over users with an active out-of-office
// window, bounded by the configured batch size. Paused leaves the scheduler
// running but skips the sweep, so flipping the flag back takes effect on the
// next tick without a restart.
func runOnce(eff config.EffectiveConfigResult, resp *dispatch.Responder) (int, error) {
	ar := eff.Config.AutoReply
	if ar.Paused {
		logger.Info("autoreply_paused_skipping")
		return 0, nil
	}
	start := time.Now()
	sent, err := resp.Sweep(start.UTC().UnixNano(), ar.BatchSize)
	if err != nil {
		return sent, err
	}
	logger.Info("autoreply_sweep_complete", "sent", sent, "took", time.Since(start).String())
	return sent, nil
}
