package main

import (
	"context"
	"log/slog"
	"time"

	"movies-api/internal/observability/metrics"
)

type sessionPurger interface {
	PurgeExpired(ctx context.Context) error
}

type purgeTicker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	ticker *time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t timeTicker) Stop() {
	t.ticker.Stop()
}

type tickerFactory func(time.Duration) purgeTicker

// runSessionPurger sweeps expired sessions every interval until ctx is done.
func runSessionPurger(ctx context.Context, logger *slog.Logger, recorder *metrics.Recorder, sessions sessionPurger, interval time.Duration) {
	runSessionPurgerWithTicker(ctx, logger, recorder, sessions, interval, func(d time.Duration) purgeTicker {
		return timeTicker{ticker: time.NewTicker(d)}
	})
}

func runSessionPurgerWithTicker(
	ctx context.Context,
	logger *slog.Logger,
	recorder *metrics.Recorder,
	sessions sessionPurger,
	interval time.Duration,
	newTicker tickerFactory,
) {
	if sessions == nil || interval <= 0 {
		return
	}
	if recorder == nil {
		recorder = metrics.Default()
	}
	ticker := newTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if err := sessions.PurgeExpired(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				if logger != nil {
					logger.Error("failed to purge expired sessions", "error", err)
				}
				continue
			}
			recorder.ObserveSessionEvent("purged")
		}
	}
}
