package worker

import (
	"context"
	"log/slog"
	"time"
)

// Accruer brings every yield-bearing box up to date.
type Accruer interface {
	AccrueAll(ctx context.Context) (int, error)
}

// AfterAccrualHook is called after each accrual sweep, even a partially failed one.
type AfterAccrualHook interface {
	Export(ctx context.Context) error
}

// AccrualWorker periodically accrues yield on all boxes, so balances grow
// even for boxes nobody reads.
type AccrualWorker struct {
	accruer  Accruer
	interval time.Duration
	hook     AfterAccrualHook // optional
}

// NewAccrualWorker creates a new AccrualWorker with an optional post-sweep hook.
func NewAccrualWorker(accruer Accruer, interval time.Duration, hook AfterAccrualHook) *AccrualWorker {
	return &AccrualWorker{
		accruer:  accruer,
		interval: interval,
		hook:     hook,
	}
}

// runHook calls the post-sweep hook if one is configured.
func (w *AccrualWorker) runHook(ctx context.Context) {
	if w.hook == nil {
		return
	}
	if err := w.hook.Export(ctx); err != nil {
		slog.Error("AccrualWorker: export hook failed", "error", err)
	} else {
		slog.Info("AccrualWorker: export hook completed")
	}
}

func (w *AccrualWorker) sweep(ctx context.Context) {
	n, err := w.accruer.AccrueAll(ctx)
	if err != nil {
		slog.Error("AccrualWorker: sweep failed", "accrued", n, "error", err)
	} else {
		slog.Info("AccrualWorker: sweep completed", "accrued", n)
	}
	w.runHook(ctx)
}

// Run starts the accrual worker loop. It blocks until the context is cancelled.
func (w *AccrualWorker) Run(ctx context.Context) {
	slog.Info("AccrualWorker: starting")

	// Sweep immediately on startup
	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("AccrualWorker: shutting down")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}
