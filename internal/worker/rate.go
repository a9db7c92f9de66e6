package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/mtlprog/savebox/internal/domain"
	"github.com/mtlprog/savebox/internal/rate"
)

// RateResolver defines the interface for resolving the benchmark rate.
type RateResolver interface {
	Resolve(ctx context.Context, opts rate.ResolveOptions) (domain.RateSnapshot, error)
}

// RateWorker periodically refreshes the benchmark rate cache so requests
// rarely wait on the external source.
type RateWorker struct {
	rates    RateResolver
	interval time.Duration
}

// NewRateWorker creates a new RateWorker.
func NewRateWorker(rates RateResolver, interval time.Duration) *RateWorker {
	return &RateWorker{
		rates:    rates,
		interval: interval,
	}
}

// Run starts the rate worker loop. It blocks until the context is cancelled.
func (w *RateWorker) Run(ctx context.Context) {
	slog.Info("RateWorker: starting")

	// Refresh immediately on startup
	w.refresh(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("RateWorker: shutting down")
			return
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

func (w *RateWorker) refresh(ctx context.Context) {
	snap, err := w.rates.Resolve(ctx, rate.ResolveOptions{ForceRefresh: true, AllowStale: true})
	if err != nil {
		slog.Error("RateWorker: refresh failed", "error", err)
		return
	}
	slog.Info("RateWorker: refresh completed",
		"provider", snap.Provider,
		"annualRatePercent", snap.AnnualRatePercent,
		"referenceDate", snap.ReferenceDate,
		"stale", snap.Stale,
		"fallback", snap.Fallback)
}
