package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mtlprog/savebox/internal/domain"
	"github.com/mtlprog/savebox/internal/rate"
)

// RateService resolves the current benchmark rate.
type RateService interface {
	Resolve(ctx context.Context, opts rate.ResolveOptions) (domain.RateSnapshot, error)
}

// MarketHandler serves market data.
type MarketHandler struct {
	rates RateService
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(rates RateService) *MarketHandler {
	return &MarketHandler{rates: rates}
}

// GetCDI handles GET /api/v1/market/cdi. The refresh query parameter
// bypasses the cache.
func (h *MarketHandler) GetCDI(w http.ResponseWriter, r *http.Request) {
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

	snap, err := h.rates.Resolve(r.Context(), rate.ResolveOptions{ForceRefresh: refresh, AllowStale: true})
	if err != nil {
		slog.Warn("benchmark rate unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "benchmark rate unavailable")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
