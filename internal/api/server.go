package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewServer creates an HTTP server with all routes configured. When apiKey is
// set, every /api route requires it as a bearer token. Dates are read in loc.
func NewServer(port string, boxes BoxService, rates RateService, apiKey string, loc *time.Location) *http.Server {
	handler := NewHandler(boxes, loc)
	market := NewMarketHandler(rates)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/v1/boxes", handler.ListBoxes)
	api.HandleFunc("POST /api/v1/boxes", handler.CreateBox)
	api.HandleFunc("GET /api/v1/boxes/{id}", handler.GetBox)
	api.HandleFunc("PUT /api/v1/boxes/{id}", handler.UpdateBox)
	api.HandleFunc("DELETE /api/v1/boxes/{id}", handler.DeleteBox)
	api.HandleFunc("POST /api/v1/boxes/{id}/move", handler.MoveBox)
	api.HandleFunc("GET /api/v1/boxes/{id}/statement.xlsx", handler.DownloadStatement)
	api.HandleFunc("GET /api/v1/market/cdi", market.GetCDI)

	var apiHandler http.Handler = api
	if apiKey != "" {
		apiHandler = requireAuth(apiKey, api)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return &http.Server{
		Addr:         ":" + port,
		Handler:      instrument(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
