package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// startDebugListener serves /metrics and /healthz on a local address when
// enabled in config. Failures are logged, never fatal: the listener is
// diagnostics only.
func startDebugListener(addr string) {
	router := chi.NewMux()
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	go func() {
		slog.Info("debug listener started", "addr", addr)
		if err := http.ListenAndServe(addr, router); err != nil {
			slog.Warn("debug listener stopped", "error", err)
		}
	}()
}
