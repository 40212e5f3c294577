package netstats

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// ServeMetrics starts an HTTP server exposing m's Prometheus registry on
// addr (typically ":<PrometheusPort>" from the loaded config), with the
// same fixed request timeouts the teacher's own HTTP server uses. Callers
// shut it down via the returned *http.Server's Shutdown method.
func ServeMetrics(addr string, m *Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  20 * time.Second,
		WriteTimeout: 20 * time.Second,
	}
	go func() {
		_ = server.ListenAndServe()
	}()
	return server
}

// Shutdown gracefully stops server, bounding the wait at timeout.
func Shutdown(server *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down metrics server: %w", err)
	}
	return nil
}
