// Package api exposes the spec §6 query surface (get_book, best_bid/
// best_ask/spread/mid, top_n, simulate, and a sizer-backed recommend) over
// HTTP, plus a WebSocket feed of book-update events for dashboard-style
// consumers.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"polyclob/internal/config"
)

// Server runs the HTTP/WebSocket query-surface API.
type Server struct {
	provider Provider
	hub      *Hub
	handlers *Handlers
	server   *http.Server
	logger   *slog.Logger
}

// NewServer creates a query-surface API server over provider.
func NewServer(cfg config.DashboardConfig, provider Provider, logger *slog.Logger) *Server {
	hub := NewHub(logger)
	handlers := NewHandlers(provider, cfg, hub, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.HandleHealth)
	mux.HandleFunc("/api/book", handlers.HandleGetBook)
	mux.HandleFunc("/api/quote", handlers.HandleQuote)
	mux.HandleFunc("/api/top", handlers.HandleTopN)
	mux.HandleFunc("/api/simulate", handlers.HandleSimulate)
	mux.HandleFunc("/api/recommend", handlers.HandleRecommend)
	mux.HandleFunc("/ws", handlers.HandleWebSocket)

	if src, ok := provider.(MetricsSource); ok {
		reg := prometheus.NewRegistry()
		reg.MustRegister(src.MetricsCollectors()...)
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		provider: provider,
		hub:      hub,
		handlers: handlers,
		server:   server,
		logger:   logger.With("component", "api-server"),
	}
}

// Start starts the hub and HTTP server. Blocks until Stop is called.
func (s *Server) Start() error {
	go s.hub.Run()

	s.logger.Info("query-surface server starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop() error {
	s.logger.Info("stopping query-surface server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// PublishBookUpdate broadcasts a book_update event to all connected
// WebSocket clients. Callers (typically the ingestion loop) push these
// after each registry apply; this is a best-effort dashboard feed, not
// part of the query surface's correctness contract.
func (s *Server) PublishBookUpdate(evt BookUpdateEvent) {
	s.hub.BroadcastEvent(DashboardEvent{
		Type:         "book_update",
		Timestamp:    time.Now(),
		InstrumentID: evt.InstrumentID,
		Data:         evt,
	})
}
