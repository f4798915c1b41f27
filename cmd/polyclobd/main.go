// Command polyclobd is a read-only order book observer for Polymarket binary
// prediction markets.
//
// Architecture:
//
//	main.go                    — entry point: loads config, starts engine, waits for SIGINT/SIGTERM
//	engine/engine.go           — orchestrator: resolves markets, wires feed → ingest → registry → api
//	market/descriptor.go       — resolves a condition ID's tick-size descriptor from the Gamma API
//	exchange/client.go         — REST client for the Polymarket CLOB API (book snapshots only)
//	exchange/ws.go             — market-channel WebSocket feed (book/price_change) with auto-reconnect
//	feed/decoder.go            — decodes wire events into registry update records
//	registry/registry.go       — instrument id → Book; snapshot/delta application; sequence tracking
//	book/book.go, ladder.go    — per-instrument two-sided price ladder
//	execsim/simulate.go        — walk-the-book execution simulator
//	strategy/sizer.go          — bounded order-size recommendation built on execsim
//	api/server.go, handlers.go — HTTP/WS query surface: get_book, quote, top_n, simulate
//
// It never places, cancels, or signs orders — it is a pure consumer of the
// market channel, useful for quoting, execution-cost estimation, and
// dashboarding.
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"polyclob/internal/config"
	"polyclob/internal/engine"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("POLY_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	eng, err := engine.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	if err := eng.Start(); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	logger.Info("book observer started",
		"markets", len(cfg.Market.ConditionIDs),
		"dashboard_enabled", cfg.Dashboard.Enabled,
		"dashboard_port", cfg.Dashboard.Port,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	eng.Stop()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
