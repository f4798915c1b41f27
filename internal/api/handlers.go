package api

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"polyclob/internal/config"
	"polyclob/internal/execsim"
	"polyclob/internal/strategy"
)

// Handlers holds all HTTP handler dependencies — the query surface over
// the Book Registry (spec §6).
type Handlers struct {
	provider Provider
	cfg      config.DashboardConfig
	hub      *Hub
	logger   *slog.Logger
}

// NewHandlers creates a new handlers instance.
func NewHandlers(provider Provider, cfg config.DashboardConfig, hub *Hub, logger *slog.Logger) *Handlers {
	return &Handlers{
		provider: provider,
		cfg:      cfg,
		hub:      hub,
		logger:   logger.With("component", "api-handlers"),
	}
}

// HandleHealth returns a simple health check response.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "instruments": strconv.Itoa(h.provider.Len())})
}

// HandleGetBook implements get_book(instrument).
func (h *Handlers) HandleGetBook(w http.ResponseWriter, r *http.Request) {
	instrumentID := r.URL.Query().Get("instrument")
	b, ok := h.provider.Get(instrumentID)
	if !ok {
		http.Error(w, "unknown instrument", http.StatusNotFound)
		return
	}

	depth := 0
	if raw := r.URL.Query().Get("depth"); raw != "" {
		if d, err := strconv.Atoi(raw); err == nil {
			depth = d
		}
	}

	h.writeJSON(w, BuildBookView(b, depth))
}

// HandleQuote implements best_bid/best_ask/spread/mid(instrument).
func (h *Handlers) HandleQuote(w http.ResponseWriter, r *http.Request) {
	instrumentID := r.URL.Query().Get("instrument")
	b, ok := h.provider.Get(instrumentID)
	if !ok {
		http.Error(w, "unknown instrument", http.StatusNotFound)
		return
	}
	h.writeJSON(w, BuildQuoteView(b))
}

// HandleTopN implements top_n(instrument, side, n).
func (h *Handlers) HandleTopN(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	instrumentID := q.Get("instrument")
	b, ok := h.provider.Get(instrumentID)
	if !ok {
		http.Error(w, "unknown instrument", http.StatusNotFound)
		return
	}

	side, err := parseSide(q.Get("side"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	n, err := strconv.Atoi(q.Get("n"))
	if err != nil || n <= 0 {
		http.Error(w, "n must be a positive integer", http.StatusBadRequest)
		return
	}

	b.RLock()
	views := levelViews(b.Ladder(side), b.Domain, n)
	b.RUnlock()

	h.writeJSON(w, views)
}

// HandleSimulate implements simulate(instrument, side, mode, limits).
func (h *Handlers) HandleSimulate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	var req SimulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	b, ok := h.provider.Get(req.InstrumentID)
	if !ok {
		http.Error(w, "unknown instrument", http.StatusNotFound)
		return
	}

	params, err := buildSimulateParams(req, b.Domain)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	exec, err := execsim.Simulate(b, params)
	if err != nil {
		h.logger.Error("simulation failed", "instrument", req.InstrumentID, "error", err)
		http.Error(w, "simulation failed: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	h.writeJSON(w, buildSimulateResponse(exec, b.Domain))
}

// HandleRecommend implements a sizer-backed order-size recommendation: a
// simulate() walk clamped to a strategy's own max size (spec §6's
// "simulate() ... used by strategies to size orders", literally).
func (h *Handlers) HandleRecommend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	var req RecommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	b, ok := h.provider.Get(req.InstrumentID)
	if !ok {
		http.Error(w, "unknown instrument", http.StatusNotFound)
		return
	}

	sizeReq, err := buildSizeRequest(req, b.Domain)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rec, err := strategy.NewSizer().Recommend(b, sizeReq)
	if err != nil {
		h.logger.Error("recommendation failed", "instrument", req.InstrumentID, "error", err)
		http.Error(w, "recommendation failed: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	h.writeJSON(w, buildRecommendResponse(rec, b.Domain))
}

// HandleWebSocket upgrades the connection and creates a new WebSocket client.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(req *http.Request) bool {
			return isOriginAllowed(req.Header.Get("Origin"), h.cfg, req.Host)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	NewClient(h.hub, conn)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func isOriginAllowed(origin string, cfg config.DashboardConfig, reqHost string) bool {
	if origin == "" {
		// Non-browser clients often omit Origin; keep this path functional.
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	normalized := normalizeOrigin(originURL.Scheme, originURL.Host)
	if normalized == "" {
		return false
	}

	if len(cfg.AllowedOrigins) > 0 {
		for _, allowed := range cfg.AllowedOrigins {
			u, err := url.Parse(allowed)
			if err != nil {
				continue
			}
			if normalized == normalizeOrigin(u.Scheme, u.Host) {
				return true
			}
		}
		return false
	}

	host := strings.ToLower(originURL.Hostname())
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return true
	}

	reqHostname := normalizeHost(reqHost)
	return reqHostname != "" && host == reqHostname
}

func normalizeOrigin(scheme, host string) string {
	if scheme == "" || host == "" {
		return ""
	}
	return strings.ToLower(scheme) + "://" + strings.ToLower(host)
}

func normalizeHost(hostport string) string {
	hostport = strings.TrimSpace(hostport)
	if hostport == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(hostport)
}
