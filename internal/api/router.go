// Package api provides the HTTP surface: health, status, trade history,
// metrics, operator control and the live event stream.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"alphabot/internal/control"
	"alphabot/internal/model"
	"alphabot/internal/trader"
)

// StatusSource reports the current engine status.
type StatusSource interface {
	Status() trader.Status
}

// TradeSource returns the newest trades, newest first.
type TradeSource interface {
	GetTrades(limit int) ([]model.TradeRecord, error)
}

// Deps are the router's collaborators. Only Status is required.
type Deps struct {
	Status   StatusSource
	Trades   TradeSource
	Health   http.Handler
	Control  *control.Handler
	Stream   *Hub
	Gatherer prometheus.Gatherer // nil uses the default registry
}

const (
	defaultTradeLimit = 50
	maxTradeLimit     = 500
)

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+control.OTPHeader)
}

// NewRouter sets up HTTP routes for the API server.
func NewRouter(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	if d.Health != nil {
		mux.Handle("GET /healthz", d.Health)
	}

	g := d.Gatherer
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /api/v1/status", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		writeJSON(w, http.StatusOK, d.Status.Status())
	})

	mux.HandleFunc("GET /api/v1/signals", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		writeJSON(w, http.StatusOK, d.Status.Status().Signals)
	})

	mux.HandleFunc("GET /api/v1/trades", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		if d.Trades == nil {
			writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "trade journal disabled"})
			return
		}
		limit := defaultTradeLimit
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
				return
			}
			limit = min(n, maxTradeLimit)
		}
		trades, err := d.Trades.GetTrades(limit)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if trades == nil {
			trades = []model.TradeRecord{}
		}
		writeJSON(w, http.StatusOK, trades)
	})

	if d.Control != nil {
		d.Control.Register(mux)
	}
	if d.Stream != nil {
		mux.Handle("GET /ws", d.Stream)
	}
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
