package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/YaeIsTired/Bot-TG/internal/models"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

// LedgerReader is the read surface the handlers need from the store.
type LedgerReader interface {
	Balance(ctx context.Context, ownerID int64) (decimal.Decimal, error)
	EntriesByOwner(ctx context.Context, ownerID int64, limit int) ([]models.LedgerEntry, error)
}

// PendingCounter reports live payment windows.
type PendingCounter interface {
	PendingCount() int
}

type Handler struct {
	ledger LedgerReader
	engine PendingCounter
}

func NewHandler(ledger LedgerReader, engine PendingCounter) *Handler {
	return &Handler{ledger: ledger, engine: engine}
}

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"pending_topups": h.engine.PendingCount(),
	})
}

func (h *Handler) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("GET", "/balances/{id}"))
	defer timer.ObserveDuration()

	ownerID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		httpRequestsTotal.WithLabelValues("GET", "/balances/{id}", "400").Inc()
		respondWithError(w, http.StatusBadRequest, "Invalid owner id")
		return
	}

	balance, err := h.ledger.Balance(r.Context(), ownerID)
	if err != nil {
		httpRequestsTotal.WithLabelValues("GET", "/balances/{id}", "500").Inc()
		respondWithError(w, http.StatusInternalServerError, "System error reading balance")
		return
	}
	httpRequestsTotal.WithLabelValues("GET", "/balances/{id}", "200").Inc()
	respondWithJSON(w, http.StatusOK, map[string]any{"owner_id": ownerID, "balance": balance})
}

func (h *Handler) ListEntriesHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("GET", "/ledger/{id}"))
	defer timer.ObserveDuration()

	ownerID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		httpRequestsTotal.WithLabelValues("GET", "/ledger/{id}", "400").Inc()
		respondWithError(w, http.StatusBadRequest, "Invalid owner id")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.ledger.EntriesByOwner(r.Context(), ownerID, limit)
	if err != nil {
		httpRequestsTotal.WithLabelValues("GET", "/ledger/{id}", "500").Inc()
		respondWithError(w, http.StatusInternalServerError, "System error listing entries")
		return
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}
	httpRequestsTotal.WithLabelValues("GET", "/ledger/{id}", "200").Inc()
	respondWithJSON(w, http.StatusOK, map[string]any{"owner_id": ownerID, "entries": entries})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, code int, msg string) {
	respondWithJSON(w, code, map[string]string{"error": msg})
}
