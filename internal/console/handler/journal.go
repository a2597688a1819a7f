package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/xela07ax/trust-center/internal/audit"
)

type JournalService interface {
	Recent(ctx context.Context, limit int) ([]audit.LoadEvent, error)
	Stats(ctx context.Context, window time.Duration) (audit.LoadStats, error)
}

type JournalHandler struct {
	service JournalService
}

func NewJournalHandler(s JournalService) *JournalHandler {
	return &JournalHandler{service: s}
}

// Loads возвращает журнал загрузок
// GET /api/v1/loads?limit=20
func (h *JournalHandler) Loads(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	events, err := h.service.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch load journal")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// Stats GET /api/v1/loads/stats?window=24h
func (h *JournalHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var window time.Duration
	if v := r.URL.Query().Get("window"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "window must be a positive duration")
			return
		}
		window = d
	}

	st, err := h.service.Stats(r.Context(), window)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute load stats")
		return
	}
	writeJSON(w, http.StatusOK, st)
}
