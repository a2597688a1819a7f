package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xela07ax/trust-center/internal/console/service"
	"github.com/xela07ax/trust-center/internal/domain"
)

// TrustService Описываем, что нам нужно от сервиса
type TrustService interface {
	Summary() domain.PublicSummary
	Snapshot() (*domain.Snapshot, error)
	Validations(status string) ([]domain.ValidationRecord, error)
	Validation(id string) (domain.ValidationRecord, error)
	History() ([]domain.HistoryPoint, error)
	MetricsHistory() ([]domain.MetricsPoint, error)
	Boundary() (json.RawMessage, error)
	Reload(ctx context.Context) (*domain.Snapshot, error)
}

type TrustHandler struct {
	service TrustService
	logger  *zap.Logger
}

func NewTrustHandler(s TrustService, logger *zap.Logger) *TrustHandler {
	return &TrustHandler{service: s, logger: logger}
}

// Summary GET /api/v1/summary (публичный)
func (h *TrustHandler) Summary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Summary())
}

// Snapshot GET /api/v1/snapshot
func (h *TrustHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot()
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Validations GET /api/v1/validations?status=failed
func (h *TrustHandler) Validations(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.Validations(r.URL.Query().Get("status"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// Validation GET /api/v1/validations/{id}
func (h *TrustHandler) Validation(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Validation(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *TrustHandler) History(w http.ResponseWriter, r *http.Request) {
	points, err := h.service.History()
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (h *TrustHandler) MetricsHistory(w http.ResponseWriter, r *http.Request) {
	points, err := h.service.MetricsHistory()
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (h *TrustHandler) Boundary(w http.ResponseWriter, r *http.Request) {
	raw, err := h.service.Boundary()
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

// Reload POST /api/v1/reload
// Ошибка загрузки отдается как 502: источник данных подвел, прежний снапшот остался.
func (h *TrustHandler) Reload(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Reload(r.Context())
	if err != nil {
		h.logger.Warn("manual reload failed", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error":   "reload failed, previous snapshot retained",
			"message": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"loaded_at":        snap.LoadedAt,
		"trace_id":         snap.TraceID,
		"records":          len(snap.Records),
		"score":            snap.Metrics.Score,
		"degraded_sources": snap.DegradedSources,
	})
}

func (h *TrustHandler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNoSnapshot):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidFilter):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
