package handlers

import (
	"log/slog"
	"net/http"

	"mediascore/internal/repository"
)

// KPIHandler exposes the scoring configuration read endpoint
type KPIHandler struct {
	kpis *repository.KPIRepository
}

// NewKPIHandler creates a new KPI handler
func NewKPIHandler(kpis *repository.KPIRepository) *KPIHandler {
	return &KPIHandler{kpis: kpis}
}

// List returns the active KPI definitions with their scoring ranges
// @Summary List active KPIs
// @Description Returns the active KPI definitions and score bands for an indicator type
// @Tags kpis
// @Produce json
// @Param indicator_type query string true "Indicator type key"
// @Success 200 {array} models.KPIWithRanges
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /kpis [get]
func (h *KPIHandler) List(w http.ResponseWriter, r *http.Request) {
	indicatorType := r.URL.Query().Get("indicator_type")
	if indicatorType == "" {
		JSONError(w, http.StatusBadRequest, "indicator_type is required")
		return
	}

	kpis, err := h.kpis.ActiveKPIs(r.Context(), indicatorType)
	if err != nil {
		slog.Error("failed to load KPIs", "indicator_type", indicatorType, "error", err)
		JSONError(w, http.StatusInternalServerError, "failed to load KPIs")
		return
	}
	JSONResponse(w, http.StatusOK, kpis)
}
