package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"dtw-backend/internal/models"
)

type checkinService interface {
	Record(ctx context.Context, req models.CheckinRequest) (*models.CheckinResponse, error)
	List(ctx context.Context, userID string, limit int) ([]*models.CheckIn, error)
}

type CheckinHandler struct {
	checkins checkinService
}

func NewCheckinHandler(checkins checkinService) *CheckinHandler {
	return &CheckinHandler{checkins: checkins}
}

func (h *CheckinHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CheckinRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.checkins.Record(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *CheckinHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
				map[string]string{"limit": "limit must be a positive integer"}, r))
			return
		}
		limit = n
	}

	list, err := h.checkins.List(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.CheckinListResponse{CheckIns: list})
}
