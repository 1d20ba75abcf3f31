package handlers

import (
	"context"
	"net/http"

	"dtw-backend/internal/models"
)

type onboardingService interface {
	Onboard(ctx context.Context, req models.OnboardingRequest) (*models.OnboardingResponse, error)
}

type OnboardingHandler struct {
	onboarding onboardingService
}

func NewOnboardingHandler(onboarding onboardingService) *OnboardingHandler {
	return &OnboardingHandler{onboarding: onboarding}
}

func (h *OnboardingHandler) Onboard(w http.ResponseWriter, r *http.Request) {
	var req models.OnboardingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.onboarding.Onboard(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
