package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"vitaLogAPI/services"
)

type CoachHandler struct {
	coachService   *services.CoachService
	profileService *services.ProfileService
}

func NewCoachHandler(coachService *services.CoachService, profileService *services.ProfileService) *CoachHandler {
	return &CoachHandler{
		coachService:   coachService,
		profileService: profileService,
	}
}

type chatRequest struct {
	Message         string `json:"message"`
	Date            string `json:"date,omitempty"`
	TZOffsetMinutes *int   `json:"tz_offset_minutes,omitempty"`
}

func (h *CoachHandler) Chat(w http.ResponseWriter, r *http.Request) {
	// Completion calls are slow; give them more room than the CRUD paths.
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	userID, ok := authedUser(ctx, w, h.profileService)
	if !ok {
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Message == "" {
		respondWithError(w, http.StatusBadRequest, "message is required")
		return
	}

	date, err := localDateFrom(req.Date, req.TZOffsetMinutes)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply, err := h.coachService.Chat(ctx, userID, req.Message, date)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"reply": reply})
}
