package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"vitaLogAPI/internal/dailycontext"
	"vitaLogAPI/internal/weeklycontext"
	"vitaLogAPI/services"
)

type WeeklyHandler struct {
	facade         *services.ContextFacade
	weeklyService  *services.WeeklyContextService
	profileService *services.ProfileService
}

func NewWeeklyHandler(facade *services.ContextFacade, weeklyService *services.WeeklyContextService, profileService *services.ProfileService) *WeeklyHandler {
	return &WeeklyHandler{
		facade:         facade,
		weeklyService:  weeklyService,
		profileService: profileService,
	}
}

type weeklyContextResponse struct {
	WeeklyContext *weeklycontext.Document `json:"weekly_context"`
	Summary       weeklycontext.Summary   `json:"summary"`
}

func (h *WeeklyHandler) GetWeeklyContext(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	userID, ok := h.authedUser(ctx, w)
	if !ok {
		return
	}

	weekStart, err := resolveWeekStart(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := h.facade.GetOrGenerateWeeklyContext(ctx, userID, weekStart)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, weeklyContextResponse{WeeklyContext: doc, Summary: doc.Summary()})
}

// RebuildWeeklyContext forces a wholesale re-aggregation of the week.
func (h *WeeklyHandler) RebuildWeeklyContext(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	userID, ok := h.authedUser(ctx, w)
	if !ok {
		return
	}

	weekStart, err := resolveWeekStart(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := h.facade.GenerateWeeklyContext(ctx, userID, weekStart)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, weeklyContextResponse{WeeklyContext: doc, Summary: doc.Summary()})
}

func (h *WeeklyHandler) ListWeeklySummaries(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := h.authedUser(ctx, w)
	if !ok {
		return
	}

	limit := 12
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Query parameter 'limit' must be an integer")
			return
		}
		limit = n
	}

	summaries, err := h.weeklyService.ListSummaries(ctx, userID, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if summaries == nil {
		summaries = []weeklycontext.Summary{}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"summaries": summaries})
}

func (h *WeeklyHandler) authedUser(ctx context.Context, w http.ResponseWriter) (uuid.UUID, bool) {
	return authedUser(ctx, w, h.profileService)
}

// resolveWeekStart normalizes any date inside the requested week to its
// Monday. Defaults to the current week.
func resolveWeekStart(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("week_start")
	if raw == "" {
		return weeklycontext.WeekStartOf(time.Now().UTC()), nil
	}
	d, err := time.ParseInLocation(dailycontext.DateFormat, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("week_start must be formatted YYYY-MM-DD")
	}
	return weeklycontext.WeekStartOf(d), nil
}
