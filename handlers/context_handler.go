package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"vitaLogAPI/internal/activity"
	"vitaLogAPI/internal/dailycontext"
	"vitaLogAPI/middleware"
	"vitaLogAPI/services"
)

type ContextHandler struct {
	facade          *services.ContextFacade
	activityService *services.ActivityService
	profileService  *services.ProfileService
}

func NewContextHandler(facade *services.ContextFacade, activityService *services.ActivityService, profileService *services.ProfileService) *ContextHandler {
	return &ContextHandler{
		facade:          facade,
		activityService: activityService,
		profileService:  profileService,
	}
}

type contextResponse struct {
	Context *dailycontext.Document `json:"context"`
	Version int                    `json:"version"`
}

func (h *ContextHandler) GetDailyContext(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := h.authedUser(ctx, w)
	if !ok {
		return
	}

	date, err := resolveLocalDate(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, version, err := h.facade.GetOrCreateContext(ctx, userID, date)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, contextResponse{Context: doc, Version: version})
}

// logActivityRequest is the wire shape for activity logging. The tagged
// activity_type selects which of the optional field groups is read; the
// handler converts it into the closed update variant before anything touches
// the context.
type logActivityRequest struct {
	ActivityType    activity.Type `json:"activity_type"`
	Date            string        `json:"date,omitempty"`
	TZOffsetMinutes *int          `json:"tz_offset_minutes,omitempty"`

	// meal
	Name     string  `json:"name,omitempty"`
	MealType string  `json:"meal_type,omitempty"`
	Calories float64 `json:"calories,omitempty"`
	Protein  float64 `json:"protein,omitempty"`
	Carbs    float64 `json:"carbs,omitempty"`
	Fat      float64 `json:"fat,omitempty"`
	Fiber    float64 `json:"fiber,omitempty"`

	// exercise
	ExerciseType    string  `json:"exercise_type,omitempty"`
	DurationMinutes int     `json:"duration_minutes,omitempty"`
	Sets            int     `json:"sets,omitempty"`
	Reps            int     `json:"reps,omitempty"`
	CaloriesBurned  float64 `json:"calories_burned,omitempty"`

	// snapshots
	Glasses   int     `json:"glasses,omitempty"`
	Steps     int     `json:"steps,omitempty"`
	Hours     float64 `json:"hours,omitempty"`
	Quality   int     `json:"quality,omitempty"`
	Kilograms float64 `json:"kilograms,omitempty"`

	// supplement (shares Name)
	Taken *bool `json:"taken,omitempty"`
}

type logActivityResponse struct {
	Context  *dailycontext.Document `json:"context"`
	Version  int                    `json:"version"`
	RecordID uuid.UUID              `json:"record_id"`
}

// LogActivity writes the raw record to the activity store, then folds the
// stored copy (including its generated id) into the daily context.
func (h *ContextHandler) LogActivity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, ok := h.authedUser(ctx, w)
	if !ok {
		return
	}

	var req logActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !activity.ValidType(req.ActivityType) {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Unknown activity_type %q", req.ActivityType))
		return
	}

	date, err := localDateFrom(req.Date, req.TZOffsetMinutes)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	recordID, upd, err := h.storeAndBuildUpdate(ctx, userID, date, &req)
	if err != nil {
		log.Printf("LogActivity Handler: failed to store %s record: %v", req.ActivityType, err)
		respondWithError(w, http.StatusInternalServerError, "Failed to store activity record")
		return
	}

	doc, version, err := h.facade.UpdateActivity(ctx, userID, upd, date)
	if err != nil {
		// The raw record is persisted; only the rolling summary failed to sync.
		log.Printf("LogActivity Handler: context sync failed for %s: %v", userID, err)
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, logActivityResponse{Context: doc, Version: version, RecordID: recordID})
}

func (h *ContextHandler) storeAndBuildUpdate(ctx context.Context, userID uuid.UUID, date time.Time, req *logActivityRequest) (uuid.UUID, activity.Update, error) {
	switch req.ActivityType {
	case activity.TypeMeal:
		stored, err := h.activityService.InsertMeal(ctx, &activity.MealRecord{
			UserID:   userID,
			LogDate:  date,
			Name:     req.Name,
			MealType: req.MealType,
			Calories: req.Calories,
			Protein:  req.Protein,
			Carbs:    req.Carbs,
			Fat:      req.Fat,
			Fiber:    req.Fiber,
		})
		if err != nil {
			return uuid.Nil, nil, err
		}
		return stored.ID, activity.MealUpdate{
			RecordID: stored.ID,
			Name:     stored.Name,
			MealType: stored.MealType,
			Calories: stored.Calories,
			Protein:  stored.Protein,
			Carbs:    stored.Carbs,
			Fat:      stored.Fat,
			Fiber:    stored.Fiber,
			LoggedAt: stored.LoggedAt,
		}, nil

	case activity.TypeExercise:
		stored, err := h.activityService.InsertExercise(ctx, &activity.ExerciseRecord{
			UserID:          userID,
			LogDate:         date,
			Name:            req.Name,
			ExerciseType:    req.ExerciseType,
			DurationMinutes: req.DurationMinutes,
			Sets:            req.Sets,
			Reps:            req.Reps,
			CaloriesBurned:  req.CaloriesBurned,
		})
		if err != nil {
			return uuid.Nil, nil, err
		}
		return stored.ID, activity.ExerciseUpdate{
			RecordID:        stored.ID,
			Name:            stored.Name,
			ExerciseType:    stored.ExerciseType,
			DurationMinutes: stored.DurationMinutes,
			Sets:            stored.Sets,
			Reps:            stored.Reps,
			CaloriesBurned:  stored.CaloriesBurned,
		}, nil

	case activity.TypeWater:
		stored, err := h.activityService.UpsertWater(ctx, userID, date, req.Glasses)
		if err != nil {
			return uuid.Nil, nil, err
		}
		return stored.ID, activity.WaterUpdate{Glasses: stored.Glasses}, nil

	case activity.TypeSteps:
		stored, err := h.activityService.UpsertSteps(ctx, userID, date, req.Steps)
		if err != nil {
			return uuid.Nil, nil, err
		}
		return stored.ID, activity.StepsUpdate{Count: stored.Count}, nil

	case activity.TypeSleep:
		stored, err := h.activityService.UpsertSleep(ctx, userID, date, req.Hours, req.Quality)
		if err != nil {
			return uuid.Nil, nil, err
		}
		hours := stored.Hours
		return stored.ID, activity.SleepUpdate{Hours: &hours}, nil

	case activity.TypeWeight:
		stored, err := h.activityService.UpsertWeight(ctx, userID, date, req.Kilograms)
		if err != nil {
			return uuid.Nil, nil, err
		}
		kg := stored.Kilograms
		return stored.ID, activity.WeightUpdate{Kilograms: &kg}, nil

	case activity.TypeSupplement:
		taken := true
		if req.Taken != nil {
			taken = *req.Taken
		}
		stored, err := h.activityService.UpsertSupplement(ctx, userID, date, req.Name, taken)
		if err != nil {
			return uuid.Nil, nil, err
		}
		return stored.ID, activity.SupplementUpdate{Name: stored.Name, Taken: stored.Taken}, nil
	}
	return uuid.Nil, nil, fmt.Errorf("unknown activity type %q", req.ActivityType)
}

// RemoveActivity deletes the raw record, then undoes its contribution inside
// the cached context.
func (h *ContextHandler) RemoveActivity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, ok := h.authedUser(ctx, w)
	if !ok {
		return
	}

	typ := activity.Type(r.URL.Query().Get("type"))
	if !activity.ValidType(typ) {
		respondWithError(w, http.StatusBadRequest, "Query parameter 'type' must name an activity type")
		return
	}

	recordID, err := uuid.Parse(r.URL.Query().Get("record_id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Query parameter 'record_id' must be a valid id")
		return
	}

	date, err := resolveLocalDate(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	deleted, err := h.activityService.DeleteRecord(ctx, typ, recordID)
	if err != nil {
		if errors.Is(err, services.ErrRecordNotFound) {
			respondWithError(w, http.StatusNotFound, "Activity record not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to delete activity record")
		return
	}

	doc, err := h.facade.RemoveActivity(ctx, userID, typ, recordID, deleted.Name, date)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"context": doc})
}

// RebuildDailyContext is the administrative drift-recovery operation.
func (h *ContextHandler) RebuildDailyContext(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, ok := h.authedUser(ctx, w)
	if !ok {
		return
	}

	date, err := resolveLocalDate(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := h.facade.RebuildContext(ctx, userID, date)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, contextResponse{Context: doc, Version: 1})
}

func (h *ContextHandler) authedUser(ctx context.Context, w http.ResponseWriter) (uuid.UUID, bool) {
	return authedUser(ctx, w, h.profileService)
}

// authedUser maps the Clerk identity on the request to the internal user id.
func authedUser(ctx context.Context, w http.ResponseWriter, profiles *services.ProfileService) (uuid.UUID, bool) {
	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return uuid.Nil, false
	}
	p, err := profiles.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "User not found")
		return uuid.Nil, false
	}
	return p.ID, true
}

// resolveLocalDate picks the user-local calendar date for the request: an
// explicit date parameter wins, otherwise today shifted by the client's UTC
// offset in minutes. Every activity type resolves dates through this one
// path.
func resolveLocalDate(r *http.Request) (time.Time, error) {
	var offset *int
	if raw := r.URL.Query().Get("tz_offset_minutes"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("query parameter 'tz_offset_minutes' must be an integer")
		}
		offset = &n
	}
	return localDateFrom(r.URL.Query().Get("date"), offset)
}

func localDateFrom(date string, tzOffsetMinutes *int) (time.Time, error) {
	if date != "" {
		d, err := time.ParseInLocation(dailycontext.DateFormat, date, time.UTC)
		if err != nil {
			return time.Time{}, fmt.Errorf("date must be formatted YYYY-MM-DD")
		}
		return d, nil
	}

	now := time.Now().UTC()
	if tzOffsetMinutes != nil {
		now = now.Add(time.Duration(*tzOffsetMinutes) * time.Minute)
	}
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
}

func respondWithServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		respondWithError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, services.ErrUpdateConflict):
		respondWithError(w, http.StatusConflict, "Context is being updated concurrently, please retry")
	default:
		respondWithError(w, http.StatusInternalServerError, err.Error())
	}
}

// Helper functions
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
