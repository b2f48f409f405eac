package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"vitaLogAPI/internal/dailycontext"
	"vitaLogAPI/internal/llm"
)

// CompletionClient is the AI text-completion collaborator. The real
// implementation lives in internal/llm; tests swap in a canned one.
type CompletionClient interface {
	Chat(ctx context.Context, messages []llm.Message) (string, error)
}

// CoachService answers chat messages with the user's daily context folded
// into the prompt. The totals block is the load-bearing payload: the model
// only ever sees the cheap cached aggregate, never the raw activity tables.
type CoachService struct {
	facade *ContextFacade
	client CompletionClient
}

func NewCoachService(facade *ContextFacade, client CompletionClient) *CoachService {
	return &CoachService{facade: facade, client: client}
}

func (s *CoachService) Chat(ctx context.Context, userID uuid.UUID, message string, date time.Time) (string, error) {
	doc, _, err := s.facade.GetOrCreateContext(ctx, userID, date)
	if err != nil {
		return "", fmt.Errorf("failed to load chat context: %w", err)
	}

	reply, err := s.client.Chat(ctx, []llm.Message{
		{Role: "system", Content: renderCoachContext(doc)},
		{Role: "user", Content: message},
	})
	if err != nil {
		return "", fmt.Errorf("coach completion failed: %w", err)
	}
	return reply, nil
}

func renderCoachContext(doc *dailycontext.Document) string {
	p := doc.TodayProgress
	prof := doc.UserProfile

	var b strings.Builder
	fmt.Fprintf(&b, "You are a supportive health coach for %s (goal: %s, TDEE: %.0f kcal).\n",
		prof.Name, prof.PrimaryGoal, prof.TDEE)
	fmt.Fprintf(&b, "Today (%s) so far:\n", doc.Date)
	fmt.Fprintf(&b, "- Nutrition: %.0f kcal, %.0fg protein, %.0fg carbs, %.0fg fat, %.0fg fiber across %d meal(s)\n",
		p.Totals.Calories, p.Totals.Protein, p.Totals.Carbs, p.Totals.Fat, p.Totals.Fiber, p.MealsLogged)
	fmt.Fprintf(&b, "- Exercise: %d workout(s), %d minutes\n", p.ExercisesDone, p.ExerciseMinutes)
	fmt.Fprintf(&b, "- Water: %d glass(es), Steps: %d\n", p.WaterGlasses, p.Steps)
	if p.SleepHours != nil {
		fmt.Fprintf(&b, "- Sleep last night: %.1f hours\n", *p.SleepHours)
	}
	if p.WeightKg != nil {
		fmt.Fprintf(&b, "- Weight today: %.1f kg\n", *p.WeightKg)
	}
	if len(p.SupplementsTaken) > 0 {
		fmt.Fprintf(&b, "- Supplements taken: %s\n", strings.Join(p.SupplementsTaken, ", "))
	}
	if len(prof.DietaryPreferences) > 0 {
		fmt.Fprintf(&b, "Dietary preferences: %s\n", strings.Join(prof.DietaryPreferences, ", "))
	}
	b.WriteString("Answer briefly and concretely, grounded in the numbers above.")
	return b.String()
}
