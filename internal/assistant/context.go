package assistant

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"foodie/internal/database"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	// trendWindow is how many of the latest weigh-ins feed the trend line.
	trendWindow = 7

	// recentDays bounds the food-entry window used for the intake summary
	// and the consistency check.
	recentDays = 3
)

// UserSnapshot gathers everything the context builder reads about one
// user. It is fetched fresh on every assistant call; the underlying
// data changes between turns.
type UserSnapshot struct {
	Profile     database.UserProfile
	WeightLogs  []database.WeightLog
	FoodEntries []database.FoodEntry
	Adaptations []database.AdaptationEvent
}

// PersonalizationContext is the derived summary injected into the
// system prompt. All fields are plain sentences ready for templating.
type PersonalizationContext struct {
	Name            string
	GoalSummary     string
	MacroTargets    string
	TrendSummary    string
	FoodSummary     string
	ConsistencyNote string
	AdaptationNote  string
}

// LoadSnapshot fetches the user's profile, logs and adaptation history
// concurrently. Each read is best effort: a failed task logs a warning
// and leaves its slice empty so the builder can fall back to neutral
// defaults instead of blocking the whole conversation.
func LoadSnapshot(ctx context.Context, q *database.Queries, userID string) (*UserSnapshot, error) {
	snap := &UserSnapshot{}

	startDate := pgtype.Date{Time: time.Now().AddDate(0, 0, -recentDays), Valid: true}
	trendStart := pgtype.Date{Time: time.Now().AddDate(0, 0, -trendWindow*2), Valid: true}

	g, grpCtx := errgroup.WithContext(ctx)
	var mu sync.Mutex

	g.Go(func() error {
		profile, err := q.GetUserProfile(grpCtx, userID)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to fetch profile for assistant context")
			return nil
		}
		mu.Lock()
		snap.Profile = profile
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		logs, err := q.ListWeightLogs(grpCtx, database.ListWeightLogsParams{UserID: userID, StartDate: trendStart})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to fetch weight logs for assistant context")
			return nil
		}
		mu.Lock()
		snap.WeightLogs = logs
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		entries, err := q.ListFoodEntries(grpCtx, database.ListFoodEntriesParams{UserID: userID, StartDate: startDate})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to fetch food entries for assistant context")
			return nil
		}
		mu.Lock()
		snap.FoodEntries = entries
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		events, err := q.ListAdaptationEvents(grpCtx, userID)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to fetch adaptation history for assistant context")
			return nil
		}
		mu.Lock()
		snap.Adaptations = events
		mu.Unlock()
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

// BuildContext derives the personalization summary from a snapshot. It
// is a pure function and never fails: any missing field is replaced by
// a neutral default so brand-new users get a working assistant too.
func BuildContext(snap *UserSnapshot) PersonalizationContext {
	pc := PersonalizationContext{
		Name:            "there",
		GoalSummary:     "No goal configured yet.",
		MacroTargets:    "No macro targets set yet.",
		TrendSummary:    "No weight data yet.",
		FoodSummary:     "No recent food entries.",
		ConsistencyNote: "",
		AdaptationNote:  "",
	}
	if snap == nil {
		return pc
	}

	p := snap.Profile
	if p.DisplayName != "" {
		pc.Name = p.DisplayName
	}

	if p.GoalWeightKg.Valid {
		goal := fmt.Sprintf("Goal weight %.1f kg", p.GoalWeightKg.Float64)
		if p.GoalKgPerWeek.Valid {
			goal += fmt.Sprintf(" at %+.1f kg/week", p.GoalKgPerWeek.Float64)
		}
		if p.AdaptedCalorieGoal.Valid {
			goal += fmt.Sprintf("; current calorie target %d kcal/day", p.AdaptedCalorieGoal.Int32)
		}
		if p.TdeeEstimate.Valid {
			goal += fmt.Sprintf(" (estimated TDEE %.0f kcal/day)", p.TdeeEstimate.Float64)
		}
		pc.GoalSummary = goal + "."
	}

	if p.ProteinTargetG.Valid || p.CarbsTargetG.Valid || p.FatTargetG.Valid {
		pc.MacroTargets = fmt.Sprintf("Daily macro targets: %.0fg protein, %.0fg carbs, %.0fg fat.",
			p.ProteinTargetG.Float64, p.CarbsTargetG.Float64, p.FatTargetG.Float64)
	}

	pc.TrendSummary = summarizeTrend(snap.WeightLogs)
	pc.FoodSummary = summarizeFood(snap.FoodEntries)
	pc.ConsistencyNote = consistencyNote(snap.FoodEntries)

	if len(snap.Adaptations) > 0 {
		last := snap.Adaptations[len(snap.Adaptations)-1]
		pc.AdaptationNote = fmt.Sprintf("Most recent goal adaptation: %s (calorie goal changed from %d to %d kcal).",
			last.Reason, last.OldGoal, last.NewGoal)
	}

	return pc
}

// summarizeTrend compares the earliest and latest of the most recent
// weigh-ins. Logs arrive in chronological order from the store.
func summarizeTrend(logs []database.WeightLog) string {
	if len(logs) < 2 {
		return "No weight data yet."
	}

	window := logs
	if len(window) > trendWindow {
		window = window[len(window)-trendWindow:]
	}

	delta := window[len(window)-1].WeightKg - window[0].WeightKg
	switch {
	case math.Abs(delta) < 0.05:
		return fmt.Sprintf("Weight has held steady across the last %d weigh-ins.", len(window))
	case delta < 0:
		return fmt.Sprintf("Weight is trending down: %.1f kg lost across the last %d weigh-ins.", -delta, len(window))
	default:
		return fmt.Sprintf("Weight is trending up: %.1f kg gained across the last %d weigh-ins.", delta, len(window))
	}
}

// summarizeFood aggregates macro totals over the recent entry window.
func summarizeFood(entries []database.FoodEntry) string {
	if len(entries) == 0 {
		return "No recent food entries."
	}

	var calories int32
	var protein, carbs, fat float64
	for _, e := range entries {
		calories += e.Calories
		if e.ProteinG.Valid {
			protein += e.ProteinG.Float64
		}
		if e.CarbsG.Valid {
			carbs += e.CarbsG.Float64
		}
		if e.FatG.Valid {
			fat += e.FatG.Float64
		}
	}

	return fmt.Sprintf("Last %d days: %d entries totalling %d kcal (%.0fg protein, %.0fg carbs, %.0fg fat).",
		recentDays, len(entries), calories, protein, carbs, fat)
}

// consistencyNote flags whether the user logged food on a majority of
// the recent days.
func consistencyNote(entries []database.FoodEntry) string {
	if len(entries) == 0 {
		return ""
	}

	days := make(map[string]struct{})
	for _, e := range entries {
		if e.LogDate.Valid {
			days[e.LogDate.Time.Format("2006-01-02")] = struct{}{}
		}
	}

	if len(days) > recentDays/2 {
		return "Logging consistency looks good: entries on most recent days."
	}
	return "Logging has been sparse lately; gently encourage daily tracking."
}

// describe renders the context as the block embedded in the system
// prompt.
func (pc PersonalizationContext) describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "- Name: %s\n", pc.Name)
	fmt.Fprintf(&b, "- Goal: %s\n", pc.GoalSummary)
	fmt.Fprintf(&b, "- Macros: %s\n", pc.MacroTargets)
	fmt.Fprintf(&b, "- Weight trend: %s\n", pc.TrendSummary)
	fmt.Fprintf(&b, "- Recent intake: %s\n", pc.FoodSummary)
	if pc.ConsistencyNote != "" {
		fmt.Fprintf(&b, "- Consistency: %s\n", pc.ConsistencyNote)
	}
	if pc.AdaptationNote != "" {
		fmt.Fprintf(&b, "- Adaptations: %s\n", pc.AdaptationNote)
	}
	return b.String()
}
