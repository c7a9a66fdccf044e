package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx so queries can run
// inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

/* =================================================================================
							ROW TYPES
The schema is owned by the host application's migrations; these structs
mirror the tables user_profiles, weight_logs, food_entries and
adaptation_events.
=================================================================================*/

// UserProfile holds the user's goal settings and adaptive targets.
type UserProfile struct {
	UserID               string             `json:"user_id"`
	DisplayName          string             `json:"display_name"`
	Age                  pgtype.Int4        `json:"age"`
	Gender               pgtype.Text        `json:"gender"`
	HeightCm             pgtype.Float8      `json:"height_cm"`
	ActivityLevel        pgtype.Float8      `json:"activity_level"`
	GoalKgPerWeek        pgtype.Float8      `json:"goal_kg_per_week"`
	GoalWeightKg         pgtype.Float8      `json:"goal_weight_kg"`
	AdaptedCalorieGoal   pgtype.Int4        `json:"adapted_calorie_goal"`
	TdeeEstimate         pgtype.Float8      `json:"tdee_estimate"`
	ProteinTargetG       pgtype.Float8      `json:"protein_target_g"`
	CarbsTargetG         pgtype.Float8      `json:"carbs_target_g"`
	FatTargetG           pgtype.Float8      `json:"fat_target_g"`
	AdaptationConfidence pgtype.Float8      `json:"adaptation_confidence"`
	UpdatedAt            pgtype.Timestamptz `json:"updated_at"`
}

// WeightLog is one daily weigh-in with the day's calorie intake.
type WeightLog struct {
	LogID      int64       `json:"log_id"`
	UserID     string      `json:"user_id"`
	LogDate    pgtype.Date `json:"log_date"`
	WeightKg   float64     `json:"weight_kg"`
	CaloriesIn pgtype.Int4 `json:"calories_in"`
}

// FoodEntry is one logged food item with its macro breakdown.
type FoodEntry struct {
	EntryID  pgtype.UUID   `json:"entry_id"`
	UserID   string        `json:"user_id"`
	LogDate  pgtype.Date   `json:"log_date"`
	FoodName string        `json:"food_name"`
	MealType string        `json:"meal_type"`
	Calories int32         `json:"calories"`
	ProteinG pgtype.Float8 `json:"protein_g"`
	CarbsG   pgtype.Float8 `json:"carbs_g"`
	FatG     pgtype.Float8 `json:"fat_g"`
}

// AdaptationEvent records one adjustment of the calorie goal by the
// adaptive engine, with the reason it gave.
type AdaptationEvent struct {
	EventID    int64              `json:"event_id"`
	UserID     string             `json:"user_id"`
	OccurredAt pgtype.Timestamptz `json:"occurred_at"`
	OldGoal    int32              `json:"old_goal"`
	NewGoal    int32              `json:"new_goal"`
	Reason     string             `json:"reason"`
	Confidence pgtype.Float8      `json:"confidence"`
}

/* =================================================================================
							PROFILE QUERIES
=================================================================================*/

const getUserProfile = `
SELECT user_id, display_name, age, gender, height_cm, activity_level,
       goal_kg_per_week, goal_weight_kg, adapted_calorie_goal, tdee_estimate,
       protein_target_g, carbs_target_g, fat_target_g, adaptation_confidence,
       updated_at
FROM user_profiles
WHERE user_id = $1
`

func (q *Queries) GetUserProfile(ctx context.Context, userID string) (UserProfile, error) {
	row := q.db.QueryRow(ctx, getUserProfile, userID)
	var p UserProfile
	err := row.Scan(
		&p.UserID, &p.DisplayName, &p.Age, &p.Gender, &p.HeightCm,
		&p.ActivityLevel, &p.GoalKgPerWeek, &p.GoalWeightKg,
		&p.AdaptedCalorieGoal, &p.TdeeEstimate, &p.ProteinTargetG,
		&p.CarbsTargetG, &p.FatTargetG, &p.AdaptationConfidence, &p.UpdatedAt,
	)
	return p, err
}

const upsertUserProfile = `
INSERT INTO user_profiles (
    user_id, display_name, age, gender, height_cm, activity_level,
    goal_kg_per_week, goal_weight_kg, adapted_calorie_goal, tdee_estimate,
    protein_target_g, carbs_target_g, fat_target_g, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
ON CONFLICT (user_id) DO UPDATE SET
    display_name         = COALESCE(EXCLUDED.display_name, user_profiles.display_name),
    age                  = COALESCE(EXCLUDED.age, user_profiles.age),
    gender               = COALESCE(EXCLUDED.gender, user_profiles.gender),
    height_cm            = COALESCE(EXCLUDED.height_cm, user_profiles.height_cm),
    activity_level       = COALESCE(EXCLUDED.activity_level, user_profiles.activity_level),
    goal_kg_per_week     = COALESCE(EXCLUDED.goal_kg_per_week, user_profiles.goal_kg_per_week),
    goal_weight_kg       = COALESCE(EXCLUDED.goal_weight_kg, user_profiles.goal_weight_kg),
    adapted_calorie_goal = COALESCE(EXCLUDED.adapted_calorie_goal, user_profiles.adapted_calorie_goal),
    tdee_estimate        = COALESCE(EXCLUDED.tdee_estimate, user_profiles.tdee_estimate),
    protein_target_g     = COALESCE(EXCLUDED.protein_target_g, user_profiles.protein_target_g),
    carbs_target_g       = COALESCE(EXCLUDED.carbs_target_g, user_profiles.carbs_target_g),
    fat_target_g         = COALESCE(EXCLUDED.fat_target_g, user_profiles.fat_target_g),
    updated_at           = now()
RETURNING user_id, display_name, age, gender, height_cm, activity_level,
    goal_kg_per_week, goal_weight_kg, adapted_calorie_goal, tdee_estimate,
    protein_target_g, carbs_target_g, fat_target_g, adaptation_confidence,
    updated_at
`

type UpsertUserProfileParams struct {
	UserID             string
	DisplayName        string
	Age                pgtype.Int4
	Gender             pgtype.Text
	HeightCm           pgtype.Float8
	ActivityLevel      pgtype.Float8
	GoalKgPerWeek      pgtype.Float8
	GoalWeightKg       pgtype.Float8
	AdaptedCalorieGoal pgtype.Int4
	TdeeEstimate       pgtype.Float8
	ProteinTargetG     pgtype.Float8
	CarbsTargetG       pgtype.Float8
	FatTargetG         pgtype.Float8
}

func (q *Queries) UpsertUserProfile(ctx context.Context, arg UpsertUserProfileParams) (UserProfile, error) {
	row := q.db.QueryRow(ctx, upsertUserProfile,
		arg.UserID, arg.DisplayName, arg.Age, arg.Gender, arg.HeightCm,
		arg.ActivityLevel, arg.GoalKgPerWeek, arg.GoalWeightKg,
		arg.AdaptedCalorieGoal, arg.TdeeEstimate, arg.ProteinTargetG,
		arg.CarbsTargetG, arg.FatTargetG,
	)
	var p UserProfile
	err := row.Scan(
		&p.UserID, &p.DisplayName, &p.Age, &p.Gender, &p.HeightCm,
		&p.ActivityLevel, &p.GoalKgPerWeek, &p.GoalWeightKg,
		&p.AdaptedCalorieGoal, &p.TdeeEstimate, &p.ProteinTargetG,
		&p.CarbsTargetG, &p.FatTargetG, &p.AdaptationConfidence, &p.UpdatedAt,
	)
	return p, err
}

/* =================================================================================
							WEIGHT LOG QUERIES
=================================================================================*/

const createWeightLog = `
INSERT INTO weight_logs (user_id, log_date, weight_kg, calories_in)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id, log_date) DO UPDATE SET
    weight_kg   = EXCLUDED.weight_kg,
    calories_in = EXCLUDED.calories_in
RETURNING log_id, user_id, log_date, weight_kg, calories_in
`

type CreateWeightLogParams struct {
	UserID     string
	LogDate    pgtype.Date
	WeightKg   float64
	CaloriesIn pgtype.Int4
}

func (q *Queries) CreateWeightLog(ctx context.Context, arg CreateWeightLogParams) (WeightLog, error) {
	row := q.db.QueryRow(ctx, createWeightLog, arg.UserID, arg.LogDate, arg.WeightKg, arg.CaloriesIn)
	var w WeightLog
	err := row.Scan(&w.LogID, &w.UserID, &w.LogDate, &w.WeightKg, &w.CaloriesIn)
	return w, err
}

const listWeightLogs = `
SELECT log_id, user_id, log_date, weight_kg, calories_in
FROM weight_logs
WHERE user_id = $1 AND log_date >= $2
ORDER BY log_date ASC
`

type ListWeightLogsParams struct {
	UserID    string
	StartDate pgtype.Date
}

func (q *Queries) ListWeightLogs(ctx context.Context, arg ListWeightLogsParams) ([]WeightLog, error) {
	rows, err := q.db.Query(ctx, listWeightLogs, arg.UserID, arg.StartDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []WeightLog
	for rows.Next() {
		var w WeightLog
		if err := rows.Scan(&w.LogID, &w.UserID, &w.LogDate, &w.WeightKg, &w.CaloriesIn); err != nil {
			return nil, err
		}
		items = append(items, w)
	}
	return items, rows.Err()
}

/* =================================================================================
							FOOD ENTRY QUERIES
=================================================================================*/

const createFoodEntry = `
INSERT INTO food_entries (user_id, log_date, food_name, meal_type, calories, protein_g, carbs_g, fat_g)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING entry_id, user_id, log_date, food_name, meal_type, calories, protein_g, carbs_g, fat_g
`

type CreateFoodEntryParams struct {
	UserID   string
	LogDate  pgtype.Date
	FoodName string
	MealType string
	Calories int32
	ProteinG pgtype.Float8
	CarbsG   pgtype.Float8
	FatG     pgtype.Float8
}

func (q *Queries) CreateFoodEntry(ctx context.Context, arg CreateFoodEntryParams) (FoodEntry, error) {
	row := q.db.QueryRow(ctx, createFoodEntry,
		arg.UserID, arg.LogDate, arg.FoodName, arg.MealType,
		arg.Calories, arg.ProteinG, arg.CarbsG, arg.FatG,
	)
	var f FoodEntry
	err := row.Scan(&f.EntryID, &f.UserID, &f.LogDate, &f.FoodName, &f.MealType, &f.Calories, &f.ProteinG, &f.CarbsG, &f.FatG)
	return f, err
}

const listFoodEntries = `
SELECT entry_id, user_id, log_date, food_name, meal_type, calories, protein_g, carbs_g, fat_g
FROM food_entries
WHERE user_id = $1 AND log_date >= $2
ORDER BY log_date ASC, entry_id ASC
`

type ListFoodEntriesParams struct {
	UserID    string
	StartDate pgtype.Date
}

func (q *Queries) ListFoodEntries(ctx context.Context, arg ListFoodEntriesParams) ([]FoodEntry, error) {
	rows, err := q.db.Query(ctx, listFoodEntries, arg.UserID, arg.StartDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []FoodEntry
	for rows.Next() {
		var f FoodEntry
		if err := rows.Scan(&f.EntryID, &f.UserID, &f.LogDate, &f.FoodName, &f.MealType, &f.Calories, &f.ProteinG, &f.CarbsG, &f.FatG); err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	return items, rows.Err()
}

/* =================================================================================
							ADAPTATION EVENT QUERIES
=================================================================================*/

const createAdaptationEvent = `
INSERT INTO adaptation_events (user_id, occurred_at, old_goal, new_goal, reason, confidence)
VALUES ($1, now(), $2, $3, $4, $5)
RETURNING event_id, user_id, occurred_at, old_goal, new_goal, reason, confidence
`

type CreateAdaptationEventParams struct {
	UserID     string
	OldGoal    int32
	NewGoal    int32
	Reason     string
	Confidence pgtype.Float8
}

func (q *Queries) CreateAdaptationEvent(ctx context.Context, arg CreateAdaptationEventParams) (AdaptationEvent, error) {
	row := q.db.QueryRow(ctx, createAdaptationEvent, arg.UserID, arg.OldGoal, arg.NewGoal, arg.Reason, arg.Confidence)
	var e AdaptationEvent
	err := row.Scan(&e.EventID, &e.UserID, &e.OccurredAt, &e.OldGoal, &e.NewGoal, &e.Reason, &e.Confidence)
	return e, err
}

const listAdaptationEvents = `
SELECT event_id, user_id, occurred_at, old_goal, new_goal, reason, confidence
FROM adaptation_events
WHERE user_id = $1
ORDER BY occurred_at ASC
`

func (q *Queries) ListAdaptationEvents(ctx context.Context, userID string) ([]AdaptationEvent, error) {
	rows, err := q.db.Query(ctx, listAdaptationEvents, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AdaptationEvent
	for rows.Next() {
		var e AdaptationEvent
		if err := rows.Scan(&e.EventID, &e.UserID, &e.OccurredAt, &e.OldGoal, &e.NewGoal, &e.Reason, &e.Confidence); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}
