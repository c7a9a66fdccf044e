/*
Package tracker exposes the nutrition tracking API: user profile and
goals, daily weigh-ins, food entries, the adaptive goal history, and the
conversational assistant endpoints built on top of that data.
*/
package tracker

import (
	"net/http"
	"time"

	"foodie/internal/assistant"
	"foodie/internal/database"
	"foodie/internal/utility"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// Handler bundles the dependencies the tracking endpoints need. The
// server wires one instance at startup.
type Handler struct {
	q         *database.Queries
	assistant *assistant.Assistant
	sessions  *assistant.SessionManager
}

func NewHandler(q *database.Queries, a *assistant.Assistant, sm *assistant.SessionManager) *Handler {
	return &Handler{q: q, assistant: a, sessions: sm}
}

/* =================================================================================
							PROFILE & GOALS
=================================================================================*/

type ProfileRequest struct {
	DisplayName        *string  `json:"display_name"`
	Age                *int32   `json:"age"`
	Gender             *string  `json:"gender"`
	HeightCm           *float64 `json:"height_cm"`
	ActivityLevel      *float64 `json:"activity_level"`
	GoalKgPerWeek      *float64 `json:"goal_kg_per_week"`
	GoalWeightKg       *float64 `json:"goal_weight_kg"`
	AdaptedCalorieGoal *int32   `json:"adapted_calorie_goal"`
	TdeeEstimate       *float64 `json:"tdee_estimate"`
	ProteinTargetG     *float64 `json:"protein_target_g"`
	CarbsTargetG       *float64 `json:"carbs_target_g"`
	FatTargetG         *float64 `json:"fat_target_g"`
}

func (h *Handler) GetProfileHandler(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	profile, err := h.q.GetUserProfile(ctx, userID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Profile not found"})
		}
		log.Error().Err(err).Msg("Failed to fetch user profile")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch profile"})
	}

	return c.JSON(http.StatusOK, profile)
}

func (h *Handler) UpsertProfileHandler(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	var req ProfileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	params := database.UpsertUserProfileParams{UserID: userID}

	if req.DisplayName != nil {
		params.DisplayName = *req.DisplayName
	}
	if req.Age != nil {
		if *req.Age < 13 || *req.Age > 120 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Age must be between 13 and 120"})
		}
		params.Age = pgtype.Int4{Int32: *req.Age, Valid: true}
	}
	if req.Gender != nil {
		params.Gender = pgtype.Text{String: *req.Gender, Valid: true}
	}
	if req.HeightCm != nil {
		params.HeightCm = utility.FloatToFloat8(*req.HeightCm)
	}
	if req.ActivityLevel != nil {
		params.ActivityLevel = utility.FloatToFloat8(*req.ActivityLevel)
	}
	if req.GoalKgPerWeek != nil {
		params.GoalKgPerWeek = utility.FloatToFloat8(*req.GoalKgPerWeek)
	}
	if req.GoalWeightKg != nil {
		params.GoalWeightKg = utility.FloatToFloat8(*req.GoalWeightKg)
	}
	if req.AdaptedCalorieGoal != nil {
		params.AdaptedCalorieGoal = pgtype.Int4{Int32: *req.AdaptedCalorieGoal, Valid: true}
	}
	if req.TdeeEstimate != nil {
		params.TdeeEstimate = utility.FloatToFloat8(*req.TdeeEstimate)
	}
	if req.ProteinTargetG != nil {
		params.ProteinTargetG = utility.FloatToFloat8(*req.ProteinTargetG)
	}
	if req.CarbsTargetG != nil {
		params.CarbsTargetG = utility.FloatToFloat8(*req.CarbsTargetG)
	}
	if req.FatTargetG != nil {
		params.FatTargetG = utility.FloatToFloat8(*req.FatTargetG)
	}

	profile, err := h.q.UpsertUserProfile(ctx, params)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upsert user profile")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save profile"})
	}

	return c.JSON(http.StatusOK, profile)
}

/* =================================================================================
							WEIGHT LOGS
=================================================================================*/

type WeightLogRequest struct {
	LogDate    string   `json:"log_date"` // YYYY-MM-DD, defaults to today
	WeightKg   *float64 `json:"weight_kg"`
	CaloriesIn *int32   `json:"calories_in"`
}

func (h *Handler) CreateWeightLogHandler(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	var req WeightLogRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	if req.WeightKg == nil || *req.WeightKg <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "A positive weight_kg is required"})
	}

	logDate := utility.DateOf(time.Now())
	if req.LogDate != "" {
		logDate, err = utility.ParseDate(req.LogDate)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid log_date format. Use YYYY-MM-DD."})
		}
	}

	params := database.CreateWeightLogParams{
		UserID:   userID,
		LogDate:  logDate,
		WeightKg: *req.WeightKg,
	}
	if req.CaloriesIn != nil {
		params.CaloriesIn = pgtype.Int4{Int32: *req.CaloriesIn, Valid: true}
	}

	entry, err := h.q.CreateWeightLog(ctx, params)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create weight log")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save weight log"})
	}

	return c.JSON(http.StatusCreated, entry)
}

func (h *Handler) GetWeightLogsHandler(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	days := utility.ParseDaysParam(c.QueryParam("days"), 30)
	start := utility.DateOf(time.Now().AddDate(0, 0, -days))

	logs, err := h.q.ListWeightLogs(ctx, database.ListWeightLogsParams{UserID: userID, StartDate: start})
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch weight logs")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch weight logs"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"days": days,
		"logs": logs,
	})
}

/* =================================================================================
							FOOD ENTRIES
=================================================================================*/

var validMealTypes = map[string]bool{
	"breakfast": true,
	"lunch":     true,
	"dinner":    true,
	"snack":     true,
}

type FoodEntryRequest struct {
	LogDate  string   `json:"log_date"` // YYYY-MM-DD, defaults to today
	FoodName string   `json:"food_name"`
	MealType string   `json:"meal_type"`
	Calories *int32   `json:"calories"`
	ProteinG *float64 `json:"protein_g"`
	CarbsG   *float64 `json:"carbs_g"`
	FatG     *float64 `json:"fat_g"`
}

func (h *Handler) CreateFoodEntryHandler(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	var req FoodEntryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	if req.FoodName == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "food_name is required"})
	}
	if !validMealTypes[req.MealType] {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "meal_type must be one of breakfast, lunch, dinner, snack"})
	}
	if req.Calories == nil || *req.Calories < 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "A non-negative calories value is required"})
	}

	logDate := utility.DateOf(time.Now())
	if req.LogDate != "" {
		logDate, err = utility.ParseDate(req.LogDate)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid log_date format. Use YYYY-MM-DD."})
		}
	}

	params := database.CreateFoodEntryParams{
		UserID:   userID,
		LogDate:  logDate,
		FoodName: req.FoodName,
		MealType: req.MealType,
		Calories: *req.Calories,
	}
	if req.ProteinG != nil {
		params.ProteinG = utility.FloatToFloat8(*req.ProteinG)
	}
	if req.CarbsG != nil {
		params.CarbsG = utility.FloatToFloat8(*req.CarbsG)
	}
	if req.FatG != nil {
		params.FatG = utility.FloatToFloat8(*req.FatG)
	}

	entry, err := h.q.CreateFoodEntry(ctx, params)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create food entry")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save food entry"})
	}

	return c.JSON(http.StatusCreated, entry)
}

func (h *Handler) GetFoodEntriesHandler(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	days := utility.ParseDaysParam(c.QueryParam("days"), 7)
	start := utility.DateOf(time.Now().AddDate(0, 0, -days))

	entries, err := h.q.ListFoodEntries(ctx, database.ListFoodEntriesParams{UserID: userID, StartDate: start})
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch food entries")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch food entries"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"days":    days,
		"entries": entries,
	})
}

/* =================================================================================
							ADAPTATION HISTORY
=================================================================================*/

func (h *Handler) GetAdaptationsHandler(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	events, err := h.q.ListAdaptationEvents(ctx, userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch adaptation history")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch adaptation history"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"events": events})
}
