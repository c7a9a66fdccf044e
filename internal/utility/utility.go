package utility

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/labstack/echo/v4"
)

// GetUserIDFromContext safely retrieves user ID from Echo context
func GetUserIDFromContext(c echo.Context) (string, error) {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

func PgtypeUUIDToString(pgtypeUUID pgtype.UUID) (string, error) {
	if !pgtypeUUID.Valid {
		return "", fmt.Errorf("invalid UUID")
	}

	UUID, err := uuid.FromBytes(pgtypeUUID.Bytes[:])
	if err != nil {
		return "", fmt.Errorf("failed to parse UUID: %w", err)
	}

	return UUID.String(), nil
}

// Float8ToFloat unwraps a nullable float column, returning 0 when NULL.
func Float8ToFloat(f pgtype.Float8) float64 {
	if !f.Valid {
		return 0
	}
	return f.Float64
}

// Int4ToInt unwraps a nullable integer column, returning 0 when NULL.
func Int4ToInt(i pgtype.Int4) int32 {
	if !i.Valid {
		return 0
	}
	return i.Int32
}

// TextToString unwraps a nullable text column, returning "" when NULL.
func TextToString(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}

// FloatToFloat8 wraps a float into a valid pgtype column value.
func FloatToFloat8(f float64) pgtype.Float8 {
	return pgtype.Float8{Float64: f, Valid: true}
}

// DateOf wraps a time into a valid pgtype date column value.
func DateOf(t time.Time) pgtype.Date {
	return pgtype.Date{Time: t, Valid: true}
}

// ParseDate parses a YYYY-MM-DD string into a pgtype date column value.
func ParseDate(s string) (pgtype.Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return pgtype.Date{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, err)
	}
	return pgtype.Date{Time: t, Valid: true}, nil
}

// ParseDaysParam parses a "days" query parameter, clamping to 365 and
// falling back to the given default when absent or invalid.
func ParseDaysParam(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return Min(n, 365)
}

func Min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
