package tracker

import (
	"net/http"

	"foodie/internal/assistant"
	"foodie/internal/auth"
	"foodie/internal/utility"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

type ChatRequest struct {
	Message string `json:"message"`
}

// ChatHandler handles one conversational turn. Assistant failures are
// reported inside the payload with a 200 status; the chat UI stays
// usable and renders the failure message as a notice.
func (h *Handler) ChatHandler(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if req.Message == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "message is required"})
	}

	sessionID, err := auth.ChatSessionID(c)
	if err != nil {
		log.Error().Err(err).Msg("Failed to establish chat session")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to establish chat session"})
	}
	sess := h.sessions.Get(sessionID)

	snap, err := assistant.LoadSnapshot(ctx, h.q, userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load user snapshot for chat")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load your data"})
	}

	reply := h.assistant.Respond(ctx, snap, sess, req.Message)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"reply":         reply,
		"history_turns": sess.Len(),
	})
}

// ChatStatusHandler reports whether the assistant can serve requests,
// so the UI can show its unavailable notice up front.
func (h *Handler) ChatStatusHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"available": h.assistant.Available(),
	})
}

// ChatGreetingHandler returns the opening assistant message for the
// user's current logging streak.
func (h *Handler) ChatGreetingHandler(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	snap, err := assistant.LoadSnapshot(ctx, h.q, userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load user snapshot for greeting")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load your data"})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"greeting": h.assistant.Greeting(snap),
	})
}

// ChatPromptsHandler returns suggested conversation starters tailored
// to the user's data.
func (h *Handler) ChatPromptsHandler(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := utility.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	snap, err := assistant.LoadSnapshot(ctx, h.q, userID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load user snapshot for prompts")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load your data"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"prompts": h.assistant.SuggestedPrompts(snap),
	})
}

// ChatResetHandler discards the conversation for this browser session.
func (h *Handler) ChatResetHandler(c echo.Context) error {
	sessionID, err := auth.ChatSessionID(c)
	if err != nil {
		log.Error().Err(err).Msg("Failed to establish chat session")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to establish chat session"})
	}

	h.sessions.Reset(sessionID)
	return c.JSON(http.StatusOK, map[string]string{"status": "conversation cleared"})
}
