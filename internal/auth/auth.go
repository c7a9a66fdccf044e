/*
Package auth establishes the identity of incoming requests. The full
login/signup lifecycle lives outside this service; what is carried here
is JWT validation for API requests and the cookie-backed chat session
that keys conversation state.
*/
package auth

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	_ "github.com/joho/godotenv/autoload"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const (
	AccessTokenDuration = 1 * time.Hour

	chatSessionName = "foodie-chat"
	chatSessionKey  = "chat_session_id"
)

var chatStore *sessions.CookieStore

type JwtCustomClaims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// InitAuth configures the JWT secret check and the chat session cookie
// store. It must run before the server accepts requests.
func InitAuth() error {
	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET environment variable is not set")
	}

	isProd := os.Getenv("APP_ENV") == "production"

	chatStore = sessions.NewCookieStore([]byte(sessionSecret))
	chatStore.Options.Path = "/"
	chatStore.Options.HttpOnly = true
	chatStore.Options.Secure = isProd
	chatStore.Options.SameSite = http.SameSiteLaxMode

	log.Info().Bool("secure_cookies", isProd).Msg("Auth initialized")
	return nil
}

// GenerateAccessToken mints a signed HMAC token for an identified user.
func GenerateAccessToken(userID, name string) (string, error) {
	claims := &JwtCustomClaims{
		UserID: userID,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(AccessTokenDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(os.Getenv("SESSION_SECRET")))
}

func JwtAuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		var tokenString string

		authHeader := c.Request().Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		} else {
			cookie, err := c.Cookie("access-token")
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Missing credentials"})
			}
			tokenString = cookie.Value
		}

		sessionSecret := os.Getenv("SESSION_SECRET")
		token, err := jwt.ParseWithClaims(tokenString, &JwtCustomClaims{}, func(token *jwt.Token) (interface{}, error) {
			// Verify signing method
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(sessionSecret), nil
		})

		if err != nil || !token.Valid {
			log.Warn().Err(err).Msg("Token validation failed")
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid or expired token"})
		}

		claims, ok := token.Claims.(*JwtCustomClaims)
		if !ok || claims.UserID == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid token"})
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_name", claims.Name)
		return next(c)
	}
}

// ChatSessionID returns the stable identifier for this browser's chat
// session, issuing a fresh one on first contact. Conversation history
// is keyed by this value, never shared across sessions.
func ChatSessionID(c echo.Context) (string, error) {
	session, err := chatStore.Get(c.Request(), chatSessionName)
	if err != nil {
		// A stale or tampered cookie decodes to an error; start over
		// with a fresh session rather than failing the request.
		session, _ = chatStore.New(c.Request(), chatSessionName)
	}

	if id, ok := session.Values[chatSessionKey].(string); ok && id != "" {
		return id, nil
	}

	id := uuid.New().String()
	session.Values[chatSessionKey] = id
	if err := session.Save(c.Request(), c.Response()); err != nil {
		return "", fmt.Errorf("failed to save chat session cookie: %w", err)
	}
	return id, nil
}
