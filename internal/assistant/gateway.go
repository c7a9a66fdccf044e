package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// --- OpenRouter API Configuration ---
const (
	defaultBaseURL    = "https://openrouter.ai/api/v1/chat/completions"
	defaultModel      = "nvidia/nemotron-3-nano-30b-a3b:free"
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	defaultCharBudget = 8000
	initialBackoff    = 1 * time.Second

	maxTokens   = 800
	temperature = 0.7
)

// Config carries everything the gateway needs. It is assembled by the
// host's wiring (env, flags) and injected here; the core never reads
// raw environment variables itself.
type Config struct {
	APIKey            string
	Model             string
	BaseURL           string
	Timeout           time.Duration
	MaxRetries        int
	HistoryCharBudget int
}

// LoadConfigFromEnv builds a Config from the process environment,
// applying the free-tier defaults. Intended for use by the server
// wiring only.
func LoadConfigFromEnv() Config {
	cfg := Config{
		APIKey:            os.Getenv("OPENROUTER_API_KEY"),
		Model:             os.Getenv("OPENROUTER_MODEL"),
		BaseURL:           os.Getenv("OPENROUTER_BASE_URL"),
		Timeout:           defaultTimeout,
		MaxRetries:        defaultMaxRetries,
		HistoryCharBudget: defaultCharBudget,
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if secs, err := strconv.Atoi(os.Getenv("ASSISTANT_TIMEOUT_SECONDS")); err == nil && secs > 0 {
		cfg.Timeout = time.Duration(secs) * time.Second
	}
	if n, err := strconv.Atoi(os.Getenv("ASSISTANT_MAX_RETRIES")); err == nil && n > 0 {
		cfg.MaxRetries = n
	}
	if n, err := strconv.Atoi(os.Getenv("ASSISTANT_HISTORY_CHAR_BUDGET")); err == nil && n > 0 {
		cfg.HistoryCharBudget = n
	}
	return cfg
}

/* =================================================================================
							ERROR TAXONOMY
=================================================================================*/

type ErrorKind string

const (
	KindMissingCredential ErrorKind = "missing_credential"
	KindNetwork           ErrorKind = "network_error"
	KindTimeout           ErrorKind = "timeout"
	KindRateLimited       ErrorKind = "rate_limited"
	KindProvider          ErrorKind = "provider_error"
	KindMalformedResponse ErrorKind = "malformed_response"
)

// GatewayError is the normalized failure type for provider calls.
// Detail is for diagnostics/logging only; Error() and UserMessage()
// never expose provider internals or credential material.
type GatewayError struct {
	Kind   ErrorKind
	Detail string
}

func (e *GatewayError) Error() string {
	if e == nil {
		return "assistant gateway: unknown failure"
	}
	return fmt.Sprintf("assistant gateway: %s", e.Kind)
}

// UserMessage maps the failure kind to a safe, user-facing sentence.
func (e *GatewayError) UserMessage() string {
	if e == nil {
		return "I'm having trouble reaching my AI service right now. Please try again later."
	}
	switch e.Kind {
	case KindMissingCredential:
		return "The assistant is not configured on this server."
	case KindRateLimited:
		return "The assistant is a bit busy right now. Please try again in a moment."
	case KindTimeout:
		return "The assistant took too long to respond. Please try again."
	default:
		return "I'm having trouble reaching my AI service right now. Please try again later."
	}
}

// AsGatewayError unwraps err into a *GatewayError if it is one. A
// typed-nil wrapped in the error interface reports false so callers
// never dereference a nil result.
func AsGatewayError(err error) (*GatewayError, bool) {
	var ge *GatewayError
	if errors.As(err, &ge) && ge != nil {
		return ge, true
	}
	return nil, false
}

/* =================================================================================
							OPENROUTER CLIENT
=================================================================================*/

// Gateway sends an assembled message sequence to the LLM provider and
// returns the assistant's text. Implemented by the OpenRouter client in
// production and by fakes in tests.
type Gateway interface {
	Send(ctx context.Context, messages []Message) (string, error)
}

type chatPayload struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type openRouterGateway struct {
	cfg     Config
	client  *http.Client
	backoff time.Duration
}

// NewGateway builds the production OpenRouter gateway.
func NewGateway(cfg Config) Gateway {
	return &openRouterGateway{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		backoff: initialBackoff,
	}
}

// Send performs the provider call with bounded retries. Network errors
// retry up to MaxRetries with exponential backoff; a timeout is retried
// at most once; rate limits, provider rejections and malformed payloads
// surface immediately since retrying them rarely helps and burns quota.
func (g *openRouterGateway) Send(ctx context.Context, messages []Message) (string, error) {
	if strings.TrimSpace(g.cfg.APIKey) == "" {
		return "", &GatewayError{Kind: KindMissingCredential, Detail: "no API key configured"}
	}

	payload := chatPayload{
		Model:       g.cfg.Model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", &GatewayError{Kind: KindProvider, Detail: fmt.Sprintf("failed to marshal payload: %v", err)}
	}

	// MaxRetries is the total attempt budget; any value below one still
	// means a single request goes out.
	attempts := g.cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr *GatewayError
	timeouts := 0

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			// Exponential backoff between attempts.
			time.Sleep(g.backoff * time.Duration(math.Pow(2, float64(attempt-1))))
		}

		text, gerr := g.attempt(ctx, payloadBytes)
		if gerr == nil {
			return text, nil
		}

		lastErr = gerr
		log.Warn().Str("kind", string(gerr.Kind)).Int("attempt", attempt+1).Msg("Assistant provider call failed")

		switch gerr.Kind {
		case KindNetwork:
			continue
		case KindTimeout:
			timeouts++
			if timeouts > 1 {
				return "", lastErr
			}
			continue
		default:
			// Provider-side rejections are not retried.
			return "", lastErr
		}
	}

	if lastErr == nil {
		lastErr = &GatewayError{Kind: KindNetwork, Detail: "retry budget exhausted without a response"}
	}
	return "", lastErr
}

// attempt performs exactly one outbound request.
func (g *openRouterGateway) attempt(ctx context.Context, payload []byte) (string, *GatewayError) {
	reqCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, g.cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return "", &GatewayError{Kind: KindNetwork, Detail: fmt.Sprintf("failed to create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	req.Header.Set("X-Title", "Foodie Nutrition Tracker")

	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || reqCtx.Err() == context.DeadlineExceeded {
			return "", &GatewayError{Kind: KindTimeout, Detail: fmt.Sprintf("request timed out after %s", g.cfg.Timeout)}
		}
		return "", &GatewayError{Kind: KindNetwork, Detail: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		detail := fmt.Sprintf("provider returned %s: %s", resp.Status, string(body))
		if resp.StatusCode == http.StatusTooManyRequests {
			return "", &GatewayError{Kind: KindRateLimited, Detail: detail}
		}
		return "", &GatewayError{Kind: KindProvider, Detail: detail}
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &GatewayError{Kind: KindMalformedResponse, Detail: fmt.Sprintf("failed to decode response: %v", err)}
	}

	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", &GatewayError{Kind: KindMalformedResponse, Detail: "no content found in provider response"}
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
