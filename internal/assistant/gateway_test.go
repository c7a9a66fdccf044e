package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGateway(cfg Config) *openRouterGateway {
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	return &openRouterGateway{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		backoff: time.Millisecond,
	}
}

func completionBody(text string) string {
	body, _ := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": text}},
		},
	})
	return string(body)
}

func TestSendReturnsAssistantText(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		var payload chatPayload
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload)) {
			assert.Equal(t, "test-model", payload.Model)
			assert.Equal(t, maxTokens, payload.MaxTokens)
		}

		w.Write([]byte(completionBody("  You're trending down, great progress!  ")))
	}))
	defer srv.Close()

	g := testGateway(Config{APIKey: "sk-test", Model: "test-model", BaseURL: srv.URL})

	text, err := g.Send(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "You're trending down, great progress!", text)
	assert.Equal(t, "Bearer sk-test", gotAuth)
}

func TestSendMissingCredentialFailsFast(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	g := testGateway(Config{APIKey: "", BaseURL: srv.URL})

	_, err := g.Send(context.Background(), nil)
	gerr, ok := AsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, KindMissingCredential, gerr.Kind)
	assert.Zero(t, calls.Load(), "no network traffic without a credential")
}

func TestSendRetriesNetworkErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		// Kill the connection so the client sees a transport error.
		hj := w.(http.Hijacker)
		conn, _, _ := hj.Hijack()
		conn.Close()
	}))
	defer srv.Close()

	g := testGateway(Config{APIKey: "sk-test", BaseURL: srv.URL, MaxRetries: 3})

	_, err := g.Send(context.Background(), nil)
	gerr, ok := AsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, KindNetwork, gerr.Kind)
	assert.Equal(t, int32(3), calls.Load(), "network errors are retried up to MaxRetries")
}

func TestSendDoesNotRetryRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := testGateway(Config{APIKey: "sk-test", BaseURL: srv.URL, MaxRetries: 3})

	_, err := g.Send(context.Background(), nil)
	gerr, ok := AsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, KindRateLimited, gerr.Kind)
	assert.Equal(t, int32(1), calls.Load(), "rate limits are not retried")
}

func TestSendDoesNotRetryProviderError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "bad model"}`))
	}))
	defer srv.Close()

	g := testGateway(Config{APIKey: "sk-test", BaseURL: srv.URL, MaxRetries: 3})

	_, err := g.Send(context.Background(), nil)
	gerr, ok := AsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, KindProvider, gerr.Kind)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSendZeroRetryBudgetStillAttemptsOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(completionBody("one shot")))
	}))
	defer srv.Close()

	// Built directly so MaxRetries stays zero.
	g := &openRouterGateway{
		cfg:     Config{APIKey: "sk-test", BaseURL: srv.URL, Timeout: 2 * time.Second, MaxRetries: 0},
		client:  &http.Client{Timeout: 2 * time.Second},
		backoff: time.Millisecond,
	}

	text, err := g.Send(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "one shot", text)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSendZeroRetryBudgetFailureIsConcrete(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		hj := w.(http.Hijacker)
		conn, _, _ := hj.Hijack()
		conn.Close()
	}))
	defer srv.Close()

	g := &openRouterGateway{
		cfg:     Config{APIKey: "sk-test", BaseURL: srv.URL, Timeout: 2 * time.Second, MaxRetries: 0},
		client:  &http.Client{Timeout: 2 * time.Second},
		backoff: time.Millisecond,
	}

	_, err := g.Send(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	gerr, ok := AsGatewayError(err)
	require.True(t, ok)
	require.NotNil(t, gerr)
	assert.Equal(t, KindNetwork, gerr.Kind)
	assert.NotPanics(t, func() { _ = gerr.UserMessage() })
}

func TestSendTimeoutRetriedAtMostOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	g := &openRouterGateway{
		cfg:     Config{APIKey: "sk-test", BaseURL: srv.URL, Timeout: 50 * time.Millisecond, MaxRetries: 5},
		client:  &http.Client{Timeout: 50 * time.Millisecond},
		backoff: time.Millisecond,
	}

	_, err := g.Send(context.Background(), nil)
	gerr, ok := AsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, KindTimeout, gerr.Kind)
	assert.Equal(t, int32(2), calls.Load(), "a timeout is retried exactly once before surfacing")
}

func TestAsGatewayErrorRejectsTypedNil(t *testing.T) {
	var ge *GatewayError
	var err error = ge

	require.Error(t, err)
	got, ok := AsGatewayError(err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestSendMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	g := testGateway(Config{APIKey: "sk-test", BaseURL: srv.URL})

	_, err := g.Send(context.Background(), nil)
	gerr, ok := AsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, KindMalformedResponse, gerr.Kind)
}

func TestSendRecoversAfterTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			hj := w.(http.Hijacker)
			conn, _, _ := hj.Hijack()
			conn.Close()
			return
		}
		w.Write([]byte(completionBody("recovered")))
	}))
	defer srv.Close()

	g := testGateway(Config{APIKey: "sk-test", BaseURL: srv.URL, MaxRetries: 3})

	text, err := g.Send(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGatewayErrorNeverLeaksDetail(t *testing.T) {
	err := &GatewayError{Kind: KindProvider, Detail: "secret internal detail sk-abc123"}

	assert.NotContains(t, err.Error(), "sk-abc123")
	assert.NotContains(t, err.UserMessage(), "sk-abc123")
}

func TestUserMessagePerKind(t *testing.T) {
	assert.Contains(t, (&GatewayError{Kind: KindMissingCredential}).UserMessage(), "not configured")
	assert.Contains(t, (&GatewayError{Kind: KindRateLimited}).UserMessage(), "busy")
	assert.Contains(t, (&GatewayError{Kind: KindTimeout}).UserMessage(), "too long")
	assert.Contains(t, (&GatewayError{Kind: KindNetwork}).UserMessage(), "try again later")
}

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "sk-env")
	t.Setenv("OPENROUTER_MODEL", "")
	t.Setenv("OPENROUTER_BASE_URL", "")
	t.Setenv("ASSISTANT_TIMEOUT_SECONDS", "")
	t.Setenv("ASSISTANT_MAX_RETRIES", "")
	t.Setenv("ASSISTANT_HISTORY_CHAR_BUDGET", "")

	cfg := LoadConfigFromEnv()

	assert.Equal(t, "sk-env", cfg.APIKey)
	assert.Equal(t, defaultModel, cfg.Model)
	assert.Equal(t, defaultBaseURL, cfg.BaseURL)
	assert.Equal(t, defaultTimeout, cfg.Timeout)
	assert.Equal(t, defaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, defaultCharBudget, cfg.HistoryCharBudget)
}

func TestLoadConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "sk-env")
	t.Setenv("OPENROUTER_MODEL", "custom/model")
	t.Setenv("ASSISTANT_TIMEOUT_SECONDS", "5")
	t.Setenv("ASSISTANT_MAX_RETRIES", "7")
	t.Setenv("ASSISTANT_HISTORY_CHAR_BUDGET", "1234")

	cfg := LoadConfigFromEnv()

	assert.Equal(t, "custom/model", cfg.Model)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 7, cfg.MaxRetries)
	assert.Equal(t, 1234, cfg.HistoryCharBudget)
}
