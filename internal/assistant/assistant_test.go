package assistant

import (
	"context"
	"testing"
	"time"

	"foodie/internal/database"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	calls    int
	lastSent []Message
	reply    string
	err      error
}

func (f *fakeGateway) Send(ctx context.Context, messages []Message) (string, error) {
	f.calls++
	f.lastSent = messages
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func testConfig() Config {
	return Config{
		APIKey:            "sk-test",
		Model:             "test-model",
		MaxRetries:        1,
		HistoryCharBudget: 8000,
	}
}

func TestRespondUnavailableShortCircuits(t *testing.T) {
	gw := &fakeGateway{reply: "should never be sent"}
	a := NewWithGateway(Config{APIKey: ""}, gw)
	sess := NewSession()

	reply := a.Respond(context.Background(), nil, sess, "hello")

	assert.True(t, reply.Failed())
	assert.Equal(t, KindMissingCredential, reply.FailureKind)
	assert.Zero(t, gw.calls, "unavailable assistant must not touch the gateway")
	assert.Zero(t, sess.Len(), "unavailable assistant must not touch the session")
}

func TestRespondSuccessAppendsBothTurns(t *testing.T) {
	gw := &fakeGateway{reply: "Sounds like a solid plan."}
	a := NewWithGateway(testConfig(), gw)
	sess := NewSession()

	reply := a.Respond(context.Background(), nil, sess, "what should I eat?")

	require.False(t, reply.Failed())
	assert.Equal(t, "Sounds like a solid plan.", reply.Text)

	history := sess.History()
	require.Len(t, history, 2)
	assert.Equal(t, RoleUser, history[0].Role)
	assert.Equal(t, "what should I eat?", history[0].Content)
	assert.Equal(t, RoleAssistant, history[1].Role)
	assert.Equal(t, "Sounds like a solid plan.", history[1].Content)
}

func TestRespondFailureKeepsUserTurnOnly(t *testing.T) {
	gw := &fakeGateway{err: &GatewayError{Kind: KindTimeout}}
	a := NewWithGateway(testConfig(), gw)
	sess := NewSession()

	reply := a.Respond(context.Background(), nil, sess, "are you there?")

	assert.True(t, reply.Failed())
	assert.Equal(t, KindTimeout, reply.FailureKind)
	assert.NotEmpty(t, reply.FailureMessage)
	assert.Empty(t, reply.Text)

	history := sess.History()
	require.Len(t, history, 1)
	assert.Equal(t, RoleUser, history[0].Role)
}

func TestRespondPersonalizedScenario(t *testing.T) {
	// A user with a two-day downward trend asks about progress; the
	// provider prompt must carry that trend and the conversation must
	// grow by exactly two turns.
	d1, _ := time.Parse("2006-01-02", "2026-08-28")
	d2, _ := time.Parse("2006-01-02", "2026-08-29")
	snap := &UserSnapshot{
		Profile: database.UserProfile{UserID: "sam", DisplayName: "Sam"},
		WeightLogs: []database.WeightLog{
			{UserID: "sam", LogDate: pgtype.Date{Time: d1, Valid: true}, WeightKg: 80.0},
			{UserID: "sam", LogDate: pgtype.Date{Time: d2, Valid: true}, WeightKg: 79.0},
		},
	}

	gw := &fakeGateway{reply: "You're trending down 1kg, great progress!"}
	a := NewWithGateway(testConfig(), gw)
	sess := NewSession()

	reply := a.Respond(context.Background(), snap, sess, "How am I doing?")

	require.False(t, reply.Failed())
	assert.Equal(t, "You're trending down 1kg, great progress!", reply.Text)
	assert.Equal(t, 2, sess.Len())

	require.NotEmpty(t, gw.lastSent)
	system := gw.lastSent[0]
	assert.Equal(t, RoleSystem, system.Role)
	assert.Contains(t, system.Content, "Sam")
	assert.Contains(t, system.Content, "trending down")
	assert.Equal(t, "How am I doing?", gw.lastSent[len(gw.lastSent)-1].Content)
}

func TestRespondSendsPriorHistory(t *testing.T) {
	gw := &fakeGateway{reply: "second answer"}
	a := NewWithGateway(testConfig(), gw)
	sess := NewSession()

	a.Respond(context.Background(), nil, sess, "first question")
	gw.reply = "noted"
	a.Respond(context.Background(), nil, sess, "second question")

	// system + first q + first a + second q
	require.Len(t, gw.lastSent, 4)
	assert.Equal(t, "first question", gw.lastSent[1].Content)
	assert.Equal(t, "second answer", gw.lastSent[2].Content)
	assert.Equal(t, "second question", gw.lastSent[3].Content)
}

func TestRespondRejectsBlankUtterance(t *testing.T) {
	gw := &fakeGateway{reply: "should not matter"}
	a := NewWithGateway(testConfig(), gw)
	sess := NewSession()

	reply := a.Respond(context.Background(), nil, sess, "   ")

	assert.True(t, reply.Failed())
	assert.Equal(t, KindEmptyUtterance, reply.FailureKind)
	assert.Zero(t, gw.calls, "blank input must not reach the provider")
	assert.Zero(t, sess.Len())
}

// typedNilGateway returns a nil *GatewayError inside a non-nil error
// interface, the worst-behaved implementation a custom Gateway could be.
type typedNilGateway struct{}

func (typedNilGateway) Send(ctx context.Context, messages []Message) (string, error) {
	var ge *GatewayError
	return "", ge
}

func TestRespondSurvivesTypedNilGatewayError(t *testing.T) {
	a := NewWithGateway(testConfig(), typedNilGateway{})
	sess := NewSession()

	var reply Reply
	require.NotPanics(t, func() {
		reply = a.Respond(context.Background(), nil, sess, "hello")
	})

	assert.True(t, reply.Failed())
	assert.Equal(t, KindNetwork, reply.FailureKind)
	assert.NotEmpty(t, reply.FailureMessage)
	require.Len(t, sess.History(), 1)
	assert.Equal(t, RoleUser, sess.History()[0].Role)
}

func TestGreetingVariants(t *testing.T) {
	a := New(testConfig())

	t.Run("brand new user", func(t *testing.T) {
		greeting := a.Greeting(&UserSnapshot{Profile: database.UserProfile{DisplayName: "Sam"}})
		assert.Contains(t, greeting, "Hello Sam")
	})

	t.Run("logged today", func(t *testing.T) {
		snap := &UserSnapshot{
			Profile: database.UserProfile{DisplayName: "Sam"},
			WeightLogs: []database.WeightLog{
				{LogDate: pgtype.Date{Time: time.Now(), Valid: true}, WeightKg: 80},
			},
		}
		assert.Contains(t, a.Greeting(snap), "Great job logging your data today")
	})

	t.Run("gap of several days", func(t *testing.T) {
		snap := &UserSnapshot{
			Profile: database.UserProfile{DisplayName: "Sam"},
			WeightLogs: []database.WeightLog{
				{LogDate: pgtype.Date{Time: time.Now().AddDate(0, 0, -5), Valid: true}, WeightKg: 80},
			},
		}
		greeting := a.Greeting(snap)
		assert.Contains(t, greeting, "It's been")
		assert.Contains(t, greeting, "days since your last log")
	})
}

func TestSuggestedPromptsTailoring(t *testing.T) {
	a := New(testConfig())

	t.Run("new user gets no progress prompt", func(t *testing.T) {
		prompts := a.SuggestedPrompts(&UserSnapshot{})
		assert.NotContains(t, prompts, "How am I progressing toward my goal?")
		assert.LessOrEqual(t, len(prompts), 4)
	})

	t.Run("established user gets progress prompt", func(t *testing.T) {
		snap := &UserSnapshot{
			WeightLogs: []database.WeightLog{{WeightKg: 80}, {WeightKg: 79.5}, {WeightKg: 79}},
		}
		prompts := a.SuggestedPrompts(snap)
		assert.Contains(t, prompts, "How am I progressing toward my goal?")
		assert.LessOrEqual(t, len(prompts), 4)
	})

	t.Run("low confidence surfaces adaptation prompt", func(t *testing.T) {
		snap := &UserSnapshot{
			Profile: database.UserProfile{
				AdaptationConfidence: pgtype.Float8{Float64: 0.2, Valid: true},
			},
		}
		prompts := a.SuggestedPrompts(snap)
		assert.Contains(t, prompts, "Why isn't my calorie goal adapting yet?")
	})
}
