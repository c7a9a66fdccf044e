/*
Package assistant implements the personalized nutrition chat assistant:
it derives a personalization context from the user's tracked data,
assembles the provider prompt around the running conversation, and
normalizes provider failures so the host application stays usable when
the assistant is degraded or unconfigured.
*/
package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// KindEmptyUtterance flags a reply rejected before any provider
// involvement: the user sent nothing to respond to.
const KindEmptyUtterance ErrorKind = "empty_utterance"

// Reply is either assistant text or a structured failure, never both.
type Reply struct {
	Text           string    `json:"text,omitempty"`
	FailureKind    ErrorKind `json:"failure_kind,omitempty"`
	FailureMessage string    `json:"failure_message,omitempty"`
}

func (r Reply) Failed() bool {
	return r.FailureKind != ""
}

// Assistant is the orchestrator facade. It holds configuration and the
// provider gateway; all conversation state lives in the caller-supplied
// session, so the orchestrator itself is stateless between calls.
type Assistant struct {
	cfg     Config
	gateway Gateway
}

func New(cfg Config) *Assistant {
	return &Assistant{cfg: cfg, gateway: NewGateway(cfg)}
}

// NewWithGateway injects a custom gateway, used by tests to simulate
// provider behavior deterministically.
func NewWithGateway(cfg Config, gw Gateway) *Assistant {
	return &Assistant{cfg: cfg, gateway: gw}
}

// Available reports whether the assistant can serve at all. Re-checked
// on every call; it drives the UI's "assistant unavailable" notice.
func (a *Assistant) Available() bool {
	return strings.TrimSpace(a.cfg.APIKey) != ""
}

// Respond handles one user utterance end to end: build context,
// assemble the prompt, commit the user's turn to the session, call the
// provider, and commit the assistant's turn only on success. A failed
// call leaves an unanswered user turn rather than a fabricated reply.
func (a *Assistant) Respond(ctx context.Context, snap *UserSnapshot, sess *Session, utterance string) Reply {
	if strings.TrimSpace(utterance) == "" {
		return Reply{
			FailureKind:    KindEmptyUtterance,
			FailureMessage: "Please enter a message before sending.",
		}
	}
	if !a.Available() {
		return Reply{
			FailureKind:    KindMissingCredential,
			FailureMessage: (&GatewayError{Kind: KindMissingCredential}).UserMessage(),
		}
	}

	pc := BuildContext(snap)
	messages := assemblePrompt(pc, sess.History(), utterance, a.cfg.HistoryCharBudget)

	// The user's own words are committed before the provider call so
	// they survive any downstream failure. The utterance was already
	// checked non-blank, so Append cannot reject it.
	if err := sess.Append(Message{Role: RoleUser, Content: utterance}); err != nil {
		return Reply{
			FailureKind:    KindEmptyUtterance,
			FailureMessage: "Please enter a message before sending.",
		}
	}

	text, err := a.gateway.Send(ctx, messages)
	if err != nil {
		gerr, ok := AsGatewayError(err)
		if !ok {
			gerr = &GatewayError{Kind: KindNetwork, Detail: err.Error()}
		}
		log.Error().Str("kind", string(gerr.Kind)).Str("detail", gerr.Detail).Msg("Assistant reply failed")
		return Reply{FailureKind: gerr.Kind, FailureMessage: gerr.UserMessage()}
	}

	if err := sess.Append(Message{Role: RoleAssistant, Content: text}); err != nil {
		log.Warn().Err(err).Msg("Provider returned empty reply text")
		return Reply{
			FailureKind:    KindMalformedResponse,
			FailureMessage: (&GatewayError{Kind: KindMalformedResponse}).UserMessage(),
		}
	}

	return Reply{Text: text}
}

// Greeting produces the opening assistant message based on how recently
// the user has been logging.
func (a *Assistant) Greeting(snap *UserSnapshot) string {
	pc := BuildContext(snap)
	name := pc.Name

	if snap == nil || len(snap.WeightLogs) == 0 {
		return fmt.Sprintf("Hello %s! I'm here to help you on your nutrition journey. What would you like to talk about?", name)
	}

	last := snap.WeightLogs[len(snap.WeightLogs)-1]
	if !last.LogDate.Valid {
		return fmt.Sprintf("Welcome back, %s! Ready to pick up where you left off?", name)
	}

	today := time.Now().Truncate(24 * time.Hour)
	lastDay := last.LogDate.Time.Truncate(24 * time.Hour)
	daysSince := int(today.Sub(lastDay).Hours() / 24)

	switch {
	case daysSince <= 0:
		return fmt.Sprintf("Great job logging your data today, %s! How are you feeling about your progress?", name)
	case daysSince == 1:
		return fmt.Sprintf("Hi %s! I noticed you haven't logged today yet. How's your day going?", name)
	default:
		return fmt.Sprintf("Welcome back, %s! It's been %d days since your last log. Ready to get back on track?", name, daysSince)
	}
}

// SuggestedPrompts returns up to four quick-start questions tailored to
// the user's current situation, used to seed the chat UI's buttons.
func (a *Assistant) SuggestedPrompts(snap *UserSnapshot) []string {
	var suggestions []string

	if snap != nil && len(snap.WeightLogs) >= 3 {
		suggestions = append(suggestions, "How am I progressing toward my goal?")
	}

	suggestions = append(suggestions, "Suggest meals for my macro targets")

	if snap != nil && snap.Profile.AdaptationConfidence.Valid && snap.Profile.AdaptationConfidence.Float64 < 0.5 {
		suggestions = append(suggestions, "Why isn't my calorie goal adapting yet?")
	}

	suggestions = append(suggestions,
		"I need some motivation",
		"Explain how the adaptive calorie system works",
	)

	if len(suggestions) > 4 {
		suggestions = suggestions[:4]
	}
	return suggestions
}
