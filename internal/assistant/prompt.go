package assistant

import "fmt"

// Message roles follow the chat-completions convention.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of the conversation. Immutable once created.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

/* =================================================================================
						PROMPT ENGINEERING & GUARDRAILS
=================================================================================*/

/*
systemPromptTemplate defines the persona and guardrails for the model.
The personalization context block is injected at runtime so every
exchange is grounded in the user's actual data.
*/
const systemPromptTemplate = `You are a knowledgeable, friendly and supportive nutrition assistant for %s. You have access to their nutrition and fitness journey data.

=== USER CONTEXT ===
%s
DOMAIN RESTRICTION (CRITICAL):
You are strictly a NUTRITION assistant.
- ONLY answer questions related to nutrition, food, weight management, and the user's tracking data.
- NEVER provide medical diagnoses or medication advice; suggest consulting a professional instead.
- If the user asks about politics, coding, or anything unrelated to nutrition and fitness, politely decline.

CONVERSATION GUIDELINES:
1. Address the user by name in a warm, personal way
2. Reference their specific goals and progress when relevant
3. Be encouraging and supportive, celebrating small wins
4. Provide practical, actionable advice based on their data
5. Suggest foods and meal ideas that fit their macro targets
6. If progress has stalled, gently explore potential causes
7. Keep responses conversational and not overly clinical`

// assemblePrompt builds the ordered message sequence for the provider:
// exactly one system message first, then prior history within the
// character budget, then the new user message. Oldest history turns are
// dropped first when over budget; the system message is never dropped.
func assemblePrompt(pc PersonalizationContext, history []Message, utterance string, charBudget int) []Message {
	system := Message{
		Role:    RoleSystem,
		Content: fmt.Sprintf(systemPromptTemplate, pc.Name, pc.describe()),
	}

	kept := truncateHistory(history, charBudget)

	messages := make([]Message, 0, len(kept)+2)
	messages = append(messages, system)
	messages = append(messages, kept...)
	messages = append(messages, Message{Role: RoleUser, Content: utterance})
	return messages
}

// truncateHistory keeps the most recent turns whose combined content
// fits within budget, preserving chronological order. System turns that
// somehow ended up in history are skipped; the real system message is
// built fresh each call.
func truncateHistory(history []Message, budget int) []Message {
	if budget <= 0 || len(history) == 0 {
		return nil
	}

	total := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleSystem {
			continue
		}
		if total+len(history[i].Content) > budget {
			break
		}
		total += len(history[i].Content)
		start = i
	}

	kept := make([]Message, 0, len(history)-start)
	for _, m := range history[start:] {
		if m.Role == RoleSystem {
			continue
		}
		kept = append(kept, m)
	}
	return kept
}
