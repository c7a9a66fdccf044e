package assistant

import (
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// maxResidentSessions bounds how many chat sessions are kept in memory
// at once. The least recently used session is evicted when full, which
// is equivalent to that session ending; nothing is persisted.
const maxResidentSessions = 1024

// Session is the ephemeral, per-browser-session conversation history.
// It is appended to on every turn and discarded when the session ends.
type Session struct {
	mu       sync.Mutex
	messages []Message
}

func NewSession() *Session {
	return &Session{}
}

// Append adds one turn to the history. Empty content is rejected so a
// failed provider call can never leave a blank assistant turn behind.
func (s *Session) Append(m Message) error {
	if strings.TrimSpace(m.Content) == "" {
		return fmt.Errorf("refusing to append message with empty content")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
	return nil
}

// History returns a copy of the conversation in chronological order.
// Callers get their own slice and cannot mutate session state.
func (s *Session) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Clear empties the session, used on logout or explicit reset.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}

func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// SessionManager maps chat session IDs to isolated Session instances.
// Keying by session ID (not a shared variable) is what prevents one
// user's history from leaking into another's.
type SessionManager struct {
	mu       sync.Mutex
	sessions *lru.Cache[string, *Session]
}

func NewSessionManager() (*SessionManager, error) {
	cache, err := lru.New[string, *Session](maxResidentSessions)
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}
	return &SessionManager{sessions: cache}, nil
}

// Get returns the session for the given ID, creating an empty one on
// first contact.
func (m *SessionManager) Get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions.Get(id); ok {
		return sess
	}

	sess := NewSession()
	m.sessions.Add(id, sess)
	return sess
}

// Reset discards the session for the given ID; the next Get starts a
// fresh, empty conversation.
func (m *SessionManager) Reset(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions.Remove(id)
}
