package conversation

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/qbot/internal/model"
)

// State is the lifecycle position of a session
type State string

const (
	StateAwaitingInput State = "AWAITING_INPUT"
	StateRunning       State = "RUNNING"
	StateDone          State = "DONE"
)

// Session is one conversation. It is owned by the caller and must not be
// shared between concurrent loops.
type Session struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Messages  []model.Message `json:"messages"`

	mu    sync.Mutex
	state State
}

// NewSession creates an empty session awaiting its first input
func NewSession() *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []model.Message{},
		state:     StateAwaitingInput,
	}
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == "" {
		return StateAwaitingInput
	}
	return s.state
}

// begin moves the session to RUNNING, failing if it already is
func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning {
		return ErrSessionBusy
	}
	s.state = StateRunning
	return nil
}

func (s *Session) finish(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Started reports whether the system prompt has been injected
func (s *Session) Started() bool {
	return len(s.Messages) > 0
}

func (s *Session) add(msg model.Message) model.Message {
	s.Messages = append(s.Messages, msg)
	s.UpdatedAt = time.Now().UTC()
	if s.Title == "" && msg.Role == model.RoleUser {
		s.Title = titleOf(msg.Content)
	}
	return msg
}

// Retained returns the messages sent to the model on the next call
func (s *Session) Retained() []model.Message {
	out := make([]model.Message, 0, len(s.Messages))
	for _, m := range s.Messages {
		if m.Retain {
			out = append(out, m)
		}
	}
	return out
}

// Visible returns the messages shown to the end user
func (s *Session) Visible() []model.Message {
	out := make([]model.Message, 0, len(s.Messages))
	for _, m := range s.Messages {
		if m.Display {
			out = append(out, m)
		}
	}
	return out
}

// DisplayFlags returns the display flag of every message, in order
func (s *Session) DisplayFlags() []bool {
	out := make([]bool, len(s.Messages))
	for i, m := range s.Messages {
		out[i] = m.Display
	}
	return out
}

// RetainFlags returns the retain flag of every message, in order
func (s *Session) RetainFlags() []bool {
	out := make([]bool, len(s.Messages))
	for i, m := range s.Messages {
		out[i] = m.Retain
	}
	return out
}

func titleOf(input string) string {
	title := strings.Join(strings.Fields(input), " ")
	if r := []rune(title); len(r) > 60 {
		title = string(r[:57]) + "..."
	}
	return title
}
