// Package conversation drives the model/router loop for a session and
// archives finished sessions.
package conversation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/qbot/internal/llm"
	"github.com/ppiankov/qbot/internal/model"
	"github.com/ppiankov/qbot/internal/router"
)

const DefaultMaxLoops = 10

var (
	// ErrCompletion wraps failures of the completion provider
	ErrCompletion = errors.New("completion failed")

	// ErrSessionBusy is returned when Ask is called on a running session
	ErrSessionBusy = errors.New("session is already running")
)

// Turn summarizes one Ask call
type Turn struct {
	Iterations int            // model calls that returned a reply
	Exhausted  bool           // loop ceiling reached without a terminal action
	Final      *model.Message // terminal ANSWER or FOLLOWUP message, nil when exhausted
}

// Options tune the assistant
type Options struct {
	MaxLoops     int    // loop ceiling per user input
	SystemPrompt string // injected once at session start; defaults to llm.SystemPrompt(MaxLoops)
	Model        string // overrides the provider's configured model
	MaxTokens    int
}

// Assistant runs the action loop against a completion provider and router
type Assistant struct {
	provider llm.Provider
	router   *router.Router
	opts     Options
	logger   *zap.Logger
}

// NewAssistant creates an assistant
func NewAssistant(provider llm.Provider, r *router.Router, opts Options, logger *zap.Logger) *Assistant {
	if opts.MaxLoops <= 0 {
		opts.MaxLoops = DefaultMaxLoops
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = llm.SystemPrompt(opts.MaxLoops)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assistant{provider: provider, router: r, opts: opts, logger: logger}
}

// Ask adds user input to the session and cycles model and router until a
// terminal action or the loop ceiling. Completion failures are returned
// wrapped in ErrCompletion; the failed call leaves no message behind.
func (a *Assistant) Ask(ctx context.Context, s *Session, input string) (*Turn, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	next := StateAwaitingInput
	defer func() { s.finish(next) }()

	if !s.Started() {
		s.add(model.Message{Role: model.RoleSystem, Content: a.opts.SystemPrompt, Display: false, Retain: true})
	}
	s.add(model.Message{Role: model.RoleUser, Content: input, Display: true, Retain: true})

	log := a.logger.With(zap.String("session", s.ID))
	turn := &Turn{}

	for turn.Iterations < a.opts.MaxLoops {
		resp, err := a.provider.Complete(ctx, llm.CompletionRequest{
			Messages:  s.Retained(),
			Model:     a.opts.Model,
			MaxTokens: a.opts.MaxTokens,
		})
		if err != nil {
			log.Warn("completion failed", zap.Int("iteration", turn.Iterations+1), zap.Error(err))
			return turn, fmt.Errorf("%w: %w", ErrCompletion, err)
		}
		turn.Iterations++

		s.add(model.Message{
			Role:    model.RoleAssistant,
			Content: resp.Content,
			Display: a.router.ShowIntermediate,
			Retain:  true,
		})

		res, err := a.router.Route(ctx, resp.Content)
		if err != nil {
			return turn, err
		}
		log.Debug("routed",
			zap.Int("iteration", turn.Iterations),
			zap.String("kind", string(res.Action.Kind())),
			zap.Bool("continue", res.Continue))

		msg := s.add(model.Message{
			Role:    model.RoleAssistant,
			Content: res.Text,
			Display: res.Visible,
			Retain:  res.Continue,
		})

		if !res.Continue {
			turn.Final = &msg
			next = StateDone
			return turn, nil
		}
	}

	log.Info("loop ceiling reached", zap.Int("max_loops", a.opts.MaxLoops))
	turn.Exhausted = true
	return turn, nil
}
