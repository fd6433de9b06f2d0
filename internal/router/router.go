// Package router turns one model response into a typed action, runs it
// against the retrieval layer and decides whether the loop continues.
package router

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/qbot/internal/answer"
	"github.com/ppiankov/qbot/internal/retrieval"
)

// DiagnosticMalformed is returned to the model when its response does not
// follow the protocol. The raw response is appended after it.
const DiagnosticMalformed = "RESPONSE ERROR. You responded with an unknown action or a malformed value. " +
	"Reply with exactly one line of the form KIND: VALUE where KIND is one of " +
	"FIND, CONTEXT, THEME, THOUGHT, FOLLOWUP or ANSWER. Please correct your response.:"

// DiagnosticRetrieval is returned to the model when a lookup fails
const DiagnosticRetrieval = "RETRIEVAL ERROR. The lookup could not be completed. Try a different action or query.:"

// SkippedReferences follows a CONTEXT excerpt when some list items were not
// CHAPTER:VERSE references
const SkippedReferences = "SKIPPED REFERENCES. These items are not CHAPTER:VERSE references and were ignored:"

// Result is the outcome of routing one response
type Result struct {
	Text     string // text fed back to the model or shown to the user
	Continue bool   // true when the model should be called again
	Visible  bool   // true when the text is meant for the end user
	Action   Action
}

// Router dispatches parsed actions
type Router struct {
	retriever *retrieval.Retriever
	answers   *answer.Processor
	logger    *zap.Logger

	// ShowIntermediate makes FIND, CONTEXT and THEME results visible
	ShowIntermediate bool
}

// New creates a router over a retriever and answer processor
func New(retriever *retrieval.Retriever, answers *answer.Processor, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{retriever: retriever, answers: answers, logger: logger}
}

// Excerpt wraps verse lines in the excerpt envelope
func Excerpt(lines []string) string {
	return "<EXCERPT>\n\n" + strings.Join(lines, "\n") + "\n\n</EXCERPT>"
}

// Themes wraps topic labels in the themes envelope
func Themes(labels []string) string {
	return "<THEMES>\n\n" + strings.Join(labels, "\n") + "\n\n</THEMES>"
}

// Route parses raw and executes the action. Protocol and retrieval failures
// are reported in the result; an error is returned only when ctx is done.
func (r *Router) Route(ctx context.Context, raw string) (Result, error) {
	action := Parse(raw)
	r.logger.Debug("routing action", zap.String("kind", string(action.Kind())))

	switch a := action.(type) {
	case Find:
		lines, err := r.retriever.Find(ctx, a.Queries)
		if err != nil {
			return r.retrievalFailed(ctx, action, err)
		}
		return r.intermediate(action, Excerpt(lines)), nil

	case Context:
		lines, err := r.retriever.Context(ctx, a.Refs)
		if err != nil {
			return r.retrievalFailed(ctx, action, err)
		}
		text := Excerpt(lines)
		if len(a.Invalid) > 0 {
			text += "\n\n" + SkippedReferences + " " + strings.Join(a.Invalid, ", ")
		}
		return r.intermediate(action, text), nil

	case Theme:
		labels, err := r.retriever.ThemeLabels(ctx, a.Query)
		if err != nil {
			return r.retrievalFailed(ctx, action, err)
		}
		return r.intermediate(action, Themes(labels)), nil

	case Thought:
		return Result{Text: "", Continue: true, Visible: false, Action: action}, nil

	case Followup:
		return Result{Text: a.Text, Continue: false, Visible: true, Action: action}, nil

	case Answer:
		return Result{Text: r.answers.Process(ctx, a.Text), Continue: false, Visible: true, Action: action}, nil

	case Malformed:
		r.logger.Info("malformed response", zap.String("reason", a.Reason))
		return Result{
			Text:     DiagnosticMalformed + " \n\n" + a.Raw,
			Continue: true,
			Visible:  false,
			Action:   action,
		}, nil
	}

	// unreachable: Action is sealed
	return Result{Text: DiagnosticMalformed + " \n\n" + raw, Continue: true, Action: Malformed{Raw: raw}}, nil
}

func (r *Router) intermediate(action Action, text string) Result {
	return Result{Text: text, Continue: true, Visible: r.ShowIntermediate, Action: action}
}

func (r *Router) retrievalFailed(ctx context.Context, action Action, err error) (Result, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, ctxErr
	}
	r.logger.Warn("retrieval failed", zap.String("kind", string(action.Kind())), zap.Error(err))
	return Result{
		Text:     DiagnosticRetrieval + " " + err.Error(),
		Continue: true,
		Visible:  false,
		Action:   action,
	}, nil
}
