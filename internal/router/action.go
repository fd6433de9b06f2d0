package router

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ppiankov/qbot/internal/model"
)

// Kind is the action keyword that prefixes a model response
type Kind string

const (
	KindFind      Kind = "FIND"
	KindContext   Kind = "CONTEXT"
	KindTheme     Kind = "THEME"
	KindThought   Kind = "THOUGHT"
	KindFollowup  Kind = "FOLLOWUP"
	KindAnswer    Kind = "ANSWER"
	KindMalformed Kind = "MALFORMED"
)

// Action is one parsed model directive. The set of implementations is closed.
type Action interface {
	Kind() Kind
	action()
}

// Find requests semantic verse search for each query
type Find struct {
	Queries []string
}

// Context requests the verses surrounding each reference. Invalid holds
// list items that did not parse as references.
type Context struct {
	Refs    []model.Ref
	Invalid []string
}

// Theme requests topic labels related to a query
type Theme struct {
	Query string
}

// Thought is scratch reasoning
type Thought struct {
	Text string
}

// Followup is a clarifying question for the user
type Followup struct {
	Text string
}

// Answer is the candidate final answer
type Answer struct {
	Text string
}

// Malformed is a response that does not follow the KIND: VALUE protocol
type Malformed struct {
	Raw    string
	Reason string
}

func (Find) Kind() Kind      { return KindFind }
func (Context) Kind() Kind   { return KindContext }
func (Theme) Kind() Kind     { return KindTheme }
func (Thought) Kind() Kind   { return KindThought }
func (Followup) Kind() Kind  { return KindFollowup }
func (Answer) Kind() Kind    { return KindAnswer }
func (Malformed) Kind() Kind { return KindMalformed }

func (Find) action()      {}
func (Context) action()   {}
func (Theme) action()     {}
func (Thought) action()   {}
func (Followup) action()  {}
func (Answer) action()    {}
func (Malformed) action() {}

// Parse interprets one model response. The response is split on its first
// colon; the keyword before it is matched case-sensitively (surrounding
// whitespace ignored) and the value after it is left-trimmed. Anything that
// does not parse becomes Malformed.
func Parse(raw string) Action {
	head, value, ok := strings.Cut(raw, ":")
	if !ok {
		return Malformed{Raw: raw, Reason: "no KIND: prefix"}
	}
	value = strings.TrimLeftFunc(value, unicode.IsSpace)

	switch Kind(strings.TrimSpace(head)) {
	case KindFind:
		queries := splitList(value)
		if len(queries) == 0 {
			return Malformed{Raw: raw, Reason: "FIND without a query"}
		}
		return Find{Queries: queries}

	case KindContext:
		items := splitList(value)
		if len(items) == 0 {
			return Malformed{Raw: raw, Reason: "CONTEXT without a reference"}
		}
		refs := make([]model.Ref, 0, len(items))
		var invalid []string
		var firstErr error
		for _, item := range items {
			ref, err := model.ParseRef(item)
			if err != nil {
				invalid = append(invalid, item)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			refs = append(refs, ref)
		}
		if len(refs) == 0 {
			return Malformed{Raw: raw, Reason: firstErr.Error()}
		}
		return Context{Refs: refs, Invalid: invalid}

	case KindTheme:
		query := strings.TrimSpace(value)
		if query == "" {
			return Malformed{Raw: raw, Reason: "THEME without a query"}
		}
		return Theme{Query: query}

	case KindThought:
		return Thought{Text: value}

	case KindFollowup:
		return Followup{Text: value}

	case KindAnswer:
		return Answer{Text: value}

	default:
		return Malformed{Raw: raw, Reason: fmt.Sprintf("unknown action %q", strings.TrimSpace(head))}
	}
}

// splitList splits a comma-separated value, trimming items and dropping
// empty ones
func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
