package router

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/qbot/internal/answer"
	"github.com/ppiankov/qbot/internal/embed"
	"github.com/ppiankov/qbot/internal/model"
	"github.com/ppiankov/qbot/internal/retrieval"
	"github.com/ppiankov/qbot/internal/store"
)

func TestParse(t *testing.T) {
	tests := []struct {
		raw  string
		want Action
	}{
		{"FIND: Moses, Pharaoh", Find{Queries: []string{"Moses", "Pharaoh"}}},
		{"FIND:  one query ", Find{Queries: []string{"one query"}}},
		{"CONTEXT: 2:255, 5:3", Context{Refs: []model.Ref{{Chapter: 2, Verse: 255}, {Chapter: 5, Verse: 3}}}},
		{"CONTEXT: 7:103, 7:10a", Context{Refs: []model.Ref{{Chapter: 7, Verse: 103}}, Invalid: []string{"7:10a"}}},
		{"THEME: mercy", Theme{Query: "mercy"}},
		{"THOUGHT: I should search first", Thought{Text: "I should search first"}},
		{"FOLLOWUP: Which Moses do you mean?", Followup{Text: "Which Moses do you mean?"}},
		{"ANSWER: See 5:3. Done", Answer{Text: "See 5:3. Done"}},
		{"ANSWER:\n  multi\nline", Answer{Text: "multi\nline"}},
		{"  ANSWER : trimmed keyword", Answer{Text: "trimmed keyword"}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.raw))
		})
	}
}

func TestParseMalformed(t *testing.T) {
	for _, raw := range []string{
		"nonsense",
		"",
		"answer: lowercase keyword",
		"SEARCH: unknown kind",
		"FIND:",
		"FIND: , ,",
		"THEME:   ",
		"CONTEXT: 2",
		"CONTEXT: 2:0",
		"CONTEXT: a:b",
		"CONTEXT: x, 2:0",
		"5:3 is the verse",
	} {
		t.Run(raw, func(t *testing.T) {
			a := Parse(raw)
			require.IsType(t, Malformed{}, a)
			assert.Equal(t, raw, a.(Malformed).Raw)
			assert.NotEmpty(t, a.(Malformed).Reason)
		})
	}
}

var corpus = []model.Verse{
	{Chapter: 2, Verse: 1, Text: "Alif Lam Mim"},
	{Chapter: 2, Verse: 2, Text: "This is the Book about which there is no doubt"},
	{Chapter: 2, Verse: 3, Text: "Who believe in the unseen and establish prayer"},
	{Chapter: 2, Verse: 4, Text: "And who believe in what has been revealed"},
	{Chapter: 5, Verse: 3, Text: "This day I have perfected for you your religion"},
	{Chapter: 7, Verse: 103, Text: "We sent Moses with Our signs to Pharaoh"},
	{Chapter: 20, Verse: 9, Text: "Has the story of Moses reached you"},
}

func newRouter(t *testing.T) *Router {
	t.Helper()
	ctx := context.Background()
	e := embed.NewHashEmbedder(256)

	verses := store.NewMemoryCollection("verses", e)
	recs := make([]model.Record, len(corpus))
	for i, v := range corpus {
		recs[i] = v.Record()
	}
	require.NoError(t, verses.Upsert(ctx, recs))

	themes := store.NewMemoryCollection("themes", e)
	require.NoError(t, themes.Upsert(ctx, []model.Record{
		model.Topic{Label: "Moses", Description: "Moses", VerseIDs: []string{"7:103", "20:9"}}.Record(),
		model.Topic{Label: "Prayer", Description: "Prayer", VerseIDs: []string{"2:3"}}.Record(),
	}))

	return New(retrieval.New(verses, themes), answer.NewProcessor(verses, nil), nil)
}

// excerptLines returns the "id: text" lines inside an excerpt envelope
func excerptLines(t *testing.T, text string) []string {
	t.Helper()
	require.True(t, strings.HasPrefix(text, "<EXCERPT>\n\n"), text)
	require.True(t, strings.HasSuffix(text, "\n\n</EXCERPT>"), text)
	body := strings.TrimSuffix(strings.TrimPrefix(text, "<EXCERPT>\n\n"), "\n\n</EXCERPT>")
	if body == "" {
		return nil
	}
	return strings.Split(body, "\n")
}

func storedLines() map[string]bool {
	out := map[string]bool{}
	for _, v := range corpus {
		out[v.ID()+": "+v.Text] = true
	}
	return out
}

func TestRouteFind(t *testing.T) {
	r := newRouter(t)

	res, err := r.Route(context.Background(), "FIND: Moses, Moses story, prayer")
	require.NoError(t, err)
	assert.True(t, res.Continue)
	assert.False(t, res.Visible)
	assert.Equal(t, KindFind, res.Action.Kind())

	lines := excerptLines(t, res.Text)
	require.NotEmpty(t, lines)

	stored := storedLines()
	seen := map[string]bool{}
	for _, l := range lines {
		assert.True(t, stored[l], "line not from store: %q", l)
		assert.False(t, seen[l], "duplicate line: %q", l)
		seen[l] = true
	}
}

func TestRouteShowIntermediate(t *testing.T) {
	r := newRouter(t)
	r.ShowIntermediate = true

	res, err := r.Route(context.Background(), "FIND: Moses")
	require.NoError(t, err)
	assert.True(t, res.Visible)
	assert.True(t, res.Continue)

	res, err = r.Route(context.Background(), "THOUGHT: hidden")
	require.NoError(t, err)
	assert.False(t, res.Visible)
}

func TestRouteContextWindow(t *testing.T) {
	r := newRouter(t)

	res, err := r.Route(context.Background(), "CONTEXT: 2:1")
	require.NoError(t, err)
	assert.True(t, res.Continue)
	assert.False(t, res.Visible)
	assert.Equal(t, Excerpt([]string{
		"2:1: Alif Lam Mim",
		"2:2: This is the Book about which there is no doubt",
		"2:3: Who believe in the unseen and establish prayer",
	}), res.Text)

	res, err = r.Route(context.Background(), "CONTEXT: 5:3, 7:104")
	require.NoError(t, err)
	lines := excerptLines(t, res.Text)
	assert.Equal(t, []string{
		"5:3: This day I have perfected for you your religion",
		"7:103: We sent Moses with Our signs to Pharaoh",
	}, lines)
}

func TestRouteContextSkipsInvalidItems(t *testing.T) {
	r := newRouter(t)

	res, err := r.Route(context.Background(), "CONTEXT: 2:1, 2:x")
	require.NoError(t, err)
	assert.True(t, res.Continue)
	assert.Equal(t, KindContext, res.Action.Kind())
	assert.True(t, strings.HasPrefix(res.Text, Excerpt([]string{
		"2:1: Alif Lam Mim",
		"2:2: This is the Book about which there is no doubt",
		"2:3: Who believe in the unseen and establish prayer",
	})))
	assert.True(t, strings.HasSuffix(res.Text, "\n\n"+SkippedReferences+" 2:x"), res.Text)
}

func TestRouteContextLargeVerseNumber(t *testing.T) {
	r := newRouter(t)
	raw := "CONTEXT: 1:" + strconv.Itoa(math.MaxInt-2)

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := r.Route(context.Background(), raw)
		done <- outcome{res, err}
	}()

	select {
	case out := <-done:
		require.NoError(t, out.err)
		assert.True(t, out.res.Continue)
		assert.Equal(t, KindContext, out.res.Action.Kind())
		assert.Equal(t, "<EXCERPT>\n\n\n\n</EXCERPT>", out.res.Text)
	case <-time.After(5 * time.Second):
		t.Fatal("Route did not return for a verse number near MaxInt")
	}
}

func TestRouteContextNothingStored(t *testing.T) {
	r := newRouter(t)

	res, err := r.Route(context.Background(), "CONTEXT: 99:1")
	require.NoError(t, err)
	assert.Equal(t, "<EXCERPT>\n\n\n\n</EXCERPT>", res.Text)
	assert.True(t, res.Continue)
}

func TestRouteTheme(t *testing.T) {
	r := newRouter(t)

	res, err := r.Route(context.Background(), "THEME: Moses")
	require.NoError(t, err)
	assert.Equal(t, "<THEMES>\n\nMoses\nPrayer\n\n</THEMES>", res.Text)
	assert.True(t, res.Continue)
	assert.False(t, res.Visible)
}

func TestRouteThought(t *testing.T) {
	r := newRouter(t)

	res, err := r.Route(context.Background(), "THOUGHT: I will look up Moses")
	require.NoError(t, err)
	assert.Equal(t, Result{Text: "", Continue: true, Visible: false, Action: Thought{Text: "I will look up Moses"}}, res)
}

func TestRouteFollowup(t *testing.T) {
	r := newRouter(t)

	res, err := r.Route(context.Background(), "FOLLOWUP: Do you mean the prophet?")
	require.NoError(t, err)
	assert.Equal(t, "Do you mean the prophet?", res.Text)
	assert.False(t, res.Continue)
	assert.True(t, res.Visible)
}

func TestRouteAnswer(t *testing.T) {
	r := newRouter(t)

	res, err := r.Route(context.Background(), "ANSWER: Moses was sent to Pharaoh (7:103); 8:1 is unknown.")
	require.NoError(t, err)
	assert.False(t, res.Continue)
	assert.True(t, res.Visible)
	assert.Equal(t, "Moses was sent to Pharaoh (7:103); 8:1 is unknown."+
		"\n\nReferences:\n\n[7:103]: We sent Moses with Our signs to Pharaoh", res.Text)

	res, err = r.Route(context.Background(), "ANSWER: No citations at all.")
	require.NoError(t, err)
	assert.Equal(t, "No citations at all.", res.Text)
}

func TestRouteMalformed(t *testing.T) {
	r := newRouter(t)

	for _, raw := range []string{"nonsense", "SEARCH: Moses", "CONTEXT: two:three"} {
		res, err := r.Route(context.Background(), raw)
		require.NoError(t, err)
		assert.True(t, res.Continue)
		assert.False(t, res.Visible)
		assert.True(t, strings.HasPrefix(res.Text, DiagnosticMalformed))
		assert.True(t, strings.HasSuffix(res.Text, raw))
		assert.Equal(t, KindMalformed, res.Action.Kind())
	}
}

type failingCollection struct {
	store.Collection
}

func (failingCollection) Query(context.Context, string, int) ([]model.Match, error) {
	return nil, errors.New("disk on fire")
}

func (failingCollection) Get(context.Context, []string) ([]model.Record, error) {
	return nil, errors.New("disk on fire")
}

func TestRouteRetrievalFailureIsReportedToModel(t *testing.T) {
	fc := failingCollection{}
	r := New(retrieval.New(fc, fc), answer.NewProcessor(fc, nil), nil)

	for _, raw := range []string{"FIND: Moses", "CONTEXT: 2:3", "THEME: mercy"} {
		res, err := r.Route(context.Background(), raw)
		require.NoError(t, err)
		assert.True(t, res.Continue)
		assert.False(t, res.Visible)
		assert.True(t, strings.HasPrefix(res.Text, DiagnosticRetrieval))
		assert.Contains(t, res.Text, "disk on fire")
	}

	res, err := r.Route(context.Background(), "ANSWER: see 2:3")
	require.NoError(t, err)
	assert.Equal(t, "see 2:3", res.Text)
}

func TestRouteCancelledContext(t *testing.T) {
	r := newRouter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Route(ctx, "FIND: Moses")
	assert.ErrorIs(t, err, context.Canceled)
}
