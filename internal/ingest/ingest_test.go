package ingest

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/qbot/internal/embed"
	"github.com/ppiankov/qbot/internal/model"
	"github.com/ppiankov/qbot/internal/store"
	"github.com/ppiankov/qbot/internal/worker"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"  extra   spaces\n", "extra spaces"},
		{"the unseen<sup foot_note=\"1\">1</sup> and", "the unseen1 and"},
		{"<i>Belief</i> in God", "Belief in God"},
		{"Book &amp; Law", "Book & Law"},
		{"a <br/> b", "a b"},
		{"keep <!-- hidden --> visible", "keep visible"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestLoadDump(t *testing.T) {
	c, err := LoadFile("testdata/dump.json")
	require.NoError(t, err)
	require.Len(t, c.Verses, 3)

	assert.Equal(t, []string{"1:1", "2:2", "2:3"}, ids(c.Verses))

	v := c.Verses[2]
	assert.Equal(t, "Who believe in the unseen1 and establish prayer", v.Text)
	assert.Equal(t, []string{"Prayer", "Belief in the unseen"}, v.Topics)
	assert.Equal(t, "The unseen includes the angels.\nPrayer is prescribed.", v.Notes)

	assert.Equal(t, "This is the Book & there is no doubt", c.Verses[1].Text)
	assert.Empty(t, c.Verses[0].Topics)
	assert.Equal(t, "Basmala", c.Verses[0].Notes)
}

func TestLoadNormalized(t *testing.T) {
	c, err := LoadFile("testdata/normalized.json")
	require.NoError(t, err)

	// canonical order, not lexical: 2:3 before 2:10
	assert.Equal(t, []string{"1:1", "2:2", "2:3", "2:10"}, ids(c.Verses))
	assert.Equal(t, model.Verse{
		Chapter: 2, Verse: 10,
		Text:   "In their hearts is disease",
		Topics: []string{"Hypocrisy", "Prayer"},
	}, c.Verses[3])
}

func TestLoadDumpAndNormalizedAgree(t *testing.T) {
	dump, err := LoadFile("testdata/dump.json")
	require.NoError(t, err)
	norm, err := LoadFile("testdata/normalized.json")
	require.NoError(t, err)

	for i, v := range dump.Verses {
		assert.Equal(t, normalize(norm.Verses[i]), normalize(v))
	}
}

func TestLoadInvalid(t *testing.T) {
	for name, body := range map[string]string{
		"not json":        `[1, 2`,
		"bad chapter key": `{"one": {"verses": []}}`,
		"bad ref":         `{"2:x": {"text": "t"}}`,
		"verse zero":      `{"1": {"verses": [{"ch": 1, "v": 0, "words": []}]}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(body))
			assert.Error(t, err)
		})
	}

	_, err := LoadFile("testdata/missing.json")
	assert.Error(t, err)
}

func TestTopicsInversion(t *testing.T) {
	c, err := LoadFile("testdata/normalized.json")
	require.NoError(t, err)

	topics := c.Topics()
	require.Len(t, topics, 3)

	assert.Equal(t, "Belief in the unseen", topics[0].Label)
	assert.Equal(t, []string{"2:3"}, topics[0].VerseIDs)

	assert.Equal(t, "Hypocrisy", topics[1].Label)
	assert.Equal(t, []string{"2:10"}, topics[1].VerseIDs)

	assert.Equal(t, "Prayer", topics[2].Label)
	assert.Equal(t, []string{"2:2", "2:3", "2:10"}, topics[2].VerseIDs)
	assert.Equal(t, "Prayer", topics[2].Description)
}

func TestIngestExportRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, err := LoadFile("testdata/normalized.json")
	require.NoError(t, err)

	e := embed.NewHashEmbedder(64)
	s := &store.Store{
		Verses: store.NewMemoryCollection("verses", e),
		Themes: store.NewMemoryCollection("themes", e),
	}
	in := New(s, worker.NewBatchProcessor(2, 2, worker.NewLimiter(0, 1), nil), e.Name(), nil)

	stats, err := in.Run(ctx, c, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Verses)
	assert.Equal(t, 3, stats.Topics)

	// running twice changes nothing
	_, err = in.Run(ctx, c, nil)
	require.NoError(t, err)
	n, err := s.Verses.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	var buf bytes.Buffer
	written, err := Export(ctx, s.Verses, &buf)
	require.NoError(t, err)
	assert.Equal(t, 4, written)

	back, err := Load(&buf)
	require.NoError(t, err)
	require.Len(t, back.Verses, len(c.Verses))
	for i := range c.Verses {
		assert.Equal(t, normalize(c.Verses[i]), normalize(back.Verses[i]))
	}

	themes, err := s.Themes.Get(ctx, []string{"Prayer"})
	require.NoError(t, err)
	require.Len(t, themes, 1)
	assert.Equal(t, []string{"2:2", "2:3", "2:10"}, model.TopicFromRecord(themes[0]).VerseIDs)
}

func TestIngestProgress(t *testing.T) {
	c, err := LoadFile("testdata/normalized.json")
	require.NoError(t, err)

	e := embed.NewHashEmbedder(32)
	s := &store.Store{
		Verses: store.NewMemoryCollection("verses", e),
		Themes: store.NewMemoryCollection("themes", e),
	}
	in := New(s, worker.NewBatchProcessor(1, 1, nil, nil), e.Name(), nil)

	last := 0
	_, err = in.Run(context.Background(), c, func(done, total int) {
		assert.Equal(t, 4, total)
		last = done
	})
	require.NoError(t, err)
	assert.Equal(t, 4, last)
}

func ids(verses []model.Verse) []string {
	out := make([]string, len(verses))
	for i, v := range verses {
		out[i] = v.ID()
	}
	return out
}

func normalize(v model.Verse) model.Verse {
	if len(v.Topics) == 0 {
		v.Topics = nil
	}
	return v
}
