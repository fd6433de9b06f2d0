package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ppiankov/qbot/internal/embed"
	"github.com/ppiankov/qbot/internal/model"
)

var testVerses = []model.Verse{
	{Chapter: 1, Verse: 2, Text: "Praise be to God, Lord of the worlds", Topics: []string{"Praise"}},
	{Chapter: 2, Verse: 43, Text: "Establish prayer and give charity", Topics: []string{"Prayer", "Charity"}, Notes: "obligatory prayer"},
	{Chapter: 7, Verse: 103, Text: "We sent Moses with Our signs to Pharaoh", Topics: []string{"Moses"}},
}

func verseRecords() []model.Record {
	recs := make([]model.Record, len(testVerses))
	for i, v := range testVerses {
		recs[i] = v.Record()
	}
	return recs
}

// runCollectionContract exercises behavior every backend must share
func runCollectionContract(t *testing.T, newCollection func(t *testing.T) Collection) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		c := newCollection(t)
		n, err := c.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		matches, err := c.Query(ctx, "anything", 5)
		require.NoError(t, err)
		assert.Empty(t, matches)

		recs, err := c.Get(ctx, []string{"1:1"})
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	t.Run("query ranks by similarity", func(t *testing.T) {
		c := newCollection(t)
		require.NoError(t, c.Upsert(ctx, verseRecords()))

		matches, err := c.Query(ctx, "Moses and Pharaoh", 2)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, "7:103", matches[0].ID)
		assert.Equal(t, "We sent Moses with Our signs to Pharaoh", matches[0].Document)
		assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)

		matches, err = c.Query(ctx, "prayer charity", 1)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "2:43", matches[0].ID)
	})

	t.Run("get omits missing ids and keeps request order", func(t *testing.T) {
		c := newCollection(t)
		require.NoError(t, c.Upsert(ctx, verseRecords()))

		recs, err := c.Get(ctx, []string{"7:103", "9:9", "1:2", "7:103"})
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, "7:103", recs[0].ID)
		assert.Equal(t, "1:2", recs[1].ID)
	})

	t.Run("upsert is idempotent by id", func(t *testing.T) {
		c := newCollection(t)
		require.NoError(t, c.Upsert(ctx, verseRecords()))
		require.NoError(t, c.Upsert(ctx, verseRecords()))

		n, err := c.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, len(testVerses), n)

		updated := testVerses[0]
		updated.Text = "All praise is for God"
		require.NoError(t, c.Upsert(ctx, []model.Record{updated.Record()}))

		recs, err := c.Get(ctx, []string{"1:2"})
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "All praise is for God", recs[0].Document)

		n, err = c.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, len(testVerses), n)
	})

	t.Run("metadata round trips", func(t *testing.T) {
		c := newCollection(t)
		require.NoError(t, c.Upsert(ctx, verseRecords()))

		recs, err := c.Get(ctx, []string{"2:43"})
		require.NoError(t, err)
		require.Len(t, recs, 1)

		v, err := model.VerseFromRecord(recs[0])
		require.NoError(t, err)
		assert.Equal(t, testVerses[1], v)
	})

	t.Run("theme records keep verse ids", func(t *testing.T) {
		c := newCollection(t)
		topic := model.Topic{Label: "Prayer", Description: "Prayer: establish prayer", VerseIDs: []string{"2:43", "2:45"}}
		require.NoError(t, c.Upsert(ctx, []model.Record{topic.Record()}))

		matches, err := c.Query(ctx, "establish prayer", 1)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, topic, model.TopicFromRecord(matches[0].Record))
	})

	t.Run("all is ordered by id", func(t *testing.T) {
		c := newCollection(t)
		require.NoError(t, c.Upsert(ctx, verseRecords()))

		recs, err := c.All(ctx)
		require.NoError(t, err)
		require.Len(t, recs, 3)
		assert.Equal(t, []string{"1:2", "2:43", "7:103"}, []string{recs[0].ID, recs[1].ID, recs[2].ID})
	})
}

func TestMemoryCollection(t *testing.T) {
	runCollectionContract(t, func(t *testing.T) Collection {
		return NewMemoryCollection("verses", embed.NewHashEmbedder(256))
	})
}

func TestSQLiteCollection(t *testing.T) {
	runCollectionContract(t, func(t *testing.T) Collection {
		db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "qbot.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		return db.Collection("verses", embed.NewHashEmbedder(256))
	})
}

func TestPostgresCollection(t *testing.T) {
	dsn := os.Getenv("QBOT_PG_DSN")
	if dsn == "" {
		t.Skip("QBOT_PG_DSN not set")
	}

	runCollectionContract(t, func(t *testing.T) Collection {
		db, err := OpenPostgres(context.Background(), dsn)
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })

		name := "test_" + t.Name()
		c := db.Collection(name, embed.NewHashEmbedder(256))
		t.Cleanup(func() {
			db.db.Where("collection = ?", name).Delete(&pgRecord{})
		})
		return c
	})
}

func TestSQLiteCollectionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "qbot.db"))
	require.NoError(t, err)
	defer db.Close()

	e := embed.NewHashEmbedder(64)
	verses := db.Collection("verses", e)
	themes := db.Collection("themes", e)

	require.NoError(t, verses.Upsert(ctx, verseRecords()))

	n, err := themes.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLitePersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "qbot.db")
	e := embed.NewHashEmbedder(64)

	db, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, db.Collection("verses", e).Upsert(ctx, verseRecords()))
	require.NoError(t, db.Close())

	db, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	recs, err := db.Collection("verses", e).Get(ctx, []string{"1:2"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, testVerses[0].Text, recs[0].Document)
}

func TestQueryDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "qbot.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Collection("verses", embed.NewHashEmbedder(64)).Upsert(ctx, verseRecords()))

	_, err = db.Collection("verses", embed.NewHashEmbedder(128)).Query(ctx, "Moses", 3)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestCosine(t *testing.T) {
	score, err := Cosine([]float32{1, 0}, []float32{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-9)

	score, err = Cosine([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, score, 1e-9)

	score, err = Cosine([]float32{0, 0}, []float32{1, 1})
	require.NoError(t, err)
	assert.Zero(t, score)

	_, err = Cosine([]float32{1}, []float32{1, 2})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestOpenBackends(t *testing.T) {
	ctx := context.Background()
	cfg := model.StoreConfig{Backend: "memory", VerseCollection: "quran", ThemeCollection: "quran_themes"}

	s, err := Open(ctx, cfg, embed.NewHashEmbedder(32), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "quran", s.Verses.Name())
	assert.Equal(t, "quran_themes", s.Themes.Name())
	assert.NoError(t, s.Close())

	cfg.Backend = "sqlite"
	cfg.Path = filepath.Join(t.TempDir(), "qbot.db")
	s, err = Open(ctx, cfg, embed.NewHashEmbedder(32), nil)
	require.NoError(t, err)
	assert.NoError(t, s.Close())

	cfg.Backend = "redis"
	_, err = Open(ctx, cfg, embed.NewHashEmbedder(32), nil)
	assert.Error(t, err)
}
