package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		in      string
		want    Ref
		wantErr bool
	}{
		{in: "5:3", want: Ref{Chapter: 5, Verse: 3}},
		{in: " 2:255 ", want: Ref{Chapter: 2, Verse: 255}},
		{in: "2 : 7", want: Ref{Chapter: 2, Verse: 7}},
		{in: "nonsense", wantErr: true},
		{in: "2:", wantErr: true},
		{in: "a:1", wantErr: true},
		{in: "0:1", wantErr: true},
		{in: "1:0", wantErr: true},
		{in: "1:-2", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRef(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.String(), got.String())
		})
	}
}

func TestSortIDs(t *testing.T) {
	ids := []string{"10:1", "2:10", "bogus", "2:9", "1:1"}
	SortIDs(ids)
	assert.Equal(t, []string{"1:1", "2:9", "2:10", "10:1", "bogus"}, ids)
}

func TestVerseRecordRoundTrip(t *testing.T) {
	v := Verse{
		Chapter: 2,
		Verse:   255,
		Text:    "God: there is no god but Him",
		Topics:  []string{"Throne verse", "Attributes of God"},
		Notes:   "first note\nsecond note",
	}

	rec := v.Record()
	assert.Equal(t, "2:255", rec.ID)
	assert.Equal(t, v.Text, rec.EmbedText())

	back, err := VerseFromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, v, back)
}

func TestVerseFromRecord_NoTopics(t *testing.T) {
	v, err := VerseFromRecord(Record{ID: "1:1", Document: "In the name of God"})
	require.NoError(t, err)
	assert.Nil(t, v.Topics)
	assert.Equal(t, 1, v.Chapter)
}

func TestTopicRecordRoundTrip(t *testing.T) {
	topic := Topic{
		Label:       "Patience",
		Description: "Patience: verses about patience",
		VerseIDs:    []string{"2:153", "3:200"},
	}

	rec := topic.Record()
	assert.Equal(t, "Patience", rec.ID)
	assert.Equal(t, "Patience: verses about patience", rec.EmbedText())
	assert.Equal(t, "2:153,3:200", rec.Metadata[MetaVerseIDs])
	assert.Equal(t, topic, TopicFromRecord(rec))
}
