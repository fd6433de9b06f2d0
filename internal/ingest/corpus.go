// Package ingest loads a verse corpus from disk, derives the topic index and
// writes both into the stores.
package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/qbot/internal/model"
)

// Corpus is a parsed, sanitized set of verses
type Corpus struct {
	Verses []model.Verse
}

// rawChapter is one chapter of the upstream API dump
type rawChapter struct {
	Verses []rawVerse `json:"verses"`
}

type rawVerse struct {
	Chapter int `json:"ch"`
	Verse   int `json:"v"`
	Words   []struct {
		Text *string `json:"t"`
	} `json:"words"`
	Topics []struct {
		Topic string `json:"topic"`
	} `json:"topics"`
	V5 struct {
		Notes []struct {
			Note string `json:"note"`
		} `json:"notes"`
	} `json:"v5"`
}

// LoadFile reads a corpus file in either supported format
func LoadFile(path string) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Load(f)
}

// Load parses a corpus. Two formats are accepted: the upstream API dump keyed
// by chapter number, and the normalized map keyed by "chapter:verse".
func Load(r io.Reader) (*Corpus, error) {
	var top map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&top); err != nil {
		return nil, fmt.Errorf("decode corpus: %w", err)
	}

	normalized := false
	for k := range top {
		normalized = strings.Contains(k, ":")
		break
	}

	var (
		c   *Corpus
		err error
	)
	if normalized {
		c, err = parseNormalized(top)
	} else {
		c, err = parseDump(top)
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(c.Verses, func(i, j int) bool {
		return c.Verses[i].Ref().Less(c.Verses[j].Ref())
	})
	return c, nil
}

func parseNormalized(top map[string]json.RawMessage) (*Corpus, error) {
	c := &Corpus{Verses: make([]model.Verse, 0, len(top))}
	for id, raw := range top {
		ref, err := model.ParseRef(id)
		if err != nil {
			return nil, err
		}
		var v model.Verse
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode verse %s: %w", id, err)
		}
		v.Chapter, v.Verse = ref.Chapter, ref.Verse
		c.Verses = append(c.Verses, v)
	}
	return c, nil
}

func parseDump(top map[string]json.RawMessage) (*Corpus, error) {
	c := &Corpus{}
	for key, raw := range top {
		chapter, err := strconv.Atoi(key)
		if err != nil || chapter < 1 {
			return nil, fmt.Errorf("invalid chapter key %q", key)
		}

		var ch rawChapter
		if err := json.Unmarshal(raw, &ch); err != nil {
			return nil, fmt.Errorf("decode chapter %d: %w", chapter, err)
		}

		for _, rv := range ch.Verses {
			if rv.Chapter == 0 {
				rv.Chapter = chapter
			}
			if rv.Verse < 1 {
				return nil, fmt.Errorf("chapter %d: verse without a number", chapter)
			}
			c.Verses = append(c.Verses, rv.verse())
		}
	}
	return c, nil
}

func (rv rawVerse) verse() model.Verse {
	words := make([]string, 0, len(rv.Words))
	for _, w := range rv.Words {
		if w.Text != nil {
			words = append(words, *w.Text)
		}
	}

	var topics []string
	for _, t := range rv.Topics {
		if label := Sanitize(t.Topic); label != "" {
			topics = append(topics, label)
		}
	}

	notes := make([]string, 0, len(rv.V5.Notes))
	for _, n := range rv.V5.Notes {
		notes = append(notes, n.Note)
	}

	return model.Verse{
		Chapter: rv.Chapter,
		Verse:   rv.Verse,
		Text:    Sanitize(strings.Join(words, " ")),
		Topics:  topics,
		Notes:   strings.Join(notes, "\n"),
	}
}

// Topics inverts the verse→topic relation. Topics are ordered by label and
// their verse ids canonically.
func (c *Corpus) Topics() []model.Topic {
	index := make(map[string][]string)
	for _, v := range c.Verses {
		seen := make(map[string]bool, len(v.Topics))
		for _, label := range v.Topics {
			if seen[label] {
				continue
			}
			seen[label] = true
			index[label] = append(index[label], v.ID())
		}
	}

	topics := make([]model.Topic, 0, len(index))
	for label, ids := range index {
		model.SortIDs(ids)
		topics = append(topics, model.Topic{Label: label, Description: label, VerseIDs: ids})
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i].Label < topics[j].Label })
	return topics
}

// Records returns the store records of every verse
func (c *Corpus) Records() []model.Record {
	out := make([]model.Record, len(c.Verses))
	for i, v := range c.Verses {
		out[i] = v.Record()
	}
	return out
}

// TopicRecords returns the store records of every topic
func TopicRecords(topics []model.Topic) []model.Record {
	out := make([]model.Record, len(topics))
	for i, t := range topics {
		out[i] = t.Record()
	}
	return out
}
