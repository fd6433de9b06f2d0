package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Metadata keys used when verses and topics are persisted as store records
const (
	MetaChapter  = "chapter"
	MetaVerse    = "verse"
	MetaTopics   = "topics"
	MetaNotes    = "notes"
	MetaVerseIDs = "verse_ids"
	MetaDesc     = "description"
)

// Ref identifies a single verse by chapter and verse number
type Ref struct {
	Chapter int `json:"chapter"`
	Verse   int `json:"verse"`
}

// String renders the reference as "chapter:verse"
func (r Ref) String() string {
	return strconv.Itoa(r.Chapter) + ":" + strconv.Itoa(r.Verse)
}

// Less orders references by chapter, then verse
func (r Ref) Less(other Ref) bool {
	if r.Chapter != other.Chapter {
		return r.Chapter < other.Chapter
	}
	return r.Verse < other.Verse
}

// ParseRef parses "chapter:verse". Both parts must be positive integers.
func ParseRef(s string) (Ref, error) {
	ch, v, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Ref{}, fmt.Errorf("invalid reference %q: expected CHAPTER:VERSE", s)
	}

	chapter, err := strconv.Atoi(strings.TrimSpace(ch))
	if err != nil || chapter < 1 {
		return Ref{}, fmt.Errorf("invalid chapter in reference %q", s)
	}

	verse, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || verse < 1 {
		return Ref{}, fmt.Errorf("invalid verse in reference %q", s)
	}

	return Ref{Chapter: chapter, Verse: verse}, nil
}

// SortIDs sorts verse ids in canonical (chapter, verse) order.
// Ids that do not parse are placed last in lexical order.
func SortIDs(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		a, errA := ParseRef(ids[i])
		b, errB := ParseRef(ids[j])
		switch {
		case errA == nil && errB == nil:
			return a.Less(b)
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return ids[i] < ids[j]
		}
	})
}

// Verse is a single sanitized verse of the corpus
type Verse struct {
	Chapter int      `json:"-"`
	Verse   int      `json:"-"`
	Text    string   `json:"text"`   // Sanitized verse text (markup stripped)
	Topics  []string `json:"topics"` // Manually assigned topic labels, in source order
	Notes   string   `json:"notes"`  // Commentary notes, newline separated
}

// Ref returns the verse reference
func (v Verse) Ref() Ref {
	return Ref{Chapter: v.Chapter, Verse: v.Verse}
}

// ID returns the rendered "chapter:verse" id
func (v Verse) ID() string {
	return v.Ref().String()
}

// Record converts the verse to its stored representation
func (v Verse) Record() Record {
	return Record{
		ID:       v.ID(),
		Document: v.Text,
		Metadata: map[string]string{
			MetaChapter: strconv.Itoa(v.Chapter),
			MetaVerse:   strconv.Itoa(v.Verse),
			MetaTopics:  strings.Join(v.Topics, "\n"),
			MetaNotes:   v.Notes,
		},
	}
}

// VerseFromRecord rebuilds a verse from a stored record
func VerseFromRecord(r Record) (Verse, error) {
	ref, err := ParseRef(r.ID)
	if err != nil {
		return Verse{}, err
	}

	var topics []string
	if t := r.Metadata[MetaTopics]; t != "" {
		topics = strings.Split(t, "\n")
	}

	return Verse{
		Chapter: ref.Chapter,
		Verse:   ref.Verse,
		Text:    r.Document,
		Topics:  topics,
		Notes:   r.Metadata[MetaNotes],
	}, nil
}

// Topic is a theme label with the set of verses that carry it
type Topic struct {
	Label       string   `json:"label"`
	Description string   `json:"description"` // Text embedded for semantic lookup
	VerseIDs    []string `json:"verse_ids"`   // Canonically sorted verse ids
}

// Record converts the topic to its stored representation. The document is
// the label itself; the description is what gets embedded.
func (t Topic) Record() Record {
	return Record{
		ID:       t.Label,
		Document: t.Label,
		Embed:    t.Description,
		Metadata: map[string]string{
			MetaVerseIDs: strings.Join(t.VerseIDs, ","),
			MetaDesc:     t.Description,
		},
	}
}

// TopicFromRecord rebuilds a topic from a stored record
func TopicFromRecord(r Record) Topic {
	var ids []string
	if v := r.Metadata[MetaVerseIDs]; v != "" {
		ids = strings.Split(v, ",")
	}
	return Topic{
		Label:       r.Document,
		Description: r.Metadata[MetaDesc],
		VerseIDs:    ids,
	}
}

// Record is the persisted shape shared by verse and theme collections
type Record struct {
	ID       string            `json:"id"`
	Document string            `json:"document"`
	Embed    string            `json:"embed,omitempty"` // Text to embed instead of Document (optional)
	Metadata map[string]string `json:"metadata,omitempty"`
}

// EmbedText returns the text used to compute the record's embedding
func (r Record) EmbedText() string {
	if r.Embed != "" {
		return r.Embed
	}
	return r.Document
}

// Match is a record returned by a semantic query, with its similarity score
type Match struct {
	Record
	Score float64 `json:"score"`
}
