package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/ppiankov/qbot/internal/util"
)

var sessionsBucket = []byte("sessions")

// ErrSessionNotFound is returned by Load for unknown ids
var ErrSessionNotFound = errors.New("session not found")

// Summary is the listing view of an archived session
type Summary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  int       `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Archive persists sessions in a bbolt file, one JSON value per session id
type Archive struct {
	db *bolt.DB
}

// OpenArchive opens or creates the archive at path
func OpenArchive(path string) (*Archive, error) {
	path = util.ExpandHome(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init archive: %w", err)
	}
	return &Archive{db: db}, nil
}

// Close closes the archive file
func (a *Archive) Close() error {
	return a.db.Close()
}

// Save writes the session, replacing any earlier version
func (a *Archive) Save(s *Session) error {
	enc, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return a.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionsBucket).Put([]byte(s.ID), enc)
	})
}

// Load reads a session by id. Loaded sessions await input.
func (a *Archive) Load(id string) (*Session, error) {
	var s *Session
	err := a.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(sessionsBucket).Get([]byte(id))
		if v == nil {
			return ErrSessionNotFound
		}
		s = &Session{}
		return json.Unmarshal(v, s)
	})
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	s.state = StateAwaitingInput
	return s, nil
}

// Delete removes a session; unknown ids are ignored
func (a *Archive) Delete(id string) error {
	return a.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionsBucket).Delete([]byte(id))
	})
}

// List returns summaries of all sessions, most recently updated first.
// Entries that fail to decode are skipped.
func (a *Archive) List() ([]Summary, error) {
	var out []Summary
	err := a.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionsBucket).ForEach(func(k, v []byte) error {
			var s Session
			if err := json.Unmarshal(v, &s); err != nil {
				return nil
			}
			out = append(out, Summary{
				ID:        s.ID,
				Title:     s.Title,
				Messages:  len(s.Messages),
				CreatedAt: s.CreatedAt,
				UpdatedAt: s.UpdatedAt,
			})
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}
