package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key generates a cache key from a namespace (e.g. embedder name) and the
// cached input text
func Key(namespace, text string) string {
	hash := sha256.Sum256([]byte(namespace + "\x00" + text))
	ns := strings.NewReplacer("/", "_", ":", "_", " ", "_").Replace(namespace)
	return "qbot_v1_" + ns + "_" + hex.EncodeToString(hash[:16])
}
