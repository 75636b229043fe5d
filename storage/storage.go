// Package storage persists cache snapshots between sessions. Persistence is
// best-effort: every failure is swallowed after logging, because a broken
// snapshot must never block cache correctness.
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// SchemaVersion stamps every saved snapshot. A loaded snapshot with a
// different stamp is discarded wholesale; there is no incremental migration.
const SchemaVersion = 1

type envelope struct {
	Version int             `json:"version"`
	SavedAt time.Time       `json:"savedAt"`
	Data    json.RawMessage `json:"data"`
}

// FileStore keeps one JSON file per key under a base directory.
type FileStore struct {
	dir string
}

// NewFileStore builds a store rooted at dir, creating it if needed.
func NewFileStore(dir string) *FileStore {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("storage dir unavailable, persistence disabled")
	}
	return &FileStore{dir: dir}
}

// Save writes data under key. Errors are logged and swallowed.
func (f *FileStore) Save(key string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("snapshot marshal failed")
		return
	}
	env, err := json.Marshal(envelope{Version: SchemaVersion, SavedAt: time.Now(), Data: raw})
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("snapshot envelope marshal failed")
		return
	}
	path := f.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, env, 0o644); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("snapshot write failed")
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("snapshot rename failed")
	}
}

// Load reads the snapshot under key into out. It reports false when the
// snapshot is missing, unreadable, or stamped with a different version.
func (f *FileStore) Load(key string, out any) bool {
	raw, err := os.ReadFile(f.path(key))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("key", key).Msg("snapshot read failed")
		}
		return false
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("snapshot envelope corrupt")
		return false
	}
	if env.Version != SchemaVersion {
		log.Info().Int("found", env.Version).Int("want", SchemaVersion).Str("key", key).Msg("discarding snapshot with old schema version")
		return false
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("snapshot decode failed")
		return false
	}
	return true
}

// Delete removes the snapshot under key, if any.
func (f *FileStore) Delete(key string) {
	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("key", key).Msg("snapshot delete failed")
	}
}

func (f *FileStore) path(key string) string {
	safe := strings.NewReplacer(",", "_", ":", "-", "/", "-").Replace(key)
	return filepath.Join(f.dir, safe+".json")
}
