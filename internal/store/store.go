// Package store provides a thin bbolt wrapper for emdash's local state.
//
// Only client-owned state lives here: named selection presets and the last
// selection the dashboard showed. Backend data is never persisted; every
// view is built from live fetches.
//
// Buckets:
//
//	presets      : preset ID → JSON model.Preset
//	preset_names : preset name → preset ID (unique index)
//	state        : last-used selection
//	_meta        : internal: schema version, created_at
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/derickschaefer/emdash/internal/model"
)

// Current schema version. Bump when bucket layout or key format changes.
const schemaVersion = 1

var (
	bucketPresets     = []byte("presets")
	bucketPresetNames = []byte("preset_names")
	bucketState       = []byte("state")
	bucketInternal    = []byte("_meta")

	keyLastSelection = []byte("last_selection")
)

// AllBuckets lists every user-facing bucket for stats and clear operations.
var AllBuckets = []string{"presets", "preset_names", "state"}

// ErrNotFound is returned when a preset reference matches nothing.
var ErrNotFound = errors.New("not found")

// Store wraps a bbolt database.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the bbolt database at path.
// Parent directories are created automatically.
// Runs schema migrations on every open.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening db %s: %w", path, err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path of the open database.
func (s *Store) Path() string {
	return s.db.Path()
}

// ─── Migrations ───────────────────────────────────────────────────────────────

func (s *Store) migrate() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketPresets, bucketPresetNames, bucketState, bucketInternal} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}

		meta := tx.Bucket(bucketInternal)
		if meta.Get([]byte("schema_version")) == nil {
			if err := meta.Put([]byte("schema_version"), []byte(fmt.Sprintf("%d", schemaVersion))); err != nil {
				return err
			}
			if err := meta.Put([]byte("created_at"), []byte(time.Now().UTC().Format(time.RFC3339))); err != nil {
				return err
			}
		}
		return nil
	})
}

// ─── Presets ──────────────────────────────────────────────────────────────────

// NewPreset builds a preset with a fresh time-ordered ID.
func NewPreset(name string, sel model.Selection) model.Preset {
	return model.Preset{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Name:      strings.TrimSpace(name),
		Selection: sel,
		CreatedAt: time.Now().UTC(),
	}
}

// PutPreset saves p. A preset already holding the same name is replaced, so
// names stay unique.
func (s *Store) PutPreset(p model.Preset) error {
	if p.ID == "" || p.Name == "" {
		return fmt.Errorf("preset requires id and name")
	}
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding preset: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		presets := tx.Bucket(bucketPresets)
		names := tx.Bucket(bucketPresetNames)
		if old := names.Get([]byte(p.Name)); old != nil && string(old) != p.ID {
			if err := presets.Delete(old); err != nil {
				return err
			}
		}
		if err := presets.Put([]byte(p.ID), b); err != nil {
			return err
		}
		return names.Put([]byte(p.Name), []byte(p.ID))
	})
}

// GetPreset resolves ref as a preset ID first, then as a name.
func (s *Store) GetPreset(ref string) (model.Preset, error) {
	var p model.Preset
	err := s.db.View(func(tx *bolt.Tx) error {
		v, err := lookup(tx, ref)
		if err != nil {
			return err
		}
		return json.Unmarshal(v, &p)
	})
	if err != nil {
		return model.Preset{}, err
	}
	return p, nil
}

func lookup(tx *bolt.Tx, ref string) ([]byte, error) {
	presets := tx.Bucket(bucketPresets)
	if v := presets.Get([]byte(ref)); v != nil {
		return v, nil
	}
	if id := tx.Bucket(bucketPresetNames).Get([]byte(ref)); id != nil {
		if v := presets.Get(id); v != nil {
			return v, nil
		}
	}
	return nil, fmt.Errorf("preset %q: %w", ref, ErrNotFound)
}

// ListPresets returns every preset sorted by name.
func (s *Store) ListPresets() ([]model.Preset, error) {
	presets := []model.Preset{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPresets).ForEach(func(k, v []byte) error {
			var p model.Preset
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("decoding preset %s: %w", k, err)
			}
			presets = append(presets, p)
			return nil
		})
	})
	sort.Slice(presets, func(i, j int) bool { return presets[i].Name < presets[j].Name })
	return presets, err
}

// DeletePreset removes the preset matching ref (ID or name).
func (s *Store) DeletePreset(ref string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		v, err := lookup(tx, ref)
		if err != nil {
			return err
		}
		var p model.Preset
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}
		if err := tx.Bucket(bucketPresets).Delete([]byte(p.ID)); err != nil {
			return err
		}
		return tx.Bucket(bucketPresetNames).Delete([]byte(p.Name))
	})
}

// ─── Last selection ───────────────────────────────────────────────────────────

// SaveLastSelection records sel as the selection to resume on next start.
func (s *Store) SaveLastSelection(sel model.Selection) error {
	b, err := json.Marshal(sel)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketState).Put(keyLastSelection, b)
	})
}

// LastSelection returns the saved selection, if any.
func (s *Store) LastSelection() (model.Selection, bool, error) {
	var sel model.Selection
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketState).Get(keyLastSelection)
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &sel)
	})
	if err != nil {
		return model.Selection{}, false, err
	}
	return sel, found, nil
}

// ─── Stats & Maintenance ──────────────────────────────────────────────────────

// BucketStats holds row count and byte size for a single bucket.
type BucketStats struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Bytes int64  `json:"bytes"`
}

// Stats returns row counts and approximate sizes for all user-facing
// buckets, in AllBuckets order.
func (s *Store) Stats() ([]BucketStats, error) {
	var stats []BucketStats
	err := s.db.View(func(tx *bolt.Tx) error {
		for _, name := range AllBuckets {
			b := tx.Bucket([]byte(name))
			if b == nil {
				continue
			}
			st := BucketStats{Name: name}
			_ = b.ForEach(func(k, v []byte) error {
				st.Count++
				st.Bytes += int64(len(k) + len(v))
				return nil
			})
			stats = append(stats, st)
		}
		return nil
	})
	return stats, err
}

// ClearBucket deletes all entries in the named bucket.
func (s *Store) ClearBucket(name string) error {
	bname := []byte(name)
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bname); err != nil {
			return fmt.Errorf("clearing bucket %s: %w", name, err)
		}
		_, err := tx.CreateBucket(bname)
		return err
	})
}

// ClearAll deletes all entries from every user-facing bucket.
func (s *Store) ClearAll() error {
	for _, name := range AllBuckets {
		if err := s.ClearBucket(name); err != nil {
			return err
		}
	}
	return nil
}
