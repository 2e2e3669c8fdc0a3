package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/segmentio/ksuid"

	"github.com/JonMunkholm/labelqr/internal/core"
)

// Pebble is a Store on an embedded pebble database.
type Pebble struct {
	db  *pebble.DB
	ttl time.Duration
	now func() time.Time
}

var _ Store = (*Pebble)(nil)

// OpenPebble opens or creates the database at path. A nil fs uses the
// operating system's filesystem; tests pass vfs.NewMem().
func OpenPebble(path string, fs vfs.FS, ttl time.Duration) (*Pebble, error) {
	opts := &pebble.Options{}
	if fs != nil {
		opts.FS = fs
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble %s: %w", path, err)
	}
	return &Pebble{db: db, ttl: ttl, now: time.Now}, nil
}

func preferencesKey(client string) []byte {
	return []byte(preferencesPrefix + client)
}

func sheetKey(id string) []byte {
	return []byte(sheetsPrefix + id)
}

// get returns a copy of the value at key; pebble's buffer is only valid
// until the closer is closed.
func (s *Pebble) get(key []byte) ([]byte, bool, error) {
	data, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()

	out := make([]byte, len(data))
	copy(out, data)
	return out, true, nil
}

func (s *Pebble) Load(_ context.Context, client string) (Preferences, bool, error) {
	data, ok, err := s.get(preferencesKey(client))
	if err != nil || !ok {
		return Preferences{}, false, err
	}
	p, err := decodePreferences(data)
	if err != nil {
		return Preferences{}, false, err
	}
	return p, true, nil
}

func (s *Pebble) Save(_ context.Context, client string, p Preferences) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	return s.db.Set(preferencesKey(client), data, pebble.NoSync)
}

func (s *Pebble) Clear(_ context.Context, client string) error {
	return s.db.Delete(preferencesKey(client), pebble.NoSync)
}

func (s *Pebble) SaveSheet(_ context.Context, sheet SavedSheet) (string, error) {
	sheet, data, err := prepareSheet(sheet, s.now())
	if err != nil {
		return "", err
	}
	if err := s.db.Set(sheetKey(sheet.ID), data, pebble.NoSync); err != nil {
		return "", fmt.Errorf("save sheet: %w", err)
	}
	return sheet.ID, nil
}

func (s *Pebble) LoadSheet(_ context.Context, id string) (SavedSheet, error) {
	if !validSheetID(id) {
		return SavedSheet{}, core.ErrSheetNotFound
	}
	data, ok, err := s.get(sheetKey(id))
	if err != nil {
		return SavedSheet{}, fmt.Errorf("load sheet: %w", err)
	}
	if !ok {
		return SavedSheet{}, core.ErrSheetNotFound
	}
	return decodeSheet(data, s.ttl, s.now())
}

// PurgeExpired deletes sheets older than the TTL. Sheet keys are ksuids,
// which sort by creation time, so one range deletion covers them.
func (s *Pebble) PurgeExpired(_ context.Context) error {
	if s.ttl <= 0 {
		return nil
	}
	cutoff, err := ksuid.FromParts(s.now().Add(-s.ttl), make([]byte, 16))
	if err != nil {
		return fmt.Errorf("purge sheets: %w", err)
	}
	if err := s.db.DeleteRange(sheetKey(""), sheetKey(cutoff.String()), pebble.NoSync); err != nil {
		return fmt.Errorf("purge sheets: %w", err)
	}
	return nil
}

// Close flushes and closes the database.
func (s *Pebble) Close() error {
	return s.db.Close()
}
