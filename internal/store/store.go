// Package store persists per-client preferences and rendered sheets.
//
// Three backends implement [Store]: pebble (embedded, default), Postgres via
// pgx, and an in-memory map for tests. Values are JSON in every backend so a
// preference record written by one reads the same in another.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/JonMunkholm/labelqr/internal/config"
	"github.com/JonMunkholm/labelqr/internal/core"
)

// Key prefixes for key-value backends.
const (
	preferencesPrefix = "qrPreferences/"
	sheetsPrefix      = "qrSheets/"
)

// Preferences is the last-used configuration and input of one client.
// Field names match the browser storage format the app started with.
type Preferences struct {
	QRSize        int    `json:"qrSize,omitempty"`
	QRECC         string `json:"qrEcc,omitempty"`
	Dedup         *bool  `json:"dedup,omitempty"`
	InputData     string `json:"inputData,omitempty"`
	PreferredView string `json:"preferredView,omitempty"`
}

// NewPreferences captures set and the input text.
func NewPreferences(set core.Settings, input string) Preferences {
	dedup := set.Deduplicate
	return Preferences{
		QRSize:        set.Render.Size,
		QRECC:         string(set.Render.Level),
		Dedup:         &dedup,
		InputData:     input,
		PreferredView: string(set.Layout),
	}
}

// Settings overlays the stored values on def. Missing or invalid values keep
// the default.
func (p Preferences) Settings(def core.Settings, maxSize int) core.Settings {
	set := def
	set.Render = core.ParseRenderOptions(fmt.Sprint(p.QRSize), p.QRECC, def.Render, maxSize)
	if p.Dedup != nil {
		set.Deduplicate = *p.Dedup
	}
	set.Layout = core.ParseLayout(p.PreferredView, def.Layout)
	return set
}

// SavedSheet is a rendered batch kept for printing and label export.
// Images are not stored; they are re-rendered from the records on demand.
type SavedSheet struct {
	ID        string        `json:"id"`
	Records   []core.Record `json:"records"`
	Settings  core.Settings `json:"settings"`
	CreatedAt time.Time     `json:"createdAt"`
}

// PreferenceStore loads, saves and clears client preferences.
// Load reports false when the client has no saved record.
type PreferenceStore interface {
	Load(ctx context.Context, client string) (Preferences, bool, error)
	Save(ctx context.Context, client string, p Preferences) error
	Clear(ctx context.Context, client string) error
}

// SheetStore keeps rendered sheets. LoadSheet returns core.ErrSheetNotFound
// for unknown or expired IDs.
type SheetStore interface {
	SaveSheet(ctx context.Context, sheet SavedSheet) (string, error)
	LoadSheet(ctx context.Context, id string) (SavedSheet, error)
}

// Store is a complete backend.
type Store interface {
	PreferenceStore
	SheetStore
	Close() error
}

// Purger is implemented by stores that can drop expired sheets.
type Purger interface {
	PurgeExpired(ctx context.Context) error
}

var (
	_ Purger = (*Memory)(nil)
	_ Purger = (*Pebble)(nil)
	_ Purger = (*Postgres)(nil)
)

// Open builds the backend named by cfg.Backend.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "pebble":
		return OpenPebble(cfg.Path, nil, cfg.SheetTTL)
	case "postgres":
		return OpenPostgres(ctx, cfg.DatabaseURL, cfg.MaxConns, cfg.SheetTTL)
	case "memory":
		return NewMemory(cfg.SheetTTL), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// newSheetID returns a unique sheet ID that sorts by created.
func newSheetID(created time.Time) (string, error) {
	id, err := ksuid.NewRandomWithTime(created)
	if err != nil {
		return "", fmt.Errorf("sheet id: %w", err)
	}
	return id.String(), nil
}

// validSheetID reports whether id could have come from newSheetID.
func validSheetID(id string) bool {
	_, err := ksuid.Parse(id)
	return err == nil
}

// prepareSheet assigns an ID and creation time and encodes the sheet.
func prepareSheet(sheet SavedSheet, now time.Time) (SavedSheet, []byte, error) {
	if sheet.CreatedAt.IsZero() {
		sheet.CreatedAt = now.UTC()
	}
	id, err := newSheetID(sheet.CreatedAt)
	if err != nil {
		return SavedSheet{}, nil, err
	}
	sheet.ID = id
	data, err := json.Marshal(sheet)
	if err != nil {
		return SavedSheet{}, nil, fmt.Errorf("encode sheet: %w", err)
	}
	return sheet, data, nil
}

// decodeSheet parses data and applies the TTL.
func decodeSheet(data []byte, ttl time.Duration, now time.Time) (SavedSheet, error) {
	var sheet SavedSheet
	if err := json.Unmarshal(data, &sheet); err != nil {
		return SavedSheet{}, fmt.Errorf("decode sheet: %w", err)
	}
	if expired(sheet.CreatedAt, ttl, now) {
		return SavedSheet{}, core.ErrSheetNotFound
	}
	return sheet, nil
}

func expired(created time.Time, ttl time.Duration, now time.Time) bool {
	return ttl > 0 && now.Sub(created) > ttl
}

func decodePreferences(data []byte) (Preferences, error) {
	var p Preferences
	if err := json.Unmarshal(data, &p); err != nil {
		return Preferences{}, fmt.Errorf("decode preferences: %w", err)
	}
	return p, nil
}
