package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/labelqr/internal/config"
	"github.com/JonMunkholm/labelqr/internal/core"
)

// clock is a settable time source shared by a backend under test.
type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

type backend struct {
	name string
	open func(t *testing.T, ttl time.Duration, c *clock) Store
}

var backends = []backend{
	{"memory", func(t *testing.T, ttl time.Duration, c *clock) Store {
		m := NewMemory(ttl)
		m.now = c.now
		return m
	}},
	{"pebble", func(t *testing.T, ttl time.Duration, c *clock) Store {
		p, err := OpenPebble("labelqr", vfs.NewMem(), ttl)
		require.NoError(t, err)
		p.now = c.now
		return p
	}},
	{"postgres", func(t *testing.T, ttl time.Duration, c *clock) Store {
		p := NewPostgres(newFakeDB(), ttl)
		p.now = c.now
		require.NoError(t, p.Migrate(context.Background()))
		return p
	}},
}

func forEachBackend(t *testing.T, ttl time.Duration, fn func(t *testing.T, s Store, c *clock)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
			s := b.open(t, ttl, c)
			t.Cleanup(func() { assert.NoError(t, s.Close()) })
			fn(t, s, c)
		})
	}
}

func TestPreferences_RoundTrip(t *testing.T) {
	forEachBackend(t, time.Hour, func(t *testing.T, s Store, _ *clock) {
		ctx := context.Background()

		_, ok, err := s.Load(ctx, "client-a")
		require.NoError(t, err)
		assert.False(t, ok, "unknown client should have no preferences")

		set := core.Settings{
			Render:      core.RenderOptions{Size: 128, Level: core.ECCHigh},
			Deduplicate: false,
			Layout:      core.LayoutTable,
		}
		require.NoError(t, s.Save(ctx, "client-a", NewPreferences(set, "A;B;1")))

		got, ok, err := s.Load(ctx, "client-a")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 128, got.QRSize)
		assert.Equal(t, "H", got.QRECC)
		require.NotNil(t, got.Dedup)
		assert.False(t, *got.Dedup)
		assert.Equal(t, "A;B;1", got.InputData)
		assert.Equal(t, set, got.Settings(core.DefaultSettings(), 1024))

		_, ok, err = s.Load(ctx, "client-b")
		require.NoError(t, err)
		assert.False(t, ok, "preferences must be per client")

		require.NoError(t, s.Clear(ctx, "client-a"))
		_, ok, err = s.Load(ctx, "client-a")
		require.NoError(t, err)
		assert.False(t, ok, "cleared preferences should be gone")

		assert.NoError(t, s.Clear(ctx, "never-saved"))
	})
}

func TestPreferences_Overwrite(t *testing.T) {
	forEachBackend(t, time.Hour, func(t *testing.T, s Store, _ *clock) {
		ctx := context.Background()
		require.NoError(t, s.Save(ctx, "c", Preferences{QRSize: 64}))
		require.NoError(t, s.Save(ctx, "c", Preferences{QRSize: 200, InputData: "X"}))

		got, ok, err := s.Load(ctx, "c")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, Preferences{QRSize: 200, InputData: "X"}, got)
	})
}

func TestSheets_RoundTripAndExpiry(t *testing.T) {
	forEachBackend(t, time.Hour, func(t *testing.T, s Store, c *clock) {
		ctx := context.Background()
		saved := SavedSheet{
			Records:  []core.Record{{Identifier: "A1", Label: "Bolt", Quantity: "3"}, {Identifier: "B2"}},
			Settings: core.DefaultSettings(),
		}

		id, err := s.SaveSheet(ctx, saved)
		require.NoError(t, err)
		assert.Len(t, id, 27, "sheet IDs are ksuids")

		got, err := s.LoadSheet(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, saved.Records, got.Records)
		assert.Equal(t, saved.Settings, got.Settings)
		assert.True(t, got.CreatedAt.Equal(c.t))

		c.t = c.t.Add(2 * time.Hour)
		_, err = s.LoadSheet(ctx, id)
		assert.ErrorIs(t, err, core.ErrSheetNotFound)
	})
}

func TestSheets_NotFound(t *testing.T) {
	forEachBackend(t, time.Hour, func(t *testing.T, s Store, _ *clock) {
		ctx := context.Background()
		for _, id := range []string{"", "nope", "2ZxKq0kOB2m3nbGbf6PpSrGzXZ1"} {
			_, err := s.LoadSheet(ctx, id)
			assert.ErrorIs(t, err, core.ErrSheetNotFound, "id %q", id)
		}
	})
}

func TestSheets_PurgeExpired(t *testing.T) {
	forEachBackend(t, time.Hour, func(t *testing.T, s Store, c *clock) {
		ctx := context.Background()
		oldID, err := s.SaveSheet(ctx, SavedSheet{
			Records:   []core.Record{{Identifier: "OLD"}},
			CreatedAt: c.t.Add(-3 * time.Hour),
		})
		require.NoError(t, err)
		newID, err := s.SaveSheet(ctx, SavedSheet{Records: []core.Record{{Identifier: "NEW"}}})
		require.NoError(t, err)

		purger, ok := s.(Purger)
		require.True(t, ok)
		require.NoError(t, purger.PurgeExpired(ctx))

		_, err = s.LoadSheet(ctx, newID)
		assert.NoError(t, err)
		_, err = s.LoadSheet(ctx, oldID)
		assert.ErrorIs(t, err, core.ErrSheetNotFound)
	})
}

func TestPreferences_SettingsDefaults(t *testing.T) {
	def := core.DefaultSettings()

	assert.Equal(t, def, Preferences{}.Settings(def, 1024), "empty preferences keep defaults")

	bad := Preferences{QRSize: -4, QRECC: "Z", PreferredView: "grid"}
	assert.Equal(t, def, bad.Settings(def, 1024), "invalid values keep defaults")

	big := Preferences{QRSize: 5000}
	assert.Equal(t, 1024, big.Settings(def, 1024).Render.Size)
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), config.StoreConfig{Backend: "memory", SheetTTL: time.Hour})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)
	require.NoError(t, s.Close())

	_, err = Open(context.Background(), config.StoreConfig{Backend: "redis"})
	assert.Error(t, err)
}

func TestMemory_Concurrent(t *testing.T) {
	m := NewMemory(time.Hour)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			client := fmt.Sprintf("c%d", i%4)
			assert.NoError(t, m.Save(ctx, client, Preferences{QRSize: i + 1}))
			_, _, err := m.Load(ctx, client)
			assert.NoError(t, err)
			_, err = m.SaveSheet(ctx, SavedSheet{Records: []core.Record{{Identifier: client}}})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
}

// fakeDB emulates the statements Postgres issues.
type fakeDB struct {
	mu      sync.Mutex
	prefs   map[string][]byte
	sheets  map[string][]byte
	created map[string]time.Time
	execs   []string
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		prefs:   make(map[string][]byte),
		sheets:  make(map[string][]byte),
		created: make(map[string]time.Time),
	}
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, sql)

	switch sql {
	case schema:
		return pgconn.NewCommandTag("CREATE TABLE"), nil
	case savePreferencesSQL:
		f.prefs[args[0].(string)] = args[1].([]byte)
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case clearPreferencesSQL:
		delete(f.prefs, args[0].(string))
		return pgconn.NewCommandTag("DELETE 1"), nil
	case saveSheetSQL:
		id := args[0].(string)
		f.sheets[id] = args[1].([]byte)
		f.created[id] = args[2].(time.Time)
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case purgeSheetsSQL:
		cutoff := args[0].(time.Time)
		n := 0
		for id, at := range f.created {
			if at.Before(cutoff) {
				delete(f.sheets, id)
				delete(f.created, id)
				n++
			}
		}
		return pgconn.NewCommandTag(fmt.Sprintf("DELETE %d", n)), nil
	}
	return pgconn.CommandTag{}, fmt.Errorf("unexpected statement: %s", sql)
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()

	var (
		data []byte
		ok   bool
	)
	switch sql {
	case loadPreferencesSQL:
		data, ok = f.prefs[args[0].(string)]
	case loadSheetSQL:
		data, ok = f.sheets[args[0].(string)]
	default:
		return fakeRow{err: fmt.Errorf("unexpected query: %s", sql)}
	}
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{data: data}
}

type fakeRow struct {
	data []byte
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	p, ok := dest[0].(*[]byte)
	if !ok {
		return errors.New("fakeRow: unsupported scan target")
	}
	*p = append([]byte(nil), r.data...)
	return nil
}

func TestPostgres_ErrorsWrapped(t *testing.T) {
	db := newFakeDB()
	s := NewPostgres(failingDB{db}, time.Hour)

	err := s.Save(context.Background(), "c", Preferences{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save preferences")

	_, _, err = s.Load(context.Background(), "c")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load preferences")
}

type failingDB struct{ *fakeDB }

func (failingDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("connection refused")
}

func (failingDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return fakeRow{err: errors.New("connection refused")}
}
