package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStoreTest(t *testing.T) (*RedisStore, *miniredis.Miniredis, *redis.Client, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(rdb, "hms", "default", time.Hour)
	return store, mr, rdb, func() {
		rdb.Close()
		mr.Close()
	}
}

func testState() *State {
	now := time.Now()
	return &State{
		AccessToken: "access-token-1",
		UserID:      "u-1",
		Refresh: &RefreshCookie{
			Name:    "refresh_token",
			Value:   "refresh-1",
			Path:    "/",
			Expires: now.Add(24 * time.Hour).Unix(),
		},
		SavedAt: now.Unix(),
	}
}

func assertStateEqual(t *testing.T, want, got *State) {
	t.Helper()
	if got == nil {
		t.Fatal("expected state, got nil")
	}
	if got.AccessToken != want.AccessToken || got.UserID != want.UserID || got.SavedAt != want.SavedAt {
		t.Fatalf("state mismatch: want %+v got %+v", want, got)
	}
	if (want.Refresh == nil) != (got.Refresh == nil) {
		t.Fatalf("refresh presence mismatch: want %v got %v", want.Refresh, got.Refresh)
	}
	if want.Refresh != nil && *want.Refresh != *got.Refresh {
		t.Fatalf("refresh mismatch: want %+v got %+v", *want.Refresh, *got.Refresh)
	}
}

func TestRedisStoreRoundTripAndTTL(t *testing.T) {
	store, mr, _, done := newRedisStoreTest(t)
	defer done()
	ctx := context.Background()

	st := testState()
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assertStateEqual(t, st, got)

	ttl := mr.TTL("hms:cred:default")
	if ttl <= 23*time.Hour || ttl > 24*time.Hour {
		t.Fatalf("expected ttl near refresh expiry, got %s", ttl)
	}

	profiles, err := store.Profiles(ctx)
	if err != nil {
		t.Fatalf("profiles: %v", err)
	}
	if profiles["default"] != "u-1" {
		t.Fatalf("expected profile index, got %v", profiles)
	}
}

func TestRedisStoreDefaultTTLWithoutRefresh(t *testing.T) {
	store, mr, _, done := newRedisStoreTest(t)
	defer done()

	st := &State{AccessToken: "a"}
	if err := store.Save(context.Background(), st); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ttl := mr.TTL("hms:cred:default"); ttl != time.Hour {
		t.Fatalf("expected default ttl, got %s", ttl)
	}
}

func TestRedisStoreClearIdempotent(t *testing.T) {
	store, _, _, done := newRedisStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Save(ctx, testState()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("first clear: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil || got != nil {
		t.Fatalf("expected empty load, got %+v err=%v", got, err)
	}
}

func TestRedisStoreSaveEmptyClears(t *testing.T) {
	store, mr, _, done := newRedisStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Save(ctx, testState()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, &State{}); err != nil {
		t.Fatalf("save empty: %v", err)
	}
	if mr.Exists("hms:cred:default") {
		t.Fatal("expected key removed")
	}
}

func TestRedisStoreCorruptBlob(t *testing.T) {
	store, _, rdb, done := newRedisStoreTest(t)
	defer done()

	if err := rdb.Set(context.Background(), "hms:cred:default", []byte{CurrentSchemaVersion, 0, 0}, 0).Err(); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.Load(context.Background()); !errors.Is(err, ErrStateCorrupt) {
		t.Fatalf("expected ErrStateCorrupt, got %v", err)
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr, _, done := newRedisStoreTest(t)
	defer done()
	mr.Close()

	if _, err := store.Load(context.Background()); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}

func TestMemoryStoreIsolatesCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	st := testState()
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("save: %v", err)
	}
	st.Refresh.Value = "mutated"

	got, _ := store.Load(ctx)
	if got.Refresh.Value != "refresh-1" {
		t.Fatalf("store must keep its own copy, got %q", got.Refresh.Value)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got, _ := store.Load(ctx); got != nil {
		t.Fatalf("expected nil after clear, got %+v", got)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session")
	store := NewFileStore(path)
	ctx := context.Background()

	got, err := store.Load(ctx)
	if err != nil || got != nil {
		t.Fatalf("expected empty load for missing file, got %+v err=%v", got, err)
	}

	st := testState()
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assertStateEqual(t, st, got)

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("second clear: %v", err)
	}
}
