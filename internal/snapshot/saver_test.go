package snapshot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"studio/internal/domain"
	"studio/internal/studio"
)

type memStore struct {
	mu    sync.Mutex
	saves int
	last  Record
}

func (m *memStore) Exists(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last.SessionID == id, nil
}

func (m *memStore) Save(ctx context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.last = rec
	return nil
}

func (m *memStore) Load(ctx context.Context, id string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last.SessionID != id {
		return Record{}, domain.ErrNotFound
	}
	return m.last, nil
}

func (m *memStore) Clear(ctx context.Context, id string) error { return nil }

func (m *memStore) List(ctx context.Context) ([]Meta, error) { return nil, nil }

func (m *memStore) Purge(ctx context.Context, cutoff time.Time) (int, error) { return 0, nil }

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestSaverCoalescesBursts(t *testing.T) {
	store := &memStore{}
	sv := NewSaver(store, 30*time.Millisecond, zerolog.Nop())

	s := studio.NewSession("sess-1")
	sv.Track(s)

	if err := s.Initialize(domain.UploadedImage{URL: "https://cdn.example.com/a.png"}); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
	if err := s.SetActiveTool("edit"); err != nil {
		t.Fatalf("SetActiveTool returned error: %v", err)
	}
	if err := s.SetPresets([]string{"p1"}); err != nil {
		t.Fatalf("SetPresets returned error: %v", err)
	}

	waitFor(t, func() bool { return store.count() >= 1 })
	// Give a trailing timer the chance to misfire before checking.
	time.Sleep(100 * time.Millisecond)
	if got := store.count(); got != 1 {
		t.Fatalf("saves = %d, want burst coalesced into 1", got)
	}
}

func TestSaverFlushWritesImmediately(t *testing.T) {
	store := &memStore{}
	sv := NewSaver(store, time.Minute, zerolog.Nop())

	s := studio.NewSession("sess-1")
	sv.Track(s)
	if err := s.Initialize(domain.UploadedImage{URL: "https://cdn.example.com/a.png"}); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	if err := sv.Flush(context.Background(), s); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
	if store.count() != 1 {
		t.Fatalf("saves = %d, want 1", store.count())
	}
	if store.last.SessionID != "sess-1" {
		t.Fatalf("saved session = %q", store.last.SessionID)
	}
}

func TestSaverCloseFlushesTracked(t *testing.T) {
	store := &memStore{}
	sv := NewSaver(store, time.Minute, zerolog.Nop())

	s := studio.NewSession("sess-1")
	sv.Track(s)
	if err := s.Initialize(domain.UploadedImage{URL: "https://cdn.example.com/a.png"}); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	if err := sv.Close(context.Background()); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if store.count() != 1 {
		t.Fatalf("saves = %d, want 1", store.count())
	}
}

func TestSaverUntrackCancelsPending(t *testing.T) {
	store := &memStore{}
	sv := NewSaver(store, 20*time.Millisecond, zerolog.Nop())

	s := studio.NewSession("sess-1")
	sv.Track(s)
	if err := s.SetActiveTool("edit"); err != nil {
		t.Fatalf("SetActiveTool returned error: %v", err)
	}
	sv.Untrack("sess-1")

	time.Sleep(100 * time.Millisecond)
	if store.count() != 0 {
		t.Fatalf("saves = %d, want 0 after untrack", store.count())
	}
}
