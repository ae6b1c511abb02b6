package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"studio/internal/studio"
)

// Saver persists sessions after mutations, debounced so a burst of small
// edits produces one write instead of dozens.
type Saver struct {
	store    Store
	debounce time.Duration
	logger   zerolog.Logger

	mu       sync.Mutex
	timers   map[string]*time.Timer
	sessions map[string]*studio.Session
	closed   bool
}

// NewSaver builds a saver over the given store.
func NewSaver(store Store, debounce time.Duration, logger zerolog.Logger) *Saver {
	if debounce <= 0 {
		debounce = time.Second
	}
	return &Saver{
		store:    store,
		debounce: debounce,
		logger:   logger,
		timers:   map[string]*time.Timer{},
		sessions: map[string]*studio.Session{},
	}
}

// Track registers the session's dirty hook so every successful mutation
// schedules a debounced save.
func (sv *Saver) Track(s *studio.Session) {
	id := s.ID()
	sv.mu.Lock()
	sv.sessions[id] = s
	sv.mu.Unlock()
	s.SetDirtyHook(func() { sv.schedule(id) })
}

// Untrack stops saving a session. Pending timers are cancelled; the caller
// decides whether to Flush first.
func (sv *Saver) Untrack(id string) {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	if t, ok := sv.timers[id]; ok {
		t.Stop()
		delete(sv.timers, id)
	}
	delete(sv.sessions, id)
}

func (sv *Saver) schedule(id string) {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	if sv.closed {
		return
	}
	if t, ok := sv.timers[id]; ok {
		t.Reset(sv.debounce)
		return
	}
	sv.timers[id] = time.AfterFunc(sv.debounce, func() {
		sv.mu.Lock()
		delete(sv.timers, id)
		s := sv.sessions[id]
		sv.mu.Unlock()
		if s == nil {
			return
		}
		if err := sv.save(context.Background(), s); err != nil {
			sv.logger.Error().Err(err).Str("session_id", id).Msg("snapshot: debounced save")
		}
	})
}

// Flush persists a session immediately, cancelling any pending timer.
func (sv *Saver) Flush(ctx context.Context, s *studio.Session) error {
	id := s.ID()
	sv.mu.Lock()
	if t, ok := sv.timers[id]; ok {
		t.Stop()
		delete(sv.timers, id)
	}
	sv.mu.Unlock()
	return sv.save(ctx, s)
}

// Close stops all timers and flushes every tracked session.
func (sv *Saver) Close(ctx context.Context) error {
	sv.mu.Lock()
	sv.closed = true
	for id, t := range sv.timers {
		t.Stop()
		delete(sv.timers, id)
	}
	sessions := make([]*studio.Session, 0, len(sv.sessions))
	for _, s := range sv.sessions {
		sessions = append(sessions, s)
	}
	sv.mu.Unlock()

	var firstErr error
	for _, s := range sessions {
		if err := sv.save(ctx, s); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (sv *Saver) save(ctx context.Context, s *studio.Session) error {
	data, err := Capture(s)
	if err != nil {
		return err
	}
	return sv.store.Save(ctx, Record{
		SessionID: s.ID(),
		Data:      data,
		UpdatedAt: time.Now().UTC(),
	})
}
