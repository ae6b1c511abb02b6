package snapshot

import (
	"context"
	"time"
)

// Record is one persisted session snapshot.
type Record struct {
	SessionID string
	Data      []byte
	UpdatedAt time.Time
}

// Meta summarizes a stored snapshot without its payload.
type Meta struct {
	SessionID string    `json:"session_id"`
	Size      int       `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists session snapshots keyed by session ID.
type Store interface {
	Exists(ctx context.Context, sessionID string) (bool, error)
	Save(ctx context.Context, rec Record) error
	Load(ctx context.Context, sessionID string) (Record, error)
	Clear(ctx context.Context, sessionID string) error
	List(ctx context.Context) ([]Meta, error)
	// Purge drops snapshots last updated before the cutoff and reports how
	// many were removed. Stores with native expiry may report zero.
	Purge(ctx context.Context, cutoff time.Time) (int, error)
}
