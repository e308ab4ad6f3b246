package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when no document exists under the key.
var ErrNotFound = errors.New("document not found")

// Document is a versioned value held under a single key.
// Revision starts at 1 for the first write and grows by one per successful CAS.
type Document struct {
	Key       string    `json:"key"`
	Value     []byte    `json:"value"`
	Revision  int64     `json:"revision"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	Origin    string    `json:"origin,omitempty"` // causality token of the writing client
}

// WriteMeta is attached to every write.
type WriteMeta struct {
	User   string
	Origin string
}

// Adapter is the minimal contract the transaction engine needs from a backend.
//
// CompareAndSwap writes value only if the stored revision equals expected
// (0 meaning "no document yet"). It returns false with a nil error when another
// writer got there first.
type Adapter interface {
	Get(ctx context.Context, key string) (Document, error)
	CompareAndSwap(ctx context.Context, key string, expected int64, value []byte, meta WriteMeta) (bool, error)
}

// Revisioner is implemented by adapters that can read a document's revision
// without its value. An absent document reports 0.
type Revisioner interface {
	Revision(ctx context.Context, key string) (int64, error)
}

// Event is an entry in the audit log (notices, stage changes, stock warnings).
type Event struct {
	ID        int64     `json:"id"`
	TaskNo    string    `json:"task_no,omitempty"`
	User      string    `json:"user,omitempty"`
	Level     string    `json:"level"` // info, warning
	Type      string    `json:"event_type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
