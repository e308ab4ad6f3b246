// Package feed reports commits made by other writers to the shared root.
// It is optional: nothing in the transaction path depends on it.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/imkarma/shopfloor/internal/store"
	"github.com/imkarma/shopfloor/internal/txn"
)

// Change is one observed commit.
type Change struct {
	Revision    int64
	Origin      string
	User        string
	At          time.Time
	Collections []string // collections whose envelope changed since the last poll
}

// Watcher polls an adapter for new revisions of the root document.
type Watcher struct {
	adapter store.Adapter
	key     string
	self    string // origin token of the local engine; its commits are not echoed

	last   int64
	stamps map[string]time.Time
}

// NewWatcher watches key on adapter, ignoring commits made with origin self.
func NewWatcher(adapter store.Adapter, key, self string) *Watcher {
	if key == "" {
		key = txn.DefaultRootKey
	}
	return &Watcher{adapter: adapter, key: key, self: self, stamps: make(map[string]time.Time)}
}

// ForEngine watches the root an engine writes, suppressing its own commits.
func ForEngine(e *txn.Engine) *Watcher {
	return NewWatcher(e.Adapter(), e.RootKey(), e.Origin())
}

// Prime records the current revision so that only later commits are reported.
func (w *Watcher) Prime(ctx context.Context) error {
	_, _, err := w.Poll(ctx)
	return err
}

// Poll reads the root once. It reports a change when the revision moved and
// the commit came from another origin. Adapters that implement
// store.Revisioner are asked for the revision first, and the document is only
// read when it moved.
func (w *Watcher) Poll(ctx context.Context) (Change, bool, error) {
	if r, ok := w.adapter.(store.Revisioner); ok {
		rev, err := r.Revision(ctx, w.key)
		if err != nil {
			return Change{}, false, fmt.Errorf("poll %s: %w", w.key, err)
		}
		if rev == w.last {
			return Change{}, false, nil
		}
	}

	doc, err := w.adapter.Get(ctx, w.key)
	if errors.Is(err, store.ErrNotFound) {
		return Change{}, false, nil
	}
	if err != nil {
		return Change{}, false, fmt.Errorf("poll %s: %w", w.key, err)
	}
	if doc.Revision == w.last {
		return Change{}, false, nil
	}

	root := txn.Root{}
	if len(doc.Value) > 0 {
		if err := json.Unmarshal(doc.Value, &root); err != nil {
			return Change{}, false, fmt.Errorf("decode root: %w", err)
		}
	}

	var changed []string
	for name, env := range root {
		if prev, ok := w.stamps[name]; !ok || !prev.Equal(env.UpdatedAt) {
			changed = append(changed, name)
		}
		w.stamps[name] = env.UpdatedAt
	}
	sort.Strings(changed)

	w.last = doc.Revision
	if w.self != "" && doc.Origin == w.self {
		return Change{}, false, nil
	}
	return Change{
		Revision:    doc.Revision,
		Origin:      doc.Origin,
		User:        doc.UpdatedBy,
		At:          doc.UpdatedAt,
		Collections: changed,
	}, true, nil
}

// Run polls every interval until ctx is cancelled, calling onChange for each
// foreign commit. Poll errors are passed to onError when set and do not stop
// the loop.
func (w *Watcher) Run(ctx context.Context, interval time.Duration, onChange func(Change), onError func(error)) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.emit(ctx, onChange, onError)
		}
	}
}

func (w *Watcher) emit(ctx context.Context, onChange func(Change), onError func(error)) {
	c, ok, err := w.Poll(ctx)
	if err != nil {
		if onError != nil {
			onError(err)
		}
		return
	}
	if ok && onChange != nil {
		onChange(c)
	}
}
