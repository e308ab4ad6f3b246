package txn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Collection names a value stored in the root and how to build it when absent.
type Collection[T any] struct {
	Key     string
	Default func() T
}

func (c Collection[T]) zero() T {
	if c.Default != nil {
		return c.Default()
	}
	var v T
	return v
}

// Tx is the view a transaction function works against.
type Tx struct {
	root   Root
	rev    int64
	staged map[string]json.RawMessage
}

// Revision is the root revision the transaction read.
func (tx *Tx) Revision() int64 { return tx.rev }

// Read decodes the collection, seeing earlier writes of the same tx.
// Each call returns a fresh copy.
func Read[T any](tx *Tx, c Collection[T]) (T, error) {
	if raw, ok := tx.staged[c.Key]; ok {
		return decode(c, raw)
	}
	return committed(tx, c)
}

// Write stages v for the collection. A value identical to the committed one
// is dropped, so a write that changes nothing does not cause a commit.
func Write[T any](tx *Tx, c Collection[T], v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.Key, err)
	}

	// Re-encode the committed value so formatting differences in the stored
	// bytes never count as a change.
	cur, err := committed(tx, c)
	if err != nil {
		return err
	}
	base, err := json.Marshal(cur)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.Key, err)
	}

	if bytes.Equal(base, data) {
		delete(tx.staged, c.Key)
		return nil
	}
	tx.staged[c.Key] = data
	return nil
}

// Changed lists the collections staged so far, sorted.
func (tx *Tx) Changed() []string {
	keys := make([]string, 0, len(tx.staged))
	for k := range tx.staged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func committed[T any](tx *Tx, c Collection[T]) (T, error) {
	env, ok := tx.root[c.Key]
	if !ok || len(env.Value) == 0 {
		return c.zero(), nil
	}
	return decode(c, env.Value)
}

func decode[T any](c Collection[T], raw json.RawMessage) (T, error) {
	v := c.zero()
	if err := json.Unmarshal(raw, &v); err != nil {
		var zero T
		return zero, fmt.Errorf("decode %s: %w", c.Key, err)
	}
	return v, nil
}

// Updater is one collection's part in an ApplyAll call.
type Updater func(tx *Tx) error

// Update builds an Updater that replaces the collection with fn(current).
func Update[T any](c Collection[T], fn func(current T) (T, error)) Updater {
	return func(tx *Tx) error {
		cur, err := Read(tx, c)
		if err != nil {
			return err
		}
		next, err := fn(cur)
		if err != nil {
			return err
		}
		return Write(tx, c, next)
	}
}

// ApplyAll commits every updater's result in one write, or nothing. Updaters
// run in order on each attempt; collections they leave unchanged are not
// rewritten, and when none changed no write happens.
func (e *Engine) ApplyAll(ctx context.Context, updaters ...Updater) (bool, error) {
	return e.Run(ctx, func(tx *Tx) error {
		for _, u := range updaters {
			if err := u(tx); err != nil {
				return err
			}
		}
		return nil
	})
}

// Apply is the single-collection transaction: read, transform, CAS, retry.
func Apply[T any](ctx context.Context, e *Engine, c Collection[T], fn func(current T) (T, error)) (bool, error) {
	return e.ApplyAll(ctx, Update(c, fn))
}

// Get reads one collection from a fresh snapshot.
func Get[T any](ctx context.Context, e *Engine, c Collection[T]) (T, error) {
	var v T
	err := e.View(ctx, func(tx *Tx) error {
		var err error
		v, err = Read(tx, c)
		return err
	})
	return v, err
}
