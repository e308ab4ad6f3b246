// Package redisstore implements the store.Adapter contract on Redis.
// Each document is a hash; CAS uses WATCH/MULTI so no lock server is involved.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/imkarma/shopfloor/internal/store"
)

const (
	fieldValue     = "value"
	fieldRevision  = "rev"
	fieldUpdatedAt = "updated_at"
	fieldUpdatedBy = "updated_by"
	fieldOrigin    = "origin"
)

// Store is a Redis-backed store.Adapter.
type Store struct {
	client redis.UniversalClient
	prefix string
}

var (
	_ store.Adapter    = (*Store)(nil)
	_ store.Revisioner = (*Store)(nil)
)

// New wraps an existing client. Keys are namespaced with prefix.
func New(client redis.UniversalClient, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// Dial connects to addr and pings it.
func Dial(ctx context.Context, addr, prefix string) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		PoolSize: 20,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return New(client, prefix), nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

// Get returns the document under key or store.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (store.Document, error) {
	fields, err := s.client.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return store.Document{}, fmt.Errorf("get document %s: %w", key, err)
	}
	return decode(key, fields)
}

// Revision reads only the revision field of key, 0 when absent.
func (s *Store) Revision(ctx context.Context, key string) (int64, error) {
	raw, err := s.client.HGet(ctx, s.key(key), fieldRevision).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get revision %s: %w", key, err)
	}
	rev, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse revision of %s: %w", key, err)
	}
	return rev, nil
}

// CompareAndSwap writes value if the stored revision equals expected.
func (s *Store) CompareAndSwap(ctx context.Context, key string, expected int64, value []byte, meta store.WriteMeta) (bool, error) {
	k := s.key(key)
	swapped := false

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, k).Result()
		if err != nil {
			return err
		}
		var current int64
		if raw, ok := fields[fieldRevision]; ok {
			current, err = strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("parse revision: %w", err)
			}
		}
		if current != expected {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, k, map[string]any{
				fieldValue:     value,
				fieldRevision:  expected + 1,
				fieldUpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
				fieldUpdatedBy: meta.User,
				fieldOrigin:    meta.Origin,
			})
			return nil
		})
		if err != nil {
			return err
		}
		swapped = true
		return nil
	}, k)

	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("write document %s: %w", key, err)
	}
	return swapped, nil
}

func decode(key string, fields map[string]string) (store.Document, error) {
	raw, ok := fields[fieldRevision]
	if !ok {
		return store.Document{}, store.ErrNotFound
	}
	rev, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return store.Document{}, fmt.Errorf("parse revision of %s: %w", key, err)
	}
	d := store.Document{
		Key:       key,
		Value:     []byte(fields[fieldValue]),
		Revision:  rev,
		UpdatedBy: fields[fieldUpdatedBy],
		Origin:    fields[fieldOrigin],
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields[fieldUpdatedAt]); err == nil {
		d.UpdatedAt = ts
	}
	return d, nil
}
