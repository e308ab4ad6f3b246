// Package txn implements optimistic read-modify-write transactions over a single
// versioned root document. Every collection of the shop lives under that root, so
// one compare-and-swap commits any combination of them atomically.
package txn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/imkarma/shopfloor/internal/store"
)

var (
	// ErrConcurrencyExhausted means every attempt lost the CAS race.
	ErrConcurrencyExhausted = errors.New("transaction retries exhausted by concurrent writers")
	// ErrStoreUnavailable wraps adapter failures. Not retried.
	ErrStoreUnavailable = errors.New("store unavailable")

	errConflict = errors.New("concurrent modification")
)

const (
	// DefaultRootKey is the document that holds all collections.
	DefaultRootKey = "ls"
	// DefaultMaxAttempts bounds the retry loop.
	DefaultMaxAttempts = 5
	// MinMaxAttempts is the lowest accepted bound.
	MinMaxAttempts = 3
)

// Envelope is how a collection value is stored inside the root, with the
// provenance of its last write.
type Envelope struct {
	Value     json.RawMessage `json:"value"`
	UpdatedAt time.Time       `json:"updated_at"`
	User      string          `json:"user,omitempty"`
	Origin    string          `json:"origin,omitempty"`
}

// Root is the decoded root document.
type Root map[string]Envelope

// Engine runs transactions against one root key of an adapter.
type Engine struct {
	adapter store.Adapter
	key     string
	origin  string
	user    string
	retry   retry.Config
	log     *logrus.Entry
	tracer  trace.Tracer
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithRootKey overrides DefaultRootKey.
func WithRootKey(key string) Option {
	return func(e *Engine) {
		if key != "" {
			e.key = key
		}
	}
}

// WithRetry sets the attempt bound and the first backoff delay.
func WithRetry(maxAttempts int, initialDelay time.Duration) Option {
	return func(e *Engine) {
		if maxAttempts < MinMaxAttempts {
			maxAttempts = MinMaxAttempts
		}
		e.retry.MaxAttempts = maxAttempts
		if initialDelay > 0 {
			e.retry.InitialDelay = initialDelay
		}
	}
}

// WithOrigin sets the causality token stamped on every write.
func WithOrigin(origin string) Option {
	return func(e *Engine) { e.origin = origin }
}

// WithUser sets the default user stamped on writes. A user carried by the
// context (see ContextWithUser) wins.
func WithUser(user string) Option {
	return func(e *Engine) { e.user = user }
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Entry) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine. Without WithOrigin a random origin is generated.
func New(adapter store.Adapter, opts ...Option) *Engine {
	e := &Engine{
		adapter: adapter,
		key:     DefaultRootKey,
		origin:  uuid.NewString(),
		retry: retry.Config{
			MaxAttempts:   DefaultMaxAttempts,
			InitialDelay:  5 * time.Millisecond,
			BackoffPolicy: retry.BackoffExponential,
		},
		log:    logrus.NewEntry(logrus.StandardLogger()).WithField("module", "txn"),
		tracer: otel.Tracer("github.com/imkarma/shopfloor/internal/txn"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Origin returns the causality token this engine writes with.
func (e *Engine) Origin() string { return e.origin }

// RootKey returns the document key holding every collection.
func (e *Engine) RootKey() string { return e.key }

// Adapter returns the underlying store adapter.
func (e *Engine) Adapter() store.Adapter { return e.adapter }

type userKey struct{}

// ContextWithUser attaches the acting user to ctx.
func ContextWithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

func (e *Engine) userFrom(ctx context.Context) string {
	if u, ok := ctx.Value(userKey{}).(string); ok && u != "" {
		return u
	}
	return e.user
}

type outcome struct {
	committed bool
	err       error
}

// Run executes fn inside a transaction. fn may be called several times; it must
// only touch state through tx. It returns committed=false with a nil error when
// fn staged no change. An error returned by fn aborts without writing.
func (e *Engine) Run(ctx context.Context, fn func(tx *Tx) error) (bool, error) {
	ctx, span := e.tracer.Start(ctx, "txn.Run", trace.WithAttributes(attribute.String("txn.root", e.key)))
	defer span.End()

	attempts := 0
	r := retry.New[outcome](e.retry)
	out, err := r.Do(ctx, func(ctx context.Context) (outcome, error) {
		attempts++
		committed, err := e.attempt(ctx, fn)
		if errors.Is(err, errConflict) {
			e.log.WithField("attempt", attempts).Debug("root changed underneath, retrying")
			return outcome{}, err
		}
		// Everything else is final and must not be retried.
		return outcome{committed: committed, err: err}, nil
	})
	span.SetAttributes(attribute.Int("txn.attempts", attempts))

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			span.SetStatus(codes.Error, ctxErr.Error())
			return false, ctxErr
		}
		e.log.WithFields(logrus.Fields{
			"func":     "Run",
			"attempts": attempts,
		}).Warn("giving up after repeated write conflicts")
		span.SetStatus(codes.Error, "concurrency exhausted")
		return false, fmt.Errorf("%w (%d attempts)", ErrConcurrencyExhausted, attempts)
	}
	if out.err != nil {
		span.RecordError(out.err)
		span.SetStatus(codes.Error, out.err.Error())
		return false, out.err
	}
	span.SetAttributes(attribute.Bool("txn.committed", out.committed))
	return out.committed, nil
}

func (e *Engine) attempt(ctx context.Context, fn func(tx *Tx) error) (bool, error) {
	root, rev, err := e.load(ctx)
	if err != nil {
		return false, err
	}

	tx := &Tx{root: root, rev: rev, staged: make(map[string]json.RawMessage)}
	if err := fn(tx); err != nil {
		return false, err
	}
	if len(tx.staged) == 0 {
		return false, nil
	}

	now := e.now().UTC()
	user := e.userFrom(ctx)
	next := make(Root, len(root)+len(tx.staged))
	for k, v := range root {
		next[k] = v
	}
	for k, v := range tx.staged {
		next[k] = Envelope{Value: v, UpdatedAt: now, User: user, Origin: e.origin}
	}

	data, err := json.Marshal(next)
	if err != nil {
		return false, fmt.Errorf("encode root: %w", err)
	}
	ok, err := e.adapter.CompareAndSwap(ctx, e.key, rev, data, store.WriteMeta{User: user, Origin: e.origin})
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if !ok {
		return false, errConflict
	}
	return true, nil
}

func (e *Engine) load(ctx context.Context) (Root, int64, error) {
	doc, err := e.adapter.Get(ctx, e.key)
	if errors.Is(err, store.ErrNotFound) {
		return Root{}, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	root := Root{}
	if len(doc.Value) > 0 {
		if err := json.Unmarshal(doc.Value, &root); err != nil {
			return nil, 0, fmt.Errorf("%w: decode root: %w", ErrStoreUnavailable, err)
		}
	}
	return root, doc.Revision, nil
}

// Snapshot is a consistent read of every collection at one revision.
type Snapshot struct {
	Revision int64
	Root     Root
}

// Snapshot reads the root without writing.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	root, rev, err := e.load(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Revision: rev, Root: root}, nil
}

// View runs fn against a snapshot. Writes through tx are discarded.
func (e *Engine) View(ctx context.Context, fn func(tx *Tx) error) error {
	root, rev, err := e.load(ctx)
	if err != nil {
		return err
	}
	return fn(&Tx{root: root, rev: rev, staged: make(map[string]json.RawMessage)})
}
