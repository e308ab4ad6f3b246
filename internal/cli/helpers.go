package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/imkarma/shopfloor/internal/config"
	"github.com/imkarma/shopfloor/internal/production"
	"github.com/imkarma/shopfloor/internal/store"
	"github.com/imkarma/shopfloor/internal/store/redisstore"
	"github.com/imkarma/shopfloor/internal/txn"
)

const eventsDBName = "events.db"

// workspacePath returns the path to a file inside .shopfloor/.
func workspacePath(parts ...string) string {
	return config.Path(flagDir, parts...)
}

// app is everything a command needs, opened from the workspace config.
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	user    string
	adapter store.Adapter
	events  *store.Store
	engine  *txn.Engine
	svc     *production.Service
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.WithError(err).Debug("close")
		}
	}
}

// mustConfig loads the workspace config, returning an error if shopfloor is
// not initialized.
func mustConfig() (*config.Config, error) {
	cfgPath := workspacePath("config.yaml")
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("shopfloor not initialized. Run: shopfloor init")
	}
	return config.Load(cfgPath)
}

// mustApp opens config, store, audit log and service.
func mustApp(ctx context.Context) (*app, error) {
	cfg, err := mustConfig()
	if err != nil {
		return nil, err
	}
	log, err := config.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, user: currentUser(cfg)}

	adapter, closeFn, err := openAdapter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.adapter = adapter
	a.closers = append(a.closers, closeFn)

	// The audit log lives in the workspace SQLite file, whatever holds the
	// documents.
	if s, ok := adapter.(*store.Store); ok {
		a.events = s
	} else {
		a.events, err = store.Open(workspacePath(eventsDBName))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open event log: %w", err)
		}
		a.closers = append(a.closers, a.events.Close)
	}

	a.engine = newEngine(a, a.user, "")
	a.svc = newService(a, a.engine, a.user)
	return a, nil
}

// openAdapter opens the document store named by the config.
func openAdapter(ctx context.Context, cfg *config.Config) (store.Adapter, func() error, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if !filepath.IsAbs(path) {
			path = workspacePath(path)
		}
		s, err := store.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open store: %w", err)
		}
		return s, s.Close, nil
	case "redis":
		s, err := redisstore.Dial(ctx, cfg.Store.RedisAddr, cfg.Store.Prefix)
		if err != nil {
			return nil, nil, fmt.Errorf("open store: %w", err)
		}
		return s, s.Close, nil
	case "memory":
		return store.NewMemory(), func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// currentUser picks the operator name: --user, then SHOPFLOOR_USER or the
// config user (the environment already overrode the file), then $USER.
func currentUser(cfg *config.Config) string {
	if flagUser != "" {
		return flagUser
	}
	if cfg.User != "" {
		return cfg.User
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "operator"
}

func newEngine(a *app, user, origin string) *txn.Engine {
	opts := []txn.Option{
		txn.WithRootKey(a.cfg.Store.RootKey),
		txn.WithRetry(a.cfg.Retry.MaxAttempts, a.cfg.Retry.InitialDelay()),
		txn.WithUser(user),
		txn.WithLogger(logrus.NewEntry(a.log)),
	}
	if origin != "" {
		opts = append(opts, txn.WithOrigin(origin))
	}
	return txn.New(a.adapter, opts...)
}

func newService(a *app, engine *txn.Engine, user string) *production.Service {
	p := a.cfg.Production
	opts := production.Options{
		BatchSize:           decimal.NewFromInt(int64(p.BatchSize)),
		GrindingFreeCovers:  p.GrindingFreeCovers,
		CustomerPrefix:      p.CustomerPrefix,
		ReplenishmentPrefix: p.ReplenishmentPrefix,
	}

	entry := logrus.NewEntry(a.log)
	notifiers := production.MultiNotifier{
		production.EventNotifier{Events: a.events, User: user, Log: entry},
	}
	if a.log.IsLevelEnabled(logrus.DebugLevel) {
		notifiers = append(notifiers, production.LogNotifier{Log: entry})
	}
	return production.NewService(engine, production.StaticUser(user), notifiers, opts, entry)
}

// parseDate accepts YYYY-MM-DD; an empty string means no date.
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return &t, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}
