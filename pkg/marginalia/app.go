package marginalia

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/marginalia-app/marginalia/pkg/engine"
	"github.com/marginalia-app/marginalia/pkg/logger"
	"github.com/marginalia-app/marginalia/pkg/outbox"
	"github.com/marginalia-app/marginalia/pkg/store"
	"github.com/marginalia-app/marginalia/pkg/store/memory"
	"github.com/marginalia-app/marginalia/pkg/store/postgres"
	"github.com/marginalia-app/marginalia/pkg/store/surrealdb"
)

// App holds the application state.
type App struct {
	store    store.Store
	engine   *engine.Engine
	config   *Config
	logger   zerolog.Logger
	logData  *logger.LogData
	readOnly atomic.Bool
}

// New creates the application: logger, store and engine.
func New(ctx context.Context, config *Config) (*App, error) {
	logData, err := logger.New().
		FromPath(config.Log.Path).
		WithLevel(config.Log.Level).
		Make()
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}

	st, err := openStore(ctx, config.Store)
	if err != nil {
		_ = logData.Close()
		return nil, err
	}
	logData.Logger.Info().Str("backend", string(config.Store.Backend)).Msg("store connected")

	app := NewWithStore(config, st, logData.Logger)
	app.logData = logData
	return app, nil
}

// NewWithStore creates the application on an already opened store.
func NewWithStore(config *Config, st store.Store, log zerolog.Logger) *App {
	app := &App{config: config, logger: log}
	app.readOnly.Store(config.ReadOnly)

	if store.HasPartialWrites(st) {
		log.Warn().Str("backend", string(config.Store.Backend)).
			Msg("store cannot roll back failed commands; a failure after a write may leave it without its activity")
	}

	// Wrap the store with read-only protection
	app.store = store.NewReadOnlyStore(st, app.IsReadOnly)
	app.engine = engine.New(app.store, outbox.New(config.BaseURL),
		engine.WithLogger(log.With().Str("component", "engine").Logger()),
	)
	return app
}

func openStore(ctx context.Context, config StoreConfig) (store.Store, error) {
	switch config.Backend {
	case BackendMemory:
		return memory.New(), nil
	case BackendPostgres:
		st, err := postgres.NewPostgresStore(config.Postgres.DSN, postgres.Options{
			MaxOpenConns: config.Postgres.MaxOpenConns,
			MaxIdleConns: config.Postgres.MaxIdleConns,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		return st, nil
	case BackendSurrealDB:
		st, err := surrealdb.NewSurrealStore(ctx, surrealdb.Config{
			URL:       config.SurrealDB.URL,
			Namespace: config.SurrealDB.Namespace,
			Database:  config.SurrealDB.Database,
			Username:  config.SurrealDB.Username,
			Password:  config.SurrealDB.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
		}
		return st, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", config.Backend)
}

// Close closes the application and its resources
func (a *App) Close() error {
	var err error
	if a.store != nil {
		err = a.store.Close()
	}
	if a.logData != nil {
		if cerr := a.logData.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Store returns the underlying store (useful for testing)
func (a *App) Store() store.Store {
	return a.store
}

// SetReadOnly switches maintenance mode. While on, every command fails
// before it can write.
func (a *App) SetReadOnly(readOnly bool) {
	a.readOnly.Store(readOnly)
	a.logger.Info().Bool("readOnly", readOnly).Msg("read-only mode changed")
}

func (a *App) IsReadOnly() bool {
	return a.readOnly.Load()
}
