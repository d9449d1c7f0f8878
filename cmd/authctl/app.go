package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrymomot/authkit/pkg/authapi"
	"github.com/dmitrymomot/authkit/pkg/config"
	"github.com/dmitrymomot/authkit/pkg/environment"
	"github.com/dmitrymomot/authkit/pkg/logger"
	"github.com/dmitrymomot/authkit/pkg/mongo"
	"github.com/dmitrymomot/authkit/pkg/pg"
	"github.com/dmitrymomot/authkit/pkg/redis"
	"github.com/dmitrymomot/authkit/pkg/requestid"
	"github.com/dmitrymomot/authkit/pkg/secrets"
	"github.com/dmitrymomot/authkit/pkg/session"
)

// Store kinds accepted by AUTHCTL_STORE.
const (
	storeFile     = "file"
	storeMemory   = "memory"
	storeRedis    = "redis"
	storePostgres = "postgres"
	storeMongo    = "mongo"
)

var errUnknownStore = errors.New("unknown store")

type Config struct {
	Store     string `env:"AUTHCTL_STORE" envDefault:"file"`
	StorePath string `env:"AUTHCTL_STORE_PATH"`
	Env       string `env:"AUTHCTL_ENV" envDefault:"development"`
	LogLevel  string `env:"AUTHCTL_LOG_LEVEL" envDefault:"warn"`

	// StoreKey is a base64 32-byte key. When set, tokens are encrypted at rest.
	StoreKey string `env:"AUTHCTL_STORE_KEY"`
}

// app is built once per invocation by the root command.
type app struct {
	cfg     Config
	api     authapi.Config
	session session.Config
	logger  *slog.Logger
	closers []func() error
}

func newApp(ctx context.Context, apiURL string, stderr io.Writer) (*app, context.Context, error) {
	a := &app{}
	if err := config.Load(&a.cfg); err != nil {
		return nil, ctx, err
	}
	if err := config.Load(&a.api); err != nil {
		return nil, ctx, err
	}
	if err := config.Load(&a.session); err != nil {
		return nil, ctx, err
	}
	if apiURL != "" {
		a.api.BaseURL = apiURL
	}
	a.api.BaseURL = strings.TrimRight(a.api.BaseURL, "/")

	a.logger = logger.New(
		logger.WithEnvironment(a.cfg.Env, "authctl"),
		logger.WithLevelName(a.cfg.LogLevel),
		logger.WithTextFormatter(),
		logger.WithOutput(stderr),
		logger.WithContextExtractors(
			requestid.LoggerExtractor(),
			environment.LoggerExtractor(),
		),
	)
	ctx = environment.WithContext(ctx, environment.Parse(a.cfg.Env))
	return a, ctx, nil
}

// manager wires the configured store and the API client into a Manager.
func (a *app) manager(ctx context.Context) (*session.Manager, error) {
	client, err := authapi.NewClient(a.api, authapi.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	store, err := a.store(ctx)
	if err != nil {
		return nil, err
	}
	if a.cfg.StoreKey != "" {
		if store, err = a.seal(store); err != nil {
			return nil, err
		}
	}

	cfg := a.session
	if len(cfg.APIBaseURLs) == 0 {
		cfg.APIBaseURLs = []string{a.api.BaseURL + "/"}
	}
	m, err := session.NewFromConfig(cfg,
		session.WithAuthenticator(client),
		session.WithStore(store),
		session.WithLogger(a.logger),
	)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, m.Close)
	return m, nil
}

func (a *app) store(ctx context.Context) (session.Store, error) {
	switch a.cfg.Store {
	case storeFile:
		path := a.cfg.StorePath
		if path == "" {
			dir, err := os.UserConfigDir()
			if err != nil {
				return nil, fmt.Errorf("locate config dir: %w", err)
			}
			path = filepath.Join(dir, "authkit", "session.yaml")
		}
		return session.NewFileStore(path), nil

	case storeMemory:
		return session.NewMemoryStore(), nil

	case storeRedis:
		var cfg redis.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		client, err := redis.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		return redis.NewCredentialStore(client, cfg.KeyPrefix), nil

	case storePostgres:
		var cfg pg.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		pool, err := pg.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		if err := pg.Migrate(ctx, pool, cfg, a.logger); err != nil {
			return nil, err
		}
		return pg.NewCredentialStore(pool, cfg.KeyPrefix), nil

	case storeMongo:
		var cfg mongo.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		client, err := mongo.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { return client.Disconnect(context.Background()) })
		coll := client.Database(cfg.Database).Collection(cfg.Collection)
		return mongo.NewCredentialStore(coll, cfg.KeyPrefix), nil
	}
	return nil, fmt.Errorf("%w %q: use %s, %s, %s, %s or %s",
		errUnknownStore, a.cfg.Store, storeFile, storeMemory, storeRedis, storePostgres, storeMongo)
}

// seal encrypts the pair with a key scoped to the API, so a stored session
// cannot be replayed against another backend.
func (a *app) seal(store session.Store) (session.Store, error) {
	key, err := secrets.ParseKey(a.cfg.StoreKey)
	if err != nil {
		return nil, fmt.Errorf("AUTHCTL_STORE_KEY: %w", err)
	}
	sealer, err := secrets.NewSealer(key, a.api.BaseURL)
	if err != nil {
		return nil, err
	}
	return secrets.NewStore(store, sealer), nil
}

// close runs closers in reverse order.
func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
