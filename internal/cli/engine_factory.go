package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/config"
	"github.com/aretw0/arbor/pkg/adapters/file"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/adapters/redis"
	"github.com/aretw0/arbor/pkg/observability"
	"github.com/aretw0/arbor/pkg/persistence/middleware"
	"github.com/aretw0/arbor/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// Options are the flags shared by every command.
type Options struct {
	// Dir overrides groups_dir when set.
	Dir string
	// ConfigPath defaults to arbor.yaml inside Dir.
	ConfigPath string
	Debug      bool
}

// LoadConfig resolves the configuration for opts.
func LoadConfig(opts Options) (config.Config, error) {
	path := opts.ConfigPath
	if path == "" {
		base := opts.Dir
		if base == "" {
			base = "."
		}
		path = filepath.Join(base, config.DefaultPath)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if opts.Dir != "" {
		cfg.GroupsDir = opts.Dir
	}
	return cfg, nil
}

// Stack is an engine together with the resources it owns.
type Stack struct {
	Engine  *arbor.Engine
	Config  config.Config
	Logger  *slog.Logger
	Metrics *observability.Metrics

	closers []func() error
}

// Close releases backend connections.
func (s *Stack) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// createEngine initializes an engine over cfg.GroupsDir with the configured
// session store, middlewares and hooks.
func createEngine(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Stack, error) {
	stack := &Stack{Config: cfg, Logger: logger}

	engineOpts := []arbor.Option{
		arbor.WithLogger(logger),
		arbor.WithPageSize(cfg.PageSize),
		arbor.WithContentDebounce(cfg.ContentDebounce.Duration),
		arbor.WithIdentifierDebounce(cfg.IdentifierDebounce.Duration),
	}

	store, err := setupPersistence(ctx, cfg, stack, &engineOpts)
	if err != nil {
		_ = stack.Close()
		return nil, err
	}
	store, err = wrapStore(cfg, store)
	if err != nil {
		_ = stack.Close()
		return nil, err
	}
	engineOpts = append(engineOpts, arbor.WithSessionStore(store))

	hooks := observability.LogHooks(logger)
	if cfg.Metrics.Enabled {
		stack.Metrics = observability.NewMetrics()
		hooks = observability.Combine(hooks, stack.Metrics.Hooks())
	}
	engineOpts = append(engineOpts, arbor.WithLifecycleHooks(hooks))

	eng, err := arbor.Open(cfg.GroupsDir, engineOpts...)
	if err != nil {
		_ = stack.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	stack.Engine = eng
	return stack, nil
}

// setupPersistence opens the session store. The redis kind also provides the
// session locker and the question bank editors write to.
func setupPersistence(ctx context.Context, cfg config.Config, stack *Stack, engineOpts *[]arbor.Option) (ports.SessionStore, error) {
	switch cfg.Store.Kind {
	case config.StoreFile:
		return file.New(cfg.Store.Path), nil
	case config.StoreRedis:
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		stack.closers = append(stack.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis unreachable at %s: %w", cfg.Redis.Addr, err)
		}

		prefix := cfg.Redis.Prefix
		if prefix == "" {
			prefix = redis.DefaultSessionPrefix
		}
		*engineOpts = append(*engineOpts,
			arbor.WithLocker(redis.NewLocker(client, prefix)),
			arbor.WithQuestionStore(redis.NewQuestionStore(client)),
		)
		return redis.NewFromClient(client, redis.WithPrefix(prefix), redis.WithTTL(cfg.Redis.TTL.Duration)), nil
	default:
		return memory.NewStore(), nil
	}
}

// wrapStore applies PII masking and encryption. Masking runs first so the
// sealed envelope never holds the raw values.
func wrapStore(cfg config.Config, store ports.SessionStore) (ports.SessionStore, error) {
	var mws []middleware.Middleware
	if len(cfg.PIIPatterns) > 0 {
		if _, err := middleware.CompilePatterns(cfg.PIIPatterns); err != nil {
			return nil, err
		}
		mws = append(mws, middleware.NewPIIMiddleware(cfg.PIIPatterns))
	}
	key, err := cfg.Key()
	if err != nil {
		return nil, err
	}
	if key != nil {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
	}
	return middleware.Chain(store, mws...), nil
}

// Open loads the configuration for opts and builds the engine stack.
func Open(ctx context.Context, opts Options, format LogFormat) (*Stack, error) {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return nil, err
	}
	return createEngine(ctx, cfg, createLogger(cfg, opts.Debug, format))
}
