package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/family-calendar/internal/application"
	"github.com/example/family-calendar/internal/config"
	"github.com/example/family-calendar/internal/notify"
	"github.com/example/family-calendar/internal/persistence/sqlstore"
	"github.com/example/family-calendar/internal/timecodec"
)

// app holds the services every command builds on.
type app struct {
	cfg      config.Config
	logger   zerolog.Logger
	codec    *timecodec.Codec
	pool     *sqlstore.ConnectionPool
	redis    *redis.Client
	store    *application.RepositoryStore
	calendar *application.CalendarService
	users    *application.UserService
	notifier application.Notifier
}

type appOptions struct {
	// Observer receives expansion statistics; nil disables them.
	Observer application.ExpansionObserver
	// Integrations enables Redis and ntfy when they are configured.
	Integrations bool
}

// openApp connects storage, applies migrations and wires the services.
// The caller must Close the result.
func openApp(ctx context.Context, cfg config.Config, logger zerolog.Logger, opts appOptions) (*app, error) {
	codec, err := timecodec.Load(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	pool, err := sqlstore.Open(ctx, sqlstore.Config{
		Dialect: sqlstore.Dialect(cfg.DBDriver),
		DSN:     cfg.DSN(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, codec: codec, pool: pool}

	if err := pool.Migrate(ctx, logger); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	deps := application.CalendarDeps{
		Codec:          codec,
		Observer:       opts.Observer,
		IdempotencyTTL: cfg.IdempotencyTTL,
		CacheSize:      cfg.OccurrenceCacheSize,
		CacheTTL:       cfg.OccurrenceCacheTTL,
		Logger:         logger,
		IDGenerator:    uuid.NewString,
	}

	if opts.Integrations {
		if err := a.connectIntegrations(ctx, &deps); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.store = application.NewRepositoryStore(
		sqlstore.NewEventRepository(pool),
		sqlstore.NewUserRepository(pool),
	)
	deps.Events = a.store
	deps.Users = a.store
	a.calendar = application.NewCalendarService(deps)
	a.users = application.NewUserService(a.store, logger, uuid.NewString, nil)
	return a, nil
}

func (a *app) connectIntegrations(ctx context.Context, deps *application.CalendarDeps) error {
	if a.cfg.RedisURL != "" {
		client, err := notify.NewRedisClient(ctx, a.cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.redis = client
		deps.Publisher = notify.NewRedisPublisher(client, a.cfg.RedisChannel)
		deps.Idempotency = notify.NewRedisIdempotencyStore(client)
		a.logger.Info().Str("channel", a.cfg.RedisChannel).Msg("publishing changes to redis")
	}

	if a.cfg.NtfyTopic != "" {
		notifier, err := notify.NewNtfyNotifier(notify.NtfyConfig{BaseURL: a.cfg.NtfyURL, Topic: a.cfg.NtfyTopic})
		if err != nil {
			return err
		}
		a.notifier = notifier
		deps.Notifier = notifier
		a.logger.Info().Str("topic", a.cfg.NtfyTopic).Msg("sending notifications via ntfy")
	}
	return nil
}

func (a *app) Close() {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.pool != nil {
		errs = append(errs, a.pool.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Error().Err(err).Msg("failed to close resources")
	}
}
