// Package bootstrap connects the process to its backing services and assembles the
// notification pipeline shared by the HTTP server and the CLI tools.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"huddle/internal/cache"
	"huddle/internal/config"
	"huddle/internal/database"
	"huddle/internal/featureflags"
	"huddle/internal/middleware"
	"huddle/internal/notifications"
	"huddle/internal/repository"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Runtime holds the long-lived collaborators of a running process.
type Runtime struct {
	DB         *gorm.DB
	Redis      *redis.Client
	Store      *repository.Store
	Flags      *featureflags.Manager
	Hub        *notifications.Hub
	Notifier   *notifications.Notifier
	Publisher  *notifications.Publisher
	Dispatcher *notifications.Dispatcher

	cancel context.CancelFunc
}

// Options control runtime initialization behavior.
type Options struct {
	// Pusher overrides the push provider chosen from config.
	Pusher notifications.Pusher
}

// InitRuntime connects to the database and Redis and builds the runtime on top.
// Redis is optional; without it caching, rate limits and cross-instance fan-out
// are disabled.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	return NewRuntime(ctx, cfg, db, cache.GetClient(), opts)
}

// NewRuntime assembles a runtime from open connections. rdb may be nil.
func NewRuntime(ctx context.Context, cfg *config.Config, db *gorm.DB, rdb *redis.Client, opts Options) (*Runtime, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}

	store := repository.NewStore(db)
	if err := ensureAdmins(ctx, cfg, store); err != nil {
		return nil, fmt.Errorf("promote configured admins: %w", err)
	}

	pusher := opts.Pusher
	if pusher == nil {
		var err error
		pusher, err = newPusher(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	rt := &Runtime{
		DB:    db,
		Redis: rdb,
		Store: store,
		Flags: featureflags.NewManager(cfg.FeatureFlags),
		Hub:   notifications.NewHub(),
	}
	if rdb != nil {
		rt.Notifier = notifications.NewNotifier(rdb)
	}
	rt.Publisher = notifications.NewPublisher(rt.Hub, rt.Notifier)
	rt.Dispatcher = notifications.NewDispatcher(notifications.DispatcherDeps{
		Notifications: store.Notifications,
		Devices:       store.Devices,
		Users:         store.Users,
		Pusher:        pusher,
		Publisher:     rt.Publisher,
		Flags:         rt.Flags,
	}, dispatcherConfig(cfg))

	return rt, nil
}

// Start runs the push workers and, with Redis, the pub/sub subscriber that feeds
// the local websocket hub.
func (r *Runtime) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.Dispatcher.Start(ctx)

	if r.Notifier.Enabled() {
		if err := r.Hub.StartWiring(ctx, r.Notifier); err != nil {
			middleware.Logger.Error("notification hub wiring failed", "error", err)
		}
	}
}

// Shutdown drains queued pushes, closes sockets and releases connections.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	var errs []error
	if err := r.Dispatcher.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop dispatcher: %w", err))
	}
	if err := r.Hub.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close %s: %w", r.Hub.Name(), err))
	}
	if sqlDB, err := r.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

func newPusher(ctx context.Context, cfg *config.Config) (notifications.Pusher, error) {
	switch cfg.PushProvider {
	case "fcm":
		p, err := notifications.NewFCMPusher(ctx, cfg.FCMProjectID, cfg.FCMCredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("init fcm pusher: %w", err)
		}
		return p, nil
	default:
		return notifications.NewLogPusher(), nil
	}
}

func dispatcherConfig(cfg *config.Config) notifications.DispatcherConfig {
	return notifications.DispatcherConfig{
		Workers:     cfg.PushWorkers,
		QueueSize:   cfg.PushQueueSize,
		RatePerSec:  cfg.PushRatePerSec,
		Burst:       cfg.PushBurst,
		PushTimeout: time.Duration(cfg.PushTimeoutSeconds) * time.Second,
	}
}

// ensureAdmins promotes the users listed in ADMIN_EMAILS. Addresses without an
// account are skipped so the list can be set before the operator signs up.
func ensureAdmins(ctx context.Context, cfg *config.Config, store *repository.Store) error {
	for _, email := range cfg.AdminEmailList() {
		user, err := store.Users.GetByEmail(ctx, email)
		if err != nil {
			return err
		}
		if user == nil {
			middleware.Logger.Warn("admin email has no account yet", "email", email)
			continue
		}
		if user.IsAdmin {
			continue
		}
		user.IsAdmin = true
		if err := store.Users.Update(ctx, user); err != nil {
			return err
		}
		middleware.Logger.Info("promoted configured admin", "user_id", user.ID)
	}
	return nil
}
