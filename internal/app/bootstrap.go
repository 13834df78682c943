package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/redis/go-redis/v9"

	"newsdesk/apps/backend/internal/adapter/storage"
	"newsdesk/apps/backend/internal/config"
)

type Dependencies struct {
	DB          *sql.DB
	Redis       *redis.Client
	Objects     *storage.MinioStore
	NSQProducer *nsq.Producer
}

func (d *Dependencies) Close() {
	if d.NSQProducer != nil {
		d.NSQProducer.Stop()
	}
	if d.Redis != nil {
		d.Redis.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
}

func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second

	// Database
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := WithRetry(ctx, "db", cfg.BootstrapRetryAttempts, retryDelay, db.PingContext); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	// Migrations
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migration driver error: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(cfg.MigrationPath, "postgres", driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migration instance error: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		db.Close()
		return nil, fmt.Errorf("migration up error: %w", err)
	}
	slog.Info("migrations applied successfully")

	deps := &Dependencies{DB: db}

	// Redis
	deps.Redis = redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := WithRetry(ctx, "redis", cfg.BootstrapRetryAttempts, retryDelay, func(ctx context.Context) error {
		return deps.Redis.Ping(ctx).Err()
	}); err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// Object storage is only needed by the pipeline workers.
	if cfg.S3Bucket != "" {
		deps.Objects, err = storage.NewMinioStore(storage.Config{
			Endpoint:      cfg.S3Endpoint,
			Region:        cfg.S3Region,
			Bucket:        cfg.S3Bucket,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			UseSSL:        cfg.S3UseSSL,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("object storage client error: %w", err)
		}
		if err := WithRetry(ctx, "object storage", cfg.BootstrapRetryAttempts, retryDelay, deps.Objects.EnsureBucket); err != nil {
			deps.Close()
			return nil, fmt.Errorf("object storage error: %w", err)
		}
	}

	// NSQ Producer
	deps.NSQProducer, err = nsq.NewProducer(cfg.NSQDHost, nsq.NewConfig())
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("nsq producer error: %w", err)
	}

	createTopics(ctx, cfg.NSQDHTTP)

	return deps, nil
}

// createTopics pre-creates every topic so lookupd knows them before the
// first publish. Failures are logged only.
func createTopics(ctx context.Context, nsqdHTTP string) {
	client := &http.Client{Timeout: 5 * time.Second}
	create := func(topic string) {
		u := fmt.Sprintf("http://%s/topic/create?topic=%s", nsqdHTTP, url.QueryEscape(topic))
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
		if err != nil {
			slog.Warn("failed to build NSQ topic request", "topic", topic, "error", err)
			return
		}
		resp, err := client.Do(req) // #nosec G107 -- URL is built from internal NSQ config, not user input
		if err != nil {
			slog.Warn("failed to create NSQ topic", "topic", topic, "error", err)
			return
		}
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close NSQ topic creation response body", "error", closeErr)
		}
	}

	go func() {
		time.Sleep(2 * time.Second)
		for _, topic := range config.Topics {
			create(topic)
		}
	}()
}

// WithRetry calls fn up to attempts times, sleeping delay between failures.
func WithRetry(ctx context.Context, what string, attempts int, delay time.Duration, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if i < attempts-1 {
			slog.Warn("dependency not ready, retrying...", "dependency", what, "attempt", i+1, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return err
}
