package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	businessflow "github.com/amirphl/raiot-portal/business_flow"
	"github.com/amirphl/raiot-portal/config"
	"github.com/amirphl/raiot-portal/repository"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// components holds everything the subcommands share
type components struct {
	cfg        *config.Config
	logger     *log.Logger
	db         *gorm.DB
	redis      *redis.Client
	store      repository.CounterStore
	memberRepo repository.MemberRepository
	auditRepo  repository.AuditLogRepository
	uniqueID   businessflow.UniqueIDFlow
	closers    []io.Closer
}

// initializeComponents connects to the database and the configured counter store and builds the flows
func initializeComponents(cfg *config.Config, logger *log.Logger) (*components, error) {
	c := &components{cfg: cfg, logger: logger}

	db, err := initializeDatabase(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	c.db = db

	if cfg.Counter.Backend == config.CounterBackendRedis {
		rc, err := initializeCache(cfg.Cache, logger)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.redis = rc
		c.closers = append(c.closers, rc)
	}

	store, closer, err := initializeCounterStore(cfg, db, c.redis)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.store = store
	if closer != nil {
		c.closers = append(c.closers, closer)
	}
	logger.Printf("Counter store initialized: backend=%s counter=%s", store.Backend(), cfg.Counter.Name)

	c.memberRepo = repository.NewMemberRepository(db)
	c.auditRepo = repository.NewAuditLogRepository(db)
	c.uniqueID = businessflow.NewUniqueIDFlow(
		store,
		c.memberRepo,
		c.auditRepo,
		businessflow.UniqueIDConfig{
			CounterName: cfg.Counter.Name,
			Format: businessflow.UniqueIDFormat{
				Prefix: cfg.Counter.UniqueIDPrefix,
				Width:  cfg.Counter.UniqueIDPadWidth,
			},
		},
		logger,
	)

	return c, nil
}

// Close releases the counter store, redis and the database pool
func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			c.logger.Printf("close: %v", err)
		}
	}
	if c.db != nil {
		if sqlDB, err := c.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logger *log.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{}
	if cfg.SlowQueryLog {
		gormCfg.Logger = gormlogger.New(logger, gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig, logger *log.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Printf("Redis connection established (db=%d)", cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis so connectivity loss shows up in the logs
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, logger *log.Logger) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(monitorCtx, 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					logger.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeCounterStore builds the configured CounterStore. The closer is nil when
// the store shares a connection owned elsewhere.
func initializeCounterStore(cfg *config.Config, db *gorm.DB, rc *redis.Client) (repository.CounterStore, io.Closer, error) {
	policy := repository.RetryPolicy{
		MaxAttempts:     uint(cfg.Counter.MaxAttempts),
		InitialInterval: cfg.Counter.RetryInitialInterval,
		MaxInterval:     cfg.Counter.RetryMaxInterval,
	}

	switch cfg.Counter.Backend {
	case config.CounterBackendPostgres:
		return repository.NewPostgresCounterStore(db, policy), nil, nil
	case config.CounterBackendRedis:
		if rc == nil {
			return nil, nil, fmt.Errorf("redis counter store requires a redis client")
		}
		return repository.NewRedisCounterStore(rc, cfg.Cache.RedisPrefix, policy), nil, nil
	case config.CounterBackendBadger:
		store, err := repository.OpenBadgerCounterStore(cfg.Counter.BadgerDir, policy)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unsupported counter backend %q", cfg.Counter.Backend)
	}
}
