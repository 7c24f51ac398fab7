package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const (
	defaultConnTimeout   = 5 * time.Second
	defaultMaxRetries    = 3
	defaultRetryInterval = time.Second
)

type DBConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	Database     string `toml:"database"`
	SSLMode      string `toml:"ssl_mode"`
	PoolSize     int    `toml:"pool_size"`
	MaxIdleConns int    `toml:"max_idle_conns"`
	MaxLifetime  int    `toml:"max_lifetime"`
}

// DB pairs the pgx pool used for raw statements with the bun handle used by
// repositories. pool is nil when the DB wraps a non-Postgres bun handle.
type DB struct {
	pool  *pgxpool.Pool
	bunDB *bun.DB
}

func New(ctx context.Context, cfg DBConfig) (*DB, error) {
	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))

	var err error
	for i := 0; i < defaultMaxRetries; i++ {
		var conn net.Conn
		conn, err = net.DialTimeout("tcp", addr, defaultConnTimeout)
		if err == nil {
			conn.Close()
			break
		}
		slog.Warn("Database not reachable yet",
			slog.String("type", "db"),
			slog.String("addr", addr),
			slog.Int("attempt", i+1),
			slog.Any("error", err),
		)
		time.Sleep(defaultRetryInterval)
	}
	if err != nil {
		return nil, fmt.Errorf("database server unreachable after %d attempts: %w", defaultMaxRetries, err)
	}

	poolConfig, err := pgxpool.ParseConfig(buildConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if cfg.PoolSize > 0 {
		poolConfig.MaxConns = int32(cfg.PoolSize)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = time.Duration(cfg.MaxLifetime) * time.Second
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(buildConnString(cfg))))
	if cfg.PoolSize > 0 {
		sqldb.SetMaxOpenConns(cfg.PoolSize)
	}

	bunDB := bun.NewDB(sqldb, pgdialect.New())
	bunDB.AddQueryHook(NewQueryHook(slowQueryThreshold))
	return &DB{pool: pool, bunDB: bunDB}, nil
}

// Wrap builds a DB around an existing bun handle, e.g. an in-memory sqlite
// database.
func Wrap(bunDB *bun.DB) *DB {
	return &DB{bunDB: bunDB}
}

func buildConnString(cfg DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = os.Getenv("PG_SSLMODE")
	}
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s&connect_timeout=5",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, sslMode,
	)
}

func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

func (db *DB) BunDB() *bun.DB {
	return db.bunDB
}

// IsPostgres reports whether row locks and Postgres-only DDL are available.
func (db *DB) IsPostgres() bool {
	return db.bunDB.Dialect().Name() == dialect.PG
}

func (db *DB) ExecWithLog(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	if db.pool == nil {
		return pgconn.CommandTag{}, fmt.Errorf("raw exec requires a postgres pool")
	}

	start := time.Now()
	result, err := db.pool.Exec(ctx, sql, args...)
	duration := time.Since(start)

	if err != nil {
		slog.Error("Query failed",
			slog.String("type", "db"),
			slog.String("operation", "exec"),
			slog.String("query", sql),
			slog.Any("args", args),
			slog.Duration("took", duration),
			slog.Any("error", err),
		)
		return result, err
	}

	slog.Debug("Query executed",
		slog.String("type", "db"),
		slog.String("operation", "exec"),
		slog.String("query", sql),
		slog.Duration("took", duration),
		slog.Int64("affected_rows", result.RowsAffected()),
	)
	return result, nil
}

// Ping checks both connection paths.
func (db *DB) Ping(ctx context.Context) error {
	if db.pool != nil {
		if err := db.pool.Ping(ctx); err != nil {
			return fmt.Errorf("pool ping failed: %w", err)
		}
	}
	if err := db.bunDB.PingContext(ctx); err != nil {
		return fmt.Errorf("bun ping failed: %w", err)
	}
	return nil
}

func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
	if db.bunDB != nil {
		db.bunDB.Close()
	}
}

// InitializeSchema creates tables and indexes, applies additive migrations
// and seeds the draw catalog.
func (db *DB) InitializeSchema(ctx context.Context) error {
	start := time.Now()

	if err := CreateSchema(ctx, db.bunDB); err != nil {
		return err
	}
	if err := db.MigrateSchema(ctx); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	if err := SeedDrawRewards(ctx, db.bunDB); err != nil {
		return fmt.Errorf("failed to seed draw rewards: %w", err)
	}

	slog.Info("Database schema ready",
		slog.String("type", "db"),
		slog.Int("schema_version", schemaVersion),
		slog.Duration("took", time.Since(start)),
	)
	return nil
}

// MigrateSchema applies column additions for databases created by earlier
// releases. Fresh databases already have every column.
func (db *DB) MigrateSchema(ctx context.Context) error {
	if db.pool == nil {
		return nil
	}

	statements := []string{
		`ALTER TABLE ledger_entries ADD COLUMN IF NOT EXISTS effective_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP;`,
		`ALTER TABLE ledger_entries ADD COLUMN IF NOT EXISTS audit BOOLEAN NOT NULL DEFAULT false;`,
		`ALTER TABLE ledger_entries ADD COLUMN IF NOT EXISTS category VARCHAR NOT NULL DEFAULT 'admin';`,
		`ALTER TABLE draw_rewards ADD COLUMN IF NOT EXISTS period_cap INTEGER NOT NULL DEFAULT 0;`,
		`ALTER TABLE quest_records ADD COLUMN IF NOT EXISTS manual BOOLEAN NOT NULL DEFAULT true;`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecWithLog(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
