package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/config"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const txRetryBaseDelay = 25 * time.Millisecond

// Client is the shared GORM pool plus the transaction policy.
type Client struct {
	conn      *gorm.DB
	txRetries uint64
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// New opens the pool described by cfg. Queries slower than
// cfg.SlowQueryThreshold are logged through logg.
func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database DSN is required")
	}
	driver := driverName(cfg)
	dialector, err := dialectorFor(driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 newGormLogger(logg, cfg.SlowQueryThreshold),
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("opening db connection: %w", err)
	}
	pool, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	tunePool(pool, cfg)

	if logg != nil {
		logg.Info(logg.WithField(ctx, "driver", driver), "database connection established")
	}
	client := FromGorm(conn)
	if cfg.TxRetries > 0 {
		client.txRetries = uint64(cfg.TxRetries)
	}
	return client, nil
}

// tunePool applies the positive limits in cfg; zero keeps database/sql's default.
func tunePool(pool *sql.DB, cfg config.DBConfig) {
	if n := cfg.MaxOpenConns; n > 0 {
		pool.SetMaxOpenConns(n)
	}
	if n := cfg.MaxIdleConns; n > 0 {
		pool.SetMaxIdleConns(n)
	}
	if d := cfg.ConnMaxLifetime; d > 0 {
		pool.SetConnMaxLifetime(d)
	}
	if d := cfg.ConnMaxIdleTime; d > 0 {
		pool.SetConnMaxIdleTime(d)
	}
}

// FromGorm wraps an open connection. Transactions are not retried until
// WithTxRetries says so.
func FromGorm(conn *gorm.DB) *Client {
	return &Client{conn: conn}
}

// WithTxRetries sets how many times WithTx re-runs a transaction that lost a
// serialization race or deadlock.
func (c *Client) WithTxRetries(n uint64) *Client {
	c.txRetries = n
	return c
}

func driverName(cfg config.DBConfig) string {
	if name := strings.ToLower(strings.TrimSpace(cfg.Driver)); name != "" {
		return name
	}
	return DriverPostgres
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case DriverPostgres:
		// simple protocol keeps pgbouncer in transaction mode happy
		return postgres.New(postgres.Config{DSN: dsn, PreferSimpleProtocol: true}), nil
	case DriverSQLite:
		return sqlite.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", driver)
}

func (c *Client) DB() *gorm.DB { return c.conn }

func (c *Client) Ping(ctx context.Context) error {
	pool, err := c.conn.DB()
	if err != nil {
		return err
	}
	return pool.PingContext(ctx)
}

func (c *Client) Close() error {
	pool, err := c.conn.DB()
	if err != nil {
		return err
	}
	return pool.Close()
}

// WithTx runs fn in one transaction, rolled back on error or panic.
// Concurrent checkouts and POS sales debit the same stock rows, so a run
// aborted by a serialization failure or deadlock starts over, up to the
// configured retries.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	run := func(ctx context.Context) error {
		return c.conn.WithContext(ctx).Transaction(fn)
	}
	if c.txRetries == 0 {
		return run(ctx)
	}
	policy := retry.WithMaxRetries(c.txRetries, retry.WithJitterPercent(20, retry.NewExponential(txRetryBaseDelay)))
	return retry.Do(ctx, policy, func(ctx context.Context) error {
		err := run(ctx)
		if IsTxConflict(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
