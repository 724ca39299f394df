package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"farm-advisor/pkg/logging"
	"farm-advisor/pkg/metrics"
)

// Supported drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds database connection configuration
type Config struct {
	Driver          string
	URL             string // full DSN/URL; overrides the discrete fields when set
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectRetries  int
}

// DSN returns the driver-specific data source name
func (c *Config) DSN() string {
	switch c.Driver {
	case DriverSQLite:
		path := c.SQLitePath
		if c.URL != "" {
			path = c.URL
		}
		return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	default:
		if c.URL != "" {
			return c.URL
		}
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host,
			c.Port,
			c.User,
			c.Password,
			c.Database,
			c.SSLMode,
		)
	}
}

// DB wraps sqlx.DB with monitoring and metrics
type DB struct {
	db      *sqlx.DB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	config  *Config

	stop     chan struct{}
	stopOnce sync.Once
	monitor  sync.WaitGroup
}

// Open creates a new database connection, retrying with exponential
// backoff until the server answers a ping.
func Open(cfg *Config, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (*DB, error) {
	if cfg.Driver != DriverPostgres && cfg.Driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sqlx.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Configure connection pool
	maxOpen := cfg.MaxOpenConns
	if cfg.Driver == DriverSQLite {
		// SQLite serializes writers; a single connection avoids SQLITE_BUSY churn.
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	retries := cfg.ConnectRetries
	if retries < 1 {
		retries = 1
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second

	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if pingErr := db.PingContext(ctx); pingErr != nil {
			logger.Warn(ctx, "[DB_INIT_RETRY] Database not reachable yet", logging.Fields{
				"driver":  cfg.Driver,
				"attempt": attempt,
				"error":   pingErr.Error(),
			})
			return pingErr
		}
		return nil
	}, backoff.WithMaxRetries(bo, uint64(retries-1)))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info(context.Background(), "[DB_INIT] Database connection established", logging.Fields{
		"driver":            cfg.Driver,
		"host":              cfg.Host,
		"database":          cfg.Database,
		"max_open_conns":    maxOpen,
		"max_idle_conns":    cfg.MaxIdleConns,
		"conn_max_lifetime": cfg.ConnMaxLifetime.String(),
		"attempts":          attempt,
	})

	d := &DB{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
		config:  cfg,
		stop:    make(chan struct{}),
	}

	// Start monitoring connection pool
	d.monitor.Add(1)
	go d.monitorConnectionPool(10 * time.Second)

	return d, nil
}

// Close stops the pool monitor and closes the database connection
func (d *DB) Close() error {
	d.stopOnce.Do(func() { close(d.stop) })
	d.monitor.Wait()

	d.logger.Info(context.Background(), "[DB_CLOSE] Closing database connection", logging.Fields{
		"driver": d.config.Driver,
	})
	return d.db.Close()
}

// DB returns the underlying sqlx.DB instance
func (d *DB) DB() *sqlx.DB {
	return d.db
}

// Driver returns the configured driver name
func (d *DB) Driver() string {
	return d.config.Driver
}

// Rebind converts a query written with '?' placeholders to the driver's bindvar style
func (d *DB) Rebind(query string) string {
	return d.db.Rebind(query)
}

// ExecContext executes a command with context and metrics
func (d *DB) ExecContext(ctx context.Context, queryType, query string, args ...interface{}) (sql.Result, error) {
	timer := time.Now()
	defer func() {
		duration := time.Since(timer)
		d.metrics.DBQueryDuration.WithLabelValues(queryType).Observe(duration.Seconds())

		d.logger.Debug(ctx, "[DB_EXEC] Command executed", logging.Fields{
			"query_type":  queryType,
			"duration_ms": duration.Milliseconds(),
		})
	}()

	result, err := d.db.ExecContext(ctx, d.db.Rebind(query), args...)
	if err != nil {
		d.metrics.RecordDBError("exec_error")
		d.logger.Error(ctx, "[DB_EXEC_ERROR] Command failed", logging.Fields{
			"query_type": queryType,
		}, err)
		return nil, err
	}

	return result, nil
}

// InsertReturningID executes an INSERT ... RETURNING id and returns the new id
func (d *DB) InsertReturningID(ctx context.Context, queryType, query string, args ...interface{}) (int64, error) {
	timer := time.Now()
	defer func() {
		d.metrics.DBQueryDuration.WithLabelValues(queryType).Observe(time.Since(timer).Seconds())
	}()

	var id int64
	if err := d.db.QueryRowxContext(ctx, d.db.Rebind(query), args...).Scan(&id); err != nil {
		d.metrics.RecordDBError("insert_error")
		d.logger.Error(ctx, "[DB_INSERT_ERROR] Insert failed", logging.Fields{
			"query_type": queryType,
		}, err)
		return 0, err
	}

	return id, nil
}

// GetContext executes a query that returns a single row
func (d *DB) GetContext(ctx context.Context, queryType string, dest interface{}, query string, args ...interface{}) error {
	timer := time.Now()
	defer func() {
		d.metrics.DBQueryDuration.WithLabelValues(queryType).Observe(time.Since(timer).Seconds())
	}()

	err := d.db.GetContext(ctx, dest, d.db.Rebind(query), args...)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		d.metrics.RecordDBError("get_error")
		d.logger.Error(ctx, "[DB_GET_ERROR] Get query failed", logging.Fields{
			"query_type": queryType,
		}, err)
	}

	return err
}

// SelectContext executes a query that returns multiple rows
func (d *DB) SelectContext(ctx context.Context, queryType string, dest interface{}, query string, args ...interface{}) error {
	timer := time.Now()
	defer func() {
		d.metrics.DBQueryDuration.WithLabelValues(queryType).Observe(time.Since(timer).Seconds())
	}()

	err := d.db.SelectContext(ctx, dest, d.db.Rebind(query), args...)
	if err != nil {
		d.metrics.RecordDBError("select_error")
		d.logger.Error(ctx, "[DB_SELECT_ERROR] Select query failed", logging.Fields{
			"query_type": queryType,
		}, err)
		return err
	}

	return nil
}

// BeginTx begins a new transaction
func (d *DB) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		d.metrics.RecordDBError("transaction_begin_error")
		d.logger.Error(ctx, "[DB_TX_ERROR] Failed to begin transaction", logging.Fields{}, err)
		return nil, err
	}

	return tx, nil
}

// monitorConnectionPool periodically updates connection pool metrics until Close
func (d *DB) monitorConnectionPool(interval time.Duration) {
	defer d.monitor.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.samplePool()
		}
	}
}

func (d *DB) samplePool() {
	stats := d.db.Stats()

	d.metrics.UpdateDBConnectionPool(
		stats.InUse,
		stats.Idle,
		stats.OpenConnections,
	)

	if stats.MaxOpenConnections <= 0 {
		return
	}

	// Log warning if connection pool is near capacity
	utilization := float64(stats.InUse) / float64(stats.MaxOpenConnections)
	if utilization > 0.8 {
		d.logger.Warn(context.Background(), "[DB_POOL_WARNING] Connection pool utilization high", logging.Fields{
			"in_use":      stats.InUse,
			"idle":        stats.Idle,
			"total":       stats.OpenConnections,
			"max_open":    stats.MaxOpenConnections,
			"utilization": fmt.Sprintf("%.2f%%", utilization*100),
		})
	}
}

// HealthCheck performs a database health check
func (d *DB) HealthCheck(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}
