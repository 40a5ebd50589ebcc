/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/schema"

	"github.com/opencollective/ledger/utils"
)

var logger = utils.NewLogger("DATABASE")

// HealthStatus is the outcome of one ping.
type HealthStatus struct {
	Healthy      bool          `json:"healthy"`
	ResponseTime time.Duration `json:"response_time"`
	OpenConns    int           `json:"open_conns"`
	InUse        int           `json:"in_use"`
	LastError    string        `json:"last_error,omitempty"`
	CheckedAt    time.Time     `json:"checked_at"`
}

// Conn owns the pool opened from a Config. database/sql re-dials broken
// connections itself, so the handle returned by DB stays valid until Close.
type Conn struct {
	cfg     ConnectionConfig
	migrate DataMigrateConfig
	db      *bun.DB
	stats   prometheus.Collector

	mu   sync.RWMutex
	last *HealthStatus

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Open connects and, when the configuration asks for it, migrates every
// registered model. Close the returned Conn when done.
func Open(ctx context.Context, cfg *Config) (*Conn, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	c := &Conn{cfg: cfg.ConnectionConfig, migrate: cfg.DataMigrateConfig}
	if c.cfg.ConnectTimeout <= 0 {
		c.cfg.ConnectTimeout = 30 * time.Second
	}
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	if c.migrate.EnableMigrateOnStartup {
		if err := c.Migrate(ctx); err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	c.db.RegisterModel(RegisteredModelInstances()...)
	if c.cfg.HealthCheckInterval > 0 {
		c.stop, c.done = make(chan struct{}), make(chan struct{})
		go c.watch(c.cfg.HealthCheckInterval)
	}
	logger.WithFields(logrus.Fields{
		"type":     c.cfg.Type,
		"host":     c.cfg.Host,
		"dbname":   c.cfg.DBName,
		"migrated": c.migrate.EnableMigrateOnStartup,
	}).Info("database ready")
	return c, nil
}

func (c *Conn) connect(ctx context.Context) error {
	driver, dsn, dialect, err := c.driver()
	if err != nil {
		return err
	}
	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to open %s connection: %w", c.cfg.Type, err)
	}
	maxOpen := c.cfg.MaxOpenConns
	if c.cfg.isSQLite() {
		// sqlite serializes writers; a single connection avoids SQLITE_BUSY.
		maxOpen = 1
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(c.cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(c.cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(c.cfg.ConnMaxIdleTime)

	db := bun.NewDB(sqlDB, dialect)
	pingCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return fmt.Errorf("database connection test failed: %w", err)
	}
	if err := c.addHooks(db); err != nil {
		_ = db.Close()
		return err
	}
	c.db = db
	return nil
}

func (c *Conn) driver() (string, string, schema.Dialect, error) {
	switch c.cfg.Type {
	case "postgres", "postgresql":
		return "postgres", postgresDSN(&c.cfg), pgdialect.New(), nil
	case "mysql":
		return "mysql", mysqlDSN(&c.cfg), mysqldialect.New(), nil
	case "sqlite", "sqlite3":
		dsn := c.cfg.DBName
		if dsn != ":memory:" && filepath.Ext(dsn) == "" {
			dsn += ".db"
		}
		return sqliteshim.ShimName, dsn, sqlitedialect.New(), nil
	}
	return "", "", nil, fmt.Errorf("unsupported database type: %s", c.cfg.Type)
}

func postgresDSN(cfg *ConnectionConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("connect_timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.DBName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func mysqlDSN(cfg *ConnectionConfig) string {
	m := mysql.NewConfig()
	m.User = cfg.Username
	m.Passwd = cfg.Password
	m.Net = "tcp"
	m.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	m.DBName = cfg.DBName
	m.ParseTime = true
	m.Loc = time.UTC
	m.Timeout = cfg.ConnectTimeout
	m.ReadTimeout = cfg.ReadTimeout
	m.WriteTimeout = cfg.WriteTimeout
	m.Params = map[string]string{"charset": "utf8mb4"}
	return m.FormatDSN()
}

func (c *Conn) addHooks(db *bun.DB) error {
	db.AddQueryHook(bundebug.NewQueryHook(bundebug.FromEnv("BUNDEBUG")))
	if c.cfg.EnableQueryLog {
		db.AddQueryHook(NewQueryHook(true, false))
	}
	if c.cfg.SlowQueryTime > 0 {
		db.AddQueryHook(NewSlowQueryHook(c.cfg.SlowQueryTime))
	}
	if !c.cfg.EnableMetrics {
		return nil
	}
	hook, err := NewMetricsHook(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("failed to register query metrics: %w", err)
	}
	db.AddQueryHook(hook)
	if c.stats, err = registerPoolStats(prometheus.DefaultRegisterer, db.DB, c.cfg.DBName); err != nil {
		return fmt.Errorf("failed to register pool metrics: %w", err)
	}
	return nil
}

// DB returns the bun handle, nil once closed.
func (c *Conn) DB() *bun.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

// Migrate creates the registered tables and indexes, plus foreign keys
// when enabled.
func (c *Conn) Migrate(ctx context.Context) error {
	db := c.DB()
	if db == nil {
		return fmt.Errorf("database is closed")
	}
	return NewMigrator(db, c.migrate).Run(ctx)
}

// Health pings the database and reports the pool usage.
func (c *Conn) Health(ctx context.Context) *HealthStatus {
	start := time.Now()
	status := &HealthStatus{CheckedAt: start.UTC()}
	db := c.DB()
	if db == nil {
		status.LastError = "database is closed"
		return status
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := db.PingContext(pingCtx)
	status.ResponseTime = time.Since(start)
	stats := db.DB.Stats()
	status.OpenConns, status.InUse = stats.OpenConnections, stats.InUse
	if err != nil {
		status.LastError = err.Error()
	} else {
		status.Healthy = true
	}

	c.mu.Lock()
	c.last = status
	c.mu.Unlock()
	return status
}

// LastHealth returns the most recent Health result, nil before the first.
func (c *Conn) LastHealth() *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

func (c *Conn) watch(interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	healthy := true
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			status := c.Health(ctx)
			cancel()
			switch {
			case !status.Healthy:
				logger.WithField("error", status.LastError).Warn("database health check failed")
			case !healthy:
				logger.WithField("response_time", status.ResponseTime).Info("database is reachable again")
			}
			healthy = status.Healthy
		}
	}
}

// Close stops the health checks and closes the pool. It is safe to call
// more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		if c.stop != nil {
			close(c.stop)
			<-c.done
		}
		if c.stats != nil {
			prometheus.DefaultRegisterer.Unregister(c.stats)
		}
		c.mu.Lock()
		db := c.db
		c.db = nil
		c.mu.Unlock()
		if db == nil {
			return
		}
		if c.closeErr = db.Close(); c.closeErr != nil {
			logger.WithError(c.closeErr).Error("failed to close database connection")
			return
		}
		logger.Debug("database connection closed")
	})
	return c.closeErr
}
