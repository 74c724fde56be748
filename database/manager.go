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
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/extra/bundebug"
)

type defaultDatabaseManager struct {
	config     *ConnectionConfig
	initConfig DataInitConfig
	registry   ModelRegistry
	logger     Logger

	mu           sync.RWMutex
	db           *bun.DB
	sqlDB        *sql.DB
	lastError    error
	healthStatus *HealthStatus

	stopHealth chan struct{}
	healthDone chan struct{}
}

// NewDatabaseManager returns an AbstractDatabaseManager backed by Bun. A nil
// config selects DefaultConfig. Migrations create the tables of the models in
// the default registry.
func NewDatabaseManager(config *Config) AbstractDatabaseManager {
	if config == nil {
		config = DefaultConfig()
	}
	return &defaultDatabaseManager{
		config:       &config.ConnectionConfig,
		initConfig:   config.DataInitConfig,
		registry:     defaultRegistry,
		logger:       GetLogger(),
		healthStatus: &HealthStatus{},
	}
}

// Connect opens the pool and pings it within ConnectTimeout. A failed ping
// closes the pool again so a retry starts clean.
func (dm *defaultDatabaseManager) Connect(ctx context.Context) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.db != nil {
		return nil
	}

	db, err := dm.open()
	if err != nil {
		dm.lastError = err
		return fmt.Errorf("failed to create database connection: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, dm.connectTimeout())
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		dm.lastError = err
		return fmt.Errorf("database connection test failed: %w", err)
	}

	dm.db = db
	dm.sqlDB = db.DB
	dm.lastError = nil
	if dm.config.HealthCheckInterval > 0 {
		dm.startHealthCheck(dm.config.HealthCheckInterval)
	}

	dm.logger.Info("Database connected successfully",
		"type", normalizeType(dm.config.Type),
		"host", dm.config.Host,
		"dbname", dm.config.DBName,
	)
	return nil
}

func (dm *defaultDatabaseManager) connectTimeout() time.Duration {
	if dm.config.ConnectTimeout > 0 {
		return dm.config.ConnectTimeout
	}
	return 30 * time.Second
}

// open creates the pool for the configured dialect and installs the query hooks.
func (dm *defaultDatabaseManager) open() (*bun.DB, error) {
	spec, err := lookupDialect(dm.config.Type)
	if err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open(spec.driver, spec.dsn(dm.config))
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(dm.config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(dm.config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(dm.config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(dm.config.ConnMaxIdleTime)

	db := bun.NewDB(sqlDB, spec.dialect())
	if dm.config.EnableQueryLog {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.FromEnv("BUNDEBUG"),
		))
	} else {
		db.AddQueryHook(NewQueryHook(os.Stdout, "BUNDEBUG"))
	}
	if dm.config.SlowQueryTime > 0 {
		db.AddQueryHook(&slowQueryHook{slowTime: dm.config.SlowQueryTime, logger: dm.logger})
	}
	return db, nil
}

func (dm *defaultDatabaseManager) Disconnect() error {
	dm.stopHealthCheck()

	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.db == nil {
		return nil
	}
	err := dm.db.Close()
	dm.db = nil
	dm.sqlDB = nil
	if err != nil {
		dm.logger.Error("Failed to close database connection", "error", err)
		return err
	}
	dm.logger.Info("Database connection closed")
	return nil
}

func (dm *defaultDatabaseManager) Ping(ctx context.Context) error {
	db := dm.GetDB()
	if db == nil {
		return errors.New("database not connected")
	}
	return db.PingContext(ctx)
}

func (dm *defaultDatabaseManager) GetDB() *bun.DB {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.db
}

func (dm *defaultDatabaseManager) GetSQLDB() *sql.DB {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.sqlDB
}

// HealthCheck pings the database and records the result.
func (dm *defaultDatabaseManager) HealthCheck(ctx context.Context) *HealthStatus {
	start := time.Now()
	status := &HealthStatus{LastCheckTime: start}

	dm.mu.RLock()
	db, sqlDB := dm.db, dm.sqlDB
	dm.mu.RUnlock()

	if db == nil {
		status.LastError = "Database not initialized"
		dm.recordHealth(status, nil)
		return status
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err := db.PingContext(pingCtx)
	cancel()
	status.ResponseTime = time.Since(start)
	if err != nil {
		status.LastError = err.Error()
	} else {
		status.Healthy = true
		status.Connected = true
	}

	stats := sqlDB.Stats()
	status.ActiveConns = stats.InUse
	status.IdleConns = stats.Idle
	status.MaxOpenConns = stats.MaxOpenConnections

	dm.recordHealth(status, err)
	return status
}

func (dm *defaultDatabaseManager) recordHealth(status *HealthStatus, err error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.healthStatus = status
	dm.lastError = err
}

// startHealthCheck runs HealthCheck every interval until Disconnect. An
// unhealthy result swaps in a new pool when reconnect is enabled. Callers hold dm.mu.
func (dm *defaultDatabaseManager) startHealthCheck(interval time.Duration) {
	if dm.stopHealth != nil {
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	dm.stopHealth, dm.healthDone = stop, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		failures := 0
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			status := dm.HealthCheck(ctx)
			cancel()
			if status.Healthy || !dm.config.EnableReconnect {
				failures = 0
				continue
			}
			if failures >= dm.config.MaxReconnectTries {
				dm.logger.Error("Max reconnect attempts reached, waiting for the database to recover", "tries", failures)
				continue
			}
			failures++
			dm.logger.Info("Starting database reconnect", "try", failures)
			ctx, cancel = context.WithTimeout(context.Background(), dm.connectTimeout())
			if err := dm.reconnectDB(ctx); err != nil {
				dm.logger.Error("Reconnect failed", "error", err, "try", failures)
			} else {
				failures = 0
				dm.logger.Info("Reconnect succeeded")
			}
			cancel()
		}
	}()
}

// reconnectDB replaces the pool without stopping the health loop that calls it.
func (dm *defaultDatabaseManager) reconnectDB(ctx context.Context) error {
	dm.mu.Lock()
	old := dm.db
	dm.db, dm.sqlDB = nil, nil
	dm.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}

	dm.mu.Lock()
	defer dm.mu.Unlock()
	db, err := dm.open()
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	db.RegisterModel(modelInstances(dm.registry)...)
	dm.db, dm.sqlDB = db, db.DB
	return nil
}

func (dm *defaultDatabaseManager) stopHealthCheck() {
	dm.mu.Lock()
	stop, done := dm.stopHealth, dm.healthDone
	dm.stopHealth, dm.healthDone = nil, nil
	dm.mu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}
}

func (dm *defaultDatabaseManager) GetStats() *DBStats {
	sqlDB := dm.GetSQLDB()
	if sqlDB == nil {
		return &DBStats{}
	}
	stats := sqlDB.Stats()
	return &DBStats{
		MaxOpenConns:      stats.MaxOpenConnections,
		OpenConns:         stats.OpenConnections,
		InUse:             stats.InUse,
		Idle:              stats.Idle,
		WaitCount:         stats.WaitCount,
		WaitDuration:      stats.WaitDuration,
		MaxIdleClosed:     stats.MaxIdleClosed,
		MaxIdleTimeClosed: stats.MaxIdleTimeClosed,
		MaxLifetimeClosed: stats.MaxLifetimeClosed,
	}
}

func (dm *defaultDatabaseManager) RunMigrations(ctx context.Context) error {
	mm, err := dm.migrationManager()
	if err != nil {
		return err
	}
	return mm.RunMigrations(ctx)
}

func (dm *defaultDatabaseManager) InitData(ctx context.Context) error {
	mm, err := dm.migrationManager()
	if err != nil {
		return err
	}
	return mm.InitData(ctx)
}

func (dm *defaultDatabaseManager) migrationManager() (*MigrationManager, error) {
	db := dm.GetDB()
	if db == nil {
		return nil, errors.New("database not initialized")
	}
	mm := NewMigrationManager(db, dm.logger)
	mm.SetRegistry(dm.registry)
	mm.SetDataInit(dm.initConfig)
	return mm, nil
}

func (dm *defaultDatabaseManager) SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.logger = logger
}
