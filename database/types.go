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

import "time"

// ConnectionConfig describes how to reach the database and size its pool.
type ConnectionConfig struct {
	Type                string        `koanf:"type" json:"type" validate:"required,oneof=postgres postgresql mysql sqlite sqlite3"`
	Host                string        `koanf:"host" json:"host"`
	Port                int           `koanf:"port" json:"port"`
	Username            string        `koanf:"username" json:"username"`
	Password            string        `koanf:"password" json:"-"`
	DBName              string        `koanf:"dbname" json:"dbname" validate:"required"`
	SSLMode             string        `koanf:"sslmode" json:"sslmode"`
	MaxIdleConns        int           `koanf:"max_idle_conns" json:"max_idle_conns"`
	MaxOpenConns        int           `koanf:"max_open_conns" json:"max_open_conns"`
	ConnMaxLifetime     time.Duration `koanf:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime     time.Duration `koanf:"conn_max_idle_time" json:"conn_max_idle_time"`
	ConnectTimeout      time.Duration `koanf:"connect_timeout" json:"connect_timeout"`
	ReadTimeout         time.Duration `koanf:"read_timeout" json:"read_timeout"`
	WriteTimeout        time.Duration `koanf:"write_timeout" json:"write_timeout"`
	HealthCheckInterval time.Duration `koanf:"health_check_interval" json:"health_check_interval"`
	EnableQueryLog      bool          `koanf:"enable_query_log" json:"enable_query_log"`
	EnableMetrics       bool          `koanf:"enable_metrics" json:"enable_metrics"`
	SlowQueryTime       time.Duration `koanf:"slow_query_time" json:"slow_query_time"`
}

func (c *ConnectionConfig) isSQLite() bool {
	return c.Type == "sqlite" || c.Type == "sqlite3"
}

// DataMigrateConfig controls what Open does to the schema.
type DataMigrateConfig struct {
	EnableMigrateOnStartup bool   `koanf:"enable_migrate_on_startup" json:"enable_migrate_on_startup"`
	EnableForeignKey       bool   `koanf:"enable_foreign_key" json:"enable_foreign_key"`
	ForeignKeyFile         string `koanf:"foreign_key_file" json:"foreign_key_file"`
}

type Config struct {
	ConnectionConfig  ConnectionConfig  `koanf:"connection" json:"connection"`
	DataMigrateConfig DataMigrateConfig `koanf:"migrate" json:"migrate"`
}

// DefaultConfig targets a local postgres and migrates on startup.
func DefaultConfig() *Config {
	return &Config{
		ConnectionConfig: ConnectionConfig{
			Type:                "postgres",
			Host:                "127.0.0.1",
			Port:                5432,
			MaxIdleConns:        10,
			MaxOpenConns:        100,
			ConnMaxLifetime:     time.Hour,
			ConnMaxIdleTime:     30 * time.Minute,
			ConnectTimeout:      10 * time.Second,
			ReadTimeout:         30 * time.Second,
			WriteTimeout:        30 * time.Second,
			HealthCheckInterval: 5 * time.Minute,
			SlowQueryTime:       2 * time.Second,
		},
		DataMigrateConfig: DataMigrateConfig{EnableMigrateOnStartup: true},
	}
}
