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

// Package config loads the runtime configuration from LEDGER_* environment
// variables, optionally seeded from a .env file.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/opencollective/ledger/database"
	"github.com/opencollective/ledger/utils"
)

const Prefix = "LEDGER_"

// Config is the root configuration. Nested keys are separated by a double
// underscore: LEDGER_DATABASE__CONNECTION__HOST sets Database.ConnectionConfig.Host.
type Config struct {
	Env       string          `koanf:"env" validate:"required,oneof=development test production"`
	SecretKey string          `koanf:"secret_key" validate:"required,len=64,hexadecimal"`
	Database  database.Config `koanf:"database"`
	Log       LogConfig       `koanf:"log"`
	Queue     QueueConfig     `koanf:"queue"`
}

// LogConfig drives the console loggers and, when Dir is set, the daily
// rolling files under it.
type LogConfig struct {
	Level      string `koanf:"level" validate:"required,oneof=trace debug info warn warning error fatal panic"`
	Format     string `koanf:"format" validate:"required,oneof=text json"`
	Dir        string `koanf:"dir"`
	FileLevel  string `koanf:"file_level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	MaxAgeDays int    `koanf:"max_age_days" validate:"gte=0"`
}

// QueueConfig points the activity dispatcher at redis. Events are only
// recorded in the database when it is disabled.
type QueueConfig struct {
	Enabled      bool   `koanf:"enabled"`
	RedisAddress string `koanf:"redis_address" validate:"required_if=Enabled true"`
}

// Default returns the configuration used for keys absent from the
// environment.
func Default() *Config {
	return &Config{
		Env:      "development",
		Database: *database.DefaultConfig(),
		Log:      LogConfig{Level: "info", Format: "text", FileLevel: "trace", MaxAgeDays: 30},
		Queue:    QueueConfig{RedisAddress: "127.0.0.1:6379"},
	}
}

// Load reads LEDGER_* variables on top of Default and validates the result.
func Load() (*Config, error) {
	return load(Prefix)
}

func load(prefix string) (*Config, error) {
	k := koanf.New(".")
	err := k.Load(env.Provider(prefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, prefix)), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("could not load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// ApplyLogging configures the process wide loggers.
func (c *Config) ApplyLogging() error {
	utils.ConfigureConsoleLogFormat(c.Log.Format)
	utils.ConfigureLogLevel(c.Log.Level)
	utils.ConfigureFileLogLevel(c.Log.FileLevel)
	if err := utils.ConfigureFileLog(c.Log.Dir, c.Log.MaxAgeDays); err != nil {
		return fmt.Errorf("could not configure file logging: %w", err)
	}
	return nil
}
