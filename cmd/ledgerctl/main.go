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

// Command ledgerctl runs the ledger maintenance jobs: schema migrations,
// drafting due recurring expenses and tax form reminders.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opencollective/ledger"
	"github.com/opencollective/ledger/config"
	"github.com/opencollective/ledger/database"
	"github.com/opencollective/ledger/events"
	"github.com/opencollective/ledger/models"
	"github.com/opencollective/ledger/secrets"
	"github.com/opencollective/ledger/utils"
)

var logger = utils.NewLogger("LEDGERCTL")

const usage = `usage: ledgerctl <command> [flags]

commands:
  migrate         create or update the schema
  status          ping the database and print the pool usage
  foreign-keys    print the foreign key constraints as YAML
  recurring-due   draft the next expense of every due recurring series
  tax-reminders   remind payees of pending tax form requests
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "ledgerctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command\n%s", usage)
	}
	cmd, rest := args[0], args[1:]

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(out)
	var (
		at     string
		dryRun bool
	)
	switch cmd {
	case "migrate", "status", "foreign-keys":
	case "recurring-due":
		fs.StringVar(&at, "at", "", "reference time (RFC3339), defaults to now")
		fs.BoolVar(&dryRun, "dry-run", false, "list what is due without drafting anything")
	case "tax-reminders":
		fs.StringVar(&at, "at", "", "reference time (RFC3339), defaults to now")
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
	if err := fs.Parse(rest); err != nil {
		return err
	}
	now, err := referenceTime(at)
	if err != nil {
		return err
	}
	if cmd == "foreign-keys" {
		return printForeignKeys(out)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.ApplyLogging(); err != nil {
		return err
	}
	switch cmd {
	case "migrate":
		cfg.Database.DataMigrateConfig.EnableMigrateOnStartup = true
	case "status":
		cfg.Database.DataMigrateConfig.EnableMigrateOnStartup = false
	}
	cfg.Database.ConnectionConfig.HealthCheckInterval = 0

	conn, err := database.Open(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer conn.Close()

	switch cmd {
	case "migrate":
		logger.WithField("dialect", cfg.Database.ConnectionConfig.Type).Info("schema is up to date")
		fmt.Fprintln(out, "migrations applied")
		return nil
	case "status":
		return printStatus(ctx, conn, out)
	}

	cipher, err := secrets.NewCipher(cfg.SecretKey)
	if err != nil {
		return err
	}
	db := conn.DB()
	var dispatcher events.Dispatcher = events.NewActivityRecorder(db)
	if cfg.Queue.Enabled {
		queue, client := events.NewRedisQueueDispatcher(cfg.Queue.RedisAddress)
		defer client.Close()
		dispatcher = events.Multi(dispatcher, queue)
	}
	l := ledger.New(db, cipher, ledger.Options{Dispatcher: dispatcher})

	if cmd == "recurring-due" {
		return recurringDue(ctx, l, now, dryRun, out)
	}
	return taxReminders(ctx, l, now, out)
}

func referenceTime(at string) (time.Time, error) {
	if at == "" {
		return models.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, at)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid -at value %q: %w", at, err)
	}
	return t.UTC(), nil
}

func printForeignKeys(out io.Writer) error {
	b, err := database.RegisteredForeignKeys().YAML()
	if err != nil {
		return err
	}
	_, err = out.Write(b)
	return err
}

func printStatus(ctx context.Context, conn *database.Conn, out io.Writer) error {
	status := conn.Health(ctx)
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(status); err != nil {
		return err
	}
	if !status.Healthy {
		return fmt.Errorf("database is unhealthy: %s", status.LastError)
	}
	return nil
}

func recurringDue(ctx context.Context, l *ledger.Ledger, now time.Time, dryRun bool, out io.Writer) error {
	if dryRun {
		due, err := l.RecurringExpenses.GetRecurringExpensesDue(ctx, now)
		if err != nil {
			return err
		}
		for _, r := range due {
			fmt.Fprintf(out, "due\t%d\t%s\n", r.ID, r.Interval)
		}
		return nil
	}
	drafts, err := l.DraftRecurringExpenses(ctx, now)
	for _, e := range drafts {
		fmt.Fprintf(out, "drafted\t%d\t%s\t%d %s\n", e.ID, e.Description, e.Amount, e.Currency)
	}
	return err
}

func taxReminders(ctx context.Context, l *ledger.Ledger, now time.Time, out io.Writer) error {
	reminded, err := l.SendTaxFormReminders(ctx, now)
	for _, d := range reminded {
		fmt.Fprintf(out, "reminded\t%d\t%d\t%d\n", d.ID, d.CollectiveID, d.Year)
	}
	return err
}
