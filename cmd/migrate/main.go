package main

import (
	"database/sql"
	"fmt"
	"io"
	"os"

	"zazoom-be/internal/config"
	"zazoom-be/internal/db"
	"zazoom-be/internal/logger"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const usage = `usage: migrate [flags] up|down|version

flags:
`

type migrator interface {
	Up() error
	Down(steps int) error
	Version() (uint, bool, error)
}

type dbMigrator struct {
	db *sql.DB
}

func (m dbMigrator) Up() error                    { return db.MigrateUp(m.db) }
func (m dbMigrator) Down(steps int) error         { return db.MigrateDown(m.db, steps) }
func (m dbMigrator) Version() (uint, bool, error) { return db.MigrationVersion(m.db) }

func main() {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()
	log := logger.Component("migrate")

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	database, err := db.NewDatabase(cfg)
	if err != nil {
		log.Fatal("failed to connect db", zap.Error(err))
	}
	defer database.Close()

	if err := run(os.Args[1:], os.Stdout, dbMigrator{db: database}); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}
}

func run(args []string, out io.Writer, m migrator) error {
	fs := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	fs.SetOutput(out)
	steps := fs.IntP("steps", "n", 1, "number of migrations to roll back with down")
	fs.Usage = func() {
		fmt.Fprint(out, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd := "up"
	if fs.NArg() > 0 {
		cmd = fs.Arg(0)
	}

	switch cmd {
	case "up":
		if err := m.Up(); err != nil {
			return err
		}
		fmt.Fprintln(out, "migrations applied")
	case "down":
		if err := m.Down(*steps); err != nil {
			return err
		}
		fmt.Fprintf(out, "rolled back %d migration(s)\n", *steps)
	case "version":
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "version %d (dirty: %t)\n", v, dirty)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command: %s", cmd)
	}
	return nil
}
