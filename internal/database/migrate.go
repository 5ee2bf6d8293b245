package database

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	sqlfiles "quiztube/database"
	"quiztube/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// oracleObjectExists is ORA-00955, raised when re-running a CREATE.
const oracleObjectExists = "ORA-00955"

// RunMigrations applies every pending up migration for the connection's driver.
func RunMigrations(db *sqlx.DB) error {
	switch db.DriverName() {
	case "sqlite3":
		return migrateSQLite(db)
	case "oracle", "godror":
		return migrateOracle(db, sqlfiles.Migrations, sqlfiles.MigrationsDir(db.DriverName()))
	default:
		return fmt.Errorf("no migrations for driver %q", db.DriverName())
	}
}

func migrateSQLite(db *sqlx.DB) error {
	src, err := iofs.New(sqlfiles.Migrations, sqlfiles.MigrationsDir("sqlite3"))
	if err != nil {
		return fmt.Errorf("could not open migration source: %w", err)
	}

	drv, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("could not create sqlite3 migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", drv)
	if err != nil {
		return fmt.Errorf("could not create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not apply migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Get().Info("Migrations completed successfully",
		zap.String("driver", "sqlite3"), zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// migrateOracle runs the up files statement by statement; the Oracle drivers reject multi-statement Exec.
func migrateOracle(db *sqlx.DB, fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("could not read migrations directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := fs.ReadFile(fsys, dir+"/"+name)
		if err != nil {
			return fmt.Errorf("could not read migration file %s: %w", name, err)
		}

		for _, stmt := range SplitStatements(string(content)) {
			if _, err := db.Exec(stmt); err != nil {
				if strings.Contains(err.Error(), oracleObjectExists) {
					continue
				}
				return fmt.Errorf("could not execute migration %s: %w", name, err)
			}
		}

		logger.Get().Info("Executed migration", zap.String("file", name))
	}

	logger.Get().Info("Migrations completed successfully", zap.String("driver", db.DriverName()))
	return nil
}

// SplitStatements splits a migration file on ";" and drops empty statements and comment-only lines.
func SplitStatements(content string) []string {
	var stmts []string
	for _, part := range strings.Split(content, ";") {
		var lines []string
		for _, line := range strings.Split(part, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "--") {
				continue
			}
			lines = append(lines, line)
		}
		if stmt := strings.TrimSpace(strings.Join(lines, "\n")); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}
