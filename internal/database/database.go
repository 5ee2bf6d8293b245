package database

import (
	"fmt"

	"quiztube/internal/config"
	"quiztube/internal/logger"

	_ "github.com/godror/godror" // Oracle driver (OCI)
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver for local runs
	_ "github.com/sijms/go-ora/v2"  // Oracle driver
	"go.uber.org/zap"
)

func init() {
	// go-ora registers as "oracle", which sqlx does not know; it takes :name binds.
	sqlx.BindDriver("oracle", sqlx.NAMED)
}

// SupportedDriver reports whether the driver name can be opened by Connect.
func SupportedDriver(driver string) bool {
	switch driver {
	case "oracle", "godror", "sqlite3":
		return true
	}
	return false
}

// Connect opens and pings the database configured in cfg.
func Connect(cfg *config.Config) (*sqlx.DB, error) {
	driver := cfg.DB.Driver
	if !SupportedDriver(driver) {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}

	if driver == "sqlite3" {
		// SQLite allows a single writer; serialising on one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}

	logger.Get().Info("Successfully connected to database", zap.String("driver", driver))
	return db, nil
}
