// Package database holds the SQL migrations embedded into the binaries.
package database

import "embed"

// Migrations contains one directory of numbered up/down files per SQL dialect.
//
//go:embed migrations
var Migrations embed.FS

// MigrationsDir returns the directory inside Migrations for a driver name.
func MigrationsDir(driver string) string {
	if driver == "sqlite3" {
		return "migrations/sqlite3"
	}
	return "migrations/oracle"
}
