// Package database provides SQLite connectivity and schema migrations.
//
// Two drivers are supported behind the same API: the cgo-based
// mattn/go-sqlite3 ("sqlite3") and the pure-Go modernc.org/sqlite ("sqlite")
// for builds without a C toolchain.
//
// Migrations are embedded SQL files named YYYYMMDD_HHMMSS_name.up.sql (and
// optionally .down.sql), registered by the migrations package and tracked in
// the schema_migrations table. Migrations are additive: new columns must be
// nullable or have defaults.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Driver: "sqlite3", Path: "data/readings.db"})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// All queries use parameterised statements. The database file is created
// with 0600 permissions.
package database
