// Package database provides the SQLite connection used by the scene rotator
// when group storage is configured with the "sqlite" backend.
//
// This package manages:
//   - Opening the database file with WAL mode and a busy timeout
//   - Applying versioned schema migrations from an fs.FS
//   - Transaction helpers for multi-statement writes
//
// The connection pool is capped at one connection; SQLite has a single
// writer and the group tables are small.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql, and live at the root of the supplied FS.
package database
