// Package migrations embeds the SQLite schema for group storage and event history.
package migrations

import "embed"

// FS holds the *.up.sql / *.down.sql files at its root.
//
//go:embed *.sql
var FS embed.FS
