package migrations

import "embed"

// FS contains embedded SQLite migrations for council storage.
//
//go:embed *.sql
var FS embed.FS
