package migrations

import "embed"

// FS contains the embedded SQLite migrations of the game store.
//
//go:embed *.sql
var FS embed.FS
