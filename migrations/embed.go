// Package migrations embeds SQL migration files into the binary.
//
// The fan presence service runs migrations without needing the SQL files
// present on the filesystem; they're compiled into the executable and passed
// to database.Migrate.
package migrations

import "embed"

// FS holds every *.sql migration at its root.
//
//go:embed *.sql
var FS embed.FS
