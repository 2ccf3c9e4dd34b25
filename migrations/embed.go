// Package migrations embeds the goose SQL migrations so the server
// binary can apply them without a migrations directory on disk.
package migrations

import "embed"

// Files contains all SQL migration files in ascending order by filename.
//
//go:embed *.sql
var Files embed.FS
