// Package migrations embeds the SQL schema applied by `garage migrate`.
package migrations

import "embed"

// Files holds the golang-migrate up/down scripts.
//
//go:embed *.sql
var Files embed.FS
