// Package migrations embeds the SQL schema of the group settings store.
package migrations

import "embed"

// FS holds the numbered up/down migration files read by golang-migrate.
//
//go:embed *.sql
var FS embed.FS
