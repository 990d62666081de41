// Package migrations embeds the schema migrations for chatty.db.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
