// Package migrations embeds the sync service's schema migrations.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
