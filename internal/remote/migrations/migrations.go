// Package migrations embeds the stub service's SQL schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
