// Package migrations provides embedded migration SQL files for the
// gateway's PostgreSQL backend.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
