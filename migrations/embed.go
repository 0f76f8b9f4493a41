// Package migrations holds the goose migrations for the check store schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
