// Package migrations embeds the SQL migration files for goose.
//
// Files follow goose's NNNNN_description.sql naming and run in order.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
