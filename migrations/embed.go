// Package migrations embeds the SQL schema of every supported database driver
package migrations

import "embed"

// FS holds one sub-directory of migrations per driver ("mysql", "sqlite3")
//
//go:embed mysql/*.sql sqlite3/*.sql
var FS embed.FS
