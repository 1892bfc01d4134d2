// Package appfs embeds the files the binaries need at runtime: SQL migrations,
// email templates and the common passwords list.
package appfs

import "embed"

// MigrationsDir is the directory of the goose migrations inside FS.
const MigrationsDir = "migrations"

//go:embed migrations all:templates common-passwords.txt.gz
var FS embed.FS
