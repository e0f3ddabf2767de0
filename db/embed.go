// Package db provides the embedded goose migrations.
package db

import "embed"

// Migrations holds the goose SQL files, applied in version order.
//
//go:embed migrations/*.sql
var Migrations embed.FS
