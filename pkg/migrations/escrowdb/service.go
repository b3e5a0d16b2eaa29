// Package escrowdb holds all the migrations for the escrow-bridge database
package escrowdb

import (
	"github.com/uptrace/bun/migrate"
)

// Migrations is the collection of all migrations for the escrow-bridge database
var Migrations = migrate.NewMigrations()
