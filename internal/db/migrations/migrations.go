package migrations

import "github.com/uptrace/bun/migrate"

// Migrations are registered by the timestamped files in this package; bun
// derives each migration name from its file name.
var Migrations = migrate.NewMigrations()
