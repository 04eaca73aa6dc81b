// Package migrations holds the bun migrations for the service schema.
// Each migration lives in its own timestamped file; bun derives the
// migration name from that file name.
package migrations

import "github.com/uptrace/bun/migrate"

var Migrations = migrate.NewMigrations()
