// Package migrations embeds the SQL schema migrations into the binary.
//
// Importing it for side effects registers the files with the database package:
//
//	import _ "github.com/nerrad567/power-analytics/migrations"
package migrations

import (
	"embed"

	"github.com/nerrad567/power-analytics/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
