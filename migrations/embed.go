// Package migrations embeds the scheduler's SQL migrations. Import it for
// side effects before calling database.DB.Migrate.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-scheduler/internal/infrastructure/database"
)

//go:embed *.up.sql
var files embed.FS

func init() {
	database.RegisterMigrations(files, ".")
}
