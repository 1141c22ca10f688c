// Package migrations embeds the SQL schema migrations into the binary
// and registers them with the database package.
package migrations

import (
	"embed"

	"github.com/sentinelsec/sentinel-core/internal/infrastructure/database"
)

//go:embed *.sql
var FS embed.FS

func init() {
	database.MigrationsFS = FS
	database.MigrationsDir = "."
}
