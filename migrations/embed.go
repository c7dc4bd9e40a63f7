// Package migrations содержит SQL-миграции схемы, встроенные в бинарник.
package migrations

import "embed"

// PostgresMigrations миграции для PostgreSQL (каталог "postgres")
//
//go:embed postgres/*.sql
var PostgresMigrations embed.FS

// PostgresDir каталог миграций внутри PostgresMigrations
const PostgresDir = "postgres"
