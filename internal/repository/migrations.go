package repository

import "embed"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationsFS возвращает встроенные SQL миграции схемы хранилища.
func MigrationsFS() embed.FS {
	return migrationsFS
}

// MigrationsPath - путь к миграциям внутри встроенной файловой системы.
const MigrationsPath = "migrations"
