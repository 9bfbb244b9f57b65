package database

import (
	"embed"
	"io/fs"
)

//go:embed migrations
var migrationFiles embed.FS

var (
	postgresMigrations = mustSub("migrations/postgres")
	sqliteMigrations   = mustSub("migrations/sqlite")
)

func mustSub(dir string) fs.FS {
	sub, err := fs.Sub(migrationFiles, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
