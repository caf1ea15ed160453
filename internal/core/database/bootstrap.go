package database

import (
	"context"
	"embed"
	"time"

	"github.com/rotisserie/eris"
)

//go:embed scripts/initdb.sql
var bootstrapFS embed.FS

// EnsureBootstrapped creates the schema on first run. The claimsmart_meta
// table records which bootstrap version has been applied.
func EnsureBootstrapped(ctx context.Context, pool Pool) error {

	ctxBoot, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	var exists bool
	err := pool.QueryRow(ctxBoot, `
		SELECT EXISTS (
		  SELECT 1 FROM information_schema.tables
		  WHERE table_name = 'claimsmart_meta'
		)`).Scan(&exists)
	if err != nil {
		return eris.Wrap(err, "database: meta table check")
	}

	if !exists {
		return runBootstrap(ctxBoot, pool)
	}

	var hasVersion bool
	if err := pool.QueryRow(ctxBoot, `SELECT EXISTS (SELECT 1 FROM claimsmart_meta WHERE version = 1)`).Scan(&hasVersion); err != nil {
		return eris.Wrap(err, "database: meta version check")
	}
	if !hasVersion {
		return runBootstrap(ctxBoot, pool)
	}

	return nil
}

func runBootstrap(ctx context.Context, pool Pool) error {
	sqlBytes, err := bootstrapFS.ReadFile("scripts/initdb.sql")
	if err != nil {
		return eris.Wrap(err, "database: read initdb.sql")
	}

	if _, err := pool.Exec(ctx, string(sqlBytes)); err != nil {
		return eris.Wrap(err, "database: exec bootstrap")
	}
	return nil
}
