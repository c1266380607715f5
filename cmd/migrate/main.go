// Command migrate applies the *.up.sql files under migrations/ to the
// configured database in lexicographic order, grounded on the donor's
// internal/handler/admin_migrate.go (sorted *.up.sql discovery, one file
// per statement batch) but run as a one-shot CLI rather than an
// authenticated admin HTTP endpoint, since Gweta's core has no admin surface
// in scope (spec §1). It stops at the first file that fails to apply and
// returns that error; later files are not attempted.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"

	"github.com/connexus-ai/gweta-core/internal/config"
)

func run() error {
	migrationsDir := flag.String("dir", "migrations", "directory containing *.up.sql files")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("migrate: load config: %w", err)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migrate: open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("migrate: ping database: %w", err)
	}

	entries, err := os.ReadDir(*migrationsDir)
	if err != nil {
		return fmt.Errorf("migrate: read migrations dir: %w", err)
	}

	var upFiles []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			upFiles = append(upFiles, e.Name())
		}
	}
	sort.Strings(upFiles)

	if len(upFiles) == 0 {
		slog.Warn("[MIGRATE] no *.up.sql files found", "dir", *migrationsDir)
		return nil
	}

	for _, filename := range upFiles {
		path := filepath.Join(*migrationsDir, filename)
		sqlBytes, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("migrate: read %s: %w", filename, err)
		}

		if _, err := db.Exec(string(sqlBytes)); err != nil {
			return fmt.Errorf("migrate: apply %s: %w", filename, err)
		}
		slog.Info("[MIGRATE] applied", "file", filename)
	}

	slog.Info("[MIGRATE] done", "applied", len(upFiles))
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
