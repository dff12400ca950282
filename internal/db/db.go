package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const defaultDBName = "skillpass.db"

// Pragmas applied on every connection. WAL keeps the CLI and a running
// server from blocking each other on the same workspace database.
var pragmas = []string{
	"foreign_keys(1)",
	"journal_mode(WAL)",
	"busy_timeout(5000)",
}

type Config struct {
	Workspace string
}

func dbPath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".skillpass", defaultDBName)
}

// EnsureWorkspace creates the workspace data directory if missing.
func EnsureWorkspace(workspace string) (string, error) {
	path := filepath.Join(workspace, ".skillpass")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// Open opens the workspace SQLite database.
func Open(cfg Config) (*sql.DB, error) {
	if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
		return nil, err
	}
	var dsn strings.Builder
	fmt.Fprintf(&dsn, "file:%s?cache=shared", dbPath(cfg.Workspace))
	for _, p := range pragmas {
		fmt.Fprintf(&dsn, "&_pragma=%s", p)
	}
	return sql.Open("sqlite", dsn.String())
}

// Path returns the db path for the workspace.
func Path(workspace string) string {
	return dbPath(workspace)
}
