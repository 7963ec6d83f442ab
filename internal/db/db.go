package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	stateDir           = ".taskline"
	fileName           = "taskline.db"
	defaultBusyTimeout = 5 * time.Second
)

// Config locates the database. File overrides the workspace default path.
type Config struct {
	Workspace   string
	File        string
	BusyTimeout time.Duration
}

// Dir returns the state directory inside workspace.
func Dir(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, stateDir)
}

// EnsureWorkspace creates the state directory if missing.
func EnsureWorkspace(workspace string) (string, error) {
	dir := Dir(workspace)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return dir, nil
}

// Path returns the database file for the workspace.
func Path(workspace string) string {
	return filepath.Join(Dir(workspace), fileName)
}

func (c Config) path() string {
	if c.File != "" {
		return c.File
	}
	return Path(c.Workspace)
}

// Open opens the SQLite database with foreign keys on. Transactions take the
// write lock at BEGIN so read-modify-write on a task row is serialized.
func Open(cfg Config) (*sql.DB, error) {
	if cfg.File == "" {
		if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
			return nil, err
		}
	}
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = defaultBusyTimeout
	}
	q := url.Values{}
	q.Set("_txlock", "immediate")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))
	conn, err := sql.Open("sqlite", "file:"+cfg.path()+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	return conn, nil
}
