// Package sqlite keeps client-local state that the remote store has no place for.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/NordCoder/checksync/internal/domain/check"
)

var _ check.FolderStore = (*FolderStore)(nil)

// FolderStore persists declared folders per owner in a local database file.
type FolderStore struct {
	db *sql.DB
}

func Open(ctx context.Context, path string) (*FolderStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &FolderStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return s, nil
}

func (s *FolderStore) Close() error { return s.db.Close() }

func (s *FolderStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS declared_folders (
	owner_id TEXT NOT NULL,
	path     TEXT NOT NULL,
	PRIMARY KEY (owner_id, path)
);`)
	return err
}

func (s *FolderStore) ListDeclared(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path FROM declared_folders WHERE owner_id = ? ORDER BY path`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ReplaceDeclared overwrites the owner's declared set atomically.
func (s *FolderStore) ReplaceDeclared(ctx context.Context, ownerID string, paths []string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM declared_folders WHERE owner_id = ?`, ownerID); err != nil {
		return fmt.Errorf("clear folders: %w", err)
	}
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	for _, p := range sorted {
		if p == "" {
			continue
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO declared_folders (owner_id, path) VALUES (?, ?)`, ownerID, p); err != nil {
			return fmt.Errorf("insert folder %q: %w", p, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
