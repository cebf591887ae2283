package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/zerolog"
)

// DB is the durable local store for per-user session keys. It plays the
// role browser local storage plays for a web client: flat string entries,
// surviving restarts, no expiry.
type DB struct {
	db     *sql.DB
	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("База данных инициализирована")
	return &DB{db: db, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		// Хранилище сессионных ключей
		`CREATE TABLE IF NOT EXISTS keyring (
            user_id INTEGER NOT NULL,
            key TEXT NOT NULL,
            value TEXT NOT NULL,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            PRIMARY KEY (user_id, key)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_keyring_user_id ON keyring(user_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// Get returns the stored value, or "" when the key is absent.
func (d *DB) Get(ctx context.Context, userID int64, key string) (string, error) {
	var value string
	err := d.db.QueryRowContext(ctx,
		`SELECT value FROM keyring WHERE user_id = ? AND key = ?`, userID, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("keyring get: %w", err)
	}
	return value, nil
}

func (d *DB) Set(ctx context.Context, userID int64, key, value string) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO keyring (user_id, key, value, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
         ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		userID, key, value)
	if err != nil {
		return fmt.Errorf("keyring set: %w", err)
	}
	return nil
}

func (d *DB) Delete(ctx context.Context, userID int64, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	placeholders := strings.TrimRight(strings.Repeat("?,", len(keys)), ",")
	args := make([]interface{}, 0, len(keys)+1)
	args = append(args, userID)
	for _, key := range keys {
		args = append(args, key)
	}

	query := fmt.Sprintf(`DELETE FROM keyring WHERE user_id = ? AND key IN (%s)`, placeholders)
	if _, err := d.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("keyring delete: %w", err)
	}
	return nil
}

func (d *DB) Close() error {
	return d.db.Close()
}
