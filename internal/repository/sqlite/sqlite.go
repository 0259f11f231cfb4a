package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/msomdec/quill/internal/domain"
	"github.com/msomdec/quill/internal/repository/sqlite/migrations"
)

// DB wraps the SQLite connection and hands out repositories bound to it.
type DB struct {
	SqlDB *sql.DB
}

// New opens a SQLite database at the given path and configures it for use.
// It enables WAL mode and foreign keys.
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.ExecContext(context.Background(), "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	// A single connection keeps the pragmas in effect and serialises writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{SqlDB: db}, nil
}

// Migrate applies the embedded schema migrations.
func (d *DB) Migrate(ctx context.Context) error {
	return migrations.Run(ctx, d.SqlDB)
}

// Ping checks that the database still answers.
func (d *DB) Ping(ctx context.Context) error {
	return d.SqlDB.PingContext(ctx)
}

func (d *DB) Close() error {
	return d.SqlDB.Close()
}

func (d *DB) Users() *UserRepository {
	return NewUserRepository(d)
}

func (d *DB) Posts() *PostRepository {
	return NewPostRepository(d)
}

// Avatars returns a BLOB-backed avatar store.
func (d *DB) Avatars() domain.AvatarStore {
	return &fileStore{db: d.SqlDB}
}

func (d *DB) ConsumedTokens() *ConsumedTokenRepository {
	return NewConsumedTokenRepository(d)
}

// uniqueViolation reports whether err is a UNIQUE constraint failure and,
// if so, which column triggered it (e.g. "users.email").
func uniqueViolation(err error) (string, bool) {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return "", false
	}
	if sqliteErr.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE &&
		sqliteErr.Code() != sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
		return "", false
	}
	msg := sqliteErr.Error()
	if i := strings.LastIndex(msg, "failed: "); i >= 0 {
		column := msg[i+len("failed: "):]
		if j := strings.IndexAny(column, " ,("); j >= 0 {
			column = column[:j]
		}
		return column, true
	}
	return "", true
}
