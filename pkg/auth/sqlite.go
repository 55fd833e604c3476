package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Storage keys. They match the names the dashboard keeps in browser storage so
// an exported session can be imported as-is.
const (
	keyAccessToken   = "access_token"
	keyRefreshToken  = "refresh_token"
	keyUserRole      = "user_role"
	keyConsultancyID = "consultancy_id"
	keyUniversityID  = "university_id"
)

const createSessionTable = `CREATE TABLE IF NOT EXISTS session (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// SQLiteStore keeps the session in a key-value table of a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating when needed) the session database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("auth: create session dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("auth: open session db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(createSessionTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("auth: init session db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context) (Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM session`)
	if err != nil {
		return Session{}, fmt.Errorf("auth: load session: %w", err)
	}
	defer rows.Close()

	stored := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Session{}, fmt.Errorf("auth: load session: %w", err)
		}
		stored[key] = value
	}
	if err := rows.Err(); err != nil {
		return Session{}, fmt.Errorf("auth: load session: %w", err)
	}

	session := Session{
		AccessToken:  stored[keyAccessToken],
		RefreshToken: stored[keyRefreshToken],
		Role:         stored[keyUserRole],
	}
	switch session.Role {
	case RoleConsultancy:
		session.EntityID = stored[keyConsultancyID]
	case RoleUniversity:
		session.EntityID = stored[keyUniversityID]
	}
	if !session.Valid() {
		return Session{}, ErrNoSession
	}
	return session, nil
}

// Save replaces every stored key in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, session Session) error {
	entries := map[string]string{
		keyAccessToken:  session.AccessToken,
		keyRefreshToken: session.RefreshToken,
		keyUserRole:     session.Role,
	}
	switch session.Role {
	case RoleConsultancy:
		entries[keyConsultancyID] = session.EntityID
	case RoleUniversity:
		entries[keyUniversityID] = session.EntityID
	}

	return s.tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM session`); err != nil {
			return err
		}
		for key, value := range entries {
			if value == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO session (key, value) VALUES (?, ?)`, key, value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Clear removes every stored key.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM session`)
		return err
	})
}

func (s *SQLiteStore) tx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("auth: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("auth: rollback after %v: %w", err, rbErr)
		}
		return fmt.Errorf("auth: write session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("auth: commit: %w", err)
	}
	return nil
}
