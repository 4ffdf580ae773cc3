package out

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"dispatchdesk/internal/modules/session/domain"
	apperrors "dispatchdesk/internal/platform/errors"

	_ "modernc.org/sqlite"
)

const (
	keyToken   = "token"
	keyRole    = "role"
	keySubject = "user_id"
)

// SQLiteCredentialStore keeps the three credential fields as rows of a
// key/value table. All three are written or removed in one transaction.
type SQLiteCredentialStore struct {
	db *sql.DB
}

func NewSQLiteCredentialStore(dbPath string) (*SQLiteCredentialStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	store := &SQLiteCredentialStore{db: db}
	if err := store.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteCredentialStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS credentials (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create credentials table: %w", err)
	}
	return nil
}

func (s *SQLiteCredentialStore) Put(ctx context.Context, record domain.CredentialRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin credentials tx: %w", err)
	}
	defer tx.Rollback()

	const stmt = `
INSERT INTO credentials (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value;
`
	fields := [][2]string{{keyToken, record.Token}, {keyRole, record.Role}, {keySubject, record.SubjectID}}
	for _, f := range fields {
		if _, err := tx.ExecContext(ctx, stmt, f[0], f[1]); err != nil {
			return fmt.Errorf("write credential %s: %w", f[0], err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit credentials: %w", err)
	}
	return nil
}

func (s *SQLiteCredentialStore) Get(ctx context.Context) (domain.CredentialRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM credentials`)
	if err != nil {
		return domain.CredentialRecord{}, fmt.Errorf("query credentials: %w", err)
	}
	defer rows.Close()

	record := domain.CredentialRecord{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return domain.CredentialRecord{}, fmt.Errorf("scan credential: %w", err)
		}
		switch key {
		case keyToken:
			record.Token = value
		case keyRole:
			record.Role = value
		case keySubject:
			record.SubjectID = value
		}
	}
	if err := rows.Err(); err != nil {
		return domain.CredentialRecord{}, fmt.Errorf("iterate credentials: %w", err)
	}
	if !record.Complete() {
		return domain.CredentialRecord{}, apperrors.ErrNoCredentials
	}
	return record, nil
}

func (s *SQLiteCredentialStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

func (s *SQLiteCredentialStore) Close() error {
	return s.db.Close()
}
