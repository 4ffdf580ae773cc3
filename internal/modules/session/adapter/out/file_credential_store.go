package out

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"dispatchdesk/internal/modules/session/domain"
	sessionout "dispatchdesk/internal/modules/session/port/out"
	apperrors "dispatchdesk/internal/platform/errors"
)

type FileCredentialStore struct {
	path string
}

func NewFileCredentialStore(path string) sessionout.CredentialStore {
	return &FileCredentialStore{path: path}
}

// Put writes into a temp file and renames it over the target so a reader
// never observes a partial record.
func (s *FileCredentialStore) Put(_ context.Context, record domain.CredentialRecord) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credentials-*.json")
	if err != nil {
		return fmt.Errorf("create credentials temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close credentials: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace credentials: %w", err)
	}
	return nil
}

func (s *FileCredentialStore) Get(_ context.Context) (domain.CredentialRecord, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.CredentialRecord{}, apperrors.ErrNoCredentials
		}
		return domain.CredentialRecord{}, fmt.Errorf("read credentials: %w", err)
	}
	record := domain.CredentialRecord{}
	if err := json.Unmarshal(payload, &record); err != nil {
		return domain.CredentialRecord{}, fmt.Errorf("decode credentials: %w", err)
	}
	if !record.Complete() {
		return domain.CredentialRecord{}, apperrors.ErrNoCredentials
	}
	return record, nil
}

func (s *FileCredentialStore) Clear(_ context.Context) error {
	if err := os.Remove(s.path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}
