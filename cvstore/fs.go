package cvstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fedbench/fedsim/pkg/crypto"
	"github.com/fedbench/fedsim/pkg/fl"
	"github.com/fxamacker/cbor/v2"
)

// FS stores one CBOR file per client identifier under a fixed
// directory. The one-file-per-identifier naming is the only collision
// discipline; no locking is performed.
type FS struct {
	dir string
	key []byte
}

func NewFS(dir string) (*FS, error) {
	return newFS(dir, nil)
}

// NewEncryptedFS is NewFS with AES-256-GCM encryption of every file.
// Variates written with one key are unreadable under another.
func NewEncryptedFS(dir string, key []byte) (*FS, error) {
	if len(key) != crypto.KeySize {
		return nil, crypto.ErrBadKeySize
	}

	return newFS(dir, key)
}

func newFS(dir string, key []byte) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating control variate directory: %w", err)
	}

	return &FS{dir: dir, key: key}, nil
}

func (s *FS) path(clientID int) string {
	return filepath.Join(s.dir, fmt.Sprintf("client_cv_%d.cbor", clientID))
}

func (s *FS) Load(ctx context.Context, clientID int) (fl.Parameters, bool, error) {
	data, err := os.ReadFile(s.path(clientID))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("error reading control variate for client %d: %w", clientID, err)
	}

	if s.key != nil {
		data, err = crypto.Decrypt(data, s.key)
		if err != nil {
			return nil, false, fmt.Errorf("error decrypting control variate for client %d: %w", clientID, err)
		}
	}

	var cv fl.Parameters
	if err := cbor.Unmarshal(data, &cv); err != nil {
		return nil, false, fmt.Errorf("error decoding control variate for client %d: %w", clientID, err)
	}

	return cv, true, nil
}

func (s *FS) Save(ctx context.Context, clientID int, cv fl.Parameters) error {
	data, err := cbor.Marshal(cv)
	if err != nil {
		return fmt.Errorf("error encoding control variate for client %d: %w", clientID, err)
	}

	if s.key != nil {
		data, err = crypto.Encrypt(data, s.key)
		if err != nil {
			return fmt.Errorf("error encrypting control variate for client %d: %w", clientID, err)
		}
	}

	if err := os.WriteFile(s.path(clientID), data, 0o644); err != nil {
		return fmt.Errorf("error writing control variate for client %d: %w", clientID, err)
	}

	return nil
}
