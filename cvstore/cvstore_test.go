package cvstore

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fedbench/fedsim/pkg/crypto"
	"github.com/fedbench/fedsim/pkg/fl"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()

	fs, err := NewFS(filepath.Join(t.TempDir(), "client_cvs"))
	if err != nil {
		t.Fatalf("NewFS failed: %v", err)
	}

	encrypted, err := NewEncryptedFS(
		filepath.Join(t.TempDir(), "client_cvs"), bytes.Repeat([]byte{3}, crypto.KeySize))
	if err != nil {
		t.Fatalf("NewEncryptedFS failed: %v", err)
	}

	return map[string]Store{
		"fs":        fs,
		"encrypted": encrypted,
		"memory":    NewMemory(),
	}
}

func TestLoadMissing(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			cv, ok, err := s.Load(context.Background(), 3)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if ok || cv != nil {
				t.Errorf("Expected no stored variate, got ok=%v cv=%v", ok, cv)
			}
		})
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	want := fl.Parameters{{0.5, -1.25, 0}, {3}}

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if err := s.Save(ctx, 7, want); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			got, ok, err := s.Load(ctx, 7)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if !ok {
				t.Fatalf("Expected stored variate")
			}
			if !fl.SameShape(got, want) {
				t.Fatalf("shape mismatch: got %v, want %v", got, want)
			}
			for l := range want {
				for j := range want[l] {
					if got[l][j] != want[l][j] {
						t.Errorf("layer %d index %d: got %f, want %f", l, j, got[l][j], want[l][j])
					}
				}
			}

			// Clients are independent keys.
			if _, ok, _ := s.Load(ctx, 8); ok {
				t.Errorf("client 8 must not see client 7's variate")
			}
		})
	}
}

func TestSaveOverwrites(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if err := s.Save(ctx, 1, fl.Parameters{{1}}); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			if err := s.Save(ctx, 1, fl.Parameters{{2}}); err != nil {
				t.Fatalf("second Save failed: %v", err)
			}

			got, ok, err := s.Load(ctx, 1)
			if err != nil || !ok {
				t.Fatalf("Load = ok=%v err=%v", ok, err)
			}
			if got[0][0] != 2 {
				t.Errorf("got %f, want 2", got[0][0])
			}
		})
	}
}

func TestFSFileNaming(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "client_cvs")
	s, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS failed: %v", err)
	}

	if err := s.Save(context.Background(), 12, fl.Parameters{{1}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "client_cv_12.cbor")); err != nil {
		t.Errorf("expected per-client file: %v", err)
	}
}

func TestEncryptedFSKeyMismatch(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "client_cvs")
	ctx := context.Background()

	s, err := NewEncryptedFS(dir, bytes.Repeat([]byte{1}, crypto.KeySize))
	if err != nil {
		t.Fatalf("NewEncryptedFS failed: %v", err)
	}
	if err := s.Save(ctx, 0, fl.Parameters{{1, 2}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	other, err := NewEncryptedFS(dir, bytes.Repeat([]byte{2}, crypto.KeySize))
	if err != nil {
		t.Fatalf("NewEncryptedFS failed: %v", err)
	}
	if _, _, err := other.Load(ctx, 0); err == nil {
		t.Errorf("Expected error loading under a different key")
	}
}

func TestNewEncryptedFSBadKey(t *testing.T) {
	if _, err := NewEncryptedFS(t.TempDir(), []byte("short")); !errors.Is(err, crypto.ErrBadKeySize) {
		t.Errorf("NewEncryptedFS = %v, want %v", err, crypto.ErrBadKeySize)
	}
}

func TestMemoryIsolation(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	original := fl.Parameters{{1, 2}}
	if err := s.Save(ctx, 0, original); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	original[0][0] = 99

	got, _, err := s.Load(ctx, 0)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got[0][0] != 1 {
		t.Errorf("stored variate aliased the caller's slice")
	}

	got[0][1] = 99
	again, _, _ := s.Load(ctx, 0)
	if again[0][1] != 2 {
		t.Errorf("loaded variate aliased the store's slice")
	}
}
