package crypto

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid", strings.Repeat("ab", 32), false},
		{"too short", "abcd", true},
		{"not hex", strings.Repeat("zz", 32), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ParseKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKey = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(key) != KeySize {
				t.Errorf("key length = %d, want %d", len(key), KeySize)
			}
		})
	}
}

func TestEncryptDecryptRoundtrip(t *testing.T) {
	key := bytes.Repeat([]byte{7}, KeySize)
	plaintext := []byte("per-client control variate payload")

	ciphertext, err := Encrypt(plaintext, key)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if bytes.Contains(ciphertext, plaintext) {
		t.Errorf("ciphertext contains the plaintext")
	}

	got, err := Decrypt(ciphertext, key)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("roundtrip mismatch: got %q", got)
	}
}

func TestDecryptWrongKey(t *testing.T) {
	key := bytes.Repeat([]byte{7}, KeySize)
	other := bytes.Repeat([]byte{8}, KeySize)

	ciphertext, err := Encrypt([]byte("payload"), key)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if _, err := Decrypt(ciphertext, other); err == nil {
		t.Errorf("Expected error decrypting with the wrong key")
	}
}

func TestKeySizeChecked(t *testing.T) {
	if _, err := Encrypt([]byte("x"), []byte("short")); !errors.Is(err, ErrBadKeySize) {
		t.Errorf("Encrypt = %v, want %v", err, ErrBadKeySize)
	}
	if _, err := Decrypt([]byte("x"), []byte("short")); !errors.Is(err, ErrBadKeySize) {
		t.Errorf("Decrypt = %v, want %v", err, ErrBadKeySize)
	}

	key := bytes.Repeat([]byte{1}, KeySize)
	if _, err := Decrypt([]byte("tiny"), key); !errors.Is(err, ErrCiphertextShort) {
		t.Errorf("Decrypt = %v, want %v", err, ErrCiphertextShort)
	}
}
