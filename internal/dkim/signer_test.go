package dkim

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func generateTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func writeTestKey(t *testing.T, key *rsa.PrivateKey, blockType string, der []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.key")
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewSigner(t *testing.T) {
	key := generateTestKey(t)
	signer := NewSigner(key, "example.com", "mail")

	if signer.Domain() != "example.com" {
		t.Errorf("Domain() = %q, want %q", signer.Domain(), "example.com")
	}

	if signer.Selector() != "mail" {
		t.Errorf("Selector() = %q, want %q", signer.Selector(), "mail")
	}
}

func TestSign(t *testing.T) {
	key := generateTestKey(t)
	signer := NewSigner(key, "example.com", "mail")

	message := []byte("From: sender@example.com\r\n" +
		"To: rcpt@example.com\r\n" +
		"Subject: Hello\r\n" +
		"\r\n" +
		"Body text\r\n")

	signed, err := signer.Sign(message)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	if !strings.Contains(string(signed), "DKIM-Signature:") {
		t.Error("signed message missing DKIM-Signature header")
	}

	if !strings.Contains(string(signed), "Body text") {
		t.Error("signed message missing original body")
	}
}

func TestNewSignerFromFile(t *testing.T) {
	key := generateTestKey(t)

	t.Run("pkcs1 key file", func(t *testing.T) {
		path := writeTestKey(t, key, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(key))

		signer, err := NewSignerFromFile(path, "example.com", "mail")
		if err != nil {
			t.Fatalf("NewSignerFromFile failed: %v", err)
		}

		if signer.Domain() != "example.com" {
			t.Errorf("Domain() = %q, want %q", signer.Domain(), "example.com")
		}
	})

	t.Run("pkcs8 key file", func(t *testing.T) {
		der, err := x509.MarshalPKCS8PrivateKey(key)
		if err != nil {
			t.Fatal(err)
		}
		path := writeTestKey(t, key, "PRIVATE KEY", der)

		if _, err := NewSignerFromFile(path, "example.com", "mail"); err != nil {
			t.Fatalf("NewSignerFromFile failed: %v", err)
		}
	})

	t.Run("non-existent file", func(t *testing.T) {
		if _, err := NewSignerFromFile("/nonexistent/key.pem", "example.com", "mail"); err == nil {
			t.Error("expected error for non-existent file")
		}
	})

	t.Run("invalid pem", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.key")
		if err := os.WriteFile(path, []byte("not a key"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := NewSignerFromFile(path, "example.com", "mail"); err == nil {
			t.Error("expected error for invalid PEM data")
		}
	})
}
