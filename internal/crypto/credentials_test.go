package crypto

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var testCreds = Credentials{
	ApiKey:        "key-123",
	ApiSecret:     "c2VjcmV0LWJ5dGVz",
	ApiPassphrase: "hunter2",
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptCredentials(testCreds, "correct horse")
	if err != nil {
		t.Fatalf("EncryptCredentials: %v", err)
	}

	got, err := DecryptCredentials(blob, "correct horse")
	if err != nil {
		t.Fatalf("DecryptCredentials: %v", err)
	}
	if got != testCreds {
		t.Errorf("round trip = %+v, want %+v", got, testCreds)
	}
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := EncryptCredentials(testCreds, "right")
	if err != nil {
		t.Fatalf("EncryptCredentials: %v", err)
	}
	if _, err := DecryptCredentials(blob, "wrong"); err == nil {
		t.Fatal("expected error with wrong password")
	}
}

func TestEncryptedBlobDoesNotLeakPlaintext(t *testing.T) {
	blob, err := EncryptCredentials(testCreds, "pw")
	if err != nil {
		t.Fatalf("EncryptCredentials: %v", err)
	}
	for _, secret := range []string{testCreds.ApiKey, testCreds.ApiSecret, testCreds.ApiPassphrase} {
		if strings.Contains(string(blob), secret) {
			t.Errorf("encrypted blob contains plaintext %q", secret)
		}
	}
}

func TestEncryptUsesFreshSaltAndNonce(t *testing.T) {
	a, err := EncryptCredentials(testCreds, "pw")
	if err != nil {
		t.Fatal(err)
	}
	b, err := EncryptCredentials(testCreds, "pw")
	if err != nil {
		t.Fatal(err)
	}

	var ja, jb map[string]any
	if err := json.Unmarshal(a, &ja); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(b, &jb); err != nil {
		t.Fatal(err)
	}
	if ja["salt"] == jb["salt"] {
		t.Error("salt reused across encryptions")
	}
	if ja["nonce"] == jb["nonce"] {
		t.Error("nonce reused across encryptions")
	}
}

func TestEncryptRequiresPassword(t *testing.T) {
	if _, err := EncryptCredentials(testCreds, ""); err == nil {
		t.Fatal("expected error for empty password")
	}
	if _, err := DecryptCredentials([]byte("{}"), ""); err == nil {
		t.Fatal("expected error for empty password")
	}
}

func TestDecryptRejectsUnknownVersion(t *testing.T) {
	blob, err := EncryptCredentials(testCreds, "pw")
	if err != nil {
		t.Fatal(err)
	}
	var stored map[string]any
	if err := json.Unmarshal(blob, &stored); err != nil {
		t.Fatal(err)
	}
	stored["version"] = 99
	tampered, _ := json.Marshal(stored)

	if _, err := DecryptCredentials(tampered, "pw"); err == nil {
		t.Fatal("expected error for unsupported version")
	}
}

func TestLoadCredentialsPrefersPlainValues(t *testing.T) {
	got, err := LoadCredentials("plain-key", "plain-secret", "plain-phrase", "/nonexistent", "pw")
	if err != nil {
		t.Fatalf("LoadCredentials: %v", err)
	}
	if got.ApiKey != "plain-key" || got.ApiSecret != "plain-secret" {
		t.Errorf("got %+v, want the plain values", got)
	}
}

func TestLoadCredentialsFromEncryptedFile(t *testing.T) {
	blob, err := EncryptCredentials(testCreds, "pw")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "creds.enc")
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := LoadCredentials("", "", "", path, "pw")
	if err != nil {
		t.Fatalf("LoadCredentials: %v", err)
	}
	if got != testCreds {
		t.Errorf("got %+v, want %+v", got, testCreds)
	}
}

func TestLoadCredentialsNothingConfigured(t *testing.T) {
	got, err := LoadCredentials("", "", "", "", "")
	if err != nil {
		t.Fatalf("LoadCredentials: %v", err)
	}
	if got != (Credentials{}) {
		t.Errorf("got %+v, want zero credentials", got)
	}
}
