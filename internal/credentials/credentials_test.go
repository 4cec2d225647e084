package credentials

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"filippo.io/age"
	"github.com/zalando/go-keyring"

	"github.com/melih-ucgun/integra/internal/core"
)

func TestKeyring(t *testing.T) {
	keyring.MockInit()
	k := NewKeyring("system")

	if _, err := k.Secret("ar_user"); !errors.Is(err, core.ErrSecretNotFound) {
		t.Fatalf("expected ErrSecretNotFound, got %v", err)
	}
	if err := k.Set("ar_user", "s3cret"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := k.Secret("ar_user")
	if err != nil || got != "s3cret" {
		t.Errorf("Secret = %q, %v", got, err)
	}

	other := NewKeyring("other")
	if _, err := other.Secret("ar_user"); !errors.Is(err, core.ErrSecretNotFound) {
		t.Errorf("service must scope secrets, got %v", err)
	}
}

func TestKeyring_BackendError(t *testing.T) {
	boom := errors.New("dbus unavailable")
	keyring.MockInitWithError(boom)
	t.Cleanup(keyring.MockInit)

	_, err := NewKeyring("system").Secret("x")
	if !errors.Is(err, boom) || errors.Is(err, core.ErrSecretNotFound) {
		t.Errorf("backend error not propagated: %v", err)
	}
}

func writeAgeFile(t *testing.T, content string) (string, string) {
	t.Helper()
	dir := t.TempDir()

	id, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	idPath := filepath.Join(dir, "key.txt")
	if err := os.WriteFile(idPath, []byte(id.String()+"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, id.Recipient())
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	secretsPath := filepath.Join(dir, "secrets.yaml.age")
	if err := os.WriteFile(secretsPath, buf.Bytes(), 0600); err != nil {
		t.Fatal(err)
	}
	return secretsPath, idPath
}

func TestAgeFile(t *testing.T) {
	path, idPath := writeAgeFile(t, "admin: hunter2\nlobby-tv: passphrase\n")
	store := NewAgeFile(path, idPath)

	tests := []struct {
		account string
		want    string
		missing bool
	}{
		{"admin", "hunter2", false},
		{"lobby-tv", "passphrase", false},
		{"ghost", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.account, func(t *testing.T) {
			got, err := store.Secret(tt.account)
			if tt.missing {
				if !errors.Is(err, core.ErrSecretNotFound) {
					t.Errorf("expected ErrSecretNotFound, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("Secret(%q) = %q, %v", tt.account, got, err)
			}
		})
	}
}

func TestAgeFile_WrongIdentity(t *testing.T) {
	path, _ := writeAgeFile(t, "admin: hunter2\n")
	_, otherID := writeAgeFile(t, "x: y\n")

	_, err := NewAgeFile(path, otherID).Secret("admin")
	if err == nil || errors.Is(err, core.ErrSecretNotFound) {
		t.Errorf("expected decryption error, got %v", err)
	}
}

func TestChain(t *testing.T) {
	c := Chain{Static{"a": "1"}, Static{"a": "2", "b": "3"}}

	if got, _ := c.Secret("a"); got != "1" {
		t.Errorf("first store must win, got %q", got)
	}
	if got, _ := c.Secret("b"); got != "3" {
		t.Errorf("fallthrough failed, got %q", got)
	}
	if _, err := c.Secret("c"); !errors.Is(err, core.ErrSecretNotFound) {
		t.Errorf("expected ErrSecretNotFound, got %v", err)
	}

	boom := errors.New("boom")
	broken := Chain{failing{boom}, Static{"a": "1"}}
	if got, err := broken.Secret("a"); err != nil || got != "1" {
		t.Errorf("failing store must be skipped, got %q, %v", got, err)
	}
	_, err := broken.Secret("z")
	if !errors.Is(err, core.ErrSecretNotFound) || !errors.Is(err, boom) {
		t.Errorf("expected not found with the store error, got %v", err)
	}
}

func TestChain_KeyringUnavailable(t *testing.T) {
	keyring.MockInitWithError(errors.New("dbus unavailable"))
	t.Cleanup(keyring.MockInit)

	path, idPath := writeAgeFile(t, "admin: hunter2\n")
	c := Chain{NewKeyring("integra"), NewAgeFile(path, idPath)}

	got, err := c.Secret("admin")
	if err != nil || got != "hunter2" {
		t.Errorf("secrets file not consulted: %q, %v", got, err)
	}
}

type failing struct{ err error }

func (f failing) Secret(string) (string, error) { return "", f.err }
