package tunnel

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/ssh"
)

func TestBuildAuthMethods_ExplicitKey(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "id_test")
	writeTestKey(t, keyPath, nil)

	methods, err := BuildAuthMethods(&SSHConfig{KeyPath: keyPath})
	if err != nil {
		t.Fatalf("BuildAuthMethods: %v", err)
	}
	if len(methods) != 1 {
		t.Fatalf("got %d methods, want 1", len(methods))
	}
}

func TestBuildAuthMethods_EncryptedKeyPromptsForPassphrase(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "id_test")
	writeTestKey(t, keyPath, []byte("hunter2"))

	var prompts int
	stubSecret(t, func(string) ([]byte, error) {
		prompts++
		return []byte("hunter2"), nil
	})

	if _, err := BuildAuthMethods(&SSHConfig{KeyPath: keyPath}); err != nil {
		t.Fatalf("BuildAuthMethods: %v", err)
	}
	if prompts != 1 {
		t.Errorf("prompts = %d, want 1", prompts)
	}
}

func TestBuildAuthMethods_PasswordPrompt(t *testing.T) {
	stubSecret(t, func(string) ([]byte, error) { return []byte("pw"), nil })

	methods, err := BuildAuthMethods(&SSHConfig{User: "irc", Host: "bastion", PromptPass: true})
	if err != nil {
		t.Fatalf("BuildAuthMethods: %v", err)
	}
	if len(methods) != 1 {
		t.Fatalf("got %d methods, want 1", len(methods))
	}
}

func TestBuildAuthMethods_MissingKey(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")

	_, err := BuildAuthMethods(&SSHConfig{KeyPath: "/nonexistent/key"})
	if err == nil {
		t.Fatal("expected error for missing key")
	}
}

func TestBuildAuthMethods_AgentWithoutSocket(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")

	_, err := BuildAuthMethods(&SSHConfig{UseAgent: true})
	if err == nil {
		t.Fatal("expected error when SSH_AUTH_SOCK is unset")
	}
}

func TestHostKeyCallback_Insecure(t *testing.T) {
	cb, err := hostKeyCallback(&SSHConfig{StrictHostKey: false})
	if err != nil {
		t.Fatal(err)
	}
	if cb == nil {
		t.Fatal("callback should not be nil")
	}
}

func TestHostKeyCallback_StrictMissingFile(t *testing.T) {
	_, err := hostKeyCallback(&SSHConfig{
		StrictHostKey: true,
		KnownHosts:    filepath.Join(t.TempDir(), "missing_known_hosts"),
	})
	if err == nil {
		t.Fatal("expected error for missing known_hosts")
	}
}

// ── helpers ──────────────────────────────────────────────────────────

// writeTestKey generates an ed25519 key and writes it in OpenSSH
// format, encrypted when passphrase is non-nil.
func writeTestKey(t *testing.T, path string, passphrase []byte) {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	var block *pem.Block
	if passphrase != nil {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "test@ircwire", passphrase)
	} else {
		block, err = ssh.MarshalPrivateKey(priv, "test@ircwire")
	}
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatal(err)
	}
}

func stubSecret(t *testing.T, fn func(prompt string) ([]byte, error)) {
	t.Helper()
	orig := readSecret
	readSecret = fn
	t.Cleanup(func() { readSecret = orig })
}
