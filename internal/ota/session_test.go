package ota

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileStore_MissingFileIsEmptySession(t *testing.T) {
	store := FileStore{Path: filepath.Join(t.TempDir(), "nested", "session.toml")}
	session, err := NewSession(store)
	if err != nil {
		t.Fatalf("NewSession returned error: %v", err)
	}
	if session.Authorized() {
		t.Fatalf("empty session should not be authorized")
	}
	if err := session.SetToken("ops", "tok"); err != nil {
		t.Fatalf("SetToken returned error: %v", err)
	}
	info, err := os.Stat(store.Path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("session file mode = %v, want 0600", info.Mode().Perm())
	}

	reloaded, err := NewSession(store)
	if err != nil {
		t.Fatalf("NewSession returned error: %v", err)
	}
	if reloaded.Token() != "tok" || reloaded.Username() != "ops" {
		t.Fatalf("reloaded = %q/%q", reloaded.Token(), reloaded.Username())
	}
}

func TestSession_AuthorizationHeader(t *testing.T) {
	session, _ := NewSession(nil)
	if session.AuthorizationHeader() != "" {
		t.Fatalf("logged out session should send no header")
	}
	_ = session.SetToken("ops", "abc")
	if got := session.AuthorizationHeader(); got != "Bearer abc" {
		t.Fatalf("header = %q", got)
	}
	_ = session.SetToken("ops", "Basic xyz")
	if got := session.AuthorizationHeader(); got != "Basic xyz" {
		t.Fatalf("header = %q, want scheme preserved", got)
	}
}

func TestSession_LogoutDoesNotFlagUnauthorized(t *testing.T) {
	session, _ := NewSession(nil)
	_ = session.SetToken("ops", "abc")
	if err := session.Logout(); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if session.Authorized() || session.ConsumeUnauthorized() {
		t.Fatalf("logout should clear the token without flagging")
	}

	_ = session.SetToken("ops", "abc")
	_ = session.Invalidate()
	if !session.ConsumeUnauthorized() {
		t.Fatalf("Invalidate should flag the session")
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.toml")
	if err := os.WriteFile(path, []byte("token = ["), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	session, err := NewSession(FileStore{Path: path})
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if session == nil || session.Authorized() {
		t.Fatalf("corrupt store should yield a usable empty session")
	}
}
