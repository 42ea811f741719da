package speech

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWorkspace_Lifecycle(t *testing.T) {
	t.Parallel()

	base := filepath.Join(t.TempDir(), "nested", "base")
	ws, err := NewWorkspace(base)
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	if filepath.Dir(ws.Dir()) != base {
		t.Errorf("Dir = %q, want under %q", ws.Dir(), base)
	}
	if !strings.HasPrefix(filepath.Base(ws.Dir()), "speechcord-") {
		t.Errorf("unexpected workspace name %q", filepath.Base(ws.Dir()))
	}

	mp3, wav := ws.Paths("req-1")
	if mp3 != filepath.Join(ws.Dir(), "req-1.mp3") || wav != filepath.Join(ws.Dir(), "req-1.wav") {
		t.Errorf("Paths = %q, %q", mp3, wav)
	}
	other, _ := ws.Paths("req-2")
	if other == mp3 {
		t.Error("distinct requests share a path")
	}

	if err := os.WriteFile(mp3, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	// wav was never created; Remove must not complain.
	if err := ws.Remove(mp3, wav); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(mp3); !os.IsNotExist(err) {
		t.Errorf("mp3 still present: %v", err)
	}

	if err := os.WriteFile(wav, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := ws.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(ws.Dir()); !os.IsNotExist(err) {
		t.Errorf("workspace still present after Close: %v", err)
	}
}

func TestWorkspace_DefaultBase(t *testing.T) {
	ws, err := NewWorkspace("")
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	defer ws.Close()
	if filepath.Dir(ws.Dir()) != filepath.Clean(os.TempDir()) {
		t.Errorf("Dir = %q, want under %q", ws.Dir(), os.TempDir())
	}
}
