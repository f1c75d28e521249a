package config

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestReloadWatcherFiresOnTrackedFileWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "btaudiod.conf")
	if err := os.WriteFile(path, []byte("adapter=auto\n"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	changed := make(chan string, 1)
	w, err := NewReloadWatcher(log.New(io.Discard), []string{path}, func(p string) {
		select {
		case changed <- p:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewReloadWatcher: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("adapter=hci0\n"), 0o644); err != nil {
		t.Fatalf("rewrite file: %v", err)
	}

	select {
	case got := <-changed:
		if got != path {
			t.Fatalf("onChange path = %q, want %q", got, path)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload notification")
	}
}

func TestReloadWatcherIgnoresUntrackedFiles(t *testing.T) {
	dir := t.TempDir()
	tracked := filepath.Join(dir, "btaudiod.conf")
	untracked := filepath.Join(dir, "other.json")
	if err := os.WriteFile(tracked, []byte("x"), 0o644); err != nil {
		t.Fatalf("seed tracked file: %v", err)
	}

	changed := make(chan string, 1)
	w, err := NewReloadWatcher(log.New(io.Discard), []string{tracked}, func(p string) {
		changed <- p
	})
	if err != nil {
		t.Fatalf("NewReloadWatcher: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(untracked, []byte("y"), 0o644); err != nil {
		t.Fatalf("write untracked file: %v", err)
	}

	select {
	case got := <-changed:
		t.Fatalf("unexpected reload notification for untracked file: %q", got)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestReloadWatcherCloseStopsRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "btaudiod.conf")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	w, err := NewReloadWatcher(log.New(io.Discard), []string{path}, func(string) {})
	if err != nil {
		t.Fatalf("NewReloadWatcher: %v", err)
	}
	w.Close()
}
