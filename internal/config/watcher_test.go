package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"pokescout/internal/domain"
)

// =============================================================================
// Helpers
// =============================================================================

func writeConfigFile(t *testing.T, path string, port int) {
	t.Helper()
	cfg := Default()
	cfg.Gateway.Port = port
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestWatcher_Start_WhenNilCallback_ShouldReturnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pokescout.json")
	writeConfigFile(t, path, 5002)

	w := NewWatcher(path)
	if err := w.Start(nil); err == nil {
		t.Fatal("expected error for nil callback")
	}
}

func TestWatcher_Start_WhenCalledTwice_ShouldReturnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pokescout.json")
	writeConfigFile(t, path, 5002)

	w := NewWatcher(path)
	if err := w.Start(func(*domain.Config) {}); err != nil {
		t.Fatalf("first start: %v", err)
	}
	defer w.Stop()

	if err := w.Start(func(*domain.Config) {}); err == nil {
		t.Fatal("expected error for second start")
	}
}

func TestWatcher_Stop_WhenNotStarted_ShouldBeNoOp(t *testing.T) {
	w := NewWatcher(filepath.Join(t.TempDir(), "pokescout.json"))
	if err := w.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

// =============================================================================
// Reload delivery
// =============================================================================

func TestWatcher_WhenFileModified_ShouldDeliverReloadedConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pokescout.json")
	writeConfigFile(t, path, 5002)

	reloaded := make(chan *domain.Config, 1)
	w := NewWatcher(path)
	if err := w.Start(func(c *domain.Config) {
		select {
		case reloaded <- c:
		default:
		}
	}); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	writeConfigFile(t, path, 6001)

	select {
	case cfg := <-reloaded:
		if cfg.Gateway.Port != 6001 {
			t.Errorf("expected reloaded port 6001, got %d", cfg.Gateway.Port)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("reload callback never fired")
	}
}

func TestWatcher_WhenUnrelatedFileModified_ShouldNotFireCallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pokescout.json")
	writeConfigFile(t, path, 5002)

	fired := make(chan struct{}, 1)
	w := NewWatcher(path)
	if err := w.Start(func(*domain.Config) {
		select {
		case fired <- struct{}{}:
		default:
		}
	}); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case <-fired:
		t.Error("callback fired for unrelated file")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatcher_WhenReloadFails_ShouldKeepWatching(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pokescout.json")
	writeConfigFile(t, path, 5002)

	reloaded := make(chan *domain.Config, 1)
	w := NewWatcher(path)
	if err := w.Start(func(c *domain.Config) {
		select {
		case reloaded <- c:
		default:
		}
	}); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	// Malformed write is logged and skipped.
	if err := os.WriteFile(path, []byte("{broken"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case <-reloaded:
		t.Fatal("callback fired for malformed config")
	case <-time.After(500 * time.Millisecond):
	}

	writeConfigFile(t, path, 7001)
	select {
	case cfg := <-reloaded:
		if cfg.Gateway.Port != 7001 {
			t.Errorf("expected port 7001 after recovery, got %d", cfg.Gateway.Port)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("watcher stopped delivering after a failed reload")
	}
}
