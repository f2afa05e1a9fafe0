package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestSeedWatcher_TriggersReloadOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seeds.yaml")
	if err := os.WriteFile(path, []byte("- id: a\n  key: k\n"), 0o600); err != nil {
		t.Fatalf("failed to write seed file: %v", err)
	}

	sw, err := NewSeedWatcher(path, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewSeedWatcher() error: %v", err)
	}

	var reloads atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- sw.Watch(ctx, func() error {
			reloads.Add(1)
			return nil
		})
	}()

	// Give the watcher time to register before mutating the file.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte("- id: b\n  key: k\n"), 0o600); err != nil {
		t.Fatalf("failed to rewrite seed file: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for reloads.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if reloads.Load() == 0 {
		t.Fatal("reload callback never fired after file write")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch() did not return after cancellation")
	}
}

func TestSeedWatcher_IgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seeds.yaml")
	if err := os.WriteFile(path, []byte("- id: a\n  key: k\n"), 0o600); err != nil {
		t.Fatalf("failed to write seed file: %v", err)
	}

	sw, err := NewSeedWatcher(path, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewSeedWatcher() error: %v", err)
	}

	var reloads atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = sw.Watch(ctx, func() error {
			reloads.Add(1)
			return nil
		})
	}()

	time.Sleep(100 * time.Millisecond)

	other := filepath.Join(dir, "unrelated.txt")
	if err := os.WriteFile(other, []byte("noise"), 0o600); err != nil {
		t.Fatalf("failed to write sibling file: %v", err)
	}

	time.Sleep(300 * time.Millisecond)
	if n := reloads.Load(); n != 0 {
		t.Errorf("reload fired %d times for unrelated file", n)
	}
}

func TestSeedWatcher_StopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seeds.yaml")
	if err := os.WriteFile(path, []byte("- id: a\n  key: k\n"), 0o600); err != nil {
		t.Fatalf("failed to write seed file: %v", err)
	}

	sw, err := NewSeedWatcher(path, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewSeedWatcher() error: %v", err)
	}

	// Stop before Watch ever ran is a no-op.
	if err := sw.Stop(); err != nil {
		t.Errorf("Stop() on idle watcher returned error: %v", err)
	}
}
