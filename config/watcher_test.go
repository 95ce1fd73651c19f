package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/painter/logging"
)

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "painter.json5")
	test.That(t, os.WriteFile(path, []byte(`{workers: 1}`), 0o600), test.ShouldBeNil)

	w, err := NewWatcher(path, 10*time.Millisecond, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, w.Close(), test.ShouldBeNil)
	}()

	// other files in the directory are ignored
	test.That(t, os.WriteFile(filepath.Join(dir, "other.json5"), []byte(`{workers: 5}`), 0o600), test.ShouldBeNil)
	test.That(t, os.WriteFile(path, []byte(`{workers: 3, frames: [{name: "camera", parent: "world"}]}`), 0o600), test.ShouldBeNil)
	select {
	case cfg := <-w.Configs():
		test.That(t, cfg.Workers, test.ShouldEqual, 3)
		test.That(t, len(cfg.Frames), test.ShouldEqual, 1)
	case <-time.After(5 * time.Second):
		t.Fatal("no config after write")
	}

	// invalid versions are skipped
	test.That(t, os.WriteFile(path, []byte(`{workers: -1}`), 0o600), test.ShouldBeNil)
	select {
	case cfg := <-w.Configs():
		t.Fatalf("unexpected config %+v", cfg)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherMissingDir(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "missing", "painter.json5"), time.Millisecond, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}
