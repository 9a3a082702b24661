package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		Debounce:     100 * time.Millisecond,
		SourceExts:   []string{".ts", ".js"},
		TemplateExts: []string{".html"},
		ExcludeDirs:  []string{"node_modules"},
		ExcludeFiles: []string{"*.gen.ts"},
	}
}

func TestNewWatcher_RejectsNilCallback(t *testing.T) {
	w, err := New(testConfig(), nil)
	if err == nil {
		t.Fatal("expected error for nil callback")
	}
	if !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("expected os.ErrInvalid, got %v", err)
	}
	if w != nil {
		t.Fatal("expected nil watcher when callback is invalid")
	}
}

func TestWatcherClassifiesBatches(t *testing.T) {
	tmpDir, _ := os.MkdirTemp("", "weftwatch")
	defer os.RemoveAll(tmpDir)

	changes := make(chan ChangeSet, 4)
	w, err := New(testConfig(), func(set ChangeSet) {
		changes <- set
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	source := filepath.Join(tmpDir, "user-card.ts")
	template := filepath.Join(tmpDir, "user-card.html")
	os.WriteFile(source, []byte("export class UserCard {}"), 0644)
	os.WriteFile(template, []byte("<template></template>"), 0644)

	select {
	case set := <-changes:
		if !containsPath(set.Sources, source) {
			t.Errorf("expected %s in sources, got %+v", source, set)
		}
		if !containsPath(set.Templates, template) {
			t.Errorf("expected %s in templates, got %+v", template, set)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change batch")
	}
}

func TestWatcherIgnoresUnrelatedAndExcludedFiles(t *testing.T) {
	tmpDir, _ := os.MkdirTemp("", "weftwatch")
	defer os.RemoveAll(tmpDir)

	changes := make(chan ChangeSet, 4)
	w, err := New(testConfig(), func(set ChangeSet) {
		changes <- set
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	os.WriteFile(filepath.Join(tmpDir, "notes.md"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(tmpDir, "types.d.ts"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(tmpDir, "api.gen.ts"), []byte("x"), 0644)

	select {
	case set := <-changes:
		t.Errorf("expected no batch, got %+v", set)
	case <-time.After(400 * time.Millisecond):
		// Expected: nothing relevant changed.
	}
}

func TestWatcherPicksUpNewDirectories(t *testing.T) {
	tmpDir, _ := os.MkdirTemp("", "weftwatch")
	defer os.RemoveAll(tmpDir)

	changes := make(chan ChangeSet, 4)
	w, err := New(testConfig(), func(set ChangeSet) {
		changes <- set
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	subdir := filepath.Join(tmpDir, "components")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatal(err)
	}
	// Give the watcher a beat to register the new directory.
	time.Sleep(200 * time.Millisecond)

	nested := filepath.Join(subdir, "badge.ts")
	os.WriteFile(nested, []byte("export class Badge {}"), 0644)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case set := <-changes:
			if containsPath(set.Sources, nested) {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for nested file change")
		}
	}
}

func containsPath(paths []string, want string) bool {
	for _, p := range paths {
		if p == want {
			return true
		}
	}
	return false
}
