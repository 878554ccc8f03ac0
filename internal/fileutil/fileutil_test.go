package fileutil_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/book-expert/speech-publisher/internal/fileutil"
)

func TestGetCacheDir_WithOverride(t *testing.T) {
	expectedPath := "/custom/cache/dir"
	t.Setenv("CACHE_DIR", expectedPath)

	result := fileutil.GetCacheDir()
	if result != expectedPath {
		t.Errorf("Expected cache dir %q, but got %q", expectedPath, result)
	}
}

func TestGetCacheDir_XDG(t *testing.T) {
	t.Setenv("CACHE_DIR", "")
	t.Setenv("XDG_CACHE_HOME", "/xdg")

	result := fileutil.GetCacheDir()
	if result != filepath.Join("/xdg", "speech-publisher") {
		t.Errorf("Expected XDG cache dir, got %q", result)
	}
}

func TestEnsureDir(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a", "b", "c")

	err := fileutil.EnsureDir(path)
	if err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}

	info, statErr := os.Stat(path)
	if statErr != nil || !info.IsDir() {
		t.Fatalf("Expected directory at %q", path)
	}

	// A second call on an existing directory is a no-op.
	err = fileutil.EnsureDir(path)
	if err != nil {
		t.Errorf("EnsureDir on existing dir failed: %v", err)
	}
}

func TestResolveModelPath(t *testing.T) {
	cacheDir := t.TempDir()
	t.Setenv("CACHE_DIR", cacheDir)

	modelsDir := filepath.Join(cacheDir, "models")

	err := os.MkdirAll(modelsDir, 0o750)
	if err != nil {
		t.Fatalf("Failed to create models dir: %v", err)
	}

	err = os.WriteFile(filepath.Join(modelsDir, "voice.bin"), []byte("model"), 0o600)
	if err != nil {
		t.Fatalf("Failed to create model file: %v", err)
	}

	resolved, err := fileutil.ResolveModelPath("voice.bin")
	if err != nil {
		t.Fatalf("ResolveModelPath failed: %v", err)
	}

	if resolved != filepath.Join(modelsDir, "voice.bin") {
		t.Errorf("Expected model in cache dir, got %q", resolved)
	}

	_, err = fileutil.ResolveModelPath("missing.bin")
	if !errors.Is(err, fileutil.ErrModelNotFound) {
		t.Errorf("Expected ErrModelNotFound, got %v", err)
	}
}

func TestArtifactFileName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		title    string
		expected string
	}{
		{name: "plain title", title: "Episode One", expected: "Episode One.wav"},
		{name: "path separators", title: "a/b\\c", expected: "a_b_c.wav"},
		{name: "reserved characters", title: `Why? "Because": <yes>`, expected: `Why_ _Because__ _yes_.wav`},
		{name: "blank title", title: "   ", expected: "untitled.wav"},
		{name: "dot dot", title: "..", expected: "untitled.wav"},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			result := fileutil.ArtifactFileName(testCase.title, "wav")
			if result != testCase.expected {
				t.Errorf("Expected %q, got %q", testCase.expected, result)
			}
		})
	}
}

func TestFormatFileSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		expected string
		size     int64
	}{
		{expected: "512 B", size: 512},
		{expected: "1.5 KB", size: 1536},
		{expected: "2.0 MB", size: 2 * 1024 * 1024},
		{expected: "1.0 GB", size: 1024 * 1024 * 1024},
	}

	for _, testCase := range tests {
		result := fileutil.FormatFileSize(testCase.size)
		if result != testCase.expected {
			t.Errorf("Expected %q, got %q", testCase.expected, result)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	result := fileutil.FormatDuration(1234567 * time.Microsecond)
	if result != "1.23s" {
		t.Errorf("Expected 1.23s, got %q", result)
	}
}
