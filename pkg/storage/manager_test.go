package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestManager(t *testing.T) {
	tempDir := t.TempDir()

	manager, err := NewManager(tempDir, false)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if manager.SavedCount() != 0 {
		t.Error("Expected initial saved count to be 0")
	}

	if manager.Exists("cats-1.jpg") {
		t.Error("Expected Exists to return false for non-existent file")
	}

	testData := []byte("test image data")
	path, err := manager.Save(bytes.NewReader(testData), "cats-1.jpg")
	if err != nil {
		t.Fatalf("Failed to save image: %v", err)
	}

	expectedPath := filepath.Join(tempDir, "cats-1.jpg")
	if path != expectedPath {
		t.Errorf("Expected path %s, got %s", expectedPath, path)
	}

	content, err := os.ReadFile(expectedPath)
	if err != nil {
		t.Fatalf("Failed to read saved file: %v", err)
	}
	if !bytes.Equal(content, testData) {
		t.Error("File content does not match expected data")
	}

	if !manager.Exists("cats-1.jpg") {
		t.Error("Expected Exists to return true for existing file")
	}

	if manager.SavedCount() != 1 {
		t.Errorf("Expected saved count to be 1, got %d", manager.SavedCount())
	}
}

func TestSaveKeepsExistingFiles(t *testing.T) {
	tempDir := t.TempDir()
	manager, err := NewManager(tempDir, false)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	first, _ := manager.Save(bytes.NewReader([]byte("one")), "tabby.jpg")
	second, _ := manager.Save(bytes.NewReader([]byte("two")), "tabby.jpg")
	third, _ := manager.Save(bytes.NewReader([]byte("three")), "tabby.jpg")

	if first != filepath.Join(tempDir, "tabby.jpg") ||
		second != filepath.Join(tempDir, "tabby-1.jpg") ||
		third != filepath.Join(tempDir, "tabby-2.jpg") {
		t.Errorf("Unexpected collision naming: %s %s %s", first, second, third)
	}

	content, _ := os.ReadFile(first)
	if string(content) != "one" {
		t.Errorf("Expected original file to be untouched, got %q", content)
	}
}

func TestSaveOverwrite(t *testing.T) {
	tempDir := t.TempDir()
	manager, err := NewManager(tempDir, true)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	manager.Save(bytes.NewReader([]byte("one")), "tabby.jpg")
	path, err := manager.Save(bytes.NewReader([]byte("two")), "tabby.jpg")
	if err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	content, _ := os.ReadFile(path)
	if string(content) != "two" {
		t.Errorf("Expected file to be overwritten, got %q", content)
	}
}

func TestSaveFailureLeavesNoFile(t *testing.T) {
	tempDir := t.TempDir()
	manager, err := NewManager(tempDir, false)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if _, err := manager.Save(failingReader{}, "broken.jpg"); err == nil {
		t.Fatal("Expected save to fail")
	}

	entries, _ := os.ReadDir(tempDir)
	if len(entries) != 0 {
		t.Errorf("Expected no files after failed save, found %d", len(entries))
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"cats-1.jpg", "cats-1.jpg"},
		{"../../etc/passwd", "_.._etc_passwd"},
		{"what? a cat.jpg", "what_ a cat.jpg"},
		{"  ", "untitled"},
		{"..", "untitled"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewManagerCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	manager, err := NewManager(dir, false)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	if manager.GetOutputDir() != dir {
		t.Errorf("Expected output dir %s, got %s", dir, manager.GetOutputDir())
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("Expected directory to exist: %v", err)
	}
}
