package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Manager writes exported payloads into one output directory
type Manager struct {
	outputDir string
	overwrite bool
	saved     map[string]bool
	mu        sync.Mutex
}

// NewManager creates a new storage manager rooted at outputDir. When
// overwrite is false an existing file is never replaced; the new file gets a
// numeric suffix instead.
func NewManager(outputDir string, overwrite bool) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Manager{
		outputDir: outputDir,
		overwrite: overwrite,
		saved:     make(map[string]bool),
	}, nil
}

// SanitizeFilename strips path separators and characters most filesystems
// reject. An empty result becomes "untitled".
func SanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, name)

	name = strings.Trim(strings.TrimSpace(name), ".")
	if name == "" {
		return "untitled"
	}
	return name
}

// Exists reports whether filename is already present in the output directory
func (m *Manager) Exists(filename string) bool {
	_, err := os.Stat(filepath.Join(m.outputDir, SanitizeFilename(filename)))
	return err == nil
}

// Save writes r to filename and returns the path actually written
func (m *Manager) Save(r io.Reader, filename string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	target := m.resolve(SanitizeFilename(filename))

	tempFile := target + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to write file data: %w", err)
	}

	if closeErr != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, target); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.saved[target] = true
	return target, nil
}

// resolve picks the destination path, appending -1, -2, ... to the base
// name until it is free unless overwriting is allowed. Caller holds mu.
func (m *Manager) resolve(name string) string {
	target := filepath.Join(m.outputDir, name)
	if m.overwrite {
		return target
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		if _, err := os.Stat(target); os.IsNotExist(err) {
			return target
		}
		target = filepath.Join(m.outputDir, fmt.Sprintf("%s-%d%s", base, n, ext))
	}
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// SavedCount returns the number of distinct files written by this manager
func (m *Manager) SavedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}
