// Package testgen generates minimal but structurally valid export artifacts
// (EPUB, PDF, DOCX, bundle archives) for exercising the download pipeline in
// tests without a real generation backend.
package testgen

import (
	"os"
	"path/filepath"
	"testing"
)

// ArtifactOptions configures generated artifacts.
type ArtifactOptions struct {
	Title     string
	PageCount int // defaults to 1
}

func (opts ArtifactOptions) pageCount() int {
	if opts.PageCount <= 0 {
		return 1
	}
	return opts.PageCount
}

func (opts ArtifactOptions) title() string {
	if opts.Title == "" {
		return "Untitled"
	}
	return opts.Title
}

// WriteFile writes an artifact into dir and returns its path.
func WriteFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}
