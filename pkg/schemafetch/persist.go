package schemafetch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Persist writes the document content verbatim to path, creating the parent
// directory if needed. The file is replaced atomically.
func Persist(doc *Document, path string) error {
	if doc == nil {
		return errors.New("persist schema: nil document")
	}
	if path == "" {
		return errors.New("persist schema: empty destination path")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("persist schema: create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("persist schema: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.WriteString(doc.Content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("persist schema: write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("persist schema: close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("persist schema: chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("persist schema: rename to %s: %w", path, err)
	}
	return nil
}
