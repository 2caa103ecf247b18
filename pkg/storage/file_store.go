package storage

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileStore saves uploaded files to disk under a base directory. Stored
// names carry a short random suffix so repeated uploads of the same
// filename never collide.
type FileStore struct {
	basePath string
}

// NewFileStore creates the base directory if missing.
func NewFileStore(basePath string) (*FileStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("storage base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

// Save writes an uploaded stream and returns the stored path.
func (f *FileStore) Save(filename string, r io.Reader) (string, error) {
	name := safeFilename(filename)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	suffix := uuid.NewString()[:8]
	target := filepath.Join(f.basePath, fmt.Sprintf("%s_%s%s", base, suffix, ext))

	out, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return target, nil
}

// Remove deletes one stored file. Paths outside the base directory are
// rejected.
func (f *FileStore) Remove(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	base, err := filepath.Abs(f.basePath)
	if err != nil {
		return fmt.Errorf("resolve base path: %w", err)
	}
	if !strings.HasPrefix(abs, base+string(os.PathSeparator)) {
		return fmt.Errorf("path %q is outside the upload dir", path)
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// Sweep removes files whose modification time precedes now-olderThan.
// Individual removal failures are logged and the sweep continues; the
// count of removed files is returned.
func (f *FileStore) Sweep(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)
	entries, err := os.ReadDir(f.basePath)
	if err != nil {
		slog.Error("cleanup: read upload dir", "dir", f.basePath, "error", err)
		return 0
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			slog.Warn("cleanup: stat file", "file", entry.Name(), "error", err)
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(f.basePath, entry.Name())
		if err := os.Remove(path); err != nil {
			slog.Warn("cleanup: remove file", "file", entry.Name(), "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		slog.Info("cleanup: removed old uploads", "count", removed, "older_than", olderThan.String())
	}
	return removed
}

func safeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, string(os.PathSeparator), "_")
	name = strings.TrimSpace(name)
	if name == "" {
		return "document.pdf"
	}
	return name
}
