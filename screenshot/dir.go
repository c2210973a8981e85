package screenshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DirStore writes screenshots into a local directory. References are bare
// file names, served by the API under /screenshots.
type DirStore struct {
	dir string
}

// NewDirStore creates dir if needed.
func NewDirStore(dir string) (*DirStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("screenshot: directory not set")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("screenshot: create %s: %w", dir, err)
	}
	return &DirStore{dir: dir}, nil
}

// Dir returns the directory screenshots are written to.
func (s *DirStore) Dir() string { return s.dir }

// Save implements Store. The file is written to a temp name and renamed so
// readers never see a partial image.
func (s *DirStore) Save(ctx context.Context, name string, png []byte) (string, error) {
	if len(png) == 0 {
		return "", ErrEmpty
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name = filepath.Base(name)

	tmp, err := os.CreateTemp(s.dir, ".tmp-*.png")
	if err != nil {
		return "", fmt.Errorf("screenshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(png); err != nil {
		tmp.Close()
		return "", fmt.Errorf("screenshot: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("screenshot: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return "", fmt.Errorf("screenshot: rename: %w", err)
	}
	return name, nil
}
