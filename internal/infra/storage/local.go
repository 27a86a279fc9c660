package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidName is returned for object names that would escape the storage root.
var ErrInvalidName = errors.New("storage: invalid object name")

// LocalStore writes images below dir and returns references under urlPrefix,
// which the HTTP layer serves statically.
type LocalStore struct {
	dir       string
	urlPrefix string
}

// NewLocalStore creates dir if needed. urlPrefix is e.g. "/uploads/profile-images".
func NewLocalStore(dir, urlPrefix string) (*LocalStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: abs, urlPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

func (s *LocalStore) Save(ctx context.Context, name, _ string, body io.ReadSeeker) (string, error) {
	if name == "" || filepath.Base(name) != name || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return s.urlPrefix + "/" + name, nil
}
