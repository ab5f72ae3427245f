package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"labelbot/internal/pkg/logx"
)

// localStore keeps objects on the local filesystem.
type localStore struct {
	root    string
	baseURL string
}

func newLocalStore(cfg ServiceConfig) (*localStore, error) {
	if cfg.LocalDir == "" {
		return nil, errors.New("local storage directory is required")
	}
	if cfg.PublicBaseURL == "" {
		return nil, errors.New("public base url is required for local storage")
	}
	if err := os.MkdirAll(cfg.LocalDir, 0o755); err != nil {
		return nil, fmt.Errorf("create local storage directory: %w", err)
	}

	return &localStore{
		root:    cfg.LocalDir,
		baseURL: strings.TrimRight(cfg.PublicBaseURL, "/") + LocalRoutePrefix,
	}, nil
}

// path maps a slash-separated key (or prefix) to a path below root.
func (s *localStore) path(key string) (string, error) {
	clean := strings.TrimSuffix(key, "/")
	if clean == "" || strings.Contains(clean, `\`) || !filepath.IsLocal(filepath.FromSlash(clean)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// Put writes to a temporary file first so readers never see a partial image.
func (s *localStore) Put(_ context.Context, key string, body io.Reader, _ string) error {
	dst, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp object: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return fmt.Errorf("write object %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close object %s: %w", key, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod object %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("commit object %s: %w", key, err)
	}
	return nil
}

func (s *localStore) URL(_ context.Context, key string) (string, error) {
	if _, err := s.path(key); err != nil {
		return "", err
	}
	return s.baseURL + key, nil
}

func (s *localStore) ListPrefixes(_ context.Context, prefix string) ([]string, error) {
	dir, err := s.path(prefix)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}

	base := strings.TrimSuffix(prefix, "/") + "/"
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, base+e.Name()+"/")
		}
	}
	return out, nil
}

func (s *localStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	dir, err := s.path(prefix)
	if err != nil {
		return 0, err
	}

	count := 0
	err = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("scan %s: %w", prefix, err)
	}

	if err := os.RemoveAll(dir); err != nil {
		logx.Error(err, "Local storage delete failed", "prefix", prefix)
		return 0, fmt.Errorf("delete %s: %w", prefix, err)
	}
	return count, nil
}
