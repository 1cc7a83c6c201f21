package share

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mkarlsson/invoice-relay/internal/domain"
)

// LocalShare serves a mounted directory tree as the batch exchange area.
type LocalShare struct {
	root string
}

func NewLocalShare(root string) (*LocalShare, error) {
	trimmedRoot := strings.TrimSpace(root)
	if trimmedRoot == "" {
		return nil, fmt.Errorf("share root is required")
	}

	info, err := os.Stat(trimmedRoot)
	if err != nil {
		return nil, fmt.Errorf("share root %q: %w", trimmedRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("share root %q is not a directory", trimmedRoot)
	}

	return &LocalShare{root: trimmedRoot}, nil
}

func (s *LocalShare) List(ctx context.Context, path string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.resolve(path, ""))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("share path %q: %w", path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("listing share path %q: %w", path, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}

	return names, nil
}

func (s *LocalShare) Read(ctx context.Context, path, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.resolve(path, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("share file %q: %w", name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("reading share file %q: %w", name, err)
	}

	return data, nil
}

func (s *LocalShare) Write(ctx context.Context, path, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := s.resolve(path, name)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating share path %q: %w", path, err)
	}

	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("writing share file %q: %w", name, err)
	}

	return nil
}

func (s *LocalShare) Delete(ctx context.Context, path, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(s.resolve(path, name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("share file %q: %w", name, domain.ErrNotFound)
		}
		return fmt.Errorf("deleting share file %q: %w", name, err)
	}

	return nil
}

func (s *LocalShare) resolve(path, name string) string {
	cleaned := strings.Trim(strings.TrimSpace(path), "/")
	if name == "" {
		return filepath.Join(s.root, filepath.FromSlash(cleaned))
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned), name)
}
