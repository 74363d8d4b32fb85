package session

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// localStore implements Store on the local filesystem, used for plain-path
// input/output roots and in tests.
type localStore struct{}

func newLocalStore() *localStore {
	return &localStore{}
}

func (s *localStore) List(ctx context.Context, root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.IsDir() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing files under %s: %w", root, err)
	}
	return files, nil
}

func (s *localStore) Fetch(ctx context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (s *localStore) Put(ctx context.Context, path string, localFile string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	src, err := os.Open(localFile)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err = io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func (s *localStore) RemoveAll(ctx context.Context, root string) error {
	return os.RemoveAll(root)
}
