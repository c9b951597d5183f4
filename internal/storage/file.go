package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"snakedqn/internal/nn"
)

// FileStore keeps one JSON document per key under a directory
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) Init(_ context.Context) error {
	if s.dir == "" {
		return errors.New("file store directory is required")
	}
	return os.MkdirAll(s.dir, 0o755)
}

func (s *FileStore) SaveParams(_ context.Context, key string, p nn.Params) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	data, err := EncodeModelJSON(key, p)
	if err != nil {
		return err
	}

	// replace atomically
	path := s.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *FileStore) LoadParams(_ context.Context, key string) (nn.Params, bool, error) {
	if err := validateKey(key); err != nil {
		return nn.Params{}, false, err
	}
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nn.Params{}, false, nil
	}
	if err != nil {
		return nn.Params{}, false, err
	}
	rec, err := DecodeModelJSON(data)
	if err != nil {
		return nn.Params{}, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return rec.Params, true, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}
