package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"snakedqn/internal/nn"
)

// Store is the opaque model store: network parameters saved and loaded by key.
type Store interface {
	Init(ctx context.Context) error
	SaveParams(ctx context.Context, key string, p nn.Params) error
	// LoadParams reports ok=false, with a nil error, when key was never saved
	LoadParams(ctx context.Context, key string) (nn.Params, bool, error)
}

// NewStore builds a backend by name: memory, file or sqlite
func NewStore(kind, path string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "file":
		return NewFileStore(path), nil
	case "sqlite":
		return NewSQLiteStore(path), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}

func validateKey(key string) error {
	if key == "" {
		return errors.New("model key is required")
	}
	if strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("invalid model key %q", key)
	}
	return nil
}
