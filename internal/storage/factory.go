package storage

import "fmt"

// NewStore builds a store backend. path is the sqlite database file or the
// leveldb directory.
func NewStore(kind, path string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(path)
	case "leveldb":
		if path == "" {
			return nil, fmt.Errorf("leveldb path is required")
		}
		return NewLevelDBStore(path), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

// DefaultPath is the conventional location for a backend's data.
func DefaultPath(kind string) string {
	switch kind {
	case "sqlite":
		return "islandga.db"
	case "leveldb":
		return "islandga.ldb"
	default:
		return ""
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
