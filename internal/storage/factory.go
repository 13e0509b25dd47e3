package storage

import "fmt"

const (
	KindMemory = "memory"
	KindSQLite = "sqlite"
)

// NewStore opens the trial store named by kind. The sqlite backend needs the
// sqlite build tag and keeps runs, trials and sweeps in dbPath.
func NewStore(kind, dbPath string) (Store, error) {
	switch kind {
	case "", KindMemory:
		return NewMemoryStore(), nil
	case KindSQLite:
		return newSQLiteStore(dbPath)
	default:
		return nil, fmt.Errorf("unsupported store backend %q (want %s or %s)", kind, KindMemory, KindSQLite)
	}
}

// CloseIfSupported releases stores that hold a database handle.
func CloseIfSupported(store Store) error {
	if closer, ok := store.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
