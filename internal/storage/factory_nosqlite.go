//go:build !sqlite

package storage

import "fmt"

// DefaultStoreKind is memory unless built with the sqlite tag.
func DefaultStoreKind() string {
	return KindMemory
}

func newSQLiteStore(_ string) (Store, error) {
	return nil, fmt.Errorf("sqlite backend unavailable in this build; rebuild with -tags sqlite")
}
