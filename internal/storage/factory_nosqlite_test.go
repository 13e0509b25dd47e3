//go:build !sqlite

package storage

import "testing"

func TestSQLiteUnavailableWithoutTag(t *testing.T) {
	if DefaultStoreKind() != "memory" {
		t.Fatalf("expected memory default, got %s", DefaultStoreKind())
	}
	if _, err := NewStore("sqlite", "cpg.db"); err == nil {
		t.Fatal("expected sqlite backend to be unavailable")
	}
}
