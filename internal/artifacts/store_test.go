package artifacts_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tradeverifyd/cbor-cose-go/internal/artifacts"
)

func TestNewLocalStore(t *testing.T) {
	t.Run("creates nested directories", func(t *testing.T) {
		storePath := filepath.Join(t.TempDir(), "nested", "artifacts")
		if _, err := artifacts.NewLocalStore(storePath); err != nil {
			t.Fatalf("new local store: %v", err)
		}
		if _, err := os.Stat(storePath); os.IsNotExist(err) {
			t.Error("store directory was not created")
		}
	})
}

func testStore(t *testing.T, store artifacts.Store) {
	t.Helper()

	if data, err := store.Get("missing"); err != nil || data != nil {
		t.Fatalf("expected nil, nil for a missing id, got %v, %v", data, err)
	}

	payload := []byte{0xd2, 0x84, 0x43, 0xa1, 0x01, 0x26}
	if err := store.Put("doc-1", payload); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := store.Get("doc-1")
	if err != nil || string(got) != string(payload) {
		t.Fatalf("get after put: got %v, %v", got, err)
	}

	exists, err := store.Exists("doc-1")
	if err != nil || !exists {
		t.Fatalf("expected doc-1 to exist, got %v, %v", exists, err)
	}

	if err := store.Put("prefix/doc-2", []byte("x")); err != nil {
		t.Fatalf("put prefixed: %v", err)
	}
	ids, err := store.List("prefix/")
	if err != nil || len(ids) != 1 || ids[0] != "prefix/doc-2" {
		t.Fatalf("list: got %v, %v", ids, err)
	}

	if err := store.Delete("doc-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if exists, err := store.Exists("doc-1"); err != nil || exists {
		t.Fatalf("expected doc-1 to be gone, got %v, %v", exists, err)
	}
	if err := store.Delete("doc-1"); err != nil {
		t.Fatalf("deleting an already-missing id should not error: %v", err)
	}
}

func TestLocalStore(t *testing.T) {
	store, err := artifacts.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	testStore(t, store)
}

func TestMemoryStore(t *testing.T) {
	testStore(t, artifacts.NewMemoryStore())
}
