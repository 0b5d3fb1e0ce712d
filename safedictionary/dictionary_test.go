package safedictionary

import (
	"testing"

	"github.com/suxinde2009/ptsafe/errors"
	"github.com/suxinde2009/ptsafe/safecollection"
	"github.com/suxinde2009/ptsafe/safehandle"
)

func TestSetFindRemove(t *testing.T) {
	d := New[string, int](safecollection.Options{})

	h, err := d.SetAt("a", 1)
	if err != nil {
		t.Fatalf("SetAt: %v", err)
	}
	h.Close()

	if got := d.Len(); got != 1 {
		t.Fatalf("expected len 1, got %d", got)
	}

	found, err := d.FindWithLock("a", safehandle.ReadOnly)
	if err != nil {
		t.Fatalf("FindWithLock: %v", err)
	}
	if found.Value() != 1 {
		t.Fatalf("expected 1, got %v", found.Value())
	}
	found.Close()

	if err := d.RemoveAt("a"); err != nil {
		t.Fatalf("RemoveAt: %v", err)
	}
	if got := d.Len(); got != 0 {
		t.Fatalf("expected len 0 after remove, got %d", got)
	}
}

func TestFindWithLockMissingKey(t *testing.T) {
	d := New[string, int](safecollection.Options{})
	if _, err := d.FindWithLock("missing", safehandle.ReadOnly); !errors.IsKeyNotFound(err) {
		t.Fatalf("expected KeyNotFound, got %v", err)
	}
	// Second miss exercises the absent-key cache fast path.
	if _, err := d.FindWithLock("missing", safehandle.ReadOnly); !errors.IsKeyNotFound(err) {
		t.Fatalf("expected KeyNotFound on cached miss, got %v", err)
	}
}

func TestSetAtReplacesExistingKey(t *testing.T) {
	d := New[string, int](safecollection.Options{})
	h1, err := d.SetAt("a", 1)
	if err != nil {
		t.Fatalf("SetAt: %v", err)
	}
	h1.Close()

	h2, err := d.SetAt("a", 2)
	if err != nil {
		t.Fatalf("SetAt replace: %v", err)
	}
	defer h2.Close()

	if got := d.Len(); got != 1 {
		t.Fatalf("expected len 1 after replace, got %d", got)
	}
	found, err := d.FindWithLock("a", safehandle.ReadOnly)
	if err != nil {
		t.Fatalf("FindWithLock: %v", err)
	}
	defer found.Close()
	if found.Value() != 2 {
		t.Fatalf("expected replaced value 2, got %v", found.Value())
	}
}

func TestRemoveAtUnknownKey(t *testing.T) {
	d := New[string, int](safecollection.Options{})
	if err := d.RemoveAt("nope"); !errors.IsKeyNotFound(err) {
		t.Fatalf("expected KeyNotFound, got %v", err)
	}
}

func TestKeysPreservesInsertionOrder(t *testing.T) {
	d := New[string, int](safecollection.Options{})
	order := []string{"z", "a", "m"}
	for i, k := range order {
		h, err := d.SetAt(k, i)
		if err != nil {
			t.Fatalf("SetAt(%s): %v", k, err)
		}
		h.Close()
	}

	keys := d.Keys()
	if len(keys) != len(order) {
		t.Fatalf("expected %d keys, got %d", len(order), len(keys))
	}
	for i, k := range order {
		if keys[i] != k {
			t.Fatalf("expected insertion order %v, got %v", order, keys)
		}
	}
}
