package safelist

import (
	"testing"

	"github.com/suxinde2009/ptsafe/errors"
	"github.com/suxinde2009/ptsafe/safecollection"
	"github.com/suxinde2009/ptsafe/safehandle"
)

func TestAppendGetRemove(t *testing.T) {
	l := New[string](safecollection.Options{})

	h1 := l.Append("a")
	defer h1.Close()
	h2 := l.Append("b")
	defer h2.Close()

	if got := l.Len(); got != 2 {
		t.Fatalf("expected len 2, got %d", got)
	}

	got, err := l.GetWithLock(0, safehandle.ReadOnly)
	if err != nil {
		t.Fatalf("GetWithLock: %v", err)
	}
	if got.Value() != "a" {
		t.Fatalf("expected a, got %v", got.Value())
	}
	got.Close()

	if err := l.RemoveAt(0); err != nil {
		t.Fatalf("RemoveAt: %v", err)
	}
	if got := l.Len(); got != 1 {
		t.Fatalf("expected len 1 after remove, got %d", got)
	}
}

func TestGetWithLockOutOfRange(t *testing.T) {
	l := New[int](safecollection.Options{})
	l.Append(1)

	if _, err := l.GetWithLock(5, safehandle.ReadOnly); !errors.IsKeyNotFound(err) {
		t.Fatalf("expected KeyNotFound, got %v", err)
	}
}

func TestFindWithLock(t *testing.T) {
	l := New[int](safecollection.Options{})
	l.Append(1)
	l.Append(2)
	l.Append(3)

	h, err := l.FindWithLock(func(v int) bool { return v == 2 }, safehandle.ReadWrite)
	if err != nil {
		t.Fatalf("FindWithLock: %v", err)
	}
	h.Set(20)
	h.Close()

	h2, err := l.FindWithLock(func(v int) bool { return v == 20 }, safehandle.ReadOnly)
	if err != nil {
		t.Fatalf("FindWithLock after update: %v", err)
	}
	h2.Close()
}

func TestRemoveAllEmptiesList(t *testing.T) {
	l := New[int](safecollection.Options{})
	l.Append(1)
	l.Append(2)
	l.RemoveAll()

	if got := l.Len(); got != 0 {
		t.Fatalf("expected len 0, got %d", got)
	}
}
