package safehandle

import (
	"testing"

	"github.com/suxinde2009/ptsafe/errors"
	"github.com/suxinde2009/ptsafe/safecollection"
)

func TestOpenObjectEnterExitMode(t *testing.T) {
	c := safecollection.New[int](safecollection.Options{})
	obj := c.InternalAppend(42)

	h, err := OpenObject(obj)
	if err != nil {
		t.Fatalf("OpenObject: %v", err)
	}
	defer h.Close()

	if h.Mode() != Reference {
		t.Fatalf("expected Reference mode, got %v", h.Mode())
	}
	if err := h.EnterMode(ReadOnly); err != nil {
		t.Fatalf("EnterMode(ReadOnly): %v", err)
	}
	if h.Value() != 42 {
		t.Fatalf("expected 42, got %v", h.Value())
	}
	if err := h.EnterMode(ReadWrite); err != nil {
		t.Fatalf("EnterMode(ReadWrite): %v", err)
	}
	h.Set(43)
	if err := h.ExitMode(); err != nil {
		t.Fatalf("ExitMode: %v", err)
	}
	if h.Mode() != Reference {
		t.Fatalf("expected Reference mode after ExitMode, got %v", h.Mode())
	}
}

func TestEnterModeFailsCleanlyAfterRemoval(t *testing.T) {
	// H3: a mode change that fails leaves the handle in its prior state,
	// not half-upgraded.
	c := safecollection.New[int](safecollection.Options{})
	obj := c.InternalAppend(1)

	h, err := OpenObject(obj)
	if err != nil {
		t.Fatalf("OpenObject: %v", err)
	}
	defer h.Close()

	if err := h.EnterMode(ReadOnly); err != nil {
		t.Fatalf("EnterMode(ReadOnly): %v", err)
	}
	if err := h.ExitMode(); err != nil {
		t.Fatalf("ExitMode: %v", err)
	}

	obj.MarkRemoved()
	if err := h.EnterMode(ReadWrite); !errors.IsObjectRemoved(err) {
		t.Fatalf("expected ObjectRemoved, got %v", err)
	}
	if h.Mode() != Reference {
		t.Fatalf("expected handle to remain at Reference after failed upgrade, got %v", h.Mode())
	}
}

func TestCloneIsIndependentReference(t *testing.T) {
	// H1: cloning a handle takes its own reference; closing one clone must
	// not invalidate the other.
	c := safecollection.New[int](safecollection.Options{})
	obj := c.InternalAppend(1)

	h1, err := OpenObject(obj)
	if err != nil {
		t.Fatalf("OpenObject: %v", err)
	}
	h2, err := h1.Clone()
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if h2.Mode() != Reference {
		t.Fatalf("expected clone to start at Reference mode")
	}

	before := obj.RefCount()
	h1.Close()
	if obj.RefCount() != before-1 {
		t.Fatalf("expected refcount to drop by exactly 1 after closing one handle")
	}
	if err := h2.EnterMode(ReadOnly); err != nil {
		t.Fatalf("clone should still be able to lock: %v", err)
	}
	h2.Close()
}

func TestCloseIsIdempotent(t *testing.T) {
	c := safecollection.New[int](safecollection.Options{})
	obj := c.InternalAppend(1)
	h, err := OpenObject(obj)
	if err != nil {
		t.Fatalf("OpenObject: %v", err)
	}
	h.Close()
	h.Close() // must not panic or double-dereference
}

func TestNextPreviousTraversal(t *testing.T) {
	c := safecollection.New[int](safecollection.Options{})
	c.InternalAppend(1)
	objMid := c.InternalAppend(2)
	c.InternalAppend(3)

	h, err := Attach(c, objMid)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer h.Close()

	next, err := h.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	defer next.Close()
	if next.Value() != 3 {
		t.Fatalf("expected 3, got %v", next.Value())
	}

	prev, err := h.Previous()
	if err != nil {
		t.Fatalf("Previous: %v", err)
	}
	defer prev.Close()
	if prev.Value() != 1 {
		t.Fatalf("expected 1, got %v", prev.Value())
	}
}

func TestNextSkipsRemovedNeighbor(t *testing.T) {
	c := safecollection.New[int](safecollection.Options{})
	objFirst := c.InternalAppend(1)
	c.InternalAppend(2)
	c.InternalAppend(3)

	h, err := Attach(c, objFirst)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer h.Close()

	// Take the snapshot position stable, then remove the middle element by
	// identity before Next walks past it — Next must skip to 3, not error.
	snapshot := c.Snapshot()
	middle := snapshot[1]
	c.RemoveObject(middle)

	next, err := h.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	defer next.Close()
	if next.Value() != 3 {
		t.Fatalf("expected Next to skip the removed neighbor and land on 3, got %v", next.Value())
	}
}

func TestNextCarriesLockModeAcrossRemovedNeighbor(t *testing.T) {
	// spec.md §4.3 seed scenario 3: a ReadOnly handle stepping past a
	// concurrently-removed neighbor must land on the next live member with
	// the same ReadOnly mode acquired there, not silently downgraded.
	c := safecollection.New[int](safecollection.Options{})
	objFirst := c.InternalAppend(1)
	c.InternalAppend(2)
	c.InternalAppend(3)

	h, err := Attach(c, objFirst)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer h.Close()
	if err := h.EnterMode(ReadOnly); err != nil {
		t.Fatalf("EnterMode(ReadOnly): %v", err)
	}

	snapshot := c.Snapshot()
	middle := snapshot[1]
	c.RemoveObject(middle)

	next, err := h.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	defer next.Close()
	if next.Value() != 3 {
		t.Fatalf("expected Next to skip the removed neighbor and land on 3, got %v", next.Value())
	}
	if next.Mode() != ReadOnly {
		t.Fatalf("expected Next to carry ReadOnly mode onto the new handle, got %v", next.Mode())
	}
}

func TestStepRequiresAttachedCollection(t *testing.T) {
	c := safecollection.New[int](safecollection.Options{})
	obj := c.InternalAppend(1)
	h, err := OpenObject(obj)
	if err != nil {
		t.Fatalf("OpenObject: %v", err)
	}
	defer h.Close()

	if _, err := h.Next(); err == nil {
		t.Fatalf("expected error calling Next on an unattached handle")
	}
}
