// Package safehandle implements the scoped smart-pointer half of the
// protocol: a handle bundles an object's reference with whatever lock mode
// it currently holds, so the two can never be dropped independently by
// accident (spec.md §4.3).
//
// EnterMode's two-step release/acquire sequence is expressed with
// txn.CallbackTransaction + txn.Execute, the same rollback-on-failure
// vocabulary helm.sh's install/upgrade path uses in the teacher's txn
// package: if acquiring the new mode fails, the old mode is restored when
// its lock can be retaken, and the handle falls back to Reference mode when
// it cannot.
package safehandle

import (
	"github.com/suxinde2009/ptsafe/errors"
	"github.com/suxinde2009/ptsafe/safecollection"
	"github.com/suxinde2009/ptsafe/safeobject"
	"github.com/suxinde2009/ptsafe/txn"
)

// Mode is the lock state a Handle holds on its target object.
type Mode int

const (
	// Reference holds only the reference count; no read or write lock.
	Reference Mode = iota
	// ReadOnly holds the shared lock in addition to the reference.
	ReadOnly
	// ReadWrite holds the exclusive lock in addition to the reference.
	ReadWrite
)

// Handle bundles a safeobject.Object reference with its current lock mode.
// The zero value is not usable; construct with OpenObject, Attach or Clone.
type Handle[T any] struct {
	coll *safecollection.Collection[T] // nil if not attached to a collection (no traversal)
	obj  *safeobject.Object[T]
	mode Mode
	done bool
}

// OpenObject wraps obj in a new Handle at Reference mode, taking a fresh
// reference. Use this when a caller already holds an *safeobject.Object[T]
// obtained some other way (e.g. directly from InternalAppend's return
// value) and wants scoped handle semantics around it.
func OpenObject[T any](obj *safeobject.Object[T]) (*Handle[T], error) {
	if err := obj.Reference(); err != nil {
		return nil, err
	}
	return &Handle[T]{obj: obj, mode: Reference}, nil
}

// Attach wraps obj the same way OpenObject does, but also records coll so
// Next/Previous can traverse. The object must already be (or have been) a
// member of coll.
func Attach[T any](coll *safecollection.Collection[T], obj *safeobject.Object[T]) (*Handle[T], error) {
	h, err := OpenObject(obj)
	if err != nil {
		return nil, err
	}
	h.coll = coll
	return h, nil
}

// Mode reports the handle's current lock mode.
func (h *Handle[T]) Mode() Mode { return h.mode }

// Value returns the wrapped value. The caller must hold ReadOnly or
// ReadWrite mode for the result to be safe to read concurrently with a
// writer; Handle itself does not check this, matching safeobject.Value.
func (h *Handle[T]) Value() T { return h.obj.Value() }

// Set overwrites the wrapped value. The caller must hold ReadWrite mode.
func (h *Handle[T]) Set(v T) { h.obj.Set(v) }

// Object exposes the underlying safeobject.Object, for callers (safelist,
// safedictionary) that need to pass it to Collection methods.
func (h *Handle[T]) Object() *safeobject.Object[T] { return h.obj }

func (h *Handle[T]) releaseCurrent() error {
	switch h.mode {
	case ReadOnly:
		h.obj.ReleaseRead()
	case ReadWrite:
		h.obj.ReleaseWrite()
	}
	return nil
}

func (h *Handle[T]) acquire(mode Mode) error {
	switch mode {
	case ReadOnly:
		return h.obj.AcquireRead()
	case ReadWrite:
		return h.obj.AcquireWrite()
	}
	return nil
}

// EnterMode transitions the handle to mode. If acquiring the new mode
// fails (most commonly because the object has since been removed), the
// handle is put back in the mode it held before the call. If that mode's
// lock cannot be retaken either (the object was removed in between), the
// handle is left in Reference mode, still holding its reference; it never
// keeps a mode whose lock it does not hold.
func (h *Handle[T]) EnterMode(mode Mode) error {
	if h.done {
		return errors.NewObjectRemoved("handle")
	}
	if mode == h.mode {
		return nil
	}
	current := h.mode
	release := txn.CallbackTransaction{
		CommitFunc: h.releaseCurrent,
		RevertFunc: func() error {
			if err := h.acquire(current); err != nil {
				h.mode = Reference
				return err
			}
			return nil
		},
	}
	acquire := txn.CallbackTransaction{
		CommitFunc: func() error { return h.acquire(mode) },
	}
	if err := txn.Execute(release, acquire); err != nil {
		return err
	}
	h.mode = mode
	return nil
}

// ExitMode is shorthand for EnterMode(Reference): drop whatever lock is
// held, keep the reference.
func (h *Handle[T]) ExitMode() error {
	return h.EnterMode(Reference)
}

// Clone produces an independent Handle over the same object. A clone never
// duplicates a held lock — it starts at Reference mode regardless of h's
// current mode, matching spec.md H1: copying a handle copies the
// reference, not the lock (a caller wanting a locked clone must EnterMode
// it explicitly, same as any freshly-opened handle).
func (h *Handle[T]) Clone() (*Handle[T], error) {
	clone, err := OpenObject(h.obj)
	if err != nil {
		return nil, err
	}
	clone.coll = h.coll
	return clone, nil
}

// Close releases whatever lock is held and drops the handle's reference.
// Idempotent: a second Close is a no-op. Callers should defer Close
// immediately after a successful OpenObject/Attach/Clone (H2: a handle that goes
// out of scope without Close leaks a reference, same as forgetting to
// Dereference a raw safeobject.Object).
func (h *Handle[T]) Close() {
	if h.done {
		return
	}
	h.releaseCurrent()
	h.obj.Dereference()
	h.done = true
}

// Next returns a new handle, holding the same lock mode as h, on the next
// live member after this handle's current position. A neighbor that was
// removed between the snapshot and the attempt to reference or lock it is
// skipped and the walk continues in the same direction. Returns
// errors.NewNotFound if there is no such member, or errors.NewBadRequest
// if the handle was not opened via Attach (spec.md §4.3 traversal).
func (h *Handle[T]) Next() (*Handle[T], error) {
	return h.step(1)
}

// Previous is Next's mirror, walking toward lower indices.
func (h *Handle[T]) Previous() (*Handle[T], error) {
	return h.step(-1)
}

func (h *Handle[T]) step(dir int) (*Handle[T], error) {
	if h.coll == nil {
		return nil, errors.NewBadRequest("handle is not attached to a collection")
	}
	// Identity is snapshotted under the collection's own mutex, then every
	// candidate is locked (referenced) outside it — never hold the
	// collection mutex and an object's guard at once (spec.md I4).
	snapshot := h.coll.Snapshot()
	idx := -1
	for i, obj := range snapshot {
		if obj == h.obj {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, errors.NewObjectRemoved("handle position")
	}
	for i := idx + dir; i >= 0 && i < len(snapshot); i += dir {
		candidate := snapshot[i]
		next, err := Attach(h.coll, candidate)
		if err != nil {
			// Removed between snapshot and reference attempt: skip it.
			continue
		}
		if h.mode != Reference {
			if err := next.EnterMode(h.mode); err != nil {
				// Removed between the reference and the lock attempt:
				// drop the reference we just took and keep walking.
				next.Close()
				continue
			}
		}
		return next, nil
	}
	return nil, errors.NewNotFound("collection", "next element")
}
