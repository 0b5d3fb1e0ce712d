// Package safeobject implements the per-element safety protocol every
// value living inside a safecollection.Collection must satisfy: a
// reference count, a reader/writer lock, and a one-way tombstone flag,
// coupled so that no goroutine can observe or lock a removed object
// (spec.md §3, §4.1).
//
// The coupling follows garbagecollector.node's shape (a handful of
// booleans, each behind its own sync.RWMutex) collapsed into one guard
// mutex protecting refCount and removed together, because spec.md I4
// requires the guard to be taken before the lock and the two scalars to be
// decided atomically with respect to each other.
package safeobject

import (
	"sync"

	"github.com/google/uuid"
	"github.com/suxinde2009/ptsafe/errors"
)

// Object wraps a value of type T with the reference-count + tombstone +
// reader/writer-lock protocol. Construct with New; it starts unowned with
// refCount 0, as spec.md §3 requires — a Collection that accepts it raises
// refCount to 1 on its own behalf during InternalAppend.
type Object[T any] struct {
	id    uuid.UUID
	value T

	guard    sync.Mutex // protects refCount and removed together (I4)
	refCount uint
	removed  bool

	rw sync.RWMutex // protects value; I3 - a lock holder always has a reference
}

// New wraps value in a fresh, unowned Object. Callers normally don't call
// this directly; safecollection.Collection.InternalAppend does it on their
// behalf.
func New[T any](value T) *Object[T] {
	return &Object[T]{id: uuid.New(), value: value}
}

// ID is a stable identifier used only for log correlation; it never
// participates in an equality or ordering decision.
func (o *Object[T]) ID() uuid.UUID {
	return o.id
}

// Value returns the wrapped value. The caller must hold a read or write
// lock (or otherwise know no concurrent writer can run) before trusting
// the result; Value itself takes no lock.
func (o *Object[T]) Value() T {
	return o.value
}

// Set overwrites the wrapped value. The caller must hold a write lock.
func (o *Object[T]) Set(v T) {
	o.value = v
}

// Reference increments the reference count, unless the object is already
// removed. O(1). Returns errors.NewObjectRemoved on failure (spec.md I1).
func (o *Object[T]) Reference() error {
	o.guard.Lock()
	defer o.guard.Unlock()
	if o.removed {
		return errors.NewObjectRemoved("object")
	}
	o.refCount++
	return nil
}

// Dereference decrements the reference count. It never fails; refCount
// must be > 0 when called, which is a caller invariant (a Misuse
// precondition violation otherwise, spec.md §7).
func (o *Object[T]) Dereference() {
	o.guard.Lock()
	defer o.guard.Unlock()
	if o.refCount == 0 {
		panic("safeobject: Dereference called with zero refCount")
	}
	o.refCount--
}

// AcquireRead takes a shared lock on the value, failing if the object is
// already removed. Multiple concurrent readers are permitted (spec.md
// §4.1 AcquireRead).
func (o *Object[T]) AcquireRead() error {
	o.guard.Lock()
	if o.removed {
		o.guard.Unlock()
		return errors.NewObjectRemoved("object")
	}
	if o.rw.TryRLock() {
		o.guard.Unlock()
		return nil
	}
	o.guard.Unlock()

	o.rw.RLock()

	o.guard.Lock()
	defer o.guard.Unlock()
	if o.removed {
		o.rw.RUnlock()
		return errors.NewObjectRemoved("object")
	}
	return nil
}

// ReleaseRead drops a shared lock acquired via AcquireRead.
func (o *Object[T]) ReleaseRead() {
	o.rw.RUnlock()
}

// AcquireWrite takes the exclusive lock on the value, failing if the
// object is already removed. At most one writer, and no writer while any
// reader holds the shared lock (spec.md §4.1 AcquireWrite).
func (o *Object[T]) AcquireWrite() error {
	o.guard.Lock()
	if o.removed {
		o.guard.Unlock()
		return errors.NewObjectRemoved("object")
	}
	if o.rw.TryLock() {
		o.guard.Unlock()
		return nil
	}
	o.guard.Unlock()

	o.rw.Lock()

	o.guard.Lock()
	defer o.guard.Unlock()
	if o.removed {
		o.rw.Unlock()
		return errors.NewObjectRemoved("object")
	}
	return nil
}

// ReleaseWrite drops the exclusive lock acquired via AcquireWrite.
func (o *Object[T]) ReleaseWrite() {
	o.rw.Unlock()
}

// MarkRemoved sets the tombstone flag. Idempotent; never blocks waiting
// for lock holders (spec.md §4.1 MarkRemoved).
func (o *Object[T]) MarkRemoved() {
	o.guard.Lock()
	defer o.guard.Unlock()
	o.removed = true
}

// IsRemoved reports the tombstone flag alone, without the refCount/lock
// checks IsDeletable performs.
func (o *Object[T]) IsRemoved() bool {
	o.guard.Lock()
	defer o.guard.Unlock()
	return o.removed
}

// RefCount returns an instantaneous, advisory snapshot of the reference
// count (spec.md §6 GetSize: "explicitly non-synchronized and advisory"
// applies equally here).
func (o *Object[T]) RefCount() uint {
	o.guard.Lock()
	defer o.guard.Unlock()
	return o.refCount
}

// IsDeletable reports whether the object satisfies spec.md I2:
// removed ∧ refCount == 0 ∧ no reader or writer holds the lock. The lock
// check is a momentary, non-blocking exclusive TryLock: if it succeeds, no
// one else held the lock, so it's immediately released.
func (o *Object[T]) IsDeletable() bool {
	o.guard.Lock()
	defer o.guard.Unlock()
	if !o.removed || o.refCount != 0 {
		return false
	}
	if !o.rw.TryLock() {
		return false
	}
	o.rw.Unlock()
	return true
}
