// Package safelist is the index-addressable facade over safecollection:
// SafeList from spec.md §4.4, grounded on the same Collection every
// SafeDictionary shares, just without a key index (garbagecollector keeps
// an analogous distinction between its ordered event queue and its
// keyed uid index).
package safelist

import (
	"context"
	"time"

	"github.com/suxinde2009/ptsafe/errors"
	"github.com/suxinde2009/ptsafe/safecollection"
	"github.com/suxinde2009/ptsafe/safehandle"
)

func notFoundAt(idx int) error {
	return errors.NewKeyNotFound("safelist", idx)
}

func notFoundMatch() error {
	return errors.NewNotFound("safelist", "element")
}

// List is a thread-safe, position-addressable sequence of T.
type List[T any] struct {
	coll *safecollection.Collection[T]
}

// New constructs an empty List. Call Run (in a goroutine, or via an
// errgroup the caller owns) to start its background garbage collector.
func New[T any](opts safecollection.Options) *List[T] {
	return &List[T]{coll: safecollection.New[T](opts)}
}

// Run starts the list's deferred-deletion garbage collector; it blocks
// until ctx is cancelled or Close is called.
func (l *List[T]) Run(ctx context.Context) error {
	return l.coll.Run(ctx)
}

// Close stops the garbage collector, blocking until every pending removal
// has been physically reclaimed (safecollection.Collection.Close).
func (l *List[T]) Close(ctx context.Context) error {
	return l.coll.Close(ctx)
}

// Append adds value at the end of the list. O(1).
func (l *List[T]) Append(value T) *safehandle.Handle[T] {
	obj := l.coll.InternalAppend(value)
	h, err := safehandle.Attach(l.coll, obj)
	if err != nil {
		// InternalAppend just created obj unremoved; Attach's Reference
		// cannot fail here.
		panic(err)
	}
	return h
}

// RemoveAt removes the element at idx. O(n) (spec.md C2).
func (l *List[T]) RemoveAt(idx int) error {
	return l.coll.InternalRemoveAt(idx)
}

// Remove removes the first element for which match returns true. O(n).
func (l *List[T]) Remove(match func(T) bool) error {
	return l.coll.InternalRemove(match)
}

// GetWithLock returns a Handle on the element at idx, already in mode.
// The caller owns the handle and must Close it. Returns nil, error if idx
// is out of range or the object was removed before the lock could be
// taken.
func (l *List[T]) GetWithLock(idx int, mode safehandle.Mode) (*safehandle.Handle[T], error) {
	obj := l.coll.At(idx)
	if obj == nil {
		return nil, notFoundAt(idx)
	}
	h, err := safehandle.Attach(l.coll, obj)
	if err != nil {
		return nil, err
	}
	if err := h.EnterMode(mode); err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

// FindWithLock returns a Handle, already in mode, on the first element for
// which match returns true. O(n) — spec.md explicitly allows a linear
// scan here; callers needing better should use safedictionary instead.
func (l *List[T]) FindWithLock(match func(T) bool, mode safehandle.Mode) (*safehandle.Handle[T], error) {
	obj := l.coll.Find(match)
	if obj == nil {
		return nil, notFoundMatch()
	}
	h, err := safehandle.Attach(l.coll, obj)
	if err != nil {
		return nil, err
	}
	if err := h.EnterMode(mode); err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

// Len reports the current number of live elements (advisory, spec.md §6).
func (l *List[T]) Len() int {
	return l.coll.GetSize()
}

// RemoveAll removes every live element.
func (l *List[T]) RemoveAll() {
	l.coll.RemoveAll()
}

// CollectGarbage forces one synchronous GC sweep and returns the number of
// objects reclaimed.
func (l *List[T]) CollectGarbage() int {
	return l.coll.CollectGarbage()
}

// SetAutoDelete changes the backstop GC sweep interval.
func (l *List[T]) SetAutoDelete(period time.Duration) {
	l.coll.SetAutoDelete(period)
}
