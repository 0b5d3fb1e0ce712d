// Package safedictionary is the keyed facade over safecollection:
// SafeDictionary from spec.md §4.4. Repeated misses on the same key are
// remembered in a small LRU of absent keys, the same shape
// garbagecollector.ReferenceCache uses to avoid re-walking its uid index
// for owners it has already confirmed gone.
package safedictionary

import (
	"context"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"

	"github.com/suxinde2009/ptsafe/errors"
	"github.com/suxinde2009/ptsafe/safecollection"
	"github.com/suxinde2009/ptsafe/safehandle"
	"github.com/suxinde2009/ptsafe/safeobject"
	"github.com/suxinde2009/ptsafe/sequence"
)

const defaultAbsentCacheSize = 256

// Dictionary is a thread-safe mapping from K to a safehandle-managed
// value. Enumeration order follows key-insertion order (sequence.Keyed,
// backed by collections.OrderedMap), independent of the order the
// underlying safecollection.Collection happens to store objects in.
type Dictionary[K comparable, T any] struct {
	coll *safecollection.Collection[T]

	mu   sync.Mutex
	keys *sequence.Keyed[K, *safeobject.Object[T]]

	absentMu sync.Mutex
	absent   *lru.Cache
}

// New constructs an empty Dictionary. Call Run to start its background
// garbage collector.
func New[K comparable, T any](opts safecollection.Options) *Dictionary[K, T] {
	return &Dictionary[K, T]{
		coll:   safecollection.New[T](opts),
		keys:   sequence.NewKeyed[K, *safeobject.Object[T]](),
		absent: lru.New(defaultAbsentCacheSize),
	}
}

// Run starts the dictionary's deferred-deletion garbage collector; it
// blocks until ctx is cancelled or Close is called.
func (d *Dictionary[K, T]) Run(ctx context.Context) error {
	return d.coll.Run(ctx)
}

// Close stops the garbage collector, blocking until every pending removal
// has been physically reclaimed.
func (d *Dictionary[K, T]) Close(ctx context.Context) error {
	return d.coll.Close(ctx)
}

// SetAt inserts value under key, replacing (and deferring reclamation of)
// whatever object previously lived there. Returns a Handle on the new
// entry, in Reference mode.
func (d *Dictionary[K, T]) SetAt(key K, value T) (*safehandle.Handle[T], error) {
	d.mu.Lock()
	old, hadOld := d.keys.Get(key)
	obj := d.coll.InternalAppend(value)
	d.keys.Set(key, obj)
	d.mu.Unlock()

	if hadOld {
		d.coll.RemoveObject(old)
	}
	d.clearAbsent(key)

	return safehandle.Attach(d.coll, obj)
}

// RemoveAt deletes key, deferring reclamation of the object it mapped to.
// Returns errors.NewKeyNotFound if key is not present.
func (d *Dictionary[K, T]) RemoveAt(key K) error {
	d.mu.Lock()
	obj, ok := d.keys.Get(key)
	if !ok {
		d.mu.Unlock()
		return errors.NewKeyNotFound("safedictionary", key)
	}
	d.keys.Delete(key)
	d.mu.Unlock()

	d.coll.RemoveObject(obj)
	d.markAbsent(key)
	return nil
}

// FindWithLock returns a Handle, already in mode, on the value stored at
// key. Returns errors.NewKeyNotFound if key is absent, checking a small
// negative-lookup cache first so a hot path of repeated misses doesn't pay
// for a full key-index lookup every time.
func (d *Dictionary[K, T]) FindWithLock(key K, mode safehandle.Mode) (*safehandle.Handle[T], error) {
	if d.isAbsent(key) {
		return nil, errors.NewKeyNotFound("safedictionary", key)
	}

	d.mu.Lock()
	obj, ok := d.keys.Get(key)
	d.mu.Unlock()
	if !ok {
		d.markAbsent(key)
		return nil, errors.NewKeyNotFound("safedictionary", key)
	}

	h, err := safehandle.Attach(d.coll, obj)
	if err != nil {
		return nil, err
	}
	if err := h.EnterMode(mode); err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

// Len reports the current number of entries (advisory, spec.md §6).
func (d *Dictionary[K, T]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.keys.Len()
}

// Keys returns a snapshot of every key currently present, in insertion
// order.
func (d *Dictionary[K, T]) Keys() []K {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.keys.Keys()
}

// CollectGarbage forces one synchronous GC sweep and returns the number of
// objects reclaimed.
func (d *Dictionary[K, T]) CollectGarbage() int {
	return d.coll.CollectGarbage()
}

// SetAutoDelete changes the backstop GC sweep interval.
func (d *Dictionary[K, T]) SetAutoDelete(period time.Duration) {
	d.coll.SetAutoDelete(period)
}

func (d *Dictionary[K, T]) isAbsent(key K) bool {
	d.absentMu.Lock()
	defer d.absentMu.Unlock()
	_, found := d.absent.Get(key)
	return found
}

func (d *Dictionary[K, T]) markAbsent(key K) {
	d.absentMu.Lock()
	defer d.absentMu.Unlock()
	d.absent.Add(key, nil)
}

func (d *Dictionary[K, T]) clearAbsent(key K) {
	d.absentMu.Lock()
	defer d.absentMu.Unlock()
	d.absent.Remove(key)
}
