// Package safecollection implements the container half of the safety
// protocol: a mutex-serialized ordered sequence of safeobject.Object
// elements, plus the deferred-deletion garbage collector that reclaims an
// element once it is unreferenced, unlocked and marked removed (spec.md
// §4.2, §5).
//
// The GC loop is grounded on garbagecollector's graph walk: a removed node
// is never deleted synchronously by the caller that removed it, it is
// handed to a work queue and retried with backoff until nothing still
// holds it, exactly the shape k8s garbage collection uses for orphaned
// objects.
package safecollection

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/suxinde2009/ptsafe/collections"
	"github.com/suxinde2009/ptsafe/controller"
	"github.com/suxinde2009/ptsafe/errors"
	"github.com/suxinde2009/ptsafe/log"
	"github.com/suxinde2009/ptsafe/meta"
	"github.com/suxinde2009/ptsafe/rand"
	"github.com/suxinde2009/ptsafe/retry"
	"github.com/suxinde2009/ptsafe/safeobject"
	"github.com/suxinde2009/ptsafe/sequence"
)

// Options configures a Collection's deferred garbage collection. The zero
// value is valid: withDefaults fills in every field meta.Or/collections.Def
// find zero.
type Options struct {
	// AutoDeletePeriod is how often the backstop sweep re-examines every
	// still-pending object, independent of the work-queue retries. Zero
	// means DefaultAutoDeletePeriod.
	AutoDeletePeriod time.Duration
	// GCBackoff paces the per-object work-queue retries (spec.md: a
	// removed-but-referenced object must not busy-loop the GC goroutine).
	GCBackoff retry.Backoff
	// DiagCacheSize bounds the GC diagnostic cache tracking how many
	// times each pending object has been retried, used only for the retry
	// count reported in "still referenced" log lines. Zero means
	// DefaultDiagCacheSize.
	DiagCacheSize int
}

const (
	DefaultAutoDeletePeriod = 30 * time.Second
	DefaultDiagCacheSize    = 256
)

func (o Options) withDefaults() Options {
	o.AutoDeletePeriod = meta.Or(o.AutoDeletePeriod, DefaultAutoDeletePeriod)
	o.DiagCacheSize = collections.Def(o.DiagCacheSize, DefaultDiagCacheSize)
	if o.GCBackoff.Duration == 0 {
		o.GCBackoff = retry.Backoff{Duration: 50 * time.Millisecond, Factor: 2, Jitter: 0.2, Cap: 10 * time.Second}
	}
	return o
}

// Collection is the generic, index-addressable container every SafeList
// and SafeDictionary is built on. Its own mutex (mu) serializes structural
// edits; it never takes an element's lock while holding mu, and never
// holds mu across a call that blocks on an element's lock (spec.md I4).
type Collection[T any] struct {
	opts Options

	mu      sync.Mutex
	items   *sequence.Ordered[*safeobject.Object[T]]
	pending collections.Set[*safeobject.Object[T]]
	closed  bool

	queue     controller.TypedQueue[*safeobject.Object[T]]
	diagCache *lru.Cache[*safeobject.Object[T], int]
	logLimit  *rate.Limiter
	events    collections.SafeSlice[string]

	periodMu sync.Mutex
	period   time.Duration
}

// New constructs an empty Collection. Call Run to start its background
// garbage collector; a Collection that is never Run still behaves
// correctly, it simply accumulates pending (removed-but-referenced)
// objects until CollectGarbage is called explicitly.
func New[T any](opts Options) *Collection[T] {
	opts = opts.withDefaults()
	cache, err := lru.New[*safeobject.Object[T], int](opts.DiagCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, and
		// withDefaults never produces one.
		panic(err)
	}
	// Suffix the work queue's metrics name so two Collections of the same
	// T don't collide in workqueue's global metrics registry.
	queueName := "safecollection-gc-" + rand.RandomAlphaNumeric(6)
	return &Collection[T]{
		opts:      opts,
		items:     sequence.NewOrdered[*safeobject.Object[T]](),
		pending:   collections.New[*safeobject.Object[T]](),
		queue:     controller.NewDefaultTypedQueue[*safeobject.Object[T]](queueName, nil),
		diagCache: cache,
		logLimit:  rate.NewLimiter(rate.Every(time.Second), 1),
		period:    opts.AutoDeletePeriod,
	}
}

// RecentEvents returns a snapshot of the most recent GC diagnostic
// messages, newest last. Bounded only by how often processOne logs; useful
// for tests asserting the collector actually ran without scraping klog
// output.
func (c *Collection[T]) RecentEvents() []string {
	return c.events.Get()
}

// InternalAppend wraps value in a new Object, references it on the
// collection's behalf, and appends it. O(1) (spec.md C1).
func (c *Collection[T]) InternalAppend(value T) *safeobject.Object[T] {
	obj := safeobject.New(value)
	// The collection itself always holds one reference for as long as the
	// object is a live member; InternalRemove drops it.
	_ = obj.Reference()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items.Append(obj)
	return obj
}

// InternalRemoveAt removes the object at index idx from the live sequence
// and hands it to the GC queue for deferred physical reclamation. Returns
// errors.NewKeyNotFound if idx is out of range. O(n) (spec.md C2: a
// structural edit, not a bulk scan, but shifting later indices is linear).
func (c *Collection[T]) InternalRemoveAt(idx int) error {
	c.mu.Lock()
	obj, ok := c.items.RemoveAt(idx)
	if !ok {
		c.mu.Unlock()
		return errors.NewKeyNotFound("collection", idx)
	}
	c.pending.Insert(obj)
	c.mu.Unlock()

	obj.MarkRemoved()
	obj.Dereference()
	c.queue.Add(obj)
	return nil
}

// InternalRemove removes the first object for which match returns true.
// O(n) (spec.md C2).
func (c *Collection[T]) InternalRemove(match func(T) bool) error {
	c.mu.Lock()
	idx := c.items.IndexFunc(func(obj *safeobject.Object[T]) bool {
		return match(obj.Value())
	})
	if idx < 0 {
		c.mu.Unlock()
		return errors.NewNotFound("collection", "element")
	}
	obj, _ := c.items.RemoveAt(idx)
	c.pending.Insert(obj)
	c.mu.Unlock()

	obj.MarkRemoved()
	obj.Dereference()
	c.queue.Add(obj)
	return nil
}

// RemoveObject removes obj by identity rather than by scanning with a
// value predicate. Used by safedictionary, which already knows exactly
// which object a key maps to. Returns false if obj is not currently a live
// member.
func (c *Collection[T]) RemoveObject(target *safeobject.Object[T]) bool {
	c.mu.Lock()
	idx := c.items.IndexFunc(func(obj *safeobject.Object[T]) bool {
		return obj == target
	})
	if idx < 0 {
		c.mu.Unlock()
		return false
	}
	obj, _ := c.items.RemoveAt(idx)
	c.pending.Insert(obj)
	c.mu.Unlock()

	obj.MarkRemoved()
	obj.Dereference()
	c.queue.Add(obj)
	return true
}

// RemoveAll removes every live object, deferring their reclamation the
// same way InternalRemoveAt does. O(n) (spec.md C3).
func (c *Collection[T]) RemoveAll() {
	c.mu.Lock()
	removed := c.items.RemoveAll()
	for _, obj := range removed {
		c.pending.Insert(obj)
	}
	c.mu.Unlock()

	for _, obj := range removed {
		obj.MarkRemoved()
		obj.Dereference()
		c.queue.Add(obj)
	}
}

// GetSize reports the number of live (non-removed) members. Explicitly
// non-synchronized in spirit: the snapshot is valid the instant it's
// taken, but a concurrent Append or Remove may invalidate it immediately
// after return (spec.md §6).
func (c *Collection[T]) GetSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Len()
}

// At returns the live object at idx, or nil if out of range. Used by
// safelist/safedictionary to implement GetWithLock without exposing the
// Ordered collaborator directly.
func (c *Collection[T]) At(idx int) *safeobject.Object[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	obj, _ := c.items.At(idx)
	return obj
}

// Find returns the first live object matching match, or nil.
func (c *Collection[T]) Find(match func(T) bool) *safeobject.Object[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.items.IndexFunc(func(obj *safeobject.Object[T]) bool {
		return match(obj.Value())
	})
	if idx < 0 {
		return nil
	}
	obj, _ := c.items.At(idx)
	return obj
}

// Snapshot returns every live object, in order. Used by safehandle's
// Next/Previous traversal: identity is captured under the collection's own
// mutex, then each candidate is referenced outside it, never holding both
// locks at once (spec.md I4).
func (c *Collection[T]) Snapshot() []*safeobject.Object[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Snapshot()
}

// pendingCount is advisory, used by tests and Close's drain loop.
func (c *Collection[T]) pendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.Len()
}

// CollectGarbage performs one synchronous sweep of every currently-pending
// object, physically dropping it from bookkeeping if it is deletable. It
// does not touch the work queue; it exists for callers (and SetAutoDelete's
// ticker) that want an immediate, bounded pass instead of waiting on the
// queue's own backoff schedule.
func (c *Collection[T]) CollectGarbage() int {
	c.mu.Lock()
	candidates := make([]*safeobject.Object[T], 0, c.pending.Len())
	for obj := range c.pending {
		candidates = append(candidates, obj)
	}
	c.mu.Unlock()

	collected := 0
	for _, obj := range candidates {
		if obj.IsDeletable() {
			c.mu.Lock()
			c.pending.Delete(obj)
			c.mu.Unlock()
			c.diagCache.Remove(obj)
			collected++
		}
	}
	return collected
}

// SetAutoDelete changes the interval between backstop sweeps. A period of
// zero or less makes the sweep use DefaultAutoDeletePeriod; the sweep
// itself is never turned off.
func (c *Collection[T]) SetAutoDelete(period time.Duration) {
	c.periodMu.Lock()
	defer c.periodMu.Unlock()
	c.period = period
}

func (c *Collection[T]) autoDeletePeriod() time.Duration {
	c.periodMu.Lock()
	defer c.periodMu.Unlock()
	return c.period
}

// Run starts the GC work-queue loop and the periodic backstop sweep, both
// under a single errgroup.Group tied to ctx, mirroring how
// garbagecollector.GarbageCollector.Run coordinates its worker and
// processing loop. Run blocks until ctx is cancelled or Close is called.
func (c *Collection[T]) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g.Go(func() error {
		// The worker returns once Close shuts the queue down; stop the
		// backstop sweep with it so Run returns too.
		defer cancel()
		return c.runQueueWorker(ctx)
	})
	g.Go(func() error { return c.runBackstop(ctx) })
	return g.Wait()
}

func (c *Collection[T]) runQueueWorker(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		c.queue.ShutDown()
	}()
	for {
		obj, shutdown := c.queue.Get()
		if shutdown {
			return nil
		}
		c.processOne(obj)
	}
}

func (c *Collection[T]) processOne(obj *safeobject.Object[T]) {
	defer c.queue.Done(obj)

	if obj.IsDeletable() {
		c.mu.Lock()
		c.pending.Delete(obj)
		c.mu.Unlock()
		c.diagCache.Remove(obj)
		c.queue.Forget(obj)
		return
	}

	retries, _ := c.diagCache.Get(obj)
	retries++
	c.diagCache.Add(obj, retries)
	if c.logLimit.Allow() {
		log.Info("safecollection: object still referenced or locked, deferring deletion",
			"id", obj.ID(), "retries", retries)
		c.events.Append(fmt.Sprintf("object %s still referenced or locked, deferring deletion (retries=%d)", obj.ID(), retries))
	}
	c.queue.AddRateLimited(obj)
}

func (c *Collection[T]) runBackstop(ctx context.Context) error {
	for {
		period := c.autoDeletePeriod()
		if period <= 0 {
			period = DefaultAutoDeletePeriod
		}
		wait := retry.Jitter(period, 0.1)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
		c.CollectGarbage()
		c.requeueAllPending()
	}
}

func (c *Collection[T]) requeueAllPending() {
	c.mu.Lock()
	objs := make([]*safeobject.Object[T], 0, c.pending.Len())
	for obj := range c.pending {
		objs = append(objs, obj)
	}
	c.mu.Unlock()
	for _, obj := range objs {
		c.queue.Add(obj)
	}
}

// Close drains every pending object before returning: it repeatedly sweeps
// (CollectGarbage) and sleeps with backoff until nothing remains pending or
// ctx is done, then shuts the work queue down. This is the Open Question
// §9 resolution: Collection.Close blocks for a full drain rather than
// abandoning still-referenced objects.
func (c *Collection[T]) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	wait := c.opts.GCBackoff.Duration
	for c.pendingCount() > 0 {
		c.CollectGarbage()
		if c.pendingCount() == 0 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry.Jitter(wait, c.opts.GCBackoff.Jitter)):
		}
		if wait < c.opts.GCBackoff.Cap {
			wait = time.Duration(float64(wait) * c.opts.GCBackoff.Factor)
		}
	}
	c.queue.ShutDown()
	return nil
}
