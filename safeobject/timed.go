package safeobject

import (
	"time"

	"github.com/suxinde2009/ptsafe/errors"
	"github.com/suxinde2009/ptsafe/retry"
)

// lockPollBackoff governs the spacing between non-blocking polls in the
// Timeout variants below: start fast, back off, cap at 50ms, matching the
// shape (not the values) of retry.DefaultBackoff.
var lockPollBackoff = retry.Backoff{
	Duration: 200 * time.Microsecond,
	Factor:   2,
	Jitter:   0.2,
	Cap:      50 * time.Millisecond,
}

// AcquireReadTimeout is the try/timed-acquire variant spec.md §5 allows
// implementations to add: it polls for the shared lock with increasing,
// jittered spacing (retry.Jitter) instead of blocking unconditionally, and
// gives up cleanly — no dangling reference, no half-acquired lock — once
// deadline elapses.
func (o *Object[T]) AcquireReadTimeout(timeout time.Duration) error {
	return o.acquireTimeout(timeout, o.tryAcquireRead)
}

// AcquireWriteTimeout is AcquireReadTimeout's exclusive-lock counterpart.
func (o *Object[T]) AcquireWriteTimeout(timeout time.Duration) error {
	return o.acquireTimeout(timeout, o.tryAcquireWrite)
}

var errWouldBlock = errors.NewServiceUnavailable("lock not available before deadline")

func (o *Object[T]) acquireTimeout(timeout time.Duration, try func() (bool, error)) error {
	deadline := time.Now().Add(timeout)
	wait := lockPollBackoff.Duration
	for {
		acquired, err := try()
		if err != nil {
			return err
		}
		if acquired {
			return nil
		}
		if !time.Now().Before(deadline) {
			return errWouldBlock
		}
		time.Sleep(retry.Jitter(wait, lockPollBackoff.Jitter))
		if wait < lockPollBackoff.Cap {
			wait = time.Duration(float64(wait) * lockPollBackoff.Factor)
			if wait > lockPollBackoff.Cap {
				wait = lockPollBackoff.Cap
			}
		}
	}
}

// tryAcquireRead attempts a single non-blocking shared-lock acquisition.
// The bool return distinguishes "would have blocked, try again" from a
// permanent failure (the object is removed).
func (o *Object[T]) tryAcquireRead() (bool, error) {
	o.guard.Lock()
	defer o.guard.Unlock()
	if o.removed {
		return false, errors.NewObjectRemoved("object")
	}
	if !o.rw.TryRLock() {
		return false, nil
	}
	return true, nil
}

func (o *Object[T]) tryAcquireWrite() (bool, error) {
	o.guard.Lock()
	defer o.guard.Unlock()
	if o.removed {
		return false, errors.NewObjectRemoved("object")
	}
	if !o.rw.TryLock() {
		return false, nil
	}
	return true, nil
}
