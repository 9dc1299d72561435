package scheduling

import (
	"context"
	"sync"
)

// doctorLocks serializes booking mutations per doctor. Each doctor gets a
// one-slot semaphore; operations on different doctors proceed in parallel.
// Entries are kept for the process lifetime — the set is bounded by the
// number of doctors ever mutated.
type doctorLocks struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func newDoctorLocks() *doctorLocks {
	return &doctorLocks{locks: make(map[string]chan struct{})}
}

func (d *doctorLocks) lockFor(doctorID string) chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch, ok := d.locks[doctorID]
	if !ok {
		ch = make(chan struct{}, 1)
		d.locks[doctorID] = ch
	}
	return ch
}

// Acquire takes the doctor's lock, honoring ctx cancellation/deadline. On
// success it returns a release func that must be called exactly once; callers
// defer it so the lock is released on every exit path.
func (d *doctorLocks) Acquire(ctx context.Context, doctorID string) (func(), error) {
	ch := d.lockFor(doctorID)
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() { <-ch })
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
