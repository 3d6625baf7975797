package device

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// descriptorWait is one outstanding descriptor write. done is buffered so the
// signalling side never blocks.
type descriptorWait struct {
	key  descriptorKey
	gen  uint64
	done chan error
}

type descriptorKey struct {
	rc         RemoteCharacteristic
	descriptor string
}

// rendezvous pairs a blocking descriptor write with its acknowledgement from
// the transport goroutine. At most one write is waited on; while the link is
// down begin fails immediately.
//
// Every write handed to the transport gets a generation. The transport
// acknowledges writes to one descriptor in order, so an acknowledgement
// belongs to the oldest generation still in flight for that descriptor. One
// that arrives after its waiter gave up is consumed without releasing a
// newer waiter.
type rendezvous struct {
	mu       sync.Mutex
	pending  *descriptorWait
	closed   error
	gen      uint64
	inflight map[descriptorKey][]uint64
}

func newRendezvous() *rendezvous {
	return &rendezvous{closed: ErrNotConnected, inflight: make(map[descriptorKey][]uint64)}
}

func (r *rendezvous) begin(rc RemoteCharacteristic, descriptor string) (*descriptorWait, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed != nil {
		return nil, r.closed
	}
	if r.pending != nil {
		return nil, ErrBusy
	}
	r.gen++
	key := descriptorKey{rc: rc, descriptor: NormalizeUUID(descriptor)}
	r.pending = &descriptorWait{key: key, gen: r.gen, done: make(chan error, 1)}
	r.inflight[key] = append(r.inflight[key], r.gen)
	return r.pending, nil
}

// complete matches an acknowledgement to the oldest write in flight for the
// descriptor and signals it if that write is still waited on. Reports whether
// a waiter was released.
func (r *rendezvous) complete(rc RemoteCharacteristic, descriptor string, err error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := descriptorKey{rc: rc, descriptor: NormalizeUUID(descriptor)}
	gens := r.inflight[key]
	if len(gens) == 0 {
		return false
	}
	gen := gens[0]
	if len(gens) == 1 {
		delete(r.inflight, key)
	} else {
		r.inflight[key] = gens[1:]
	}

	w := r.pending
	if w == nil || w.gen != gen {
		return false
	}
	r.pending = nil
	w.done <- err
	return true
}

// cancel fails the outstanding write with err and refuses new ones until
// open is called.
func (r *rendezvous) cancel(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = err
	clear(r.inflight)
	if r.pending != nil {
		r.pending.done <- err
		r.pending = nil
	}
}

func (r *rendezvous) open() {
	r.mu.Lock()
	r.closed = nil
	clear(r.inflight)
	r.mu.Unlock()
}

// abandon stops waiting for w. Its acknowledgement is still expected.
func (r *rendezvous) abandon(w *descriptorWait) {
	r.mu.Lock()
	if r.pending == w {
		r.pending = nil
	}
	r.mu.Unlock()
}

// withdraw forgets w entirely, for a write the transport never accepted.
func (r *rendezvous) withdraw(w *descriptorWait) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending == w {
		r.pending = nil
	}
	gens := r.inflight[w.key]
	for i, g := range gens {
		if g == w.gen {
			gens = append(gens[:i], gens[i+1:]...)
			break
		}
	}
	if len(gens) == 0 {
		delete(r.inflight, w.key)
	} else {
		r.inflight[w.key] = gens
	}
}

// wait blocks until the write is acknowledged, timeout elapses, ctx ends or
// the link drops.
func (r *rendezvous) wait(ctx context.Context, w *descriptorWait, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-w.done:
		return err
	case <-timer.C:
		r.abandon(w)
		// An acknowledgement may have raced the timer.
		select {
		case err := <-w.done:
			return err
		default:
		}
		return fmt.Errorf("descriptor %s write not acknowledged within %s: %w", w.key.descriptor, timeout, ErrTimeout)
	case <-ctx.Done():
		r.abandon(w)
		return ctx.Err()
	}
}
