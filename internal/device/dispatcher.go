package device

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/srg/angel/internal/groutine"
)

// dispatcher runs caller callbacks on a dedicated goroutine in submission
// order. Transport events are handled on the transport's goroutine and only
// post here, so a callback may call back into the device without deadlock.
//
// post never blocks: the device posts while holding its own lock. A backlog
// above warnAt is logged once per overflow.
type dispatcher struct {
	logger *logrus.Logger
	warnAt int

	mu      sync.Mutex
	queue   []func()
	stopped bool
	warned  bool
	wake    chan struct{}
	done    <-chan struct{}
}

func newDispatcher(ctx context.Context, warnAt int, logger *logrus.Logger) *dispatcher {
	if warnAt <= 0 {
		warnAt = 1
	}
	d := &dispatcher{
		logger: logger,
		warnAt: warnAt,
		queue:  make([]func(), 0, warnAt),
		wake:   make(chan struct{}, 1),
	}
	d.done = groutine.GoDone(ctx, "angel-device-callbacks", d.run)
	return d
}

func (d *dispatcher) run(ctx context.Context) {
	for {
		select {
		case <-d.wake:
		case <-ctx.Done():
			return
		}

		for {
			d.mu.Lock()
			batch := d.queue
			d.queue = nil
			stopped := d.stopped
			d.mu.Unlock()

			if len(batch) == 0 {
				if stopped {
					return
				}
				break
			}
			for _, fn := range batch {
				d.invoke(fn)
			}
		}
	}
}

func (d *dispatcher) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.WithFields(logrus.Fields{
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			}).Error("Device callback panicked")
		}
	}()
	fn()
}

// post queues fn. Callbacks posted after close are dropped.
func (d *dispatcher) post(fn func()) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, fn)
	backlog := len(d.queue)
	warn := backlog > d.warnAt && !d.warned
	if warn {
		d.warned = true
	} else if backlog <= d.warnAt {
		d.warned = false
	}
	d.mu.Unlock()

	if warn {
		d.logger.WithField("backlog", backlog).Warn("Device callbacks are falling behind")
	}
	d.signal()
}

func (d *dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// close stops accepting callbacks. Already queued callbacks still run.
func (d *dispatcher) close() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	d.signal()
}
