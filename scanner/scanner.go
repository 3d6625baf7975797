// Package scanner discovers advertising peripherals for a bounded time
// window, reporting each address at most once per scan session.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/angel/internal/device"
	"github.com/srg/angel/internal/groutine"
	"github.com/srg/angel/internal/ringchan"
)

// eventBufferSize bounds Events(); the oldest unread device is dropped first.
const eventBufferSize = 100

// Found is a device reported by a scan.
type Found struct {
	Address          string    `json:"address"`
	Name             string    `json:"name,omitempty"`
	RSSI             int       `json:"rssi"`
	Services         []string  `json:"services,omitempty"`
	ManufacturerData []byte    `json:"manufacturer_data,omitempty"`
	Connectable      bool      `json:"connectable"`
	SeenAt           time.Time `json:"seen_at"`
}

// FoundCallback receives each newly seen device on the radio stack's
// goroutine. It must not block.
type FoundCallback func(found Found)

// ScanOptions configures one scan session.
type ScanOptions struct {
	Duration time.Duration `default:"10s"`
	// ServiceUUIDs keeps devices advertising at least one of these services.
	ServiceUUIDs []string
	// AllowList, when set, keeps only these addresses.
	AllowList []string
	BlockList []string
	// NamePrefix keeps devices whose local name starts with it, ignoring case.
	NamePrefix string
}

// DefaultScanOptions returns the default 10 second unfiltered scan.
func DefaultScanOptions() *ScanOptions {
	opts := &ScanOptions{}
	defaults.SetDefaults(opts)
	return opts
}

// session is one scan window.
type session struct {
	id      uint64
	opts    ScanOptions
	onFound FoundCallback
	// seen is a lock-free hint for repeated advertisements; known, guarded
	// by mu, decides whether an address is reported.
	seen    *hashmap.Map[string, struct{}]
	ctx     context.Context
	cancel  context.CancelFunc
	done    <-chan struct{}

	mu    sync.Mutex
	known map[string]struct{}
	found []Found
	err   error
}

// Scanner runs scan sessions against a device.ScanningDevice. A Scanner runs
// one session at a time; starting a new one stops the previous one.
type Scanner struct {
	dev    device.ScanningDevice
	logger *logrus.Logger
	events *ringchan.RingChannel[Found]

	mu      sync.Mutex
	counter uint64
	current *session
}

func New(dev device.ScanningDevice, logger *logrus.Logger) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scanner{
		dev:    dev,
		logger: logger,
		events: ringchan.New[Found](eventBufferSize),
	}
}

// StartScan begins a scan session and returns immediately. The session ends
// after opts.Duration, on StopScan, when ctx ends or when a new session
// starts. opts may be nil.
func (s *Scanner) StartScan(ctx context.Context, opts *ScanOptions, onFound FoundCallback) error {
	o, err := prepare(opts)
	if err != nil {
		return err
	}

	s.stopAndWait()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	scanCtx, cancel := context.WithTimeout(ctx, o.Duration)
	sess := &session{
		id:      s.counter,
		opts:    o,
		onFound: onFound,
		seen:    hashmap.New[string, struct{}](),
		known:   make(map[string]struct{}),
		ctx:     scanCtx,
		cancel:  cancel,
	}
	s.current = sess

	s.logger.WithFields(logrus.Fields{
		"duration": o.Duration,
		"session":  sess.id,
	}).Info("Starting BLE scan...")

	sess.done = groutine.GoDone(scanCtx, "angel-scanner", func(ctx context.Context) {
		defer cancel()
		err := s.dev.Scan(ctx, false, func(adv device.Advertisement) { s.handle(sess, adv) })
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("scan failed: %w", err)
			s.logger.WithError(err).Error("BLE scan failed")
		} else {
			err = nil
		}

		sess.mu.Lock()
		sess.err = err
		count := len(sess.found)
		sess.mu.Unlock()

		s.logger.WithFields(logrus.Fields{
			"device_count": count,
			"session":      sess.id,
		}).Info("BLE scan completed")
	})
	return nil
}

// StopScan ends the current session early. Advertisements arriving after
// StopScan are not reported. It is a no-op when no scan is running.
func (s *Scanner) StopScan() {
	s.mu.Lock()
	sess := s.current
	s.mu.Unlock()
	if sess != nil {
		sess.cancel()
	}
}

func (s *Scanner) stopAndWait() {
	s.mu.Lock()
	sess := s.current
	s.mu.Unlock()
	if sess != nil {
		sess.cancel()
		<-sess.done
	}
}

// Done is closed when the current session ends. With no session it is
// already closed.
func (s *Scanner) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return s.current.done
}

// Err reports why the last session failed. A session that ran its full
// window or was stopped has no error.
func (s *Scanner) Err() error {
	s.mu.Lock()
	sess := s.current
	s.mu.Unlock()
	if sess == nil {
		return nil
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.err
}

// Results returns the devices of the current session in discovery order.
func (s *Scanner) Results() []Found {
	s.mu.Lock()
	sess := s.current
	s.mu.Unlock()
	if sess == nil {
		return nil
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return append([]Found(nil), sess.found...)
}

// Scan runs a session to completion and returns the devices found in
// discovery order.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions, onFound FoundCallback) ([]Found, error) {
	if err := s.StartScan(ctx, opts, onFound); err != nil {
		return nil, err
	}
	<-s.Done()
	if err := s.Err(); err != nil {
		return nil, err
	}
	return s.Results(), nil
}

// Events returns a feed of newly found devices across sessions.
func (s *Scanner) Events() <-chan Found {
	return s.events.C()
}

func (s *Scanner) handle(sess *session, adv device.Advertisement) {
	s.mu.Lock()
	current := s.current != nil && s.current.id == sess.id
	s.mu.Unlock()
	if !current || sess.ctx.Err() != nil {
		return
	}

	addr := adv.Address()
	if _, seen := sess.seen.Get(addr); seen {
		return
	}
	if !sess.opts.matches(adv) {
		return
	}

	found := Found{
		Address:          addr,
		Name:             adv.LocalName(),
		RSSI:             adv.RSSI(),
		Services:         adv.Services(),
		ManufacturerData: adv.ManufacturerData(),
		Connectable:      adv.Connectable(),
		SeenAt:           time.Now(),
	}

	sess.mu.Lock()
	if _, known := sess.known[addr]; known {
		sess.mu.Unlock()
		return
	}
	sess.known[addr] = struct{}{}
	sess.found = append(sess.found, found)
	sess.mu.Unlock()
	sess.seen.Set(addr, struct{}{})

	s.logger.WithFields(logrus.Fields{
		"device":  found.Name,
		"address": found.Address,
		"rssi":    found.RSSI,
	}).Info("Discovered new device")

	if s.events.Send(found) {
		s.logger.Debug("Scanner event feed full, dropped oldest device")
	}
	if sess.onFound != nil {
		sess.onFound(found)
	}
}

func prepare(opts *ScanOptions) (ScanOptions, error) {
	var o ScanOptions
	if opts != nil {
		o = *opts
	}
	if o.Duration < 0 {
		return o, fmt.Errorf("scan duration must be positive, got %s", o.Duration)
	}
	defaults.SetDefaults(&o)

	services := make([]string, 0, len(o.ServiceUUIDs))
	for _, u := range o.ServiceUUIDs {
		id := device.NormalizeUUID(u)
		if id == "" {
			return o, fmt.Errorf("invalid service UUID %q", u)
		}
		services = append(services, id)
	}
	o.ServiceUUIDs = services
	return o, nil
}

// matches applies the block, allow, name and service filters in that order.
func (o *ScanOptions) matches(adv device.Advertisement) bool {
	addr := adv.Address()
	for _, blocked := range o.BlockList {
		if strings.EqualFold(addr, blocked) {
			return false
		}
	}

	if len(o.AllowList) > 0 {
		allowed := false
		for _, a := range o.AllowList {
			if strings.EqualFold(addr, a) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	if o.NamePrefix != "" && !strings.HasPrefix(strings.ToLower(adv.LocalName()), strings.ToLower(o.NamePrefix)) {
		return false
	}

	if len(o.ServiceUUIDs) > 0 {
		for _, required := range o.ServiceUUIDs {
			for _, advertised := range adv.Services() {
				if required == advertised {
					return true
				}
			}
		}
		return false
	}

	return true
}
