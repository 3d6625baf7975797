package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/angel/internal/angel"
	"github.com/srg/angel/internal/device"
	"github.com/srg/angel/internal/groutine"
)

const (
	monitorBufferSize    = 1024
	monitorFlushInterval = 100 * time.Millisecond
)

func newMonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor <device-address>",
		Short: "Stream live sensor values",
		Long: `Connect to a sensor, subscribe to every characteristic that notifies or
indicates and print values as they arrive. Stops on Ctrl+C, after --duration
or when the sensor disconnects.

When output cannot keep up, the oldest pending values are dropped.

` + deviceAddressNote,
		Example: `  angel monitor ` + exampleDeviceAddress + `
  angel monitor ` + exampleDeviceAddress + ` --services "Heart Rate,Battery"
  angel monitor ` + exampleDeviceAddress + ` --rssi-interval 2s --format json`,
		Args: cobra.ExactArgs(1),
		RunE: runMonitor,
	}
	cmd.Flags().StringSlice("services", nil, "Services to monitor by name or identifier (default all)")
	cmd.Flags().Duration("rssi-interval", 0, "Also report signal strength at this interval")
	cmd.Flags().Duration("duration", 0, "Stop after this long (default until interrupted)")
	cmd.Flags().String("format", "", "Output format: text or json (default from config)")
	return cmd
}

// monitorSink buffers records from device callbacks so a slow terminal never
// stalls the callback goroutine.
type monitorSink struct {
	env     *env
	buffer  mpmc.RichOverlappedRingBuffer[record]
	dropped atomic.Uint32
	mu      sync.Mutex // serializes flush
}

func newMonitorSink(e *env) *monitorSink {
	return &monitorSink{
		env:    e,
		buffer: mpmc.NewOverlappedRingBuffer[record](monitorBufferSize),
	}
}

func (m *monitorSink) put(r record) {
	overwrites, err := m.buffer.EnqueueM(r)
	if err != nil {
		m.env.logger.WithError(err).Error("Monitor buffer enqueue failed")
		return
	}
	m.dropped.Add(overwrites)
}

func (m *monitorSink) flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for !m.buffer.IsEmpty() {
		r, err := m.buffer.Dequeue()
		if err != nil {
			return fmt.Errorf("buffer dequeue error: %w", err)
		}
		if err := m.env.writeRecord(m.env.out, r); err != nil {
			return err
		}
	}
	return nil
}

func (m *monitorSink) run(ctx context.Context) {
	ticker := time.NewTicker(monitorFlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.flush(); err != nil {
				m.env.logger.WithError(err).Error("Monitor output failed")
			}
		}
	}
}

func runMonitor(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}

	classes, err := monitorClasses(cmd)
	if err != nil {
		return err
	}
	rssiEvery, _ := cmd.Flags().GetDuration("rssi-interval")
	duration, _ := cmd.Flags().GetDuration("duration")
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	sink := newMonitorSink(e)
	printerCtx, stopPrinter := context.WithCancel(context.Background())
	printerDone := groutine.GoDone(printerCtx, "angel-monitor-output", sink.run)
	// Registered before the session so values delivered while it closes
	// are still printed.
	defer func() {
		stopPrinter()
		<-printerDone
		if err := sink.flush(); err != nil {
			e.logger.WithError(err).Error("Monitor output failed")
		}
		if n := sink.dropped.Load(); n > 0 {
			e.logger.WithField("dropped", n).Warn("Monitor dropped values")
		}
	}()

	s, err := e.connect(ctx, args[0], classes...)
	if err != nil {
		return err
	}
	defer s.close()

	subscribed, err := subscribeAll(ctx, e, s, sink)
	if err != nil {
		return err
	}
	if subscribed == 0 && rssiEvery <= 0 {
		return fmt.Errorf("nothing to monitor: no notifying characteristics: %w", device.ErrUnsupported)
	}
	e.logger.WithField("characteristics", subscribed).Info("Monitoring...")

	var rssiTick <-chan time.Time
	if rssiEvery > 0 {
		ticker := time.NewTicker(rssiEvery)
		defer ticker.Stop()
		rssiTick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			// Interrupt and --duration both end a monitor normally.
			return nil
		case err := <-s.lost:
			return fmt.Errorf("%w: %v", ErrConnectionLost, err)
		case <-rssiTick:
			if err := s.dev.ReadRemoteRSSI(); err != nil {
				e.logger.WithError(err).Warn("RSSI request failed")
			}
		case r := <-s.rssi:
			sink.put(rssiRecord(time.Now(), r))
		}
	}
}

// monitorClasses resolves --services to service kinds.
func monitorClasses(cmd *cobra.Command) ([]device.ServiceClass, error) {
	names, _ := cmd.Flags().GetStringSlice("services")
	if len(names) == 0 {
		return angel.All(), nil
	}
	classes := make([]device.ServiceClass, 0, len(names))
	for _, name := range names {
		class, ok := angel.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown service %q", name)
		}
		classes = append(classes, class)
	}
	return classes, nil
}

// subscribeAll enables notifications on every characteristic that offers
// them and routes values into sink.
func subscribeAll(ctx context.Context, e *env, s *session, sink *monitorSink) (int, error) {
	count := 0
	for _, svc := range s.dev.Services() {
		for _, h := range svc.Characteristics() {
			if !h.Capabilities().CanNotify() {
				continue
			}
			err := h.EnableNotificationsAny(ctx, func(v any, err error) {
				sink.put(newRecord(h, time.Now(), v, err))
			})
			if err != nil {
				return count, fmt.Errorf("subscribe %s: %w", h.Name(), err)
			}
			e.logger.WithFields(logrus.Fields{
				"service":        svc.Name(),
				"characteristic": h.Name(),
			}).Debug("Subscribed")
			count++
		}
	}
	return count, nil
}

func rssiRecord(at time.Time, r rssiReading) record {
	rec := record{Time: at, Characteristic: "RSSI"}
	if r.err != nil {
		rec.Error = r.err.Error()
		return rec
	}
	rec.Value = r.value
	rec.Text = fmt.Sprintf("%d dBm", r.value)
	return rec
}
