package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/angel/internal/device"
	goble "github.com/srg/angel/internal/device/go-ble"
	"github.com/srg/angel/pkg/config"
	"golang.org/x/term"
)

// Radio stack hooks; tests replace them with fakes.
var (
	newTransportFactory = func(cfg *config.Config, logger *logrus.Logger) device.TransportFactory {
		return goble.NewTransportFactory(&goble.Options{ConnectTimeout: cfg.ConnectTimeout}, logger)
	}
	newScanningDevice = goble.NewScanningDevice
)

// callbackDrainTimeout bounds how long closing a session waits for callbacks
// that were already queued.
const callbackDrainTimeout = 2 * time.Second

// env is what every command needs: configuration, a logger and an output
// writer that knows whether it may use colours.
type env struct {
	cfg    *config.Config
	logger *logrus.Logger
	out    io.Writer
	format string
	pal    palette
}

func newEnv(cmd *cobra.Command) (*env, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logger, err := configureLogger(cmd, cfg, cfg.Source() != "")
	if err != nil {
		return nil, err
	}

	format := cfg.OutputFormat
	if f := cmd.Flags().Lookup("format"); f != nil && f.Changed {
		format = f.Value.String()
	}
	switch format {
	case "text", "json":
	default:
		return nil, fmt.Errorf("invalid format '%s': must be one of [text json]", format)
	}

	out := cmd.OutOrStdout()
	return &env{
		cfg:    cfg,
		logger: logger,
		out:    out,
		format: format,
		pal:    newPalette(isTerminal(out)),
	}, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// palette colours text output. Colours are off unless stdout is a terminal.
type palette struct {
	name, value, dim, warn *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		name:  color.New(color.FgCyan),
		value: color.New(color.FgGreen, color.Bold),
		dim:   color.New(color.Faint),
		warn:  color.New(color.FgYellow),
	}
	for _, c := range []*color.Color{p.name, p.value, p.dim, p.warn} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// session is one connected device.
type session struct {
	env  *env
	dev  *device.Device
	lost chan error
	errs chan error
	rssi chan rssiReading
	up   chan struct{}

	closing atomic.Bool
}

type rssiReading struct {
	value int
	err   error
}

// connect registers classes, connects to address and waits until services
// are discovered or connect_timeout elapses.
func (e *env) connect(ctx context.Context, address string, classes ...device.ServiceClass) (*session, error) {
	s := &session{
		env:  e,
		lost: make(chan error, 1),
		errs: make(chan error, 8),
		rssi: make(chan rssiReading, 8),
		up:   make(chan struct{}, 1),
	}

	callbacks := device.Callbacks{
		OnServicesDiscovered: func(*device.Device) { trySend(s.up, struct{}{}) },
		OnDisconnected: func(_ *device.Device, err error) {
			if s.closing.Load() {
				return
			}
			if err == nil {
				err = device.ErrNotConnected
			}
			trySend(s.lost, err)
		},
		OnReadRemoteRSSI: func(_ *device.Device, rssi int, err error) { trySend(s.rssi, rssiReading{rssi, err}) },
		OnError: func(d *device.Device, err error) {
			// Errors once services are up concern a single service or
			// request and do not end the session.
			if d.State() == device.StateReady {
				e.logger.WithError(err).Warn("Device error")
				return
			}
			trySend(s.errs, err)
		},
		OnStateChange: func(_ *device.Device, from, to device.State) {
			e.logger.WithFields(logrus.Fields{"from": from, "state": to}).Debug("Device state changed")
		},
	}

	s.dev = device.NewDevice(newTransportFactory(e.cfg, e.logger), callbacks, e.cfg.DeviceOptions(), e.logger)
	for _, class := range classes {
		if err := s.dev.RegisterServiceClass(class); err != nil {
			_ = s.dev.Close()
			return nil, err
		}
	}

	e.logger.WithField("address", address).Info("Connecting...")
	if err := s.dev.Connect(address); err != nil {
		_ = s.dev.Close()
		return nil, err
	}

	timer := time.NewTimer(e.cfg.ConnectTimeout)
	defer timer.Stop()
	select {
	case <-s.up:
		e.logger.WithField("address", address).Info("Connected")
		return s, nil
	case err := <-s.errs:
		_ = s.dev.Close()
		return nil, err
	case err := <-s.lost:
		_ = s.dev.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnectionLost, err)
	case <-timer.C:
		_ = s.dev.Close()
		return nil, fmt.Errorf("connect %s: %w", address, device.ErrTimeout)
	case <-ctx.Done():
		_ = s.dev.Close()
		return nil, ctx.Err()
	}
}

// close disconnects and releases the device.
func (s *session) close() {
	s.closing.Store(true)
	if err := s.dev.Disconnect(); err != nil && !errors.Is(err, device.ErrNotConnected) {
		s.env.logger.WithError(err).Warn("Disconnect failed")
	}
	if err := s.dev.Close(); err != nil {
		s.env.logger.WithError(err).Warn("Close failed")
	}
	select {
	case <-s.dev.Done():
	case <-time.After(callbackDrainTimeout):
		s.env.logger.Warn("Device callbacks still pending after close")
	}
}

// readRSSI requests one signal strength sample and waits for it.
func (s *session) readRSSI(ctx context.Context) (int, error) {
	if err := s.dev.ReadRemoteRSSI(); err != nil {
		return 0, err
	}
	select {
	case r := <-s.rssi:
		return r.value, r.err
	case err := <-s.lost:
		return 0, fmt.Errorf("%w: %v", ErrConnectionLost, err)
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// findCharacteristic looks a registered characteristic up by name or
// identifier across every discovered service.
func (s *session) findCharacteristic(nameOrUUID string) (device.CharacteristicHandle, error) {
	id := device.NormalizeUUID(nameOrUUID)
	for _, svc := range s.dev.Services() {
		for _, h := range svc.Characteristics() {
			if (id != "" && h.UUID() == id) || strings.EqualFold(h.Name(), nameOrUUID) {
				return h, nil
			}
		}
	}
	return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{nameOrUUID}}
}

// operationContext bounds a single request by the descriptor write timeout
// plus slack for the request itself.
func (e *env) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.cfg.DescriptorWriteTimeout+e.cfg.ConnectTimeout)
}

func trySend[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}
