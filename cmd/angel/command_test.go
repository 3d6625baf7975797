package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"github.com/srg/angel/internal/device"
	"github.com/srg/angel/internal/testutils"
	"github.com/srg/angel/pkg/config"
	"github.com/stretchr/testify/suite"
)

const (
	testDeviceAddress = "00:00:00:00:00:01"
	waitFor           = 2 * time.Second
	tick              = 5 * time.Millisecond
)

// CommandTestSuite runs commands against a fake Angel sensor and a mock
// scanner. All cmd/angel suites embed it.
type CommandTestSuite struct {
	suite.Suite

	transport *testutils.FakeTransport
	scanDev   *testutils.MockScanningDevice

	originalFactory func(*config.Config, *logrus.Logger) device.TransportFactory
	originalScanner func() (device.ScanningDevice, error)
}

func (s *CommandTestSuite) SetupSuite() {
	s.originalFactory = newTransportFactory
	s.originalScanner = newScanningDevice
	homedir.DisableCache = true
}

func (s *CommandTestSuite) TearDownSuite() {
	newTransportFactory = s.originalFactory
	newScanningDevice = s.originalScanner
	homedir.DisableCache = false
}

func (s *CommandTestSuite) SetupTest() {
	// Keep a developer's own config file out of the tests.
	s.T().Setenv("HOME", s.T().TempDir())

	s.UseTransport(testutils.NewAngelPeripheral().BuildTransport())
	s.scanDev = &testutils.MockScanningDevice{}
	scanDev := s.scanDev
	newScanningDevice = func() (device.ScanningDevice, error) { return scanDev, nil }
}

func (s *CommandTestSuite) TearDownTest() {
	s.scanDev.AssertExpectations(s.T())
}

// UseTransport makes commands connect through transport.
func (s *CommandTestSuite) UseTransport(transport *testutils.FakeTransport) {
	s.transport = transport
	newTransportFactory = func(*config.Config, *logrus.Logger) device.TransportFactory {
		return transport.Factory()
	}
}

// ExecuteCommand runs the root command with args and returns stdout and the
// command error. Logs go to a separate buffer.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, error) {
	return s.ExecuteCommandContext(context.Background(), args...)
}

func (s *CommandTestSuite) ExecuteCommandContext(ctx context.Context, args ...string) (string, error) {
	out, logs := new(bytes.Buffer), new(bytes.Buffer)
	root := newRootCmd()
	root.SetOut(out)
	root.SetErr(logs)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if logs.Len() > 0 {
		s.T().Logf("command log:\n%s", logs.String())
	}
	return out.String(), err
}

// WriteConfig writes a config file and returns its path.
func (s *CommandTestSuite) WriteConfig(yaml string) string {
	path := filepath.Join(s.T().TempDir(), "config.yaml")
	s.Require().NoError(os.WriteFile(path, []byte(yaml), 0o600))
	return path
}

// Subscribed reports whether notifications were configured for uuid.
func (s *CommandTestSuite) Subscribed(uuid string) bool {
	for _, c := range s.transport.CallsOf(testutils.OpWriteDescriptor) {
		if c.UUID == device.NormalizeUUID(uuid) || c.UUID == uuid {
			return true
		}
	}
	return false
}
