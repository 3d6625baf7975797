package main

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/srg/angel/internal/testutils"
	"github.com/stretchr/testify/suite"
)

type MonitorTestSuite struct {
	CommandTestSuite
}

func TestMonitorTestSuite(t *testing.T) {
	suite.Run(t, new(MonitorTestSuite))
}

type commandResult struct {
	out string
	err error
}

func (s *MonitorTestSuite) start(ctx context.Context, args ...string) <-chan commandResult {
	done := make(chan commandResult, 1)
	go func() {
		out, err := s.ExecuteCommandContext(ctx, args...)
		done <- commandResult{out, err}
	}()
	return done
}

func (s *MonitorTestSuite) wait(done <-chan commandResult) commandResult {
	select {
	case r := <-done:
		return r
	case <-time.After(waitFor):
		s.FailNow("monitor did not stop")
		return commandResult{}
	}
}

func (s *MonitorTestSuite) TestStreamsUntilLinkLost() {
	done := s.start(context.Background(), "monitor", testDeviceAddress, "--services", "Heart Rate")
	s.Require().Eventually(func() bool { return s.Subscribed("2a37") }, waitFor, tick)

	// 72 bpm, contact detected, one RR interval of 1024/1024 s.
	s.transport.Notify("2a37", []byte{0x16, 72, 0x00, 0x04})
	s.transport.DropLink(errors.New("out of range"))

	r := s.wait(done)
	s.Require().ErrorIs(r.err, ErrConnectionLost)
	s.Contains(FormatUserError(r.err), "went out of range")

	lines := strings.Split(strings.TrimSpace(r.out), "\n")
	s.Require().Len(lines, 1)
	s.Regexp(timestamp, lines[0])
	s.Equal("Heart Rate Measurement: 72 bpm, contact detected, RR 1s", timestamp.ReplaceAllString(lines[0], ""))
}

func (s *MonitorTestSuite) TestInterruptEndsNormally() {
	ctx, cancel := context.WithCancel(context.Background())
	done := s.start(ctx, "monitor", testDeviceAddress, "--services", "Battery,Activity Monitoring")
	s.Require().Eventually(func() bool {
		return s.Subscribed("2a19") && s.Subscribed("9e3bd0d7-bdd8-41fd-af1f-5e99679183ff")
	}, waitFor, tick)

	cancel()

	r := s.wait(done)
	s.Require().NoError(r.err)
	s.True(s.transport.IsClosed())
	s.NotEmpty(s.transport.CallsOf(testutils.OpDisconnect))
}

func (s *MonitorTestSuite) TestReportsRSSIAsJSON() {
	r := s.wait(s.start(context.Background(), "monitor", testDeviceAddress,
		"--services", "Battery", "--duration", "200ms", "--rssi-interval", "20ms", "--format", "json"))
	s.Require().NoError(r.err)

	var rssi int
	for _, line := range strings.Split(strings.TrimSpace(r.out), "\n") {
		var rec record
		s.Require().NoError(json.Unmarshal([]byte(line), &rec), line)
		if rec.Characteristic == "RSSI" {
			rssi++
			s.Equal("-60 dBm", rec.Text)
		}
	}
	s.Positive(rssi, "RSSI MUST be reported at the requested interval")
}

func (s *MonitorTestSuite) TestDecodeErrorsDoNotStopTheStream() {
	done := s.start(context.Background(), "monitor", testDeviceAddress, "--services", "battery")
	s.Require().Eventually(func() bool { return s.Subscribed("2a19") }, waitFor, tick)

	s.transport.Notify("2a19", []byte{101})
	s.transport.Notify("2a19", []byte{50})
	s.transport.DropLink(errors.New("switched off"))

	r := s.wait(done)
	s.Require().ErrorIs(r.err, ErrConnectionLost)
	s.Contains(r.out, "Battery Level: error: characteristic 2a19: decode 65")
	s.Contains(r.out, "Battery Level: 50%")
}

func (s *MonitorTestSuite) TestUnknownService() {
	_, err := s.ExecuteCommand("monitor", testDeviceAddress, "--services", "Blood Pressure")
	s.ErrorContains(err, `unknown service "Blood Pressure"`)
	s.Empty(s.transport.Calls())
}

func (s *MonitorTestSuite) TestNothingToMonitor() {
	s.UseTransport(testutils.NewPeripheralBuilder().
		WithService("180f").
		WithCharacteristic("2a19", "read", []byte{50}).
		BuildTransport())

	_, err := s.ExecuteCommand("monitor", testDeviceAddress, "--services", "Alarm Clock")
	s.ErrorContains(err, "nothing to monitor")
}
