package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/angel/internal/angel"
	"github.com/srg/angel/internal/codec"
	"github.com/srg/angel/internal/device"
)

func newSetClockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-clock <device-address>",
		Short: "Set the sensor clock",
		Long: `Connect to a sensor and set its clock to the local wall-clock time, or
to the RFC 3339 time given with --time.

` + deviceAddressNote,
		Example: `  angel set-clock ` + exampleDeviceAddress + `
  angel set-clock ` + exampleDeviceAddress + ` --time 2026-03-14T07:30:00+01:00`,
		Args: cobra.ExactArgs(1),
		RunE: runSetClock,
	}
	cmd.Flags().String("time", "", "RFC 3339 time to set (default now)")
	return cmd
}

// now is replaced in tests.
var now = time.Now

func runSetClock(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}

	at := now()
	if v, _ := cmd.Flags().GetString("time"); v != "" {
		if at, err = time.Parse(time.RFC3339, v); err != nil {
			return fmt.Errorf("invalid time %q: %w", v, err)
		}
	}
	cmd.SilenceUsage = true

	s, err := e.connect(cmd.Context(), args[0], angel.AlarmClock)
	if err != nil {
		return err
	}
	defer s.close()

	svc, err := device.GetService(s.dev, angel.AlarmClock)
	if err != nil {
		return err
	}

	ctx, cancel := e.operationContext(cmd.Context())
	defer cancel()
	if err := svc.SetClock(ctx, at); err != nil {
		return err
	}

	// Reading back orders the confirmation after the write on the link.
	set := codec.DateTimeOf(at)
	if svc.DateTime != nil && svc.DateTime.Capabilities().CanRead() {
		if set, err = svc.DateTime.ReadValue(ctx); err != nil {
			return err
		}
	}

	_, err = fmt.Fprintf(e.out, "Clock set to %s\n", e.pal.value.Sprint(set.String()))
	return err
}
