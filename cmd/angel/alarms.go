package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/angel/internal/angel"
	"github.com/srg/angel/internal/codec"
	"github.com/srg/angel/internal/device"
)

func newAlarmsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alarms <device-address>",
		Short: "List and edit sensor alarms",
		Long: `Connect to a sensor, apply alarm changes and list the active alarms.

Changes run in order: --clear, then --remove, then --add. Alarm times are
RFC 3339 and are stored on the sensor as wall-clock time.

` + deviceAddressNote,
		Example: `  angel alarms ` + exampleDeviceAddress + `
  angel alarms ` + exampleDeviceAddress + ` --add 2026-03-14T07:30:00+01:00
  angel alarms ` + exampleDeviceAddress + ` --clear --format json`,
		Args: cobra.ExactArgs(1),
		RunE: runAlarms,
	}
	cmd.Flags().StringSlice("add", nil, "Add an alarm at this RFC 3339 time")
	cmd.Flags().UintSlice("remove", nil, "Remove the alarm with this identifier")
	cmd.Flags().Bool("clear", false, "Remove every alarm")
	cmd.Flags().String("format", "", "Output format: text or json (default from config)")
	return cmd
}

func runAlarms(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}

	adds, _ := cmd.Flags().GetStringSlice("add")
	times := make([]time.Time, 0, len(adds))
	for _, a := range adds {
		t, err := time.Parse(time.RFC3339, a)
		if err != nil {
			return fmt.Errorf("invalid alarm time %q: %w", a, err)
		}
		times = append(times, t)
	}
	removes, _ := cmd.Flags().GetUintSlice("remove")
	for _, id := range removes {
		if id > 0xff {
			return fmt.Errorf("invalid alarm id %d: must be 0-255", id)
		}
	}
	clearAll, _ := cmd.Flags().GetBool("clear")

	// Arguments validated, runtime errors don't need usage
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

	if clearAll {
		if err := svc.RemoveAllAlarms(ctx); err != nil {
			return err
		}
		e.logger.Info("Removed all alarms")
	}
	for _, id := range removes {
		if err := svc.RemoveAlarm(ctx, uint8(id)); err != nil {
			return err
		}
		e.logger.WithField("alarm_id", id).Info("Removed alarm")
	}
	for _, t := range times {
		if err := svc.AddAlarm(ctx, t); err != nil {
			return err
		}
		e.logger.WithField("at", t).Info("Added alarm")
	}

	alarms, err := svc.ReadAlarms(ctx)
	if err != nil {
		return err
	}
	maxAlarms, err := svc.MaxAlarms(ctx)
	if err != nil {
		// Older firmware has no GetMaxAlarms procedure.
		e.logger.WithError(err).Debug("Max alarms unavailable")
	}
	e.logger.WithFields(logrus.Fields{"count": len(alarms), "max": maxAlarms}).Debug("Read alarms")

	if e.format == "json" {
		if alarms == nil {
			alarms = []codec.DateTime{}
		}
		return json.NewEncoder(e.out).Encode(struct {
			Alarms    []codec.DateTime `json:"alarms"`
			MaxAlarms uint16           `json:"max_alarms,omitempty"`
		}{alarms, maxAlarms})
	}

	if len(alarms) == 0 {
		_, err = fmt.Fprintln(e.out, "No alarms set")
		return err
	}
	for i, a := range alarms {
		if _, err := fmt.Fprintf(e.out, "%d  %s\n", i, e.pal.value.Sprint(a.String())); err != nil {
			return err
		}
	}
	if maxAlarms > 0 {
		_, err = fmt.Fprintf(e.out, "%s\n", e.pal.dim.Sprintf("%d of %d slots used", len(alarms), maxAlarms))
	}
	return err
}
