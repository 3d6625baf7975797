package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newRSSICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rssi <device-address>",
		Short: "Read the signal strength of a connected sensor",
		Long: `Connect to a sensor and report the received signal strength in dBm.

` + deviceAddressNote,
		Example: `  angel rssi ` + exampleDeviceAddress,
		Args:    cobra.ExactArgs(1),
		RunE:    runRSSI,
	}
	cmd.Flags().String("format", "", "Output format: text or json (default from config)")
	return cmd
}

func runRSSI(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	s, err := e.connect(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := e.operationContext(cmd.Context())
	defer cancel()
	rssi, err := s.readRSSI(ctx)
	if err != nil {
		return err
	}

	if e.format == "json" {
		return json.NewEncoder(e.out).Encode(struct {
			Address string `json:"address"`
			RSSI    int    `json:"rssi"`
		}{args[0], rssi})
	}
	_, err = fmt.Fprintf(e.out, "%s %s\n", e.pal.name.Sprint(args[0]), e.pal.value.Sprintf("%d dBm", rssi))
	return err
}
