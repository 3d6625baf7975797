package main

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/angel/internal/angel"
)

func newReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read <device-address> <characteristic>",
		Short: "Read one characteristic",
		Long: `Connect to a sensor and read one characteristic, named or by identifier.

` + deviceAddressNote,
		Example: `  angel read ` + exampleDeviceAddress + ` "Battery Level"
  angel read ` + exampleDeviceAddress + ` 2a38 --format json`,
		Args: cobra.ExactArgs(2),
		RunE: runRead,
	}
	cmd.Flags().String("format", "", "Output format: text or json (default from config)")
	return cmd
}

func runRead(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	s, err := e.connect(cmd.Context(), args[0], angel.All()...)
	if err != nil {
		return err
	}
	defer s.close()

	h, err := s.findCharacteristic(args[1])
	if err != nil {
		return err
	}

	ctx, cancel := e.operationContext(cmd.Context())
	defer cancel()
	v, err := h.ReadAny(ctx)
	if err != nil {
		return err
	}
	return e.writeRecord(e.out, newRecord(h, time.Now(), v, nil))
}
