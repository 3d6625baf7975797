package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
	"github.com/srg/angel/pkg/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// newRootCmd builds the command tree. Each call returns fresh commands and
// flag state.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "angel",
		Short: "Angel wearable sensor CLI",
		Long: `Command-line client for the Angel wearable sensor:

- Scan for nearby sensors
- Stream heart rate, temperature, activity and waveform values
- Read single characteristics, signal strength and alarms
- Set the sensor clock`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", formatVersion(version), commit, date),
		SilenceErrors: true, // main prints clean errors
	}

	root.PersistentFlags().String("config", "", "Config file (default "+config.DefaultPath+")")
	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().Bool("verbose", false, "Verbose output, same as --log-level debug")

	root.AddCommand(
		newScanCmd(),
		newMonitorCmd(),
		newReadCmd(),
		newRSSICmd(),
		newAlarmsCmd(),
		newSetClockCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}
