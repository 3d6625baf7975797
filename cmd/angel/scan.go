package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/angel/internal/angel"
	"github.com/srg/angel/internal/device"
	"github.com/srg/angel/scanner"
	"gopkg.in/cheggaaa/pb.v2"
)

const scanBarTemplate = `{{ white "Scanning:" }} {{bar . | green}} {{counters . }}`

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan for nearby sensors",
		Long: `Scan for advertising BLE devices and list each one once.

Filters combine: a device must pass the block list, the allow list, the name
prefix and the service filter to be listed. Services accept names
("Heart Rate") or identifiers ("180d").`,
		Example: `  angel scan
  angel scan --duration 30s --name-prefix angel
  angel scan --services "Heart Rate" --format json
  angel scan --allow ` + exampleDeviceAddress,
		Args: cobra.NoArgs,
		RunE: runScan,
	}

	cmd.Flags().Duration("duration", 0, "Scan duration (default from config scan_timeout)")
	cmd.Flags().StringSlice("services", nil, "Only list devices advertising one of these services")
	cmd.Flags().StringSlice("allow", nil, "Only list these addresses")
	cmd.Flags().StringSlice("block", nil, "Never list these addresses")
	cmd.Flags().String("name-prefix", "", "Only list devices whose name starts with this prefix")
	cmd.Flags().String("format", "", "Output format: text or json (default from config)")
	return cmd
}

func runScan(cmd *cobra.Command, _ []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}

	opts := scanOptions(cmd, e)
	cmd.SilenceUsage = true

	dev, err := newScanningDevice()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var bar *pb.ProgressBar
	if e.format == "text" && isTerminal(cmd.ErrOrStderr()) {
		bar = pb.ProgressBarTemplate(scanBarTemplate).New(int(opts.Duration / time.Second))
		bar.SetWriter(cmd.ErrOrStderr())
		bar.Start()
		go countdown(ctx, bar, opts.Duration)
	}

	s := scanner.New(dev, e.logger)
	found, err := s.Scan(ctx, opts, nil)
	if bar != nil {
		bar.SetCurrent(bar.Total())
		bar.Finish()
	}
	if err != nil {
		return err
	}

	if e.format == "json" {
		enc := json.NewEncoder(e.out)
		enc.SetIndent("", "  ")
		if found == nil {
			found = []scanner.Found{}
		}
		return enc.Encode(found)
	}
	return e.writeScanTable(found)
}

// scanOptions merges flags over the configured scan timeout.
func scanOptions(cmd *cobra.Command, e *env) *scanner.ScanOptions {
	opts := scanner.DefaultScanOptions()
	opts.Duration = e.cfg.ScanTimeout
	if d, _ := cmd.Flags().GetDuration("duration"); d > 0 {
		opts.Duration = d
	}

	services, _ := cmd.Flags().GetStringSlice("services")
	for _, s := range services {
		if class, ok := angel.Lookup(s); ok {
			opts.ServiceUUIDs = append(opts.ServiceUUIDs, class.Identifier())
			continue
		}
		opts.ServiceUUIDs = append(opts.ServiceUUIDs, s)
	}

	opts.AllowList, _ = cmd.Flags().GetStringSlice("allow")
	opts.BlockList, _ = cmd.Flags().GetStringSlice("block")
	opts.NamePrefix, _ = cmd.Flags().GetString("name-prefix")
	return opts
}

func countdown(ctx context.Context, bar *pb.ProgressBar, d time.Duration) {
	start := time.Now()
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			elapsed := time.Since(start)
			if elapsed >= d {
				return
			}
			bar.SetCurrent(int64(elapsed / time.Second))
		}
	}
}

func (e *env) writeScanTable(found []scanner.Found) error {
	if len(found) == 0 {
		_, err := fmt.Fprintln(e.out, "No devices found")
		return err
	}

	w := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ADDRESS\tNAME\tRSSI\tSERVICES")
	for _, f := range found {
		name := f.Name
		if name == "" {
			name = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			f.Address, name, f.RSSI, serviceNames(f.Services))
	}
	return w.Flush()
}

// serviceNames labels known Angel services by name.
func serviceNames(ids []string) string {
	if len(ids) == 0 {
		return "-"
	}
	names := make([]string, len(ids))
	for i, id := range ids {
		if class, ok := angel.Lookup(id); ok {
			names[i] = class.ServiceName()
			continue
		}
		names[i] = device.ShortenUUID(id)
	}
	return strings.Join(names, ", ")
}
