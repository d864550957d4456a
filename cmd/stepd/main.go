// stepd is a daemon that reads the Apple Silicon accelerometer and writes
// samples to a POSIX shared memory ring for consumption by pedometer.
package main

import (
	"context"
	"os"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/taigrr/pedometer/sensor"
)

var version = "dev"

var (
	interval time.Duration
	ringName string
)

func main() {
	cmd := &cobra.Command{
		Use:   "stepd",
		Short: "Apple Silicon accelerometer daemon",
		Long: `stepd reads the accelerometer of Apple Silicon MacBooks via IOKit HID and
writes samples to POSIX shared memory for consumption by
"pedometer run" with sensor.source=ring.

Requires root privileges (sudo).`,
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
		SilenceUsage: true,
	}
	cmd.Flags().DurationVarP(&interval, "interval", "i", sensor.DefaultUpdateInterval, "Sample interval")
	cmd.Flags().StringVar(&ringName, "ring", "", "Shared memory ring name")

	if err := fang.Execute(context.Background(), cmd); err != nil {
		os.Exit(1)
	}
}
