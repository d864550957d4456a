// pedometer counts steps from accelerometer samples, shows progress toward
// the daily goal and keeps a sticky notification with the current count.
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var version = "dev"

var configPath string

func main() {
	cmd := &cobra.Command{
		Use:   "pedometer",
		Short: "Accelerometer step counter",
		Long: `pedometer detects steps in accelerometer samples and counts them toward
a daily goal of 7500 steps. Samples come from the built-in gait simulator or
from the shared memory ring written by stepd on Apple Silicon Macs.

Settings are read from pedometer.yaml (or --config) and PEDOMETER_*
environment variables.`,
		Version:      version,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	cmd.AddCommand(runCmd(), tasksCmd(), configCmd())

	if err := fang.Execute(context.Background(), cmd); err != nil {
		os.Exit(1)
	}
}
