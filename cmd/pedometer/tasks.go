package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/taigrr/pedometer/background"
	"github.com/taigrr/pedometer/config"
)

func tasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect persisted background tasks",
		Long: `tasks reads the background task registry. The registry is locked while
"pedometer run" is active.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listTasks(cmd.Context(), cmd.OutOrStdout())
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List registered background tasks",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return listTasks(cmd.Context(), cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "unregister NAME",
			Short: "Remove a background task registration",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return unregisterTask(cmd.Context(), cmd.OutOrStdout(), args[0])
			},
		},
	)
	return cmd
}

// openScheduler opens the registry behind a scheduler with no tasks
// defined. It only inspects and edits registrations.
func openScheduler() (*background.Scheduler, func() error, error) {
	reg, err := openRegistry()
	if err != nil {
		return nil, nil, err
	}
	return background.NewScheduler(reg, nil, zerolog.Nop()), reg.Close, nil
}

func openRegistry() (*background.Registry, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if !cfg.Background.Enabled {
		return nil, fmt.Errorf("background tasks are disabled (background.enabled=false)")
	}
	reg, err := background.OpenRegistry(cfg.Background.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open task registry (is pedometer running?): %w", err)
	}
	return reg, nil
}

func listTasks(ctx context.Context, w io.Writer) error {
	sched, closeFn, err := openScheduler()
	if err != nil {
		return err
	}
	defer closeFn()

	regs, err := sched.Registrations(ctx)
	if err != nil {
		return err
	}
	printRegistrations(w, regs)
	return nil
}

func printRegistrations(w io.Writer, regs []background.Registration) {
	if len(regs) == 0 {
		fmt.Fprintln(w, "no background tasks registered")
		return
	}
	name := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.Faint)
	bad := color.New(color.FgRed)

	for _, r := range regs {
		name.Fprintln(w, r.Name)
		fmt.Fprintf(w, "  interval       %s\n", r.Interval)
		fmt.Fprintf(w, "  start on boot  %t\n", r.StartOnBoot)
		fmt.Fprintf(w, "  stop on exit   %t\n", r.StopOnTerm)
		fmt.Fprintf(w, "  registered     %s\n", r.RegisteredAt.Local().Format(time.DateTime))
		if r.LastRun.IsZero() {
			dim.Fprintln(w, "  last run       never")
		} else {
			fmt.Fprintf(w, "  last run       %s\n", r.LastRun.Local().Format(time.DateTime))
		}
		fmt.Fprintf(w, "  runs           %d", r.Runs)
		if r.Failures > 0 {
			bad.Fprintf(w, " (%d failed)", r.Failures)
		}
		fmt.Fprintln(w)
	}
}

func unregisterTask(ctx context.Context, w io.Writer, name string) error {
	sched, closeFn, err := openScheduler()
	if err != nil {
		return err
	}
	defer closeFn()

	ok, err := sched.IsTaskRegistered(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("task %q is not registered", name)
	}
	if err := sched.Unregister(ctx, name); err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(w, "unregistered %s\n", name)
	return nil
}

