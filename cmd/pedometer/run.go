package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/taigrr/pedometer/background"
	"github.com/taigrr/pedometer/config"
	"github.com/taigrr/pedometer/display"
	"github.com/taigrr/pedometer/metrics"
	"github.com/taigrr/pedometer/notify"
	"github.com/taigrr/pedometer/pedometer"
	"github.com/taigrr/pedometer/sensor"
)

func runCmd() *cobra.Command {
	var headless bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Count steps and show live progress",
		Long: `run subscribes to the configured sample source and counts steps until
interrupted. By default it shows a terminal dashboard with a progress ring;
--headless prints each notification update instead.

The background step task is registered on first run and persists across
restarts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), headless)
		},
	}
	cmd.Flags().BoolVar(&headless, "headless", false, "Print notifications instead of showing the dashboard")
	return cmd
}

func run(ctx context.Context, headless bool) error {
	loader, err := config.NewLoader(configPath)
	if err != nil {
		return err
	}
	cfg, err := loader.Config()
	if err != nil {
		return err
	}

	logOut, closeLog, err := logOutput(cfg.Logging, headless)
	if err != nil {
		return err
	}
	defer closeLog()
	logger := setupLogger(cfg.Logging, logOut)
	logger.Info().Str("version", version).Str("config", loader.File()).Msg("starting pedometer")

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	src, err := newSource(cfg)
	if err != nil {
		return err
	}
	if loader.Watch(func(c *config.Config, err error) {
		if err != nil {
			logger.Warn().Err(err).Msg("ignoring invalid config change")
			return
		}
		src.SetUpdateInterval(c.Sensor.UpdateInterval)
		logger.Info().Dur("update_interval", c.Sensor.UpdateInterval).Msg("config reloaded")
	}) {
		logger.Debug().Str("file", loader.File()).Msg("watching config")
	}

	presenter, term := newPresenter(cfg.Notifications, headless)
	if desk, ok := presenter.(*notify.Desktop); ok {
		defer func() {
			if err := desk.Flush(); err != nil {
				logger.Warn().Err(err).Msg("flush desktop notification")
			}
		}()
	}
	policy := notify.DefaultPolicy
	policy.PlaySound = cfg.Notifications.Sound

	var registry *background.Registry
	if cfg.Background.Enabled {
		registry, err = background.OpenRegistry(cfg.Background.DBPath)
		if err != nil {
			return fmt.Errorf("open task registry: %w", err)
		}
		defer registry.Close()
	}

	var dash display.Dashboard
	onAlert := printAlert
	if !headless {
		onAlert = func(al pedometer.Alert) { dash.Alert(al) }
	}

	app := pedometer.New(pedometer.Config{
		Source:       src,
		Presenter:    presenter,
		Policy:       policy,
		Registry:     registry,
		TaskInterval: cfg.Background.MinInterval,
		QueueSize:    cfg.Notifications.QueueSize,
		OnAlert:      onAlert,
		Logger:       logger,
	})

	if !headless {
		dash = display.NewDashboard(app.Tracker(), statusLine(term))
		defer dash.Close()
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Address, logger)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}
	g.Go(func() error {
		return app.Run(gctx)
	})

	if !headless {
		prog := tea.NewProgram(dash, tea.WithAltScreen(), tea.WithContext(gctx))
		if term != nil {
			term.OnChange(func() { prog.Send(display.RefreshMsg{}) })
		}
		g.Go(func() error {
			// Quitting the dashboard stops everything else.
			defer cancel()
			_, err := prog.Run()
			if errors.Is(err, tea.ErrProgramKilled) {
				return nil
			}
			return err
		})
	}

	err = g.Wait()
	logger.Info().Int("steps", app.Tracker().Counter().Value()).Msg("pedometer stopped")
	return err
}

// newSource builds the configured sample source.
func newSource(cfg *config.Config) (sensor.Source, error) {
	var src sensor.Source
	switch cfg.Sensor.Source {
	case "ring":
		ring, err := sensor.NewRingSource(cfg.Sensor.RingName)
		if err != nil {
			return nil, err
		}
		src = ring
	default:
		src = sensor.NewSimulator(nil, cfg.Simulator.Cadence)
	}
	src.SetUpdateInterval(cfg.Sensor.UpdateInterval)
	return src, nil
}

// newPresenter returns the notification presenter, and the terminal
// presenter when one backs the status line.
func newPresenter(cfg config.NotificationsConfig, headless bool) (notify.Presenter, *notify.Terminal) {
	if !cfg.Enabled {
		return nil, nil
	}
	var chime notify.Chime
	if cfg.Sound {
		chime = notify.NewTone()
	}
	if cfg.Backend == "desktop" {
		return notify.NewDesktop(true, chime, cfg.DesktopInterval), nil
	}
	if headless {
		term := notify.NewTerminal(os.Stdout, true, chime)
		return term, term
	}
	term := notify.NewTerminal(nil, true, chime)
	return term, term
}

func statusLine(term *notify.Terminal) display.StatusFunc {
	if term == nil {
		return nil
	}
	return func() string {
		c, ok := term.Current()
		if !ok {
			return ""
		}
		return term.Format(c)
	}
}

func printAlert(al pedometer.Alert) {
	warn := color.New(color.FgRed, color.Bold)
	warn.Fprint(os.Stderr, "alert: ")
	fmt.Fprintln(os.Stderr, al.Message)
	if al.Err != nil {
		color.New(color.Faint).Fprintf(os.Stderr, "  %v\n", al.Err)
	}
}
