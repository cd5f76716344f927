package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/embedlab/tact/config"
	"github.com/embedlab/tact/ctrl"
	"github.com/embedlab/tact/datarecording"
	"github.com/embedlab/tact/eventbus"
	"github.com/embedlab/tact/hal"
	"github.com/embedlab/tact/monitoring"
)

var runFlags struct {
	configPath    string
	cycles        int
	monitorPort   int
	openDashboard bool
	record        bool
	alertAfter    time.Duration
	verbose       bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the control loop",
	RunE:  runLoop,
}

func init() {
	runCmd.Flags().StringVarP(&runFlags.configPath, "config", "c", "",
		"configuration file (.yaml, .json, or .toml); defaults to the demo setup")
	runCmd.Flags().IntVar(&runFlags.cycles, "cycles", 0,
		"number of scheduler ticks to run (overrides config)")
	runCmd.Flags().IntVar(&runFlags.monitorPort, "monitor-port", 0,
		"start the monitoring server on this port (overrides config)")
	runCmd.Flags().BoolVar(&runFlags.openDashboard, "open-dashboard", false,
		"open the monitoring page in a browser")
	runCmd.Flags().BoolVar(&runFlags.record, "record", false,
		"record sensor samples into a SQLite database")
	runCmd.Flags().DurationVar(&runFlags.alertAfter, "alert-after",
		1500*time.Millisecond,
		"emit a demo ALERT event this long into the run (0 disables)")
	runCmd.Flags().BoolVarP(&runFlags.verbose, "verbose", "v", false,
		"log every task invocation")

	rootCmd.AddCommand(runCmd)
}

func runLoop(cmd *cobra.Command, _ []string) error {
	runID := xid.New().String()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Str("run_id", runID).Logger()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var recorder datarecording.Recorder
	if cfg.Recording {
		path := cfg.RecordingPath
		if path == "" {
			path = "tact_" + runID
		}

		recorder = datarecording.NewRecorder(path)
	}

	bus := eventbus.NewBus().WithLogger(logger)
	bus.Register(hal.EventTypeAlert,
		eventbus.HandlerFunc(func(e eventbus.Event) {
			logger.Warn().
				Str("payload", e.Payload).
				Msg("ALERT event received")
		}))

	scheduler := ctrl.NewScheduler(ctrl.WallClock{}, cfg.TickInterval())
	if runFlags.verbose {
		scheduler.AcceptHook(ctrl.NewTaskLogger(log.New(logger, "", 0)))
	}

	controller := ctrl.NewController(scheduler)

	if cfg.MonitorPort > 0 {
		monitor := monitoring.NewMonitor().WithPortNumber(cfg.MonitorPort)
		if cfg.OpenDashboard {
			monitor = monitor.WithDashboardOpen()
		}

		monitor.RegisterController(controller)
		monitor.RegisterBus(bus)
		scheduler.AcceptHook(monitor.Metrics())
		bus.AcceptHook(monitor.Metrics())

		monitor.StartServer()
	}

	buildComponents(cfg, controller, bus, recorder, logger)

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	emitterCtx, cancelEmitter := context.WithCancel(ctx)
	var emitters sync.WaitGroup

	if runFlags.alertAfter > 0 {
		emitters.Add(1)
		go func() {
			defer emitters.Done()

			select {
			case <-time.After(runFlags.alertAfter):
				bus.Emit(eventbus.Event{
					Type:    hal.EventTypeAlert,
					Payload: "high temperature detected",
				})
			case <-emitterCtx.Done():
			}
		}()
	}

	runErr := controller.Run(ctx, cfg.Cycles)

	cancelEmitter()
	emitters.Wait()

	if recorder != nil {
		recorder.Flush()
	}

	if runErr != nil {
		return runErr
	}

	logger.Info().
		Uint64("ticks", scheduler.TickCount()).
		Msg("control run finished")

	return nil
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()

	if runFlags.configPath != "" {
		loaded, err := config.Load(runFlags.configPath)
		if err != nil {
			return cfg, err
		}

		cfg = loaded
	}

	if err := config.ApplyEnv(&cfg); err != nil {
		return cfg, err
	}

	if cmd.Flags().Changed("cycles") {
		cfg.Cycles = runFlags.cycles
	}
	if cmd.Flags().Changed("monitor-port") {
		cfg.MonitorPort = runFlags.monitorPort
	}
	if runFlags.openDashboard {
		cfg.OpenDashboard = true
	}
	if runFlags.record {
		cfg.Recording = true
	}

	return cfg, cfg.Validate()
}

func buildComponents(
	cfg config.Config,
	controller *ctrl.Controller,
	bus *eventbus.Bus,
	recorder datarecording.Recorder,
	logger zerolog.Logger,
) {
	for _, cc := range cfg.Components {
		var component ctrl.Component

		switch cc.Kind {
		case "temperature":
			sensor := hal.NewTemperatureSensor(cc.Name,
				hal.NewRandSource(time.Now().UnixNano(), 20, 10)).
				WithLogger(logger).
				WithAlerts(bus, cfg.AlertThreshold)
			if recorder != nil {
				sensor = sensor.WithRecorder(recorder)
			}

			component = sensor
		case "led":
			component = hal.NewLED(cc.Name,
				hal.NewRandSource(time.Now().UnixNano(), 0, 100)).
				WithLogger(logger)
		}

		// One component failing to initialize must not take down the rest.
		if err := controller.AddComponent(component, cc.Period()); err != nil {
			logger.Error().
				Err(err).
				Str("component", cc.Name).
				Msg("component not scheduled")
		}
	}
}
