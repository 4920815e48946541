// Command fswcore is the flight computer daemon: it loads the Mode
// Configuration, builds the task registry, and runs the Scheduler under
// StateManager control until it receives SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/lunasat/fsw-core"
	"github.com/lunasat/fsw-core/config"
	"github.com/lunasat/fsw-core/datastore"
	"github.com/lunasat/fsw-core/internal/interfaces"
	"github.com/lunasat/fsw-core/internal/logging"
	"github.com/lunasat/fsw-core/tasks"
	"github.com/lunasat/fsw-core/transport"
)

var (
	configPath  string
	uartPath    string
	uartBaud    uint32
	verbose     bool
	shutdownWin = 5 * time.Second
)

func main() {
	root := &cobra.Command{
		Use:   "fswcore",
		Short: "CubeSat flight software core daemon",
	}

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the flight software core",
		Long: `Start runs the Scheduler, StateManager, on-board data handler, and
framed UART transport described by a Mode Configuration file, until it
receives SIGINT/SIGTERM.

Examples:
  fswcore start --config /etc/fsw/modes.yaml
  fswcore start --config ./modes.yaml --uart /dev/ttyS1 --baud 115200 -v`,
		RunE: run,
	}

	startCmd.Flags().StringVar(&configPath, "config", "modes.yaml", "path to the Mode Configuration YAML file")
	startCmd.Flags().StringVar(&uartPath, "uart", "", "serial device for the framed co-processor transport (empty disables the downlink task)")
	startCmd.Flags().Uint32Var(&uartBaud, "baud", 115200, "UART baud rate")
	startCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(startCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fswcore: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logCfg := logging.DefaultConfig()
	if verbose {
		logCfg.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logCfg)
	logging.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading mode configuration: %w", err)
	}

	metrics := fsw.NewMetrics()
	observer := fsw.NewMetricsObserver(metrics)

	store := datastore.New(afero.NewOsFs(), cfg.Storage.Root, logger)
	if err := registerDataProcesses(cfg, store); err != nil {
		return err
	}
	if err := store.Scan(); err != nil {
		return fmt.Errorf("scanning data store: %w", err)
	}

	scheduler := fsw.NewScheduler(nil, logger, observer)

	registry := make(map[string]fsw.TaskFactory)
	sm := fsw.NewStateManager(scheduler, registry, cfg.ToModes(), logger, observer)

	closeUART, err := populateRegistry(registry, sm, store, logger, observer)
	if err != nil {
		return err
	}
	if closeUART != nil {
		defer closeUART()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sm.Start(ctx, cfg.StartMode); err != nil {
		return fmt.Errorf("entering start mode %q: %w", cfg.StartMode, err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- scheduler.Run(ctx) }()

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case runErr := <-runErrCh:
		if runErr != nil && runErr != context.Canceled {
			logger.Error("scheduler stopped unexpectedly", "err", runErr)
			return runErr
		}
	}

	select {
	case <-runErrCh:
	case <-time.After(shutdownWin):
		logger.Warn("scheduler did not stop within shutdown window")
	}

	snap := metrics.Snapshot()
	logger.Info("shutdown complete", "dispatches", snap.DispatchCount, "overruns", snap.OverrunCount, "task_errors", snap.TaskErrorCount)
	return nil
}

// registerDataProcesses creates every DataStore stream the configuration
// file declares, the fresh-boot counterpart of the streams DataStore.Scan
// reopens from prior-boot sidecar files.
func registerDataProcesses(cfg *config.Config, store *datastore.DataStore) error {
	for name, entry := range cfg.DataProcesses {
		if entry.Image {
			if err := store.RegisterImage(name); err != nil {
				return fmt.Errorf("registering image process %q: %w", name, err)
			}
			continue
		}
		if err := store.Register(name, entry.Format, entry.LineLimit, entry.Persistent); err != nil {
			return fmt.Errorf("registering data process %q: %w", name, err)
		}
	}
	return nil
}

// populateRegistry fills in the task factories the Mode Configuration's
// task tables reference by name. It returns a cleanup func for the UART
// connection, if one was opened, or nil if --uart was not given.
func populateRegistry(registry map[string]fsw.TaskFactory, sm *fsw.StateManager, store *datastore.DataStore, logger interfaces.Logger, observer interfaces.Observer) (func(), error) {
	registry["MONITOR"] = func() fsw.Task { return tasks.NewMonitor(logger, observer) }
	registry["TIMING"] = func() fsw.Task { return tasks.NewTiming(sm, logger, observer) }
	registry["OBDH"] = func() fsw.Task { return tasks.NewOBDH(sm, store, logger, observer) }
	registry["IMU"] = func() fsw.Task {
		return tasks.NewIMU(noopIMUSensor{}, store, "imu", logger, observer)
	}

	if uartPath == "" {
		return nil, nil
	}

	serial, err := transport.OpenSerial(uartPath, uartBaud)
	if err != nil {
		return nil, fmt.Errorf("opening UART %s: %w", uartPath, err)
	}
	sender := transport.NewSender(serial, logger)
	registry["DOWNLINK"] = func() fsw.Task {
		return tasks.NewDownlink(store, sender, "log", 0x01, logger, observer)
	}
	return func() { serial.Close() }, nil
}

// noopIMUSensor stands in for the concrete IMU driver, which is out of
// scope per spec.md §1: HAL enumeration and device drivers are external
// collaborators specified only by interface. A real build wires a driver
// that implements tasks.IMUSensor in its place.
type noopIMUSensor struct{}

func (noopIMUSensor) Read() (tasks.IMUReading, error) { return tasks.IMUReading{}, nil }
