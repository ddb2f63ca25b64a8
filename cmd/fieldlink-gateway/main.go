// Command fieldlink-gateway runs the sensor aggregation gateway.
//
// The gateway samples its producers on a shared cadence, pools each
// round into one report document, and publishes it over whichever
// wide-area link is up: the short-range MQTT link or the cellular one.
// Producers without real hardware run in simulation mode.
//
// Usage:
//
//	fieldlink-gateway [flags]
//
// Flags:
//
//	-config string     Configuration file path (default "config.yaml")
//	-log-level string  Log level: debug, info, warn, error (default "info")
//	-interactive       Run the interactive command console (default true)
//	-start string      Link to bring up at boot: short-range, cellular, last, none (default "last")
//
// Examples:
//
//	# Start with defaults and the interactive console
//	fieldlink-gateway -config /etc/fieldlink/config.yaml
//
//	# Headless, cellular from boot
//	fieldlink-gateway -config config.yaml -interactive=false -start cellular
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fieldlink-iot/fieldlink-go/internal/simulated"
	"github.com/fieldlink-iot/fieldlink-go/pkg/config"
	"github.com/fieldlink-iot/fieldlink-go/pkg/controller"
	"github.com/fieldlink-iot/fieldlink-go/pkg/dispatch"
	"github.com/fieldlink-iot/fieldlink-go/pkg/gnss"
	"github.com/fieldlink-iot/fieldlink-go/pkg/journal"
	"github.com/fieldlink-iot/fieldlink-go/pkg/link"
	"github.com/fieldlink-iot/fieldlink-go/pkg/link/mqttlink"
	"github.com/fieldlink-iot/fieldlink-go/pkg/position"
	"github.com/fieldlink-iot/fieldlink-go/pkg/report"
	"github.com/fieldlink-iot/fieldlink-go/pkg/sensor"
	"github.com/fieldlink-iot/fieldlink-go/pkg/statusapi"
	"github.com/fieldlink-iot/fieldlink-go/pkg/version"
)

type options struct {
	ConfigFile  string
	LogLevel    string
	Interactive bool
	StartLink   string
}

var opts options

func init() {
	flag.StringVar(&opts.ConfigFile, "config", "config.yaml", "Configuration file path")
	flag.StringVar(&opts.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.BoolVar(&opts.Interactive, "interactive", true, "Run the interactive command console")
	flag.StringVar(&opts.StartLink, "start", "last", "Link to bring up at boot: short-range, cellular, last, none")
	flag.Usage = usage
}

func main() {
	flag.Parse()

	logger := setupLogging(opts.LogLevel)

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		logger.Error("configuration invalid", "err", err)
		os.Exit(1)
	}

	// Restore the persisted identity so a generated device ID survives
	// restarts.
	statePath := cfg.StatePath
	if statePath == "" {
		statePath = "state.json"
	}
	store := config.NewStateStore(statePath)
	state, err := store.Load()
	if err != nil {
		logger.Error("state load failed", "path", statePath, "err", err)
		os.Exit(1)
	}
	if state != nil && state.DeviceID != "" && cfg.GeneratedDeviceID() {
		cfg.DeviceID = state.DeviceID
	}

	logger.Info("fieldlink gateway starting",
		"version", version.String(), "device", cfg.DeviceID,
		"update_period", cfg.Periods.Update)

	events := openJournal(cfg, logger)

	builder := report.NewBuilder(cfg.DeviceID, cfg.ReportTopics(), 0)

	clients := []link.Client{
		mqttlink.New(cfg.LinkConfig(link.KindShortRange), logger),
		mqttlink.New(cfg.LinkConfig(link.KindCellular), logger),
	}

	dispatcher := dispatch.New(builder, clients, events, logger)
	out := dispatcher.In()

	runners := []*sensor.Runner{
		sensor.NewRunner(sensor.CategoryEnvironmental, simulated.NewEnvironmental(cfg.Seed), out, logger),
		sensor.NewRunner(sensor.CategoryBattery, simulated.NewBattery(), out, logger),
		sensor.NewRunner(sensor.CategoryAccelerometerA, simulated.NewAccelerometer(cfg.Seed+1), out, logger),
		sensor.NewRunner(sensor.CategoryMagnetometer, simulated.NewMagnetometer(cfg.Seed+2), out, logger),
		sensor.NewRunner(sensor.CategoryLight, simulated.NewLight(cfg.Seed+3), out, logger),
		sensor.NewRunner(sensor.CategoryGyroscope, simulated.NewGyroscope(cfg.Seed+4), out, logger),
	}

	acquirer := position.NewAcquirer(newRequester(cfg), out, events, logger)
	if err := acquirer.SetPeriods(cfg.Periods.PositionUpdate.Std(), cfg.Periods.PositionTimeout.Std()); err != nil {
		logger.Error("position periods invalid", "err", err)
		os.Exit(1)
	}

	tasks := make([]controller.Task, 0, len(runners)+1)
	for _, r := range runners {
		tasks = append(tasks, r)
	}
	tasks = append(tasks, acquirer)

	ctrl := controller.New(builder, tasks, clients, events, logger)
	if err := ctrl.SetUpdatePeriod(cfg.Periods.Update.Std()); err != nil {
		logger.Error("update period invalid", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, r := range runners {
		if err := r.Start(ctx); err != nil {
			logger.Error("runner start failed", "sensor", r.Category(), "err", err)
			os.Exit(1)
		}
	}
	if err := acquirer.Start(ctx); err != nil {
		logger.Error("acquirer start failed", "err", err)
		os.Exit(1)
	}
	if err := dispatcher.Run(ctx); err != nil {
		logger.Error("dispatcher start failed", "err", err)
		os.Exit(1)
	}
	if err := ctrl.Start(ctx); err != nil {
		logger.Error("controller start failed", "err", err)
		os.Exit(1)
	}

	var status *statusapi.Server
	if cfg.StatusListen != "" {
		status = statusapi.New(cfg.StatusListen, ctrl, logger)
		go func() {
			if err := status.Start(); err != nil {
				logger.Error("status api failed", "err", err)
			}
		}()
	}

	bootLink(ctx, ctrl, state, logger)

	var term *console
	if opts.Interactive {
		c, err := newConsole(ctrl)
		if err != nil {
			logger.Error("console start failed", "err", err)
			os.Exit(1)
		}
		term = c
		// Route log output through readline so it does not clobber the
		// prompt.
		logger = slog.New(slog.NewTextHandler(c.Stdout(), &slog.HandlerOptions{
			Level: parseLevel(opts.LogLevel),
		}))
		slog.SetDefault(logger)
		go term.Run(ctx, cancel)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("signal received", "signal", sig.String())
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdown(ctrl, dispatcher, acquirer, runners, status, store, cfg, events, logger)
	if term != nil {
		term.Close()
	}
}

// bootLink brings up the boot-time link per the -start flag.
func bootLink(ctx context.Context, ctrl *controller.Controller, state *config.State, logger *slog.Logger) {
	target := opts.StartLink
	if target == "last" {
		target = "none"
		if state != nil {
			switch state.LastMode {
			case controller.ModeShortRange.String():
				target = "short-range"
			case controller.ModeCellular.String():
				target = "cellular"
			}
		}
	}

	var kind link.Kind
	switch target {
	case "short-range":
		kind = link.KindShortRange
	case "cellular":
		kind = link.KindCellular
	case "none":
		return
	default:
		logger.Warn("unknown boot link, staying disabled", "start", target)
		return
	}

	go func() {
		if err := ctrl.StartLink(ctx, kind); err != nil {
			logger.Warn("boot link failed", "link", kind, "err", err)
		}
	}()
}

func shutdown(
	ctrl *controller.Controller,
	dispatcher *dispatch.Dispatcher,
	acquirer *position.Acquirer,
	runners []*sensor.Runner,
	status *statusapi.Server,
	store *config.StateStore,
	cfg *config.Config,
	events journal.Logger,
	logger *slog.Logger,
) {
	mode := ctrl.Mode()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ctrl.Stop(shutdownCtx)
	for _, r := range runners {
		r.Stop()
	}
	acquirer.Stop()
	dispatcher.Stop()

	if status != nil {
		if err := status.Shutdown(shutdownCtx); err != nil {
			logger.Warn("status api shutdown failed", "err", err)
		}
	}

	if err := store.Save(&config.State{
		DeviceID: cfg.DeviceID,
		LastMode: mode.String(),
	}); err != nil {
		logger.Warn("state save failed", "err", err)
	}

	if closer, ok := events.(*journal.FileLogger); ok {
		if err := closer.Close(); err != nil {
			logger.Warn("journal close failed", "err", err)
		}
	}

	logger.Info("goodbye")
}

// newRequester selects the serial receiver or the simulated one.
func newRequester(cfg *config.Config) position.Requester {
	if cfg.GNSSDevice != "" {
		return gnss.NewReceiver(gnss.Config{Device: cfg.GNSSDevice})
	}
	return simulated.NewGNSS(2 * time.Second)
}

func openJournal(cfg *config.Config, logger *slog.Logger) journal.Logger {
	if cfg.Journal.Path == "" {
		return journal.NoopLogger{}
	}
	fl, err := journal.NewFileLogger(cfg.Journal.Path, cfg.Journal.MaxSize)
	if err != nil {
		logger.Warn("journal unavailable", "path", cfg.Journal.Path, "err", err)
		return journal.NoopLogger{}
	}
	return fl
}

func setupLogging(level string) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))
	slog.SetDefault(logger)
	return logger
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// usage prints flag help with the command name.
func usage() {
	fmt.Fprintf(os.Stderr, "Usage: fieldlink-gateway [flags]\n\n")
	flag.PrintDefaults()
}
