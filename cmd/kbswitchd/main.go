//go:build linux

// Command kbswitchd fixes text typed in the wrong keyboard layout.
//
// It grabs the physical keyboard, mirrors every key through a virtual
// keyboard, and remembers what was typed. Pressing the trigger key erases
// the last word (or everything after ctrl+select-all), switches layout with
// the configured combo and types the same keys again.
//
// Usage:
//
//	kbswitchd [flags]
//
// Sending SIGUSR1 logs the current counters.
//
// Flags:
//
//	-config string
//	    Configuration file (default: $XDG_CONFIG_HOME/kbswitchd/config.toml)
//	-list-devices
//	    Print input devices in selection order and exit
//	-metrics-file string
//	    Write counters in Prometheus text format here on exit
//	-version
//	    Print version and exit
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"kbswitchd/internal/capture"
	"kbswitchd/internal/config"
	"kbswitchd/internal/daemon"
	"kbswitchd/internal/device"
	"kbswitchd/internal/hotplug"
	"kbswitchd/internal/logging"
	"kbswitchd/internal/metrics"
	"kbswitchd/internal/output"
	"kbswitchd/internal/switcher"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	configPath  = flag.String("config", "", "configuration file (default: "+config.DefaultPath()+")")
	listDevices = flag.Bool("list-devices", false, "print input devices in selection order and exit")
	metricsFile = flag.String("metrics-file", "", "write counters in Prometheus text format to this file on exit")
	showVersion = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("kbswitchd", version)
		return
	}

	path := *configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)

	if *listDevices {
		// Listing works without a usable config; it only needs the filters.
		if err != nil {
			fmt.Fprintf(os.Stderr, "kbswitchd: %v (using defaults)\n", err)
			cfg = config.DefaultConfig()
		}
		if err := printDevices(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "kbswitchd: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "kbswitchd: %v\n", err)
		os.Exit(1)
	}
	// The running daemon owns its own copy of the loaded configuration.
	if err := run(cfg.Clone()); err != nil {
		fmt.Fprintf(os.Stderr, "kbswitchd: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logCfg, err := logging.FromConfig(cfg.Logging)
	if err != nil {
		return err
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Close()

	bindings, err := cfg.Bindings()
	if err != nil {
		return err
	}

	lock, err := daemon.Acquire(cfg.PidFile)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("release pid file", "error", err)
		}
	}()

	if err := daemon.Preflight(daemon.UinputPath); err != nil {
		// Not fatal: permissions may be fixed while we wait and retry.
		logger.Warn("virtual keyboard unavailable", "error", err)
	}

	stats := metrics.NewDaemon(nil)

	sw, err := switcher.New(switcher.Options{
		Trigger:    bindings.Trigger,
		SelectAll:  bindings.SelectAll,
		Combo:      bindings.Combo,
		BufferSize: cfg.BufferSize,
		StaleAfter: cfg.StaleAfter(),
		Logger:     logger.WithComponent("switcher").Logger,
		Metrics:    stats,
	})
	if err != nil {
		return err
	}

	var waiter hotplug.Waiter = hotplug.Sleep{}
	if cfg.HotplugWake {
		w, err := hotplug.NewWatcher(hotplug.InputDir, logger.WithComponent("hotplug").Logger)
		if err != nil {
			logger.Warn("hotplug watch unavailable, using fixed retry delay", "error", err)
		} else {
			defer w.Close()
			waiter = w
		}
	}

	loop := &capture.Loop{
		Source: device.EvdevSource{},
		NewSink: func() (output.Sink, error) {
			return output.NewUinput()
		},
		Switcher: sw,
		Waiter:   waiter,
		Select: device.SelectOptions{
			DevicePath:      cfg.DevicePath,
			IgnoredKeywords: cfg.IgnoredKeywords,
			SelfName:        output.DeviceName,
		},
		RetryDelay: cfg.RetryDelay(),
		Logger:     logger.WithComponent("capture").Logger,
		Metrics:    stats,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go reportOnSignal(ctx, logger.Logger, stats)

	logger.Info("starting",
		"version", version,
		"log_level", logging.LevelString(logCfg.Level),
		"trigger", cfg.TriggerKey,
		"combo", cfg.LayoutSwitchCombo,
		"pid_file", lock.Path(),
	)
	err = loop.Run(ctx)
	logger.Info("stopped", "metrics", stats)
	if *metricsFile != "" {
		if werr := writeMetrics(*metricsFile, stats.Registry()); werr != nil {
			logger.Warn("write metrics file", "path", *metricsFile, "error", werr)
		}
	}
	return err
}

func reportOnSignal(ctx context.Context, log *slog.Logger, stats *metrics.Daemon) {
	usr1 := make(chan os.Signal, 1)
	signal.Notify(usr1, syscall.SIGUSR1)
	defer signal.Stop(usr1)

	for {
		select {
		case <-ctx.Done():
			return
		case <-usr1:
			log.Info("metrics", "metrics", stats)
		}
	}
}

func writeMetrics(path string, reg *metrics.Registry) error {
	var buf bytes.Buffer
	if err := reg.WritePrometheus(&buf); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

func printDevices(cfg *config.Config) error {
	src := device.EvdevSource{}
	cands, err := src.Enumerate()
	if err != nil {
		return err
	}

	opts := device.SelectOptions{
		DevicePath:      cfg.DevicePath,
		IgnoredKeywords: cfg.IgnoredKeywords,
		SelfName:        output.DeviceName,
	}
	ranked := device.Rank(cands, opts)
	chosen, err := device.Choose(opts, ranked)
	if err != nil && !errors.Is(err, device.ErrNotFound) {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tPATH\tSCORE\tNAME")
	for _, r := range ranked {
		mark := ""
		if r.Path == chosen {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", mark, r.Path, r.Score, r.Name)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	switch {
	case chosen == "":
		fmt.Println("no keyboard found")
	case cfg.DevicePath != "" && chosen == cfg.DevicePath:
		fmt.Printf("using configured device %s\n", chosen)
	}
	return nil
}
