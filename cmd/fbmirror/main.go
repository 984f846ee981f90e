// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fbmirror/fbmirror/internal/admission"
	"github.com/fbmirror/fbmirror/internal/broadcast"
	"github.com/fbmirror/fbmirror/internal/config"
	"github.com/fbmirror/fbmirror/internal/daemon"
	"github.com/fbmirror/fbmirror/internal/fb"
	"github.com/fbmirror/fbmirror/internal/health"
	fblog "github.com/fbmirror/fbmirror/internal/log"
	"github.com/fbmirror/fbmirror/internal/stream"
)

var (
	version   = "v1.0.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	device := flag.String("device", "", "framebuffer device name or path (e.g. fb1 or /dev/fb1)")
	width := flag.Int("width", 0, "framebuffer width in pixels (0 = auto-detect)")
	height := flag.Int("height", 0, "framebuffer height in pixels (0 = auto-detect)")
	depth := flag.Int("depth", 0, "framebuffer bits per pixel (0 = auto-detect)")
	listen := flag.String("listen", "", "stream server listen address")
	interval := flag.Duration("interval", 0, "capture interval (e.g. 100ms)")
	minWorkers := flag.Int("min-workers", 0, "minimum stream workers kept warm")
	maxWorkers := flag.Int("max-workers", 0, "maximum concurrent stream clients")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Safe defaults until the real configuration is resolved.
	fblog.Configure(fblog.Config{
		Level:   "info",
		Service: "fbmirror",
		Version: version,
	})
	logger := fblog.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Config path: explicit --config wins, otherwise the first file found on
	// the search path. No file at all is fine; env and defaults carry.
	effectivePath := *configPath
	if effectivePath == "" {
		effectivePath = config.FindConfigFile()
	}

	loader := config.NewLoader(effectivePath)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", effectivePath).
			Msg("failed to load configuration")
	}

	// Flags beat everything: only flags the user actually passed apply.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			cfg.Device = *device
		case "width":
			cfg.Width = *width
		case "height":
			cfg.Height = *height
		case "depth":
			cfg.Depth = *depth
		case "listen":
			cfg.Listen = *listen
		case "interval":
			cfg.Interval = *interval
		case "min-workers":
			cfg.MinWorkers = *minWorkers
		case "max-workers":
			cfg.MaxWorkers = *maxWorkers
		}
	})
	if *debug || config.ParseBool("FBMIRROR_DEBUG", false) {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.invalid").
			Msg("invalid configuration")
	}
	fblog.SetLevel(cfg.LogLevel)

	if effectivePath != "" {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file").
			Str("path", effectivePath).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	// Fill any auto geometry fields from sysfs before opening the device.
	if cfg.Width == 0 || cfg.Height == 0 || cfg.Depth == 0 {
		if err := config.ResolveGeometry(&cfg, cfg.SysfsDir()); err != nil {
			logger.Fatal().
				Err(err).
				Str("event", "config.probe_failed").
				Str("sysfs", cfg.SysfsDir()).
				Msg("could not auto-detect framebuffer geometry; set width/height/depth explicitly")
		}
	}

	layout := fb.Layout565
	if cfg.Depth16Layout == "555" {
		layout = fb.Layout555
	}
	geom := fb.Geometry{
		Width:      cfg.Width,
		Height:     cfg.Height,
		Depth:      cfg.Depth,
		DevicePath: cfg.DevicePath(),
		Layout16:   layout,
	}

	grabber, err := fb.Open(geom)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "fb.open_failed").
			Str("device", geom.DevicePath).
			Msg("failed to open framebuffer device")
	}

	b := broadcast.New()
	mon := admission.NewMonitor(cfg.MinWorkers, cfg.MaxWorkers)
	gate := health.NewFirstFrameGate()

	hm := health.NewManager(version)
	hm.RegisterChecker(health.NewDeviceChecker(geom.DevicePath))
	hm.RegisterChecker(gate)

	srv := stream.New(b, mon, hm)
	capture := daemon.NewCaptureLoop(grabber, b, gate, cfg.Interval)

	serverCfg := config.ParseServerConfig(cfg.Listen)

	deps := daemon.Deps{
		Logger:        logger,
		StreamHandler: srv.Handler(),
		Capture:       capture,
		Broadcaster:   b,
	}
	if cfg.MetricsListen != "" {
		deps.MetricsHandler = promhttp.Handler()
		deps.MetricsAddr = cfg.MetricsListen
	}

	mgr, err := daemon.NewManager(serverCfg, deps)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "manager.creation_failed").
			Msg("failed to create daemon manager")
	}
	mgr.RegisterShutdownHook("grabber", func(ctx context.Context) error {
		return grabber.Close()
	})

	// Hot reload: the config file (on change or SIGHUP) can adjust the
	// capture interval and log level at runtime. Everything else is bound at
	// startup and only logs a restart warning.
	applyReload := func(next config.Settings) {
		if cfg.RequiresRestart(next) {
			logger.Warn().
				Str("event", "config.restart_required").
				Msg("device, geometry or listen changes require a restart; applying interval and log level only")
		}
		capture.SetInterval(next.Interval)
		fblog.SetLevel(next.LogLevel)
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	if effectivePath != "" {
		watcher := config.NewWatcher(effectivePath, applyReload)
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.Warn().Err(err).Str("event", "config.watch_failed").Msg("config watcher stopped")
			}
		}()
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-hup:
					logger.Info().Str("event", "config.sighup").Msg("SIGHUP received, reloading configuration")
					if err := watcher.Reload(); err != nil {
						logger.Warn().Err(err).Str("event", "config.reload_failed").Msg("reload failed, keeping current settings")
					}
				}
			}
		}()
	} else {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-hup:
					logger.Warn().
						Str("event", "config.sighup").
						Msg("SIGHUP received but no config file is in use, nothing to reload")
				}
			}
		}()
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("geometry", geom.String()).
		Str("addr", serverCfg.ListenAddr).
		Dur("interval", cfg.Interval).
		Int("max_clients", mon.Max()).
		Msg("starting fbmirror")
	if deps.MetricsAddr != "" {
		logger.Info().Msgf("→ Metrics: %s/metrics", deps.MetricsAddr)
	}
	logger.Info().Msgf("→ Stream: http://%s/stream", serverCfg.ListenAddr)

	if err := mgr.Start(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "manager.failed").
			Msg("daemon failed")
	}

	logger.Info().Msg("fbmirror exiting")
}
