package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"

	"github.com/irctrakz/netlog/pkg/capture"
	"github.com/irctrakz/netlog/pkg/config"
	"github.com/irctrakz/netlog/pkg/filter"
	"github.com/irctrakz/netlog/pkg/logging"
	"github.com/irctrakz/netlog/pkg/metrics"
	"github.com/irctrakz/netlog/pkg/netlog"
	"github.com/irctrakz/netlog/pkg/ring"
	"github.com/irctrakz/netlog/pkg/server"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the log and its HTTP endpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "configuration file (.json, .yaml, .yml)",
				EnvVars: []string{"NETLOG_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "listen",
				Usage: "HTTP listen address, overrides the config file",
			},
			&cli.IntFlag{
				Name:  "capacity",
				Usage: "arena size in bytes, overrides the config file",
			},
			&cli.BoolFlag{
				Name:  "capture",
				Usage: "enable the raw-socket event source",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "enable debug logging",
				EnvVars: []string{"DEBUG"},
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

// loadConfig layers defaults, the config file, NETLOG_* variables and
// command-line flags, in that order.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path := c.String("config"); path != "" {
		if err := config.LoadFromFile(path, cfg); err != nil {
			return nil, err
		}
	}
	config.LoadFromEnv(cfg)
	if c.IsSet("listen") {
		cfg.Server.Listen = c.String("listen")
	}
	if c.IsSet("capacity") {
		cfg.Buffer.Capacity = c.Int("capacity")
	}
	if c.Bool("capture") {
		cfg.Capture.Enabled = true
	}
	if c.Bool("debug") {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.ApplyLogging(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// daemon is the wired object graph behind serve.
type daemon struct {
	store  *ring.Store
	logger *netlog.Logger
	device *netlog.Device
	proc   *capture.Processor
	reg    *prometheus.Registry
	srcs   metrics.Sources

	closers []io.Closer
}

func (d *daemon) close() {
	for _, c := range d.closers {
		c.Close()
	}
}

func build(cfg *config.Config) (*daemon, error) {
	store, err := ring.New(cfg.Buffer.Capacity)
	if err != nil {
		return nil, err
	}
	wl, err := filter.NewWhitelist(cfg.Whitelist)
	if err != nil {
		return nil, err
	}
	probes, err := cfg.ProbeMask()
	if err != nil {
		return nil, err
	}

	d := &daemon{store: store}
	d.logger = netlog.NewLogger(store, wl)
	d.logger.SetProbes(probes)
	d.device = netlog.NewDevice(store, cfg.Header())
	d.srcs = metrics.Sources{
		Store:   store.Metrics,
		Readers: d.device.Metrics,
		Logger:  d.logger.Metrics,
	}

	if cfg.Capture.Enabled {
		opts := capture.Options{
			Workers:  cfg.Capture.Workers,
			QueueCap: cfg.Capture.QueueCap,
			Source:   cfg.Capture.Source,
		}
		if cfg.Capture.Pcap != "" {
			f, err := os.Create(cfg.Capture.Pcap)
			if err != nil {
				return nil, fmt.Errorf("pcap: %w", err)
			}
			if opts.Dump, err = capture.NewPcapWriter(f); err != nil {
				f.Close()
				return nil, fmt.Errorf("pcap: %w", err)
			}
			d.closers = append(d.closers, f)
		}
		d.proc = capture.NewProcessor(d.logger, opts)
		d.srcs.Capture = d.proc.Metrics
	}

	if cfg.Metrics.Prometheus {
		d.reg = prometheus.NewRegistry()
		d.reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		if _, err := metrics.Register(d.reg, d.srcs); err != nil {
			return nil, err
		}
	}

	logging.Infof("Log store ready: capacity=%d probes=%s whitelist=%d entries",
		store.Capacity(), probes, len(wl.Entries()))
	return d, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	d, err := build(cfg)
	if err != nil {
		return err
	}
	defer d.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	if d.proc != nil {
		if err := d.proc.Start(); err != nil {
			return err
		}
		defer d.proc.Stop()

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := capture.Listen(ctx, cfg.Capture.Protocol, d.proc); err != nil {
				errCh <- err
			}
		}()
	}

	interval, _ := cfg.ReportInterval()
	if interval > 0 {
		r := &reporter{srcs: d.srcs, format: cfg.Metrics.Format}
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.run(ctx, interval)
		}()
	}

	if cfg.Server.Listen != "" {
		opts := server.Options{LogPath: cfg.Server.LogPath, MaxLine: cfg.Server.MaxLine}
		if d.reg != nil {
			opts.Gatherer = d.reg
		}
		srv := server.New(d.device, opts)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.ListenAndServe(ctx, cfg.Server.Listen); err != nil {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		logging.Infof("Shutting down")
		err = nil
	case err = <-errCh:
		logging.Errorf("Fatal: %v", err)
	}
	cancel()
	wg.Wait()
	return err
}
