package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ash2k/stager/wait"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/relaycore/statsd-relay/internal/config"
	"github.com/relaycore/statsd-relay/internal/logging"
	"github.com/relaycore/statsd-relay/pkg/admin"
	"github.com/relaycore/statsd-relay/pkg/relay"
)

const paramAdminAddr = "admin-addr"

func main() {
	logrus.SetOutput(os.Stdout)
	logrus.SetFormatter(logging.NewLineFormatter())

	configPath, adminAddr, err := parseFlags()
	if err != nil {
		if err == pflag.ErrHelp {
			return
		}
		logrus.Fatalf("error parsing flags: %v", err)
	}

	if err := run(configPath, adminAddr); err != nil {
		logrus.Fatalf("%v", err)
	}
}

// parseFlags mirrors the original relay's CLI: a single positional argument
// naming the configuration file ("%s config.file"), plus this port's
// optional admin endpoint flag.
func parseFlags() (configPath, adminAddr string, err error) {
	cmd := pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)
	cmd.StringVar(&adminAddr, paramAdminAddr, "", "Address for the optional admin HTTP endpoint (disabled if empty)")
	cmd.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] config.file\n", os.Args[0])
		cmd.PrintDefaults()
	}
	if err := cmd.Parse(os.Args[1:]); err != nil {
		return "", "", err
	}
	args := cmd.Args()
	if len(args) != 1 {
		return "", "", fmt.Errorf("usage: %s [flags] config.file", os.Args[0])
	}
	return args[0], adminAddr, nil
}

func run(configPath, adminAddr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logrus.SetLevel(logLevel(cfg.LogLevel))

	log := logrus.StandardLogger()
	metrics := relay.NewMetrics()
	metrics.Publish("statsd_relay")

	server, err := relay.NewServer(log, relay.Config{
		DataPort:             cfg.DataPort,
		FlushInterval:        cfg.FlushInterval,
		HealthCheckInterval:  cfg.HealthCheckInterval,
		DNSRefreshInterval:   cfg.DNSRefreshInterval,
		DownstreamHost:       cfg.DownstreamHost,
		DownstreamIsLiteral:  cfg.DownstreamIsLiteral,
		DownstreamDataPort:   cfg.DownstreamDataPort,
		DownstreamHealthPort: cfg.DownstreamHealthPort,
	}, metrics)
	if err != nil {
		return fmt.Errorf("starting relay: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var wg wait.Group
	defer wg.Wait()

	wg.StartWithContext(ctx, func(ctx context.Context) {
		logAndIgnoreSIGHUP(ctx, log)
	})

	if adminAddr != "" {
		adminServer := admin.New(log, adminAddr, server)
		wg.StartWithContext(ctx, adminServer.Run)
	}

	log.WithField("data_port", cfg.DataPort).Info("relay starting")
	return server.Run(ctx)
}

func logAndIgnoreSIGHUP(ctx context.Context, log logrus.FieldLogger) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP)
	defer signal.Stop(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			log.Info("received SIGHUP, ignoring (no configuration reload support)")
		}
	}
}

func logLevel(level int) logrus.Level {
	switch level {
	case 0:
		return logrus.TraceLevel
	case 1:
		return logrus.DebugLevel
	case 2:
		return logrus.InfoLevel
	case 3:
		return logrus.WarnLevel
	default:
		return logrus.ErrorLevel
	}
}
