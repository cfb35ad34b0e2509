package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cossteam/dgram/config"
	"github.com/urfave/cli/v2"
)

var App = &cli.App{
	Name:     "dgram",
	Usage:    "exchange UDP datagrams through bounded send and receive queues",
	Version:  "0.1.0",
	Commands: []*cli.Command{},
}

var onlyOneSignalHandler = make(chan struct{})

// SetupSignalHandler registers for SIGTERM and SIGINT. A context is returned
// which is canceled on one of these signals. If a second signal is caught, the program
// is terminated with exit code 1.
func SetupSignalHandler() context.Context {
	close(onlyOneSignalHandler) // panics when called twice

	ctx, cancel := context.WithCancel(context.Background())

	c := make(chan os.Signal, 2)
	signal.Notify(c, shutdownSignals...)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1) // second signal. Exit directly.
	}()

	return ctx
}

var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGQUIT, syscall.SIGTERM}

// transportFlags are shared by every command that opens a transport.
func transportFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "config file path",
		},
		&cli.StringFlag{
			Name:    "loglevel",
			Aliases: []string{"ll"},
			Usage:   "log level (debug info warn error dpanic panic fatal)",
			Value:   "info",
		},
		&cli.StringFlag{
			Name:  "logformat",
			Usage: "log format (console json)",
			Value: "console",
		},
		&cli.StringFlag{
			Name:  "addr",
			Usage: "local address to bind",
		},
		&cli.IntFlag{
			Name:    "listenPort",
			Aliases: []string{"lp"},
			Usage:   "local port to bind, 0 picks a free port",
		},
		&cli.StringFlag{
			Name:  "host",
			Usage: "default destination host",
		},
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "default destination port, -1 for none",
			Value:   -1,
		},
		&cli.IntFlag{
			Name:  "bufferSize",
			Usage: "receive buffer size in bytes",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "receive timeout, bounds how long shutdown takes",
		},
		&cli.StringFlag{
			Name:  "compression",
			Usage: "codec compression (gzip zstd lz4 none)",
		},
	}
}

func applyConfig(ctx *cli.Context) (cfg *config.Config, err error) {
	cfg = config.Default()
	if ctx.String("config") != "" {
		cfg, err = config.Load(ctx.String("config"))
		if err != nil {
			return nil, err
		}
	}

	// Apply command line flags, overriding configuration file values
	if ctx.IsSet("loglevel") || cfg.Loglevel == "" {
		cfg.Loglevel = ctx.String("loglevel")
	}
	if ctx.IsSet("logformat") || cfg.LogFormat == "" {
		cfg.LogFormat = ctx.String("logformat")
	}
	if ctx.IsSet("addr") {
		cfg.ListenAddr = ctx.String("addr")
	}
	if ctx.IsSet("listenPort") {
		cfg.ListenPort = ctx.Int("listenPort")
	}
	if ctx.IsSet("host") {
		cfg.DestinationHost = ctx.String("host")
	}
	if ctx.IsSet("port") {
		cfg.DestinationPort = ctx.Int("port")
	}
	if ctx.IsSet("bufferSize") {
		cfg.BufferSize = ctx.Int("bufferSize")
	}
	if ctx.IsSet("timeout") {
		cfg.Timeout = ctx.Duration("timeout").String()
	}
	if ctx.IsSet("compression") {
		if cfg.Codec.Spec == nil {
			cfg.Codec.Spec = map[string]interface{}{}
		}
		cfg.Codec.Spec["compression"] = ctx.String("compression")
	}

	return cfg, nil
}
