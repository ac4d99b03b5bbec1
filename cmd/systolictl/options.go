package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/systolink/internal/config"
	"github.com/danmuck/systolink/internal/device"
	"github.com/danmuck/systolink/internal/protocol/session"
)

type options struct {
	configPath  string
	port        string
	dimension   int
	mode        string
	sync        string
	selfTests   int
	reset       bool
	simulate    bool
	misalign    int
	metricsAddr string
	verbose     bool

	// set records which flags were given explicitly.
	set map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("systolictl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "session config TOML (defaults apply when empty)")
	fs.StringVar(&opts.port, "port", "", "serial device path")
	fs.IntVar(&opts.dimension, "n", 0, "array dimension N")
	fs.StringVar(&opts.mode, "mode", "", "activation mode: vector | matrix")
	fs.StringVar(&opts.sync, "sync", "", "sync policy: strict | strict:<n> | trusted")
	fs.IntVar(&opts.selfTests, "self-test", 1, "number of self tests to run")
	fs.BoolVar(&opts.reset, "reset", true, "send a device reset before running")
	fs.BoolVar(&opts.simulate, "simulate", false, "talk to the in-process simulated device instead of a serial port")
	fs.IntVar(&opts.misalign, "sim-misalign", 0, "junk bytes (0-3) the simulated device emits before its sentinels")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /health, /metrics and /status on this address")
	fs.BoolVar(&opts.verbose, "verbose", false, "log every protocol decision at debug level")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	opts.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })
	if opts.selfTests < 1 {
		return options{}, fmt.Errorf("self-test count must be at least 1")
	}
	return opts, nil
}

// resolveSettings loads the config file, if any, and lets explicit flags win.
func resolveSettings(opts options) (config.Settings, error) {
	settings := config.DefaultSettings()
	if strings.TrimSpace(opts.configPath) != "" {
		loaded, err := config.LoadSessionFile(opts.configPath)
		if err != nil {
			return config.Settings{}, err
		}
		settings = loaded
	}

	cfg := &settings.Session
	if opts.set["port"] {
		cfg.Transport.Name = strings.TrimSpace(opts.port)
	}
	if opts.set["n"] {
		cfg.Dimension = opts.dimension
	}
	if opts.set["mode"] {
		m, err := session.ParseMode(opts.mode)
		if err != nil {
			return config.Settings{}, err
		}
		cfg.Mode = m
	}
	if opts.set["sync"] {
		p, err := session.ParseSyncPolicy(opts.sync)
		if err != nil {
			return config.Settings{}, err
		}
		cfg.Sync = p
	}
	if opts.set["metrics-addr"] {
		settings.MetricsAddr = strings.TrimSpace(opts.metricsAddr)
	}
	if opts.simulate {
		cfg.Transport.Name = ""
		cfg.Transport.Stabilize = 0
	} else if cfg.Transport.Name == "" {
		return config.Settings{}, fmt.Errorf("no serial port configured (use -port, a config file, or -simulate)")
	}
	if err := config.Validate(settings); err != nil {
		return config.Settings{}, err
	}
	return settings, nil
}

func simOptions(opts options, cfg session.Config) device.Options {
	return device.Options{
		Dimension:    cfg.Dimension,
		Matrix:       cfg.Mode == session.ModeMatrix,
		Misalignment: opts.misalign,
		StrayFrames:  2,
		Seed:         1,
	}
}
