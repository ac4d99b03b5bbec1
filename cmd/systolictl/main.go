package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/systolink/internal/device"
	"github.com/danmuck/systolink/internal/observability"
	"github.com/danmuck/systolink/internal/protocol/session"
	"github.com/danmuck/systolink/internal/transport"
	"github.com/rs/zerolog"
	"github.com/tebeka/atexit"
)

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "systolictl: %v\n", err)
		}
		atexit.Exit(2)
	}
	logger := observability.InitLogger("systolictl", opts.verbose)
	err = run(opts, logger)
	code := exitCode(err)
	switch {
	case err == nil:
	case code == 0:
		logger.Info().Err(err).Msg("interrupted")
	default:
		fmt.Fprintf(os.Stderr, "systolictl: %v\n", err)
	}
	atexit.Exit(code)
}

// exitCode maps a run error to a process status. A signal-cancelled run is a
// normal shutdown.
func exitCode(err error) int {
	if err == nil || errors.Is(err, context.Canceled) {
		return 0
	}
	return 1
}

func run(opts options, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	settings, err := resolveSettings(opts)
	if err != nil {
		return err
	}
	cfg := settings.Session

	var opener transport.Opener
	if opts.simulate {
		opener = device.Opener(simOptions(opts, cfg))
	}
	observability.RegisterMetrics()
	sess, err := session.Open(cfg, opener, logger)
	if err != nil {
		return err
	}
	// Close is idempotent; the exit handler and the deferred call may both run.
	atexit.Register(func() { _ = sess.Close() })
	defer sess.Close()

	if settings.MetricsAddr != "" {
		srv := &http.Server{
			Addr:    settings.MetricsAddr,
			Handler: observability.StatusRouter("systolictl", logger, sess, settings.CorsOrigins...),
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Str("addr", settings.MetricsAddr).Msg("status server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info().Str("addr", settings.MetricsAddr).Msg("status server listening")
	}

	if opts.reset {
		if err := sess.Reset(ctx, true); err != nil {
			return err
		}
	}

	vector := cfg.Mode == session.ModeVector
	failed := 0
	for i := 1; i <= opts.selfTests; i++ {
		report, err := sess.SelfTest(ctx, vector, nil)
		if err != nil {
			return fmt.Errorf("self test %d: %w", i, err)
		}
		if err := report.Err(); err != nil {
			failed++
			logger.Error().Err(err).Int("run", i).Msg("self test failed")
			continue
		}
		fmt.Printf("self test %d/%d %s passed fpga=%s host=%s attempts=%d\n",
			i, opts.selfTests, report.Mode, report.FPGALatency, report.HostLatency, report.Exchange.Attempts)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d self tests failed", failed, opts.selfTests)
	}
	return nil
}
