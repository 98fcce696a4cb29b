// Command maitri-stub serves a canned scheme assistant for local development.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/spf13/pflag"

	"maitri/internal/config"
	"maitri/internal/logging"
	"maitri/internal/stubserver"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "maitri-stub: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	addr string
	stub stubserver.Options
}

func parseArgs(args []string, defaultAddr string) (options, error) {
	var opts options
	flags := cli.NewFlagSet("maitri-stub", cli.ContinueOnError)
	flags.StringVarP(&opts.addr, "addr", "a", defaultAddr, "Listen address")
	flags.StringVarP(&opts.stub.Transcript, "transcript", "t", "", "Transcript returned for every upload")
	flags.BoolVar(&opts.stub.FailProcess, "fail", false, "Answer /process-audio with 500")
	flags.BoolVar(&opts.stub.OmitAudio, "no-audio", false, "Leave audio_url out of replies")
	if err := flags.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	opts, err := parseArgs(args, cfg.Stub.Addr)
	if errors.Is(err, cli.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	e, err := stubserver.New(opts.stub)
	if err != nil {
		return err
	}
	listener, err := net.Listen("tcp", opts.addr)
	if err != nil {
		return err
	}
	return serve(ctx, listener, e, logging.New(os.Stderr, cfg.Log.Level))
}

// serve runs handler on listener until ctx is done, then shuts down gracefully.
func serve(ctx context.Context, listener net.Listener, handler http.Handler, logger *slog.Logger) error {
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("stub listening", "addr", listener.Addr().String())
		serverErrors <- server.Serve(listener)
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "err", err)
		_ = server.Close()
	}
	return nil
}
