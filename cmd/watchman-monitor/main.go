// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// watchman-monitor tails the unilateral messages the watchman service
// pushes to its clients: subscription updates and log events. Each
// message is printed as one JSON line, tagged with the channel it
// arrived on, so the stream composes with line-oriented tooling.
//
//	watchman-monitor --log-level debug
//
// The tool runs until interrupted or until the service closes the
// connection.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/watchman-go/bser"
	"github.com/bureau-foundation/watchman-go/lib/process"
	"github.com/bureau-foundation/watchman-go/lib/version"
	"github.com/bureau-foundation/watchman-go/watchman"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var binaryPath string
	var logLevel string
	var showVersion bool

	flags := pflag.NewFlagSet("watchman-monitor", pflag.ContinueOnError)
	flags.StringVar(&binaryPath, "binary", "", "path to the watchman CLI used for socket discovery")
	flags.StringVar(&logLevel, "log-level", "debug", "service log level to request: debug, error, or off")
	flags.BoolVar(&showVersion, "version", false, "print version and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Printf("watchman-monitor %s\n", version.Info())
		return nil
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	client := watchman.NewClient(watchman.ClientConfig{
		BinaryPath: binaryPath,
		Logger:     logger,
	})
	defer client.End()

	ended := make(chan struct{})
	client.OnEnd(func() { close(ended) })
	client.OnError(func(err error) {
		logger.Error("watchman connection error", "error", err)
	})
	client.OnSubscription(func(object *bser.Object) { printEvent("subscription", object) })
	client.OnLog(func(object *bser.Object) { printEvent("log", object) })

	// Asking for a log level both registers interest in log pushes and
	// verifies the connection end to end.
	commandFailed := make(chan error, 1)
	client.Command([]any{"log-level", logLevel}, func(response any, err error) {
		if err != nil {
			commandFailed <- err
			return
		}
		logger.Info("monitoring", "log_level", logLevel)
	})

	interrupted := make(chan os.Signal, 1)
	signal.Notify(interrupted, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-commandFailed:
		return err
	case <-interrupted:
		return nil
	case <-ended:
		return fmt.Errorf("the watchman connection closed")
	}
}

// printEvent writes one unilateral message as a JSON line on stdout.
func printEvent(channel string, object *bser.Object) {
	data, err := json.Marshal(object)
	if err != nil {
		// The value came off the wire as valid BSER; a render failure
		// here is a bug worth seeing, not worth dying for.
		fmt.Fprintf(os.Stderr, "render error at %s: %v\n", time.Now().Format(time.RFC3339), err)
		return
	}
	fmt.Printf("%s %s\n", channel, data)
}
