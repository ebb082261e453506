// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// watchman-query runs one watchman command and prints the decoded
// response as JSON. It is a debugging tool for the wire protocol, not
// a convenience wrapper: the command goes to the service exactly as
// given.
//
// The command is a JSON array, either inline or from a file. Files may
// use JSONC (comments and trailing commas) so saved queries can be
// annotated:
//
//	watchman-query '["version"]'
//	watchman-query '["watch-list"]'
//	watchman-query --file saved-query.jsonc
//
// Output is indented when stdout is a terminal, compact otherwise.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"
	"golang.org/x/term"

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
	var filePath string
	var binaryPath string
	var timeout time.Duration
	var showVersion bool

	flags := pflag.NewFlagSet("watchman-query", pflag.ContinueOnError)
	flags.StringVar(&filePath, "file", "", "read the command from this JSONC file instead of the argument")
	flags.StringVar(&binaryPath, "binary", "", "path to the watchman CLI used for socket discovery")
	flags.DurationVar(&timeout, "timeout", 30*time.Second, "give up if the service has not responded in this long")
	flags.BoolVar(&showVersion, "version", false, "print version and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Printf("watchman-query %s\n", version.Info())
		return nil
	}

	request, err := loadCommand(flags.Args(), filePath)
	if err != nil {
		return err
	}

	client := watchman.NewClient(watchman.ClientConfig{BinaryPath: binaryPath})
	defer client.End()

	type outcome struct {
		response any
		err      error
	}
	done := make(chan outcome, 1)
	client.Command(request, func(response any, err error) {
		done <- outcome{response: response, err: err}
	})

	select {
	case result := <-done:
		if result.err != nil {
			return result.err
		}
		return printResponse(result.response)
	case <-time.After(timeout):
		return fmt.Errorf("no response from watchman within %s", timeout)
	}
}

// loadCommand parses the command array from --file or the positional
// argument. Exactly one source must be given.
func loadCommand(args []string, filePath string) ([]any, error) {
	var text []byte
	switch {
	case filePath != "" && len(args) > 0:
		return nil, errors.New("give the command inline or via --file, not both")
	case filePath != "":
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, err
		}
		text = jsonc.ToJSON(data)
	case len(args) == 1:
		text = []byte(args[0])
	default:
		return nil, errors.New("usage: watchman-query '[\"command\", ...]' or watchman-query --file query.jsonc")
	}

	var request []any
	if err := json.Unmarshal(text, &request); err != nil {
		return nil, fmt.Errorf("parsing command %q: %w", text, err)
	}
	if len(request) == 0 {
		return nil, errors.New("command array is empty")
	}
	return request, nil
}

// printResponse writes the decoded response as JSON: indented for
// humans on a terminal, compact for pipelines.
func printResponse(response any) error {
	var data []byte
	var err error
	if term.IsTerminal(int(os.Stdout.Fd())) {
		data, err = json.MarshalIndent(response, "", "  ")
	} else {
		data, err = json.Marshal(response)
	}
	if err != nil {
		return fmt.Errorf("rendering response: %w", err)
	}
	_, err = fmt.Println(string(data))
	return err
}
