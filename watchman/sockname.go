// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package watchman

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// sockVar is the environment variable that pre-advertises the service
// socket path. When set, discovery skips spawning the CLI entirely —
// this is how watchman-aware environments (and tests) pin the socket.
const sockVar = "WATCHMAN_SOCK"

// Sockname returns the path of the watchman service's unix socket.
// If WATCHMAN_SOCK is set its value is used verbatim; otherwise the
// CLI at binaryPath is spawned with "--no-pretty get-sockname" and its
// JSON output parsed. Spawning also starts the service on demand, so a
// successful return means the socket exists.
func Sockname(binaryPath string) (string, error) {
	if path := os.Getenv(sockVar); path != "" {
		return path, nil
	}

	argv := []string{binaryPath, "--no-pretty", "get-sockname"}
	command := exec.Command(argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		switch {
		case errors.Is(err, exec.ErrNotFound):
			return "", errors.New(notFoundMessage)
		case errors.Is(err, os.ErrPermission), errors.Is(err, syscall.EACCES):
			return "", errors.New(permissionMessage)
		}
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return "", fmt.Errorf("watchman: %v exited with code %d signal %q: %s",
				argv, exitError.ExitCode(), exitSignal(exitError), bytes.TrimSpace(stderr.Bytes()))
		}
		return "", fmt.Errorf("watchman: spawning %v: %w", argv, err)
	}

	var response map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &response); err != nil {
		return "", fmt.Errorf("watchman: parsing get-sockname output %q: %w", stdout.String(), err)
	}
	if message, ok := response["error"].(string); ok && message != "" {
		return "", &ServiceError{Message: message, Response: response}
	}
	path, ok := response["sockname"].(string)
	if !ok || path == "" {
		return "", fmt.Errorf("watchman: get-sockname output %q has no sockname field", stdout.String())
	}
	return path, nil
}

// exitSignal names the signal that terminated the CLI, or "none" for a
// plain non-zero exit.
func exitSignal(exitError *exec.ExitError) string {
	status, ok := exitError.Sys().(syscall.WaitStatus)
	if ok && status.Signaled() {
		return status.Signal().String()
	}
	return "none"
}
