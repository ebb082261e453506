// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package watchman

import "errors"

// Cancellation errors delivered to command completions. The message
// strings are part of the client's external contract; callers match
// them with errors.Is against these sentinels.
var (
	// ErrClientEnded cancels commands when End is called.
	ErrClientEnded = errors.New("The client was ended")

	// ErrConnectionClosed cancels commands when the connection tears
	// down underneath them.
	ErrConnectionClosed = errors.New("The watchman connection was closed")
)

// Spawn-failure translations for socket discovery. Contract messages:
// tooling matches on them to guide users toward installation or
// permission fixes.
const (
	notFoundMessage = "Watchman was not found in PATH. See " +
		"https://facebook.github.io/watchman/docs/install.html " +
		"for installation instructions"
	permissionMessage = "The Watchman CLI is installed but cannot be " +
		"spawned because of a permission problem"
)

// ServiceError is a failure reported by the watchman service itself:
// either the "error" field of a command response, or the "error" field
// of the get-sockname discovery output. Response carries the full
// decoded reply for diagnosis (a *bser.Object for command responses, a
// map[string]any for discovery).
type ServiceError struct {
	Message  string
	Response any
}

func (e *ServiceError) Error() string {
	return e.Message
}
