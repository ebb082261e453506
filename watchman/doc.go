// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package watchman implements a client for the watchman file-watching
// service. A client owns one unix-socket connection to the local
// service and serializes command exchanges over it: requests go out
// strictly one at a time, responses complete their commands in FIFO
// order, and server-initiated messages (subscription updates, log
// events) are demultiplexed off the same stream into typed callbacks
// without disturbing the command in flight.
//
// The package is organized around the connection lifecycle:
//
//   - sockname.go: socket discovery (WATCHMAN_SOCK or spawning the CLI)
//   - client.go: command queue, dispatch state machine, read loop
//   - capability.go: capability queries with old-server synthesis
//   - errors.go: error taxonomy shared by the above
//
// All client state is confined behind a single mutex; callbacks are
// invoked without it held, so completions may safely enqueue further
// commands.
package watchman
