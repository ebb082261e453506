// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for the watchman
// command-line tools. It centralizes the one legitimate raw-stderr
// pattern that exists outside the structured logger: fatal error
// reporting from main() before exit.
package process
