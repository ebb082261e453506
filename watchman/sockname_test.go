// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package watchman

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeFakeCLI drops an executable shell script named "watchman" into
// a fresh directory and points PATH at it, so Sockname spawns the
// script instead of a real service. WATCHMAN_SOCK is cleared so the
// spawn path actually runs.
func writeFakeCLI(t *testing.T, script string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "watchman")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir)
	t.Setenv(sockVar, "")
}

func TestSocknameEnvironmentOverride(t *testing.T) {
	t.Setenv(sockVar, "/run/watchman/override.sock")
	path, err := Sockname("watchman")
	if err != nil {
		t.Fatal(err)
	}
	if path != "/run/watchman/override.sock" {
		t.Errorf("path = %q, want the WATCHMAN_SOCK value verbatim", path)
	}
}

func TestSocknameParsesCLIOutput(t *testing.T) {
	writeFakeCLI(t, `echo '{"version":"4.9.0","sockname":"/tmp/fake.sock"}'`)
	path, err := Sockname("watchman")
	if err != nil {
		t.Fatal(err)
	}
	if path != "/tmp/fake.sock" {
		t.Errorf("path = %q, want /tmp/fake.sock", path)
	}
}

func TestSocknameServiceError(t *testing.T) {
	writeFakeCLI(t, `echo '{"error":"the service is unwell"}'`)
	_, err := Sockname("watchman")
	var serviceError *ServiceError
	if !errors.As(err, &serviceError) {
		t.Fatalf("error = %v, want *ServiceError", err)
	}
	if serviceError.Message != "the service is unwell" {
		t.Errorf("message = %q", serviceError.Message)
	}
	if serviceError.Response == nil {
		t.Error("diagnostic response missing")
	}
}

func TestSocknameNonZeroExit(t *testing.T) {
	writeFakeCLI(t, "echo 'everything is broken' >&2\nexit 3")
	_, err := Sockname("watchman")
	if err == nil {
		t.Fatal("expected spawn failure")
	}
	message := err.Error()
	for _, fragment := range []string{"get-sockname", "code 3", "everything is broken"} {
		if !strings.Contains(message, fragment) {
			t.Errorf("error %q lacks %q", message, fragment)
		}
	}
}

func TestSocknameMalformedJSON(t *testing.T) {
	writeFakeCLI(t, `echo 'this is not json'`)
	_, err := Sockname("watchman")
	if err == nil || !strings.Contains(err.Error(), "parsing get-sockname output") {
		t.Errorf("error = %v, want a JSON parse failure", err)
	}
}

func TestSocknameMissingSocknameField(t *testing.T) {
	writeFakeCLI(t, `echo '{"version":"4.9.0"}'`)
	_, err := Sockname("watchman")
	if err == nil || !strings.Contains(err.Error(), "no sockname field") {
		t.Errorf("error = %v, want a missing-field failure", err)
	}
}

func TestSocknameNotFoundTranslation(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	t.Setenv(sockVar, "")
	_, err := Sockname("watchman")
	if err == nil || err.Error() != notFoundMessage {
		t.Errorf("error = %v, want the not-found contract message", err)
	}
}

func TestSocknamePermissionTranslation(t *testing.T) {
	t.Setenv(sockVar, "")
	dir := t.TempDir()
	path := filepath.Join(dir, "watchman")
	// Present but not executable; spawning fails with EACCES.
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Sockname(path)
	if err == nil || err.Error() != permissionMessage {
		t.Errorf("error = %v, want the permission contract message", err)
	}
}
