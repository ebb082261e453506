// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package watchman

import (
	"strings"
	"testing"
	"time"
)

func TestCompareVersions(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"3.1", "3.1", 0},
		{"3.1", "3.1.0", 0},
		{"3.1.1", "3.1", 1},
		{"3.1", "3.1.1", -1},
		{"3.7", "3.10", -1},
		{"4.0", "3.9.9", 1},
		{"3", "3.0.0", 0},
		{"", "0.0.0", 0},
		// Non-numeric components parse as zero.
		{"3.x.1", "3.0.1", 0},
		// Only the first three components participate.
		{"3.1.1.99", "3.1.1", 0},
	}
	for _, tc := range cases {
		if got := compareVersions(tc.a, tc.b); got != tc.want {
			t.Errorf("compareVersions(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestVersionSupports(t *testing.T) {
	cases := []struct {
		version    string
		capability string
		want       bool
	}{
		{"3.1.1", "cmd-watch-del-all", true},
		{"3.1.0", "cmd-watch-del-all", false},
		{"3.1", "cmd-watch-project", true},
		{"3.0.999", "cmd-watch-project", false},
		{"3.3", "relative_root", true},
		{"3.2.9", "relative_root", false},
		{"3.1", "term-dirname", true},
		{"3.1", "term-idirname", true},
		{"3.7", "wildmatch", true},
		{"3.6.9", "wildmatch", false},
		{"9.9", "no-such-capability", false},
	}
	for _, tc := range cases {
		if got := versionSupports(tc.version, tc.capability); got != tc.want {
			t.Errorf("versionSupports(%q, %q) = %v, want %v", tc.version, tc.capability, got, tc.want)
		}
	}
}

func TestCapabilityCheckModernServer(t *testing.T) {
	service := startFakeService(t)
	client := NewClient(ClientConfig{})
	defer client.End()

	results := make(chan *CapabilityResponse, 1)
	client.CapabilityCheck(CapabilityOptions{
		Optional: []string{"wildmatch"},
		Required: []string{"relative_root"},
	}, func(response *CapabilityResponse, err error) {
		if err != nil {
			t.Errorf("capability check failed: %v", err)
		}
		results <- response
	})

	conn := service.accept()
	request := conn.readRequest().([]any)
	if request[0] != "version" {
		t.Fatalf("request = %v, want a version command", request)
	}
	conn.send(map[string]any{
		"version": "4.9.0",
		"capabilities": map[string]any{
			"wildmatch":     true,
			"relative_root": true,
		},
	})

	select {
	case response := <-results:
		if response.Version != "4.9.0" {
			t.Errorf("version = %q", response.Version)
		}
		if !response.Capabilities["wildmatch"] || !response.Capabilities["relative_root"] {
			t.Errorf("capabilities = %v, want both true", response.Capabilities)
		}
	case <-time.After(testTimeout):
		t.Fatal("capability check never completed")
	}
}

func TestCapabilityCheckSynthesizesForOldServer(t *testing.T) {
	service := startFakeService(t)
	client := NewClient(ClientConfig{})
	defer client.End()

	results := make(chan *CapabilityResponse, 1)
	client.CapabilityCheck(CapabilityOptions{
		Optional: []string{"cmd-watch-project", "wildmatch"},
	}, func(response *CapabilityResponse, err error) {
		if err != nil {
			t.Errorf("capability check failed: %v", err)
		}
		results <- response
	})

	conn := service.accept()
	conn.readRequest()
	// An old server answers a version command with only its version.
	conn.send(map[string]any{"version": "3.2"})

	select {
	case response := <-results:
		if !response.Capabilities["cmd-watch-project"] {
			t.Error("cmd-watch-project should be supported at 3.2")
		}
		if response.Capabilities["wildmatch"] {
			t.Error("wildmatch should not be supported at 3.2")
		}
	case <-time.After(testTimeout):
		t.Fatal("capability check never completed")
	}
}

func TestCapabilityCheckFailsOnMissingRequired(t *testing.T) {
	service := startFakeService(t)
	client := NewClient(ClientConfig{})
	defer client.End()

	errs := make(chan error, 1)
	client.CapabilityCheck(CapabilityOptions{
		Required: []string{"wildmatch"},
	}, func(response *CapabilityResponse, err error) {
		errs <- err
	})

	conn := service.accept()
	conn.readRequest()
	conn.send(map[string]any{"version": "3.2"})

	select {
	case err := <-errs:
		if err == nil || !strings.Contains(err.Error(), "`wildmatch`") {
			t.Errorf("error = %v, want failure naming wildmatch", err)
		}
	case <-time.After(testTimeout):
		t.Fatal("capability check never completed")
	}
}
