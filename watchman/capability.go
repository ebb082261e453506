// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package watchman

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bureau-foundation/watchman-go/bser"
)

// capabilityVersions maps capability names to the first service
// version that supports them. Used to synthesize a capability map when
// the server predates capability queries. The entries are bit-exact
// protocol constants; do not round them.
var capabilityVersions = map[string]string{
	"cmd-watch-del-all": "3.1.1",
	"cmd-watch-project": "3.1",
	"relative_root":     "3.3",
	"term-dirname":      "3.1",
	"term-idirname":     "3.1",
	"wildmatch":         "3.7",
}

// CapabilityOptions names the capabilities a caller wants to probe.
// Required capabilities fail the check when unsupported; optional ones
// just report their availability.
type CapabilityOptions struct {
	Optional []string
	Required []string
}

// CapabilityResponse is the outcome of a capability check.
type CapabilityResponse struct {
	// Version is the service version string.
	Version string

	// Capabilities maps each probed capability to its availability.
	Capabilities map[string]bool

	// Response is the full decoded version response.
	Response *bser.Object
}

// CapabilityCheck probes the service for the named capabilities and
// invokes callback once with the result. Servers too old to answer a
// capability query get a capability map synthesized from their version
// string. If any required capability is unsupported the check fails
// with an error naming it.
func (c *Client) CapabilityCheck(options CapabilityOptions, callback func(*CapabilityResponse, error)) {
	request := []any{"version", map[string]any{
		"optional": stringsToValues(options.Optional),
		"required": stringsToValues(options.Required),
	}}

	c.Command(request, func(response any, err error) {
		if err != nil {
			callback(nil, err)
			return
		}
		object, ok := response.(*bser.Object)
		if !ok {
			callback(nil, fmt.Errorf("watchman: version response is %T, not an object", response))
			return
		}

		version, _ := valueAsString(object, "version")
		result := &CapabilityResponse{
			Version:      version,
			Capabilities: make(map[string]bool),
			Response:     object,
		}

		if raw, present := object.Get("capabilities"); present {
			capabilities, ok := raw.(*bser.Object)
			if !ok {
				callback(nil, fmt.Errorf("watchman: capabilities field is %T, not an object", raw))
				return
			}
			for _, member := range capabilities.Members() {
				supported, _ := member.Value.(bool)
				result.Capabilities[member.Key] = supported
			}
		} else {
			// Old server: derive support from its version string.
			for _, name := range options.Optional {
				result.Capabilities[name] = versionSupports(version, name)
			}
			for _, name := range options.Required {
				result.Capabilities[name] = versionSupports(version, name)
			}
		}

		for _, name := range options.Required {
			if !result.Capabilities[name] {
				callback(nil, fmt.Errorf("watchman: client required capability `%s` is not supported by this server", name))
				return
			}
		}
		callback(result, nil)
	})
}

// versionSupports reports whether a service at version has the named
// capability. Unknown capability names are unsupported.
func versionSupports(version, capability string) bool {
	minimum, known := capabilityVersions[capability]
	if !known {
		return false
	}
	return compareVersions(version, minimum) >= 0
}

// compareVersions orders two dotted version strings by their first
// three numeric components. Missing components count as zero, and
// non-numeric components parse as zero, so "3.1" == "3.1.0" and both
// precede "3.1.1".
func compareVersions(a, b string) int {
	for i := 0; i < 3; i++ {
		left := versionComponent(a, i)
		right := versionComponent(b, i)
		if left != right {
			if left < right {
				return -1
			}
			return 1
		}
	}
	return 0
}

// versionComponent returns the i-th dotted component of version as a
// base-10 integer, or 0 when absent or non-numeric.
func versionComponent(version string, i int) int {
	parts := strings.Split(version, ".")
	if i >= len(parts) {
		return 0
	}
	value, err := strconv.Atoi(parts[i])
	if err != nil {
		return 0
	}
	return value
}

// stringsToValues widens a string slice for the encoder. nil stays an
// empty array rather than BSER null: the service expects array-typed
// fields.
func stringsToValues(names []string) []any {
	values := make([]any, len(names))
	for i, name := range names {
		values[i] = name
	}
	return values
}

// valueAsString fetches a string field from object.
func valueAsString(object *bser.Object, key string) (string, bool) {
	raw, present := object.Get(key)
	if !present {
		return "", false
	}
	value, ok := raw.(string)
	return value, ok
}
