// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bser

import (
	"bytes"
	"encoding/json"
)

// Int64 carries a signed 64-bit integer that must ride the wire as
// INT64 regardless of magnitude. The encoder's width-selection rule
// never applies to it, so a value decoded from an INT64 field
// round-trips byte-exactly. The decoder produces Int64 for every
// INT64-tagged wire integer; narrower tags decode to plain int64.
type Int64 int64

// undefinedValue is the type of Undefined. It is unexported so the
// marker is a singleton.
type undefinedValue struct{}

// Undefined marks an object member that is present but carries no
// value. The encoder erases such members: an object encoded with an
// Undefined member decodes without that key. It is never produced by
// the decoder.
var Undefined any = undefinedValue{}

// Member is one key/value pair of an Object.
type Member struct {
	Key   string
	Value any
}

// Object is an ordered string-keyed collection, the decoded form of a
// BSER object. Key order is the order the keys appeared on the wire
// (or the order Set was called). Lookups are linear; watchman objects
// are small.
type Object struct {
	members []Member
}

// NewObject returns an empty Object.
func NewObject() *Object {
	return &Object{}
}

// Set adds or replaces the member for key and returns the object for
// chaining. A new key is appended; an existing key keeps its position.
func (o *Object) Set(key string, value any) *Object {
	for i := range o.members {
		if o.members[i].Key == key {
			o.members[i].Value = value
			return o
		}
	}
	o.members = append(o.members, Member{Key: key, Value: value})
	return o
}

// Get returns the value for key and whether the key is present.
func (o *Object) Get(key string) (any, bool) {
	for i := range o.members {
		if o.members[i].Key == key {
			return o.members[i].Value, true
		}
	}
	return nil, false
}

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

// Len returns the number of members.
func (o *Object) Len() int {
	return len(o.members)
}

// Keys returns the keys in order.
func (o *Object) Keys() []string {
	keys := make([]string, len(o.members))
	for i, member := range o.members {
		keys[i] = member.Key
	}
	return keys
}

// Members returns the members in order. The slice aliases the object's
// storage; callers must not mutate it.
func (o *Object) Members() []Member {
	return o.members
}

// MarshalJSON renders the object with its keys in wire order. Members
// holding Undefined are omitted, mirroring the encoder's erasure rule.
func (o *Object) MarshalJSON() ([]byte, error) {
	var out bytes.Buffer
	out.WriteByte('{')
	first := true
	for _, member := range o.members {
		if member.Value == Undefined {
			continue
		}
		if !first {
			out.WriteByte(',')
		}
		first = false
		key, err := json.Marshal(member.Key)
		if err != nil {
			return nil, err
		}
		out.Write(key)
		out.WriteByte(':')
		value, err := json.Marshal(member.Value)
		if err != nil {
			return nil, err
		}
		out.Write(value)
	}
	out.WriteByte('}')
	return out.Bytes(), nil
}
