// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bser implements BSER, the binary serialization format spoken
// by the watchman file-watching service on its local unix socket.
//
// BSER carries a JSON-superset data model: booleans, null, signed
// integers up to 64 bits, IEEE-754 doubles, UTF-8 strings,
// heterogeneous arrays, string-keyed objects, and a compact "template"
// array-of-objects form. Every message on the wire is a PDU: the two
// header bytes 0x00 0x01, a BSER-encoded payload length, and exactly
// one BSER value of that length.
//
// The protocol is local-only and deliberately declares host byte order:
// all fixed-width integers and doubles travel in the native endianness
// of the machine. Endian handling is centralized in the Accumulator's
// typed readers and writers; nothing else in the package inspects byte
// order.
//
// The package is organized around the codec data flow:
//
//   - accum.go: growable byte buffer with separate read/write cursors
//   - value.go: the decoded value universe (Int64, Undefined, Object)
//   - encode.go: recursive dumper producing one complete PDU
//   - decode.go: one-shot and incremental PDU decoders
//
// Decoding produces native Go values: nil, bool, int64, Int64,
// float64, string, []any, and *Object. Object preserves the key order
// found on the wire.
package bser
