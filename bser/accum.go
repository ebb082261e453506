// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bser

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Accumulator is a growable byte buffer with separate read and write
// cursors. The encoder appends to the write side; the decoder consumes
// from the read side, and may rewind after a speculative peek. The
// invariant 0 <= readOffset <= writeOffset <= len(buf) holds between
// calls.
//
// All typed access is host-endian. The watchman protocol is local-only
// and declares host byte order, so binary.NativeEndian here is the wire
// order, not a shortcut.
type Accumulator struct {
	buf         []byte
	readOffset  int
	writeOffset int
}

// defaultAccumulatorSize is the initial backing size for accumulators
// created without a size hint. Large enough that typical command
// request/response PDUs never reallocate.
const defaultAccumulatorSize = 8192

// NewAccumulator returns an empty accumulator with the given initial
// backing size. A size of zero or less uses the package default.
func NewAccumulator(initialSize int) *Accumulator {
	if initialSize <= 0 {
		initialSize = defaultAccumulatorSize
	}
	return &Accumulator{buf: make([]byte, initialSize)}
}

// ReadAvail returns the number of unread bytes.
func (a *Accumulator) ReadAvail() int {
	return a.writeOffset - a.readOffset
}

// WriteAvail returns the number of bytes that can be appended without
// reserving more space.
func (a *Accumulator) WriteAvail() int {
	return len(a.buf) - a.writeOffset
}

// Reserve makes room for size more bytes on the write side. It first
// reclaims space by shunting the unread region to offset 0; if that is
// still insufficient it reallocates to the next power of two that
// covers the requirement and copies the unread bytes over.
func (a *Accumulator) Reserve(size int) {
	if a.WriteAvail() >= size {
		return
	}

	// Shunt: slide [readOffset, writeOffset) down to 0.
	if a.readOffset > 0 {
		copy(a.buf, a.buf[a.readOffset:a.writeOffset])
		a.writeOffset -= a.readOffset
		a.readOffset = 0
	}

	if a.WriteAvail() >= size {
		return
	}

	grown := make([]byte, nextPowerOfTwo(len(a.buf)+size-a.WriteAvail()))
	copy(grown, a.buf[:a.writeOffset])
	a.buf = grown
}

// nextPowerOfTwo returns the smallest power of two >= n.
func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Append copies data onto the write side, growing as needed.
func (a *Accumulator) Append(data []byte) {
	a.Reserve(len(data))
	a.writeOffset += copy(a.buf[a.writeOffset:], data)
}

// AppendString copies the bytes of s onto the write side.
func (a *Accumulator) AppendString(s string) {
	a.Reserve(len(s))
	a.writeOffset += copy(a.buf[a.writeOffset:], s)
}

// WriteByte appends a single byte.
func (a *Accumulator) WriteByte(value byte) {
	a.Reserve(1)
	a.buf[a.writeOffset] = value
	a.writeOffset++
}

// WriteInt appends value as a host-endian signed integer of the given
// width. size must be 1, 2, 4, or 8; the value is truncated to that
// width (callers pick the width, see the encoder's selection rule).
func (a *Accumulator) WriteInt(value int64, size int) {
	a.Reserve(size)
	switch size {
	case 1:
		a.buf[a.writeOffset] = byte(value)
	case 2:
		binary.NativeEndian.PutUint16(a.buf[a.writeOffset:], uint16(value))
	case 4:
		binary.NativeEndian.PutUint32(a.buf[a.writeOffset:], uint32(value))
	case 8:
		binary.NativeEndian.PutUint64(a.buf[a.writeOffset:], uint64(value))
	default:
		panic(fmt.Sprintf("bser: invalid integer write size %d", size))
	}
	a.writeOffset += size
}

// WriteDouble appends value as 8 bytes of host-endian IEEE-754.
func (a *Accumulator) WriteDouble(value float64) {
	a.Reserve(8)
	binary.NativeEndian.PutUint64(a.buf[a.writeOffset:], math.Float64bits(value))
	a.writeOffset += 8
}

// shortRead builds the error for a typed read that wants more bytes
// than are available.
func (a *Accumulator) shortRead(what string, size int) error {
	return fmt.Errorf("bser: short read: wanted %d bytes for %s, have %d", size, what, a.ReadAvail())
}

// PeekInt reads a host-endian signed integer of the given width at the
// read cursor without advancing it. size must be 1, 2, 4, or 8.
func (a *Accumulator) PeekInt(size int) (int64, error) {
	if a.ReadAvail() < size {
		return 0, a.shortRead("int", size)
	}
	at := a.buf[a.readOffset:]
	switch size {
	case 1:
		return int64(int8(at[0])), nil
	case 2:
		return int64(int16(binary.NativeEndian.Uint16(at))), nil
	case 4:
		return int64(int32(binary.NativeEndian.Uint32(at))), nil
	case 8:
		return int64(binary.NativeEndian.Uint64(at)), nil
	default:
		return 0, fmt.Errorf("bser: invalid integer read size %d", size)
	}
}

// ReadInt is PeekInt followed by advancing the read cursor.
func (a *Accumulator) ReadInt(size int) (int64, error) {
	value, err := a.PeekInt(size)
	if err != nil {
		return 0, err
	}
	a.readOffset += size
	return value, nil
}

// PeekDouble reads 8 bytes of host-endian IEEE-754 at the read cursor
// without advancing it.
func (a *Accumulator) PeekDouble() (float64, error) {
	if a.ReadAvail() < 8 {
		return 0, a.shortRead("double", 8)
	}
	bits := binary.NativeEndian.Uint64(a.buf[a.readOffset:])
	return math.Float64frombits(bits), nil
}

// ReadDouble is PeekDouble followed by advancing the read cursor.
func (a *Accumulator) ReadDouble() (float64, error) {
	value, err := a.PeekDouble()
	if err != nil {
		return 0, err
	}
	a.readOffset += 8
	return value, nil
}

// ReadString consumes size bytes and returns them as an owned string.
// BSER strings are opaque byte sequences interpreted as UTF-8; no
// validation is performed.
func (a *Accumulator) ReadString(size int) (string, error) {
	if a.ReadAvail() < size {
		return "", a.shortRead("string", size)
	}
	value := string(a.buf[a.readOffset : a.readOffset+size])
	a.readOffset += size
	return value, nil
}

// ReadAdvance moves the read cursor by delta. Negative deltas rewind
// (the decoder backtracks after a speculative peek that could not
// complete) but never below zero; positive deltas require that many
// unread bytes.
func (a *Accumulator) ReadAdvance(delta int) error {
	if delta > 0 && a.ReadAvail() < delta {
		return a.shortRead("advance", delta)
	}
	if delta < 0 && a.readOffset+delta < 0 {
		return fmt.Errorf("bser: cannot rewind %d bytes past buffer start (read offset %d)", -delta, a.readOffset)
	}
	a.readOffset += delta
	return nil
}

// Contents returns the unread bytes. The slice aliases the backing
// buffer and is only valid until the next accumulator call.
func (a *Accumulator) Contents() []byte {
	return a.buf[a.readOffset:a.writeOffset]
}
