// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bser

import (
	"bytes"
	"testing"
)

func TestReserveShuntsBeforeGrowing(t *testing.T) {
	acc := NewAccumulator(8)
	acc.Append([]byte{1, 2, 3, 4, 5})
	if _, err := acc.ReadString(3); err != nil {
		t.Fatalf("ReadString: %v", err)
	}

	// Only 3 writable bytes remain, so Reserve(5) must shunt the two
	// unread bytes down to offset 0. Capacity 8 then suffices without
	// reallocating.
	acc.Reserve(5)

	if acc.readOffset != 0 {
		t.Errorf("readOffset = %d, want 0 after shunt", acc.readOffset)
	}
	if got := acc.ReadAvail(); got != 2 {
		t.Errorf("ReadAvail() = %d, want 2", got)
	}
	if got := acc.WriteAvail(); got != 6 {
		t.Errorf("WriteAvail() = %d, want 6", got)
	}
	if !bytes.Equal(acc.Contents(), []byte{4, 5}) {
		t.Errorf("Contents() = %v, want [4 5]", acc.Contents())
	}
}

func TestReserveGrowsToNextPowerOfTwo(t *testing.T) {
	acc := NewAccumulator(4)
	acc.Append([]byte{1, 2, 3, 4})
	acc.Reserve(5)
	if len(acc.buf) != 16 {
		t.Errorf("backing size = %d, want 16", len(acc.buf))
	}
	if !bytes.Equal(acc.Contents(), []byte{1, 2, 3, 4}) {
		t.Errorf("Contents() = %v, want [1 2 3 4] after growth", acc.Contents())
	}
}

func TestTypedRoundTrip(t *testing.T) {
	acc := NewAccumulator(0)
	acc.WriteInt(-7, 1)
	acc.WriteInt(-3000, 2)
	acc.WriteInt(123456789, 4)
	acc.WriteInt(-1234567890123456789, 8)
	acc.WriteDouble(1.5)

	for _, want := range []struct {
		size  int
		value int64
	}{{1, -7}, {2, -3000}, {4, 123456789}, {8, -1234567890123456789}} {
		got, err := acc.ReadInt(want.size)
		if err != nil {
			t.Fatalf("ReadInt(%d): %v", want.size, err)
		}
		if got != want.value {
			t.Errorf("ReadInt(%d) = %d, want %d", want.size, got, want.value)
		}
	}

	got, err := acc.ReadDouble()
	if err != nil {
		t.Fatalf("ReadDouble: %v", err)
	}
	if got != 1.5 {
		t.Errorf("ReadDouble() = %v, want 1.5", got)
	}
	if acc.ReadAvail() != 0 {
		t.Errorf("ReadAvail() = %d, want 0", acc.ReadAvail())
	}
}

func TestPeekDoesNotAdvance(t *testing.T) {
	acc := NewAccumulator(0)
	acc.WriteInt(42, 1)

	for i := 0; i < 3; i++ {
		got, err := acc.PeekInt(1)
		if err != nil {
			t.Fatalf("PeekInt: %v", err)
		}
		if got != 42 {
			t.Errorf("PeekInt() = %d, want 42", got)
		}
	}
	if acc.ReadAvail() != 1 {
		t.Errorf("ReadAvail() = %d, want 1 after peeks", acc.ReadAvail())
	}
}

func TestShortReadErrors(t *testing.T) {
	acc := NewAccumulator(0)
	acc.WriteInt(1, 1)

	if _, err := acc.PeekInt(4); err == nil {
		t.Error("PeekInt(4) on 1 byte should fail")
	}
	if _, err := acc.PeekDouble(); err == nil {
		t.Error("PeekDouble on 1 byte should fail")
	}
	if _, err := acc.ReadString(2); err == nil {
		t.Error("ReadString(2) on 1 byte should fail")
	}
}

func TestReadAdvanceBacktrack(t *testing.T) {
	acc := NewAccumulator(0)
	acc.AppendString("abcd")

	if _, err := acc.ReadString(2); err != nil {
		t.Fatal(err)
	}
	if err := acc.ReadAdvance(-2); err != nil {
		t.Fatalf("ReadAdvance(-2): %v", err)
	}
	got, err := acc.ReadString(4)
	if err != nil {
		t.Fatal(err)
	}
	if got != "abcd" {
		t.Errorf("after rewind got %q, want %q", got, "abcd")
	}

	if err := acc.ReadAdvance(-5); err == nil {
		t.Error("rewinding past the buffer start should fail")
	}
	if err := acc.ReadAdvance(1); err == nil {
		t.Error("advancing past the write cursor should fail")
	}
}
