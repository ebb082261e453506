// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bser

import (
	"fmt"
	"math"
	"reflect"
	"sort"
)

// BSER tag bytes. One per wire type; SKIP only ever appears inside a
// template's row slots.
const (
	tagArray    byte = 0x00
	tagObject   byte = 0x01
	tagString   byte = 0x02
	tagInt8     byte = 0x03
	tagInt16    byte = 0x04
	tagInt32    byte = 0x05
	tagInt64    byte = 0x06
	tagReal     byte = 0x07
	tagTrue     byte = 0x08
	tagFalse    byte = 0x09
	tagNull     byte = 0x0a
	tagTemplate byte = 0x0b
	tagSkip     byte = 0x0c
)

// pduHeaderLength is the fixed prefix of every PDU: the two header
// bytes 0x00 0x01, the INT32 tag, and the 4-byte length. The length
// field counts only the payload, so it is back-patched to
// writeOffset - pduHeaderLength once the payload is serialized.
const pduHeaderLength = 7

// Dump serializes value as one complete PDU: header bytes, payload
// length, payload. The length is always emitted as INT32 so the field
// can be written as a placeholder and back-patched after the payload.
func Dump(value any) ([]byte, error) {
	acc := NewAccumulator(0)
	acc.WriteByte(0x00)
	acc.WriteByte(0x01)
	acc.WriteByte(tagInt32)
	acc.WriteInt(0, 4)
	if err := dumpValue(acc, value); err != nil {
		return nil, err
	}
	patchPayloadLength(acc)
	out := make([]byte, acc.ReadAvail())
	copy(out, acc.Contents())
	return out, nil
}

// patchPayloadLength back-patches the INT32 length field of the PDU at
// the start of acc with the payload size written so far.
func patchPayloadLength(acc *Accumulator) {
	saved := acc.writeOffset
	acc.writeOffset = 3
	acc.WriteInt(int64(saved-pduHeaderLength), 4)
	acc.writeOffset = saved
}

// dumpValue recursively serializes value into acc, dispatching on its
// runtime type.
func dumpValue(acc *Accumulator, value any) error {
	switch v := value.(type) {
	case nil:
		acc.WriteByte(tagNull)
		return nil
	case bool:
		if v {
			acc.WriteByte(tagTrue)
		} else {
			acc.WriteByte(tagFalse)
		}
		return nil
	case Int64:
		// The caller asked for 64 bits; never narrow.
		acc.WriteByte(tagInt64)
		acc.WriteInt(int64(v), 8)
		return nil
	case int:
		dumpInt(acc, int64(v))
		return nil
	case int8:
		dumpInt(acc, int64(v))
		return nil
	case int16:
		dumpInt(acc, int64(v))
		return nil
	case int32:
		dumpInt(acc, int64(v))
		return nil
	case int64:
		dumpInt(acc, v)
		return nil
	case uint:
		return dumpUint(acc, uint64(v))
	case uint8:
		dumpInt(acc, int64(v))
		return nil
	case uint16:
		dumpInt(acc, int64(v))
		return nil
	case uint32:
		dumpInt(acc, int64(v))
		return nil
	case uint64:
		return dumpUint(acc, v)
	case float32:
		dumpFloat(acc, float64(v))
		return nil
	case float64:
		dumpFloat(acc, v)
		return nil
	case string:
		dumpStringHeader(acc, len(v))
		acc.AppendString(v)
		return nil
	case []byte:
		dumpStringHeader(acc, len(v))
		acc.Append(v)
		return nil
	case []any:
		acc.WriteByte(tagArray)
		dumpInt(acc, int64(len(v)))
		for _, element := range v {
			if err := dumpValue(acc, element); err != nil {
				return err
			}
		}
		return nil
	case *Object:
		return dumpObject(acc, v.members)
	case Object:
		return dumpObject(acc, v.members)
	case map[string]any:
		return dumpMap(acc, v)
	case undefinedValue:
		// Undefined is only meaningful as an object member, where the
		// two-pass object encoder erases it before reaching here.
		return fmt.Errorf("bser: cannot serialize a bare undefined value")
	}
	return dumpReflected(acc, value)
}

// dumpInt writes value with the smallest tag whose range contains its
// absolute value: |v| <= 127 is INT8, <= 32767 INT16, <= 2147483647
// INT32, else INT64. The rule is deliberately symmetric across zero
// (so -128 takes INT16, not INT8) for byte parity with the reference
// encoder; do not tighten it.
func dumpInt(acc *Accumulator, value int64) {
	abs := value
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 0 && abs <= math.MaxInt8:
		// abs stays negative when value is math.MinInt64; that case
		// falls through to INT64 below.
		acc.WriteByte(tagInt8)
		acc.WriteInt(value, 1)
	case abs > 0 && abs <= math.MaxInt16:
		acc.WriteByte(tagInt16)
		acc.WriteInt(value, 2)
	case abs > 0 && abs <= math.MaxInt32:
		acc.WriteByte(tagInt32)
		acc.WriteInt(value, 4)
	default:
		acc.WriteByte(tagInt64)
		acc.WriteInt(value, 8)
	}
}

// dumpUint handles the unsigned widths that can exceed int64.
func dumpUint(acc *Accumulator, value uint64) error {
	if value > math.MaxInt64 {
		return fmt.Errorf("bser: cannot serialize %d: exceeds the signed 64-bit wire range", value)
	}
	dumpInt(acc, int64(value))
	return nil
}

// dumpFloat writes integral values through the integer path so that
// 1.0 and 1 produce identical bytes; everything else is a REAL.
func dumpFloat(acc *Accumulator, value float64) {
	if value == math.Trunc(value) && !math.IsInf(value, 0) &&
		value >= math.MinInt64 && value < math.MaxInt64 {
		dumpInt(acc, int64(value))
		return
	}
	acc.WriteByte(tagReal)
	acc.WriteDouble(value)
}

// dumpStringHeader writes the STRING tag and byte-length prefix.
func dumpStringHeader(acc *Accumulator, length int) {
	acc.WriteByte(tagString)
	dumpInt(acc, int64(length))
}

// dumpObject serializes members as an OBJECT. Two passes over the
// member list: the first counts members whose value is not Undefined,
// the second emits exactly those pairs, preserving member order.
func dumpObject(acc *Accumulator, members []Member) error {
	present := 0
	for _, member := range members {
		if member.Value != Undefined {
			present++
		}
	}
	acc.WriteByte(tagObject)
	dumpInt(acc, int64(present))
	for _, member := range members {
		if member.Value == Undefined {
			continue
		}
		dumpStringHeader(acc, len(member.Key))
		acc.AppendString(member.Key)
		if err := dumpValue(acc, member.Value); err != nil {
			return fmt.Errorf("%w (while serializing object property with name '%s')", err, member.Key)
		}
	}
	return nil
}

// dumpMap serializes a plain Go map as an OBJECT with sorted keys.
// Go map iteration order is randomized, so sorting is what makes the
// same logical value produce identical bytes on every encode.
func dumpMap(acc *Accumulator, value map[string]any) error {
	members := make([]Member, 0, len(value))
	for key, element := range value {
		members = append(members, Member{Key: key, Value: element})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Key < members[j].Key })
	return dumpObject(acc, members)
}

// dumpReflected covers slice, array, and string-keyed map kinds whose
// static type is not one of the fast-path cases above (e.g. []string,
// map[string]int). Anything else is unserializable.
func dumpReflected(acc *Accumulator, value any) error {
	reflected := reflect.ValueOf(value)
	switch reflected.Kind() {
	case reflect.Slice, reflect.Array:
		acc.WriteByte(tagArray)
		dumpInt(acc, int64(reflected.Len()))
		for i := 0; i < reflected.Len(); i++ {
			if err := dumpValue(acc, reflected.Index(i).Interface()); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		if reflected.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("bser: cannot serialize type %T: map keys must be strings", value)
		}
		members := make([]Member, 0, reflected.Len())
		iter := reflected.MapRange()
		for iter.Next() {
			members = append(members, Member{Key: iter.Key().String(), Value: iter.Value().Interface()})
		}
		sort.Slice(members, func(i, j int) bool { return members[i].Key < members[j].Key })
		return dumpObject(acc, members)
	}
	return fmt.Errorf("bser: cannot serialize type %T", value)
}
