// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bser

import (
	"fmt"
)

// decoderState is the PDU framer's position.
type decoderState int

const (
	// needPDU: looking for the two header bytes plus the length integer.
	needPDU decoderState = iota
	// fillPDU: header parsed, accumulating pduLen payload bytes.
	fillPDU
)

// StreamDecoder is the incremental BSER decoder. Bytes arrive in
// arbitrary fragments via Append; Next returns each decoded value as
// soon as its entire PDU is available, and reports "not yet" without
// blocking or consuming partial frames.
//
// StreamDecoder is not safe for concurrent use; the command client
// confines it to the connection's read loop.
type StreamDecoder struct {
	acc    *Accumulator
	state  decoderState
	pduLen int
}

// NewStreamDecoder returns a decoder with no buffered bytes.
func NewStreamDecoder() *StreamDecoder {
	return &StreamDecoder{acc: NewAccumulator(0)}
}

// Append buffers data for decoding.
func (d *StreamDecoder) Append(data []byte) {
	d.acc.Append(data)
}

// Next returns the next complete decoded value. ok is false when the
// buffered bytes do not yet form a full PDU; call Append and retry.
// A non-nil error means the stream is corrupt and the decoder must be
// discarded: the framing cannot be recovered.
func (d *StreamDecoder) Next() (value any, ok bool, err error) {
	if d.state == needPDU {
		complete, err := d.parsePDUHeader()
		if err != nil {
			return nil, false, err
		}
		if !complete {
			return nil, false, nil
		}
		d.state = fillPDU
	}

	if d.acc.ReadAvail() < d.pduLen {
		return nil, false, nil
	}

	before := d.acc.ReadAvail()
	value, err = decodeValue(d.acc)
	if err != nil {
		return nil, false, err
	}
	if consumed := before - d.acc.ReadAvail(); consumed != d.pduLen {
		return nil, false, fmt.Errorf("bser: pdu declared %d payload bytes but the value consumed %d", d.pduLen, consumed)
	}
	d.state = needPDU
	d.pduLen = 0
	return value, true, nil
}

// parsePDUHeader attempts to consume the header bytes and the length
// integer. The length decode is relaxed: when the tag or its payload
// is not fully buffered yet, the header bytes are rewound and the
// framer waits for more input instead of failing.
func (d *StreamDecoder) parsePDUHeader() (complete bool, err error) {
	if d.acc.ReadAvail() < 2 {
		return false, nil
	}
	first, _ := d.acc.ReadInt(1)
	second, _ := d.acc.ReadInt(1)
	if byte(first) != 0x00 || byte(second) != 0x01 {
		return false, fmt.Errorf("bser: invalid pdu header bytes 0x%02x 0x%02x", byte(first), byte(second))
	}

	length, lengthComplete, err := decodeIntRelaxed(d.acc)
	if err != nil {
		return false, err
	}
	if !lengthComplete {
		// Restore the header bytes so the next attempt re-parses the
		// frame from the top.
		if err := d.acc.ReadAdvance(-2); err != nil {
			return false, err
		}
		return false, nil
	}
	if length < 0 {
		return false, fmt.Errorf("bser: negative pdu length %d", length)
	}
	d.pduLen = int(length)
	d.acc.Reserve(d.pduLen)
	return true, nil
}

// LoadFromBuffer decodes exactly one PDU from data. It fails when the
// buffer holds less than one full PDU, and also when any bytes remain
// after the value: a one-shot buffer with trailing data is a framing
// bug at the caller.
func LoadFromBuffer(data []byte) (any, error) {
	decoder := NewStreamDecoder()
	decoder.Append(data)
	value, ok, err := decoder.Next()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("bser: incomplete pdu: %d bytes buffered", len(data))
	}
	if remaining := decoder.acc.ReadAvail(); remaining > 0 {
		return nil, fmt.Errorf("bser: %d bytes of excess data after pdu", remaining)
	}
	return value, nil
}

// integerTagSize maps an integer tag to its payload width, or 0 when
// the tag is not an integer tag.
func integerTagSize(tag byte) int {
	switch tag {
	case tagInt8:
		return 1
	case tagInt16:
		return 2
	case tagInt32:
		return 4
	case tagInt64:
		return 8
	}
	return 0
}

// intDecodeError builds the diagnostic error for a malformed integer.
// It names the buffer geometry and the next 32 unread bytes so a
// corrupt stream can be diagnosed from the error alone.
func intDecodeError(acc *Accumulator, tag byte) error {
	next := acc.Contents()
	if len(next) > 32 {
		next = next[:32]
	}
	return fmt.Errorf("bser: invalid integer encoding: tag 0x%02x (buffer length %d, readable %d, read offset %d, next bytes [% x])",
		tag, len(acc.buf), acc.ReadAvail(), acc.readOffset, next)
}

// decodeIntStrict reads a full BSER integer (tag plus payload) and
// fails on anything else, including truncation.
func decodeIntStrict(acc *Accumulator) (int64, error) {
	tag, err := acc.PeekInt(1)
	if err != nil {
		return 0, err
	}
	size := integerTagSize(byte(tag))
	if size == 0 {
		return 0, intDecodeError(acc, byte(tag))
	}
	if acc.ReadAvail() < 1+size {
		return 0, acc.shortRead("int payload", 1+size)
	}
	acc.ReadAdvance(1)
	return acc.ReadInt(size)
}

// decodeIntRelaxed reads a BSER integer, reporting complete=false
// (consuming nothing) when the tag or its payload is not buffered yet.
// A present-but-invalid tag is still an error: waiting will not fix it.
func decodeIntRelaxed(acc *Accumulator) (value int64, complete bool, err error) {
	if acc.ReadAvail() < 1 {
		return 0, false, nil
	}
	tag, err := acc.PeekInt(1)
	if err != nil {
		return 0, false, err
	}
	size := integerTagSize(byte(tag))
	if size == 0 {
		return 0, false, intDecodeError(acc, byte(tag))
	}
	if acc.ReadAvail() < 1+size {
		return 0, false, nil
	}
	acc.ReadAdvance(1)
	value, err = acc.ReadInt(size)
	if err != nil {
		return 0, false, err
	}
	return value, true, nil
}

// decodeValue is the recursive value decoder. It assumes the caller
// has verified that the whole PDU is buffered, so any short read here
// means the stream is corrupt rather than merely fragmented.
func decodeValue(acc *Accumulator) (any, error) {
	tag, err := acc.PeekInt(1)
	if err != nil {
		return nil, err
	}

	switch byte(tag) {
	case tagInt8, tagInt16, tagInt32:
		value, err := decodeIntStrict(acc)
		if err != nil {
			return nil, err
		}
		return value, nil
	case tagInt64:
		value, err := decodeIntStrict(acc)
		if err != nil {
			return nil, err
		}
		return Int64(value), nil
	case tagReal:
		acc.ReadAdvance(1)
		value, err := acc.ReadDouble()
		if err != nil {
			return nil, err
		}
		return value, nil
	case tagTrue:
		acc.ReadAdvance(1)
		return true, nil
	case tagFalse:
		acc.ReadAdvance(1)
		return false, nil
	case tagNull:
		acc.ReadAdvance(1)
		return nil, nil
	case tagString:
		value, err := decodeString(acc)
		if err != nil {
			return nil, err
		}
		return value, nil
	case tagArray:
		value, err := decodeArray(acc)
		if err != nil {
			return nil, err
		}
		return value, nil
	case tagObject:
		value, err := decodeObject(acc)
		if err != nil {
			return nil, err
		}
		return value, nil
	case tagTemplate:
		value, err := decodeTemplate(acc)
		if err != nil {
			return nil, err
		}
		return value, nil
	}
	return nil, fmt.Errorf("bser: unknown tag byte 0x%02x", byte(tag))
}

// decodeString reads a STRING: tag, byte-length integer, raw bytes.
func decodeString(acc *Accumulator) (string, error) {
	acc.ReadAdvance(1)
	length, err := decodeIntStrict(acc)
	if err != nil {
		return "", err
	}
	if length < 0 {
		return "", fmt.Errorf("bser: negative string length %d", length)
	}
	return acc.ReadString(int(length))
}

// decodeArray reads an ARRAY: tag, count, then count values.
func decodeArray(acc *Accumulator) ([]any, error) {
	acc.ReadAdvance(1)
	count, err := decodeIntStrict(acc)
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("bser: negative array length %d", count)
	}
	values := make([]any, 0, count)
	for i := int64(0); i < count; i++ {
		element, err := decodeValue(acc)
		if err != nil {
			return nil, err
		}
		values = append(values, element)
	}
	return values, nil
}

// decodeObject reads an OBJECT: tag, member count, then count pairs of
// string key and value. Wire order is preserved.
func decodeObject(acc *Accumulator) (*Object, error) {
	acc.ReadAdvance(1)
	count, err := decodeIntStrict(acc)
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("bser: negative object member count %d", count)
	}
	object := NewObject()
	for i := int64(0); i < count; i++ {
		keyTag, err := acc.PeekInt(1)
		if err != nil {
			return nil, err
		}
		if byte(keyTag) != tagString {
			return nil, fmt.Errorf("bser: object key must be a string, got tag 0x%02x", byte(keyTag))
		}
		key, err := decodeString(acc)
		if err != nil {
			return nil, err
		}
		value, err := decodeValue(acc)
		if err != nil {
			return nil, err
		}
		object.members = append(object.members, Member{Key: key, Value: value})
	}
	return object, nil
}

// decodeTemplate reads a TEMPLATE: a shared key array, a row count,
// then rows of one slot per key. A SKIP slot means the key is absent
// from that row. The result is a plain array of objects; templates are
// a decode-only compaction, never produced by the encoder.
func decodeTemplate(acc *Accumulator) ([]any, error) {
	acc.ReadAdvance(1)

	keysValue, err := decodeValue(acc)
	if err != nil {
		return nil, err
	}
	rawKeys, ok := keysValue.([]any)
	if !ok {
		return nil, fmt.Errorf("bser: template key list must be an array, got %T", keysValue)
	}
	keys := make([]string, len(rawKeys))
	for i, rawKey := range rawKeys {
		key, ok := rawKey.(string)
		if !ok {
			return nil, fmt.Errorf("bser: template key must be a string, got %T", rawKey)
		}
		keys[i] = key
	}

	rowCount, err := decodeIntStrict(acc)
	if err != nil {
		return nil, err
	}
	if rowCount < 0 {
		return nil, fmt.Errorf("bser: negative template row count %d", rowCount)
	}

	rows := make([]any, 0, rowCount)
	for i := int64(0); i < rowCount; i++ {
		row := NewObject()
		for _, key := range keys {
			slotTag, err := acc.PeekInt(1)
			if err != nil {
				return nil, err
			}
			if byte(slotTag) == tagSkip {
				acc.ReadAdvance(1)
				continue
			}
			value, err := decodeValue(acc)
			if err != nil {
				return nil, err
			}
			row.members = append(row.members, Member{Key: key, Value: value})
		}
		rows = append(rows, row)
	}
	return rows, nil
}
