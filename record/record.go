//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package record implements the 128-bit identifier records and their
// fixed-width hex text encoding.
package record

import (
	"encoding/binary"
	"fmt"
)

var (
	bo = binary.BigEndian
)

// Size defines the record size in bytes.
const Size = 16

// Record implements a 128 bit identifier. The Hi word holds the most
// significant 64 bits.
type Record struct {
	Hi uint64
	Lo uint64
}

// Data contains record data as byte array.
type Data [Size]byte

func (r Record) String() string {
	return fmt.Sprintf("%016x%016x", r.Hi, r.Lo)
}

// Equal tests if the records are equal.
func (r Record) Equal(o Record) bool {
	return r.Hi == o.Hi && r.Lo == o.Lo
}

// GetData gets the record as record data.
func (r Record) GetData(buf *Data) {
	bo.PutUint64(buf[0:8], r.Hi)
	bo.PutUint64(buf[8:16], r.Lo)
}

// SetData sets the record from record data.
func (r *Record) SetData(data *Data) {
	r.Hi = bo.Uint64((*data)[0:8])
	r.Lo = bo.Uint64((*data)[8:16])
}

// Bytes returns the record data as bytes.
func (r Record) Bytes(buf *Data) []byte {
	r.GetData(buf)
	return buf[:]
}

// FromWords packs four 32-bit words into a record. The word w[0] is
// the most significant word and w[3] the least significant one.
func FromWords(w [4]uint32) Record {
	return Record{
		Hi: uint64(w[0])<<32 | uint64(w[1]),
		Lo: uint64(w[2])<<32 | uint64(w[3]),
	}
}

// Words returns the record as four 32-bit words in the FromWords
// order.
func (r Record) Words() [4]uint32 {
	return [4]uint32{
		uint32(r.Hi >> 32),
		uint32(r.Hi),
		uint32(r.Lo >> 32),
		uint32(r.Lo),
	}
}
