//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package psi

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"github.com/markkurossi/psi/params"
	"github.com/markkurossi/psi/prng"
	"github.com/markkurossi/psi/record"
)

// locator maps records to their matrix locations. The locations of a
// record are read from the AES-CTR keystream keyed by the common seed
// with the folded first hash of the record as the IV.
type locator struct {
	logHeight uint
	h1Len     int
	block     cipher.Block
	h1        hash.Hash
	digest    []byte
	stream    []byte
}

func newLocator(seed prng.Seed, p params.SecurityParameters) (
	*locator, error) {

	key := seed.Data()
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	var h1 hash.Hash
	if p.FirstHashLengthInBytes > sha256.Size {
		h1 = sha512.New()
	} else {
		h1 = sha256.New()
	}
	return &locator{
		logHeight: uint(p.LogHeight),
		h1Len:     int(p.FirstHashLengthInBytes),
		block:     block,
		h1:        h1,
		digest:    make([]byte, 0, h1.Size()),
		stream:    make([]byte, (p.Width*p.LogHeight+7)/8),
	}, nil
}

// locations computes the record's locations into out. Each location
// is in the range [0, 1<<logHeight).
func (l *locator) locations(r record.Record, out []uint32) {
	var data record.Data

	l.h1.Reset()
	l.h1.Write(r.Bytes(&data))
	digest := l.h1.Sum(l.digest[:0])[:l.h1Len]

	var iv [aes.BlockSize]byte
	for i, b := range digest {
		iv[i%len(iv)] ^= b
	}
	for i := range l.stream {
		l.stream[i] = 0
	}
	cipher.NewCTR(l.block, iv[:]).XORKeyStream(l.stream, l.stream)

	// Locations are logHeight bits each, least significant bit first.
	mask := uint64(1)<<l.logHeight - 1
	var acc uint64
	var bits uint
	var pos int
	for i := range out {
		for bits < l.logHeight {
			acc |= uint64(l.stream[pos]) << bits
			pos++
			bits += 8
		}
		out[i] = uint32(acc & mask)
		acc >>= l.logHeight
		bits -= l.logHeight
	}
}

// hasher computes the second hash over the matrix bits selected by
// the record locations.
type hasher struct {
	h      hash.Hash
	bits   []byte
	digest []byte
	length int
}

func newHasher(p params.SecurityParameters) *hasher {
	return &hasher{
		h:      sha256.New(),
		bits:   make([]byte, (p.Width+7)/8),
		digest: make([]byte, 0, sha256.Size),
		length: int(p.HashLengthInBytes),
	}
}

// sum hashes the bits columns[i][locs[i]] and stores the truncated
// hash to out.
func (h *hasher) sum(columns [][]byte, locs []uint32, out []byte) {
	for i := range h.bits {
		h.bits[i] = 0
	}
	for i, loc := range locs {
		if (columns[i][loc/8]>>(loc%8))&1 == 1 {
			h.bits[i/8] |= 1 << (i % 8)
		}
	}
	h.h.Reset()
	h.h.Write(h.bits)
	copy(out[:h.length], h.h.Sum(h.digest[:0]))
}

func columnBytes(p params.SecurityParameters) int {
	return int((p.Height + 7) / 8)
}
