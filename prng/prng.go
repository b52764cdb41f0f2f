//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package prng implements the seeded deterministic random number
// generator and the 128-bit seed values of the PSI parties.
package prng

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/chacha20"

	"github.com/markkurossi/psi/record"
)

var (
	bo           = binary.BigEndian
	_  io.Reader = &PRNG{}
)

// Seed implements a 128-bit seed value.
type Seed record.Record

// NewSeed packs the seed words into a seed. Missing words are set to
// zero and extra words are ignored. The first word is the most
// significant one. Zero words reduce the seed entropy; see IsWeak.
func NewSeed(words []int32) Seed {
	var w [4]uint32
	for i := 0; i < len(w) && i < len(words); i++ {
		w[i] = uint32(words[i])
	}
	return Seed(record.FromWords(w))
}

// IsWeak tests if any of the seed words is zero.
func (s Seed) IsWeak() bool {
	for _, w := range record.Record(s).Words() {
		if w == 0 {
			return true
		}
	}
	return false
}

// Data returns the seed as bytes.
func (s Seed) Data() record.Data {
	var d record.Data
	record.Record(s).GetData(&d)
	return d
}

func (s Seed) String() string {
	return record.Record(s).String()
}

// PRNG implements a deterministic pseudo-random generator. The
// generator output is the ChaCha20 keystream keyed by the SHA-256 of
// the seed.
type PRNG struct {
	stream *chacha20.Cipher
	buf    [8]byte
}

// New creates a new generator from the seed. Generators created from
// equal seeds produce equal output.
func New(seed Seed) *PRNG {
	data := seed.Data()
	key := sha256.Sum256(data[:])

	var nonce [chacha20.NonceSize]byte
	stream, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		panic(err)
	}
	return &PRNG{
		stream: stream,
	}
}

// Read implements io.Reader.
func (prng *PRNG) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	prng.stream.XORKeyStream(p, p)
	return len(p), nil
}

// Uint64 returns a random uint64 value.
func (prng *PRNG) Uint64() uint64 {
	prng.Read(prng.buf[:])
	return bo.Uint64(prng.buf[:])
}

// Intn returns a uniformly distributed random value in [0,n). The
// function panics if n <= 0.
func (prng *PRNG) Intn(n int) int {
	if n <= 0 {
		panic("prng: invalid argument to Intn")
	}
	max := uint64(n)
	limit := ^uint64(0) - (^uint64(0) % max)
	for {
		v := prng.Uint64()
		if v < limit {
			return int(v % max)
		}
	}
}

// Shuffle pseudo-randomizes the order of n elements with the
// Fisher-Yates shuffle.
func (prng *PRNG) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		swap(i, prng.Intn(i+1))
	}
}
