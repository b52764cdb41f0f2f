//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package params derives the PSI protocol security parameters from
// the set sizes and the security policy. Both parties must derive the
// parameters from the same inputs since the parameters are never
// negotiated over the network.
package params

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/markkurossi/text/superscript"
)

var (
	bo = binary.BigEndian
)

const (
	// DefaultStatSecParam defines the default statistical security
	// parameter in bits.
	DefaultStatSecParam = 40

	// MinLogHeight defines the minimum log height for the Scaled
	// deriver.
	MinLogHeight = 8

	// MaxHashLength defines the maximum output hash length in bytes.
	MaxHashLength = 32

	// MaxFirstHashLength defines the maximum location hash length in
	// bytes.
	MaxFirstHashLength = 64
)

// SecurityPolicy defines the requested security level.
type SecurityPolicy struct {
	Malicious    bool
	StatSecParam uint
}

func (p SecurityPolicy) String() string {
	model := "semi-honest"
	if p.Malicious {
		model = "malicious"
	}
	return fmt.Sprintf("%s/%d", model, p.StatSecParam)
}

// SecurityParameters define the protocol parameters. They are fixed
// for the duration of one session and must be identical on both
// parties.
type SecurityParameters struct {
	// Height is the number of rows in the OPRF matrix.
	Height uint64
	// LogHeight is log2(Height).
	LogHeight uint64
	// Width is the number of matrix columns; one base OT per column.
	Width uint64
	// HashLengthInBytes is the length of the sender's OPRF outputs.
	HashLengthInBytes uint64
	// FirstHashLengthInBytes is the length of the location hash H1.
	FirstHashLengthInBytes uint64
	// Bucket1 is the receiver's record batch size.
	Bucket1 uint64
	// Bucket2 is the sender's record batch size.
	Bucket2 uint64
}

func (p SecurityParameters) String() string {
	return fmt.Sprintf("h=2%s, w=%d, l1=%d, l2=%d, b1=%d, b2=%d",
		superscript.Itoa(int(p.LogHeight)), p.Width,
		p.FirstHashLengthInBytes, p.HashLengthInBytes, p.Bucket1, p.Bucket2)
}

// Validate checks the parameter invariants.
func (p SecurityParameters) Validate() error {
	if p.LogHeight == 0 || p.LogHeight > 32 {
		return fmt.Errorf("invalid log height %d", p.LogHeight)
	}
	if p.Height != 1<<p.LogHeight {
		return fmt.Errorf("height %d is not 2^%d", p.Height, p.LogHeight)
	}
	if p.Width == 0 {
		return fmt.Errorf("invalid width %d", p.Width)
	}
	if p.HashLengthInBytes == 0 || p.HashLengthInBytes > MaxHashLength {
		return fmt.Errorf("invalid hash length %d", p.HashLengthInBytes)
	}
	if p.FirstHashLengthInBytes == 0 ||
		p.FirstHashLengthInBytes > MaxFirstHashLength {
		return fmt.Errorf("invalid first hash length %d",
			p.FirstHashLengthInBytes)
	}
	if p.Bucket1 == 0 || p.Bucket2 == 0 {
		return fmt.Errorf("invalid bucket sizes %d/%d", p.Bucket1, p.Bucket2)
	}
	return nil
}

// Fingerprint returns a digest over the parameters and the set
// sizes. Parties compare fingerprints to detect mismatched
// parameters.
func (p SecurityParameters) Fingerprint(senderSize, receiverSize uint64) []byte {
	var buf [9 * 8]byte

	for idx, v := range []uint64{
		senderSize, receiverSize,
		p.Height, p.LogHeight, p.Width,
		p.HashLengthInBytes, p.FirstHashLengthInBytes,
		p.Bucket1, p.Bucket2,
	} {
		bo.PutUint64(buf[idx*8:], v)
	}
	sum := sha256.Sum256(buf[:])
	return sum[:]
}

// Deriver derives the security parameters from the set sizes and the
// security policy. Derivers must be pure functions.
type Deriver func(senderSize, receiverSize uint64,
	policy SecurityPolicy) SecurityParameters

// Fixed returns the fixed interoperable parameter set. The result
// does not depend on the set sizes or the policy.
func Fixed(senderSize, receiverSize uint64,
	policy SecurityPolicy) SecurityParameters {

	var p SecurityParameters

	p.LogHeight = 20
	p.Height = 1 << p.LogHeight
	p.Width = 609
	p.HashLengthInBytes = 10
	p.FirstHashLengthInBytes = 32
	p.Bucket1 = 1 << 8
	p.Bucket2 = 1 << 8

	return p
}

// Scaled sizes the matrix height from the receiver set size and the
// output hash length from the statistical security parameter and the
// set sizes: l2 = ceil((σ + log2(n_send) + log2(n_recv)) / 8). The
// remaining parameters are taken from Fixed. For 2^20 element sets
// and σ=40 the result equals Fixed.
func Scaled(senderSize, receiverSize uint64,
	policy SecurityPolicy) SecurityParameters {

	p := Fixed(senderSize, receiverSize, policy)

	p.LogHeight = ceilLog2(receiverSize)
	if p.LogHeight < MinLogHeight {
		p.LogHeight = MinLogHeight
	}
	p.Height = 1 << p.LogHeight

	statSec := uint64(policy.StatSecParam)
	if statSec == 0 {
		statSec = DefaultStatSecParam
	}
	l2 := (statSec + ceilLog2(senderSize) + ceilLog2(receiverSize) + 7) / 8
	if l2 > MaxHashLength {
		l2 = MaxHashLength
	}
	p.HashLengthInBytes = l2

	return p
}

func ceilLog2(n uint64) uint64 {
	if n <= 1 {
		return 0
	}
	return uint64(bits.Len64(n - 1))
}
