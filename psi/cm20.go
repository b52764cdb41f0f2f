//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//
// Lightweight OPRF based PSI of Chase and Miao.
//  - https://eprint.iacr.org/2020/729.pdf

package psi

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/lukechampine/fastxor"
	"github.com/markkurossi/text/superscript"

	"github.com/markkurossi/psi/ot"
	"github.com/markkurossi/psi/p2p"
	"github.com/markkurossi/psi/record"
)

var (
	_ Engine = &CM20{}

	// ErrParameterMismatch is returned when the peers' security
	// parameters or declared set sizes differ.
	ErrParameterMismatch = errors.New("security parameter mismatch")
)

// CM20 implements the semi-honest CM20 PSI protocol. The receiver
// acts as the base OT sender and the sender as the base OT receiver.
type CM20 struct {
}

// NewCM20 creates a new CM20 engine.
func NewCM20() *CM20 {
	return &CM20{}
}

// Send runs the sender side of the protocol.
func (cm *CM20) Send(conn *p2p.Conn, setup *Setup,
	set []record.Record) error {

	if err := checkSize("sender", set, setup.SenderSize); err != nil {
		return err
	}
	p := setup.Params
	if err := p.Validate(); err != nil {
		return err
	}
	if err := handshake(conn, setup, true); err != nil {
		return err
	}

	// Base OT receiver with random choice bits.
	w := int(p.Width)
	choices := make([]bool, w)
	buf := make([]byte, (w+7)/8)
	if _, err := io.ReadFull(setup.Rand, buf); err != nil {
		return err
	}
	for i := 0; i < w; i++ {
		choices[i] = ((buf[i/8] >> uint(i%8)) & 1) == 1
	}

	co := ot.NewCO(setup.Rand)
	if err := co.InitReceiver(conn); err != nil {
		return err
	}
	labels := make([]ot.Label, w)
	if err := co.Receive(choices, labels); err != nil {
		return err
	}
	setup.debugf("psi: sender: %d base OTs received", w)
	setup.phase("Base OT")

	// C_i = PRG(k_s_i) ^ s_i·Δ_i
	colBytes := columnBytes(p)
	C := make([][]byte, w)
	var key ot.LabelData
	for i := 0; i < w; i++ {
		delta, err := conn.ReceiveData()
		if err != nil {
			return err
		}
		if len(delta) != colBytes {
			return fmt.Errorf("column %d: invalid length %d, expected %d",
				i, len(delta), colBytes)
		}
		C[i] = make([]byte, colBytes)
		labels[i].GetData(&key)
		prgAESCTR(key[:], C[i])
		if choices[i] {
			fastxor.Bytes(C[i], C[i], delta)
		}
	}
	setup.debugf("psi: sender: matrix %dx2%s received",
		w, superscript.Itoa(int(p.LogHeight)))
	setup.phase("Matrix")

	loc, err := newLocator(setup.CommonSeed, p)
	if err != nil {
		return err
	}
	h := newHasher(p)
	locs := make([]uint32, w)

	order := make([]int, len(set))
	for i := range order {
		order[i] = i
	}
	setup.Rand.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	hashLen := int(p.HashLengthInBytes)
	bucket := int(p.Bucket2)
	batch := make([]byte, bucket*hashLen)
	for start := 0; start < len(order); start += bucket {
		end := min(start+bucket, len(order))
		data := batch[:(end-start)*hashLen]
		for j := start; j < end; j++ {
			loc.locations(set[order[j]], locs)
			h.sum(C, locs, data[(j-start)*hashLen:])
		}
		if err := conn.SendData(data); err != nil {
			return err
		}
	}
	if err := conn.Flush(); err != nil {
		return err
	}
	setup.debugf("psi: sender: %d hashes sent", len(set))
	setup.phase("Hashes")

	return nil
}

// Receive runs the receiver side of the protocol and returns the
// indices of the intersection records in set. Each index is returned
// at most once, in the order the matching sender hashes arrived.
func (cm *CM20) Receive(conn *p2p.Conn, setup *Setup,
	set []record.Record) ([]uint64, error) {

	if err := checkSize("receiver", set, setup.ReceiverSize); err != nil {
		return nil, err
	}
	p := setup.Params
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := handshake(conn, setup, false); err != nil {
		return nil, err
	}

	// Base OT sender with random seed pairs.
	w := int(p.Width)
	wires := make([]ot.Wire, w)
	for i := 0; i < w; i++ {
		l0, err := ot.NewLabel(setup.Rand)
		if err != nil {
			return nil, err
		}
		l1, err := ot.NewLabel(setup.Rand)
		if err != nil {
			return nil, err
		}
		wires[i] = ot.Wire{L0: l0, L1: l1}
	}
	co := ot.NewCO(setup.Rand)
	if err := co.InitSender(conn); err != nil {
		return nil, err
	}
	if err := co.Send(wires); err != nil {
		return nil, err
	}
	setup.debugf("psi: receiver: %d base OTs sent", w)
	setup.phase("Base OT")

	loc, err := newLocator(setup.CommonSeed, p)
	if err != nil {
		return nil, err
	}
	locs := make([]uint32, w)

	// D is all ones except at the locations of our records.
	colBytes := columnBytes(p)
	D := make([][]byte, w)
	for i := 0; i < w; i++ {
		D[i] = bytes.Repeat([]byte{0xff}, colBytes)
	}
	for _, r := range set {
		loc.locations(r, locs)
		for i, v := range locs {
			D[i][v/8] &^= 1 << (v % 8)
		}
	}

	// A_i = PRG(k0_i), Δ_i = A_i ^ PRG(k1_i) ^ D_i
	A := make([][]byte, w)
	tmp := make([]byte, colBytes)
	var key ot.LabelData
	for i := 0; i < w; i++ {
		A[i] = make([]byte, colBytes)
		wires[i].L0.GetData(&key)
		prgAESCTR(key[:], A[i])
		wires[i].L1.GetData(&key)
		prgAESCTR(key[:], tmp)

		delta := D[i]
		fastxor.Bytes(delta, delta, A[i])
		fastxor.Bytes(delta, delta, tmp)
		if err := conn.SendData(delta); err != nil {
			return nil, err
		}
		D[i] = nil
	}
	if err := conn.Flush(); err != nil {
		return nil, err
	}
	setup.debugf("psi: receiver: matrix %dx2%s sent",
		w, superscript.Itoa(int(p.LogHeight)))
	setup.phase("Matrix")

	hashLen := int(p.HashLengthInBytes)
	h := newHasher(p)
	out := make([]byte, hashLen)
	hashes := make(map[string][]uint64, len(set))

	bucket := int(p.Bucket1)
	for start := 0; start < len(set); start += bucket {
		end := min(start+bucket, len(set))
		for j := start; j < end; j++ {
			loc.locations(set[j], locs)
			h.sum(A, locs, out)
			k := string(out)
			hashes[k] = append(hashes[k], uint64(j))
		}
	}
	setup.debugf("psi: receiver: %d hashes computed", len(set))
	setup.phase("Hashes")

	var result []uint64
	bucket = int(p.Bucket2)
	for remaining := int(setup.SenderSize); remaining > 0; {
		n := min(bucket, remaining)
		data, err := conn.ReceiveData()
		if err != nil {
			return nil, err
		}
		if len(data) != n*hashLen {
			return nil, fmt.Errorf("invalid hash batch length %d, expected %d",
				len(data), n*hashLen)
		}
		for i := 0; i < n; i++ {
			k := string(data[i*hashLen : (i+1)*hashLen])
			indices, ok := hashes[k]
			if ok {
				result = append(result, indices...)
				delete(hashes, k)
			}
		}
		remaining -= n
	}
	setup.debugf("psi: receiver: %d matches", len(result))
	setup.phase("Match")

	return result, nil
}

func checkSize(role string, set []record.Record, declared uint64) error {
	if uint64(len(set)) != declared {
		return fmt.Errorf("%s set size %d does not match declared size %d",
			role, len(set), declared)
	}
	return nil
}

// handshake exchanges the parameter fingerprints. The sender speaks
// first. Both sides send their fingerprint before comparing so that
// both detect a mismatch.
func handshake(conn *p2p.Conn, setup *Setup, sender bool) error {
	fp := setup.Params.Fingerprint(setup.SenderSize, setup.ReceiverSize)

	var peer []byte
	var err error
	if sender {
		if err = conn.SendData(fp); err != nil {
			return err
		}
		if err = conn.Flush(); err != nil {
			return err
		}
		peer, err = conn.ReceiveData()
		if err != nil {
			return err
		}
	} else {
		peer, err = conn.ReceiveData()
		if err != nil {
			return err
		}
		if err = conn.SendData(fp); err != nil {
			return err
		}
		if err = conn.Flush(); err != nil {
			return err
		}
	}
	if !bytes.Equal(fp, peer) {
		return ErrParameterMismatch
	}
	return nil
}
