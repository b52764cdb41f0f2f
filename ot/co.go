//
// co.go
//
// Copyright (c) 2019-2026 Markku Rossi
//
// All rights reserved.
//
// Chou Orlandi OT - The Simplest Protocol for Oblivious Transfer.
//  - https://eprint.iacr.org/2015/267.pdf

/*

This implementation is derived from the EMP Toolkit's co.h
(https://github.com/emp-toolkit/emp-ot/blob/master/emp-ot/co.h)
with original license as follows:

MIT License

Copyright (c) 2018 Xiao Wang (wangxiao1254@gmail.com)

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.

Enquiries about further applications and development opportunities are welcome.

*/

package ot

import (
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash"
	"io"
	"math/big"

	"github.com/lukechampine/fastxor"
)

var (
	bo    = binary.BigEndian
	_  OT = &CO{}
)

// CO implements CO OT as the OT interface.
type CO struct {
	curve  elliptic.Curve
	rand   io.Reader
	hash   hash.Hash
	digest []byte
	io     IO
}

// NewCO creates a new CO OT implementing the OT interface. The r is
// the entropy source for the OT secrets. If r is nil, the function
// uses crypto/rand.
func NewCO(r io.Reader) *CO {
	if r == nil {
		r = rand.Reader
	}
	return &CO{
		curve:  elliptic.P256(),
		rand:   r,
		hash:   sha256.New(),
		digest: make([]byte, 0, sha256.Size),
	}
}

// InitSender initializes the OT sender.
func (co *CO) InitSender(io IO) error {
	co.io = io
	if err := SendString(io, co.curve.Params().Name); err != nil {
		return err
	}
	return io.Flush()
}

// InitReceiver initializes the OT receiver.
func (co *CO) InitReceiver(io IO) error {
	co.io = io

	name, err := ReceiveString(io)
	if err != nil {
		return err
	}
	if name != co.curve.Params().Name {
		return fmt.Errorf("invalid curve %s, expected %s",
			name, co.curve.Params().Name)
	}
	return nil
}

// Send sends the wire labels with OT.
func (co *CO) Send(wires []Wire) error {
	curveParams := co.curve.Params()

	// a <- Zp
	a, err := rand.Int(co.rand, curveParams.N)
	if err != nil {
		return err
	}
	aBytes := a.Bytes()

	// A = G^a
	Ax, Ay := co.curve.ScalarBaseMult(aBytes)

	if err := co.io.SendData(Ax.Bytes()); err != nil {
		return err
	}
	if err := co.io.SendData(Ay.Bytes()); err != nil {
		return err
	}
	if err := co.io.Flush(); err != nil {
		return err
	}

	// Aa = A^a
	Aax, Aay := co.curve.ScalarMult(Ax, Ay, aBytes)

	// a:    {x,y}
	// a^-1: {x,-y}
	AaInvx := new(big.Int).Set(Aax)
	AaInvy := new(big.Int).Sub(curveParams.P, Aay)

	count := len(wires)
	k0x := make([]*big.Int, count)
	k0y := make([]*big.Int, count)
	k1x := make([]*big.Int, count)
	k1y := make([]*big.Int, count)

	Bx := new(big.Int)
	By := new(big.Int)

	for i := 0; i < count; i++ {
		data, err := co.io.ReceiveData()
		if err != nil {
			return err
		}
		Bx.SetBytes(data)
		data, err = co.io.ReceiveData()
		if err != nil {
			return err
		}
		By.SetBytes(data)

		if !co.curve.IsOnCurve(Bx, By) {
			return fmt.Errorf("OT %d: point not on curve", i)
		}

		// K0 = B^a, K1 = (B/A)^a
		k0x[i], k0y[i] = co.curve.ScalarMult(Bx, By, aBytes)
		k1x[i], k1y[i] = co.curve.Add(k0x[i], k0y[i], AaInvx, AaInvy)
	}

	var ld LabelData
	var e Label
	for i := 0; i < count; i++ {
		wires[i].L0.GetData(&ld)
		fastxor.Bytes(ld[:], ld[:],
			kdf(co.hash, k0x[i], k0y[i], uint64(i), co.digest))
		e.SetData(&ld)
		if err := co.io.SendLabel(e, &ld); err != nil {
			return err
		}
		wires[i].L1.GetData(&ld)
		fastxor.Bytes(ld[:], ld[:],
			kdf(co.hash, k1x[i], k1y[i], uint64(i), co.digest))
		e.SetData(&ld)
		if err := co.io.SendLabel(e, &ld); err != nil {
			return err
		}
	}

	return co.io.Flush()
}

// Receive receives the wire labels with OT based on the flag values.
func (co *CO) Receive(flags []bool, result []Label) error {
	if len(result) < len(flags) {
		return fmt.Errorf("result too short: %d < %d",
			len(result), len(flags))
	}
	curveParams := co.curve.Params()

	Ax, err := ReceiveBigInt(co.io)
	if err != nil {
		return err
	}
	Ay, err := ReceiveBigInt(co.io)
	if err != nil {
		return err
	}
	if !co.curve.IsOnCurve(Ax, Ay) {
		return fmt.Errorf("sender point not on curve")
	}

	count := len(flags)
	bs := make([][]byte, count)

	for i := 0; i < count; i++ {
		// b <- Zp
		b, err := rand.Int(co.rand, curveParams.N)
		if err != nil {
			return err
		}
		bs[i] = b.Bytes()

		// B = G^b, or A·G^b if the choice bit is set.
		Bx, By := co.curve.ScalarBaseMult(bs[i])
		if flags[i] {
			Bx, By = co.curve.Add(Bx, By, Ax, Ay)
		}
		if err := co.io.SendData(Bx.Bytes()); err != nil {
			return err
		}
		if err := co.io.SendData(By.Bytes()); err != nil {
			return err
		}
	}
	if err := co.io.Flush(); err != nil {
		return err
	}

	var ld LabelData
	var e0, e1 Label
	for i := 0; i < count; i++ {
		if err := co.io.ReceiveLabel(&e0, &ld); err != nil {
			return err
		}
		if err := co.io.ReceiveLabel(&e1, &ld); err != nil {
			return err
		}
		e := e0
		if flags[i] {
			e = e1
		}

		// K = A^b
		kx, ky := co.curve.ScalarMult(Ax, Ay, bs[i])
		e.GetData(&ld)
		fastxor.Bytes(ld[:], ld[:], kdf(co.hash, kx, ky, uint64(i), co.digest))
		result[i].SetData(&ld)
	}

	return nil
}

// kdf appends the key derived from the curve point and the OT index
// to digest.
func kdf(hash hash.Hash, x, y *big.Int, id uint64, digest []byte) []byte {
	hash.Reset()
	hash.Write(x.Bytes())
	hash.Write(y.Bytes())

	var tmp [8]byte
	bo.PutUint64(tmp[:], id)
	hash.Write(tmp[:])

	return hash.Sum(digest[:0])
}
