//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//

package psi

import (
	"crypto/aes"
	"crypto/cipher"
)

// prgAESCTR expands the 128-bit key into out. The output is the AES
// counter mode keystream with a zero IV.
func prgAESCTR(key []byte, out []byte) {
	block, err := aes.NewCipher(key)
	if err != nil {
		panic(err)
	}

	var iv [16]byte
	stream := cipher.NewCTR(block, iv[:])

	for i := range out {
		out[i] = 0
	}
	stream.XORKeyStream(out[:], out[:])
}
