//
// protocol_test.go
//
// Copyright (c) 2023-2026 Markku Rossi
//
// All rights reserved.
//

package p2p

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/markkurossi/psi/ot"
)

var tests = []interface{}{
	uint32(44),
	ot.Label{D0: 0x0123456789abcdef, D1: 0xfedcba9876543210},
	"Hello, world!",
	make([]byte, 1024),
	pattern(128 * 1024),
	make([]byte, 2*1024*1024),
	make([]byte, 64*1024*1024),
}

func pattern(n int) []byte {
	result := make([]byte, n)
	for i := range result {
		result[i] = byte(i * 7)
	}
	return result
}

func writer(c *Conn) {
	for _, test := range tests {
		switch d := test.(type) {
		case ot.Label:
			var ld ot.LabelData
			if err := c.SendLabel(d, &ld); err != nil {
				fmt.Printf("SendLabel: %v\n", err)
			}

		case uint32:
			if err := c.SendUint32(int(d)); err != nil {
				fmt.Printf("SendUint32: %v\n", err)
			}

		case string:
			if err := c.SendString(d); err != nil {
				fmt.Printf("SendString: %v\n", err)
			}

		case []byte:
			if err := c.SendData(d); err != nil {
				fmt.Printf("SendData [%v]byte: %v\n", len(d), err)
			}

		default:
			fmt.Printf("writer: invalid data: %v(%T)\n", test, test)
		}
	}
	if err := c.Flush(); err != nil {
		fmt.Printf("Flush: %v\n", err)
	}
}

func TestProtocol(t *testing.T) {
	cw, c := Pipe()

	go writer(cw)

	for _, test := range tests {
		switch d := test.(type) {
		case ot.Label:
			var v ot.Label
			var ld ot.LabelData
			if err := c.ReceiveLabel(&v, &ld); err != nil {
				t.Fatalf("ReceiveLabel: %v", err)
			}
			if v != d {
				t.Errorf("ReceiveLabel: got %v, expected %v", v, d)
			}

		case uint32:
			v, err := c.ReceiveUint32()
			if err != nil {
				t.Fatalf("ReceiveUint32: %v", err)
			}
			if v != int(d) {
				t.Errorf("ReceiveUint32: got %v, expected %v", v, d)
			}

		case string:
			v, err := c.ReceiveString()
			if err != nil {
				t.Fatalf("ReceiveString: %v", err)
			}
			if v != d {
				t.Errorf("ReceiveString: got %v, expected %v", v, d)
			}

		case []byte:
			v, err := c.ReceiveData()
			if err != nil {
				t.Fatalf("ReceiveData: %v", err)
			}
			if !bytes.Equal(v, d) {
				t.Errorf("ReceiveData: got [%v]byte, expected [%v]byte",
					len(v), len(d))
			}

		default:
			t.Errorf("invalid value: %v(%T)", test, test)
		}
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestProtocolStats(t *testing.T) {
	cw, c := Pipe()

	data := pattern(100 * 1024)
	go func() {
		cw.SendData(data)
		cw.Flush()
	}()
	v, err := c.ReceiveData()
	if err != nil {
		t.Fatalf("ReceiveData: %v", err)
	}
	if !bytes.Equal(v, data) {
		t.Errorf("ReceiveData: data mismatch")
	}
	expected := uint64(4 + len(data))
	if got := c.Stats.Recvd.Load(); got != expected {
		t.Errorf("Recvd: got %v, expected %v", got, expected)
	}
	if got := cw.Stats.Sent.Load(); got != expected {
		t.Errorf("Sent: got %v, expected %v", got, expected)
	}
	if got := cw.Stats.Add(c.Stats).Sum(); got != 2*expected {
		t.Errorf("Sum: got %v, expected %v", got, 2*expected)
	}
	cw.Close()
	c.Close()
}
