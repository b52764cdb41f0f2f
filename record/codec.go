//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package record

import (
	"fmt"
)

// LineLength defines the number of hex characters encoding one
// record.
const LineLength = 2 * Size

// DecodeError describes a malformed input line.
type DecodeError struct {
	Line   int
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
	}
	return e.Reason
}

// DecodeLine decodes the record from the first LineLength characters
// of the line. The characters must be lowercase hex digits. The first
// character is the most significant nibble of the Hi word.
func DecodeLine(line string) (Record, error) {
	var r Record

	if len(line) < LineLength {
		return r, &DecodeError{
			Reason: fmt.Sprintf("line too short: %d < %d",
				len(line), LineLength),
		}
	}
	for i := 0; i < LineLength; i++ {
		v, ok := nibble(line[i])
		if !ok {
			return r, &DecodeError{
				Reason: fmt.Sprintf("invalid character %q at column %d",
					line[i], i+1),
			}
		}
		if i < LineLength/2 {
			r.Hi = r.Hi<<4 | v
		} else {
			r.Lo = r.Lo<<4 | v
		}
	}
	return r, nil
}

// Encode encodes the record as LineLength lowercase hex
// characters. DecodeLine(Encode(r)) returns r.
func Encode(r Record) string {
	return r.String()
}

func nibble(ch byte) (uint64, bool) {
	switch {
	case '0' <= ch && ch <= '9':
		return uint64(ch - '0'), true
	case 'a' <= ch && ch <= 'f':
		return uint64(ch-'a') + 10, true
	default:
		return 0, false
	}
}
