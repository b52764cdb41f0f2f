//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package session

import (
	"errors"
)

// Session error classes. The errors returned by the session wrap one
// of these so that callers can classify them with errors.Is.
var (
	ErrConfiguration     = errors.New("configuration error")
	ErrDecode            = errors.New("decode error")
	ErrIO                = errors.New("I/O error")
	ErrTransport         = errors.New("transport error")
	ErrEngine            = errors.New("engine error")
	ErrContractViolation = errors.New("engine contract violation")
)
