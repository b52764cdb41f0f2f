//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package psi implements two-party private set intersection engines
// over the p2p protocol connections.
package psi

import (
	"github.com/sirupsen/logrus"

	"github.com/markkurossi/psi/p2p"
	"github.com/markkurossi/psi/params"
	"github.com/markkurossi/psi/prng"
	"github.com/markkurossi/psi/record"
)

// Setup defines the inputs of one PSI protocol run.
type Setup struct {
	// Rand is the party's private random source.
	Rand *prng.PRNG

	// CommonSeed is the seed shared by both parties.
	CommonSeed prng.Seed

	SenderSize   uint64
	ReceiverSize uint64
	Params       params.SecurityParameters

	// Logger receives debug messages. If nil, the engine does not
	// log.
	Logger *logrus.Logger

	// Phase, if set, is called when the engine completes a protocol
	// phase.
	Phase func(label string)
}

func (setup *Setup) debugf(format string, args ...interface{}) {
	if setup.Logger != nil {
		setup.Logger.Debugf(format, args...)
	}
}

func (setup *Setup) phase(label string) {
	if setup.Phase != nil {
		setup.Phase(label)
	}
}

// Engine implements a PSI protocol. The Send runs the sender role and
// the Receive runs the receiver role. Receive returns the indices of
// the receiver's set members that are also in the sender's set.
type Engine interface {
	Send(conn *p2p.Conn, setup *Setup, set []record.Record) error
	Receive(conn *p2p.Conn, setup *Setup, set []record.Record) (
		[]uint64, error)
}
