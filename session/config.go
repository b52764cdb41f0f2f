//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package session

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/markkurossi/psi/p2p"
	"github.com/markkurossi/psi/params"
	"github.com/markkurossi/psi/prng"
	"github.com/markkurossi/psi/psi"
)

// Network defaults.
const (
	DefaultAddress = "127.0.0.1"
	DefaultPort    = 21021

	// EndpointName is the endpoint name both parties must use.
	EndpointName = "mp20_psi"
)

// Role defines the party's role in the protocol.
type Role int

// Protocol roles.
const (
	Sender Role = iota + 1
	Receiver
)

var roles = map[Role]string{
	Sender:   "sender",
	Receiver: "receiver",
}

func (r Role) String() string {
	name, ok := roles[r]
	if ok {
		return name
	}
	return fmt.Sprintf("{Role %d}", r)
}

// ParseRole parses the role name.
func ParseRole(name string) (Role, error) {
	for r, n := range roles {
		if n == name {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown role '%s'", ErrConfiguration, name)
}

// Network defines the transport endpoint. If Server is set, the
// party listens for its peer. Otherwise it connects to the peer.
type Network struct {
	Server  bool
	Address string
	Port    int
}

func (n Network) String() string {
	mode := "connect"
	if n.Server {
		mode = "listen"
	}
	return fmt.Sprintf("%s %s:%d", mode, n.Address, n.Port)
}

// Transport opens endpoints for protocol channels.
type Transport interface {
	Open(mode p2p.Mode, addr string, port int, name string) (p2p.Link, error)
}

// Config defines the session configuration.
type Config struct {
	Role   Role
	Input  string
	Output string

	Network Network

	// PeerSize is the declared set size of the peer. It is required
	// for both roles.
	PeerSize *uint64

	// Seed seeds the party's private random generator. It is
	// required.
	Seed *prng.Seed

	// CommonSeed is the seed both parties share.
	CommonSeed prng.Seed

	Policy params.SecurityPolicy

	// Derive derives the security parameters. The default is
	// params.Fixed.
	Derive params.Deriver

	// Engine runs the PSI protocol. The default is psi.CM20.
	Engine psi.Engine

	// Transport opens the protocol channel. The default is p2p.TCP.
	Transport Transport

	Logger *logrus.Logger

	// Stats enables the timing and transfer report. The report is
	// written to StatsOutput.
	Stats       bool
	StatsOutput io.Writer
}

func (cfg *Config) check() error {
	switch cfg.Role {
	case Sender, Receiver:
	default:
		return fmt.Errorf("%w: invalid role %v", ErrConfiguration, cfg.Role)
	}
	if len(cfg.Input) == 0 {
		return fmt.Errorf("%w: input file not specified", ErrConfiguration)
	}
	if len(cfg.Output) == 0 {
		return fmt.Errorf("%w: output file not specified", ErrConfiguration)
	}
	if cfg.Seed == nil {
		return fmt.Errorf("%w: seed not specified", ErrConfiguration)
	}
	if cfg.PeerSize == nil {
		if cfg.Role == Receiver {
			return fmt.Errorf("%w: sender set size not specified",
				ErrConfiguration)
		}
		return fmt.Errorf("%w: receiver set size not specified",
			ErrConfiguration)
	}
	if cfg.Network.Port < 0 || cfg.Network.Port > 65535 {
		return fmt.Errorf("%w: invalid port %d", ErrConfiguration,
			cfg.Network.Port)
	}
	return nil
}
