//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package session implements the two-party PSI session: it loads the
// party's records, derives the security parameters, opens the
// protocol channel, runs the PSI engine, and stores the receiver's
// intersection.
package session

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/markkurossi/psi/p2p"
	"github.com/markkurossi/psi/params"
	"github.com/markkurossi/psi/prng"
	"github.com/markkurossi/psi/psi"
	"github.com/markkurossi/psi/record"
)

// State defines the session states.
type State int

// Session states.
const (
	Configuring State = iota
	ChannelOpen
	Running
	Closed
)

var states = map[State]string{
	Configuring: "configuring",
	ChannelOpen: "channel-open",
	Running:     "running",
	Closed:      "closed",
}

func (s State) String() string {
	name, ok := states[s]
	if ok {
		return name
	}
	return fmt.Sprintf("{State %d}", s)
}

// Session implements one PSI protocol run.
type Session struct {
	cfg    Config
	log    *logrus.Logger
	state  State
	timing *Timing
	stats  p2p.IOStats
}

// New creates a new session from the configuration. The function
// validates the configuration and fills in the default collaborators.
func New(cfg *Config) (*Session, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: no configuration", ErrConfiguration)
	}
	if err := cfg.check(); err != nil {
		return nil, err
	}
	c := *cfg
	if c.Logger == nil {
		c.Logger = logrus.New()
	}
	if c.Derive == nil {
		c.Derive = params.Fixed
	}
	if c.Engine == nil {
		c.Engine = psi.NewCM20()
	}
	if c.Transport == nil {
		c.Transport = &p2p.TCP{
			Logger: c.Logger,
		}
	}
	if c.StatsOutput == nil {
		c.StatsOutput = os.Stdout
	}
	if len(c.Network.Address) == 0 {
		c.Network.Address = DefaultAddress
	}
	seed := *c.Seed
	c.Seed = &seed
	peerSize := *c.PeerSize
	c.PeerSize = &peerSize

	if c.Seed.IsWeak() {
		c.Logger.Warnf("seed %v has zero words", c.Seed)
	}
	if c.CommonSeed.IsWeak() {
		c.Logger.Warnf("common seed %v has zero words", c.CommonSeed)
	}

	return &Session{
		cfg:   c,
		log:   c.Logger,
		state: Configuring,
		stats: p2p.NewIOStats(),
	}, nil
}

// State returns the current session state.
func (s *Session) State() State {
	return s.state
}

// Stats returns the channel I/O statistics of the session.
func (s *Session) Stats() p2p.IOStats {
	return s.stats
}

func (s *Session) setState(state State) {
	if s.state == state {
		return
	}
	s.log.WithFields(logrus.Fields{
		"role": s.cfg.Role,
		"from": s.state,
		"to":   state,
	}).Debug("session state")
	s.state = state
}

// Run runs the session. The receiver stores the intersection records
// to the output file. Nothing is written if the run fails.
func (s *Session) Run() error {
	if s.state != Configuring {
		return fmt.Errorf("%w: session already run", ErrConfiguration)
	}
	s.timing = NewTiming()
	// The session stays Running through result mapping and storing.
	defer s.setState(Closed)

	set, err := s.load()
	if err != nil {
		return err
	}
	s.timing.Sample("Load", []string{FileSize(len(set) * record.Size).String()})

	var senderSize, receiverSize uint64
	if s.cfg.Role == Sender {
		senderSize, receiverSize = uint64(len(set)), *s.cfg.PeerSize
	} else {
		senderSize, receiverSize = *s.cfg.PeerSize, uint64(len(set))
	}
	p := s.cfg.Derive(senderSize, receiverSize, s.cfg.Policy)
	s.log.Debugf("policy: %v", s.cfg.Policy)
	s.log.Debugf("params: %v", p)

	indices, err := s.exchange(&psi.Setup{
		Rand:         prng.New(*s.cfg.Seed),
		CommonSeed:   s.cfg.CommonSeed,
		SenderSize:   senderSize,
		ReceiverSize: receiverSize,
		Params:       p,
		Logger:       s.log,
	}, set)
	if err != nil {
		return err
	}

	if s.cfg.Role == Receiver {
		result, err := MapResult(indices, set)
		if err != nil {
			return err
		}
		if err := record.Store(s.cfg.Output, result); err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
		s.log.Infof("%d matches stored to %s", len(result), s.cfg.Output)
		s.timing.Sample("Store", []string{
			FileSize(len(result) * record.Size).String(),
		})
	}

	if s.cfg.Stats {
		s.timing.Print(s.cfg.StatsOutput, s.stats)
	}
	return nil
}

func (s *Session) load() ([]record.Record, error) {
	set, err := record.Load(s.cfg.Input)
	if err != nil {
		var de *record.DecodeError
		if errors.As(err, &de) {
			return nil, fmt.Errorf("%w: %s: %w", ErrDecode, s.cfg.Input, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	s.log.Infof("input loaded: %d records from %s", len(set), s.cfg.Input)
	return set, nil
}

// exchange opens the protocol channel and runs the engine. The
// channel and its endpoint are released on all return paths.
func (s *Session) exchange(setup *psi.Setup, set []record.Record) (
	[]uint64, error) {

	s.setState(ChannelOpen)

	mode := p2p.Client
	if s.cfg.Network.Server {
		mode = p2p.Server
	}
	s.log.Debugf("network: %v", s.cfg.Network)

	link, err := s.cfg.Transport.Open(mode, s.cfg.Network.Address,
		s.cfg.Network.Port, EndpointName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer func() {
		if err := link.Stop(); err != nil {
			s.log.Debugf("endpoint stop: %v", err)
		}
	}()

	conn, err := link.AddChannel()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			s.log.Debugf("channel close: %v", err)
		}
		s.stats = s.stats.Add(conn.Stats)
	}()
	s.timing.Sample("Connect", nil)

	s.setState(Running)

	type phase struct {
		label string
		end   time.Time
	}
	var phases []phase
	setup.Phase = func(label string) {
		phases = append(phases, phase{
			label: label,
			end:   time.Now(),
		})
	}

	var indices []uint64
	if s.cfg.Role == Sender {
		s.log.Infof("sender: %d records, peer %d", setup.SenderSize,
			setup.ReceiverSize)
		err = s.cfg.Engine.Send(conn, setup, set)
	} else {
		s.log.Infof("receiver: %d records, peer %d", setup.ReceiverSize,
			setup.SenderSize)
		indices, err = s.cfg.Engine.Receive(conn, setup, set)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEngine, err)
	}

	sample := s.timing.Sample("PSI", []string{
		FileSize(conn.Stats.Sum()).String(),
	})
	for _, p := range phases {
		sample.SubSample(p.label, p.end)
	}
	return indices, nil
}
