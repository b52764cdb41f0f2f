//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package p2p

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultRetryDelay defines the delay between client connection
// attempts.
const DefaultRetryDelay = time.Second

// Mode defines the endpoint connection mode.
type Mode int

// Endpoint modes.
const (
	Client Mode = iota
	Server
)

var modes = map[Mode]string{
	Client: "client",
	Server: "server",
}

func (m Mode) String() string {
	name, ok := modes[m]
	if ok {
		return name
	}
	return fmt.Sprintf("{Mode %d}", m)
}

// Link opens protocol channels to the peer.
type Link interface {
	AddChannel() (*Conn, error)
	Stop() error
}

var (
	_ Link = &Endpoint{}
)

// Endpoint implements a named point-to-point network endpoint. A
// server endpoint listens for the peer and a client endpoint dials
// the peer. Both sides exchange the endpoint name when a channel is
// added and reject peers with a different name.
type Endpoint struct {
	Name   string
	Mode   Mode
	Addr   string
	Logger *logrus.Logger

	// RetryDelay is the delay between client connection attempts.
	RetryDelay time.Duration

	// MaxAttempts limits the client connection attempts. The value 0
	// retries forever.
	MaxAttempts int

	m        sync.Mutex
	listener net.Listener
	conns    []*Conn
	stopped  bool
}

// NewEndpoint creates a new endpoint. In Server mode the function
// starts listening on the address and port.
func NewEndpoint(addr string, port int, mode Mode, name string) (
	*Endpoint, error) {

	ep := &Endpoint{
		Name:       name,
		Mode:       mode,
		Addr:       net.JoinHostPort(addr, strconv.Itoa(port)),
		Logger:     logrus.New(),
		RetryDelay: DefaultRetryDelay,
	}
	switch mode {
	case Client:
	case Server:
		listener, err := net.Listen("tcp", ep.Addr)
		if err != nil {
			return nil, err
		}
		ep.listener = listener
		ep.Addr = listener.Addr().String()

	default:
		return nil, fmt.Errorf("invalid endpoint mode %v", mode)
	}
	return ep, nil
}

// AddChannel opens a new protocol channel to the peer.
func (ep *Endpoint) AddChannel() (*Conn, error) {
	var nc net.Conn
	var err error

	if ep.Mode == Server {
		ep.Logger.Debugf("%s: waiting for peer on %s", ep.Name, ep.Addr)
		nc, err = ep.listener.Accept()
	} else {
		nc, err = ep.dial()
	}
	if err != nil {
		return nil, err
	}
	conn := NewConn(nc)

	if err := ep.handshake(conn); err != nil {
		conn.Close()
		return nil, err
	}

	ep.m.Lock()
	defer ep.m.Unlock()
	if ep.stopped {
		conn.Close()
		return nil, fmt.Errorf("%s: endpoint stopped", ep.Name)
	}
	ep.conns = append(ep.conns, conn)
	ep.Logger.Debugf("%s: channel open to %s", ep.Name, nc.RemoteAddr())

	return conn, nil
}

func (ep *Endpoint) dial() (net.Conn, error) {
	for attempt := 1; ; attempt++ {
		ep.Logger.Debugf("%s: connecting to %s...", ep.Name, ep.Addr)
		nc, err := net.Dial("tcp", ep.Addr)
		if err == nil {
			return nc, nil
		}
		if ep.MaxAttempts > 0 && attempt >= ep.MaxAttempts {
			return nil, fmt.Errorf("%s: connect to %s failed after %d attempts: %w",
				ep.Name, ep.Addr, attempt, err)
		}
		ep.Logger.Infof("%s: connect to %s failed, retrying in %s",
			ep.Name, ep.Addr, ep.RetryDelay)
		<-time.After(ep.RetryDelay)
	}
}

func (ep *Endpoint) handshake(conn *Conn) error {
	if err := conn.SendString(ep.Name); err != nil {
		return err
	}
	if err := conn.Flush(); err != nil {
		return err
	}
	name, err := conn.ReceiveString()
	if err != nil {
		return err
	}
	if name != ep.Name {
		return fmt.Errorf("peer endpoint %q, expected %q", name, ep.Name)
	}
	return nil
}

// Stop closes all channels and the listener. Stop is idempotent.
func (ep *Endpoint) Stop() error {
	ep.m.Lock()
	defer ep.m.Unlock()

	if ep.stopped {
		return nil
	}
	ep.stopped = true

	var result error
	for _, conn := range ep.conns {
		if err := conn.Close(); err != nil && result == nil {
			result = err
		}
	}
	ep.conns = nil
	if ep.listener != nil {
		if err := ep.listener.Close(); err != nil && result == nil {
			result = err
		}
	}
	return result
}

// TCP opens TCP endpoints.
type TCP struct {
	Logger      *logrus.Logger
	RetryDelay  time.Duration
	MaxAttempts int
}

// Open creates a new TCP endpoint.
func (t *TCP) Open(mode Mode, addr string, port int, name string) (
	Link, error) {

	ep, err := NewEndpoint(addr, port, mode, name)
	if err != nil {
		return nil, err
	}
	if t.Logger != nil {
		ep.Logger = t.Logger
	}
	if t.RetryDelay > 0 {
		ep.RetryDelay = t.RetryDelay
	}
	ep.MaxAttempts = t.MaxAttempts

	return ep, nil
}
