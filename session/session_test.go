//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package session

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/markkurossi/psi/p2p"
	"github.com/markkurossi/psi/params"
	"github.com/markkurossi/psi/prng"
	"github.com/markkurossi/psi/psi"
	"github.com/markkurossi/psi/record"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.DebugLevel)
	return logger
}

// testLink implements p2p.Link over one end of an in-memory pipe.
type testLink struct {
	conn    *p2p.Conn
	err     error
	stopped int
}

func (l *testLink) AddChannel() (*p2p.Conn, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.conn, nil
}

func (l *testLink) Stop() error {
	l.stopped++
	return nil
}

type testTransport struct {
	link   *testLink
	err    error
	opened int
	mode   p2p.Mode
	name   string
}

func (t *testTransport) Open(mode p2p.Mode, addr string, port int,
	name string) (p2p.Link, error) {

	t.opened++
	t.mode = mode
	t.name = name
	if t.err != nil {
		return nil, t.err
	}
	return t.link, nil
}

// newTestTransport creates a transport and returns it with the peer
// end of its channel.
func newTestTransport() (*testTransport, *p2p.Conn) {
	conn, peer := p2p.Pipe()
	return &testTransport{
		link: &testLink{
			conn: conn,
		},
	}, peer
}

type testEngine struct {
	indices []uint64
	err     error
	setup   *psi.Setup
	set     []record.Record
}

func (e *testEngine) Send(conn *p2p.Conn, setup *psi.Setup,
	set []record.Record) error {
	e.setup = setup
	e.set = set
	return e.err
}

func (e *testEngine) Receive(conn *p2p.Conn, setup *psi.Setup,
	set []record.Record) ([]uint64, error) {
	e.setup = setup
	e.set = set
	return e.indices, e.err
}

func writeInput(t *testing.T, dir string, records ...record.Record) string {
	file := filepath.Join(dir, "input.txt")
	f, err := os.Create(file)
	require.NoError(t, err)
	require.NoError(t, record.Write(f, records))
	require.NoError(t, f.Close())
	return file
}

func size(v uint64) *uint64 {
	return &v
}

func seed(words ...int32) *prng.Seed {
	s := prng.NewSeed(words)
	return &s
}

func receiverConfig(t *testing.T, transport Transport,
	engine psi.Engine) *Config {

	dir := t.TempDir()
	return &Config{
		Role:       Receiver,
		Input:      writeInput(t, dir, recA, recB, recC),
		Output:     filepath.Join(dir, "output.txt"),
		PeerSize:   size(1000),
		Seed:       seed(1, 2, 3, 4),
		CommonSeed: prng.NewSeed([]int32{5, 6, 7, 8}),
		Engine:     engine,
		Transport:  transport,
		Logger:     testLogger(),
	}
}

func TestNewConfiguration(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Role:     Sender,
			Input:    "in.txt",
			Output:   "out.txt",
			PeerSize: size(10),
			Seed:     seed(1, 2, 3, 4),
			Logger:   testLogger(),
		}
	}
	s, err := New(valid())
	require.NoError(t, err)
	require.Equal(t, Configuring, s.State())

	tests := map[string]func(cfg *Config){
		"role":     func(cfg *Config) { cfg.Role = 0 },
		"input":    func(cfg *Config) { cfg.Input = "" },
		"output":   func(cfg *Config) { cfg.Output = "" },
		"seed":     func(cfg *Config) { cfg.Seed = nil },
		"peersize": func(cfg *Config) { cfg.PeerSize = nil },
		"port":     func(cfg *Config) { cfg.Network.Port = 70000 },
	}
	for name, modify := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			modify(cfg)
			_, err := New(cfg)
			require.ErrorIs(t, err, ErrConfiguration)
		})
	}

	_, err = New(nil)
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("sender")
	require.NoError(t, err)
	require.Equal(t, Sender, r)

	r, err = ParseRole("receiver")
	require.NoError(t, err)
	require.Equal(t, Receiver, r)
	require.Equal(t, "receiver", r.String())

	_, err = ParseRole("Sender")
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestReceiverRun(t *testing.T) {
	transport, peer := newTestTransport()
	engine := &testEngine{
		indices: []uint64{2, 0},
	}
	cfg := receiverConfig(t, transport, engine)
	cfg.Network.Server = true
	cfg.Policy = params.SecurityPolicy{
		StatSecParam: 40,
	}

	s, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Run())
	require.Equal(t, Closed, s.State())

	require.Equal(t, 1, transport.opened)
	require.Equal(t, p2p.Server, transport.mode)
	require.Equal(t, EndpointName, transport.name)
	require.Equal(t, 1, transport.link.stopped)

	require.Equal(t, uint64(1000), engine.setup.SenderSize)
	require.Equal(t, uint64(3), engine.setup.ReceiverSize)
	require.Equal(t, params.Fixed(1000, 3, cfg.Policy), engine.setup.Params)
	require.Equal(t, cfg.CommonSeed, engine.setup.CommonSeed)
	require.Equal(t, []record.Record{recA, recB, recC}, engine.set)

	data, err := os.ReadFile(cfg.Output)
	require.NoError(t, err)
	require.Equal(t, recC.String()+"\n"+recA.String()+"\n", string(data))

	// The channel is closed.
	_, err = peer.ReceiveUint32()
	require.Error(t, err)

	// A session runs once.
	require.ErrorIs(t, s.Run(), ErrConfiguration)
}

func TestRunStateOrder(t *testing.T) {
	transport, _ := newTestTransport()
	cfg := receiverConfig(t, transport, &testEngine{
		indices: []uint64{1},
	})
	hook := logtest.NewLocal(cfg.Logger)

	s, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Run())

	var transitions []string
	stored := -1
	closed := -1
	for i, entry := range hook.AllEntries() {
		if entry.Message == "session state" {
			transitions = append(transitions,
				fmt.Sprintf("%v", entry.Data["to"]))
			if entry.Data["to"] == Closed {
				closed = i
			}
		}
		if strings.HasPrefix(entry.Message, "1 matches stored") {
			stored = i
		}
	}
	require.Equal(t, []string{"channel-open", "running", "closed"},
		transitions)
	require.NotEqual(t, -1, stored)
	require.Less(t, stored, closed)
}

func TestRunStoreFailure(t *testing.T) {
	transport, _ := newTestTransport()
	cfg := receiverConfig(t, transport, &testEngine{
		indices: []uint64{0},
	})
	cfg.Output = filepath.Join(t.TempDir(), "missing", "output.txt")

	s, err := New(cfg)
	require.NoError(t, err)
	require.ErrorIs(t, s.Run(), ErrIO)
	require.Equal(t, Closed, s.State())
	require.Equal(t, 1, transport.link.stopped)
}

func TestSenderRun(t *testing.T) {
	transport, _ := newTestTransport()
	engine := &testEngine{}
	cfg := receiverConfig(t, transport, engine)
	cfg.Role = Sender
	cfg.PeerSize = size(7)

	s, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Run())

	require.Equal(t, p2p.Client, transport.mode)
	require.Equal(t, uint64(3), engine.setup.SenderSize)
	require.Equal(t, uint64(7), engine.setup.ReceiverSize)

	_, err = os.Stat(cfg.Output)
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRunDecodeError(t *testing.T) {
	transport, _ := newTestTransport()
	cfg := receiverConfig(t, transport, &testEngine{})
	require.NoError(t, os.WriteFile(cfg.Input,
		[]byte(recA.String()+"\n0123456789abcdef0123\n"), 0644))

	s, err := New(cfg)
	require.NoError(t, err)

	err = s.Run()
	require.ErrorIs(t, err, ErrDecode)
	var de *record.DecodeError
	require.True(t, errors.As(err, &de))
	require.Equal(t, 2, de.Line)
	require.Equal(t, 0, transport.opened)
	require.Equal(t, Closed, s.State())
}

func TestRunLongLine(t *testing.T) {
	transport, _ := newTestTransport()
	cfg := receiverConfig(t, transport, &testEngine{})
	long := recB.String() + strings.Repeat("0", record.MaxLineLength) + "\n"
	require.NoError(t, os.WriteFile(cfg.Input,
		[]byte(recA.String()+"\n"+long), 0644))

	s, err := New(cfg)
	require.NoError(t, err)

	err = s.Run()
	require.ErrorIs(t, err, ErrDecode)
	require.NotErrorIs(t, err, ErrIO)
	var de *record.DecodeError
	require.True(t, errors.As(err, &de))
	require.Equal(t, 2, de.Line)
	require.Equal(t, 0, transport.opened)
}

func TestRunMissingInput(t *testing.T) {
	transport, _ := newTestTransport()
	cfg := receiverConfig(t, transport, &testEngine{})
	cfg.Input = filepath.Join(t.TempDir(), "missing.txt")

	s, err := New(cfg)
	require.NoError(t, err)
	require.ErrorIs(t, s.Run(), ErrIO)
	require.Equal(t, 0, transport.opened)
}

func TestRunTransportError(t *testing.T) {
	transport, _ := newTestTransport()
	transport.err = errors.New("connection refused")
	cfg := receiverConfig(t, transport, &testEngine{})

	s, err := New(cfg)
	require.NoError(t, err)
	require.ErrorIs(t, s.Run(), ErrTransport)
	require.Equal(t, 0, transport.link.stopped)

	transport, _ = newTestTransport()
	transport.link.err = errors.New("peer endpoint mismatch")
	cfg = receiverConfig(t, transport, &testEngine{})

	s, err = New(cfg)
	require.NoError(t, err)
	require.ErrorIs(t, s.Run(), ErrTransport)
	require.Equal(t, 1, transport.link.stopped)
}

func TestRunEngineError(t *testing.T) {
	engineErr := errors.New("peer closed connection")

	transport, peer := newTestTransport()
	cfg := receiverConfig(t, transport, &testEngine{
		err: engineErr,
	})

	s, err := New(cfg)
	require.NoError(t, err)

	err = s.Run()
	require.ErrorIs(t, err, ErrEngine)
	require.ErrorIs(t, err, engineErr)
	require.Equal(t, Closed, s.State())
	require.Equal(t, 1, transport.link.stopped)

	_, err = peer.ReceiveUint32()
	require.Error(t, err)

	_, err = os.Stat(cfg.Output)
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRunContractViolation(t *testing.T) {
	transport, _ := newTestTransport()
	cfg := receiverConfig(t, transport, &testEngine{
		indices: []uint64{0, 3},
	})

	s, err := New(cfg)
	require.NoError(t, err)
	require.ErrorIs(t, s.Run(), ErrContractViolation)
	require.Equal(t, 1, transport.link.stopped)

	_, err = os.Stat(cfg.Output)
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRunStoreError(t *testing.T) {
	transport, _ := newTestTransport()
	cfg := receiverConfig(t, transport, &testEngine{
		indices: []uint64{1},
	})
	cfg.Output = filepath.Join(t.TempDir(), "missing", "output.txt")

	s, err := New(cfg)
	require.NoError(t, err)
	require.ErrorIs(t, s.Run(), ErrIO)
}

func smallParams(senderSize, receiverSize uint64,
	policy params.SecurityPolicy) params.SecurityParameters {

	return params.SecurityParameters{
		Height:                 256,
		LogHeight:              8,
		Width:                  128,
		HashLengthInBytes:      10,
		FirstHashLengthInBytes: 32,
		Bucket1:                8,
		Bucket2:                8,
	}
}

func TestRunCM20(t *testing.T) {
	sConn, rConn := p2p.Pipe()
	commonSeed := prng.NewSeed([]int32{9, 8, 7, 6})

	var sendSet, recvSet []record.Record
	for i := 0; i < 30; i++ {
		sendSet = append(sendSet, record.Record{Hi: 1, Lo: uint64(i)})
	}
	for i := 0; i < 20; i++ {
		recvSet = append(recvSet, record.Record{Hi: 2, Lo: uint64(i)})
	}
	recvSet[4] = sendSet[11]
	recvSet[15] = sendSet[29]
	recvSet[19] = sendSet[0]

	sDir := t.TempDir()
	sender, err := New(&Config{
		Role:       Sender,
		Input:      writeInput(t, sDir, sendSet...),
		Output:     filepath.Join(sDir, "output.txt"),
		PeerSize:   size(uint64(len(recvSet))),
		Seed:       seed(1, 2, 3, 4),
		CommonSeed: commonSeed,
		Derive:     smallParams,
		Transport: &testTransport{
			link: &testLink{conn: sConn},
		},
		Logger: testLogger(),
	})
	require.NoError(t, err)

	rDir := t.TempDir()
	var stats bytes.Buffer
	receiver, err := New(&Config{
		Role:       Receiver,
		Input:      writeInput(t, rDir, recvSet...),
		Output:     filepath.Join(rDir, "output.txt"),
		PeerSize:   size(uint64(len(sendSet))),
		Seed:       seed(5, 6, 7, 8),
		CommonSeed: commonSeed,
		Derive:     smallParams,
		Transport: &testTransport{
			link: &testLink{conn: rConn},
		},
		Logger:      testLogger(),
		Stats:       true,
		StatsOutput: &stats,
	})
	require.NoError(t, err)

	done := make(chan error)
	go func() {
		done <- sender.Run()
	}()
	require.NoError(t, receiver.Run())
	require.NoError(t, <-done)

	result, err := record.Load(filepath.Join(rDir, "output.txt"))
	require.NoError(t, err)
	require.ElementsMatch(t,
		[]record.Record{sendSet[11], sendSet[29], sendSet[0]}, result)

	require.NotZero(t, receiver.Stats().Sum())
	require.True(t, strings.Contains(stats.String(), "Total"))
	require.True(t, strings.Contains(stats.String(), "Matrix"))
}

func TestState(t *testing.T) {
	require.Equal(t, "configuring", Configuring.String())
	require.Equal(t, "closed", Closed.String())
	require.Equal(t, "{State 9}", State(9).String())
}
