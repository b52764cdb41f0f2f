//
// main.go
//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Command mp20psi runs one party of a two-party private set
// intersection. The receiver writes the records both parties hold to
// the output file.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"

	"github.com/markkurossi/psi/params"
	"github.com/markkurossi/psi/prng"
	"github.com/markkurossi/psi/session"
)

type app struct {
	stdout io.Writer
	stderr io.Writer

	// transport overrides the session's default transport.
	transport session.Transport
}

func main() {
	a := &app{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	os.Exit(a.run(os.Args[1:]))
}

func (a *app) usage(parser *flags.Parser, err error) int {
	if err != nil {
		fmt.Fprintf(a.stderr, "mp20psi: %s\n", err)
	}
	parser.WriteHelp(a.stderr)
	return 1
}

func (a *app) run(args []string) int {
	var opts options
	parser := newParser(&opts)

	rest, err := parser.ParseArgs(normalize(args))
	if err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			fmt.Fprintln(a.stdout, ferr.Message)
			return 0
		}
		return a.usage(parser, err)
	}
	if len(rest) > 0 {
		return a.usage(parser, fmt.Errorf("unexpected arguments: %v", rest))
	}

	role, err := session.ParseRole(opts.Role)
	if err != nil {
		return a.usage(parser, err)
	}
	var peerSize uint64
	switch role {
	case session.Sender:
		if !isSet(parser, "recvsize") {
			return a.usage(parser,
				errors.New("the required flag `--recvsize' was not specified"))
		}
		peerSize = opts.RecvSize
	case session.Receiver:
		if !isSet(parser, "sendsize") {
			return a.usage(parser,
				errors.New("the required flag `--sendsize' was not specified"))
		}
		peerSize = opts.SendSize
	}

	log := logrus.New()
	log.SetOutput(a.stderr)
	if opts.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	log.Info("arguments ok")

	seed := prng.NewSeed(opts.Seed)
	derive := params.Fixed
	if opts.Scaled {
		derive = params.Scaled
	}

	s, err := session.New(&session.Config{
		Role:   role,
		Input:  opts.Input,
		Output: opts.Output,
		Network: session.Network{
			Server:  opts.Server,
			Address: opts.Address,
			Port:    opts.Port,
		},
		PeerSize:   &peerSize,
		Seed:       &seed,
		CommonSeed: prng.NewSeed(opts.CommonSeed),
		Policy: params.SecurityPolicy{
			Malicious:    opts.Malicious,
			StatSecParam: opts.StatSec,
		},
		Derive:      derive,
		Transport:   a.transport,
		Logger:      log,
		Stats:       opts.Stats,
		StatsOutput: a.stdout,
	})
	if err != nil {
		return a.usage(parser, err)
	}
	if err := s.Run(); err != nil {
		log.Errorf("%s: %v", role, err)
		return 1
	}
	log.Infof("%s done", role)
	return 0
}
