//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package main

import (
	"strconv"
	"strings"

	"github.com/jessevdk/go-flags"
)

// options define the command line options. The go-flags tags carry
// the required, default, and choice constraints. The aliases and
// multi-value options are declared in the schema table.
type options struct {
	Input      string  `long:"in" value-name:"PATH" description:"Input file" required:"true"`
	Output     string  `long:"out" value-name:"PATH" description:"Output file" required:"true"`
	Role       string  `long:"role" choice:"sender" choice:"receiver" description:"Protocol role" required:"true"`
	Seed       []int32 `long:"seed" value-name:"INT..." description:"Seed words of the private random generator" required:"true"`
	CommonSeed []int32 `long:"commonseed" value-name:"INT..." description:"Seed words shared with the peer"`
	SendSize   uint64  `long:"sendsize" value-name:"N" description:"Sender set size (ss), required for receiver"`
	RecvSize   uint64  `long:"recvsize" value-name:"N" description:"Receiver set size (rs), required for sender"`
	Server     bool    `long:"server" description:"Listen for the peer (netserver)"`
	Address    string  `long:"address" value-name:"ADDR" default:"127.0.0.1" description:"Network address (addr)"`
	Port       int     `long:"port" default:"21021" description:"Network port"`
	Malicious  bool    `long:"malicious" description:"Malicious security"`
	StatSec    uint    `long:"statsec" default:"40" description:"Statistical security parameter"`
	Scaled     bool    `long:"scaled" description:"Derive parameters from the set sizes"`
	Stats      bool    `long:"stats" description:"Print communication statistics"`
	Verbose    bool    `short:"v" long:"verbose" description:"Verbose output"`
}

// optionSpec defines the accepted spellings of a long option. Multi
// options consume all following integer arguments.
type optionSpec struct {
	Name    string
	Aliases []string
	Multi   bool
}

var schema = []optionSpec{
	{Name: "in"},
	{Name: "out"},
	{Name: "role"},
	{Name: "seed", Multi: true},
	{Name: "commonseed", Multi: true},
	{Name: "sendsize", Aliases: []string{"ss"}},
	{Name: "recvsize", Aliases: []string{"rs"}},
	{Name: "server", Aliases: []string{"netserver"}},
	{Name: "address", Aliases: []string{"addr"}},
	{Name: "port"},
	{Name: "malicious"},
	{Name: "statsec"},
	{Name: "scaled"},
	{Name: "stats"},
	{Name: "verbose"},
	{Name: "help"},
}

func lookupOption(name string) *optionSpec {
	for i := range schema {
		if schema[i].Name == name {
			return &schema[i]
		}
		for _, alias := range schema[i].Aliases {
			if alias == name {
				return &schema[i]
			}
		}
	}
	return nil
}

func isInteger(arg string) bool {
	_, err := strconv.ParseInt(arg, 10, 64)
	return err == nil
}

// normalize rewrites the arguments to the go-flags syntax. Long
// options may be given with one or two dashes and with their
// aliases. The values of multi options are expanded into repeated
// options.
func normalize(args []string) []string {
	var result []string

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			result = append(result, args[i:]...)
			break
		}
		if !strings.HasPrefix(arg, "-") || isInteger(arg) {
			result = append(result, arg)
			continue
		}
		name := strings.TrimPrefix(strings.TrimPrefix(arg, "-"), "-")
		var value string
		idx := strings.IndexByte(name, '=')
		if idx >= 0 {
			value = name[idx:]
			name = name[:idx]
		}
		spec := lookupOption(name)
		if spec == nil {
			result = append(result, arg)
			continue
		}
		long := "--" + spec.Name
		if !spec.Multi || len(value) > 0 {
			result = append(result, long+value)
			if !spec.Multi {
				continue
			}
		}
		var count int
		for i+1 < len(args) && isInteger(args[i+1]) {
			result = append(result, long+"="+args[i+1])
			i++
			count++
		}
		if count == 0 && len(value) == 0 {
			result = append(result, long)
		}
	}
	return result
}

func newParser(opts *options) *flags.Parser {
	parser := flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "mp20psi"
	parser.Usage = "[OPTIONS]"
	return parser
}

// isSet tests if the long option was given on the command line.
func isSet(parser *flags.Parser, name string) bool {
	opt := parser.FindOptionByLongName(name)
	return opt != nil && opt.IsSet()
}
