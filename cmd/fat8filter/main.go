// Command fat8filter transcodes text a line at a time between a machine
// charset and UTF-8 (§6 "Character-set filter CLI").
package main

import (
	"fmt"
	"os"

	"github.com/dsoprea/go-logging"
	"github.com/jessevdk/go-flags"

	"github.com/f8tools/fat8d88"
)

type rootParameters struct {
	Family  string `short:"m" long:"family" description:"Machine family: pc88, pc98, pc6001" default:"pc88"`
	Reverse bool   `short:"r" long:"reverse" description:"Encode UTF-8 to machine bytes (default decodes machine bytes to UTF-8)"`
}

var rootArguments = new(rootParameters)

func main() {
	defer func() {
		if state := recover(); state != nil {
			err := log.Wrap(state.(error))
			log.PrintError(err)
			os.Exit(-1)
		}
	}()

	p := flags.NewParser(rootArguments, flags.Default)

	_, err := p.Parse()
	if err != nil {
		os.Exit(1)
	}

	table, err := tableForFamilyName(rootArguments.Family)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}

	mode := fat8d88.ModeMachineToUTF8
	if rootArguments.Reverse {
		mode = fat8d88.ModeUTF8ToMachine
	}

	_, err = fat8d88.LineFilter(os.Stdin, os.Stdout, table, mode)
	if err != nil {
		log.PrintError(err)
		os.Exit(1)
	}
}

func tableForFamilyName(name string) (*fat8d88.CharsetTable, error) {
	switch name {
	case "pc88", "pc98":
		return fat8d88.PC88Table, nil
	case "pc6001":
		return fat8d88.PC6001Table, nil
	default:
		return nil, fmt.Errorf("unknown machine family: %q (want pc88, pc98, or pc6001)", name)
	}
}
