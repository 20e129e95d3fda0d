// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package goes runs one of several commands linked into the same program,
// chosen by the name it was invoked as or by its first argument.
package goes

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/platinasystems/flags"
	"github.com/platinasystems/rtl8365mb/cmd"
	"github.com/platinasystems/rtl8365mb/lang"
)

type Goes struct {
	NAME    string
	USAGE   string
	APROPOS lang.Alt
	ByName  map[string]cmd.Cmd

	// Stdout, if nil, is os.Stdout.
	Stdout io.Writer
}

type manner interface {
	Man() lang.Alt
}

// Plot adds commands by their String name.
func (g *Goes) Plot(cmds ...cmd.Cmd) {
	if g.ByName == nil {
		g.ByName = make(map[string]cmd.Cmd)
	}
	for _, v := range cmds {
		name := v.String()
		if _, found := g.ByName[name]; found {
			panic(fmt.Errorf("%s: duplicate", name))
		}
		g.ByName[name] = v
	}
}

// Names lists the commands that aren't hidden.
func (g *Goes) Names() []string {
	names := make([]string, 0, len(g.ByName))
	for k, v := range g.ByName {
		if !cmd.WhatKind(v).IsHidden() {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

func (g *Goes) String() string    { return g.NAME }
func (g *Goes) Apropos() lang.Alt { return g.APROPOS }

func (g *Goes) stdout() io.Writer {
	if g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

func (g *Goes) Usage() string {
	if len(g.USAGE) > 0 {
		return g.USAGE
	}
	return fmt.Sprint(g.NAME, " COMMAND [ARGS]...\n\t",
		g.NAME, " COMMAND -[-]HELPER\n\t",
		g.NAME, " HELPER [COMMAND]\n\n",
		"\tHELPER := { apropos | help | man | usage }")
}

// Args are those of the program with the first shifted off unless it's
// invoked by a command name.
func (g *Goes) Args() []string {
	args := append([]string{}, os.Args...)
	if len(args) == 0 {
		return nil
	}
	args[0] = filepath.Base(args[0])
	if _, found := g.ByName[args[0]]; !found {
		args = args[1:]
	}
	return args
}

// Main runs the command named by the first argument.
func (g *Goes) Main(args ...string) error {
	if len(args) == 0 {
		return g.usage()
	}
	cmd.Swap(args)
	flag, _ := flags.New(args[1:], []string{"-h", "-help", "--help"})
	if flag.ByName["-h"] {
		args = []string{"help", args[0]}
	}
	name, args := args[0], args[1:]
	switch name {
	case "apropos":
		return g.apropos(args...)
	case "help", "usage":
		return g.usage(args...)
	case "man":
		return g.man(args...)
	}
	v := g.ByName[name]
	if v == nil {
		return fmt.Errorf("%s: command not found", name)
	}
	daemon := cmd.WhatKind(v).IsDaemon()
	if daemon {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sig)
		go func() {
			if _, ok := <-sig; ok {
				if err := cmd.Close(v); err != nil {
					fmt.Fprintln(os.Stderr, err)
				}
			}
		}()
	}
	err := v.Main(args...)
	if err == io.EOF {
		err = nil
	}
	if err != nil && !daemon {
		err = fmt.Errorf("%s: %w", name, err)
	}
	return err
}

func (g *Goes) lookup(name string) (cmd.Cmd, error) {
	if v, found := g.ByName[name]; found {
		return v, nil
	}
	return nil, fmt.Errorf("%s: not found", name)
}

func (g *Goes) apropos(args ...string) error {
	if len(args) == 0 {
		args = g.Names()
	}
	w := g.stdout()
	for _, name := range args {
		v, err := g.lookup(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%-16s%s\n", name, v.Apropos())
	}
	return nil
}

func (g *Goes) usage(args ...string) error {
	var u interface{ Usage() string } = g
	if len(args) > 0 {
		v, err := g.lookup(args[0])
		if err != nil {
			return err
		}
		u = v
	}
	fmt.Fprint(g.stdout(), "usage:\t", strings.TrimSpace(u.Usage()), "\n")
	return nil
}

func (g *Goes) man(args ...string) error {
	if len(args) == 0 {
		return g.usage()
	}
	v, err := g.lookup(args[0])
	if err != nil {
		return err
	}
	w := g.stdout()
	fmt.Fprint(w, "NAME\n\t", v, " - ", v.Apropos(), "\n\n",
		"USAGE\n\t", strings.TrimSpace(v.Usage()), "\n")
	if m, found := v.(manner); found {
		fmt.Fprintln(w, m.Man())
	}
	return nil
}
