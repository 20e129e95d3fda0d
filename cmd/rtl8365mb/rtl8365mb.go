// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package rtl8365mb is the client of the switch daemon.
package rtl8365mb

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/platinasystems/atsock"
	"github.com/platinasystems/rtl8365mb/cmd/rtl8365mbd"
	"github.com/platinasystems/rtl8365mb/internal/goes"
	"github.com/platinasystems/rtl8365mb/lang"
)

const (
	Name    = "rtl8365mb"
	Apropos = "RTL8365MB switch controls"
)

type caller interface {
	Call(method string, args, reply interface{}) error
	Close() error
}

var (
	dial = func() (caller, error) {
		cl, err := atsock.NewRpcClient(rtl8365mbd.Name)
		if err != nil {
			return nil, err
		}
		return cl, nil
	}

	stdout io.Writer = os.Stdout

	isTerminal = func() bool {
		fd := os.Stdout.Fd()
		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
)

type command struct {
	name    string
	usage   string
	apropos string
	main    func(args []string) error
}

func (c *command) Apropos() lang.Alt         { return lang.Alt{lang.EnUS: c.apropos} }
func (c *command) Main(args ...string) error { return c.main(args) }
func (c *command) String() string            { return c.name }
func (c *command) Usage() string             { return c.usage }

func New() *goes.Goes {
	g := &goes.Goes{
		NAME:  Name,
		USAGE: Name + " COMMAND [ARGS]...",
		APROPOS: lang.Alt{
			lang.EnUS: Apropos,
		},
	}
	g.Plot(
		&command{
			name:    "vlan",
			usage:   "vlan add PORT VID [untagged] [pvid]\n\tvlan del PORT VID\n\tvlan filter PORT on|off",
			apropos: "change vlan membership and filtering",
			main:    vlan,
		},
		&command{
			name:    "ports",
			usage:   "ports",
			apropos: "list port state",
			main:    ports,
		},
		&command{
			name:    "stats",
			usage:   "stats PORT",
			apropos: "show port counters",
			main:    stats,
		},
		&command{
			name:    "ethtool",
			usage:   "ethtool PORT",
			apropos: "show all MIB counters of a port",
			main:    ethtool,
		},
		&command{
			name:    "mtu",
			usage:   "mtu PORT MTU",
			apropos: "set the cpu port MTU",
			main:    mtu,
		},
		&command{
			name:    "stp",
			usage:   "stp PORT {disabled|listening|learning|forwarding|blocking}",
			apropos: "set port spanning tree state",
			main:    stp,
		},
		&command{
			name:    "learning",
			usage:   "learning PORT on|off",
			apropos: "set port address learning",
			main:    learning,
		},
		&command{
			name:    "bridge",
			usage:   "bridge join|leave PORT BRIDGE",
			apropos: "change bridge membership",
			main:    bridge,
		},
		&command{
			name:    "phy",
			usage:   "phy read PHY REG\n\tphy write PHY REG VALUE",
			apropos: "access internal PHY registers",
			main:    phy,
		},
		&command{
			name:    "sim-link",
			usage:   "sim-link PORT up|down",
			apropos: "change the link of a simulated port",
			main:    simLink,
		},
	)
	return g
}

func call(method string, args, reply interface{}) error {
	cl, err := dial()
	if err != nil {
		return err
	}
	defer cl.Close()
	return cl.Call("Info."+method, args, reply)
}

func nargs(args []string, n int, what string) error {
	switch {
	case len(args) < n:
		return fmt.Errorf("%s: missing", what)
	case len(args) > n:
		return fmt.Errorf("%v: unexpected", args[n:])
	}
	return nil
}

func number(s, what string) (int, error) {
	i, err := strconv.ParseInt(s, 0, 0)
	if err != nil {
		return 0, fmt.Errorf("%s: %q invalid", what, s)
	}
	return int(i), nil
}

func onOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "enable":
		return true, nil
	case "off", "disable":
		return false, nil
	}
	return strconv.ParseBool(s)
}

// show prints aligned columns on a terminal and key: value lines otherwise.
func show(keys, values []string) {
	if !isTerminal() {
		for i, k := range keys {
			fmt.Fprint(stdout, k, ": ", values[i], "\n")
		}
		return
	}
	w := 0
	for _, k := range keys {
		if len(k) > w {
			w = len(k)
		}
	}
	for i, k := range keys {
		fmt.Fprintf(stdout, "%-*s  %s\n", w, k, values[i])
	}
}

func vlan(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("add|del|filter: missing")
	}
	op, args := args[0], args[1:]
	if len(args) < 2 {
		return fmt.Errorf("PORT VID: missing")
	}
	port, err := number(args[0], "PORT")
	if err != nil {
		return err
	}
	var reply int
	if op == "filter" {
		if err = nargs(args, 2, "PORT on|off"); err != nil {
			return err
		}
		enable, err := onOff(args[1])
		if err != nil {
			return err
		}
		return call("VlanFiltering", rtl8365mbd.PortBool{
			Port:   port,
			Enable: enable,
		}, &reply)
	}
	vid, err := number(args[1], "VID")
	if err != nil {
		return err
	}
	a := rtl8365mbd.VlanArgs{Port: port, VID: uint16(vid)}
	switch op {
	case "add":
		for _, opt := range args[2:] {
			switch opt {
			case "untagged":
				a.Untagged = true
			case "pvid":
				a.PVID = true
			default:
				return fmt.Errorf("%s: unexpected", opt)
			}
		}
		return call("VlanAdd", a, &reply)
	case "del":
		if err = nargs(args, 2, "PORT VID"); err != nil {
			return err
		}
		return call("VlanDel", a, &reply)
	}
	return fmt.Errorf("%s: unknown", op)
}

func ports(args []string) error {
	if err := nargs(args, 0, ""); err != nil {
		return err
	}
	var reply []rtl8365mbd.PortInfo
	if err := call("Ports", 0, &reply); err != nil {
		return err
	}
	if !isTerminal() {
		for _, p := range reply {
			pfx := fmt.Sprint("port.", p.Port, ".")
			fmt.Fprint(stdout, pfx, "name: ", p.Name, "\n",
				pfx, "link: ", p.Link, "\n",
				pfx, "pvid: ", p.PVID, "\n")
			if !p.CPU {
				fmt.Fprint(stdout, pfx, "stp: ", p.STP, "\n",
					pfx, "learning: ", p.Learning, "\n")
			}
		}
		return nil
	}
	fmt.Fprintf(stdout, "%-4s %-8s %-20s %-4s %-10s %s\n",
		"PORT", "NAME", "LINK", "PVID", "STP", "LEARNING")
	for _, p := range reply {
		stp, learn := "cpu", ""
		if !p.CPU {
			stp, learn = p.STP, strconv.FormatBool(p.Learning)
		}
		fmt.Fprintf(stdout, "%-4d %-8s %-20s %-4d %-10s %s\n",
			p.Port, p.Name, p.Link, p.PVID, stp, learn)
	}
	return nil
}

func portArg(args []string) (int, error) {
	if err := nargs(args, 1, "PORT"); err != nil {
		return 0, err
	}
	return number(args[0], "PORT")
}

func stats(args []string) error {
	port, err := portArg(args)
	if err != nil {
		return err
	}
	var reply []rtl8365mbd.Field
	if err = call("Stats", rtl8365mbd.PortArgs{Port: port}, &reply); err != nil {
		return err
	}
	keys := make([]string, len(reply))
	values := make([]string, len(reply))
	for i, f := range reply {
		keys[i] = f.Name
		values[i] = strconv.FormatUint(f.Value, 10)
	}
	show(keys, values)
	return nil
}

func ethtool(args []string) error {
	port, err := portArg(args)
	if err != nil {
		return err
	}
	var reply rtl8365mbd.EthtoolReply
	err = call("EthtoolStats", rtl8365mbd.PortArgs{Port: port}, &reply)
	if err != nil {
		return err
	}
	if len(reply.Names) != len(reply.Values) {
		return fmt.Errorf("%d names for %d counters", len(reply.Names),
			len(reply.Values))
	}
	values := make([]string, len(reply.Values))
	for i, v := range reply.Values {
		values[i] = strconv.FormatUint(v, 10)
	}
	show(reply.Names, values)
	return nil
}

func mtu(args []string) error {
	if err := nargs(args, 2, "PORT MTU"); err != nil {
		return err
	}
	port, err := number(args[0], "PORT")
	if err != nil {
		return err
	}
	n, err := number(args[1], "MTU")
	if err != nil {
		return err
	}
	var reply int
	return call("SetMTU", rtl8365mbd.MTUArgs{Port: port, MTU: n}, &reply)
}

func stp(args []string) error {
	if err := nargs(args, 2, "PORT STATE"); err != nil {
		return err
	}
	port, err := number(args[0], "PORT")
	if err != nil {
		return err
	}
	var reply int
	return call("SetSTP", rtl8365mbd.STPArgs{Port: port, State: args[1]},
		&reply)
}

func learning(args []string) error {
	if err := nargs(args, 2, "PORT on|off"); err != nil {
		return err
	}
	port, err := number(args[0], "PORT")
	if err != nil {
		return err
	}
	enable, err := onOff(args[1])
	if err != nil {
		return err
	}
	var reply int
	return call("SetLearning", rtl8365mbd.PortBool{
		Port:   port,
		Enable: enable,
	}, &reply)
}

func bridge(args []string) error {
	if err := nargs(args, 3, "join|leave PORT BRIDGE"); err != nil {
		return err
	}
	var method string
	switch args[0] {
	case "join":
		method = "BridgeJoin"
	case "leave":
		method = "BridgeLeave"
	default:
		return fmt.Errorf("%s: unknown", args[0])
	}
	port, err := number(args[1], "PORT")
	if err != nil {
		return err
	}
	br, err := number(args[2], "BRIDGE")
	if err != nil {
		return err
	}
	var reply int
	return call(method, rtl8365mbd.BridgeArgs{Port: port, Bridge: br},
		&reply)
}

func phy(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("read|write: missing")
	}
	op, args := args[0], args[1:]
	n := 2
	if op == "write" {
		n = 3
	} else if op != "read" {
		return fmt.Errorf("%s: unknown", op)
	}
	if err := nargs(args, n, "PHY REG"); err != nil {
		return err
	}
	var a rtl8365mbd.PhyArgs
	var err error
	if a.Phy, err = number(args[0], "PHY"); err != nil {
		return err
	}
	if a.Reg, err = number(args[1], "REG"); err != nil {
		return err
	}
	if op == "write" {
		v, err := strconv.ParseUint(args[2], 0, 16)
		if err != nil {
			return fmt.Errorf("VALUE: %q invalid", args[2])
		}
		a.Value = uint16(v)
		var reply int
		return call("PhyWrite", a, &reply)
	}
	var v uint16
	if err = call("PhyRead", a, &v); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%#04x\n", v)
	return nil
}

func simLink(args []string) error {
	if err := nargs(args, 2, "PORT up|down"); err != nil {
		return err
	}
	port, err := number(args[0], "PORT")
	if err != nil {
		return err
	}
	var up bool
	switch args[1] {
	case "up":
		up = true
	case "down":
	default:
		return fmt.Errorf("%s: not up or down", args[1])
	}
	var reply int
	return call("SimLink", rtl8365mbd.SimLinkArgs{Port: port, Up: up},
		&reply)
}
