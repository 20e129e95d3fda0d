// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package rtl8365mb

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/platinasystems/rtl8365mb/cmd/rtl8365mbd"
)

type fakeClient struct {
	method string
	args   interface{}
	closed bool
}

func (c *fakeClient) Call(method string, args, reply interface{}) error {
	c.method, c.args = method, args
	switch r := reply.(type) {
	case *uint16:
		*r = 0x796d
	case *[]rtl8365mbd.Field:
		*r = []rtl8365mbd.Field{{Name: "rx_packets", Value: 12}, {Name: "tx_bytes", Value: 3456}}
	case *rtl8365mbd.EthtoolReply:
		r.Names = []string{"ifInOctets", "dot3StatsFCSErrors"}
		r.Values = []uint64{1, 2}
	case *[]rtl8365mbd.PortInfo:
		*r = []rtl8365mbd.PortInfo{
			{Port: 0, Name: "lan1", Link: "down", PVID: 1, STP: "disabled"},
			{Port: 6, Name: "cpu", CPU: true, Link: "1000Mb/s full"},
		}
	}
	return nil
}

func (c *fakeClient) Close() error {
	c.closed = true
	return nil
}

func fake(terminal bool) (*fakeClient, *bytes.Buffer) {
	cl := new(fakeClient)
	out := new(bytes.Buffer)
	dial = func() (caller, error) { return cl, nil }
	stdout = out
	isTerminal = func() bool { return terminal }
	return cl, out
}

func TestCalls(t *testing.T) {
	g := New()
	for _, x := range []struct {
		args   []string
		method string
		arg    interface{}
	}{
		{
			[]string{"vlan", "add", "1", "10", "untagged", "pvid"},
			"Info.VlanAdd",
			rtl8365mbd.VlanArgs{Port: 1, VID: 10, Untagged: true, PVID: true},
		},
		{
			[]string{"vlan", "del", "1", "0x10"},
			"Info.VlanDel",
			rtl8365mbd.VlanArgs{Port: 1, VID: 16},
		},
		{
			[]string{"vlan", "filter", "2", "on"},
			"Info.VlanFiltering",
			rtl8365mbd.PortBool{Port: 2, Enable: true},
		},
		{
			[]string{"mtu", "6", "9000"},
			"Info.SetMTU",
			rtl8365mbd.MTUArgs{Port: 6, MTU: 9000},
		},
		{
			[]string{"stp", "3", "forwarding"},
			"Info.SetSTP",
			rtl8365mbd.STPArgs{Port: 3, State: "forwarding"},
		},
		{
			[]string{"learning", "3", "off"},
			"Info.SetLearning",
			rtl8365mbd.PortBool{Port: 3},
		},
		{
			[]string{"bridge", "join", "3", "1"},
			"Info.BridgeJoin",
			rtl8365mbd.BridgeArgs{Port: 3, Bridge: 1},
		},
		{
			[]string{"bridge", "leave", "3", "1"},
			"Info.BridgeLeave",
			rtl8365mbd.BridgeArgs{Port: 3, Bridge: 1},
		},
		{
			[]string{"phy", "write", "1", "0", "0x1140"},
			"Info.PhyWrite",
			rtl8365mbd.PhyArgs{Phy: 1, Reg: 0, Value: 0x1140},
		},
		{
			[]string{"sim-link", "2", "up"},
			"Info.SimLink",
			rtl8365mbd.SimLinkArgs{Port: 2, Up: true},
		},
	} {
		cl, _ := fake(false)
		if err := g.Main(x.args...); err != nil {
			t.Error(x.args, err)
			continue
		}
		if cl.method != x.method || !reflect.DeepEqual(cl.args, x.arg) {
			t.Error(x.args, "wrong:", cl.method, cl.args)
		}
		if !cl.closed {
			t.Error(x.args, "not closed")
		}
	}
}

func TestBadArgs(t *testing.T) {
	g := New()
	for _, args := range [][]string{
		{"vlan"},
		{"vlan", "add", "1"},
		{"vlan", "add", "x", "10"},
		{"vlan", "add", "1", "10", "tagged"},
		{"vlan", "del", "1", "10", "pvid"},
		{"vlan", "move", "1", "10"},
		{"vlan", "filter", "1", "maybe"},
		{"mtu", "6"},
		{"stats"},
		{"stats", "1", "2"},
		{"bridge", "swap", "1", "2"},
		{"phy", "read", "1"},
		{"phy", "write", "1", "2", "0x10000"},
		{"phy", "erase", "1", "2"},
		{"sim-link", "1", "sideways"},
		{"ports", "all"},
	} {
		cl, _ := fake(false)
		if err := g.Main(args...); err == nil {
			t.Error(args, "accepted")
		}
		if len(cl.method) > 0 {
			t.Error(args, "called", cl.method)
		}
	}
}

func TestDialError(t *testing.T) {
	fake(false)
	dial = func() (caller, error) { return nil, errors.New("no daemon") }
	if err := New().Main("mtu", "6", "1500"); err == nil {
		t.Error("no error without a daemon")
	}
}

func TestOutput(t *testing.T) {
	g := New()
	_, out := fake(false)
	if err := g.Main("stats", "1"); err != nil {
		t.Fatal(err)
	}
	if s := out.String(); s != "rx_packets: 12\ntx_bytes: 3456\n" {
		t.Errorf("wrong: %q", s)
	}

	_, out = fake(true)
	if err := g.Main("stats", "1"); err != nil {
		t.Fatal(err)
	}
	if s := out.String(); s != "rx_packets  12\ntx_bytes    3456\n" {
		t.Errorf("wrong: %q", s)
	}

	_, out = fake(false)
	if err := g.Main("ethtool", "1"); err != nil {
		t.Fatal(err)
	}
	if s := out.String(); s != "ifInOctets: 1\ndot3StatsFCSErrors: 2\n" {
		t.Errorf("wrong: %q", s)
	}

	_, out = fake(false)
	if err := g.Main("phy", "read", "1", "2"); err != nil {
		t.Fatal(err)
	}
	if s := out.String(); s != "0x796d\n" {
		t.Errorf("wrong: %q", s)
	}

	_, out = fake(false)
	if err := g.Main("ports"); err != nil {
		t.Fatal(err)
	}
	expect := "port.0.name: lan1\nport.0.link: down\nport.0.pvid: 1\n" +
		"port.0.stp: disabled\nport.0.learning: false\n" +
		"port.6.name: cpu\nport.6.link: 1000Mb/s full\nport.6.pvid: 0\n"
	if s := out.String(); s != expect {
		t.Errorf("wrong: %q", s)
	}
}
