// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package cmd

import (
	"reflect"
	"testing"

	"github.com/platinasystems/rtl8365mb/lang"
)

type testCmd struct{ closed bool }

func (*testCmd) Apropos() lang.Alt    { return lang.Alt{lang.EnUS: "test"} }
func (*testCmd) Main(...string) error { return nil }
func (*testCmd) String() string       { return "test" }
func (*testCmd) Usage() string        { return "test" }
func (*testCmd) Kind() Kind           { return Daemon }

func (c *testCmd) Close() error {
	c.closed = true
	return nil
}

func TestSwap(t *testing.T) {
	for _, x := range []struct {
		in, out []string
	}{
		{[]string{"rtl8365mb", "-help"}, []string{"help", "rtl8365mb"}},
		{[]string{"rtl8365mb", "--usage"}, []string{"usage", "rtl8365mb"}},
		{[]string{"rtl8365mb", "-sim"}, []string{"rtl8365mb", "-sim"}},
		{[]string{"rtl8365mb"}, []string{"rtl8365mb"}},
	} {
		Swap(x.in)
		if !reflect.DeepEqual(x.in, x.out) {
			t.Error("wrong:", x.in)
		}
	}
}

func TestKind(t *testing.T) {
	c := new(testCmd)
	k := WhatKind(c)
	if !k.IsDaemon() || k.IsInteractive() || k.String() != "daemon" {
		t.Error("wrong:", k)
	}
	if err := Close(c); err != nil || !c.closed {
		t.Error("wrong:", err, c.closed)
	}
}
