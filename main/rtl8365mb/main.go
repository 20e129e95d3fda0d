// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// This is the switch daemon and its client in one program; link or invoke
// it as either name.
package main

import (
	"fmt"
	"os"

	"github.com/platinasystems/rtl8365mb/cmd/rtl8365mb"
	"github.com/platinasystems/rtl8365mb/cmd/rtl8365mbd"
	"github.com/platinasystems/rtl8365mb/internal/goes"
	"github.com/platinasystems/rtl8365mb/lang"
)

func main() {
	g := &goes.Goes{
		NAME: "rtl8365mb-goes",
		APROPOS: lang.Alt{
			lang.EnUS: "RTL8365MB switch daemon and client",
		},
	}
	g.Plot(rtl8365mbd.New(), rtl8365mb.New())
	if err := g.Main(g.Args()...); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
