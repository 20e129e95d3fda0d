// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package rtl8365mb

import (
	"errors"
	"testing"

	"github.com/platinasystems/rtl8365mb/internal/swsim"
)

func TestPhyReadWrite(t *testing.T) {
	c, sim := setupTestChip(t, testConfig())
	sim.SetPhy(1, 2, 0x001c)
	if v, err := c.PhyRead(1, 2); err != nil || v != 0x001c {
		t.Error("wrong:", v, err)
	}
	if err := c.PhyWrite(4, 0, 0x1140); err != nil {
		t.Fatal(err)
	}
	if v := sim.Phy(4, 0); v != 0x1140 {
		t.Errorf("wrong: %#04x", v)
	}
	sim.PhyBusyPolls = 1
	if err := c.PhyWrite(MaxPhy, MaxPhyReg, 0xbeef); err != nil {
		t.Fatal(err)
	}
	if v, err := c.PhyRead(MaxPhy, MaxPhyReg); err != nil || v != 0xbeef {
		t.Error("wrong:", v, err)
	}
}

func TestPhyInvalid(t *testing.T) {
	c, _ := setupTestChip(t, testConfig())
	for _, x := range [][2]int{{MaxPhy + 1, 0}, {0, MaxPhyReg + 1}, {-1, 0}} {
		if _, err := c.PhyRead(x[0], x[1]); !errors.Is(err, ErrInvalid) {
			t.Error(x, "wrong:", err)
		}
		if err := c.PhyWrite(x[0], x[1], 0); !errors.Is(err, ErrInvalid) {
			t.Error(x, "wrong:", err)
		}
	}
}

func TestPhyErrorUnlocks(t *testing.T) {
	c, sim := setupTestChip(t, testConfig())
	sim.Fail = func(op swsim.Op, reg uint16) error {
		if reg == regPhyReadData {
			return swsim.ErrInjected
		}
		return nil
	}
	if _, err := c.PhyRead(0, 1); !errors.Is(err, swsim.ErrInjected) {
		t.Error("wrong:", err)
	}
	sim.Fail = nil
	// bus lock was released
	if _, err := c.PhyRead(0, 1); err != nil {
		t.Error("wrong:", err)
	}
}

func TestPhyLink(t *testing.T) {
	c, sim := setupTestChip(t, testConfig())
	for _, x := range []struct {
		sr   uint16
		link Link
	}{
		{0, Link{}},
		{phySRLink | phySRDuplex | 2<<4, Link{Up: true, Speed: 1000, Duplex: DuplexFull}},
		{phySRLink | 1<<4, Link{Up: true, Speed: 100, Duplex: DuplexHalf}},
		{phySRLink | phySRDuplex, Link{Up: true, Speed: 10, Duplex: DuplexFull}},
	} {
		sim.SetPhy(3, phyRegSR, x.sr)
		l, err := c.PhyLink(3)
		if err != nil || l != x.link {
			t.Errorf("%#04x: %v %v", x.sr, l, err)
		}
	}
}
