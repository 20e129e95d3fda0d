// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package rtl8365mb

import (
	"errors"
	"testing"
	"time"

	"github.com/platinasystems/rtl8365mb/internal/regmap"
	"github.com/platinasystems/rtl8365mb/internal/swsim"
)

func testConfig() Config {
	cfg := Config{
		CPUPorts:  1 << 6,
		UserPorts: 0x3f,
	}
	tx, rx := 2000, 1500
	cfg.Ports[6] = PortConfig{
		PhyMode: PhyModeRGMII,
		Delay:   RGMIIDelay{Rx: &rx, Tx: &tx},
	}
	return cfg
}

func newTestChip(t *testing.T, sim *swsim.Sim, cfg Config) *Chip {
	c, err := New(regmap.New(sim), cfg)
	if err != nil {
		t.Fatal(err)
	}
	c.resetDelay = 0
	c.statsInterval = time.Millisecond
	return c
}

func setupTestChip(t *testing.T, cfg Config) (*Chip, *swsim.Sim) {
	sim := swsim.NewRTL8365MBVC()
	c := newTestChip(t, sim, cfg)
	if err := c.Setup(nil); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Teardown)
	return c, sim
}

func TestSetup(t *testing.T) {
	c, sim := setupTestChip(t, testConfig())
	for _, x := range []struct {
		name string
		reg  uint16
		mask uint16
		want uint16
	}{
		{"cpu mask", regCPUPortMask, 0xffff, 0x0040},
		// enable, 64 byte rx, trap port 6
		{"cpu ctrl", regCPUCtrl, 0xffff, 0x00b1},
		{"cpu isolation", regIsolation + 6, 0xffff, 0x003f},
		{"user isolation", regIsolation + 0, 0xffff, 0x0040},
		{"user isolation", regIsolation + 5, 0xffff, 0x0040},
		{"unused isolation", regIsolation + 8, 0xffff, 0},
		{"learning", regLearnLimit + 3, 0xffff, 0},
		{"stp", regMSTICtrl, 0xffff, 0},
		{"max len", regMaxLen, 0x3fff, 1522},
		{"vlan", regVlanCtrl, vlanCtrlEnable, vlanCtrlEnable},
		{"rgmii delay", regRGMXF[1], 0x000f, 0x000d},
		{"rgmii select", regExtSelect1, 0x00f0, 0x0010},
		{"irq", regIntrCtrl, intrLinkChange, 0},
	} {
		if v := sim.Reg(x.reg) & x.mask; v != x.want {
			t.Errorf("%s %#04x: %#04x != %#04x", x.name, x.reg, v,
				x.want)
		}
	}
	if row := sim.Row(uint16(TableCVLAN), 0); row[0] != 0x4040 {
		t.Errorf("vlan 0: %#04x", row[0])
	}
	if c.TrapPort() != 6 || !c.IsCPUPort(6) || c.IsCPUPort(0) {
		t.Error("wrong cpu:", c.TrapPort(), c.CPUMask())
	}
	if c.HasIrq() {
		t.Error("irq without parent")
	}
}

func TestSetupTrapPort(t *testing.T) {
	cfg := testConfig()
	cfg.CPUPorts |= 1 << 7
	cfg.TagProtocol = TagRTL8_4T
	trap := 7
	cfg.TrapPort = &trap
	c, sim := setupTestChip(t, cfg)
	v := sim.Reg(regCPUCtrl)
	if got := cpuCtrlTrapPort.Get(v); got != 7 {
		t.Error("wrong trap port:", got)
	}
	if cpuCtrlTagPos.Get(v) != cpuPosBeforeCRC || c.TagProtocol() != TagRTL8_4T {
		t.Errorf("wrong position: %#04x", v)
	}
}

func TestSetupResetTimeout(t *testing.T) {
	sim := swsim.NewRTL8365MBVC()
	c := newTestChip(t, sim, testConfig())
	sim.ResetPolls = 1 << 30
	err := c.Setup(nil)
	if !errors.Is(err, ErrTimeout) {
		t.Error("wrong:", err)
	}
}

func TestSetupJamFailure(t *testing.T) {
	sim := swsim.NewRTL8365MBVC()
	c := newTestChip(t, sim, testConfig())
	sim.Fail = func(op swsim.Op, reg uint16) error {
		if op == swsim.Write && reg == jamCommon[0].reg {
			return swsim.ErrInjected
		}
		return nil
	}
	if err := c.Setup(nil); !errors.Is(err, swsim.ErrInjected) {
		t.Error("wrong:", err)
	}
}

func TestSetupUnwindsIrq(t *testing.T) {
	sim := swsim.NewRTL8365MBVC()
	c := newTestChip(t, sim, testConfig())
	p := &testParent{trigger: TriggerLow}
	sim.Fail = func(op swsim.Op, reg uint16) error {
		if op == swsim.Write && reg == regCPUCtrl {
			return swsim.ErrInjected
		}
		return nil
	}
	if err := c.Setup(p); !errors.Is(err, swsim.ErrInjected) {
		t.Fatal("wrong:", err)
	}
	if p.handler != nil || !p.freed || c.HasIrq() {
		t.Error("irq not torn down")
	}
}

func TestConfigValidate(t *testing.T) {
	bad := 11
	for i, cfg := range []Config{
		{CPUPorts: 1, UserPorts: 1},
		{CPUPorts: 1 << 11},
		{CPUPorts: 1, TrapPort: &bad},
		{CPUPorts: 1, TagProtocol: 9},
	} {
		_, err := New(regmap.New(swsim.NewRTL8365MBVC()), cfg)
		if err == nil {
			t.Error(i, "accepted")
		}
	}
}
