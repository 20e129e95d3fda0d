// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package swconfig

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/platinasystems/rtl8365mb/internal/rtl8365mb"
	"periph.io/x/conn/v3/physic"
)

const board = `
bus:
  mdc: "24"
  mdio: "25"
  reset: SWITCH_RST_L
  interrupt: "27"
  clock: 2MHz
interrupt-trigger: falling
tag-protocol: rtl8_4t
trap-port: 7
poll-interval: 500ms
ports:
  - port: 0
    name: lan1
  - port: 1
    name: lan2
  - port: 6
    name: cpu
    cpu: true
    phy-mode: rgmii-id
    rx-internal-delay-ps: 1500
    tx-internal-delay-ps: 2000
    fixed-link:
      speed: 1000
      full-duplex: true
      pause: true
  - port: 7
    cpu: true
    phy-mode: rgmii
vlans:
  - vid: 10
    ports: [0, 1, 6]
    untagged: [0, 1]
    pvid: [0]
`

func TestDecode(t *testing.T) {
	b, err := Decode(strings.NewReader(board))
	if err != nil {
		t.Fatal(err)
	}
	if b.PollInterval != 500*time.Millisecond {
		t.Error("wrong:", b.PollInterval)
	}
	if f, err := b.Clock(); err != nil || f != 2*physic.MegaHertz {
		t.Error("wrong:", f, err)
	}
	if tr, err := b.InterruptTrigger(); err != nil ||
		tr != rtl8365mb.TriggerFalling {
		t.Error("wrong:", tr, err)
	}
	if p, err := Pin(b.Bus.MDC); err != nil || p != 24 {
		t.Error("wrong:", p, err)
	}
	if _, err := Pin("NO_SUCH_PIN"); !errors.Is(err, ErrNoPin) {
		t.Error("wrong:", err)
	}

	cfg, err := b.Config()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CPUPorts != 0xc0 || cfg.UserPorts != 0x03 {
		t.Errorf("wrong: %#x %#x", cfg.CPUPorts, cfg.UserPorts)
	}
	if cfg.TagProtocol != rtl8365mb.TagRTL8_4T {
		t.Error("wrong:", cfg.TagProtocol)
	}
	if cfg.TrapPort == nil || *cfg.TrapPort != 7 {
		t.Error("wrong:", cfg.TrapPort)
	}
	p6 := cfg.Ports[6]
	if p6.PhyMode != rtl8365mb.PhyModeRGMIIID ||
		p6.Delay.Rx == nil || *p6.Delay.Rx != 1500 ||
		p6.Delay.Tx == nil || *p6.Delay.Tx != 2000 {
		t.Error("wrong:", p6)
	}
	if cfg.Ports[0].PhyMode != rtl8365mb.PhyModeInternal {
		t.Error("wrong:", cfg.Ports[0].PhyMode)
	}

	l, ok := b.Ports[2].Link()
	expect := rtl8365mb.Link{
		Up:      true,
		Speed:   1000,
		Duplex:  rtl8365mb.DuplexFull,
		TxPause: true,
		RxPause: true,
	}
	if !ok || !reflect.DeepEqual(l, expect) {
		t.Error("wrong:", l)
	}
	if _, ok = b.Ports[0].Link(); ok {
		t.Error("port 0 has no fixed link")
	}

	v := &b.Vlans[0]
	for port, flags := range map[int]rtl8365mb.VlanFlags{
		0: rtl8365mb.VlanUntagged | rtl8365mb.VlanPVID,
		1: rtl8365mb.VlanUntagged,
		6: 0,
	} {
		if f := v.Flags(port); f != flags {
			t.Error("wrong:", port, f)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	for _, x := range []struct {
		name, yaml string
	}{
		{"unknown key", "bus: {mdc: 1, mdio: 2}\nspeed: 3\n"},
		{"no mdio", "bus: {mdc: 1}\n"},
		{"clock", "bus: {mdc: 1, mdio: 2, clock: fast}\n"},
		{"trigger", "bus: {mdc: 1, mdio: 2}\ninterrupt-trigger: edge\n"},
		{"tag", "bus: {mdc: 1, mdio: 2}\ntag-protocol: dsa\n"},
		{"port", "bus: {mdc: 1, mdio: 2}\nports: [{port: 11}]\n"},
		{"duplicate", "bus: {mdc: 1, mdio: 2}\nports: [{port: 1}, {port: 1}]\n"},
		{"vid", "bus: {mdc: 1, mdio: 2}\nports: [{port: 1}]\n" +
			"vlans: [{vid: 4096, ports: [1]}]\n"},
		{"member", "bus: {mdc: 1, mdio: 2}\nports: [{port: 1}]\n" +
			"vlans: [{vid: 2, ports: [1, 2]}]\n"},
		{"pvid", "bus: {mdc: 1, mdio: 2}\nports: [{port: 1}, {port: 2}]\n" +
			"vlans: [{vid: 2, ports: [1], pvid: [2]}]\n"},
	} {
		if _, err := Decode(strings.NewReader(x.yaml)); err == nil {
			t.Error(x.name, "accepted")
		}
	}
}

func TestDefault(t *testing.T) {
	b := Default()
	if err := b.Validate(); err != nil {
		t.Fatal(err)
	}
	cfg, err := b.Config()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CPUPorts != 0x40 || cfg.UserPorts != 0x1f {
		t.Errorf("wrong: %#x %#x", cfg.CPUPorts, cfg.UserPorts)
	}
	if f, err := b.Clock(); err != nil || f <= 0 {
		t.Error("wrong:", f, err)
	}
	buf, err := b.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	again, err := Decode(bytes.NewReader(buf))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(b, again) {
		t.Errorf("wrong:\n%s", buf)
	}
}

func TestLoad(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "rtl8365mb.yaml")
	if err := os.WriteFile(fn, []byte(board), 0644); err != nil {
		t.Fatal(err)
	}
	b, err := Load(fn)
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Ports) != 4 {
		t.Error("wrong:", b.Ports)
	}
	if _, err = Load(fn + ".missing"); err == nil {
		t.Error("loaded a missing file")
	}
}
