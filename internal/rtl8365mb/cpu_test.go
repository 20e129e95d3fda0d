// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package rtl8365mb

import (
	"errors"
	"testing"

	"github.com/platinasystems/rtl8365mb/internal/swsim"
)

func TestChangeTagProtocol(t *testing.T) {
	c, sim := setupTestChip(t, testConfig())
	if c.TagProtocol() != TagRTL8_4 {
		t.Error("wrong:", c.TagProtocol())
	}
	if err := c.ChangeTagProtocol(TagRTL8_4T); err != nil {
		t.Fatal(err)
	}
	if v := sim.Reg(regCPUCtrl); v != 0x00f1 {
		t.Errorf("wrong: %#04x", v)
	}
	if c.TagProtocol() != TagRTL8_4T {
		t.Error("wrong:", c.TagProtocol())
	}
	if err := c.ChangeTagProtocol(TagProtocol(5)); !errors.Is(err, ErrUnsupported) {
		t.Error("wrong:", err)
	}

	sim.Fail = func(op swsim.Op, reg uint16) error {
		if op == swsim.Write && reg == regCPUCtrl {
			return swsim.ErrInjected
		}
		return nil
	}
	if err := c.ChangeTagProtocol(TagRTL8_4); err == nil {
		t.Error("no error")
	}
	sim.Fail = nil
	if c.TagProtocol() != TagRTL8_4T {
		t.Error("not restored:", c.TagProtocol())
	}
}

func TestParseTagProtocol(t *testing.T) {
	for _, p := range []TagProtocol{TagRTL8_4, TagRTL8_4T} {
		if got, err := ParseTagProtocol(p.String()); err != nil || got != p {
			t.Error("wrong:", p, got, err)
		}
	}
	if _, err := ParseTagProtocol("rtl4a"); !errors.Is(err, ErrUnsupported) {
		t.Error("wrong:", err)
	}
}
