// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package rtl8365mb

import (
	"errors"
	"reflect"
	"testing"

	"github.com/platinasystems/rtl8365mb/internal/swsim"
)

func setupVlanChip(t *testing.T) (*Chip, *swsim.Sim) {
	return setupTestChip(t, Config{CPUPorts: 1 << 8, UserPorts: 0x0ff})
}

func TestVlanAddPVID(t *testing.T) {
	c, sim := setupVlanChip(t)
	if err := c.VlanAdd(2, 10, VlanPVID); err != nil {
		t.Fatal(err)
	}
	if pvid, err := c.PVID(2); err != nil || pvid != 1 {
		t.Error("wrong pvid:", pvid, err)
	}
	if v := sim.Reg(regVlanPVIDCtrl+1) & 0xff; v != 1 {
		t.Errorf("wrong pvid register: %#04x", v)
	}
	v4k, err := c.ReadVlan4K(10)
	if err != nil {
		t.Fatal(err)
	}
	if v4k.Member&(1<<2) == 0 || v4k.Untag&(1<<2) != 0 {
		t.Error("wrong:", v4k)
	}
	mc, err := c.ReadVlanMC(1)
	if err != nil {
		t.Fatal(err)
	}
	if want := (VlanMC{Slot: 1, VID: 10, Member: 1 << 2}); mc != want {
		t.Error("wrong:", mc)
	}
	if ft, _ := c.AcceptFrame(2); ft != FrameAny {
		t.Error("wrong:", ft)
	}
}

func TestVlanUntagged(t *testing.T) {
	c, _ := setupVlanChip(t)
	if err := c.VlanAdd(3, 20, VlanUntagged); err != nil {
		t.Fatal(err)
	}
	v4k, _ := c.ReadVlan4K(20)
	if v4k.Member != 1<<3 || v4k.Untag != 1<<3 {
		t.Error("wrong:", v4k)
	}
	// no slot without a pvid
	for slot := 1; slot < vlanMCSlots; slot++ {
		if mc, _ := c.ReadVlanMC(slot); mc.VID != 0 {
			t.Error("allocated:", mc)
		}
	}
	// upper ports use the second word
	if err := c.VlanAdd(10, 20, VlanUntagged); err != nil {
		t.Fatal(err)
	}
	v4k, _ = c.ReadVlan4K(20)
	if v4k.Member != 1<<3|1<<10 || v4k.Untag != 1<<3|1<<10 {
		t.Error("wrong:", v4k)
	}
}

func TestVlanSlotSeed(t *testing.T) {
	c, _ := setupVlanChip(t)
	if err := c.VlanAdd(1, 30, 0); err != nil {
		t.Fatal(err)
	}
	if err := c.VlanAdd(4, 30, VlanPVID|VlanUntagged); err != nil {
		t.Fatal(err)
	}
	mc, _ := c.ReadVlanMC(1)
	if mc.VID != 30 || mc.Member != 1<<1|1<<4 {
		t.Error("wrong:", mc)
	}
	// existing slot is reused
	if err := c.VlanAdd(5, 30, VlanPVID); err != nil {
		t.Fatal(err)
	}
	if mc, _ = c.ReadVlanMC(1); mc.Member != 1<<1|1<<4|1<<5 {
		t.Error("wrong:", mc)
	}
	if mc, _ = c.ReadVlanMC(2); mc.VID != 0 {
		t.Error("second slot:", mc)
	}
}

func snapshotVlan(sim *swsim.Sim, vid uint16) []uint16 {
	var s []uint16
	s = append(s, sim.Row(uint16(TableCVLAN), vid)...)
	for slot := 0; slot < vlanMCSlots; slot++ {
		for i := uint16(0); i < vlanMCWords; i++ {
			s = append(s, sim.Reg(vlanMCReg(slot)+i))
		}
	}
	return s
}

func TestVlanAddDel(t *testing.T) {
	c, sim := setupVlanChip(t)
	for _, flags := range []VlanFlags{0, VlanUntagged, VlanPVID,
		VlanPVID | VlanUntagged} {
		for _, port := range []int{0, 7, 8} {
			before := snapshotVlan(sim, 40)
			if err := c.VlanAdd(port, 40, flags); err != nil {
				t.Fatal(err)
			}
			if err := c.VlanDel(port, 40); err != nil {
				t.Fatal(err)
			}
			if after := snapshotVlan(sim, 40); !reflect.DeepEqual(before, after) {
				t.Error(port, flags, "not restored")
			}
		}
	}
}

func TestVlanDelKeepsShared(t *testing.T) {
	c, _ := setupVlanChip(t)
	c.VlanAdd(1, 50, VlanPVID)
	c.VlanAdd(2, 50, VlanPVID)
	if err := c.VlanDel(1, 50); err != nil {
		t.Fatal(err)
	}
	mc, _ := c.ReadVlanMC(1)
	if mc.VID != 50 || mc.Member != 1<<2 {
		t.Error("wrong:", mc)
	}
	// only the cpu port left frees the slot
	c.VlanAdd(8, 50, 0)
	c.VlanDel(2, 50)
	if mc, _ = c.ReadVlanMC(1); mc != (VlanMC{Slot: 1}) {
		t.Error("not freed:", mc)
	}
}

func TestVlanSlotsExhausted(t *testing.T) {
	c, sim := setupVlanChip(t)
	for slot := 1; slot < vlanMCSlots; slot++ {
		sim.SetReg(vlanMCReg(slot)+3, uint16(100+slot))
	}
	before := sim.Row(uint16(TableCVLAN), 60)
	err := c.VlanAdd(2, 60, VlanPVID)
	if !errors.Is(err, ErrNoSpace) {
		t.Error("wrong:", err)
	}
	if after := sim.Row(uint16(TableCVLAN), 60); !reflect.DeepEqual(before, after) {
		t.Error("vlan 60 left changed:", after)
	}
	if pvid, _ := c.PVID(2); pvid != 0 {
		t.Error("wrong pvid:", pvid)
	}
	// without a pvid no slot is needed
	if err = c.VlanAdd(2, 60, 0); err != nil {
		t.Error("wrong:", err)
	}
}

func TestVlanFrameType(t *testing.T) {
	c, _ := setupVlanChip(t)
	const port = 3
	set := func(ft FrameType) {
		if err := frameTypeField(port).Write(c.m, uint(ft)); err != nil {
			t.Fatal(err)
		}
	}
	check := func(what string, want FrameType) {
		t.Helper()
		if ft, err := c.AcceptFrame(port); err != nil || ft != want {
			t.Error(what, "wrong:", ft, err)
		}
	}
	set(FrameTaggedOnly)
	c.VlanAdd(port, 70, 0)
	check("non-pvid add", FrameTaggedOnly)
	c.VlanAdd(port, 71, VlanPVID)
	check("pvid add", FrameAny)
	c.VlanDel(port, 70)
	check("non-pvid del", FrameAny)
	c.VlanDel(port, 71)
	check("pvid del", FrameTaggedOnly)

	set(FrameUntaggedOnly)
	c.VlanAdd(port, 72, VlanPVID)
	check("untagged-only add", FrameUntaggedOnly)
	c.VlanDel(port, 72)
	check("untagged-only del", FrameUntaggedOnly)
}

func TestVlanRange(t *testing.T) {
	c, _ := setupVlanChip(t)
	for _, vid := range []uint16{MaxVID + 1, MaxMCVID} {
		if err := c.VlanAdd(1, vid, VlanPVID); !errors.Is(err, ErrInvalid) {
			t.Error(vid, "wrong:", err)
		}
	}
	if err := c.VlanAdd(MaxPorts, 1, 0); !errors.Is(err, ErrInvalid) {
		t.Error("wrong:", err)
	}
}

func TestVlanFiltering(t *testing.T) {
	c, sim := setupVlanChip(t)
	c.VlanFiltering(1, true)
	c.VlanFiltering(9, true)
	c.VlanFiltering(1, false)
	if v := sim.Reg(regVlanIngress); v != 1<<9 {
		t.Errorf("wrong: %#04x", v)
	}
}

func TestVlanFamilyD(t *testing.T) {
	sim := swsim.New(0x6642, 0x0010)
	c := newTestChip(t, sim, Config{CPUPorts: 1 << 7, UserPorts: 0x3f})
	if err := c.Setup(nil); err != nil {
		t.Fatal(err)
	}
	defer c.Teardown()
	if err := c.VlanAdd(5, 80, VlanPVID); err != nil {
		t.Fatal(err)
	}
	if v := sim.Reg(regVlanPVIDCtrl + 5); v != 1 {
		t.Errorf("wrong: %#04x", v)
	}
	if pvid, _ := c.PVID(5); pvid != 1 {
		t.Error("wrong:", pvid)
	}
}
