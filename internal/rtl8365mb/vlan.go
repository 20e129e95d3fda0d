// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package rtl8365mb

import (
	"fmt"

	"github.com/platinasystems/rtl8365mb/internal/regmap"
)

type VlanFlags uint8

const (
	VlanUntagged VlanFlags = 1 << iota
	VlanPVID
)

func (f VlanFlags) String() string {
	s := "tagged"
	if f&VlanUntagged != 0 {
		s = "untagged"
	}
	if f&VlanPVID != 0 {
		s += ",pvid"
	}
	return s
}

// FrameType is the port's accepted frame type.
type FrameType uint16

const (
	FrameAny FrameType = iota
	FrameTaggedOnly
	FrameUntaggedOnly
)

func (t FrameType) String() string {
	switch t {
	case FrameAny:
		return "any"
	case FrameTaggedOnly:
		return "tagged-only"
	case FrameUntaggedOnly:
		return "untagged-only"
	}
	return fmt.Sprint("frame-type(", uint16(t), ")")
}

// Vlan4K is an entry of the by-ID VLAN table.
type Vlan4K struct {
	VID    uint16
	Member uint16
	Untag  uint16
	FID    uint16
}

func (v *Vlan4K) decode(buf []uint16) {
	v.Member = vlan4KMembersLS.Get(buf[0]) |
		vlan4KMembersMS.Get(buf[2])<<vlan4KMembersLS.Width()
	v.Untag = vlan4KUntagLS.Get(buf[0]) |
		vlan4KUntagMS.Get(buf[2])<<vlan4KUntagLS.Width()
	v.FID = vlan4KFID.Get(buf[1])
}

// encode leaves the bits it doesn't model as they were.
func (v *Vlan4K) encode(buf []uint16) {
	set := func(i int, f regmap.Field, x uint16) {
		buf[i] = buf[i]&^uint16(f) | f.Prep(x)
	}
	set(0, vlan4KMembersLS, v.Member)
	set(2, vlan4KMembersMS, v.Member>>vlan4KMembersLS.Width())
	set(0, vlan4KUntagLS, v.Untag)
	set(2, vlan4KUntagMS, v.Untag>>vlan4KUntagLS.Width())
	set(1, vlan4KFID, v.FID)
}

// VlanMC is one of the member configuration slots a port PVID refers to.
type VlanMC struct {
	Slot     int
	VID      uint16
	Member   uint16
	FID      uint16
	Priority uint16
}

func (v *VlanMC) decode(buf []uint16) {
	v.Member = vlanMCMembers.Get(buf[0])
	v.FID = vlanMCFID.Get(buf[1])
	v.Priority = vlanMCPriority.Get(buf[2])
	v.VID = vlanMCEVID.Get(buf[3])
}

func (v *VlanMC) encode(buf []uint16) {
	set := func(i int, f regmap.Field, x uint16) {
		buf[i] = buf[i]&^uint16(f) | f.Prep(x)
	}
	set(0, vlanMCMembers, v.Member)
	set(1, vlanMCFID, v.FID)
	set(2, vlanMCPriority, v.Priority)
	set(3, vlanMCEVID, v.VID)
}

func vlanMCReg(slot int) uint16 {
	return regVlanMC + vlanMCWords*uint16(slot)
}

func (c *Chip) pvidField(port int) regmap.RegField {
	if c.Info.FamilyC() {
		return regmap.RegField{
			Reg:   regVlanPVIDCtrl + uint16(port>>1),
			Field: pvidCField << (uint(port&1) * 8),
		}
	}
	return regmap.RegField{
		Reg:   regVlanPVIDCtrl + uint16(port),
		Field: pvidDField,
	}
}

func frameTypeField(port int) regmap.RegField {
	return regmap.RegField{
		Reg:   regVlanFrameType + uint16(port>>3),
		Field: regmap.Field(0x3) << (uint(port&7) * 2),
	}
}

func (c *Chip) ReadVlan4K(vid uint16) (Vlan4K, error) {
	v := Vlan4K{VID: vid}
	if vid > MaxVID {
		return v, fmt.Errorf("vlan %d: %w", vid, ErrInvalid)
	}
	buf := make([]uint16, vlan4KWords)
	if err := c.TableRead(TableCVLAN, vid, buf); err != nil {
		return v, err
	}
	v.decode(buf)
	return v, nil
}

func (c *Chip) ReadVlanMC(slot int) (VlanMC, error) {
	v := VlanMC{Slot: slot}
	if slot < 0 || slot >= vlanMCSlots {
		return v, fmt.Errorf("vlan slot %d: %w", slot, ErrInvalid)
	}
	buf := make([]uint16, vlanMCWords)
	if err := c.m.BulkRead(vlanMCReg(slot), buf); err != nil {
		return v, err
	}
	v.decode(buf)
	return v, nil
}

// PVID returns the slot a port's untagged frames are classified by.
func (c *Chip) PVID(port int) (int, error) {
	if err := checkPort(port); err != nil {
		return 0, err
	}
	v, err := c.pvidField(port).Read(c.m)
	return int(v), err
}

func (c *Chip) AcceptFrame(port int) (FrameType, error) {
	if err := checkPort(port); err != nil {
		return 0, err
	}
	v, err := frameTypeField(port).Read(c.m)
	return FrameType(v), err
}

// vlan4KSet adds or removes port from the by-ID entry of vid and returns
// the entry as it was.
func (c *Chip) vlan4KSet(port int, vid uint16, untagged, include bool) ([]uint16, error) {
	if vid > MaxVID {
		return nil, fmt.Errorf("vlan %d exceeds %d: %w", vid, MaxVID,
			ErrInvalid)
	}
	buf := make([]uint16, vlan4KWords)
	if err := c.TableRead(TableCVLAN, vid, buf); err != nil {
		return nil, err
	}
	prev := append([]uint16(nil), buf...)
	var v Vlan4K
	v.decode(buf)
	bit := uint16(1) << uint(port)
	if include {
		v.Member |= bit
	} else {
		v.Member &^= bit
	}
	if include && untagged {
		v.Untag |= bit
	} else {
		v.Untag &^= bit
	}
	v.encode(buf)
	return prev, c.TableWrite(TableCVLAN, vid, buf)
}

// vlanMCSet reconciles the member slot of vid with port's membership. A
// slot is only allocated for a PVID; on removal the slot is cleared once
// only cpu ports remain in it. The port PVID and accepted frame type
// follow. written reports whether the slot had been stored by the time
// of an error.
func (c *Chip) vlanMCSet(port int, vid uint16, flags VlanFlags, include bool) (written bool, err error) {
	if vid > MaxMCVID {
		return false, fmt.Errorf("vlan %d exceeds %d: %w", vid,
			MaxMCVID, ErrInvalid)
	}
	pvid := flags&VlanPVID != 0
	buf := make([]uint16, vlanMCWords)
	slot, free := -1, -1
	// slot 0 is the non-member default
	for i := 1; i < vlanMCSlots; i++ {
		if err = c.m.BulkRead(vlanMCReg(i), buf); err != nil {
			return
		}
		evid := vlanMCEVID.Get(buf[3])
		if evid == vid {
			slot = i
			break
		}
		if evid == 0 && free < 0 {
			free = i
		}
	}
	var seed uint16
	if slot < 0 {
		for i := range buf {
			buf[i] = 0
		}
		if !include || !pvid {
			return
		}
		if free < 0 {
			err = fmt.Errorf("vlan %d: all %d member slots in use: %w",
				vid, vlanMCSlots-1, ErrNoSpace)
			return
		}
		// pick up members added before any port used vid as PVID
		if vid <= MaxVID {
			var v4k Vlan4K
			if v4k, err = c.ReadVlan4K(vid); err != nil {
				return
			}
			seed = v4k.Member
		}
		slot = free
	}
	pvidField := c.pvidField(port)
	pvidSlot, err := pvidField.Read(c.m)
	if err != nil {
		return
	}
	ft, err := frameTypeField(port).Read(c.m)
	if err != nil {
		return
	}
	accept := FrameType(ft)

	var mc VlanMC
	mc.decode(buf)
	mc.Member |= seed
	if include {
		mc.Member |= 1 << uint(port)
	} else {
		mc.Member &^= 1 << uint(port)
	}
	mc.VID = vid
	if !include && mc.Member&^c.cpu.mask == 0 {
		for i := range buf {
			buf[i] = 0
		}
	} else {
		mc.encode(buf)
	}
	if err = c.m.BulkWrite(vlanMCReg(slot), buf); err != nil {
		return
	}
	written = true

	if !include {
		if accept == FrameAny && int(pvidSlot) == slot {
			accept = FrameTaggedOnly
		}
	} else if pvid {
		if accept == FrameTaggedOnly {
			accept = FrameAny
		}
		if int(pvidSlot) != slot {
			if err = pvidField.Write(c.m, uint(slot)); err != nil {
				err = fmt.Errorf("vlan %d member slot updated but not port %d pvid: %w",
					vid, port, err)
				return
			}
		}
	}
	if err = frameTypeField(port).Write(c.m, uint(accept)); err != nil {
		err = fmt.Errorf("vlan %d member slot and pvid updated but not port %d frame type: %w",
			vid, port, err)
	}
	return
}

// VlanAdd makes port a member of vid, untagged on egress if asked, and
// if asked classifies the port's untagged frames into vid.
func (c *Chip) VlanAdd(port int, vid uint16, flags VlanFlags) error {
	if err := checkPort(port); err != nil {
		return err
	}
	c.vlanMu.Lock()
	defer c.vlanMu.Unlock()
	prev, err := c.vlan4KSet(port, vid, flags&VlanUntagged != 0, true)
	if err != nil {
		return err
	}
	written, err := c.vlanMCSet(port, vid, flags, true)
	if err != nil && !written {
		if rerr := c.TableWrite(TableCVLAN, vid, prev); rerr != nil {
			return fmt.Errorf("%v; restoring vlan %d: %v", err, vid,
				rerr)
		}
	}
	return err
}

// VlanDel removes port from vid in both tables; both are attempted and
// the first failure is returned.
func (c *Chip) VlanDel(port int, vid uint16) error {
	if err := checkPort(port); err != nil {
		return err
	}
	c.vlanMu.Lock()
	defer c.vlanMu.Unlock()
	_, err := c.vlan4KSet(port, vid, false, false)
	_, mcerr := c.vlanMCSet(port, vid, 0, false)
	if err == nil {
		err = mcerr
	}
	return err
}

// VlanFiltering sets whether port drops ingress frames of VLANs it isn't a
// member of.
func (c *Chip) VlanFiltering(port int, enable bool) error {
	if err := checkPort(port); err != nil {
		return err
	}
	bit := uint16(1) << uint(port)
	val := uint16(0)
	if enable {
		val = bit
	}
	return c.m.Update(regVlanIngress, bit, val)
}

func (c *Chip) vlanInit() error {
	for port := 0; port < MaxPorts; port++ {
		if c.cpu.mask&(1<<uint(port)) == 0 {
			continue
		}
		if _, err := c.vlan4KSet(port, 0, true, true); err != nil {
			return fmt.Errorf("vlan 0: %w", err)
		}
	}
	if err := c.m.BulkWrite(vlanMCReg(0), make([]uint16, vlanMCWords)); err != nil {
		return fmt.Errorf("vlan slot 0: %w", err)
	}
	return c.m.Update(regVlanCtrl, vlanCtrlEnable, vlanCtrlEnable)
}
