// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package rtl8365mb

import (
	"fmt"
	"time"

	"github.com/platinasystems/rtl8365mb/internal/regmap"
)

// InterfaceMode is a set of external interface modes.
type InterfaceMode uint

const (
	ModeMII InterfaceMode = 1 << iota
	ModeTMII
	ModeRMII
	ModeRGMII
	ModeSGMII
	ModeHSGMII
)

var interfaceModeNames = []string{
	"mii", "tmii", "rmii", "rgmii", "sgmii", "hsgmii",
}

func (m InterfaceMode) String() string {
	s := ""
	for i, name := range interfaceModeNames {
		if m&(1<<uint(i)) != 0 {
			if s != "" {
				s += "|"
			}
			s += name
		}
	}
	if s == "" {
		s = "none"
	}
	return s
}

// ExtInt is an external interface hard wired to a port.
type ExtInt struct {
	Port  int
	ID    int
	Modes InterfaceMode
}

type jam struct{ reg, val uint16 }

type ChipInfo struct {
	Name    string
	ID      uint16
	Version uint16
	ExtInts []ExtInt
	jam     []jam
}

var jamVC = []jam{
	{0x13eb, 0x15bb}, {0x1303, 0x06d6}, {0x1304, 0x0700}, {0x13e2, 0x003f},
	{0x13f9, 0x0090}, {0x121e, 0x03ca}, {0x1233, 0x0352}, {0x1237, 0x00a0},
	{0x123a, 0x0030}, {0x1239, 0x0084}, {0x0301, 0x1000}, {0x1349, 0x001f},
	{0x18e0, 0x4004}, {0x122b, 0x241c}, {0x1305, 0xc000}, {0x13f0, 0x0000},
}

var jamCommon = []jam{
	{0x1200, 0x7fcb}, {0x0884, 0x0003}, {0x06eb, 0x0001}, {0x03fa, 0x0007},
	{0x08c8, 0x00c0}, {0x0a30, 0x020e}, {0x0800, 0x0000}, {0x0802, 0x0000},
	{0x09da, 0x0013}, {0x1d32, 0x0002},
}

var Chips = []ChipInfo{
	{
		Name:    "RTL8365MB-VC",
		ID:      0x6367,
		Version: 0x0040,
		ExtInts: []ExtInt{
			{6, 1, ModeMII | ModeTMII | ModeRMII | ModeRGMII},
		},
		jam: jamVC,
	},
	{
		Name:    "RTL8367S",
		ID:      0x6367,
		Version: 0x00a0,
		ExtInts: []ExtInt{
			{6, 1, ModeSGMII | ModeHSGMII},
			{7, 2, ModeMII | ModeTMII | ModeRMII | ModeRGMII},
		},
		jam: jamVC,
	},
	{
		Name:    "RTL8367RB-VB",
		ID:      0x6367,
		Version: 0x0020,
		ExtInts: []ExtInt{
			{6, 1, ModeMII | ModeTMII | ModeRMII | ModeRGMII},
			{7, 2, ModeMII | ModeTMII | ModeRMII | ModeRGMII},
		},
		jam: jamVC,
	},
	{
		Name:    "RTL8367S-VB",
		ID:      0x6642,
		Version: 0x0010,
		ExtInts: []ExtInt{
			{6, 0, ModeSGMII | ModeHSGMII},
			{7, 1, ModeMII | ModeTMII | ModeRMII | ModeRGMII},
		},
		jam: jamVC,
	},
}

func (ci *ChipInfo) String() string { return ci.Name }

// FamilyC is true of the RTL8367C generation.
func (ci *ChipInfo) FamilyC() bool { return ci.ID == familyCID }

func (ci *ChipInfo) extInt(port int) *ExtInt {
	for i := range ci.ExtInts {
		if ci.ExtInts[i].Port == port {
			return &ci.ExtInts[i]
		}
	}
	return nil
}

func LookupChip(id, version uint16) (*ChipInfo, error) {
	for i := range Chips {
		if Chips[i].ID == id && Chips[i].Version == version {
			return &Chips[i], nil
		}
	}
	return nil, fmt.Errorf("unrecognized switch id %#04x version %#04x: %w",
		id, version, ErrUnsupported)
}

// ReadID unlocks, reads then relocks the chip id registers. The relock is
// attempted even if a read fails.
func ReadID(m regmap.Map) (id, version uint16, err error) {
	if err = m.Write(regMagicID, chipMagic); err != nil {
		return
	}
	id, err = m.Read(regChipID)
	if err == nil {
		version, err = m.Read(regChipVer)
	}
	if lerr := m.Write(regMagicID, 0); err == nil {
		err = lerr
	}
	return
}

// Detect identifies the switch behind m.
func Detect(m regmap.Map) (*ChipInfo, error) {
	id, version, err := ReadID(m)
	if err != nil {
		return nil, fmt.Errorf("chip id: %w", err)
	}
	return LookupChip(id, version)
}

func (c *Chip) reset() error {
	if err := c.m.WriteNoAck(regChipReset, chipResetHW); err != nil {
		return err
	}
	time.Sleep(c.resetDelay)
	_, err := regmap.ReadPoll(c.m, regChipReset, func(v uint16) bool {
		return v&chipResetHW == 0
	}, resetInterval, resetTimeout)
	return err
}

func (c *Chip) jam() error {
	for _, tbl := range [][]jam{c.Info.jam, jamCommon} {
		for _, j := range tbl {
			if err := c.m.Write(j.reg, j.val); err != nil {
				return err
			}
		}
	}
	return nil
}
