// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package swsim is a register level model of an RTL8365MB family switch,
// enough of one to drive the control engine without hardware. It answers
// the table access, MIB, interrupt, PHY indirect access, chip id and reset
// protocols and otherwise behaves as plain memory.
package swsim

import (
	"errors"
	"sync"
)

const (
	NumPorts = 11
	NumPhys  = 8

	phyRegSR       = 0x1a
	phySRLink      = 0x0004
	phySRDuplex    = 0x0008
	phySRSpeed1000 = 0x0020

	regTableCtrl  = 0x0500
	regTableAddr  = 0x0501
	regTableLUT   = 0x0502
	regTableWrite = 0x0510
	regTableRead  = 0x0520
	tableWords    = 10
	lutBusy       = 0x2000

	regMIBCounter = 0x1000
	regMIBAddr    = 0x1004
	regMIBCtrl    = 0x1005
	mibBusy       = 0x0001
	mibReset      = 0x0002
	mibPortWords  = 0x7c

	regIntrStatus   = 0x1102
	regIntrCtrl     = 0x1101
	regLinkDown     = 0x1106
	regLinkUp       = 0x1107
	intrLinkChange  = 0x0001
	regChipID       = 0x1300
	regChipVer      = 0x1301
	regMagic        = 0x13c2
	magic           = 0x0249
	regReset        = 0x1322
	regPhyCtrl      = 0x1f00
	regPhyStatus    = 0x1f01
	regPhyAddr      = 0x1f02
	regPhyWriteData = 0x1f03
	regPhyReadData  = 0x1f04
	regOCPMSB       = 0x1d15
)

type Op int

const (
	Read Op = iota
	Write
)

func (op Op) String() string {
	if op == Write {
		return "write"
	}
	return "read"
}

var ErrInjected = errors.New("swsim: injected fault")

type Sim struct {
	mu sync.Mutex

	ID, Version uint16

	// Busy polls answered after each table read command, MIB address
	// write and PHY command.
	TableBusyPolls, MIBBusyPolls, PhyBusyPolls int
	// Busy bits that never clear.
	TableStuck, MIBStuck bool
	// Counters read back as being reset.
	MIBResetting bool
	// Reads of the reset register that still show the reset in progress.
	ResetPolls int

	// Fail, if set, is consulted before each access; a non-nil return
	// fails the access without side effects.
	Fail func(op Op, reg uint16) error

	// Interrupt is called, without the model lock held, when an enabled
	// interrupt is raised.
	Interrupt func()

	regs   map[uint16]uint16
	tables map[uint16]map[uint16][]uint16
	sram   []uint16
	phy    map[uint32]uint16

	tableBusy, mibBusy, phyBusy, resetBusy int

	reads, writes, noacks int
}

func New(id, version uint16) *Sim {
	s := &Sim{ID: id, Version: version}
	s.clear()
	return s
}

// NewRTL8365MBVC models the RTL8365MB-VC.
func NewRTL8365MBVC() *Sim { return New(0x6367, 0x0040) }

func (s *Sim) clear() {
	s.regs = make(map[uint16]uint16)
	s.tables = make(map[uint16]map[uint16][]uint16)
	s.sram = make([]uint16, mibPortWords*(NumPorts+1))
	s.phy = make(map[uint32]uint16)
}

func (s *Sim) fail(op Op, reg uint16) error {
	if s.Fail == nil {
		return nil
	}
	return s.Fail(op, reg)
}

func (s *Sim) ReadReg(reg uint16) (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(Read, reg); err != nil {
		return 0, err
	}
	s.reads++
	v := s.regs[reg]
	switch reg {
	case regTableLUT:
		v &^= lutBusy
		if s.TableStuck || countdown(&s.tableBusy) {
			v |= lutBusy
		}
	case regMIBCtrl:
		v &^= mibBusy | mibReset
		if s.MIBStuck || countdown(&s.mibBusy) {
			v |= mibBusy
		}
		if s.MIBResetting {
			v |= mibReset
		}
	case regPhyStatus:
		v = 0
		if countdown(&s.phyBusy) {
			v = 1
		}
	case regChipID, regChipVer:
		v = 0
		if s.regs[regMagic] == magic {
			v = s.ID
			if reg == regChipVer {
				v = s.Version
			}
		}
	case regReset:
		v &^= 1
		if countdown(&s.resetBusy) {
			v |= 1
		}
	}
	return v, nil
}

func countdown(n *int) bool {
	if *n > 0 {
		*n--
		return true
	}
	return false
}

func (s *Sim) WriteReg(reg, val uint16) error {
	return s.write(reg, val, false)
}

func (s *Sim) WriteRegNoAck(reg, val uint16) error {
	return s.write(reg, val, true)
}

func (s *Sim) write(reg, val uint16, noack bool) error {
	s.mu.Lock()
	if err := s.fail(Write, reg); err != nil {
		s.mu.Unlock()
		return err
	}
	if noack {
		s.noacks++
	} else {
		s.writes++
	}
	raise := false
	switch reg {
	case regTableCtrl:
		s.regs[reg] = val
		s.tableCommand(val)
	case regMIBAddr:
		s.regs[reg] = val
		base := int(val) * 4
		for k := 0; k < 4; k++ {
			var w uint16
			if base+k < len(s.sram) {
				w = s.sram[base+k]
			}
			s.regs[regMIBCounter+uint16(k)] = w
		}
		s.mibBusy = s.MIBBusyPolls
	case regIntrStatus, regLinkDown, regLinkUp:
		s.regs[reg] &^= val
	case regIntrCtrl:
		s.regs[reg] = val
		raise = val&s.regs[regIntrStatus] != 0
	case regPhyCtrl:
		s.regs[reg] = val
		if val&1 != 0 {
			s.phyCommand(val&2 != 0)
		}
	case regReset:
		if val&1 != 0 {
			id, ver := s.ID, s.Version
			s.clear()
			s.ID, s.Version = id, ver
			s.resetBusy = s.ResetPolls
		}
	default:
		s.regs[reg] = val
	}
	f := s.Interrupt
	s.mu.Unlock()
	if raise && f != nil {
		f()
	}
	return nil
}

func (s *Sim) tableCommand(ctrl uint16) {
	table := ctrl & 0x7
	index := s.regs[regTableAddr] & 0x3fff
	rows := s.tables[table]
	if rows == nil {
		rows = make(map[uint16][]uint16)
		s.tables[table] = rows
	}
	if ctrl&0x8 != 0 {
		row := make([]uint16, tableWords)
		for i := range row {
			row[i] = s.regs[regTableWrite+uint16(i)]
		}
		row[tableWords-1] &= 0xf
		rows[index] = row
		return
	}
	row := rows[index]
	for i := 0; i < tableWords; i++ {
		var w uint16
		if i < len(row) {
			w = row[i]
		}
		s.regs[regTableRead+uint16(i)] = w
	}
	s.tableBusy = s.TableBusyPolls
}

func (s *Sim) phyCommand(write bool) {
	addr := s.regs[regPhyAddr]
	phy := uint32(addr>>5) & 0x7
	ocp := (s.regs[regOCPMSB]&0x0fc0)>>6<<10 |
		(addr>>8&0xf)<<6 | (addr&0x1f)<<1
	key := phy<<16 | uint32(ocp)
	if write {
		s.phy[key] = s.regs[regPhyWriteData]
	} else {
		s.regs[regPhyReadData] = s.phy[key]
	}
	s.phyBusy = s.PhyBusyPolls
}
