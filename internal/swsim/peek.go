// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package swsim

// Backdoor access to model state; none of it goes through Fail.

func (s *Sim) Reg(reg uint16) uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs[reg]
}

func (s *Sim) SetReg(reg, val uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs[reg] = val
}

// Row returns a copy of a table entry, all zeros if never written.
func (s *Sim) Row(table, index uint16) []uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := make([]uint16, tableWords)
	copy(row, s.tables[table][index])
	return row
}

func (s *Sim) SetRow(table, index uint16, row []uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tables[table] == nil {
		s.tables[table] = make(map[uint16][]uint16)
	}
	r := make([]uint16, tableWords)
	copy(r, row)
	s.tables[table][index] = r
}

// SetCounter stores a MIB counter of length 16-bit words, least
// significant word first, at word offset within the port's block.
func (s *Sim) SetCounter(port, offset, length int, v uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	base := mibPortWords*port + offset
	for k := 0; k < length; k++ {
		s.sram[base+k] = uint16(v >> (16 * uint(k)))
	}
}

// AddCounter adds delta to a counter the way traffic would.
func (s *Sim) AddCounter(port, offset, length int, delta uint64) {
	s.mu.Lock()
	base := mibPortWords*port + offset
	var v uint64
	for k := length - 1; k >= 0; k-- {
		v = v<<16 | uint64(s.sram[base+k])
	}
	s.mu.Unlock()
	s.SetCounter(port, offset, length, v+delta)
}

func phyKey(phy, reg int) uint32 {
	return uint32(phy)<<16 | uint32(0xa400+2*reg)
}

// Phy reads a standard PHY register as the indirect access sees it.
func (s *Sim) Phy(phy, reg int) uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phy[phyKey(phy, reg)]
}

func (s *Sim) SetPhy(phy, reg int, val uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phy[phyKey(phy, reg)] = val
}

// SetLink latches a link change on port and raises the link change
// interrupt if it is enabled. Ports with an internal PHY also show the
// change in its status register, as a 1000 full duplex link.
func (s *Sim) SetLink(port int, up bool) {
	s.mu.Lock()
	var sr uint16
	if up {
		s.regs[regLinkUp] |= 1 << uint(port)
		sr = phySRLink | phySRDuplex | phySRSpeed1000
	} else {
		s.regs[regLinkDown] |= 1 << uint(port)
	}
	if port < NumPhys {
		s.phy[phyKey(port, phyRegSR)] = sr
	}
	s.regs[regIntrStatus] |= intrLinkChange
	raise := s.regs[regIntrCtrl]&intrLinkChange != 0
	f := s.Interrupt
	s.mu.Unlock()
	if raise && f != nil {
		f()
	}
}

// Accesses returns the number of bus reads and acknowledged and
// unacknowledged writes so far.
func (s *Sim) Accesses() (reads, writes, noacks int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads, s.writes, s.noacks
}
