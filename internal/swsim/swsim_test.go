// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package swsim

import (
	"reflect"
	"testing"
)

func TestTableCommit(t *testing.T) {
	s := NewRTL8365MBVC()
	for i := uint16(0); i < tableWords; i++ {
		s.WriteReg(regTableWrite+i, 0xff00|i)
	}
	s.WriteReg(regTableAddr, 10)
	s.WriteReg(regTableCtrl, 0x8|3)
	row := s.Row(3, 10)
	if row[9] != 0x9 || row[0] != 0xff00 {
		t.Error("wrong:", row)
	}
	s.TableBusyPolls = 2
	s.WriteReg(regTableCtrl, 3)
	for i := 0; i < 2; i++ {
		if v, _ := s.ReadReg(regTableLUT); v&lutBusy == 0 {
			t.Error("not busy after read command")
		}
	}
	if v, _ := s.ReadReg(regTableLUT); v&lutBusy != 0 {
		t.Error("still busy")
	}
	got := make([]uint16, tableWords)
	for i := range got {
		got[i], _ = s.ReadReg(regTableRead + uint16(i))
	}
	if !reflect.DeepEqual(got, row) {
		t.Error("wrong:", got)
	}
}

func TestMIBLatch(t *testing.T) {
	s := NewRTL8365MBVC()
	s.SetCounter(2, 6, 2, 0x00010002)
	s.WriteReg(regMIBAddr, (mibPortWords*2+6)>>2)
	lo, _ := s.ReadReg(regMIBCounter + 2)
	hi, _ := s.ReadReg(regMIBCounter + 3)
	if lo != 2 || hi != 1 {
		t.Error("wrong:", lo, hi)
	}
}

func TestChipID(t *testing.T) {
	s := NewRTL8365MBVC()
	if v, _ := s.ReadReg(regChipID); v != 0 {
		t.Error("id visible without magic")
	}
	s.WriteReg(regMagic, magic)
	if v, _ := s.ReadReg(regChipID); v != 0x6367 {
		t.Error("wrong:", v)
	}
}

func TestLinkInterrupt(t *testing.T) {
	s := NewRTL8365MBVC()
	n := 0
	s.Interrupt = func() { n++ }
	s.SetLink(1, true)
	if n != 0 {
		t.Error("raised while disabled")
	}
	if v := s.Phy(1, phyRegSR); v != 0x002c {
		t.Errorf("wrong: %#04x", v)
	}
	s.SetLink(9, false)
	s.WriteReg(regIntrCtrl, intrLinkChange)
	if n != 1 {
		t.Error("pending status not raised on enable")
	}
	s.WriteReg(regIntrStatus, intrLinkChange)
	s.WriteReg(regLinkUp, 0x2)
	if s.Reg(regIntrStatus) != 0 || s.Reg(regLinkUp) != 0 {
		t.Error("not cleared")
	}
}

func TestPhy(t *testing.T) {
	s := NewRTL8365MBVC()
	s.SetPhy(1, 2, 0x001c)
	ocp := uint16(0xa400 + 2*2)
	s.WriteReg(regOCPMSB, (ocp>>10)<<6)
	s.WriteReg(regPhyAddr, 0x2000|1<<5|(ocp>>1)&0x1f|(ocp>>6&0xf)<<8)
	s.WriteReg(regPhyCtrl, 1)
	if v, _ := s.ReadReg(regPhyReadData); v != 0x001c {
		t.Errorf("wrong: %#04x", v)
	}
}

func TestReset(t *testing.T) {
	s := NewRTL8365MBVC()
	s.ResetPolls = 1
	s.SetReg(0x0700, 5)
	s.WriteRegNoAck(regReset, 1)
	if v, _ := s.ReadReg(regReset); v&1 == 0 {
		t.Error("reset not in progress")
	}
	if v, _ := s.ReadReg(regReset); v&1 != 0 {
		t.Error("reset did not finish")
	}
	if s.Reg(0x0700) != 0 {
		t.Error("registers survived reset")
	}
	if _, _, noacks := s.Accesses(); noacks != 1 {
		t.Error("wrong:", noacks)
	}
}
