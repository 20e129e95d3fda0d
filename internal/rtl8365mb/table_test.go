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

func TestTableRoundTrip(t *testing.T) {
	c, sim := setupTestChip(t, testConfig())
	for _, index := range []uint16{1, 100, MaxVID} {
		in := []uint16{0x1234, index, 0x003f}
		if err := c.TableWrite(TableCVLAN, index, in); err != nil {
			t.Fatal(err)
		}
		if row := sim.Row(uint16(TableCVLAN), index); !reflect.DeepEqual(row[:3], in) {
			t.Error("wrong staged row:", row)
		}
		out := make([]uint16, 3)
		if err := c.TableRead(TableCVLAN, index, out); err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(in, out) {
			t.Error("wrong:", out)
		}
	}
}

func TestTableBackToBack(t *testing.T) {
	c, _ := setupTestChip(t, testConfig())
	// setup left the control register holding a CVLAN write
	rows := map[uint16][]uint16{
		1:    {0x1234, 5, 0x003f},
		2:    {0x0001, 0, 0x0002},
		2048: {0xffff, 0x0fff, 0x003f},
	}
	for _, index := range []uint16{1, 2, 2048} {
		if err := c.TableWrite(TableCVLAN, index, rows[index]); err != nil {
			t.Fatal(err)
		}
	}
	// the same row twice in a row
	again := []uint16{0x4321, 6, 0x0001}
	for i := 0; i < 2; i++ {
		if err := c.TableWrite(TableCVLAN, 1, again); err != nil {
			t.Fatal(err)
		}
	}
	rows[1] = again
	for index, want := range rows {
		out := make([]uint16, 3)
		if err := c.TableRead(TableCVLAN, index, out); err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(out, want) {
			t.Error(index, "wrong:", out)
		}
	}
}

func TestTableWidestRow(t *testing.T) {
	c, sim := setupTestChip(t, testConfig())
	save := tableWidth
	defer func() { tableWidth = save }()
	tableWidth[TableL2] = tableMaxWords

	in := []uint16{1, 2, 3, 4, 5, 6, 7, 8, 9, 0xfffa}
	if err := c.TableWrite(TableL2, 7, in); err != nil {
		t.Fatal(err)
	}
	if row := sim.Row(uint16(TableL2), 7); row[9] != 0xa {
		t.Errorf("wrong: %#04x", row[9])
	}
	out := make([]uint16, tableMaxWords)
	if err := c.TableRead(TableL2, 7, out); err != nil {
		t.Fatal(err)
	}
	want := append([]uint16(nil), in...)
	want[9] = 0xa
	if !reflect.DeepEqual(out, want) {
		t.Error("wrong:", out)
	}
}

func TestTableBusy(t *testing.T) {
	c, sim := setupTestChip(t, testConfig())
	sim.TableBusyPolls = 1
	buf := make([]uint16, 3)
	if err := c.TableRead(TableCVLAN, 1, buf); err != nil {
		t.Error("wrong:", err)
	}
	sim.TableStuck = true
	if err := c.TableRead(TableCVLAN, 1, buf); !errors.Is(err, ErrTimeout) {
		t.Error("wrong:", err)
	}
	sim.TableStuck = false
	// writes don't wait on the flag
	if err := c.TableWrite(TableCVLAN, 1, buf); err != nil {
		t.Error("wrong:", err)
	}
}

func TestTableInvalid(t *testing.T) {
	c, sim := setupTestChip(t, testConfig())
	reads, writes, _ := sim.Accesses()
	buf := make([]uint16, tableMaxWords)
	for _, x := range []struct {
		table Table
		index uint16
		n     int
		err   error
	}{
		{0, 0, 3, ErrInvalid},
		{NTables, 0, 3, ErrInvalid},
		{TableCVLAN, tableAddrMask + 1, 3, ErrInvalid},
		{TableCVLAN, 0, 2, ErrInvalid},
		{TableACLRule, 0, 10, ErrUnsupported},
	} {
		if err := c.TableRead(x.table, x.index, buf[:x.n]); !errors.Is(err, x.err) {
			t.Error(x.table, x.index, "wrong:", err)
		}
		if err := c.TableWrite(x.table, x.index, buf[:x.n]); !errors.Is(err, x.err) {
			t.Error(x.table, x.index, "wrong:", err)
		}
	}
	if r, w, _ := sim.Accesses(); r != reads || w != writes {
		t.Error("touched hardware")
	}
}

func TestTableTransportError(t *testing.T) {
	c, sim := setupTestChip(t, testConfig())
	sim.Fail = func(op swsim.Op, reg uint16) error {
		if op == swsim.Read && reg == regTableRead+1 {
			return swsim.ErrInjected
		}
		return nil
	}
	defer func() { sim.Fail = nil }()
	err := c.TableRead(TableCVLAN, 1, make([]uint16, 3))
	if !errors.Is(err, swsim.ErrInjected) {
		t.Error("wrong:", err)
	}
	// the lock was released
	sim.Fail = nil
	if err = c.TableRead(TableCVLAN, 1, make([]uint16, 3)); err != nil {
		t.Error("wrong:", err)
	}
}
