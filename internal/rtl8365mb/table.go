// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package rtl8365mb

import (
	"fmt"

	"github.com/platinasystems/rtl8365mb/internal/regmap"
)

// Table is an indirectly accessed on-chip table.
type Table uint16

const (
	TableACLRule Table = 1 + iota
	TableACLAction
	TableCVLAN
	TableL2
	TableIGMPGroup
	NTables
)

var tableNames = [...]string{
	TableACLRule:   "acl-rule",
	TableACLAction: "acl-action",
	TableCVLAN:     "cvlan",
	TableL2:        "l2",
	TableIGMPGroup: "igmp-group",
}

func (t Table) String() string {
	if t > 0 && t < NTables {
		return tableNames[t]
	}
	return fmt.Sprint("table(", uint16(t), ")")
}

// Entry width in 16-bit words; zero for tables the engine doesn't model.
var tableWidth = [NTables]int{
	TableCVLAN: vlan4KWords,
}

// Width of an entry of table t.
func (t Table) Width() int {
	if t == 0 || t >= NTables {
		return 0
	}
	return tableWidth[t]
}

func (t Table) check(index uint16, data []uint16) (int, error) {
	if t == 0 || t >= NTables {
		return 0, fmt.Errorf("%v: %w", t, ErrInvalid)
	}
	if index > tableAddrMask {
		return 0, fmt.Errorf("%v index %d: %w", t, index, ErrInvalid)
	}
	n := tableWidth[t]
	if n == 0 {
		return 0, fmt.Errorf("%v: %w", t, ErrUnsupported)
	}
	if len(data) < n {
		return 0, fmt.Errorf("%v: %d word buffer: %w", t, len(data),
			ErrInvalid)
	}
	return n, nil
}

// TableRead fills data with entry index of table t.
func (c *Chip) TableRead(t Table, index uint16, data []uint16) error {
	n, err := t.check(index, data)
	if err != nil {
		return err
	}
	c.tableMu.Lock()
	defer c.tableMu.Unlock()
	if err = c.tableIdle(); err != nil {
		return err
	}
	if err = c.tableCommand(t, index, tableCmdRead); err != nil {
		return err
	}
	if err = c.tableIdle(); err != nil {
		return err
	}
	if err = c.m.BulkRead(regTableRead, data[:n]); err != nil {
		return err
	}
	if n == tableMaxWords {
		data[tableMaxWords-1] &= table10thMask
	}
	return nil
}

// TableWrite stores data as entry index of table t.
func (c *Chip) TableWrite(t Table, index uint16, data []uint16) error {
	n, err := t.check(index, data)
	if err != nil {
		return err
	}
	c.tableMu.Lock()
	defer c.tableMu.Unlock()
	if n == tableMaxWords {
		// the last data register only holds 4 bits
		err = c.m.BulkWrite(regTableWrite, data[:n-1])
		if err == nil {
			err = c.m.Write(regTableWrite+tableMaxWords-1,
				data[n-1]&table10thMask)
		}
	} else {
		err = c.m.BulkWrite(regTableWrite, data[:n])
	}
	if err != nil {
		return err
	}
	return c.tableCommand(t, index, tableCmdWrite)
}

func (c *Chip) tableCommand(t Table, index uint16, cmd uint16) error {
	if err := c.m.Write(regTableAddr, index&tableAddrMask); err != nil {
		return err
	}
	// the write itself starts the command, so never skip it
	return c.m.Write(regTableCtrl,
		tableCtrlTable.Prep(uint16(t))|tableCtrlCmd.Prep(cmd))
}

// tableIdle waits out the busy flag, which only reads need to do.
func (c *Chip) tableIdle() error {
	_, err := regmap.ReadPoll(c.m, regTableLUT, func(v uint16) bool {
		return tableLUTBusy.Get(v) == 0
	}, tableInterval, tableTimeout)
	if err != nil {
		return fmt.Errorf("table busy: %w", err)
	}
	return nil
}
