// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package rtl8365mb

import (
	"fmt"

	"github.com/platinasystems/rtl8365mb/internal/regmap"
)

// realtek phy specific status
const (
	phyRegSR      = 0x1a
	phySRLink     = 0x0004
	phySRDuplex   = 0x0008
	phySRSpeed    = regmap.Field(0x0030)
	phySRSpeed10  = 0
	phySRSpeed100 = 1
)

func checkPhy(phy, reg int) error {
	if phy < 0 || phy > MaxPhy || reg < 0 || reg > MaxPhyReg {
		return fmt.Errorf("phy %d reg %d: %w", phy, reg, ErrInvalid)
	}
	return nil
}

func phyOCP(reg int) uint16 { return phyOCPBase + uint16(reg)*2 }

// The indirect access sequences hold the bus lock throughout and so use
// the nolock view.

func (c *Chip) phyIdle() error {
	_, err := regmap.ReadPoll(c.nolock, regPhyStatus, func(v uint16) bool {
		return v == 0
	}, phyBusyInterval, phyBusyTimeout)
	return err
}

func (c *Chip) phyPrepare(phy int, ocp uint16) error {
	err := c.nolock.Update(regPhyOCPMSB, uint16(phyOCPMSBField),
		phyOCPMSBField.Prep(ocp>>10))
	if err != nil {
		return err
	}
	return c.nolock.Write(regPhyAddr, phyAddrCmdBase|
		phyAddrPhyNum.Prep(uint16(phy))|
		phyAddrOCPAddr5.Prep(ocp>>1)|
		phyAddrOCPAddr9.Prep(ocp>>6))
}

func (c *Chip) phyOCPRead(phy int, ocp uint16) (v uint16, err error) {
	c.m.Lock()
	defer c.m.Unlock()
	if err = c.phyIdle(); err != nil {
		return
	}
	if err = c.phyPrepare(phy, ocp); err != nil {
		return
	}
	if err = c.nolock.Write(regPhyCtrl, phyCtrlCmd); err != nil {
		return
	}
	if err = c.phyIdle(); err != nil {
		return
	}
	return c.nolock.Read(regPhyReadData)
}

func (c *Chip) phyOCPWrite(phy int, ocp, v uint16) error {
	c.m.Lock()
	defer c.m.Unlock()
	if err := c.phyIdle(); err != nil {
		return err
	}
	if err := c.phyPrepare(phy, ocp); err != nil {
		return err
	}
	if err := c.nolock.Write(regPhyWriteData, v); err != nil {
		return err
	}
	if err := c.nolock.Write(regPhyCtrl, phyCtrlCmd|phyCtrlWrite); err != nil {
		return err
	}
	return c.phyIdle()
}

// PhyRead reads a standard register of an internal PHY.
func (c *Chip) PhyRead(phy, reg int) (uint16, error) {
	if err := checkPhy(phy, reg); err != nil {
		return 0, err
	}
	v, err := c.phyOCPRead(phy, phyOCP(reg))
	if err != nil {
		return 0, fmt.Errorf("phy %d reg %#02x @ %#04x: %w", phy, reg,
			phyOCP(reg), err)
	}
	return v, nil
}

func (c *Chip) PhyWrite(phy, reg int, v uint16) error {
	if err := checkPhy(phy, reg); err != nil {
		return err
	}
	if err := c.phyOCPWrite(phy, phyOCP(reg), v); err != nil {
		return fmt.Errorf("phy %d reg %#02x @ %#04x: %w", phy, reg,
			phyOCP(reg), err)
	}
	return nil
}

// PhyLink decodes the link of an internal PHY from its vendor status
// register.
func (c *Chip) PhyLink(phy int) (Link, error) {
	v, err := c.PhyRead(phy, phyRegSR)
	if err != nil {
		return Link{}, err
	}
	l := Link{Up: v&phySRLink != 0}
	if !l.Up {
		return l, nil
	}
	l.Duplex = DuplexHalf
	if v&phySRDuplex != 0 {
		l.Duplex = DuplexFull
	}
	switch phySRSpeed.Get(v) {
	case phySRSpeed10:
		l.Speed = 10
	case phySRSpeed100:
		l.Speed = 100
	default:
		l.Speed = 1000
	}
	return l, nil
}
