// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package rtl8365mb

import (
	"fmt"
	"strings"

	"github.com/platinasystems/log"
	"github.com/platinasystems/rtl8365mb/internal/regmap"
)

type Duplex int

const (
	DuplexUnknown Duplex = iota
	DuplexHalf
	DuplexFull
)

func (d Duplex) String() string {
	switch d {
	case DuplexHalf:
		return "half"
	case DuplexFull:
		return "full"
	}
	return "unknown"
}

// Link is the resolved state of a port's link; Speed is in Mb/s.
type Link struct {
	Up      bool
	Speed   int
	Duplex  Duplex
	TxPause bool
	RxPause bool
}

func (l Link) String() string {
	if !l.Up {
		return "down"
	}
	s := fmt.Sprint(l.Speed, "Mb/s ", l.Duplex)
	switch {
	case l.TxPause && l.RxPause:
		s += " pause"
	case l.TxPause:
		s += " tx-pause"
	case l.RxPause:
		s += " rx-pause"
	}
	return s
}

// PhyMode is the wiring of a port's MAC to its PHY.
type PhyMode string

const (
	PhyModeInternal PhyMode = "internal"
	PhyModeRGMII    PhyMode = "rgmii"
	PhyModeRGMIIID  PhyMode = "rgmii-id"
	PhyModeRGMIIRX  PhyMode = "rgmii-rxid"
	PhyModeRGMIITX  PhyMode = "rgmii-txid"
)

// RGMII includes the delay variants, which only concern the PHY.
func (m PhyMode) RGMII() bool { return strings.HasPrefix(string(m), "rgmii") }

// RGMIIDelay are internal MAC delays in picoseconds; nil leaves the
// hardware default of none.
type RGMIIDelay struct {
	Rx, Tx *int
}

// steps converts to register values; out of range values are ignored with
// a warning.
func (d RGMIIDelay) steps(port int) (rx, tx uint16) {
	if d.Tx != nil {
		if ns := *d.Tx / 1000; ns == 0 || ns == 2 {
			tx = uint16(ns / 2)
		} else {
			log.Print("warn", "port ", port,
				": RGMII TX delay must be 0 or 2 ns")
		}
	}
	if d.Rx != nil {
		// 0.3 ns steps, rounded
		if st := (*d.Rx + 150) / 300; *d.Rx >= 0 && st <= int(rgmxfRxDelay.Max()) {
			rx = uint16(st)
		} else {
			log.Print("warn", "port ", port,
				": RGMII RX delay must be 0 to 2.1 ns")
		}
	}
	return
}

func (c *Chip) portExtInt(port int) (*ExtInt, error) {
	if err := checkPort(port); err != nil {
		return nil, err
	}
	ext := c.Info.extInt(port)
	if ext == nil {
		return nil, fmt.Errorf("port %d has no external interface: %w",
			port, ErrUnsupported)
	}
	return ext, nil
}

func extSelect(id int) (regmap.RegField, error) {
	var reg uint16
	switch id {
	case 1:
		reg = regExtSelect1
	case 2:
		reg = regExtSelect2
	default:
		return regmap.RegField{}, fmt.Errorf("ext %d mode select: %w",
			id, ErrUnsupported)
	}
	return regmap.RegField{
		Reg:   reg,
		Field: regmap.Field(0xf) << (uint(id%2) * 4),
	}, nil
}

// MacConfig readies the external interface of port for mode; only RGMII
// is implemented, other modes are left as they are.
func (c *Chip) MacConfig(port int, mode PhyMode, delay RGMIIDelay) error {
	ext, err := c.portExtInt(port)
	if err != nil {
		return err
	}
	if !mode.RGMII() {
		return nil
	}
	if ext.Modes&ModeRGMII == 0 {
		return fmt.Errorf("port %d %s: %w", port, mode, ErrUnsupported)
	}
	sel, err := extSelect(ext.ID)
	if err != nil {
		return err
	}
	// delays first, then the mode
	rx, tx := delay.steps(port)
	err = c.m.Update(regRGMXF[ext.ID], uint16(rgmxfRxDelay|rgmxfTxDelay),
		rgmxfRxDelay.Prep(rx)|rgmxfTxDelay.Prep(tx))
	if err != nil {
		return fmt.Errorf("port %d rgmii delay: %w", port, err)
	}
	if err = sel.Write(c.m, extModeRGMII); err != nil {
		return fmt.Errorf("port %d rgmii select: %w", port, err)
	}
	return nil
}

// forceMode fixes the link of an external interface, or clears a forced
// link when l is down.
func (c *Chip) forceMode(port int, l Link) error {
	ext, err := c.portExtInt(port)
	if err != nil {
		return err
	}
	familyC := c.Info.FamilyC()
	var v, speed uint16
	if l.Up {
		switch {
		case l.Speed == 2500 && !familyC:
			speed = speed2500D
		case l.Speed == 1000:
			speed = speed1000
		case l.Speed == 100:
			speed = speed100
		case l.Speed == 10:
			speed = speed10
		default:
			return fmt.Errorf("port %d speed %d: %w", port, l.Speed,
				ErrInvalid)
		}
		switch l.Duplex {
		case DuplexFull:
			v |= forceDuplex
		case DuplexHalf:
		default:
			return fmt.Errorf("port %d duplex %v: %w", port, l.Duplex,
				ErrInvalid)
		}
		v |= forceLink
		if l.TxPause {
			v |= forceTxPause
		}
		if l.RxPause {
			v |= forceRxPause
		}
	}
	if familyC {
		v |= forceEnable | forceSpeed.Prep(speed)
		return c.m.Write(regForce[ext.ID], v)
	}
	var reg, en uint16
	switch ext.ID {
	case 0:
		reg, en = regForceD0, regForceEnD0
	case 1:
		reg, en = regForceD1, regForceEnD1
	default:
		return fmt.Errorf("ext %d force: %w", ext.ID, ErrUnsupported)
	}
	// the high speed bits are apart from the low
	v |= forceSpeed.Prep(speed) | forceSpeedD.Prep(speed>>2)
	if err = c.m.Write(reg, v); err != nil {
		return err
	}
	return c.m.Write(en, 0xffff)
}

// LinkUp starts the port's statistics refresh and, on an RGMII interface,
// forces the MAC to the resolved link.
func (c *Chip) LinkUp(port int, mode PhyMode, l Link) error {
	if err := checkPort(port); err != nil {
		return err
	}
	l.Up = true
	c.setLink(port, l)
	c.ports[port].mib.schedule()
	if !mode.RGMII() {
		return nil
	}
	if err := c.forceMode(port, l); err != nil {
		log.Print("err", "failed to force mode on port ", port, ": ", err)
		return err
	}
	return nil
}

// LinkDown stops the refresh, waiting out one in progress, then releases
// a forced RGMII link.
func (c *Chip) LinkDown(port int, mode PhyMode) error {
	if err := checkPort(port); err != nil {
		return err
	}
	c.ports[port].mib.cancelSync()
	c.setLink(port, Link{})
	if !mode.RGMII() {
		return nil
	}
	if err := c.forceMode(port, Link{}); err != nil {
		log.Print("err", "failed to reset forced mode on port ", port,
			": ", err)
		return err
	}
	return nil
}

func (c *Chip) setLink(port int, l Link) {
	p := &c.ports[port]
	p.statsMu.Lock()
	p.link = l
	p.statsMu.Unlock()
}

// PortLink is the last link given to LinkUp or LinkDown.
func (c *Chip) PortLink(port int) Link {
	if checkPort(port) != nil {
		return Link{}
	}
	p := &c.ports[port]
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return p.link
}
