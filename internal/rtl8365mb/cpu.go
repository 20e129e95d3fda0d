// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package rtl8365mb

import (
	"fmt"
	"strings"

	"github.com/platinasystems/log"
)

// TagProtocol is the form of the tag the switch puts in frames to and
// from the cpu port.
type TagProtocol int

const (
	// RTL8_4 is the 8 byte tag after the source address.
	TagRTL8_4 TagProtocol = iota
	// RTL8_4T is the same tag trailing, ahead of the FCS.
	TagRTL8_4T
)

func (p TagProtocol) String() string {
	switch p {
	case TagRTL8_4:
		return "rtl8_4"
	case TagRTL8_4T:
		return "rtl8_4t"
	}
	return fmt.Sprint("tag(", int(p), ")")
}

func ParseTagProtocol(s string) (TagProtocol, error) {
	for _, p := range []TagProtocol{TagRTL8_4, TagRTL8_4T} {
		if strings.EqualFold(s, p.String()) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("tag protocol %q: %w", s, ErrUnsupported)
}

const (
	cpuInsertAll = iota
	cpuInsertTrapping
	cpuInsertNone
)

const (
	cpuPosAfterSA = iota
	cpuPosBeforeCRC
)

const (
	cpuFormat8 = iota
	cpuFormat4
)

const (
	cpuRxLen72 = iota
	cpuRxLen64
)

type cpuConfig struct {
	enable   bool
	mask     uint16
	trapPort int
	insert   uint16
	position uint16
	rxLen    uint16
	format   uint16
}

func defaultCPUConfig() cpuConfig {
	return cpuConfig{
		trapPort: unsetTrap,
		insert:   cpuInsertAll,
		position: cpuPosAfterSA,
		rxLen:    cpuRxLen64,
		format:   cpuFormat8,
	}
}

func (cfg *cpuConfig) ctrl() uint16 {
	var en uint16
	if cfg.enable {
		en = 1
	}
	trap := uint16(cfg.trapPort)
	return cpuCtrlEnable.Prep(en) |
		cpuCtrlInsertMode.Prep(cfg.insert) |
		cpuCtrlTagPos.Prep(cfg.position) |
		cpuCtrlRxLen.Prep(cfg.rxLen) |
		cpuCtrlTagFormat.Prep(cfg.format) |
		cpuCtrlTrapPort.Prep(trap&7) |
		cpuCtrlTrapExt.Prep(trap>>3&1)
}

func (c *Chip) cpuConfig() error {
	err := c.m.Update(regCPUPortMask, portMask, c.cpu.mask&portMask)
	if err != nil {
		return err
	}
	return c.m.Write(regCPUCtrl, c.cpu.ctrl())
}

// ChangeTagProtocol moves the cpu tag.
func (c *Chip) ChangeTagProtocol(p TagProtocol) error {
	c.cpuMu.Lock()
	defer c.cpuMu.Unlock()
	format, position := c.cpu.format, c.cpu.position
	switch p {
	case TagRTL8_4:
		c.cpu.format = cpuFormat8
		c.cpu.position = cpuPosAfterSA
	case TagRTL8_4T:
		c.cpu.format = cpuFormat8
		c.cpu.position = cpuPosBeforeCRC
	default:
		return fmt.Errorf("%v: %w", p, ErrUnsupported)
	}
	if err := c.cpuConfig(); err != nil {
		c.cpu.format, c.cpu.position = format, position
		return err
	}
	log.Print("debug", "cpu tag protocol ", p)
	return nil
}

func (c *Chip) TagProtocol() TagProtocol {
	c.cpuMu.Lock()
	defer c.cpuMu.Unlock()
	if c.cpu.position == cpuPosBeforeCRC {
		return TagRTL8_4T
	}
	return TagRTL8_4
}

// CPUMask is the set of ports that parse cpu tags.
func (c *Chip) CPUMask() uint16 {
	c.cpuMu.Lock()
	defer c.cpuMu.Unlock()
	return c.cpu.mask
}

func (c *Chip) IsCPUPort(port int) bool {
	return port >= 0 && port < MaxPorts && c.CPUMask()&(1<<uint(port)) != 0
}

// TrapPort is where trapped frames go.
func (c *Chip) TrapPort() int {
	c.cpuMu.Lock()
	defer c.cpuMu.Unlock()
	return c.cpu.trapPort
}
