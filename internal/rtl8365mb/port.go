// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package rtl8365mb

import (
	"fmt"
	"strings"

	"github.com/platinasystems/rtl8365mb/internal/regmap"
)

func checkPort(port int) error {
	if port < 0 || port >= MaxPorts {
		return fmt.Errorf("port %d: %w", port, ErrInvalid)
	}
	return nil
}

// STPState is a bridge port state.
type STPState uint8

const (
	STPDisabled STPState = iota
	STPListening
	STPLearning
	STPForwarding
	STPBlocking
)

var stpNames = [...]string{
	STPDisabled:   "disabled",
	STPListening:  "listening",
	STPLearning:   "learning",
	STPForwarding: "forwarding",
	STPBlocking:   "blocking",
}

func (s STPState) String() string {
	if int(s) < len(stpNames) {
		return stpNames[s]
	}
	return fmt.Sprint("stp(", uint8(s), ")")
}

func ParseSTPState(s string) (STPState, error) {
	for i, name := range stpNames {
		if strings.EqualFold(s, name) {
			return STPState(i), nil
		}
	}
	return 0, fmt.Errorf("stp state %q: %w", s, ErrInvalid)
}

// hardware port states
const (
	hwSTPDisabled = iota
	hwSTPBlocking
	hwSTPLearning
	hwSTPForwarding
)

func mstiField(msti, port int) regmap.RegField {
	return regmap.RegField{
		Reg:   regMSTICtrl + uint16(msti<<1) + uint16(port>>3),
		Field: regmap.Field(0x3) << (uint(port&7) * 2),
	}
}

// SetSTPState sets the port's state in the common spanning tree instance.
func (c *Chip) SetSTPState(port int, state STPState) error {
	if err := checkPort(port); err != nil {
		return err
	}
	var v uint
	switch state {
	case STPDisabled:
		v = hwSTPDisabled
	case STPBlocking, STPListening:
		v = hwSTPBlocking
	case STPLearning:
		v = hwSTPLearning
	case STPForwarding:
		v = hwSTPForwarding
	default:
		return fmt.Errorf("port %d: %v: %w", port, state, ErrInvalid)
	}
	return mstiField(0, port).Write(c.m, v)
}

// STPState returns the hardware state; listening reads back as blocking.
func (c *Chip) STPState(port int) (STPState, error) {
	if err := checkPort(port); err != nil {
		return 0, err
	}
	v, err := mstiField(0, port).Read(c.m)
	if err != nil {
		return 0, err
	}
	return [...]STPState{
		hwSTPDisabled:   STPDisabled,
		hwSTPBlocking:   STPBlocking,
		hwSTPLearning:   STPLearning,
		hwSTPForwarding: STPForwarding,
	}[v], nil
}

// SetLearning limits the addresses the port may learn to none or the chip
// maximum.
func (c *Chip) SetLearning(port int, enable bool) error {
	if err := checkPort(port); err != nil {
		return err
	}
	var v uint16
	if enable {
		v = learnLimit
	}
	return c.m.Write(regLearnLimit+uint16(port), v)
}

func (c *Chip) Learning(port int) (bool, error) {
	if err := checkPort(port); err != nil {
		return false, err
	}
	v, err := c.m.Read(regLearnLimit + uint16(port))
	return v != 0, err
}

type BridgeFlags uint

const (
	BridgeLearning BridgeFlags = 1 << iota
	BridgeFlood
	BridgeMcastFlood
	BridgeBcastFlood
)

// PreBridgeFlags rejects any flag but learning.
func (c *Chip) PreBridgeFlags(port int, mask BridgeFlags) error {
	if mask&^BridgeLearning != 0 {
		return fmt.Errorf("port %d bridge flags %#x: %w", port,
			uint(mask), ErrInvalid)
	}
	return nil
}

func (c *Chip) SetBridgeFlags(port int, mask, val BridgeFlags) error {
	if mask&BridgeLearning != 0 {
		return c.SetLearning(port, val&BridgeLearning != 0)
	}
	return nil
}

// SetIsolation sets the ports port may forward to.
func (c *Chip) SetIsolation(port int, mask uint16) error {
	if err := checkPort(port); err != nil {
		return err
	}
	return c.m.Write(regIsolation+uint16(port), mask&portMask)
}

func (c *Chip) Isolation(port int) (uint16, error) {
	if err := checkPort(port); err != nil {
		return 0, err
	}
	v, err := c.m.Read(regIsolation + uint16(port))
	return v & portMask, err
}

// BridgeJoin puts port in bridge br, a non-zero id, letting it and the
// bridge's other ports forward to each other.
func (c *Chip) BridgeJoin(port, br int) error {
	if err := checkPort(port); err != nil {
		return err
	}
	if br == 0 {
		return fmt.Errorf("bridge 0: %w", ErrInvalid)
	}
	c.bridgeMu.Lock()
	defer c.bridgeMu.Unlock()
	var others uint16
	for i := range c.bridge {
		if i == port || c.bridge[i] != br {
			continue
		}
		bit := uint16(1) << uint(port)
		if err := c.m.Update(regIsolation+uint16(i), bit, bit); err != nil {
			return fmt.Errorf("port %d join %d: %w", port, i, err)
		}
		others |= 1 << uint(i)
	}
	c.bridge[port] = br
	return c.m.Update(regIsolation+uint16(port), others, others)
}

// BridgeLeave undoes BridgeJoin.
func (c *Chip) BridgeLeave(port, br int) error {
	if err := checkPort(port); err != nil {
		return err
	}
	c.bridgeMu.Lock()
	defer c.bridgeMu.Unlock()
	var others uint16
	var err error
	for i := range c.bridge {
		if i == port || c.bridge[i] != br {
			continue
		}
		bit := uint16(1) << uint(port)
		if uerr := c.m.Update(regIsolation+uint16(i), bit, 0); uerr != nil && err == nil {
			err = fmt.Errorf("port %d leave %d: %w", port, i, uerr)
		}
		others |= 1 << uint(i)
	}
	if c.bridge[port] == br {
		c.bridge[port] = 0
	}
	if uerr := c.m.Update(regIsolation+uint16(port), others, 0); err == nil {
		err = uerr
	}
	return err
}

// Bridge returns the bridge the port has joined, 0 if none.
func (c *Chip) Bridge(port int) int {
	if checkPort(port) != nil {
		return 0
	}
	c.bridgeMu.Lock()
	defer c.bridgeMu.Unlock()
	return c.bridge[port]
}

// MaxMTU is the largest MTU the global frame length limit allows.
func MaxMTU() int { return int(maxLenField.Max()) - vlanETHLen - ethFCSLen }

// ChangeMTU sets the global frame length limit when port is a cpu port;
// the cpu port carries the largest MTU of all so others are ignored.
func (c *Chip) ChangeMTU(port, mtu int) error {
	if err := checkPort(port); err != nil {
		return err
	}
	if mtu < 0 || mtu > MaxMTU() {
		return fmt.Errorf("mtu %d: %w", mtu, ErrInvalid)
	}
	if !c.IsCPUPort(port) {
		return nil
	}
	return regmap.RegField{Reg: regMaxLen, Field: maxLenField}.Write(c.m,
		uint(mtu+vlanETHLen+ethFCSLen))
}

// MTU reads back the global limit.
func (c *Chip) MTU() (int, error) {
	v, err := regmap.RegField{Reg: regMaxLen, Field: maxLenField}.Read(c.m)
	if err != nil {
		return 0, err
	}
	return int(v) - vlanETHLen - ethFCSLen, nil
}
