// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package rtl8365mb

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
	"sync"

	"github.com/platinasystems/log"
)

// Trigger is the sense of the interrupt line the chip drives.
type Trigger int

const (
	TriggerNone Trigger = iota
	TriggerRising
	TriggerFalling
	TriggerHigh
	TriggerLow
)

var triggerNames = [...]string{
	TriggerNone:    "none",
	TriggerRising:  "rising",
	TriggerFalling: "falling",
	TriggerHigh:    "high",
	TriggerLow:     "low",
}

func (t Trigger) String() string {
	if t >= 0 && int(t) < len(triggerNames) {
		return triggerNames[t]
	}
	return fmt.Sprint("trigger(", int(t), ")")
}

func ParseTrigger(s string) (Trigger, error) {
	for t, name := range triggerNames {
		if strings.EqualFold(s, name) {
			return Trigger(t), nil
		}
	}
	return TriggerNone, fmt.Errorf("%q: %w", s, ErrInvalid)
}

// ActiveLow is true of the triggers the chip must signal by pulling down.
func (t Trigger) ActiveLow() (bool, error) {
	switch t {
	case TriggerRising, TriggerHigh:
		return false, nil
	case TriggerFalling, TriggerLow:
		return true, nil
	}
	return false, fmt.Errorf("unsupported irq trigger %v: %w", t, ErrInvalid)
}

type IrqReturn int

const (
	IrqNone IrqReturn = iota
	IrqHandled
)

// IrqParent is the host interrupt line the chip's interrupt pin is wired to.
type IrqParent interface {
	Trigger() Trigger
	// Request arranges for h to be called for each interrupt until Free.
	Request(h func() IrqReturn) error
	Free() error
}

// irqDomain is the registry of per-port virtual lines. A line is mapped
// from setup until teardown; a handler may be attached while it is.
type irqDomain struct {
	mu       sync.Mutex
	mapped   uint16
	handlers [MaxPorts]func(port int)
}

func (d *irqDomain) mapAll(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mapped = uint16(1)<<uint(n) - 1
}

func (d *irqDomain) disposeAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mapped = 0
	for i := range d.handlers {
		d.handlers[i] = nil
	}
}

// dispatch runs the handlers of each line set in changed.
func (d *irqDomain) dispatch(changed uint16) {
	var hs [MaxPorts]func(int)
	d.mu.Lock()
	changed &= d.mapped
	for m := changed; m != 0; m &= m - 1 {
		i := bits.TrailingZeros16(m)
		hs[i] = d.handlers[i]
	}
	d.mu.Unlock()
	for i, h := range hs {
		if h != nil {
			h(i)
		}
	}
}

// RequestLinkIrq attaches h to the link change line of port.
func (c *Chip) RequestLinkIrq(port int, h func(port int)) error {
	if err := checkPort(port); err != nil {
		return err
	}
	d := &c.irq
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mapped&(1<<uint(port)) == 0 {
		return fmt.Errorf("port %d link irq: %w", port, ErrUnsupported)
	}
	if d.handlers[port] != nil {
		return fmt.Errorf("port %d link irq busy: %w", port, ErrInvalid)
	}
	d.handlers[port] = h
	return nil
}

func (c *Chip) FreeLinkIrq(port int) {
	if checkPort(port) != nil {
		return
	}
	c.irq.mu.Lock()
	c.irq.handlers[port] = nil
	c.irq.mu.Unlock()
}

// HasIrq reports whether interrupt setup succeeded.
func (c *Chip) HasIrq() bool {
	c.irq.mu.Lock()
	defer c.irq.mu.Unlock()
	return c.irq.mapped != 0
}

func (c *Chip) readClear(reg uint16) (uint16, error) {
	v, err := c.m.Read(reg)
	if err != nil {
		return 0, err
	}
	return v, c.m.Write(reg, v)
}

// ServiceInterrupt clears and decodes the chip interrupt status into the
// bitmap of ports whose link changed. ErrNotFound means no cause the
// engine recognizes.
func (c *Chip) ServiceInterrupt() (uint16, error) {
	stat, err := c.readClear(regIntrStatus)
	if err != nil {
		return 0, err
	}
	var changed uint16
	if stat&intrLinkChange != 0 {
		up, err := c.readClear(regLinkUpInd)
		if err != nil {
			return 0, err
		}
		down, err := c.readClear(regLinkDownInd)
		if err != nil {
			return 0, err
		}
		changed = (up | down) & portMask
	}
	if changed == 0 {
		return 0, ErrNotFound
	}
	return changed, nil
}

// HandleIrq is the parent line handler.
func (c *Chip) HandleIrq() IrqReturn {
	changed, err := c.ServiceInterrupt()
	if errors.Is(err, ErrNotFound) {
		return IrqNone
	}
	if err != nil {
		log.Print("err", "failed to read interrupt status: ", err)
		return IrqHandled
	}
	c.irq.dispatch(changed)
	return IrqHandled
}

func (c *Chip) setIrqEnable(enable bool) error {
	var v uint16
	if enable {
		v = intrLinkChange
	}
	return c.m.Update(regIntrCtrl, intrLinkChange, v)
}

func (c *Chip) irqSetup(parent IrqParent) (err error) {
	if parent == nil {
		return fmt.Errorf("no parent irq: %w", ErrUnsupported)
	}
	c.irq.mapAll(MaxPorts)
	defer func() {
		if err != nil {
			c.irq.disposeAll()
		}
	}()
	low, err := parent.Trigger().ActiveLow()
	if err != nil {
		return
	}
	var pol uint16
	if low {
		pol = intrPolarityLow
	}
	if err = c.m.Update(regIntrPolarity, intrPolarityLow, pol); err != nil {
		return
	}
	// the chip may come out of reset with it enabled
	if err = c.setIrqEnable(false); err != nil {
		return
	}
	if err = c.m.Write(regIntrStatus, intrAll); err != nil {
		return
	}
	if err = parent.Request(c.HandleIrq); err != nil {
		return fmt.Errorf("request irq: %w", err)
	}
	if err = c.setIrqEnable(true); err != nil {
		parent.Free()
		return
	}
	c.irqParent = parent
	return nil
}

func (c *Chip) irqTeardown() {
	if c.irqParent != nil {
		if err := c.setIrqEnable(false); err != nil {
			log.Print("warn", "disable irq: ", err)
		}
		if err := c.irqParent.Free(); err != nil {
			log.Print("warn", "free irq: ", err)
		}
		c.irqParent = nil
	}
	c.irq.disposeAll()
}
