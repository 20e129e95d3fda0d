// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package rtl8365mbd

import (
	"errors"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
	"github.com/platinasystems/gpio"
	"github.com/platinasystems/log"
	"github.com/platinasystems/rtl8365mb/internal/irqline"
	"github.com/platinasystems/rtl8365mb/internal/regmap"
	"github.com/platinasystems/rtl8365mb/internal/rtl8365mb"
	"github.com/platinasystems/rtl8365mb/internal/smi"
	"github.com/platinasystems/rtl8365mb/internal/swconfig"
	"github.com/platinasystems/rtl8365mb/internal/swsim"
)

const (
	attachAttempts = 6

	resetAssert  = 25 * time.Millisecond
	resetRelease = 100 * time.Millisecond
)

var errStopped = errors.New("stopped")

// open returns the register bus and, if wired, the interrupt line.
func (i *Info) open(board *swconfig.Board, sim bool) (regmap.Bus, rtl8365mb.IrqParent, error) {
	if sim {
		i.sim = swsim.NewRTL8365MBVC()
		return i.sim, newSimLine(i.sim), nil
	}
	mdc, err := swconfig.Pin(board.Bus.MDC)
	if err != nil {
		return nil, nil, err
	}
	mdio, err := swconfig.Pin(board.Bus.MDIO)
	if err != nil {
		return nil, nil, err
	}
	clock, err := board.Clock()
	if err != nil {
		return nil, nil, err
	}
	if len(board.Bus.Reset) > 0 {
		pin, err := swconfig.Pin(board.Bus.Reset)
		if err != nil {
			return nil, nil, err
		}
		if err = hardReset(pin); err != nil {
			return nil, nil, fmt.Errorf("reset: %w", err)
		}
	}
	bus := smi.New(smi.NewGpioLine(mdc), smi.NewGpioLine(mdio), clock)

	var parent rtl8365mb.IrqParent
	trigger, err := board.InterruptTrigger()
	if err != nil {
		return nil, nil, err
	}
	if len(board.Bus.Interrupt) > 0 && trigger != rtl8365mb.TriggerNone {
		pin, err := swconfig.Pin(board.Bus.Interrupt)
		if err != nil {
			return nil, nil, err
		}
		parent = irqline.New(pin, trigger)
	}
	return bus, parent, nil
}

// hardReset pulses the active low reset pin.
func hardReset(pin gpio.Pin) error {
	p := pin&gpio.PinIndexMask | gpio.IsOutputLo
	if err := p.SetDirection(); err != nil {
		return err
	}
	time.Sleep(resetAssert)
	if err := p.SetValue(true); err != nil {
		return err
	}
	time.Sleep(resetRelease)
	return nil
}

// attach retries detection and setup with backoff; a switch held in
// reset by its power sequencer may take a while to answer.
func (i *Info) attach(board *swconfig.Board, sim bool) error {
	cfg, err := board.Config()
	if err != nil {
		return err
	}
	bus, parent, err := i.open(board, sim)
	if err != nil {
		return err
	}
	b := &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    10 * time.Second,
		Factor: 2,
		Jitter: false,
	}
	for {
		i.chip, err = probe(bus, cfg, parent)
		if err == nil {
			break
		}
		if b.Attempt() >= attachAttempts-1 {
			return err
		}
		d := b.Duration()
		log.Print("warn", "attach: ", err, ", retry in ", d)
		select {
		case <-i.stop:
			return errStopped
		case <-time.After(d):
		}
	}
	i.board = board
	i.cfg = cfg
	if err = i.applyBoard(); err != nil {
		i.detach()
		i.chip = nil
		return err
	}
	for _, port := range i.phyPorts() {
		if i.chip.HasIrq() {
			err = i.chip.RequestLinkIrq(port, i.linkChange)
			if err != nil {
				log.Print("warn", "port ", port, ": ", err)
			}
		}
		i.linkChange(port)
	}
	return nil
}

// applyBoard programs the board's vlans and fixed links.
func (i *Info) applyBoard() error {
	for _, v := range i.board.Vlans {
		for _, port := range v.Ports {
			err := i.chip.VlanAdd(port, v.VID, v.Flags(port))
			if err != nil {
				return fmt.Errorf("vlan %d port %d: %w", v.VID, port,
					err)
			}
		}
	}
	for _, p := range i.board.Ports {
		if l, ok := p.Link(); ok {
			mode := i.cfg.Ports[p.Port].PhyMode
			if err := i.chip.LinkUp(p.Port, mode, l); err != nil {
				return fmt.Errorf("port %d: %w", p.Port, err)
			}
		}
	}
	return nil
}

func probe(bus regmap.Bus, cfg rtl8365mb.Config, parent rtl8365mb.IrqParent) (*rtl8365mb.Chip, error) {
	chip, err := rtl8365mb.New(regmap.New(bus), cfg)
	if err != nil {
		return nil, err
	}
	if err = chip.Setup(parent); err != nil {
		return nil, err
	}
	return chip, nil
}

func (i *Info) detach() {
	if i.chip == nil {
		return
	}
	for _, port := range i.phyPorts() {
		i.chip.FreeLinkIrq(port)
	}
	i.chip.Teardown()
}

// phyPorts are the user ports with an internal PHY to follow.
func (i *Info) phyPorts() (ports []int) {
	for _, p := range i.board.Ports {
		if !p.CPU && p.FixedLink == nil && p.Port <= rtl8365mb.MaxPhy &&
			!i.cfg.Ports[p.Port].PhyMode.RGMII() {
			ports = append(ports, p.Port)
		}
	}
	return
}

func (i *Info) linkChange(port int) {
	l, err := i.chip.PhyLink(port)
	if err != nil {
		log.Print("err", "port ", port, " link: ", err)
		return
	}
	i.setLink(port, l)
}

func (i *Info) setLink(port int, l rtl8365mb.Link) {
	mode := i.cfg.Ports[port].PhyMode
	var err error
	if l.Up {
		err = i.chip.LinkUp(port, mode, l)
	} else {
		err = i.chip.LinkDown(port, mode)
	}
	if err != nil {
		log.Print("err", "port ", port, " ", l, ": ", err)
	}
}

// pollLinks follows the PHYs when there is no interrupt.
func (i *Info) pollLinks() {
	for _, port := range i.phyPorts() {
		l, err := i.chip.PhyLink(port)
		if err != nil {
			log.Print("err", "port ", port, " link: ", err)
			continue
		}
		if l != i.chip.PortLink(port) {
			i.setLink(port, l)
		}
	}
}
