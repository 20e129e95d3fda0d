// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package smi

import (
	"github.com/platinasystems/gpio"
	periph "periph.io/x/conn/v3/gpio"
)

const gpioMode = gpio.IsOutputHi | gpio.IsOutputLo

// GpioLine is a sysfs gpio pin. The direction is only rewritten when it
// changes.
type GpioLine struct {
	Pin gpio.Pin
	out bool
}

func NewGpioLine(pin gpio.Pin) *GpioLine {
	return &GpioLine{Pin: pin &^ gpioMode}
}

func (l *GpioLine) Out(high bool) error {
	if l.out {
		return l.Pin.SetValue(high)
	}
	p := l.Pin | gpio.IsOutputLo
	if high {
		p = l.Pin | gpio.IsOutputHi
	}
	if err := p.SetDirection(); err != nil {
		return err
	}
	l.out = true
	return nil
}

func (l *GpioLine) In() error {
	if !l.out {
		return nil
	}
	if err := l.Pin.SetDirection(); err != nil {
		return err
	}
	l.out = false
	return nil
}

func (l *GpioLine) Read() (bool, error) { return l.Pin.Value() }

// PeriphLine adapts a periph.io pin, as found through its gpioreg.
type PeriphLine struct {
	Pin periph.PinIO
}

func (l PeriphLine) Out(high bool) error {
	return l.Pin.Out(periph.Level(high))
}

func (l PeriphLine) In() error {
	return l.Pin.In(periph.PullNoChange, periph.NoEdge)
}

func (l PeriphLine) Read() (bool, error) {
	return bool(l.Pin.Read()), nil
}
