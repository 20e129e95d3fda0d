// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package regmap provides serialized access to a space of 16-bit registers
// at 16-bit addresses reached through some Bus.
//
// A Regmap from New takes the bus lock around every access. The view
// returned by NoLock shares the bus and its lock but never takes it; use it
// inside Lock/Unlock to run a multi-register sequence that must not be
// interleaved with other users of the bus.
package regmap

import "sync"

// Bus moves one 16-bit register value to or from the device.
type Bus interface {
	ReadReg(reg uint16) (uint16, error)
	WriteReg(reg, val uint16) error
}

// A NoAckBus may issue a write without waiting for the device to
// acknowledge it; used for writes that reset the device.
type NoAckBus interface {
	Bus
	WriteRegNoAck(reg, val uint16) error
}

// Map is the register access used by device engines.
type Map interface {
	Read(reg uint16) (uint16, error)
	Write(reg, val uint16) error
	Update(reg, mask, val uint16) error
	BulkRead(reg uint16, vals []uint16) error
	BulkWrite(reg uint16, vals []uint16) error
}

type Regmap struct {
	bus    Bus
	mu     *sync.Mutex
	locked bool
}

func New(bus Bus) *Regmap {
	return &Regmap{
		bus:    bus,
		mu:     new(sync.Mutex),
		locked: true,
	}
}

// NoLock returns a view of the same bus that leaves locking to the caller.
func (m *Regmap) NoLock() *Regmap {
	return &Regmap{bus: m.bus, mu: m.mu}
}

func (m *Regmap) Lock()   { m.mu.Lock() }
func (m *Regmap) Unlock() { m.mu.Unlock() }

func (m *Regmap) lock() func() {
	if !m.locked {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *Regmap) Read(reg uint16) (uint16, error) {
	defer m.lock()()
	return m.bus.ReadReg(reg)
}

func (m *Regmap) Write(reg, val uint16) error {
	defer m.lock()()
	return m.bus.WriteReg(reg, val)
}

// WriteNoAck writes without waiting for an acknowledge if the bus can do
// so, otherwise it is a plain Write.
func (m *Regmap) WriteNoAck(reg, val uint16) error {
	defer m.lock()()
	if b, ok := m.bus.(NoAckBus); ok {
		return b.WriteRegNoAck(reg, val)
	}
	return m.bus.WriteReg(reg, val)
}

// Update does a read-modify-write of the bits in mask. The write is
// skipped if the register already holds the result.
func (m *Regmap) Update(reg, mask, val uint16) error {
	defer m.lock()()
	old, err := m.bus.ReadReg(reg)
	if err != nil {
		return err
	}
	v := old&^mask | val&mask
	if v == old {
		return nil
	}
	return m.bus.WriteReg(reg, v)
}

// BulkRead fills vals from consecutive registers starting at reg.
func (m *Regmap) BulkRead(reg uint16, vals []uint16) error {
	defer m.lock()()
	for i := range vals {
		v, err := m.bus.ReadReg(reg + uint16(i))
		if err != nil {
			return err
		}
		vals[i] = v
	}
	return nil
}

// BulkWrite stores vals to consecutive registers starting at reg.
func (m *Regmap) BulkWrite(reg uint16, vals []uint16) error {
	defer m.lock()()
	for i, v := range vals {
		if err := m.bus.WriteReg(reg+uint16(i), v); err != nil {
			return err
		}
	}
	return nil
}
