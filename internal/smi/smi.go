// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package smi bit-bangs the Realtek two wire management interface: MDC
// clock and MDIO data, both driven from general purpose i/o lines.
//
// A read is START, command, address low and high bytes each acknowledged
// by the switch, then two data bytes, the first acknowledged by the host
// and the second not, then STOP. A write sends the two data bytes instead
// and the switch acknowledges each of them.
package smi

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/physic"
)

const (
	DefaultReadCmd  = 0xb9
	DefaultWriteCmd = 0xb8
	DefaultClock    = 50 * physic.MegaHertz

	ackRetries = 5
)

var ErrNoAck = errors.New("smi: no ack")

// Line is one of the two wires.
type Line interface {
	// Out drives the line.
	Out(high bool) error
	// In releases the line so that the far end may drive it.
	In() error
	Read() (bool, error)
}

type SMI struct {
	mdc, mdio Line

	ReadCmd, WriteCmd uint8

	mu    sync.Mutex
	delay time.Duration
	// first line error of the current transfer
	err error
}

func New(mdc, mdio Line, clock physic.Frequency) *SMI {
	if clock <= 0 {
		clock = DefaultClock
	}
	return &SMI{
		mdc:      mdc,
		mdio:     mdio,
		ReadCmd:  DefaultReadCmd,
		WriteCmd: DefaultWriteCmd,
		delay:    clock.Period() / 2,
	}
}

func (s *SMI) ReadReg(reg uint16) (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = nil
	s.start()
	defer s.stop()
	if err := s.writeByte(s.ReadCmd); err != nil {
		return 0, err
	}
	if err := s.writeByte(uint8(reg)); err != nil {
		return 0, err
	}
	if err := s.writeByte(uint8(reg >> 8)); err != nil {
		return 0, err
	}
	lo := s.readBits(8)
	s.writeBits(0, 1)
	hi := s.readBits(8)
	s.writeBits(1, 1)
	if s.err != nil {
		return 0, s.err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

func (s *SMI) WriteReg(reg, val uint16) error {
	return s.write(reg, val, true)
}

// WriteRegNoAck doesn't wait for the final acknowledge; the chip may be
// resetting by then.
func (s *SMI) WriteRegNoAck(reg, val uint16) error {
	return s.write(reg, val, false)
}

func (s *SMI) write(reg, val uint16, ack bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = nil
	s.start()
	defer s.stop()
	for _, b := range []uint8{
		s.WriteCmd,
		uint8(reg),
		uint8(reg >> 8),
		uint8(val),
	} {
		if err := s.writeByte(b); err != nil {
			return err
		}
	}
	if ack {
		return s.writeByte(uint8(val >> 8))
	}
	s.writeBits(uint32(val>>8), 8)
	return s.err
}

func (s *SMI) tick() {
	if s.delay < time.Microsecond {
		for t0 := time.Now(); time.Since(t0) < s.delay; {
		}
		return
	}
	time.Sleep(s.delay)
}

func (s *SMI) out(l Line, high bool) {
	if s.err == nil {
		s.err = l.Out(high)
	}
}

func (s *SMI) start() {
	s.out(s.mdc, false)
	s.out(s.mdio, true)
	s.tick()

	s.out(s.mdc, true)
	s.tick()
	s.out(s.mdc, false)
	s.tick()

	s.out(s.mdc, true)
	s.tick()
	s.out(s.mdio, false)
	s.tick()
	s.out(s.mdc, false)
	s.tick()
	s.out(s.mdio, true)
}

func (s *SMI) stop() {
	s.tick()
	s.out(s.mdio, false)
	s.out(s.mdc, true)
	s.tick()
	s.out(s.mdio, true)
	s.tick()
	s.out(s.mdc, true)
	s.tick()
	s.out(s.mdc, false)
	s.tick()
	s.out(s.mdc, true)

	// one more clock
	s.tick()
	s.out(s.mdc, false)
	s.tick()
	s.out(s.mdc, true)

	if s.err == nil {
		s.err = s.mdio.In()
	}
	if s.err == nil {
		s.err = s.mdc.In()
	}
}

// writeBits sends the low n bits of v, most significant first.
func (s *SMI) writeBits(v uint32, n uint) {
	for ; n > 0; n-- {
		s.tick()
		s.out(s.mdio, v&(1<<(n-1)) != 0)
		s.tick()
		s.out(s.mdc, true)
		s.tick()
		s.out(s.mdc, false)
	}
}

func (s *SMI) readBits(n uint) (v uint32) {
	if s.err == nil {
		s.err = s.mdio.In()
	}
	for ; n > 0; n-- {
		s.tick()
		s.out(s.mdc, true)
		s.tick()
		if s.err == nil {
			var high bool
			high, s.err = s.mdio.Read()
			if high {
				v |= 1 << (n - 1)
			}
		}
		s.out(s.mdc, false)
	}
	s.out(s.mdio, false)
	return
}

func (s *SMI) waitAck() error {
	for try := 0; ; try++ {
		ack := s.readBits(1)
		if s.err != nil {
			return s.err
		}
		if ack == 0 {
			return nil
		}
		if try >= ackRetries {
			return ErrNoAck
		}
	}
}

func (s *SMI) writeByte(b uint8) error {
	s.writeBits(uint32(b), 8)
	if err := s.waitAck(); err != nil {
		return fmt.Errorf("smi: write %#02x: %w", b, err)
	}
	return nil
}
