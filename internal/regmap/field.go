// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package regmap

import (
	"fmt"
	"math/bits"
)

// Field is a contiguous run of bits within a 16-bit register, named by its
// mask.
type Field uint16

func (f Field) shift() uint { return uint(bits.TrailingZeros16(uint16(f))) }

// Width in bits.
func (f Field) Width() uint { return uint(bits.OnesCount16(uint16(f))) }

// Max is the largest value that fits.
func (f Field) Max() uint16 { return uint16(f) >> f.shift() }

func (f Field) Fits(v uint) bool { return v <= uint(f.Max()) }

// Get extracts the field from register value r.
func (f Field) Get(r uint16) uint16 { return (r & uint16(f)) >> f.shift() }

// Prep places v in the field position, dropping bits that do not fit.
func (f Field) Prep(v uint16) uint16 { return (v << f.shift()) & uint16(f) }

// Pack is Prep for values that must fit.
func (f Field) Pack(v uint) (uint16, error) {
	if !f.Fits(v) {
		return 0, fmt.Errorf("%d: exceeds %d bit field %#04x", v,
			f.Width(), uint16(f))
	}
	return f.Prep(uint16(v)), nil
}

// RegField is a Field at a register address.
type RegField struct {
	Reg   uint16
	Field Field
}

func (rf RegField) Read(m Map) (uint16, error) {
	r, err := m.Read(rf.Reg)
	if err != nil {
		return 0, err
	}
	return rf.Field.Get(r), nil
}

func (rf RegField) Write(m Map, v uint) error {
	r, err := rf.Field.Pack(v)
	if err != nil {
		return err
	}
	return m.Update(rf.Reg, uint16(rf.Field), r)
}
