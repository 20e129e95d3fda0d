// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package swconfig describes how a switch is wired to its board: the
// management bus pins, the interrupt line, and the role of each port. A
// board is read from a YAML file or from the machine's device tree.
package swconfig

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/platinasystems/gpio"
	"github.com/platinasystems/rtl8365mb/internal/rtl8365mb"
	"github.com/platinasystems/rtl8365mb/internal/smi"
	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"
)

const DefaultFile = "/etc/goes/rtl8365mb.yaml"

var ErrNoPin = errors.New("no such gpio")

type Bus struct {
	// Pins are gpio names from the device tree or sysfs numbers.
	MDC       string `yaml:"mdc"`
	MDIO      string `yaml:"mdio"`
	Reset     string `yaml:"reset,omitempty"`
	Interrupt string `yaml:"interrupt,omitempty"`
	// Clock is the MDC frequency, e.g. "1MHz".
	Clock string `yaml:"clock,omitempty"`
}

type FixedLink struct {
	Speed      int  `yaml:"speed"`
	FullDuplex bool `yaml:"full-duplex"`
	Pause      bool `yaml:"pause,omitempty"`
	AsymPause  bool `yaml:"asym-pause,omitempty"`
}

type Port struct {
	Port    int    `yaml:"port"`
	Name    string `yaml:"name,omitempty"`
	CPU     bool   `yaml:"cpu,omitempty"`
	PhyMode string `yaml:"phy-mode,omitempty"`
	RxDelay *int   `yaml:"rx-internal-delay-ps,omitempty"`
	TxDelay *int   `yaml:"tx-internal-delay-ps,omitempty"`

	FixedLink *FixedLink `yaml:"fixed-link,omitempty"`
}

type Vlan struct {
	VID      uint16 `yaml:"vid"`
	Ports    []int  `yaml:"ports"`
	Untagged []int  `yaml:"untagged,omitempty"`
	PVID     []int  `yaml:"pvid,omitempty"`
}

type Board struct {
	Bus          Bus           `yaml:"bus"`
	Trigger      string        `yaml:"interrupt-trigger,omitempty"`
	TagProtocol  string        `yaml:"tag-protocol,omitempty"`
	TrapPort     *int          `yaml:"trap-port,omitempty"`
	PollInterval time.Duration `yaml:"poll-interval,omitempty"`
	Ports        []Port        `yaml:"ports"`
	Vlans        []Vlan        `yaml:"vlans,omitempty"`
}

// Default is the common wiring: five copper ports and the cpu on port 6
// over RGMII.
func Default() *Board {
	b := &Board{
		Bus: Bus{
			MDC:   "SWITCH_MDC",
			MDIO:  "SWITCH_MDIO",
			Reset: "SWITCH_RST_L",
		},
		Trigger:      rtl8365mb.TriggerNone.String(),
		TagProtocol:  rtl8365mb.TagRTL8_4.String(),
		PollInterval: rtl8365mb.DefaultStatsInterval,
	}
	for i := 0; i < 5; i++ {
		b.Ports = append(b.Ports, Port{
			Port:    i,
			Name:    "lan" + strconv.Itoa(i+1),
			PhyMode: string(rtl8365mb.PhyModeInternal),
		})
	}
	b.Ports = append(b.Ports, Port{
		Port:      6,
		Name:      "cpu",
		CPU:       true,
		PhyMode:   string(rtl8365mb.PhyModeRGMII),
		FixedLink: &FixedLink{Speed: 1000, FullDuplex: true},
	})
	return b
}

func Load(fn string) (*Board, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	b, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	return b, nil
}

// Decode reads a YAML board; unknown keys are errors.
func Decode(r io.Reader) (*Board, error) {
	b := new(Board)
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(b); err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Board) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := yaml.NewEncoder(buf)
	enc.SetIndent(2)
	if err := enc.Encode(b); err != nil {
		return nil, err
	}
	err := enc.Close()
	return buf.Bytes(), err
}

func (b *Board) Validate() error {
	if len(b.Bus.MDC) == 0 || len(b.Bus.MDIO) == 0 {
		return fmt.Errorf("bus: missing mdc or mdio")
	}
	if _, err := b.Clock(); err != nil {
		return err
	}
	if _, err := b.InterruptTrigger(); err != nil {
		return err
	}
	if len(b.TagProtocol) > 0 {
		if _, err := rtl8365mb.ParseTagProtocol(b.TagProtocol); err != nil {
			return err
		}
	}
	var seen uint16
	for _, p := range b.Ports {
		if p.Port < 0 || p.Port >= rtl8365mb.MaxPorts {
			return fmt.Errorf("port %d: %w", p.Port, rtl8365mb.ErrInvalid)
		}
		if seen&(1<<uint(p.Port)) != 0 {
			return fmt.Errorf("port %d: duplicate", p.Port)
		}
		seen |= 1 << uint(p.Port)
	}
	for _, v := range b.Vlans {
		if v.VID > 4095 {
			return fmt.Errorf("vlan %d: %w", v.VID, rtl8365mb.ErrInvalid)
		}
		members := mask(v.Ports)
		if members&^seen != 0 {
			return fmt.Errorf("vlan %d: unconfigured ports %#x", v.VID,
				members&^seen)
		}
		if extra := (mask(v.Untagged) | mask(v.PVID)) &^ members; extra != 0 {
			return fmt.Errorf("vlan %d: ports %#x not members", v.VID,
				extra)
		}
	}
	return nil
}

func mask(ports []int) (m uint16) {
	for _, p := range ports {
		if p >= 0 && p < rtl8365mb.MaxPorts {
			m |= 1 << uint(p)
		}
	}
	return
}

func (b *Board) Clock() (physic.Frequency, error) {
	var f physic.Frequency
	if len(b.Bus.Clock) == 0 {
		return smi.DefaultClock, nil
	}
	if err := f.Set(b.Bus.Clock); err != nil {
		return 0, fmt.Errorf("clock %q: %w", b.Bus.Clock, err)
	}
	return f, nil
}

func (b *Board) InterruptTrigger() (rtl8365mb.Trigger, error) {
	if len(b.Trigger) == 0 {
		return rtl8365mb.TriggerNone, nil
	}
	return rtl8365mb.ParseTrigger(b.Trigger)
}

// Pin resolves a bus pin by name in the gathered gpio map, or as a
// number.
func Pin(s string) (gpio.Pin, error) {
	if p, found := gpio.Pins[s]; found {
		return p, nil
	}
	if n, err := strconv.ParseUint(s, 0, 16); err == nil {
		return gpio.Pin(n), nil
	}
	return 0, fmt.Errorf("%q: %w", s, ErrNoPin)
}

// Config converts to the engine's configuration.
func (b *Board) Config() (cfg rtl8365mb.Config, err error) {
	cfg.TagProtocol = rtl8365mb.TagRTL8_4
	if len(b.TagProtocol) > 0 {
		cfg.TagProtocol, err = rtl8365mb.ParseTagProtocol(b.TagProtocol)
		if err != nil {
			return
		}
	}
	cfg.TrapPort = b.TrapPort
	cfg.StatsInterval = b.PollInterval
	for _, p := range b.Ports {
		if p.CPU {
			cfg.CPUPorts |= 1 << uint(p.Port)
		} else {
			cfg.UserPorts |= 1 << uint(p.Port)
		}
		mode := rtl8365mb.PhyMode(p.PhyMode)
		if len(mode) == 0 {
			mode = rtl8365mb.PhyModeInternal
		}
		cfg.Ports[p.Port] = rtl8365mb.PortConfig{
			PhyMode: mode,
			Delay: rtl8365mb.RGMIIDelay{
				Rx: p.RxDelay,
				Tx: p.TxDelay,
			},
		}
	}
	return
}

// Link is the forced link of a fixed-link port.
func (p *Port) Link() (rtl8365mb.Link, bool) {
	if p.FixedLink == nil {
		return rtl8365mb.Link{}, false
	}
	l := rtl8365mb.Link{
		Up:     true,
		Speed:  p.FixedLink.Speed,
		Duplex: rtl8365mb.DuplexHalf,
	}
	if p.FixedLink.FullDuplex {
		l.Duplex = rtl8365mb.DuplexFull
	}
	// symmetric pause both ways; asymmetric only toward the link partner
	l.RxPause = p.FixedLink.Pause && !p.FixedLink.AsymPause
	l.TxPause = p.FixedLink.Pause || p.FixedLink.AsymPause
	return l, true
}

// Flags are port's membership flags in the vlan.
func (v *Vlan) Flags(port int) rtl8365mb.VlanFlags {
	var flags rtl8365mb.VlanFlags
	bit := uint16(1) << uint(port)
	if mask(v.Untagged)&bit != 0 {
		flags |= rtl8365mb.VlanUntagged
	}
	if mask(v.PVID)&bit != 0 {
		flags |= rtl8365mb.VlanPVID
	}
	return flags
}
