// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package rtl8365mb controls a Realtek RTL8365MB family ethernet switch
// through its 16-bit register space: the indirect table and counter
// windows, the VLAN tables, the link interrupt and the cpu port.
package rtl8365mb

import (
	"fmt"
	"sync"
	"time"

	"github.com/platinasystems/log"
	"github.com/platinasystems/rtl8365mb/internal/regmap"
)

const DefaultMTU = 1500

type PortConfig struct {
	PhyMode PhyMode
	Delay   RGMIIDelay
}

type Config struct {
	// CPUPorts face the host; UserPorts the outside. Ports in neither
	// are unused.
	CPUPorts  uint16
	UserPorts uint16
	// TrapPort receives trapped frames; nil is the first cpu port.
	TrapPort      *int
	TagProtocol   TagProtocol
	Ports         [MaxPorts]PortConfig
	StatsInterval time.Duration
}

func (cfg *Config) validate() error {
	switch {
	case cfg.CPUPorts&^portMask != 0, cfg.UserPorts&^portMask != 0:
		return fmt.Errorf("port masks %#x %#x: %w", cfg.CPUPorts,
			cfg.UserPorts, ErrInvalid)
	case cfg.CPUPorts&cfg.UserPorts != 0:
		return fmt.Errorf("ports %#x both cpu and user: %w",
			cfg.CPUPorts&cfg.UserPorts, ErrInvalid)
	}
	if cfg.TrapPort != nil {
		if err := checkPort(*cfg.TrapPort); err != nil {
			return fmt.Errorf("trap %w", err)
		}
	}
	switch cfg.TagProtocol {
	case TagRTL8_4, TagRTL8_4T:
	default:
		return fmt.Errorf("%v: %w", cfg.TagProtocol, ErrUnsupported)
	}
	return nil
}

type port struct {
	mib mibTask

	statsMu sync.Mutex
	stats   Stats64
	statsAt time.Time
	link    Link
}

type Chip struct {
	Info *ChipInfo
	cfg  Config

	m      *regmap.Regmap
	nolock *regmap.Regmap

	tableMu  sync.Mutex
	vlanMu   sync.Mutex
	mibMu    sync.Mutex
	cpuMu    sync.Mutex
	bridgeMu sync.Mutex

	cpu    cpuConfig
	bridge [MaxPorts]int
	ports  [MaxPorts]port

	irq       irqDomain
	irqParent IrqParent

	statsInterval time.Duration
	statsLog      *log.RateLimited
	resetDelay    time.Duration
}

// New identifies the switch behind m.
func New(m *regmap.Regmap, cfg Config) (*Chip, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	ci, err := Detect(m)
	if err != nil {
		return nil, err
	}
	log.Print("info", "found an ", ci.Name, " switch")
	c := &Chip{
		Info:          ci,
		cfg:           cfg,
		m:             m,
		nolock:        m.NoLock(),
		cpu:           defaultCPUConfig(),
		statsInterval: cfg.StatsInterval,
		resetDelay:    resetDelay,
	}
	if c.statsInterval <= 0 {
		c.statsInterval = DefaultStatsInterval
	}
	return c, nil
}

func (c *Chip) Config() Config { return c.cfg }

func (c *Chip) used(port int) bool {
	return (c.cfg.CPUPorts|c.cfg.UserPorts)&(1<<uint(port)) != 0
}

// Setup resets the switch into its initial state: ports forward only to
// the cpu, learning off, spanning tree disabled. The interrupt is optional;
// without a parent the caller must poll link state.
func (c *Chip) Setup(parent IrqParent) (err error) {
	if err = c.reset(); err != nil {
		return fmt.Errorf("failed to reset chip: %w", err)
	}
	if err = c.jam(); err != nil {
		return fmt.Errorf("failed to initialize switch: %w", err)
	}
	if err = c.irqSetup(parent); err != nil {
		log.Print("info", "no interrupt support: ", err)
		err = nil
	}
	defer func() {
		if err != nil {
			c.irqTeardown()
		}
	}()

	c.cpuMu.Lock()
	c.cpu.mask = c.cfg.CPUPorts
	if c.cfg.TrapPort != nil {
		c.cpu.trapPort = *c.cfg.TrapPort
	}
	if c.cfg.TagProtocol == TagRTL8_4T {
		c.cpu.position = cpuPosBeforeCRC
	}
	for i := 0; i < MaxPorts; i++ {
		if c.cfg.CPUPorts&(1<<uint(i)) == 0 {
			continue
		}
		if err = c.SetIsolation(i, c.cfg.UserPorts); err != nil {
			c.cpuMu.Unlock()
			return
		}
		if c.cpu.trapPort == unsetTrap {
			c.cpu.trapPort = i
		}
	}
	c.cpu.enable = c.cpu.mask > 0
	err = c.cpuConfig()
	trap := c.cpu.trapPort
	c.cpuMu.Unlock()
	if err != nil {
		return fmt.Errorf("cpu config: %w", err)
	}

	for i := 0; i < MaxPorts; i++ {
		if !c.used(i) {
			continue
		}
		pc := &c.cfg.Ports[i]
		if pc.PhyMode.RGMII() {
			if err = c.MacConfig(i, pc.PhyMode, pc.Delay); err != nil {
				return
			}
		}
		if c.cfg.UserPorts&(1<<uint(i)) == 0 {
			continue
		}
		// forward only to the cpu until bridged
		if err = c.SetIsolation(i, c.cfg.CPUPorts); err != nil {
			return
		}
		if err = c.SetLearning(i, false); err != nil {
			return
		}
		// otherwise frames reach the cpu while the port is down
		if err = c.SetSTPState(i, STPDisabled); err != nil {
			return
		}
	}
	if trap < MaxPorts {
		if err = c.ChangeMTU(trap, DefaultMTU); err != nil {
			return fmt.Errorf("mtu: %w", err)
		}
	}
	if err = c.vlanInit(); err != nil {
		return fmt.Errorf("vlan init: %w", err)
	}
	c.statsSetup()
	log.Print("info", c.Info.Name, " setup, cpu ports ",
		fmt.Sprintf("%#x", c.cfg.CPUPorts), ", trap port ", trap)
	return nil
}

func (c *Chip) Teardown() {
	c.statsTeardown()
	c.irqTeardown()
}
