// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package rtl8365mbd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/platinasystems/redis/rpc/args"
	"github.com/platinasystems/redis/rpc/reply"
	"github.com/platinasystems/rtl8365mb/internal/rtl8365mb"
)

type VlanArgs struct {
	Port     int
	VID      uint16
	Untagged bool
	PVID     bool
}

type PortArgs struct {
	Port int
}

type PortBool struct {
	Port   int
	Enable bool
}

type MTUArgs struct {
	Port int
	MTU  int
}

type STPArgs struct {
	Port  int
	State string
}

type BridgeArgs struct {
	Port   int
	Bridge int
}

type PhyArgs struct {
	Phy   int
	Reg   int
	Value uint16
}

type SimLinkArgs struct {
	Port int
	Up   bool
}

type EthtoolReply struct {
	Names  []string
	Values []uint64
}

type Field struct {
	Name  string
	Value uint64
}

// PortInfo is a port's summary as listed by Ports.
type PortInfo struct {
	Port     int
	Name     string
	CPU      bool
	Link     string
	PVID     uint16
	STP      string
	Learning bool
}

var errNoSim = fmt.Errorf("not simulated: %w", rtl8365mb.ErrUnsupported)

func (a VlanArgs) flags() (f rtl8365mb.VlanFlags) {
	if a.Untagged {
		f |= rtl8365mb.VlanUntagged
	}
	if a.PVID {
		f |= rtl8365mb.VlanPVID
	}
	return
}

func (i *Info) VlanAdd(a VlanArgs, reply *int) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return i.chip.VlanAdd(a.Port, a.VID, a.flags())
}

func (i *Info) VlanDel(a VlanArgs, reply *int) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return i.chip.VlanDel(a.Port, a.VID)
}

func (i *Info) VlanFiltering(a PortBool, reply *int) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return i.chip.VlanFiltering(a.Port, a.Enable)
}

func (i *Info) Stats(a PortArgs, reply *[]Field) error {
	s, err := i.chip.Stats64(a.Port)
	if err != nil {
		return err
	}
	for _, f := range s.Fields() {
		*reply = append(*reply, Field{f.Name, f.Value})
	}
	return nil
}

func (i *Info) EthtoolStats(a PortArgs, reply *EthtoolReply) error {
	v, err := i.chip.EthtoolStats(a.Port)
	if err != nil {
		return err
	}
	reply.Names = rtl8365mb.EthtoolStrings()
	reply.Values = v
	return nil
}

func (i *Info) SetMTU(a MTUArgs, reply *int) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return i.chip.ChangeMTU(a.Port, a.MTU)
}

func (i *Info) SetSTP(a STPArgs, reply *int) error {
	state, err := rtl8365mb.ParseSTPState(a.State)
	if err != nil {
		return err
	}
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return i.chip.SetSTPState(a.Port, state)
}

func (i *Info) SetLearning(a PortBool, reply *int) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return i.chip.SetLearning(a.Port, a.Enable)
}

func (i *Info) BridgeJoin(a BridgeArgs, reply *int) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return i.chip.BridgeJoin(a.Port, a.Bridge)
}

func (i *Info) BridgeLeave(a BridgeArgs, reply *int) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return i.chip.BridgeLeave(a.Port, a.Bridge)
}

func (i *Info) PhyRead(a PhyArgs, reply *uint16) (err error) {
	*reply, err = i.chip.PhyRead(a.Phy, a.Reg)
	return
}

func (i *Info) PhyWrite(a PhyArgs, reply *int) error {
	return i.chip.PhyWrite(a.Phy, a.Reg, a.Value)
}

func (i *Info) Ports(a int, reply *[]PortInfo) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	for _, p := range i.board.Ports {
		pi := PortInfo{
			Port: p.Port,
			Name: p.Name,
			CPU:  p.CPU,
			Link: i.chip.PortLink(p.Port).String(),
		}
		if vid, err := i.pvid(p.Port); err == nil {
			pi.PVID = vid
		}
		if !p.CPU {
			if s, err := i.chip.STPState(p.Port); err == nil {
				pi.STP = s.String()
			}
			pi.Learning, _ = i.chip.Learning(p.Port)
		}
		*reply = append(*reply, pi)
	}
	return nil
}

// SimLink changes the link of a simulated port as its PHY would.
func (i *Info) SimLink(a SimLinkArgs, reply *int) error {
	if i.sim == nil {
		return errNoSim
	}
	if a.Port < 0 || a.Port >= rtl8365mb.MaxPorts {
		return fmt.Errorf("port %d: %w", a.Port, rtl8365mb.ErrInvalid)
	}
	i.sim.SetLink(a.Port, a.Up)
	return nil
}

// Hset applies rtl8365mb.port.N.FIELD
func (i *Info) Hset(args args.Hset, reply *reply.Hset) error {
	port, field, err := parsePortKey(args.Field)
	if err != nil {
		return err
	}
	value := string(args.Value)
	i.mutex.Lock()
	defer i.mutex.Unlock()
	switch field {
	case "pvid":
		var vid uint64
		vid, err = strconv.ParseUint(value, 0, 16)
		if err == nil {
			err = i.chip.VlanAdd(port, uint16(vid),
				rtl8365mb.VlanPVID|rtl8365mb.VlanUntagged)
		}
	case "mtu":
		var mtu int
		mtu, err = strconv.Atoi(value)
		if err == nil {
			err = i.chip.ChangeMTU(port, mtu)
		}
	case "stp":
		var state rtl8365mb.STPState
		state, err = rtl8365mb.ParseSTPState(value)
		if err == nil {
			err = i.chip.SetSTPState(port, state)
		}
	case "learning":
		var enable bool
		enable, err = strconv.ParseBool(value)
		if err == nil {
			err = i.chip.SetLearning(port, enable)
		}
	case "vlan_filtering":
		var enable bool
		enable, err = strconv.ParseBool(value)
		if err == nil {
			err = i.chip.VlanFiltering(port, enable)
		}
	default:
		return fmt.Errorf("can't hset %s", args.Field)
	}
	if err != nil {
		return err
	}
	*reply = 1
	i.publishStatus()
	return nil
}

func parsePortKey(key string) (port int, field string, err error) {
	f := strings.Split(strings.TrimPrefix(key, KeyPrefix), ".")
	if len(f) != 3 || f[0] != "port" || !strings.HasPrefix(key, KeyPrefix) {
		return 0, "", fmt.Errorf("%s: not a port field", key)
	}
	if port, err = strconv.Atoi(f[1]); err != nil {
		return 0, "", fmt.Errorf("%s: %w", key, err)
	}
	return port, f[2], nil
}
