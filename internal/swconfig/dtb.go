// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package swconfig

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/platinasystems/fdt"
	"github.com/platinasystems/gpio"
	"github.com/platinasystems/rtl8365mb/internal/rtl8365mb"
)

const Compatible = "realtek,rtl8365mb"

// DefaultDTB is where the machine's device tree is installed.
var DefaultDTB = "/boot/linux.dtb"

// linux dt-bindings/interrupt-controller/irq.h
var irqTypes = map[uint32]rtl8365mb.Trigger{
	0: rtl8365mb.TriggerNone,
	1: rtl8365mb.TriggerRising,
	2: rtl8365mb.TriggerFalling,
	4: rtl8365mb.TriggerHigh,
	8: rtl8365mb.TriggerLow,
}

// GatherAliases maps each gpio controller alias to its node name.
func GatherAliases(n *fdt.Node) {
	for p, pn := range n.Properties {
		if strings.Contains(p, "gpio") {
			val := strings.Split(string(pn), "\x00")
			v := strings.Split(val[0], "/")
			gpio.Aliases[p] = v[len(v)-1]
		}
	}
}

// GatherPins adds the named pins of a gpio controller with their initial
// direction.
func GatherPins(n *fdt.Node, name string, value string) {
	for bank, alias := range gpio.Aliases {
		if alias != n.Name {
			continue
		}
		for _, c := range n.Children {
			var pn []string
			var mode string
			for p := range c.Properties {
				switch p {
				case "gpio-pin-desc":
					pn = strings.Split(c.Name, "@")
				case "output-high", "output-low", "input":
					mode = p
				}
			}
			if len(mode) == 0 || len(pn) != 2 {
				continue
			}
			i, err := strconv.Atoi(pn[1])
			if err != nil {
				continue
			}
			gpio.Pins[pn[0]] = gpio.GpioPinMode[mode] |
				gpio.GpioBankToBase[bank] |
				gpio.Pin(i)
		}
	}
}

func LoadDTB(fn string) (*Board, error) {
	b, err := os.ReadFile(fn)
	if err != nil {
		return nil, err
	}
	board, err := FromDTB(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	return board, nil
}

// FromDTB gathers the gpio maps and the switch node from a flattened
// device tree.
//
//	switch {
//		compatible = "realtek,rtl8365mb";
//		mdc-gpio = "SWITCH_MDC";
//		mdio-gpio = "SWITCH_MDIO";
//		reset-gpio = "SWITCH_RST_L";
//		interrupt-gpio = "SWITCH_INT_L";
//		interrupts = <0 8>;
//		ports {
//			port@6 {
//				reg = <6>;
//				label = "cpu";
//				ethernet = <&eth0>;
//				phy-mode = "rgmii";
//				fixed-link { speed = <1000>; full-duplex; };
//			};
//		};
//	};
func FromDTB(buf []byte) (b *Board, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, err = nil, fmt.Errorf("malformed device tree: %v", r)
		}
	}()
	t := &fdt.Tree{Debug: false, IsLittleEndian: false}
	if err = t.Parse(buf); err != nil {
		return
	}
	if gpio.Aliases == nil {
		gpio.Aliases = make(gpio.GpioAliasMap)
	}
	if gpio.Pins == nil {
		gpio.Pins = make(gpio.PinMap)
	}
	t.MatchNode("aliases", GatherAliases)
	t.EachProperty("gpio-controller", "", GatherPins)

	var sw *fdt.Node
	t.EachProperty("compatible", Compatible,
		func(n *fdt.Node, name, value string) {
			if sw == nil {
				sw = n
			}
		})
	if sw == nil {
		return nil, fmt.Errorf("no %s node", Compatible)
	}
	b = &Board{
		Bus: Bus{
			MDC:       propString(t, sw, "mdc-gpio"),
			MDIO:      propString(t, sw, "mdio-gpio"),
			Reset:     propString(t, sw, "reset-gpio"),
			Interrupt: propString(t, sw, "interrupt-gpio"),
		},
		TagProtocol: propString(t, sw, "tag-protocol"),
	}
	if v, found := sw.Properties["clock-frequency"]; found && len(v) >= 4 {
		b.Bus.Clock = strconv.FormatUint(uint64(t.PropUint32(v)), 10) +
			"Hz"
	}
	if v, found := sw.Properties["interrupts"]; found && len(v) >= 8 {
		cells := t.PropUint32Slice(v)
		tr, found := irqTypes[cells[1]]
		if !found {
			return nil, fmt.Errorf("interrupt type %d: %w", cells[1],
				rtl8365mb.ErrInvalid)
		}
		b.Trigger = tr.String()
	}
	if ports := sw.Children["ports"]; ports != nil {
		for _, pn := range ports.Children {
			p, err := dtbPort(t, pn)
			if err != nil {
				return nil, err
			}
			b.Ports = append(b.Ports, p)
		}
	}
	sort.Slice(b.Ports, func(i, j int) bool {
		return b.Ports[i].Port < b.Ports[j].Port
	})
	if err = b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func dtbPort(t *fdt.Tree, n *fdt.Node) (p Port, err error) {
	reg, found := n.Properties["reg"]
	if !found || len(reg) < 4 {
		return p, fmt.Errorf("%s: missing reg", n.Name)
	}
	p.Port = int(t.PropUint32(reg))
	p.Name = propString(t, n, "label")
	p.PhyMode = propString(t, n, "phy-mode")
	_, p.CPU = n.Properties["ethernet"]
	for name, dst := range map[string]**int{
		"rx-internal-delay-ps": &p.RxDelay,
		"tx-internal-delay-ps": &p.TxDelay,
	} {
		if v, found := n.Properties[name]; found && len(v) >= 4 {
			ps := int(t.PropUint32(v))
			*dst = &ps
		}
	}
	if fl := n.Children["fixed-link"]; fl != nil {
		p.FixedLink = new(FixedLink)
		if v, found := fl.Properties["speed"]; found && len(v) >= 4 {
			p.FixedLink.Speed = int(t.PropUint32(v))
		}
		_, p.FixedLink.FullDuplex = fl.Properties["full-duplex"]
		_, p.FixedLink.Pause = fl.Properties["pause"]
		_, p.FixedLink.AsymPause = fl.Properties["asym-pause"]
	}
	return
}

func propString(t *fdt.Tree, n *fdt.Node, name string) string {
	v, found := n.Properties[name]
	if !found || len(v) == 0 {
		return ""
	}
	return t.PropString(v)
}
