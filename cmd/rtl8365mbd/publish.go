// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package rtl8365mbd

import (
	"fmt"
	"strconv"

	"github.com/platinasystems/log"
	"github.com/platinasystems/redis"
)

func portKey(port int, field string) string {
	return fmt.Sprint(KeyPrefix, "port.", port, ".", field)
}

// pvid is the VID of the port's PVID slot.
func (i *Info) pvid(port int) (uint16, error) {
	slot, err := i.chip.PVID(port)
	if err != nil {
		return 0, err
	}
	mc, err := i.chip.ReadVlanMC(slot)
	if err != nil {
		return 0, err
	}
	return mc.VID, nil
}

func (i *Info) status() map[string]string {
	m := map[string]string{
		KeyPrefix + "chip":         i.chip.Info.Name,
		KeyPrefix + "tag_protocol": i.chip.TagProtocol().String(),
	}
	if mtu, err := i.chip.MTU(); err == nil {
		m[KeyPrefix+"mtu"] = strconv.Itoa(mtu)
	}
	for _, p := range i.board.Ports {
		if len(p.Name) > 0 {
			m[portKey(p.Port, "name")] = p.Name
		}
		m[portKey(p.Port, "link")] = i.chip.PortLink(p.Port).String()
		if vid, err := i.pvid(p.Port); err == nil {
			m[portKey(p.Port, "pvid")] = strconv.Itoa(int(vid))
		}
		if p.CPU {
			continue
		}
		if s, err := i.chip.STPState(p.Port); err == nil {
			m[portKey(p.Port, "stp")] = s.String()
		}
		if on, err := i.chip.Learning(p.Port); err == nil {
			m[portKey(p.Port, "learning")] = strconv.FormatBool(on)
		}
	}
	return m
}

// publish prints the value if it changed since last published.
func (i *Info) publish(k, v string) {
	if i.last[k] == v {
		return
	}
	if i.debug {
		log.Print("debug", k, ": ", v)
	}
	if _, err := i.pub.Print(k, ": ", v); err != nil {
		log.Print("err", "publish ", k, ": ", err)
		return
	}
	i.last[k] = v
}

func (i *Info) publishStatus() {
	for k, v := range i.status() {
		i.publish(k, v)
	}
}

func (i *Info) update() error {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	if !i.chip.HasIrq() {
		i.pollLinks()
	}
	i.publishStatus()
	return i.hsetStats()
}

// hsetStats pipelines the counters of every port with a link.
func (i *Info) hsetStats() error {
	if i.conn == nil {
		conn, err := redis.Connect()
		if err != nil {
			return err
		}
		i.conn = conn
	}
	n := 0
	for _, p := range i.board.Ports {
		if !i.chip.PortLink(p.Port).Up {
			continue
		}
		s, err := i.chip.Stats64(p.Port)
		if err != nil {
			log.Print("err", "port ", p.Port, " stats: ", err)
			continue
		}
		for _, f := range s.Fields() {
			err = i.conn.Send("HSET", redis.DefaultHash,
				portKey(p.Port, f.Name), f.Value)
			if err != nil {
				return i.drop(err)
			}
			n++
		}
	}
	if n == 0 {
		return nil
	}
	if err := i.conn.Flush(); err != nil {
		return i.drop(err)
	}
	for ; n > 0; n-- {
		if _, err := i.conn.Receive(); err != nil {
			return i.drop(err)
		}
	}
	return nil
}

// drop closes a failed connection so the next update reconnects.
func (i *Info) drop(err error) error {
	i.conn.Close()
	i.conn = nil
	return err
}
