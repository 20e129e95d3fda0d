// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package rtl8365mbd attaches an RTL8365MB family switch, publishes its
// port state and counters to redis and serves the switch controls by RPC.
package rtl8365mbd

import (
	"fmt"
	"net/rpc"
	"os"
	"sync"
	"time"

	redigo "github.com/garyburd/redigo/redis"
	"github.com/platinasystems/atsock"
	"github.com/platinasystems/flags"
	"github.com/platinasystems/log"
	"github.com/platinasystems/parms"
	"github.com/platinasystems/redis"
	"github.com/platinasystems/redis/publisher"
	"github.com/platinasystems/rtl8365mb/cmd"
	"github.com/platinasystems/rtl8365mb/internal/rtl8365mb"
	"github.com/platinasystems/rtl8365mb/internal/swconfig"
	"github.com/platinasystems/rtl8365mb/internal/swsim"
	"github.com/platinasystems/rtl8365mb/lang"
)

const (
	Name    = "rtl8365mbd"
	Apropos = "RTL8365MB switch daemon"
	Usage   = "rtl8365mbd [-sim] [-debug] [-config FILE | -dtb FILE] [-poll DURATION]"

	// KeyPrefix is the redis field prefix of everything published and of
	// the fields that may be set.
	KeyPrefix = "rtl8365mb."
)

var apropos = lang.Alt{
	lang.EnUS: Apropos,
}

var man = lang.Alt{
	lang.EnUS: `
DESCRIPTION
	Attach the switch described by the board file, the device tree or
	the built in default, in that order, and publish:

		rtl8365mb.port.N.link
		rtl8365mb.port.N.{pvid,stp,learning}
		rtl8365mb.port.N.{rx_packets,tx_packets,...}

	These may be set with hset:

		rtl8365mb.port.N.{pvid,mtu,stp,learning,vlan_filtering}

OPTIONS
	-sim	attach a register model instead of hardware
	-debug	log each published change
	-config FILE
		YAML board file
	-dtb FILE
		flattened device tree with a realtek,rtl8365mb node
	-poll DURATION
		counter and link poll interval`,
}

type Command struct {
	Info
	Init func()
	init sync.Once
}

// printer is satisfied by the redis publisher.
type printer interface {
	Print(a ...interface{}) (int, error)
}

type Info struct {
	mutex sync.Mutex
	rpc   *atsock.RpcServer
	pub   printer
	conn  redigo.Conn
	stop  chan struct{}
	last  map[string]string
	debug bool

	board *swconfig.Board
	cfg   rtl8365mb.Config
	chip  *rtl8365mb.Chip
	sim   *swsim.Sim
}

func New() *Command { return new(Command) }

func (*Command) Apropos() lang.Alt { return apropos }
func (*Command) Kind() cmd.Kind    { return cmd.Daemon }
func (*Command) Man() lang.Alt     { return man }
func (*Command) String() string    { return Name }
func (*Command) Usage() string     { return Usage }

func (c *Command) Main(args ...string) error {
	if c.Init != nil {
		c.init.Do(c.Init)
	}

	flag, args := flags.New(args, "-sim", "-debug")
	parm, args := parms.New(args, "-config", "-dtb", "-poll")
	if len(args) > 0 {
		return fmt.Errorf("%v: unexpected", args)
	}

	board, err := loadBoard(parm.ByName["-config"], parm.ByName["-dtb"])
	if err != nil {
		return err
	}
	if s := parm.ByName["-poll"]; len(s) > 0 {
		if board.PollInterval, err = time.ParseDuration(s); err != nil {
			return err
		}
	}
	c.debug = flag.ByName["-debug"]

	if err = redis.IsReady(); err != nil {
		return err
	}

	c.stop = make(chan struct{})
	c.last = make(map[string]string)

	if err = c.attach(board, flag.ByName["-sim"]); err != nil {
		return err
	}
	defer c.detach()

	pub, err := publisher.New()
	if err != nil {
		return err
	}
	defer pub.Close()
	c.pub = pub

	if c.rpc, err = atsock.NewRpcServer(Name); err != nil {
		return err
	}
	defer c.rpc.Close()

	rpc.Register(&c.Info)
	err = redis.Assign(redis.DefaultHash+":"+KeyPrefix, Name, "Info")
	if err != nil {
		return err
	}

	interval := board.PollInterval
	if interval <= 0 {
		interval = rtl8365mb.DefaultStatsInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if err = c.update(); err != nil {
			log.Print("err", "update: ", err)
		}
		select {
		case <-c.stop:
			return nil
		case <-t.C:
		}
	}
}

func (c *Command) Close() error {
	if c.stop != nil {
		close(c.stop)
	}
	return nil
}

// loadBoard prefers the named files, then the installed board file, then
// the machine's device tree.
func loadBoard(config, dtb string) (*swconfig.Board, error) {
	switch {
	case len(config) > 0:
		return swconfig.Load(config)
	case len(dtb) > 0:
		return swconfig.LoadDTB(dtb)
	}
	if _, err := os.Stat(swconfig.DefaultFile); err == nil {
		return swconfig.Load(swconfig.DefaultFile)
	}
	if b, err := swconfig.LoadDTB(swconfig.DefaultDTB); err == nil {
		return b, nil
	} else if !os.IsNotExist(err) {
		log.Print("warn", err)
	}
	log.Print("info", "using the default board")
	return swconfig.Default(), nil
}
