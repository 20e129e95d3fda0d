// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package irqline is the host side of the switch interrupt pin: a sysfs
// gpio configured for edge events and waited on with poll(2).
package irqline

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/platinasystems/gpio"
	"github.com/platinasystems/log"
	"github.com/platinasystems/rtl8365mb/internal/rtl8365mb"
	"golang.org/x/sys/unix"
)

// level triggers are emulated by re-servicing while the pin stays asserted
const maxLevelRepeat = 8

var ErrBusy = errors.New("irq line already requested")

// sysfs has no level modes
var edges = map[rtl8365mb.Trigger]string{
	rtl8365mb.TriggerNone:    "none",
	rtl8365mb.TriggerRising:  "rising",
	rtl8365mb.TriggerFalling: "falling",
	rtl8365mb.TriggerHigh:    "rising",
	rtl8365mb.TriggerLow:     "falling",
}

type Line struct {
	Pin gpio.Pin
	// Prefix is prepended to sysfs paths; it is empty except in tests.
	Prefix string

	trigger rtl8365mb.Trigger

	mu      sync.Mutex
	value   *os.File
	wake    [2]int
	done    chan struct{}
	handler func() rtl8365mb.IrqReturn
}

func New(pin gpio.Pin, trigger rtl8365mb.Trigger) *Line {
	return &Line{Pin: pin, trigger: trigger}
}

func (l *Line) Trigger() rtl8365mb.Trigger { return l.trigger }

func (l *Line) fn(name string) string {
	return fmt.Sprintf(l.Prefix+"/sys/class/gpio/gpio%d/%s",
		l.Pin&gpio.PinIndexMask, name)
}

func (l *Line) export() error {
	f, err := os.OpenFile(l.Prefix+"/sys/class/gpio/export", os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "%d\n", l.Pin&gpio.PinIndexMask)
	return err
}

func (l *Line) open(name string, flag int) (*os.File, error) {
	f, err := os.OpenFile(l.fn(name), flag, 0)
	if e, ok := err.(*os.PathError); ok && e.Err == syscall.ENOENT {
		if err = l.export(); err != nil {
			return nil, err
		}
		// give the kernel a moment to populate the gpio directory
		time.Sleep(10 * time.Millisecond)
		f, err = os.OpenFile(l.fn(name), flag, 0)
	}
	return f, err
}

func (l *Line) set(name, v string) error {
	f, err := l.open(name, os.O_WRONLY)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "%s\n", v)
	return err
}

// Configure sets the pin as an input with the edge matching the trigger.
func (l *Line) Configure() error {
	edge, found := edges[l.trigger]
	if !found {
		return fmt.Errorf("%v: %w", l.trigger, rtl8365mb.ErrInvalid)
	}
	if err := l.set("direction", "in"); err != nil {
		return err
	}
	return l.set("edge", edge)
}

// Request configures the pin and starts a goroutine that calls h for
// every event until Free.
func (l *Line) Request(h func() rtl8365mb.IrqReturn) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done != nil {
		return ErrBusy
	}
	if err := l.Configure(); err != nil {
		return err
	}
	f, err := l.open("value", os.O_RDONLY)
	if err != nil {
		return err
	}
	if err = unix.Pipe2(l.wake[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		f.Close()
		return err
	}
	// the first read clears the event pending since export
	l.read(f)
	l.value = f
	l.handler = h
	l.done = make(chan struct{})
	go l.loop(f, l.wake[0], l.done)
	return nil
}

// Free stops the wait loop and waits for a handler in progress to return.
func (l *Line) Free() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done == nil {
		return nil
	}
	unix.Write(l.wake[1], []byte{0})
	<-l.done
	unix.Close(l.wake[0])
	unix.Close(l.wake[1])
	err := l.value.Close()
	l.value = nil
	l.handler = nil
	l.done = nil
	return err
}

func (l *Line) loop(f *os.File, wake int, done chan<- struct{}) {
	defer close(done)
	fds := []unix.PollFd{
		{Fd: int32(f.Fd()), Events: unix.POLLPRI | unix.POLLERR},
		{Fd: int32(wake), Events: unix.POLLIN},
	}
	for {
		_, err := unix.Poll(fds, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			log.Print("err", "irqline poll: ", err)
			return
		}
		if fds[1].Revents != 0 {
			return
		}
		if fds[0].Revents&(unix.POLLPRI|unix.POLLERR) != 0 {
			l.service(f)
		}
	}
}

// service runs the handler once per edge, and again while a level
// triggered line remains asserted.
func (l *Line) service(f *os.File) {
	l.read(f)
	for i := 0; i < maxLevelRepeat; i++ {
		if l.handler() == rtl8365mb.IrqNone {
			return
		}
		if l.trigger != rtl8365mb.TriggerHigh &&
			l.trigger != rtl8365mb.TriggerLow {
			return
		}
		high, err := l.read(f)
		if err != nil {
			log.Print("err", "irqline value: ", err)
			return
		}
		if high != (l.trigger == rtl8365mb.TriggerHigh) {
			return
		}
	}
}

// read rewinds and reads the value file, which also acknowledges the
// pending event.
func (l *Line) read(f *os.File) (bool, error) {
	buf := make([]byte, 4)
	n, err := f.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return false, err
	}
	switch s := string(bytes.TrimSpace(buf[:n])); s {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, fmt.Errorf("%s: unexpected value %q",
			l.fn("value"), s)
	}
}
