// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package rtl8365mbd

import (
	"sync"

	"github.com/platinasystems/rtl8365mb/internal/irqline"
	"github.com/platinasystems/rtl8365mb/internal/rtl8365mb"
	"github.com/platinasystems/rtl8365mb/internal/swsim"
)

const maxLevelRepeat = 8

// simLine is the interrupt line of a register model. The model raises it
// from inside a register write, so the handler runs on its own goroutine.
type simLine struct {
	mu      sync.Mutex
	pending chan struct{}
	quit    chan struct{}
	done    chan struct{}
}

func newSimLine(sim *swsim.Sim) *simLine {
	l := &simLine{pending: make(chan struct{}, 1)}
	sim.Interrupt = l.raise
	return l
}

func (*simLine) Trigger() rtl8365mb.Trigger { return rtl8365mb.TriggerLow }

func (l *simLine) raise() {
	select {
	case l.pending <- struct{}{}:
	default:
	}
}

func (l *simLine) Request(h func() rtl8365mb.IrqReturn) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.quit != nil {
		return irqline.ErrBusy
	}
	l.quit = make(chan struct{})
	l.done = make(chan struct{})
	go func(quit, done chan struct{}) {
		defer close(done)
		for {
			select {
			case <-quit:
				return
			case <-l.pending:
				// level triggered, service until deasserted
				for n := 0; n < maxLevelRepeat; n++ {
					if h() == rtl8365mb.IrqNone {
						break
					}
				}
			}
		}
	}(l.quit, l.done)
	return nil
}

func (l *simLine) Free() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.quit == nil {
		return nil
	}
	close(l.quit)
	<-l.done
	l.quit, l.done = nil, nil
	return nil
}
