// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package regmap

import (
	"errors"
	"time"

	"github.com/jpillora/backoff"
)

var ErrTimeout = errors.New("timeout")

// Poll calls cond every interval until it reports done or fails. Once
// timeout has passed cond gets one last try before Poll gives up with
// ErrTimeout.
func Poll(cond func() (bool, error), interval, timeout time.Duration) error {
	b := &backoff.Backoff{
		Min:    interval,
		Max:    interval,
		Factor: 1,
		Jitter: false,
	}
	deadline := time.Now().Add(timeout)
	for {
		expired := time.Now().After(deadline)
		done, err := cond()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if expired {
			return ErrTimeout
		}
		time.Sleep(b.Duration())
	}
}

// ReadPoll reads reg until cond accepts its value, returning the last value
// read.
func ReadPoll(m Map, reg uint16, cond func(uint16) bool,
	interval, timeout time.Duration) (uint16, error) {
	var v uint16
	err := Poll(func() (bool, error) {
		var err error
		v, err = m.Read(reg)
		return err == nil && cond(v), err
	}, interval, timeout)
	return v, err
}
