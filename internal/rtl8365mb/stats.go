// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package rtl8365mb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/platinasystems/log"
)

const DefaultStatsInterval = 3 * time.Second

// Stats64 are the link statistics kept current by each port's MIB task.
type Stats64 struct {
	RxPackets       uint64
	TxPackets       uint64
	RxBytes         uint64
	TxBytes         uint64
	RxErrors        uint64
	TxErrors        uint64
	RxDropped       uint64
	TxDropped       uint64
	Multicast       uint64
	Collisions      uint64
	RxLengthErrors  uint64
	RxCRCErrors     uint64
	TxAbortedErrors uint64
	TxWindowErrors  uint64
}

// Fields lists the counters by their redis field names.
func (s *Stats64) Fields() []struct {
	Name  string
	Value uint64
} {
	return []struct {
		Name  string
		Value uint64
	}{
		{"rx_packets", s.RxPackets},
		{"tx_packets", s.TxPackets},
		{"rx_bytes", s.RxBytes},
		{"tx_bytes", s.TxBytes},
		{"rx_errors", s.RxErrors},
		{"tx_errors", s.TxErrors},
		{"rx_dropped", s.RxDropped},
		{"tx_dropped", s.TxDropped},
		{"multicast", s.Multicast},
		{"collisions", s.Collisions},
		{"rx_length_errors", s.RxLengthErrors},
		{"rx_crc_errors", s.RxCRCErrors},
		{"tx_aborted_errors", s.TxAbortedErrors},
		{"tx_window_errors", s.TxWindowErrors},
	}
}

var stats64Counters = []MIBCounter{
	MIBIfOutOctets,
	MIBIfOutUcastPkts,
	MIBIfOutMulticastPkts,
	MIBIfOutBroadcastPkts,
	MIBIfOutDiscards,
	MIBIfInOctets,
	MIBIfInUcastPkts,
	MIBIfInMulticastPkts,
	MIBIfInBroadcastPkts,
	MIBEtherStatsDropEvents,
	MIBEtherStatsCollisions,
	MIBEtherStatsFragments,
	MIBEtherStatsJabbers,
	MIBDot3StatsFCSErrors,
	MIBDot3StatsLateCollisions,
}

func stats64(cnt *[NMIBCounters]uint64) (s Stats64) {
	s.RxPackets = cnt[MIBIfInUcastPkts] + cnt[MIBIfInMulticastPkts] +
		cnt[MIBIfInBroadcastPkts] - cnt[MIBIfOutDiscards]
	s.TxPackets = cnt[MIBIfOutUcastPkts] + cnt[MIBIfOutMulticastPkts] +
		cnt[MIBIfOutBroadcastPkts]
	// octet counters include the FCS
	s.RxBytes = cnt[MIBIfInOctets] - 4*s.RxPackets
	s.TxBytes = cnt[MIBIfOutOctets] - 4*s.TxPackets
	s.RxDropped = cnt[MIBEtherStatsDropEvents]
	s.TxDropped = cnt[MIBIfOutDiscards]
	s.Multicast = cnt[MIBIfInMulticastPkts]
	s.Collisions = cnt[MIBEtherStatsCollisions]
	s.RxLengthErrors = cnt[MIBEtherStatsFragments] + cnt[MIBEtherStatsJabbers]
	s.RxCRCErrors = cnt[MIBDot3StatsFCSErrors]
	s.RxErrors = s.RxLengthErrors + s.RxCRCErrors
	s.TxAbortedErrors = cnt[MIBIfOutDiscards]
	s.TxWindowErrors = cnt[MIBDot3StatsLateCollisions]
	s.TxErrors = s.TxAbortedErrors + s.TxWindowErrors
	return
}

// statsUpdate refreshes the port's snapshot; on any read error the
// previous snapshot stays.
func (c *Chip) statsUpdate(port int) error {
	var cnt [NMIBCounters]uint64
	p := &c.ports[port]
	if err := c.readMIBs(port, &cnt, stats64Counters...); err != nil {
		if l := c.statsLog; l != nil {
			l.Print("err", "stats: ", err)
		}
		return err
	}
	s := stats64(&cnt)
	p.statsMu.Lock()
	p.stats = s
	p.statsAt = time.Now()
	p.statsMu.Unlock()
	return nil
}

// Stats64 copies the port's last published snapshot; it never touches the
// bus.
func (c *Chip) Stats64(port int) (Stats64, error) {
	if err := checkPort(port); err != nil {
		return Stats64{}, err
	}
	p := &c.ports[port]
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return p.stats, nil
}

// mibTask is a port's periodic statistics refresh. It runs from link up
// until link down or teardown.
type mibTask struct {
	c    *Chip
	port int

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// schedule starts the task now unless it is already running; outside of
// stats setup and teardown, or on an unused port, it does nothing.
func (t *mibTask) schedule() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.c == nil {
		return
	}
	if t.cancel != nil {
		select {
		case <-t.done:
		default:
			return
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done = make(chan struct{})
	go t.run(ctx, t.c, t.done)
}

func (t *mibTask) run(ctx context.Context, c *Chip, done chan struct{}) {
	defer close(done)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		c.statsUpdate(t.port)
		timer.Reset(c.statsInterval)
	}
}

// cancelSync stops the task and waits out an update in progress.
func (t *mibTask) cancelSync() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (t *mibTask) running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel == nil {
		return false
	}
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

func (c *Chip) statsSetup() {
	// a dead bus fails every port every cycle
	c.statsLog = log.NewRateLimited(1, time.Minute)
	for i := range c.ports {
		if !c.used(i) {
			continue
		}
		t := &c.ports[i].mib
		t.mu.Lock()
		t.c, t.port = c, i
		t.mu.Unlock()
	}
}

func (c *Chip) statsTeardown() {
	for i := range c.ports {
		t := &c.ports[i].mib
		t.mu.Lock()
		t.c = nil
		t.mu.Unlock()
		t.cancelSync()
	}
	if c.statsLog != nil {
		c.statsLog.Close()
		c.statsLog = nil
	}
}

// EthtoolStrings names the values of EthtoolStats.
func EthtoolStrings() []string { return MIBNames() }

// EthtoolStats reads every counter of port in table order under one hold of
// the counter lock. On error the values read so far are returned with it.
func (c *Chip) EthtoolStats(port int) ([]uint64, error) {
	if err := checkPort(port); err != nil {
		return nil, err
	}
	vals := make([]uint64, NMIBCounters)
	c.mibMu.Lock()
	defer c.mibMu.Unlock()
	for i := MIBCounter(0); i < NMIBCounters; i++ {
		v, err := c.readMIB(port, i)
		if err != nil {
			return vals, fmt.Errorf("port %d %v: %w", port, i, err)
		}
		vals[i] = v
	}
	return vals, nil
}

// MACStats are IEEE 802.3 MAC managed objects.
type MACStats struct {
	FramesTransmittedOK         uint64
	SingleCollisionFrames       uint64
	MultipleCollisionFrames     uint64
	FramesReceivedOK            uint64
	FrameCheckSequenceErrors    uint64
	OctetsTransmittedOK         uint64
	FramesWithDeferredXmissions uint64
	LateCollisions              uint64
	FramesAbortedDueToXSColls   uint64
	OctetsReceivedOK            uint64
	MulticastFramesXmittedOK    uint64
	BroadcastFramesXmittedOK    uint64
	MulticastFramesReceivedOK   uint64
	BroadcastFramesReceivedOK   uint64
}

var macCounters = []MIBCounter{
	MIBIfOutOctets,
	MIBIfOutUcastPkts,
	MIBIfOutMulticastPkts,
	MIBIfOutBroadcastPkts,
	MIBDot3OutPauseFrames,
	MIBIfOutDiscards,
	MIBIfInOctets,
	MIBIfInUcastPkts,
	MIBIfInMulticastPkts,
	MIBIfInBroadcastPkts,
	MIBDot3InPauseFrames,
	MIBDot3StatsSingleCollisionFrames,
	MIBDot3StatsMultipleCollisionFrames,
	MIBDot3StatsFCSErrors,
	MIBDot3StatsDeferredTransmissions,
	MIBDot3StatsLateCollisions,
	MIBDot3StatsExcessiveCollisions,
}

// MACStats translates the MIB objects of port; the octet counts exclude
// 18 bytes of header and FCS per frame.
func (c *Chip) MACStats(port int) (s MACStats, err error) {
	if err = checkPort(port); err != nil {
		return
	}
	var cnt [NMIBCounters]uint64
	if err = c.readMIBs(port, &cnt, macCounters...); err != nil {
		return
	}
	s.FramesTransmittedOK = cnt[MIBIfOutUcastPkts] +
		cnt[MIBIfOutMulticastPkts] + cnt[MIBIfOutBroadcastPkts] +
		cnt[MIBDot3OutPauseFrames] - cnt[MIBIfOutDiscards]
	s.SingleCollisionFrames = cnt[MIBDot3StatsSingleCollisionFrames]
	s.MultipleCollisionFrames = cnt[MIBDot3StatsMultipleCollisionFrames]
	s.FramesReceivedOK = cnt[MIBIfInUcastPkts] + cnt[MIBIfInMulticastPkts] +
		cnt[MIBIfInBroadcastPkts] + cnt[MIBDot3InPauseFrames]
	s.FrameCheckSequenceErrors = cnt[MIBDot3StatsFCSErrors]
	s.OctetsTransmittedOK = cnt[MIBIfOutOctets] - 18*s.FramesTransmittedOK
	s.FramesWithDeferredXmissions = cnt[MIBDot3StatsDeferredTransmissions]
	s.LateCollisions = cnt[MIBDot3StatsLateCollisions]
	s.FramesAbortedDueToXSColls = cnt[MIBDot3StatsExcessiveCollisions]
	s.OctetsReceivedOK = cnt[MIBIfInOctets] - 18*s.FramesReceivedOK
	s.MulticastFramesXmittedOK = cnt[MIBIfOutMulticastPkts]
	s.BroadcastFramesXmittedOK = cnt[MIBIfOutBroadcastPkts]
	s.MulticastFramesReceivedOK = cnt[MIBIfInMulticastPkts]
	s.BroadcastFramesReceivedOK = cnt[MIBIfInBroadcastPkts]
	return
}

// PHYStats returns symbol errors during carrier.
func (c *Chip) PHYStats(port int) (uint64, error) {
	return c.ReadMIB(port, MIBDot3StatsSymbolErrors)
}

// CtrlStats returns unsupported MAC control opcodes received.
func (c *Chip) CtrlStats(port int) (uint64, error) {
	return c.ReadMIB(port, MIBDot3ControlInUnknownOpcodes)
}

// RMONRanges bound the frame size histogram of RMONStats.
var RMONRanges = [...]struct{ Low, High int }{
	{0, 64},
	{65, 127},
	{128, 255},
	{256, 511},
	{512, 1023},
	{1024, 1518},
}

type RMONStats struct {
	UndersizePkts uint64
	OversizePkts  uint64
	Fragments     uint64
	Jabbers       uint64
	Hist          [len(RMONRanges)]uint64
}

var rmonCounters = []MIBCounter{
	MIBEtherStatsUnderSizePkts,
	MIBEtherOversizeStats,
	MIBEtherStatsFragments,
	MIBEtherStatsJabbers,
	MIBEtherStatsPkts64Octets,
	MIBEtherStatsPkts65to127Octets,
	MIBEtherStatsPkts128to255Octets,
	MIBEtherStatsPkts256to511Octets,
	MIBEtherStatsPkts512to1023Octets,
	MIBEtherStatsPkts1024to1518Octets,
}

func (c *Chip) RMONStats(port int) (s RMONStats, err error) {
	if err = checkPort(port); err != nil {
		return
	}
	var cnt [NMIBCounters]uint64
	if err = c.readMIBs(port, &cnt, rmonCounters...); err != nil {
		return
	}
	s.UndersizePkts = cnt[MIBEtherStatsUnderSizePkts]
	s.OversizePkts = cnt[MIBEtherOversizeStats]
	s.Fragments = cnt[MIBEtherStatsFragments]
	s.Jabbers = cnt[MIBEtherStatsJabbers]
	for i, counter := range rmonCounters[4:] {
		s.Hist[i] = cnt[counter]
	}
	return
}
