// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package rtl8365mb

import (
	"fmt"

	"github.com/platinasystems/rtl8365mb/internal/regmap"
)

// MIBCounter indexes the per port hardware counters.
type MIBCounter int

const (
	MIBIfInOctets MIBCounter = iota
	MIBDot3StatsFCSErrors
	MIBDot3StatsSymbolErrors
	MIBDot3InPauseFrames
	MIBDot3ControlInUnknownOpcodes
	MIBEtherStatsFragments
	MIBEtherStatsJabbers
	MIBIfInUcastPkts
	MIBEtherStatsDropEvents
	MIBIfInMulticastPkts
	MIBIfInBroadcastPkts
	MIBInMldChecksumError
	MIBInIgmpChecksumError
	MIBInMldSpecificQuery
	MIBInMldGeneralQuery
	MIBInIgmpSpecificQuery
	MIBInIgmpGeneralQuery
	MIBInMldLeaves
	MIBInIgmpLeaves
	MIBEtherStatsOctets
	MIBEtherStatsUnderSizePkts
	MIBEtherOversizeStats
	MIBEtherStatsPkts64Octets
	MIBEtherStatsPkts65to127Octets
	MIBEtherStatsPkts128to255Octets
	MIBEtherStatsPkts256to511Octets
	MIBEtherStatsPkts512to1023Octets
	MIBEtherStatsPkts1024to1518Octets
	MIBIfOutOctets
	MIBDot3StatsSingleCollisionFrames
	MIBDot3StatsMultipleCollisionFrames
	MIBDot3StatsDeferredTransmissions
	MIBDot3StatsLateCollisions
	MIBEtherStatsCollisions
	MIBDot3StatsExcessiveCollisions
	MIBDot3OutPauseFrames
	MIBIfOutDiscards
	MIBDot1dTpPortInDiscards
	MIBIfOutUcastPkts
	MIBIfOutMulticastPkts
	MIBIfOutBroadcastPkts
	MIBOutOampduPkts
	MIBInOampduPkts
	MIBInIgmpJoinsSuccess
	MIBInIgmpJoinsFail
	MIBInMldJoinsSuccess
	MIBInMldJoinsFail
	MIBInReportSuppressionDrop
	MIBInLeaveSuppressionDrop
	MIBOutIgmpReports
	MIBOutIgmpLeaves
	MIBOutIgmpGeneralQuery
	MIBOutIgmpSpecificQuery
	MIBOutMldReports
	MIBOutMldLeaves
	MIBOutMldGeneralQuery
	MIBOutMldSpecificQuery
	MIBInKnownMulticastPkts
	NMIBCounters
)

type mibCounter struct {
	// in 16-bit words from the start of the port's counter block
	offset int
	// in 16-bit words
	length int
	name   string
}

var mibCounters = [NMIBCounters]mibCounter{
	MIBIfInOctets:                       {0, 4, "ifInOctets"},
	MIBDot3StatsFCSErrors:               {4, 2, "dot3StatsFCSErrors"},
	MIBDot3StatsSymbolErrors:            {6, 2, "dot3StatsSymbolErrors"},
	MIBDot3InPauseFrames:                {8, 2, "dot3InPauseFrames"},
	MIBDot3ControlInUnknownOpcodes:      {10, 2, "dot3ControlInUnknownOpcodes"},
	MIBEtherStatsFragments:              {12, 2, "etherStatsFragments"},
	MIBEtherStatsJabbers:                {14, 2, "etherStatsJabbers"},
	MIBIfInUcastPkts:                    {16, 2, "ifInUcastPkts"},
	MIBEtherStatsDropEvents:             {18, 2, "etherStatsDropEvents"},
	MIBIfInMulticastPkts:                {20, 2, "ifInMulticastPkts"},
	MIBIfInBroadcastPkts:                {22, 2, "ifInBroadcastPkts"},
	MIBInMldChecksumError:               {24, 2, "inMldChecksumError"},
	MIBInIgmpChecksumError:              {26, 2, "inIgmpChecksumError"},
	MIBInMldSpecificQuery:               {28, 2, "inMldSpecificQuery"},
	MIBInMldGeneralQuery:                {30, 2, "inMldGeneralQuery"},
	MIBInIgmpSpecificQuery:              {32, 2, "inIgmpSpecificQuery"},
	MIBInIgmpGeneralQuery:               {34, 2, "inIgmpGeneralQuery"},
	MIBInMldLeaves:                      {36, 2, "inMldLeaves"},
	MIBInIgmpLeaves:                     {38, 2, "inIgmpLeaves"},
	MIBEtherStatsOctets:                 {40, 4, "etherStatsOctets"},
	MIBEtherStatsUnderSizePkts:          {44, 2, "etherStatsUnderSizePkts"},
	MIBEtherOversizeStats:               {46, 2, "etherOversizeStats"},
	MIBEtherStatsPkts64Octets:           {48, 2, "etherStatsPkts64Octets"},
	MIBEtherStatsPkts65to127Octets:      {50, 2, "etherStatsPkts65to127Octets"},
	MIBEtherStatsPkts128to255Octets:     {52, 2, "etherStatsPkts128to255Octets"},
	MIBEtherStatsPkts256to511Octets:     {54, 2, "etherStatsPkts256to511Octets"},
	MIBEtherStatsPkts512to1023Octets:    {56, 2, "etherStatsPkts512to1023Octets"},
	MIBEtherStatsPkts1024to1518Octets:   {58, 2, "etherStatsPkts1024to1518Octets"},
	MIBIfOutOctets:                      {60, 4, "ifOutOctets"},
	MIBDot3StatsSingleCollisionFrames:   {64, 2, "dot3StatsSingleCollisionFrames"},
	MIBDot3StatsMultipleCollisionFrames: {66, 2, "dot3StatsMultipleCollisionFrames"},
	MIBDot3StatsDeferredTransmissions:   {68, 2, "dot3StatsDeferredTransmissions"},
	MIBDot3StatsLateCollisions:          {70, 2, "dot3StatsLateCollisions"},
	MIBEtherStatsCollisions:             {72, 2, "etherStatsCollisions"},
	MIBDot3StatsExcessiveCollisions:     {74, 2, "dot3StatsExcessiveCollisions"},
	MIBDot3OutPauseFrames:               {76, 2, "dot3OutPauseFrames"},
	MIBIfOutDiscards:                    {78, 2, "ifOutDiscards"},
	MIBDot1dTpPortInDiscards:            {80, 2, "dot1dTpPortInDiscards"},
	MIBIfOutUcastPkts:                   {82, 2, "ifOutUcastPkts"},
	MIBIfOutMulticastPkts:               {84, 2, "ifOutMulticastPkts"},
	MIBIfOutBroadcastPkts:               {86, 2, "ifOutBroadcastPkts"},
	MIBOutOampduPkts:                    {88, 2, "outOampduPkts"},
	MIBInOampduPkts:                     {90, 2, "inOampduPkts"},
	MIBInIgmpJoinsSuccess:               {92, 4, "inIgmpJoinsSuccess"},
	MIBInIgmpJoinsFail:                  {96, 2, "inIgmpJoinsFail"},
	MIBInMldJoinsSuccess:                {98, 2, "inMldJoinsSuccess"},
	MIBInMldJoinsFail:                   {100, 2, "inMldJoinsFail"},
	MIBInReportSuppressionDrop:          {102, 2, "inReportSuppressionDrop"},
	MIBInLeaveSuppressionDrop:           {104, 2, "inLeaveSuppressionDrop"},
	MIBOutIgmpReports:                   {106, 2, "outIgmpReports"},
	MIBOutIgmpLeaves:                    {108, 2, "outIgmpLeaves"},
	MIBOutIgmpGeneralQuery:              {110, 2, "outIgmpGeneralQuery"},
	MIBOutIgmpSpecificQuery:             {112, 2, "outIgmpSpecificQuery"},
	MIBOutMldReports:                    {114, 2, "outMldReports"},
	MIBOutMldLeaves:                     {116, 2, "outMldLeaves"},
	MIBOutMldGeneralQuery:               {118, 2, "outMldGeneralQuery"},
	MIBOutMldSpecificQuery:              {120, 2, "outMldSpecificQuery"},
	MIBInKnownMulticastPkts:             {122, 2, "inKnownMulticastPkts"},
}

func (i MIBCounter) String() string {
	if i >= 0 && i < NMIBCounters {
		return mibCounters[i].name
	}
	return fmt.Sprint("mib(", int(i), ")")
}

// MIBNames lists the counter names in index order.
func MIBNames() []string {
	names := make([]string, NMIBCounters)
	for i := range names {
		names[i] = mibCounters[i].name
	}
	return names
}

func (c *Chip) mibIdle() error {
	v, err := regmap.ReadPoll(c.m, regMIBCtrl, func(v uint16) bool {
		return v&mibCtrlBusy == 0
	}, mibInterval, mibTimeout)
	if err != nil {
		return fmt.Errorf("mib busy: %w", err)
	}
	if v&mibCtrlReset != 0 {
		return fmt.Errorf("mib counters resetting: %w", ErrIO)
	}
	return nil
}

// ReadMIB returns one counter of port.
func (c *Chip) ReadMIB(port int, counter MIBCounter) (uint64, error) {
	if err := checkPort(port); err != nil {
		return 0, err
	}
	if counter < 0 || counter >= NMIBCounters {
		return 0, fmt.Errorf("%v: %w", counter, ErrInvalid)
	}
	c.mibMu.Lock()
	defer c.mibMu.Unlock()
	return c.readMIB(port, counter)
}

// readMIB runs the address, status and counter register sequence, which
// must not interleave with another; the caller holds mibMu.
func (c *Chip) readMIB(port int, counter MIBCounter) (uint64, error) {
	mib := &mibCounters[counter]
	addr := (mibPortWords*port + mib.offset) >> 2
	if err := c.m.Write(regMIBAddr, uint16(addr)); err != nil {
		return 0, err
	}
	if err := c.mibIdle(); err != nil {
		return 0, err
	}
	// the counter registers latch the aligned quad holding the counter;
	// start from its most significant word
	hi := 3
	if mib.length != 4 {
		hi = (mib.offset + 1) % 4
	}
	var v uint64
	for i := 0; i < mib.length; i++ {
		w, err := c.m.Read(regMIBCounter + uint16(hi-i))
		if err != nil {
			return 0, err
		}
		v = v<<16 | uint64(w)
	}
	return v, nil
}

// readMIBs reads a batch of counters of port into cnt under one hold of the
// counter lock, stopping at the first error.
func (c *Chip) readMIBs(port int, cnt *[NMIBCounters]uint64, counters ...MIBCounter) error {
	c.mibMu.Lock()
	defer c.mibMu.Unlock()
	for _, counter := range counters {
		v, err := c.readMIB(port, counter)
		if err != nil {
			return fmt.Errorf("port %d %v: %w", port, counter, err)
		}
		cnt[counter] = v
	}
	return nil
}
