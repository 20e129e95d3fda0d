// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package rtl8365mb

import (
	"time"

	"github.com/platinasystems/rtl8365mb/internal/regmap"
)

const (
	MaxPorts  = 11
	MaxPhy    = 7
	MaxPhyReg = 31
	MaxVID    = 0x0fff
	MaxMCVID  = 0x1fff

	portMask   = 0x07ff
	familyCID  = 0x6367
	chipMagic  = 0x0249
	learnLimit = 2112
	unsetTrap  = MaxPorts
	vlanETHLen = 18
	ethFCSLen  = 4
)

// chip identification and reset
const (
	regMagicID   = 0x13c2
	regChipID    = 0x1300
	regChipVer   = 0x1301
	regChipReset = 0x1322
	chipResetHW  = 0x0001

	resetDelay    = 100 * time.Millisecond
	resetInterval = 20 * time.Millisecond
	resetTimeout  = time.Second
)

// indirect PHY access
const (
	regPhyCtrl      = 0x1f00
	regPhyStatus    = 0x1f01
	regPhyAddr      = 0x1f02
	regPhyWriteData = 0x1f03
	regPhyReadData  = 0x1f04
	regPhyOCPMSB    = 0x1d15

	phyCtrlCmd     = 0x0001
	phyCtrlWrite   = 0x0002
	phyAddrCmdBase = 0x2000
	phyOCPBase     = 0xa400

	phyBusyInterval = 10 * time.Microsecond
	phyBusyTimeout  = 100 * time.Microsecond
)

const (
	phyAddrPhyNum   regmap.Field = 0x03e0
	phyAddrOCPAddr5 regmap.Field = 0x001f
	phyAddrOCPAddr9 regmap.Field = 0x0f00
	phyOCPMSBField  regmap.Field = 0x0fc0
)

// table access
const (
	regTableCtrl  = 0x0500
	regTableAddr  = 0x0501
	regTableLUT   = 0x0502
	regTableWrite = 0x0510
	regTableRead  = 0x0520

	tableAddrMask = 0x3fff
	table10thMask = 0x000f
	tableMaxWords = 10
	tableInterval = 10 * time.Microsecond
	tableTimeout  = 100 * time.Microsecond
	tableCmdRead  = 0
	tableCmdWrite = 1
)

const (
	tableCtrlTable regmap.Field = 0x0007
	tableCtrlCmd   regmap.Field = 0x0008
	tableLUTBusy   regmap.Field = 0x2000
)

// vlan
const (
	regVlanCtrl      = 0x07a8
	regVlanIngress   = 0x07a9
	regVlanFrameType = 0x07aa
	regVlanPVIDCtrl  = 0x0700
	regVlanMC        = 0x0728

	vlanCtrlEnable = 0x0001
	vlanMCWords    = 4
	vlanMCSlots    = 32
	vlan4KWords    = 3
)

const (
	pvidCField      regmap.Field = 0x00ff
	pvidDField      regmap.Field = 0x0fff
	vlan4KMembersLS regmap.Field = 0x00ff
	vlan4KMembersMS regmap.Field = 0x0007
	vlan4KUntagLS   regmap.Field = 0xff00
	vlan4KUntagMS   regmap.Field = 0x0038
	vlan4KFID       regmap.Field = 0x000f
	vlanMCMembers   regmap.Field = 0x07ff
	vlanMCFID       regmap.Field = 0x000f
	vlanMCPriority  regmap.Field = 0x000e
	vlanMCEVID      regmap.Field = 0x1fff
)

// mib
const (
	regMIBCounter = 0x1000
	regMIBAddr    = 0x1004
	regMIBCtrl    = 0x1005

	mibCtrlBusy  = 0x0001
	mibCtrlReset = 0x0002
	mibPortWords = 0x7c

	mibInterval = 10 * time.Microsecond
	mibTimeout  = 100 * time.Microsecond
)

// interrupts
const (
	regIntrPolarity = 0x1100
	regIntrCtrl     = 0x1101
	regIntrStatus   = 0x1102
	regLinkDownInd  = 0x1106
	regLinkUpInd    = 0x1107

	intrPolarityLow = 0x0001
	intrLinkChange  = 0x0001

	intrAll = 0x1000 | 0x0800 | 0x0200 | 0x0100 | 0x0080 | 0x0040 |
		0x0020 | 0x0010 | 0x0008 | 0x0004 | 0x0002 | 0x0001
)

// cpu port
const (
	regCPUPortMask = 0x1219
	regCPUCtrl     = 0x121a
)

const (
	cpuCtrlEnable     regmap.Field = 0x0001
	cpuCtrlInsertMode regmap.Field = 0x0006
	cpuCtrlTrapPort   regmap.Field = 0x0038
	cpuCtrlTagPos     regmap.Field = 0x0040
	cpuCtrlRxLen      regmap.Field = 0x0080
	cpuCtrlTagFormat  regmap.Field = 0x0200
	cpuCtrlTrapExt    regmap.Field = 0x0400
)

// port controls
const (
	regMaxLen     = 0x088c
	regLearnLimit = 0x0a20
	regIsolation  = 0x08a2
	regMSTICtrl   = 0x0a00

	maxLenField regmap.Field = 0x3fff
)

// external interfaces
const (
	regExtSelect1 = 0x1305
	regExtSelect2 = 0x13c3
	regForceD0    = 0x12c0
	regForceD1    = 0x12c1
	regForceEnD0  = 0x12c8
	regForceEnD1  = 0x12c9

	extModeRGMII = 1

	forceEnable  = 0x1000
	forceTxPause = 0x0040
	forceRxPause = 0x0020
	forceLink    = 0x0010
	forceDuplex  = 0x0004

	speed10    = 0
	speed100   = 1
	speed1000  = 2
	speed2500D = 5
)

const (
	rgmxfRxDelay regmap.Field = 0x0007
	rgmxfTxDelay regmap.Field = 0x0008
	forceSpeed   regmap.Field = 0x0003
	forceSpeedD  regmap.Field = 0x3000
)

var (
	regRGMXF = [...]uint16{0x1306, 0x1307, 0x13c5}
	regForce = [...]uint16{0x1310, 0x1311, 0x13c4}
)
