// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package smb1351

// Configuration registers. They are volatile and only writable after
// cmdBQCfgAccess is set.
const (
	regChgCurrentCtrl  byte = 0x00
	fastChgCurrentMask byte = 0xF0
	fastChgCurrentPos       = 4
	acInputLimitMask   byte = 0x0F

	regChgOthCurrentCtrl byte = 0x01
	preChgCurrentMask    byte = 0xE0
	preChgCurrentPos          = 5
	itermMask            byte = 0x1C
	usb23ModeSelBit      byte = 0x02
	usb51CmdPolarityBit  byte = 0x01

	regVariousFunc       byte = 0x02
	suspendModeCtrlBit   byte = 0x80
	suspendModeCtrlByI2C byte = 0x80
	aiclEnBit            byte = 0x10
	apsdEnBit            byte = 0x04

	regVFloat  byte = 0x03
	vfloatMask byte = 0x3F

	regChgCtrl       byte = 0x04
	autoRechgBit     byte = 0x80
	autoRechgDisable byte = 0x80
	itermEnBit       byte = 0x40
	itermDisable     byte = 0x40
	autoRechgThBit   byte = 0x08
	autoRechgTh50mV  byte = 0x00
	autoRechgTh100mV byte = 0x08

	regChgPinEnCtrl byte = 0x06
	ledBlinkFuncBit byte = 0x80
	enPinCtrlMask   byte = 0x60
	enByI2C0Disable byte = 0x00
	enByI2C0Enable  byte = 0x20
	usbcsCtrlBit    byte = 0x10
	chgErrBit       byte = 0x04
	apsdDoneBit     byte = 0x02

	regThermACtrl     byte = 0x07
	minSysVoltageMask byte = 0xC0
	thermMonitorBit   byte = 0x10

	regFaultInt     byte = 0x0C
	hotColdHardBit  byte = 0x80
	hotColdSoftBit  byte = 0x40
	inputOVLOBit    byte = 0x08
	inputUVLOBit    byte = 0x04
	aiclDoneFailBit byte = 0x02

	regStatusInt   byte = 0x0D
	chgTimeoutBit  byte = 0x80
	battOVPBit     byte = 0x20
	fastTermBit    byte = 0x10
	battMissingBit byte = 0x02
	battLowBit     byte = 0x01

	regVariousFunc2    byte = 0x0E
	preChgToFastChgBit byte = 0x02

	regFlexCharger byte = 0x10
	chgConfigMask  byte = 0x70
	adapter5VTo9V  byte = 0x00

	regHVDCPBattMissingCtrl   byte = 0x12
	battMissingThermPinSrcBit byte = 0x01

	regOTGModePowerOptions byte = 0x14
	adapterConfigMask      byte = 0xC0
	adapterContinuous      byte = 0x80

	regI2CAddr byte = 0x16
)

// Command registers.
const (
	regCmdI2C      byte = 0x30
	cmdBQCfgAccess byte = 0x40

	regCmdInputLimit    byte = 0x31
	cmdSuspendModeBit   byte = 0x40
	cmdInputCurrentMode byte = 0x08
	cmdUSB23SelBit      byte = 0x04
	cmdUSB2Mode         byte = 0x00
	cmdUSB3Mode         byte = 0x04
	cmdUSB15ACMask      byte = 0x03
	cmdUSB100Mode       byte = 0x00
	cmdUSB500Mode       byte = 0x02
	cmdUSBACMode        byte = 0x01

	regCmdChg    byte = 0x32
	cmdChgEnBit  byte = 0x02
	cmdChgEnable byte = 0x02
	cmdOTGEnBit  byte = 0x01

	regCmdHVDCP byte = 0x34
)

// Status registers.
const (
	regStatus4           byte = 0x3A
	status4DoneBit       byte = 0x20
	status4HoldOffBit    byte = 0x08
	status4ChgMask       byte = 0x06
	status4NoCharging    byte = 0x00
	status4PreCharging   byte = 0x02
	status4FastCharging  byte = 0x04
	status4TaperCharging byte = 0x06

	regStatus5  byte = 0x3B
	portCDP     byte = 0x80
	portDCP     byte = 0x40
	portOther   byte = 0x20
	portSDP     byte = 0x10
	portACAA    byte = 0x08
	portACAB    byte = 0x04
	portACAC    byte = 0x02
	portACADock byte = 0x01

	regRevision byte = 0x3F
)

// Interrupt status registers, one per group A..H.
const (
	regIRQA byte = 0x40
	regIRQB byte = 0x41
	regIRQC byte = 0x42
	regIRQD byte = 0x43
	regIRQE byte = 0x44
	regIRQF byte = 0x45
	regIRQG byte = 0x46
	regIRQH byte = 0x47

	irqAHotHardBit     byte = 0x40
	irqAColdHardBit    byte = 0x10
	irqAHotSoftBit     byte = 0x04
	irqAColdSoftBit    byte = 0x01
	irqBBattMissingBit byte = 0x10
	irqCTermBit        byte = 0x01
	irqEUSBInUVBit     byte = 0x10
	irqGSourceDetBit   byte = 0x40
)

// dumpRanges are the register blocks reported by Dump.
var dumpRanges = [][2]byte{
	{regChgCurrentCtrl, regI2CAddr},
	{regCmdI2C, regCmdHVDCP},
	{0x36, regRevision},
}
