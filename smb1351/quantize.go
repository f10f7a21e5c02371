// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package smb1351

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// Limits of the charge paths, in mA and mV.
const (
	preChgMinMA  = 100
	fastChgMinMA = 1000
	fastChgMaxMA = 4500

	vfloatMinMV  = 3500
	vfloatMaxMV  = 4500
	vfloatStepMV = 20

	// suspendCurrentMA and below suspends the input.
	suspendCurrentMA = 2
)

// entry maps a physical value to its field code, before shifting.
type entry struct {
	value int
	code  byte
}

// table is sorted by ascending value.
type table []entry

// floor returns the largest entry not above v, or the first entry when v is
// below all of them.
func (t table) floor(v int) entry {
	i := 0
	for j := range t {
		if t[j].value > v {
			break
		}
		i = j
	}
	return t[i]
}

func indexed(values ...int) table {
	t := make(table, len(values))
	for i, v := range values {
		t[i] = entry{value: v, code: byte(i)}
	}
	return t
}

var (
	// usbTable is the high current input limit in mA.
	usbTable = indexed(500, 700, 1000, 1100, 1200, 1300, 1500, 1600, 1700, 1800, 2000, 2200, 2500, 3000, 3500, 3940)

	fastChargeTable = indexed(1000, 1200, 1400, 1600, 1800, 2000, 2400, 2600, 2800, 3000, 3400, 3600, 3800, 4000, 4500)

	// preChargeTable codes aren't monotonic: the two lowest settings sit at
	// the top of the field.
	preChargeTable = table{
		{100, 0x7},
		{120, 0x6},
		{200, 0x0},
		{300, 0x1},
		{400, 0x2},
		{500, 0x3},
		{600, 0x4},
		{700, 0x5},
	}

	// itermTable is in ascending threshold order; the first threshold not
	// below the request wins.
	itermTable = table{
		{70, 0x1C},
		{100, 0x18},
		{200, 0x00},
		{300, 0x04},
		{400, 0x08},
		{500, 0x0C},
		{600, 0x10},
	}
	itermAbove600 byte = 0x14
)

// chargeSetting is a quantized charge current.
type chargeSetting struct {
	// pre is set when the current is programmed through the pre-charge field.
	pre bool
	// field is the code shifted into its register position.
	field byte
	ma    int
}

// quantizeCharge maps a requested charge current to a register setting.
// Below the fast charge table, a parallel charger falls back to the
// pre-charge table.
func quantizeCharge(ma int, parallel bool) (chargeSetting, error) {
	lo := fastChgMinMA
	if parallel {
		lo = preChgMinMA
	}
	if ma < lo || ma > fastChgMaxMA {
		return chargeSetting{}, fmt.Errorf("%w: charge current %d mA not in [%d, %d]", ErrOutOfRange, ma, lo, fastChgMaxMA)
	}
	if ma < fastChgMinMA {
		e := preChargeTable.floor(ma)
		return chargeSetting{pre: true, field: e.code << preChgCurrentPos, ma: e.value}, nil
	}
	e := fastChargeTable.floor(ma)
	return chargeSetting{field: e.code << fastChgCurrentPos, ma: e.value}, nil
}

// quantizeFloat returns the float voltage code and the voltage it programs.
func quantizeFloat(mv int) (byte, int, error) {
	if mv < vfloatMinMV || mv > vfloatMaxMV {
		return 0, 0, fmt.Errorf("%w: float voltage %d mV not in [%d, %d]", ErrOutOfRange, mv, vfloatMinMV, vfloatMaxMV)
	}
	code := (mv - vfloatMinMV) / vfloatStepMV
	return byte(code), vfloatMinMV + code*vfloatStepMV, nil
}

// itermCode returns the termination current field value.
func itermCode(ma int) byte {
	for _, e := range itermTable {
		if ma <= e.value {
			return e.code
		}
	}
	return itermAbove600
}

// rechargeThreshold returns the auto recharge threshold field value.
func rechargeThreshold(mv int) byte {
	if mv > 50 {
		return autoRechgTh100mV
	}
	return autoRechgTh50mV
}

// inputClass is the command register value selecting an input current mode.
type inputClass struct {
	mask byte
	v    byte
	// ac is set for high current mode, acCode then holds the table code.
	ac     bool
	acCode byte
}

// classifyInput maps a USB input current request to the command register
// setting. Requests of suspendCurrentMA or less must be handled by suspending
// the input before calling it.
func classifyInput(ma int) inputClass {
	if ma > suspendCurrentMA && ma < 100 {
		ma = 100
	}
	c := inputClass{mask: cmdInputCurrentMode | cmdUSB23SelBit | cmdUSB15ACMask}
	switch {
	case ma == 100:
		c.v = cmdUSB2Mode | cmdUSB100Mode
	case ma == 150:
		c.v = cmdUSB3Mode | cmdUSB100Mode
	case ma == 500:
		c.v = cmdUSB2Mode | cmdUSB500Mode
	case ma == 900:
		c.v = cmdUSB3Mode | cmdUSB500Mode
	case ma > 500:
		c.v = cmdUSBACMode
		c.ac = true
		c.acCode = usbTable.floor(ma).code
	}
	c.v |= cmdInputCurrentMode
	return c
}

func toMilliAmpere(i physic.ElectricCurrent) int {
	return int(i / physic.MilliAmpere)
}

func toMilliVolt(v physic.ElectricPotential) int {
	return int(v / physic.MilliVolt)
}
