// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gauge

import (
	"fmt"
	"sync"

	"github.com/GermanBionicSystems/chargectl/smb1351"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// DefaultAddr is the fixed I²C address of the MAX17048.
const DefaultAddr uint16 = 0x36

// Registers are 16 bits wide, MSB first.
const (
	regVCell   byte = 0x02
	regSOC     byte = 0x04
	regMode    byte = 0x06
	regVersion byte = 0x08
	regCommand byte = 0xFE

	modeQuickStart  uint16 = 0x4000
	cmdPowerOnReset uint16 = 0x5400

	vcellLSB = 78125 * physic.NanoVolt
)

// Dev is a handle to a MAX17048.
type Dev struct {
	mu      sync.Mutex
	d       *i2c.Dev
	version uint16
}

// NewI2C returns a handle to the gauge at addr after reading its version.
func NewI2C(b i2c.Bus, addr uint16) (*Dev, error) {
	d := &Dev{d: &i2c.Dev{Bus: b, Addr: addr}}
	v, err := d.read(regVersion)
	if err != nil {
		return nil, fmt.Errorf("gauge: probing: %w", err)
	}
	d.version = v
	return d, nil
}

func (d *Dev) read(reg byte) (uint16, error) {
	var r [2]byte
	if err := d.d.Tx([]byte{reg}, r[:]); err != nil {
		return 0, err
	}
	return uint16(r[0])<<8 | uint16(r[1]), nil
}

func (d *Dev) write(reg byte, v uint16) error {
	return d.d.Tx([]byte{reg, byte(v >> 8), byte(v)}, nil)
}

// Capacity returns the state of charge in whole percent, capped at 100.
func (d *Dev) Capacity() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, err := d.read(regSOC)
	if err != nil {
		return 0, fmt.Errorf("gauge: reading SOC: %w", err)
	}
	return min(int(v>>8), 100), nil
}

// Voltage returns the cell voltage.
func (d *Dev) Voltage() (physic.ElectricPotential, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, err := d.read(regVCell)
	if err != nil {
		return 0, fmt.Errorf("gauge: reading VCELL: %w", err)
	}
	return physic.ElectricPotential(v) * vcellLSB, nil
}

// QuickStart restarts the state of charge estimation from the present cell
// voltage. Use it only when the cell was at rest at power up.
func (d *Dev) QuickStart() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.write(regMode, modeQuickStart)
}

// Reset power-on resets the gauge. The device doesn't acknowledge the
// command so the bus error is dropped.
func (d *Dev) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_ = d.write(regCommand, cmdPowerOnReset)
	return nil
}

// Halt implements conn.Resource. It has no effect.
func (d *Dev) Halt() error {
	return nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("max17048 v%04X: %s", d.version, d.d.String())
}

var _ conn.Resource = &Dev{}
var _ smb1351.Gauge = &Dev{}
