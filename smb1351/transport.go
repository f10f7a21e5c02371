// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package smb1351

import (
	"time"

	"github.com/edaniels/golog"
	"periph.io/x/conn/v3/i2c"
)

// retryDelays are the pauses before each retry of a failed transfer.
var retryDelays = [...]time.Duration{
	10 * time.Millisecond,
	20 * time.Millisecond,
	30 * time.Millisecond,
	40 * time.Millisecond,
	50 * time.Millisecond,
}

// transport is the byte register access layer. A failed transfer is retried
// len(retryDelays) times before it is reported as an *IOError.
type transport struct {
	d     *i2c.Dev
	log   golog.Logger
	sleep func(time.Duration)
}

func newTransport(b i2c.Bus, addr uint16, log golog.Logger) *transport {
	return &transport{d: &i2c.Dev{Bus: b, Addr: addr}, log: log, sleep: time.Sleep}
}

func (t *transport) read(reg byte) (byte, error) {
	var r [1]byte
	err := t.do(func() error { return t.d.Tx([]byte{reg}, r[:]) })
	if err != nil {
		t.log.Errorf("can't read 0x%02X: %v", reg, err)
		return 0, &IOError{Op: "read", Reg: reg, Err: err}
	}
	t.log.Debugf("read 0x%02X=0x%02X", reg, r[0])
	return r[0], nil
}

func (t *transport) write(reg, v byte) error {
	err := t.do(func() error { return t.d.Tx([]byte{reg, v}, nil) })
	if err != nil {
		t.log.Errorf("can't write 0x%02X to 0x%02X: %v", v, reg, err)
		return &IOError{Op: "write", Reg: reg, Err: err}
	}
	t.log.Debugf("write 0x%02X=0x%02X", reg, v)
	return nil
}

func (t *transport) do(tx func() error) error {
	err := tx()
	for i := 0; err != nil && i < len(retryDelays); i++ {
		t.sleep(retryDelays[i])
		err = tx()
	}
	return err
}

// maskedWrite replaces the bits of reg selected by mask with the same bits of
// v. The write is skipped when the read fails.
func (t *transport) maskedWrite(reg, mask, v byte) error {
	cur, err := t.read(reg)
	if err != nil {
		return err
	}
	return t.write(reg, cur&^mask|v&mask)
}

// setBits sets or clears all bits of mask in reg.
func (t *transport) setBits(reg, mask byte, on bool) error {
	var v byte
	if on {
		v = mask
	}
	return t.maskedWrite(reg, mask, v)
}

// ReadReg reads a raw register. It is meant for diagnostics; the driver keeps
// no shadow copy so a value changed here is picked up on the next read.
func (d *Dev) ReadReg(reg byte) (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.t.read(reg)
}

// WriteReg writes a raw register. Configuration registers only accept writes
// after volatile access was enabled, which New does.
func (d *Dev) WriteReg(reg, v byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.t.write(reg, v)
}

// Register is one entry of a register dump.
type Register struct {
	Addr  byte
	Value byte
}

// Dump reads the configuration, command and status register blocks. It stops
// at the first failed read and returns what was read so far.
func (d *Dev) Dump() ([]Register, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []Register
	for _, r := range dumpRanges {
		for a := int(r[0]); a <= int(r[1]); a++ {
			v, err := d.t.read(byte(a))
			if err != nil {
				return out, err
			}
			out = append(out, Register{Addr: byte(a), Value: v})
		}
	}
	return out, nil
}
