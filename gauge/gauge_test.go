// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gauge

import (
	"testing"

	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
)

func probe() i2ctest.IO {
	return i2ctest.IO{Addr: DefaultAddr, W: []byte{regVersion}, R: []byte{0x00, 0x12}}
}

func TestCapacity(t *testing.T) {
	pb := &i2ctest.Playback{Ops: []i2ctest.IO{
		probe(),
		{Addr: DefaultAddr, W: []byte{regSOC}, R: []byte{0x3F, 0xC0}},
		{Addr: DefaultAddr, W: []byte{regSOC}, R: []byte{0x65, 0x00}},
	}}
	d, err := NewI2C(pb, DefaultAddr)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []int{63, 100} {
		got, err := d.Capacity()
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("Capacity() = %d, want %d", got, want)
		}
	}
	if s := d.String(); s != "max17048 v0012: playback(54)" {
		t.Errorf("String() = %q", s)
	}
	if err := pb.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestVoltage(t *testing.T) {
	pb := &i2ctest.Playback{Ops: []i2ctest.IO{
		probe(),
		// 0xCE40 * 78.125µV = 4.125V
		{Addr: DefaultAddr, W: []byte{regVCell}, R: []byte{0xCE, 0x40}},
	}}
	d, err := NewI2C(pb, DefaultAddr)
	if err != nil {
		t.Fatal(err)
	}
	v, err := d.Voltage()
	if err != nil {
		t.Fatal(err)
	}
	if want := 4125 * physic.MilliVolt; v != want {
		t.Errorf("Voltage() = %s, want %s", v, want)
	}
	if err := pb.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestCommands(t *testing.T) {
	pb := &i2ctest.Playback{Ops: []i2ctest.IO{
		probe(),
		{Addr: DefaultAddr, W: []byte{regMode, 0x40, 0x00}},
		{Addr: DefaultAddr, W: []byte{regCommand, 0x54, 0x00}},
	}}
	d, err := NewI2C(pb, DefaultAddr)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.QuickStart(); err != nil {
		t.Fatal(err)
	}
	if err := d.Reset(); err != nil {
		t.Fatal(err)
	}
	if err := pb.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNewI2C_absent(t *testing.T) {
	pb := &i2ctest.Playback{DontPanic: true}
	if _, err := NewI2C(pb, DefaultAddr); err == nil {
		t.Fatal("NewI2C() on an empty bus succeeded")
	}
}
