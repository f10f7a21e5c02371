// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package smb1351

import (
	"errors"
	"testing"
)

func TestReason_String(t *testing.T) {
	for r, want := range map[Reason]string{
		0:                 "none",
		User:              "user",
		User | Thermal:    "user|thermal",
		Current | Factory: "current|factory",
		SOC:               "soc",
	} {
		if got := r.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", r, got, want)
		}
	}
}

func TestChargeDisable(t *testing.T) {
	bus := &fakeBus{}
	d := newTestDev(t, bus, Opts{})
	steps := []struct {
		r        Reason
		disable  bool
		writes   int
		disabled bool
	}{
		{User, true, 1, true},
		{Thermal, true, 1, true},
		// Another reason still holds it.
		{Thermal, false, 1, true},
		{User, false, 2, false},
		// Releasing an unheld reason changes nothing.
		{SOC, false, 2, false},
	}
	for i, s := range steps {
		if err := d.SetChargeDisable(s.r, s.disable); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if got := len(bus.writes(regCmdChg)); got != s.writes {
			t.Errorf("step %d: %d writes, want %d", i, got, s.writes)
		}
		if got := bus.get(regCmdChg)&cmdChgEnBit == 0; got != s.disabled {
			t.Errorf("step %d: disabled = %t, want %t", i, got, s.disabled)
		}
	}
}

func TestChargeDisable_writeFailure(t *testing.T) {
	bus := &fakeBus{}
	d := newTestDev(t, bus, Opts{})
	bus.setBroken(regCmdChg, true)
	if err := d.SetChargeDisable(User, true); !errors.Is(err, ErrIO) {
		t.Fatalf("SetChargeDisable() = %v, want ErrIO", err)
	}
	if disable, _ := d.Votes(); disable != User {
		t.Errorf("vote lost after failed write: %s", disable)
	}
	bus.setBroken(regCmdChg, false)
	// The hardware bit wasn't advanced so any vote retries the write.
	if err := d.SetChargeDisable(SOC, false); err != nil {
		t.Fatal(err)
	}
	if bus.get(regCmdChg)&cmdChgEnBit != 0 {
		t.Error("charging still enabled")
	}
}

func TestInputSuspend(t *testing.T) {
	bus := &fakeBus{}
	bus.set(regCmdInputLimit, 0x0A)
	d := newTestDev(t, bus, Opts{})
	if err := d.SetInputSuspend(User, true); err != nil {
		t.Fatal(err)
	}
	if err := d.SetInputSuspend(Current, true); err != nil {
		t.Fatal(err)
	}
	if got := bus.get(regCmdInputLimit); got != 0x4A {
		t.Errorf("CMD_INPUT_LIMIT = 0x%02X, want 0x4A", got)
	}
	if err := d.SetInputSuspend(User, false); err != nil {
		t.Fatal(err)
	}
	if _, s := d.Votes(); s != Current {
		t.Errorf("suspend votes = %s, want current", s)
	}
	if err := d.SetInputSuspend(Current, false); err != nil {
		t.Fatal(err)
	}
	if got := bus.get(regCmdInputLimit); got != 0x0A {
		t.Errorf("CMD_INPUT_LIMIT = 0x%02X, want 0x0A", got)
	}
	if got := len(bus.writes(regCmdInputLimit)); got != 2 {
		t.Errorf("%d writes, want 2", got)
	}
}

func TestVotes_factory(t *testing.T) {
	bus := &fakeBus{}
	d := newTestDev(t, bus, Opts{Factory: true})
	if err := d.SetChargeDisable(User, true); err != nil {
		t.Fatal(err)
	}
	if err := d.SetInputSuspend(Factory, true); err != nil {
		t.Fatal(err)
	}
	if len(bus.ops) != 0 {
		t.Errorf("factory mode votes reached the bus: %v", bus.ops)
	}
}

// permutations returns every ordering of rs.
func permutations(rs []Reason) [][]Reason {
	if len(rs) <= 1 {
		return [][]Reason{append([]Reason(nil), rs...)}
	}
	var out [][]Reason
	for i, r := range rs {
		rest := append(append([]Reason(nil), rs[:i]...), rs[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]Reason{r}, p...))
		}
	}
	return out
}

func TestVotes_anyOrder(t *testing.T) {
	bus := &fakeBus{}
	d := newTestDev(t, bus, Opts{})
	if disable, suspend := d.Votes(); disable != 0 || suspend != 0 {
		t.Fatalf("initial votes %s, %s", disable, suspend)
	}
	for _, p := range permutations([]Reason{User, Thermal, Current, SOC, Factory}) {
		for _, held := range []bool{true, false} {
			for _, r := range p {
				if err := d.SetChargeDisable(r, held); err != nil {
					t.Fatal(err)
				}
				if err := d.SetInputSuspend(r, held); err != nil {
					t.Fatal(err)
				}
				disable, suspend := d.Votes()
				if enabled := bus.get(regCmdChg)&cmdChgEnBit != 0; enabled != (disable == 0) {
					t.Fatalf("%v: after %s held=%t, charging enabled = %t with votes %s", p, r, held, enabled, disable)
				}
				if suspended := bus.get(regCmdInputLimit)&cmdSuspendModeBit != 0; suspended != (suspend != 0) {
					t.Fatalf("%v: after %s held=%t, input suspended = %t with votes %s", p, r, held, suspended, suspend)
				}
			}
		}
	}
}
