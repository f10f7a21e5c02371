// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package smb1351

import (
	"errors"
	"testing"

	"periph.io/x/conn/v3/physic"
)

func TestStatus_chargeState(t *testing.T) {
	for _, tc := range []struct {
		status4 byte
		battery BatteryStatus
		charge  ChargeType
	}{
		{0x00, StatusDischarging, ChargeNone},
		{status4PreCharging, StatusCharging, ChargeTrickle},
		{status4FastCharging, StatusCharging, ChargeFast},
		{status4TaperCharging, StatusCharging, ChargeTaper},
		{status4HoldOffBit | status4FastCharging, StatusNotCharging, ChargeFast},
	} {
		bus := &fakeBus{}
		d := newTestDev(t, bus, Opts{})
		bus.set(regStatus4, tc.status4)
		s := d.Status()
		if s.Battery != tc.battery || s.ChargeType != tc.charge {
			t.Errorf("STATUS_4 0x%02X: %s/%s, want %s/%s", tc.status4, s.Battery, s.ChargeType, tc.battery, tc.charge)
		}
	}
}

func TestStatus_unreadable(t *testing.T) {
	bus := &fakeBus{}
	d := newTestDev(t, bus, Opts{})
	bus.setBroken(regStatus4, true)
	if s := d.Status(); s.Battery != StatusUnknown || s.ChargeType != ChargeUnknown {
		t.Errorf("Status() = %s/%s", s.Battery, s.ChargeType)
	}
}

func TestCapacity(t *testing.T) {
	bus := &fakeBus{}
	g := &fakeGauge{capacity: 77}
	d := newTestDev(t, bus, Opts{})
	if got, _ := d.Property(PropCapacity); got != DefaultCapacity {
		t.Errorf("capacity %d without gauge", got)
	}
	d.opts.Gauge = g
	if got, _ := d.Property(PropCapacity); got != 77 {
		t.Errorf("capacity %d from gauge", got)
	}
	g.err = errors.New("gauge offline")
	if got, _ := d.Property(PropCapacity); got != DefaultCapacity {
		t.Errorf("capacity %d with failing gauge", got)
	}
	if err := d.SetProperty(PropCapacity, 12); err != nil {
		t.Fatal(err)
	}
	if got, _ := d.Property(PropCapacity); got != 12 {
		t.Errorf("capacity %d after override", got)
	}
	if got, _ := d.Property(PropTemp); got != 250 {
		t.Errorf("default temperature %d", got)
	}
}

func TestSetProperty_primary(t *testing.T) {
	bus := &fakeBus{}
	d := newTestDev(t, bus, Opts{})
	if err := d.SetProperty(PropChargingEnabled, 0); err != nil {
		t.Fatal(err)
	}
	if v, _ := d.Property(PropChargingEnabled); v != 0 {
		t.Error("charging still reported enabled")
	}
	if err := d.SetProperty(PropChargingEnabled, 1); err != nil {
		t.Fatal(err)
	}
	if bus.get(regCmdChg)&cmdChgEnBit == 0 {
		t.Error("charging not re-enabled")
	}
	if err := d.SetProperty(PropConstantChargeCurrentMax, 2000000); err != nil {
		t.Fatal(err)
	}
	if v, _ := d.Property(PropConstantChargeCurrentMax); v != 2000000 {
		t.Errorf("constant charge current %dµA", v)
	}
	if err := d.SetProperty(PropVoltageMax, 4400000); err != nil {
		t.Fatal(err)
	}
	if v, _ := d.Property(PropVoltageMax); v != 4400000 {
		t.Errorf("voltage max %dµV", v)
	}
	if err := d.SetProperty(PropCurrentMax, 900000); err != nil {
		t.Fatal(err)
	}
	if got := bus.get(regCmdInputLimit) & 0x0F; got != 0x0E {
		t.Errorf("input command 0x%02X", got)
	}
	if err := d.SetProperty(PropPresent, 1); !errors.Is(err, ErrNotParallel) {
		t.Errorf("SetProperty(present) = %v", err)
	}
	if err := d.SetProperty(PropStatus, int(StatusFull)); !errors.Is(err, ErrUnsupportedProperty) {
		t.Errorf("SetProperty(status) = %v", err)
	}
	if _, err := d.Property(Property(99)); !errors.Is(err, ErrUnsupportedProperty) {
		t.Errorf("Property(99) = %v", err)
	}
}

func TestSetProperty_socControlled(t *testing.T) {
	bus := &fakeBus{}
	sup := &fakeSupply{}
	d := newTestDev(t, bus, Opts{SOCControlled: true, Supply: sup})
	before, _ := sup.counts()
	if err := d.SetProperty(PropStatus, int(StatusFull)); err != nil {
		t.Fatal(err)
	}
	if disable, _ := d.Votes(); disable != SOC {
		t.Errorf("disable votes = %s", disable)
	}
	if v, _ := d.Property(PropStatus); BatteryStatus(v) != StatusFull {
		t.Errorf("status = %s", BatteryStatus(v))
	}
	if err := d.SetProperty(PropStatus, int(StatusCharging)); err != nil {
		t.Fatal(err)
	}
	if disable, _ := d.Votes(); disable != 0 {
		t.Errorf("disable votes = %s", disable)
	}
	if n, _ := sup.counts(); n-before != 2 {
		t.Errorf("%d notifications, want 2", n-before)
	}
}

func TestParallel(t *testing.T) {
	bus := &fakeBus{}
	bus.set(regThermACtrl, 0xC0)
	bus.set(regOTGModePowerOptions, 0x40)
	d := newTestDev(t, bus, Opts{
		Role:         Parallel,
		FloatVoltage: 4400 * physic.MilliVolt,
		Recharge:     100 * physic.MilliVolt,
	})
	if v, _ := d.Property(PropPresent); v != 0 {
		t.Fatal("parallel charger present at start")
	}
	// Not present: values are stored, nothing is written.
	if err := d.SetProperty(PropConstantChargeCurrentMax, 1500000); err != nil {
		t.Fatal(err)
	}
	if err := d.SetProperty(PropChargingEnabled, 0); err != nil {
		t.Fatal(err)
	}
	if len(bus.ops) != 0 {
		t.Fatalf("absent parallel charger got traffic: %v", bus.ops)
	}

	if err := d.SetProperty(PropPresent, 1); err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct {
		name string
		reg  byte
		mask byte
		want byte
	}{
		{"volatile access", regCmdI2C, cmdBQCfgAccess, cmdBQCfgAccess},
		{"vsys min", regThermACtrl, minSysVoltageMask, 0},
		{"float voltage", regVFloat, vfloatMask, 45},
		{"recharge", regChgCtrl, autoRechgBit | autoRechgThBit, autoRechgTh100mV},
		{"charging disabled", regCmdChg, cmdChgEnBit, 0},
		{"enable active low", regChgPinEnCtrl, enPinCtrlMask | usbcsCtrlBit, enByI2C0Enable},
		{"suspend by command", regVariousFunc, suspendModeCtrlBit, suspendModeCtrlByI2C},
		{"adapter 5-9V", regFlexCharger, chgConfigMask, adapter5VTo9V},
		{"adapter continuous", regOTGModePowerOptions, adapterConfigMask, adapterContinuous},
		{"fast charge 1000mA", regChgCurrentCtrl, fastChgCurrentMask, 0},
		{"input suspended", regCmdInputLimit, cmdSuspendModeBit, cmdSuspendModeBit},
	} {
		if got := bus.get(tc.reg) & tc.mask; got != tc.want {
			t.Errorf("%s: reg 0x%02X = 0x%02X, want 0x%02X", tc.name, tc.reg, got, tc.want)
		}
	}
	if v, _ := d.Property(PropCurrentMax); v != 2000 {
		t.Errorf("current max %dµA, want the 2mA suspend current", v)
	}

	if err := d.SetProperty(PropCurrentMax, 500000); err != nil {
		t.Fatal(err)
	}
	if got := bus.get(regCmdInputLimit); got != 0x0A {
		t.Errorf("CMD_INPUT_LIMIT = 0x%02X, want 0x0A", got)
	}
	if v, _ := d.Property(PropChargingEnabled); v != 1 {
		t.Error("input reported suspended")
	}

	// Sub fast-charge currents use the pre-charge field.
	if err := d.SetProperty(PropConstantChargeCurrentMax, 300000); err != nil {
		t.Fatal(err)
	}
	if got := bus.get(regChgOthCurrentCtrl) & preChgCurrentMask; got != 0x20 {
		t.Errorf("pre-charge field 0x%02X, want 300mA", got)
	}
	if bus.get(regVariousFunc2)&preChgToFastChgBit == 0 {
		t.Error("pre-charge path not selected")
	}
	if v, _ := d.Property(PropConstantChargeCurrentMax); v != 300000 {
		t.Errorf("constant charge current %dµA", v)
	}

	if err := d.SetProperty(PropChargingEnabled, 0); err != nil {
		t.Fatal(err)
	}
	if _, s := d.Votes(); s != User {
		t.Errorf("suspend votes = %s", s)
	}

	if err := d.SetProperty(PropPresent, 0); err != nil {
		t.Fatal(err)
	}
	if bus.get(regCmdChg)&cmdChgEnBit == 0 {
		t.Error("detach didn't restore charge enable")
	}
	if v, _ := d.Property(PropConstantChargeCurrentMax); v != 0 {
		t.Errorf("absent parallel reports %dµA", v)
	}
	if _, err := d.Property(PropHealth); !errors.Is(err, ErrUnsupportedProperty) {
		t.Errorf("Property(health) = %v", err)
	}
}

func TestParallel_factory(t *testing.T) {
	bus := &fakeBus{}
	d := newTestDev(t, bus, Opts{Role: Parallel, Factory: true})
	if v, _ := d.Property(PropPresent); v != 1 {
		t.Fatal("factory parallel charger not present")
	}
	if bus.get(regCmdChg)&cmdChgEnBit == 0 {
		t.Error("factory parallel charger left charging disabled")
	}
}
