// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package smb1351

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// Defaults reported when no better source is known.
const (
	DefaultCapacity    = 50
	DefaultTemperature = physic.ZeroCelsius + 25*physic.Kelvin
)

// BatteryStatus is the charging state of the battery.
type BatteryStatus int

const (
	StatusUnknown BatteryStatus = iota
	StatusCharging
	StatusDischarging
	StatusNotCharging
	StatusFull
)

func (s BatteryStatus) String() string {
	switch s {
	case StatusCharging:
		return "charging"
	case StatusDischarging:
		return "discharging"
	case StatusNotCharging:
		return "not charging"
	case StatusFull:
		return "full"
	default:
		return "unknown"
	}
}

// ChargeType is the charging phase.
type ChargeType int

const (
	ChargeUnknown ChargeType = iota
	ChargeNone
	ChargeTrickle
	ChargeFast
	ChargeTaper
)

func (c ChargeType) String() string {
	switch c {
	case ChargeNone:
		return "none"
	case ChargeTrickle:
		return "trickle"
	case ChargeFast:
		return "fast"
	case ChargeTaper:
		return "taper"
	default:
		return "unknown"
	}
}

// Health of the battery or the input.
type Health int

const (
	HealthUnknown Health = iota
	HealthGood
	HealthOverheat
	HealthCold
	HealthWarm
	HealthCool
	HealthOverVoltage
)

func (h Health) String() string {
	switch h {
	case HealthGood:
		return "good"
	case HealthOverheat:
		return "overheat"
	case HealthCold:
		return "cold"
	case HealthWarm:
		return "warm"
	case HealthCool:
		return "cool"
	case HealthOverVoltage:
		return "over voltage"
	default:
		return "unknown"
	}
}

// PortType is the detected input source.
type PortType int

const (
	UnknownPort PortType = iota
	// SDP is a standard downstream port.
	SDP
	// CDP is a charging downstream port.
	CDP
	// DCP is a dedicated charging port.
	DCP
	// ACA is an accessory charger adapter.
	ACA
)

func (p PortType) String() string {
	return [...]string{"unknown", "SDP", "CDP", "DCP", "ACA"}[p]
}

func portType(status5 byte) PortType {
	switch status5 {
	case portACADock, portACAC, portACAB, portACAA:
		return ACA
	case portCDP:
		return CDP
	case portDCP, portOther:
		return DCP
	default:
		return SDP
	}
}

// Input is the state of the charger input.
type Input struct {
	Present bool
	Port    PortType
	Health  Health
}

// Status is a snapshot of the charger state.
type Status struct {
	Battery        BatteryStatus
	ChargeType     ChargeType
	Health         Health
	BatteryPresent bool
	Capacity       int
	Temperature    physic.Temperature
	Band           Band
	Input          Input
	// Programmed values, possibly derated from the configured limits.
	ChargeCurrent physic.ElectricCurrent
	FloatVoltage  physic.ElectricPotential
	InputCurrent  physic.ElectricCurrent
	Disable       Reason
	Suspend       Reason
}

// Status returns a snapshot of the charger state.
func (d *Dev) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status()
}

func (d *Dev) status() Status {
	s := Status{
		Health:         d.health(),
		BatteryPresent: !d.batteryMissing,
		Capacity:       d.capacityLocked(),
		Temperature:    d.temperature(),
		Band:           d.band,
		Input:          d.input,
		ChargeCurrent:  physic.ElectricCurrent(d.fastChargeMA) * physic.MilliAmpere,
		FloatVoltage:   physic.ElectricPotential(d.floatMV) * physic.MilliVolt,
		InputCurrent:   physic.ElectricCurrent(d.inputMA) * physic.MilliAmpere,
		Disable:        d.disable.reasons,
		Suspend:        d.suspend.reasons,
	}
	s.Battery, s.ChargeType = d.chargeState()
	return s
}

// chargeState decodes STATUS_4.
func (d *Dev) chargeState() (BatteryStatus, ChargeType) {
	v, err := d.t.read(regStatus4)
	if err != nil {
		if d.full {
			return StatusFull, ChargeUnknown
		}
		return StatusUnknown, ChargeUnknown
	}
	ct := ChargeNone
	switch v & status4ChgMask {
	case status4FastCharging:
		ct = ChargeFast
	case status4TaperCharging:
		ct = ChargeTaper
	case status4PreCharging:
		ct = ChargeTrickle
	}
	switch {
	case d.full:
		return StatusFull, ct
	case v&status4HoldOffBit != 0:
		return StatusNotCharging, ct
	case v&status4ChgMask != 0:
		return StatusCharging, ct
	}
	return StatusDischarging, ct
}

func (d *Dev) health() Health {
	if d.opts.Thermal.Enabled() {
		switch d.band {
		case Hot:
			return HealthOverheat
		case Cold, Missing:
			return HealthCold
		case Warm:
			return HealthWarm
		case Cool:
			return HealthCool
		}
		return HealthGood
	}
	switch {
	case d.hwTemp.hot:
		return HealthOverheat
	case d.hwTemp.cold:
		return HealthCold
	case d.hwTemp.warm:
		return HealthWarm
	case d.hwTemp.cool:
		return HealthCool
	}
	return HealthGood
}

func (d *Dev) capacityLocked() int {
	if d.capacity >= 0 {
		return d.capacity
	}
	if d.opts.Gauge != nil {
		c, err := d.opts.Gauge.Capacity()
		if err == nil {
			return c
		}
		d.log.Errorf("reading capacity: %v", err)
	}
	return DefaultCapacity
}

func (d *Dev) temperature() physic.Temperature {
	if d.tempKnown {
		return d.temp
	}
	return DefaultTemperature
}

// Property identifies a value exchanged with the power supply framework.
// Currents are in µA, voltages in µV and temperatures in tenths of °C.
type Property int

const (
	PropStatus Property = iota
	PropPresent
	PropChargingEnabled
	PropChargeType
	PropCapacity
	PropHealth
	PropTemp
	PropCurrentMax
	PropConstantChargeCurrentMax
	PropVoltageMax
)

func (p Property) String() string {
	names := [...]string{"status", "present", "charging_enabled", "charge_type", "capacity", "health", "temp", "current_max", "constant_charge_current_max", "voltage_max"}
	if p < 0 || int(p) >= len(names) {
		return fmt.Sprintf("Property(%d)", int(p))
	}
	return names[p]
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func deciCelsius(t physic.Temperature) int {
	return int((t - physic.ZeroCelsius) / (100 * physic.MilliKelvin))
}

// Property returns the value of p.
func (d *Dev) Property(p Property) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.opts.Role == Parallel {
		return d.parallelProperty(p)
	}
	switch p {
	case PropStatus:
		s, _ := d.chargeState()
		return int(s), nil
	case PropPresent:
		return boolInt(!d.batteryMissing), nil
	case PropChargingEnabled:
		return boolInt(d.disable.reasons == 0), nil
	case PropChargeType:
		_, c := d.chargeState()
		return int(c), nil
	case PropCapacity:
		return d.capacityLocked(), nil
	case PropHealth:
		return int(d.health()), nil
	case PropTemp:
		return deciCelsius(d.temperature()), nil
	case PropCurrentMax:
		return d.inputMA * 1000, nil
	case PropConstantChargeCurrentMax:
		return d.fastChargeMA * 1000, nil
	case PropVoltageMax:
		return d.floatMV * 1000, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedProperty, p)
}

func (d *Dev) parallelProperty(p Property) (int, error) {
	switch p {
	case PropChargingEnabled:
		return boolInt(d.suspend.reasons == 0), nil
	case PropCurrentMax:
		if !d.parallelPresent {
			return 0, nil
		}
		return d.inputMA * 1000, nil
	case PropVoltageMax:
		return d.cfgFloatMV * 1000, nil
	case PropPresent:
		return boolInt(d.parallelPresent), nil
	case PropConstantChargeCurrentMax:
		if !d.parallelPresent {
			return 0, nil
		}
		return d.fastChargeMA * 1000, nil
	case PropStatus:
		if !d.parallelPresent {
			return int(StatusUnknown), nil
		}
		s, _ := d.chargeState()
		return int(s), nil
	case PropChargeType:
		if !d.parallelPresent {
			return int(ChargeNone), nil
		}
		_, c := d.chargeState()
		return int(c), nil
	}
	return 0, fmt.Errorf("%w: %s on parallel charger", ErrUnsupportedProperty, p)
}

// SetProperty sets p to v.
func (d *Dev) SetProperty(p Property, v int) error {
	d.mu.Lock()
	var err error
	if d.opts.Role == Parallel {
		err = d.setParallelProperty(p, v)
	} else {
		err = d.setPrimaryProperty(p, v)
	}
	d.unlockAndNotify()
	return err
}

func (d *Dev) setPrimaryProperty(p Property, v int) error {
	switch p {
	case PropChargingEnabled:
		return d.voteDisable(User, v == 0)
	case PropCapacity:
		d.capacity = v
		d.batteryDirty = true
		return nil
	case PropStatus:
		if !d.opts.SOCControlled {
			return fmt.Errorf("%w: status is only writable when the gauge controls charging", ErrUnsupportedProperty)
		}
		switch BatteryStatus(v) {
		case StatusFull:
			d.full = true
			d.batteryDirty = true
			return d.voteDisable(SOC, true)
		case StatusCharging:
			d.full = false
			d.batteryDirty = true
			return d.voteDisable(SOC, false)
		case StatusDischarging:
			d.full = false
			d.batteryDirty = true
		}
		return nil
	case PropCurrentMax:
		return d.applyInput(v / 1000)
	case PropConstantChargeCurrentMax:
		ma := v / 1000
		if _, err := quantizeCharge(ma, false); err != nil {
			return err
		}
		d.cfgFastChargeMA = ma
		return d.applyCharge(d.bandLimitMA(ma))
	case PropVoltageMax:
		mv := v / 1000
		if _, _, err := quantizeFloat(mv); err != nil {
			return err
		}
		d.cfgFloatMV = mv
		return d.applyFloat(d.bandLimitMV(mv))
	case PropPresent:
		return ErrNotParallel
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedProperty, p)
}

func (d *Dev) setParallelProperty(p Property, v int) error {
	switch p {
	case PropChargingEnabled:
		if !d.parallelPresent {
			return nil
		}
		return d.voteSuspend(User, v == 0)
	case PropPresent:
		return d.setParallelPresent(v != 0)
	case PropCurrentMax:
		d.inputMA = v / 1000
		if !d.parallelPresent {
			return nil
		}
		return d.applyInput(d.inputMA)
	case PropConstantChargeCurrentMax:
		ma := v / 1000
		if _, err := quantizeCharge(ma, true); err != nil {
			return err
		}
		d.cfgFastChargeMA = ma
		if !d.parallelPresent {
			return nil
		}
		return d.applyCharge(ma)
	case PropVoltageMax:
		mv := v / 1000
		if _, _, err := quantizeFloat(mv); err != nil {
			return err
		}
		d.cfgFloatMV = mv
		if !d.parallelPresent {
			return nil
		}
		return d.applyFloat(mv)
	}
	return fmt.Errorf("%w: %s on parallel charger", ErrUnsupportedProperty, p)
}

// setParallelPresent runs the parallel charger attach or detach sequence.
// Either way the input stays suspended until a current limit is set.
func (d *Dev) setParallelPresent(present bool) error {
	if present == d.parallelPresent {
		return nil
	}
	if err := d.enableVolatileWrites(); err != nil {
		return err
	}
	if present {
		if err := d.attachParallel(); err != nil {
			return err
		}
	} else if err := d.t.maskedWrite(regCmdChg, cmdChgEnBit, cmdChgEnable); err != nil {
		d.log.Errorf("can't enable charging on detach: %v", err)
	}
	d.parallelPresent = present
	d.log.Infof("parallel charger present=%t", present)
	d.inputMA = suspendCurrentMA
	return d.voteSuspend(Current, true)
}

func (d *Dev) attachParallel() error {
	// 3.15V minimum system voltage.
	if err := d.t.maskedWrite(regThermACtrl, minSysVoltageMask, 0); err != nil {
		return err
	}
	if d.cfgFloatMV != 0 {
		if err := d.applyFloat(d.cfgFloatMV); err != nil {
			return err
		}
	}
	if d.opts.Recharge != 0 {
		if err := d.t.maskedWrite(regChgCtrl, autoRechgBit|autoRechgThBit, rechargeThreshold(toMilliVolt(d.opts.Recharge))); err != nil {
			return err
		}
	}
	// The enable pin is active low, charging must be off before handing it
	// to the command register.
	var en byte
	if d.opts.Factory {
		en = cmdChgEnable
	}
	if err := d.t.maskedWrite(regCmdChg, cmdChgEnBit, en); err != nil {
		d.log.Errorf("can't disable charging: %v", err)
	}
	steps := []struct {
		reg, mask, v byte
	}{
		{regChgPinEnCtrl, enPinCtrlMask | usbcsCtrlBit, enByI2C0Enable},
		{regVariousFunc, suspendModeCtrlBit, suspendModeCtrlByI2C},
		{regFlexCharger, chgConfigMask, adapter5VTo9V},
		{regOTGModePowerOptions, adapterConfigMask, adapterContinuous},
	}
	for _, s := range steps {
		if err := d.t.maskedWrite(s.reg, s.mask, s.v); err != nil {
			return err
		}
	}
	d.cfgFastChargeMA = fastChgMinMA
	return d.applyCharge(fastChgMinMA)
}

func (d *Dev) setInput(present bool, port PortType) {
	d.input.Present = present
	d.input.Port = port
	d.queueInput()
}

func (d *Dev) queueInput() {
	d.log.Debugf("input present=%t port=%s health=%s", d.input.Present, d.input.Port, d.input.Health)
	d.inputQueue = append(d.inputQueue, d.input)
}

// unlockAndNotify releases the lock and then delivers the queued
// notifications to the Supply.
func (d *Dev) unlockAndNotify() {
	sup := d.opts.Supply
	var st *Status
	if sup != nil && d.batteryDirty {
		s := d.status()
		st = &s
	}
	in := d.inputQueue
	d.inputQueue = nil
	d.batteryDirty = false
	d.mu.Unlock()
	if sup == nil {
		return
	}
	for _, i := range in {
		sup.InputChanged(i)
	}
	if st != nil {
		sup.BatteryChanged(*st)
	}
}
