// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package smb1351

import (
	"fmt"
	"sync"

	"github.com/edaniels/golog"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// DefaultAddr is the factory I²C address.
const DefaultAddr uint16 = 0x1D

// Role selects how the charger is driven.
type Role int

const (
	// Primary owns the input and reacts to its own interrupts.
	Primary Role = iota
	// Parallel shares charge current with a primary charger and is
	// configured entirely through SetProperty.
	Parallel
)

func (r Role) String() string {
	if r == Parallel {
		return "parallel"
	}
	return "primary"
}

// Opts holds the charger configuration. Zero values leave the hardware
// default in place.
type Opts struct {
	Role Role
	// Autonomous leaves the charger running on its non-volatile settings.
	// Nothing is configured and votes are ignored.
	Autonomous bool
	// Factory ignores votes. A parallel charger is marked present at start.
	Factory bool
	// DisableAPSD turns off automatic power source detection; insertion is
	// then detected on USBIN under-voltage release.
	DisableAPSD bool
	// ExternalTherm disables the charger's own thermistor monitor, battery
	// temperature coming from the Thermistor sampler instead.
	ExternalTherm bool
	// SOCControlled lets the fuel gauge decide when the battery is full.
	SOCControlled bool
	// ChargingDisabled holds the User vote from start.
	ChargingDisabled bool

	// FastChargeMax defaults to 4.5A.
	FastChargeMax       physic.ElectricCurrent
	FloatVoltage        physic.ElectricPotential
	Termination         physic.ElectricCurrent
	TerminationDisabled bool
	Recharge            physic.ElectricPotential
	RechargeDisabled    bool

	Thermal Thresholds

	Logger golog.Logger
	// Supply receives state changes, it may be nil.
	Supply Supply
	// Gauge provides the state of charge, it may be nil.
	Gauge Gauge
	// Thermistor is armed with the next temperature window, it may be nil.
	Thermistor Thermistor
}

// Validate returns all configuration conflicts found in o.
func (o *Opts) Validate() error {
	var errs []error
	if o.Termination != 0 && o.TerminationDisabled {
		errs = append(errs, fmt.Errorf("%w: termination current set with termination disabled", ErrConfigConflict))
	}
	if o.Recharge != 0 && o.RechargeDisabled {
		errs = append(errs, fmt.Errorf("%w: recharge threshold set with recharge disabled", ErrConfigConflict))
	}
	if err := o.Thermal.validate(); err != nil {
		errs = append(errs, err)
	}
	if o.FloatVoltage != 0 {
		if _, _, err := quantizeFloat(toMilliVolt(o.FloatVoltage)); err != nil {
			errs = append(errs, err)
		}
	}
	if o.FastChargeMax != 0 {
		if _, err := quantizeCharge(toMilliAmpere(o.FastChargeMax), o.Role == Parallel); err != nil {
			errs = append(errs, err)
		}
	}
	return multierr.Combine(errs...)
}

// Supply receives charger state changes. It is called without the charger
// lock held and may call back into Dev.
type Supply interface {
	// BatteryChanged is called once per interrupt dispatch in which at least
	// one handler ran, and on thermal band changes.
	BatteryChanged(s Status)
	// InputChanged is called when input presence, port type or health
	// changes.
	InputChanged(in Input)
}

// Gauge reports the battery state of charge in percent.
type Gauge interface {
	Capacity() (int, error)
}

// Thermistor samples the battery temperature. Arm selects the window outside
// of which it must call Dev.HandleTemperature.
type Thermistor interface {
	Arm(w Window) error
}

// hwTemp are the charger's own thermistor flags, used for health when the
// band machine isn't configured.
type hwTemp struct {
	hot  bool
	cold bool
	warm bool
	cool bool
}

// Dev is a handle to an SMB1351 charger.
type Dev struct {
	mu   sync.Mutex
	t    *transport
	opts Opts
	log  golog.Logger

	disable ledger
	suspend ledger
	irq     [8]irqGroup

	band      Band
	window    Window
	temp      physic.Temperature
	tempKnown bool
	hwTemp    hwTemp

	batteryMissing bool
	full           bool
	capacity       int
	input          Input
	inputQueue     []Input
	batteryDirty   bool

	// cfg* are the configured limits, the programmed values may be derated.
	cfgFastChargeMA int
	cfgFloatMV      int
	fastChargeMA    int
	floatMV         int
	inputMA         int

	parallelPresent bool

	resumed    bool
	irqPending bool
	// masked is set while the STAT watcher waits on unmask.
	masked     bool
	unmask     chan struct{}
	w          *watcher
}

// New returns a handle to the charger at addr and configures it.
//
// Conflicting options are logged and the affected feature is left at its
// hardware default.
func New(b i2c.Bus, addr uint16, opts *Opts) (*Dev, error) {
	o := Opts{}
	if opts != nil {
		o = *opts
	}
	if o.Logger == nil {
		o.Logger = golog.NewLogger("smb1351")
	}
	if o.FastChargeMax == 0 {
		o.FastChargeMax = fastChgMaxMA * physic.MilliAmpere
	}
	d := &Dev{
		t:        newTransport(b, addr, o.Logger),
		log:      o.Logger,
		disable:  newDisableLedger(),
		suspend:  newSuspendLedger(),
		irq:      newIRQGroups(),
		capacity: -1,
		resumed:  true,
		unmask:   make(chan struct{}, 1),
		input:    Input{Health: HealthGood},
	}
	d.opts = d.resolve(o)
	d.cfgFastChargeMA = toMilliAmpere(d.opts.FastChargeMax)
	d.cfgFloatMV = toMilliVolt(d.opts.FloatVoltage)
	if d.opts.ChargingDisabled {
		d.disable.reasons |= User
	}
	if d.opts.Thermal.Enabled() {
		d.window = d.opts.Thermal.initialWindow()
	}

	d.mu.Lock()
	if err := d.start(); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	d.unlockAndNotify()
	if th := d.opts.Thermistor; th != nil && d.opts.Thermal.Enabled() {
		if err := th.Arm(d.window); err != nil {
			return nil, fmt.Errorf("smb1351: arming thermal window: %w", err)
		}
	}
	return d, nil
}

// resolve drops every feature whose options conflict.
func (d *Dev) resolve(o Opts) Opts {
	if o.Termination != 0 && o.TerminationDisabled {
		d.log.Warnf("%v: termination current and termination disabled both set, keeping hardware default", ErrConfigConflict)
		o.Termination, o.TerminationDisabled = 0, false
	}
	if o.Recharge != 0 && o.RechargeDisabled {
		d.log.Warnf("%v: recharge threshold and recharge disabled both set, keeping hardware default", ErrConfigConflict)
		o.Recharge, o.RechargeDisabled = 0, false
	}
	if err := o.Thermal.validate(); err != nil {
		d.log.Warnf("%v, thermal bands disabled", err)
		o.Thermal = Thresholds{}
	}
	return o
}

func (d *Dev) start() error {
	rev, err := d.t.read(regRevision)
	if err != nil {
		return fmt.Errorf("smb1351: probing chip: %w", err)
	}
	d.log.Infof("revision 0x%02X, %s role", rev, d.opts.Role)
	if d.opts.Role == Parallel {
		if d.opts.Factory {
			return d.setParallelPresent(true)
		}
		return nil
	}
	if err := d.configure(); err != nil {
		return err
	}
	return d.initialState()
}

func (d *Dev) enableVolatileWrites() error {
	return d.t.setBits(regCmdI2C, cmdBQCfgAccess, true)
}

// configure programs the volatile configuration of a primary charger.
func (d *Dev) configure() error {
	if d.opts.Autonomous {
		d.log.Infof("autonomous mode, keeping non-volatile configuration")
		return nil
	}
	steps := []struct {
		what string
		fn   func() error
	}{
		{"volatile writes", d.enableVolatileWrites},
		{"battery missing source", func() error {
			return d.t.setBits(regHVDCPBattMissingCtrl, battMissingThermPinSrcBit, true)
		}},
		{"enable pin", func() error {
			return d.t.maskedWrite(regChgPinEnCtrl,
				enPinCtrlMask|usbcsCtrlBit|chgErrBit|apsdDoneBit|ledBlinkFuncBit,
				enByI2C0Disable|chgErrBit|apsdDoneBit|ledBlinkFuncBit)
		}},
		{"usb 2/3 selection", func() error {
			return d.t.maskedWrite(regChgOthCurrentCtrl, usb23ModeSelBit|usb51CmdPolarityBit, 0)
		}},
		{"various functions", func() error {
			v := suspendModeCtrlByI2C | aiclEnBit
			if !d.opts.DisableAPSD {
				v |= apsdEnBit
			}
			return d.t.maskedWrite(regVariousFunc, suspendModeCtrlBit|aiclEnBit|apsdEnBit, v)
		}},
		{"fault interrupts", func() error {
			return d.t.write(regFaultInt, hotColdHardBit|hotColdSoftBit|inputOVLOBit|inputUVLOBit|aiclDoneFailBit)
		}},
		{"status interrupts", func() error {
			return d.t.write(regStatusInt, chgTimeoutBit|battOVPBit|fastTermBit|battMissingBit|battLowBit)
		}},
		{"thermistor monitor", func() error {
			if d.opts.ExternalTherm {
				return nil
			}
			return d.t.setBits(regThermACtrl, thermMonitorBit, false)
		}},
		{"fast charge current", func() error { return d.applyCharge(d.cfgFastChargeMA) }},
		{"float voltage", func() error {
			if d.cfgFloatMV == 0 {
				return nil
			}
			return d.applyFloat(d.cfgFloatMV)
		}},
		{"termination", d.configureTermination},
		{"recharge", d.configureRecharge},
		{"charge enable", func() error {
			return d.disable.sync(d.t, true)
		}},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			return fmt.Errorf("smb1351: configuring %s: %w", s.what, err)
		}
	}
	return nil
}

func (d *Dev) configureTermination() error {
	switch {
	case d.opts.Termination != 0:
		if err := d.t.maskedWrite(regChgOthCurrentCtrl, itermMask, itermCode(toMilliAmpere(d.opts.Termination))); err != nil {
			return err
		}
		return d.t.setBits(regChgCtrl, itermEnBit, false)
	case d.opts.TerminationDisabled:
		return d.t.maskedWrite(regChgCtrl, itermEnBit, itermDisable)
	}
	return nil
}

func (d *Dev) configureRecharge() error {
	switch {
	case d.opts.Recharge != 0:
		return d.t.maskedWrite(regChgCtrl, autoRechgBit|autoRechgThBit, rechargeThreshold(toMilliVolt(d.opts.Recharge)))
	case d.opts.RechargeDisabled:
		return d.t.maskedWrite(regChgCtrl, autoRechgBit, autoRechgDisable)
	}
	return nil
}

// initialState reads the interrupt registers once so the state is known
// before the first STAT edge.
func (d *Dev) initialState() error {
	b, err := d.t.read(regIRQB)
	if err != nil {
		return err
	}
	d.batteryMissing = b&irqBBattMissingBit != 0
	c, err := d.t.read(regIRQC)
	if err != nil {
		return err
	}
	d.full = c&irqCTermBit != 0
	a, err := d.t.read(regIRQA)
	if err != nil {
		return err
	}
	d.hwTemp = hwTemp{
		hot:  a&irqAHotHardBit != 0,
		cold: a&irqAColdHardBit != 0,
		warm: a&irqAHotSoftBit != 0,
		cool: a&irqAColdSoftBit != 0,
	}
	e, err := d.t.read(regIRQE)
	if err != nil {
		return err
	}
	if e&irqEUSBInUVBit != 0 {
		if err := d.onUSBInUV(true); err != nil {
			return err
		}
	} else {
		// USBIN is valid: the port type is already in STATUS_5 even when the
		// source detect latch was cleared.
		if err := d.onUSBInUV(false); err != nil {
			return err
		}
		if err := d.onAPSDComplete(true); err != nil {
			return err
		}
	}
	g, err := d.t.read(regIRQG)
	if err != nil {
		return err
	}
	if g&irqGSourceDetBit != 0 && !d.input.Present {
		return d.onAPSDComplete(true)
	}
	return nil
}

// ApplyFastCharge sets the configured charge current limit and programs it,
// derated for the current thermal band.
func (d *Dev) ApplyFastCharge(i physic.ElectricCurrent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ma := toMilliAmpere(i)
	if _, err := quantizeCharge(ma, d.opts.Role == Parallel); err != nil {
		return err
	}
	d.cfgFastChargeMA = ma
	return d.applyCharge(d.bandLimitMA(ma))
}

// ApplyFloatVoltage sets the configured float voltage and programs it,
// derated for the current thermal band.
func (d *Dev) ApplyFloatVoltage(v physic.ElectricPotential) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	mv := toMilliVolt(v)
	if _, _, err := quantizeFloat(mv); err != nil {
		return err
	}
	d.cfgFloatMV = mv
	return d.applyFloat(d.bandLimitMV(mv))
}

// ApplyInputCurrent selects the input current class. A request of 2mA or
// less suspends the input while a source is present.
func (d *Dev) ApplyInputCurrent(i physic.ElectricCurrent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.applyInput(toMilliAmpere(i))
}

func (d *Dev) bandLimitMA(ma int) int {
	var lim physic.ElectricCurrent
	switch {
	case !d.opts.Thermal.JEITA():
	case d.band == Warm:
		lim = d.opts.Thermal.WarmCurrent
	case d.band == Cool:
		lim = d.opts.Thermal.CoolCurrent
	}
	if l := toMilliAmpere(lim); l != 0 && l < ma {
		return l
	}
	return ma
}

func (d *Dev) bandLimitMV(mv int) int {
	var lim physic.ElectricPotential
	switch {
	case !d.opts.Thermal.JEITA():
	case d.band == Warm:
		lim = d.opts.Thermal.WarmVoltage
	case d.band == Cool:
		lim = d.opts.Thermal.CoolVoltage
	}
	if l := toMilliVolt(lim); l != 0 && l < mv {
		return l
	}
	return mv
}

// applyCharge programs a charge current. On a parallel charger currents
// below the fast charge range go through the pre-charge field.
func (d *Dev) applyCharge(ma int) error {
	s, err := quantizeCharge(ma, d.opts.Role == Parallel)
	if err != nil {
		return err
	}
	if s.pre {
		if err := d.t.maskedWrite(regChgOthCurrentCtrl, preChgCurrentMask, s.field); err != nil {
			return err
		}
		if err := d.t.setBits(regVariousFunc2, preChgToFastChgBit, true); err != nil {
			return err
		}
	} else {
		if err := d.t.setBits(regVariousFunc2, preChgToFastChgBit, false); err != nil {
			return err
		}
		if err := d.t.maskedWrite(regChgCurrentCtrl, fastChgCurrentMask, s.field); err != nil {
			return err
		}
	}
	d.fastChargeMA = s.ma
	d.log.Debugf("charge current %dmA (requested %dmA, pre-charge %t)", s.ma, ma, s.pre)
	return nil
}

func (d *Dev) applyFloat(mv int) error {
	code, actual, err := quantizeFloat(mv)
	if err != nil {
		return err
	}
	if err := d.t.maskedWrite(regVFloat, vfloatMask, code); err != nil {
		return err
	}
	d.floatMV = actual
	d.log.Debugf("float voltage %dmV", actual)
	return nil
}

func (d *Dev) sourcePresent() bool {
	if d.opts.Role == Parallel {
		return d.parallelPresent
	}
	return d.input.Present
}

func (d *Dev) applyInput(ma int) error {
	if d.opts.Autonomous {
		return nil
	}
	if ma <= suspendCurrentMA && d.sourcePresent() {
		d.inputMA = ma
		return d.voteSuspend(Current, true)
	}
	c := classifyInput(ma)
	if c.ac {
		if err := d.t.maskedWrite(regChgCurrentCtrl, acInputLimitMask, c.acCode); err != nil {
			return err
		}
	}
	if err := d.t.maskedWrite(regCmdInputLimit, c.mask, c.v); err != nil {
		return err
	}
	d.inputMA = ma
	d.log.Debugf("input current %dmA, command 0x%02X", ma, c.v)
	return d.voteSuspend(Current, false)
}

// SetOTG turns the boost output on or off.
func (d *Dev) SetOTG(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.t.setBits(regCmdChg, cmdOTGEnBit, on)
}

// OTG reports whether the boost output is on.
func (d *Dev) OTG() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, err := d.t.read(regCmdChg)
	return v&cmdOTGEnBit != 0, err
}

// Halt stops the interrupt watcher if one runs. The charger keeps charging on
// its current configuration. Implements conn.Resource.
func (d *Dev) Halt() error {
	d.mu.Lock()
	w := d.w
	d.w = nil
	d.mu.Unlock()
	if w != nil {
		w.stop()
	}
	return nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("smb1351: %s", d.t.d.String())
}

var _ conn.Resource = &Dev{}
