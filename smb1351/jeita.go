// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package smb1351

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// Band is the battery temperature band.
type Band int

const (
	Normal Band = iota
	Hot
	Warm
	Cool
	Cold
	Missing
)

func (b Band) String() string {
	switch b {
	case Normal:
		return "normal"
	case Hot:
		return "hot"
	case Warm:
		return "warm"
	case Cool:
		return "cool"
	case Cold:
		return "cold"
	case Missing:
		return "missing"
	default:
		return fmt.Sprintf("Band(%d)", int(b))
	}
}

// critical bands stop charging.
func (b Band) critical() bool {
	return b == Hot || b == Cold || b == Missing
}

// Direction is the edge of the armed window a sample crossed.
type Direction int

const (
	Rising Direction = iota
	Falling
)

func (d Direction) String() string {
	if d == Rising {
		return "rising"
	}
	return "falling"
}

// Hysteresis is the margin applied to the threshold a band was entered
// through before the band may be left through that threshold again.
const Hysteresis = 2 * physic.Kelvin

// Window is the temperature range the sampler watches. A sample is expected
// when the temperature goes to or above High while Rising is armed, or to or
// below Low while Falling is armed.
type Window struct {
	Low     physic.Temperature
	High    physic.Temperature
	Rising  bool
	Falling bool
}

func (w Window) String() string {
	return fmt.Sprintf("[%s %t, %s %t]", w.Low, w.Falling, w.High, w.Rising)
}

// crossed reports whether t on dir leaves the window through an armed edge.
func (w Window) crossed(t physic.Temperature, dir Direction) bool {
	if dir == Rising {
		return w.Rising && t >= w.High
	}
	return w.Falling && t <= w.Low
}

// Thresholds configures the thermal bands. Hot and Cold are required for
// the band machine to run; Missing defaults to absolute zero. The warm and
// cool bands are only used when all four of their limits are set.
type Thresholds struct {
	Hot     physic.Temperature
	Warm    physic.Temperature
	Cool    physic.Temperature
	Cold    physic.Temperature
	Missing physic.Temperature

	WarmCurrent physic.ElectricCurrent
	WarmVoltage physic.ElectricPotential
	CoolCurrent physic.ElectricCurrent
	CoolVoltage physic.ElectricPotential
}

// Enabled reports whether the hot and cold limits are set. Without them the
// battery always stays in the normal band.
func (t *Thresholds) Enabled() bool {
	return t.Hot != 0 && t.Cold != 0
}

// JEITA reports whether the warm and cool bands are used: both thresholds
// and all four derating limits must be set.
func (t *Thresholds) JEITA() bool {
	return t.Warm != 0 && t.Cool != 0 && t.WarmCurrent != 0 && t.WarmVoltage != 0 && t.CoolCurrent != 0 && t.CoolVoltage != 0
}

func (t *Thresholds) validate() error {
	if !t.Enabled() {
		return nil
	}
	order := []physic.Temperature{t.Missing, t.Cold, t.Hot}
	if t.JEITA() {
		order = []physic.Temperature{t.Missing, t.Cold, t.Cool, t.Warm, t.Hot}
	}
	for i := 1; i < len(order); i++ {
		if order[i-1] >= order[i] {
			return fmt.Errorf("%w: thermal thresholds must be ascending from missing to hot", ErrConfigConflict)
		}
	}
	return nil
}

// initialWindow is armed before the first sample, the band being Normal.
func (t *Thresholds) initialWindow() Window {
	if t.JEITA() {
		return Window{Low: t.Cool, High: t.Warm, Rising: true, Falling: true}
	}
	return Window{Low: t.Cold, High: t.Hot, Rising: true, Falling: true}
}

// evaluate returns the band and window following a sample. Bands are tried
// from the most severe in the sample's direction and the first match wins.
// A sample that doesn't leave the armed window keeps the band and window.
func (t *Thresholds) evaluate(cur Band, w Window, temp physic.Temperature, dir Direction) (Band, Window, error) {
	if !w.crossed(temp, dir) {
		return cur, w, nil
	}
	j := t.JEITA()
	next := Window{Low: w.Low, High: w.High, Rising: true, Falling: true}
	var b Band
	if dir == Rising {
		switch {
		case temp >= t.Hot:
			b = Hot
			next.Low = t.Hot - Hysteresis
			next.Rising = false
		case j && temp >= t.Warm:
			b = Warm
			next.Low = t.Warm - Hysteresis
			next.High = t.Hot
		case j && temp >= t.Cool:
			b = Normal
			next.Low = t.Cool - Hysteresis
			next.High = t.Warm
		case temp >= t.Cold:
			// Without warm and cool bands this is Normal.
			b = Cool
			next.Low = t.Cold - Hysteresis
			next.High = t.Hot
			if j {
				next.High = t.Cool
			} else {
				b = Normal
			}
		case temp >= t.Missing:
			b = Cold
			next.Low = t.Missing - Hysteresis
			next.High = t.Cold
		default:
			return cur, w, fmt.Errorf("%w: %s rising", ErrNoBand, temp)
		}
	} else {
		switch {
		case temp <= t.Missing:
			b = Missing
			next.High = t.Missing + Hysteresis
			next.Falling = false
		case temp <= t.Cold:
			b = Cold
			next.Low = t.Missing
			next.High = t.Cold + Hysteresis
		case j && temp <= t.Cool:
			b = Cool
			next.Low = t.Cold
			next.High = t.Cool + Hysteresis
		case j && temp <= t.Warm:
			b = Normal
			next.Low = t.Cool
			next.High = t.Warm + Hysteresis
		case temp <= t.Hot:
			b = Warm
			next.Low = t.Cold
			next.High = t.Hot + Hysteresis
			if j {
				next.Low = t.Warm
			} else {
				b = Normal
			}
		default:
			return cur, w, fmt.Errorf("%w: %s falling", ErrNoBand, temp)
		}
	}
	return b, next, nil
}

// HandleTemperature feeds a battery temperature sample that crossed the armed
// window in direction dir. It updates the band, applies its effects and
// returns the window to arm next. On error the returned window is the one
// that was armed before.
func (d *Dev) HandleTemperature(temp physic.Temperature, dir Direction) (Window, error) {
	d.mu.Lock()
	w, err := d.handleTemperature(temp, dir)
	th := d.opts.Thermistor
	d.unlockAndNotify()
	if th != nil {
		if aerr := th.Arm(w); aerr != nil {
			d.log.Errorf("can't arm thermal window %s: %v", w, aerr)
			if err == nil {
				err = aerr
			}
		}
	}
	return w, err
}

func (d *Dev) handleTemperature(temp physic.Temperature, dir Direction) (Window, error) {
	d.temp = temp
	d.tempKnown = true
	if !d.opts.Thermal.Enabled() {
		return d.window, nil
	}
	b, w, err := d.opts.Thermal.evaluate(d.band, d.window, temp, dir)
	if err != nil {
		d.log.Errorf("thermal: %v", err)
		return d.window, err
	}
	prev := d.band
	d.band = b
	d.window = w
	if b == prev {
		return w, nil
	}
	d.log.Infof("thermal: %s %s, band %s -> %s, window %s", temp, dir, prev, b, w)
	d.batteryMissing = b == Missing
	d.batteryDirty = true
	if b.critical() != prev.critical() {
		if err := d.voteDisable(Thermal, b.critical()); err != nil {
			return w, err
		}
	}
	if d.opts.Thermal.JEITA() && (b == Warm || b == Cool || prev == Warm || prev == Cool) {
		if err := d.derate(); err != nil {
			return w, err
		}
	}
	return w, nil
}

// derate programs the fast charge current and float voltage allowed in the
// current band.
func (d *Dev) derate() error {
	if err := d.applyCharge(d.bandLimitMA(d.cfgFastChargeMA)); err != nil {
		return err
	}
	mv := d.cfgFloatMV
	if mv != 0 {
		return d.applyFloat(d.bandLimitMV(mv))
	}
	switch d.band {
	case Warm:
		mv = toMilliVolt(d.opts.Thermal.WarmVoltage)
	case Cool:
		mv = toMilliVolt(d.opts.Thermal.CoolVoltage)
	default:
		return nil
	}
	return d.applyFloat(mv)
}

// Band returns the current thermal band and the armed window.
func (d *Dev) Band() (Band, Window) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.band, d.window
}
