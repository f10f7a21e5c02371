// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package battherm

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GermanBionicSystems/chargectl/smb1351"
	"github.com/edaniels/golog"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// DefaultAddr is the address with ADD0 tied to ground.
const DefaultAddr uint16 = 0x48

const (
	regTemperature byte = 0
	regConfig      byte = 1
	regTLow        byte = 2
	regTHigh       byte = 3

	cfgShutdown   uint16 = 1 << 8
	cfgThermostat uint16 = 1 << 9
	cfgRateMask   uint16 = 3 << 6
	cfgRate4Hz    uint16 = 2 << 6

	resolution = 62_500 * physic.MicroKelvin

	// MinimumTemperature is the lowest temperature the sensor reads.
	MinimumTemperature = physic.ZeroCelsius - 40*physic.Kelvin
	// MaximumTemperature is the highest temperature the sensor reads.
	MaximumTemperature = physic.ZeroCelsius + 125*physic.Kelvin

	// DefaultInterval is the sampling period when Opts.Interval is zero.
	DefaultInterval = time.Second
	minInterval     = 125 * time.Millisecond
)

// Sink receives the temperature samples. *smb1351.Dev implements it.
type Sink interface {
	HandleTemperature(t physic.Temperature, dir smb1351.Direction) (smb1351.Window, error)
}

// Opts configures the sampler.
type Opts struct {
	// Interval between samples. An ALERT edge triggers an early sample.
	Interval time.Duration
	// Alert is the optional ALERT pin. It puts the sensor in interrupt mode.
	Alert  gpio.PinIn
	Logger golog.Logger
}

// Dev is a TMP102 used as battery thermistor.
type Dev struct {
	d    *i2c.Dev
	log  golog.Logger
	opts Opts

	mu     sync.Mutex
	window smb1351.Window
	armed  bool
	last   physic.Temperature
	sample bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewI2C returns a sampler on the TMP102 at addr and wakes the sensor up.
func NewI2C(b i2c.Bus, addr uint16, opts *Opts) (*Dev, error) {
	o := Opts{}
	if opts != nil {
		o = *opts
	}
	if o.Interval == 0 {
		o.Interval = DefaultInterval
	}
	if o.Interval < minInterval {
		return nil, fmt.Errorf("battherm: interval %s below %s", o.Interval, minInterval)
	}
	if o.Logger == nil {
		o.Logger = golog.NewLogger("battherm")
	}
	d := &Dev{d: &i2c.Dev{Bus: b, Addr: addr}, log: o.Logger, opts: o}
	if err := d.start(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dev) start() error {
	cfg, err := d.readWord(regConfig)
	if err != nil {
		return fmt.Errorf("battherm: reading configuration: %w", err)
	}
	cfg &^= cfgShutdown | cfgThermostat | cfgRateMask
	cfg |= cfgRate4Hz
	if d.opts.Alert != nil {
		cfg |= cfgThermostat
	}
	if err := d.writeWord(regConfig, cfg); err != nil {
		return fmt.Errorf("battherm: writing configuration: %w", err)
	}
	return nil
}

func (d *Dev) readWord(reg byte) (uint16, error) {
	var r [2]byte
	if err := d.d.Tx([]byte{reg}, r[:]); err != nil {
		return 0, err
	}
	return uint16(r[0])<<8 | uint16(r[1]), nil
}

func (d *Dev) writeWord(reg byte, v uint16) error {
	return d.d.Tx([]byte{reg, byte(v >> 8), byte(v)}, nil)
}

// toCount returns the left aligned 12 bit two's complement register value
// of t, clamped to the sensor range.
func toCount(t physic.Temperature) uint16 {
	t = max(MinimumTemperature, min(MaximumTemperature, t))
	c := int16((t - physic.ZeroCelsius) / resolution)
	return uint16(c << 4)
}

func fromCount(v uint16) physic.Temperature {
	c := int16(v) >> 4
	return physic.ZeroCelsius + physic.Temperature(c)*resolution
}

// Arm programs the window edges as alert thresholds. Disarmed edges are
// moved to the end of the sensor range.
func (d *Dev) Arm(w smb1351.Window) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.armed && w == d.window {
		return nil
	}
	low, high := MinimumTemperature, MaximumTemperature
	if w.Falling {
		low = w.Low
	}
	if w.Rising {
		high = w.High
	}
	if err := d.writeWord(regTLow, toCount(low)); err != nil {
		return fmt.Errorf("battherm: writing T_LOW: %w", err)
	}
	if err := d.writeWord(regTHigh, toCount(high)); err != nil {
		return fmt.Errorf("battherm: writing T_HIGH: %w", err)
	}
	d.window = w
	d.armed = true
	d.log.Debugf("armed %s", w)
	return nil
}

// Sense reads the battery temperature into env.
func (d *Dev) Sense(env *physic.Env) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, err := d.readWord(regTemperature)
	if err != nil {
		return fmt.Errorf("battherm: reading temperature: %w", err)
	}
	env.Temperature = fromCount(v)
	return nil
}

// Precision returns the sensor resolution.
func (d *Dev) Precision(env *physic.Env) {
	env.Temperature = resolution
}

// direction returns the edge t crossed, or the trend against the previous
// sample when it is inside the window.
func (d *Dev) direction(t physic.Temperature) smb1351.Direction {
	d.mu.Lock()
	defer d.mu.Unlock()
	last, seen := d.last, d.sample
	d.last, d.sample = t, true
	switch {
	case d.window.Rising && t >= d.window.High:
		return smb1351.Rising
	case d.window.Falling && t <= d.window.Low:
		return smb1351.Falling
	case seen && t < last:
		return smb1351.Falling
	}
	return smb1351.Rising
}

// Run feeds every sample to s until Halt is called.
func (d *Dev) Run(s Sink) error {
	if a := d.opts.Alert; a != nil {
		if err := a.In(gpio.PullUp, gpio.FallingEdge); err != nil {
			return fmt.Errorf("battherm: configuring %s: %w", a, err)
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done != nil {
		return errors.New("battherm: already running")
	}
	d.done = make(chan struct{})
	d.wg.Add(1)
	go d.monitor(s, d.done)
	return nil
}

func (d *Dev) monitor(s Sink, done <-chan struct{}) {
	defer d.wg.Done()
	for {
		if a := d.opts.Alert; a != nil {
			a.WaitForEdge(d.opts.Interval)
			select {
			case <-done:
				return
			default:
			}
		} else {
			select {
			case <-done:
				return
			case <-time.After(d.opts.Interval):
			}
		}
		e := physic.Env{}
		if err := d.Sense(&e); err != nil {
			d.log.Errorf("%v", err)
			continue
		}
		dir := d.direction(e.Temperature)
		if _, err := s.HandleTemperature(e.Temperature, dir); err != nil {
			d.log.Warnf("%s %s: %v", e.Temperature, dir, err)
		}
	}
}

// Halt stops the sampling loop and shuts the sensor down. Implements
// conn.Resource.
func (d *Dev) Halt() error {
	d.mu.Lock()
	done := d.done
	d.done = nil
	d.mu.Unlock()
	if done != nil {
		close(done)
		d.wg.Wait()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	cfg, err := d.readWord(regConfig)
	if err != nil {
		return fmt.Errorf("battherm: reading configuration: %w", err)
	}
	if cfg&cfgShutdown != 0 {
		return nil
	}
	return d.writeWord(regConfig, cfg|cfgShutdown)
}

func (d *Dev) String() string {
	return fmt.Sprintf("battherm: %s", d.d.String())
}

var _ conn.Resource = &Dev{}
var _ smb1351.Thermistor = &Dev{}
