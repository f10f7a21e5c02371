// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/GermanBionicSystems/chargectl/battherm"
	"github.com/GermanBionicSystems/chargectl/gauge"
	"github.com/GermanBionicSystems/chargectl/smb1351"
	"periph.io/x/conn/v3/physic"
)

// fileConfig is the JSON configuration document. Currents are in mA,
// voltages in mV and temperatures in tenths of °C.
type fileConfig struct {
	// I2C is the bus name, empty for the first bus.
	I2C  string `json:"i2c"`
	Addr uint16 `json:"addr"`

	// Stat is the periph name of the STAT pin. StatChip and StatLine select
	// a GPIO character device line instead.
	Stat     string `json:"stat"`
	StatChip string `json:"stat_chip"`
	StatLine int    `json:"stat_line"`

	Charger    chargerConfig     `json:"charger"`
	Parallel   *parallelConfig   `json:"parallel"`
	Thermistor *thermistorConfig `json:"thermistor"`
	Gauge      *gaugeConfig      `json:"gauge"`
}

type chargerConfig struct {
	Autonomous       bool `json:"autonomous"`
	Factory          bool `json:"factory"`
	DisableAPSD      bool `json:"disable_apsd"`
	ExternalTherm    bool `json:"external_therm"`
	SOCControlled    bool `json:"soc_controlled"`
	ChargingDisabled bool `json:"charging_disabled"`

	FastChargeMaxMA     int  `json:"fastchg_current_max_ma"`
	FloatVoltageMV      int  `json:"float_voltage_mv"`
	TerminationMA       int  `json:"iterm_ma"`
	TerminationDisabled bool `json:"iterm_disabled"`
	RechargeMV          int  `json:"recharge_mv"`
	RechargeDisabled    bool `json:"recharge_disabled"`

	Thermal *thermalConfig `json:"thermal"`
}

// thermalConfig thresholds are pointers since 0°C is a common cold limit.
type thermalConfig struct {
	Hot     *int `json:"hot_decidegc"`
	Warm    *int `json:"warm_decidegc"`
	Cool    *int `json:"cool_decidegc"`
	Cold    *int `json:"cold_decidegc"`
	Missing *int `json:"missing_decidegc"`

	WarmCurrentMA int `json:"warm_current_ma"`
	WarmVoltageMV int `json:"warm_voltage_mv"`
	CoolCurrentMA int `json:"cool_current_ma"`
	CoolVoltageMV int `json:"cool_voltage_mv"`
}

// parallelConfig describes the current sharing charger. It is attached
// while the primary charger sees an input.
type parallelConfig struct {
	Addr           uint16 `json:"addr"`
	Factory        bool   `json:"factory"`
	FloatVoltageMV int    `json:"float_voltage_mv"`
	RechargeMV     int    `json:"recharge_mv"`
	FastChargeMA   int    `json:"fastchg_current_ma"`
	InputCurrentMA int    `json:"input_current_ma"`
}

type thermistorConfig struct {
	Addr       uint16 `json:"addr"`
	Alert      string `json:"alert"`
	IntervalMS int    `json:"interval_ms"`
}

type gaugeConfig struct {
	Addr uint16 `json:"addr"`
}

func loadConfig(path string) (*fileConfig, error) {
	cfg := &fileConfig{Addr: smb1351.DefaultAddr}
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.Parallel != nil && cfg.Parallel.Addr == 0 {
		return nil, fmt.Errorf("%s: parallel charger without address", path)
	}
	if cfg.Thermistor != nil && cfg.Thermistor.Addr == 0 {
		cfg.Thermistor.Addr = battherm.DefaultAddr
	}
	if cfg.Gauge != nil && cfg.Gauge.Addr == 0 {
		cfg.Gauge.Addr = gauge.DefaultAddr
	}
	return cfg, nil
}

func milliAmpere(ma int) physic.ElectricCurrent {
	return physic.ElectricCurrent(ma) * physic.MilliAmpere
}

func milliVolt(mv int) physic.ElectricPotential {
	return physic.ElectricPotential(mv) * physic.MilliVolt
}

func deciCelsius(dc *int) physic.Temperature {
	if dc == nil {
		return 0
	}
	return physic.ZeroCelsius + physic.Temperature(*dc)*100*physic.MilliKelvin
}

// opts returns the primary charger options. Runtime collaborators are left
// to the caller.
func (c *chargerConfig) opts() smb1351.Opts {
	o := smb1351.Opts{
		Autonomous:          c.Autonomous,
		Factory:             c.Factory,
		DisableAPSD:         c.DisableAPSD,
		ExternalTherm:       c.ExternalTherm,
		SOCControlled:       c.SOCControlled,
		ChargingDisabled:    c.ChargingDisabled,
		FastChargeMax:       milliAmpere(c.FastChargeMaxMA),
		FloatVoltage:        milliVolt(c.FloatVoltageMV),
		Termination:         milliAmpere(c.TerminationMA),
		TerminationDisabled: c.TerminationDisabled,
		Recharge:            milliVolt(c.RechargeMV),
		RechargeDisabled:    c.RechargeDisabled,
	}
	if t := c.Thermal; t != nil {
		o.Thermal = smb1351.Thresholds{
			Hot:         deciCelsius(t.Hot),
			Warm:        deciCelsius(t.Warm),
			Cool:        deciCelsius(t.Cool),
			Cold:        deciCelsius(t.Cold),
			Missing:     deciCelsius(t.Missing),
			WarmCurrent: milliAmpere(t.WarmCurrentMA),
			WarmVoltage: milliVolt(t.WarmVoltageMV),
			CoolCurrent: milliAmpere(t.CoolCurrentMA),
			CoolVoltage: milliVolt(t.CoolVoltageMV),
		}
	}
	return o
}

func (p *parallelConfig) opts() smb1351.Opts {
	return smb1351.Opts{
		Role:         smb1351.Parallel,
		Factory:      p.Factory,
		FloatVoltage: milliVolt(p.FloatVoltageMV),
		Recharge:     milliVolt(p.RechargeMV),
	}
}

func (t *thermistorConfig) interval() time.Duration {
	if t.IntervalMS == 0 {
		return battherm.DefaultInterval
	}
	return time.Duration(t.IntervalMS) * time.Millisecond
}
