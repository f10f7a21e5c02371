// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package smb1351

// Each interrupt register packs four two-bit fields. For field j, bit 2j is
// the real-time status and bit 2j+1 is the latched trigger.
const fieldsPerGroup = 4

func statusBit(j int) byte { return 1 << (2 * j) }

func latchBit(j int) byte { return 2 << (2 * j) }

type irqHandler func(d *Dev, high bool) error

type irqField struct {
	name    string
	handler irqHandler
	high    int
	low     int
}

type irqGroup struct {
	reg    byte
	prev   byte
	fields [fieldsPerGroup]irqField
}

// IRQCount reports how often an interrupt field was seen going high and low.
type IRQCount struct {
	Name string
	High int
	Low  int
}

// Total is the number of events seen on the field.
func (c IRQCount) Total() int {
	return c.High + c.Low
}

func newIRQGroups() [8]irqGroup {
	return [8]irqGroup{
		{reg: regIRQA, fields: [4]irqField{
			{name: "cold_soft", handler: (*Dev).onColdSoft},
			{name: "hot_soft", handler: (*Dev).onHotSoft},
			{name: "cold_hard", handler: (*Dev).onColdHard},
			{name: "hot_hard", handler: (*Dev).onHotHard},
		}},
		{reg: regIRQB, fields: [4]irqField{
			{name: "internal_temp_limit"},
			{name: "vbatt_low"},
			{name: "battery_missing", handler: (*Dev).onBatteryMissing},
			{name: "batt_therm_removed"},
		}},
		{reg: regIRQC, fields: [4]irqField{
			{name: "chg_term", handler: (*Dev).onChargeTerm},
			{name: "taper"},
			{name: "recharge"},
			{name: "fast_chg", handler: (*Dev).onLogOnly},
		}},
		{reg: regIRQD, fields: [4]irqField{
			{name: "prechg_timeout"},
			{name: "safety_timeout", handler: (*Dev).onLogOnly},
			{name: "chg_error"},
			{name: "batt_ov"},
		}},
		{reg: regIRQE, fields: [4]irqField{
			{name: "power_ok"},
			{name: "afvc"},
			{name: "usbin_uv", handler: (*Dev).onUSBInUV},
			{name: "usbin_ov", handler: (*Dev).onUSBInOV},
		}},
		{reg: regIRQF, fields: [4]irqField{
			{name: "otg_oc_retry"},
			{name: "rid"},
			{name: "otg_fail"},
			{name: "otg_oc"},
		}},
		{reg: regIRQG, fields: [4]irqField{
			{name: "chg_inhibit"},
			{name: "aicl_fail"},
			{name: "aicl_done", handler: (*Dev).onLogOnly},
			{name: "apsd_complete", handler: (*Dev).onAPSDComplete},
		}},
		{reg: regIRQH, fields: [4]irqField{
			{name: "wdog_timeout"},
			{name: "hvdcp_auth_done"},
			{name: "hvdcp_2p1"},
			{name: "ic_limit"},
		}},
	}
}

// dispatch reads every interrupt group and runs the handler of each field
// that changed or was latched since the previous read. A group that can't be
// read is skipped and keeps its previous value. It reports whether any
// handler ran.
func (d *Dev) dispatch() bool {
	fired := false
	for g := range d.irq {
		grp := &d.irq[g]
		v, err := d.t.read(grp.reg)
		if err != nil {
			d.log.Errorf("skipping interrupt group 0x%02X: %v", grp.reg, err)
			continue
		}
		changed := v ^ grp.prev
		for j := range grp.fields {
			f := &grp.fields[j]
			if changed&statusBit(j) == 0 && v&latchBit(j) == 0 {
				continue
			}
			high := v&statusBit(j) != 0
			if high {
				f.high++
			} else {
				f.low++
			}
			d.log.Debugf("irq %s high=%t", f.name, high)
			if f.handler == nil {
				continue
			}
			if err := f.handler(d, high); err != nil {
				d.log.Errorf("irq %s handler: %v", f.name, err)
			}
			fired = true
		}
		grp.prev = v
	}
	if fired {
		d.batteryDirty = true
	}
	return fired
}

// IRQCounts returns the event counters of all interrupt fields.
func (d *Dev) IRQCounts() []IRQCount {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]IRQCount, 0, len(d.irq)*fieldsPerGroup)
	for _, g := range d.irq {
		for _, f := range g.fields {
			out = append(out, IRQCount{Name: f.name, High: f.high, Low: f.low})
		}
	}
	return out
}

func (d *Dev) onColdSoft(high bool) error {
	d.hwTemp.cool = high
	return nil
}

func (d *Dev) onHotSoft(high bool) error {
	d.hwTemp.warm = high
	return nil
}

func (d *Dev) onColdHard(high bool) error {
	d.hwTemp.cold = high
	return nil
}

func (d *Dev) onHotHard(high bool) error {
	d.hwTemp.hot = high
	return nil
}

func (d *Dev) onBatteryMissing(high bool) error {
	d.batteryMissing = high
	return nil
}

func (d *Dev) onChargeTerm(high bool) error {
	if !d.opts.SOCControlled {
		d.full = high
	}
	return nil
}

func (d *Dev) onLogOnly(high bool) error {
	return nil
}

func (d *Dev) onUSBInUV(high bool) error {
	// Without APSD the UV release is the only insertion signal.
	if d.opts.DisableAPSD && !high {
		d.setInput(true, SDP)
	}
	if high {
		d.setInput(false, UnknownPort)
	}
	return nil
}

func (d *Dev) onUSBInOV(high bool) error {
	if high {
		d.input.Present = false
		d.input.Port = UnknownPort
	}
	d.input.Health = HealthGood
	if high {
		d.input.Health = HealthOverVoltage
	}
	d.queueInput()
	return nil
}

func (d *Dev) onAPSDComplete(high bool) error {
	if d.opts.DisableAPSD || !high {
		return nil
	}
	v, err := d.t.read(regStatus5)
	if err != nil {
		return err
	}
	d.setInput(true, portType(v))
	return nil
}
