// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"fmt"
	"image/color"
	"io"

	"github.com/GermanBionicSystems/chargectl/smb1351"
	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3/physic"
)

// The thermal bar spans barLow to barLow+barCells*barStep.
const (
	barCells = 36
	barLow   = physic.ZeroCelsius - 20*physic.Kelvin
	barStep  = 2500 * physic.MilliKelvin
)

var bandColors = map[smb1351.Band]color.NRGBA{
	smb1351.Missing: {0x60, 0x60, 0x60, 0xFF},
	smb1351.Cold:    {0x20, 0x40, 0xFF, 0xFF},
	smb1351.Cool:    {0x00, 0xC0, 0xE0, 0xFF},
	smb1351.Normal:  {0x00, 0xC0, 0x00, 0xFF},
	smb1351.Warm:    {0xFF, 0xA0, 0x00, 0xFF},
	smb1351.Hot:     {0xFF, 0x00, 0x00, 0xFF},
}

var marker = color.NRGBA{0xFF, 0xFF, 0xFF, 0xFF}

// console prints a single, refreshed status line: a colored bar of the
// thermal bands with the battery temperature marked, then the charger state.
type console struct {
	w       io.Writer
	palette ansi256.Palette
	th      smb1351.Thresholds
	buf     bytes.Buffer
}

func newConsole(th smb1351.Thresholds, p *ansi256.Palette) *console {
	if p == nil {
		p = ansi256.Default
	}
	return &console{w: colorable.NewColorableStdout(), palette: *p, th: th}
}

// staticBand classifies t against the thresholds without hysteresis.
func staticBand(th smb1351.Thresholds, t physic.Temperature) smb1351.Band {
	jeita := th.JEITA()
	switch {
	case !th.Enabled():
		return smb1351.Normal
	case t >= th.Hot:
		return smb1351.Hot
	case jeita && t >= th.Warm:
		return smb1351.Warm
	case jeita && t >= th.Cool:
		return smb1351.Normal
	case t >= th.Cold && jeita:
		return smb1351.Cool
	case t >= th.Cold:
		return smb1351.Normal
	case t >= th.Missing:
		return smb1351.Cold
	}
	return smb1351.Missing
}

func (c *console) line(s smb1351.Status, vcell physic.ElectricPotential) string {
	c.buf.Reset()
	_, _ = c.buf.WriteString("\r\033[0m")
	at := int((s.Temperature - barLow) / barStep)
	for i := 0; i < barCells; i++ {
		col := bandColors[staticBand(c.th, barLow+physic.Temperature(i)*barStep)]
		if i == at {
			col = marker
		}
		_, _ = io.WriteString(&c.buf, c.palette.Block(col))
	}
	_, _ = c.buf.WriteString("\033[0m ")
	fmt.Fprintf(&c.buf, "%5.1f°C %-7s %-12s %-7s %3d%%", s.Temperature.Celsius(), s.Band, s.Battery, s.ChargeType, s.Capacity)
	if vcell != 0 {
		fmt.Fprintf(&c.buf, " %s", vcell)
	}
	fmt.Fprintf(&c.buf, " chg %s/%s", s.ChargeCurrent, s.FloatVoltage)
	if s.Input.Present {
		fmt.Fprintf(&c.buf, " in %s %s", s.Input.Port, s.InputCurrent)
	} else {
		_, _ = c.buf.WriteString(" no input")
	}
	if s.Disable != 0 {
		fmt.Fprintf(&c.buf, " disabled:%s", s.Disable)
	}
	if s.Suspend != 0 {
		fmt.Fprintf(&c.buf, " suspended:%s", s.Suspend)
	}
	_, _ = c.buf.WriteString("\033[K")
	return c.buf.String()
}

func (c *console) print(s smb1351.Status, vcell physic.ElectricPotential) error {
	_, err := io.WriteString(c.w, c.line(s, vcell))
	return err
}

// Halt leaves the line and resets the colors.
func (c *console) Halt() error {
	_, err := c.w.Write([]byte("\n\033[0m"))
	return err
}
