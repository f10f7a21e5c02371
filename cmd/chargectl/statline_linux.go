// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

//go:build linux

package main

import (
	"fmt"
	"io"

	"github.com/GermanBionicSystems/chargectl/smb1351"
	"github.com/edaniels/golog"
	"github.com/warthog618/gpiod"
)

// watchLine requests the STAT line from the GPIO character device and
// dispatches the charger interrupts on its falling edges.
func watchLine(chip string, offset int, d *smb1351.Dev, log golog.Logger) (io.Closer, error) {
	l, err := gpiod.RequestLine(chip, offset,
		gpiod.WithPullUp,
		gpiod.WithFallingEdge,
		gpiod.WithEventHandler(func(evt gpiod.LineEvent) {
			log.Debugf("STAT edge on line %d at %s", evt.Offset, evt.Timestamp)
			d.HandleInterrupt()
		}))
	if err != nil {
		return nil, fmt.Errorf("requesting %s line %d: %w", chip, offset, err)
	}
	return l, nil
}
