// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"

	"github.com/GermanBionicSystems/chargectl/smb1351"
)

type dumper interface {
	Dump() ([]smb1351.Register, error)
	IRQCounts() []smb1351.IRQCount
}

// dump prints the register blocks, then the interrupt fields that fired.
func dump(w io.Writer, d dumper) error {
	regs, err := d.Dump()
	for _, r := range regs {
		if _, err := fmt.Fprintf(w, "0x%02X: 0x%02X\n", r.Addr, r.Value); err != nil {
			return err
		}
	}
	if err != nil {
		return err
	}
	for _, c := range d.IRQCounts() {
		if c.Total() == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w, "%-20s high=%d low=%d\n", c.Name, c.High, c.Low); err != nil {
			return err
		}
	}
	return nil
}
