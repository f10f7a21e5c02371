// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

//go:build !linux

package main

import (
	"errors"
	"io"

	"github.com/GermanBionicSystems/chargectl/smb1351"
	"github.com/edaniels/golog"
)

func watchLine(chip string, offset int, d *smb1351.Dev, log golog.Logger) (io.Closer, error) {
	return nil, errors.New("GPIO character device lines are only supported on Linux")
}
