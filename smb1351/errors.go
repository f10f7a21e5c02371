// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package smb1351

import (
	"errors"
	"fmt"
)

var (
	// ErrIO is matched by every *IOError.
	ErrIO = errors.New("smb1351: i2c transfer failed")
	// ErrOutOfRange is returned when a requested value lies outside the range
	// accepted by the active charge path.
	ErrOutOfRange = errors.New("smb1351: value out of range")
	// ErrConfigConflict is returned when a feature is both given an explicit
	// value and disabled.
	ErrConfigConflict = errors.New("smb1351: conflicting configuration")
	// ErrBusy is returned by Suspend while an interrupt dispatch is pending.
	ErrBusy = errors.New("smb1351: interrupt pending")
	// ErrNoBand is returned when a temperature sample matches no band.
	ErrNoBand = errors.New("smb1351: temperature matches no band")
	// ErrNotParallel is returned for parallel-only properties on a primary.
	ErrNotParallel = errors.New("smb1351: not a parallel charger")
	// ErrUnsupportedProperty is returned for properties the role doesn't
	// expose.
	ErrUnsupportedProperty = errors.New("smb1351: unsupported property")
)

// IOError is a register transfer that still failed after all retries.
type IOError struct {
	Op  string
	Reg byte
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("smb1351: %s 0x%02X: %v", e.Op, e.Reg, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Is reports ErrIO as a match so callers don't need errors.As.
func (e *IOError) Is(target error) bool {
	return target == ErrIO
}
