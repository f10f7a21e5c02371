// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package gauge reads the state of charge of a single cell from a Maxim
// MAX17048 fuel gauge. *Dev is the capacity source of the smb1351 charger.
//
// # Datasheet
//
// https://www.analog.com/media/en/technical-documentation/data-sheets/MAX17048-MAX17049.pdf
package gauge
