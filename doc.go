// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package chargectl is a container for the SMB1351 battery charger
// controller and the devices it works with.
//
// The charger core lives in smb1351, the battery thermistor sampler in
// battherm and the fuel gauge in gauge. cmd/chargectl runs them on a host.
package chargectl
