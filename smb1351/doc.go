// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package smb1351 controls a Qualcomm SMB1351 switch-mode battery charger over
// I²C.
//
// The driver owns the charger configuration: input current class, fast and
// pre-charge currents, float voltage, termination and recharge thresholds. It
// arbitrates charge enable and input suspend between independent requesters
// (user, thermal, input current, state of charge, factory), decodes the eight
// interrupt status registers on every STAT line edge and runs a JEITA thermal
// band machine fed by an external battery temperature sampler.
//
// A Dev runs either as the primary charger or as a parallel (slave) charger
// driven entirely through SetProperty by the primary's power supply logic.
//
// # Datasheet
//
// The SMB1351 datasheet is only available under NDA. Register layout follows
// the Linux kernel smb1351-charger driver.
package smb1351
