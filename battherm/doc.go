// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package battherm samples the battery pack temperature with a TMP102 glued
// to the cells and feeds the samples to the charger thermal band machine.
//
// The charger arms a window with Arm; the window edges are programmed into
// the sensor's T_LOW and T_HIGH registers so the ALERT pin, when wired,
// fires on a crossing.
//
// Range: -40°C - 125°C
//
// Resolution: 0.0625°C
//
// # Datasheet
//
// https://www.ti.com/lit/ds/symlink/tmp102.pdf
package battherm
