// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"sync"

	"github.com/GermanBionicSystems/chargectl/smb1351"
	"github.com/edaniels/golog"
	"go.uber.org/multierr"
)

// parallelCharger is the part of *smb1351.Dev the supply drives.
type parallelCharger interface {
	SetProperty(p smb1351.Property, v int) error
}

// supply receives the primary charger notifications. It attaches the
// parallel charger while an input is present.
type supply struct {
	log golog.Logger

	mu       sync.Mutex
	parallel parallelCharger
	share    parallelConfig
	last     smb1351.Status
}

func (s *supply) setParallel(p parallelCharger, share parallelConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parallel = p
	s.share = share
}

// BatteryChanged implements smb1351.Supply.
func (s *supply) BatteryChanged(st smb1351.Status) {
	s.mu.Lock()
	prev := s.last
	s.last = st
	s.mu.Unlock()
	if st.Battery != prev.Battery || st.Band != prev.Band || st.BatteryPresent != prev.BatteryPresent {
		s.log.Infow("battery", "status", st.Battery, "band", st.Band, "present", st.BatteryPresent, "health", st.Health)
	}
}

// InputChanged implements smb1351.Supply.
func (s *supply) InputChanged(in smb1351.Input) {
	s.log.Infow("input", "present", in.Present, "port", in.Port, "health", in.Health)
	s.mu.Lock()
	p, share := s.parallel, s.share
	s.mu.Unlock()
	if p == nil {
		return
	}
	if err := attach(p, share, in.Present); err != nil {
		s.log.Errorw("parallel charger", "present", in.Present, "error", err)
	}
}

// attach hands the parallel charger its share of the current, or detaches
// it when the input is gone.
func attach(p parallelCharger, share parallelConfig, present bool) error {
	if !present {
		return p.SetProperty(smb1351.PropPresent, 0)
	}
	err := p.SetProperty(smb1351.PropPresent, 1)
	if share.FastChargeMA != 0 {
		err = multierr.Append(err, p.SetProperty(smb1351.PropConstantChargeCurrentMax, share.FastChargeMA*1000))
	}
	if share.InputCurrentMA != 0 {
		err = multierr.Append(err, p.SetProperty(smb1351.PropCurrentMax, share.InputCurrentMA*1000))
	}
	return err
}

var _ smb1351.Supply = &supply{}
