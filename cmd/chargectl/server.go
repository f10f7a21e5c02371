// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/GermanBionicSystems/chargectl/smb1351"
	"github.com/edaniels/golog"
	"periph.io/x/conn/v3/physic"
)

type statusSource interface {
	Status() smb1351.Status
}

type voltmeter interface {
	Voltage() (physic.ElectricPotential, error)
}

// statusResponse is the JSON served on GET /.
type statusResponse struct {
	Battery        string `json:"battery"`
	ChargeType     string `json:"charge_type"`
	Health         string `json:"health"`
	BatteryPresent bool   `json:"battery_present"`
	Capacity       int    `json:"capacity"`
	TempDeciC      int    `json:"temp_decidegc"`
	Band           string `json:"band"`
	InputPresent   bool   `json:"input_present"`
	InputPort      string `json:"input_port"`
	InputHealth    string `json:"input_health"`
	ChargeMA       int    `json:"charge_current_ma"`
	FloatMV        int    `json:"float_voltage_mv"`
	InputMA        int    `json:"input_current_ma"`
	CellMV         int    `json:"cell_voltage_mv,omitempty"`
	DisableVotes   string `json:"disable_votes"`
	SuspendVotes   string `json:"suspend_votes"`
}

func newStatusResponse(s smb1351.Status) statusResponse {
	return statusResponse{
		Battery:        s.Battery.String(),
		ChargeType:     s.ChargeType.String(),
		Health:         s.Health.String(),
		BatteryPresent: s.BatteryPresent,
		Capacity:       s.Capacity,
		TempDeciC:      int((s.Temperature - physic.ZeroCelsius) / (100 * physic.MilliKelvin)),
		Band:           s.Band.String(),
		InputPresent:   s.Input.Present,
		InputPort:      s.Input.Port.String(),
		InputHealth:    s.Input.Health.String(),
		ChargeMA:       int(s.ChargeCurrent / physic.MilliAmpere),
		FloatMV:        int(s.FloatVoltage / physic.MilliVolt),
		InputMA:        int(s.InputCurrent / physic.MilliAmpere),
		DisableVotes:   s.Disable.String(),
		SuspendVotes:   s.Suspend.String(),
	}
}

type server struct {
	log     golog.Logger
	charger statusSource
	// cell may be nil.
	cell voltmeter
}

func (s *server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.status)
	return mux
}

func (s *server) status(w http.ResponseWriter, r *http.Request) {
	resp := newStatusResponse(s.charger.Status())
	if s.cell != nil {
		v, err := s.cell.Voltage()
		if err != nil {
			s.log.Errorf("reading cell voltage: %v", err)
		} else {
			resp.CellMV = int(v / physic.MilliVolt)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Errorf("encoding status: %v", err)
	}
}

func (s *server) httpServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s.handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}
