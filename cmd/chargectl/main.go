// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// chargectl runs an SMB1351 battery charger from a Linux host.
//
// It configures the charger from a JSON file, dispatches its interrupts on
// the STAT line, feeds it the battery temperature and keeps a status line
// on the console.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GermanBionicSystems/chargectl/battherm"
	"github.com/GermanBionicSystems/chargectl/gauge"
	"github.com/GermanBionicSystems/chargectl/smb1351"
	"github.com/GermanBionicSystems/chargectl/smb1351/chargerreg"
	"github.com/edaniels/golog"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

func mainImpl() (err error) {
	configPath := flag.String("config", "", "JSON configuration file")
	verbose := flag.Bool("v", false, "log register traffic")
	dumpRegs := flag.Bool("dump", false, "print the registers and interrupt counters, then exit")
	period := flag.Duration("interval", time.Second, "status line refresh period")
	httpAddr := flag.String("http", "", "serve the status as JSON on this address, e.g. :3000")
	flag.Parse()
	if flag.NArg() != 0 {
		return errors.New("unexpected argument, try -help")
	}

	log := golog.NewLogger("chargectl")
	if *verbose {
		log = golog.NewDebugLogger("chargectl")
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if _, err := host.Init(); err != nil {
		return err
	}
	bus, err := i2creg.Open(cfg.I2C)
	if err != nil {
		return fmt.Errorf("failed to open I²C: %w", err)
	}
	defer bus.Close()

	// cell stays a nil interface without a gauge.
	var cell voltmeter
	var g *gauge.Dev
	if cfg.Gauge != nil {
		if g, err = gauge.NewI2C(bus, cfg.Gauge.Addr); err != nil {
			return err
		}
		cell = g
	}
	var th *battherm.Dev
	if t := cfg.Thermistor; t != nil {
		o := battherm.Opts{Interval: t.interval(), Logger: log.Named("battherm")}
		if t.Alert != "" {
			if o.Alert = gpioreg.ByName(t.Alert); o.Alert == nil {
				return fmt.Errorf("unknown thermistor alert pin %q", t.Alert)
			}
		}
		if th, err = battherm.NewI2C(bus, t.Addr, &o); err != nil {
			return err
		}
	}

	sup := &supply{log: log.Named("supply")}
	opts := cfg.Charger.opts()
	opts.Logger = log.Named("smb1351")
	opts.Supply = sup
	if g != nil {
		opts.Gauge = g
	}
	if th != nil {
		opts.Thermistor = th
	}
	if err := opts.Validate(); err != nil {
		log.Warnf("configuration: %v", err)
	}

	reg := chargerreg.New()
	defer func() {
		err = multierr.Append(err, reg.Halt())
	}()
	if err := reg.Register("primary", []string{"smb1351"}, func() (*smb1351.Dev, error) {
		return smb1351.New(bus, cfg.Addr, &opts)
	}); err != nil {
		return err
	}
	if p := cfg.Parallel; p != nil {
		popts := p.opts()
		popts.Logger = log.Named("parallel")
		if err := reg.Register("parallel", nil, func() (*smb1351.Dev, error) {
			return smb1351.New(bus, p.Addr, &popts)
		}); err != nil {
			return err
		}
	}
	primary, err := reg.Open("primary")
	if err != nil {
		return err
	}
	if *dumpRegs {
		return dump(os.Stdout, primary)
	}
	if p := cfg.Parallel; p != nil {
		par, err := reg.Open("parallel")
		if err != nil {
			return err
		}
		sup.setParallel(par, *p)
		if err := attach(par, *p, primary.Status().Input.Present); err != nil {
			log.Errorf("parallel charger: %v", err)
		}
	}

	switch {
	case cfg.Stat != "":
		p := gpioreg.ByName(cfg.Stat)
		if p == nil {
			return fmt.Errorf("unknown STAT pin %q", cfg.Stat)
		}
		if err := primary.Watch(p); err != nil {
			return err
		}
	case cfg.StatChip != "":
		l, err := watchLine(cfg.StatChip, cfg.StatLine, primary, log.Named("stat"))
		if err != nil {
			return err
		}
		defer l.Close()
	default:
		log.Warnf("no STAT line configured, interrupts are only read at start")
	}
	if th != nil {
		if err := th.Run(primary); err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, th.Halt())
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *httpAddr != "" {
		s := &server{log: log.Named("http"), charger: primary, cell: cell}
		srv := s.httpServer(*httpAddr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("http: %v", err)
				stop()
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}
	return statusLoop(ctx, newConsole(opts.Thermal, nil), primary, cell, *period)
}

func statusLoop(ctx context.Context, con *console, d statusSource, cell voltmeter, period time.Duration) error {
	defer con.Halt()
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		var v physic.ElectricPotential
		if cell != nil {
			v, _ = cell.Voltage()
		}
		if err := con.print(d.Status(), v); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "chargectl: %s.\n", err)
		os.Exit(1)
	}
}
