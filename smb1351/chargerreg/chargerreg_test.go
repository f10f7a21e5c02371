// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package chargerreg

import (
	"errors"
	"testing"

	"github.com/GermanBionicSystems/chargectl/smb1351"
	"github.com/edaniels/golog"
	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

// parallelOpener opens a parallel charger, which only reads its revision.
func parallelOpener(t *testing.T, opens *int) Opener {
	return func() (*smb1351.Dev, error) {
		*opens++
		bus := &i2ctest.Playback{Ops: []i2ctest.IO{
			{Addr: smb1351.DefaultAddr, W: []byte{0x3F}, R: []byte{0x01}},
		}}
		return smb1351.New(bus, smb1351.DefaultAddr, &smb1351.Opts{
			Role:   smb1351.Parallel,
			Logger: golog.NewTestLogger(t),
		})
	}
}

func TestRegister(t *testing.T) {
	g := New()
	var opens int
	o := parallelOpener(t, &opens)
	for _, tc := range []struct {
		name    string
		aliases []string
		o       Opener
	}{
		{"", nil, o},
		{"parallel", nil, nil},
		{"1", nil, o},
		{"a:b", nil, o},
		{"parallel", []string{""}, o},
		{"parallel", []string{"parallel"}, o},
		{"parallel", []string{"2"}, o},
		{"parallel", []string{"x:y"}, o},
	} {
		if err := g.Register(tc.name, tc.aliases, tc.o); err == nil {
			t.Errorf("Register(%q, %q) succeeded", tc.name, tc.aliases)
		}
	}
	if err := g.Register("parallel", []string{"slave"}, o); err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct {
		name    string
		aliases []string
	}{
		{"parallel", nil},
		{"slave", nil},
		{"other", []string{"parallel"}},
		{"other", []string{"slave"}},
	} {
		if err := g.Register(tc.name, tc.aliases, o); err == nil {
			t.Errorf("duplicate Register(%q, %q) succeeded", tc.name, tc.aliases)
		}
	}
	if opens != 0 {
		t.Errorf("Register opened the charger %d times", opens)
	}
}

func TestOpen(t *testing.T) {
	g := New()
	if _, err := g.Open(""); err == nil {
		t.Fatal("Open() on an empty registry succeeded")
	}
	var opens int
	if err := g.Register("parallel", []string{"slave"}, parallelOpener(t, &opens)); err != nil {
		t.Fatal(err)
	}
	failed := errors.New("no charger")
	if err := g.Register("primary", nil, func() (*smb1351.Dev, error) { return nil, failed }); err != nil {
		t.Fatal(err)
	}
	d, err := g.Open("")
	if err != nil {
		t.Fatal(err)
	}
	d2, err := g.Open("slave")
	if err != nil {
		t.Fatal(err)
	}
	if d != d2 || opens != 1 {
		t.Errorf("alias opened a new handle, %d opens", opens)
	}
	if _, err := g.Open("primary"); !errors.Is(err, failed) {
		t.Errorf("Open(primary) = %v", err)
	}
	if _, err := g.Open("missing"); err == nil {
		t.Error("Open(missing) succeeded")
	}

	var names []string
	for _, r := range g.All() {
		names = append(names, r.Name)
	}
	if diff := cmp.Diff([]string{"parallel", "primary"}, names); diff != "" {
		t.Errorf("All() (-want +got):\n%s", diff)
	}

	if err := g.Unregister("parallel"); err != nil {
		t.Fatal(err)
	}
	if err := g.Unregister("parallel"); err == nil {
		t.Error("second Unregister succeeded")
	}
	if _, err := g.Open("slave"); err == nil {
		t.Error("alias survived Unregister")
	}
	if err := g.Halt(); err != nil {
		t.Error(err)
	}
}
