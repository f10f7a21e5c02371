// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package chargerreg is a registry of the chargers on a board.
//
// A board with a parallel charger registers two entries, conventionally named
// "primary" and "parallel", each opened on first use.
package chargerreg

import (
	"errors"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/GermanBionicSystems/chargectl/smb1351"
	"go.uber.org/multierr"
)

// Opener opens a handle to a charger.
type Opener func() (*smb1351.Dev, error)

// Ref references a charger.
//
// It is returned by All() to enumerate all registered chargers.
type Ref struct {
	// Name of the charger, unique in the registry.
	Name string
	// Aliases are alternative names for the same charger.
	Aliases []string
	// Open is the factory to open a handle to this charger.
	Open Opener
}

// Registry holds the registered chargers and the handles already opened.
type Registry struct {
	mu      sync.Mutex
	byName  map[string]*Ref
	byAlias map[string]*Ref
	opened  map[string]*smb1351.Dev
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		byName:  map[string]*Ref{},
		byAlias: map[string]*Ref{},
		opened:  map[string]*smb1351.Dev{},
	}
}

// Open returns the charger registered under name or one of its aliases,
// opening it the first time.
//
// Specify the empty string "" to get the first charger in lexical order.
func (g *Registry) Open(name string) (*smb1351.Dev, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.byName) == 0 {
		return nil, errors.New("chargerreg: no charger registered")
	}
	var r *Ref
	if len(name) == 0 {
		r = g.first()
	} else if r = g.byName[name]; r == nil {
		r = g.byAlias[name]
	}
	if r == nil {
		return nil, errors.New("chargerreg: can't open unknown charger: " + strconv.Quote(name))
	}
	if d := g.opened[r.Name]; d != nil {
		return d, nil
	}
	d, err := r.Open()
	if err != nil {
		return nil, err
	}
	g.opened[r.Name] = d
	return d, nil
}

// All returns a copy of all the registered references, sorted by name.
func (g *Registry) All() []*Ref {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Ref, 0, len(g.byName))
	for _, v := range g.byName {
		r := &Ref{Name: v.Name, Aliases: make([]string, len(v.Aliases)), Open: v.Open}
		copy(r.Aliases, v.Aliases)
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *Ref) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Register registers a charger.
//
// Names and aliases must be unique, non numeric and free of ':'.
func (g *Registry) Register(name string, aliases []string, o Opener) error {
	if len(name) == 0 {
		return errors.New("chargerreg: can't register a charger with no name")
	}
	if o == nil {
		return errors.New("chargerreg: can't register charger " + strconv.Quote(name) + " with nil Opener")
	}
	if err := checkName(name); err != nil {
		return errors.New("chargerreg: can't register charger " + strconv.Quote(name) + " with name " + err.Error())
	}
	for _, alias := range aliases {
		if len(alias) == 0 {
			return errors.New("chargerreg: can't register charger " + strconv.Quote(name) + " with an empty alias")
		}
		if name == alias {
			return errors.New("chargerreg: can't register charger " + strconv.Quote(name) + " with an alias the same as the name")
		}
		if err := checkName(alias); err != nil {
			return errors.New("chargerreg: can't register charger " + strconv.Quote(name) + " with alias " + strconv.Quote(alias) + " " + err.Error())
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.byName[name]; ok {
		return errors.New("chargerreg: can't register charger " + strconv.Quote(name) + " twice")
	}
	if _, ok := g.byAlias[name]; ok {
		return errors.New("chargerreg: can't register charger " + strconv.Quote(name) + " twice; it is already an alias")
	}
	for _, alias := range aliases {
		if _, ok := g.byName[alias]; ok {
			return errors.New("chargerreg: can't register charger " + strconv.Quote(name) + "; alias " + strconv.Quote(alias) + " is already a charger")
		}
		if _, ok := g.byAlias[alias]; ok {
			return errors.New("chargerreg: can't register charger " + strconv.Quote(name) + "; alias " + strconv.Quote(alias) + " is already an alias")
		}
	}

	r := &Ref{Name: name, Aliases: make([]string, len(aliases)), Open: o}
	copy(r.Aliases, aliases)
	g.byName[name] = r
	for _, alias := range aliases {
		g.byAlias[alias] = r
	}
	return nil
}

// Unregister removes a charger, halting its handle if it was opened.
func (g *Registry) Unregister(name string) error {
	g.mu.Lock()
	r := g.byName[name]
	if r == nil {
		g.mu.Unlock()
		return errors.New("chargerreg: can't unregister unknown charger " + strconv.Quote(name))
	}
	delete(g.byName, name)
	for _, alias := range r.Aliases {
		delete(g.byAlias, alias)
	}
	d := g.opened[name]
	delete(g.opened, name)
	g.mu.Unlock()
	if d != nil {
		return d.Halt()
	}
	return nil
}

// Halt halts every opened charger.
func (g *Registry) Halt() error {
	g.mu.Lock()
	opened := g.opened
	g.opened = map[string]*smb1351.Dev{}
	g.mu.Unlock()
	var err error
	for _, d := range opened {
		err = multierr.Append(err, d.Halt())
	}
	return err
}

func checkName(n string) error {
	if _, err := strconv.Atoi(n); err == nil {
		return errors.New("being only a number")
	}
	if strings.Contains(n, ":") {
		return errors.New("containing ':'")
	}
	return nil
}

// first returns the lexically first charger.
func (g *Registry) first() *Ref {
	var o *Ref
	for n, r := range g.byName {
		if o == nil || n < o.Name {
			o = r
		}
	}
	return o
}
