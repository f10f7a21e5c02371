// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package smb1351

import "strings"

// Reason identifies a requester voting to disable charging or to suspend the
// input. The hardware control is asserted while at least one reason holds it.
type Reason uint8

const (
	User Reason = 1 << iota
	Thermal
	Current
	SOC
	Factory
)

var reasonNames = []string{"user", "thermal", "current", "soc", "factory"}

func (r Reason) String() string {
	if r == 0 {
		return "none"
	}
	var parts []string
	for i, n := range reasonNames {
		if r&(1<<i) != 0 {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, "|")
}

// ledger arbitrates one register bit between all reasons.
type ledger struct {
	name string
	reg  byte
	mask byte
	// asserted is written while any reason is held, released otherwise.
	asserted byte
	released byte

	reasons Reason
	// known is false until the bit was written once; hw is the last written
	// state.
	known bool
	hw    bool
}

func newDisableLedger() ledger {
	return ledger{name: "charge disable", reg: regCmdChg, mask: cmdChgEnBit, asserted: 0, released: cmdChgEnable}
}

func newSuspendLedger() ledger {
	return ledger{name: "input suspend", reg: regCmdInputLimit, mask: cmdSuspendModeBit, asserted: cmdSuspendModeBit, released: 0}
}

// vote records r as held or released and writes the register when the
// combined state differs from what the hardware holds. A failed write keeps
// the vote; the next call retries it.
func (l *ledger) vote(t *transport, r Reason, held bool) error {
	if held {
		l.reasons |= r
	} else {
		l.reasons &^= r
	}
	return l.sync(t, false)
}

func (l *ledger) sync(t *transport, force bool) error {
	want := l.reasons != 0
	if !force && l.known && want == l.hw {
		return nil
	}
	v := l.released
	if want {
		v = l.asserted
	}
	if err := t.maskedWrite(l.reg, l.mask, v); err != nil {
		return err
	}
	t.log.Debugf("%s: reasons=%s asserted=%t", l.name, l.reasons, want)
	l.known = true
	l.hw = want
	return nil
}

// SetChargeDisable holds or releases a vote to disable charging.
//
// It is a no-op when the charger is autonomous or in factory mode.
func (d *Dev) SetChargeDisable(r Reason, disable bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.voteDisable(r, disable)
}

// SetInputSuspend holds or releases a vote to suspend the input.
//
// It is a no-op when the charger is autonomous or in factory mode.
func (d *Dev) SetInputSuspend(r Reason, suspend bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.voteSuspend(r, suspend)
}

// Votes returns the reasons currently holding charging disabled and the input
// suspended.
func (d *Dev) Votes() (disable, suspend Reason) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disable.reasons, d.suspend.reasons
}

func (d *Dev) externallyManaged() bool {
	return d.opts.Autonomous || d.opts.Factory
}

func (d *Dev) voteDisable(r Reason, disable bool) error {
	if d.externallyManaged() {
		return nil
	}
	return d.disable.vote(d.t, r, disable)
}

func (d *Dev) voteSuspend(r Reason, suspend bool) error {
	if d.externallyManaged() {
		return nil
	}
	return d.suspend.vote(d.t, r, suspend)
}
