// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package smb1351

// HandleInterrupt processes a STAT line assertion. While the host is
// suspended the dispatch is deferred until Resume and the interrupt stays
// masked.
func (d *Dev) HandleInterrupt() {
	d.mu.Lock()
	if !d.resumed {
		d.irqPending = true
		d.log.Debugf("interrupt while suspended, deferring")
		d.mu.Unlock()
		return
	}
	d.dispatch()
	d.unlockAndNotify()
}

// holdMask reports whether the watcher must keep the STAT line masked until
// Resume because its interrupt was deferred.
func (d *Dev) holdMask() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.masked = d.irqPending
	return d.masked
}

// InterruptPending reports whether a deferred dispatch waits for Resume.
func (d *Dev) InterruptPending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.irqPending
}

// Suspend prepares for system suspend. Interrupts arriving from now on are
// deferred. It returns ErrBusy while a deferred dispatch is pending.
//
// A parallel charger has nothing to do.
func (d *Dev) Suspend() error {
	if d.opts.Role == Parallel {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.irqPending {
		return ErrBusy
	}
	d.resumed = false
	return nil
}

// SuspendNoIRQ is the last suspend check, run after interrupt delivery
// stopped. It returns ErrBusy if an interrupt arrived since Suspend.
func (d *Dev) SuspendNoIRQ() error {
	if d.opts.Role == Parallel {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.irqPending {
		d.log.Infof("aborting suspend, interrupt pending")
		return ErrBusy
	}
	return nil
}

// Resume completes a resume and runs the deferred dispatch, if any, before
// unmasking the interrupt.
func (d *Dev) Resume() error {
	if d.opts.Role == Parallel {
		return nil
	}
	d.mu.Lock()
	d.resumed = true
	if d.irqPending {
		d.dispatch()
		d.irqPending = false
	}
	release := d.masked
	d.masked = false
	d.unlockAndNotify()
	if release {
		select {
		case d.unmask <- struct{}{}:
		default:
		}
	}
	return nil
}
