// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package smb1351

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// watchPoll bounds how long Halt waits for the watcher to notice.
const watchPoll = 250 * time.Millisecond

type watcher struct {
	done chan struct{}
	wg   sync.WaitGroup
}

func (w *watcher) stop() {
	close(w.done)
	w.wg.Wait()
}

// Watch dispatches interrupts on every falling edge of the open drain STAT
// pin until Halt is called. A deferred interrupt masks the pin until Resume.
func (d *Dev) Watch(stat gpio.PinIn) error {
	if err := stat.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return fmt.Errorf("smb1351: configuring %s: %w", stat, err)
	}
	w := &watcher{done: make(chan struct{})}
	d.mu.Lock()
	if d.w != nil {
		d.mu.Unlock()
		return errors.New("smb1351: already watching an interrupt pin")
	}
	d.w = w
	d.mu.Unlock()
	select {
	case <-d.unmask:
	default:
	}
	w.wg.Add(1)
	go d.watch(stat, w)
	return nil
}

func (d *Dev) watch(stat gpio.PinIn, w *watcher) {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		default:
		}
		if !stat.WaitForEdge(watchPoll) {
			continue
		}
		d.HandleInterrupt()
		if d.holdMask() {
			select {
			case <-d.unmask:
			case <-w.done:
				d.mu.Lock()
				d.masked = false
				d.mu.Unlock()
				return
			}
		}
	}
}
