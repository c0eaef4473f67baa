// Copyright 2024 Ewout Prangsma
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// Author Ewout Prangsma
//

package shield

import (
	"sync"

	"github.com/pkg/errors"
)

// OutputPin is a single digital output line.
type OutputPin interface {
	Write(bool) error
}

// LatchPins holds the 4 lines of the serial-in/parallel-out shift register.
// All pins are expected to be configured active high.
type LatchPins struct {
	// Serial clock
	Clock OutputPin
	// Serial data
	Data OutputPin
	// Register latch-enable (storage clock)
	Latch OutputPin
	// Global output-enable (active low)
	Enable OutputPin
}

// Validate the pins, returning an error when a pin is missing.
func (p LatchPins) Validate() error {
	if p.Clock == nil {
		return invalidArgument("clock pin missing")
	}
	if p.Data == nil {
		return invalidArgument("data pin missing")
	}
	if p.Latch == nil {
		return invalidArgument("latch pin missing")
	}
	if p.Enable == nil {
		return invalidArgument("enable pin missing")
	}
	return nil
}

// Latch is the 8-bit shadow register of the shift register that controls
// the direction of all motor & stepper coils.
// Changes to the shadow state become visible on the outputs after Transmit.
type Latch struct {
	mutex    sync.Mutex
	pins     LatchPins
	state    uint8
	observer func(state uint8)
}

// LatchTx provides access to the shadow state during Update.
type LatchTx struct {
	state *uint8
}

// SetBits ORs the given mask into the shadow state.
func (tx LatchTx) SetBits(mask uint8) { *tx.state |= mask }

// ClearBits clears the bits in the given mask from the shadow state.
func (tx LatchTx) ClearBits(mask uint8) { *tx.state &^= mask }

// MaskTo ANDs the given mask into the shadow state.
func (tx LatchTx) MaskTo(mask uint8) { *tx.state &= mask }

// State returns the current shadow state.
func (tx LatchTx) State() uint8 { return *tx.state }

// NewLatch initializes the shift register lines, clears the register
// and then enables its outputs.
// The optional observer is called with every transmitted state, while
// the latch is locked; it must not call back into the latch.
func NewLatch(pins LatchPins, observer func(state uint8)) (*Latch, error) {
	if err := pins.Validate(); err != nil {
		return nil, err
	}
	l := &Latch{
		pins:     pins,
		observer: observer,
	}
	for _, pin := range []OutputPin{pins.Enable, pins.Latch, pins.Data, pins.Clock} {
		if err := pin.Write(true); err != nil {
			return nil, errors.Wrap(err, "Failed to initialize latch pin")
		}
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if err := l.transmit(); err != nil {
		return nil, errors.Wrap(err, "Initial transmit failed")
	}
	if err := pins.Enable.Write(false); err != nil {
		return nil, errors.Wrap(err, "Failed to enable latch outputs")
	}
	return l, nil
}

// State returns the current shadow state.
func (l *Latch) State() uint8 {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	return l.state
}

// SetBits ORs the given mask into the shadow state.
func (l *Latch) SetBits(mask uint8) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.state |= mask
}

// ClearBits clears the bits in the given mask from the shadow state.
func (l *Latch) ClearBits(mask uint8) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.state &^= mask
}

// MaskTo ANDs the given mask into the shadow state.
func (l *Latch) MaskTo(mask uint8) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.state &= mask
}

// Transmit shifts the shadow state out to the register.
func (l *Latch) Transmit() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	return l.transmit()
}

// Update performs a read-modify-write-transmit cycle as a single unit.
// If the given function fails, the shadow state is restored and
// nothing is transmitted.
func (l *Latch) Update(fn func(tx LatchTx) error) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	saved := l.state
	if err := fn(LatchTx{state: &l.state}); err != nil {
		l.state = saved
		return err
	}
	return l.transmit()
}

// transmit shifts the shadow state out, MSB first and then
// pulses the latch-enable line.
// The mutex must be held.
func (l *Latch) transmit() error {
	if err := l.shiftOut(l.state); err != nil {
		latchTransmitErrorsTotal.Inc()
		return maskAny(err)
	}
	latchTransmitsTotal.Inc()
	latchState.Set(float64(l.state))
	if l.observer != nil {
		l.observer(l.state)
	}
	return nil
}

func (l *Latch) shiftOut(value uint8) error {
	p := l.pins
	if err := p.Latch.Write(false); err != nil {
		return errors.Wrap(err, "Latch low failed")
	}
	for i := 7; i >= 0; i-- {
		if err := p.Clock.Write(false); err != nil {
			return errors.Wrap(err, "Clock low failed")
		}
		if err := p.Data.Write(value&(1<<uint(i)) != 0); err != nil {
			return errors.Wrap(err, "Data write failed")
		}
		if err := p.Clock.Write(true); err != nil {
			return errors.Wrap(err, "Clock high failed")
		}
	}
	if err := p.Latch.Write(true); err != nil {
		return errors.Wrap(err, "Latch high failed")
	}
	return nil
}
