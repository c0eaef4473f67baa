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
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// fakeRegister emulates a 74HC595 by decoding the writes to its 4 lines.
type fakeRegister struct {
	mutex   sync.Mutex
	clock   bool
	data    bool
	latch   bool
	enable  bool
	shift   uint8
	outputs []uint8
	events  []string
	failOn  string
}

func newFakeRegister() *fakeRegister {
	// Lines idle high
	return &fakeRegister{clock: true, latch: true}
}

func (r *fakeRegister) pins() LatchPins {
	return LatchPins{
		Clock:  &fakePin{reg: r, name: "clock"},
		Data:   &fakePin{reg: r, name: "data"},
		Latch:  &fakePin{reg: r, name: "latch"},
		Enable: &fakePin{reg: r, name: "enable"},
	}
}

// Outputs returns all values latched so far.
func (r *fakeRegister) Outputs() []uint8 {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]uint8{}, r.outputs...)
}

// Last returns the last latched value.
func (r *fakeRegister) Last() uint8 {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.outputs[len(r.outputs)-1]
}

// Count returns the number of latched values.
func (r *fakeRegister) Count() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.outputs)
}

// Events returns all pin writes in order.
func (r *fakeRegister) Events() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]string{}, r.events...)
}

func (r *fakeRegister) ClearEvents() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.events = nil
}

func (r *fakeRegister) SetFailOn(name string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.failOn = name
}

type fakePin struct {
	reg  *fakeRegister
	name string
}

func (p *fakePin) Write(v bool) error {
	r := p.reg
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.failOn == p.name {
		return fmt.Errorf("%s write failed", p.name)
	}
	r.events = append(r.events, fmt.Sprintf("%s=%v", p.name, v))
	switch p.name {
	case "clock":
		if v && !r.clock {
			r.shift <<= 1
			if r.data {
				r.shift |= 1
			}
		}
		r.clock = v
	case "data":
		r.data = v
	case "latch":
		if v && !r.latch {
			r.outputs = append(r.outputs, r.shift)
		}
		r.latch = v
	case "enable":
		r.enable = v
	}
	return nil
}

// fakePWM records all duty cycles written to it.
type fakePWM struct {
	mutex   sync.Mutex
	duties  []uint8
	enabled bool
	fail    error
}

func (p *fakePWM) SetDuty(duty uint8) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.duties = append(p.duties, duty)
	return nil
}

func (p *fakePWM) Enable() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.enabled = true
	return p.fail
}

func (p *fakePWM) Disable() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.enabled = false
	return p.fail
}

func (p *fakePWM) Duty() uint8 {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if len(p.duties) == 0 {
		return 0
	}
	return p.duties[len(p.duties)-1]
}

func (p *fakePWM) Enabled() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.enabled
}

// fakeDelayer records delays instead of sleeping.
type fakeDelayer struct {
	mutex   sync.Mutex
	calls   int
	totalMs uint64
}

func (d *fakeDelayer) DelayMs(ms uint32) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.calls++
	d.totalMs += uint64(ms)
}

func (d *fakeDelayer) TotalMs() uint64 {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.totalMs
}

// testRig bundles a shield with all its fakes.
type testRig struct {
	reg    *fakeRegister
	pwms   [6]*fakePWM
	delay  *fakeDelayer
	shield *Shield
}

// hardware returns a fully populated hardware description.
// pwms: 0,1 = timer2 (port 1), 2,3 = timer0 (port 2), 4,5 = timer1 (servos)
func newRigHardware(reg *fakeRegister, pwms *[6]*fakePWM) Hardware {
	for i := range pwms {
		pwms[i] = &fakePWM{}
	}
	return Hardware{
		Latch:  reg.pins(),
		Timer2: Timer{A: pwms[0], B: pwms[1]},
		Timer0: Timer{A: pwms[2], B: pwms[3]},
		Timer1: Timer{A: pwms[4], B: pwms[5]},
	}
}

func newTestRig(layout Layout, opts ...Option) (*testRig, error) {
	rig := &testRig{
		reg:   newFakeRegister(),
		delay: &fakeDelayer{},
	}
	hw := newRigHardware(rig.reg, &rig.pwms)
	opts = append([]Option{WithDelayer(rig.delay), WithLogger(zerolog.Nop())}, opts...)
	s, err := New(layout, hw, opts...)
	if err != nil {
		return nil, err
	}
	rig.shield = s
	return rig, nil
}
