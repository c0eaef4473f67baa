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

package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// VirtualBridge is a bridge without hardware.
// Its output pins only remember their value.
type VirtualBridge struct {
	mutex sync.Mutex
	pins  map[int]*VirtualPin
}

// VirtualPin is an output pin of a virtual bridge.
type VirtualPin struct {
	mutex     sync.Mutex
	number    int
	activeLow bool
	value     bool
	writes    int
}

var _ API = &VirtualBridge{}

// NewVirtualBridge implements the bridge for a virtual motor shield.
func NewVirtualBridge() *VirtualBridge {
	return &VirtualBridge{
		pins: make(map[int]*VirtualPin),
	}
}

// Output initializes a GPIO output pin with the given pin number
// and initial logical value.
func (p *VirtualBridge) Output(pinNumber int, activeLow bool, initialValue bool) (OutputPin, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if pinNumber < 0 {
		return nil, fmt.Errorf("invalid pin %d", pinNumber)
	}
	if _, found := p.pins[pinNumber]; found {
		return nil, fmt.Errorf("pin %d already in use", pinNumber)
	}
	pin := &VirtualPin{
		number:    pinNumber,
		activeLow: activeLow,
		value:     initialValue,
	}
	p.pins[pinNumber] = pin
	return pin, nil
}

// Pin returns the output pin with given number, or nil if not found.
func (p *VirtualBridge) Pin(pinNumber int) *VirtualPin {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return p.pins[pinNumber]
}

// IsVirtual returns true.
func (p *VirtualBridge) IsVirtual() bool { return true }

// Turn status led on/off
func (p *VirtualBridge) SetStatusLED(on bool) error { return nil }

// Turn activity led on/off
func (p *VirtualBridge) SetActivityLED(on bool) error { return nil }

// Blink status led with given duration between on/off
func (p *VirtualBridge) BlinkStatusLED(delay time.Duration) error { return nil }

// Blink activity led with given duration between on/off
func (p *VirtualBridge) BlinkActivityLED(delay time.Duration) error { return nil }

// Open the I2C bus
func (p *VirtualBridge) I2CBus() (I2CBus, error) {
	return virtualBus{}, nil
}

func (p *VirtualBridge) Close() error {
	return nil
}

// Write sets the logical value of the pin.
func (vp *VirtualPin) Write(value bool) error {
	vp.mutex.Lock()
	defer vp.mutex.Unlock()

	vp.value = value
	vp.writes++
	return nil
}

// Value returns the last written logical value.
func (vp *VirtualPin) Value() bool {
	vp.mutex.Lock()
	defer vp.mutex.Unlock()

	return vp.value
}

// Writes returns the number of writes to the pin.
func (vp *VirtualPin) Writes() int {
	vp.mutex.Lock()
	defer vp.mutex.Unlock()

	return vp.writes
}

// virtualBus is an I2C bus without devices.
type virtualBus struct{}

// Execute an option on the bus.
func (virtualBus) Execute(ctx context.Context, address uint8, op func(ctx context.Context, dev I2CDevice) error) error {
	return fmt.Errorf("device 0x%02x not found", address)
}

// DetectSlaveAddresses probes the bus to detect available addresses.
func (virtualBus) DetectSlaveAddresses() []byte {
	return nil
}

// Close the bus.
func (virtualBus) Close() error {
	return nil
}
