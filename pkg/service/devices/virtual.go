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

package devices

import (
	"context"
	"sync"
)

// virtualPWM remembers the values of its outputs.
type virtualPWM struct {
	mutex    sync.Mutex
	onActive func()
	outputs  [pca9685OutputCount]virtualOutput
}

type virtualOutput struct {
	on, off uint32
	enabled bool
}

func newVirtualPWM(onActive func()) PWM {
	return &virtualPWM{onActive: onActive}
}

// Configure is called once to put the device in the desired state.
func (d *virtualPWM) Configure(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.outputs = [pca9685OutputCount]virtualOutput{}
	return nil
}

// Close brings the device back to a safe state.
func (d *virtualPWM) Close(ctx context.Context) error {
	return d.Configure(ctx)
}

// OutputCount returns the number of PWM outputs of the device
func (d *virtualPWM) OutputCount() int { return pca9685OutputCount }

// MaxValue returns the maximum valid value for onValue or offValue.
func (d *virtualPWM) MaxValue() uint32 { return pca9685MaxValue }

// SetPWM the output at given index (1...) to the given value
func (d *virtualPWM) SetPWM(ctx context.Context, output int, onValue, offValue uint32, enabled bool) error {
	if output < 1 || output > pca9685OutputCount {
		return invalidArgument("output must be in 1..16 range, got %d", output)
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.onActive()
	d.outputs[output-1] = virtualOutput{on: onValue, off: offValue, enabled: enabled}
	return nil
}

// GetPWM the output at given index (1...)
func (d *virtualPWM) GetPWM(ctx context.Context, output int) (uint32, uint32, bool, error) {
	if output < 1 || output > pca9685OutputCount {
		return 0, 0, false, invalidArgument("output must be in 1..16 range, got %d", output)
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()

	o := d.outputs[output-1]
	return o.on, o.off, o.enabled, nil
}

// VirtualADC is an ADC whose values are set by the caller.
type VirtualADC struct {
	mutex  sync.Mutex
	values [ads1115PinCount]int
}

// NewVirtualADC creates an ADC without hardware.
func NewVirtualADC() *VirtualADC {
	return &VirtualADC{}
}

// Configure is called once to put the device in the desired state.
func (d *VirtualADC) Configure(ctx context.Context) error { return nil }

// Close brings the device back to a safe state.
func (d *VirtualADC) Close(ctx context.Context) error { return nil }

// PinCount returns the number of pins of the device
func (d *VirtualADC) PinCount() int { return ads1115PinCount }

// Get the value of the pin at given index (1...)
func (d *VirtualADC) Get(ctx context.Context, pin int) (int, error) {
	if pin < 1 || pin > ads1115PinCount {
		return 0, invalidArgument("pin must be in 1..4 range, got %d", pin)
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return d.values[pin-1], nil
}

// Set the value of the pin at given index (1...)
func (d *VirtualADC) Set(pin int, value int) error {
	if pin < 1 || pin > ads1115PinCount {
		return invalidArgument("pin must be in 1..4 range, got %d", pin)
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.values[pin-1] = value
	return nil
}
