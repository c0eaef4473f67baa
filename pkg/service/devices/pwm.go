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
	"time"
)

// PWM contains the API that is supported by all pulse width modulation devices.
type PWM interface {
	Device
	// OutputCount returns the number of PWM outputs of the device
	OutputCount() int
	// MaxValue returns the maximum valid value for onValue or offValue.
	MaxValue() uint32
	// SetPWM the output at given index (1...) to the given value
	SetPWM(ctx context.Context, output int, onValue, offValue uint32, enabled bool) error
	// GetPWM the output at given index (1...)
	// Returns onValue,offValue,enabled,error
	GetPWM(ctx context.Context, output int) (uint32, uint32, bool, error)
}

const (
	channelTimeout = time.Second
)

// Channel is a single output of a PWM device, driven with an 8-bit duty cycle.
type Channel struct {
	mutex   sync.Mutex
	dev     PWM
	output  int
	duty    uint8
	enabled bool
}

func newChannel(dev PWM, output int) *Channel {
	return &Channel{
		dev:    dev,
		output: output,
	}
}

// SetDuty sets the duty cycle (0..255) of the channel.
func (c *Channel) SetDuty(duty uint8) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := c.apply(duty, c.enabled); err != nil {
		return err
	}
	c.duty = duty
	return nil
}

// Enable arms the channel.
func (c *Channel) Enable() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := c.apply(c.duty, true); err != nil {
		return err
	}
	c.enabled = true
	return nil
}

// Disable disarms the channel.
func (c *Channel) Disable() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := c.apply(c.duty, false); err != nil {
		return err
	}
	c.enabled = false
	return nil
}

// Duty returns the last duty cycle set.
func (c *Channel) Duty() uint8 {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.duty
}

// Enabled returns true if the channel is armed.
func (c *Channel) Enabled() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.enabled
}

// apply writes the duty & enabled state to the device.
// Mutex must be held.
func (c *Channel) apply(duty uint8, enabled bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), channelTimeout)
	defer cancel()
	off := DutyToOffValue(duty, c.dev.MaxValue())
	if err := c.dev.SetPWM(ctx, c.output, 0, off, enabled); err != nil {
		return err
	}
	pwmWritesTotal.Inc()
	return nil
}

// DutyToOffValue scales an 8-bit duty cycle to the range of a device.
func DutyToOffValue(duty uint8, maxValue uint32) uint32 {
	return (uint32(duty) * maxValue) / 0xFF
}
