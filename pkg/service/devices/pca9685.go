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
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/binkynet/MotorShield/pkg/service/bridge"
)

type pca9685 struct {
	mutex     sync.Mutex
	onActive  func()
	bus       bridge.I2CBus
	address   uint8
	frequency float64
}

const (
	pca9685MODE1Reg      = 0x00
	pca9685LEDBaseReg    = 0x06
	pca9685PRESCALEReg   = 0xFE
	pca9685OnLowRegOfs   = 0
	pca9685OnHighRegOfs  = 1
	pca9685OffLowRegOfs  = 2
	pca9685OffHighRegOfs = 3
	pca9685RegIncrement  = 4
	pca9685OutputCount   = 16
	pca9685MaxValue      = 4095
	pca9685FullOff       = 0b00010000

	// DefaultPWMFrequency is the PWM frequency used for motors (Hz)
	DefaultPWMFrequency = 1500.0
)

// newPCA9685 creates a PWM instance for a pca9685 device at given address.
func newPCA9685(address uint8, frequency float64, bus bridge.I2CBus, onActive func()) (PWM, error) {
	if frequency < 24 || frequency > 1526 {
		return nil, invalidArgument("frequency of pca9685 must be in 24..1526 range, got %f", frequency)
	}
	return &pca9685{
		onActive:  onActive,
		bus:       bus,
		address:   address,
		frequency: frequency,
	}, nil
}

// prescale computes the prescale register value for the given frequency.
func pca9685Prescale(frequency float64) uint8 {
	freq := frequency * 0.9 // Correct for overshoot in the frequency setting.
	prescaleval := 25000000.0
	prescaleval /= 4096
	prescaleval /= freq
	prescaleval -= 1.0
	return uint8(math.Floor(prescaleval + 0.5))
}

// Configure is called once to put the device in the desired state.
func (d *pca9685) Configure(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	prescale := pca9685Prescale(d.frequency)
	d.onActive()
	if err := d.bus.Execute(ctx, d.address, func(ctx context.Context, dev bridge.I2CDevice) error {
		// Set MODE1: SLEEP=1, ALLCALL=1
		if err := dev.WriteByteReg(pca9685MODE1Reg, 0x11); err != nil {
			return err
		}
		if err := dev.WriteByteReg(pca9685PRESCALEReg, prescale); err != nil {
			return err
		}
		// Set MODE1: SLEEP=0, ALLCALL=1
		if err := dev.WriteByteReg(pca9685MODE1Reg, 0x01); err != nil {
			return err
		}
		// Oscillator needs 500us to stabilize
		time.Sleep(time.Millisecond)
		// All outputs full off
		for output := 1; output <= pca9685OutputCount; output++ {
			if err := dev.WriteByteReg(uint8(pca9685RegBase(output)+pca9685OffHighRegOfs), pca9685FullOff); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("failed to configure pca9685 at 0x%02x: %w", d.address, err)
	}
	return nil
}

// Close brings the device back to a safe state.
func (d *pca9685) Close(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.onActive()
	return d.bus.Execute(ctx, d.address, func(ctx context.Context, dev bridge.I2CDevice) error {
		// Set MODE1: SLEEP=1, ALLCALL=1
		return dev.WriteByteReg(pca9685MODE1Reg, 0x11)
	})
}

// OutputCount returns the number of pwm outputs of the device
func (d *pca9685) OutputCount() int {
	return pca9685OutputCount
}

// MaxValue returns the maximum valid value for onValue or offValue.
func (d *pca9685) MaxValue() uint32 {
	return pca9685MaxValue
}

// SetPWM the output at given index (1...) to the given value
func (d *pca9685) SetPWM(ctx context.Context, output int, onValue, offValue uint32, enabled bool) error {
	if output < 1 || output > pca9685OutputCount {
		return invalidArgument("output must be in 1..16 range, got %d", output)
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()

	regBase := pca9685RegBase(output)
	regs := pca9685Registers(onValue, offValue, enabled)
	d.onActive()
	return d.bus.Execute(ctx, d.address, func(ctx context.Context, dev bridge.I2CDevice) error {
		for i, value := range regs {
			if err := dev.WriteByteReg(uint8(regBase+i), value); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetPWM the output at given index (1...)
func (d *pca9685) GetPWM(ctx context.Context, output int) (uint32, uint32, bool, error) {
	if output < 1 || output > pca9685OutputCount {
		return 0, 0, false, invalidArgument("output must be in 1..16 range, got %d", output)
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()

	regBase := pca9685RegBase(output)
	var regs [4]uint8
	if err := d.bus.Execute(ctx, d.address, func(ctx context.Context, dev bridge.I2CDevice) error {
		for i := range regs {
			value, err := dev.ReadByteReg(uint8(regBase + i))
			if err != nil {
				return err
			}
			regs[i] = value
		}
		return nil
	}); err != nil {
		return 0, 0, false, err
	}
	on := uint32(regs[pca9685OnLowRegOfs]) | (uint32(regs[pca9685OnHighRegOfs]&0x0F) << 8)
	off := uint32(regs[pca9685OffLowRegOfs]) | (uint32(regs[pca9685OffHighRegOfs]&0x0F) << 8)
	enabled := regs[pca9685OffHighRegOfs]&pca9685FullOff == 0
	return on, off, enabled, nil
}

// pca9685RegBase returns the first register for the given output (1...).
func pca9685RegBase(output int) int {
	return pca9685LEDBaseReg + ((output - 1) * pca9685RegIncrement)
}

// pca9685Registers returns the values of the ON_L, ON_H, OFF_L & OFF_H
// registers of an output.
func pca9685Registers(onValue, offValue uint32, enabled bool) [4]uint8 {
	offHigh := uint8((offValue >> 8) & 0x0F)
	if !enabled {
		offHigh |= pca9685FullOff
	}
	return [4]uint8{
		uint8(onValue & 0xFF),
		uint8((onValue >> 8) & 0x0F),
		uint8(offValue & 0xFF),
		offHigh,
	}
}
