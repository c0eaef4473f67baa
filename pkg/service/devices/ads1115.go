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
	"strconv"
	"sync"
	"time"

	"github.com/binkynet/MotorShield/pkg/service/bridge"
)

type ads1115 struct {
	mutex    sync.Mutex
	onActive func()
	bus      bridge.I2CBus
	address  uint8
	label    string
}

const (
	// Registry addresses
	ads1115RegConversion = 0x00
	ads1115RegConfig     = 0x01

	ads1115PinCount = 4
)

const (
	// Config register bits
	ads1x15ConfigOSMask       = 0x8000 // OS Mask
	ads1x15ConfigOSSingle     = 0x8000 // Write: start a single conversion
	ads1x15ConfigOSNotBusy    = 0x8000 // Read: no conversion in progress
	ads1x15ConfigPGA6144V     = 0x0000 // +/-6.144V range = Gain 2/3
	ads1x15ConfigModeSingle   = 0x0100 // Power-down single-shot mode
	ads1x15ConfigCModeTrad    = 0x0000 // Traditional comparator with hysteresis
	ads1x15ConfigCPolActvLow  = 0x0000 // ALERT/RDY pin is low when active
	ads1x15ConfigCLatNonLatch = 0x0000 // Non-latching comparator
	ads1x15ConfigCQueNone     = 0x0003 // Disable the comparator
	ads1115Rate250SPS         = 0x00A0 // 250 samples per second

	ads1115ConversionTimeout = time.Millisecond * 100
)

// Single ended MUX config by pin (1...)
var ads1115MuxByPin = [ads1115PinCount]uint16{
	0x4000, // AIN0
	0x5000, // AIN1
	0x6000, // AIN2
	0x7000, // AIN3
}

// newADS1115 creates an ADC instance for an ADS1115 device at given address.
func newADS1115(address uint8, bus bridge.I2CBus, onActive func()) ADC {
	return &ads1115{
		onActive: onActive,
		bus:      bus,
		address:  address,
		label:    strconv.Itoa(int(address)),
	}
}

// Configure is called once to put the device in the desired state.
func (d *ads1115) Configure(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.onActive()
	return d.writeWordReg(ctx, ads1115RegConfig, ads1115ConfigBits(1))
}

// Close brings the device back to a safe state.
func (d *ads1115) Close(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.onActive()
	return d.writeWordReg(ctx, ads1115RegConfig, ads1115ConfigBits(1))
}

// PinCount returns the number of pins of the device
func (d *ads1115) PinCount() int {
	return ads1115PinCount
}

// Get performs a single shot conversion of the pin at given index (1...)
func (d *ads1115) Get(ctx context.Context, pin int) (int, error) {
	if pin < 1 || pin > ads1115PinCount {
		return 0, invalidArgument("pin must be in 1..4 range, got %d", pin)
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()

	// Trigger a conversion
	if err := d.writeWordReg(ctx, ads1115RegConfig, ads1115ConfigBits(pin)|ads1x15ConfigOSSingle); err != nil {
		return 0, err
	}

	// Wait until conversion ready
	deadline := time.Now().Add(ads1115ConversionTimeout)
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		status, err := d.readWordReg(ctx, ads1115RegConfig)
		if err != nil {
			return 0, err
		}
		if status&ads1x15ConfigOSMask == ads1x15ConfigOSNotBusy {
			break
		}
		if time.Now().After(deadline) {
			return 0, fmt.Errorf("conversion on ads1115 0x%02x timed out", d.address)
		}
		time.Sleep(time.Millisecond)
	}

	// Read conversion value
	result, err := d.readWordReg(ctx, ads1115RegConversion)
	if err != nil {
		return 0, err
	}
	adcConversionsTotal.WithLabelValues(d.label).Inc()
	// Conversion result is signed
	return int(int16(result)), nil
}

// read a 16-bit register
func (d *ads1115) readWordReg(ctx context.Context, reg uint8) (uint16, error) {
	var result uint16
	if err := d.bus.Execute(ctx, d.address, func(ctx context.Context, dev bridge.I2CDevice) error {
		var buf [3]uint8
		buf[0] = reg
		if err := dev.WriteDevice(buf[:1]); err != nil {
			return fmt.Errorf("failed to write registry: %w", err)
		}
		if err := dev.ReadDevice(buf[1:]); err != nil {
			return fmt.Errorf("failed to read word: %w", err)
		}
		// MSB first, then LSB
		result = (uint16(buf[1]) << 8) | uint16(buf[2])
		return nil
	}); err != nil {
		return 0, err
	}
	return result, nil
}

// write a 16-bit register value
func (d *ads1115) writeWordReg(ctx context.Context, reg uint8, value uint16) error {
	buf := [3]uint8{reg, uint8(value >> 8), uint8(value & 0xFF)}
	return d.bus.Execute(ctx, d.address, func(ctx context.Context, dev bridge.I2CDevice) error {
		return dev.WriteDevice(buf[:])
	})
}

// ads1115ConfigBits creates bits for the Config registry for a single shot
// on pin 1..4, without the start bit.
func ads1115ConfigBits(pin int) uint16 {
	return ads1x15ConfigCQueNone |
		ads1x15ConfigCLatNonLatch |
		ads1x15ConfigCPolActvLow |
		ads1x15ConfigCModeTrad |
		ads1115Rate250SPS |
		ads1x15ConfigModeSingle |
		ads1x15ConfigPGA6144V |
		ads1115MuxByPin[pin-1]
}
