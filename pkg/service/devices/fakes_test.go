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
	"sync"

	"github.com/binkynet/MotorShield/pkg/service/bridge"
)

// fakeBus emulates an I2C bus with byte registers (PCA9685 style)
// and word registers behind a pointer register (ADS1115 style).
type fakeBus struct {
	mutex   sync.Mutex
	present map[uint8]bool
	bytes   map[uint8]map[uint8]uint8
	words   map[uint8]map[uint8]uint16
	pointer map[uint8]uint8
	writes  int
}

func newFakeBus(addresses ...uint8) *fakeBus {
	b := &fakeBus{
		present: make(map[uint8]bool),
		bytes:   make(map[uint8]map[uint8]uint8),
		words:   make(map[uint8]map[uint8]uint16),
		pointer: make(map[uint8]uint8),
	}
	for _, a := range addresses {
		b.present[a] = true
		b.bytes[a] = make(map[uint8]uint8)
		b.words[a] = make(map[uint8]uint16)
	}
	return b
}

func (b *fakeBus) Execute(ctx context.Context, address uint8, op func(context.Context, bridge.I2CDevice) error) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if !b.present[address] {
		return fmt.Errorf("device 0x%02x not found", address)
	}
	return op(ctx, &fakeDevice{bus: b, address: address})
}

func (b *fakeBus) DetectSlaveAddresses() []byte {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	var result []byte
	for a := range b.present {
		result = append(result, a)
	}
	return result
}

func (b *fakeBus) Close() error { return nil }

func (b *fakeBus) ByteReg(address, reg uint8) uint8 {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.bytes[address][reg]
}

func (b *fakeBus) WordReg(address, reg uint8) uint16 {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.words[address][reg]
}

func (b *fakeBus) SetWordReg(address, reg uint8, value uint16) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.words[address][reg] = value
}

type fakeDevice struct {
	bus     *fakeBus
	address uint8
}

func (d *fakeDevice) ReadByteReg(reg uint8) (uint8, error) {
	return d.bus.bytes[d.address][reg], nil
}

func (d *fakeDevice) WriteByteReg(reg uint8, val uint8) error {
	d.bus.bytes[d.address][reg] = val
	d.bus.writes++
	return nil
}

func (d *fakeDevice) ReadDevice(data []byte) error {
	value := d.bus.words[d.address][d.bus.pointer[d.address]]
	if reg := d.bus.pointer[d.address]; reg == ads1115RegConfig {
		// Conversions complete immediately
		value |= ads1x15ConfigOSNotBusy
	}
	if len(data) != 2 {
		return fmt.Errorf("expected 2 bytes, got %d", len(data))
	}
	data[0] = uint8(value >> 8)
	data[1] = uint8(value)
	return nil
}

func (d *fakeDevice) WriteDevice(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty write")
	}
	d.bus.pointer[d.address] = data[0]
	if len(data) == 3 {
		d.bus.words[d.address][data[0]] = (uint16(data[1]) << 8) | uint16(data[2])
		d.bus.writes++
	}
	return nil
}

// fakePWM records SetPWM calls.
type fakePWM struct {
	virtualPWM
	fail  error
	calls int
}

func newFakePWM() *fakePWM {
	return &fakePWM{virtualPWM: virtualPWM{onActive: func() {}}}
}

func (d *fakePWM) SetPWM(ctx context.Context, output int, onValue, offValue uint32, enabled bool) error {
	d.calls++
	if d.fail != nil {
		return d.fail
	}
	return d.virtualPWM.SetPWM(ctx, output, onValue, offValue, enabled)
}
