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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPCA9685Frequency(t *testing.T) {
	bus := newFakeBus(0x40)
	_, err := newPCA9685(0x40, 20, bus, func() {})
	assert.True(t, IsInvalidArgument(err))
	_, err = newPCA9685(0x40, 2000, bus, func() {})
	assert.True(t, IsInvalidArgument(err))
	_, err = newPCA9685(0x40, DefaultPWMFrequency, bus, func() {})
	assert.NoError(t, err)
}

func TestPCA9685Prescale(t *testing.T) {
	// 25MHz / 4096 / (50 * 0.9) - 1 = 134.6
	assert.Equal(t, uint8(135), pca9685Prescale(50))
	// 25MHz / 4096 / (1500 * 0.9) - 1 = 3.52
	assert.Equal(t, uint8(4), pca9685Prescale(1500))
}

func TestPCA9685Registers(t *testing.T) {
	assert.Equal(t, [4]uint8{0, 0, 0xFF, 0x0F}, pca9685Registers(0, 4095, true))
	assert.Equal(t, [4]uint8{0x34, 0x02, 0x78, 0x16}, pca9685Registers(0x234, 0x678, false))
	assert.Equal(t, pca9685LEDBaseReg, pca9685RegBase(1))
	assert.Equal(t, pca9685LEDBaseReg+4*15, pca9685RegBase(16))
}

func TestPCA9685SetGet(t *testing.T) {
	ctx := context.Background()
	bus := newFakeBus(0x40)
	active := 0
	dev, err := newPCA9685(0x40, 50, bus, func() { active++ })
	require.NoError(t, err)

	require.NoError(t, dev.Configure(ctx))
	assert.Equal(t, uint8(0x01), bus.ByteReg(0x40, pca9685MODE1Reg))
	assert.Equal(t, uint8(135), bus.ByteReg(0x40, pca9685PRESCALEReg))
	for output := 1; output <= pca9685OutputCount; output++ {
		_, _, enabled, err := dev.GetPWM(ctx, output)
		require.NoError(t, err)
		assert.False(t, enabled, "output %d", output)
	}

	require.NoError(t, dev.SetPWM(ctx, 3, 0, 2048, true))
	on, off, enabled, err := dev.GetPWM(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), on)
	assert.Equal(t, uint32(2048), off)
	assert.True(t, enabled)

	assert.True(t, IsInvalidArgument(dev.SetPWM(ctx, 0, 0, 0, true)))
	assert.True(t, IsInvalidArgument(dev.SetPWM(ctx, 17, 0, 0, true)))

	require.NoError(t, dev.Close(ctx))
	assert.Equal(t, uint8(0x11), bus.ByteReg(0x40, pca9685MODE1Reg))
	assert.Equal(t, 3, active)
}

func TestPCA9685MissingDevice(t *testing.T) {
	dev, err := newPCA9685(0x41, 50, newFakeBus(0x40), func() {})
	require.NoError(t, err)
	assert.Error(t, dev.Configure(context.Background()))
}
