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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVirtualBridgeOutput(t *testing.T) {
	b := NewVirtualBridge()
	assert.True(t, b.IsVirtual())

	pin, err := b.Output(4, false, true)
	require.NoError(t, err)
	vp := b.Pin(4)
	require.NotNil(t, vp)
	assert.True(t, vp.Value())

	require.NoError(t, pin.Write(false))
	assert.False(t, vp.Value())
	assert.Equal(t, 1, vp.Writes())

	_, err = b.Output(4, false, false)
	assert.Error(t, err)
	_, err = b.Output(-1, false, false)
	assert.Error(t, err)
	assert.Nil(t, b.Pin(5))
}

func TestVirtualBridgeBus(t *testing.T) {
	b := NewVirtualBridge()
	bus, err := b.I2CBus()
	require.NoError(t, err)
	err = bus.Execute(context.Background(), 0x40, func(ctx context.Context, dev I2CDevice) error {
		return nil
	})
	assert.Error(t, err)
	assert.Empty(t, bus.DetectSlaveAddresses())
	assert.NoError(t, bus.Close())
}
