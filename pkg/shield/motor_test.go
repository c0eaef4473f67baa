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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMotorRun(t *testing.T) {
	rig, err := newTestRig(Layout{Port1: PortTwoMotors, Port2: PortTwoMotors})
	require.NoError(t, err)

	for id := 1; id <= MotorCount; id++ {
		m := rig.shield.Motor(id)
		require.NotNil(t, m)
		c := motorCoils[id-1]

		require.NoError(t, m.Run(MotorForward))
		assert.Equal(t, c.A, rig.reg.Last()&c.All())

		require.NoError(t, m.Run(MotorBackward))
		assert.Equal(t, c.B, rig.reg.Last()&c.All())

		require.NoError(t, m.Run(MotorForward))
		require.NoError(t, m.Run(MotorRelease))
		assert.Equal(t, uint8(0), rig.reg.Last()&c.All())
		assert.Equal(t, MotorRelease, m.Status().Command)
	}
}

func TestMotorsShareLatch(t *testing.T) {
	rig, err := newTestRig(Layout{Port1: PortTwoMotors, Port2: PortMotorSecond})
	require.NoError(t, err)

	require.NoError(t, rig.shield.Motor(1).Run(MotorForward))
	require.NoError(t, rig.shield.Motor(2).Run(MotorBackward))
	require.NoError(t, rig.shield.Motor(4).Run(MotorForward))
	assert.Equal(t, motorCoils[0].A|motorCoils[1].B|motorCoils[3].A, rig.reg.Last())

	require.NoError(t, rig.shield.Motor(2).Run(MotorRelease))
	assert.Equal(t, motorCoils[0].A|motorCoils[3].A, rig.reg.Last())
}

func TestMotorInvalidCommand(t *testing.T) {
	rig, err := newTestRig(DefaultLayout())
	require.NoError(t, err)
	m := rig.shield.Motor(1)
	require.NoError(t, m.Run(MotorForward))
	before := rig.reg.Count()

	err = m.Run(MotorCommand(7))
	require.Error(t, err)
	assert.True(t, IsInvalidArgument(err))
	assert.Equal(t, before, rig.reg.Count())
	assert.Equal(t, MotorForward, m.Status().Command)
}

func TestMotorSpeedAndEnable(t *testing.T) {
	rig, err := newTestRig(DefaultLayout())
	require.NoError(t, err)
	m := rig.shield.Motor(2)
	before := rig.reg.Count()

	require.NoError(t, m.SetSpeed(128))
	assert.Equal(t, uint8(128), rig.pwms[1].Duty())
	require.NoError(t, m.Enable())
	assert.True(t, rig.pwms[1].Enabled())
	assert.Equal(t, MotorStatus{ID: 2, Command: MotorRelease, Run: "release", Duty: 128, Enabled: true}, m.Status())
	require.NoError(t, m.Disable())
	assert.False(t, rig.pwms[1].Enabled())
	// Speed & enable never touch the latch
	assert.Equal(t, before, rig.reg.Count())
}

func TestParseMotorCommand(t *testing.T) {
	for _, cmd := range []MotorCommand{MotorRelease, MotorForward, MotorBackward} {
		parsed, err := ParseMotorCommand(cmd.String())
		require.NoError(t, err)
		assert.Equal(t, cmd, parsed)
	}
	_, err := ParseMotorCommand("sideways")
	assert.True(t, IsInvalidArgument(err))
}

func TestServo(t *testing.T) {
	rig, err := newTestRig(DefaultLayout())
	require.NoError(t, err)
	sv := rig.shield.Servo(2)
	require.NotNil(t, sv)
	require.NoError(t, sv.Enable())
	require.NoError(t, sv.SetAngle(90))
	assert.Equal(t, uint8(90), rig.pwms[5].Duty())
	assert.True(t, rig.pwms[5].Enabled())
	assert.Equal(t, ServoStatus{ID: 2, Angle: 90, Enabled: true}, sv.Status())
}
