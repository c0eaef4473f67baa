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

func TestShieldLayouts(t *testing.T) {
	tests := []struct {
		layout   Layout
		steppers []bool
		motors   []bool
	}{
		{Layout{PortTwoMotors, PortEmpty}, []bool{false, false}, []bool{true, true, false, false}},
		{Layout{PortStepper, PortStepper}, []bool{true, true}, []bool{false, false, false, false}},
		{Layout{PortMotorFirst, PortMotorSecond}, []bool{false, false}, []bool{true, false, false, true}},
		{Layout{PortEmpty, PortStepper}, []bool{false, true}, []bool{false, false, false, false}},
		{Layout{PortMotorSecond, PortTwoMotors}, []bool{false, false}, []bool{false, true, true, true}},
	}
	for _, test := range tests {
		rig, err := newTestRig(test.layout)
		require.NoError(t, err, test.layout.String())
		s := rig.shield
		for i, expected := range test.steppers {
			assert.Equal(t, expected, s.Stepper(i+1) != nil, "%s stepper %d", test.layout, i+1)
		}
		for i, expected := range test.motors {
			assert.Equal(t, expected, s.Motor(i+1) != nil, "%s motor %d", test.layout, i+1)
		}
		assert.NotNil(t, s.Servo(1))
		assert.NotNil(t, s.Servo(2))
		assert.Equal(t, 2, s.StepperCount())
		assert.Equal(t, 4, s.MotorCount())
		assert.Equal(t, 2, s.ServoCount())
	}
}

func TestShieldInvalidIndexPanics(t *testing.T) {
	rig, err := newTestRig(DefaultLayout())
	require.NoError(t, err)
	s := rig.shield
	assert.Panics(t, func() { s.Stepper(0) })
	assert.Panics(t, func() { s.Stepper(3) })
	assert.Panics(t, func() { s.Motor(0) })
	assert.Panics(t, func() { s.Motor(5) })
	assert.Panics(t, func() { s.Servo(3) })
	assert.NotPanics(t, func() { s.Motor(4) })
}

func TestShieldMissingPWMChannel(t *testing.T) {
	reg := newFakeRegister()
	var pwms [6]*fakePWM
	hw := newRigHardware(reg, &pwms)
	hw.Timer0.B = nil

	_, err := New(Layout{Port1: PortEmpty, Port2: PortStepper}, hw)
	require.Error(t, err)
	assert.True(t, IsInvalidArgument(err))

	_, err = New(Layout{Port1: PortEmpty, Port2: PortTwoMotors}, hw)
	assert.True(t, IsInvalidArgument(err))

	_, err = New(Layout{Port1: PortEmpty, Port2: PortMotorFirst}, hw)
	require.NoError(t, err)
}

func TestShieldWithoutServoChannels(t *testing.T) {
	reg := newFakeRegister()
	var pwms [6]*fakePWM
	hw := newRigHardware(reg, &pwms)
	hw.Timer1 = Timer{}
	s, err := New(DefaultLayout(), hw)
	require.NoError(t, err)
	assert.Nil(t, s.Servo(1))
	assert.Nil(t, s.Servo(2))
}

func TestShieldBatchCalls(t *testing.T) {
	rig, err := newTestRig(DefaultLayout())
	require.NoError(t, err)
	s := rig.shield

	require.NoError(t, s.EnableMotors(1, 2, 3, 4))
	assert.True(t, rig.pwms[0].Enabled())
	assert.True(t, rig.pwms[1].Enabled())
	assert.False(t, rig.pwms[2].Enabled())

	require.NoError(t, s.SetSpeeds(MotorSpeed{ID: 1, Duty: 255}, MotorSpeed{ID: 2, Duty: 10}, MotorSpeed{ID: 3, Duty: 99}))
	assert.Equal(t, uint8(255), rig.pwms[0].Duty())
	assert.Equal(t, uint8(10), rig.pwms[1].Duty())
	assert.Empty(t, rig.pwms[2].duties)

	assert.Panics(t, func() { s.SetSpeeds(MotorSpeed{ID: 9}) })
}

func TestShieldReleaseAll(t *testing.T) {
	rig, err := newTestRig(Layout{Port1: PortTwoMotors, Port2: PortStepper})
	require.NoError(t, err)
	s := rig.shield
	require.NoError(t, s.Motor(1).Run(MotorForward))
	require.NoError(t, s.Motor(2).Run(MotorBackward))
	require.NoError(t, s.Stepper(2).Step(2, Forward, Single))
	assert.NotEqual(t, uint8(0), rig.reg.Last())

	require.NoError(t, s.ReleaseAll())
	assert.Equal(t, uint8(0), rig.reg.Last())
}

func TestShieldStatus(t *testing.T) {
	rig, err := newTestRig(Layout{Port1: PortMotorFirst, Port2: PortStepper})
	require.NoError(t, err)
	require.NoError(t, rig.shield.Motor(1).Run(MotorForward))

	status := rig.shield.Status()
	assert.Equal(t, "motor-first/stepper", status.Layout)
	assert.Equal(t, motorCoils[0].A, status.Latch)
	require.Len(t, status.Motors, 1)
	assert.Equal(t, "forward", status.Motors[0].Run)
	require.Len(t, status.Steppers, 1)
	assert.Equal(t, 2, status.Steppers[0].ID)
	assert.Len(t, status.Servos, 2)
}

func TestParseLayout(t *testing.T) {
	l, err := ParseLayout("stepper", " Two-Motors ")
	require.NoError(t, err)
	assert.Equal(t, Layout{Port1: PortStepper, Port2: PortTwoMotors}, l)
	assert.Equal(t, "stepper/two-motors", l.String())

	_, err = ParseLayout("three-motors", "empty")
	assert.True(t, IsInvalidArgument(err))
}
