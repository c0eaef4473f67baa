// Copyright 2023 Ewout Prangsma
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

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binkynet/MotorShield/pkg/service/devices"
	"github.com/binkynet/MotorShield/pkg/shield"
)

type call struct {
	op   string
	id   int
	args []interface{}
}

type fakeController struct {
	calls []call
}

func (f *fakeController) record(op string, id int, args ...interface{}) error {
	f.calls = append(f.calls, call{op: op, id: id, args: args})
	if id > 4 {
		return errors.New("invalid id")
	}
	return nil
}

func (f *fakeController) Status() shield.Status {
	return shield.Status{
		Layout:   "stepper/empty",
		Latch:    0x81,
		Steppers: []shield.StepperStatus{{ID: 1, Phase: 16}},
	}
}
func (f *fakeController) RunMotor(id int, cmd shield.MotorCommand) error {
	return f.record("run", id, cmd)
}
func (f *fakeController) SetMotorSpeed(id int, duty uint8) error {
	return f.record("speed", id, duty)
}
func (f *fakeController) EnableMotor(id int) error  { return f.record("enable", id) }
func (f *fakeController) DisableMotor(id int) error { return f.record("disable", id) }
func (f *fakeController) SetStepperSpeed(id int, rpm uint16) error {
	return f.record("rpm", id, rpm)
}
func (f *fakeController) StepStepper(id int, steps uint32, dir shield.Direction, style shield.Style) error {
	return f.record("step", id, steps, dir, style)
}
func (f *fakeController) ReleaseStepper(id int) error { return f.record("release", id) }
func (f *fakeController) SetServoAngle(id int, angle uint8) error {
	return f.record("servo", id, angle)
}
func (f *fakeController) StopAll() error { return f.record("stop", 0) }

type fakeADCs map[string]devices.ADC

func (f fakeADCs) ADC(address string) (devices.ADC, error) {
	if adc, found := f[address]; found {
		return adc, nil
	}
	return nil, fmt.Errorf("unknown ADC %s", address)
}

func newTestShell(t *testing.T, adcs ADCProvider) (*Shell, *fakeController, *bytes.Buffer) {
	ctrl := &fakeController{}
	s := New(ctrl, adcs, zerolog.Nop())
	out := &bytes.Buffer{}
	s.SetOut(out)
	return s, ctrl, out
}

func TestMotorCommands(t *testing.T) {
	s, ctrl, _ := newTestShell(t, nil)

	require.NoError(t, s.Process("motor", "1", "enable"))
	require.NoError(t, s.Process("speed", "1", "200"))
	require.NoError(t, s.Process("motor", "1", "forward"))
	require.NoError(t, s.Process("motor", "2", "release"))
	require.Len(t, ctrl.calls, 4)
	assert.Equal(t, call{op: "enable", id: 1}, ctrl.calls[0])
	assert.Equal(t, []interface{}{uint8(200)}, ctrl.calls[1].args)
	assert.Equal(t, []interface{}{shield.MotorForward}, ctrl.calls[2].args)
	assert.Equal(t, []interface{}{shield.MotorRelease}, ctrl.calls[3].args)

	assert.Error(t, s.Process("motor", "1", "sideways"))
	assert.Error(t, s.Process("speed", "1", "256"))
	assert.Error(t, s.Process("motor", "x", "forward"))
	assert.Error(t, s.Process("motor", "9", "forward"))
	assert.Error(t, s.Process("motor", "1"))
}

func TestStepperCommands(t *testing.T) {
	s, ctrl, out := newTestShell(t, nil)

	require.NoError(t, s.Process("rpm", "1", "30"))
	require.NoError(t, s.Process("step", "1", "10"))
	require.NoError(t, s.Process("step", "1", "3", "backward", "microstep"))
	require.NoError(t, s.Process("release", "1"))
	require.Len(t, ctrl.calls, 4)
	assert.Equal(t, []interface{}{uint16(30)}, ctrl.calls[0].args)
	assert.Equal(t, []interface{}{uint32(10), shield.Forward, shield.Single}, ctrl.calls[1].args)
	assert.Equal(t, []interface{}{uint32(3), shield.Backward, shield.Microstep}, ctrl.calls[2].args)
	assert.Equal(t, "release", ctrl.calls[3].op)
	assert.Contains(t, out.String(), "stepper 1 at phase 16")

	assert.Error(t, s.Process("step", "1", "3", "up"))
	assert.Error(t, s.Process("step", "1", "3", "forward", "quad"))
}

func TestStatusAndStop(t *testing.T) {
	s, ctrl, out := newTestShell(t, nil)

	require.NoError(t, s.Process("status"))
	assert.Contains(t, out.String(), "layout: stepper/empty")
	assert.Contains(t, out.String(), "latch:  10000001")
	assert.Contains(t, out.String(), "stepper 1: phase=16")

	require.NoError(t, s.Process("servo", "2", "90"))
	require.NoError(t, s.Process("stop"))
	require.Len(t, ctrl.calls, 2)
	assert.Equal(t, "stop", ctrl.calls[1].op)
}

func TestSensorCommand(t *testing.T) {
	adc := devices.NewVirtualADC()
	s, _, _ := newTestShell(t, fakeADCs{"0x48": adc})

	require.NoError(t, s.Process("sensor", "0x48", "2", "1234"))
	v, err := adc.Get(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 1234, v)

	assert.Error(t, s.Process("sensor", "0x49", "2", "1"))
	assert.Error(t, s.Process("sensor", "0x48", "9", "1"))

	noADC, _, _ := newTestShell(t, nil)
	assert.Error(t, noADC.Process("sensor", "0x48", "1", "1"))
}
