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

package control

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binkynet/MotorShield/pkg/service/bridge"
	"github.com/binkynet/MotorShield/pkg/shield"
)

type testPWM struct {
	mutex   sync.Mutex
	duty    uint8
	enabled bool
}

func (p *testPWM) SetDuty(duty uint8) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.duty = duty
	return nil
}

func (p *testPWM) Enable() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.enabled = true
	return nil
}

func (p *testPWM) Disable() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.enabled = false
	return nil
}

// gateDelayer blocks every delay until the gate is opened.
type gateDelayer struct {
	gate chan struct{}
}

func (d *gateDelayer) DelayMs(ms uint32) {
	<-d.gate
}

func newTestController(t *testing.T, layout shield.Layout, opts ...shield.Option) *Controller {
	b := bridge.NewVirtualBridge()
	pin := func(n int) shield.OutputPin {
		p, err := b.Output(n, false, true)
		require.NoError(t, err)
		return p
	}
	hw := shield.Hardware{
		Latch: shield.LatchPins{
			Clock:  pin(17),
			Data:   pin(27),
			Latch:  pin(22),
			Enable: pin(23),
		},
		Timer0: shield.Timer{A: &testPWM{}, B: &testPWM{}},
		Timer1: shield.Timer{A: &testPWM{}, B: &testPWM{}},
		Timer2: shield.Timer{A: &testPWM{}, B: &testPWM{}},
	}
	events := NewEvents()
	opts = append(opts, shield.WithLatchObserver(events.PublishLatch))
	sh, err := shield.New(layout, hw, opts...)
	require.NoError(t, err)
	return New(sh, events, zerolog.Nop())
}

func TestControllerMotors(t *testing.T) {
	c := newTestController(t, shield.DefaultLayout())

	assert.True(t, IsInvalidArgument(c.RunMotor(0, shield.MotorForward)))
	assert.True(t, IsInvalidArgument(c.RunMotor(5, shield.MotorForward)))
	assert.True(t, IsNotFound(c.RunMotor(3, shield.MotorForward)))

	require.NoError(t, c.EnableMotor(1))
	require.NoError(t, c.SetMotorSpeed(1, 200))
	require.NoError(t, c.RunMotor(1, shield.MotorForward))
	require.NoError(t, c.RunMotor(2, shield.MotorBackward))
	status := c.Status()
	require.Len(t, status.Motors, 2)
	assert.Equal(t, uint8(200), status.Motors[0].Duty)
	assert.True(t, status.Motors[0].Enabled)
	assert.Equal(t, "forward", status.Motors[0].Run)
	assert.Equal(t, "backward", status.Motors[1].Run)
	assert.Equal(t, uint8(1<<2|1<<4), status.Latch)

	require.NoError(t, c.StopAll())
	assert.Equal(t, uint8(0), c.Status().Latch)

	assert.True(t, IsInvalidArgument(c.SetMotorSpeeds(shield.MotorSpeed{ID: 9, Duty: 1})))
	// Absent motors are skipped
	require.NoError(t, c.SetMotorSpeeds(shield.MotorSpeed{ID: 2, Duty: 10}, shield.MotorSpeed{ID: 4, Duty: 20}))
	assert.Equal(t, uint8(10), c.Status().Motors[1].Duty)
}

func TestControllerServos(t *testing.T) {
	c := newTestController(t, shield.DefaultLayout())

	assert.True(t, IsInvalidArgument(c.SetServoAngle(3, 10)))
	require.NoError(t, c.EnableServo(2))
	require.NoError(t, c.SetServoAngle(2, 90))
	status := c.Status()
	require.Len(t, status.Servos, 2)
	assert.Equal(t, uint8(90), status.Servos[1].Angle)
	assert.True(t, status.Servos[1].Enabled)
	require.NoError(t, c.DisableServo(2))
	assert.False(t, c.Status().Servos[1].Enabled)
}

func TestControllerStepper(t *testing.T) {
	c := newTestController(t, shield.Layout{Port1: shield.PortEmpty, Port2: shield.PortStepper})

	assert.True(t, IsNotFound(c.StepStepper(1, 1, shield.Forward, shield.Single)))
	assert.True(t, IsInvalidArgument(c.StepStepper(3, 1, shield.Forward, shield.Single)))
	assert.True(t, IsInvalidArgument(c.SetStepperSpeed(2, 0)))

	require.NoError(t, c.SetStepperSpeed(2, 60))
	require.NoError(t, c.EnableStepper(2))
	require.NoError(t, c.StepStepper(2, 4, shield.Forward, shield.Double))
	st := c.Status().Steppers
	require.Len(t, st, 1)
	assert.Equal(t, uint8(8+3*16), st[0].Phase)
	assert.True(t, st[0].Enabled)
	assert.Equal(t, uint32(20833), st[0].MicrosecondsPerStep)

	phase, err := c.OneStepStepper(2, shield.Backward, shield.Interleave)
	require.NoError(t, err)
	assert.Equal(t, uint8(48), phase)

	require.NoError(t, c.ReleaseStepper(2))
	assert.Equal(t, uint8(0), c.Status().Latch)
}

func TestControllerStepperBusy(t *testing.T) {
	delay := &gateDelayer{gate: make(chan struct{})}
	c := newTestController(t, shield.Layout{Port1: shield.PortStepper, Port2: shield.PortEmpty},
		shield.WithDelayer(delay))

	done := make(chan error, 1)
	require.NoError(t, c.StartStepper(1, 2, shield.Forward, shield.Single, func(err error) { done <- err }))
	require.Eventually(t, func() bool { return c.Shield().Stepper(1).IsMoving() }, time.Second, time.Millisecond)

	assert.True(t, IsBusy(c.StepStepper(1, 1, shield.Forward, shield.Single)))
	assert.True(t, IsBusy(c.StartStepper(1, 1, shield.Forward, shield.Single, nil)))
	_, err := c.OneStepStepper(1, shield.Forward, shield.Single)
	assert.True(t, IsBusy(err))

	close(delay.gate)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("move did not complete")
	}
	assert.Equal(t, uint8(32), c.Shield().Stepper(1).Phase())
	require.NoError(t, c.StepStepper(1, 1, shield.Forward, shield.Single))
}

func TestControllerEvents(t *testing.T) {
	c := newTestController(t, shield.DefaultLayout())

	var mutex sync.Mutex
	var states []uint8
	unsubscribe := c.Events().SubscribeLatch(func(e LatchEvent) {
		mutex.Lock()
		defer mutex.Unlock()
		states = append(states, e.State)
	})
	require.NoError(t, c.RunMotor(1, shield.MotorForward))
	require.Eventually(t, func() bool {
		mutex.Lock()
		defer mutex.Unlock()
		for _, s := range states {
			if s == 1<<2 {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)
	unsubscribe()
}

func TestEventsUnsubscribeKeepsOthers(t *testing.T) {
	events := NewEvents()

	var mutex sync.Mutex
	var countA, countB int
	unsubA := events.SubscribeLatch(func(LatchEvent) {
		mutex.Lock()
		defer mutex.Unlock()
		countA++
	})
	defer unsubA()
	unsubB := events.SubscribeLatch(func(LatchEvent) {
		mutex.Lock()
		defer mutex.Unlock()
		countB++
	})
	unsubB()

	events.PublishLatch(1)
	require.Eventually(t, func() bool {
		mutex.Lock()
		defer mutex.Unlock()
		return countA == 1
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	mutex.Lock()
	defer mutex.Unlock()
	assert.Equal(t, 0, countB)
}
