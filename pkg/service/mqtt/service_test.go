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

package mqtt

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binkynet/MotorShield/pkg/service/control"
	"github.com/binkynet/MotorShield/pkg/shield"
)

type fakeController struct {
	calls []string
	fail  error
}

func (c *fakeController) record(format string, args ...interface{}) error {
	c.calls = append(c.calls, fmt.Sprintf(format, args...))
	return c.fail
}

func (c *fakeController) RunMotor(id int, cmd shield.MotorCommand) error {
	return c.record("run %d %s", id, cmd)
}

func (c *fakeController) SetMotorSpeed(id int, duty uint8) error {
	return c.record("speed %d %d", id, duty)
}

func (c *fakeController) SetStepperSpeed(id int, rpm uint16) error {
	return c.record("rpm %d %d", id, rpm)
}

func (c *fakeController) StartStepper(id int, steps uint32, dir shield.Direction, style shield.Style, done func(error)) error {
	err := c.record("step %d %d %s %s", id, steps, dir, style)
	if err == nil && done != nil {
		done(nil)
	}
	return err
}

func (c *fakeController) ReleaseStepper(id int) error {
	return c.record("release %d", id)
}

func (c *fakeController) SetServoAngle(id int, angle uint8) error {
	return c.record("angle %d %d", id, angle)
}

func (c *fakeController) StopAll() error {
	return c.record("stop")
}

func newTestService(ctrl Controller) *Service {
	return NewService(Config{TopicPrefix: "/motorshield/test"}, ctrl, control.NewEvents(), zerolog.Nop())
}

func TestTopics(t *testing.T) {
	s := newTestService(&fakeController{})
	assert.Equal(t, "/motorshield/test/latch/state", s.LatchTopic())
	assert.Equal(t, "/motorshield/test/logs", s.LogTopic())
	assert.Equal(t, []string{
		"/motorshield/test/motor/+/+",
		"/motorshield/test/stepper/+/+",
		"/motorshield/test/servo/+/+",
		"/motorshield/test/stop",
	}, s.CommandFilters())
}

func TestHandleCommand(t *testing.T) {
	ctrl := &fakeController{}
	s := newTestService(ctrl)
	published := map[string]string{}
	publish := func(topic, payload string) { published[topic] = payload }

	tests := map[string]string{
		"motor/1/run":       "forward",
		"motor/4/speed":     "200",
		"stepper/2/speed":   "60",
		"stepper/1/step":    "48 backward double",
		"stepper/2/release": "",
		"servo/1/angle":     " 90 ",
		"stop":              "",
	}
	order := []string{"motor/1/run", "motor/4/speed", "stepper/2/speed", "stepper/1/step", "stepper/2/release", "servo/1/angle", "stop"}
	for _, topic := range order {
		require.NoError(t, s.handleCommand("/motorshield/test/"+topic, []byte(tests[topic]), publish), topic)
	}
	assert.Equal(t, []string{
		"run 1 forward",
		"speed 4 200",
		"rpm 2 60",
		"step 1 48 backward double",
		"release 2",
		"angle 1 90",
		"stop",
	}, ctrl.calls)
	assert.Equal(t, "done", published["/motorshield/test/status/stepper/1"])
}

func TestHandleInvalidCommand(t *testing.T) {
	s := newTestService(&fakeController{})
	for topic, payload := range map[string]string{
		"motor/x/run":      "forward",
		"motor/1/run":      "sideways",
		"motor/1/speed":    "256",
		"motor/1/jump":     "1",
		"stepper/1/speed":  "-1",
		"stepper/1/step":   "",
		"stepper/1/step2":  "1",
		"servo/1/angle":    "abc",
		"unknown":          "",
		"motor/1/run/more": "forward",
	} {
		err := s.handleCommand("/motorshield/test/"+topic, []byte(payload), nil)
		assert.True(t, shield.IsInvalidArgument(err), topic)
	}
}

func TestParseStep(t *testing.T) {
	steps, dir, style, err := ParseStep("10")
	require.NoError(t, err)
	assert.Equal(t, uint32(10), steps)
	assert.Equal(t, shield.Forward, dir)
	assert.Equal(t, shield.Single, style)

	steps, dir, style, err = ParseStep("3 back microstep")
	require.NoError(t, err)
	assert.Equal(t, uint32(3), steps)
	assert.Equal(t, shield.Backward, dir)
	assert.Equal(t, shield.Microstep, style)

	for _, value := range []string{"", "x", "1 up", "1 forward fast", "1 forward single extra"} {
		_, _, _, err := ParseStep(value)
		assert.True(t, shield.IsInvalidArgument(err), value)
	}
}
