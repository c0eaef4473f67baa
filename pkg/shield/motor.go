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
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// MotorCommand is the direction command of a DC motor.
type MotorCommand uint8

const (
	// MotorRelease clears both terminals (motor coasts)
	MotorRelease MotorCommand = iota
	// MotorForward sets terminal A, clears B
	MotorForward
	// MotorBackward clears terminal A, sets B
	MotorBackward
)

func (c MotorCommand) String() string {
	switch c {
	case MotorRelease:
		return "release"
	case MotorForward:
		return "forward"
	case MotorBackward:
		return "backward"
	default:
		return fmt.Sprintf("MotorCommand(%d)", uint8(c))
	}
}

// ParseMotorCommand parses a textual motor command.
func ParseMotorCommand(s string) (MotorCommand, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "release", "stop":
		return MotorRelease, nil
	case "forward", "fwd":
		return MotorForward, nil
	case "backward", "back", "bwd":
		return MotorBackward, nil
	}
	return MotorRelease, invalidArgument("unknown motor command '%s'", s)
}

// Motor drives a single DC motor: two latch bits for direction,
// one PWM channel for speed.
type Motor struct {
	id    int
	label string
	coils MotorCoils
	pwm   PWMChannel
	latch *Latch

	mutex   sync.Mutex
	command MotorCommand
	duty    uint8
	enabled bool
}

// MotorStatus is a snapshot of the state of a motor.
type MotorStatus struct {
	ID      int          `json:"id"`
	Command MotorCommand `json:"-"`
	Run     string       `json:"run"`
	Duty    uint8        `json:"duty"`
	Enabled bool         `json:"enabled"`
}

func newMotor(id int, coils MotorCoils, pwm PWMChannel, latch *Latch) *Motor {
	return &Motor{
		id:    id,
		label: strconv.Itoa(id),
		coils: coils,
		pwm:   pwm,
		latch: latch,
	}
}

// ID returns the 1-based index of the motor.
func (m *Motor) ID() int { return m.id }

// Run sets the direction bits of the motor and transmits the latch.
func (m *Motor) Run(cmd MotorCommand) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	a, b := m.coils.A, m.coils.B
	if err := m.latch.Update(func(tx LatchTx) error {
		switch cmd {
		case MotorForward:
			tx.SetBits(a)
			tx.ClearBits(b)
		case MotorBackward:
			tx.ClearBits(a)
			tx.SetBits(b)
		case MotorRelease:
			tx.ClearBits(a | b)
		default:
			return invalidArgument("unknown motor command %d", cmd)
		}
		return nil
	}); err != nil {
		return errors.Wrapf(err, "Run motor %d failed", m.id)
	}
	m.command = cmd
	motorRunTotal.WithLabelValues(m.label, cmd.String()).Inc()
	return nil
}

// SetSpeed sets the duty cycle of the PWM channel of the motor.
func (m *Motor) SetSpeed(duty uint8) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if err := m.pwm.SetDuty(duty); err != nil {
		return errors.Wrapf(err, "SetSpeed motor %d failed", m.id)
	}
	m.duty = duty
	motorDuty.WithLabelValues(m.label).Set(float64(duty))
	return nil
}

// Enable arms the PWM channel of the motor.
func (m *Motor) Enable() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if err := m.pwm.Enable(); err != nil {
		return errors.Wrapf(err, "Enable motor %d failed", m.id)
	}
	m.enabled = true
	return nil
}

// Disable disarms the PWM channel of the motor.
func (m *Motor) Disable() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if err := m.pwm.Disable(); err != nil {
		return errors.Wrapf(err, "Disable motor %d failed", m.id)
	}
	m.enabled = false
	return nil
}

// Status returns a snapshot of the motor state.
func (m *Motor) Status() MotorStatus {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return MotorStatus{
		ID:      m.id,
		Command: m.command,
		Run:     m.command.String(),
		Duty:    m.duty,
		Enabled: m.enabled,
	}
}
