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
	"strconv"
	"sync"

	"github.com/pkg/errors"
)

// Servo drives a single servo using one PWM channel.
type Servo struct {
	id    int
	label string
	pwm   PWMChannel

	mutex   sync.Mutex
	angle   uint8
	enabled bool
}

// ServoStatus is a snapshot of the state of a servo.
type ServoStatus struct {
	ID      int   `json:"id"`
	Angle   uint8 `json:"angle"`
	Enabled bool  `json:"enabled"`
}

func newServo(id int, pwm PWMChannel) *Servo {
	return &Servo{
		id:    id,
		label: strconv.Itoa(id),
		pwm:   pwm,
	}
}

// ID returns the 1-based index of the servo.
func (s *Servo) ID() int { return s.id }

// SetAngle sets the duty of the servo channel.
func (s *Servo) SetAngle(value uint8) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.pwm.SetDuty(value); err != nil {
		return errors.Wrapf(err, "SetAngle servo %d failed", s.id)
	}
	s.angle = value
	servoAngle.WithLabelValues(s.label).Set(float64(value))
	return nil
}

// Enable arms the servo channel.
func (s *Servo) Enable() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.pwm.Enable(); err != nil {
		return errors.Wrapf(err, "Enable servo %d failed", s.id)
	}
	s.enabled = true
	return nil
}

// Disable disarms the servo channel.
func (s *Servo) Disable() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.pwm.Disable(); err != nil {
		return errors.Wrapf(err, "Disable servo %d failed", s.id)
	}
	s.enabled = false
	return nil
}

// Status returns a snapshot of the servo state.
func (s *Servo) Status() ServoStatus {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return ServoStatus{
		ID:      s.id,
		Angle:   s.angle,
		Enabled: s.enabled,
	}
}
