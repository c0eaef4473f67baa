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

	aerr "github.com/ewoutp/go-aggregate-error"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Hardware describes the resources the shield is wired to.
type Hardware struct {
	// Shift register lines
	Latch LatchPins
	// Timer0 drives port 2 (A = d6, B = d5)
	Timer0 Timer
	// Timer1 drives the servos (A = d10, B = d9)
	Timer1 Timer
	// Timer2 drives port 1 (A = d11, B = d3)
	Timer2 Timer
}

// Option customizes a Shield.
type Option func(*options)

type options struct {
	log                zerolog.Logger
	delay              Delayer
	stepsPerRevolution uint32
	observer           func(state uint8)
}

// WithLogger sets the logger used by the shield.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithDelayer sets the delay primitive used by steppers.
func WithDelayer(d Delayer) Option {
	return func(o *options) { o.delay = d }
}

// WithStepsPerRevolution sets the number of full steps per revolution
// of the connected steppers.
func WithStepsPerRevolution(steps uint32) Option {
	return func(o *options) { o.stepsPerRevolution = steps }
}

// WithLatchObserver sets a callback that is invoked with every
// transmitted latch state.
func WithLatchObserver(cb func(state uint8)) Option {
	return func(o *options) { o.observer = cb }
}

// Shield gives access to the motors, steppers & servos of the shield.
type Shield struct {
	layout   Layout
	latch    *Latch
	log      zerolog.Logger
	steppers [StepperCount]*Stepper
	motors   [MotorCount]*Motor
	servos   [ServoCount]*Servo
}

// Status is a snapshot of all configured units of the shield.
type Status struct {
	Layout   string          `json:"layout"`
	Latch    uint8           `json:"latch"`
	Steppers []StepperStatus `json:"steppers"`
	Motors   []MotorStatus   `json:"motors"`
	Servos   []ServoStatus   `json:"servos"`
}

// MotorSpeed couples a motor index with a duty cycle.
type MotorSpeed struct {
	ID   int
	Duty uint8
}

// New initializes the latch and creates all units implied by the given layout.
func New(layout Layout, hw Hardware, opts ...Option) (*Shield, error) {
	o := options{
		log:                zerolog.Nop(),
		delay:              SleepDelayer{},
		stepsPerRevolution: DefaultStepsPerRevolution,
	}
	for _, opt := range opts {
		opt(&o)
	}
	latch, err := NewLatch(hw.Latch, o.observer)
	if err != nil {
		return nil, errors.Wrap(err, "NewLatch failed")
	}
	s := &Shield{
		layout: layout,
		latch:  latch,
		log:    o.log.With().Str("component", "shield").Logger(),
	}
	if err := s.buildPort(1, layout.Port1, hw.Timer2, o); err != nil {
		return nil, err
	}
	if err := s.buildPort(2, layout.Port2, hw.Timer0, o); err != nil {
		return nil, err
	}
	if hw.Timer1.A != nil {
		s.servos[0] = newServo(1, hw.Timer1.A)
	}
	if hw.Timer1.B != nil {
		s.servos[1] = newServo(2, hw.Timer1.B)
	}
	s.log.Info().Str("layout", layout.String()).Msg("Shield initialized")
	return s, nil
}

// buildPort creates the units of a single port.
func (s *Shield) buildPort(port int, mode PortMode, timer Timer, o options) error {
	switch mode {
	case PortStepper:
		if timer.A == nil || timer.B == nil {
			return invalidArgument("stepper on port %d requires both PWM channels", port)
		}
		coils, _ := StepperCoilsOf(port)
		st, err := newStepper(port, coils, timer.A, timer.B, s.latch, o.stepsPerRevolution, o.delay, s.log)
		if err != nil {
			return errors.Wrapf(err, "Failed to create stepper %d", port)
		}
		s.steppers[port-1] = st
	case PortTwoMotors, PortMotorFirst, PortMotorSecond:
		first := (port-1)*2 + 1
		if mode.hasMotorFirst() {
			if timer.A == nil {
				return invalidArgument("motor %d requires PWM channel A of port %d", first, port)
			}
			coils, _ := MotorCoilsOf(first)
			s.motors[first-1] = newMotor(first, coils, timer.A, s.latch)
		}
		if mode.hasMotorSecond() {
			if timer.B == nil {
				return invalidArgument("motor %d requires PWM channel B of port %d", first+1, port)
			}
			coils, _ := MotorCoilsOf(first + 1)
			s.motors[first] = newMotor(first+1, coils, timer.B, s.latch)
		}
	case PortEmpty:
		// Nothing connected
	default:
		return invalidArgument("unknown mode %d for port %d", mode, port)
	}
	return nil
}

// Layout returns the layout the shield was created with.
func (s *Shield) Layout() Layout { return s.layout }

// Latch returns the shared shift register latch.
func (s *Shield) Latch() *Latch { return s.latch }

// StepperCount returns the number of stepper slots.
func (s *Shield) StepperCount() int { return StepperCount }

// MotorCount returns the number of motor slots.
func (s *Shield) MotorCount() int { return MotorCount }

// ServoCount returns the number of servo slots.
func (s *Shield) ServoCount() int { return ServoCount }

// Stepper returns the stepper with given index (1..2) or nil when
// the layout has no stepper in that slot.
// Panics on an index out of range.
func (s *Shield) Stepper(id int) *Stepper {
	if id < 1 || id > StepperCount {
		panic(fmt.Sprintf("invalid stepper index %d", id))
	}
	return s.steppers[id-1]
}

// Motor returns the motor with given index (1..4) or nil when
// the layout has no motor in that slot.
// Panics on an index out of range.
func (s *Shield) Motor(id int) *Motor {
	if id < 1 || id > MotorCount {
		panic(fmt.Sprintf("invalid motor index %d", id))
	}
	return s.motors[id-1]
}

// Servo returns the servo with given index (1..2) or nil when
// no PWM channel is available for it.
// Panics on an index out of range.
func (s *Shield) Servo(id int) *Servo {
	if id < 1 || id > ServoCount {
		panic(fmt.Sprintf("invalid servo index %d", id))
	}
	return s.servos[id-1]
}

// EnableMotors enables the motors with given indexes.
// Indexes without a motor are skipped.
func (s *Shield) EnableMotors(ids ...int) error {
	var ae aerr.AggregateError
	for _, id := range ids {
		if m := s.Motor(id); m != nil {
			if err := m.Enable(); err != nil {
				ae.Add(err)
			}
		}
	}
	return ae.AsError()
}

// SetSpeeds sets the duty cycle of the given motors.
// Indexes without a motor are skipped.
func (s *Shield) SetSpeeds(speeds ...MotorSpeed) error {
	var ae aerr.AggregateError
	for _, sp := range speeds {
		if m := s.Motor(sp.ID); m != nil {
			if err := m.SetSpeed(sp.Duty); err != nil {
				ae.Add(err)
			}
		}
	}
	return ae.AsError()
}

// ReleaseAll releases all motors & steppers.
func (s *Shield) ReleaseAll() error {
	var ae aerr.AggregateError
	for _, m := range s.motors {
		if m != nil {
			if err := m.Run(MotorRelease); err != nil {
				ae.Add(err)
			}
		}
	}
	for _, st := range s.steppers {
		if st != nil {
			if err := st.Release(); err != nil {
				ae.Add(err)
			}
		}
	}
	return ae.AsError()
}

// Status returns a snapshot of all configured units.
func (s *Shield) Status() Status {
	result := Status{
		Layout:   s.layout.String(),
		Latch:    s.latch.State(),
		Steppers: []StepperStatus{},
		Motors:   []MotorStatus{},
		Servos:   []ServoStatus{},
	}
	for _, st := range s.steppers {
		if st != nil {
			result.Steppers = append(result.Steppers, st.Status())
		}
	}
	for _, m := range s.motors {
		if m != nil {
			result.Motors = append(result.Motors, m.Status())
		}
	}
	for _, sv := range s.servos {
		if sv != nil {
			result.Servos = append(result.Servos, sv.Status())
		}
	}
	return result
}
