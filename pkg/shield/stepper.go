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
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Direction of a stepper move.
type Direction uint8

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return fmt.Sprintf("Direction(%d)", uint8(d))
	}
}

// ParseDirection parses a textual stepper direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "forward", "fwd", "":
		return Forward, nil
	case "backward", "back", "bwd":
		return Backward, nil
	}
	return Forward, invalidArgument("unknown direction '%s'", s)
}

// Style of stepping.
type Style uint8

const (
	// Single energizes one coil at a time.
	Single Style = iota
	// Double energizes two adjacent coils at a time.
	Double
	// Interleave alternates between single & double (half steps).
	Interleave
	// Microstep blends the current of two adjacent coils in 16 steps.
	Microstep
)

func (s Style) String() string {
	switch s {
	case Single:
		return "single"
	case Double:
		return "double"
	case Interleave:
		return "interleave"
	case Microstep:
		return "microstep"
	default:
		return fmt.Sprintf("Style(%d)", uint8(s))
	}
}

// ParseStyle parses a textual step style.
func ParseStyle(s string) (Style, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single", "":
		return Single, nil
	case "double":
		return Double, nil
	case "interleave", "half":
		return Interleave, nil
	case "microstep", "micro":
		return Microstep, nil
	}
	return Single, invalidArgument("unknown style '%s'", s)
}

const (
	// MicrostepsPerStep is the number of microsteps in a single full step.
	MicrostepsPerStep = 16
	// PhaseCount is the number of positions in one electrical cycle.
	PhaseCount = 4 * MicrostepsPerStep
	// DefaultStepsPerRevolution of the steppers shipped with the shield.
	DefaultStepsPerRevolution = 48

	halfStep = MicrostepsPerStep / 2
)

// MicrostepCurve holds the relative coil current per microstep offset.
var MicrostepCurve = [MicrostepsPerStep + 1]uint8{
	0, 25, 50, 74, 98, 120, 141, 162, 180, 197, 212, 225, 236, 244, 250, 253, 255,
}

// Stepper drives a bipolar stepper motor using 4 latch bits (coil
// direction) and 2 PWM channels (coil current).
type Stepper struct {
	id                 int
	label              string
	coils              StepperCoils
	pwmA               PWMChannel
	pwmB               PWMChannel
	latch              *Latch
	delay              Delayer
	log                zerolog.Logger
	stepsPerRevolution uint32

	// moveMutex serializes moves & speed changes
	moveMutex  sync.Mutex
	usPerStep  atomic.Uint32
	residualUs uint32
	dutyA      uint8
	dutyB      uint8
	phase      atomic.Uint32
	moving     atomic.Bool
	enabled    atomic.Bool
}

// StepperStatus is a snapshot of the state of a stepper.
type StepperStatus struct {
	ID                  int    `json:"id"`
	Phase               uint8  `json:"phase"`
	MicrosecondsPerStep uint32 `json:"us_per_step"`
	StepsPerRevolution  uint32 `json:"steps_per_revolution"`
	Moving              bool   `json:"moving"`
	Enabled             bool   `json:"enabled"`
}

// newStepper creates a stepper, releases its coils and sets both
// PWM channels to full duty.
func newStepper(id int, coils StepperCoils, pwmA, pwmB PWMChannel, latch *Latch,
	stepsPerRevolution uint32, delay Delayer, log zerolog.Logger) (*Stepper, error) {
	if stepsPerRevolution == 0 || stepsPerRevolution > 0xFFFF {
		return nil, invalidArgument("steps per revolution must be in 1..65535, got %d", stepsPerRevolution)
	}
	if delay == nil {
		delay = SleepDelayer{}
	}
	s := &Stepper{
		id:                 id,
		label:              strconv.Itoa(id),
		coils:              coils,
		pwmA:               pwmA,
		pwmB:               pwmB,
		latch:              latch,
		delay:              delay,
		log:                log.With().Int("stepper", id).Logger(),
		stepsPerRevolution: stepsPerRevolution,
	}
	if err := s.Release(); err != nil {
		return nil, err
	}
	if err := pwmA.SetDuty(0xFF); err != nil {
		return nil, errors.Wrap(err, "SetDuty[A] failed")
	}
	if err := pwmB.SetDuty(0xFF); err != nil {
		return nil, errors.Wrap(err, "SetDuty[B] failed")
	}
	s.dutyA, s.dutyB = 0xFF, 0xFF
	return s, nil
}

// ID returns the 1-based index of the stepper.
func (s *Stepper) ID() int { return s.id }

// Phase returns the current electrical phase [0, PhaseCount).
func (s *Stepper) Phase() uint8 { return uint8(s.phase.Load()) }

// MicrosecondsPerStep returns the delay between full steps.
func (s *Stepper) MicrosecondsPerStep() uint32 { return s.usPerStep.Load() }

// StepsPerRevolution returns the number of full steps per revolution.
func (s *Stepper) StepsPerRevolution() uint32 { return s.stepsPerRevolution }

// IsMoving returns true while a Step call is in progress.
func (s *Stepper) IsMoving() bool { return s.moving.Load() }

// SetSpeed sets the speed of future moves in revolutions per minute.
func (s *Stepper) SetSpeed(rpm uint16) error {
	if rpm == 0 {
		return invalidArgument("rpm must be positive")
	}
	s.moveMutex.Lock()
	defer s.moveMutex.Unlock()

	s.usPerStep.Store(60000000 / (s.stepsPerRevolution * uint32(rpm)))
	s.residualUs = 0
	return nil
}

// OneStep advances the phase once in the given direction & style
// and energizes the matching coils. Returns the new phase.
func (s *Stepper) OneStep(dir Direction, style Style) (uint8, error) {
	if err := validateMove(dir, style); err != nil {
		return s.Phase(), err
	}
	s.moveMutex.Lock()
	defer s.moveMutex.Unlock()

	return s.oneStep(dir, style)
}

// Step performs the given number of steps, blocking until the move is
// complete. Microstep moves always end on a full step boundary.
// A move cannot be canceled.
func (s *Stepper) Step(steps uint32, dir Direction, style Style) error {
	if err := validateMove(dir, style); err != nil {
		return err
	}
	s.moveMutex.Lock()
	defer s.moveMutex.Unlock()
	s.moving.Store(true)
	defer s.moving.Store(false)

	usPerStep := s.usPerStep.Load()
	count := uint64(steps)
	switch style {
	case Interleave:
		usPerStep /= 2
	case Microstep:
		usPerStep /= MicrostepsPerStep
		count *= MicrostepsPerStep
	}
	s.log.Debug().
		Uint32("steps", steps).
		Str("direction", dir.String()).
		Str("style", style.String()).
		Uint32("us_per_step", usPerStep).
		Msg("Step")

	for ; count > 0; count-- {
		if _, err := s.oneStep(dir, style); err != nil {
			return maskAny(err)
		}
		s.wait(usPerStep)
	}
	if style == Microstep {
		for phase := s.Phase(); phase != 0 && phase != MicrostepsPerStep; {
			var err error
			if phase, err = s.oneStep(dir, style); err != nil {
				return maskAny(err)
			}
			s.wait(usPerStep)
		}
	}
	return nil
}

// Release de-energizes all coils.
// It does not wait for a move in progress.
func (s *Stepper) Release() error {
	all := s.coils.All()
	if err := s.latch.Update(func(tx LatchTx) error {
		tx.MaskTo(^all)
		return nil
	}); err != nil {
		return errors.Wrapf(err, "Release stepper %d failed", s.id)
	}
	return nil
}

// Enable arms both PWM channels.
func (s *Stepper) Enable() error {
	if err := s.pwmA.Enable(); err != nil {
		return errors.Wrapf(err, "Enable[A] stepper %d failed", s.id)
	}
	if err := s.pwmB.Enable(); err != nil {
		return errors.Wrapf(err, "Enable[B] stepper %d failed", s.id)
	}
	s.enabled.Store(true)
	return nil
}

// Disable disarms both PWM channels.
func (s *Stepper) Disable() error {
	if err := s.pwmA.Disable(); err != nil {
		return errors.Wrapf(err, "Disable[A] stepper %d failed", s.id)
	}
	if err := s.pwmB.Disable(); err != nil {
		return errors.Wrapf(err, "Disable[B] stepper %d failed", s.id)
	}
	s.enabled.Store(false)
	return nil
}

// Status returns a snapshot of the stepper state.
func (s *Stepper) Status() StepperStatus {
	return StepperStatus{
		ID:                  s.id,
		Phase:               s.Phase(),
		MicrosecondsPerStep: s.MicrosecondsPerStep(),
		StepsPerRevolution:  s.stepsPerRevolution,
		Moving:              s.IsMoving(),
		Enabled:             s.enabled.Load(),
	}
}

// oneStep performs a single step.
// The moveMutex must be held.
func (s *Stepper) oneStep(dir Direction, style Style) (uint8, error) {
	phase := nextPhase(s.Phase(), dir, style)
	bits, dutyA, dutyB := s.coils.energize(phase, style)
	all := s.coils.All()
	if err := s.latch.Update(func(tx LatchTx) error {
		tx.MaskTo(^all)
		if err := s.pwmA.SetDuty(dutyA); err != nil {
			return errors.Wrap(err, "SetDuty[A] failed")
		}
		if err := s.pwmB.SetDuty(dutyB); err != nil {
			// Keep both coil currents at the restored phase
			if rerr := s.pwmA.SetDuty(s.dutyA); rerr != nil {
				s.log.Warn().Err(rerr).Msg("Failed to restore duty of PWM channel A")
			}
			return errors.Wrap(err, "SetDuty[B] failed")
		}
		tx.SetBits(bits)
		return nil
	}); err != nil {
		return s.Phase(), errors.Wrapf(err, "Step stepper %d failed", s.id)
	}
	s.dutyA, s.dutyB = dutyA, dutyB
	s.phase.Store(uint32(phase))
	stepperStepsTotal.WithLabelValues(s.label, style.String()).Inc()
	stepperPhase.WithLabelValues(s.label).Set(float64(phase))
	return phase, nil
}

// wait sleeps for the given number of microseconds in whole
// milliseconds, carrying the remainder over to the next wait.
// The moveMutex must be held.
func (s *Stepper) wait(us uint32) {
	s.delay.DelayMs(us / 1000)
	s.residualUs += us % 1000
	if s.residualUs >= 1000 {
		s.delay.DelayMs(1)
		s.residualUs -= 1000
	}
}

func validateMove(dir Direction, style Style) error {
	if dir != Forward && dir != Backward {
		return invalidArgument("unknown direction %d", dir)
	}
	if style > Microstep {
		return invalidArgument("unknown style %d", style)
	}
	return nil
}

// nextPhase returns the phase after a single step from the given phase.
func nextPhase(phase uint8, dir Direction, style Style) uint8 {
	var delta uint8
	odd := (phase/halfStep)%2 != 0
	switch style {
	case Single:
		if odd {
			delta = halfStep
		} else {
			delta = MicrostepsPerStep
		}
	case Double:
		if odd {
			delta = MicrostepsPerStep
		} else {
			delta = halfStep
		}
	case Interleave:
		delta = halfStep
	case Microstep:
		delta = 1
	}
	if dir == Forward {
		phase += delta
	} else {
		phase -= delta
	}
	// 256 is a multiple of PhaseCount, so uint8 wrapping is safe.
	return phase % PhaseCount
}

// energize returns the coil bits and PWM duties (A/C, B/D) for the given phase.
func (c StepperCoils) energize(phase uint8, style Style) (bits, dutyA, dutyB uint8) {
	if style == Microstep {
		curve := MicrostepCurve
		switch {
		case phase < MicrostepsPerStep:
			return c.A | c.B, curve[MicrostepsPerStep-phase], curve[phase]
		case phase < 2*MicrostepsPerStep:
			return c.B | c.C, curve[phase-MicrostepsPerStep], curve[2*MicrostepsPerStep-phase]
		case phase < 3*MicrostepsPerStep:
			return c.C | c.D, curve[3*MicrostepsPerStep-phase], curve[phase-2*MicrostepsPerStep]
		default:
			return c.D | c.A, curve[phase-3*MicrostepsPerStep], curve[4*MicrostepsPerStep-phase]
		}
	}
	switch phase / halfStep {
	case 0:
		bits = c.A
	case 1:
		bits = c.A | c.B
	case 2:
		bits = c.B
	case 3:
		bits = c.B | c.C
	case 4:
		bits = c.C
	case 5:
		bits = c.C | c.D
	case 6:
		bits = c.D
	case 7:
		bits = c.D | c.A
	default:
		// Unreachable for phases below PhaseCount
		bits = 0
	}
	return bits, 0xFF, 0xFF
}
