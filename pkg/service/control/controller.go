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
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/binkynet/MotorShield/pkg/shield"
)

// Controller is the single entry point used by all remote surfaces
// (HTTP, MQTT, SSH UI, shell, line follower) to reach the shield.
// It validates identifiers coming from remote input and refuses
// concurrent moves of the same stepper.
type Controller struct {
	log    zerolog.Logger
	shield *shield.Shield
	events *Events
	moving [shield.StepperCount]*semaphore.Weighted
}

// New creates a controller for the given shield.
func New(sh *shield.Shield, events *Events, log zerolog.Logger) *Controller {
	c := &Controller{
		log:    log.With().Str("component", "controller").Logger(),
		shield: sh,
		events: events,
	}
	for i := range c.moving {
		c.moving[i] = semaphore.NewWeighted(1)
	}
	return c
}

// Shield returns the controlled shield.
func (c *Controller) Shield() *shield.Shield { return c.shield }

// Events returns the event distributor.
func (c *Controller) Events() *Events { return c.events }

// Status returns a snapshot of all units.
func (c *Controller) Status() shield.Status {
	return c.shield.Status()
}

// RunMotor sets the direction of the motor with given id (1..4).
func (c *Controller) RunMotor(id int, cmd shield.MotorCommand) error {
	return c.do("motor-run", func() error {
		m, err := c.motor(id)
		if err != nil {
			return err
		}
		c.log.Debug().Int("motor", id).Str("command", cmd.String()).Msg("Run motor")
		return m.Run(cmd)
	})
}

// SetMotorSpeed sets the duty cycle of the motor with given id (1..4).
func (c *Controller) SetMotorSpeed(id int, duty uint8) error {
	return c.do("motor-speed", func() error {
		m, err := c.motor(id)
		if err != nil {
			return err
		}
		return m.SetSpeed(duty)
	})
}

// SetMotorSpeeds sets the duty cycle of multiple motors.
// Motors that are not present in the layout are skipped.
func (c *Controller) SetMotorSpeeds(speeds ...shield.MotorSpeed) error {
	return c.do("motor-speeds", func() error {
		for _, sp := range speeds {
			if err := validateID("motor", sp.ID, shield.MotorCount); err != nil {
				return err
			}
		}
		return c.shield.SetSpeeds(speeds...)
	})
}

// EnableMotor arms the PWM channel of the motor with given id (1..4).
func (c *Controller) EnableMotor(id int) error {
	return c.do("motor-enable", func() error {
		m, err := c.motor(id)
		if err != nil {
			return err
		}
		return m.Enable()
	})
}

// DisableMotor disarms the PWM channel of the motor with given id (1..4).
func (c *Controller) DisableMotor(id int) error {
	return c.do("motor-disable", func() error {
		m, err := c.motor(id)
		if err != nil {
			return err
		}
		return m.Disable()
	})
}

// SetStepperSpeed sets the speed (RPM) of the stepper with given id (1..2).
func (c *Controller) SetStepperSpeed(id int, rpm uint16) error {
	return c.do("stepper-speed", func() error {
		st, err := c.stepper(id)
		if err != nil {
			return err
		}
		return st.SetSpeed(rpm)
	})
}

// StepStepper moves the stepper with given id (1..2) and blocks until
// the move is complete.
// Returns a busy error when the stepper is already moving.
func (c *Controller) StepStepper(id int, steps uint32, dir shield.Direction, style shield.Style) error {
	var st *shield.Stepper
	if err := c.do("stepper-step", func() error {
		var err error
		st, err = c.acquireStepper(id)
		return err
	}); err != nil {
		return err
	}
	defer c.moving[id-1].Release(1)
	return c.do("stepper-step", func() error {
		return c.step(st, steps, dir, style)
	})
}

// StartStepper starts a move of the stepper with given id (1..2) in the
// background. The given callback (if any) is called when the move is done.
// Returns a busy error when the stepper is already moving.
func (c *Controller) StartStepper(id int, steps uint32, dir shield.Direction, style shield.Style, done func(error)) error {
	var st *shield.Stepper
	if err := c.do("stepper-start", func() error {
		var err error
		st, err = c.acquireStepper(id)
		return err
	}); err != nil {
		return err
	}
	go func() {
		err := c.step(st, steps, dir, style)
		c.moving[id-1].Release(1)
		if err != nil {
			commandErrorsTotal.WithLabelValues("stepper-start").Inc()
			c.log.Warn().Err(err).Int("stepper", id).Msg("Stepper move failed")
		}
		if done != nil {
			done(err)
		}
	}()
	return nil
}

// OneStepStepper performs a single step of the stepper with given id (1..2).
// Returns the new phase.
func (c *Controller) OneStepStepper(id int, dir shield.Direction, style shield.Style) (uint8, error) {
	var phase uint8
	var st *shield.Stepper
	if err := c.do("stepper-onestep", func() error {
		var err error
		st, err = c.acquireStepper(id)
		return err
	}); err != nil {
		return 0, err
	}
	defer c.moving[id-1].Release(1)
	err := c.do("stepper-onestep", func() error {
		var err error
		phase, err = st.OneStep(dir, style)
		return err
	})
	return phase, err
}

// ReleaseStepper de-energizes all coils of the stepper with given id (1..2).
func (c *Controller) ReleaseStepper(id int) error {
	return c.do("stepper-release", func() error {
		st, err := c.stepper(id)
		if err != nil {
			return err
		}
		return st.Release()
	})
}

// EnableStepper arms both PWM channels of the stepper with given id (1..2).
func (c *Controller) EnableStepper(id int) error {
	return c.do("stepper-enable", func() error {
		st, err := c.stepper(id)
		if err != nil {
			return err
		}
		return st.Enable()
	})
}

// DisableStepper disarms both PWM channels of the stepper with given id (1..2).
func (c *Controller) DisableStepper(id int) error {
	return c.do("stepper-disable", func() error {
		st, err := c.stepper(id)
		if err != nil {
			return err
		}
		return st.Disable()
	})
}

// SetServoAngle sets the pulse value of the servo with given id (1..2).
func (c *Controller) SetServoAngle(id int, angle uint8) error {
	return c.do("servo-angle", func() error {
		sv, err := c.servo(id)
		if err != nil {
			return err
		}
		return sv.SetAngle(angle)
	})
}

// EnableServo arms the PWM channel of the servo with given id (1..2).
func (c *Controller) EnableServo(id int) error {
	return c.do("servo-enable", func() error {
		sv, err := c.servo(id)
		if err != nil {
			return err
		}
		return sv.Enable()
	})
}

// DisableServo disarms the PWM channel of the servo with given id (1..2).
func (c *Controller) DisableServo(id int) error {
	return c.do("servo-disable", func() error {
		sv, err := c.servo(id)
		if err != nil {
			return err
		}
		return sv.Disable()
	})
}

// StopAll releases all motors & steppers.
func (c *Controller) StopAll() error {
	return c.do("stop", func() error {
		c.log.Info().Msg("Stop all")
		return c.shield.ReleaseAll()
	})
}

func (c *Controller) do(kind string, fn func() error) error {
	commandsTotal.WithLabelValues(kind).Inc()
	if err := fn(); err != nil {
		commandErrorsTotal.WithLabelValues(kind).Inc()
		c.log.Debug().Err(err).Str("kind", kind).Msg("Command failed")
		return maskAny(err)
	}
	return nil
}

func (c *Controller) step(st *shield.Stepper, steps uint32, dir shield.Direction, style shield.Style) error {
	c.log.Debug().
		Int("stepper", st.ID()).
		Uint32("steps", steps).
		Str("direction", dir.String()).
		Str("style", style.String()).
		Msg("Step")
	return st.Step(steps, dir, style)
}

// acquireStepper returns the stepper with given id, marked as moving.
func (c *Controller) acquireStepper(id int) (*shield.Stepper, error) {
	st, err := c.stepper(id)
	if err != nil {
		return nil, err
	}
	if !c.moving[id-1].TryAcquire(1) {
		stepperBusyTotal.Inc()
		return nil, busy("stepper %d is moving", id)
	}
	return st, nil
}

func (c *Controller) motor(id int) (*shield.Motor, error) {
	if err := validateID("motor", id, shield.MotorCount); err != nil {
		return nil, err
	}
	m := c.shield.Motor(id)
	if m == nil {
		return nil, notFound("motor %d is not present in layout %s", id, c.shield.Layout())
	}
	return m, nil
}

func (c *Controller) stepper(id int) (*shield.Stepper, error) {
	if err := validateID("stepper", id, shield.StepperCount); err != nil {
		return nil, err
	}
	st := c.shield.Stepper(id)
	if st == nil {
		return nil, notFound("stepper %d is not present in layout %s", id, c.shield.Layout())
	}
	return st, nil
}

func (c *Controller) servo(id int) (*shield.Servo, error) {
	if err := validateID("servo", id, shield.ServoCount); err != nil {
		return nil, err
	}
	sv := c.shield.Servo(id)
	if sv == nil {
		return nil, notFound("servo %d is not connected", id)
	}
	return sv, nil
}

func validateID(kind string, id, count int) error {
	if id < 1 || id > count {
		return invalidArgument("%s must be in 1..%d range, got %d", kind, count, id)
	}
	return nil
}
