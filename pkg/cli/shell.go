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
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"
	"github.com/rs/zerolog"

	"github.com/binkynet/MotorShield/pkg/service/devices"
	"github.com/binkynet/MotorShield/pkg/shield"
)

// Controller is the part of the shield controller used by the shell.
type Controller interface {
	Status() shield.Status
	RunMotor(id int, cmd shield.MotorCommand) error
	SetMotorSpeed(id int, duty uint8) error
	EnableMotor(id int) error
	DisableMotor(id int) error
	SetStepperSpeed(id int, rpm uint16) error
	StepStepper(id int, steps uint32, dir shield.Direction, style shield.Style) error
	ReleaseStepper(id int) error
	SetServoAngle(id int, angle uint8) error
	StopAll() error
}

// ADCProvider gives access to the configured analog inputs.
type ADCProvider interface {
	ADC(address string) (devices.ADC, error)
}

// Shell is an interactive development shell for the motor shield.
type Shell struct {
	log   zerolog.Logger
	ctrl  Controller
	adcs  ADCProvider
	shell *ishell.Shell
}

// New creates a new shell. adcs may be nil.
func New(ctrl Controller, adcs ADCProvider, log zerolog.Logger) *Shell {
	s := &Shell{
		log:   log.With().Str("component", "shell").Logger(),
		ctrl:  ctrl,
		adcs:  adcs,
		shell: ishell.New(),
	}
	s.shell.SetPrompt("motorshield> ")
	for _, cmd := range s.commands() {
		s.shell.AddCmd(cmd)
	}
	return s
}

// SetOut sets the writer that all output is written to.
func (s *Shell) SetOut(w io.Writer) {
	s.shell.SetOut(w)
}

// Process runs a single command non-interactively.
func (s *Shell) Process(args ...string) error {
	return s.shell.Process(args...)
}

// Run the interactive shell until the user exits or the context is canceled.
func (s *Shell) Run(ctx context.Context) error {
	s.shell.Println("MotorShield development shell, type 'help' for commands")
	s.shell.Start()
	done := make(chan struct{})
	go func() {
		s.shell.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Debug().Msg("Shell exited")
	case <-ctx.Done():
	}
	s.shell.Close()
	return nil
}

func (s *Shell) commands() []*ishell.Cmd {
	return []*ishell.Cmd{
		{
			Name: "status",
			Help: "status",
			Func: s.wrap(0, func(c *ishell.Context) error {
				printStatus(c, s.ctrl.Status())
				return nil
			}),
		},
		{
			Name: "motor",
			Help: "motor <id> <forward|backward|release|enable|disable>",
			Func: s.wrap(2, func(c *ishell.Context) error {
				id, err := parseID(c.Args[0])
				if err != nil {
					return err
				}
				switch strings.ToLower(c.Args[1]) {
				case "enable":
					return s.ctrl.EnableMotor(id)
				case "disable":
					return s.ctrl.DisableMotor(id)
				}
				cmd, err := shield.ParseMotorCommand(c.Args[1])
				if err != nil {
					return err
				}
				return s.ctrl.RunMotor(id, cmd)
			}),
		},
		{
			Name: "speed",
			Help: "speed <motor-id> <duty 0..255>",
			Func: s.wrap(2, func(c *ishell.Context) error {
				id, err := parseID(c.Args[0])
				if err != nil {
					return err
				}
				duty, err := parseUint(c.Args[1], 8)
				if err != nil {
					return err
				}
				return s.ctrl.SetMotorSpeed(id, uint8(duty))
			}),
		},
		{
			Name: "rpm",
			Help: "rpm <stepper-id> <rpm>",
			Func: s.wrap(2, func(c *ishell.Context) error {
				id, err := parseID(c.Args[0])
				if err != nil {
					return err
				}
				rpm, err := parseUint(c.Args[1], 16)
				if err != nil {
					return err
				}
				return s.ctrl.SetStepperSpeed(id, uint16(rpm))
			}),
		},
		{
			Name: "step",
			Help: "step <stepper-id> <steps> [forward|backward] [single|double|interleave|microstep]",
			Func: s.wrap(2, func(c *ishell.Context) error {
				id, err := parseID(c.Args[0])
				if err != nil {
					return err
				}
				steps, err := parseUint(c.Args[1], 32)
				if err != nil {
					return err
				}
				var dirText, styleText string
				if len(c.Args) > 2 {
					dirText = c.Args[2]
				}
				if len(c.Args) > 3 {
					styleText = c.Args[3]
				}
				dir, err := shield.ParseDirection(dirText)
				if err != nil {
					return err
				}
				style, err := shield.ParseStyle(styleText)
				if err != nil {
					return err
				}
				if err := s.ctrl.StepStepper(id, uint32(steps), dir, style); err != nil {
					return err
				}
				for _, x := range s.ctrl.Status().Steppers {
					if x.ID == id {
						c.Printf("stepper %d at phase %d\n", id, x.Phase)
					}
				}
				return nil
			}),
		},
		{
			Name: "release",
			Help: "release <stepper-id>",
			Func: s.wrap(1, func(c *ishell.Context) error {
				id, err := parseID(c.Args[0])
				if err != nil {
					return err
				}
				return s.ctrl.ReleaseStepper(id)
			}),
		},
		{
			Name: "servo",
			Help: "servo <id> <angle 0..255>",
			Func: s.wrap(2, func(c *ishell.Context) error {
				id, err := parseID(c.Args[0])
				if err != nil {
					return err
				}
				angle, err := parseUint(c.Args[1], 8)
				if err != nil {
					return err
				}
				return s.ctrl.SetServoAngle(id, uint8(angle))
			}),
		},
		{
			Name: "stop",
			Help: "stop all motors and steppers",
			Func: s.wrap(0, func(c *ishell.Context) error {
				return s.ctrl.StopAll()
			}),
		},
		{
			Name: "sensor",
			Help: "sensor <adc-address> <pin 1..4> <value> (virtual bridge only)",
			Func: s.wrap(3, func(c *ishell.Context) error {
				if s.adcs == nil {
					return fmt.Errorf("no analog inputs configured")
				}
				adc, err := s.adcs.ADC(c.Args[0])
				if err != nil {
					return err
				}
				vadc, ok := adc.(*devices.VirtualADC)
				if !ok {
					return fmt.Errorf("ADC %s is not virtual", c.Args[0])
				}
				pin, err := strconv.Atoi(c.Args[1])
				if err != nil {
					return fmt.Errorf("invalid pin '%s'", c.Args[1])
				}
				value, err := strconv.Atoi(c.Args[2])
				if err != nil {
					return fmt.Errorf("invalid value '%s'", c.Args[2])
				}
				return vadc.Set(pin, value)
			}),
		},
	}
}

// wrap checks the number of arguments and reports errors of the given command func.
func (s *Shell) wrap(minArgs int, fn func(c *ishell.Context) error) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if len(c.Args) < minArgs {
			err := fmt.Errorf("usage: %s", c.Cmd.Help)
			c.Println(err)
			c.Err(err)
			return
		}
		if err := fn(c); err != nil {
			s.log.Debug().Err(err).Str("command", c.Cmd.Name).Msg("Command failed")
			c.Println("error:", err)
			c.Err(err)
		}
	}
}

func printStatus(c *ishell.Context, st shield.Status) {
	c.Printf("layout: %s\n", st.Layout)
	c.Printf("latch:  %08b\n", st.Latch)
	for _, m := range st.Motors {
		c.Printf("motor %d: %s duty=%d enabled=%t\n", m.ID, m.Run, m.Duty, m.Enabled)
	}
	for _, x := range st.Steppers {
		c.Printf("stepper %d: phase=%d us/step=%d moving=%t enabled=%t\n",
			x.ID, x.Phase, x.MicrosecondsPerStep, x.Moving, x.Enabled)
	}
	for _, x := range st.Servos {
		c.Printf("servo %d: angle=%d enabled=%t\n", x.ID, x.Angle, x.Enabled)
	}
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid id '%s'", s)
	}
	return id, nil
}

func parseUint(s string, bitSize int) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, bitSize)
	if err != nil {
		return 0, fmt.Errorf("invalid number '%s'", s)
	}
	return v, nil
}
