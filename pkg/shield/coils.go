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

// MotorCoils holds the latch bits of the two terminals of a DC motor.
type MotorCoils struct {
	A uint8
	B uint8
}

// All returns the bits of both terminals.
func (c MotorCoils) All() uint8 { return c.A | c.B }

// StepperCoils holds the latch bits of the four terminals of a stepper.
// Coils A & C are powered by the first PWM channel of the port,
// B & D by the second.
type StepperCoils struct {
	A uint8
	B uint8
	C uint8
	D uint8
}

// All returns the bits of all four terminals.
func (c StepperCoils) All() uint8 { return c.A | c.B | c.C | c.D }

const (
	// MotorCount is the number of DC motor slots on the shield.
	MotorCount = 4
	// StepperCount is the number of stepper slots on the shield.
	StepperCount = 2
	// ServoCount is the number of servo slots on the shield.
	ServoCount = 2
)

var (
	motorCoils = [MotorCount]MotorCoils{
		{A: 1 << 2, B: 1 << 3},
		{A: 1 << 1, B: 1 << 4},
		{A: 1 << 5, B: 1 << 7},
		{A: 1 << 0, B: 1 << 6},
	}
	stepperCoils = [StepperCount]StepperCoils{
		{A: 1 << 2, B: 1 << 1, C: 1 << 3, D: 1 << 4},
		{A: 1 << 5, B: 1 << 0, C: 1 << 7, D: 1 << 6},
	}
)

// MotorCoilsOf returns the coil bits of the motor with given id (1..4).
// Returns false for ids out of range.
func MotorCoilsOf(id int) (MotorCoils, bool) {
	if id < 1 || id > MotorCount {
		return MotorCoils{}, false
	}
	return motorCoils[id-1], true
}

// StepperCoilsOf returns the coil bits of the stepper with given id (1..2).
// Returns false for ids out of range.
func StepperCoilsOf(id int) (StepperCoils, bool) {
	if id < 1 || id > StepperCount {
		return StepperCoils{}, false
	}
	return stepperCoils[id-1], true
}
