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
	"github.com/binkynet/MotorShield/pkg/metrics"
)

const (
	subSystem = "shield"
)

var (
	// Total number of latch transmits
	latchTransmitsTotal = metrics.MustRegisterCounter(subSystem,
		"latch_transmits_total",
		"Total number of latch transmits")
	// Total number of failed latch transmits
	latchTransmitErrorsTotal = metrics.MustRegisterCounter(subSystem,
		"latch_transmit_errors_total",
		"Total number of failed latch transmits")
	// Last transmitted latch state
	latchState = metrics.MustRegisterGauge(subSystem,
		"latch_state",
		"Last transmitted latch state")
	// Total number of motor run commands per motor & command
	motorRunTotal = metrics.MustRegisterCounterVec(subSystem,
		"motor_run_total",
		"Total number of motor run commands",
		"motor", "command")
	// Current motor duty per motor
	motorDuty = metrics.MustRegisterGaugeVec(subSystem,
		"motor_duty",
		"Current duty cycle per motor",
		"motor")
	// Total number of steps per stepper & style
	stepperStepsTotal = metrics.MustRegisterCounterVec(subSystem,
		"stepper_steps_total",
		"Total number of single steps per stepper & style",
		"stepper", "style")
	// Current phase per stepper
	stepperPhase = metrics.MustRegisterGaugeVec(subSystem,
		"stepper_phase",
		"Current electrical phase per stepper",
		"stepper")
	// Current servo angle per servo
	servoAngle = metrics.MustRegisterGaugeVec(subSystem,
		"servo_angle",
		"Current angle value per servo",
		"servo")
)
