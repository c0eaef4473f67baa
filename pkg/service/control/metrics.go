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
	"github.com/binkynet/MotorShield/pkg/metrics"
)

const (
	subSystem = "control"
)

var (
	// Total number of commands per kind
	commandsTotal = metrics.MustRegisterCounterVec(subSystem,
		"commands_total",
		"Total number of commands",
		"kind")
	// Total number of failed commands per kind
	commandErrorsTotal = metrics.MustRegisterCounterVec(subSystem,
		"command_errors_total",
		"Total number of failed commands",
		"kind")
	// Total number of stepper moves refused because the stepper was busy
	stepperBusyTotal = metrics.MustRegisterCounter(subSystem,
		"stepper_busy_total",
		"Total number of stepper moves refused because the stepper was moving")
	// Total number of latch events published
	latchEventsTotal = metrics.MustRegisterCounter(subSystem,
		"latch_events_total",
		"Total number of latch events published")
)
