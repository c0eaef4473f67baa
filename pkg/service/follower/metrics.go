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

package follower

import (
	"github.com/binkynet/MotorShield/pkg/metrics"
)

const (
	subSystem = "follower"
)

var (
	// Total number of follower iterations
	iterationsTotal = metrics.MustRegisterCounter(subSystem,
		"iterations_total",
		"Total number of line follower iterations")
	// Total number of failed sensor reads
	sensorErrorsTotal = metrics.MustRegisterCounter(subSystem,
		"sensor_errors_total",
		"Total number of failed sensor reads")
	// Total number of watchdog expirations
	watchdogExpiredTotal = metrics.MustRegisterCounter(subSystem,
		"watchdog_expired_total",
		"Total number of watchdog expirations")
	// Last value per sensor
	sensorValue = metrics.MustRegisterGaugeVec(subSystem,
		"sensor_value",
		"Last value of a line sensor",
		"sensor")
	// Last decision per kind
	decisionsTotal = metrics.MustRegisterCounterVec(subSystem,
		"decisions_total",
		"Total number of steering decisions",
		"decision")
)
