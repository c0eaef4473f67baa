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

package devices

import (
	"github.com/binkynet/MotorShield/pkg/metrics"
)

const (
	subSystem = "devices"
)

var (
	// Number of devices created
	devicesCreatedTotal = metrics.MustRegisterGauge(subSystem,
		"created_total",
		"Number of devices created")
	// Number of devices configured
	devicesConfiguredTotal = metrics.MustRegisterGauge(subSystem,
		"configured_total",
		"Number of devices successfully configured")
	// Total number of PWM channel writes
	pwmWritesTotal = metrics.MustRegisterCounter(subSystem,
		"pwm_writes_total",
		"Total number of PWM channel writes")
	// Total number of ADC conversions per address
	adcConversionsTotal = metrics.MustRegisterCounterVec(subSystem,
		"adc_conversions_total",
		"Total number of ADC conversions",
		"address")
)
