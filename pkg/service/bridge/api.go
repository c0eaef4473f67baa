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

package bridge

import (
	"time"
)

// API of the bridge, the hardware that connects the host to the
// shift register lines of the motor shield and to the I2C bus
// the PWM & ADC chips are connected to.
type API interface {
	// Turn status led on/off
	SetStatusLED(on bool) error
	// Turn activity led on/off
	SetActivityLED(on bool) error
	// Blink status led with given duration between on/off
	BlinkStatusLED(delay time.Duration) error
	// Blink activity led with given duration between on/off
	BlinkActivityLED(delay time.Duration) error

	// Open the I2C bus
	I2CBus() (I2CBus, error)

	// Output initializes a GPIO output pin with the given pin number
	// and initial logical value.
	Output(pinNumber int, activeLow bool, initialValue bool) (OutputPin, error)

	// IsVirtual returns true when the bridge is not backed by hardware.
	IsVirtual() bool

	Close() error
}

// OutputPin is the interface satisfied by GPIO output pins.
type OutputPin interface {
	Write(bool) error
}

// Config of a hardware bridge.
type Config struct {
	// Path of the I2C bus device
	I2CBusPath string
	// GPIO pin of the status led (-1 if not connected)
	StatusLEDPin int
	// GPIO pin of the activity led (-1 if not connected)
	ActivityLEDPin int
}
