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

// PWMChannel is a single pulse width modulated output of one of
// the timers of the shield.
type PWMChannel interface {
	// SetDuty sets the duty cycle of the channel (0 = off, 255 = fully on).
	SetDuty(duty uint8) error
	// Enable arms the channel.
	Enable() error
	// Disable disarms the channel.
	Disable() error
}

// Timer groups the two PWM channels driven by a single hardware timer.
type Timer struct {
	A PWMChannel
	B PWMChannel
}

// IsEmpty returns true when neither channel is available.
func (t Timer) IsEmpty() bool {
	return t.A == nil && t.B == nil
}
