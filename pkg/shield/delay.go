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

import "time"

// Delayer blocks the caller for a whole number of milliseconds.
// There is no way to cancel or yield from a delay.
type Delayer interface {
	DelayMs(ms uint32)
}

// SleepDelayer implements Delayer using time.Sleep.
type SleepDelayer struct{}

// DelayMs sleeps for the given number of milliseconds.
func (SleepDelayer) DelayMs(ms uint32) {
	if ms > 0 {
		time.Sleep(time.Duration(ms) * time.Millisecond)
	}
}
