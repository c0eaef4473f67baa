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
	"fmt"
	"strings"
)

// PortMode selects what is connected to one of the two motor ports.
type PortMode uint8

const (
	// PortTwoMotors connects two DC motors to the port.
	PortTwoMotors PortMode = iota
	// PortStepper connects a single stepper to the port.
	PortStepper
	// PortMotorFirst connects a DC motor to the first slot of the port only.
	PortMotorFirst
	// PortMotorSecond connects a DC motor to the second slot of the port only.
	PortMotorSecond
	// PortEmpty leaves the port unused.
	PortEmpty
)

var portModeNames = map[PortMode]string{
	PortTwoMotors:   "two-motors",
	PortStepper:     "stepper",
	PortMotorFirst:  "motor-first",
	PortMotorSecond: "motor-second",
	PortEmpty:       "empty",
}

func (m PortMode) String() string {
	if name, found := portModeNames[m]; found {
		return name
	}
	return fmt.Sprintf("PortMode(%d)", uint8(m))
}

// ParsePortMode parses the name of a port mode.
func ParsePortMode(s string) (PortMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for mode, name := range portModeNames {
		if name == s {
			return mode, nil
		}
	}
	return PortEmpty, invalidArgument("unknown port mode '%s'", s)
}

// Layout describes what is connected to both ports of the shield.
type Layout struct {
	Port1 PortMode
	Port2 PortMode
}

// DefaultLayout returns the layout with two DC motors on port 1.
func DefaultLayout() Layout {
	return Layout{
		Port1: PortTwoMotors,
		Port2: PortEmpty,
	}
}

// ParseLayout parses the port modes of both ports.
func ParseLayout(port1, port2 string) (Layout, error) {
	p1, err := ParsePortMode(port1)
	if err != nil {
		return Layout{}, err
	}
	p2, err := ParsePortMode(port2)
	if err != nil {
		return Layout{}, err
	}
	return Layout{Port1: p1, Port2: p2}, nil
}

func (l Layout) String() string {
	return l.Port1.String() + "/" + l.Port2.String()
}

// hasMotorFirst returns true if the mode puts a motor in the first slot.
func (m PortMode) hasMotorFirst() bool {
	return m == PortTwoMotors || m == PortMotorFirst
}

// hasMotorSecond returns true if the mode puts a motor in the second slot.
func (m PortMode) hasMotorSecond() bool {
	return m == PortTwoMotors || m == PortMotorSecond
}
