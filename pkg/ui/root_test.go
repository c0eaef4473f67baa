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

package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binkynet/MotorShield/pkg/shield"
)

type fakeController struct {
	status shield.Status
	stops  int
}

func (c *fakeController) Status() shield.Status { return c.status }

func (c *fakeController) StopAll() error {
	c.stops++
	for i := range c.status.Motors {
		c.status.Motors[i].Run = shield.MotorRelease.String()
	}
	return nil
}

func TestRootView(t *testing.T) {
	ctrl := &fakeController{status: shield.Status{
		Layout: "two-motors/stepper",
		Latch:  0x05,
		Motors: []shield.MotorStatus{
			{ID: 1, Run: "forward", Duty: 200, Enabled: true},
		},
		Steppers: []shield.StepperStatus{
			{ID: 2, Phase: 24, MicrosecondsPerStep: 20833, Moving: true},
		},
		Servos: []shield.ServoStatus{{ID: 1, Angle: 90}},
	}}
	r := NewRoot(ctrl, time.Now().Add(-time.Hour))
	view := r.View()
	assert.Contains(t, view, "two-motors/stepper")
	assert.Contains(t, view, "forward")
	assert.Contains(t, view, "20,833")
	assert.Contains(t, view, "moving")
	assert.Contains(t, view, "angle  90")
}

func TestRootStopAll(t *testing.T) {
	ctrl := &fakeController{status: shield.Status{
		Motors: []shield.MotorStatus{{ID: 1, Run: "forward"}},
	}}
	r := NewRoot(ctrl, time.Now())
	m, _ := r.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	r = m.(Root)
	assert.Equal(t, 1, ctrl.stops)
	assert.Equal(t, "release", r.status.Motors[0].Run)
	assert.Contains(t, r.View(), "All motors stopped")
}

func TestRootStatusRefresh(t *testing.T) {
	ctrl := &fakeController{}
	r := NewRoot(ctrl, time.Now())
	m, cmd := r.Update(statusMsg(shield.Status{Layout: "stepper/empty"}))
	require.NotNil(t, cmd)
	assert.True(t, strings.Contains(m.View(), "stepper/empty"))
}

func TestFormatLatch(t *testing.T) {
	assert.Equal(t, "10000001", stripANSI(formatLatch(0x81)))
	assert.Equal(t, "00000101", stripANSI(formatLatch(0x05)))
}

// stripANSI removes ANSI escape sequences.
func stripANSI(s string) string {
	var b strings.Builder
	inEscape := false
	for _, c := range s {
		switch {
		case c == '\x1b':
			inEscape = true
		case inEscape:
			if c == 'm' {
				inEscape = false
			}
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}
