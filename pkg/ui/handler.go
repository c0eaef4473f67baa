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
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
)

// UI serves the status screen over SSH.
type UI struct {
	ctrl      Controller
	startedAt time.Time
}

// New creates a UI for the given controller.
func New(ctrl Controller) *UI {
	return &UI{
		ctrl:      ctrl,
		startedAt: time.Now(),
	}
}

// Handler creates a model for a new SSH session.
func (u *UI) Handler(s ssh.Session) (tea.Model, []tea.ProgramOption) {
	return NewRoot(u.ctrl, u.startedAt), []tea.ProgramOption{tea.WithAltScreen()}
}
