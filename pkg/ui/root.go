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
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/binkynet/MotorShield/pkg/shield"
)

// Controller is the part of the shield controller used by the UI.
type Controller interface {
	Status() shield.Status
	StopAll() error
}

const (
	statusRefreshInterval = time.Millisecond * 250
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().Width(10).Foreground(lipgloss.Color("8"))
	onStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	offStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type Root struct {
	ctrl      Controller
	startedAt time.Time
	width     int
	height    int
	loadAvg   string
	status    shield.Status
	message   string

	showFile struct {
		active   bool
		viewPort viewport.Model
	}
}

var _ tea.Model = Root{}

// NewRoot creates the root model showing the status of the given controller.
func NewRoot(ctrl Controller, startedAt time.Time) Root {
	return Root{
		ctrl:      ctrl,
		startedAt: startedAt,
		status:    ctrl.Status(),
	}
}

// Init is the first function that will be called. It returns an optional
// initial command. To not perform an initial command return nil.
func (r Root) Init() tea.Cmd {
	return tea.Batch(doReloadCPULoadAvg(), doRefreshStatus(r.ctrl))
}

// Update is called when a message is received. Use it to inspect messages
// and, in response, update the model and/or send a command.
func (r Root) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case loadAvgMsg:
		r.loadAvg = string(msg)
		return r, doReloadCPULoadAvg()
	case statusMsg:
		r.status = shield.Status(msg)
		return r, doRefreshStatus(r.ctrl)
	case tea.WindowSizeMsg:
		r.height = msg.Height
		r.width = msg.Width
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return r, tea.Quit
		case "s":
			if err := r.ctrl.StopAll(); err != nil {
				r.message = errStyle.Render("Stop failed: " + err.Error())
			} else {
				r.message = "All motors stopped"
			}
			r.status = r.ctrl.Status()
		case "k":
			r = r.openFile("/proc/kmsg")
		case "m":
			r = r.openFile("/proc/meminfo")
		case "esc":
			r.showFile.active = false
		}
	}

	// Handle keyboard and mouse events in the viewport
	if r.showFile.active {
		var cmd tea.Cmd
		r.showFile.viewPort, cmd = r.showFile.viewPort.Update(msg)
		cmds = append(cmds, cmd)
	}

	return r, tea.Batch(cmds...)
}

// View renders the program's UI, which is just a string. The view is
// rendered after every Update.
func (r Root) View() string {
	s := r.headerView()
	if r.showFile.active {
		return s + r.showFile.viewPort.View()
	}
	s += r.statusView()
	if r.message != "" {
		s += r.message + "\n"
	}
	s += `
s - Stop all motors
k - View /proc/kmsg
m - View /proc/meminfo
q - Disconnect
`
	return s
}

func (r Root) headerView() string {
	uptime := humanize.RelTime(r.startedAt, time.Now(), "", "")
	return lipgloss.JoinHorizontal(lipgloss.Left,
		titleStyle.Render("Motor shield"),
		" up "+strings.TrimSpace(uptime)+"  ",
		r.loadAvg,
	) + "\n"
}

func (r Root) statusView() string {
	st := r.status
	var b strings.Builder
	line := func(label, value string) {
		b.WriteString(labelStyle.Render(label) + value + "\n")
	}
	line("Layout", st.Layout)
	line("Latch", formatLatch(st.Latch))
	for _, m := range st.Motors {
		line(fmt.Sprintf("Motor %d", m.ID),
			fmt.Sprintf("%-8s duty %3d %s", m.Run, m.Duty, formatEnabled(m.Enabled)))
	}
	for _, s := range st.Steppers {
		state := "idle"
		if s.Moving {
			state = "moving"
		}
		line(fmt.Sprintf("Stepper %d", s.ID),
			fmt.Sprintf("phase %2d %s us/step %s %s", s.Phase,
				humanize.Comma(int64(s.MicrosecondsPerStep)), state, formatEnabled(s.Enabled)))
	}
	for _, s := range st.Servos {
		line(fmt.Sprintf("Servo %d", s.ID),
			fmt.Sprintf("angle %3d %s", s.Angle, formatEnabled(s.Enabled)))
	}
	return b.String()
}

// formatLatch renders the latch bits, most significant bit first.
func formatLatch(state uint8) string {
	var b strings.Builder
	for bit := 7; bit >= 0; bit-- {
		if state&(1<<uint(bit)) != 0 {
			b.WriteString(onStyle.Render("1"))
		} else {
			b.WriteString(offStyle.Render("0"))
		}
	}
	return b.String()
}

func formatEnabled(enabled bool) string {
	if enabled {
		return onStyle.Render("enabled")
	}
	return offStyle.Render("disabled")
}

func (r Root) openFile(path string) Root {
	headerHeight := lipgloss.Height(r.headerView())

	content, err := os.ReadFile(path)
	if err != nil {
		content = []byte(err.Error())
	}
	r.showFile.viewPort = viewport.New(r.width, r.height-headerHeight)
	r.showFile.viewPort.YPosition = headerHeight
	r.showFile.viewPort.SetContent(string(content))
	r.showFile.active = true

	return r
}

type loadAvgMsg string

func doReloadCPULoadAvg() tea.Cmd {
	return tea.Tick(time.Second*2, func(t time.Time) tea.Msg {
		if content, err := os.ReadFile("/proc/loadavg"); err != nil {
			return loadAvgMsg(err.Error())
		} else {
			return loadAvgMsg(strings.TrimSpace(string(content)))
		}
	})
}

type statusMsg shield.Status

func doRefreshStatus(ctrl Controller) tea.Cmd {
	return tea.Tick(statusRefreshInterval, func(t time.Time) tea.Msg {
		return statusMsg(ctrl.Status())
	})
}
