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
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/binkynet/MotorShield/pkg/service/devices"
	"github.com/binkynet/MotorShield/pkg/service/util"
	"github.com/binkynet/MotorShield/pkg/shield"
)

// SensorCount is the number of reflectance sensors, from left to right.
const SensorCount = 6

// Controller is the part of the shield controller used by the follower.
type Controller interface {
	EnableMotor(id int) error
	RunMotor(id int, cmd shield.MotorCommand) error
	SetMotorSpeeds(speeds ...shield.MotorSpeed) error
	StopAll() error
}

// Sensor is a single analog input.
type Sensor struct {
	ADC devices.ADC
	Pin int
}

// Config of the line follower.
type Config struct {
	// Sensors from left to right
	Sensors [SensorCount]Sensor
	// Left & right motor
	Motors [2]int
	// Duty cycle of a motor that drives
	MaxSpeed uint8
	// Time between iterations
	Interval time.Duration
	// Motors are stopped when no iteration succeeds within this time
	Watchdog time.Duration
}

// Decision is the steering outcome of a single iteration.
type Decision uint8

const (
	// Straight drives both motors
	Straight Decision = iota
	// TurnLeft drives the left motor only
	TurnLeft
	// TurnRight drives the right motor only
	TurnRight
)

func (d Decision) String() string {
	switch d {
	case TurnLeft:
		return "left"
	case TurnRight:
		return "right"
	default:
		return "straight"
	}
}

// Decide picks a steering decision from the sensor values.
// Sensors are summed pairwise into left, center & right.
func Decide(values [SensorCount]int) Decision {
	left := values[0] + values[1]
	center := values[2] + values[3]
	right := values[4] + values[5]
	if left > center && left > right {
		return TurnLeft
	} else if right > center {
		return TurnRight
	}
	return Straight
}

// Speeds returns the duty cycles of the left & right motor for a decision.
func (d Decision) Speeds(maxSpeed uint8) (left, right uint8) {
	switch d {
	case TurnLeft:
		return maxSpeed, 0
	case TurnRight:
		return 0, maxSpeed
	default:
		return maxSpeed, maxSpeed
	}
}

// Follower steers two motors based on six line sensors.
type Follower struct {
	log      zerolog.Logger
	config   Config
	ctrl     Controller
	watchdog *watchdog
	started  bool
}

// New creates a line follower.
func New(config Config, ctrl Controller, log zerolog.Logger) (*Follower, error) {
	for i, s := range config.Sensors {
		if s.ADC == nil {
			return nil, errors.Wrapf(shield.InvalidArgumentError, "sensor %d has no ADC", i+1)
		}
	}
	if config.Interval <= 0 || config.Watchdog <= 0 {
		return nil, errors.Wrap(shield.InvalidArgumentError, "interval and watchdog must be positive")
	}
	f := &Follower{
		log:    log.With().Str("component", "follower").Logger(),
		config: config,
		ctrl:   ctrl,
	}
	f.watchdog = newWatchdog(config.Watchdog, f.onWatchdogExpired)
	return f, nil
}

// Run the follower until the given context is canceled.
// All motors are stopped when it returns.
func (f *Follower) Run(ctx context.Context) error {
	log := f.log
	defer func() {
		if err := f.ctrl.StopAll(); err != nil {
			log.Warn().Err(err).Msg("Failed to stop motors")
		}
	}()
	go f.watchdog.Run(ctx)
	return util.UntilCanceled(ctx, log, "line follower", f.run)
}

// run iterates until an error occurs.
func (f *Follower) run(ctx context.Context) error {
	ticker := time.NewTicker(f.config.Interval)
	defer ticker.Stop()
	for {
		if err := f.iterate(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// start enables both motors and sets them running forward.
func (f *Follower) start() error {
	for _, id := range f.config.Motors {
		if err := f.ctrl.EnableMotor(id); err != nil {
			return err
		}
		if err := f.ctrl.RunMotor(id, shield.MotorForward); err != nil {
			return err
		}
	}
	f.log.Info().Ints("motors", f.config.Motors[:]).Msg("Motors started")
	return nil
}

// iterate performs one read-decide-drive cycle and feeds the watchdog.
func (f *Follower) iterate(ctx context.Context) error {
	values, err := f.read(ctx)
	if err != nil {
		sensorErrorsTotal.Inc()
		return err
	}
	if !f.started {
		if err := f.start(); err != nil {
			return err
		}
		f.started = true
	}
	d := Decide(values)
	left, right := d.Speeds(f.config.MaxSpeed)
	if err := f.ctrl.SetMotorSpeeds(
		shield.MotorSpeed{ID: f.config.Motors[0], Duty: left},
		shield.MotorSpeed{ID: f.config.Motors[1], Duty: right},
	); err != nil {
		return err
	}
	iterationsTotal.Inc()
	decisionsTotal.WithLabelValues(d.String()).Inc()
	if f.watchdog.Feed() {
		// Motors were released by the watchdog
		f.log.Info().Msg("Watchdog fed again; restarting motors")
		if err := f.start(); err != nil {
			return err
		}
	}
	return nil
}

// read all sensors.
func (f *Follower) read(ctx context.Context) ([SensorCount]int, error) {
	var values [SensorCount]int
	for i, s := range f.config.Sensors {
		v, err := s.ADC.Get(ctx, s.Pin)
		if err != nil {
			return values, errors.Wrapf(err, "failed to read sensor %d", i+1)
		}
		values[i] = v
		sensorValue.WithLabelValues(strconv.Itoa(i + 1)).Set(float64(v))
	}
	return values, nil
}

func (f *Follower) onWatchdogExpired() {
	f.log.Warn().Dur("timeout", f.config.Watchdog).Msg("Watchdog expired; stopping all motors")
	if err := f.ctrl.StopAll(); err != nil {
		f.log.Error().Err(err).Msg("Failed to stop motors")
	}
}
