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

package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/binkynet/MotorShield/pkg/cli"
	"github.com/binkynet/MotorShield/pkg/config"
	"github.com/binkynet/MotorShield/pkg/environment"
	"github.com/binkynet/MotorShield/pkg/logging"
	"github.com/binkynet/MotorShield/pkg/server"
	"github.com/binkynet/MotorShield/pkg/service/bridge"
	"github.com/binkynet/MotorShield/pkg/service/control"
	"github.com/binkynet/MotorShield/pkg/service/devices"
	"github.com/binkynet/MotorShield/pkg/service/follower"
	"github.com/binkynet/MotorShield/pkg/service/mqtt"
	"github.com/binkynet/MotorShield/pkg/shield"
	"github.com/binkynet/MotorShield/pkg/ui"
)

const (
	defaultModuleID = "motorshield"
	latchBlinkDelay = time.Millisecond * 50
)

// Service runs the motor shield and all its frontends.
type Service interface {
	// Run the service until the given context is canceled.
	Run(ctx context.Context) error
}

// Config of the service.
type Config struct {
	config.Config
	ProgramVersion string
	// If set, an interactive shell is run on stdin/stdout
	Shell bool
}

// Dependencies of the service.
type Dependencies struct {
	Logger zerolog.Logger
	Bridge bridge.API
	// Optional log output that is connected to MQTT
	MQTTWriter logging.MQTTWriter
}

type service struct {
	Config
	Dependencies
}

// components created during setup.
type components struct {
	devices    devices.Service
	shield     *shield.Shield
	controller *control.Controller
	follower   *follower.Follower
	mqtt       *mqtt.Service
	server     *server.Server
}

// NewService creates a Service instance and returns it.
func NewService(conf Config, deps Dependencies) (Service, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if deps.Bridge == nil {
		return nil, errors.New("bridge is required")
	}
	if conf.ModuleID == "" {
		hostID, err := environment.HostID()
		if err != nil {
			deps.Logger.Warn().Err(err).Msg("Failed to create host ID")
			hostID = defaultModuleID
		}
		conf.ModuleID = hostID
	}
	deps.Logger = deps.Logger.With().
		Str("component", "service").
		Str("module-id", conf.ModuleID).
		Logger()
	return &service{
		Config:       conf,
		Dependencies: deps,
	}, nil
}

// Run configures the devices & shield and then runs all subsystems
// until the given context is canceled.
func (s *service) Run(ctx context.Context) error {
	log := s.Logger
	defer s.Bridge.Close()

	s.Bridge.BlinkStatusLED(time.Millisecond * 250)
	s.Bridge.SetActivityLED(false)

	startsTotal.Inc()
	c, err := s.setup(ctx)
	if err != nil {
		setupFailuresTotal.Inc()
		s.Bridge.SetStatusLED(false)
		return err
	}
	defer func() {
		if err := c.controller.StopAll(); err != nil {
			log.Warn().Err(err).Msg("Failed to stop all units")
		}
		if err := c.devices.Close(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Failed to close devices")
		}
		s.Bridge.SetStatusLED(false)
	}()
	s.Bridge.SetStatusLED(true)
	log.Info().
		Str("layout", c.shield.Layout().String()).
		Str("version", s.ProgramVersion).
		Msg("Motor shield ready")

	// Blink activity led on every latch transmit
	unsubscribe := c.controller.Events().SubscribeLatch(func(control.LatchEvent) {
		s.Bridge.BlinkActivityLED(latchBlinkDelay)
	})
	defer unsubscribe()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.devices.Run(ctx) })
	g.Go(func() error { return c.server.Run(ctx) })
	if c.follower != nil {
		g.Go(func() error { return c.follower.Run(ctx) })
	}
	if c.mqtt != nil {
		g.Go(func() error { return c.mqtt.Run(ctx, s.onMQTTConnect(c.mqtt)) })
	}
	if s.Shell {
		sh := cli.New(c.controller, c.devices, log)
		g.Go(func() error {
			// Exiting the shell stops the service
			defer cancel()
			return sh.Run(ctx)
		})
	}
	return g.Wait()
}

// setup creates all components.
func (s *service) setup(ctx context.Context) (*components, error) {
	log := s.Logger
	bus, err := s.Bridge.I2CBus()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open I2C bus")
	}
	devs, err := devices.NewService(s.DevicesConfig(s.Bridge.IsVirtual()), s.Bridge, bus, log)
	if err != nil {
		return nil, err
	}
	if err := devs.Configure(ctx); err != nil {
		// Missing devices are reported when they are used
		log.Warn().Err(err).
			Strs("unconfigured", devs.GetUnconfiguredDeviceIDs()).
			Strs("detected", devs.DetectAddresses()).
			Msg("Not all devices could be configured")
	}

	hw, err := s.hardware(devs)
	if err != nil {
		devs.Close(ctx)
		return nil, err
	}
	layout, err := s.ShieldLayout()
	if err != nil {
		devs.Close(ctx)
		return nil, err
	}
	events := control.NewEvents()
	sh, err := shield.New(layout, hw,
		shield.WithLogger(log),
		shield.WithStepsPerRevolution(s.Stepper.StepsPerRevolution),
		shield.WithLatchObserver(events.PublishLatch))
	if err != nil {
		devs.Close(ctx)
		return nil, errors.Wrap(err, "failed to initialize shield")
	}
	ctrl := control.New(sh, events, log)
	if s.Stepper.RPM > 0 {
		for id := 1; id <= sh.StepperCount(); id++ {
			if sh.Stepper(id) != nil {
				if err := ctrl.SetStepperSpeed(id, s.Stepper.RPM); err != nil {
					devs.Close(ctx)
					return nil, err
				}
			}
		}
	}

	c := &components{
		devices:    devs,
		shield:     sh,
		controller: ctrl,
	}
	if s.Follower.Enabled {
		if c.follower, err = s.newFollower(devs, ctrl); err != nil {
			devs.Close(ctx)
			return nil, err
		}
	}
	if s.MQTT.Broker != "" {
		c.mqtt = mqtt.NewService(mqtt.Config{
			BrokerAddress: s.MQTT.Broker,
			ClientID:      s.ModuleID,
			TopicPrefix:   s.TopicPrefix(),
		}, ctrl, events, log)
	}
	c.server, err = server.New(server.Config{
		Host:        s.Server.Host,
		HTTPPort:    s.Server.HTTPPort,
		SSHPort:     s.Server.SSHPort,
		HostKeyPath: s.Server.HostKeyPath,
	}, log, ui.New(ctrl), ctrl)
	if err != nil {
		devs.Close(ctx)
		return nil, err
	}
	return c, nil
}

// hardware collects the latch pins & timer channels of the shield.
func (s *service) hardware(devs devices.Service) (shield.Hardware, error) {
	var hw shield.Hardware
	pins := []struct {
		name string
		pin  int
		dst  *shield.OutputPin
	}{
		{"clock", s.Latch.Clock, &hw.Latch.Clock},
		{"data", s.Latch.Data, &hw.Latch.Data},
		{"latch", s.Latch.Latch, &hw.Latch.Latch},
		{"enable", s.Latch.Enable, &hw.Latch.Enable},
	}
	for _, p := range pins {
		// Start high, so the register outputs stay disabled until the latch is initialized
		out, err := s.Bridge.Output(p.pin, false, true)
		if err != nil {
			return hw, errors.Wrapf(err, "failed to open %s pin %d", p.name, p.pin)
		}
		*p.dst = out
	}
	timers := []struct {
		name string
		cfg  config.TimerConfig
		dst  *shield.Timer
	}{
		{"timer0", s.Timers.Timer0, &hw.Timer0},
		{"timer1", s.Timers.Timer1, &hw.Timer1},
		{"timer2", s.Timers.Timer2, &hw.Timer2},
	}
	for _, t := range timers {
		a, err := devs.Channel(t.cfg.Device, t.cfg.ChannelA)
		if err != nil {
			return hw, errors.Wrapf(err, "%s channel A", t.name)
		}
		b, err := devs.Channel(t.cfg.Device, t.cfg.ChannelB)
		if err != nil {
			return hw, errors.Wrapf(err, "%s channel B", t.name)
		}
		// Leave unconnected channels as nil interface
		if a != nil {
			t.dst.A = a
		}
		if b != nil {
			t.dst.B = b
		}
	}
	return hw, nil
}

// newFollower creates the line follower on the configured sensors.
func (s *service) newFollower(devs devices.Service, ctrl *control.Controller) (*follower.Follower, error) {
	cfg := follower.Config{
		Motors:   [2]int{s.Follower.Motors[0], s.Follower.Motors[1]},
		MaxSpeed: s.Follower.MaxSpeed,
		Interval: s.Follower.Interval,
		Watchdog: s.Follower.Watchdog,
	}
	for i, sc := range s.Follower.Sensors {
		adc, err := devs.ADC(sc.Device)
		if err != nil {
			return nil, errors.Wrapf(err, "sensor %d", i+1)
		}
		cfg.Sensors[i] = follower.Sensor{ADC: adc, Pin: sc.Channel}
	}
	return follower.New(cfg, ctrl, s.Logger)
}

// onMQTTConnect returns the callback that connects the log output
// to a new MQTT session.
func (s *service) onMQTTConnect(m *mqtt.Service) func(mqtt.Publisher) {
	return func(p mqtt.Publisher) {
		if s.MQTTWriter == nil || !s.MQTT.Logs {
			return
		}
		s.MQTTWriter.SetDestination(m.LogTopic(), p)
		s.MQTTWriter.Enable(true)
		s.Logger.Debug().Str("topic", m.LogTopic()).Msg("Publishing logs on MQTT")
	}
}
