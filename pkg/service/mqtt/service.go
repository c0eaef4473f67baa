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

package mqtt

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	mqttapi "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/binkynet/MotorShield/pkg/service/control"
	"github.com/binkynet/MotorShield/pkg/service/util"
	"github.com/binkynet/MotorShield/pkg/shield"
)

// Controller is the part of the shield controller reachable over MQTT.
type Controller interface {
	RunMotor(id int, cmd shield.MotorCommand) error
	SetMotorSpeed(id int, duty uint8) error
	SetStepperSpeed(id int, rpm uint16) error
	StartStepper(id int, steps uint32, dir shield.Direction, style shield.Style, done func(error)) error
	ReleaseStepper(id int) error
	SetServoAngle(id int, angle uint8) error
	StopAll() error
}

// Config of the MQTT service.
type Config struct {
	// Address (host:port) of the broker
	BrokerAddress string
	// Client ID used to connect to the broker
	ClientID string
	// Prefix of all topics, ending with '/'
	TopicPrefix string
}

const (
	publishTimeout = time.Millisecond * 200
	connectTimeout = time.Second * 5
	qosDefault     = 0
)

// Service connects the controller to an MQTT broker.
// Commands are received on:
//
//	<prefix>motor/<id>/run       release|forward|backward
//	<prefix>motor/<id>/speed     0..255
//	<prefix>stepper/<id>/speed   rpm
//	<prefix>stepper/<id>/step    <steps> [forward|backward] [single|double|interleave|microstep]
//	<prefix>stepper/<id>/release
//	<prefix>servo/<id>/angle     0..255
//	<prefix>stop
//
// The latch state is published on <prefix>latch/state and the outcome
// of stepper moves on <prefix>status/stepper/<id>.
type Service struct {
	log    zerolog.Logger
	config Config
	ctrl   Controller
	events *control.Events
}

// NewService creates a new MQTT service.
func NewService(config Config, ctrl Controller, events *control.Events, log zerolog.Logger) *Service {
	if !strings.HasSuffix(config.TopicPrefix, "/") {
		config.TopicPrefix += "/"
	}
	return &Service{
		log:    log.With().Str("component", "mqtt").Logger(),
		config: config,
		ctrl:   ctrl,
		events: events,
	}
}

// LatchTopic returns the topic the latch state is published on.
func (s *Service) LatchTopic() string {
	return s.config.TopicPrefix + "latch/state"
}

// LogTopic returns the topic logs are published on.
func (s *Service) LogTopic() string {
	return s.config.TopicPrefix + "logs"
}

// Run the service until the given context is canceled.
// Lost connections are re-established.
func (s *Service) Run(ctx context.Context, onConnect func(Publisher)) error {
	return util.UntilCanceled(ctx, s.log, "mqtt session", func(ctx context.Context) error {
		return s.runSession(ctx, onConnect)
	})
}

// runSession connects to the broker and serves until the context is
// canceled or the connection is lost.
func (s *Service) runSession(ctx context.Context, onConnect func(Publisher)) error {
	log := s.log
	lost := make(chan error, 1)
	opts := mqttapi.NewClientOptions().
		AddBroker("tcp://" + s.config.BrokerAddress).
		SetClientID(s.config.ClientID)
	opts.SetKeepAlive(2 * time.Second)
	opts.SetPingTimeout(1 * time.Second)
	opts.SetOrderMatters(false)
	opts.SetAutoReconnect(false)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetDefaultPublishHandler(func(c mqttapi.Client, m mqttapi.Message) {
		// Ignore messages when no subscription match
	})
	opts.SetConnectionLostHandler(func(c mqttapi.Client, err error) {
		select {
		case lost <- err:
		default:
		}
	})

	// Connect client
	client := mqttapi.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to mqtt: %w", token.Error())
	}
	defer client.Disconnect(250)
	connectsTotal.Inc()
	log.Info().Str("broker", s.config.BrokerAddress).Msg("Connected to MQTT broker")

	filters := map[string]byte{}
	for _, f := range s.CommandFilters() {
		filters[f] = qosDefault
	}
	if token := client.SubscribeMultiple(filters, s.onMessage); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe: %w", token.Error())
	}

	pub := &clientPublisher{client: client}
	unsubscribe := s.events.SubscribeLatch(func(e control.LatchEvent) {
		pub.publishAsync(s.LatchTopic(), strconv.Itoa(int(e.State)))
	})
	defer unsubscribe()
	if onConnect != nil {
		onConnect(pub)
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-lost:
		return fmt.Errorf("connection lost: %w", err)
	}
}

// CommandFilters returns the topic filters of all commands.
func (s *Service) CommandFilters() []string {
	p := s.config.TopicPrefix
	return []string{
		p + "motor/+/+",
		p + "stepper/+/+",
		p + "servo/+/+",
		p + "stop",
	}
}

// onMessage handles a received command
func (s *Service) onMessage(client mqttapi.Client, msg mqttapi.Message) {
	if err := s.handleCommand(msg.Topic(), msg.Payload(), func(topic, payload string) {
		(&clientPublisher{client: client}).publishAsync(topic, payload)
	}); err != nil {
		commandErrorsTotal.Inc()
		s.log.Warn().Err(err).Str("topic", msg.Topic()).Msg("Command failed")
	}
}

// handleCommand executes the command for the given topic.
func (s *Service) handleCommand(topic string, payload []byte, publish func(topic, payload string)) error {
	commandsTotal.Inc()
	parts := strings.Split(strings.TrimPrefix(topic, s.config.TopicPrefix), "/")
	value := strings.TrimSpace(string(payload))
	if len(parts) == 1 && parts[0] == "stop" {
		return s.ctrl.StopAll()
	}
	if len(parts) != 3 {
		return invalidArgument("unknown topic '%s'", topic)
	}
	id, err := strconv.Atoi(parts[1])
	if err != nil {
		return invalidArgument("invalid id '%s'", parts[1])
	}
	switch parts[0] + "/" + parts[2] {
	case "motor/run":
		cmd, err := shield.ParseMotorCommand(value)
		if err != nil {
			return err
		}
		return s.ctrl.RunMotor(id, cmd)
	case "motor/speed":
		duty, err := parseUint(value, 8)
		if err != nil {
			return err
		}
		return s.ctrl.SetMotorSpeed(id, uint8(duty))
	case "stepper/speed":
		rpm, err := parseUint(value, 16)
		if err != nil {
			return err
		}
		return s.ctrl.SetStepperSpeed(id, uint16(rpm))
	case "stepper/step":
		steps, dir, style, err := ParseStep(value)
		if err != nil {
			return err
		}
		statusTopic := fmt.Sprintf("%sstatus/stepper/%d", s.config.TopicPrefix, id)
		return s.ctrl.StartStepper(id, steps, dir, style, func(err error) {
			if publish == nil {
				return
			}
			if err != nil {
				publish(statusTopic, "error: "+err.Error())
			} else {
				publish(statusTopic, "done")
			}
		})
	case "stepper/release":
		return s.ctrl.ReleaseStepper(id)
	case "servo/angle":
		angle, err := parseUint(value, 8)
		if err != nil {
			return err
		}
		return s.ctrl.SetServoAngle(id, uint8(angle))
	default:
		return invalidArgument("unknown topic '%s'", topic)
	}
}

// ParseStep parses a step command: <steps> [direction] [style]
func ParseStep(value string) (uint32, shield.Direction, shield.Style, error) {
	fields := strings.Fields(value)
	if len(fields) == 0 || len(fields) > 3 {
		return 0, shield.Forward, shield.Single, invalidArgument("expected '<steps> [direction] [style]', got '%s'", value)
	}
	steps, err := parseUint(fields[0], 32)
	if err != nil {
		return 0, shield.Forward, shield.Single, err
	}
	var dirText, styleText string
	if len(fields) > 1 {
		dirText = fields[1]
	}
	if len(fields) > 2 {
		styleText = fields[2]
	}
	dir, err := shield.ParseDirection(dirText)
	if err != nil {
		return 0, shield.Forward, shield.Single, err
	}
	style, err := shield.ParseStyle(styleText)
	if err != nil {
		return 0, shield.Forward, shield.Single, err
	}
	return uint32(steps), dir, style, nil
}

func parseUint(value string, bitSize int) (uint64, error) {
	result, err := strconv.ParseUint(value, 10, bitSize)
	if err != nil {
		return 0, invalidArgument("invalid number '%s'", value)
	}
	return result, nil
}

func invalidArgument(format string, args ...interface{}) error {
	return errors.Wrapf(shield.InvalidArgumentError, format, args...)
}
