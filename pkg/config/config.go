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

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Masterminds/semver"
	"github.com/caarlos0/env/v6"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/binkynet/MotorShield/pkg/service/devices"
	"github.com/binkynet/MotorShield/pkg/shield"
)

const (
	// CurrentVersion is the config file version written by this program.
	CurrentVersion = "1.0.0"
	// versionConstraint is the range of config file versions understood.
	versionConstraint = "~1"

	// BridgeAuto selects the bridge based on the detected environment.
	BridgeAuto = "auto"
	// BridgeRaspberryPi selects the GPIO/I2C bridge of a Raspberry Pi.
	BridgeRaspberryPi = "rpi"
	// BridgeVirtual selects a bridge without hardware.
	BridgeVirtual = "virtual"

	// SensorCount is the number of line follower sensors.
	SensorCount = 6
)

var (
	// InvalidConfigError is the cause of all config validation errors.
	InvalidConfigError = errors.New("invalid config")
	maskAny            = errors.WithStack
)

func invalidConfig(format string, args ...interface{}) error {
	return errors.Wrapf(InvalidConfigError, format, args...)
}

// IsInvalidConfig returns true if the cause of the given error is an InvalidConfigError.
func IsInvalidConfig(err error) bool {
	return err != nil && errors.Cause(err) == InvalidConfigError
}

// Config of the motor shield service.
type Config struct {
	// Version of the config file format
	Version string `yaml:"version"`
	// Identifier of this module, used in MQTT topics.
	// Derived from the machine ID when empty.
	ModuleID string `yaml:"module_id" env:"MOTORSHIELD_MODULE_ID"`
	// Bridge to use: auto|rpi|virtual
	Bridge string `yaml:"bridge" env:"MOTORSHIELD_BRIDGE"`
	// Path of the I2C bus device
	I2CBus string `yaml:"i2c_bus" env:"MOTORSHIELD_I2C_BUS"`
	// GPIO pins of the shift register lines
	Latch LatchConfig `yaml:"latch"`
	// GPIO pins of the leds
	LEDs LEDConfig `yaml:"leds"`
	// PCA9685 devices
	PWMDevices []PWMDeviceConfig `yaml:"pwm_devices"`
	// ADS1115 devices
	ADCDevices []ADCDeviceConfig `yaml:"adc_devices"`
	// Channels that make up the timers of the shield
	Timers TimersConfig `yaml:"timers"`
	// What is connected to the motor ports
	Layout   LayoutConfig   `yaml:"layout"`
	Stepper  StepperConfig  `yaml:"stepper"`
	Follower FollowerConfig `yaml:"follower"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Server   ServerConfig   `yaml:"server"`
}

// LatchConfig holds the GPIO pin numbers of the 74HC595 lines.
type LatchConfig struct {
	Clock  int `yaml:"clock"`
	Data   int `yaml:"data"`
	Latch  int `yaml:"latch"`
	Enable int `yaml:"enable"`
}

// LEDConfig holds the GPIO pin numbers of the leds (-1 if not connected).
type LEDConfig struct {
	Status   int `yaml:"status"`
	Activity int `yaml:"activity"`
}

// PWMDeviceConfig describes a PCA9685 device.
type PWMDeviceConfig struct {
	Address   string  `yaml:"address"`
	Frequency float64 `yaml:"frequency"`
}

// ADCDeviceConfig describes an ADS1115 device.
type ADCDeviceConfig struct {
	Address string `yaml:"address"`
}

// TimerConfig maps the two channels of a shield timer onto
// outputs (1...) of a PWM device. Channel 0 means not connected.
type TimerConfig struct {
	Device   string `yaml:"device"`
	ChannelA int    `yaml:"channel_a"`
	ChannelB int    `yaml:"channel_b"`
}

// TimersConfig holds the three timers of the shield.
type TimersConfig struct {
	Timer0 TimerConfig `yaml:"timer0"`
	Timer1 TimerConfig `yaml:"timer1"`
	Timer2 TimerConfig `yaml:"timer2"`
}

// LayoutConfig holds the port modes.
type LayoutConfig struct {
	Port1 string `yaml:"port1" env:"MOTORSHIELD_PORT1"`
	Port2 string `yaml:"port2" env:"MOTORSHIELD_PORT2"`
}

// StepperConfig holds stepper motor settings.
type StepperConfig struct {
	StepsPerRevolution uint32 `yaml:"steps_per_revolution"`
	// Initial speed in RPM (0 leaves the speed unset)
	RPM uint16 `yaml:"rpm"`
}

// SensorConfig is a single analog sensor input.
type SensorConfig struct {
	Device  string `yaml:"device"`
	Channel int    `yaml:"channel"`
}

// FollowerConfig holds the settings of the line follower.
type FollowerConfig struct {
	Enabled  bool           `yaml:"enabled" env:"MOTORSHIELD_FOLLOWER"`
	Sensors  []SensorConfig `yaml:"sensors"`
	Motors   []int          `yaml:"motors"`
	MaxSpeed uint8          `yaml:"max_speed"`
	Interval time.Duration  `yaml:"interval"`
	Watchdog time.Duration  `yaml:"watchdog"`
}

// MQTTConfig holds the MQTT settings.
type MQTTConfig struct {
	// Address (host:port) of the broker. Empty disables MQTT.
	Broker string `yaml:"broker" env:"MOTORSHIELD_MQTT_BROKER"`
	// Topic prefix. Defaults to /motorshield/<module_id>/
	Prefix string `yaml:"prefix" env:"MOTORSHIELD_MQTT_PREFIX"`
	// If set, logs are published to <prefix>logs
	Logs bool `yaml:"logs"`
}

// ServerConfig holds the settings of the HTTP & SSH servers.
type ServerConfig struct {
	Host        string `yaml:"host" env:"MOTORSHIELD_HOST"`
	HTTPPort    int    `yaml:"http_port" env:"MOTORSHIELD_HTTP_PORT"`
	SSHPort     int    `yaml:"ssh_port" env:"MOTORSHIELD_SSH_PORT"`
	HostKeyPath string `yaml:"host_key_path"`
}

// Default returns a configuration that runs on a virtual bridge.
func Default() Config {
	return Config{
		Version:  CurrentVersion,
		ModuleID: "",
		Bridge:   BridgeAuto,
		I2CBus:   "/dev/i2c-1",
		Latch:    LatchConfig{Clock: 17, Data: 27, Latch: 22, Enable: 23},
		LEDs:     LEDConfig{Status: 5, Activity: 6},
		PWMDevices: []PWMDeviceConfig{
			{Address: "0x60", Frequency: devices.DefaultPWMFrequency},
			{Address: "0x40", Frequency: 50},
		},
		ADCDevices: []ADCDeviceConfig{
			{Address: "0x48"},
			{Address: "0x49"},
		},
		Timers: TimersConfig{
			Timer0: TimerConfig{Device: "0x60", ChannelA: 3, ChannelB: 4},
			Timer1: TimerConfig{Device: "0x40", ChannelA: 1, ChannelB: 2},
			Timer2: TimerConfig{Device: "0x60", ChannelA: 1, ChannelB: 2},
		},
		Layout: LayoutConfig{
			Port1: shield.PortTwoMotors.String(),
			Port2: shield.PortEmpty.String(),
		},
		Stepper: StepperConfig{
			StepsPerRevolution: shield.DefaultStepsPerRevolution,
		},
		Follower: FollowerConfig{
			Sensors: []SensorConfig{
				{Device: "0x48", Channel: 1},
				{Device: "0x48", Channel: 2},
				{Device: "0x48", Channel: 3},
				{Device: "0x48", Channel: 4},
				{Device: "0x49", Channel: 1},
				{Device: "0x49", Channel: 2},
			},
			Motors:   []int{1, 2},
			MaxSpeed: 255,
			Interval: time.Millisecond * 20,
			Watchdog: time.Second * 4,
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			HTTPPort:    7130,
			SSHPort:     7131,
			HostKeyPath: ".ssh/id_ed25519",
		},
	}
}

// Load the configuration from the YAML file at given path (if any),
// on top of the defaults, followed by environment overrides.
func Load(path string) (Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "failed to read config file '%s'", path)
		}
	}
	return Parse(data)
}

// Parse the given YAML content on top of the defaults, followed by
// environment overrides.
func Parse(data []byte) (Config, error) {
	c := Default()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &c); err != nil {
			return Config{}, errors.Wrap(err, "failed to parse config")
		}
	}
	if err := env.Parse(&c); err != nil {
		return Config{}, errors.Wrap(err, "failed to parse environment")
	}
	if err := c.Validate(); err != nil {
		return Config{}, maskAny(err)
	}
	return c, nil
}

// Validate the configuration.
func (c Config) Validate() error {
	version, err := semver.NewVersion(c.Version)
	if err != nil {
		return invalidConfig("invalid version '%s': %s", c.Version, err)
	}
	constraint, err := semver.NewConstraint(versionConstraint)
	if err != nil {
		return maskAny(err)
	}
	if !constraint.Check(version) {
		return invalidConfig("unsupported version '%s', expected %s", c.Version, versionConstraint)
	}
	switch c.Bridge {
	case BridgeAuto, BridgeRaspberryPi, BridgeVirtual:
	default:
		return invalidConfig("unknown bridge '%s'", c.Bridge)
	}
	if _, err := c.ShieldLayout(); err != nil {
		return invalidConfig("invalid layout: %s", err)
	}
	if c.Stepper.StepsPerRevolution == 0 || c.Stepper.StepsPerRevolution > 0xFFFF {
		return invalidConfig("steps_per_revolution must be in 1..65535 range, got %d", c.Stepper.StepsPerRevolution)
	}
	pwms := make(map[string]struct{})
	for _, d := range c.PWMDevices {
		addr, err := devices.ParseAddress(d.Address)
		if err != nil {
			return invalidConfig("pwm device: %s", err)
		}
		pwms[addressKey(addr)] = struct{}{}
	}
	adcs := make(map[string]struct{})
	for _, d := range c.ADCDevices {
		addr, err := devices.ParseAddress(d.Address)
		if err != nil {
			return invalidConfig("adc device: %s", err)
		}
		adcs[addressKey(addr)] = struct{}{}
	}
	for name, t := range map[string]TimerConfig{"timer0": c.Timers.Timer0, "timer1": c.Timers.Timer1, "timer2": c.Timers.Timer2} {
		if t.ChannelA == 0 && t.ChannelB == 0 {
			continue
		}
		if err := checkDevice(pwms, t.Device); err != nil {
			return invalidConfig("%s: %s", name, err)
		}
	}
	if c.Follower.Enabled {
		f := c.Follower
		if len(f.Sensors) != SensorCount {
			return invalidConfig("follower needs %d sensors, got %d", SensorCount, len(f.Sensors))
		}
		for _, s := range f.Sensors {
			if err := checkDevice(adcs, s.Device); err != nil {
				return invalidConfig("follower sensor: %s", err)
			}
		}
		if len(f.Motors) != 2 {
			return invalidConfig("follower needs 2 motors, got %d", len(f.Motors))
		}
		for _, id := range f.Motors {
			if id < 1 || id > shield.MotorCount {
				return invalidConfig("follower motor must be in 1..%d range, got %d", shield.MotorCount, id)
			}
		}
		if f.Interval <= 0 || f.Watchdog <= 0 {
			return invalidConfig("follower interval and watchdog must be positive")
		}
	}
	return nil
}

// ShieldLayout returns the layout of the motor ports.
func (c Config) ShieldLayout() (shield.Layout, error) {
	return shield.ParseLayout(c.Layout.Port1, c.Layout.Port2)
}

// TopicPrefix returns the MQTT topic prefix, ending with a '/'.
func (c Config) TopicPrefix() string {
	prefix := c.MQTT.Prefix
	if prefix == "" {
		prefix = fmt.Sprintf("/motorshield/%s/", c.ModuleID)
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return strings.ToLower(prefix)
}

// DevicesConfig returns the configuration of the device service.
func (c Config) DevicesConfig(virtual bool) devices.Config {
	result := devices.Config{Virtual: virtual}
	for _, d := range c.PWMDevices {
		result.PWMs = append(result.PWMs, devices.PWMConfig{Address: d.Address, Frequency: d.Frequency})
	}
	for _, d := range c.ADCDevices {
		result.ADCs = append(result.ADCs, devices.ADCConfig{Address: d.Address})
	}
	return result
}

// Marshal the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, maskAny(err)
	}
	return data, nil
}

func addressKey(addr uint8) string {
	return fmt.Sprintf("0x%02x", addr)
}

func checkDevice(known map[string]struct{}, address string) error {
	addr, err := devices.ParseAddress(address)
	if err != nil {
		return err
	}
	if _, found := known[addressKey(addr)]; !found {
		return fmt.Errorf("device '%s' is not configured", address)
	}
	return nil
}
