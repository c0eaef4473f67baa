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

package devices

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	aerr "github.com/ewoutp/go-aggregate-error"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/binkynet/MotorShield/pkg/service/bridge"
)

// Service contains the API that is exposed by the device service.
type Service interface {
	// Configure is called once to put all devices in the desired state.
	Configure(ctx context.Context) error
	// Run the service until the given context is canceled.
	Run(ctx context.Context) error
	// Close brings all devices back to a safe state.
	Close(context.Context) error
	// Channel returns the PWM channel at given output (1...) of the PWM
	// device at given address.
	// Returns nil, nil when output is 0 (not connected).
	Channel(address string, output int) (*Channel, error)
	// ADC returns the configured ADC device at given address.
	ADC(address string) (ADC, error)
	// Get a list of configured device IDs
	GetConfiguredDeviceIDs() []string
	// Get a list of unconfigured device IDs
	GetUnconfiguredDeviceIDs() []string
	// Detect addresses of devices on the I2C bus
	DetectAddresses() []string
}

// Config of the device service.
type Config struct {
	// If set, virtual devices are created instead of I2C devices
	Virtual bool
	// PWM devices
	PWMs []PWMConfig
	// ADC devices
	ADCs []ADCConfig
}

// PWMConfig describes a single PCA9685 device.
type PWMConfig struct {
	Address   string
	Frequency float64
}

// ADCConfig describes a single ADS1115 device.
type ADCConfig struct {
	Address string
}

type channelKey struct {
	id     string
	output int
}

type service struct {
	log               zerolog.Logger
	virtual           bool
	devices           map[string]Device
	configuredDevices map[string]Device
	bus               bridge.I2CBus
	bAPI              bridge.API
	activeCount       uint32

	mutex    sync.Mutex
	channels map[channelKey]*Channel
}

// NewService instantiates a new Service and Device's for the given
// device configurations.
func NewService(config Config, bAPI bridge.API, bus bridge.I2CBus, log zerolog.Logger) (Service, error) {
	s := &service{
		log:               log.With().Str("component", "device-service").Logger(),
		virtual:           config.Virtual,
		devices:           make(map[string]Device),
		configuredDevices: make(map[string]Device),
		bus:               bus,
		bAPI:              bAPI,
		channels:          make(map[channelKey]*Channel),
	}
	for _, c := range lo.UniqBy(config.PWMs, func(c PWMConfig) string { return c.Address }) {
		address, err := ParseAddress(c.Address)
		if err != nil {
			return nil, err
		}
		frequency := c.Frequency
		if frequency == 0 {
			frequency = DefaultPWMFrequency
		}
		var dev PWM
		if config.Virtual {
			dev = newVirtualPWM(s.onActive)
		} else {
			dev, err = newPCA9685(address, frequency, bus, s.onActive)
			if err != nil {
				return nil, err
			}
		}
		s.devices[pwmDeviceID(address)] = dev
	}
	for _, c := range lo.UniqBy(config.ADCs, func(c ADCConfig) string { return c.Address }) {
		address, err := ParseAddress(c.Address)
		if err != nil {
			return nil, err
		}
		var dev ADC
		if config.Virtual {
			dev = NewVirtualADC()
		} else {
			dev = newADS1115(address, bus, s.onActive)
		}
		s.devices[adcDeviceID(address)] = dev
	}
	devicesCreatedTotal.Set(float64(len(s.devices)))
	return s, nil
}

func pwmDeviceID(address uint8) string { return fmt.Sprintf("pwm-0x%02x", address) }
func adcDeviceID(address uint8) string { return fmt.Sprintf("adc-0x%02x", address) }

// Configure is called once to put all devices in the desired state.
func (s *service) Configure(ctx context.Context) error {
	log := s.log
	var ae aerr.AggregateError
	configuredDevices := make(map[string]Device)
	for _, id := range sortedKeys(s.devices) {
		d := s.devices[id]
		log := log.With().Str("device-id", id).Logger()
		log.Debug().Msg("configuring device...")
		if err := d.Configure(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to configure device")
			ae.Add(err)
		} else {
			configuredDevices[id] = d
			log.Debug().Msg("configured device")
		}
	}
	s.mutex.Lock()
	s.configuredDevices = configuredDevices
	s.mutex.Unlock()
	log.Info().Int("count", len(configuredDevices)).Msg("Configured devices")
	devicesConfiguredTotal.Set(float64(len(configuredDevices)))
	return ae.AsError()
}

// Run the service until the given context is canceled.
func (s *service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.runActiveNotify(ctx) })
	return g.Wait()
}

// Close brings all devices back to a safe state.
func (s *service) Close(ctx context.Context) error {
	var ae aerr.AggregateError
	for _, id := range sortedKeys(s.devices) {
		if err := s.devices[id].Close(ctx); err != nil {
			ae.Add(err)
		}
	}
	return ae.AsError()
}

// Channel returns the PWM channel at given output (1...) of the PWM
// device at given address.
func (s *service) Channel(address string, output int) (*Channel, error) {
	if output == 0 {
		return nil, nil
	}
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	id := pwmDeviceID(addr)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	key := channelKey{id: id, output: output}
	if ch, found := s.channels[key]; found {
		return ch, nil
	}
	dev, err := s.configuredDevice(id)
	if err != nil {
		return nil, err
	}
	pwm, ok := dev.(PWM)
	if !ok {
		return nil, invalidArgument("device '%s' is not a PWM", id)
	}
	if output < 1 || output > pwm.OutputCount() {
		return nil, invalidArgument("output of '%s' must be in 1..%d range, got %d", id, pwm.OutputCount(), output)
	}
	ch := newChannel(pwm, output)
	s.channels[key] = ch
	return ch, nil
}

// ADC returns the configured ADC device at given address.
func (s *service) ADC(address string) (ADC, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	id := adcDeviceID(addr)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	dev, err := s.configuredDevice(id)
	if err != nil {
		return nil, err
	}
	adc, ok := dev.(ADC)
	if !ok {
		return nil, invalidArgument("device '%s' is not an ADC", id)
	}
	return adc, nil
}

// configuredDevice returns the configured device with given ID.
// Mutex must be held.
func (s *service) configuredDevice(id string) (Device, error) {
	if dev, found := s.configuredDevices[id]; found {
		return dev, nil
	}
	if _, found := s.devices[id]; found {
		return nil, fmt.Errorf("device '%s' is not configured", id)
	}
	return nil, invalidArgument("unknown device '%s'", id)
}

// onActive is called when a device change is activated.
func (s *service) onActive() {
	atomic.AddUint32(&s.activeCount, 1)
}

// runActiveNotify updates the blinking status when a device has become active
func (s *service) runActiveNotify(ctx context.Context) error {
	lastActiveCount := uint32(0)
	count := 0
	for {
		select {
		case <-ctx.Done():
			// Context canceled
			return nil
		case <-time.After(time.Second / 10):
			newActiveCount := atomic.LoadUint32(&s.activeCount)
			if newActiveCount != lastActiveCount {
				lastActiveCount = newActiveCount
				s.bAPI.BlinkActivityLED(time.Second / 10)
				count = 0
			} else if count < 20 {
				count++
			} else {
				count = 0
				s.bAPI.SetActivityLED(false)
			}
		}
	}
}

// Get a list of configured device IDs
func (s *service) GetConfiguredDeviceIDs() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return sortedKeys(s.configuredDevices)
}

// Get a list of unconfigured device IDs
func (s *service) GetUnconfiguredDeviceIDs() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	result := lo.Filter(lo.Keys(s.devices), func(id string, _ int) bool {
		_, found := s.configuredDevices[id]
		return !found
	})
	sort.Strings(result)
	return result
}

// Detect addresses of devices on the I2C bus
func (s *service) DetectAddresses() []string {
	addrs := s.bus.DetectSlaveAddresses()
	result := lo.Map(addrs, func(addr byte, _ int) string {
		return fmt.Sprintf("0x%02x", addr)
	})
	s.log.Info().Strs("addresses", result).Msg("Detected addresses")
	return result
}

func sortedKeys(m map[string]Device) []string {
	result := lo.Keys(m)
	sort.Strings(result)
	return result
}
