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

package bridge

import (
	"strconv"
	"sync"
	"time"

	"github.com/ecc1/gpio"
	"github.com/pkg/errors"
)

const (
	// DefaultI2CBusPath is the I2C bus on the Raspberry Pi header
	DefaultI2CBusPath = "/dev/i2c-1"
)

type piBridge struct {
	mutex       sync.Mutex
	config      Config
	statusLed   statusLed
	activityLed statusLed
	bus         I2CBus
}

// NewRaspberryPiBridge implements the bridge for Raspberry PI's
func NewRaspberryPiBridge(config Config) (API, error) {
	if config.I2CBusPath == "" {
		config.I2CBusPath = DefaultI2CBusPath
	}
	b := &piBridge{config: config}
	activeLow := true
	initialValue := false
	if config.StatusLEDPin >= 0 {
		pin, err := gpio.Output(config.StatusLEDPin, activeLow, initialValue)
		if err != nil {
			return nil, errors.Wrap(err, "Output[statusLed] failed")
		}
		b.statusLed.pin = pin
	}
	if config.ActivityLEDPin >= 0 {
		pin, err := gpio.Output(config.ActivityLEDPin, activeLow, initialValue)
		if err != nil {
			return nil, errors.Wrap(err, "Output[activityLed] failed")
		}
		b.activityLed.pin = pin
	}
	return b, nil
}

// Output initializes a GPIO output pin with the given pin number
// and initial logical value.
func (p *piBridge) Output(pinNumber int, activeLow bool, initialValue bool) (OutputPin, error) {
	pin, err := gpio.Output(pinNumber, activeLow, initialValue)
	if err != nil {
		return nil, errors.Wrapf(err, "Output[%d] failed", pinNumber)
	}
	gpioOutputsTotal.Inc()
	return &outputPin{pin: pin, label: strconv.Itoa(pinNumber)}, nil
}

// outputPin counts failed writes of a GPIO output.
type outputPin struct {
	pin   gpio.OutputPin
	label string
}

// Write sets the logical value of the pin.
func (p *outputPin) Write(value bool) error {
	if err := p.pin.Write(value); err != nil {
		gpioWriteErrorsTotal.WithLabelValues(p.label).Inc()
		return err
	}
	return nil
}

// IsVirtual returns false.
func (p *piBridge) IsVirtual() bool { return false }

// Turn status led on/off
func (p *piBridge) SetStatusLED(on bool) error {
	if err := p.statusLed.Set(on); err != nil {
		return errors.Wrap(err, "Set[statusLed] failed")
	}
	return nil
}

// Turn activity led on/off
func (p *piBridge) SetActivityLED(on bool) error {
	if err := p.activityLed.Set(on); err != nil {
		return errors.Wrap(err, "Set[activityLed] failed")
	}
	return nil
}

// Blink status led with given duration between on/off
func (p *piBridge) BlinkStatusLED(delay time.Duration) error {
	if err := p.statusLed.Blink(delay); err != nil {
		return errors.Wrap(err, "Blink[statusLed] failed")
	}
	return nil
}

// Blink activity led with given duration between on/off
func (p *piBridge) BlinkActivityLED(delay time.Duration) error {
	if err := p.activityLed.Blink(delay); err != nil {
		return errors.Wrap(err, "Blink[activityLed] failed")
	}
	return nil
}

// Open the I2C bus
func (p *piBridge) I2CBus() (I2CBus, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.bus == nil {
		bus, err := NewI2CBus(p.config.I2CBusPath)
		if err != nil {
			return nil, errors.Wrap(err, "NewI2CBus failed")
		}
		p.bus = bus
	}
	return p.bus, nil
}

func (p *piBridge) Close() error {
	p.statusLed.Set(false)
	p.activityLed.Set(false)

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.bus != nil {
		bus := p.bus
		p.bus = nil
		if err := bus.Close(); err != nil {
			return errors.Wrap(err, "Close failed")
		}
	}
	return nil
}
