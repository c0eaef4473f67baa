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
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binkynet/MotorShield/pkg/config"
	"github.com/binkynet/MotorShield/pkg/service/bridge"
	"github.com/binkynet/MotorShield/pkg/shield"
)

func testConfig() Config {
	c := config.Default()
	c.Bridge = config.BridgeVirtual
	c.Layout.Port2 = shield.PortStepper.String()
	c.Stepper.RPM = 30
	c.Follower.Enabled = true
	c.Server.Host = "127.0.0.1"
	c.Server.HTTPPort = 0
	c.Server.SSHPort = 0
	return Config{Config: c, ProgramVersion: "test"}
}

func newTestService(t *testing.T, conf Config) (*service, *bridge.VirtualBridge) {
	b := bridge.NewVirtualBridge()
	svc, err := NewService(conf, Dependencies{
		Logger: zerolog.Nop(),
		Bridge: b,
	})
	require.NoError(t, err)
	return svc.(*service), b
}

func TestNewServiceValidates(t *testing.T) {
	conf := testConfig()
	conf.Layout.Port1 = "three-motors"
	_, err := NewService(conf, Dependencies{Bridge: bridge.NewVirtualBridge()})
	assert.True(t, config.IsInvalidConfig(err))

	_, err = NewService(testConfig(), Dependencies{})
	assert.Error(t, err)
}

func TestSetup(t *testing.T) {
	ctx := context.Background()
	s, b := newTestService(t, testConfig())

	c, err := s.setup(ctx)
	require.NoError(t, err)
	defer c.devices.Close(ctx)

	assert.Equal(t, "two-motors/stepper", c.shield.Layout().String())
	assert.NotNil(t, c.follower)
	assert.Nil(t, c.mqtt)
	assert.NotNil(t, c.server)
	assert.ElementsMatch(t,
		[]string{"adc-0x48", "adc-0x49", "pwm-0x40", "pwm-0x60"},
		c.devices.GetConfiguredDeviceIDs())

	status := c.controller.Status()
	require.Len(t, status.Steppers, 1)
	assert.Equal(t, 2, status.Steppers[0].ID)
	assert.Equal(t, uint32(60000000/(48*30)), status.Steppers[0].MicrosecondsPerStep)
	assert.Len(t, status.Motors, 2)
	assert.Len(t, status.Servos, 2)

	// Latch lines are driven through the bridge
	require.NoError(t, c.controller.RunMotor(1, shield.MotorForward))
	assert.Greater(t, b.Pin(testConfig().Latch.Clock).Writes(), 8)
	assert.False(t, b.Pin(testConfig().Latch.Enable).Value())
}

func TestSetupUnknownSensorDevice(t *testing.T) {
	conf := testConfig()
	conf.ADCDevices = conf.ADCDevices[:1]
	conf.Follower.Enabled = false
	s, _ := newTestService(t, conf)

	// Follower disabled, so a missing ADC does not matter
	c, err := s.setup(context.Background())
	require.NoError(t, err)
	c.devices.Close(context.Background())
	assert.Nil(t, c.follower)
}

func TestRun(t *testing.T) {
	s, _ := newTestService(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() { errs <- s.Run(ctx) }()

	time.Sleep(time.Millisecond * 200)
	cancel()
	select {
	case err := <-errs:
		assert.NoError(t, err)
	case <-time.After(time.Second * 5):
		t.Fatal("Run did not return")
	}
}
