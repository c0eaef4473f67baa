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

package main

import (
	"context"
	"fmt"
	"os"

	terminate "github.com/pulcy/go-terminate"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/binkynet/MotorShield/pkg/config"
	"github.com/binkynet/MotorShield/pkg/environment"
	"github.com/binkynet/MotorShield/pkg/logging"
	"github.com/binkynet/MotorShield/pkg/service"
	"github.com/binkynet/MotorShield/pkg/service/bridge"
)

const (
	projectName = "BinkyNet Motor Shield"
)

var (
	projectVersion = "dev"
	projectBuild   = "dev"
)

func main() {
	var configPath string
	var levelFlag string
	var bridgeType string
	var serverHost string
	var httpPort int
	var sshPort int
	var port1, port2 string
	var shell bool
	var dumpConfig bool

	pflag.StringVarP(&configPath, "config", "c", "", "Path of the YAML configuration file")
	pflag.StringVarP(&levelFlag, "level", "l", "info", "Set log level")
	pflag.StringVarP(&bridgeType, "bridge", "b", "", "Type of bridge to use (auto|rpi|virtual)")
	pflag.StringVar(&serverHost, "host", "", "Host address the HTTP & SSH servers will listen on")
	pflag.IntVar(&httpPort, "http-port", 0, "Port the HTTP server will listen on")
	pflag.IntVar(&sshPort, "ssh-port", 0, "Port the SSH server will listen on")
	pflag.StringVar(&port1, "port1", "", "What is connected to motor port 1 (two-motors|stepper|motor-first|motor-second|empty)")
	pflag.StringVar(&port2, "port2", "", "What is connected to motor port 2 (two-motors|stepper|motor-first|motor-second|empty)")
	pflag.BoolVar(&shell, "shell", false, "Run an interactive shell")
	pflag.BoolVar(&dumpConfig, "dump-config", false, "Print the effective configuration and exit")
	pflag.Parse()

	// Prepare logging
	ctx, cancel := context.WithCancel(context.Background())
	mqttWriter := logging.NewMQTTWriter(ctx)
	logOutput := logging.NewMultiWriter(zerolog.ConsoleWriter{Out: os.Stderr}, mqttWriter)
	logger := zerolog.New(logOutput).With().Timestamp().Logger()
	level, err := zerolog.ParseLevel(levelFlag)
	if err != nil {
		Exitf("Invalid log level '%s': %v\n", levelFlag, err)
	}
	logger = logger.Level(level)

	// Load configuration
	conf, err := config.Load(configPath)
	if err != nil {
		Exitf("Failed to load configuration: %v\n", err)
	}
	if bridgeType != "" {
		conf.Bridge = bridgeType
	}
	if serverHost != "" {
		conf.Server.Host = serverHost
	}
	if pflag.CommandLine.Changed("http-port") {
		conf.Server.HTTPPort = httpPort
	}
	if pflag.CommandLine.Changed("ssh-port") {
		conf.Server.SSHPort = sshPort
	}
	if port1 != "" {
		conf.Layout.Port1 = port1
	}
	if port2 != "" {
		conf.Layout.Port2 = port2
	}
	if conf.Bridge == config.BridgeAuto {
		conf.Bridge = environment.AutoDetectBridgeType(logger)
	}
	if err := conf.Validate(); err != nil {
		Exitf("Invalid configuration: %v\n", err)
	}
	if dumpConfig {
		data, err := conf.Marshal()
		if err != nil {
			Exitf("Failed to marshal configuration: %v\n", err)
		}
		os.Stdout.Write(data)
		return
	}

	var br bridge.API
	switch conf.Bridge {
	case config.BridgeRaspberryPi:
		br, err = bridge.NewRaspberryPiBridge(bridge.Config{
			I2CBusPath:     conf.I2CBus,
			StatusLEDPin:   conf.LEDs.Status,
			ActivityLEDPin: conf.LEDs.Activity,
		})
		if err != nil {
			Exitf("Failed to initialize Raspberry Pi Bridge: %v\n", err)
		}
	case config.BridgeVirtual:
		br = bridge.NewVirtualBridge()
	default:
		Exitf("Unknown bridge type '%s' (rpi|virtual)\n", conf.Bridge)
	}

	svc, err := service.NewService(service.Config{
		Config:         conf,
		ProgramVersion: projectVersion,
		Shell:          shell,
	}, service.Dependencies{
		Logger:     logger,
		Bridge:     br,
		MQTTWriter: mqttWriter,
	})
	if err != nil {
		Exitf("Failed to initialize Service: %v\n", err)
	}

	// Prepare to shutdown in a controlled manor
	t := terminate.NewTerminator(func(template string, args ...interface{}) {
		logger.Info().Msgf(template, args...)
	}, cancel)
	go t.ListenSignals()

	fmt.Printf("Starting %s (version %s build %s)\n", projectName, projectVersion, projectBuild)
	if err := svc.Run(ctx); err != nil {
		Exitf("Service run failed: %v\n", err)
	}
}

// Print the given error message and exit with code 1
func Exitf(message string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, message, args...)
	os.Exit(1)
}
