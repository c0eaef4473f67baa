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

package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/binkynet/MotorShield/pkg/service/control"
	"github.com/binkynet/MotorShield/pkg/shield"
)

// Controller is the part of the shield controller exposed over HTTP.
type Controller interface {
	Status() shield.Status
	RunMotor(id int, cmd shield.MotorCommand) error
	SetMotorSpeed(id int, duty uint8) error
	EnableMotor(id int) error
	DisableMotor(id int) error
	SetStepperSpeed(id int, rpm uint16) error
	StepStepper(id int, steps uint32, dir shield.Direction, style shield.Style) error
	StartStepper(id int, steps uint32, dir shield.Direction, style shield.Style, done func(error)) error
	ReleaseStepper(id int) error
	EnableStepper(id int) error
	DisableStepper(id int) error
	SetServoAngle(id int, angle uint8) error
	EnableServo(id int) error
	DisableServo(id int) error
	StopAll() error
	Events() *control.Events
}

// RunRequest is the body of POST /api/motors/:id/run
type RunRequest struct {
	Command string `json:"command"`
}

// SpeedRequest is the body of PUT /api/motors/:id/speed
type SpeedRequest struct {
	Duty uint8 `json:"duty"`
}

// RPMRequest is the body of PUT /api/steppers/:id/speed
type RPMRequest struct {
	RPM uint16 `json:"rpm"`
}

// StepRequest is the body of POST /api/steppers/:id/step
type StepRequest struct {
	Steps     uint32 `json:"steps"`
	Direction string `json:"direction,omitempty"`
	Style     string `json:"style,omitempty"`
	// If set, the request returns before the move is complete
	Async bool `json:"async,omitempty"`
}

// AngleRequest is the body of PUT /api/servos/:id/angle
type AngleRequest struct {
	Angle uint8 `json:"angle"`
}

// registerAPI adds all API routes to the given group.
func (s *Server) registerAPI(g *echo.Group) {
	g.GET("/status", s.getStatus)
	g.POST("/stop", s.stopAll)
	g.GET("/events", s.events)

	g.POST("/motors/:id/run", s.runMotor)
	g.PUT("/motors/:id/speed", s.setMotorSpeed)
	g.POST("/motors/:id/enable", s.withID(s.ctrl.EnableMotor))
	g.POST("/motors/:id/disable", s.withID(s.ctrl.DisableMotor))

	g.PUT("/steppers/:id/speed", s.setStepperSpeed)
	g.POST("/steppers/:id/step", s.stepStepper)
	g.POST("/steppers/:id/release", s.withID(s.ctrl.ReleaseStepper))
	g.POST("/steppers/:id/enable", s.withID(s.ctrl.EnableStepper))
	g.POST("/steppers/:id/disable", s.withID(s.ctrl.DisableStepper))

	g.PUT("/servos/:id/angle", s.setServoAngle)
	g.POST("/servos/:id/enable", s.withID(s.ctrl.EnableServo))
	g.POST("/servos/:id/disable", s.withID(s.ctrl.DisableServo))
}

func (s *Server) getStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.ctrl.Status())
}

func (s *Server) stopAll(c echo.Context) error {
	if err := s.ctrl.StopAll(); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.ctrl.Status())
}

func (s *Server) runMotor(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req RunRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	cmd, err := shield.ParseMotorCommand(req.Command)
	if err != nil {
		return err
	}
	if err := s.ctrl.RunMotor(id, cmd); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.ctrl.Status())
}

func (s *Server) setMotorSpeed(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req SpeedRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := s.ctrl.SetMotorSpeed(id, req.Duty); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.ctrl.Status())
}

func (s *Server) setStepperSpeed(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req RPMRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := s.ctrl.SetStepperSpeed(id, req.RPM); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.ctrl.Status())
}

func (s *Server) stepStepper(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req StepRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	dir, err := shield.ParseDirection(req.Direction)
	if err != nil {
		return err
	}
	style, err := shield.ParseStyle(req.Style)
	if err != nil {
		return err
	}
	if req.Async {
		if err := s.ctrl.StartStepper(id, req.Steps, dir, style, nil); err != nil {
			return err
		}
		return c.JSON(http.StatusAccepted, s.ctrl.Status())
	}
	if err := s.ctrl.StepStepper(id, req.Steps, dir, style); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.ctrl.Status())
}

func (s *Server) setServoAngle(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req AngleRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := s.ctrl.SetServoAngle(id, req.Angle); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.ctrl.Status())
}

// withID wraps an operation that only takes the id from the path.
func (s *Server) withID(op func(id int) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c)
		if err != nil {
			return err
		}
		if err := op(id); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, s.ctrl.Status())
	}
}

func pathID(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id '"+c.Param("id")+"'")
	}
	return id, nil
}

// errorHandler maps controller errors onto HTTP status codes.
func (s *Server) errorHandler(err error, c echo.Context) {
	if he, ok := err.(*echo.HTTPError); ok {
		c.Echo().DefaultHTTPErrorHandler(he, c)
		return
	}
	code := http.StatusInternalServerError
	switch {
	case control.IsInvalidArgument(err):
		code = http.StatusBadRequest
	case control.IsNotFound(err):
		code = http.StatusNotFound
	case control.IsBusy(err):
		code = http.StatusConflict
	default:
		s.log.Warn().Err(err).Str("path", c.Path()).Msg("Request failed")
	}
	c.Echo().DefaultHTTPErrorHandler(echo.NewHTTPError(code, err.Error()), c)
}
