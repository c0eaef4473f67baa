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
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/binkynet/MotorShield/pkg/service/control"
)

const (
	eventQueueSize = 64
	writeTimeout   = time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// events streams latch events as JSON over a websocket.
// Events are dropped when the client cannot keep up.
func (s *Server) events(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("upgrade failed")
		return nil
	}
	defer conn.Close()

	queue := make(chan control.LatchEvent, eventQueueSize)
	unsubscribe := s.ctrl.Events().SubscribeLatch(func(e control.LatchEvent) {
		select {
		case queue <- e:
		default:
			// Client too slow
		}
	})
	defer unsubscribe()

	// Detect closed connections
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case e := <-queue:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(e); err != nil {
				s.log.Debug().Err(err).Msg("write failed")
				return nil
			}
		case <-closed:
			return nil
		case <-c.Request().Context().Done():
			return nil
		}
	}
}
