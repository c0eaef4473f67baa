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

package control

import (
	"sync"
	"time"

	pubsub "github.com/mattn/go-pubsub"
)

// LatchEvent is published every time the shift register is transmitted.
type LatchEvent struct {
	State uint8     `json:"state"`
	Time  time.Time `json:"time"`
}

// Events distributes latch events to subscribers.
type Events struct {
	latch       *pubsub.PubSub
	mutex       sync.Mutex
	lastID      int
	subscribers map[int]func(LatchEvent)
}

// NewEvents creates a new event distributor.
func NewEvents() *Events {
	e := &Events{
		latch:       pubsub.New(),
		subscribers: make(map[int]func(LatchEvent)),
	}
	// pubsub removes subscribers by function code pointer, so a single
	// dispatcher is registered and subscriptions are tracked by id.
	e.latch.Sub(e.dispatch)
	return e
}

// PublishLatch publishes the given latch state.
// Use as latch observer of the shield.
func (e *Events) PublishLatch(state uint8) {
	latchEventsTotal.Inc()
	e.latch.Pub(LatchEvent{State: state, Time: time.Now()})
}

// SubscribeLatch registers the given callback for latch events.
// Call the returned function to unsubscribe.
func (e *Events) SubscribeLatch(cb func(LatchEvent)) func() {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.lastID++
	id := e.lastID
	e.subscribers[id] = cb
	return func() {
		e.mutex.Lock()
		defer e.mutex.Unlock()
		delete(e.subscribers, id)
	}
}

func (e *Events) dispatch(x LatchEvent) {
	e.mutex.Lock()
	callbacks := make([]func(LatchEvent), 0, len(e.subscribers))
	for _, cb := range e.subscribers {
		callbacks = append(callbacks, cb)
	}
	e.mutex.Unlock()
	for _, cb := range callbacks {
		cb(x)
	}
}
