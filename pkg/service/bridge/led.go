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
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

type statusLed struct {
	sync.Mutex
	pin         OutputPin
	cancelBlink func()
}

// Turn led on/off, cancel blink
func (l *statusLed) Set(on bool) error {
	l.Mutex.Lock()
	defer l.Mutex.Unlock()

	l.stopBlink()
	if l.pin == nil {
		return nil
	}
	if err := l.pin.Write(on); err != nil {
		return errors.Wrap(err, "Write failed")
	}
	return nil
}

// Blink led on/off
func (l *statusLed) Blink(delay time.Duration) error {
	l.Mutex.Lock()
	defer l.Mutex.Unlock()

	l.stopBlink()
	if l.pin == nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancelBlink = cancel
	go l.blink(ctx, delay)
	return nil
}

func (l *statusLed) blink(ctx context.Context, delay time.Duration) {
	value := true
	for {
		l.Mutex.Lock()
		if ctx.Err() == nil {
			l.pin.Write(value)
			value = !value
		}
		l.Mutex.Unlock()
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

// stopBlink cancels a running blink.
// Mutex must be held.
func (l *statusLed) stopBlink() {
	if cancel := l.cancelBlink; cancel != nil {
		l.cancelBlink = nil
		cancel()
	}
}
