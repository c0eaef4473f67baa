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

package follower

import (
	"context"
	"sync"
	"time"
)

// watchdog calls its expire callback when it has not been fed
// within its timeout.
type watchdog struct {
	timeout  time.Duration
	onExpire func()

	mutex   sync.Mutex
	fed     chan struct{}
	expired bool
}

func newWatchdog(timeout time.Duration, onExpire func()) *watchdog {
	return &watchdog{
		timeout:  timeout,
		onExpire: onExpire,
		fed:      make(chan struct{}, 1),
	}
}

// Feed the watchdog.
// Returns true if the watchdog had expired since the previous feed.
func (w *watchdog) Feed() bool {
	w.mutex.Lock()
	wasExpired := w.expired
	w.expired = false
	w.mutex.Unlock()

	select {
	case w.fed <- struct{}{}:
	default:
	}
	return wasExpired
}

// Expired returns true when the watchdog expired and has not been fed since.
func (w *watchdog) Expired() bool {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.expired
}

// Run the watchdog until the given context is canceled.
func (w *watchdog) Run(ctx context.Context) {
	timer := time.NewTimer(w.timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.fed:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.timeout)
		case <-timer.C:
			w.mutex.Lock()
			alreadyExpired := w.expired
			w.expired = true
			w.mutex.Unlock()
			if !alreadyExpired {
				watchdogExpiredTotal.Inc()
				w.onExpire()
			}
			timer.Reset(w.timeout)
		}
	}
}
