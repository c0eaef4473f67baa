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

package mqtt

import (
	"context"

	mqttapi "github.com/eclipse/paho.mqtt.golang"
)

// Publisher publishes messages on a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

type clientPublisher struct {
	client mqttapi.Client
}

// Publish a message and wait until it is delivered.
func (p *clientPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	token := p.client.Publish(topic, qosDefault, false, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			publishErrorsTotal.Inc()
			return err
		}
		publishTotal.Inc()
		return nil
	case <-ctx.Done():
		publishErrorsTotal.Inc()
		return ctx.Err()
	}
}

// publishAsync publishes a message without waiting for a long time.
func (p *clientPublisher) publishAsync(topic, payload string) {
	token := p.client.Publish(topic, qosDefault, false, payload)
	go func() {
		if !token.WaitTimeout(publishTimeout) || token.Error() != nil {
			publishErrorsTotal.Inc()
			return
		}
		publishTotal.Inc()
	}()
}
