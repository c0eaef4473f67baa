//    Copyright 2023 Ewout Prangsma
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "motorshield"
)

// MustRegisterCounter creates & registers a counter with given subsystem & name.
func MustRegisterCounter(subsystem, name, help string) prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	})
	prometheus.MustRegister(c)
	return c
}

// MustRegisterCounterVec creates & registers a counter vector with given subsystem, name & labels.
func MustRegisterCounterVec(subsystem, name, help string, labelNames ...string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labelNames)
	prometheus.MustRegister(c)
	return c
}

// MustRegisterGauge creates & registers a gauge with given subsystem & name.
func MustRegisterGauge(subsystem, name, help string) prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	})
	prometheus.MustRegister(g)
	return g
}

// MustRegisterGaugeVec creates & registers a gauge vector with given subsystem, name & labels.
func MustRegisterGaugeVec(subsystem, name, help string, labelNames ...string) *prometheus.GaugeVec {
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labelNames)
	prometheus.MustRegister(g)
	return g
}
