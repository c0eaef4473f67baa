// Copyright 2018 Ewout Prangsma
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

package logging

import (
	"io"
	"sync"
)

// MultiWriter is a log output that writes to all of its outputs.
type MultiWriter interface {
	io.Writer
	// Add an output
	Add(w io.Writer)
}

type multiWriter struct {
	mutex   sync.RWMutex
	writers []io.Writer
}

// NewMultiWriter creates a new output for logs and can add outputs
// on the fly.
func NewMultiWriter(writers ...io.Writer) MultiWriter {
	l := &multiWriter{
		writers: writers,
	}
	return l
}

// Add an output
func (l *multiWriter) Add(w io.Writer) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.writers = append(l.writers, w)
}

func (l *multiWriter) Write(p []byte) (n int, err error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	n = len(p)
	for _, w := range l.writers {
		if _, werr := w.Write(p); werr != nil && err == nil {
			err = werr
		}
	}
	return n, err
}
