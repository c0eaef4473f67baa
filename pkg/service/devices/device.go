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

package devices

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Device contains the API that is supported by all types of devices.
type Device interface {
	// Configure is called once to put the device in the desired state.
	Configure(ctx context.Context) error
	// Close brings the device back to a safe state.
	Close(ctx context.Context) error
}

var (
	// InvalidArgumentError is the cause of errors caused by invalid device parameters.
	InvalidArgumentError = errors.New("invalid argument")
)

func invalidArgument(format string, args ...interface{}) error {
	return errors.Wrapf(InvalidArgumentError, format, args...)
}

// ParseAddress parses a string containing a numeric I2C address.
func ParseAddress(addr string) (uint8, error) {
	addr = strings.TrimSpace(addr)
	base := 10
	if strings.HasPrefix(addr, "0x") || strings.HasPrefix(addr, "0X") {
		addr = addr[2:]
		base = 16
	}
	result, err := strconv.ParseUint(addr, base, 7)
	if err != nil {
		return 0, invalidArgument("invalid address '%s': %s", addr, err)
	}
	return uint8(result), nil
}

// IsInvalidArgument returns true if the cause of the given error is an InvalidArgumentError.
func IsInvalidArgument(err error) bool {
	return err != nil && errors.Cause(err) == InvalidArgumentError
}
