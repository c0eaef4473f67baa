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
	"github.com/pkg/errors"

	"github.com/binkynet/MotorShield/pkg/shield"
)

var (
	// NotFoundError is the cause of errors about units not present in the layout.
	NotFoundError = errors.New("not found")
	// BusyError is the cause of errors about a stepper that is already moving.
	BusyError = errors.New("busy")
	maskAny   = errors.WithStack
)

func invalidArgument(format string, args ...interface{}) error {
	return errors.Wrapf(shield.InvalidArgumentError, format, args...)
}

func notFound(format string, args ...interface{}) error {
	return errors.Wrapf(NotFoundError, format, args...)
}

func busy(format string, args ...interface{}) error {
	return errors.Wrapf(BusyError, format, args...)
}

// IsInvalidArgument returns true if the cause of the given error is an invalid argument.
func IsInvalidArgument(err error) bool {
	return shield.IsInvalidArgument(err)
}

// IsNotFound returns true if the cause of the given error is a NotFoundError.
func IsNotFound(err error) bool {
	return err != nil && errors.Cause(err) == NotFoundError
}

// IsBusy returns true if the cause of the given error is a BusyError.
func IsBusy(err error) bool {
	return err != nil && errors.Cause(err) == BusyError
}
