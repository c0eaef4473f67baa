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

package shield

import (
	"github.com/pkg/errors"
)

var (
	// InvalidArgumentError is the cause of all errors caused by invalid
	// parameters passed to shield operations.
	InvalidArgumentError = errors.New("invalid argument")

	maskAny = errors.WithStack
)

// invalidArgument creates an error with InvalidArgumentError as cause.
func invalidArgument(format string, args ...interface{}) error {
	return errors.Wrapf(InvalidArgumentError, format, args...)
}

// IsInvalidArgument returns true if the cause of the given error
// is InvalidArgumentError.
func IsInvalidArgument(err error) bool {
	return errors.Cause(err) == InvalidArgumentError
}
