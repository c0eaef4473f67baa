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

package environment

import (
	"strings"

	"github.com/denisbrodbeck/machineid"
	"github.com/pkg/errors"
)

const (
	appID       = "binkynet-motorshield"
	hostIDLen   = 12
	hostIDAlpha = "0123456789abcdef"
)

// HostID returns a stable identifier of this machine.
// The machine ID itself is not exposed.
func HostID() (string, error) {
	id, err := machineid.ProtectedID(appID)
	if err != nil {
		return "", errors.Wrap(err, "failed to read machine id")
	}
	return shortHostID(id), nil
}

// shortHostID returns the first hex digits of the given hash.
func shortHostID(hash string) string {
	hash = strings.ToLower(hash)
	var sb strings.Builder
	for _, ch := range hash {
		if sb.Len() == hostIDLen {
			break
		}
		if strings.ContainsRune(hostIDAlpha, ch) {
			sb.WriteRune(ch)
		}
	}
	return sb.String()
}
