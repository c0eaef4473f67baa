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

package environment

import "strings"

const (
	// BridgeRaspberryPi is the bridge type of a Raspberry Pi.
	BridgeRaspberryPi = "rpi"
	// BridgeVirtual is the bridge type used when no hardware is found.
	BridgeVirtual = "virtual"
)

// bridgeTypeFor returns the bridge type for a machine & kernel release.
func bridgeTypeFor(machine, release string) string {
	machine = strings.ToLower(strings.TrimSpace(machine))
	release = strings.ToLower(strings.TrimSpace(release))
	if strings.HasPrefix(machine, "arm") || machine == "aarch64" {
		return BridgeRaspberryPi
	}
	if strings.Contains(release, "raspi") || strings.Contains(release, "v7l") || strings.Contains(release, "v8+") {
		return BridgeRaspberryPi
	}
	return BridgeVirtual
}
