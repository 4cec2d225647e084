package utils

import (
	"regexp"
)

// DeviceNameRegex matches names that are safe as file name components and
// keyring account names.
var DeviceNameRegex = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*$`)

// IsValidDeviceName checks if the given name is a valid device identifier.
func IsValidDeviceName(name string) bool {
	return DeviceNameRegex.MatchString(name) && name != "." && name != ".."
}

// IsValidPort checks if the port is within lawful range. Zero means unset.
func IsValidPort(port int) bool {
	return port >= 0 && port <= 65535
}
