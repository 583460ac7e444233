package protocol

import (
	"fmt"

	"golang.org/x/mod/semver"
)

const WordmillVersion = "v0.3.0"

// IsCompatibleVersion checks if a worker version is compatible with the
// controller version. Compatibility rules:
// - Major version must match exactly.
// - Minor and patch versions can differ.
func IsCompatibleVersion(workerVersion, controllerVersion string) (bool, error) {
	if !semver.IsValid(workerVersion) {
		return false, fmt.Errorf("invalid worker version: %s", workerVersion)
	}
	if !semver.IsValid(controllerVersion) {
		return false, fmt.Errorf("invalid controller version: %s", controllerVersion)
	}

	return semver.Major(workerVersion) == semver.Major(controllerVersion), nil
}

// GetCompatibilityError returns a user-friendly message for incompatible versions.
func GetCompatibilityError(workerVersion, controllerVersion string) string {
	return fmt.Sprintf(
		"Worker version %s is incompatible with controller version %s. Required version: %s.x.x",
		workerVersion, controllerVersion, semver.Major(controllerVersion),
	)
}
