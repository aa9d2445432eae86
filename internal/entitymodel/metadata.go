package entitymodel

import "meetcore/docs/rulebook"

// RulebookVersion returns the scoring rulebook version declared in the
// embedded canonical JSON.
func RulebookVersion() string {
	version, err := rulebook.Version()
	if err != nil {
		return ""
	}
	return version
}
