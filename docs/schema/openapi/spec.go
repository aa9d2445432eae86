// Package openapi embeds the competition API document for runtime
// distribution.
package openapi

import _ "embed"

// CompetitionSpec contains the OpenAPI document for the competition API.
//
//go:embed competition-api.yaml
var CompetitionSpec []byte

// Spec returns a defensive copy of the embedded competition API YAML.
func Spec() []byte {
	return append([]byte(nil), CompetitionSpec...)
}
