// Package entitymodel exposes runtime helpers for serving the embedded
// competition API contract and rulebook metadata.
package entitymodel

import (
	"net/http"

	competitionapi "meetcore/docs/schema/openapi"
)

// OpenAPISpec returns a defensive copy of the embedded competition API
// document so callers can safely modify the slice.
func OpenAPISpec() []byte {
	return competitionapi.Spec()
}

// NewOpenAPIHandler returns an http.Handler that serves the embedded
// competition API YAML with a static content-type. It is intended for wiring
// into the server mux so downstream clients can fetch the canonical contract.
func NewOpenAPIHandler() http.Handler {
	spec := OpenAPISpec()
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(spec)
	})
}
