package core

import (
	"testing"

	"meetcore/pkg/domain"
)

func mustChangePayload[T any](t *testing.T, value T) domain.ChangePayload {
	t.Helper()
	payload, err := domain.NewChangePayloadFromValue(value)
	if err != nil {
		t.Fatalf("build change payload: %v", err)
	}
	return payload
}
