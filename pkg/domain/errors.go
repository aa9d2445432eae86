package domain

import "fmt"

// ValidationError rejects malformed input before any state change is applied.
type ValidationError struct {
	Entity  EntityType
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: invalid %s: %s", e.Entity, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Entity, e.Message)
}

// AllocationDefect describes one malformed allocation table entry that the
// sanitizer dropped.
type AllocationDefect struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// ConfigurationError rejects an allocation table containing defective entries
// when the engine runs under the strict allocation policy. Under the default
// lenient policy defects degrade to warnings and the affected ranks score zero.
type ConfigurationError struct {
	EventID string
	Defects []AllocationDefect
}

func (e ConfigurationError) Error() string {
	return fmt.Sprintf("allocation table for event %s rejected: %d defective entries", e.EventID, len(e.Defects))
}

// ConsistencyError reports a ranking invariant breach detected after a pool
// recompute. It aborts the enclosing transaction; no partial state survives.
type ConsistencyError struct {
	Pool    PoolKey
	Message string
}

func (e ConsistencyError) Error() string {
	return fmt.Sprintf("pool %s: %s", e.Pool, e.Message)
}
