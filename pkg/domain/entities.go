// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by meetcore.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityCompetitor identifies a registered competitor record.
	EntityCompetitor EntityType = "competitor"
	// EntityEvent identifies a scored event record.
	EntityEvent EntityType = "event"
	// EntityRelayTeam identifies a relay team record.
	EntityRelayTeam EntityType = "relay_team"
	// EntityIndividualResult identifies an individual result record.
	EntityIndividualResult EntityType = "individual_result"
	// EntityTeamResult identifies a relay team result record.
	EntityTeamResult EntityType = "team_result"
)

// Gender partitions individual results into scoring pools.
type Gender string

// Recognised competitor genders. Each gender competes in its own pool per event.
const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// KnownGender reports whether g is one of the recognised genders.
func KnownGender(g Gender) bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// Discipline determines how measurements within a pool are compared.
type Discipline string

// Event disciplines.
const (
	// DisciplineTrack ranks lower measurements first (elapsed time in seconds).
	DisciplineTrack Discipline = "track"
	// DisciplineField ranks higher measurements first (distance or height in meters).
	DisciplineField Discipline = "field"
)

// KnownDiscipline reports whether d is a supported discipline.
func KnownDiscipline(d Discipline) bool {
	return d == DisciplineTrack || d == DisciplineField
}

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RelayTeamSize is the required number of members on a relay team.
const RelayTeamSize = 4

// Competitor represents an individual entrant registered to a house.
type Competitor struct {
	Base
	BibNumber int    `json:"bib_number"`
	Name      string `json:"name"`
	Gender    Gender `json:"gender"`
	House     string `json:"house"`
}

// Event represents a scored competition event. Allocations hold the sparse
// rank-to-points tables per variant; missing ranks award zero points.
type Event struct {
	Base
	Name        string                                `json:"name"`
	Discipline  Discipline                            `json:"discipline"`
	TeamEvent   bool                                  `json:"team_event"`
	Unit        string                                `json:"unit"`
	Allocations map[AllocationVariant]AllocationTable `json:"allocations,omitempty"`
}

// RelayTeam groups exactly RelayTeamSize competitors of one house for a team event.
type RelayTeam struct {
	Base
	Name      string   `json:"name"`
	EventID   string   `json:"event_id"`
	House     string   `json:"house"`
	MemberIDs []string `json:"member_ids"`
}

// IndividualResult is one competitor's measurement in one event. Rank and
// Points are derived by the recompute controller and never supplied by
// callers; Seq is the intake sequence used to break measurement ties.
type IndividualResult struct {
	Base
	CompetitorID string  `json:"competitor_id"`
	EventID      string  `json:"event_id"`
	Measure      float64 `json:"measure"`
	Rank         int     `json:"rank"`
	Points       int     `json:"points"`
	Seq          uint64  `json:"seq"`
}

// TeamResult is one relay team's measurement in one team event. Rank, Points
// and Seq follow the same derivation rules as IndividualResult.
type TeamResult struct {
	Base
	TeamID  string  `json:"team_id"`
	EventID string  `json:"event_id"`
	Measure float64 `json:"measure"`
	Rank    int     `json:"rank"`
	Points  int     `json:"points"`
	Seq     uint64  `json:"seq"`
}

// Change describes a mutation applied to an entity during a transaction.
// Before and After carry JSON snapshots of the entity state around the
// mutation; creates leave Before undefined, deletes leave After undefined.
type Change struct {
	Entity EntityType
	Action Action
	Before ChangePayload
	After  ChangePayload
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
