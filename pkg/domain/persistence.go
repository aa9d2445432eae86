package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope. Result mutations mark the affected
// pools dirty; the store recomputes every dirty pool before rules run and the
// transaction commits, so committed state never exposes a stale rank.
type Transaction interface {
	Snapshot() TransactionView
	CreateCompetitor(Competitor) (Competitor, error)
	UpdateCompetitor(id string, mutator func(*Competitor) error) (Competitor, error)
	DeleteCompetitor(id string) error
	CreateEvent(Event) (Event, error)
	UpdateEvent(id string, mutator func(*Event) error) (Event, error)
	DeleteEvent(id string) error
	CreateRelayTeam(RelayTeam) (RelayTeam, error)
	UpdateRelayTeam(id string, mutator func(*RelayTeam) error) (RelayTeam, error)
	DeleteRelayTeam(id string) error
	CreateIndividualResult(IndividualResult) (IndividualResult, error)
	UpdateIndividualResult(id string, mutator func(*IndividualResult) error) (IndividualResult, error)
	DeleteIndividualResult(id string) error
	CreateTeamResult(TeamResult) (TeamResult, error)
	UpdateTeamResult(id string, mutator func(*TeamResult) error) (TeamResult, error)
	DeleteTeamResult(id string) error
	// RecomputePool forces an immediate re-rank of one pool instead of
	// waiting for the commit-time flush.
	RecomputePool(key PoolKey) error
	// RecomputeEvent re-ranks every pool of the event.
	RecomputeEvent(eventID string) error
	FindCompetitor(id string) (Competitor, bool)
	FindEvent(id string) (Event, bool)
	FindRelayTeam(id string) (RelayTeam, bool)
}

// TransactionView provides read-only access to snapshot data.
type TransactionView interface {
	ListCompetitors() []Competitor
	ListEvents() []Event
	ListRelayTeams() []RelayTeam
	ListIndividualResults() []IndividualResult
	ListTeamResults() []TeamResult
	FindCompetitor(id string) (Competitor, bool)
	FindEvent(id string) (Event, bool)
	FindRelayTeam(id string) (RelayTeam, bool)
	FindIndividualResult(id string) (IndividualResult, bool)
	FindTeamResult(id string) (TeamResult, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetCompetitor(id string) (Competitor, bool)
	ListCompetitors() []Competitor
	GetEvent(id string) (Event, bool)
	ListEvents() []Event
	GetRelayTeam(id string) (RelayTeam, bool)
	ListRelayTeams() []RelayTeam
	ListIndividualResults() []IndividualResult
	ListTeamResults() []TeamResult
}
