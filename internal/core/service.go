// Package core implements the competition service: transactional writes for
// competitors, events, relay teams and results, derived standings reads, and
// the storage, rules, and observability wiring around them.
package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"meetcore/docs/rulebook"
	"meetcore/pkg/domain"
)

// Operation identifiers recorded in metrics, traces, and the audit trail.
const (
	opRegisterCompetitor     = "register_competitor"
	opUpdateCompetitor       = "update_competitor"
	opDeleteCompetitor       = "delete_competitor"
	opCreateEvent            = "create_event"
	opUpdateEvent            = "update_event"
	opDeleteEvent            = "delete_event"
	opSetAllocationTable     = "set_allocation_table"
	opRegisterRelayTeam      = "register_relay_team"
	opUpdateRelayTeam        = "update_relay_team"
	opDeleteRelayTeam        = "delete_relay_team"
	opSubmitIndividualResult = "submit_individual_result"
	opUpdateIndividualResult = "update_individual_result"
	opDeleteIndividualResult = "delete_individual_result"
	opSubmitTeamResult       = "submit_team_result"
	opUpdateTeamResult       = "update_team_result"
	opDeleteTeamResult       = "delete_team_result"
	opRebuildEventRankings   = "rebuild_event_rankings"
	opArchiveSnapshot        = "archive_snapshot"
	opRestoreSnapshot        = "restore_snapshot"
)

// entitySnapshot tags archive operations in the audit trail; snapshots are
// not domain entities and never appear in Change records.
const entitySnapshot = domain.EntityType("snapshot")

// operationMetadata maps operation identifiers to the entity and action
// recorded on audit entries. Operations without an entry are not audited.
var operationMetadata = map[string]struct {
	Entity domain.EntityType
	Action domain.Action
}{
	opRegisterCompetitor:     {Entity: domain.EntityCompetitor, Action: domain.ActionCreate},
	opUpdateCompetitor:       {Entity: domain.EntityCompetitor, Action: domain.ActionUpdate},
	opDeleteCompetitor:       {Entity: domain.EntityCompetitor, Action: domain.ActionDelete},
	opCreateEvent:            {Entity: domain.EntityEvent, Action: domain.ActionCreate},
	opUpdateEvent:            {Entity: domain.EntityEvent, Action: domain.ActionUpdate},
	opDeleteEvent:            {Entity: domain.EntityEvent, Action: domain.ActionDelete},
	opSetAllocationTable:     {Entity: domain.EntityEvent, Action: domain.ActionUpdate},
	opRegisterRelayTeam:      {Entity: domain.EntityRelayTeam, Action: domain.ActionCreate},
	opUpdateRelayTeam:        {Entity: domain.EntityRelayTeam, Action: domain.ActionUpdate},
	opDeleteRelayTeam:        {Entity: domain.EntityRelayTeam, Action: domain.ActionDelete},
	opSubmitIndividualResult: {Entity: domain.EntityIndividualResult, Action: domain.ActionCreate},
	opUpdateIndividualResult: {Entity: domain.EntityIndividualResult, Action: domain.ActionUpdate},
	opDeleteIndividualResult: {Entity: domain.EntityIndividualResult, Action: domain.ActionDelete},
	opSubmitTeamResult:       {Entity: domain.EntityTeamResult, Action: domain.ActionCreate},
	opUpdateTeamResult:       {Entity: domain.EntityTeamResult, Action: domain.ActionUpdate},
	opDeleteTeamResult:       {Entity: domain.EntityTeamResult, Action: domain.ActionDelete},
	opRebuildEventRankings:   {Entity: domain.EntityEvent, Action: domain.ActionUpdate},
	opArchiveSnapshot:        {Entity: entitySnapshot, Action: domain.ActionCreate},
	opRestoreSnapshot:        {Entity: entitySnapshot, Action: domain.ActionUpdate},
}

// ErrNotFound reports a missing entity by type and identifier.
type ErrNotFound struct {
	Entity domain.EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// SnapshotInfo describes one archived state snapshot.
type SnapshotInfo struct {
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// SnapshotArchive stores and restores whole-state snapshots outside the
// persistent store.
type SnapshotArchive interface {
	Archive(ctx context.Context) (SnapshotInfo, error)
	List(ctx context.Context) ([]SnapshotInfo, error)
	Restore(ctx context.Context, key string) error
}

// PoolStandings couples a pool identity with its ranked rows.
type PoolStandings struct {
	EventID   string            `json:"event_id"`
	Partition string            `json:"partition"`
	Standings []domain.Standing `json:"standings"`
}

// Service exposes the transactional competition operations on top of a
// persistent store. Every write runs inside a store transaction: pools are
// recomputed and rules evaluated before anything commits.
type Service struct {
	store             domain.PersistentStore
	engine            *domain.RulesEngine
	clock             Clock
	now               func() time.Time
	logger            Logger
	audit             AuditRecorder
	metrics           MetricsRecorder
	tracer            Tracer
	archive           SnapshotArchive
	houses            []string
	strictAllocations bool
}

type serviceOptions struct {
	clock             Clock
	logger            Logger
	audit             AuditRecorder
	metrics           MetricsRecorder
	tracer            Tracer
	archive           SnapshotArchive
	houses            []string
	strictAllocations bool
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		clock:   ClockFunc(nil),
		logger:  NewNoopLogger(),
		audit:   NewNoopAuditRecorder(),
		metrics: NewNoopMetricsRecorder(),
		tracer:  NewNoopTracer(),
	}
}

// Option customizes service construction.
type Option func(*serviceOptions)

// WithClock overrides the timestamp source used for audit entries and
// duration measurement. Nil clocks are ignored.
func WithClock(clock Clock) Option {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger attaches a structured logger. Nil loggers are ignored.
func WithLogger(logger Logger) Option {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAuditRecorder attaches an audit sink. Nil recorders are ignored.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.audit = recorder
		}
	}
}

// WithMetricsRecorder attaches a metrics sink. Nil recorders are ignored.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer attaches a tracer. Nil tracers are ignored.
func WithTracer(tracer Tracer) Option {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithSnapshotArchive attaches the archive used by ArchiveSnapshot,
// ListSnapshots, and RestoreSnapshot.
func WithSnapshotArchive(archive SnapshotArchive) Option {
	return func(o *serviceOptions) {
		o.archive = archive
	}
}

// WithHouses restricts competitor and relay team registration to the given
// houses. An empty list admits any house name.
func WithHouses(houses []string) Option {
	return func(o *serviceOptions) {
		o.houses = o.houses[:0]
		for _, house := range houses {
			if house == "" {
				continue
			}
			o.houses = append(o.houses, house)
		}
	}
}

// WithStrictAllocations switches SetAllocationTable from dropping defective
// entries with a warning to rejecting the whole table.
func WithStrictAllocations(strict bool) Option {
	return func(o *serviceOptions) {
		o.strictAllocations = strict
	}
}

// NewService wires a Service around the given persistent store. The store's
// rules engine and clock are adopted when it provides them.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	options := defaultServiceOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return &Service{
		store:             store,
		engine:            extractRulesEngine(store),
		clock:             options.clock,
		now:               selectNowFunc(store, options.clock),
		logger:            options.logger,
		audit:             options.audit,
		metrics:           options.metrics,
		tracer:            options.tracer,
		archive:           options.archive,
		houses:            options.houses,
		strictAllocations: options.strictAllocations,
	}
}

// NewInMemoryService builds a service over a fresh in-memory store, wiring
// the provided rules engine into the store. A nil engine leaves commits
// unguarded; tests that exercise rules pass NewDefaultRulesEngine().
func NewInMemoryService(engine *domain.RulesEngine, opts ...Option) *Service {
	return NewService(NewMemoryStore(engine), opts...)
}

// nowFuncProvider is implemented by stores that expose their own clock.
type nowFuncProvider interface {
	NowFunc() func() time.Time
}

// rulesEngineProvider is implemented by stores that expose their rules engine.
type rulesEngineProvider interface {
	RulesEngine() *domain.RulesEngine
}

// selectNowFunc picks the service timestamp source: the store's clock when it
// provides one, then the supplied clock, then the system clock in UTC.
func selectNowFunc(store domain.PersistentStore, clock Clock) func() time.Time {
	if provider, ok := store.(nowFuncProvider); ok {
		if fn := provider.NowFunc(); fn != nil {
			return fn
		}
	}
	if clock != nil {
		return clock.Now
	}
	return func() time.Time { return time.Now().UTC() }
}

// extractRulesEngine returns the store's rules engine when the backend
// exposes one, nil otherwise.
func extractRulesEngine(store domain.PersistentStore) *domain.RulesEngine {
	if provider, ok := store.(rulesEngineProvider); ok {
		return provider.RulesEngine()
	}
	return nil
}

// Store exposes the underlying persistent store.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

// Engine exposes the rules engine adopted from the store, nil when the
// backend carries none.
func (s *Service) Engine() *domain.RulesEngine {
	return s.engine
}

// run executes fn inside a store transaction with tracing, metrics, and
// error-path auditing and logging around it. Every service method returning
// a domain.Result delegates here.
func (s *Service) run(ctx context.Context, operation string, fn func(domain.Transaction) error) (domain.Result, time.Duration, error) {
	start := s.now()
	ctx, span := s.tracer.Start(ctx, operation)
	s.logger.Debug("operation started", "operation", operation)

	res, err := s.store.RunInTransaction(ctx, fn)
	duration := s.now().Sub(start)
	span.End(err)
	s.metrics.Observe(ctx, operation, err == nil, duration)
	if err != nil {
		s.recordAuditError(ctx, operation, duration, err)
		s.logger.Error("operation failed", "operation", operation, "error", err)
		return res, duration, err
	}
	s.logger.Debug("operation committed", "operation", operation, "violations", len(res.Violations))
	return res, duration, nil
}

// observe wraps non-transactional operations (snapshot archive traffic) with
// the same tracing, metrics, and error-path handling as run.
func (s *Service) observe(ctx context.Context, operation string, fn func(context.Context) error) (time.Duration, error) {
	start := s.now()
	ctx, span := s.tracer.Start(ctx, operation)
	s.logger.Debug("operation started", "operation", operation)

	err := fn(ctx)
	duration := s.now().Sub(start)
	span.End(err)
	s.metrics.Observe(ctx, operation, err == nil, duration)
	if err != nil {
		s.recordAuditError(ctx, operation, duration, err)
		s.logger.Error("operation failed", "operation", operation, "error", err)
		return duration, err
	}
	return duration, nil
}

// recordAuditSuccess emits an audit entry for a committed operation.
// Operations without registered metadata are skipped.
func (s *Service) recordAuditSuccess(ctx context.Context, operation, entityID string, duration time.Duration) {
	meta, ok := operationMetadata[operation]
	if !ok {
		return
	}
	s.audit.Record(ctx, AuditEntry{
		Operation: operation,
		Entity:    meta.Entity,
		Action:    meta.Action,
		EntityID:  entityID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.now(),
	})
}

// recordAuditError emits an audit entry for a failed operation.
func (s *Service) recordAuditError(ctx context.Context, operation string, duration time.Duration, err error) {
	meta, ok := operationMetadata[operation]
	if !ok {
		return
	}
	s.audit.Record(ctx, AuditEntry{
		Operation: operation,
		Entity:    meta.Entity,
		Action:    meta.Action,
		Status:    AuditStatusError,
		Error:     err.Error(),
		Duration:  duration,
		Timestamp: s.now(),
	})
}

// checkHouse validates a house name against the registration whitelist.
func (s *Service) checkHouse(entity domain.EntityType, house string) error {
	if len(s.houses) == 0 {
		return nil
	}
	for _, allowed := range s.houses {
		if allowed == house {
			return nil
		}
	}
	return domain.ValidationError{Entity: entity, Field: "house", Message: fmt.Sprintf("unknown house %q", house)}
}

// RegisterCompetitor stores a new competitor.
func (s *Service) RegisterCompetitor(ctx context.Context, competitor domain.Competitor) (domain.Competitor, domain.Result, error) {
	var created domain.Competitor
	res, duration, err := s.run(ctx, opRegisterCompetitor, func(tx domain.Transaction) error {
		if err := s.checkHouse(domain.EntityCompetitor, competitor.House); err != nil {
			return err
		}
		var txErr error
		created, txErr = tx.CreateCompetitor(competitor)
		return txErr
	})
	if err != nil {
		return domain.Competitor{}, res, err
	}
	s.recordAuditSuccess(ctx, opRegisterCompetitor, created.ID, duration)
	return created, res, nil
}

// UpdateCompetitor applies the mutator to an existing competitor. Gender
// changes move the competitor's results between pools and re-rank both.
func (s *Service) UpdateCompetitor(ctx context.Context, id string, mutator func(*domain.Competitor) error) (domain.Competitor, domain.Result, error) {
	var updated domain.Competitor
	res, duration, err := s.run(ctx, opUpdateCompetitor, func(tx domain.Transaction) error {
		if _, ok := tx.FindCompetitor(id); !ok {
			return ErrNotFound{Entity: domain.EntityCompetitor, ID: id}
		}
		var txErr error
		updated, txErr = tx.UpdateCompetitor(id, func(c *domain.Competitor) error {
			if err := mutator(c); err != nil {
				return err
			}
			return s.checkHouse(domain.EntityCompetitor, c.House)
		})
		return txErr
	})
	if err != nil {
		return domain.Competitor{}, res, err
	}
	s.recordAuditSuccess(ctx, opUpdateCompetitor, id, duration)
	return updated, res, nil
}

// DeleteCompetitor removes a competitor without persisted results or relay
// memberships.
func (s *Service) DeleteCompetitor(ctx context.Context, id string) (domain.Result, error) {
	res, duration, err := s.run(ctx, opDeleteCompetitor, func(tx domain.Transaction) error {
		if _, ok := tx.FindCompetitor(id); !ok {
			return ErrNotFound{Entity: domain.EntityCompetitor, ID: id}
		}
		return tx.DeleteCompetitor(id)
	})
	if err != nil {
		return res, err
	}
	s.recordAuditSuccess(ctx, opDeleteCompetitor, id, duration)
	return res, nil
}

// CreateEvent stores a new event. Events arriving without allocation tables
// are seeded from the embedded rulebook defaults: the individual table under
// the general variant, plus the relay table for team events.
func (s *Service) CreateEvent(ctx context.Context, event domain.Event) (domain.Event, domain.Result, error) {
	var created domain.Event
	res, duration, err := s.run(ctx, opCreateEvent, func(tx domain.Transaction) error {
		seeded, seedErr := seedDefaultAllocations(event)
		if seedErr != nil {
			return seedErr
		}
		var txErr error
		created, txErr = tx.CreateEvent(seeded)
		return txErr
	})
	if err != nil {
		return domain.Event{}, res, err
	}
	s.recordAuditSuccess(ctx, opCreateEvent, created.ID, duration)
	return created, res, nil
}

// UpdateEvent applies the mutator to an existing event. Discipline, team
// flag, and allocation changes re-rank every pool of the event before commit.
func (s *Service) UpdateEvent(ctx context.Context, id string, mutator func(*domain.Event) error) (domain.Event, domain.Result, error) {
	var updated domain.Event
	res, duration, err := s.run(ctx, opUpdateEvent, func(tx domain.Transaction) error {
		if _, ok := tx.FindEvent(id); !ok {
			return ErrNotFound{Entity: domain.EntityEvent, ID: id}
		}
		var txErr error
		updated, txErr = tx.UpdateEvent(id, mutator)
		return txErr
	})
	if err != nil {
		return domain.Event{}, res, err
	}
	s.recordAuditSuccess(ctx, opUpdateEvent, id, duration)
	return updated, res, nil
}

// DeleteEvent removes an event with no dependent results or relay teams.
func (s *Service) DeleteEvent(ctx context.Context, id string) (domain.Result, error) {
	res, duration, err := s.run(ctx, opDeleteEvent, func(tx domain.Transaction) error {
		if _, ok := tx.FindEvent(id); !ok {
			return ErrNotFound{Entity: domain.EntityEvent, ID: id}
		}
		return tx.DeleteEvent(id)
	})
	if err != nil {
		return res, err
	}
	s.recordAuditSuccess(ctx, opDeleteEvent, id, duration)
	return res, nil
}

// SetAllocationTable replaces one variant of an event's allocation tables
// from a loosely typed rank-to-points mapping. Defective entries reject the
// whole table under the strict policy; under the default lenient policy they
// are dropped, reported as warn violations, and the affected ranks score
// zero. Affected pools re-rank before the transaction commits.
func (s *Service) SetAllocationTable(ctx context.Context, eventID string, variant domain.AllocationVariant, raw map[string]any) (domain.Event, domain.Result, error) {
	table, defects := domain.ParseAllocationTable(raw)
	var updated domain.Event
	res, duration, err := s.run(ctx, opSetAllocationTable, func(tx domain.Transaction) error {
		if !domain.KnownVariant(variant) {
			return domain.ValidationError{Entity: domain.EntityEvent, Field: "variant", Message: fmt.Sprintf("unknown allocation variant %q", variant)}
		}
		if _, ok := tx.FindEvent(eventID); !ok {
			return ErrNotFound{Entity: domain.EntityEvent, ID: eventID}
		}
		if len(defects) > 0 && s.strictAllocations {
			return domain.ConfigurationError{EventID: eventID, Defects: defects}
		}
		var txErr error
		updated, txErr = tx.UpdateEvent(eventID, func(e *domain.Event) error {
			if e.Allocations == nil {
				e.Allocations = make(map[domain.AllocationVariant]domain.AllocationTable, 1)
			}
			e.Allocations[variant] = table
			return nil
		})
		return txErr
	})
	if err != nil {
		return domain.Event{}, res, err
	}
	for _, defect := range defects {
		s.logger.Warn("allocation entry dropped", "event_id", eventID, "variant", string(variant), "key", defect.Key, "reason", defect.Reason)
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "allocation_bounds",
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf("entry %q dropped: %s", defect.Key, defect.Reason),
			Entity:   domain.EntityEvent,
			EntityID: eventID,
		})
	}
	s.recordAuditSuccess(ctx, opSetAllocationTable, eventID, duration)
	return updated, res, nil
}

// RegisterRelayTeam stores a new relay team. Composition is enforced by the
// rules engine at commit: a blocking violation rolls the registration back.
func (s *Service) RegisterRelayTeam(ctx context.Context, team domain.RelayTeam) (domain.RelayTeam, domain.Result, error) {
	var created domain.RelayTeam
	res, duration, err := s.run(ctx, opRegisterRelayTeam, func(tx domain.Transaction) error {
		if err := s.checkHouse(domain.EntityRelayTeam, team.House); err != nil {
			return err
		}
		var txErr error
		created, txErr = tx.CreateRelayTeam(team)
		return txErr
	})
	if err != nil {
		return domain.RelayTeam{}, res, err
	}
	s.recordAuditSuccess(ctx, opRegisterRelayTeam, created.ID, duration)
	return created, res, nil
}

// UpdateRelayTeam applies the mutator to an existing relay team.
func (s *Service) UpdateRelayTeam(ctx context.Context, id string, mutator func(*domain.RelayTeam) error) (domain.RelayTeam, domain.Result, error) {
	var updated domain.RelayTeam
	res, duration, err := s.run(ctx, opUpdateRelayTeam, func(tx domain.Transaction) error {
		if _, ok := tx.FindRelayTeam(id); !ok {
			return ErrNotFound{Entity: domain.EntityRelayTeam, ID: id}
		}
		var txErr error
		updated, txErr = tx.UpdateRelayTeam(id, func(t *domain.RelayTeam) error {
			if err := mutator(t); err != nil {
				return err
			}
			return s.checkHouse(domain.EntityRelayTeam, t.House)
		})
		return txErr
	})
	if err != nil {
		return domain.RelayTeam{}, res, err
	}
	s.recordAuditSuccess(ctx, opUpdateRelayTeam, id, duration)
	return updated, res, nil
}

// DeleteRelayTeam removes a relay team without persisted results.
func (s *Service) DeleteRelayTeam(ctx context.Context, id string) (domain.Result, error) {
	res, duration, err := s.run(ctx, opDeleteRelayTeam, func(tx domain.Transaction) error {
		if _, ok := tx.FindRelayTeam(id); !ok {
			return ErrNotFound{Entity: domain.EntityRelayTeam, ID: id}
		}
		return tx.DeleteRelayTeam(id)
	})
	if err != nil {
		return res, err
	}
	s.recordAuditSuccess(ctx, opDeleteRelayTeam, id, duration)
	return res, nil
}

// SubmitIndividualResult records a competitor's measurement. Rank and points
// arrive derived from the pool recompute that runs before commit; any values
// supplied by the caller are ignored.
func (s *Service) SubmitIndividualResult(ctx context.Context, result domain.IndividualResult) (domain.IndividualResult, domain.Result, error) {
	var created domain.IndividualResult
	res, duration, err := s.run(ctx, opSubmitIndividualResult, func(tx domain.Transaction) error {
		var txErr error
		created, txErr = tx.CreateIndividualResult(result)
		return txErr
	})
	if err != nil {
		return domain.IndividualResult{}, res, err
	}
	if refreshed, ok := s.IndividualResult(ctx, created.ID); ok {
		created = refreshed
	}
	s.recordAuditSuccess(ctx, opSubmitIndividualResult, created.ID, duration)
	return created, res, nil
}

// UpdateIndividualResult corrects a result's measurement. Identity fields are
// immutable; the pool re-ranks before commit.
func (s *Service) UpdateIndividualResult(ctx context.Context, id string, measure float64) (domain.IndividualResult, domain.Result, error) {
	res, duration, err := s.run(ctx, opUpdateIndividualResult, func(tx domain.Transaction) error {
		if _, ok := tx.Snapshot().FindIndividualResult(id); !ok {
			return ErrNotFound{Entity: domain.EntityIndividualResult, ID: id}
		}
		_, txErr := tx.UpdateIndividualResult(id, func(r *domain.IndividualResult) error {
			r.Measure = measure
			return nil
		})
		return txErr
	})
	if err != nil {
		return domain.IndividualResult{}, res, err
	}
	updated, _ := s.IndividualResult(ctx, id)
	s.recordAuditSuccess(ctx, opUpdateIndividualResult, id, duration)
	return updated, res, nil
}

// DeleteIndividualResult removes a result; the remaining pool re-ranks.
func (s *Service) DeleteIndividualResult(ctx context.Context, id string) (domain.Result, error) {
	res, duration, err := s.run(ctx, opDeleteIndividualResult, func(tx domain.Transaction) error {
		if _, ok := tx.Snapshot().FindIndividualResult(id); !ok {
			return ErrNotFound{Entity: domain.EntityIndividualResult, ID: id}
		}
		return tx.DeleteIndividualResult(id)
	})
	if err != nil {
		return res, err
	}
	s.recordAuditSuccess(ctx, opDeleteIndividualResult, id, duration)
	return res, nil
}

// SubmitTeamResult records a relay team's measurement.
func (s *Service) SubmitTeamResult(ctx context.Context, result domain.TeamResult) (domain.TeamResult, domain.Result, error) {
	var created domain.TeamResult
	res, duration, err := s.run(ctx, opSubmitTeamResult, func(tx domain.Transaction) error {
		var txErr error
		created, txErr = tx.CreateTeamResult(result)
		return txErr
	})
	if err != nil {
		return domain.TeamResult{}, res, err
	}
	if refreshed, ok := s.TeamResult(ctx, created.ID); ok {
		created = refreshed
	}
	s.recordAuditSuccess(ctx, opSubmitTeamResult, created.ID, duration)
	return created, res, nil
}

// UpdateTeamResult corrects a team result's measurement.
func (s *Service) UpdateTeamResult(ctx context.Context, id string, measure float64) (domain.TeamResult, domain.Result, error) {
	res, duration, err := s.run(ctx, opUpdateTeamResult, func(tx domain.Transaction) error {
		if _, ok := tx.Snapshot().FindTeamResult(id); !ok {
			return ErrNotFound{Entity: domain.EntityTeamResult, ID: id}
		}
		_, txErr := tx.UpdateTeamResult(id, func(r *domain.TeamResult) error {
			r.Measure = measure
			return nil
		})
		return txErr
	})
	if err != nil {
		return domain.TeamResult{}, res, err
	}
	updated, _ := s.TeamResult(ctx, id)
	s.recordAuditSuccess(ctx, opUpdateTeamResult, id, duration)
	return updated, res, nil
}

// DeleteTeamResult removes a team result; the relay pool re-ranks.
func (s *Service) DeleteTeamResult(ctx context.Context, id string) (domain.Result, error) {
	res, duration, err := s.run(ctx, opDeleteTeamResult, func(tx domain.Transaction) error {
		if _, ok := tx.Snapshot().FindTeamResult(id); !ok {
			return ErrNotFound{Entity: domain.EntityTeamResult, ID: id}
		}
		return tx.DeleteTeamResult(id)
	})
	if err != nil {
		return res, err
	}
	s.recordAuditSuccess(ctx, opDeleteTeamResult, id, duration)
	return res, nil
}

// RebuildEventRankings forces a recompute of every pool of the event. The
// operation is idempotent: derived state already in order commits unchanged.
func (s *Service) RebuildEventRankings(ctx context.Context, eventID string) (domain.Event, domain.Result, error) {
	var event domain.Event
	res, duration, err := s.run(ctx, opRebuildEventRankings, func(tx domain.Transaction) error {
		current, ok := tx.FindEvent(eventID)
		if !ok {
			return ErrNotFound{Entity: domain.EntityEvent, ID: eventID}
		}
		event = current
		return tx.RecomputeEvent(eventID)
	})
	if err != nil {
		return domain.Event{}, res, err
	}
	s.recordAuditSuccess(ctx, opRebuildEventRankings, eventID, duration)
	return event, res, nil
}

// ArchiveSnapshot exports the full engine state to the configured snapshot
// archive and returns the stored object's descriptor.
func (s *Service) ArchiveSnapshot(ctx context.Context) (SnapshotInfo, error) {
	var info SnapshotInfo
	duration, err := s.observe(ctx, opArchiveSnapshot, func(ctx context.Context) error {
		if s.archive == nil {
			return fmt.Errorf("snapshot archive not configured")
		}
		var archiveErr error
		info, archiveErr = s.archive.Archive(ctx)
		return archiveErr
	})
	if err != nil {
		return SnapshotInfo{}, err
	}
	s.recordAuditSuccess(ctx, opArchiveSnapshot, info.Key, duration)
	return info, nil
}

// ListSnapshots enumerates archived snapshots, newest first.
func (s *Service) ListSnapshots(ctx context.Context) ([]SnapshotInfo, error) {
	if s.archive == nil {
		return nil, fmt.Errorf("snapshot archive not configured")
	}
	return s.archive.List(ctx)
}

// RestoreSnapshot replaces the full engine state with an archived snapshot.
func (s *Service) RestoreSnapshot(ctx context.Context, key string) error {
	duration, err := s.observe(ctx, opRestoreSnapshot, func(ctx context.Context) error {
		if s.archive == nil {
			return fmt.Errorf("snapshot archive not configured")
		}
		return s.archive.Restore(ctx, key)
	})
	if err != nil {
		return err
	}
	s.recordAuditSuccess(ctx, opRestoreSnapshot, key, duration)
	return nil
}

// Competitor returns a competitor from committed state.
func (s *Service) Competitor(id string) (domain.Competitor, bool) {
	return s.store.GetCompetitor(id)
}

// Competitors lists committed competitors, optionally filtered by house
// and gender.
func (s *Service) Competitors(house string, gender domain.Gender) []domain.Competitor {
	all := s.store.ListCompetitors()
	out := make([]domain.Competitor, 0, len(all))
	for _, c := range all {
		if house != "" && c.House != house {
			continue
		}
		if gender != "" && c.Gender != gender {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Event returns an event from committed state.
func (s *Service) Event(id string) (domain.Event, bool) {
	return s.store.GetEvent(id)
}

// Events lists committed events.
func (s *Service) Events() []domain.Event {
	return s.store.ListEvents()
}

// RelayTeam returns a relay team from committed state.
func (s *Service) RelayTeam(id string) (domain.RelayTeam, bool) {
	return s.store.GetRelayTeam(id)
}

// RelayTeams lists committed relay teams, optionally restricted to one event.
func (s *Service) RelayTeams(eventID string) []domain.RelayTeam {
	all := s.store.ListRelayTeams()
	if eventID == "" {
		return all
	}
	out := make([]domain.RelayTeam, 0, len(all))
	for _, team := range all {
		if team.EventID == eventID {
			out = append(out, team)
		}
	}
	return out
}

// IndividualResults lists committed individual results, optionally filtered
// by event, competitor house, and competitor gender.
func (s *Service) IndividualResults(ctx context.Context, eventID, house string, gender domain.Gender) ([]domain.IndividualResult, error) {
	var out []domain.IndividualResult
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		for _, res := range view.ListIndividualResults() {
			if eventID != "" && res.EventID != eventID {
				continue
			}
			if house != "" || gender != "" {
				comp, ok := view.FindCompetitor(res.CompetitorID)
				if !ok {
					continue
				}
				if house != "" && comp.House != house {
					continue
				}
				if gender != "" && comp.Gender != gender {
					continue
				}
			}
			out = append(out, res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TeamResults lists committed team results, optionally restricted to one event.
func (s *Service) TeamResults(eventID string) []domain.TeamResult {
	all := s.store.ListTeamResults()
	if eventID == "" {
		return all
	}
	out := make([]domain.TeamResult, 0, len(all))
	for _, res := range all {
		if res.EventID == eventID {
			out = append(out, res)
		}
	}
	return out
}

// PoolStandings returns the ranked rows of one pool. Unknown events and empty
// pools yield an empty slice.
func (s *Service) PoolStandings(ctx context.Context, key domain.PoolKey) ([]domain.Standing, error) {
	var rows []domain.Standing
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		rows = domain.BuildPoolStandings(view, key)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// EventStandings returns the standings of every non-empty pool of the event,
// ordered by partition.
func (s *Service) EventStandings(ctx context.Context, eventID string) ([]PoolStandings, error) {
	var pools []PoolStandings
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		event, ok := view.FindEvent(eventID)
		if !ok {
			return nil
		}
		partitions := map[string]struct{}{}
		for _, res := range view.ListIndividualResults() {
			if res.EventID != event.ID {
				continue
			}
			if comp, ok := view.FindCompetitor(res.CompetitorID); ok {
				partitions[string(comp.Gender)] = struct{}{}
			}
		}
		for _, res := range view.ListTeamResults() {
			if res.EventID == event.ID {
				partitions[domain.PartitionTeam] = struct{}{}
				break
			}
		}
		keys := make([]string, 0, len(partitions))
		for partition := range partitions {
			keys = append(keys, partition)
		}
		sort.Strings(keys)
		for _, partition := range keys {
			key := domain.PoolKey{EventID: event.ID, Partition: partition}
			pools = append(pools, PoolStandings{
				EventID:   event.ID,
				Partition: partition,
				Standings: domain.BuildPoolStandings(view, key),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pools, nil
}

// HouseTotals aggregates committed points per house. Houses on the
// registration whitelist always appear, with zero totals when unscored.
func (s *Service) HouseTotals(ctx context.Context) ([]domain.HouseTally, error) {
	var tallies []domain.HouseTally
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		tallies = domain.TallyHouses(view)
		return nil
	})
	if err != nil {
		return nil, err
	}
	present := make(map[string]struct{}, len(tallies))
	for _, tally := range tallies {
		present[tally.House] = struct{}{}
	}
	for _, house := range s.houses {
		if _, ok := present[house]; !ok {
			tallies = append(tallies, domain.HouseTally{House: house})
		}
	}
	return tallies, nil
}

// CompetitorStandings summarises points and podium finishes per competitor in
// individual events, optionally restricted by gender and house.
func (s *Service) CompetitorStandings(ctx context.Context, gender domain.Gender, house string) ([]domain.CompetitorStanding, error) {
	var standings []domain.CompetitorStanding
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		standings = domain.TallyCompetitors(view, gender)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if house == "" {
		return standings, nil
	}
	out := make([]domain.CompetitorStanding, 0, len(standings))
	for _, st := range standings {
		if st.Competitor.House == house {
			out = append(out, st)
		}
	}
	return out, nil
}

// IndividualResult reads one committed individual result, including the
// rank and points derived by the commit-time recompute.
func (s *Service) IndividualResult(ctx context.Context, id string) (domain.IndividualResult, bool) {
	var out domain.IndividualResult
	var found bool
	_ = s.store.View(ctx, func(view domain.TransactionView) error {
		out, found = view.FindIndividualResult(id)
		return nil
	})
	return out, found
}

// TeamResult reads one committed team result.
func (s *Service) TeamResult(ctx context.Context, id string) (domain.TeamResult, bool) {
	var out domain.TeamResult
	var found bool
	_ = s.store.View(ctx, func(view domain.TransactionView) error {
		out, found = view.FindTeamResult(id)
		return nil
	})
	return out, found
}

// seedDefaultAllocations fills an event that arrives without allocation
// tables from the embedded rulebook defaults.
func seedDefaultAllocations(event domain.Event) (domain.Event, error) {
	if len(event.Allocations) > 0 {
		return event, nil
	}
	individual, err := rulebook.DefaultIndividualAllocation()
	if err != nil {
		return domain.Event{}, fmt.Errorf("seed allocations: %w", err)
	}
	event.Allocations = map[domain.AllocationVariant]domain.AllocationTable{
		domain.VariantGeneral: domain.AllocationTable(individual),
	}
	if event.TeamEvent {
		relay, err := rulebook.DefaultRelayAllocation()
		if err != nil {
			return domain.Event{}, fmt.Errorf("seed allocations: %w", err)
		}
		event.Allocations[domain.VariantRelay] = domain.AllocationTable(relay)
	}
	return event, nil
}
