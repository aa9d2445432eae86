// Package memory provides the in-memory transactional store implementing the
// domain persistence contracts. Durable backends embed this store and persist
// its exported snapshots.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"meetcore/pkg/domain"
)

// Aliases for domain types so call sites in this package stay compact.
type (
	// Competitor aliases domain.Competitor.
	Competitor = domain.Competitor
	// Event aliases domain.Event.
	Event = domain.Event
	// RelayTeam aliases domain.RelayTeam.
	RelayTeam = domain.RelayTeam
	// IndividualResult aliases domain.IndividualResult.
	IndividualResult = domain.IndividualResult
	// TeamResult aliases domain.TeamResult.
	TeamResult = domain.TeamResult
	// PoolKey aliases domain.PoolKey addressing one scoring pool.
	PoolKey = domain.PoolKey
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore abstraction.
	PersistentStore = domain.PersistentStore
)

var _ domain.PersistentStore = (*Store)(nil)

type memoryState struct {
	competitors       map[string]Competitor
	events            map[string]Event
	relayTeams        map[string]RelayTeam
	individualResults map[string]IndividualResult
	teamResults       map[string]TeamResult
	lastSeq           uint64
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Competitors       map[string]Competitor       `json:"competitors"`
	Events            map[string]Event            `json:"events"`
	RelayTeams        map[string]RelayTeam        `json:"relay_teams"`
	IndividualResults map[string]IndividualResult `json:"individual_results"`
	TeamResults       map[string]TeamResult       `json:"team_results"`
	LastSeq           uint64                      `json:"last_seq"`
}

func newMemoryState() memoryState {
	return memoryState{
		competitors:       make(map[string]Competitor),
		events:            make(map[string]Event),
		relayTeams:        make(map[string]RelayTeam),
		individualResults: make(map[string]IndividualResult),
		teamResults:       make(map[string]TeamResult),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Competitors:       make(map[string]Competitor, len(state.competitors)),
		Events:            make(map[string]Event, len(state.events)),
		RelayTeams:        make(map[string]RelayTeam, len(state.relayTeams)),
		IndividualResults: make(map[string]IndividualResult, len(state.individualResults)),
		TeamResults:       make(map[string]TeamResult, len(state.teamResults)),
		LastSeq:           state.lastSeq,
	}
	for id, c := range state.competitors {
		s.Competitors[id] = cloneCompetitor(c)
	}
	for id, e := range state.events {
		s.Events[id] = cloneEvent(e)
	}
	for id, t := range state.relayTeams {
		s.RelayTeams[id] = cloneRelayTeam(t)
	}
	for id, r := range state.individualResults {
		s.IndividualResults[id] = cloneIndividualResult(r)
	}
	for id, r := range state.teamResults {
		s.TeamResults[id] = cloneTeamResult(r)
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for id, c := range s.Competitors {
		state.competitors[id] = cloneCompetitor(c)
	}
	for id, e := range s.Events {
		state.events[id] = cloneEvent(e)
	}
	for id, t := range s.RelayTeams {
		state.relayTeams[id] = cloneRelayTeam(t)
	}
	for id, r := range s.IndividualResults {
		state.individualResults[id] = cloneIndividualResult(r)
	}
	for id, r := range s.TeamResults {
		state.teamResults[id] = cloneTeamResult(r)
	}
	state.lastSeq = s.LastSeq
	return state
}

// migrateSnapshot normalizes snapshots produced by older builds or edited by
// hand: nil maps are initialized, records referencing missing competitors,
// events or teams are dropped, and the intake sequence counter is repaired so
// new results keep sorting after existing ones.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Competitors == nil {
		snapshot.Competitors = map[string]Competitor{}
	}
	if snapshot.Events == nil {
		snapshot.Events = map[string]Event{}
	}
	if snapshot.RelayTeams == nil {
		snapshot.RelayTeams = map[string]RelayTeam{}
	}
	if snapshot.IndividualResults == nil {
		snapshot.IndividualResults = map[string]IndividualResult{}
	}
	if snapshot.TeamResults == nil {
		snapshot.TeamResults = map[string]TeamResult{}
	}

	eventExists := func(id string) bool {
		_, ok := snapshot.Events[id]
		return ok
	}
	competitorExists := func(id string) bool {
		_, ok := snapshot.Competitors[id]
		return ok
	}

	for id, team := range snapshot.RelayTeams {
		if team.EventID == "" || !eventExists(team.EventID) {
			delete(snapshot.RelayTeams, id)
		}
	}
	for id, res := range snapshot.IndividualResults {
		if !eventExists(res.EventID) || !competitorExists(res.CompetitorID) {
			delete(snapshot.IndividualResults, id)
		}
	}
	for id, res := range snapshot.TeamResults {
		if _, ok := snapshot.RelayTeams[res.TeamID]; !ok || !eventExists(res.EventID) {
			delete(snapshot.TeamResults, id)
		}
	}

	var maxSeq uint64
	for _, res := range snapshot.IndividualResults {
		if res.Seq > maxSeq {
			maxSeq = res.Seq
		}
	}
	for _, res := range snapshot.TeamResults {
		if res.Seq > maxSeq {
			maxSeq = res.Seq
		}
	}
	if snapshot.LastSeq < maxSeq {
		snapshot.LastSeq = maxSeq
	}
	return snapshot
}

func cloneCompetitor(c Competitor) Competitor { return c }

func cloneEvent(e Event) Event {
	if e.Allocations != nil {
		allocations := make(map[domain.AllocationVariant]domain.AllocationTable, len(e.Allocations))
		for variant, table := range e.Allocations {
			allocations[variant] = table.Clone()
		}
		e.Allocations = allocations
	}
	return e
}

func cloneRelayTeam(t RelayTeam) RelayTeam {
	if t.MemberIDs != nil {
		t.MemberIDs = append([]string(nil), t.MemberIDs...)
	}
	return t
}

func cloneIndividualResult(r IndividualResult) IndividualResult { return r }

func cloneTeamResult(r TeamResult) TeamResult { return r }

func (s memoryState) clone() memoryState {
	out := newMemoryState()
	for id, c := range s.competitors {
		out.competitors[id] = cloneCompetitor(c)
	}
	for id, e := range s.events {
		out.events[id] = cloneEvent(e)
	}
	for id, t := range s.relayTeams {
		out.relayTeams[id] = cloneRelayTeam(t)
	}
	for id, r := range s.individualResults {
		out.individualResults[id] = cloneIndividualResult(r)
	}
	for id, r := range s.teamResults {
		out.teamResults[id] = cloneTeamResult(r)
	}
	out.lastSeq = s.lastSeq
	return out
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RestoreState replaces the store state from an archived snapshot. The memory
// implementation has nothing to flush; durable backends override this to
// persist the imported state immediately.
func (s *Store) RestoreState(_ context.Context, snapshot Snapshot) error {
	s.ImportState(snapshot)
	return nil
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// RunInTransaction executes fn against a cloned state. After fn returns, every
// pool marked dirty by result or configuration mutations is re-ranked and
// verified, then the rules engine evaluates the accumulated changes. Blocking
// violations, verification failures, or any error discard the clone; otherwise
// the clone becomes the committed state. No intermediate state is observable.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
		dirty: make(map[PoolKey]struct{}),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}
	if tx.err != nil {
		return Result{}, tx.err
	}
	if err := tx.flushRecompute(); err != nil {
		return Result{}, err
	}
	if tx.err != nil {
		return Result{}, tx.err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

// transaction represents a mutation set applied to the store state. dirty
// tracks the pools whose rankings must be recomputed before commit.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
	dirty   map[PoolKey]struct{}
	err     error
}

// changePayloadFromValue serializes an entity snapshot for the change log.
// Marshal failures poison the transaction instead of panicking.
func changePayloadFromValue(tx *transaction, value any) domain.ChangePayload {
	payload, err := domain.NewChangePayloadFromValue(value)
	if err != nil {
		if tx.err == nil {
			tx.err = fmt.Errorf("encode change payload: %w", err)
		}
		return domain.UndefinedChangePayload()
	}
	return payload
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

func (tx *transaction) markDirty(key PoolKey) {
	tx.dirty[key] = struct{}{}
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindCompetitor exposes competitor lookup within the transaction scope.
func (tx *transaction) FindCompetitor(id string) (Competitor, bool) {
	c, ok := tx.state.competitors[id]
	if !ok {
		return Competitor{}, false
	}
	return cloneCompetitor(c), true
}

// FindEvent exposes event lookup within the transaction scope.
func (tx *transaction) FindEvent(id string) (Event, bool) {
	e, ok := tx.state.events[id]
	if !ok {
		return Event{}, false
	}
	return cloneEvent(e), true
}

// FindRelayTeam exposes relay team lookup within the transaction scope.
func (tx *transaction) FindRelayTeam(id string) (RelayTeam, bool) {
	t, ok := tx.state.relayTeams[id]
	if !ok {
		return RelayTeam{}, false
	}
	return cloneRelayTeam(t), true
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListCompetitors returns all competitors within the snapshot.
func (v transactionView) ListCompetitors() []Competitor {
	out := make([]Competitor, 0, len(v.state.competitors))
	for _, c := range v.state.competitors {
		out = append(out, cloneCompetitor(c))
	}
	return out
}

// ListEvents returns all events within the snapshot.
func (v transactionView) ListEvents() []Event {
	out := make([]Event, 0, len(v.state.events))
	for _, e := range v.state.events {
		out = append(out, cloneEvent(e))
	}
	return out
}

// ListRelayTeams returns all relay teams within the snapshot.
func (v transactionView) ListRelayTeams() []RelayTeam {
	out := make([]RelayTeam, 0, len(v.state.relayTeams))
	for _, t := range v.state.relayTeams {
		out = append(out, cloneRelayTeam(t))
	}
	return out
}

// ListIndividualResults returns all individual results within the snapshot.
func (v transactionView) ListIndividualResults() []IndividualResult {
	out := make([]IndividualResult, 0, len(v.state.individualResults))
	for _, r := range v.state.individualResults {
		out = append(out, cloneIndividualResult(r))
	}
	return out
}

// ListTeamResults returns all team results within the snapshot.
func (v transactionView) ListTeamResults() []TeamResult {
	out := make([]TeamResult, 0, len(v.state.teamResults))
	for _, r := range v.state.teamResults {
		out = append(out, cloneTeamResult(r))
	}
	return out
}

// FindCompetitor retrieves a competitor by ID from the snapshot.
func (v transactionView) FindCompetitor(id string) (Competitor, bool) {
	c, ok := v.state.competitors[id]
	if !ok {
		return Competitor{}, false
	}
	return cloneCompetitor(c), true
}

// FindEvent retrieves an event by ID from the snapshot.
func (v transactionView) FindEvent(id string) (Event, bool) {
	e, ok := v.state.events[id]
	if !ok {
		return Event{}, false
	}
	return cloneEvent(e), true
}

// FindRelayTeam retrieves a relay team by ID from the snapshot.
func (v transactionView) FindRelayTeam(id string) (RelayTeam, bool) {
	t, ok := v.state.relayTeams[id]
	if !ok {
		return RelayTeam{}, false
	}
	return cloneRelayTeam(t), true
}

// FindIndividualResult retrieves an individual result by ID from the snapshot.
func (v transactionView) FindIndividualResult(id string) (IndividualResult, bool) {
	r, ok := v.state.individualResults[id]
	if !ok {
		return IndividualResult{}, false
	}
	return cloneIndividualResult(r), true
}

// FindTeamResult retrieves a team result by ID from the snapshot.
func (v transactionView) FindTeamResult(id string) (TeamResult, bool) {
	r, ok := v.state.teamResults[id]
	if !ok {
		return TeamResult{}, false
	}
	return cloneTeamResult(r), true
}

func validateCompetitor(c Competitor) error {
	if c.Name == "" {
		return domain.ValidationError{Entity: domain.EntityCompetitor, Field: "name", Message: "must not be empty"}
	}
	if c.BibNumber <= 0 {
		return domain.ValidationError{Entity: domain.EntityCompetitor, Field: "bib_number", Message: "must be positive"}
	}
	if !domain.KnownGender(c.Gender) {
		return domain.ValidationError{Entity: domain.EntityCompetitor, Field: "gender", Message: fmt.Sprintf("unknown gender %q", c.Gender)}
	}
	if c.House == "" {
		return domain.ValidationError{Entity: domain.EntityCompetitor, Field: "house", Message: "must not be empty"}
	}
	return nil
}

func validateEvent(e Event) error {
	if e.Name == "" {
		return domain.ValidationError{Entity: domain.EntityEvent, Field: "name", Message: "must not be empty"}
	}
	if !domain.KnownDiscipline(e.Discipline) {
		return domain.ValidationError{Entity: domain.EntityEvent, Field: "discipline", Message: fmt.Sprintf("unknown discipline %q", e.Discipline)}
	}
	for variant, table := range e.Allocations {
		if !domain.KnownVariant(variant) {
			return domain.ValidationError{Entity: domain.EntityEvent, Field: "allocations", Message: fmt.Sprintf("unknown variant %q", variant)}
		}
		for rank, pts := range table {
			if rank < 1 {
				return domain.ValidationError{Entity: domain.EntityEvent, Field: "allocations", Message: fmt.Sprintf("variant %q: rank %d below 1", variant, rank)}
			}
			if pts < 0 {
				return domain.ValidationError{Entity: domain.EntityEvent, Field: "allocations", Message: fmt.Sprintf("variant %q: negative points at rank %d", variant, rank)}
			}
		}
	}
	return nil
}

// CreateCompetitor stores a new competitor within the transaction.
func (tx *transaction) CreateCompetitor(c Competitor) (Competitor, error) {
	if c.ID == "" {
		c.ID = tx.store.newID()
	}
	if _, exists := tx.state.competitors[c.ID]; exists {
		return Competitor{}, fmt.Errorf("competitor %q already exists", c.ID)
	}
	if err := validateCompetitor(c); err != nil {
		return Competitor{}, err
	}
	for _, other := range tx.state.competitors {
		if other.BibNumber == c.BibNumber {
			return Competitor{}, domain.ValidationError{Entity: domain.EntityCompetitor, Field: "bib_number", Message: fmt.Sprintf("bib %d already assigned to %q", c.BibNumber, other.ID)}
		}
	}
	c.CreatedAt = tx.now
	c.UpdatedAt = tx.now
	tx.state.competitors[c.ID] = cloneCompetitor(c)
	tx.recordChange(Change{Entity: domain.EntityCompetitor, Action: domain.ActionCreate, After: changePayloadFromValue(tx, cloneCompetitor(c))})
	return cloneCompetitor(c), nil
}

// UpdateCompetitor applies a corrective edit. A gender correction migrates the
// competitor's results between pools: both the old and the new pool of every
// affected event are re-ranked before commit.
func (tx *transaction) UpdateCompetitor(id string, mutator func(*Competitor) error) (Competitor, error) {
	current, ok := tx.state.competitors[id]
	if !ok {
		return Competitor{}, fmt.Errorf("competitor %q not found", id)
	}
	before := cloneCompetitor(current)
	if err := mutator(&current); err != nil {
		return Competitor{}, err
	}
	current.ID = id
	if err := validateCompetitor(current); err != nil {
		return Competitor{}, err
	}
	if current.BibNumber != before.BibNumber {
		for otherID, other := range tx.state.competitors {
			if otherID != id && other.BibNumber == current.BibNumber {
				return Competitor{}, domain.ValidationError{Entity: domain.EntityCompetitor, Field: "bib_number", Message: fmt.Sprintf("bib %d already assigned to %q", current.BibNumber, otherID)}
			}
		}
	}
	current.UpdatedAt = tx.now
	tx.state.competitors[id] = cloneCompetitor(current)
	if current.Gender != before.Gender {
		for _, res := range tx.state.individualResults {
			if res.CompetitorID != id {
				continue
			}
			tx.markDirty(domain.IndividualPool(res.EventID, before.Gender))
			tx.markDirty(domain.IndividualPool(res.EventID, current.Gender))
		}
	}
	tx.recordChange(Change{Entity: domain.EntityCompetitor, Action: domain.ActionUpdate, Before: changePayloadFromValue(tx, before), After: changePayloadFromValue(tx, cloneCompetitor(current))})
	return cloneCompetitor(current), nil
}

// DeleteCompetitor removes a competitor that has no dependent records.
func (tx *transaction) DeleteCompetitor(id string) error {
	current, ok := tx.state.competitors[id]
	if !ok {
		return fmt.Errorf("competitor %q not found", id)
	}
	for _, res := range tx.state.individualResults {
		if res.CompetitorID == id {
			return domain.ValidationError{Entity: domain.EntityCompetitor, Message: fmt.Sprintf("%q still referenced by result %q", id, res.ID)}
		}
	}
	for _, team := range tx.state.relayTeams {
		for _, member := range team.MemberIDs {
			if member == id {
				return domain.ValidationError{Entity: domain.EntityCompetitor, Message: fmt.Sprintf("%q still referenced by relay team %q", id, team.ID)}
			}
		}
	}
	delete(tx.state.competitors, id)
	tx.recordChange(Change{Entity: domain.EntityCompetitor, Action: domain.ActionDelete, Before: changePayloadFromValue(tx, cloneCompetitor(current))})
	return nil
}

// CreateEvent stores a new event within the transaction.
func (tx *transaction) CreateEvent(e Event) (Event, error) {
	if e.ID == "" {
		e.ID = tx.store.newID()
	}
	if _, exists := tx.state.events[e.ID]; exists {
		return Event{}, fmt.Errorf("event %q already exists", e.ID)
	}
	if err := validateEvent(e); err != nil {
		return Event{}, err
	}
	for _, other := range tx.state.events {
		if other.Name == e.Name {
			return Event{}, domain.ValidationError{Entity: domain.EntityEvent, Field: "name", Message: fmt.Sprintf("event %q already exists", e.Name)}
		}
	}
	e.CreatedAt = tx.now
	e.UpdatedAt = tx.now
	tx.state.events[e.ID] = cloneEvent(e)
	tx.recordChange(Change{Entity: domain.EntityEvent, Action: domain.ActionCreate, After: changePayloadFromValue(tx, cloneEvent(e))})
	return cloneEvent(e), nil
}

// UpdateEvent mutates an event. Changes to the discipline, the team flag, or
// any allocation table mark every pool of the event for recompute.
func (tx *transaction) UpdateEvent(id string, mutator func(*Event) error) (Event, error) {
	current, ok := tx.state.events[id]
	if !ok {
		return Event{}, fmt.Errorf("event %q not found", id)
	}
	before := cloneEvent(current)
	if err := mutator(&current); err != nil {
		return Event{}, err
	}
	current.ID = id
	if err := validateEvent(current); err != nil {
		return Event{}, err
	}
	if current.Name != before.Name {
		for otherID, other := range tx.state.events {
			if otherID != id && other.Name == current.Name {
				return Event{}, domain.ValidationError{Entity: domain.EntityEvent, Field: "name", Message: fmt.Sprintf("event %q already exists", current.Name)}
			}
		}
	}
	current.UpdatedAt = tx.now
	tx.state.events[id] = cloneEvent(current)
	if current.Discipline != before.Discipline || current.TeamEvent != before.TeamEvent || !reflect.DeepEqual(current.Allocations, before.Allocations) {
		for _, key := range tx.eventPools(id) {
			tx.markDirty(key)
		}
	}
	tx.recordChange(Change{Entity: domain.EntityEvent, Action: domain.ActionUpdate, Before: changePayloadFromValue(tx, before), After: changePayloadFromValue(tx, cloneEvent(current))})
	return cloneEvent(current), nil
}

// DeleteEvent removes an event that has no dependent records.
func (tx *transaction) DeleteEvent(id string) error {
	current, ok := tx.state.events[id]
	if !ok {
		return fmt.Errorf("event %q not found", id)
	}
	for _, res := range tx.state.individualResults {
		if res.EventID == id {
			return domain.ValidationError{Entity: domain.EntityEvent, Message: fmt.Sprintf("%q still referenced by result %q", id, res.ID)}
		}
	}
	for _, res := range tx.state.teamResults {
		if res.EventID == id {
			return domain.ValidationError{Entity: domain.EntityEvent, Message: fmt.Sprintf("%q still referenced by team result %q", id, res.ID)}
		}
	}
	for _, team := range tx.state.relayTeams {
		if team.EventID == id {
			return domain.ValidationError{Entity: domain.EntityEvent, Message: fmt.Sprintf("%q still referenced by relay team %q", id, team.ID)}
		}
	}
	delete(tx.state.events, id)
	tx.recordChange(Change{Entity: domain.EntityEvent, Action: domain.ActionDelete, Before: changePayloadFromValue(tx, cloneEvent(current))})
	return nil
}

// CreateRelayTeam stores a new relay team. Field-level checks happen here;
// membership integrity (size, distinct members, house alignment) is enforced
// by the rules engine at commit so a violating team is never persisted.
func (tx *transaction) CreateRelayTeam(t RelayTeam) (RelayTeam, error) {
	if t.ID == "" {
		t.ID = tx.store.newID()
	}
	if _, exists := tx.state.relayTeams[t.ID]; exists {
		return RelayTeam{}, fmt.Errorf("relay team %q already exists", t.ID)
	}
	if t.Name == "" {
		return RelayTeam{}, domain.ValidationError{Entity: domain.EntityRelayTeam, Field: "name", Message: "must not be empty"}
	}
	if t.House == "" {
		return RelayTeam{}, domain.ValidationError{Entity: domain.EntityRelayTeam, Field: "house", Message: "must not be empty"}
	}
	event, ok := tx.state.events[t.EventID]
	if !ok {
		return RelayTeam{}, domain.ValidationError{Entity: domain.EntityRelayTeam, Field: "event_id", Message: fmt.Sprintf("unknown event %q", t.EventID)}
	}
	if !event.TeamEvent {
		return RelayTeam{}, domain.ValidationError{Entity: domain.EntityRelayTeam, Field: "event_id", Message: fmt.Sprintf("event %q is not a team event", event.Name)}
	}
	t.CreatedAt = tx.now
	t.UpdatedAt = tx.now
	tx.state.relayTeams[t.ID] = cloneRelayTeam(t)
	tx.recordChange(Change{Entity: domain.EntityRelayTeam, Action: domain.ActionCreate, After: changePayloadFromValue(tx, cloneRelayTeam(t))})
	return cloneRelayTeam(t), nil
}

// UpdateRelayTeam mutates a relay team using the provided mutator function.
func (tx *transaction) UpdateRelayTeam(id string, mutator func(*RelayTeam) error) (RelayTeam, error) {
	current, ok := tx.state.relayTeams[id]
	if !ok {
		return RelayTeam{}, fmt.Errorf("relay team %q not found", id)
	}
	before := cloneRelayTeam(current)
	if err := mutator(&current); err != nil {
		return RelayTeam{}, err
	}
	current.ID = id
	current.EventID = before.EventID
	if current.Name == "" {
		return RelayTeam{}, domain.ValidationError{Entity: domain.EntityRelayTeam, Field: "name", Message: "must not be empty"}
	}
	if current.House == "" {
		return RelayTeam{}, domain.ValidationError{Entity: domain.EntityRelayTeam, Field: "house", Message: "must not be empty"}
	}
	current.UpdatedAt = tx.now
	tx.state.relayTeams[id] = cloneRelayTeam(current)
	tx.recordChange(Change{Entity: domain.EntityRelayTeam, Action: domain.ActionUpdate, Before: changePayloadFromValue(tx, before), After: changePayloadFromValue(tx, cloneRelayTeam(current))})
	return cloneRelayTeam(current), nil
}

// DeleteRelayTeam removes a relay team that has no recorded results.
func (tx *transaction) DeleteRelayTeam(id string) error {
	current, ok := tx.state.relayTeams[id]
	if !ok {
		return fmt.Errorf("relay team %q not found", id)
	}
	for _, res := range tx.state.teamResults {
		if res.TeamID == id {
			return domain.ValidationError{Entity: domain.EntityRelayTeam, Message: fmt.Sprintf("%q still referenced by team result %q", id, res.ID)}
		}
	}
	delete(tx.state.relayTeams, id)
	tx.recordChange(Change{Entity: domain.EntityRelayTeam, Action: domain.ActionDelete, Before: changePayloadFromValue(tx, cloneRelayTeam(current))})
	return nil
}

// CreateIndividualResult validates and stores a raw individual result. Rank
// and points supplied by the caller are discarded; the recompute flush
// derives them before commit. The competitor's gender pool is marked dirty.
func (tx *transaction) CreateIndividualResult(r IndividualResult) (IndividualResult, error) {
	if r.ID == "" {
		r.ID = tx.store.newID()
	}
	if _, exists := tx.state.individualResults[r.ID]; exists {
		return IndividualResult{}, fmt.Errorf("individual result %q already exists", r.ID)
	}
	comp, ok := tx.state.competitors[r.CompetitorID]
	if !ok {
		return IndividualResult{}, domain.ValidationError{Entity: domain.EntityIndividualResult, Field: "competitor_id", Message: fmt.Sprintf("unknown competitor %q", r.CompetitorID)}
	}
	event, ok := tx.state.events[r.EventID]
	if !ok {
		return IndividualResult{}, domain.ValidationError{Entity: domain.EntityIndividualResult, Field: "event_id", Message: fmt.Sprintf("unknown event %q", r.EventID)}
	}
	if event.TeamEvent {
		return IndividualResult{}, domain.ValidationError{Entity: domain.EntityIndividualResult, Field: "event_id", Message: fmt.Sprintf("event %q is a team event", event.Name)}
	}
	if r.Measure <= 0 {
		return IndividualResult{}, domain.ValidationError{Entity: domain.EntityIndividualResult, Field: "measure", Message: "must be positive"}
	}
	for _, other := range tx.state.individualResults {
		if other.CompetitorID == r.CompetitorID && other.EventID == r.EventID {
			return IndividualResult{}, domain.ValidationError{Entity: domain.EntityIndividualResult, Field: "competitor_id", Message: fmt.Sprintf("competitor %q already has a result in event %q", r.CompetitorID, event.Name)}
		}
	}
	r.Rank = 0
	r.Points = 0
	tx.state.lastSeq++
	r.Seq = tx.state.lastSeq
	r.CreatedAt = tx.now
	r.UpdatedAt = tx.now
	tx.state.individualResults[r.ID] = cloneIndividualResult(r)
	tx.markDirty(domain.IndividualPool(r.EventID, comp.Gender))
	tx.recordChange(Change{Entity: domain.EntityIndividualResult, Action: domain.ActionCreate, After: changePayloadFromValue(tx, cloneIndividualResult(r))})
	return cloneIndividualResult(r), nil
}

// UpdateIndividualResult applies a measurement correction. Identity, intake
// sequence, and derived fields are immutable; the affected pool is re-ranked
// before commit.
func (tx *transaction) UpdateIndividualResult(id string, mutator func(*IndividualResult) error) (IndividualResult, error) {
	current, ok := tx.state.individualResults[id]
	if !ok {
		return IndividualResult{}, fmt.Errorf("individual result %q not found", id)
	}
	before := cloneIndividualResult(current)
	if err := mutator(&current); err != nil {
		return IndividualResult{}, err
	}
	current.ID = id
	current.CompetitorID = before.CompetitorID
	current.EventID = before.EventID
	current.Seq = before.Seq
	current.CreatedAt = before.CreatedAt
	if current.Measure <= 0 {
		return IndividualResult{}, domain.ValidationError{Entity: domain.EntityIndividualResult, Field: "measure", Message: "must be positive"}
	}
	current.UpdatedAt = tx.now
	tx.state.individualResults[id] = cloneIndividualResult(current)
	if comp, ok := tx.state.competitors[current.CompetitorID]; ok {
		tx.markDirty(domain.IndividualPool(current.EventID, comp.Gender))
	}
	tx.recordChange(Change{Entity: domain.EntityIndividualResult, Action: domain.ActionUpdate, Before: changePayloadFromValue(tx, before), After: changePayloadFromValue(tx, cloneIndividualResult(current))})
	return cloneIndividualResult(current), nil
}

// DeleteIndividualResult withdraws a result and re-ranks the remaining pool.
func (tx *transaction) DeleteIndividualResult(id string) error {
	current, ok := tx.state.individualResults[id]
	if !ok {
		return fmt.Errorf("individual result %q not found", id)
	}
	delete(tx.state.individualResults, id)
	if comp, ok := tx.state.competitors[current.CompetitorID]; ok {
		tx.markDirty(domain.IndividualPool(current.EventID, comp.Gender))
	}
	tx.recordChange(Change{Entity: domain.EntityIndividualResult, Action: domain.ActionDelete, Before: changePayloadFromValue(tx, cloneIndividualResult(current))})
	return nil
}

// CreateTeamResult validates and stores a raw relay result. Rank and points
// are derived before commit; the event's relay pool is marked dirty.
func (tx *transaction) CreateTeamResult(r TeamResult) (TeamResult, error) {
	if r.ID == "" {
		r.ID = tx.store.newID()
	}
	if _, exists := tx.state.teamResults[r.ID]; exists {
		return TeamResult{}, fmt.Errorf("team result %q already exists", r.ID)
	}
	team, ok := tx.state.relayTeams[r.TeamID]
	if !ok {
		return TeamResult{}, domain.ValidationError{Entity: domain.EntityTeamResult, Field: "team_id", Message: fmt.Sprintf("unknown relay team %q", r.TeamID)}
	}
	event, ok := tx.state.events[r.EventID]
	if !ok {
		return TeamResult{}, domain.ValidationError{Entity: domain.EntityTeamResult, Field: "event_id", Message: fmt.Sprintf("unknown event %q", r.EventID)}
	}
	if !event.TeamEvent {
		return TeamResult{}, domain.ValidationError{Entity: domain.EntityTeamResult, Field: "event_id", Message: fmt.Sprintf("event %q is not a team event", event.Name)}
	}
	if team.EventID != r.EventID {
		return TeamResult{}, domain.ValidationError{Entity: domain.EntityTeamResult, Field: "team_id", Message: fmt.Sprintf("relay team %q is registered for a different event", team.Name)}
	}
	if r.Measure <= 0 {
		return TeamResult{}, domain.ValidationError{Entity: domain.EntityTeamResult, Field: "measure", Message: "must be positive"}
	}
	for _, other := range tx.state.teamResults {
		if other.TeamID == r.TeamID && other.EventID == r.EventID {
			return TeamResult{}, domain.ValidationError{Entity: domain.EntityTeamResult, Field: "team_id", Message: fmt.Sprintf("relay team %q already has a result in event %q", team.Name, event.Name)}
		}
	}
	r.Rank = 0
	r.Points = 0
	tx.state.lastSeq++
	r.Seq = tx.state.lastSeq
	r.CreatedAt = tx.now
	r.UpdatedAt = tx.now
	tx.state.teamResults[r.ID] = cloneTeamResult(r)
	tx.markDirty(domain.TeamPool(r.EventID))
	tx.recordChange(Change{Entity: domain.EntityTeamResult, Action: domain.ActionCreate, After: changePayloadFromValue(tx, cloneTeamResult(r))})
	return cloneTeamResult(r), nil
}

// UpdateTeamResult applies a measurement correction to a relay result.
func (tx *transaction) UpdateTeamResult(id string, mutator func(*TeamResult) error) (TeamResult, error) {
	current, ok := tx.state.teamResults[id]
	if !ok {
		return TeamResult{}, fmt.Errorf("team result %q not found", id)
	}
	before := cloneTeamResult(current)
	if err := mutator(&current); err != nil {
		return TeamResult{}, err
	}
	current.ID = id
	current.TeamID = before.TeamID
	current.EventID = before.EventID
	current.Seq = before.Seq
	current.CreatedAt = before.CreatedAt
	if current.Measure <= 0 {
		return TeamResult{}, domain.ValidationError{Entity: domain.EntityTeamResult, Field: "measure", Message: "must be positive"}
	}
	current.UpdatedAt = tx.now
	tx.state.teamResults[id] = cloneTeamResult(current)
	tx.markDirty(domain.TeamPool(current.EventID))
	tx.recordChange(Change{Entity: domain.EntityTeamResult, Action: domain.ActionUpdate, Before: changePayloadFromValue(tx, before), After: changePayloadFromValue(tx, cloneTeamResult(current))})
	return cloneTeamResult(current), nil
}

// DeleteTeamResult withdraws a relay result and re-ranks the remaining pool.
func (tx *transaction) DeleteTeamResult(id string) error {
	current, ok := tx.state.teamResults[id]
	if !ok {
		return fmt.Errorf("team result %q not found", id)
	}
	delete(tx.state.teamResults, id)
	tx.markDirty(domain.TeamPool(current.EventID))
	tx.recordChange(Change{Entity: domain.EntityTeamResult, Action: domain.ActionDelete, Before: changePayloadFromValue(tx, cloneTeamResult(current))})
	return nil
}

// eventPools returns every pool of the event that currently has results,
// ordered deterministically.
func (tx *transaction) eventPools(eventID string) []PoolKey {
	seen := map[PoolKey]struct{}{}
	for _, res := range tx.state.individualResults {
		if res.EventID != eventID {
			continue
		}
		comp, ok := tx.state.competitors[res.CompetitorID]
		if !ok {
			continue
		}
		seen[domain.IndividualPool(eventID, comp.Gender)] = struct{}{}
	}
	for _, res := range tx.state.teamResults {
		if res.EventID == eventID {
			seen[domain.TeamPool(eventID)] = struct{}{}
			break
		}
	}
	return sortedPoolKeys(seen)
}

func sortedPoolKeys(set map[PoolKey]struct{}) []PoolKey {
	keys := make([]PoolKey, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].EventID != keys[j].EventID {
			return keys[i].EventID < keys[j].EventID
		}
		return keys[i].Partition < keys[j].Partition
	})
	return keys
}

// flushRecompute re-ranks every dirty pool. Called before rules evaluation so
// committed state and the change log always reflect final rankings.
func (tx *transaction) flushRecompute() error {
	keys := sortedPoolKeys(tx.dirty)
	tx.dirty = make(map[PoolKey]struct{})
	for _, key := range keys {
		if err := tx.recomputePool(key); err != nil {
			return err
		}
	}
	return nil
}

// RecomputePool forces an immediate re-rank of one pool.
func (tx *transaction) RecomputePool(key PoolKey) error {
	delete(tx.dirty, key)
	return tx.recomputePool(key)
}

// RecomputeEvent re-ranks every pool of the event immediately.
func (tx *transaction) RecomputeEvent(eventID string) error {
	if _, ok := tx.state.events[eventID]; !ok {
		return fmt.Errorf("event %q not found", eventID)
	}
	for _, key := range tx.eventPools(eventID) {
		if err := tx.RecomputePool(key); err != nil {
			return err
		}
	}
	return nil
}

// recomputePool gathers the pool's members, derives ranks and points, and
// writes back every member whose derived fields changed. The fresh ranking is
// verified before the write-back is accepted.
func (tx *transaction) recomputePool(key PoolKey) error {
	event, ok := tx.state.events[key.EventID]
	if !ok {
		// results cannot outlive their event; nothing to rank
		return nil
	}
	table := event.AllocationFor(key.Partition)

	if key.Partition == domain.PartitionTeam {
		entries := make([]domain.PoolEntry, 0)
		for id, res := range tx.state.teamResults {
			if res.EventID != key.EventID {
				continue
			}
			entries = append(entries, domain.PoolEntry{ID: id, Measure: res.Measure, Seq: res.Seq})
		}
		ranked := domain.RankPool(event.Discipline, table, entries)
		if err := domain.VerifyRanking(key, event.Discipline, ranked); err != nil {
			return err
		}
		for _, entry := range ranked {
			res := tx.state.teamResults[entry.ID]
			if res.Rank == entry.Rank && res.Points == entry.Points {
				continue
			}
			before := cloneTeamResult(res)
			res.Rank = entry.Rank
			res.Points = entry.Points
			res.UpdatedAt = tx.now
			tx.state.teamResults[entry.ID] = res
			tx.recordChange(Change{Entity: domain.EntityTeamResult, Action: domain.ActionUpdate, Before: changePayloadFromValue(tx, before), After: changePayloadFromValue(tx, cloneTeamResult(res))})
		}
		return nil
	}

	entries := make([]domain.PoolEntry, 0)
	for id, res := range tx.state.individualResults {
		if res.EventID != key.EventID {
			continue
		}
		comp, ok := tx.state.competitors[res.CompetitorID]
		if !ok || string(comp.Gender) != key.Partition {
			continue
		}
		entries = append(entries, domain.PoolEntry{ID: id, Measure: res.Measure, Seq: res.Seq})
	}
	ranked := domain.RankPool(event.Discipline, table, entries)
	if err := domain.VerifyRanking(key, event.Discipline, ranked); err != nil {
		return err
	}
	for _, entry := range ranked {
		res := tx.state.individualResults[entry.ID]
		if res.Rank == entry.Rank && res.Points == entry.Points {
			continue
		}
		before := cloneIndividualResult(res)
		res.Rank = entry.Rank
		res.Points = entry.Points
		res.UpdatedAt = tx.now
		tx.state.individualResults[entry.ID] = res
		tx.recordChange(Change{Entity: domain.EntityIndividualResult, Action: domain.ActionUpdate, Before: changePayloadFromValue(tx, before), After: changePayloadFromValue(tx, cloneIndividualResult(res))})
	}
	return nil
}

// GetCompetitor retrieves a competitor by ID from committed state.
func (s *Store) GetCompetitor(id string) (Competitor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.state.competitors[id]
	if !ok {
		return Competitor{}, false
	}
	return cloneCompetitor(c), true
}

// ListCompetitors returns all competitors from committed state.
func (s *Store) ListCompetitors() []Competitor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Competitor, 0, len(s.state.competitors))
	for _, c := range s.state.competitors {
		out = append(out, cloneCompetitor(c))
	}
	return out
}

// GetEvent retrieves an event by ID from committed state.
func (s *Store) GetEvent(id string) (Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.state.events[id]
	if !ok {
		return Event{}, false
	}
	return cloneEvent(e), true
}

// ListEvents returns all events from committed state.
func (s *Store) ListEvents() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, 0, len(s.state.events))
	for _, e := range s.state.events {
		out = append(out, cloneEvent(e))
	}
	return out
}

// GetRelayTeam retrieves a relay team by ID from committed state.
func (s *Store) GetRelayTeam(id string) (RelayTeam, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.state.relayTeams[id]
	if !ok {
		return RelayTeam{}, false
	}
	return cloneRelayTeam(t), true
}

// ListRelayTeams returns all relay teams from committed state.
func (s *Store) ListRelayTeams() []RelayTeam {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RelayTeam, 0, len(s.state.relayTeams))
	for _, t := range s.state.relayTeams {
		out = append(out, cloneRelayTeam(t))
	}
	return out
}

// ListIndividualResults returns all individual results from committed state.
func (s *Store) ListIndividualResults() []IndividualResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]IndividualResult, 0, len(s.state.individualResults))
	for _, r := range s.state.individualResults {
		out = append(out, cloneIndividualResult(r))
	}
	return out
}

// ListTeamResults returns all team results from committed state.
func (s *Store) ListTeamResults() []TeamResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TeamResult, 0, len(s.state.teamResults))
	for _, r := range s.state.teamResults {
		out = append(out, cloneTeamResult(r))
	}
	return out
}
