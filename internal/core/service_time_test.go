package core

import (
	"context"
	"testing"
	"time"

	"meetcore/pkg/domain"
)

func TestClockFuncNowNilFallsBackToUTCTime(t *testing.T) {
	got := ClockFunc(nil).Now()
	if got.IsZero() {
		t.Fatal("expected non-zero time from nil ClockFunc")
	}
	if got.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %s", got.Location())
	}
}

func TestClockFuncNowDelegatesToFunction(t *testing.T) {
	expected := time.Date(2026, 7, 4, 12, 34, 56, 0, time.FixedZone("offset", -5*3600))
	fn := ClockFunc(func() time.Time { return expected })
	got := fn.Now()
	if !got.Equal(expected.UTC()) {
		t.Fatalf("expected %s, got %s", expected.UTC(), got)
	}
}

func TestExtractRulesEngine(t *testing.T) {
	engine := domain.NewRulesEngine()
	store := NewMemoryStore(engine)
	if got := extractRulesEngine(store); got != engine {
		t.Fatalf("expected engine pointer, got %v", got)
	}
	if extractRulesEngine(&fakePersistentStore{}) != nil {
		t.Fatal("expected nil for stores without RulesEngine provider")
	}
}

func TestSelectNowFuncPrefersStoreProvider(t *testing.T) {
	expected := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("cet", 3600))
	store := &providerStore{
		fakePersistentStore: &fakePersistentStore{},
		engine:              domain.NewRulesEngine(),
		now:                 func() time.Time { return expected },
	}
	nowFn := selectNowFunc(store, nil)
	if got := nowFn(); !got.Equal(expected.UTC()) {
		t.Fatalf("expected store now func to be used, got %s", got)
	}
}

func TestSelectNowFuncFallsBackToClock(t *testing.T) {
	expected := time.Date(2030, 5, 6, 7, 8, 9, 0, time.UTC)
	clock := ClockFunc(func() time.Time { return expected })
	store := &providerStore{
		fakePersistentStore: &fakePersistentStore{},
		engine:              domain.NewRulesEngine(),
	}
	nowFn := selectNowFunc(store, clock)
	if got := nowFn(); !got.Equal(expected) {
		t.Fatalf("expected clock fallback, got %s", got)
	}
}

func TestSelectNowFuncDefaultsToSystemUTC(t *testing.T) {
	store := &fakePersistentStore{}
	nowFn := selectNowFunc(store, nil)
	got := nowFn()
	if got.Location() != time.UTC {
		t.Fatalf("expected UTC time, got %s", got.Location())
	}
	if time.Since(got) > time.Second || time.Since(got) < -time.Second {
		t.Fatalf("expected near-current time, got %s", got)
	}
}

type providerStore struct {
	*fakePersistentStore
	engine *domain.RulesEngine
	now    func() time.Time
}

func (p *providerStore) RulesEngine() *domain.RulesEngine { return p.engine }

func (p *providerStore) NowFunc() func() time.Time { return p.now }

type fakePersistentStore struct {
	competitors       []domain.Competitor
	events            []domain.Event
	relayTeams        []domain.RelayTeam
	individualResults []domain.IndividualResult
	teamResults       []domain.TeamResult
	viewCalled        bool
}

func (f *fakePersistentStore) RunInTransaction(context.Context, func(domain.Transaction) error) (domain.Result, error) {
	return domain.Result{}, nil
}

func (f *fakePersistentStore) View(_ context.Context, fn func(domain.TransactionView) error) error {
	f.viewCalled = true
	if fn == nil {
		return nil
	}
	return fn(fakeTransactionView{store: f})
}

func (f *fakePersistentStore) GetCompetitor(id string) (domain.Competitor, bool) {
	for _, competitor := range f.competitors {
		if competitor.ID == id {
			return competitor, true
		}
	}
	return domain.Competitor{}, false
}

func (f *fakePersistentStore) ListCompetitors() []domain.Competitor {
	return append([]domain.Competitor(nil), f.competitors...)
}

func (f *fakePersistentStore) GetEvent(id string) (domain.Event, bool) {
	for _, event := range f.events {
		if event.ID == id {
			return event, true
		}
	}
	return domain.Event{}, false
}

func (f *fakePersistentStore) ListEvents() []domain.Event {
	return append([]domain.Event(nil), f.events...)
}

func (f *fakePersistentStore) GetRelayTeam(id string) (domain.RelayTeam, bool) {
	for _, team := range f.relayTeams {
		if team.ID == id {
			return team, true
		}
	}
	return domain.RelayTeam{}, false
}

func (f *fakePersistentStore) ListRelayTeams() []domain.RelayTeam {
	return append([]domain.RelayTeam(nil), f.relayTeams...)
}

func (f *fakePersistentStore) ListIndividualResults() []domain.IndividualResult {
	return append([]domain.IndividualResult(nil), f.individualResults...)
}

func (f *fakePersistentStore) ListTeamResults() []domain.TeamResult {
	return append([]domain.TeamResult(nil), f.teamResults...)
}

type fakeTransactionView struct {
	store *fakePersistentStore
}

func (v fakeTransactionView) ListCompetitors() []domain.Competitor {
	return v.store.ListCompetitors()
}

func (v fakeTransactionView) ListEvents() []domain.Event {
	return v.store.ListEvents()
}

func (v fakeTransactionView) ListRelayTeams() []domain.RelayTeam {
	return v.store.ListRelayTeams()
}

func (v fakeTransactionView) ListIndividualResults() []domain.IndividualResult {
	return v.store.ListIndividualResults()
}

func (v fakeTransactionView) ListTeamResults() []domain.TeamResult {
	return v.store.ListTeamResults()
}

func (v fakeTransactionView) FindCompetitor(id string) (domain.Competitor, bool) {
	return v.store.GetCompetitor(id)
}

func (v fakeTransactionView) FindEvent(id string) (domain.Event, bool) {
	return v.store.GetEvent(id)
}

func (v fakeTransactionView) FindRelayTeam(id string) (domain.RelayTeam, bool) {
	return v.store.GetRelayTeam(id)
}

func (v fakeTransactionView) FindIndividualResult(id string) (domain.IndividualResult, bool) {
	for _, result := range v.store.individualResults {
		if result.ID == id {
			return result, true
		}
	}
	return domain.IndividualResult{}, false
}

func (v fakeTransactionView) FindTeamResult(id string) (domain.TeamResult, bool) {
	for _, result := range v.store.teamResults {
		if result.ID == id {
			return result, true
		}
	}
	return domain.TeamResult{}, false
}
