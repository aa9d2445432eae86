package domain

import (
	"testing"
)

// fixtureView implements RuleView over in-memory slices for standings tests.
type fixtureView struct {
	competitors []Competitor
	events      []Event
	teams       []RelayTeam
	individual  []IndividualResult
	team        []TeamResult
}

func (v fixtureView) ListCompetitors() []Competitor             { return v.competitors }
func (v fixtureView) ListEvents() []Event                       { return v.events }
func (v fixtureView) ListRelayTeams() []RelayTeam               { return v.teams }
func (v fixtureView) ListIndividualResults() []IndividualResult { return v.individual }
func (v fixtureView) ListTeamResults() []TeamResult             { return v.team }

func (v fixtureView) FindCompetitor(id string) (Competitor, bool) {
	for _, c := range v.competitors {
		if c.ID == id {
			return c, true
		}
	}
	return Competitor{}, false
}

func (v fixtureView) FindEvent(id string) (Event, bool) {
	for _, e := range v.events {
		if e.ID == id {
			return e, true
		}
	}
	return Event{}, false
}

func (v fixtureView) FindRelayTeam(id string) (RelayTeam, bool) {
	for _, t := range v.teams {
		if t.ID == id {
			return t, true
		}
	}
	return RelayTeam{}, false
}

func (v fixtureView) FindIndividualResult(id string) (IndividualResult, bool) {
	for _, r := range v.individual {
		if r.ID == id {
			return r, true
		}
	}
	return IndividualResult{}, false
}

func (v fixtureView) FindTeamResult(id string) (TeamResult, bool) {
	for _, r := range v.team {
		if r.ID == id {
			return r, true
		}
	}
	return TeamResult{}, false
}

func standingsFixture() fixtureView {
	return fixtureView{
		competitors: []Competitor{
			{Base: Base{ID: "c1"}, Name: "Asha", Gender: GenderFemale, House: "Ignis"},
			{Base: Base{ID: "c2"}, Name: "Brook", Gender: GenderFemale, House: "Nereus"},
			{Base: Base{ID: "c3"}, Name: "Cato", Gender: GenderMale, House: "Ignis"},
		},
		events: []Event{
			{Base: Base{ID: "sprint"}, Name: "100m", Discipline: DisciplineTrack},
			{Base: Base{ID: "relay"}, Name: "4x100m", Discipline: DisciplineTrack, TeamEvent: true},
		},
		teams: []RelayTeam{
			{Base: Base{ID: "t1"}, Name: "Ignis A", EventID: "relay", House: "Ignis"},
		},
		individual: []IndividualResult{
			{Base: Base{ID: "r1"}, CompetitorID: "c1", EventID: "sprint", Measure: 12.5, Rank: 1, Points: 10, Seq: 1},
			{Base: Base{ID: "r2"}, CompetitorID: "c2", EventID: "sprint", Measure: 13.0, Rank: 2, Points: 6, Seq: 2},
			{Base: Base{ID: "r3"}, CompetitorID: "c3", EventID: "sprint", Measure: 11.9, Rank: 1, Points: 10, Seq: 3},
			// participation record under a team event: never scores
			{Base: Base{ID: "r4"}, CompetitorID: "c1", EventID: "relay", Measure: 13.1, Rank: 1, Points: 10, Seq: 4},
		},
		team: []TeamResult{
			{Base: Base{ID: "tr1"}, TeamID: "t1", EventID: "relay", Measure: 51.0, Rank: 1, Points: 15, Seq: 5},
		},
	}
}

func TestBuildPoolStandingsIndividual(t *testing.T) {
	view := standingsFixture()
	rows := BuildPoolStandings(view, PoolKey{EventID: "sprint", Partition: "female"})
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].EntrantName != "Asha" || rows[0].Rank != 1 || rows[0].Points != 10 {
		t.Fatalf("unexpected first row %+v", rows[0])
	}
	if rows[1].EntrantName != "Brook" || rows[1].House != "Nereus" {
		t.Fatalf("unexpected second row %+v", rows[1])
	}
}

func TestBuildPoolStandingsTeam(t *testing.T) {
	view := standingsFixture()
	rows := BuildPoolStandings(view, TeamPool("relay"))
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].EntrantName != "Ignis A" || rows[0].Points != 15 {
		t.Fatalf("unexpected relay row %+v", rows[0])
	}
}

func TestBuildPoolStandingsUnknownEventIsEmpty(t *testing.T) {
	view := standingsFixture()
	if rows := BuildPoolStandings(view, PoolKey{EventID: "ghost", Partition: "male"}); len(rows) != 0 {
		t.Fatalf("expected empty standings for unknown event, got %+v", rows)
	}
	if rows := BuildPoolStandings(view, PoolKey{EventID: "sprint", Partition: "other"}); len(rows) != 0 {
		t.Fatalf("expected empty standings for empty partition, got %+v", rows)
	}
}

func TestTallyHousesCountsEachResultOnce(t *testing.T) {
	view := standingsFixture()
	tallies := TallyHouses(view)
	if len(tallies) != 2 {
		t.Fatalf("expected 2 houses, got %d", len(tallies))
	}
	// Ignis: 10 (c1 sprint) + 10 (c3 sprint) individual, 15 relay. The
	// individual row under the relay event must not contribute.
	if tallies[0].House != "Ignis" || tallies[0].IndividualPoints != 20 || tallies[0].RelayPoints != 15 || tallies[0].TotalPoints != 35 {
		t.Fatalf("unexpected leading tally %+v", tallies[0])
	}
	if tallies[1].House != "Nereus" || tallies[1].TotalPoints != 6 {
		t.Fatalf("unexpected trailing tally %+v", tallies[1])
	}
}

func TestTallyHousesOrdersTiesByName(t *testing.T) {
	view := fixtureView{
		competitors: []Competitor{
			{Base: Base{ID: "c1"}, Name: "A", Gender: GenderMale, House: "Ventus"},
			{Base: Base{ID: "c2"}, Name: "B", Gender: GenderMale, House: "Terra"},
		},
		events: []Event{{Base: Base{ID: "e"}, Name: "100m", Discipline: DisciplineTrack}},
		individual: []IndividualResult{
			{Base: Base{ID: "r1"}, CompetitorID: "c1", EventID: "e", Rank: 1, Points: 10},
			{Base: Base{ID: "r2"}, CompetitorID: "c2", EventID: "e", Rank: 2, Points: 10},
		},
	}
	tallies := TallyHouses(view)
	if tallies[0].House != "Terra" || tallies[1].House != "Ventus" {
		t.Fatalf("expected alphabetical order on equal points, got %+v", tallies)
	}
}

func TestTallyCompetitors(t *testing.T) {
	view := standingsFixture()
	all := TallyCompetitors(view, "")
	if len(all) != 3 {
		t.Fatalf("expected 3 competitors, got %d", len(all))
	}
	// Asha and Cato both have 10 points and one gold; name breaks the tie.
	if all[0].Competitor.Name != "Asha" || all[0].Gold != 1 || all[0].TotalPoints != 10 {
		t.Fatalf("unexpected leader %+v", all[0])
	}
	if all[0].EventCount != 1 {
		t.Fatalf("team-event participation must not count, got %d events", all[0].EventCount)
	}
	if all[1].Competitor.Name != "Cato" {
		t.Fatalf("expected Cato second, got %+v", all[1])
	}
	if all[2].Competitor.Name != "Brook" || all[2].Silver != 1 {
		t.Fatalf("unexpected third row %+v", all[2])
	}

	females := TallyCompetitors(view, GenderFemale)
	if len(females) != 2 {
		t.Fatalf("expected 2 female competitors, got %d", len(females))
	}
	for _, st := range females {
		if st.Competitor.Gender != GenderFemale {
			t.Fatalf("gender filter leaked %+v", st)
		}
	}
}
