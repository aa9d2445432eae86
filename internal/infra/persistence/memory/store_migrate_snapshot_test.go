package memory

import (
	"testing"

	"meetcore/pkg/domain"
)

func TestMigrateSnapshotInitialisesAndFilters(t *testing.T) {
	snapshot := Snapshot{
		RelayTeams: map[string]RelayTeam{
			"team-missing": {Base: domain.Base{ID: "team-missing"}, EventID: "missing-event"},
		},
		IndividualResults: map[string]IndividualResult{
			"res-missing": {Base: domain.Base{ID: "res-missing"}, CompetitorID: "missing-competitor", EventID: "missing-event"},
		},
		TeamResults: map[string]TeamResult{
			"teamres-missing": {Base: domain.Base{ID: "teamres-missing"}, TeamID: "missing-team", EventID: "missing-event"},
		},
	}

	migrated := migrateSnapshot(snapshot)

	if migrated.Competitors == nil || migrated.Events == nil {
		t.Fatalf("expected migrateSnapshot to initialise nil maps")
	}
	if len(migrated.RelayTeams) != 0 {
		t.Fatalf("expected relay teams with missing events to be dropped, got %d", len(migrated.RelayTeams))
	}
	if len(migrated.IndividualResults) != 0 {
		t.Fatalf("expected results with missing competitors to be dropped, got %d", len(migrated.IndividualResults))
	}
	if len(migrated.TeamResults) != 0 {
		t.Fatalf("expected team results with missing teams to be dropped, got %d", len(migrated.TeamResults))
	}
}

func TestMigrateSnapshotRepairsSequenceCounter(t *testing.T) {
	snapshot := Snapshot{
		Competitors: map[string]Competitor{
			"comp-1": {Base: domain.Base{ID: "comp-1"}, Name: "A", BibNumber: 1, Gender: domain.GenderMale, House: "Ignis"},
		},
		Events: map[string]Event{
			"event-1": {Base: domain.Base{ID: "event-1"}, Name: "100m", Discipline: domain.DisciplineTrack},
		},
		IndividualResults: map[string]IndividualResult{
			"res-1": {Base: domain.Base{ID: "res-1"}, CompetitorID: "comp-1", EventID: "event-1", Measure: 12.0, Seq: 41},
		},
		LastSeq: 3,
	}

	migrated := migrateSnapshot(snapshot)

	if migrated.LastSeq != 41 {
		t.Fatalf("expected sequence counter repaired to max observed seq, got %d", migrated.LastSeq)
	}
	if len(migrated.IndividualResults) != 1 {
		t.Fatalf("expected consistent result to survive migration, got %d", len(migrated.IndividualResults))
	}
}
