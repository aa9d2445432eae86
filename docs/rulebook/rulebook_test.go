package rulebook

import (
	"encoding/json"
	"testing"
)

func TestVersion(t *testing.T) {
	got, err := Version()
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if got == "" {
		t.Fatal("expected non-empty rulebook version")
	}

	var doc rulebookDoc
	if err := json.Unmarshal(rulebookJSON, &doc); err != nil {
		t.Fatalf("unmarshal rulebook: %v", err)
	}
	if got != doc.Version {
		t.Fatalf("version mismatch: got %q want %q", got, doc.Version)
	}
}

func TestMeta(t *testing.T) {
	got, err := Meta()
	if err != nil {
		t.Fatalf("Meta: %v", err)
	}
	if got.Status == "" || got.Source == "" {
		t.Fatalf("expected status and source, got %+v", got)
	}
}

func TestHousesReturnsCopy(t *testing.T) {
	houses, err := Houses()
	if err != nil {
		t.Fatalf("Houses: %v", err)
	}
	want := []string{"Ignis", "Nereus", "Ventus", "Terra"}
	if len(houses) != len(want) {
		t.Fatalf("expected %d houses, got %v", len(want), houses)
	}
	for i, house := range want {
		if houses[i] != house {
			t.Fatalf("house %d mismatch: got %q want %q", i, houses[i], house)
		}
	}

	houses[0] = "Mutated"
	again, err := Houses()
	if err != nil {
		t.Fatalf("Houses: %v", err)
	}
	if again[0] != "Ignis" {
		t.Fatal("Houses did not return a defensive copy")
	}
}

func TestDefaultAllocations(t *testing.T) {
	individual, err := DefaultIndividualAllocation()
	if err != nil {
		t.Fatalf("DefaultIndividualAllocation: %v", err)
	}
	wantIndividual := map[int]int{1: 10, 2: 6, 3: 3, 4: 1}
	if len(individual) != len(wantIndividual) {
		t.Fatalf("individual table mismatch: %v", individual)
	}
	for rank, points := range wantIndividual {
		if individual[rank] != points {
			t.Fatalf("individual rank %d: got %d want %d", rank, individual[rank], points)
		}
	}

	relay, err := DefaultRelayAllocation()
	if err != nil {
		t.Fatalf("DefaultRelayAllocation: %v", err)
	}
	wantRelay := map[int]int{1: 15, 2: 9, 3: 5, 4: 3}
	for rank, points := range wantRelay {
		if relay[rank] != points {
			t.Fatalf("relay rank %d: got %d want %d", rank, relay[rank], points)
		}
	}

	individual[1] = 999
	again, err := DefaultIndividualAllocation()
	if err != nil {
		t.Fatalf("DefaultIndividualAllocation: %v", err)
	}
	if again[1] != 10 {
		t.Fatal("DefaultIndividualAllocation did not return a defensive copy")
	}
}

func TestAllocationUnknownName(t *testing.T) {
	if _, err := allocation("mixed"); err == nil {
		t.Fatal("expected error for unknown allocation name")
	}
}
