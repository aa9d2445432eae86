package core

import (
	"context"
	"sort"

	"meetcore/pkg/domain"
)

// NewRankIntegrityRule returns the rule that re-verifies derived rankings for
// every event touched by a transaction: ranks contiguous from 1, measurement
// order matching the event discipline, no negative points. The recompute
// controller verifies pools it rewrites; this rule additionally covers state
// arriving through snapshot import and any write path that bypasses a
// recompute.
func NewRankIntegrityRule() domain.Rule {
	return rankIntegrityRule{}
}

type rankIntegrityRule struct{}

func (rankIntegrityRule) Name() string { return "rank_integrity" }

func (rankIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, eventID := range touchedEventIDs(changes) {
		event, ok := view.FindEvent(eventID)
		if !ok {
			// results cannot outlive their event; nothing to verify
			continue
		}
		pools := eventPoolEntries(view, event)
		keys := make([]domain.PoolKey, 0, len(pools))
		for key := range pools {
			keys = append(keys, key)
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].EventID != keys[j].EventID {
				return keys[i].EventID < keys[j].EventID
			}
			return keys[i].Partition < keys[j].Partition
		})
		for _, key := range keys {
			if err := domain.VerifyRanking(key, event.Discipline, pools[key]); err != nil {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     "rank_integrity",
					Severity: domain.SeverityBlock,
					Message:  err.Error(),
					Entity:   domain.EntityEvent,
					EntityID: event.ID,
				})
			}
		}
	}
	return res, nil
}

// touchedEventIDs extracts the events affected by a change list in first-seen
// order. Both sides of each change are inspected so moves between events
// verify the old and the new pool.
func touchedEventIDs(changes []domain.Change) []string {
	seen := map[string]struct{}{}
	var ids []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, change := range changes {
		for _, payload := range []domain.ChangePayload{change.Before, change.After} {
			switch change.Entity {
			case domain.EntityEvent:
				if event, ok := decodeChangePayload[domain.Event](payload); ok {
					add(event.ID)
				}
			case domain.EntityIndividualResult:
				if result, ok := decodeChangePayload[domain.IndividualResult](payload); ok {
					add(result.EventID)
				}
			case domain.EntityTeamResult:
				if result, ok := decodeChangePayload[domain.TeamResult](payload); ok {
					add(result.EventID)
				}
			case domain.EntityRelayTeam:
				if team, ok := decodeChangePayload[domain.RelayTeam](payload); ok {
					add(team.EventID)
				}
			}
		}
	}
	return ids
}

// eventPoolEntries groups the event's persisted results into scoring pools
// the same way the recompute controller does: individual results partition by
// competitor gender, team results share the single team partition.
func eventPoolEntries(view domain.RuleView, event domain.Event) map[domain.PoolKey][]domain.PoolEntry {
	pools := map[domain.PoolKey][]domain.PoolEntry{}
	for _, res := range view.ListIndividualResults() {
		if res.EventID != event.ID {
			continue
		}
		comp, ok := view.FindCompetitor(res.CompetitorID)
		if !ok {
			continue
		}
		key := domain.IndividualPool(event.ID, comp.Gender)
		pools[key] = append(pools[key], domain.PoolEntry{ID: res.ID, Measure: res.Measure, Seq: res.Seq, Rank: res.Rank, Points: res.Points})
	}
	for _, res := range view.ListTeamResults() {
		if res.EventID != event.ID {
			continue
		}
		key := domain.TeamPool(event.ID)
		pools[key] = append(pools[key], domain.PoolEntry{ID: res.ID, Measure: res.Measure, Seq: res.Seq, Rank: res.Rank, Points: res.Points})
	}
	return pools
}
