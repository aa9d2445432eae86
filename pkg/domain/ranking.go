package domain

import "sort"

// PartitionTeam is the pool partition shared by all relay results of an event.
// Individual pools use the competitor's gender as partition instead.
const PartitionTeam = "team"

// PoolKey addresses one scoring pool: the set of results of one event that
// compete against each other. Pools are computed from persisted results and
// never stored.
type PoolKey struct {
	EventID   string `json:"event_id"`
	Partition string `json:"partition"`
}

func (k PoolKey) String() string {
	return k.EventID + "/" + k.Partition
}

// IndividualPool returns the pool an individual result competes in: the event
// partitioned by the competitor's gender.
func IndividualPool(eventID string, gender Gender) PoolKey {
	return PoolKey{EventID: eventID, Partition: string(gender)}
}

// TeamPool returns the single relay pool of a team event.
func TeamPool(eventID string) PoolKey {
	return PoolKey{EventID: eventID, Partition: PartitionTeam}
}

// PoolEntry is the ranking engine's view of one pool member. ID refers to the
// underlying result record.
type PoolEntry struct {
	ID      string
	Measure float64
	Seq     uint64
	Rank    int
	Points  int
}

// RankPool orders entries by measurement under the given discipline (track:
// lower wins, field: higher wins), breaking measurement ties by intake
// sequence so the earlier submission keeps the better rank, then assigns
// contiguous ranks starting at 1 and the points the allocation table awards
// each rank. The input slice is left unmodified.
func RankPool(discipline Discipline, table AllocationTable, entries []PoolEntry) []PoolEntry {
	ranked := make([]PoolEntry, len(entries))
	copy(ranked, entries)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Measure != ranked[j].Measure {
			if discipline == DisciplineField {
				return ranked[i].Measure > ranked[j].Measure
			}
			return ranked[i].Measure < ranked[j].Measure
		}
		return ranked[i].Seq < ranked[j].Seq
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
		ranked[i].Points = table.Lookup(i + 1)
	}
	return ranked
}

// VerifyRanking checks the invariants every recomputed pool must satisfy:
// ranks are exactly 1..n with no gaps or duplicates, measurements are ordered
// monotonically for the discipline, and no entry carries negative points.
// A failure is a ConsistencyError and must abort the enclosing transaction.
func VerifyRanking(pool PoolKey, discipline Discipline, entries []PoolEntry) error {
	byRank := make([]PoolEntry, len(entries))
	copy(byRank, entries)
	sort.Slice(byRank, func(i, j int) bool { return byRank[i].Rank < byRank[j].Rank })
	for i, entry := range byRank {
		if entry.Rank != i+1 {
			return ConsistencyError{Pool: pool, Message: "ranks are not contiguous from 1"}
		}
		if entry.Points < 0 {
			return ConsistencyError{Pool: pool, Message: "negative points assigned"}
		}
		if i == 0 {
			continue
		}
		prev := byRank[i-1]
		if discipline == DisciplineField {
			if entry.Measure > prev.Measure {
				return ConsistencyError{Pool: pool, Message: "measurements out of order for field discipline"}
			}
		} else if entry.Measure < prev.Measure {
			return ConsistencyError{Pool: pool, Message: "measurements out of order for track discipline"}
		}
	}
	return nil
}
