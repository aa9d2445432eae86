package domain

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// AllocationVariant selects which of an event's allocation tables applies to
// a scoring pool.
type AllocationVariant string

// Allocation table variants. Gender pools use the matching gender variant and
// fall back to the general table; relay pools use the relay variant with the
// same fallback.
const (
	VariantGeneral AllocationVariant = "general"
	VariantMale    AllocationVariant = "male"
	VariantFemale  AllocationVariant = "female"
	VariantOther   AllocationVariant = "other"
	VariantRelay   AllocationVariant = "relay"
)

// KnownVariant reports whether v is a supported allocation variant.
func KnownVariant(v AllocationVariant) bool {
	switch v {
	case VariantGeneral, VariantMale, VariantFemale, VariantOther, VariantRelay:
		return true
	}
	return false
}

// AllocationTable maps a finishing rank to award points. The mapping is
// sparse: ranks without an entry score zero, never an error.
type AllocationTable map[int]int

// Lookup returns the points awarded for rank. Absent ranks score zero and
// negative stored values are clamped to zero.
func (t AllocationTable) Lookup(rank int) int {
	pts, ok := t[rank]
	if !ok || pts < 0 {
		return 0
	}
	return pts
}

// Clone returns an independent copy of the table.
func (t AllocationTable) Clone() AllocationTable {
	if t == nil {
		return nil
	}
	out := make(AllocationTable, len(t))
	for rank, pts := range t {
		out[rank] = pts
	}
	return out
}

// Ranks returns the configured ranks in ascending order.
func (t AllocationTable) Ranks() []int {
	ranks := make([]int, 0, len(t))
	for rank := range t {
		ranks = append(ranks, rank)
	}
	sort.Ints(ranks)
	return ranks
}

// ParseAllocationTable sanitizes a loosely typed rank-to-points mapping as
// received from configuration or API payloads. Entries with non-integer rank
// keys, ranks below 1, non-integer point values, or negative points are
// dropped and reported as defects in key order; callers decide whether
// defects warn or reject the table.
func ParseAllocationTable(raw map[string]any) (AllocationTable, []AllocationDefect) {
	table := AllocationTable{}
	var defects []AllocationDefect
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		rank, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			defects = append(defects, AllocationDefect{Key: key, Reason: "rank is not an integer"})
			continue
		}
		if rank < 1 {
			defects = append(defects, AllocationDefect{Key: key, Reason: "rank must be at least 1"})
			continue
		}
		pts, ok := intValue(raw[key])
		if !ok {
			defects = append(defects, AllocationDefect{Key: key, Reason: "points value is not an integer"})
			continue
		}
		if pts < 0 {
			defects = append(defects, AllocationDefect{Key: key, Reason: "points must not be negative"})
			continue
		}
		table[rank] = pts
	}
	return table, defects
}

// intValue coerces the numeric representations produced by encoding/json and
// typed Go callers into an int, rejecting fractional values.
func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}

// AllocationFor resolves the table the event applies to a pool partition.
// Relay pools resolve the relay variant, gender pools the matching gender
// variant; both fall back to the general table, and a fully unconfigured
// event yields nil (every rank scores zero).
func (e Event) AllocationFor(partition string) AllocationTable {
	if len(e.Allocations) == 0 {
		return nil
	}
	variant := AllocationVariant(partition)
	if partition == PartitionTeam {
		variant = VariantRelay
	}
	if t, ok := e.Allocations[variant]; ok {
		return t
	}
	return e.Allocations[VariantGeneral]
}
