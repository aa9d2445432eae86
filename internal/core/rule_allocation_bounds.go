package core

import (
	"context"
	"fmt"
	"sort"

	"meetcore/pkg/domain"
)

// NewAllocationBoundsRule returns the rule that flags allocation table
// entries with ranks below 1 or negative points. Transactional writes reject
// such entries up front; state arriving through snapshot import does not, so
// the rule warns rather than blocks and the offending ranks simply score zero.
func NewAllocationBoundsRule() domain.Rule {
	return allocationBoundsRule{}
}

type allocationBoundsRule struct{}

func (allocationBoundsRule) Name() string { return "allocation_bounds" }

func (allocationBoundsRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	warn := func(eventID, message string) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "allocation_bounds",
			Severity: domain.SeverityWarn,
			Message:  message,
			Entity:   domain.EntityEvent,
			EntityID: eventID,
		})
	}

	for _, event := range view.ListEvents() {
		variants := make([]string, 0, len(event.Allocations))
		for variant := range event.Allocations {
			variants = append(variants, string(variant))
		}
		sort.Strings(variants)
		for _, variant := range variants {
			table := event.Allocations[domain.AllocationVariant(variant)]
			for _, rank := range table.Ranks() {
				if rank < 1 {
					warn(event.ID, fmt.Sprintf("event %s (%s) variant %s: rank %d below 1 scores zero", event.Name, event.ID, variant, rank))
				}
				if table[rank] < 0 {
					warn(event.ID, fmt.Sprintf("event %s (%s) variant %s: negative points for rank %d score zero", event.Name, event.ID, variant, rank))
				}
			}
		}
	}
	return res, nil
}
