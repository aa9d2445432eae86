package core

import "meetcore/pkg/domain"

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewRelayMembershipRule())
	engine.Register(NewRankIntegrityRule())
	engine.Register(NewAllocationBoundsRule())
	return engine
}
