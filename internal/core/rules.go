package core

import "worldtrip/pkg/domain"

type (
	// Rule defines an evaluation executed within a transaction boundary.
	Rule = domain.Rule
	// RulesEngine orchestrates rule evaluation.
	RulesEngine = domain.RulesEngine
)

// NewRulesEngine constructs an empty engine instance.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
// A nil policy permits every status change.
func NewDefaultRulesEngine(policy TransitionPolicy) *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(OrderStatusRule(policy))
	return engine
}
