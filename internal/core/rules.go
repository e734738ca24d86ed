package core

import "github.com/BKHilton/Ember/pkg/domain"

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(TaskLifecycleRule())
	engine.Register(ChurchCampusRule())
	return engine
}
