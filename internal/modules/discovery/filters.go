// README: Filter state machine: saturating radius, skill cycling, idempotent apply.
package discovery

import (
	"sync"
)

// Filters holds the active criteria for one discovery session and emits every
// distinct value downstream exactly once. It is the only writer of its
// criteria.
type Filters struct {
	mu       sync.Mutex
	criteria Criteria
	emitted  bool
	last     Criteria
	apply    func(Criteria)
}

// NewFilters creates the machine with an initial criteria value and the
// downstream trigger. apply may be nil (testing the transitions alone).
func NewFilters(initial Criteria, apply func(Criteria)) *Filters {
	return &Filters{criteria: initial.ClampRadius(), apply: apply}
}

// Criteria returns the current selection.
func (f *Filters) Criteria() Criteria {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.criteria
}

// SetGame replaces the game selection. Empty string clears it.
func (f *Filters) SetGame(game string) {
	f.mutate(func(c Criteria) Criteria {
		c.Game = game
		return c
	})
}

// SetTimeWindow replaces the time-window selection. Empty string clears it.
func (f *Filters) SetTimeWindow(window string) {
	f.mutate(func(c Criteria) Criteria {
		c.TimeWindow = window
		return c
	})
}

// SetSkill replaces the skill selection directly.
func (f *Filters) SetSkill(s SkillLevel) {
	f.mutate(func(c Criteria) Criteria {
		c.Skill = s
		return c
	})
}

// CycleSkill advances the skill selection through
// none -> Beginner -> Intermediate -> Pro -> none.
func (f *Filters) CycleSkill() {
	f.mutate(func(c Criteria) Criteria {
		switch c.Skill {
		case SkillAny:
			c.Skill = SkillBeginner
		case SkillBeginner:
			c.Skill = SkillIntermediate
		case SkillIntermediate:
			c.Skill = SkillPro
		default:
			c.Skill = SkillAny
		}
		return c
	})
}

// IncRadius grows the radius by 1 km, saturating at MaxRadiusKm.
func (f *Filters) IncRadius() {
	f.mutate(func(c Criteria) Criteria {
		c.RadiusKm++
		return c.ClampRadius()
	})
}

// DecRadius shrinks the radius by 1 km, saturating at MinRadiusKm.
func (f *Filters) DecRadius() {
	f.mutate(func(c Criteria) Criteria {
		c.RadiusKm--
		return c.ClampRadius()
	})
}

// Replace installs a whole new criteria value.
func (f *Filters) Replace(c Criteria) {
	f.mutate(func(Criteria) Criteria {
		return c.ClampRadius()
	})
}

// mutate performs a full-value replace and triggers downstream only when the
// resulting value differs from the last emitted one.
func (f *Filters) mutate(fn func(Criteria) Criteria) {
	f.mu.Lock()
	f.criteria = fn(f.criteria)
	next := f.criteria
	fire := !f.emitted || next != f.last
	if fire {
		f.emitted = true
		f.last = next
	}
	apply := f.apply
	f.mu.Unlock()

	if fire && apply != nil {
		apply(next)
	}
}
