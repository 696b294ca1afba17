// README: Filter criteria, player candidates, and query outcomes.
package discovery

import (
	"rally/internal/types"
)

// SkillLevel is the coarse self-declared ability bucket.
type SkillLevel string

const (
	SkillAny          SkillLevel = ""
	SkillBeginner     SkillLevel = "Beginner"
	SkillIntermediate SkillLevel = "Intermediate"
	SkillPro          SkillLevel = "Pro"
)

const (
	MinRadiusKm = 1
	MaxRadiusKm = 10
)

// Criteria is the full filter selection. Mutations are always whole-value
// replaces so downstream triggers stay deterministic.
type Criteria struct {
	Game       string
	Skill      SkillLevel
	TimeWindow string
	RadiusKm   int
}

// ClampRadius returns a copy with the radius saturated into [MinRadiusKm,
// MaxRadiusKm].
func (c Criteria) ClampRadius() Criteria {
	if c.RadiusKm < MinRadiusKm {
		c.RadiusKm = MinRadiusKm
	}
	if c.RadiusKm > MaxRadiusKm {
		c.RadiusKm = MaxRadiusKm
	}
	return c
}

// AvailabilitySlot is one recurring free window on a player's schedule.
type AvailabilitySlot struct {
	Day  string `json:"day"`
	From string `json:"from"`
	To   string `json:"to"`
}

// Candidate is one player returned by a proximity search. Produced fresh on
// every query and never mutated; the visible list is swapped as a batch.
type Candidate struct {
	ID             types.ID           `json:"id"`
	Name           string             `json:"name"`
	AvatarURL      string             `json:"avatarUrl"`
	SportTags      []string           `json:"sportTags"`
	Skill          SkillLevel         `json:"skillLevel"`
	DistanceMeters float64            `json:"distanceMeters"`
	Distance       string             `json:"distance"`
	Rating         float64            `json:"rating"`
	TrustScore     float64            `json:"trustScore"`
	Availability   []AvailabilitySlot `json:"availabilitySlots"`
	AvailableNow   bool               `json:"isAvailableNow"`
	Bio            string             `json:"bio,omitempty"`
	Area           string             `json:"area,omitempty"`
}

// Outcome tags whether a result set came from the live path or the static
// fallback. The external contract stays "always a usable list"; the tag
// exists for logs, metrics, and tests.
type Outcome string

const (
	OutcomeLive     Outcome = "live"
	OutcomeFallback Outcome = "fallback"
)

// Result is one applied query result.
type Result struct {
	Candidates []Candidate
	Outcome    Outcome
}
