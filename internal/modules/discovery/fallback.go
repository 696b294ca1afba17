// README: Deterministic static candidate set substituted when the live query path fails.
package discovery

import (
	"time"

	"rally/internal/modules/location"
	"rally/internal/types"
)

// fallbackSeed describes one built-in candidate at a fixed offset from the
// query origin so distances stay plausible wherever the caller is.
type fallbackSeed struct {
	id        types.ID
	name      string
	sports    []string
	skill     SkillLevel
	rating    float64
	trust     float64
	offsetLat float64
	offsetLng float64
	slots     []AvailabilitySlot
}

var fallbackSeeds = []fallbackSeed{
	{
		id: "fallback-arjun", name: "Arjun", sports: []string{"badminton", "tennis"},
		skill: SkillIntermediate, rating: 4.2, trust: 0.9, offsetLat: 0.009, offsetLng: 0.004,
		slots: []AvailabilitySlot{{Day: "saturday", From: "07:00", To: "10:00"}},
	},
	{
		id: "fallback-meera", name: "Meera", sports: []string{"tennis"},
		skill: SkillPro, rating: 4.8, trust: 0.95, offsetLat: -0.014, offsetLng: 0.011,
		slots: []AvailabilitySlot{{Day: "sunday", From: "17:00", To: "20:00"}},
	},
	{
		id: "fallback-dev", name: "Dev", sports: []string{"football", "badminton"},
		skill: SkillBeginner, rating: 3.9, trust: 0.8, offsetLat: 0.021, offsetLng: -0.008,
		slots: []AvailabilitySlot{{Day: "friday", From: "18:00", To: "21:00"}},
	},
}

// FallbackSetSize is the fixed size of the substitute list.
var FallbackSetSize = len(fallbackSeeds)

// fallbackCandidates builds the static set anchored at the query origin,
// closest first.
func fallbackCandidates(origin types.Point, now time.Time) []Candidate {
	out := make([]Candidate, 0, len(fallbackSeeds))
	for _, seed := range fallbackSeeds {
		distKm := location.HaversineKm(origin.Lat, origin.Lng,
			origin.Lat+seed.offsetLat, origin.Lng+seed.offsetLng)
		meters := distKm * 1000
		out = append(out, Candidate{
			ID:             seed.id,
			Name:           seed.name,
			AvatarURL:      placeholderAvatar(seed.name),
			SportTags:      seed.sports,
			Skill:          seed.skill,
			DistanceMeters: meters,
			Distance:       formatDistance(&meters),
			Rating:         seed.rating,
			TrustScore:     seed.trust,
			Availability:   seed.slots,
			AvailableNow:   availableNow(seed.slots, now),
		})
	}
	location.SortByDistance(out, func(c Candidate) float64 { return c.DistanceMeters })
	return out
}
