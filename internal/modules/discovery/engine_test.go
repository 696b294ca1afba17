// README: Query engine tests: live mapping, retry, fallback substitution, display defaults.
package discovery

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"rally/internal/modules/location"
	"rally/internal/types"
)

// stubSearcher scripts the upstream candidate source. Each call consumes one
// entry from errs; once exhausted, calls succeed with results.
type stubSearcher struct {
	mu           sync.Mutex
	results      []rawCandidate
	errs         []error
	calls        int
	lastCriteria Criteria
}

func (s *stubSearcher) Nearby(_ context.Context, _ types.ID, _ types.Point, c Criteria) ([]rawCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastCriteria = c
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return s.results, nil
}

func (s *stubSearcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testEngine(s Searcher) *Engine {
	return NewEngine(s, EngineConfig{
		QueryTimeout: time.Second,
		RetryBackoff: time.Millisecond,
	}, nil)
}

func meters(m float64) *float64 { return &m }

func TestEngine_LiveSearch(t *testing.T) {
	searcher := &stubSearcher{results: []rawCandidate{
		{ID: "p1", Name: "Arjun", Skill: "Pro", Rating: 4.5, DistanceMeters: meters(1200)},
		{ID: "p2", Name: "Meera", Skill: "Beginner", DistanceMeters: meters(3400)},
	}}
	e := testEngine(searcher)

	res := e.Search(context.Background(), "me", location.DefaultPosition, Criteria{RadiusKm: 5})

	if res.Outcome != OutcomeLive {
		t.Fatalf("outcome = %s, want live", res.Outcome)
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(res.Candidates))
	}
	if res.Candidates[0].Distance != "1.2 km" {
		t.Errorf("distance = %q, want \"1.2 km\"", res.Candidates[0].Distance)
	}
	if res.Candidates[0].Skill != SkillPro {
		t.Errorf("skill = %q, want Pro", res.Candidates[0].Skill)
	}
}

func TestEngine_FallbackOnPersistentFailure(t *testing.T) {
	searcher := &stubSearcher{errs: []error{
		errors.New("redis down"),
		errors.New("redis down"),
		errors.New("redis down"),
	}}
	e := testEngine(searcher)

	res := e.Search(context.Background(), "me", location.DefaultPosition, Criteria{RadiusKm: 5})

	if res.Outcome != OutcomeFallback {
		t.Fatalf("outcome = %s, want fallback", res.Outcome)
	}
	if len(res.Candidates) != FallbackSetSize {
		t.Fatalf("fallback set size = %d, want %d", len(res.Candidates), FallbackSetSize)
	}
	for i, c := range res.Candidates {
		if c.Distance == "unknown" || c.Distance == "" {
			t.Errorf("fallback candidate %d has no distance string", i)
		}
		if c.AvatarURL == "" {
			t.Errorf("fallback candidate %d has no avatar", i)
		}
		if i > 0 && c.DistanceMeters < res.Candidates[i-1].DistanceMeters {
			t.Errorf("fallback candidates not distance-ascending at %d", i)
		}
	}
}

func TestEngine_RetriesOnceBeforeFallback(t *testing.T) {
	searcher := &stubSearcher{
		errs:    []error{errors.New("transient"), nil},
		results: []rawCandidate{{ID: "p1", Name: "Arjun"}},
	}
	e := testEngine(searcher)

	res := e.Search(context.Background(), "me", location.DefaultPosition, Criteria{RadiusKm: 5})

	if res.Outcome != OutcomeLive {
		t.Fatalf("outcome = %s, want live after retry", res.Outcome)
	}
	if got := searcher.callCount(); got != 2 {
		t.Errorf("searcher called %d times, want 2", got)
	}
}

func TestEngine_RadiusClampedBeforeQuery(t *testing.T) {
	searcher := &stubSearcher{}
	e := testEngine(searcher)

	e.Search(context.Background(), "me", location.DefaultPosition, Criteria{RadiusKm: 99})
	if got := searcher.lastCriteria.RadiusKm; got != MaxRadiusKm {
		t.Errorf("searcher saw radius %d, want %d", got, MaxRadiusKm)
	}

	e.Search(context.Background(), "me", location.DefaultPosition, Criteria{RadiusKm: -3})
	if got := searcher.lastCriteria.RadiusKm; got != MinRadiusKm {
		t.Errorf("searcher saw radius %d, want %d", got, MinRadiusKm)
	}
}

func TestEngine_DisplayDefaults(t *testing.T) {
	searcher := &stubSearcher{results: []rawCandidate{
		{ID: "abcdef123"}, // bare presence row: everything missing
	}}
	e := testEngine(searcher)

	res := e.Search(context.Background(), "me", location.DefaultPosition, Criteria{RadiusKm: 5})
	if len(res.Candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(res.Candidates))
	}
	c := res.Candidates[0]

	if c.Name != "Player abcdef" {
		t.Errorf("name = %q, want short-id placeholder", c.Name)
	}
	if c.Skill != SkillIntermediate {
		t.Errorf("skill = %q, want Intermediate default", c.Skill)
	}
	if !strings.Contains(c.AvatarURL, "ui-avatars.com") {
		t.Errorf("avatar = %q, want placeholder URL", c.AvatarURL)
	}
	if c.Distance != "unknown" {
		t.Errorf("distance = %q, want \"unknown\"", c.Distance)
	}
}

func TestEngine_UnrecognizedSkillNormalized(t *testing.T) {
	searcher := &stubSearcher{results: []rawCandidate{
		{ID: "p1", Name: "X", Skill: "grandmaster"},
	}}
	e := testEngine(searcher)

	res := e.Search(context.Background(), "me", location.DefaultPosition, Criteria{RadiusKm: 5})
	if res.Candidates[0].Skill != SkillIntermediate {
		t.Errorf("skill = %q, want Intermediate", res.Candidates[0].Skill)
	}
}

func TestFormatDistance(t *testing.T) {
	tests := []struct {
		name   string
		meters *float64
		want   string
	}{
		{name: "absent", meters: nil, want: "unknown"},
		{name: "negative", meters: meters(-1), want: "unknown"},
		{name: "zero", meters: meters(0), want: "0.0 km"},
		{name: "rounds to one decimal", meters: meters(2340), want: "2.3 km"},
		{name: "sub-kilometre", meters: meters(450), want: "0.5 km"},
		{name: "far", meters: meters(10000), want: "10.0 km"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatDistance(tt.meters); got != tt.want {
				t.Errorf("formatDistance() = %q, want %q", got, tt.want)
			}
		})
	}
}
