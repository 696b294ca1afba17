// README: Proximity query engine: live search with bounded retry and the static fallback set.
package discovery

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"rally/internal/metrics"
	"rally/internal/modules/location"
	"rally/internal/types"
)

// Searcher is the upstream candidate source. *Store is the production
// implementation.
type Searcher interface {
	Nearby(ctx context.Context, self types.ID, p types.Point, c Criteria) ([]rawCandidate, error)
}

// Engine turns a position and criteria into a display-ready candidate list.
// It never surfaces an error: any upstream failure, after one bounded retry,
// yields the static fallback set instead. Each call is a fresh snapshot.
type Engine struct {
	searcher Searcher
	logger   *zap.Logger

	queryTimeout time.Duration
	retryBackoff time.Duration
	now          func() time.Time
}

type EngineConfig struct {
	QueryTimeout time.Duration
	RetryBackoff time.Duration
}

func NewEngine(searcher Searcher, cfg EngineConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 10 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}
	return &Engine{
		searcher:     searcher,
		logger:       logger,
		queryTimeout: cfg.QueryTimeout,
		retryBackoff: cfg.RetryBackoff,
		now:          time.Now,
	}
}

// Search runs one query for the given caller. The radius is clamped before
// use; candidates keep the upstream (distance-ascending) order.
func (e *Engine) Search(ctx context.Context, self types.ID, pos location.Position, c Criteria) Result {
	c = c.ClampRadius()

	queryCtx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	raw, err := e.searchWithRetry(queryCtx, self, pos.Point, c)
	if err != nil {
		e.logger.Warn("proximity search failed, serving fallback set",
			zap.String("user_id", string(self)), zap.Error(err))
		metrics.RecordSearch(string(OutcomeFallback))
		return Result{Candidates: fallbackCandidates(pos.Point, e.now()), Outcome: OutcomeFallback}
	}

	candidates := make([]Candidate, 0, len(raw))
	for _, rc := range raw {
		candidates = append(candidates, e.mapCandidate(rc))
	}
	metrics.RecordSearch(string(OutcomeLive))
	return Result{Candidates: candidates, Outcome: OutcomeLive}
}

// searchWithRetry gives the live path one extra context-aware attempt before
// the caller falls back.
func (e *Engine) searchWithRetry(ctx context.Context, self types.ID, p types.Point, c Criteria) ([]rawCandidate, error) {
	var raw []rawCandidate
	op := func() error {
		var err error
		raw, err = e.searcher.Nearby(ctx, self, p, c)
		return err
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewConstantBackOff(e.retryBackoff), 1), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return raw, nil
}

// mapCandidate converts an upstream row to a display candidate, filling
// deterministic defaults instead of dropping rows with missing fields.
func (e *Engine) mapCandidate(rc rawCandidate) Candidate {
	name := rc.Name
	if name == "" {
		name = "Player " + shortID(rc.ID)
	}
	skill := SkillLevel(rc.Skill)
	switch skill {
	case SkillBeginner, SkillIntermediate, SkillPro:
	default:
		skill = SkillIntermediate
	}
	avatar := rc.AvatarURL
	if avatar == "" {
		avatar = placeholderAvatar(name)
	}
	var meters float64
	if rc.DistanceMeters != nil {
		meters = *rc.DistanceMeters
	}
	return Candidate{
		ID:             rc.ID,
		Name:           name,
		AvatarURL:      avatar,
		SportTags:      rc.SportTags,
		Skill:          skill,
		DistanceMeters: meters,
		Distance:       formatDistance(rc.DistanceMeters),
		Rating:         rc.Rating,
		TrustScore:     rc.TrustScore,
		Availability:   rc.Availability,
		AvailableNow:   availableNow(rc.Availability, e.now()),
		Bio:            rc.Bio,
	}
}

// formatDistance renders the display string: "{km} km" with one decimal, or
// "unknown" when the upstream distance is absent.
func formatDistance(meters *float64) string {
	if meters == nil || *meters < 0 {
		return "unknown"
	}
	return fmt.Sprintf("%.1f km", *meters/1000)
}

// placeholderAvatar builds a deterministic avatar URL keyed by name.
func placeholderAvatar(name string) string {
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name)
}

func shortID(id types.ID) string {
	s := string(id)
	if len(s) > 6 {
		return s[:6]
	}
	return s
}
