// README: Candidate store: Redis GEO nearby lookup hydrated with Postgres profiles.
package discovery

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"rally/internal/types"
)

const playerGeoKey = "geo:players"

// Store retrieves nearby candidates. Redis supplies the ordering and the
// server-computed distance; Postgres supplies the profile attributes.
type Store struct {
	db    *pgxpool.Pool
	redis *redis.Client
	now   func() time.Time
}

func NewStore(db *pgxpool.Pool, rdb *redis.Client) *Store {
	return &Store{db: db, redis: rdb, now: time.Now}
}

// rawCandidate is a profile row joined with its GEO distance. Distance may be
// absent when the index returned a member without one.
type rawCandidate struct {
	ID             types.ID
	Name           string
	AvatarURL      string
	SportTags      []string
	Skill          string
	Rating         float64
	TrustScore     float64
	Bio            string
	Availability   []AvailabilitySlot
	DistanceMeters *float64
}

// Nearby returns candidates around p within radiusKm, distance-ascending as
// provided by the GEO index, filtered by the criteria. The querying user is
// excluded.
func (s *Store) Nearby(ctx context.Context, self types.ID, p types.Point, c Criteria) ([]rawCandidate, error) {
	locs, err := s.redis.GeoSearchLocation(ctx, playerGeoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  p.Lng,
			Latitude:   p.Lat,
			Radius:     float64(c.RadiusKm),
			RadiusUnit: "km",
			Sort:       "ASC",
		},
		WithDist: true,
	}).Result()
	if err != nil {
		return nil, errors.Wrap(err, "geo search")
	}

	ids := make([]string, 0, len(locs))
	distByID := make(map[string]*float64, len(locs))
	for _, l := range locs {
		if l.Name == string(self) {
			continue
		}
		ids = append(ids, l.Name)
		m := l.Dist * 1000 // GEO returns km per RadiusUnit
		distByID[l.Name] = &m
	}
	if len(ids) == 0 {
		return []rawCandidate{}, nil
	}

	profiles, err := s.profiles(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]rawCandidate, 0, len(ids))
	for _, id := range ids {
		prof, ok := profiles[id]
		if !ok {
			// Presence without a profile row: the player is still shown,
			// mapping fills deterministic defaults downstream.
			prof = rawCandidate{ID: types.ID(id)}
		}
		prof.DistanceMeters = distByID[id]
		if !s.matches(prof, c) {
			continue
		}
		out = append(out, prof)
	}
	return out, nil
}

// profiles loads attribute rows for the given ids keyed by id.
func (s *Store) profiles(ctx context.Context, ids []string) (map[string]rawCandidate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, avatar_url, sport_tags, skill_level, rating,
		       trust_score, bio, availability
		FROM player_profiles
		WHERE id = ANY($1)`, ids,
	)
	if err != nil {
		return nil, errors.Wrap(err, "loading profiles")
	}
	defer rows.Close()

	out := make(map[string]rawCandidate, len(ids))
	for rows.Next() {
		var (
			rc           rawCandidate
			id           string
			availability []byte
		)
		if err := rows.Scan(&id, &rc.Name, &rc.AvatarURL, &rc.SportTags,
			&rc.Skill, &rc.Rating, &rc.TrustScore, &rc.Bio, &availability); err != nil {
			return nil, errors.Wrap(err, "scanning profile")
		}
		rc.ID = types.ID(id)
		if len(availability) > 0 {
			// Malformed schedules degrade to "no slots", never to a dropped row.
			_ = json.Unmarshal(availability, &rc.Availability)
		}
		out[id] = rc
	}
	if rows.Err() != nil && !errors.Is(rows.Err(), pgx.ErrNoRows) {
		return nil, errors.Wrap(rows.Err(), "iterating profiles")
	}
	return out, nil
}

// matches applies the game, skill, and time-window filters.
func (s *Store) matches(rc rawCandidate, c Criteria) bool {
	if c.Game != "" && !hasTag(rc.SportTags, c.Game) {
		return false
	}
	if c.Skill != SkillAny && rc.Skill != "" && !strings.EqualFold(rc.Skill, string(c.Skill)) {
		return false
	}
	if c.TimeWindow != "" &&
		!slotMatches(rc.Availability, c.TimeWindow, s.now()) &&
		!availableNow(rc.Availability, s.now()) {
		return false
	}
	return true
}

func hasTag(tags []string, game string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, game) {
			return true
		}
	}
	return false
}

// DeviceToken returns the FCM registration token stored on the profile.
func (s *Store) DeviceToken(ctx context.Context, id types.ID) (string, error) {
	var token string
	err := s.db.QueryRow(ctx,
		`SELECT COALESCE(device_token, '') FROM player_profiles WHERE id = $1`,
		string(id),
	).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "loading device token")
	}
	return token, nil
}
