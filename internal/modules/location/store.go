// README: Location store backed by Redis (presence GEO + last-fix cache) and Postgres (fix journal).
package location

import (
	"context"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"rally/internal/types"
)

const (
	playerGeoKey     = "geo:players"
	lastFixKeyPrefix = "loc:last:"
	lastFixTTL       = 24 * time.Hour
)

type Store struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func NewStore(db *pgxpool.Pool, rdb *redis.Client) *Store {
	return &Store{db: db, redis: rdb}
}

// SaveFix updates the presence index and last-fix cache, then journals the
// fix to Postgres.
func (s *Store) SaveFix(ctx context.Context, id types.ID, pos Position) error {
	if err := s.SetPresence(ctx, id, pos.Point); err != nil {
		return err
	}
	key := lastFixKeyPrefix + string(id)
	pipe := s.redis.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"lat": pos.Point.Lat,
		"lng": pos.Point.Lng,
		"ts":  pos.CapturedAt.UnixMilli(),
	})
	pipe.Expire(ctx, key, lastFixTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "caching last fix")
	}
	if s.db != nil {
		_, err := s.db.Exec(ctx, `
			INSERT INTO location_fixes (user_id, lat, lng, recorded_at)
			VALUES ($1, $2, $3, $4)`,
			string(id), pos.Point.Lat, pos.Point.Lng, pos.CapturedAt,
		)
		if err != nil {
			return errors.Wrap(err, "journaling fix")
		}
	}
	return nil
}

// SetPresence writes the player's position into the GEO index used by
// proximity search.
func (s *Store) SetPresence(ctx context.Context, id types.ID, p types.Point) error {
	err := s.redis.GeoAdd(ctx, playerGeoKey, &redis.GeoLocation{
		Name:      string(id),
		Longitude: p.Lng,
		Latitude:  p.Lat,
	}).Err()
	return errors.Wrap(err, "updating presence index")
}

// ClearPresence removes the player from the GEO index.
func (s *Store) ClearPresence(ctx context.Context, id types.ID) error {
	return errors.Wrap(s.redis.ZRem(ctx, playerGeoKey, string(id)).Err(), "clearing presence")
}

// LastFix returns the cached last fix for a player, if any.
func (s *Store) LastFix(ctx context.Context, id types.ID) (Position, bool, error) {
	vals, err := s.redis.HGetAll(ctx, lastFixKeyPrefix+string(id)).Result()
	if err != nil {
		return Position{}, false, errors.Wrap(err, "reading last fix")
	}
	if len(vals) == 0 {
		return Position{}, false, nil
	}
	lat, err1 := strconv.ParseFloat(vals["lat"], 64)
	lng, err2 := strconv.ParseFloat(vals["lng"], 64)
	ts, err3 := strconv.ParseInt(vals["ts"], 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return Position{}, false, errors.New("malformed cached fix")
	}
	return Position{
		Point:      types.Point{Lat: lat, Lng: lng},
		CapturedAt: time.UnixMilli(ts),
	}, true, nil
}
