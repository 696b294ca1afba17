package maps

import (
	"context"

	"github.com/cockroachdb/errors"
	"googlemaps.github.io/maps"

	"rally/internal/types"
)

// AreaService resolves coordinates into a short display label ("Hauz Khas",
// "Indiranagar") for search responses.
type AreaService struct {
	client *maps.Client
}

// NewAreaService creates an AreaService with the given API key.
func NewAreaService(apiKey string) (*AreaService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, errors.Wrap(err, "creating maps client")
	}
	return &AreaService{client: client}, nil
}

// AreaLabel reverse-geocodes the point and returns the locality or
// neighbourhood name. An empty string (no error) means no usable label; the
// caller renders without one.
func (s *AreaService) AreaLabel(ctx context.Context, p types.Point) (string, error) {
	results, err := s.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng:     &maps.LatLng{Lat: p.Lat, Lng: p.Lng},
		ResultType: []string{"neighborhood", "sublocality", "locality"},
	})
	if err != nil {
		return "", errors.Wrap(err, "reverse geocode")
	}
	for _, r := range results {
		for _, comp := range r.AddressComponents {
			for _, t := range comp.Types {
				if t == "neighborhood" || t == "sublocality" || t == "locality" {
					return comp.ShortName, nil
				}
			}
		}
	}
	return "", nil
}
