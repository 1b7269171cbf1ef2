package geo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pawmatch/engine/internal/db"
	svcErr "github.com/pawmatch/engine/internal/errors"
)

// metersPerDegreeLat is close enough for a bounding-box prefilter;
// exact distances are computed per candidate afterwards.
const metersPerDegreeLat = 111_320.0

// Point is a geographic coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Hit is one owner-with-pet inside the queried radius.
type Hit struct {
	OwnerID        uint64
	PetID          uint64
	Location       Point
	DistanceMeters float64
}

// Index answers radius queries over current owner locations.
//
// The implementation prefilters with a bounding box on the locations
// table and computes exact great-circle distances in Go; callers only
// see the clamp/sort/join contract, so a true spatial index can be
// swapped in behind the same methods.
type Index struct {
	db *gorm.DB
}

// NewIndex creates an index bound to the given DB connection.
func NewIndex(database *gorm.DB) *Index {
	return &Index{db: database}
}

// UpsertLocation creates or overwrites the owner's current point.
// History is not retained; one row per owner.
func (i *Index) UpsertLocation(ctx context.Context, ownerID uint64, lat, lon float64) error {
	if err := validateCoordinate(lat, lon); err != nil {
		return err
	}
	loc := db.Location{
		OwnerID: ownerID,
		Lat:     lat,
		Lon:     lon,
	}
	err := i.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"lat", "lon", "updated_at"}),
		}).
		Create(&loc).Error
	return svcErr.Storage(err)
}

// LocationOf returns the owner's current point, or ok=false when the
// owner never reported one.
func (i *Index) LocationOf(ctx context.Context, ownerID uint64) (Point, bool, error) {
	var loc db.Location
	err := i.db.WithContext(ctx).First(&loc, "owner_id = ?", ownerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Point{}, false, nil
	}
	if err != nil {
		return Point{}, false, svcErr.Storage(err)
	}
	return Point{Lat: loc.Lat, Lon: loc.Lon}, true, nil
}

type locRow struct {
	OwnerID uint64
	PetID   uint64
	Lat     float64
	Lon     float64
}

// QueryWithinRadius returns all owners that have a pet profile and a
// current location within radiusMeters of center, ascending by
// great-circle distance.
//
// radiusMeters is clamped to maxRadiusMeters before querying. A
// maxRadiusMeters <= 0 removes the ceiling; a radiusMeters <= 0 on top
// of that makes the query radius-less (every located owner-with-pet).
func (i *Index) QueryWithinRadius(ctx context.Context, center Point, radiusMeters, maxRadiusMeters float64) ([]Hit, error) {
	if err := validateCoordinate(center.Lat, center.Lon); err != nil {
		return nil, err
	}

	radius := radiusMeters
	if maxRadiusMeters > 0 && (radius <= 0 || radius > maxRadiusMeters) {
		radius = maxRadiusMeters
	}

	// owners without a pet profile are invisible to matching
	query := i.db.WithContext(ctx).
		Table("locations l").
		Select("l.owner_id, l.lat, l.lon, p.id AS pet_id").
		Joins("JOIN pets p ON p.owner_id = l.owner_id")

	if radius > 0 {
		latDelta := radius / metersPerDegreeLat
		query = query.Where("l.lat BETWEEN ? AND ?", center.Lat-latDelta, center.Lat+latDelta)

		// near the poles the lon band degenerates; skip it and let the
		// exact distance check below do the filtering
		if cosLat := math.Cos(center.Lat * math.Pi / 180); cosLat > 0.01 {
			lonDelta := radius / (metersPerDegreeLat * cosLat)
			if lonDelta < 180 {
				lo := center.Lon - lonDelta
				hi := center.Lon + lonDelta
				switch {
				case lo < -180:
					// band wraps the antimeridian westward
					query = query.Where("l.lon >= ? OR l.lon <= ?", lo+360, hi)
				case hi > 180:
					// band wraps the antimeridian eastward
					query = query.Where("l.lon >= ? OR l.lon <= ?", lo, hi-360)
				default:
					query = query.Where("l.lon BETWEEN ? AND ?", lo, hi)
				}
			}
		}
	}

	var rows []locRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, svcErr.Storage(err)
	}

	origin := orb.Point{center.Lon, center.Lat}
	hits := make([]Hit, 0, len(rows))
	for _, r := range rows {
		d := orbgeo.Distance(origin, orb.Point{r.Lon, r.Lat})
		if radius > 0 && d > radius {
			continue
		}
		hits = append(hits, Hit{
			OwnerID:        r.OwnerID,
			PetID:          r.PetID,
			Location:       Point{Lat: r.Lat, Lon: r.Lon},
			DistanceMeters: d,
		})
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].DistanceMeters < hits[b].DistanceMeters
	})

	return hits, nil
}

func validateCoordinate(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return fmt.Errorf("%w: lat=%v lon=%v", svcErr.ErrInvalidCoordinate, lat, lon)
	}
	return nil
}
