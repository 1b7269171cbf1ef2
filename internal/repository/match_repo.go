package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pawmatch/engine/internal/db"
	svcErr "github.com/pawmatch/engine/internal/errors"
)

// MatchRepository materializes and reads matches between pet pairs.
type MatchRepository struct {
	db *gorm.DB
}

// NewMatchRepository creates a new repository bound to the given DB connection.
func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// normalizePair orders a pet pair so the smaller id comes first. Every
// match row stores the normalized pair, which lets a single unique
// index cover both orderings.
func normalizePair(a, b uint64) (lo, hi uint64) {
	if a < b {
		return a, b
	}
	return b, a
}

// CreateIfAbsent inserts the match for the unordered pair {a, b} if it
// does not exist yet.
//
// The insert races with itself under concurrent retried likes; the
// unique index on (pet_lo_id, pet_hi_id) plus ON CONFLICT DO NOTHING
// makes the loser of the race a no-op. created reports whether this
// call inserted the row; either way the surviving match is returned.
func (r *MatchRepository) CreateIfAbsent(ctx context.Context, a, b uint64) (db.Match, bool, error) {
	lo, hi := normalizePair(a, b)

	match := db.Match{
		ID:      uuid.NewString(),
		PetLoID: lo,
		PetHiID: hi,
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pet_lo_id"}, {Name: "pet_hi_id"}},
			DoNothing: true,
		}).
		Create(&match)
	if res.Error != nil {
		return db.Match{}, false, svcErr.Storage(res.Error)
	}
	if res.RowsAffected > 0 {
		return match, true, nil
	}

	// conflict: another call already created it
	var existing db.Match
	err := r.db.WithContext(ctx).
		First(&existing, "pet_lo_id = ? AND pet_hi_id = ?", lo, hi).Error
	return existing, false, svcErr.Storage(err)
}

// Exists checks whether a match for the unordered pair {a, b} exists.
func (r *MatchRepository) Exists(ctx context.Context, a, b uint64) (bool, error) {
	lo, hi := normalizePair(a, b)
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("pet_lo_id = ? AND pet_hi_id = ?", lo, hi).
		Count(&count).Error
	return count > 0, svcErr.Storage(err)
}

// ListForPet returns every match the pet participates in, newest first.
func (r *MatchRepository) ListForPet(ctx context.Context, petID uint64) ([]db.Match, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("pet_lo_id = ? OR pet_hi_id = ?", petID, petID).
		Order("created_at DESC").
		Find(&matches).Error
	return matches, svcErr.Storage(err)
}
