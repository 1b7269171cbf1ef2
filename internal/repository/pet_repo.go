package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pawmatch/engine/internal/db"
	svcErr "github.com/pawmatch/engine/internal/errors"
	"github.com/pawmatch/engine/internal/utils/pagination"
)

// PetRepository provides data access for pet profiles, characteristic
// sets and the directed like/dismiss actions between pets.
type PetRepository struct {
	db *gorm.DB
}

// NewPetRepository creates a new repository bound to the given DB connection.
func NewPetRepository(database *gorm.DB) *PetRepository {
	return &PetRepository{db: database}
}

// GetPetByOwner resolves an owner's single pet profile.
// Returns gorm.ErrRecordNotFound when the owner has no profile yet.
func (r *PetRepository) GetPetByOwner(ctx context.Context, ownerID uint64) (*db.Pet, error) {
	var pet db.Pet
	if err := r.db.WithContext(ctx).First(&pet, "owner_id = ?", ownerID).Error; err != nil {
		return nil, svcErr.Storage(err)
	}
	return &pet, nil
}

// PetExists reports whether a pet profile with the given id exists.
func (r *PetRepository) PetExists(ctx context.Context, petID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Pet{}).
		Where("id = ?", petID).
		Count(&count).Error
	return count > 0, svcErr.Storage(err)
}

// GetPetsByIDs batch-fetches pet profiles. Order is not guaranteed;
// callers re-associate by id.
func (r *PetRepository) GetPetsByIDs(ctx context.Context, ids []uint64) ([]db.Pet, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var pets []db.Pet
	if err := r.db.WithContext(ctx).Find(&pets, "id IN ?", ids).Error; err != nil {
		return nil, svcErr.Storage(err)
	}
	return pets, nil
}

// GetCharacteristics returns a pet's characteristic tag set.
func (r *PetRepository) GetCharacteristics(ctx context.Context, petID uint64) ([]string, error) {
	var tags []string
	err := r.db.WithContext(ctx).
		Model(&db.PetCharacteristic{}).
		Where("pet_id = ?", petID).
		Pluck("tag", &tags).Error
	return tags, svcErr.Storage(err)
}

// GetCharacteristicsBatch returns the tag sets of many pets at once,
// keyed by pet id. Pets without tags are absent from the map.
func (r *PetRepository) GetCharacteristicsBatch(ctx context.Context, ids []uint64) (map[uint64][]string, error) {
	out := make(map[uint64][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []db.PetCharacteristic
	if err := r.db.WithContext(ctx).Find(&rows, "pet_id IN ?", ids).Error; err != nil {
		return nil, svcErr.Storage(err)
	}
	for _, row := range rows {
		out[row.PetID] = append(out[row.PetID], row.Tag)
	}
	return out, nil
}

// ReplaceCharacteristics overwrites a pet's whole tag set.
func (r *PetRepository) ReplaceCharacteristics(ctx context.Context, petID uint64, tags []string) error {
	return svcErr.Storage(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&db.PetCharacteristic{}, "pet_id = ?", petID).Error; err != nil {
			return err
		}
		if len(tags) == 0 {
			return nil
		}
		rows := make([]db.PetCharacteristic, 0, len(tags))
		for _, tag := range tags {
			rows = append(rows, db.PetCharacteristic{PetID: petID, Tag: tag})
		}
		return tx.Create(&rows).Error
	}))
}

// UpsertAction inserts or updates the directed action source -> target.
//
// Behavior:
//   - If the (source_pet_id, target_pet_id) pair exists, the row is
//     overwritten with the new kind (last-write-wins).
//   - Otherwise a new row is inserted.
//   - Composite PK ensures at most one row per ordered pair.
func (r *PetRepository) UpsertAction(
	ctx context.Context,
	sourcePetID, targetPetID uint64,
	kind db.ActionKind,
) error {
	action := db.PetAction{
		SourcePetID: sourcePetID,
		TargetPetID: targetPetID,
		Kind:        kind,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_pet_id"}, {Name: "target_pet_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"kind", "updated_at"}),
		}).
		Create(&action).Error
	return svcErr.Storage(err)
}

// HasAction checks whether source has an action of the given kind
// toward target. A notOlderThan > 0 restricts the check to actions
// updated within that window.
func (r *PetRepository) HasAction(
	ctx context.Context,
	sourcePetID, targetPetID uint64,
	kind db.ActionKind,
	notOlderThan time.Duration,
) (bool, error) {
	query := r.db.WithContext(ctx).
		Table("pet_actions a").
		Where("a.source_pet_id = ? AND a.target_pet_id = ? AND a.kind = ?", sourcePetID, targetPetID, kind)
	if notOlderThan > 0 {
		query = query.Where("a.updated_at >= ?", time.Now().UTC().Add(-notOlderThan))
	}
	var count int64
	err := query.Count(&count).Error
	return count > 0, svcErr.Storage(err)
}

// ExcludedTargets returns the set of pet ids the source must not see
// in suggestions: every liked pet (permanent exclusion) plus every
// dismissed pet whose dismissal is newer than the cooldown window.
// Dismissals older than the window have expired and do not exclude.
func (r *PetRepository) ExcludedTargets(
	ctx context.Context,
	sourcePetID uint64,
	dismissCooldown time.Duration,
) (map[uint64]struct{}, error) {
	cutoff := time.Now().UTC().Add(-dismissCooldown)

	var ids []uint64
	err := r.db.WithContext(ctx).
		Table("pet_actions a").
		Where("a.source_pet_id = ?", sourcePetID).
		Where("a.kind = ? OR (a.kind = ? AND a.updated_at >= ?)",
			db.ActionLike, db.ActionDismiss, cutoff).
		Pluck("a.target_pet_id", &ids).Error
	if err != nil {
		return nil, svcErr.Storage(err)
	}

	excluded := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		excluded[id] = struct{}{}
	}
	return excluded, nil
}

// GetAdmirers returns the like actions pointing at the given pet,
// newest first.
//
// Behavior:
//   - Only actions with kind = like are considered.
//   - Excludes pets the recipient dismissed.
//   - onlyNew additionally excludes likes the recipient already
//     reciprocated.
//   - Supports cursor-based pagination via paginationToken.
func (r *PetRepository) GetAdmirers(
	ctx context.Context,
	petID uint64,
	onlyNew bool,
	paginationToken *string,
	limit int,
) ([]db.PetAction, *string, error) {
	var actions []db.PetAction

	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Table("pet_actions a").
		Where("a.target_pet_id = ? AND a.kind = ?", petID, db.ActionLike).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM pet_actions a2
				WHERE a2.source_pet_id = ?
				  AND a2.target_pet_id = a.source_pet_id
				  AND a2.kind = ?
			)`, petID, db.ActionDismiss).
		Order("a.updated_at DESC, a.source_pet_id DESC").
		Limit(limit + 1)

	if onlyNew {
		subQuery := r.db.
			Table("pet_actions").
			Select("1").
			Where("source_pet_id = a.target_pet_id AND target_pet_id = a.source_pet_id AND kind = ?", db.ActionLike)
		query = query.Where("NOT EXISTS (?)", subQuery)
	}

	// apply cursor
	if cursor.PetID > 0 && cursor.UpdatedUnix > 0 {
		ts := time.UnixMilli(cursor.UpdatedUnix)
		query = query.Where(
			"(a.updated_at < ? OR (a.updated_at = ? AND a.source_pet_id < ?))",
			ts, ts, cursor.PetID,
		)
	}

	if err := query.Find(&actions).Error; err != nil {
		return nil, nil, svcErr.Storage(err)
	}

	// pagination: build next cursor if needed
	var nextToken *string
	if len(actions) > limit {
		last := actions[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			PetID:       last.SourcePetID,
			UpdatedUnix: last.UpdatedAt.UnixMilli(),
		})
		nextToken = &token
		actions = actions[:limit]
	}

	return actions, nextToken, nil
}

// CountAdmirers returns how many pets like the given pet, excluding
// pets the recipient dismissed. Used with the Redis cache (DB is the
// fallback).
func (r *PetRepository) CountAdmirers(ctx context.Context, petID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("pet_actions a").
		Where("a.target_pet_id = ? AND a.kind = ?", petID, db.ActionLike).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM pet_actions a2
				WHERE a2.source_pet_id = ?
				  AND a2.target_pet_id = a.source_pet_id
				  AND a2.kind = ?
			)`, petID, db.ActionDismiss).
		Count(&count).Error
	if err != nil {
		return 0, svcErr.Storage(err)
	}
	return count, nil
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
