package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pawmatch/engine/internal/db"
	"github.com/pawmatch/engine/internal/repository"
)

// setup in-memory DB
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(database))
	return database
}

func TestUpsertActionOverwrites(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewPetRepository(dbase)

	// insert like
	require.NoError(t, repo.UpsertAction(ctx, 1, 2, db.ActionLike))

	// overwrite with dismiss
	require.NoError(t, repo.UpsertAction(ctx, 1, 2, db.ActionDismiss))

	var actions []db.PetAction
	require.NoError(t, dbase.Find(&actions).Error)
	require.Len(t, actions, 1)
	assert.Equal(t, db.ActionDismiss, actions[0].Kind)
}

func TestHasActionWithWindow(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewPetRepository(dbase)

	old := db.PetAction{
		SourcePetID: 1,
		TargetPetID: 2,
		Kind:        db.ActionDismiss,
		CreatedAt:   time.Now().UTC().Add(-40 * 24 * time.Hour),
		UpdatedAt:   time.Now().UTC().Add(-40 * 24 * time.Hour),
	}
	require.NoError(t, dbase.Create(&old).Error)

	// unwindowed check sees it
	ok, err := repo.HasAction(ctx, 1, 2, db.ActionDismiss, 0)
	require.NoError(t, err)
	assert.True(t, ok)

	// 30-day window does not
	ok, err = repo.HasAction(ctx, 1, 2, db.ActionDismiss, 30*24*time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExcludedTargetsCooldown(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewPetRepository(dbase)

	cooldown := 30 * 24 * time.Hour

	// like: excluded forever
	require.NoError(t, repo.UpsertAction(ctx, 1, 2, db.ActionLike))
	// fresh dismiss: excluded
	require.NoError(t, repo.UpsertAction(ctx, 1, 3, db.ActionDismiss))
	// expired dismiss: eligible again
	expired := db.PetAction{
		SourcePetID: 1,
		TargetPetID: 4,
		Kind:        db.ActionDismiss,
		CreatedAt:   time.Now().UTC().Add(-31 * 24 * time.Hour),
		UpdatedAt:   time.Now().UTC().Add(-31 * 24 * time.Hour),
	}
	require.NoError(t, dbase.Create(&expired).Error)
	// old like: still excluded
	oldLike := db.PetAction{
		SourcePetID: 1,
		TargetPetID: 5,
		Kind:        db.ActionLike,
		CreatedAt:   time.Now().UTC().Add(-100 * 24 * time.Hour),
		UpdatedAt:   time.Now().UTC().Add(-100 * 24 * time.Hour),
	}
	require.NoError(t, dbase.Create(&oldLike).Error)

	excluded, err := repo.ExcludedTargets(ctx, 1, cooldown)
	require.NoError(t, err)

	assert.Contains(t, excluded, uint64(2))
	assert.Contains(t, excluded, uint64(3))
	assert.NotContains(t, excluded, uint64(4))
	assert.Contains(t, excluded, uint64(5))
}

func TestGetAdmirers(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewPetRepository(dbase)

	// pets 1,2 liked pet 99
	require.NoError(t, repo.UpsertAction(ctx, 1, 99, db.ActionLike))
	require.NoError(t, repo.UpsertAction(ctx, 2, 99, db.ActionLike))
	// pet 99 dismissed pet 2 → excluded
	require.NoError(t, repo.UpsertAction(ctx, 99, 2, db.ActionDismiss))

	actions, _, err := repo.GetAdmirers(ctx, 99, false, nil, 10)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, uint64(1), actions[0].SourcePetID)
}

func TestGetAdmirersOnlyNew(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewPetRepository(dbase)

	// pet 1 liked 99, and 99 liked back → reciprocated
	require.NoError(t, repo.UpsertAction(ctx, 1, 99, db.ActionLike))
	require.NoError(t, repo.UpsertAction(ctx, 99, 1, db.ActionLike))

	// pet 2 liked 99, not reciprocated
	require.NoError(t, repo.UpsertAction(ctx, 2, 99, db.ActionLike))

	actions, _, err := repo.GetAdmirers(ctx, 99, true, nil, 10)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, uint64(2), actions[0].SourcePetID)
}

func TestGetAdmirersPagination(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewPetRepository(dbase)

	for id := uint64(1); id <= 7; id++ {
		require.NoError(t, repo.UpsertAction(ctx, id, 99, db.ActionLike))
	}

	first, token, err := repo.GetAdmirers(ctx, 99, false, nil, 5)
	require.NoError(t, err)
	require.Len(t, first, 5)
	require.NotNil(t, token)

	second, token2, err := repo.GetAdmirers(ctx, 99, false, token, 5)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Nil(t, token2)

	seen := map[uint64]bool{}
	for _, a := range append(first, second...) {
		assert.False(t, seen[a.SourcePetID], "admirer %d returned twice", a.SourcePetID)
		seen[a.SourcePetID] = true
	}
}

func TestCountAdmirers(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewPetRepository(dbase)

	require.NoError(t, repo.UpsertAction(ctx, 1, 99, db.ActionLike))
	require.NoError(t, repo.UpsertAction(ctx, 2, 99, db.ActionLike))
	require.NoError(t, repo.UpsertAction(ctx, 3, 99, db.ActionDismiss))
	require.NoError(t, repo.UpsertAction(ctx, 99, 2, db.ActionDismiss))

	count, err := repo.CountAdmirers(ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCharacteristics(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewPetRepository(dbase)

	require.NoError(t, repo.ReplaceCharacteristics(ctx, 1, []string{db.TagPlayful, db.TagCalm}))
	require.NoError(t, repo.ReplaceCharacteristics(ctx, 2, []string{db.TagVocal}))

	tags, err := repo.GetCharacteristics(ctx, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{db.TagPlayful, db.TagCalm}, tags)

	batch, err := repo.GetCharacteristicsBatch(ctx, []uint64{1, 2, 3})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{db.TagPlayful, db.TagCalm}, batch[1])
	assert.ElementsMatch(t, []string{db.TagVocal}, batch[2])
	assert.Empty(t, batch[3])

	// replacing overwrites the whole set
	require.NoError(t, repo.ReplaceCharacteristics(ctx, 1, []string{db.TagGentle}))
	tags, err = repo.GetCharacteristics(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{db.TagGentle}, tags)
}
