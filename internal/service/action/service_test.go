package action_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pawmatch/engine/internal/app"
	"github.com/pawmatch/engine/internal/cache"
	"github.com/pawmatch/engine/internal/config"
	"github.com/pawmatch/engine/internal/db"
	svcErr "github.com/pawmatch/engine/internal/errors"
	"github.com/pawmatch/engine/internal/notify"
	"github.com/pawmatch/engine/internal/service/action"
)

// setupService wires an isolated SQLite + miniredis into an action
// service. The notifier is returned so tests can subscribe to match
// events.
func setupService(t *testing.T) (*action.Service, *gorm.DB, *notify.Notifier) {
	t.Helper()

	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	dbase, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := dbase.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(dbase))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()

	redisCache := cache.NewRedisCache(cfg)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := notify.NewNotifier(redisCache, log)

	appCtx := app.New(cfg, dbase, redisCache, notifier, log)
	return action.NewService(appCtx), dbase, notifier
}

func makePet(t *testing.T, dbase *gorm.DB, ownerID uint64, name string, tags ...string) uint64 {
	t.Helper()
	pet := db.Pet{OwnerID: ownerID, Name: name, Kind: "cat"}
	require.NoError(t, dbase.Create(&pet).Error)
	for _, tag := range tags {
		require.NoError(t, dbase.Create(&db.PetCharacteristic{PetID: pet.ID, Tag: tag}).Error)
	}
	return pet.ID
}

func countMatches(t *testing.T, dbase *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, dbase.Model(&db.Match{}).Count(&count).Error)
	return count
}

func TestMutualLikeCreatesSingleMatch(t *testing.T) {
	ctx := context.Background()
	svc, dbase, _ := setupService(t)

	petA := makePet(t, dbase, 1, "Biscuit")
	petB := makePet(t, dbase, 2, "Luna")

	// first like: no reciprocity yet
	res, err := svc.RecordAction(ctx, 1, petB, db.ActionLike)
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Zero(t, countMatches(t, dbase))

	// like back: match materialized
	res, err = svc.RecordAction(ctx, 2, petA, db.ActionLike)
	require.NoError(t, err)
	assert.True(t, res.Matched)
	require.NotEmpty(t, res.MatchID)
	assert.Equal(t, int64(1), countMatches(t, dbase))

	// retried like still reports the match, creates nothing
	again, err := svc.RecordAction(ctx, 2, petA, db.ActionLike)
	require.NoError(t, err)
	assert.True(t, again.Matched)
	assert.Equal(t, res.MatchID, again.MatchID)
	assert.Equal(t, int64(1), countMatches(t, dbase))

	// the other side re-liking reports the same match too
	other, err := svc.RecordAction(ctx, 1, petB, db.ActionLike)
	require.NoError(t, err)
	assert.True(t, other.Matched)
	assert.Equal(t, res.MatchID, other.MatchID)
	assert.Equal(t, int64(1), countMatches(t, dbase))
}

func TestDismissHasNoMatchSideEffects(t *testing.T) {
	ctx := context.Background()
	svc, dbase, _ := setupService(t)

	petA := makePet(t, dbase, 1, "Biscuit")
	petB := makePet(t, dbase, 2, "Luna")

	_, err := svc.RecordAction(ctx, 1, petB, db.ActionLike)
	require.NoError(t, err)

	// a dismiss never checks reciprocity
	res, err := svc.RecordAction(ctx, 2, petA, db.ActionDismiss)
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Zero(t, countMatches(t, dbase))
}

func TestDismissThenLikeStillMatches(t *testing.T) {
	ctx := context.Background()
	svc, dbase, _ := setupService(t)

	petA := makePet(t, dbase, 1, "Biscuit")
	petB := makePet(t, dbase, 2, "Luna")

	_, err := svc.RecordAction(ctx, 1, petB, db.ActionLike)
	require.NoError(t, err)
	_, err = svc.RecordAction(ctx, 2, petA, db.ActionDismiss)
	require.NoError(t, err)

	// dismiss -> like transition is allowed and completes the match
	res, err := svc.RecordAction(ctx, 2, petA, db.ActionLike)
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, int64(1), countMatches(t, dbase))

	var actions []db.PetAction
	require.NoError(t, dbase.Find(&actions, "source_pet_id = ?", petB).Error)
	require.Len(t, actions, 1)
	assert.Equal(t, db.ActionLike, actions[0].Kind)
}

func TestRecordActionProfileRequired(t *testing.T) {
	ctx := context.Background()
	svc, dbase, _ := setupService(t)

	petB := makePet(t, dbase, 2, "Luna")

	_, err := svc.RecordAction(ctx, 1, petB, db.ActionLike)
	assert.ErrorIs(t, err, svcErr.ErrProfileRequired)
}

func TestRecordActionUnknownTarget(t *testing.T) {
	ctx := context.Background()
	svc, dbase, _ := setupService(t)

	makePet(t, dbase, 1, "Biscuit")

	_, err := svc.RecordAction(ctx, 1, 9999, db.ActionLike)
	assert.ErrorIs(t, err, svcErr.ErrNotFound)
}

func TestRecordActionOnOwnPet(t *testing.T) {
	ctx := context.Background()
	svc, dbase, _ := setupService(t)

	petA := makePet(t, dbase, 1, "Biscuit")

	_, err := svc.RecordAction(ctx, 1, petA, db.ActionLike)
	assert.ErrorIs(t, err, svcErr.ErrSelfAction)
}

func TestRecordActionInvalidKind(t *testing.T) {
	ctx := context.Background()
	svc, dbase, _ := setupService(t)

	makePet(t, dbase, 1, "Biscuit")
	petB := makePet(t, dbase, 2, "Luna")

	_, err := svc.RecordAction(ctx, 1, petB, db.ActionKind(9))
	assert.ErrorIs(t, err, svcErr.ErrInvalidActionKind)
}

func TestMatchNotifiesTheLikingSide(t *testing.T) {
	ctx := context.Background()
	svc, dbase, notifier := setupService(t)

	petA := makePet(t, dbase, 1, "Biscuit", db.TagPlayful)
	petB := makePet(t, dbase, 2, "Luna", db.TagCalm)

	_, err := svc.RecordAction(ctx, 1, petB, db.ActionLike)
	require.NoError(t, err)

	// B's like completes the match, so B's channel gets the event
	events, stop := notifier.Subscribe(ctx, petB)
	defer stop()
	time.Sleep(50 * time.Millisecond)

	res, err := svc.RecordAction(ctx, 2, petA, db.ActionLike)
	require.NoError(t, err)
	require.True(t, res.Matched)

	select {
	case event := <-events:
		assert.Equal(t, res.MatchID, event.MatchID)
		assert.Equal(t, petA, event.Pet.PetID)
		assert.Equal(t, "Biscuit", event.Pet.Name)
		assert.Equal(t, []string{db.TagPlayful}, event.Pet.Characteristics)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for match event")
	}
}
