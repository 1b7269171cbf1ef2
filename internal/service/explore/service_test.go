package explore_test

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
	"github.com/pawmatch/engine/internal/repository"
	"github.com/pawmatch/engine/internal/service/explore"
)

func setupService(t *testing.T) (*explore.Service, *gorm.DB) {
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
	return explore.NewService(appCtx), dbase
}

func makePet(t *testing.T, dbase *gorm.DB, ownerID uint64, name string) uint64 {
	t.Helper()
	pet := db.Pet{OwnerID: ownerID, Name: name, Kind: "rabbit"}
	require.NoError(t, dbase.Create(&pet).Error)
	return pet.ID
}

func like(t *testing.T, dbase *gorm.DB, source, target uint64) {
	t.Helper()
	require.NoError(t, repository.NewPetRepository(dbase).UpsertAction(context.Background(), source, target, db.ActionLike))
}

func dismiss(t *testing.T, dbase *gorm.DB, source, target uint64) {
	t.Helper()
	require.NoError(t, repository.NewPetRepository(dbase).UpsertAction(context.Background(), source, target, db.ActionDismiss))
}

func TestListAdmirers(t *testing.T) {
	ctx := context.Background()
	svc, dbase := setupService(t)

	mine := makePet(t, dbase, 1, "Biscuit")
	fan := makePet(t, dbase, 2, "Luna")
	passed := makePet(t, dbase, 3, "Waffles")

	like(t, dbase, fan, mine)
	like(t, dbase, passed, mine)
	dismiss(t, dbase, mine, passed)

	admirers, next, err := svc.ListAdmirers(ctx, 1, false, nil)
	require.NoError(t, err)
	assert.Nil(t, next)
	require.Len(t, admirers, 1)
	assert.Equal(t, fan, admirers[0].Pet.ID)
	assert.Equal(t, "Luna", admirers[0].Pet.Name)
	assert.False(t, admirers[0].HasMatch)
}

func TestListAdmirersOnlyNew(t *testing.T) {
	ctx := context.Background()
	svc, dbase := setupService(t)

	mine := makePet(t, dbase, 1, "Biscuit")
	reciprocated := makePet(t, dbase, 2, "Luna")
	fresh := makePet(t, dbase, 3, "Waffles")

	like(t, dbase, reciprocated, mine)
	like(t, dbase, mine, reciprocated)
	like(t, dbase, fresh, mine)

	admirers, _, err := svc.ListAdmirers(ctx, 1, true, nil)
	require.NoError(t, err)
	require.Len(t, admirers, 1)
	assert.Equal(t, fresh, admirers[0].Pet.ID)
}

func TestListAdmirersProfileRequired(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	_, _, err := svc.ListAdmirers(ctx, 1, false, nil)
	assert.ErrorIs(t, err, svcErr.ErrProfileRequired)
}

func TestCountAdmirersCache(t *testing.T) {
	ctx := context.Background()
	svc, dbase := setupService(t)

	mine := makePet(t, dbase, 1, "Biscuit")
	fan := makePet(t, dbase, 2, "Luna")
	like(t, dbase, fan, mine)

	// first call → DB
	count, err := svc.CountAdmirers(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// second call → cache
	count, err = svc.CountAdmirers(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestListMatches(t *testing.T) {
	ctx := context.Background()
	svc, dbase := setupService(t)

	mine := makePet(t, dbase, 1, "Biscuit")
	matched := makePet(t, dbase, 2, "Luna")
	makePet(t, dbase, 3, "Waffles")

	matchRepo := repository.NewMatchRepository(dbase)
	created, isNew, err := matchRepo.CreateIfAbsent(ctx, mine, matched)
	require.NoError(t, err)
	require.True(t, isNew)

	entries, err := svc.ListMatches(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, created.ID, entries[0].MatchID)
	assert.Equal(t, matched, entries[0].Pet.ID)
	assert.Equal(t, "Luna", entries[0].Pet.Name)

	// the unmatched pet sees nothing
	entries, err = svc.ListMatches(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
