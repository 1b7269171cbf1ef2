package action

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/pawmatch/engine/internal/app"
	"github.com/pawmatch/engine/internal/db"
	svcErr "github.com/pawmatch/engine/internal/errors"
	"github.com/pawmatch/engine/internal/notify"
	"github.com/pawmatch/engine/internal/repository"
)

// matchPhaseTimeout bounds the detached reciprocity check + match
// creation that runs after the action upsert.
const matchPhaseTimeout = 5 * time.Second

// Result reports what a recorded action led to.
type Result struct {
	Matched bool
	MatchID string
}

// Service records directional like/dismiss actions, detects mutual
// likes and materializes matches exactly once per pair.
type Service struct {
	appCtx    *app.AppContext
	petRepo   *repository.PetRepository
	matchRepo *repository.MatchRepository
}

// NewService creates an action service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:    appCtx,
		petRepo:   repository.NewPetRepository(appCtx.DB),
		matchRepo: repository.NewMatchRepository(appCtx.DB),
	}
}

// RecordAction upserts the caller's action toward a target pet.
//
// Behavior:
//   - Any transition between like and dismiss is allowed; the ordered
//     pair holds at most one action row (last-write-wins).
//   - On like, the reciprocal action is checked; a mutual like
//     materializes the match at most once per unordered pair.
//   - A newly created match is published to the caller's channel with
//     the target pet's profile; publish failures never surface here.
//   - On dismiss there is no reciprocity check and no side effects
//     beyond the admirer-count cache.
func (s *Service) RecordAction(
	ctx context.Context,
	ownerID uint64,
	targetPetID uint64,
	kind db.ActionKind,
) (Result, error) {
	s.appCtx.Logger.Debug("RecordAction called",
		"owner", ownerID, "target", targetPetID, "kind", kind.String())

	if !kind.Valid() {
		return Result{}, svcErr.ErrInvalidActionKind
	}

	sourcePet, err := s.petRepo.GetPetByOwner(ctx, ownerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Result{}, svcErr.ErrProfileRequired
	}
	if err != nil {
		return Result{}, err
	}

	if sourcePet.ID == targetPetID {
		return Result{}, svcErr.ErrSelfAction
	}

	exists, err := s.petRepo.PetExists(ctx, targetPetID)
	if err != nil {
		return Result{}, err
	}
	if !exists {
		return Result{}, svcErr.ErrNotFound
	}

	if err := s.petRepo.UpsertAction(ctx, sourcePet.ID, targetPetID, kind); err != nil {
		return Result{}, err
	}

	// update admirer-count cache
	key := s.appCtx.RedisCache.KeyForAdmirerCount(targetPetID)
	if kind == db.ActionLike {
		_, _ = s.appCtx.RedisCache.Incr(ctx, key)
	} else {
		_, _ = s.appCtx.RedisCache.Decr(ctx, key)
	}
	_ = s.appCtx.RedisCache.Expire(ctx, key, time.Hour) // refresh TTL

	if kind != db.ActionLike {
		return Result{}, nil
	}

	// The action row is durable at this point. Run the reciprocity
	// check and match creation on a detached context so a caller
	// disconnect cannot leave a mutual like without its match.
	matchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), matchPhaseTimeout)
	defer cancel()

	mutual, err := s.petRepo.HasAction(matchCtx, targetPetID, sourcePet.ID, db.ActionLike, 0)
	if err != nil {
		return Result{}, err
	}
	if !mutual {
		return Result{}, nil
	}

	match, created, err := s.matchRepo.CreateIfAbsent(matchCtx, sourcePet.ID, targetPetID)
	if err != nil {
		return Result{}, err
	}

	if created {
		s.appCtx.Logger.Info("match created",
			"match_id", match.ID, "pet_a", sourcePet.ID, "pet_b", targetPetID)
		s.notifyMatch(matchCtx, sourcePet.ID, targetPetID, match.ID)
	}

	return Result{Matched: true, MatchID: match.ID}, nil
}

// notifyMatch publishes the target pet's profile on the liking side's
// channel. Only the side whose like completed the match is notified;
// the other side learns of it through its own flows. Best-effort: all
// failures are logged and swallowed, the match is already durable.
func (s *Service) notifyMatch(ctx context.Context, recipientPetID, matchedPetID uint64, matchID string) {
	pets, err := s.petRepo.GetPetsByIDs(ctx, []uint64{matchedPetID})
	if err != nil || len(pets) == 0 {
		s.appCtx.Logger.Error("failed to load matched profile for notification",
			"pet", matchedPetID, "err", err)
		return
	}
	tags, err := s.petRepo.GetCharacteristics(ctx, matchedPetID)
	if err != nil {
		s.appCtx.Logger.Error("failed to load matched characteristics for notification",
			"pet", matchedPetID, "err", err)
	}

	s.appCtx.Notifier.Publish(ctx, recipientPetID, notify.MatchEvent{
		MatchID: matchID,
		Pet: notify.PetProfile{
			PetID:           pets[0].ID,
			OwnerID:         pets[0].OwnerID,
			Name:            pets[0].Name,
			Kind:            pets[0].Kind,
			Characteristics: tags,
		},
	})
}
