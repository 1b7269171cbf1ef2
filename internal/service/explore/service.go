package explore

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/pawmatch/engine/internal/app"
	"github.com/pawmatch/engine/internal/db"
	svcErr "github.com/pawmatch/engine/internal/errors"
	"github.com/pawmatch/engine/internal/repository"
)

// admirerPageSize is the fixed page size for admirer listings.
const admirerPageSize = 5

// Admirer is one pet that liked the caller's pet.
type Admirer struct {
	Pet      db.Pet
	LikedAt  time.Time
	HasMatch bool
}

// MatchEntry is one of the caller's matches with the counterpart
// profile attached.
type MatchEntry struct {
	MatchID   string
	Pet       db.Pet
	CreatedAt time.Time
}

// Service answers "who liked me" and "my matches" queries.
type Service struct {
	appCtx    *app.AppContext
	petRepo   *repository.PetRepository
	matchRepo *repository.MatchRepository
}

// NewService creates an explore service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:    appCtx,
		petRepo:   repository.NewPetRepository(appCtx.DB),
		matchRepo: repository.NewMatchRepository(appCtx.DB),
	}
}

// resolvePet maps the calling owner to their pet, translating a
// missing profile into the typed precondition failure.
func (s *Service) resolvePet(ctx context.Context, ownerID uint64) (*db.Pet, error) {
	pet, err := s.petRepo.GetPetByOwner(ctx, ownerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.ErrProfileRequired
	}
	return pet, err
}

// ListAdmirers returns pets that liked the caller's pet, newest first,
// excluding pets the caller dismissed. onlyNew restricts the list to
// likes the caller has not reciprocated yet. Cursor pagination via
// token.
func (s *Service) ListAdmirers(ctx context.Context, ownerID uint64, onlyNew bool, token *string) ([]Admirer, *string, error) {
	pet, err := s.resolvePet(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}

	actions, nextToken, err := s.petRepo.GetAdmirers(ctx, pet.ID, onlyNew, token, admirerPageSize)
	if err != nil {
		return nil, nil, err
	}

	ids := make([]uint64, 0, len(actions))
	for _, a := range actions {
		ids = append(ids, a.SourcePetID)
	}
	pets, err := s.petRepo.GetPetsByIDs(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	petsByID := make(map[uint64]db.Pet, len(pets))
	for _, p := range pets {
		petsByID[p.ID] = p
	}

	admirers := make([]Admirer, 0, len(actions))
	for _, a := range actions {
		p, ok := petsByID[a.SourcePetID]
		if !ok {
			continue
		}
		matched, err := s.matchRepo.Exists(ctx, pet.ID, a.SourcePetID)
		if err != nil {
			return nil, nil, err
		}
		admirers = append(admirers, Admirer{
			Pet:      p,
			LikedAt:  a.UpdatedAt,
			HasMatch: matched,
		})
	}

	s.appCtx.Logger.Debug("ListAdmirers result",
		"owner", ownerID, "count", len(admirers), "only_new", onlyNew)

	return admirers, nextToken, nil
}

// CountAdmirers returns how many pets like the caller's pet.
// Cache-first strategy:
//  1. Attempts to read from Redis (admirers:count:petID).
//  2. On cache miss, falls back to the DB count.
//  3. On DB fetch, updates Redis with a 1h TTL.
func (s *Service) CountAdmirers(ctx context.Context, ownerID uint64) (int64, error) {
	pet, err := s.resolvePet(ctx, ownerID)
	if err != nil {
		return 0, err
	}

	if n, ok, _ := s.appCtx.RedisCache.GetAdmirerCount(ctx, pet.ID); ok {
		return n, nil
	}

	count, err := s.petRepo.CountAdmirers(ctx, pet.ID)
	if err != nil {
		return 0, err
	}

	if err := s.appCtx.RedisCache.SetAdmirerCount(ctx, pet.ID, count); err != nil {
		s.appCtx.Logger.Warn("failed to cache admirer count",
			"pet", strconv.FormatUint(pet.ID, 10), "err", err)
	}

	return count, nil
}

// ListMatches returns the caller pet's matches, newest first, with the
// counterpart pet's profile attached.
func (s *Service) ListMatches(ctx context.Context, ownerID uint64) ([]MatchEntry, error) {
	pet, err := s.resolvePet(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	matches, err := s.matchRepo.ListForPet(ctx, pet.ID)
	if err != nil {
		return nil, err
	}

	ids := make([]uint64, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, counterpart(m, pet.ID))
	}
	pets, err := s.petRepo.GetPetsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	petsByID := make(map[uint64]db.Pet, len(pets))
	for _, p := range pets {
		petsByID[p.ID] = p
	}

	entries := make([]MatchEntry, 0, len(matches))
	for _, m := range matches {
		p, ok := petsByID[counterpart(m, pet.ID)]
		if !ok {
			continue
		}
		entries = append(entries, MatchEntry{
			MatchID:   m.ID,
			Pet:       p,
			CreatedAt: m.CreatedAt,
		})
	}
	return entries, nil
}

// counterpart picks the other side of a match row.
func counterpart(m db.Match, petID uint64) uint64 {
	if m.PetLoID == petID {
		return m.PetHiID
	}
	return m.PetLoID
}
