package suggest

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/pawmatch/engine/internal/app"
	"github.com/pawmatch/engine/internal/db"
	svcErr "github.com/pawmatch/engine/internal/errors"
	"github.com/pawmatch/engine/internal/geo"
	"github.com/pawmatch/engine/internal/repository"
)

// Suggestion is one ranked candidate: the full pet profile plus the
// computed distance from the requesting owner's location.
type Suggestion struct {
	Pet             db.Pet
	OwnerID         uint64
	Characteristics []string
	DistanceMeters  float64
}

// Service produces ranked candidate lists for an owner's pet. It
// combines the geo index (distance) with the pet repository
// (characteristics and exclusion state). Nothing is cached across
// calls: every call re-reads current exclusion state.
type Service struct {
	appCtx  *app.AppContext
	petRepo *repository.PetRepository
	geoIdx  *geo.Index
}

// NewService creates a suggest service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:  appCtx,
		petRepo: repository.NewPetRepository(appCtx.DB),
		geoIdx:  geo.NewIndex(appCtx.DB),
	}
}

// Suggest returns up to limit candidate pets for the requesting owner,
// nearest first.
//
// Pipeline:
//  1. Resolve the caller's pet; no profile is a hard precondition
//     failure (ErrProfileRequired), the client must redirect to
//     profile creation.
//  2. Resolve the caller's location; no location means an empty result
//     (cannot rank by distance without a center).
//  3. Radius query over owners-with-pets, ceiling from config unless
//     infiniteRadius lifts it.
//  4. Exclude self, the alreadyLoaded set, permanently liked pets and
//     pets dismissed inside the cooldown window.
//  5. Keep candidates sharing at least one characteristic tag.
//  6. Ascending by distance, truncated to limit.
//
// Fewer survivors than limit is not an error; the caller widens
// alreadyLoaded or retries with infinite radius on empty results.
func (s *Service) Suggest(
	ctx context.Context,
	ownerID uint64,
	alreadyLoaded map[uint64]struct{},
	limit int,
	infiniteRadius bool,
) ([]Suggestion, error) {
	cfg := s.appCtx.Cfg

	if limit < cfg.Match.MinSuggestLimit {
		limit = cfg.Match.MinSuggestLimit
	}
	if limit > cfg.Match.MaxSuggestLimit {
		limit = cfg.Match.MaxSuggestLimit
	}

	sourcePet, err := s.petRepo.GetPetByOwner(ctx, ownerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.ErrProfileRequired
	}
	if err != nil {
		return nil, err
	}

	center, located, err := s.geoIdx.LocationOf(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !located {
		s.appCtx.Logger.Debug("suggest without location", "owner", ownerID)
		return nil, nil
	}

	maxRadius := cfg.Match.MaxRadiusMeters
	if infiniteRadius {
		maxRadius = 0 // radius-less query
	}

	queryCtx, cancel := context.WithTimeout(ctx, cfg.Match.SuggestTimeout)
	defer cancel()

	hits, err := s.geoIdx.QueryWithinRadius(queryCtx, center, maxRadius, maxRadius)
	if err != nil {
		return nil, err
	}

	excluded, err := s.petRepo.ExcludedTargets(ctx, sourcePet.ID, cfg.Match.DismissCooldown)
	if err != nil {
		return nil, err
	}

	sourceTags, err := s.petRepo.GetCharacteristics(ctx, sourcePet.ID)
	if err != nil {
		return nil, err
	}
	sourceTagSet := make(map[string]struct{}, len(sourceTags))
	for _, tag := range sourceTags {
		sourceTagSet[tag] = struct{}{}
	}

	// hits are already distance-sorted; filter in order
	candidates := make([]geo.Hit, 0, len(hits))
	candidateIDs := make([]uint64, 0, len(hits))
	for _, hit := range hits {
		if hit.PetID == sourcePet.ID {
			continue
		}
		if _, loaded := alreadyLoaded[hit.PetID]; loaded {
			continue
		}
		if _, skip := excluded[hit.PetID]; skip {
			continue
		}
		candidates = append(candidates, hit)
		candidateIDs = append(candidateIDs, hit.PetID)
	}

	tagsByPet, err := s.petRepo.GetCharacteristicsBatch(ctx, candidateIDs)
	if err != nil {
		return nil, err
	}

	kept := make([]geo.Hit, 0, len(candidates))
	keptIDs := make([]uint64, 0, len(candidates))
	for _, hit := range candidates {
		if !overlaps(sourceTagSet, tagsByPet[hit.PetID]) {
			continue
		}
		kept = append(kept, hit)
		keptIDs = append(keptIDs, hit.PetID)
		if len(kept) == limit {
			break
		}
	}

	pets, err := s.petRepo.GetPetsByIDs(ctx, keptIDs)
	if err != nil {
		return nil, err
	}
	petsByID := make(map[uint64]db.Pet, len(pets))
	for _, pet := range pets {
		petsByID[pet.ID] = pet
	}

	suggestions := make([]Suggestion, 0, len(kept))
	for _, hit := range kept {
		pet, ok := petsByID[hit.PetID]
		if !ok {
			// profile deleted between the geo query and the fetch
			continue
		}
		suggestions = append(suggestions, Suggestion{
			Pet:             pet,
			OwnerID:         hit.OwnerID,
			Characteristics: tagsByPet[hit.PetID],
			DistanceMeters:  hit.DistanceMeters,
		})
	}

	s.appCtx.Logger.Debug("suggest result",
		"owner", ownerID,
		"candidates", len(hits),
		"returned", len(suggestions),
		"infinite_radius", infiniteRadius,
	)

	return suggestions, nil
}

// overlaps reports whether the candidate shares at least one tag with
// the source set.
func overlaps(source map[string]struct{}, candidate []string) bool {
	for _, tag := range candidate {
		if _, ok := source[tag]; ok {
			return true
		}
	}
	return false
}
