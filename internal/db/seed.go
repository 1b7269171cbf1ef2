package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Demo city center the seeded locations scatter around (Berlin).
const (
	seedCenterLat = 52.52
	seedCenterLon = 13.405
)

var seedPetNames = []string{
	"Biscuit", "Luna", "Waffles", "Mochi", "Pepper", "Ziggy", "Nala",
	"Otis", "Pixel", "Clover", "Rocket", "Maple", "Juno", "Basil",
	"Willow", "Taco", "Nimbus", "Olive", "Scout", "Pudding",
}

var seedPetKinds = []string{"dog", "cat", "rabbit", "parrot"}

// SeedTestData resets the database and populates it with demo owners,
// pets and actions.
//
// Behavior:
//  1. Clears all engine tables.
//  2. Creates 20 owners, each with one pet, 2-4 characteristic tags
//     and a location scattered around the demo city center.
//  3. Generates ~120 actions with ~70% likes; every 3rd liked pair is
//     made mutual and its match row created.
//
// Compatible with both MySQL and SQLite.
func SeedTestData(db *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	// --- Fresh start ---
	for _, table := range []string{"matches", "pet_actions", "locations", "pet_characteristics", "pets", "owners"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	// Reset auto-increment sequences
	switch db.Dialector.Name() {
	case "mysql":
		db.Exec("ALTER TABLE pets AUTO_INCREMENT = 1")
		db.Exec("ALTER TABLE owners AUTO_INCREMENT = 1")
	case "sqlite":
		db.Exec("DELETE FROM sqlite_sequence WHERE name IN ('pets', 'owners')")
	}

	log.Println("Cleared existing data")

	// --- Seed owners + pets + characteristics + locations ---
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	petIDs := make([]uint64, 0, len(seedPetNames))
	for i, name := range seedPetNames {
		owner := Owner{
			Username:     fmt.Sprintf("owner%d", i+1),
			Email:        fmt.Sprintf("owner%d@example.com", i+1),
			PasswordHash: string(hash),
			Active:       true,
		}
		if err := db.Create(&owner).Error; err != nil {
			return fmt.Errorf("failed to create owner: %w", err)
		}

		pet := Pet{
			OwnerID: owner.ID,
			Name:    name,
			Kind:    seedPetKinds[r.Intn(len(seedPetKinds))],
		}
		if err := db.Create(&pet).Error; err != nil {
			return fmt.Errorf("failed to create pet: %w", err)
		}
		petIDs = append(petIDs, pet.ID)

		// 2-4 random tags per pet
		perm := r.Perm(len(AllCharacteristics))
		for _, ti := range perm[:2+r.Intn(3)] {
			tag := PetCharacteristic{PetID: pet.ID, Tag: AllCharacteristics[ti]}
			if err := db.Create(&tag).Error; err != nil {
				return fmt.Errorf("failed to create characteristic: %w", err)
			}
		}

		// scatter within roughly 20km of the city center
		loc := Location{
			OwnerID: owner.ID,
			Lat:     seedCenterLat + (r.Float64()-0.5)*0.36,
			Lon:     seedCenterLon + (r.Float64()-0.5)*0.36,
		}
		if err := db.Create(&loc).Error; err != nil {
			return fmt.Errorf("failed to create location: %w", err)
		}
	}

	// --- Seed actions ---
	likes := 0
	for i := 0; i < 120; i++ {
		src := petIDs[r.Intn(len(petIDs))]
		dst := petIDs[r.Intn(len(petIDs))]
		if src == dst {
			continue
		}

		kind := ActionLike
		if r.Float64() > 0.7 {
			kind = ActionDismiss
		}

		action := PetAction{SourcePetID: src, TargetPetID: dst, Kind: kind}
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_pet_id"}, {Name: "target_pet_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"kind", "updated_at"}),
		}).Create(&action).Error; err != nil {
			return fmt.Errorf("failed to create action: %w", err)
		}

		if kind != ActionLike {
			continue
		}
		likes++

		// every 3rd like is made mutual, with its match materialized
		if likes%3 == 0 {
			back := PetAction{SourcePetID: dst, TargetPetID: src, Kind: ActionLike}
			if err := db.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "source_pet_id"}, {Name: "target_pet_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"kind", "updated_at"}),
			}).Create(&back).Error; err != nil {
				return fmt.Errorf("failed to create reciprocal action: %w", err)
			}

			lo, hi := src, dst
			if hi < lo {
				lo, hi = hi, lo
			}
			match := Match{
				ID:      fmt.Sprintf("seed-%d-%d", lo, hi),
				PetLoID: lo,
				PetHiID: hi,
			}
			if err := db.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "pet_lo_id"}, {Name: "pet_hi_id"}},
				DoNothing: true,
			}).Create(&match).Error; err != nil {
				return fmt.Errorf("failed to create match: %w", err)
			}
		}
	}

	log.Printf("Seeded %d pets and %d likes", len(petIDs), likes)
	return nil
}
