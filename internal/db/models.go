package db

import (
	"time"
)

// ActionKind is the tagged state of a directed pet action.
type ActionKind uint8

const (
	ActionLike    ActionKind = 1
	ActionDismiss ActionKind = 2
)

func (k ActionKind) Valid() bool {
	return k == ActionLike || k == ActionDismiss
}

func (k ActionKind) String() string {
	switch k {
	case ActionLike:
		return "like"
	case ActionDismiss:
		return "dismiss"
	default:
		return "unknown"
	}
}

// ParseActionKind maps the wire value to an ActionKind.
func ParseActionKind(s string) (ActionKind, bool) {
	switch s {
	case "like":
		return ActionLike, true
	case "dismiss":
		return ActionDismiss, true
	}
	return 0, false
}

// Characteristic tags a pet can carry. Finite set, stored as strings.
const (
	TagPlayful     = "PLAYFUL"
	TagCalm        = "CALM"
	TagEnergetic   = "ENERGETIC"
	TagCurious     = "CURIOUS"
	TagSocial      = "SOCIAL"
	TagIndependent = "INDEPENDENT"
	TagVocal       = "VOCAL"
	TagGentle      = "GENTLE"
)

// AllCharacteristics lists every known tag, used by seed and validation.
var AllCharacteristics = []string{
	TagPlayful, TagCalm, TagEnergetic, TagCurious,
	TagSocial, TagIndependent, TagVocal, TagGentle,
}

// Owner table. Accounts are created and authenticated elsewhere; the
// engine only needs the row to anchor pets and locations.
type Owner struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement"`
	Username     string    `gorm:"uniqueIndex;size:64;not null"`
	Email        string    `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash string    `gorm:"size:255;not null"`
	Active       bool      `gorm:"default:true"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// Pet is the unit of matching: one pet profile per owner.
type Pet struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	OwnerID   uint64    `gorm:"uniqueIndex;not null"`
	Name      string    `gorm:"size:64;not null"`
	Kind      string    `gorm:"size:32;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// PetCharacteristic is one tag of a pet's characteristic set.
//
// Composite PK (PetID, Tag) makes the set idempotent under re-insert.
type PetCharacteristic struct {
	PetID uint64 `gorm:"primaryKey;autoIncrement:false"`
	Tag   string `gorm:"primaryKey;size:32"`
}

// Location is an owner's current position. One row per owner; every
// update overwrites the previous point, no history kept.
type Location struct {
	OwnerID   uint64    `gorm:"primaryKey;autoIncrement:false"`
	Lat       float64   `gorm:"not null"`
	Lon       float64   `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// PetAction represents a directed like/dismiss from one pet toward another.
//
// Composite PK: (SourcePetID, TargetPetID)
//   - Ensures a single row per ordered pair (overwrite guarantee).
//
// Indexes:
//   - idx_target_kind_updated_source(target_pet_id, kind, updated_at DESC, source_pet_id)
//     Optimizes "who liked me" listings with pagination.
//   - idx_source_target_kind(source_pet_id, target_pet_id, kind)
//     Optimizes O(1) reciprocity lookups on like.
type PetAction struct {
	SourcePetID uint64     `gorm:"primaryKey;index:idx_source_target_kind,priority:1"`
	TargetPetID uint64     `gorm:"primaryKey;index:idx_target_kind_updated_source,priority:1;index:idx_source_target_kind,priority:2"`
	Kind        ActionKind `gorm:"not null;type:tinyint;index:idx_target_kind_updated_source,priority:2;index:idx_source_target_kind,priority:3"`
	CreatedAt   time.Time  `gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime;index:idx_target_kind_updated_source,priority:3,sort:desc"`
}

// Match is the undirected fact that two pets liked each other.
//
// The pair is normalized before insert so that PetLoID < PetHiID; the
// unique composite index on (pet_lo_id, pet_hi_id) is what makes match
// creation idempotent under concurrent retried likes.
type Match struct {
	ID        string    `gorm:"primaryKey;size:36"`
	PetLoID   uint64    `gorm:"uniqueIndex:idx_match_pair,priority:1;not null"`
	PetHiID   uint64    `gorm:"uniqueIndex:idx_match_pair,priority:2;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}
