package store

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Max length constants for user-editable fields.
const (
	MaxNameLength    = 100
	MaxRegionLength  = 50
	MaxAddressLength = 200
	MaxPhoneLength   = 15
)

// Domain errors
var (
	ErrNotFound   = errors.New("store not found")
	ErrValidation = errors.New("invalid store")
	ErrEmailTaken = errors.New("store email already in use")
	ErrEmptyID    = errors.New("store ID is required")
	ErrEmptyOwner = errors.New("owner ID is required")
)

// Store holds state for a sellable location.
// OwnerIDs keeps insertion order but is treated as a set.
type Store struct {
	ID          string    `json:"storeId"`
	Name        string    `json:"name"`
	Region      string    `json:"region"`
	Address     string    `json:"address"`
	Active      bool      `json:"active"`
	PhoneNumber string    `json:"phoneNumber"`
	Email       string    `json:"email"`
	OwnerIDs    []string  `json:"ownerIds"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	StoreType   string    `json:"storeType"`
	Rating      int       `json:"rating"`
	DeliveryFee int64     `json:"deliveryFee"` // minor units
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Validate checks if the Store has valid data.
// PRE: Store struct is initialized
// POST: Returns an error wrapping ErrValidation if validation fails, nil otherwise
// INVARIANT: Name, Address and Email are mandatory; coordinates are not range-checked
func (s *Store) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return invalid("name is mandatory")
	}
	if len(s.Name) > MaxNameLength {
		return invalid("name cannot exceed %d characters", MaxNameLength)
	}
	if len(s.Region) > MaxRegionLength {
		return invalid("region cannot exceed %d characters", MaxRegionLength)
	}
	if strings.TrimSpace(s.Address) == "" {
		return invalid("address is mandatory")
	}
	if len(s.Address) > MaxAddressLength {
		return invalid("address cannot exceed %d characters", MaxAddressLength)
	}
	if len(s.PhoneNumber) > MaxPhoneLength {
		return invalid("phone number cannot exceed %d characters", MaxPhoneLength)
	}
	if strings.TrimSpace(s.Email) == "" {
		return invalid("email is mandatory")
	}
	if !strings.Contains(s.Email, "@") {
		return invalid("email should be valid")
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// HasOwner reports whether ownerID is in the owner list.
// INVARIANT: OwnerIDs is not mutated
func (s *Store) HasOwner(ownerID string) bool {
	return slices.Contains(s.OwnerIDs, ownerID)
}

// AddOwner appends ownerID unless it is already present.
// PRE: ownerID is non-empty
// POST: ownerID is present exactly once if it was absent; returns true if the list changed
func (s *Store) AddOwner(ownerID string) bool {
	if s.HasOwner(ownerID) {
		return false
	}
	s.OwnerIDs = append(s.OwnerIDs, ownerID)
	return true
}

// RemoveOwner deletes the first occurrence of ownerID.
// PRE: none
// POST: Returns true if an entry was removed; an absent owner leaves the list untouched
func (s *Store) RemoveOwner(ownerID string) bool {
	i := slices.Index(s.OwnerIDs, ownerID)
	if i < 0 {
		return false
	}
	s.OwnerIDs = slices.Delete(s.OwnerIDs, i, i+1)
	return true
}

// ApplyUpdate copies the attribute fields of u onto s.
// ID, owner list and CreatedAt are left alone; ownership only changes through AddOwner/RemoveOwner.
func (s *Store) ApplyUpdate(u Store) {
	s.Name = u.Name
	s.Region = u.Region
	s.Address = u.Address
	s.Active = u.Active
	s.PhoneNumber = u.PhoneNumber
	s.Email = u.Email
	s.Latitude = u.Latitude
	s.Longitude = u.Longitude
	s.StoreType = u.StoreType
	s.Rating = u.Rating
	s.DeliveryFee = u.DeliveryFee
}

// Clone returns a copy of s that shares no slice storage with it.
func (s Store) Clone() Store {
	s.OwnerIDs = slices.Clone(s.OwnerIDs)
	return s
}
