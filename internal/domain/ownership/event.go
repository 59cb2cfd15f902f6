package ownership

import (
	"encoding/json"
	"errors"
)

// TopicUserRoleUpdates is the topic role changes are published on.
const TopicUserRoleUpdates = "user-role-updates"

// RoleOwner is the role granted when a user becomes a store owner.
const RoleOwner = "OWNER"

// ErrEmptyUserID is returned when decoding an event without a user.
var ErrEmptyUserID = errors.New("role update event requires a user ID")

// RoleUpdateEvent tells downstream services that a user gained a role.
// Values are immutable once built.
type RoleUpdateEvent struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// NewOwnerEvent builds the event emitted when ownerID is first added to a store.
func NewOwnerEvent(ownerID string) RoleUpdateEvent {
	return RoleUpdateEvent{UserID: ownerID, Role: RoleOwner}
}

// Encode returns the JSON wire form of the event.
func (e RoleUpdateEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeRoleUpdateEvent parses the JSON wire form.
// PRE: data is a JSON object
// POST: Returns an event with a non-empty UserID or an error
func DecodeRoleUpdateEvent(data []byte) (RoleUpdateEvent, error) {
	var e RoleUpdateEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return RoleUpdateEvent{}, err
	}
	if e.UserID == "" {
		return RoleUpdateEvent{}, ErrEmptyUserID
	}
	return e, nil
}
