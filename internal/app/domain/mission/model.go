// Package mission defines the mission record and its lifecycle states.
package mission

import (
	"fmt"
	"time"

	"github.com/MissionForge/escrow_layer/internal/app/domain/identity"
)

// State represents the lifecycle position of a mission.
type State string

const (
	StateOpen      State = "open"
	StateAccepted  State = "accepted"
	StateSubmitted State = "submitted"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateDisputed  State = "disputed"
)

// Terminal reports whether no further transition can leave the state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// Creation bounds enforced by the factory before an escrow ever exists.
// Amounts are 6-decimal micro-units.
const (
	MinReward = 1_000_000           // 1.000000
	MaxReward = 100_000_000_000_000 // 100,000,000.000000

	MinDuration = time.Hour
	MaxDuration = 90 * 24 * time.Hour
)

// Mission is the authoritative record of a funded unit of work. Exactly one
// escrow custody address exists per mission; the record is immutable once a
// terminal state is reached.
type Mission struct {
	ID            uint64
	Poster        identity.Address
	Performer     identity.Address
	Escrow        identity.Address
	Guild         identity.Address
	Reward        int64
	MetadataHash  string
	LocationHash  string
	ProofHash     string
	State         State
	DisputeRaised bool
	DisputeID     uint64
	CreatedAt     time.Time
	ExpiresAt     time.Time
	UpdatedAt     time.Time
}

// Expired reports whether the mission's work window has passed at the given
// instant. Expiry is a lazy guard, never a background timer.
func (m Mission) Expired(now time.Time) bool {
	return now.After(m.ExpiresAt)
}

// StateError reports an action attempted from a state that does not permit
// it. It carries the current state so callers can explain the rejection.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("mission: %s not allowed in state %q", e.Op, e.State)
}

// BoundsError reports a creation parameter outside its allowed range.
type BoundsError struct {
	Field string
	Value int64
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("mission: %s out of bounds: %d", e.Field, e.Value)
}
