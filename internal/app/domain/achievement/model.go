// Package achievement defines the badge bookkeeping consumed from mission
// completion events.
package achievement

import (
	"time"

	"github.com/MissionForge/escrow_layer/internal/app/domain/identity"
)

// Badge is an awardable achievement with an optional supply cap. A cap of
// zero means unlimited supply.
type Badge struct {
	ID          string
	Name        string
	Description string
	SupplyCap   int64
	Minted      int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Remaining returns how many awards are left under the cap, or a negative
// value when the badge is uncapped.
func (b Badge) Remaining() int64 {
	if b.SupplyCap == 0 {
		return -1
	}
	return b.SupplyCap - b.Minted
}

// Award records a badge granted to an owner. An owner holds at most one
// award per badge.
type Award struct {
	ID        string
	BadgeID   string
	Owner     identity.Address
	MissionID uint64
	AwardedAt time.Time
}
