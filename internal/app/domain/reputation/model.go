// Package reputation defines the per-address outcome counters kept by the
// reputation ledger.
package reputation

import (
	"time"

	"github.com/MissionForge/escrow_layer/internal/app/domain/identity"
)

// Record aggregates mission outcomes for one address. Poster and performer
// roles are counted separately; volume figures are micro-units.
type Record struct {
	Address            identity.Address
	MissionsPosted     int64
	MissionsPerformed  int64
	MissionsFailed     int64
	VolumeSpent        int64
	VolumeEarned       int64
	UpdatedAt          time.Time
}
