// Package guild defines the curating guild registry record.
package guild

import (
	"time"

	"github.com/MissionForge/escrow_layer/internal/app/domain/identity"
)

// MaxRegistryFeeBps is the registration-time cap on a guild's fee share. It
// is stricter than the fee router's own cap; the router tolerates either
// policy layer.
const MaxRegistryFeeBps = 1000 // 10%

// Guild is a curating entity that may earn a variable fee share on missions
// it curates.
type Guild struct {
	Address      identity.Address
	Treasury     identity.Address
	Name         string
	FeeBps       int64
	RegisteredAt time.Time
	UpdatedAt    time.Time
}

// PayoutAddress is the treasury when one is configured, otherwise the guild
// identity itself.
func (g Guild) PayoutAddress() identity.Address {
	if !g.Treasury.IsZero() {
		return g.Treasury
	}
	return g.Address
}
