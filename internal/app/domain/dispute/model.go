// Package dispute defines the dispute record, its phases and outcomes, and
// the deposit parameters attached to each dispute.
package dispute

import (
	"fmt"
	"time"

	"github.com/MissionForge/escrow_layer/internal/app/domain/identity"
)

// State represents the phase of a dispute. Finalized is terminal.
type State string

const (
	StatePending       State = "pending"
	StateInvestigating State = "investigating"
	StateResolved      State = "resolved"
	StateAppealed      State = "appealed"
	StateFinalized     State = "finalized"
)

// Outcome is the decision attached to a resolved dispute. It is set exactly
// once, at resolution or by DAO override.
type Outcome string

const (
	OutcomeNone          Outcome = "none"
	OutcomePosterWins    Outcome = "poster_wins"
	OutcomePerformerWins Outcome = "performer_wins"
	OutcomeSplit         Outcome = "split"
	OutcomeCancelled     Outcome = "cancelled"
)

// Valid reports whether the outcome is a real decision.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomePosterWins, OutcomePerformerWins, OutcomeSplit, OutcomeCancelled:
		return true
	}
	return false
}

// Deposit and window parameters, fixed at dispute creation.
const (
	// DDRBps sizes the Dynamic Dispute Reserve each party puts up, as a
	// fraction of the mission reward.
	DDRBps = 500 // 5%

	// LPPBps sizes the Loser-Pays Penalty. The amount is computed and stored
	// on every dispute but is not consumed by settlement; it is a reserved
	// slot for a future penalty mechanism.
	LPPBps = 200 // 2%

	// AppealWindow is the fixed period after resolution during which either
	// party may escalate to DAO override.
	AppealWindow = 48 * time.Hour

	// Pool fees skimmed from the combined deposit pool at finalization.
	PoolResolverFeeBps = 1000 // 10% of the pool
	PoolProtocolFeeBps = 500  // 5% of the pool
)

// Dispute tracks one conflict episode of a mission. Its deposit pool is a
// separate economic pool from the mission's escrowed reward.
type Dispute struct {
	ID        uint64
	MissionID uint64
	Escrow    identity.Address
	Poster    identity.Address
	Performer identity.Address
	Initiator identity.Address

	State    State
	Outcome  Outcome
	Resolver identity.Address
	SplitBps int64

	DDRAmount int64
	LPPAmount int64

	PosterDeposited    bool
	PerformerDeposited bool
	PosterEvidence     string
	PerformerEvidence  string
	ResolutionHash     string

	CreatedAt      time.Time
	ResolvedAt     time.Time
	AppealDeadline time.Time
	FinalizedAt    time.Time
}

// Party reports whether the address is the dispute's poster or performer.
func (d Dispute) Party(addr identity.Address) bool {
	return addr == d.Poster || addr == d.Performer
}

// PoolBalance is the total deposited DDR across both parties.
func (d Dispute) PoolBalance() int64 {
	var total int64
	if d.PosterDeposited {
		total += d.DDRAmount
	}
	if d.PerformerDeposited {
		total += d.DDRAmount
	}
	return total
}

// StateError reports an action attempted from a phase that does not permit
// it. It carries the current phase so callers can explain the rejection.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("dispute: %s not allowed in state %q", e.Op, e.State)
}
