// Package fees holds the protocol fee table and the split arithmetic applied
// to every mission payout. All amounts are 6-decimal fixed-point micro-units
// and all rates are basis points.
package fees

import (
	"errors"
	"fmt"
)

// BpsDenominator is the basis-point scale: 10000 bps == 100%.
const BpsDenominator = 10000

// Fixed protocol fee rates applied to the mission reward on every payout.
const (
	ProtocolFeeBps = 400 // 4%
	LabsFeeBps     = 400 // 4%
	ResolverFeeBps = 200 // 2%

	// MaxGuildFeeBps is the router-level cap on the variable guild fee. The
	// guild registry applies a stricter cap at registration time; the router
	// still accepts up to its own cap so either policy layer can tighten.
	MaxGuildFeeBps = 1500
)

var (
	ErrNegativeReward     = errors.New("fees: reward must not be negative")
	ErrGuildFeeOutOfRange = fmt.Errorf("fees: guild fee exceeds %d bps", MaxGuildFeeBps)
)

// Split is the exact decomposition of a mission reward. The five legs always
// sum to the reward that produced them.
type Split struct {
	Performer int64
	Protocol  int64
	Guild     int64
	Resolver  int64
	Labs      int64
}

// Total returns the sum of all legs.
func (s Split) Total() int64 {
	return s.Performer + s.Protocol + s.Guild + s.Resolver + s.Labs
}

// ComputeSplit decomposes a reward into its payout legs. The performer leg is
// computed by subtraction rather than an independent multiplication, so every
// unit truncated by integer division on a fee leg accrues to the performer and
// the split sums to the reward exactly.
func ComputeSplit(reward int64, guildPresent bool, guildFeeBps int64) (Split, error) {
	if reward < 0 {
		return Split{}, ErrNegativeReward
	}
	if guildFeeBps < 0 || guildFeeBps > MaxGuildFeeBps {
		return Split{}, ErrGuildFeeOutOfRange
	}

	split := Split{
		Protocol: reward * ProtocolFeeBps / BpsDenominator,
		Labs:     reward * LabsFeeBps / BpsDenominator,
		Resolver: reward * ResolverFeeBps / BpsDenominator,
	}
	if guildPresent {
		split.Guild = reward * guildFeeBps / BpsDenominator
	}
	split.Performer = reward - split.Protocol - split.Labs - split.Resolver - split.Guild
	return split, nil
}
