// Package token provides the fungible-token ledger the protocol moves value
// through. The protocol treats the ledger as an external service: every
// transfer is fail-closed, and a failed transfer aborts the operation that
// requested it.
package token

import (
	"context"
	"errors"
	"sync"

	"github.com/MissionForge/escrow_layer/internal/app/domain/identity"
)

var (
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrInvalidAmount         = errors.New("token: amount must be positive")
	ErrZeroAddress           = errors.New("token: zero address")
)

// Ledger is the transfer primitive consumed by the protocol services.
type Ledger interface {
	BalanceOf(ctx context.Context, addr identity.Address) (int64, error)
	Transfer(ctx context.Context, from, to identity.Address, amount int64) error
	TransferFrom(ctx context.Context, spender, owner, to identity.Address, amount int64) error
	Approve(ctx context.Context, owner, spender identity.Address, amount int64) error
	Allowance(ctx context.Context, owner, spender identity.Address) (int64, error)
}

// Bank is an in-process Ledger with 6-decimal fixed-point balances, mirroring
// a stablecoin. It stands in for the external token service in tests and
// single-node deployments.
type Bank struct {
	mu         sync.Mutex
	balances   map[identity.Address]int64
	allowances map[identity.Address]map[identity.Address]int64
}

var _ Ledger = (*Bank)(nil)

// NewBank creates an empty ledger.
func NewBank() *Bank {
	return &Bank{
		balances:   make(map[identity.Address]int64),
		allowances: make(map[identity.Address]map[identity.Address]int64),
	}
}

// Mint credits new units to an address. Test and genesis use only.
func (b *Bank) Mint(_ context.Context, to identity.Address, amount int64) error {
	if to.IsZero() {
		return ErrZeroAddress
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[to] += amount
	return nil
}

func (b *Bank) BalanceOf(_ context.Context, addr identity.Address) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[addr], nil
}

func (b *Bank) Transfer(_ context.Context, from, to identity.Address, amount int64) error {
	if from.IsZero() || to.IsZero() {
		return ErrZeroAddress
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.move(from, to, amount)
}

func (b *Bank) TransferFrom(_ context.Context, spender, owner, to identity.Address, amount int64) error {
	if spender.IsZero() || owner.IsZero() || to.IsZero() {
		return ErrZeroAddress
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	granted := b.allowances[owner][spender]
	if granted < amount {
		return ErrInsufficientAllowance
	}
	if err := b.move(owner, to, amount); err != nil {
		return err
	}
	b.allowances[owner][spender] = granted - amount
	return nil
}

func (b *Bank) Approve(_ context.Context, owner, spender identity.Address, amount int64) error {
	if owner.IsZero() || spender.IsZero() {
		return ErrZeroAddress
	}
	if amount < 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.allowances[owner] == nil {
		b.allowances[owner] = make(map[identity.Address]int64)
	}
	b.allowances[owner][spender] = amount
	return nil
}

func (b *Bank) Allowance(_ context.Context, owner, spender identity.Address) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.allowances[owner][spender], nil
}

// move requires b.mu held.
func (b *Bank) move(from, to identity.Address, amount int64) error {
	if b.balances[from] < amount {
		return ErrInsufficientBalance
	}
	b.balances[from] -= amount
	b.balances[to] += amount
	return nil
}
