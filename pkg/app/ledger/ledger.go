// Package ledger models the base settlement layer the engine runs on:
// accounts holding lamport balances, the rent-exemption rule that keeps
// data-bearing accounts alive, and the rent-safe transfer primitive
// that is the only path for moving units out of a state account.
package ledger

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/predictr-labs/predictr/pkg/app/core"
)

// Rent parameters, matching the ledger's published schedule:
// an account is exempt when it holds two years of rent for its data
// size plus the fixed per-account storage overhead.
const (
	accountStorageOverhead uint64 = 128
	lamportsPerByteYear    uint64 = 3_480
	exemptionYears         uint64 = 2
)

// RentExemptMinimum returns the minimum balance for an account with
// the given data size.
func RentExemptMinimum(dataSize uint64) uint64 {
	return (accountStorageOverhead + dataSize) * lamportsPerByteYear * exemptionYears
}

// RentFloor is the balance a data-bearing account must retain after
// any outbound transfer: 150% of the rent-exempt minimum. The buffer
// absorbs rent-schedule drift and keeps the account collectable-proof.
func RentFloor(dataSize uint64) uint64 {
	return RentExemptMinimum(dataSize) * 3 / 2
}

// Account is a ledger account. Wallets have DataSize 0; state accounts
// carry the serialized size of their account type and are owned by the
// program, so only engine code may debit them.
type Account struct {
	Address  common.Address
	Lamports uint64
	DataSize uint64

	// Nonce is the replay-protection counter for wallet signers.
	Nonce uint64
}

// Ledger is the in-process account table. One write lock serializes
// every mutation, standing in for the chain's account-lock scheduler.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[common.Address]*Account
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{accounts: make(map[common.Address]*Account)}
}

// GetOrCreate returns the account at addr, creating a zero-balance
// wallet account if none exists.
func (l *Ledger) GetOrCreate(addr common.Address) *Account {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.getOrCreateLocked(addr)
}

func (l *Ledger) getOrCreateLocked(addr common.Address) *Account {
	if acc, ok := l.accounts[addr]; ok {
		return acc
	}
	acc := &Account{Address: addr}
	l.accounts[addr] = acc
	return acc
}

// Get returns the account at addr, or nil.
func (l *Ledger) Get(addr common.Address) *Account {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.accounts[addr]
}

// Balance returns the lamport balance at addr (0 for missing accounts).
func (l *Ledger) Balance(addr common.Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if acc, ok := l.accounts[addr]; ok {
		return acc.Lamports
	}
	return 0
}

// CreateDataAccount registers a program-owned state account with its
// serialized size. The caller funds it separately.
func (l *Ledger) CreateDataAccount(addr common.Address, dataSize uint64) *Account {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc := l.getOrCreateLocked(addr)
	acc.DataSize = dataSize
	return acc
}

// Credit adds lamports to addr, creating the account if needed.
func (l *Ledger) Credit(addr common.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc := l.getOrCreateLocked(addr)
	if acc.Lamports+amount < acc.Lamports {
		return core.NewError(core.ErrOverflow, "credit overflows %s", addr.Hex())
	}
	acc.Lamports += amount
	return nil
}

// VerifyDebit checks, without mutating, that amount can leave addr.
// Wallet debits require sufficient funds; data-account debits must
// additionally leave the rent floor intact. Handlers run every
// VerifyDebit for an instruction before the first Move, so the
// effects phase cannot fail halfway.
func (l *Ledger) VerifyDebit(addr common.Address, amount uint64) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.verifyDebitLocked(addr, amount)
}

func (l *Ledger) verifyDebitLocked(addr common.Address, amount uint64) error {
	acc, ok := l.accounts[addr]
	if !ok || acc.Lamports < amount {
		return core.NewError(core.ErrInsufficientFunds, "account %s short of %d", addr.Hex(), amount)
	}
	if acc.DataSize > 0 {
		if acc.Lamports-amount < RentFloor(acc.DataSize) {
			return core.NewError(core.ErrWouldBreakRentExemption,
				"debit of %d from %s leaves %d below floor %d",
				amount, addr.Hex(), acc.Lamports-amount, RentFloor(acc.DataSize))
		}
	}
	return nil
}

// Move transfers lamports after re-running the debit check. With the
// checks phase complete it cannot fail, but the guard stays as the
// rent invariant's last line.
func (l *Ledger) Move(from, to common.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.verifyDebitLocked(from, amount); err != nil {
		return err
	}
	src := l.accounts[from]
	dst := l.getOrCreateLocked(to)
	src.Lamports -= amount
	dst.Lamports += amount
	return nil
}

// WithdrawableFromData returns how much a data account can pay out
// while keeping its rent floor.
func (l *Ledger) WithdrawableFromData(addr common.Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[addr]
	if !ok {
		return 0
	}
	floor := RentFloor(acc.DataSize)
	if acc.Lamports <= floor {
		return 0
	}
	return acc.Lamports - floor
}

// NextNonce enforces strictly-increasing nonces for a signer. It
// returns an error when nonce does not exceed the stored value, and
// records it otherwise.
func (l *Ledger) NextNonce(addr common.Address, nonce uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc := l.getOrCreateLocked(addr)
	if nonce <= acc.Nonce {
		return core.NewError(core.ErrUnauthorized, "nonce %d not above %d (replay)", nonce, acc.Nonce)
	}
	acc.Nonce = nonce
	return nil
}

// Nonce returns the last accepted nonce for addr.
func (l *Ledger) Nonce(addr common.Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if acc, ok := l.accounts[addr]; ok {
		return acc.Nonce
	}
	return 0
}

// Snapshot returns a copy of every account, for state export and the
// persistence layer.
func (l *Ledger) Snapshot() []Account {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Account, 0, len(l.accounts))
	for _, acc := range l.accounts {
		out = append(out, *acc)
	}
	return out
}

// Restore installs an account verbatim (used at startup).
func (l *Ledger) Restore(acc Account) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := acc
	l.accounts[acc.Address] = &cp
}
