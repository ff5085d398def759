package ledger

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/predictr-labs/predictr/pkg/app/core"
)

var (
	alice = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	bob   = common.HexToAddress("0xBB00000000000000000000000000000000000000")
)

func TestDeriveDeterministic(t *testing.T) {
	id := [32]byte{7}
	a1 := MarketAddress(id)
	a2 := MarketAddress(id)
	if a1 != a2 {
		t.Error("derived address not deterministic")
	}

	id2 := [32]byte{8}
	if MarketAddress(id2) == a1 {
		t.Error("distinct ids collide")
	}

	// Seed domains must not collide either.
	if GlobalConfigAddress() == MarketAddress(id) {
		t.Error("config and market seeds collide")
	}
	if PositionAddress(a1, alice) == VoteAddress(a1, alice, 0) {
		t.Error("position and vote seeds collide")
	}
	if VoteAddress(a1, alice, 0) == VoteAddress(a1, alice, 1) {
		t.Error("vote kinds collide")
	}
}

func TestRentSchedule(t *testing.T) {
	// (128 + size) * 3480 * 2
	if got := RentExemptMinimum(0); got != 128*3480*2 {
		t.Errorf("wallet rent min = %d", got)
	}
	if got := RentExemptMinimum(core.MarketSize); got != (128+core.MarketSize)*3480*2 {
		t.Errorf("market rent min = %d", got)
	}
	if got := RentFloor(core.MarketSize); got != RentExemptMinimum(core.MarketSize)*3/2 {
		t.Errorf("rent floor = %d", got)
	}
}

func TestWalletDebits(t *testing.T) {
	l := New()
	if err := l.Credit(alice, 1000); err != nil {
		t.Fatal(err)
	}

	if err := l.VerifyDebit(alice, 1001); !errors.Is(err, core.CodedError(core.ErrInsufficientFunds)) {
		t.Errorf("overdraft: got %v, want InsufficientFunds", err)
	}
	if err := l.VerifyDebit(alice, 1000); err != nil {
		t.Errorf("full-balance wallet debit should pass: %v", err)
	}

	if err := l.Move(alice, bob, 400); err != nil {
		t.Fatal(err)
	}
	if l.Balance(alice) != 600 || l.Balance(bob) != 400 {
		t.Errorf("balances after move: %d / %d", l.Balance(alice), l.Balance(bob))
	}
}

// TestRentFloorEnforced: a data-bearing account cannot be drained past
// 150% of its rent-exempt minimum.
func TestRentFloorEnforced(t *testing.T) {
	l := New()
	market := MarketAddress([32]byte{1})
	l.CreateDataAccount(market, core.MarketSize)

	floor := RentFloor(core.MarketSize)
	l.Credit(market, floor+500)

	// Down to the floor exactly: fine.
	if err := l.VerifyDebit(market, 500); err != nil {
		t.Errorf("debit to floor rejected: %v", err)
	}
	// One lamport past the floor: rejected.
	if err := l.VerifyDebit(market, 501); !errors.Is(err, core.CodedError(core.ErrWouldBreakRentExemption)) {
		t.Errorf("breach: got %v, want WouldBreakRentExemption", err)
	}

	// Move enforces the same rule.
	if err := l.Move(market, alice, 501); !errors.Is(err, core.CodedError(core.ErrWouldBreakRentExemption)) {
		t.Errorf("move breach: got %v, want WouldBreakRentExemption", err)
	}
	if l.Balance(market) != floor+500 {
		t.Error("failed move mutated balance")
	}

	if got := l.WithdrawableFromData(market); got != 500 {
		t.Errorf("withdrawable = %d, want 500", got)
	}
}

func TestNonceStrictlyIncreasing(t *testing.T) {
	l := New()
	if err := l.NextNonce(alice, 1); err != nil {
		t.Fatal(err)
	}
	if err := l.NextNonce(alice, 1); err == nil {
		t.Error("replayed nonce accepted")
	}
	if err := l.NextNonce(alice, 5); err != nil {
		t.Errorf("gap nonce rejected: %v", err)
	}
	if l.Nonce(alice) != 5 {
		t.Errorf("nonce = %d, want 5", l.Nonce(alice))
	}
}
