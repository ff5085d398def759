package core

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/predictr-labs/predictr/pkg/fixedpoint"
)

var (
	creator = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	someone = common.HexToAddress("0xBB00000000000000000000000000000000000000")
)

func testMarket(t *testing.T) *Market {
	t.Helper()
	id := [32]byte{1}
	m, err := NewMarket(id, creator, 1000*fixedpoint.Precision, fixedpoint.Precision, 100)
	if err != nil {
		t.Fatalf("NewMarket: %v", err)
	}
	return m
}

func TestNewMarketValidation(t *testing.T) {
	id := [32]byte{1}
	tests := []struct {
		name     string
		id       [32]byte
		b        uint64
		liq      uint64
		wantCode Code
	}{
		{"zero id", [32]byte{}, 1000 * fixedpoint.Precision, fixedpoint.Precision, ErrInvalidMarketID},
		{"b below floor", id, MinBParameter - 1, fixedpoint.Precision, ErrInvalidBParameter},
		{"liquidity below floor", id, 1000 * fixedpoint.Precision, MinInitialLiquidity - 1, ErrInsufficientLiquidity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMarket(tt.id, creator, tt.b, tt.liq, 100)
			var coded *Error
			if !errors.As(err, &coded) || coded.Code != tt.wantCode {
				t.Errorf("got %v, want code %s", err, tt.wantCode.Name())
			}
		})
	}
}

// TestTransitionGate walks every allowed edge and rejects a sample of
// forbidden ones.
func TestTransitionGate(t *testing.T) {
	allowed := []struct {
		from, to MarketState
	}{
		{Proposed, Approved},
		{Proposed, Cancelled},
		{Approved, Active},
		{Approved, Cancelled},
		{Active, Resolving},
		{Resolving, Finalized},
		{Resolving, Disputed},
		{Disputed, Finalized},
	}
	for _, tt := range allowed {
		m := testMarket(t)
		m.State = tt.from
		if err := m.Transition(tt.to); err != nil {
			t.Errorf("%s -> %s should be allowed: %v", tt.from, tt.to, err)
		}
		if m.State != tt.to {
			t.Errorf("state is %s after transition to %s", m.State, tt.to)
		}
	}

	forbidden := []struct {
		from, to MarketState
	}{
		{Proposed, Active},
		{Proposed, Finalized},
		{Approved, Resolving},
		{Active, Finalized},
		{Active, Cancelled},
		{Resolving, Active},
		{Disputed, Resolving},
		{Finalized, Active},
		{Finalized, Finalized},
		{Cancelled, Proposed},
	}
	for _, tt := range forbidden {
		m := testMarket(t)
		m.State = tt.from
		err := m.Transition(tt.to)
		if !errors.Is(err, CodedError(ErrInvalidStateTransition)) {
			t.Errorf("%s -> %s: got %v, want InvalidStateTransition", tt.from, tt.to, err)
		}
		if m.State != tt.from {
			t.Errorf("failed transition mutated state to %s", m.State)
		}
	}
}

func TestCloneIndependence(t *testing.T) {
	m := testMarket(t)
	yes := true
	m.ProposedOutcome = &yes

	cp := m.Clone()
	*cp.ProposedOutcome = false
	cp.SharesYes = 42

	if *m.ProposedOutcome != true {
		t.Error("clone shares outcome pointer with original")
	}
	if m.SharesYes != 0 {
		t.Error("clone shares scalar state with original")
	}
}

func TestPositionOwnerBinding(t *testing.T) {
	market := common.HexToAddress("0xCC00000000000000000000000000000000000000")
	p := NewPosition(market, creator)

	if err := p.VerifyOwner(market, creator); err != nil {
		t.Errorf("owner check failed for owner: %v", err)
	}
	if err := p.VerifyOwner(market, someone); !errors.Is(err, CodedError(ErrUnauthorized)) {
		t.Errorf("wrong user: got %v, want Unauthorized", err)
	}
	other := common.HexToAddress("0xDD00000000000000000000000000000000000000")
	if err := p.VerifyOwner(other, creator); !errors.Is(err, CodedError(ErrUnauthorized)) {
		t.Errorf("wrong market: got %v, want Unauthorized", err)
	}
}
