package storage

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/predictr-labs/predictr/pkg/app/core"
	"github.com/predictr-labs/predictr/pkg/app/ledger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testAddr = common.HexToAddress("0xAA00000000000000000000000000000000000000")

func TestConfigPersistence(t *testing.T) {
	s := newTestStore(t)

	if cfg, err := s.LoadConfig(); err != nil || cfg != nil {
		t.Fatalf("fresh store should have no config: %v %v", cfg, err)
	}

	cfg, err := core.NewGlobalConfig(testAddr, testAddr, testAddr, 300, 200, 500)
	if err != nil {
		t.Fatal(err)
	}
	cfg.IsPaused = true
	if err := s.SaveConfig(cfg); err != nil {
		t.Fatal(err)
	}

	back, err := s.LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if back == nil || back.ProtocolFeeBps != 300 || !back.IsPaused {
		t.Errorf("config mangled: %+v", back)
	}
}

func TestMarketAndVotePersistence(t *testing.T) {
	s := newTestStore(t)

	id := [32]byte{9}
	m, err := core.NewMarket(id, testAddr, core.MinBParameter, core.MinInitialLiquidity, 100)
	if err != nil {
		t.Fatal(err)
	}
	mAddr := ledger.MarketAddress(id)
	if err := s.SaveMarket(mAddr, m); err != nil {
		t.Fatal(err)
	}

	vAddr := ledger.VoteAddress(mAddr, testAddr, 0)
	vote := &core.VoteRecord{Market: mAddr, User: testAddr, Kind: core.ProposalVote, Vote: true, VotedAt: 100}
	if err := s.SaveVote(vAddr, vote); err != nil {
		t.Fatal(err)
	}

	markets, err := s.LoadMarkets()
	if err != nil {
		t.Fatal(err)
	}
	if got := markets[mAddr]; got == nil || got.MarketID != id {
		t.Error("market not recovered by address")
	}

	votes, err := s.LoadVotes()
	if err != nil {
		t.Fatal(err)
	}
	if got := votes[vAddr]; got == nil || !got.Vote {
		t.Error("vote not recovered")
	}

	if err := s.DeleteVote(vAddr); err != nil {
		t.Fatal(err)
	}
	votes, _ = s.LoadVotes()
	if len(votes) != 0 {
		t.Error("deleted vote still present")
	}
}

func TestLedgerAccountPersistence(t *testing.T) {
	s := newTestStore(t)

	acc := ledger.Account{Address: testAddr, Lamports: 12345, DataSize: core.MarketSize, Nonce: 7}
	if err := s.SaveLedgerAccount(acc); err != nil {
		t.Fatal(err)
	}
	accounts, err := s.LoadLedgerAccounts()
	if err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 1 || accounts[0].Lamports != 12345 || accounts[0].Nonce != 7 {
		t.Errorf("account mangled: %+v", accounts)
	}
}

// TestEventLogOrder: events come back newest first and the sequence
// counter survives reopen.
func TestEventLogOrder(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		ev := core.NewEvent(core.EventSharesBought, "01", int64(1000+i), core.SharesBoughtData{TotalVolume: uint64(i)})
		if err := s.AppendEvent(ev); err != nil {
			t.Fatal(err)
		}
	}

	events, err := s.RecentEvents(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events", len(events))
	}
	if events[0].Timestamp != 1004 || events[2].Timestamp != 1002 {
		t.Errorf("wrong order: %d .. %d", events[0].Timestamp, events[2].Timestamp)
	}

	// Reopen: the next append must not collide with old sequences.
	s.Close()
	s, err = Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.AppendEvent(core.NewEvent(core.EventSharesSold, "01", 2000, nil)); err != nil {
		t.Fatal(err)
	}
	events, _ = s.RecentEvents(10)
	if len(events) != 6 {
		t.Errorf("got %d events after reopen, want 6", len(events))
	}
}
