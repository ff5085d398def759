package core

import (
	"bytes"
	"testing"
)

// TestWireSizes pins the serialized account sizes the rent schedule
// depends on.
func TestWireSizes(t *testing.T) {
	cfg := &GlobalConfig{}
	data, err := cfg.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != GlobalConfigSize {
		t.Errorf("GlobalConfig wire size %d, const says %d", len(data), GlobalConfigSize)
	}

	m := testMarket(t)
	data, err = m.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != MarketSize {
		t.Errorf("Market wire size %d, const says %d", len(data), MarketSize)
	}

	p := NewPosition(creator, someone)
	data, err = p.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != PositionSize {
		t.Errorf("Position wire size %d, const says %d", len(data), PositionSize)
	}

	v := &VoteRecord{}
	data, err = v.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != VoteRecordSize {
		t.Errorf("VoteRecord wire size %d, const says %d", len(data), VoteRecordSize)
	}
}

// TestMarketWireRoundTrip covers the optional-bool encoding, the one
// non-trivial part of the layout: absent, Some(true) and Some(false)
// must all survive.
func TestMarketWireRoundTrip(t *testing.T) {
	yes, no := true, false
	outcomes := []*bool{nil, &yes, &no}
	for _, o := range outcomes {
		m := testMarket(t)
		m.State = Finalized
		m.ProposedOutcome = o
		m.FinalOutcome = o
		m.SharesYes = 123456789
		m.Resolver = someone
		copy(m.IPFSEvidenceHash[:], bytes.Repeat([]byte{'Q'}, IPFSHashLen))

		data, err := m.MarshalBinary()
		if err != nil {
			t.Fatal(err)
		}
		var back Market
		if err := back.UnmarshalBinary(data); err != nil {
			t.Fatal(err)
		}

		switch {
		case o == nil && back.FinalOutcome != nil:
			t.Error("INVALID outcome decoded as present")
		case o != nil && (back.FinalOutcome == nil || *back.FinalOutcome != *o):
			t.Errorf("outcome %v mangled", *o)
		}
		if back.SharesYes != m.SharesYes || back.Resolver != m.Resolver || back.State != m.State {
			t.Error("fields mangled in round trip")
		}
	}
}

// TestWireTagMismatch: decoding against the wrong tag fails closed.
func TestWireTagMismatch(t *testing.T) {
	p := NewPosition(creator, someone)
	data, err := p.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	var m Market
	if err := m.UnmarshalBinary(data); err == nil {
		t.Error("market decode accepted position bytes")
	}
}
