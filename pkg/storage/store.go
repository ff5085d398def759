// Package storage persists engine state in Pebble. State accounts are
// stored in their wire-exact binary layout (the same bytes clients see
// on the wire); ledger accounts and events are JSON.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/predictr-labs/predictr/pkg/app/core"
	"github.com/predictr-labs/predictr/pkg/app/ledger"
)

type Store struct {
	db       *pebble.DB
	eventSeq atomic.Uint64
}

// Key prefixes: g (config), m: (market), p: (position), v: (vote),
// a: (ledger account), e: (event, 8-byte big-endian sequence).
func kConfig() []byte                   { return []byte("g") }
func kMarket(a common.Address) []byte   { return append([]byte("m:"), a[:]...) }
func kPosition(a common.Address) []byte { return append([]byte("p:"), a[:]...) }
func kVote(a common.Address) []byte     { return append([]byte("v:"), a[:]...) }
func kAccount(a common.Address) []byte  { return append([]byte("a:"), a[:]...) }
func kEvent(seq uint64) []byte {
	k := make([]byte, 2+8)
	copy(k, "e:")
	binary.BigEndian.PutUint64(k[2:], seq)
	return k
}

func keyUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", path, err)
	}
	s := &Store{db: db}
	s.eventSeq.Store(s.lastEventSeq())
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) lastEventSeq() uint64 {
	prefix := []byte("e:")
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return 0
	}
	defer iter.Close()
	if !iter.Last() {
		return 0
	}
	key := iter.Key()
	if len(key) != 10 {
		return 0
	}
	return binary.BigEndian.Uint64(key[2:])
}

func (s *Store) set(key, val []byte) error {
	if err := s.db.Set(key, val, pebble.Sync); err != nil {
		return fmt.Errorf("pebble set: %w", err)
	}
	return nil
}

// SaveConfig persists the global config in wire layout.
func (s *Store) SaveConfig(cfg *core.GlobalConfig) error {
	data, err := cfg.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return s.set(kConfig(), data)
}

// LoadConfig returns nil when no config has been initialized yet.
func (s *Store) LoadConfig() (*core.GlobalConfig, error) {
	val, closer, err := s.db.Get(kConfig())
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}
	defer closer.Close()
	var cfg core.GlobalConfig
	if err := cfg.UnmarshalBinary(val); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// SaveMarket persists a market in wire layout.
func (s *Store) SaveMarket(addr common.Address, m *core.Market) error {
	data, err := m.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to marshal market: %w", err)
	}
	return s.set(kMarket(addr), data)
}

// LoadMarkets returns every persisted market keyed by address.
func (s *Store) LoadMarkets() (map[common.Address]*core.Market, error) {
	out := make(map[common.Address]*core.Market)
	err := s.scan([]byte("m:"), func(key, val []byte) {
		var m core.Market
		if err := m.UnmarshalBinary(val); err != nil {
			return // skip corrupt entries
		}
		out[common.BytesToAddress(key[2:])] = &m
	})
	return out, err
}

// SavePosition persists a position in wire layout.
func (s *Store) SavePosition(addr common.Address, p *core.Position) error {
	data, err := p.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to marshal position: %w", err)
	}
	return s.set(kPosition(addr), data)
}

// LoadPositions returns every persisted position keyed by address.
func (s *Store) LoadPositions() (map[common.Address]*core.Position, error) {
	out := make(map[common.Address]*core.Position)
	err := s.scan([]byte("p:"), func(key, val []byte) {
		var p core.Position
		if err := p.UnmarshalBinary(val); err != nil {
			return
		}
		out[common.BytesToAddress(key[2:])] = &p
	})
	return out, err
}

// SaveVote persists a vote record in wire layout.
func (s *Store) SaveVote(addr common.Address, v *core.VoteRecord) error {
	data, err := v.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to marshal vote: %w", err)
	}
	return s.set(kVote(addr), data)
}

// DeleteVote removes a closed vote record.
func (s *Store) DeleteVote(addr common.Address) error {
	if err := s.db.Delete(kVote(addr), pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete vote: %w", err)
	}
	return nil
}

// LoadVotes returns every persisted vote record keyed by address.
func (s *Store) LoadVotes() (map[common.Address]*core.VoteRecord, error) {
	out := make(map[common.Address]*core.VoteRecord)
	err := s.scan([]byte("v:"), func(key, val []byte) {
		var v core.VoteRecord
		if err := v.UnmarshalBinary(val); err != nil {
			return
		}
		out[common.BytesToAddress(key[2:])] = &v
	})
	return out, err
}

// SaveLedgerAccount persists one ledger account.
func (s *Store) SaveLedgerAccount(acc ledger.Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}
	return s.set(kAccount(acc.Address), data)
}

// LoadLedgerAccounts returns every persisted ledger account.
func (s *Store) LoadLedgerAccounts() ([]ledger.Account, error) {
	var out []ledger.Account
	err := s.scan([]byte("a:"), func(_, val []byte) {
		var acc ledger.Account
		if err := json.Unmarshal(val, &acc); err != nil {
			return
		}
		out = append(out, acc)
	})
	return out, err
}

// AppendEvent adds an event to the ordered log. Events use NoSync like
// the teacher's trade history; they are derivable from state replay.
func (s *Store) AppendEvent(ev core.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	seq := s.eventSeq.Add(1)
	if err := s.db.Set(kEvent(seq), data, pebble.NoSync); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// RecentEvents returns the latest limit events, newest first.
func (s *Store) RecentEvents(limit int) ([]core.Event, error) {
	prefix := []byte("e:")
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []core.Event
	for iter.Last(); iter.Valid() && len(out) < limit; iter.Prev() {
		var ev core.Event
		if err := json.Unmarshal(iter.Value(), &ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *Store) scan(prefix []byte, fn func(key, val []byte)) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		fn(iter.Key(), iter.Value())
	}
	return nil
}
