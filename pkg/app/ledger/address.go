package ledger

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// programTag namespaces every derived address under this program.
const programTag = "predictr/v1"

// Seed constants for the derived account addresses. They are part of
// the external interface and never change.
const (
	SeedGlobalConfig = "global-config"
	SeedMarket       = "market"
	SeedPosition     = "position"
	SeedVote         = "vote"
)

// Derive computes a deterministic 20-byte address from a seed tuple:
// the low 20 bytes of keccak256(programTag || seeds...). Derived
// accounts have no private key; only the engine writes to them.
func Derive(seeds ...[]byte) common.Address {
	data := []byte(programTag)
	for _, s := range seeds {
		data = append(data, s...)
	}
	return common.BytesToAddress(crypto.Keccak256(data)[12:])
}

// GlobalConfigAddress returns the canonical singleton config address.
func GlobalConfigAddress() common.Address {
	return Derive([]byte(SeedGlobalConfig))
}

// MarketAddress returns the address for a 32-byte market id.
func MarketAddress(marketID [32]byte) common.Address {
	return Derive([]byte(SeedMarket), marketID[:])
}

// PositionAddress returns the address of the (market, user) position.
func PositionAddress(market, user common.Address) common.Address {
	return Derive([]byte(SeedPosition), market[:], user[:])
}

// VoteAddress returns the address of the (market, user, kind) vote
// record; kind is 0 for proposal votes and 1 for dispute votes.
func VoteAddress(market, user common.Address, kind byte) common.Address {
	return Derive([]byte(SeedVote), market[:], user[:], []byte{kind})
}
