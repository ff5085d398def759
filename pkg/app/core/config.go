package core

import (
	"github.com/ethereum/go-ethereum/common"
)

// Fee and threshold defaults applied by initialize_global_config.
const (
	DefaultProtocolFeeBps               uint16 = 300
	DefaultResolverRewardBps            uint16 = 200
	DefaultLiquidityProviderFeeBps      uint16 = 500
	DefaultProposalApprovalThresholdBps uint16 = 7000
	DefaultDisputeSuccessThresholdBps   uint16 = 6000

	DefaultMinResolutionDelayS int64 = 86_400  // 1 day
	DefaultDisputePeriodS      int64 = 259_200 // 3 days

	// MaxBps is 100% in basis points.
	MaxBps = 10_000
)

// GlobalConfig is the singleton configuration account. It lives at the
// derived address seeded by "global-config" and is writable only by the
// admin (plus the one-time initializer).
type GlobalConfig struct {
	Admin             common.Address
	BackendAuthority  common.Address
	ProtocolFeeWallet common.Address

	ProtocolFeeBps          uint16
	ResolverRewardBps       uint16
	LiquidityProviderFeeBps uint16

	ProposalApprovalThresholdBps uint16
	DisputeSuccessThresholdBps   uint16

	MinResolutionDelayS int64
	DisputePeriodS      int64

	IsPaused bool
}

// NewGlobalConfig builds a config with documented defaults for every
// field the initializer does not name.
func NewGlobalConfig(admin, backend, feeWallet common.Address, pBps, rBps, lpBps uint16) (*GlobalConfig, error) {
	cfg := &GlobalConfig{
		Admin:                        admin,
		BackendAuthority:             backend,
		ProtocolFeeWallet:            feeWallet,
		ProtocolFeeBps:               pBps,
		ResolverRewardBps:            rBps,
		LiquidityProviderFeeBps:      lpBps,
		ProposalApprovalThresholdBps: DefaultProposalApprovalThresholdBps,
		DisputeSuccessThresholdBps:   DefaultDisputeSuccessThresholdBps,
		MinResolutionDelayS:          DefaultMinResolutionDelayS,
		DisputePeriodS:               DefaultDisputePeriodS,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fee-sum and threshold invariants.
func (c *GlobalConfig) Validate() error {
	sum := int(c.ProtocolFeeBps) + int(c.ResolverRewardBps) + int(c.LiquidityProviderFeeBps)
	if sum > MaxBps {
		return NewError(ErrInvalidFeeConfiguration, "fee bps sum %d exceeds %d", sum, MaxBps)
	}
	if c.ProposalApprovalThresholdBps > MaxBps || c.DisputeSuccessThresholdBps > MaxBps {
		return NewError(ErrInvalidThreshold, "threshold above %d bps", MaxBps)
	}
	if c.MinResolutionDelayS < 0 || c.DisputePeriodS < 0 {
		return NewError(ErrInvalidTimestamp, "negative period")
	}
	return nil
}

// TotalFeeBps returns the combined trading fee rate.
func (c *GlobalConfig) TotalFeeBps() uint16 {
	return c.ProtocolFeeBps + c.ResolverRewardBps + c.LiquidityProviderFeeBps
}

// Clone returns a copy used by handlers that stage mutations.
func (c *GlobalConfig) Clone() *GlobalConfig {
	cp := *c
	return &cp
}
