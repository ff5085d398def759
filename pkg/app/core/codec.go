package core

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Wire layout: every account serializes to an 8-byte type tag followed
// by its fields in declaration order, little-endian integers, fixed
// length arrays, and optional bools as a presence byte plus a payload
// byte. Tags carry a version digit; layout changes require a new tag.
var (
	GlobalConfigTag = [8]byte{'G', 'L', 'B', 'C', 'F', 'G', '0', '1'}
	MarketTag       = [8]byte{'M', 'A', 'R', 'K', 'E', 'T', '0', '1'}
	PositionTag     = [8]byte{'P', 'O', 'S', 'I', 'T', 'N', '0', '1'}
	VoteRecordTag   = [8]byte{'V', 'O', 'T', 'E', 'R', 'C', '0', '1'}
)

// Serialized sizes in bytes, tag included. Rent for each account type
// is computed from these.
const (
	GlobalConfigSize = 8 + 3*20 + 5*2 + 2*8 + 1                                     // 95
	MarketSize       = 8 + 32 + 20 + 1 + 6*8 + 6*4 + 2*2 + IPFSHashLen + 20 + 3*8 + 6*8 + 2 // 277
	PositionSize     = 8 + 2*20 + 4*8 + 4 + 1                                       // 85
	VoteRecordSize   = 8 + 2*20 + 1 + 1 + 8                                         // 58
)

type wireWriter struct {
	buf bytes.Buffer
}

func (w *wireWriter) tag(t [8]byte)            { w.buf.Write(t[:]) }
func (w *wireWriter) bytesFixed(b []byte)      { w.buf.Write(b) }
func (w *wireWriter) addr(a common.Address)    { w.buf.Write(a[:]) }
func (w *wireWriter) u8(v uint8)               { w.buf.WriteByte(v) }
func (w *wireWriter) u16(v uint16)             { binary.Write(&w.buf, binary.LittleEndian, v) }
func (w *wireWriter) u32(v uint32)             { binary.Write(&w.buf, binary.LittleEndian, v) }
func (w *wireWriter) u64(v uint64)             { binary.Write(&w.buf, binary.LittleEndian, v) }
func (w *wireWriter) i64(v int64)              { binary.Write(&w.buf, binary.LittleEndian, v) }
func (w *wireWriter) boolean(v bool) {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}
func (w *wireWriter) optBool(v *bool) {
	if v == nil {
		w.buf.WriteByte(0)
		w.buf.WriteByte(0)
		return
	}
	w.buf.WriteByte(1)
	if *v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

type wireReader struct {
	buf *bytes.Reader
}

func newWireReader(data []byte, tag [8]byte) (*wireReader, error) {
	if len(data) < 8 || !bytes.Equal(data[:8], tag[:]) {
		return nil, fmt.Errorf("wire: bad type tag, want %q", tag)
	}
	return &wireReader{buf: bytes.NewReader(data[8:])}, nil
}

func (r *wireReader) bytesFixed(n int) ([]byte, error) {
	out := make([]byte, n)
	if _, err := r.buf.Read(out); err != nil {
		return nil, err
	}
	return out, nil
}
func (r *wireReader) addr() (common.Address, error) {
	var a common.Address
	_, err := r.buf.Read(a[:])
	return a, err
}
func (r *wireReader) u8() (uint8, error)   { return r.buf.ReadByte() }
func (r *wireReader) u16() (v uint16, err error) { err = binary.Read(r.buf, binary.LittleEndian, &v); return }
func (r *wireReader) u32() (v uint32, err error) { err = binary.Read(r.buf, binary.LittleEndian, &v); return }
func (r *wireReader) u64() (v uint64, err error) { err = binary.Read(r.buf, binary.LittleEndian, &v); return }
func (r *wireReader) i64() (v int64, err error)  { err = binary.Read(r.buf, binary.LittleEndian, &v); return }
func (r *wireReader) boolean() (bool, error) {
	b, err := r.buf.ReadByte()
	return b != 0, err
}
func (r *wireReader) optBool() (*bool, error) {
	present, err := r.buf.ReadByte()
	if err != nil {
		return nil, err
	}
	payload, err := r.buf.ReadByte()
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	v := payload != 0
	return &v, nil
}

// MarshalBinary renders the wire-exact layout of a GlobalConfig.
func (c *GlobalConfig) MarshalBinary() ([]byte, error) {
	var w wireWriter
	w.tag(GlobalConfigTag)
	w.addr(c.Admin)
	w.addr(c.BackendAuthority)
	w.addr(c.ProtocolFeeWallet)
	w.u16(c.ProtocolFeeBps)
	w.u16(c.ResolverRewardBps)
	w.u16(c.LiquidityProviderFeeBps)
	w.u16(c.ProposalApprovalThresholdBps)
	w.u16(c.DisputeSuccessThresholdBps)
	w.i64(c.MinResolutionDelayS)
	w.i64(c.DisputePeriodS)
	w.boolean(c.IsPaused)
	return w.buf.Bytes(), nil
}

// UnmarshalBinary parses the wire layout of a GlobalConfig.
func (c *GlobalConfig) UnmarshalBinary(data []byte) error {
	r, err := newWireReader(data, GlobalConfigTag)
	if err != nil {
		return err
	}
	if c.Admin, err = r.addr(); err != nil {
		return err
	}
	if c.BackendAuthority, err = r.addr(); err != nil {
		return err
	}
	if c.ProtocolFeeWallet, err = r.addr(); err != nil {
		return err
	}
	if c.ProtocolFeeBps, err = r.u16(); err != nil {
		return err
	}
	if c.ResolverRewardBps, err = r.u16(); err != nil {
		return err
	}
	if c.LiquidityProviderFeeBps, err = r.u16(); err != nil {
		return err
	}
	if c.ProposalApprovalThresholdBps, err = r.u16(); err != nil {
		return err
	}
	if c.DisputeSuccessThresholdBps, err = r.u16(); err != nil {
		return err
	}
	if c.MinResolutionDelayS, err = r.i64(); err != nil {
		return err
	}
	if c.DisputePeriodS, err = r.i64(); err != nil {
		return err
	}
	if c.IsPaused, err = r.boolean(); err != nil {
		return err
	}
	return nil
}

// MarshalBinary renders the wire-exact layout of a Market.
func (m *Market) MarshalBinary() ([]byte, error) {
	var w wireWriter
	w.tag(MarketTag)
	w.bytesFixed(m.MarketID[:])
	w.addr(m.Creator)
	w.u8(uint8(m.State))
	w.u64(m.BParameter)
	w.u64(m.InitialLiquidity)
	w.u64(m.CurrentLiquidity)
	w.u64(m.SharesYes)
	w.u64(m.SharesNo)
	w.u64(m.TotalVolume)
	w.u32(m.ProposalLikes)
	w.u32(m.ProposalDislikes)
	w.u32(m.ProposalTotalVotes)
	w.u32(m.DisputeAgree)
	w.u32(m.DisputeDisagree)
	w.u32(m.DisputeTotalVotes)
	w.optBool(m.ProposedOutcome)
	w.optBool(m.FinalOutcome)
	w.bytesFixed(m.IPFSEvidenceHash[:])
	w.addr(m.Resolver)
	w.u64(m.AccumulatedProtocolFees)
	w.u64(m.AccumulatedResolverFees)
	w.u64(m.AccumulatedLPFees)
	w.i64(m.CreatedAt)
	w.i64(m.ApprovedAt)
	w.i64(m.ActivatedAt)
	w.i64(m.ResolutionProposedAt)
	w.i64(m.DisputeInitiatedAt)
	w.i64(m.FinalizedAt)
	w.boolean(m.IsLocked)
	w.boolean(m.ResolverFeesPaid)
	return w.buf.Bytes(), nil
}

// UnmarshalBinary parses the wire layout of a Market.
func (m *Market) UnmarshalBinary(data []byte) error {
	r, err := newWireReader(data, MarketTag)
	if err != nil {
		return err
	}
	id, err := r.bytesFixed(32)
	if err != nil {
		return err
	}
	copy(m.MarketID[:], id)
	if m.Creator, err = r.addr(); err != nil {
		return err
	}
	st, err := r.u8()
	if err != nil {
		return err
	}
	m.State = MarketState(st)
	if m.BParameter, err = r.u64(); err != nil {
		return err
	}
	if m.InitialLiquidity, err = r.u64(); err != nil {
		return err
	}
	if m.CurrentLiquidity, err = r.u64(); err != nil {
		return err
	}
	if m.SharesYes, err = r.u64(); err != nil {
		return err
	}
	if m.SharesNo, err = r.u64(); err != nil {
		return err
	}
	if m.TotalVolume, err = r.u64(); err != nil {
		return err
	}
	if m.ProposalLikes, err = r.u32(); err != nil {
		return err
	}
	if m.ProposalDislikes, err = r.u32(); err != nil {
		return err
	}
	if m.ProposalTotalVotes, err = r.u32(); err != nil {
		return err
	}
	if m.DisputeAgree, err = r.u32(); err != nil {
		return err
	}
	if m.DisputeDisagree, err = r.u32(); err != nil {
		return err
	}
	if m.DisputeTotalVotes, err = r.u32(); err != nil {
		return err
	}
	if m.ProposedOutcome, err = r.optBool(); err != nil {
		return err
	}
	if m.FinalOutcome, err = r.optBool(); err != nil {
		return err
	}
	hash, err := r.bytesFixed(IPFSHashLen)
	if err != nil {
		return err
	}
	copy(m.IPFSEvidenceHash[:], hash)
	if m.Resolver, err = r.addr(); err != nil {
		return err
	}
	if m.AccumulatedProtocolFees, err = r.u64(); err != nil {
		return err
	}
	if m.AccumulatedResolverFees, err = r.u64(); err != nil {
		return err
	}
	if m.AccumulatedLPFees, err = r.u64(); err != nil {
		return err
	}
	if m.CreatedAt, err = r.i64(); err != nil {
		return err
	}
	if m.ApprovedAt, err = r.i64(); err != nil {
		return err
	}
	if m.ActivatedAt, err = r.i64(); err != nil {
		return err
	}
	if m.ResolutionProposedAt, err = r.i64(); err != nil {
		return err
	}
	if m.DisputeInitiatedAt, err = r.i64(); err != nil {
		return err
	}
	if m.FinalizedAt, err = r.i64(); err != nil {
		return err
	}
	if m.IsLocked, err = r.boolean(); err != nil {
		return err
	}
	if m.ResolverFeesPaid, err = r.boolean(); err != nil {
		return err
	}
	return nil
}

// MarshalBinary renders the wire-exact layout of a Position.
func (p *Position) MarshalBinary() ([]byte, error) {
	var w wireWriter
	w.tag(PositionTag)
	w.addr(p.Market)
	w.addr(p.User)
	w.u64(p.SharesYes)
	w.u64(p.SharesNo)
	w.u64(p.TotalInvested)
	w.u64(p.ClaimedAmount)
	w.u32(p.TradesCount)
	w.boolean(p.Claimed)
	return w.buf.Bytes(), nil
}

// UnmarshalBinary parses the wire layout of a Position.
func (p *Position) UnmarshalBinary(data []byte) error {
	r, err := newWireReader(data, PositionTag)
	if err != nil {
		return err
	}
	if p.Market, err = r.addr(); err != nil {
		return err
	}
	if p.User, err = r.addr(); err != nil {
		return err
	}
	if p.SharesYes, err = r.u64(); err != nil {
		return err
	}
	if p.SharesNo, err = r.u64(); err != nil {
		return err
	}
	if p.TotalInvested, err = r.u64(); err != nil {
		return err
	}
	if p.ClaimedAmount, err = r.u64(); err != nil {
		return err
	}
	if p.TradesCount, err = r.u32(); err != nil {
		return err
	}
	if p.Claimed, err = r.boolean(); err != nil {
		return err
	}
	return nil
}

// MarshalBinary renders the wire-exact layout of a VoteRecord.
func (v *VoteRecord) MarshalBinary() ([]byte, error) {
	var w wireWriter
	w.tag(VoteRecordTag)
	w.addr(v.Market)
	w.addr(v.User)
	w.u8(uint8(v.Kind))
	w.boolean(v.Vote)
	w.i64(v.VotedAt)
	return w.buf.Bytes(), nil
}

// UnmarshalBinary parses the wire layout of a VoteRecord.
func (v *VoteRecord) UnmarshalBinary(data []byte) error {
	r, err := newWireReader(data, VoteRecordTag)
	if err != nil {
		return err
	}
	if v.Market, err = r.addr(); err != nil {
		return err
	}
	if v.User, err = r.addr(); err != nil {
		return err
	}
	k, err := r.u8()
	if err != nil {
		return err
	}
	v.Kind = VoteKind(k)
	if v.Vote, err = r.boolean(); err != nil {
		return err
	}
	if v.VotedAt, err = r.i64(); err != nil {
		return err
	}
	return nil
}
