package store

import (
	"fmt"
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gogo/protobuf/proto"

	"github.com/stvaults/vaulthub/types"
)

// The messages below are encoded with the reflection based protobuf codec.
// Field numbers are part of the on-disk format and must never be reused.

type pbConnection struct {
	Owner                      []byte `protobuf:"bytes,1,opt,name=owner,proto3" json:"owner,omitempty"`
	NodeOperator               []byte `protobuf:"bytes,2,opt,name=node_operator,json=nodeOperator,proto3" json:"node_operator,omitempty"`
	ShareLimit                 string `protobuf:"bytes,3,opt,name=share_limit,json=shareLimit,proto3" json:"share_limit,omitempty"`
	ReserveRatioBP             uint32 `protobuf:"varint,4,opt,name=reserve_ratio_bp,json=reserveRatioBp,proto3" json:"reserve_ratio_bp,omitempty"`
	ForcedRebalanceThresholdBP uint32 `protobuf:"varint,5,opt,name=forced_rebalance_threshold_bp,json=forcedRebalanceThresholdBp,proto3" json:"forced_rebalance_threshold_bp,omitempty"`
	InfraFeeBP                 uint32 `protobuf:"varint,6,opt,name=infra_fee_bp,json=infraFeeBp,proto3" json:"infra_fee_bp,omitempty"`
	LiquidityFeeBP             uint32 `protobuf:"varint,7,opt,name=liquidity_fee_bp,json=liquidityFeeBp,proto3" json:"liquidity_fee_bp,omitempty"`
	ReservationFeeBP           uint32 `protobuf:"varint,8,opt,name=reservation_fee_bp,json=reservationFeeBp,proto3" json:"reservation_fee_bp,omitempty"`
	ConnectedAt                int64  `protobuf:"varint,9,opt,name=connected_at,json=connectedAt,proto3" json:"connected_at,omitempty"`
	ManualPause                bool   `protobuf:"varint,10,opt,name=manual_pause,json=manualPause,proto3" json:"manual_pause,omitempty"`
	PendingDisconnect          bool   `protobuf:"varint,11,opt,name=pending_disconnect,json=pendingDisconnect,proto3" json:"pending_disconnect,omitempty"`
	DisconnectForced           bool   `protobuf:"varint,12,opt,name=disconnect_forced,json=disconnectForced,proto3" json:"disconnect_forced,omitempty"`
	DisconnectInitiatedAt      int64  `protobuf:"varint,13,opt,name=disconnect_initiated_at,json=disconnectInitiatedAt,proto3" json:"disconnect_initiated_at,omitempty"`
}

func (m *pbConnection) Reset()         { *m = pbConnection{} }
func (m *pbConnection) String() string { return proto.CompactTextString(m) }
func (*pbConnection) ProtoMessage()    {}

type pbReport struct {
	TotalValue         string `protobuf:"bytes,1,opt,name=total_value,json=totalValue,proto3" json:"total_value,omitempty"`
	InOutDelta         string `protobuf:"bytes,2,opt,name=in_out_delta,json=inOutDelta,proto3" json:"in_out_delta,omitempty"`
	CumulativeLidoFees string `protobuf:"bytes,3,opt,name=cumulative_lido_fees,json=cumulativeLidoFees,proto3" json:"cumulative_lido_fees,omitempty"`
	LiabilityShares    string `protobuf:"bytes,4,opt,name=liability_shares,json=liabilityShares,proto3" json:"liability_shares,omitempty"`
	MaxLiabilityShares string `protobuf:"bytes,5,opt,name=max_liability_shares,json=maxLiabilityShares,proto3" json:"max_liability_shares,omitempty"`
	SlashingReserve    string `protobuf:"bytes,6,opt,name=slashing_reserve,json=slashingReserve,proto3" json:"slashing_reserve,omitempty"`
	Timestamp          int64  `protobuf:"varint,7,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
	RefSlot            uint64 `protobuf:"varint,8,opt,name=ref_slot,json=refSlot,proto3" json:"ref_slot,omitempty"`
}

func (m *pbReport) Reset()         { *m = pbReport{} }
func (m *pbReport) String() string { return proto.CompactTextString(m) }
func (*pbReport) ProtoMessage()    {}

type pbSlot struct {
	Value          string `protobuf:"bytes,1,opt,name=value,proto3" json:"value,omitempty"`
	ValueOnRefSlot string `protobuf:"bytes,2,opt,name=value_on_ref_slot,json=valueOnRefSlot,proto3" json:"value_on_ref_slot,omitempty"`
	RefSlot        uint64 `protobuf:"varint,3,opt,name=ref_slot,json=refSlot,proto3" json:"ref_slot,omitempty"`
}

func (m *pbSlot) Reset()         { *m = pbSlot{} }
func (m *pbSlot) String() string { return proto.CompactTextString(m) }
func (*pbSlot) ProtoMessage()    {}

type pbRecord struct {
	Report             *pbReport `protobuf:"bytes,1,opt,name=report,proto3" json:"report,omitempty"`
	InOutDelta         []*pbSlot `protobuf:"bytes,2,rep,name=in_out_delta,json=inOutDelta,proto3" json:"in_out_delta,omitempty"`
	LiabilityShares    string    `protobuf:"bytes,3,opt,name=liability_shares,json=liabilityShares,proto3" json:"liability_shares,omitempty"`
	MaxLiabilityShares string    `protobuf:"bytes,4,opt,name=max_liability_shares,json=maxLiabilityShares,proto3" json:"max_liability_shares,omitempty"`
	CumulativeLidoFees string    `protobuf:"bytes,5,opt,name=cumulative_lido_fees,json=cumulativeLidoFees,proto3" json:"cumulative_lido_fees,omitempty"`
	SettledLidoFees    string    `protobuf:"bytes,6,opt,name=settled_lido_fees,json=settledLidoFees,proto3" json:"settled_lido_fees,omitempty"`
	MinimalReserve     string    `protobuf:"bytes,7,opt,name=minimal_reserve,json=minimalReserve,proto3" json:"minimal_reserve,omitempty"`
	RedemptionShares   string    `protobuf:"bytes,8,opt,name=redemption_shares,json=redemptionShares,proto3" json:"redemption_shares,omitempty"`
}

func (m *pbRecord) Reset()         { *m = pbRecord{} }
func (m *pbRecord) String() string { return proto.CompactTextString(m) }
func (*pbRecord) ProtoMessage()    {}

type pbQuarantine struct {
	Pending  string `protobuf:"bytes,1,opt,name=pending,proto3" json:"pending,omitempty"`
	Start    int64  `protobuf:"varint,2,opt,name=start,proto3" json:"start,omitempty"`
	End      int64  `protobuf:"varint,3,opt,name=end,proto3" json:"end,omitempty"`
	IsActive bool   `protobuf:"varint,4,opt,name=is_active,json=isActive,proto3" json:"is_active,omitempty"`
}

func (m *pbQuarantine) Reset()         { *m = pbQuarantine{} }
func (m *pbQuarantine) String() string { return proto.CompactTextString(m) }
func (*pbQuarantine) ProtoMessage()    {}

type pbReportData struct {
	Timestamp int64  `protobuf:"varint,1,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
	RefSlot   uint64 `protobuf:"varint,2,opt,name=ref_slot,json=refSlot,proto3" json:"ref_slot,omitempty"`
	Root      []byte `protobuf:"bytes,3,opt,name=root,proto3" json:"root,omitempty"`
	CID       string `protobuf:"bytes,4,opt,name=cid,proto3" json:"cid,omitempty"`
}

func (m *pbReportData) Reset()         { *m = pbReportData{} }
func (m *pbReportData) String() string { return proto.CompactTextString(m) }
func (*pbReportData) ProtoMessage()    {}

type pbSanityParams struct {
	QuarantinePeriod        int64  `protobuf:"varint,1,opt,name=quarantine_period,json=quarantinePeriod,proto3" json:"quarantine_period,omitempty"`
	MaxRewardRatioBP        uint32 `protobuf:"varint,2,opt,name=max_reward_ratio_bp,json=maxRewardRatioBp,proto3" json:"max_reward_ratio_bp,omitempty"`
	MaxLidoFeeRatePerSecond string `protobuf:"bytes,3,opt,name=max_lido_fee_rate_per_second,json=maxLidoFeeRatePerSecond,proto3" json:"max_lido_fee_rate_per_second,omitempty"`
}

func (m *pbSanityParams) Reset()         { *m = pbSanityParams{} }
func (m *pbSanityParams) String() string { return proto.CompactTextString(m) }
func (*pbSanityParams) ProtoMessage()    {}

type pbHubState struct {
	Paused bool `protobuf:"varint,1,opt,name=paused,proto3" json:"paused,omitempty"`
}

func (m *pbHubState) Reset()         { *m = pbHubState{} }
func (m *pbHubState) String() string { return proto.CompactTextString(m) }
func (*pbHubState) ProtoMessage()    {}

//-----------------------------------------------------------------------------

func mustEncode(pb proto.Message) []byte {
	bz, err := proto.Marshal(pb)
	if err != nil {
		panic(fmt.Errorf("unable to marshal: %w", err))
	}
	return bz
}

func intToString(i math.Int) string {
	if i.IsNil() {
		return "0"
	}
	return i.String()
}

func intFromString(s string) (math.Int, error) {
	if s == "" {
		return math.ZeroInt(), nil
	}
	i, ok := math.NewIntFromString(s)
	if !ok {
		return math.Int{}, fmt.Errorf("invalid integer %q", s)
	}
	return i, nil
}

func timeToUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func unixToTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// intDecoder collects the first parse error so that the many integer fields
// of a record can be decoded without an error check per field.
type intDecoder struct {
	err error
}

func (d *intDecoder) int(name, s string) math.Int {
	i, err := intFromString(s)
	if err != nil && d.err == nil {
		d.err = fmt.Errorf("%s: %w", name, err)
	}
	return i
}

func connectionToProto(c types.VaultConnection) *pbConnection {
	return &pbConnection{
		Owner:                      c.Owner.Bytes(),
		NodeOperator:               c.NodeOperator.Bytes(),
		ShareLimit:                 intToString(c.ShareLimit),
		ReserveRatioBP:             c.ReserveRatioBP,
		ForcedRebalanceThresholdBP: c.ForcedRebalanceThresholdBP,
		InfraFeeBP:                 c.InfraFeeBP,
		LiquidityFeeBP:             c.LiquidityFeeBP,
		ReservationFeeBP:           c.ReservationFeeBP,
		ConnectedAt:                timeToUnix(c.ConnectedAt),
		ManualPause:                c.BeaconDepositsManuallyPaused,
		PendingDisconnect:          c.PendingDisconnect,
		DisconnectForced:           c.DisconnectForced,
		DisconnectInitiatedAt:      timeToUnix(c.DisconnectInitiatedAt),
	}
}

func connectionFromProto(pb *pbConnection) (types.VaultConnection, error) {
	var d intDecoder
	c := types.VaultConnection{
		ConnectionParams: types.ConnectionParams{
			ShareLimit:                 d.int("share limit", pb.ShareLimit),
			ReserveRatioBP:             pb.ReserveRatioBP,
			ForcedRebalanceThresholdBP: pb.ForcedRebalanceThresholdBP,
			InfraFeeBP:                 pb.InfraFeeBP,
			LiquidityFeeBP:             pb.LiquidityFeeBP,
			ReservationFeeBP:           pb.ReservationFeeBP,
		},
		Owner:                        common.BytesToAddress(pb.Owner),
		NodeOperator:                 common.BytesToAddress(pb.NodeOperator),
		ConnectedAt:                  unixToTime(pb.ConnectedAt),
		BeaconDepositsManuallyPaused: pb.ManualPause,
		PendingDisconnect:            pb.PendingDisconnect,
		DisconnectForced:             pb.DisconnectForced,
		DisconnectInitiatedAt:        unixToTime(pb.DisconnectInitiatedAt),
	}
	return c, d.err
}

func recordToProto(r types.VaultRecord) *pbRecord {
	pb := &pbRecord{
		Report: &pbReport{
			TotalValue:         intToString(r.Report.TotalValue),
			InOutDelta:         intToString(r.Report.InOutDelta),
			CumulativeLidoFees: intToString(r.Report.CumulativeLidoFees),
			LiabilityShares:    intToString(r.Report.LiabilityShares),
			MaxLiabilityShares: intToString(r.Report.MaxLiabilityShares),
			SlashingReserve:    intToString(r.Report.SlashingReserve),
			Timestamp:          timeToUnix(r.Report.Timestamp),
			RefSlot:            r.Report.RefSlot,
		},
		LiabilityShares:    intToString(r.LiabilityShares),
		MaxLiabilityShares: intToString(r.MaxLiabilityShares),
		CumulativeLidoFees: intToString(r.CumulativeLidoFees),
		SettledLidoFees:    intToString(r.SettledLidoFees),
		MinimalReserve:     intToString(r.MinimalReserve),
		RedemptionShares:   intToString(r.RedemptionShares),
	}
	for _, slot := range r.InOutDelta {
		pb.InOutDelta = append(pb.InOutDelta, &pbSlot{
			Value:          intToString(slot.Value),
			ValueOnRefSlot: intToString(slot.ValueOnRefSlot),
			RefSlot:        slot.RefSlot,
		})
	}
	return pb
}

func recordFromProto(pb *pbRecord) (types.VaultRecord, error) {
	if pb.Report == nil {
		return types.VaultRecord{}, fmt.Errorf("record without report")
	}
	if len(pb.InOutDelta) != len(types.RefSlotCache{}) {
		return types.VaultRecord{}, fmt.Errorf("record has %d cache slots", len(pb.InOutDelta))
	}

	var d intDecoder
	r := types.VaultRecord{
		Report: types.Report{
			TotalValue:         d.int("report total value", pb.Report.TotalValue),
			InOutDelta:         d.int("report in/out delta", pb.Report.InOutDelta),
			CumulativeLidoFees: d.int("report cumulative fees", pb.Report.CumulativeLidoFees),
			LiabilityShares:    d.int("report liability shares", pb.Report.LiabilityShares),
			MaxLiabilityShares: d.int("report max liability shares", pb.Report.MaxLiabilityShares),
			SlashingReserve:    d.int("report slashing reserve", pb.Report.SlashingReserve),
			Timestamp:          unixToTime(pb.Report.Timestamp),
			RefSlot:            pb.Report.RefSlot,
		},
		LiabilityShares:    d.int("liability shares", pb.LiabilityShares),
		MaxLiabilityShares: d.int("max liability shares", pb.MaxLiabilityShares),
		CumulativeLidoFees: d.int("cumulative fees", pb.CumulativeLidoFees),
		SettledLidoFees:    d.int("settled fees", pb.SettledLidoFees),
		MinimalReserve:     d.int("minimal reserve", pb.MinimalReserve),
		RedemptionShares:   d.int("redemption shares", pb.RedemptionShares),
	}
	for i, slot := range pb.InOutDelta {
		r.InOutDelta[i] = types.RefSlotValue{
			Value:          d.int("slot value", slot.Value),
			ValueOnRefSlot: d.int("slot value on ref slot", slot.ValueOnRefSlot),
			RefSlot:        slot.RefSlot,
		}
	}
	return r, d.err
}

func quarantineToProto(q types.Quarantine) *pbQuarantine {
	return &pbQuarantine{
		Pending:  intToString(q.PendingTotalValueIncrease),
		Start:    timeToUnix(q.StartTimestamp),
		End:      timeToUnix(q.EndTimestamp),
		IsActive: q.IsActive,
	}
}

func quarantineFromProto(pb *pbQuarantine) (types.Quarantine, error) {
	var d intDecoder
	q := types.Quarantine{
		PendingTotalValueIncrease: d.int("pending", pb.Pending),
		StartTimestamp:            unixToTime(pb.Start),
		EndTimestamp:              unixToTime(pb.End),
		IsActive:                  pb.IsActive,
	}
	return q, d.err
}

func reportDataToProto(rd types.ReportData) *pbReportData {
	return &pbReportData{
		Timestamp: timeToUnix(rd.Timestamp),
		RefSlot:   rd.RefSlot,
		Root:      rd.Root.Bytes(),
		CID:       rd.CID,
	}
}

func reportDataFromProto(pb *pbReportData) types.ReportData {
	return types.ReportData{
		Timestamp: unixToTime(pb.Timestamp),
		RefSlot:   pb.RefSlot,
		Root:      common.BytesToHash(pb.Root),
		CID:       pb.CID,
	}
}

func sanityParamsToProto(p types.SanityParams) *pbSanityParams {
	return &pbSanityParams{
		QuarantinePeriod:        int64(p.QuarantinePeriod),
		MaxRewardRatioBP:        p.MaxRewardRatioBP,
		MaxLidoFeeRatePerSecond: intToString(p.MaxLidoFeeRatePerSecond),
	}
}

func sanityParamsFromProto(pb *pbSanityParams) (types.SanityParams, error) {
	var d intDecoder
	p := types.SanityParams{
		QuarantinePeriod:        time.Duration(pb.QuarantinePeriod),
		MaxRewardRatioBP:        pb.MaxRewardRatioBP,
		MaxLidoFeeRatePerSecond: d.int("max lido fee rate", pb.MaxLidoFeeRatePerSecond),
	}
	return p, d.err
}
