package types

import (
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// Reserved event names. Every payload carries the vault address, except for
// the hub-wide and root publication events.
const (
	EventRootPublished           = "RootPublished"
	EventSanityParamsUpdated     = "SanityParamsUpdated"
	EventVaultConnected          = "VaultConnected"
	EventConnectionUpdated       = "ConnectionUpdated"
	EventReportApplied           = "ReportApplied"
	EventQuarantineOpened        = "QuarantineOpened"
	EventQuarantineReleased      = "QuarantineReleased"
	EventFunded                  = "Funded"
	EventWithdrawn               = "Withdrawn"
	EventSharesMinted            = "SharesMinted"
	EventSharesBurned            = "SharesBurned"
	EventRebalanced              = "Rebalanced"
	EventFeesSettled             = "FeesSettled"
	EventRedemptionSharesUpdated = "RedemptionSharesUpdated"
	EventDepositsPaused          = "DepositsPaused"
	EventDepositsResumed         = "DepositsResumed"
	EventDepositsPauseIntentSet  = "DepositsPauseIntentSet"
	EventDisconnectInitiated     = "DisconnectInitiated"
	EventDisconnectAborted       = "DisconnectAborted"
	EventDisconnectCompleted     = "DisconnectCompleted"
	EventHubPaused               = "HubPaused"
	EventHubResumed              = "HubResumed"
)

// AllEvents lists every event name, for subscribers that want everything.
var AllEvents = []string{
	EventRootPublished, EventSanityParamsUpdated, EventVaultConnected, EventConnectionUpdated,
	EventReportApplied, EventQuarantineOpened, EventQuarantineReleased,
	EventFunded, EventWithdrawn, EventSharesMinted, EventSharesBurned, EventRebalanced,
	EventFeesSettled, EventRedemptionSharesUpdated,
	EventDepositsPaused, EventDepositsResumed, EventDepositsPauseIntentSet,
	EventDisconnectInitiated, EventDisconnectAborted, EventDisconnectCompleted,
	EventHubPaused, EventHubResumed,
}

type EventDataRootPublished struct {
	ReportData
}

type EventDataSanityParams struct {
	SanityParams
}

type EventDataVaultConnected struct {
	Vault        common.Address   `json:"vault"`
	Owner        common.Address   `json:"owner"`
	InitialValue math.Int         `json:"initial_value"`
	Params       ConnectionParams `json:"params"`
}

type EventDataConnectionUpdated struct {
	Vault  common.Address   `json:"vault"`
	Before ConnectionParams `json:"before"`
	After  ConnectionParams `json:"after"`
}

// EventDataReportApplied describes the effect of one accepted vault leaf.
type EventDataReportApplied struct {
	Vault common.Address `json:"vault"`

	RefSlot   uint64    `json:"ref_slot"`
	Timestamp time.Time `json:"timestamp"`

	// ReportTotalValue is the trusted part of the reported total value.
	ReportTotalValue math.Int `json:"report_total_value"`
	TotalValueBefore math.Int `json:"total_value_before"`
	TotalValueAfter  math.Int `json:"total_value_after"`

	CumulativeLidoFeesBefore math.Int `json:"cumulative_lido_fees_before"`
	CumulativeLidoFeesAfter  math.Int `json:"cumulative_lido_fees_after"`

	LiabilityShares    math.Int `json:"liability_shares"`
	MaxLiabilityShares math.Int `json:"max_liability_shares"`
	SlashingReserve    math.Int `json:"slashing_reserve"`
}

type EventDataQuarantine struct {
	Vault   common.Address `json:"vault"`
	Pending math.Int       `json:"pending"`
	Start   time.Time      `json:"start"`
	End     time.Time      `json:"end"`
	// Reason is set on release: "expired", "explained" or "superseded".
	Reason string `json:"reason,omitempty"`
}

// EventDataValueMoved covers fund and withdraw.
type EventDataValueMoved struct {
	Vault            common.Address `json:"vault"`
	Amount           math.Int       `json:"amount"`
	TotalValueBefore math.Int       `json:"total_value_before"`
	TotalValueAfter  math.Int       `json:"total_value_after"`
	Recipient        common.Address `json:"recipient,omitempty"`
}

// EventDataShares covers mint, burn and rebalance.
type EventDataShares struct {
	Vault                 common.Address `json:"vault"`
	Shares                math.Int       `json:"shares"`
	Value                 math.Int       `json:"value,omitempty"`
	LiabilitySharesBefore math.Int       `json:"liability_shares_before"`
	LiabilitySharesAfter  math.Int       `json:"liability_shares_after"`
	Forced                bool           `json:"forced,omitempty"`
}

type EventDataFeesSettled struct {
	Vault              common.Address `json:"vault"`
	Transferred        math.Int       `json:"transferred"`
	CumulativeLidoFees math.Int       `json:"cumulative_lido_fees"`
	SettledBefore      math.Int       `json:"settled_before"`
	SettledAfter       math.Int       `json:"settled_after"`
}

type EventDataRedemptionShares struct {
	Vault  common.Address `json:"vault"`
	Before math.Int       `json:"before"`
	After  math.Int       `json:"after"`
}

type EventDataDeposits struct {
	Vault        common.Address `json:"vault"`
	FeesToSettle math.Int       `json:"fees_to_settle"`
	SharesToBurn math.Int       `json:"shares_to_burn"`
	ManualPause  bool           `json:"manual_pause"`
}

type EventDataDisconnect struct {
	Vault           common.Address `json:"vault"`
	Forced          bool           `json:"forced"`
	FeesToSettle    math.Int       `json:"fees_to_settle"`
	LiabilityShares math.Int       `json:"liability_shares"`
	SlashingReserve math.Int       `json:"slashing_reserve,omitempty"`
}

type EventDataHubPause struct {
	By common.Address `json:"by"`
}
