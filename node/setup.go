package node

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stvaults/vaulthub/config"
	"github.com/stvaults/vaulthub/internal/auth"
	"github.com/stvaults/vaulthub/internal/frame"
	"github.com/stvaults/vaulthub/internal/hub"
	"github.com/stvaults/vaulthub/types"
)

func makeHubConfig(cfg *config.HubConfig) (hub.Config, error) {
	reserve, err := config.ParseWei(cfg.MinimalReserve)
	if err != nil {
		return hub.Config{}, fmt.Errorf("minimal reserve: %w", err)
	}
	threshold, err := config.ParseWei(cfg.FeePauseThreshold)
	if err != nil {
		return hub.Config{}, fmt.Errorf("fee pause threshold: %w", err)
	}
	treasury, err := config.ParseAddress(cfg.TreasuryAddress)
	if err != nil {
		return hub.Config{}, fmt.Errorf("treasury: %w", err)
	}
	pool, err := config.ParseAddress(cfg.PoolAddress)
	if err != nil {
		return hub.Config{}, fmt.Errorf("pool: %w", err)
	}
	return hub.Config{
		FreshnessDelta:    cfg.FreshnessDelta,
		MinimalReserve:    reserve,
		FeePauseThreshold: threshold,
		Treasury:          treasury,
		Pool:              pool,
	}, nil
}

func makeSanityParams(cfg *config.OracleConfig) (types.SanityParams, error) {
	rate, err := config.ParseWei(cfg.MaxLidoFeeRatePerSecond)
	if err != nil {
		return types.SanityParams{}, fmt.Errorf("max lido fee rate: %w", err)
	}
	return types.SanityParams{
		QuarantinePeriod:        cfg.QuarantinePeriod,
		MaxRewardRatioBP:        cfg.MaxRewardRatioBP,
		MaxLidoFeeRatePerSecond: rate,
	}, nil
}

func makeFrameConfig(cfg *config.FrameConfig) frame.Config {
	return frame.Config{
		GenesisTime:       cfg.Genesis(),
		SecondsPerSlot:    cfg.SecondsPerSlot,
		SlotsPerEpoch:     cfg.SlotsPerEpoch,
		EpochsPerFrame:    cfg.EpochsPerFrame,
		InitialEpoch:      cfg.InitialEpoch,
		FinalityLagFrames: cfg.FinalityLagFrames,
	}
}

func makeRoles(cfg *config.AuthConfig) (*auth.Roles, error) {
	grants, err := cfg.Grants()
	if err != nil {
		return nil, err
	}
	byRole := make(map[auth.Role][]common.Address, len(grants))
	for name, holders := range grants {
		role, err := auth.ParseRole(name)
		if err != nil {
			return nil, err
		}
		byRole[role] = holders
	}
	return auth.NewRolesFromGrants(byRole), nil
}
