// Package frame maps wall-clock time onto reporting frames.
//
// A frame spans EpochsPerFrame epochs starting at InitialEpoch. Its reference
// slot is the last slot before the frame starts: the report for a frame
// describes the chain as of that slot.
package frame

import (
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
)

// Config holds the chain timing parameters.
type Config struct {
	GenesisTime    time.Time
	SecondsPerSlot uint64
	SlotsPerEpoch  uint64
	EpochsPerFrame uint64
	InitialEpoch   uint64
	// FinalityLagFrames is how many whole frames must pass after a reference
	// slot before its frame is considered final.
	FinalityLagFrames uint64
}

func (cfg Config) ValidateBasic() error {
	if cfg.GenesisTime.IsZero() {
		return errors.New("genesis time is not set")
	}
	if cfg.SecondsPerSlot == 0 {
		return errors.New("seconds per slot can't be zero")
	}
	if cfg.SlotsPerEpoch == 0 {
		return errors.New("slots per epoch can't be zero")
	}
	if cfg.EpochsPerFrame == 0 {
		return errors.New("epochs per frame can't be zero")
	}
	return nil
}

// Clock answers frame questions for the current time.
type Clock struct {
	cfg   Config
	clock clock.Clock
}

// NewClock returns a frame clock reading time from c.
func NewClock(cfg Config, c clock.Clock) (*Clock, error) {
	if err := cfg.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid frame config: %w", err)
	}
	return &Clock{cfg: cfg, clock: c}, nil
}

func (fc *Clock) slotsPerFrame() uint64 {
	return fc.cfg.SlotsPerEpoch * fc.cfg.EpochsPerFrame
}

// SlotAt returns the slot in progress at t. Times before genesis map to 0.
func (fc *Clock) SlotAt(t time.Time) uint64 {
	if !t.After(fc.cfg.GenesisTime) {
		return 0
	}
	return uint64(t.Sub(fc.cfg.GenesisTime)/time.Second) / fc.cfg.SecondsPerSlot
}

// TimeAtSlot returns the start time of slot.
func (fc *Clock) TimeAtSlot(slot uint64) time.Time {
	return fc.cfg.GenesisTime.Add(time.Duration(slot*fc.cfg.SecondsPerSlot) * time.Second)
}

// FrameStartSlot returns the first slot of the frame in progress at t.
func (fc *Clock) FrameStartSlot(t time.Time) uint64 {
	initialSlot := fc.cfg.InitialEpoch * fc.cfg.SlotsPerEpoch
	slot := fc.SlotAt(t)
	if slot < initialSlot {
		return initialSlot
	}
	index := (slot - initialSlot) / fc.slotsPerFrame()
	return initialSlot + index*fc.slotsPerFrame()
}

// RefSlotAt returns the reference slot of the frame in progress at t.
func (fc *Clock) RefSlotAt(t time.Time) uint64 {
	start := fc.FrameStartSlot(t)
	if start == 0 {
		return 0
	}
	return start - 1
}

// FrameReferenceSlot returns the reference slot of the current frame.
func (fc *Clock) FrameReferenceSlot() uint64 {
	return fc.RefSlotAt(fc.clock.Now())
}

// IsFrameFinal reports whether refSlot is the reference slot of a frame that
// has started and aged past the configured finality lag.
func (fc *Clock) IsFrameFinal(refSlot uint64) bool {
	initialSlot := fc.cfg.InitialEpoch * fc.cfg.SlotsPerEpoch
	start := refSlot + 1
	if start < initialSlot || (start-initialSlot)%fc.slotsPerFrame() != 0 {
		return false
	}
	current := fc.FrameStartSlot(fc.clock.Now())
	return current >= start+fc.cfg.FinalityLagFrames*fc.slotsPerFrame()
}

// NextFrameAt returns when the frame after the one in progress at t starts.
func (fc *Clock) NextFrameAt(t time.Time) time.Time {
	return fc.TimeAtSlot(fc.FrameStartSlot(t) + fc.slotsPerFrame())
}
