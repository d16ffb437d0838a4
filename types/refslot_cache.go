package types

import (
	"fmt"

	"cosmossdk.io/math"
)

// RefSlotValue is one slot of a RefSlotCache.
type RefSlotValue struct {
	// Value is the running net deposit total as of now.
	Value math.Int `json:"value"`
	// ValueOnRefSlot is Value as it stood before the first mutation made
	// during the frame that starts at RefSlot.
	ValueOnRefSlot math.Int `json:"value_on_ref_slot"`
	// RefSlot is the reference slot of the frame this slot tracks.
	RefSlot uint64 `json:"ref_slot"`
}

// RefSlotCache is a two-entry ring buffer of net deposits (inOutDelta). The
// slot with the higher RefSlot tracks the current frame, the other one keeps
// the snapshot of the frame before it. Two slots are enough because a report
// can only ever reference the current frame or the one immediately preceding
// it.
type RefSlotCache [2]RefSlotValue

// NewRefSlotCache anchors a cache holding value at refSlot.
func NewRefSlotCache(value math.Int, refSlot uint64) RefSlotCache {
	return RefSlotCache{
		{Value: value, ValueOnRefSlot: value, RefSlot: refSlot},
		{Value: math.ZeroInt(), ValueOnRefSlot: math.ZeroInt()},
	}
}

func (c RefSlotCache) activeIndex() int {
	if c[0].RefSlot >= c[1].RefSlot {
		return 0
	}
	return 1
}

// Current returns the net deposit total as of now.
func (c RefSlotCache) Current() math.Int {
	return zeroIfNil(c[c.activeIndex()].Value)
}

// WithIncrease returns the cache after adding increment (which may be
// negative) during the frame whose reference slot is refSlot. The first
// mutation in a new frame moves to the other slot and snapshots the carried
// value before applying the increment.
func (c RefSlotCache) WithIncrease(refSlot uint64, increment math.Int) RefSlotCache {
	active := c.activeIndex()
	if c[active].RefSlot < refSlot {
		previous := active
		active = 1 - active
		carried := zeroIfNil(c[previous].Value)
		c[active] = RefSlotValue{
			Value:          carried,
			ValueOnRefSlot: carried,
			RefSlot:        refSlot,
		}
	}
	c[active].Value = zeroIfNil(c[active].Value).Add(increment)
	return c
}

// ValueForRefSlot returns the net deposit total as it stood at refSlot.
func (c RefSlotCache) ValueForRefSlot(refSlot uint64) (math.Int, error) {
	active := c.activeIndex()
	previous := 1 - active

	switch {
	// nothing happened after refSlot
	case refSlot > c[active].RefSlot:
		return zeroIfNil(c[active].Value), nil
	// refSlot in (previous, active]: value before the active frame's first mutation
	case refSlot > c[previous].RefSlot:
		return zeroIfNil(c[active].ValueOnRefSlot), nil
	case refSlot == c[previous].RefSlot:
		return zeroIfNil(c[previous].ValueOnRefSlot), nil
	default:
		return math.Int{}, fmt.Errorf("%w: ref slot %d predates cached slots %d and %d",
			ErrInOutDeltaCacheOverwritten, refSlot, c[previous].RefSlot, c[active].RefSlot)
	}
}

// Prune clears the inactive slot once a report for refSlot has reconciled
// everything it tracked. Later reports never reference slots before refSlot.
func (c RefSlotCache) Prune(refSlot uint64) RefSlotCache {
	previous := 1 - c.activeIndex()
	if c[previous].RefSlot < refSlot {
		c[previous] = RefSlotValue{Value: math.ZeroInt(), ValueOnRefSlot: math.ZeroInt()}
	}
	return c
}

// ActiveRefSlot returns the reference slot of the frame last mutated.
func (c RefSlotCache) ActiveRefSlot() uint64 {
	return c[c.activeIndex()].RefSlot
}
