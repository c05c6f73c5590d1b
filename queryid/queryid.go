// Package queryid implements the two-width replay protection id of the
// highload wallet contract.
//
// The contract keeps a sliding bitmap of already seen ids instead of a seqno:
// the shard part selects a bitmap, the slot part indexes a bit inside it.
// A slot becomes reusable only after the contract's time based cleanup retired
// the shard that held it, which is enforced on-chain. The client's only duty
// is to never emit an id outside the valid packed range, so the id is modeled
// as a value object that can exist only in-range.
package queryid

import (
	"errors"
	"fmt"
)

const (
	// ShardBits and SlotBits give the 23-bit packed width of the id
	// stored in the outer signed message.
	ShardBits = 13
	SlotBits  = 10

	// SlotsPerShard is intentionally 1023, not 1024: the top slot value of
	// each shard is reserved so that the packed range stays dense.
	SlotsPerShard = 1023

	MaxShard = 1<<ShardBits - 1 // 8191
	MaxSlot  = SlotsPerShard - 1

	// PackedBits is the width of the packed form on the wire.
	PackedBits = ShardBits + SlotBits

	maxPacked = (MaxShard+1)*SlotsPerShard - 1
)

var ErrRange = errors.New("value is out of range")

// QueryID is an id of one logical batch of outbound actions. The same id is
// stamped on every node of the batch. Allocation strategy is up to the caller,
// concurrent senders should use disjoint shard ranges.
type QueryID struct {
	shard uint16
	slot  uint16
}

// New packs a shard and a slot into an id.
// Returns ErrRange for shard > 8191 or slot > 1022.
func New(shard, slot uint16) (QueryID, error) {
	if shard > MaxShard {
		return QueryID{}, fmt.Errorf("shard %d: %w", shard, ErrRange)
	}
	if slot > MaxSlot {
		return QueryID{}, fmt.Errorf("slot %d: %w", slot, ErrRange)
	}
	return QueryID{shard: shard, slot: slot}, nil
}

// FromPacked parses the 23-bit wire form.
func FromPacked(v uint32) (QueryID, error) {
	if v > maxPacked {
		return QueryID{}, fmt.Errorf("packed id %d: %w", v, ErrRange)
	}
	return QueryID{shard: uint16(v / SlotsPerShard), slot: uint16(v % SlotsPerShard)}, nil
}

// FromWide parses the 64-bit form used in internal transfer bodies and
// get method parameters. Any bit set at position >= 23 is an error.
func FromWide(v uint64) (QueryID, error) {
	if v >= 1<<PackedBits {
		return QueryID{}, fmt.Errorf("wide id %d: %w", v, ErrRange)
	}
	return FromPacked(uint32(v))
}

func (q QueryID) Shard() uint16 { return q.shard }

func (q QueryID) Slot() uint16 { return q.slot }

// Packed returns the 23-bit form stored in the outer signed message.
func (q QueryID) Packed() uint32 {
	return uint32(q.shard)*SlotsPerShard + uint32(q.slot)
}

// Wide returns the 64-bit form, the upper 41 bits are always zero.
func (q QueryID) Wide() uint64 {
	return uint64(q.Packed())
}

func (q QueryID) String() string {
	return fmt.Sprintf("%d:%d", q.shard, q.slot)
}
