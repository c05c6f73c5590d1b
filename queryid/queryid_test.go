package queryid

import (
	"errors"
	"testing"
)

func TestQueryID_PackUnpack(t *testing.T) {
	for _, shard := range []uint16{0, 1, 7, 1022, 1023, 4096, MaxShard} {
		for _, slot := range []uint16{0, 1, 511, MaxSlot} {
			q, err := New(shard, slot)
			if err != nil {
				t.Fatalf("New(%d, %d): %v", shard, slot, err)
			}

			if q.Shard() != shard || q.Slot() != slot {
				t.Fatalf("got %d:%d, want %d:%d", q.Shard(), q.Slot(), shard, slot)
			}

			back, err := FromPacked(q.Packed())
			if err != nil {
				t.Fatalf("FromPacked(%d): %v", q.Packed(), err)
			}
			if back != q {
				t.Fatalf("FromPacked(Packed) = %v, want %v", back, q)
			}
		}
	}

	// full sweep of the packed range
	for v := uint32(0); v <= maxPacked; v++ {
		q, err := FromPacked(v)
		if err != nil {
			t.Fatalf("FromPacked(%d): %v", v, err)
		}
		if q.Packed() != v {
			t.Fatalf("Packed(FromPacked(%d)) = %d", v, q.Packed())
		}
	}
}

func TestQueryID_Range(t *testing.T) {
	if _, err := New(MaxShard+1, 0); !errors.Is(err, ErrRange) {
		t.Errorf("shard 8192: got %v, want ErrRange", err)
	}
	if _, err := New(0, MaxSlot+1); !errors.Is(err, ErrRange) {
		t.Errorf("slot 1023: got %v, want ErrRange", err)
	}
	if _, err := FromPacked(maxPacked + 1); !errors.Is(err, ErrRange) {
		t.Errorf("packed %d: got %v, want ErrRange", maxPacked+1, err)
	}
	if _, err := FromPacked(maxPacked); err != nil {
		t.Errorf("packed %d: %v", maxPacked, err)
	}
}

func TestQueryID_Wide(t *testing.T) {
	q, err := New(MaxShard, MaxSlot)
	if err != nil {
		t.Fatal(err)
	}

	if q.Wide() != uint64(q.Packed()) {
		t.Fatalf("wide %d != packed %d", q.Wide(), q.Packed())
	}

	back, err := FromWide(q.Wide())
	if err != nil {
		t.Fatal(err)
	}
	if back != q {
		t.Fatalf("FromWide(Wide) = %v, want %v", back, q)
	}

	for _, v := range []uint64{1 << PackedBits, 1 << 32, 1 << 63} {
		if _, err = FromWide(v); !errors.Is(err, ErrRange) {
			t.Errorf("FromWide(%d): got %v, want ErrRange", v, err)
		}
	}

	// top of the 23-bit space above the dense packed range is not a valid id
	if _, err = FromWide(uint64(maxPacked) + 1); !errors.Is(err, ErrRange) {
		t.Errorf("FromWide(%d): got %v, want ErrRange", maxPacked+1, err)
	}
}
