// Package transfer implements the File Fragmenter/Reassembler (FFR) of
// splitting a file + JSON header into fixed-size fragments
// for the binary file data channel, and reassembling them on the other end.
package transfer

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// Wire format constants.
const (
	FragmentSize       = 8192
	HeaderSize         = 32 // message_id(16) + total(8) + index(8)
	PayloadSize        = FragmentSize - HeaderSize // 8160
	MaxTotalFragments  = 1_000_000
	MaxReassemblyBytes = 100 << 30 // 100 GiB
)

// Fragment is one unit of the binary file channel wire format.
type Fragment struct {
	MessageID uuid.UUID
	Total     uint64
	Index     uint64
	Payload   []byte // at most PayloadSize bytes
}

// Encode serializes f into an exactly FragmentSize-byte wire fragment,
// zero-padding the payload if short (the last fragment of a blob).
func Encode(f *Fragment) []byte {
	buf := make([]byte, FragmentSize)
	copy(buf[0:16], f.MessageID[:])
	binary.BigEndian.PutUint64(buf[16:24], f.Total)
	binary.BigEndian.PutUint64(buf[24:32], f.Index)
	copy(buf[HeaderSize:], f.Payload)
	return buf
}

// Decode parses a wire fragment. Fragments shorter than
// the 32-byte header are rejected; everything from byte 32 onward (possibly
// empty) is taken as payload, without requiring the full FragmentSize —
// a defensive reader, even though our own Encode always emits a full-size
// fragment.
func Decode(data []byte) (*Fragment, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("transfer: fragment too short: %d bytes", len(data))
	}
	f := &Fragment{
		Total: binary.BigEndian.Uint64(data[16:24]),
		Index: binary.BigEndian.Uint64(data[24:32]),
	}
	copy(f.MessageID[:], data[0:16])

	if f.Total == 0 || f.Total > MaxTotalFragments {
		return nil, fmt.Errorf("transfer: invalid total_fragments %d", f.Total)
	}
	if f.Index >= f.Total {
		return nil, fmt.Errorf("transfer: fragment_index %d >= total_fragments %d", f.Index, f.Total)
	}
	offset := f.Index * PayloadSize
	if offset > MaxReassemblyBytes {
		return nil, fmt.Errorf("transfer: reassembly offset %d exceeds sanity cap", offset)
	}

	payload := data[HeaderSize:]
	f.Payload = make([]byte, len(payload))
	copy(f.Payload, payload)
	return f, nil
}

// TotalFragments computes ceil(size/PayloadSize), the fragment count for a
// logical blob of the given size.
func TotalFragments(size int64) uint64 {
	if size <= 0 {
		return 1
	}
	return uint64((size + PayloadSize - 1) / PayloadSize)
}

// Offset returns the byte offset within the logical blob that fragment
// index i's payload begins at.
func Offset(index uint64) int64 {
	return int64(index) * PayloadSize
}
