package transfer

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	id := uuid.New()
	f := &Fragment{MessageID: id, Total: 2, Index: 0, Payload: bytes.Repeat([]byte{0xAB}, PayloadSize)}

	wire := Encode(f)
	if len(wire) != FragmentSize {
		t.Fatalf("wire len = %d, want %d", len(wire), FragmentSize)
	}

	got, err := Decode(wire)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.MessageID != id || got.Total != 2 || got.Index != 0 {
		t.Fatalf("Decode mismatch: %+v", got)
	}
	if !bytes.Equal(got.Payload, f.Payload) {
		t.Fatalf("payload mismatch")
	}
}

// TestTotalFragmentsTwoFragmentBlob checks the two-fragment scenario for an
// 8161-byte blob (one byte over a single fragment's payload capacity).
func TestTotalFragmentsTwoFragmentBlob(t *testing.T) {
	if got := TotalFragments(PayloadSize + 1); got != 2 {
		t.Fatalf("TotalFragments(%d) = %d, want 2", PayloadSize+1, got)
	}
	if got := TotalFragments(PayloadSize); got != 1 {
		t.Fatalf("TotalFragments(%d) = %d, want 1", PayloadSize, got)
	}
}

func TestDecodeRejectsShortFragment(t *testing.T) {
	if _, err := Decode(make([]byte, HeaderSize-1)); err == nil {
		t.Fatalf("expected error for short fragment")
	}
}

func TestDecodeRejectsZeroTotal(t *testing.T) {
	id := uuid.New()
	f := &Fragment{MessageID: id, Total: 0, Index: 0}
	wire := Encode(f)
	if _, err := Decode(wire); err == nil {
		t.Fatalf("expected error for total_fragments=0")
	}
}

func TestDecodeRejectsIndexBeyondTotal(t *testing.T) {
	id := uuid.New()
	f := &Fragment{MessageID: id, Total: 3, Index: 3}
	wire := Encode(f)
	if _, err := Decode(wire); err == nil {
		t.Fatalf("expected error for fragment_index >= total_fragments")
	}
}

func TestDecodeRejectsOffsetBeyondSanityCap(t *testing.T) {
	id := uuid.New()
	overIndex := uint64(MaxReassemblyBytes/PayloadSize) + 2
	f := &Fragment{MessageID: id, Total: overIndex + 1, Index: overIndex}
	wire := Encode(f)
	if _, err := Decode(wire); err == nil {
		t.Fatalf("expected error for offset beyond sanity cap")
	}
}

func TestOffsetMatchesPayloadSize(t *testing.T) {
	if Offset(0) != 0 {
		t.Fatalf("Offset(0) = %d, want 0", Offset(0))
	}
	if Offset(3) != 3*PayloadSize {
		t.Fatalf("Offset(3) = %d, want %d", Offset(3), 3*PayloadSize)
	}
}

func TestBlobPrefixRoundTrip(t *testing.T) {
	h := FileHeader{MsgType: MsgFileUpload, PathCli: "a/b.txt", PathCtl: "c/b.txt", FileSize: 42}
	prefix, err := BlobPrefix(h)
	if err != nil {
		t.Fatalf("BlobPrefix: %v", err)
	}

	blob := append(prefix, bytes.Repeat([]byte{0x01}, 42)...)
	got, bodyOffset, err := ParseBlobPrefix(blob)
	if err != nil {
		t.Fatalf("ParseBlobPrefix: %v", err)
	}
	if got.MsgType != h.MsgType || got.PathCli != h.PathCli || got.FileSize != h.FileSize {
		t.Fatalf("header mismatch: %+v", got)
	}
	if bodyOffset != len(prefix) {
		t.Fatalf("bodyOffset = %d, want %d", bodyOffset, len(prefix))
	}
}
