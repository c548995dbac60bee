package capture

import "testing"

func TestComputeEncodeSizeAdaptiveDisabled(t *testing.T) {
	w, h := ComputeEncodeSize(1920, 1080, -1, -1)
	if w != 1920 || h != 1072 {
		t.Fatalf("got %dx%d, want 1920x1072", w, h)
	}
}

func TestComputeEncodeSizeFitsWithinMax(t *testing.T) {
	w, h := ComputeEncodeSize(800, 600, 1920, 1080)
	if w != 800-800%16 || h != 600-600%16 {
		t.Fatalf("got %dx%d", w, h)
	}
}

func TestComputeEncodeSizeScalesDownPreservingAspect(t *testing.T) {
	w, h := ComputeEncodeSize(3840, 2160, 1920, 1080)
	if w > 1920 || h > 1080 {
		t.Fatalf("got %dx%d, exceeds max 1920x1080", w, h)
	}
	if w%16 != 0 || h%16 != 0 {
		t.Fatalf("got %dx%d, not a multiple of 16", w, h)
	}
}

func TestComputeEncodeSizeNarrowerDimensionSaturates(t *testing.T) {
	w, h := ComputeEncodeSize(4000, 1000, 1000, 1000)
	if w > 1000 {
		t.Fatalf("width %d exceeds max", w)
	}
	wantH := roundDown16(1000 * 1000 / 4000)
	if h != wantH {
		t.Fatalf("height = %d, want %d", h, wantH)
	}
}
