package mp4

import (
	"math"
	"slices"
	"testing"
)

func TestSampleSizes(t *testing.T) {
	tests := []struct {
		name               string
		primary, secondary []int
		end                int
		want               []uint32
	}{
		{"primary only", []int{0, 100, 250}, nil, 300, []uint32{100, 150, 50}},
		{"interleaved", []int{0, 100, 200}, []int{60, 160, 260}, 300, []uint32{60, 60, 60}},
		{"secondary before first sample", []int{50, 150}, []int{0, 120}, 200, []uint32{70, 50}},
		{"secondary dominates", []int{0, 1000}, []int{10, 1010}, 2000, []uint32{1000, 1000}},
		{"single sample", []int{8}, nil, 108, []uint32{100}},
		{"single entry cut by audio", []int{0}, []int{8, 40, 72}, 1000, []uint32{1000}},
		{"audio after every frame", []int{0, 500, 1000}, []int{4, 504, 1004}, 1500, []uint32{500, 500, 500}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SampleSizes(tt.primary, tt.secondary, tt.end)
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			if sum(got) > uint64(tt.end) {
				t.Errorf("sizes cover %d bytes past end %d", sum(got), tt.end)
			}
		})
	}
}

func TestChunkOffsets(t *testing.T) {
	starts := []int{0, 200, 400}
	offsets := ChunkOffsets(starts, 28)
	if len(offsets) != len(SampleSizes(starts, nil, 600)) {
		t.Fatal("one chunk offset per sample size")
	}
	if !slices.Equal(offsets, []uint64{28, 228, 428}) {
		t.Errorf("got %v", offsets)
	}
}

func TestSampleDelta(t *testing.T) {
	if d := SampleDelta(4000, 10); d != 400 {
		t.Errorf("got %d", d)
	}
	if d := SampleDelta(5, 10); d != 1 {
		t.Errorf("delta below 1: %d", d)
	}
	if d := SampleDelta(100, 0); d != 1 {
		t.Errorf("no samples: %d", d)
	}
	if d := SampleDelta(math.MaxUint64, 2); d != math.MaxUint32 {
		t.Errorf("64-bit duration not clamped: %d", d)
	}
}
