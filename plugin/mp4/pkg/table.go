package mp4

import "math"

// ChunkOffsets turns sample start positions inside the mdat payload into
// file offsets, one sample per chunk.
func ChunkOffsets(starts []int, payloadOffset uint64) []uint64 {
	offsets := make([]uint64, len(starts))
	for i, s := range starts {
		offsets[i] = payloadOffset + uint64(s)
	}
	return offsets
}

// SampleSizes measures each primary sample up to the nearer of the next
// primary start and the next secondary start, the last one up to end.
// When the secondary framing claims more than half of the primary bytes it
// dominates the spacing and only primary spacing is used.
func SampleSizes(primary, secondary []int, end int) []uint32 {
	sizes := sampleSizes(primary, nil, end)
	if len(secondary) == 0 {
		return sizes
	}
	interleaved := sampleSizes(primary, secondary, end)
	if 2*sum(interleaved) < sum(sizes) {
		return sizes
	}
	return interleaved
}

func sampleSizes(primary, secondary []int, end int) []uint32 {
	sizes := make([]uint32, len(primary))
	j := 0
	for i, start := range primary {
		stop := end
		if i+1 < len(primary) {
			stop = primary[i+1]
		}
		for j < len(secondary) && secondary[j] <= start {
			j++
		}
		if j < len(secondary) && secondary[j] < stop {
			stop = secondary[j]
		}
		sizes[i] = uint32(stop - start)
	}
	return sizes
}

func sum(sizes []uint32) (n uint64) {
	for _, s := range sizes {
		n += uint64(s)
	}
	return
}

// SampleDelta spreads duration evenly over count samples, at least 1 and at
// most what stts can hold.
func SampleDelta(duration uint64, count int) uint32 {
	if count == 0 {
		return 1
	}
	return uint32(min(max(duration/uint64(count), 1), math.MaxUint32))
}
