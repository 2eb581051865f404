package codec

import (
	"github.com/simsong/bulk-extractor-sub001/pkg/util"
)

// ScalingList is one DPCM coded scaling list of 16 or 64 entries.
type ScalingList struct {
	Present    bool
	UseDefault bool
	Scale      []int
}

// Read decodes the list with the next_scale/last_scale recurrence.
func (l *ScalingList) Read(r *util.BitReader, size int) error {
	l.Scale = make([]int, size)
	l.UseDefault = false
	last, next := 8, 8
	for j := 0; j < size; j++ {
		if next != 0 {
			delta, err := r.ReadSE()
			if err != nil {
				return err
			}
			next = (last + int(delta) + 256) % 256
			l.UseDefault = j == 0 && next == 0
		}
		if next == 0 {
			l.Scale[j] = last
		} else {
			l.Scale[j] = next
		}
		last = l.Scale[j]
	}
	return nil
}

// Write re-encodes the list from its absolute values. The emitted deltas are
// recomputed and may differ from the ones originally read, the decoded values
// do not.
func (l *ScalingList) Write(w *util.BitWriter) error {
	if l.UseDefault {
		return w.WriteSE(-8)
	}
	last := 8
	for _, v := range l.Scale {
		delta := (v-last+128)&0xFF - 128
		if err := w.WriteSE(int64(delta)); err != nil {
			return err
		}
		last = v
	}
	return nil
}

// ScalingMatrix holds the 4x4 lists (indices 0-5) followed by the 8x8 lists.
type ScalingMatrix struct {
	Lists []ScalingList
}

func scalingListSize(i int) int {
	if i < 6 {
		return 16
	}
	return 64
}

func (m *ScalingMatrix) Read(r *util.BitReader, count int) error {
	m.Lists = make([]ScalingList, count)
	for i := range m.Lists {
		present, err := r.ReadFlag()
		if err != nil {
			return err
		}
		m.Lists[i].Present = present
		if present {
			if err = m.Lists[i].Read(r, scalingListSize(i)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *ScalingMatrix) Write(w *util.BitWriter) error {
	for i := range m.Lists {
		l := &m.Lists[i]
		if err := w.WriteFlag(l.Present); err != nil {
			return err
		}
		if l.Present {
			if err := l.Write(w); err != nil {
				return err
			}
		}
	}
	return nil
}
