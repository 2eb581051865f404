package mp4

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"

	mp4ff "github.com/Eyevinn/mp4ff/mp4"
	"github.com/deepch/vdk/codec/aacparser"

	carve "github.com/simsong/bulk-extractor-sub001"
	"github.com/simsong/bulk-extractor-sub001/pkg"
	"github.com/simsong/bulk-extractor-sub001/pkg/codec"
	"github.com/simsong/bulk-extractor-sub001/plugin/mp4/pkg/box"
)

var ErrBoxMissing = errors.New("box missing")

type Config struct {
	// Name prefixes and suffixes output file names
	Name   string
	OutDir string
	// InBand takes SPS/PPS from mdat when the sample description is lost
	InBand bool
	// Verify decodes the output with mp4ff before it is written
	Verify bool
}

// Fixer repairs one fragment. It holds no state between calls.
type Fixer struct {
	Config
	*slog.Logger
	Recorder carve.Recorder
}

func NewFixer(conf Config, logger *slog.Logger, recorder carve.Recorder) *Fixer {
	return &Fixer{Config: conf, Logger: logger, Recorder: recorder}
}

// Result describes a repaired file.
type Result struct {
	Filename           string
	FileSize           uint64
	Width, Height      uint32
	FrameCount         int
	Primary, Secondary codec.CodecType
}

// Description is the text handed to the recorder.
func (r *Result) Description() string {
	return fmt.Sprintf("<file_size>%d</file_size><height>%d</height><width>%d</width><frame_count>%d</frame_count>",
		r.FileSize, r.Height, r.Width, r.FrameCount)
}

// repair carries what the steps of DoFix learn about the fragment.
type repair struct {
	data      []byte
	moov      MoovInfo
	mdat      MdatInfo
	detection *Detection
	trak      *TrakInfo
	timescale uint32
	duration  uint64
	sizes     []uint32
	offsets   []uint64
}

// DoFix rebuilds the sample table of a fragment whose moov was cut off
// and writes the result as a new file. Nothing is written on failure.
func (f *Fixer) DoFix(frag *carve.Fragment) (res *Result, err error) {
	logger := f.With("pos", frag.Position())
	r := &repair{data: frag.Data}
	if err = r.locate(); err == nil {
		err = r.identify()
	}
	if err == nil {
		err = r.geometry()
	}
	var out []byte
	if err == nil {
		r.tables()
		out, err = f.assemble(r)
	}
	if err == nil && f.Verify {
		err = r.verify(out)
	}
	if err != nil {
		logger.Debug("abort", "error", err)
		return nil, err
	}
	res = &Result{
		FileSize:   uint64(len(out)),
		Width:      r.trak.Width,
		Height:     r.trak.Height,
		FrameCount: len(r.sizes),
		Primary:    r.detection.Primary(),
		Secondary:  r.detection.Secondary(),
	}
	var path string
	if path, err = writeOutput(f.OutDir, OutputName(f.Name, frag), out); err != nil {
		logger.Debug("abort", "error", err)
		return nil, err
	}
	res.Filename = filepath.Base(path)
	if f.Recorder != nil {
		if err = f.Recorder.Write(frag.Position(), res.Description(), res.Filename); err != nil {
			return res, fmt.Errorf("%w: record: %w", pkg.ErrOutput, err)
		}
	}
	logger.Info("repaired", "file", res.Filename, "size", res.FileSize, "frames", res.FrameCount, "codec", res.Primary)
	return res, nil
}

func (r *repair) locate() (err error) {
	if r.moov, r.mdat, err = LocateAtoms(r.data); err != nil {
		return
	}
	if !r.moov.IdentifyMoovTree(r.data) {
		return fmt.Errorf("%w: no trak in truncated moov", pkg.ErrStructure)
	}
	return nil
}

func (r *repair) identify() error {
	r.detection = Identify(r.mdat.Payload(r.data))
	if !r.detection.Found() {
		return pkg.ErrNoCodec
	}
	return nil
}

// geometry picks the first track whose tkhd and mdhd survived.
func (r *repair) geometry() (err error) {
	for i := range r.moov.Traks {
		t := &r.moov.Traks[i]
		tkhd, mdhd := t.Tkhd.Content(r.data), t.Mdhd.Content(r.data)
		if tkhd == nil || mdhd == nil || !t.Mdia.Present {
			continue
		}
		if t.Width, t.Height, err = box.TrackGeometry(tkhd); err != nil {
			return fmt.Errorf("%w: tkhd: %w", pkg.ErrStructure, err)
		}
		if r.timescale, r.duration, err = box.MediaDuration(mdhd); err != nil {
			return fmt.Errorf("%w: mdhd: %w", pkg.ErrStructure, err)
		}
		t.Version = tkhd[0]
		r.trak = t
		return nil
	}
	return fmt.Errorf("%w: %w: tkhd or mdhd", pkg.ErrStructure, ErrBoxMissing)
}

func (r *repair) tables() {
	primary := r.detection.Positions(r.detection.Primary())
	secondary := r.detection.Positions(r.detection.Secondary())
	payloadOffset := r.mdat.Offset + uint64(r.mdat.HeaderLen)
	r.offsets = ChunkOffsets(primary, payloadOffset)
	r.sizes = SampleSizes(primary, secondary, len(r.mdat.Payload(r.data)))
}

// stsdParams collects what the factory needs when the original stsd is gone.
func (f *Fixer) stsdParams(r *repair, c codec.CodecType) (p box.StsdParams) {
	p.Width, p.Height = uint16(r.trak.Width), uint16(r.trak.Height)
	payload := r.mdat.Payload(r.data)
	switch c {
	case codec.CodecAvc:
		if !f.InBand {
			return
		}
		if ps, ok := FindParameterSets(payload); ok {
			p.SPS, p.PPS = ps.SPS, ps.PPS
			if p.Width == 0 || p.Height == 0 {
				p.Width, p.Height = uint16(ps.Width), uint16(ps.Height)
				r.trak.Width, r.trak.Height = uint32(ps.Width), uint32(ps.Height)
			}
		}
	case codec.CodecMp4a:
		if pos := r.detection.Positions(c); len(pos) > 0 && pos[0]+7 <= len(payload) {
			if conf, _, _, _, err := aacparser.ParseADTSHeader(payload[pos[0]:]); err == nil {
				p.Channels = uint16(conf.ChannelConfig)
				p.SampleRate = uint32(conf.SampleRate)
			}
		}
	}
	return
}

// addStsd copies the original sample description when it is intact and
// describes the same kind of media, otherwise synthesizes one.
func (f *Fixer) addStsd(t *box.Tree, stbl box.NodeID, r *repair) error {
	primary := r.detection.Primary()
	if content := r.trak.Stsd.Content(r.data); content != nil && (r.trak.Codec == codec.CodecNone || r.trak.Codec.IsVideo() == primary.IsVideo()) {
		t.Add(stbl, box.TypeSTSD, &box.Raw{Data: content})
		return nil
	}
	_, err := t.AddStsd(stbl, primary, f.stsdParams(r, primary))
	return err
}

// assemble copies the fragment up to the end of mdhd and appends the root
// boxes of the tree (hdlr, then minf), then patches the sizes of mdia, trak
// and moov.
func (f *Fixer) assemble(r *repair) (out []byte, err error) {
	t := box.NewTree()
	primary := r.detection.Primary()
	handlerType := box.TypeVIDE
	if primary.IsAudio() {
		handlerType = box.TypeSOUN
	}
	t.Add(box.NoParent, box.TypeHDLR, box.NewHandler(handlerType))
	minf := t.Add(box.NoParent, box.TypeMINF, nil)
	if primary.IsAudio() {
		t.Add(minf, box.TypeSMHD, &box.SoundMediaHeader{})
	} else {
		t.Add(minf, box.TypeVMHD, box.NewVideoMediaHeader())
	}
	t.AddDataInformation(minf)
	stbl := t.Add(minf, box.TypeSTBL, nil)
	if err = f.addStsd(t, stbl, r); err != nil {
		return nil, fmt.Errorf("%w: stsd: %w", pkg.ErrStructure, err)
	}
	count := len(r.sizes)
	t.Add(stbl, box.TypeSTTS, &box.TimeToSample{Entries: []box.STTSEntry{{SampleCount: uint32(count), SampleDelta: SampleDelta(r.duration, count)}}})
	t.Add(stbl, box.TypeSTSC, &box.SampleToChunk{Entries: []box.STSCEntry{{FirstChunk: 1, SamplesPerChunk: 1, SampleDescriptionIndex: 1}}})
	t.Add(stbl, box.TypeSTSZ, &box.SampleSize{SampleCount: uint32(count), Entries: r.sizes})
	t.AddChunkOffset(stbl, r.offsets)

	keep := r.trak.Mdhd.End()
	var added uint64
	for _, id := range t.Roots() {
		added += t.Size(id)
	}
	total := keep + added
	if keep > uint64(len(r.data)) || total > math.MaxInt {
		return nil, fmt.Errorf("%w: output of %d bytes", pkg.ErrCapacity, total)
	}
	out = make([]byte, total)
	n := uint64(copy(out, r.data[:keep]))
	for _, id := range t.Roots() {
		w := t.Write(id, out[n:])
		if w == 0 {
			return nil, fmt.Errorf("%w: %s does not fit", pkg.ErrCapacity, t.Node(id).Type[:])
		}
		n += uint64(w)
	}
	if n != total {
		return nil, fmt.Errorf("%w: wrote %d of %d bytes", pkg.ErrCapacity, n, total)
	}
	for _, ref := range []BoxRef{r.trak.Mdia, r.trak.Trak, r.moov.BoxRef} {
		if err = patchSize(out, ref, keep-ref.Offset+added); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// patchSize rewrites the size field of the box at ref, keeping its width.
func patchSize(out []byte, ref BoxRef, size uint64) error {
	if binary.BigEndian.Uint32(out[ref.Offset:]) == 1 {
		binary.BigEndian.PutUint64(out[ref.Offset+8:], size)
		return nil
	}
	if size > math.MaxUint32 {
		return fmt.Errorf("%w: box at %d needs a 64-bit size", pkg.ErrCapacity, ref.Offset)
	}
	binary.BigEndian.PutUint32(out[ref.Offset:], uint32(size))
	return nil
}

// verify decodes out with mp4ff and compares the rebuilt sample count.
func (r *repair) verify(out []byte) error {
	file, err := mp4ff.DecodeFile(bytes.NewReader(out))
	if err != nil {
		return fmt.Errorf("%w: verify: %w", pkg.ErrOutput, err)
	}
	if file.Moov == nil || len(file.Moov.Traks) == 0 {
		return fmt.Errorf("%w: verify: no trak", pkg.ErrOutput)
	}
	trak := file.Moov.Traks[len(file.Moov.Traks)-1]
	if trak.Mdia == nil || trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsz == nil {
		return fmt.Errorf("%w: verify: no stsz", pkg.ErrOutput)
	}
	if n := trak.Mdia.Minf.Stbl.Stsz.SampleNumber; int(n) != len(r.sizes) {
		return fmt.Errorf("%w: verify: %d samples, want %d", pkg.ErrOutput, n, len(r.sizes))
	}
	return nil
}
