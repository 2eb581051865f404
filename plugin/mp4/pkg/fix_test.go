package mp4

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	mp4ff "github.com/Eyevinn/mp4ff/mp4"

	carve "github.com/simsong/bulk-extractor-sub001"
	"github.com/simsong/bulk-extractor-sub001/pkg"
	"github.com/simsong/bulk-extractor-sub001/pkg/codec"
)

type memRecorder struct {
	sync.Mutex
	rows [][3]string
}

func (m *memRecorder) Write(pos, description, filename string) error {
	m.Lock()
	defer m.Unlock()
	m.rows = append(m.rows, [3]string{pos, description, filename})
	return nil
}

func (m *memRecorder) Close() error {
	return nil
}

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func concat(parts ...[]byte) []byte {
	var b bytes.Buffer
	for _, p := range parts {
		b.Write(p)
	}
	return b.Bytes()
}

// header is a box header declaring size, whatever follows.
func header(typ string, size uint32) []byte {
	b := binary.BigEndian.AppendUint32(nil, size)
	return append(b, typ...)
}

func atom(typ string, content ...[]byte) []byte {
	body := concat(content...)
	return concat(header(typ, uint32(8+len(body))), body)
}

func tkhdContent(width, height uint32) []byte {
	b := make([]byte, 84)
	binary.BigEndian.PutUint32(b[76:], width<<16)
	binary.BigEndian.PutUint32(b[80:], height<<16)
	return b
}

func mdhdContent(timescale, duration uint32) []byte {
	b := make([]byte, 24)
	binary.BigEndian.PutUint32(b[12:], timescale)
	binary.BigEndian.PutUint32(b[16:], duration)
	return b
}

var ftyp = atom("ftyp", []byte("isom\x00\x00\x02\x00isom"))

// truncatedFragment lays out ftyp, an mdat holding payload and a moov that
// is cut off inside the hdlr of its only track.
func truncatedFragment(payload []byte, width, height uint32) []byte {
	mdia := concat(header("mdia", 4096), atom("mdhd", mdhdContent(1000, 4000)), header("hdlr", 45), make([]byte, 12))
	trak := concat(header("trak", 8192), atom("tkhd", tkhdContent(width, height)), mdia)
	moov := concat(header("moov", 16384), atom("mvhd", make([]byte, 100)), trak)
	return concat(ftyp, atom("mdat", payload), moov)
}

// completeFragment has a moov whose declared size matches its bytes.
func completeFragment(payload []byte) []byte {
	mdia := atom("mdia", atom("mdhd", mdhdContent(1000, 4000)))
	moov := atom("moov", atom("mvhd", make([]byte, 100)), atom("trak", atom("tkhd", tkhdContent(320, 240)), mdia))
	return concat(ftyp, atom("mdat", payload), moov)
}

// annexBFrames builds n IDR access units of size bytes each.
func annexBFrames(n, size int) []byte {
	var b bytes.Buffer
	for iter := 0; iter < n; iter++ {
		frame := bytes.Repeat([]byte{0x11}, size)
		copy(frame, []byte{0, 0, 0, 1, 0x65, 0x88})
		b.Write(frame)
	}
	return b.Bytes()
}

// adtsFrame is a 44.1kHz stereo AAC LC frame of size bytes.
func adtsFrame(size int) []byte {
	b := bytes.Repeat([]byte{0x22}, size)
	b[0], b[1], b[2] = 0xFF, 0xF1, 0x50
	b[3] = 0x80 | byte(size>>11&0x03)
	b[4] = byte(size >> 3)
	b[5] = byte(size&0x07)<<5 | 0x1F
	b[6] = 0xFC
	return b
}

func fragmentOf(data []byte) *carve.Fragment {
	return &carve.Fragment{Data: data, Path: "/images/disk.raw", BaseOffset: 4096, Offset: 16}
}

func decodeOutput(t *testing.T, dir, name string) *mp4ff.TrakBox {
	t.Helper()
	out, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	file, err := mp4ff.DecodeFile(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if file.Moov == nil || len(file.Moov.Traks) != 1 {
		t.Fatal("expected one trak")
	}
	return file.Moov.Traks[0]
}

func TestDoFix(t *testing.T) {
	t.Run("annexb frames", func(t *testing.T) {
		const n, size = 10, 200
		payload := annexBFrames(n, size)
		data := truncatedFragment(payload, 320, 240)
		dir := t.TempDir()
		rec := &memRecorder{}
		f := NewFixer(Config{Name: "mp4", OutDir: dir, Verify: true}, testLogger, rec)
		res, err := f.DoFix(fragmentOf(data))
		if err != nil {
			t.Fatal(err)
		}
		if res.FrameCount != n || res.Width != 320 || res.Height != 240 || res.Primary != codec.CodecAvc {
			t.Fatalf("unexpected result %+v", res)
		}
		if !strings.HasPrefix(res.Filename, "mp4-pimages_disk.raw-4096-16-") || !strings.HasSuffix(res.Filename, ".mp4") {
			t.Errorf("file name %s", res.Filename)
		}
		trak := decodeOutput(t, dir, res.Filename)
		stbl := trak.Mdia.Minf.Stbl
		if stbl.Stsz.SampleNumber != n || len(stbl.Stco.ChunkOffset) != n {
			t.Fatalf("stsz %d entries, stco %d entries", stbl.Stsz.SampleNumber, len(stbl.Stco.ChunkOffset))
		}
		payloadOffset := uint32(len(ftyp) + 8)
		var total uint64
		for i, off := range stbl.Stco.ChunkOffset {
			if i > 0 && off <= stbl.Stco.ChunkOffset[i-1] {
				t.Errorf("chunk offset %d not increasing", i)
			}
			if off != payloadOffset+uint32(i*size) {
				t.Errorf("chunk %d at %d", i, off)
			}
			total += uint64(stbl.Stsz.SampleSize[i])
		}
		if total > uint64(len(payload)) {
			t.Errorf("samples cover %d bytes of a %d byte mdat", total, len(payload))
		}
		if trak.Mdia.Hdlr.HandlerType != "vide" || trak.Mdia.Minf.Vmhd == nil {
			t.Error("expected a video handler")
		}
		if len(rec.rows) != 1 {
			t.Fatalf("%d recorder rows", len(rec.rows))
		}
		row := rec.rows[0]
		if row[0] != "4112" || row[2] != res.Filename || !strings.Contains(row[1], "<frame_count>10</frame_count>") {
			t.Errorf("recorded %v", row)
		}
	})
	t.Run("slices not at mb 0", func(t *testing.T) {
		head := [2]byte{0x41, 0x11}
		data := truncatedFragment(annexBSlices(120, head, head, head, head, head), 320, 240)
		res, err := NewFixer(Config{Name: "mp4", OutDir: t.TempDir(), Verify: true}, testLogger, nil).DoFix(fragmentOf(data))
		if err != nil {
			t.Fatal(err)
		}
		if res.FrameCount != 5 || res.Primary != codec.CodecAvc {
			t.Errorf("unexpected result %+v", res)
		}
	})
	t.Run("sizes patched", func(t *testing.T) {
		payload := annexBFrames(4, 100)
		data := truncatedFragment(payload, 320, 240)
		dir := t.TempDir()
		res, err := NewFixer(Config{Name: "mp4", OutDir: dir}, testLogger, nil).DoFix(fragmentOf(data))
		if err != nil {
			t.Fatal(err)
		}
		out, _ := os.ReadFile(filepath.Join(dir, res.Filename))
		moovOffset := len(ftyp) + 8 + len(payload)
		if size := binary.BigEndian.Uint32(out[moovOffset:]); int(size) != len(out)-moovOffset {
			t.Errorf("moov size %d, want %d", size, len(out)-moovOffset)
		}
		trakOffset := moovOffset + 8 + 108
		if size := binary.BigEndian.Uint32(out[trakOffset:]); int(size) != len(out)-trakOffset {
			t.Errorf("trak size %d, want %d", size, len(out)-trakOffset)
		}
		mdiaOffset := trakOffset + 8 + 92
		if size := binary.BigEndian.Uint32(out[mdiaOffset:]); int(size) != len(out)-mdiaOffset {
			t.Errorf("mdia size %d, want %d", size, len(out)-mdiaOffset)
		}
		if !bytes.Equal(out[:mdiaOffset+8+32], data[:mdiaOffset+8+32]) {
			t.Error("bytes up to mdhd were not copied verbatim")
		}
	})
	t.Run("no codec", func(t *testing.T) {
		data := truncatedFragment(bytes.Repeat([]byte{0x11}, 2000), 320, 240)
		dir := t.TempDir()
		rec := &memRecorder{}
		_, err := NewFixer(Config{Name: "mp4", OutDir: dir}, testLogger, rec).DoFix(fragmentOf(data))
		if !errors.Is(err, pkg.ErrNoCodec) {
			t.Fatalf("got %v", err)
		}
		if entries, _ := os.ReadDir(dir); len(entries) != 0 {
			t.Errorf("%d files left behind", len(entries))
		}
		if len(rec.rows) != 0 {
			t.Error("recorder called on failure")
		}
	})
	t.Run("mdat size wraps", func(t *testing.T) {
		data := truncatedFragment(annexBFrames(4, 100), 320, 240)
		binary.BigEndian.PutUint32(data[len(ftyp):], 1)
		data = concat(data[:len(ftyp)+8], binary.BigEndian.AppendUint64(nil, math.MaxUint64-7), data[len(ftyp)+8:])
		dir := t.TempDir()
		_, err := NewFixer(Config{Name: "mp4", OutDir: dir}, testLogger, nil).DoFix(fragmentOf(data))
		if !errors.Is(err, pkg.ErrStructure) {
			t.Fatalf("got %v", err)
		}
		if entries, _ := os.ReadDir(dir); len(entries) != 0 {
			t.Errorf("%d files left behind", len(entries))
		}
	})
	t.Run("complete moov", func(t *testing.T) {
		data := completeFragment(annexBFrames(4, 100))
		moov, _, err := LocateAtoms(data)
		if err != nil {
			t.Fatal(err)
		}
		if !moov.IdentifyMoovTree(data) || len(moov.Traks) != 0 {
			t.Fatal("a complete moov is accepted without walking")
		}
		dir := t.TempDir()
		_, err = NewFixer(Config{Name: "mp4", OutDir: dir}, testLogger, nil).DoFix(fragmentOf(data))
		if !errors.Is(err, ErrBoxMissing) || !errors.Is(err, pkg.ErrStructure) {
			t.Fatalf("got %v", err)
		}
		if entries, _ := os.ReadDir(dir); len(entries) != 0 {
			t.Error("intact file was rewritten")
		}
	})
	t.Run("complete moov without codec", func(t *testing.T) {
		data := completeFragment(bytes.Repeat([]byte{0x11}, 400))
		_, err := NewFixer(Config{Name: "mp4", OutDir: t.TempDir()}, testLogger, nil).DoFix(fragmentOf(data))
		if !errors.Is(err, pkg.ErrNoCodec) {
			t.Fatalf("got %v", err)
		}
	})
	t.Run("mdat after moov", func(t *testing.T) {
		data := concat(ftyp, atom("moov", atom("mvhd", make([]byte, 100))), atom("mdat", annexBFrames(2, 100)))
		_, err := NewFixer(Config{Name: "mp4", OutDir: t.TempDir()}, testLogger, nil).DoFix(fragmentOf(data))
		if !errors.Is(err, pkg.ErrStructure) {
			t.Fatalf("got %v", err)
		}
	})
	t.Run("in-band parameter sets", func(t *testing.T) {
		sps, err := codec.DefaultSPS().Marshal()
		if err != nil {
			t.Fatal(err)
		}
		pps, err := codec.DefaultPPS().Marshal()
		if err != nil {
			t.Fatal(err)
		}
		startCode := []byte{0, 0, 0, 1}
		payload := concat(startCode, sps, startCode, pps, annexBFrames(3, 150))
		dir := t.TempDir()
		res, err := NewFixer(Config{Name: "mp4", OutDir: dir, InBand: true}, testLogger, nil).DoFix(fragmentOf(truncatedFragment(payload, 0, 0)))
		if err != nil {
			t.Fatal(err)
		}
		if res.Width != 640 || res.Height != 480 {
			t.Errorf("geometry %dx%d from in-band SPS", res.Width, res.Height)
		}
		if res.FrameCount != 3 {
			t.Errorf("%d frames", res.FrameCount)
		}
		stsd := decodeOutput(t, dir, res.Filename).Mdia.Minf.Stbl.Stsd
		if stsd.AvcX == nil || stsd.AvcX.AvcC == nil || len(stsd.AvcX.AvcC.SPSnalus) != 1 {
			t.Fatal("no avcC")
		}
		if !bytes.Equal(stsd.AvcX.AvcC.SPSnalus[0], sps) || !bytes.Equal(stsd.AvcX.AvcC.PPSnalus[0], pps) {
			t.Error("avcC does not carry the in-band parameter sets")
		}
	})
	t.Run("audio primary", func(t *testing.T) {
		var payload []byte
		for iter := 0; iter < 8; iter++ {
			payload = append(payload, adtsFrame(120)...)
		}
		dir := t.TempDir()
		res, err := NewFixer(Config{Name: "mp4", OutDir: dir}, testLogger, nil).DoFix(fragmentOf(truncatedFragment(payload, 0, 0)))
		if err != nil {
			t.Fatal(err)
		}
		if res.Primary != codec.CodecMp4a || res.FrameCount != 8 {
			t.Fatalf("unexpected result %+v", res)
		}
		trak := decodeOutput(t, dir, res.Filename)
		if trak.Mdia.Hdlr.HandlerType != "soun" || trak.Mdia.Minf.Smhd == nil {
			t.Error("expected a sound handler")
		}
		if mp4a := trak.Mdia.Minf.Stbl.Stsd.Mp4a; mp4a == nil || mp4a.SampleRate != 44100 || mp4a.ChannelCount != 2 {
			t.Error("mp4a entry does not follow the ADTS header")
		}
	})
	t.Run("interleaved audio", func(t *testing.T) {
		const n = 6
		var payload []byte
		for iter := 0; iter < n; iter++ {
			payload = concat(payload, annexBFrames(1, 200), adtsFrame(50), adtsFrame(50))
		}
		dir := t.TempDir()
		res, err := NewFixer(Config{Name: "mp4", OutDir: dir}, testLogger, nil).DoFix(fragmentOf(truncatedFragment(payload, 320, 240)))
		if err != nil {
			t.Fatal(err)
		}
		if res.Secondary != codec.CodecMp4a {
			t.Fatalf("secondary %s", res.Secondary)
		}
		stsz := decodeOutput(t, dir, res.Filename).Mdia.Minf.Stbl.Stsz
		for i, s := range stsz.SampleSize {
			if s != 200 {
				t.Errorf("sample %d is %d bytes", i, s)
			}
		}
	})
}

func TestOutputName(t *testing.T) {
	frag := &carve.Fragment{Path: "/a b/c.img", BaseOffset: 100, Offset: 7}
	a, b := OutputName("mp4", frag), OutputName("mp4", frag)
	if !strings.HasPrefix(a, "mp4-pa_b_c.img-100-7-") || !strings.HasSuffix(a, ".mp4") {
		t.Errorf("name %s", a)
	}
	if a == b {
		t.Error("names of the same fragment collide")
	}
}

func TestWriteOutput(t *testing.T) {
	t.Run("missing dir", func(t *testing.T) {
		_, err := writeOutput(filepath.Join(t.TempDir(), "missing"), "x.mp4", []byte{1})
		if !errors.Is(err, pkg.ErrOutput) {
			t.Fatalf("got %v", err)
		}
	})
	t.Run("no partial files", func(t *testing.T) {
		dir := t.TempDir()
		path, err := writeOutput(dir, "x.mp4", []byte{1, 2, 3})
		if err != nil {
			t.Fatal(err)
		}
		entries, _ := os.ReadDir(dir)
		if len(entries) != 1 || filepath.Join(dir, entries[0].Name()) != path {
			t.Errorf("directory holds %v", entries)
		}
	})
}
