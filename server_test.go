package carve_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	carve "github.com/simsong/bulk-extractor-sub001"
	_ "github.com/simsong/bulk-extractor-sub001/plugin/mp4"
)

func box(typ string, size int, content ...[]byte) []byte {
	b := binary.BigEndian.AppendUint32(nil, uint32(size))
	b = append(b, typ...)
	for _, c := range content {
		b = append(b, c...)
	}
	return b
}

// carvedMovie is an mp4 whose moov was cut off after mdhd.
func carvedMovie() []byte {
	var frames []byte
	for iter := 0; iter < 5; iter++ {
		frame := bytes.Repeat([]byte{0x11}, 300)
		copy(frame, []byte{0, 0, 0, 1, 0x65, 0x88})
		frames = append(frames, frame...)
	}
	tkhd := make([]byte, 84)
	binary.BigEndian.PutUint32(tkhd[76:], 176<<16)
	binary.BigEndian.PutUint32(tkhd[80:], 144<<16)
	mdhd := make([]byte, 24)
	binary.BigEndian.PutUint32(mdhd[12:], 600)
	binary.BigEndian.PutUint32(mdhd[16:], 3000)
	return bytes.Join([][]byte{
		box("ftyp", 20, []byte("3gp4\x00\x00\x00\x003gp4")),
		box("mdat", 8+len(frames), frames),
		box("moov", 9000, box("mvhd", 108, make([]byte, 100)),
			box("trak", 8000, box("tkhd", 92, tkhd),
				box("mdia", 7000, box("mdhd", 32, mdhd)))),
	}, nil)
}

func writeImage(t *testing.T) string {
	t.Helper()
	image := append(bytes.Repeat([]byte{0xE5}, 1000), carvedMovie()...)
	image = append(image, bytes.Repeat([]byte{0x5E}, 100)...)
	path := filepath.Join(t.TempDir(), "disk.raw")
	if err := os.WriteFile(path, image, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newServer(t *testing.T, mp4 map[string]any) (*carve.Server, string) {
	t.Helper()
	out := t.TempDir()
	s, err := carve.NewServer(map[string]any{
		"global": map[string]any{"outdir": out, "loglevel": "error", "pagesize": 512, "margin": 4096},
		"mp4":    mp4,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s, out
}

func TestServerRun(t *testing.T) {
	s, out := newServer(t, map[string]any{"verify": true})
	if len(s.Plugins) != 1 || s.Plugins[0].Disabled {
		t.Fatal("mp4 plugin not installed")
	}
	if err := s.Run(context.Background(), writeImage(t)); err != nil {
		t.Fatal(err)
	}
	features, err := os.ReadFile(filepath.Join(out, "features.txt"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(features)), "\n")
	if len(lines) != 2 {
		t.Fatalf("features %q", features)
	}
	fields := strings.Split(lines[1], "\t")
	if fields[0] != "1000" || !strings.Contains(fields[2], "<width>176</width>") || !strings.Contains(fields[2], "<frame_count>5</frame_count>") {
		t.Errorf("feature %q", lines[1])
	}
	if _, err = os.Stat(filepath.Join(out, fields[1])); err != nil {
		t.Error(err)
	}
	expected := `
# HELP carve_fragments_total Candidate fragments scanned
# TYPE carve_fragments_total counter
carve_fragments_total 1
# HELP carve_repairs_total Fragments repaired
# TYPE carve_repairs_total counter
carve_repairs_total 1
`
	if err = testutil.CollectAndCompare(s, strings.NewReader(expected), "carve_fragments_total", "carve_repairs_total"); err != nil {
		t.Error(err)
	}
	if n := s.FailureCount("structure") + s.FailureCount("no_codec"); n != 0 {
		t.Errorf("%d failures", n)
	}
	if n := testutil.CollectAndCount(s, "carve_repair_failures_total"); n != 6 {
		t.Errorf("%d failure reasons", n)
	}
}

func TestServerConfig(t *testing.T) {
	t.Run("env", func(t *testing.T) {
		t.Setenv("CARVE_WORKERS", "7")
		t.Setenv("MP4_MINFRAGMENT", "100000")
		s, _ := newServer(t, nil)
		if s.Config.Workers != 7 {
			t.Errorf("workers %d", s.Config.Workers)
		}
		s.Run(context.Background(), writeImage(t))
		if got := testutil.CollectAndCount(s, "carve_repairs_total"); got != 1 {
			t.Fatalf("%d metrics", got)
		}
		expected := `
# HELP carve_repairs_total Fragments repaired
# TYPE carve_repairs_total counter
carve_repairs_total 0
`
		if err := testutil.CollectAndCompare(s, strings.NewReader(expected), "carve_repairs_total"); err != nil {
			t.Error("short fragment was not skipped: ", err)
		}
	})
	t.Run("disabled", func(t *testing.T) {
		s, _ := newServer(t, map[string]any{"enable": false})
		if !s.Plugins[0].Disabled {
			t.Error("plugin enabled")
		}
	})
	t.Run("defaults", func(t *testing.T) {
		s, out := newServer(t, nil)
		if s.Config.OutDir != out || s.Config.DB.DBType != "sqlite" || s.Config.LogLevel != "error" {
			t.Errorf("config %+v", s.Config)
		}
		if _, err := os.Stat(filepath.Join(out, "carve.db")); err != nil {
			t.Error("report db not created")
		}
	})
}
