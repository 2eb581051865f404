package carve

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFeatureRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mp4.txt")
	r, err := NewFeatureRecorder(path)
	if err != nil {
		t.Fatal(err)
	}
	if err = r.Write("4096", "<frame_count>3</frame_count>", "mp4-p-0-4096-abcd1234.mp4"); err != nil {
		t.Fatal(err)
	}
	if err = r.Close(); err != nil {
		t.Fatal(err)
	}
	content, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 2 || lines[0]+"\n" != featureFileHeader {
		t.Fatalf("feature file %q", content)
	}
	if lines[1] != "4096\tmp4-p-0-4096-abcd1234.mp4\t<frame_count>3</frame_count>" {
		t.Errorf("line %q", lines[1])
	}
	t.Run("append", func(t *testing.T) {
		r, err := NewFeatureRecorder(path)
		if err != nil {
			t.Fatal(err)
		}
		r.Write("8192", "x", "y")
		r.Close()
		content, _ := os.ReadFile(path)
		if strings.Count(string(content), featureFileHeader) != 1 || strings.Count(string(content), "\n") != 3 {
			t.Errorf("feature file %q", content)
		}
	})
}

func TestDBRecorder(t *testing.T) {
	r, err := NewDBRecorder("sqlite", filepath.Join(t.TempDir(), "carve.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	for _, pos := range []string{"1", "2"} {
		if err = r.Write(pos, "d", "f"+pos); err != nil {
			t.Fatal(err)
		}
	}
	var rows []RepairRecord
	if err = r.DB.Order("id").Find(&rows).Error; err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[1].Position != "2" || rows[1].Filename != "f2" {
		t.Errorf("rows %+v", rows)
	}
	if _, err = NewDBRecorder("nosuchdb", "x"); err == nil {
		t.Error("unknown db type accepted")
	}
}

type failRecorder struct{ closed bool }

func (f *failRecorder) Write(string, string, string) error { return errors.New("full") }

func (f *failRecorder) Close() error {
	f.closed = true
	return nil
}

func TestMultiRecorder(t *testing.T) {
	fail := &failRecorder{}
	m := MultiRecorder{LogRecorder{slog.New(slog.NewTextHandler(io.Discard, nil))}, fail}
	if err := m.Write("1", "d", "f"); err == nil {
		t.Error("error of a member recorder lost")
	}
	if err := m.Close(); err != nil || !fail.closed {
		t.Error("members not closed")
	}
}
