package carve

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	. "github.com/simsong/bulk-extractor-sub001/pkg"
	"github.com/simsong/bulk-extractor-sub001/pkg/config"
)

var Version = "v1.0.0"

var ErrPanic = errors.New("panic")

// Candidate fragments start at an ftyp box of this size range.
const (
	minFtypSize = 8
	maxFtypSize = 256
)

type Server struct {
	StartTime time.Time
	context.Context
	context.CancelCauseFunc
	*slog.Logger
	Config     config.Engine
	Plugins    []*Plugin
	Recorder   Recorder
	LogHandler *MultiLogHandler
	prometheusDesc
	stats
	config config.Config
}

// NewServer applies the "global" section of conf, opens the recorders and
// initializes every installed plugin with its own section.
func NewServer(conf map[string]any) (s *Server, err error) {
	s = &Server{StartTime: time.Now()}
	s.Context, s.CancelCauseFunc = context.WithCancelCause(context.Background())
	global, _ := conf["global"].(map[string]any)
	s.config.Parse(&s.Config, "CARVE")
	s.config.ParseUserFile(global)

	level := ParseLevel(s.Config.LogLevel)
	s.LogHandler = NewMultiLogHandler(level, NewConsoleHandler(os.Stderr, level))
	if rotate := s.Config.LogRotate; rotate.Path != "" {
		h, err := NewRotateHandler(rotate, level)
		if err != nil {
			return nil, fmt.Errorf("log rotate: %w", err)
		}
		s.LogHandler.Add(h)
	}
	s.Logger = slog.New(s.LogHandler).With("server", Version)
	s.Debug("config", "global", s.config.GetMap())

	if err = os.MkdirAll(s.Config.OutDir, 0755); err != nil {
		return nil, err
	}
	recorders := MultiRecorder{LogRecorder{s.Logger}}
	if name := s.Config.Features; name != "" {
		fr, err := NewFeatureRecorder(s.outPath(name))
		if err != nil {
			return nil, err
		}
		recorders = append(recorders, fr)
	}
	if dbConf := s.Config.DB; dbConf.DBType != "" {
		dr, err := NewDBRecorder(dbConf.DBType, s.outPath(dbConf.DSN))
		if err != nil {
			recorders.Close()
			return nil, fmt.Errorf("report db: %w", err)
		}
		recorders = append(recorders, dr)
	}
	s.Recorder = recorders
	s.prometheusDesc.init()
	s.stats.init()
	for i := range plugins {
		userConfig, _ := conf[strings.ToLower(plugins[i].Name)].(map[string]any)
		plugins[i].Init(s, userConfig)
	}
	return s, nil
}

func (s *Server) outPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.Config.OutDir, name)
}

// Run scans each image in turn. A failing image is logged and skipped.
func (s *Server) Run(ctx context.Context, images ...string) (err error) {
	s.Context, s.CancelCauseFunc = context.WithCancelCause(ctx)
	defer s.CancelCauseFunc(nil)
	if s.Config.Timeout > 0 {
		var cancel context.CancelFunc
		s.Context, cancel = context.WithTimeout(s.Context, s.Config.Timeout)
		defer cancel()
	}
	if addr := s.Config.Metrics; addr != "" {
		srv := s.serveMetrics(addr)
		defer srv.Shutdown(context.Background())
	}
	s.Info("start", "images", len(images), "workers", s.Config.Workers)
	for _, path := range images {
		if s.Err() != nil {
			break
		}
		if err := s.ScanImage(path); err != nil {
			s.Error("scan image", "path", path, "error", err)
		}
	}
	s.Info("done", "fragments", s.fragments.Load(), "repairs", s.repairs.Load(), "elapsed", time.Since(s.StartTime))
	return context.Cause(s)
}

func (s *Server) Stop() {
	s.CancelCauseFunc(errors.New("stop"))
}

// Close flushes and closes the recorders.
func (s *Server) Close() error {
	return s.Recorder.Close()
}

func (s *Server) serveMetrics(addr string) *http.Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(s)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Error("metrics listen", "addr", addr, "error", err)
		}
	}()
	s.Info("metrics listen", "addr", addr)
	return srv
}

// ScanImage maps path read-only and hands every candidate fragment to the
// worker pool. Pages overlap by Margin bytes so a fragment starting near
// the end of a page keeps its tail.
func (s *Server) ScanImage(path string) error {
	img, err := OpenImage(path)
	if err != nil {
		return err
	}
	defer img.Close()
	pageSize := max(s.Config.PageSize, maxFtypSize)
	margin := max(s.Config.Margin, 0)
	g, ctx := errgroup.WithContext(s)
	g.SetLimit(max(s.Config.Workers, 1))
	for base := 0; base < len(img.Data); base += pageSize {
		if ctx.Err() != nil {
			break
		}
		limit := min(pageSize, len(img.Data)-base)
		page := img.Data[base:min(len(img.Data), base+pageSize+margin)]
		for _, off := range FindCandidates(page, limit) {
			frag := &Fragment{Data: page[off:], Path: path, BaseOffset: uint64(base), Offset: uint64(off)}
			g.Go(func() error {
				s.dispatch(frag)
				return nil
			})
		}
	}
	g.Wait()
	return context.Cause(s)
}

// ScanBuffer runs the plugins over data as one page of a pseudo image.
func (s *Server) ScanBuffer(path string, data []byte) {
	for _, off := range FindCandidates(data, len(data)) {
		s.dispatch(&Fragment{Data: data[off:], Path: path, Offset: uint64(off)})
	}
}

func (s *Server) dispatch(frag *Fragment) {
	s.fragments.Add(1)
	for _, p := range s.Plugins {
		if p.Disabled {
			continue
		}
		err := p.fix(frag)
		if errors.Is(err, ErrSkipped) {
			continue
		}
		s.count(err)
		if err != nil {
			p.Debug("fragment", "pos", frag.Position(), "error", err)
		}
	}
}

// FindCandidates returns the offsets of plausible ftyp box headers that
// start before limit.
func FindCandidates(page []byte, limit int) (offsets []int) {
	ftyp := []byte("ftyp")
	for i := 4; i+8 <= len(page); {
		j := bytes.Index(page[i:], ftyp)
		if j < 0 {
			break
		}
		i += j
		start := i - 4
		if start >= limit || i+8 > len(page) {
			break
		}
		if size := binary.BigEndian.Uint32(page[start:]); size >= minFtypSize && size <= maxFtypSize && printable(page[i+4:i+8]) {
			offsets = append(offsets, start)
		}
		i++
	}
	return
}

func printable(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}
