package carve

import (
	"errors"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	. "github.com/simsong/bulk-extractor-sub001/pkg"
)

type prometheusDesc struct {
	Fragments, Repairs, Failures *prometheus.Desc
}

func (d *prometheusDesc) init() {
	d.Fragments = prometheus.NewDesc("carve_fragments_total", "Candidate fragments scanned", nil, nil)
	d.Repairs = prometheus.NewDesc("carve_repairs_total", "Fragments repaired", nil, nil)
	d.Failures = prometheus.NewDesc("carve_repair_failures_total", "Fragments that could not be repaired", []string{"reason"}, nil)
}

var failureReasons = []struct {
	name string
	err  error
}{
	{"structure", ErrStructure},
	{"no_codec", ErrNoCodec},
	{"capacity", ErrCapacity},
	{"output", ErrOutput},
	{"panic", ErrPanic},
}

const otherReason = "other"

type stats struct {
	fragments, repairs atomic.Uint64
	// failures is keyed by reason and never written after init
	failures map[string]*atomic.Uint64
}

func (st *stats) init() {
	st.failures = make(map[string]*atomic.Uint64, len(failureReasons)+1)
	for _, r := range failureReasons {
		st.failures[r.name] = new(atomic.Uint64)
	}
	st.failures[otherReason] = new(atomic.Uint64)
}

func (st *stats) count(err error) {
	if err == nil {
		st.repairs.Add(1)
		return
	}
	for _, r := range failureReasons {
		if errors.Is(err, r.err) {
			st.failures[r.name].Add(1)
			return
		}
	}
	st.failures[otherReason].Add(1)
}

// FailureCount returns the failure count for reason.
func (st *stats) FailureCount(reason string) uint64 {
	if c, ok := st.failures[reason]; ok {
		return c.Load()
	}
	return 0
}

func (s *Server) Describe(ch chan<- *prometheus.Desc) {
	desc := s.prometheusDesc
	ch <- desc.Fragments
	ch <- desc.Repairs
	ch <- desc.Failures
}

func (s *Server) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(s.prometheusDesc.Fragments, prometheus.CounterValue, float64(s.fragments.Load()))
	ch <- prometheus.MustNewConstMetric(s.prometheusDesc.Repairs, prometheus.CounterValue, float64(s.repairs.Load()))
	for reason, c := range s.failures {
		ch <- prometheus.MustNewConstMetric(s.prometheusDesc.Failures, prometheus.CounterValue, float64(c.Load()), reason)
	}
}
