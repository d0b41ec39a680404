package metrics

import (
	"math"
	"sync/atomic"
)

// SamplingObserver forwards roughly rate*N of N events to the inner
// observer. Rolling sessions emit one window event every few seconds
// per user; sampling keeps high-traffic deployments from flooding the
// audit file.
type SamplingObserver struct {
	inner   Observer
	every   uint64
	counter uint64
}

// NewSamplingObserver clamps rate to [0, 1]. A rate of 0 drops
// everything; 1 forwards everything.
func NewSamplingObserver(inner Observer, rate float64) *SamplingObserver {
	switch {
	case rate <= 0:
		return &SamplingObserver{inner: inner, every: 0}
	case rate >= 1:
		return &SamplingObserver{inner: inner, every: 1}
	}
	every := uint64(math.Round(1.0 / rate))
	if every == 0 {
		every = 1
	}
	return &SamplingObserver{inner: inner, every: every}
}

func (s *SamplingObserver) RecordEvent(ev MetricsEvent) {
	if s.every == 0 {
		return
	}
	if s.every == 1 {
		s.inner.RecordEvent(ev)
		return
	}
	if atomic.AddUint64(&s.counter, 1)%s.every == 0 {
		s.inner.RecordEvent(ev)
	}
}
