// Package outlier implements passive outlier detection: consecutive-5xx
// ejection with an ejection cap and linear-backoff un-ejection, fixing
// the cyclic-ownership bug — the sink holds a weak reference to its
// detector rather than the raw back-pointer outlier_detection_impl.h
// documents as broken for dynamic cluster removal.
package outlier

import (
	"sync/atomic"
	"time"

	"github.com/mir00r/cluster-manager/internal/upstream"
)

// weakDetector is a Go-side weak reference: a pointer that can be
// cleared out from under any holder once the detector shuts down,
// without the sink needing to know the detector's lifetime. Go has no
// runtime weak pointers, so this emulates one with an atomic pointer the
// detector nils out on Close — every sink access goes through get(),
// which no-ops once cleared.
type weakDetector struct {
	ptr atomic.Pointer[Detector]
}

func newWeakDetector(d *Detector) *weakDetector {
	w := &weakDetector{}
	w.ptr.Store(d)
	return w
}

func (w *weakDetector) get() *Detector {
	return w.ptr.Load()
}

func (w *weakDetector) clear() { w.ptr.Store(nil) }

// hostSink is the per-host outlier bookkeeping: consecutive-5xx counter,
// ejection timestamp, and the total number of times this host has been
// ejected (drives the linear un-ejection backoff). It holds a weak
// reference to its owning Detector and a plain pointer to the Host it
// watches. The detector's map entry for a host is pruned when the
// host's removal from the HostSet reaches the detector's member-update
// callback; the interval sweep does not prune entries.
type hostSink struct {
	detector *weakDetector
	host     *upstream.Host

	ejectionTime atomic.Pointer[time.Time]
	numEjections uint32 // atomic
}

func newHostSink(d *Detector, host *upstream.Host) *hostSink {
	return &hostSink{detector: newWeakDetector(d), host: host}
}

func (s *hostSink) putHTTPResponseCode(code int) {
	count := s.host.RecordResponseCode(code)
	if code < 500 || code >= 600 {
		return
	}
	if d := s.detector.get(); d != nil {
		d.onConsecutive5xx(s.host, s, count)
	}
}

func (s *hostSink) eject(now time.Time) {
	t := now
	s.ejectionTime.Store(&t)
	atomic.AddUint32(&s.numEjections, 1)
	s.host.SetOutlierEjected(true)
}

func (s *hostSink) uneject() {
	s.host.SetOutlierEjected(false)
}

func (s *hostSink) ejectedAt() (time.Time, bool) {
	p := s.ejectionTime.Load()
	if p == nil {
		return time.Time{}, false
	}
	return *p, true
}

func (s *hostSink) numEjectionsCount() uint32 { return atomic.LoadUint32(&s.numEjections) }
