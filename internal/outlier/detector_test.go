package outlier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mir00r/cluster-manager/internal/upstream"
	"github.com/mir00r/cluster-manager/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return log
}

type recordingEventLogger struct {
	ejections  []*upstream.Host
	unejections []*upstream.Host
}

func (r *recordingEventLogger) LogEject(h *upstream.Host, numEjections uint32) {
	r.ejections = append(r.ejections, h)
}
func (r *recordingEventLogger) LogUneject(h *upstream.Host) {
	r.unejections = append(r.unejections, h)
}

func hostSetWith(n int) (*upstream.HostSet, []*upstream.Host) {
	info := &upstream.ClusterInfo{Name: "cluster-a"}
	hosts := make([]*upstream.Host, n)
	for i := range hosts {
		hosts[i] = upstream.NewHost(info, "10.0.0.1:80", "", nil)
	}
	hs := upstream.NewHostSet()
	hs.Update(hosts, hosts, nil)
	return hs, hosts
}

func TestDetectorEjectsHostAtConsecutive5xxThreshold(t *testing.T) {
	hs, hosts := hostSetWith(5)
	events := &recordingEventLogger{}
	d := New(Config{Consecutive5xxThreshold: 3, BaseEjectionTime: time.Minute, EjectionFloorPercent: 10}, hs, nil, events, testLogger(t))
	d.Start()
	defer d.Close()

	target := hosts[0]
	sink := d.Sink(target)
	require.NotNil(t, sink)

	sink.putHTTPResponseCode(500)
	assert.False(t, target.OutlierEjected())
	sink.putHTTPResponseCode(502)
	assert.False(t, target.OutlierEjected())
	sink.putHTTPResponseCode(503)
	assert.True(t, target.OutlierEjected())

	assert.Equal(t, []*upstream.Host{target}, events.ejections)
}

func TestDetectorNonFailureResetsConsecutiveCounter(t *testing.T) {
	hs, hosts := hostSetWith(5)
	d := New(Config{Consecutive5xxThreshold: 3, BaseEjectionTime: time.Minute, EjectionFloorPercent: 10}, hs, nil, nil, testLogger(t))
	d.Start()
	defer d.Close()

	target := hosts[0]
	sink := d.Sink(target)
	sink.putHTTPResponseCode(500)
	sink.putHTTPResponseCode(500)
	sink.putHTTPResponseCode(200)
	sink.putHTTPResponseCode(500)
	sink.putHTTPResponseCode(500)
	assert.False(t, target.OutlierEjected(), "a non-5xx response should reset the streak")
}

func TestDetectorEjectionCapRefusesWhenFloorWouldBeBreached(t *testing.T) {
	hs, hosts := hostSetWith(2)
	// Pre-eject one host so only one of two remains unejected.
	hosts[1].SetOutlierEjected(true)

	d := New(Config{Consecutive5xxThreshold: 1, BaseEjectionTime: time.Minute, EjectionFloorPercent: 60}, hs, nil, nil, testLogger(t))
	d.Start()
	defer d.Close()

	sink := d.Sink(hosts[0])
	sink.putHTTPResponseCode(500)

	assert.False(t, hosts[0].OutlierEjected(), "ejecting the last unejected host should be refused by the floor")
}

func TestDetectorDoesNotDoubleEjectAnAlreadyEjectedHost(t *testing.T) {
	hs, hosts := hostSetWith(3)
	events := &recordingEventLogger{}
	d := New(Config{Consecutive5xxThreshold: 1, BaseEjectionTime: time.Minute, EjectionFloorPercent: 10}, hs, nil, events, testLogger(t))
	d.Start()
	defer d.Close()

	sink := d.Sink(hosts[0])
	sink.putHTTPResponseCode(500)
	sink.putHTTPResponseCode(500)

	assert.Len(t, events.ejections, 1)
}

func TestDetectorSweepUnejectsAfterBackoffElapses(t *testing.T) {
	hs, hosts := hostSetWith(3)
	events := &recordingEventLogger{}
	d := New(Config{
		Consecutive5xxThreshold: 1,
		BaseEjectionTime:        10 * time.Millisecond,
		EjectionFloorPercent:    10,
		SweepInterval:           5 * time.Millisecond,
	}, hs, nil, events, testLogger(t))
	d.Start()
	defer d.Close()

	target := hosts[0]
	sink := d.Sink(target)
	sink.putHTTPResponseCode(500)
	require.True(t, target.OutlierEjected())

	require.Eventually(t, func() bool {
		return !target.OutlierEjected()
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []*upstream.Host{target}, events.unejections)
}

func TestDetectorRemovedHostStopsTrackingSink(t *testing.T) {
	hs, hosts := hostSetWith(2)
	d := New(Config{Consecutive5xxThreshold: 1, BaseEjectionTime: time.Minute, EjectionFloorPercent: 10}, hs, nil, nil, testLogger(t))
	d.Start()
	defer d.Close()

	target := hosts[0]
	hs.Update([]*upstream.Host{hosts[1]}, nil, []*upstream.Host{target})

	assert.Nil(t, d.Sink(target), "a removed host's sink should be pruned")
}

func TestWeakDetectorClearStopsFurtherReporting(t *testing.T) {
	hs, hosts := hostSetWith(1)
	d := New(Config{Consecutive5xxThreshold: 1, BaseEjectionTime: time.Minute, EjectionFloorPercent: 10}, hs, nil, nil, testLogger(t))
	d.Start()

	sink := d.Sink(hosts[0])
	d.Close()

	// After Close, the sink's weak reference is cleared; reporting must
	// not panic even though the detector has stopped sweeping.
	assert.Nil(t, sink.detector.get())
	assert.NotPanics(t, func() {
		sink.putHTTPResponseCode(500)
	})
}
