package worker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mir00r/cluster-manager/internal/runtime"
	"github.com/mir00r/cluster-manager/internal/upstream"
)

func TestAsyncClientDoRewritesRequestToChosenHost(t *testing.T) {
	var gotHost string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHost = r.Host
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	info := clusterInfo("a")
	rt := runtime.NewLoader(nil, nil)
	w := New(0, []*upstream.ClusterInfo{info}, rt, "", "", testLogger(t))

	h := upstream.NewHost(info, srv.Listener.Addr().String(), "", nil)
	w.EnqueueUpdate("a", []*upstream.Host{h}, []*upstream.Host{h}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Loop(ctx)

	require.Eventually(t, func() bool {
		hs, _ := w.HostSet("a")
		return len(hs.Hosts()) == 1
	}, time.Second, 5*time.Millisecond)

	client, err := w.HttpAsyncClient("a")
	require.NoError(t, err)

	// The request targets a host name the load balancer never chose —
	// Do must rewrite it to the host it actually selects before dispatch.
	req := httptest.NewRequest(http.MethodGet, "http://not-the-chosen-host.invalid/", nil)
	req.RequestURI = ""

	resp, err := client.Do(ctx, req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, h.Address(), gotHost)
}

func TestAsyncClientDoReturnsErrorWhenNoHealthyHost(t *testing.T) {
	info := clusterInfo("a")
	rt := runtime.NewLoader(nil, nil)
	w := New(0, []*upstream.ClusterInfo{info}, rt, "", "", testLogger(t))

	client, err := w.HttpAsyncClient("a")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "http://unused.invalid/", nil)
	req.RequestURI = ""

	_, err = client.Do(context.Background(), req)
	assert.Error(t, err)
}
