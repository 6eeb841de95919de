package scanner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxvaer/dirscan/internal/config"
)

// probeServer answers like a small site: /admin and /login.php exist,
// /upload rejects HEAD, /old redirects to /admin and everything else is 404.
// It records the method of every request per path.
type probeServer struct {
	*httptest.Server

	mu      sync.Mutex
	methods map[string][]string
	agents  []string
	headers []string
}

func newProbeServer(t *testing.T) *probeServer {
	t.Helper()
	ps := &probeServer{methods: make(map[string][]string)}
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ps.mu.Lock()
		ps.methods[r.URL.Path] = append(ps.methods[r.URL.Path], r.Method)
		ps.agents = append(ps.agents, r.UserAgent())
		ps.headers = append(ps.headers, r.Header.Get("X-Scan"))
		ps.mu.Unlock()

		switch r.URL.Path {
		case "/admin", "/login.php":
			w.WriteHeader(http.StatusOK)
		case "/private":
			w.WriteHeader(http.StatusForbidden)
		case "/upload":
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			w.WriteHeader(http.StatusOK)
		case "/gone":
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			w.WriteHeader(http.StatusNotFound)
		case "/old":
			http.Redirect(w, r, "/admin", http.StatusFound)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(ps.Close)
	return ps
}

func (ps *probeServer) methodsFor(path string) []string {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return append([]string(nil), ps.methods[path]...)
}

func testOptions() *config.Options {
	opts := config.Defaults()
	opts.Timeout = 2 * time.Second
	return &opts
}

func newTestRequester(t *testing.T, opts *config.Options) *Requester {
	t.Helper()
	if opts == nil {
		opts = testOptions()
	}
	r, err := NewRequester(opts, 4)
	require.NoError(t, err)
	t.Cleanup(r.CloseIdleConnections)
	return r
}

func TestProbeClassification(t *testing.T) {
	ps := newProbeServer(t)
	r := newTestRequester(t, nil)

	tests := []struct {
		path   string
		kind   OutcomeKind
		status int
		method string
	}{
		{path: "/admin", kind: OutcomeFound, status: 200, method: http.MethodHead},
		{path: "/private", kind: OutcomeFound, status: 403, method: http.MethodHead},
		{path: "/nothing", kind: OutcomeNotFound, status: 404, method: http.MethodHead},
		{path: "/upload", kind: OutcomeFound, status: 200, method: http.MethodGet},
		{path: "/gone", kind: OutcomeNotFound, status: 404, method: http.MethodGet},
		{path: "/old", kind: OutcomeFound, status: 200, method: http.MethodHead},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			out := r.Probe(context.Background(), ps.URL+tt.path)
			assert.Equal(t, tt.kind, out.Kind)
			assert.Equal(t, tt.status, out.StatusCode)
			assert.Equal(t, tt.method, out.Method)
			assert.Equal(t, ps.URL+tt.path, out.URL)
			assert.NoError(t, out.Err)
			if tt.kind == OutcomeFound {
				assert.False(t, out.FoundAt.IsZero())
			}
		})
	}
}

func TestProbeHeadOnlyUnless405(t *testing.T) {
	ps := newProbeServer(t)
	r := newTestRequester(t, nil)

	r.Probe(context.Background(), ps.URL+"/admin")
	r.Probe(context.Background(), ps.URL+"/upload")

	assert.Equal(t, []string{http.MethodHead}, ps.methodsFor("/admin"))
	assert.Equal(t, []string{http.MethodHead, http.MethodGet}, ps.methodsFor("/upload"))
}

func TestProbeSendsUserAgentAndHeaders(t *testing.T) {
	ps := newProbeServer(t)
	opts := testOptions()
	opts.Headers = map[string]string{"X-Scan": "yes"}
	r := newTestRequester(t, opts)

	r.Probe(context.Background(), ps.URL+"/admin")

	ps.mu.Lock()
	defer ps.mu.Unlock()
	require.Len(t, ps.agents, 1)
	assert.Equal(t, config.DefaultUserAgent, ps.agents[0])
	assert.Equal(t, "yes", ps.headers[0])
}

func TestProbeTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	dead := srv.URL
	srv.Close()

	r := newTestRequester(t, nil)
	out := r.Probe(context.Background(), dead+"/admin")

	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.Zero(t, out.StatusCode)
	assert.Error(t, out.Err)
}

func TestProbeTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	opts := testOptions()
	opts.Timeout = 50 * time.Millisecond
	r := newTestRequester(t, opts)

	start := time.Now()
	out := r.Probe(context.Background(), srv.URL+"/slow")

	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.Less(t, time.Since(start), time.Second)
}

func TestNewRequesterRejectsBadProxy(t *testing.T) {
	opts := testOptions()
	opts.Proxy = "://bad"
	_, err := NewRequester(opts, 1)
	assert.Error(t, err)
}
