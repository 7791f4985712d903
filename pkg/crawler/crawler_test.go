package crawler

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamh86/WebReaper/pkg/frontier"
	"github.com/gamh86/WebReaper/pkg/robotspolicy"
	"github.com/gamh86/WebReaper/pkg/urlutil"
)

type fakeOptions struct {
	allowXDomain bool
	useTLS       bool
	depth        int
	delay        int
	threshold    int
	followRobots bool
}

func (o fakeOptions) AllowXDomain() bool  { return o.allowXDomain }
func (o fakeOptions) UseTLS() bool        { return o.useTLS }
func (o fakeOptions) Depth() int          { return o.depth }
func (o fakeOptions) Delay() int          { return o.delay }
func (o fakeOptions) LinksThreshold() int { return o.threshold }
func (o fakeOptions) UserAgent() string   { return "webreaper-test" }
func (o fakeOptions) FollowRobots() bool  { return o.followRobots }

type fakeDisplay struct {
	opStatus []string
}

func (d *fakeDisplay) UpdateCurrentURL(string)   {}
func (d *fakeDisplay) UpdateCurrentLocal(string) {}
func (d *fakeDisplay) UpdateStatusCode(int)      {}
func (d *fakeDisplay) UpdateOperationStatus(format string, args ...any) {
	d.opStatus = append(d.opStatus, fmt.Sprintf(format, args...))
}
func (d *fakeDisplay) UpdateConnectionState(string, string, ConnState) {}
func (d *fakeDisplay) UpdateCacheStatus(frontier.Side, CacheStatus)    {}
func (d *fakeDisplay) UpdateCacheNCount(frontier.Side, int)            {}
func (d *fakeDisplay) PutErrorMsg(format string, args ...any)         {}
func (d *fakeDisplay) ClearErrorMsg()                                  {}

// TestRunArchivesSeedAndDirectLinks covers spec scenario 1: a seed page
// linking to two pages, crawled at depth 1, should archive all three.
func TestRunArchivesSeedAndDirectLinks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Write([]byte(`<html><body><a href="/a">A</a><a href="/b">B</a></body></html>`))
		case "/a":
			w.Write([]byte(`<html><body>page a</body></html>`))
		case "/b":
			w.Write([]byte(`<html><body>page b</body></html>`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	opts := fakeOptions{depth: 1, threshold: 1000, followRobots: true}
	disp := &fakeDisplay{}
	fs := afero.NewMemMapFs()
	const archiveRoot = "/archive"

	e := New(opts, fs, archiveRoot, disp, robotspolicy.AllowAll{})

	seed := server.URL + "/"
	summary, err := e.Run(context.Background(), seed)
	require.NoError(t, err)

	assert.Equal(t, 3, e.NrReaped())
	assert.Equal(t, 3, summary.NrReaped)
	assert.Len(t, summary.Pages, 3)
	assert.Len(t, summary.Links, 2, "seed's two outgoing links should be reported")

	host := urlutil.ParseHost(seed)
	for _, p := range []string{"index.html", "a.html", "b.html"} {
		local := path.Join(archiveRoot, host, p)
		ok, err := afero.Exists(fs, local)
		require.NoError(t, err)
		assert.True(t, ok, "expected archived file %s to exist", local)
	}
}

// TestRunUpgradesToTLSOnRedirect covers spec scenario 3: a plaintext
// seed returning a 301 to an https:// Location causes the engine to
// upgrade the connection and retry.
func TestRunUpgradesToTLSOnRedirect(t *testing.T) {
	tlsServer := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>secure page</body></html>`))
	}))
	defer tlsServer.Close()

	secureHost := urlutil.ParseHost(tlsServer.URL + "/")

	plainServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "https://"+secureHost+"/")
		w.WriteHeader(http.StatusMovedPermanently)
	}))
	defer plainServer.Close()

	pool := x509.NewCertPool()
	pool.AddCert(tlsServer.Certificate())

	opts := fakeOptions{depth: 0, threshold: 1000, followRobots: false}
	disp := &fakeDisplay{}
	fs := afero.NewMemMapFs()
	const archiveRoot = "/archive"

	e := New(opts, fs, archiveRoot, disp, robotspolicy.AllowAll{})
	e.TLSConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}

	seed := plainServer.URL + "/"
	summary, err := e.Run(context.Background(), seed)
	require.NoError(t, err)

	assert.Equal(t, 1, e.NrReaped())
	assert.Len(t, summary.Pages, 1)

	local := path.Join(archiveRoot, secureHost, "index.html")
	ok, err := afero.Exists(fs, local)
	require.NoError(t, err)
	assert.True(t, ok, "expected archived file %s to exist after tls upgrade", local)
}
