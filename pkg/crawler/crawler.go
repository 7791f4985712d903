// Package crawler drives the outer BFS loop: drain one frontier
// generation while filling the next, dispatching on HTTP status the way
// reap/do_request/archive_page do in the original implementation, with
// link extraction and rewriting and archiving bolted on per URL.
package crawler

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"github.com/gamh86/WebReaper/internal/models"
	"github.com/gamh86/WebReaper/pkg/frontier"
	"github.com/gamh86/WebReaper/pkg/httpwire"
	"github.com/gamh86/WebReaper/pkg/linkrewrite"
	"github.com/gamh86/WebReaper/pkg/robotspolicy"
	"github.com/gamh86/WebReaper/pkg/urlutil"
	"github.com/gamh86/WebReaper/pkg/wireconn"
	"github.com/gamh86/WebReaper/pkg/wirebuf"
)

// ConnState and CacheStatus are the display-facing enums the engine
// reports through the Display interface.
type ConnState int

const (
	ConnConnecting ConnState = iota
	ConnConnected
	ConnClosed
)

type CacheStatus int

const (
	CacheFilling CacheStatus = iota
	CacheDraining
	CacheFull
)

// Display is the out-of-scope dashboard collaborator; the engine only
// ever calls through this interface.
type Display interface {
	UpdateCurrentURL(url string)
	UpdateCurrentLocal(path string)
	UpdateStatusCode(code int)
	UpdateOperationStatus(format string, args ...any)
	UpdateConnectionState(host, ip string, state ConnState)
	UpdateCacheStatus(side frontier.Side, status CacheStatus)
	UpdateCacheNCount(side frontier.Side, count int)
	PutErrorMsg(format string, args ...any)
	ClearErrorMsg()
}

const readBufSize = 64 * 1024

// linksThresholdDefault mirrors NR_LINKS_THRESHOLD when Options reports
// a non-positive value.
const linksThresholdDefault = 5000

// Engine owns one crawl's frontier generation pair and drives it to
// completion. Mirrors the state reap() closes over: current_depth,
// cache1/cache2 (here frontier.Generation), nr_reaped.
type Engine struct {
	opts    Options
	fs      afero.Fs
	archive string
	disp    Display
	robots  robotspolicy.Evaluator

	// TLSConfig, if set, is handed to every wireconn.Conn the engine
	// opens, overriding the system trust store. Tests use this to point
	// RootCAs at a test server's self-signed certificate.
	TLSConfig *tls.Config

	seedHost string
	gen      *frontier.Generation

	currentDepth int
	nrReaped     int

	summary models.CrawlSummary
	fatal   error
}

// New builds an Engine ready to crawl into archiveRoot; the seed URL is
// given to Run.
func New(opts Options, fs afero.Fs, archiveRoot string, disp Display, robots robotspolicy.Evaluator) *Engine {
	if robots == nil {
		robots = robotspolicy.AllowAll{}
	}
	return &Engine{
		opts:    opts,
		fs:      fs,
		archive: archiveRoot,
		disp:    disp,
		robots:  robots,
	}
}

// NrReaped returns the number of pages written to the local archive so
// far.
func (e *Engine) NrReaped() int { return e.nrReaped }

// Run crawls seedURL to the configured depth, archiving pages under the
// engine's archive root, and returns a summary of what it did. Mirrors
// reap's outer loop.
func (e *Engine) Run(ctx context.Context, seedURL string) (models.CrawlSummary, error) {
	e.seedHost = urlutil.ParseHost(seedURL)
	e.gen = frontier.NewGeneration(seedURL)
	e.summary = models.CrawlSummary{SeedURL: seedURL, StartedAt: time.Now()}

	conn := &wireconn.Conn{
		Host:        e.seedHost,
		PrimaryHost: e.seedHost,
		UseTLS:      e.opts.UseTLS(),
		TLSConfig:   e.TLSConfig,
	}
	if err := conn.Open(ctx); err != nil {
		return e.summary, fmt.Errorf("crawler: initial connect to %s: %w", e.seedHost, err)
	}
	e.disp.UpdateConnectionState(conn.Host, "", ConnConnected)

	rbuf := wirebuf.New(readBufSize)

	// A generation at current_depth is always drained before the depth
	// boundary is checked, so a crawl_depth of N drains N+1 generations
	// (the seed plus N hops) rather than N — otherwise the seed's own
	// links would never be fetched for crawl_depth=1.
	for {
		draining := e.gen.Draining()
		filling := e.gen.Filling()

		e.disp.UpdateCacheStatus(frontier.Draining, CacheDraining)
		e.disp.UpdateCacheStatus(frontier.Filling, CacheFilling)
		e.disp.UpdateCacheNCount(frontier.Draining, draining.NrUsed())

		var walkErr error
		draining.Walk(func(pageURL string, nrRequests *int) {
			if e.fatal != nil || walkErr != nil {
				return
			}
			if pageURL == "" {
				return
			}
			*nrRequests++

			if err := e.reapOne(ctx, conn, rbuf, pageURL, filling, draining); err != nil {
				walkErr = err
			}
		})
		if walkErr != nil {
			e.summary.FinishedAt = time.Now()
			return e.summary, walkErr
		}
		if e.fatal != nil {
			e.summary.FinishedAt = time.Now()
			return e.summary, fmt.Errorf("crawler: fatal: %w", e.fatal)
		}

		e.disp.UpdateCacheNCount(frontier.Filling, filling.NrUsed())

		if e.currentDepth >= e.opts.Depth() {
			e.summary.DepthReached = e.currentDepth
			e.summary.FinishedAt = time.Now()
			return e.summary, nil
		}
		e.gen.Swap()
		e.currentDepth++
	}
}

// reapOne performs the sleep, request, dispatch, extract, rewrite, and
// archive steps for a single URL. Mirrors one iteration of reap's inner
// loop plus do_request and archive_page.
func (e *Engine) reapOne(ctx context.Context, conn *wireconn.Conn, rbuf *wirebuf.Buf, pageURL string, filling, draining *frontier.Frontier) error {
	e.disp.UpdateCurrentURL(pageURL)

	if err := e.sleepBlockingSIGINT(); err != nil {
		return err
	}

	host := urlutil.ParseHost(pageURL)
	page := urlutil.ParsePage(pageURL)

	if e.opts.FollowRobots() && !e.robots.Allowed(e.opts.UserAgent(), page) {
		return nil
	}

	if host != conn.Host {
		conn.Host = host
		if err := conn.Reconnect(ctx); err != nil {
			return fmt.Errorf("crawler: reconnect to %s: %w", host, err)
		}
	}

	req := &httpwire.Request{
		Host:        host,
		PrimaryHost: conn.PrimaryHost,
		FullURL:     pageURL,
		Page:        page,
		Conn:        conn,
	}

	status, err := httpwire.DoRequest(ctx, req, e.fs, e.archive, rbuf)
	if err != nil {
		rbuf.Reset()
		if err2 := conn.Reconnect(ctx); err2 != nil {
			return fmt.Errorf("crawler: reconnect after request error: %w", err2)
		}
		return nil
	}

	status, pageURL, err = e.maybeUpgradeToTLS(ctx, conn, rbuf, req, status, pageURL)
	if err != nil {
		return err
	}

	switch status {
	case 200, 404, 410:
		// fall through to archive below

	case 400, 401, 403, 405,
		500, 501, 502, 503, 504, 505:
		rbuf.Reset()
		if err := conn.Reconnect(ctx); err != nil {
			return fmt.Errorf("crawler: reconnect after status %d: %w", status, err)
		}
		e.disp.UpdateStatusCode(status)
		return nil

	case httpwire.StatusIsXDomain, httpwire.StatusAlreadyExists, httpwire.StatusSkipLink:
		return nil

	default:
		// Anything else, including a second redirect in a row for the
		// same URL, falls through to the fatal arm; this is not a
		// general redirect-following engine.
		e.fatal = fmt.Errorf("crawler: unhandled status %d for %s", status, pageURL)
		return nil
	}

	e.disp.UpdateStatusCode(status)

	if linkrewrite.Parseable(pageURL) && filling.NrUsed() < e.threshold() {
		stats, links := linkrewrite.ExtractLinks(e.opts, e.fs, e.archive, pageURL, rbuf, filling, draining)
		e.disp.UpdateCacheNCount(frontier.Filling, filling.NrUsed())
		e.disp.UpdateOperationStatus("extracted %d links (%d already, %d twins, %d dups)",
			stats.Inserted, stats.Already, stats.Twins, stats.Dups)
		e.summary.NrAlready += stats.Already
		e.summary.NrTwins += stats.Twins
		e.summary.NrDups += stats.Dups
		e.summary.Links = append(e.summary.Links, links...)
	}

	return e.archivePage(pageURL, rbuf, status)
}

// maybeUpgradeToTLS implements the supplemental 30x+Location-to-https
// handling: one retry of DoRequest against the upgraded connection and
// rewritten URL, then falls through with whatever status results.
func (e *Engine) maybeUpgradeToTLS(ctx context.Context, conn *wireconn.Conn, rbuf *wirebuf.Buf, req *httpwire.Request, status int, pageURL string) (int, string, error) {
	if status < 300 || status >= 400 || conn.UseTLS {
		return status, pageURL, nil
	}

	loc, ok := httpwire.FetchHeader(rbuf, "Location", 0)
	if !ok || !strings.HasPrefix(strings.ToLower(loc.Value), "https://") {
		return status, pageURL, nil
	}

	newHost := urlutil.ParseHost(loc.Value)
	conn.Host = newHost

	if err := conn.UpgradeToTLS(ctx); err != nil {
		return status, pageURL, fmt.Errorf("crawler: tls upgrade on redirect: %w", err)
	}
	e.disp.UpdateConnectionState(conn.Host, "", ConnConnected)

	req.Host = newHost
	req.FullURL = loc.Value
	req.Page = urlutil.ParsePage(loc.Value)

	rbuf.Reset()
	newStatus, err := httpwire.DoRequest(ctx, req, e.fs, e.archive, rbuf)
	if err != nil {
		return status, pageURL, nil
	}
	return newStatus, loc.Value, nil
}

// archivePage strips the response headers, rewrites links in place, and
// writes the body to the local mirror path. Mirrors archive_page.
func (e *Engine) archivePage(pageURL string, rbuf *wirebuf.Buf, status int) error {
	hdrLen, err := httpwire.ResponseHeaderLen(rbuf)
	if err != nil {
		return nil
	}
	rbuf.Collapse(0, hdrLen)

	if linkrewrite.Parseable(pageURL) {
		linkrewrite.RewriteLinks(e.archive, pageURL, rbuf)
	}

	local := urlutil.MakeLocalURL(e.archive, pageURL)
	if ok, _ := afero.Exists(e.fs, local); ok {
		return nil
	}

	if err := urlutil.EnsureLocalDirs(e.fs, local); err != nil {
		return fmt.Errorf("crawler: create dirs for %s: %w", local, err)
	}

	if err := afero.WriteFile(e.fs, local, rbuf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("crawler: write %s: %w", local, err)
	}

	e.nrReaped++
	e.disp.UpdateCurrentLocal(local)
	e.summary.Pages = append(e.summary.Pages, models.ArchivedPage{
		FullURL:    pageURL,
		LocalPath:  local,
		StatusCode: status,
		Depth:      e.currentDepth,
		FetchedAt:  time.Now(),
	})
	e.summary.NrReaped = e.nrReaped
	return nil
}

func (e *Engine) threshold() int {
	if e.opts.LinksThreshold() <= 0 {
		return linksThresholdDefault
	}
	return e.opts.LinksThreshold()
}

// sleepBlockingSIGINT sleeps for the configured crawl delay with SIGINT
// blocked for the duration, delivering it immediately once the sleep
// boundary is reached. Mirrors step 2 of reap's inner loop.
func (e *Engine) sleepBlockingSIGINT() error {
	delay := time.Duration(e.opts.Delay()) * time.Second
	if delay <= 0 {
		return nil
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT)
	defer signal.Stop(sigCh)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	var interrupted bool
	select {
	case <-timer.C:
	case <-sigCh:
		interrupted = true
		<-timer.C
	}

	if interrupted {
		return fmt.Errorf("crawler: interrupted during crawl delay")
	}
	return nil
}
