// Package display implements the out-of-scope Display collaborator: a
// minimal line-buffered terminal adapter plus structured logging, so the
// crawl engine has something concrete to drive. It stands in for the
// original's full-screen ANSI dashboard, which is explicitly out of
// scope; only the method surface (update_current_url,
// update_operation_status, put_error_msg, clear_error_msg, ...) carries
// over.
package display

import (
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/gamh86/WebReaper/pkg/crawler"
	"github.com/gamh86/WebReaper/pkg/frontier"
)

// ConnState and CacheStatus are aliased from pkg/crawler, which defines
// them at their point of consumption; Terminal implements crawler.Display
// against those same types rather than a parallel set of its own.
type ConnState = crawler.ConnState
type CacheStatus = crawler.CacheStatus

const (
	ConnConnecting = crawler.ConnConnecting
	ConnConnected  = crawler.ConnConnected
	ConnClosed     = crawler.ConnClosed
)

const (
	CacheFilling  = crawler.CacheFilling
	CacheDraining = crawler.CacheDraining
	CacheFull     = crawler.CacheFull
)

func cacheStatusString(s CacheStatus) string {
	switch s {
	case CacheDraining:
		return "draining"
	case CacheFull:
		return "full"
	default:
		return "filling"
	}
}

// Terminal is the concrete Display adapter consumed by the crawl
// engine. All updates are serialized on mu and never held across a
// blocking I/O call made by the engine.
type Terminal struct {
	mu  sync.Mutex
	out io.Writer
	log zerolog.Logger
}

// New builds a Terminal writing human-readable lines to out and
// structured events through log.
func New(out io.Writer, log zerolog.Logger) *Terminal {
	return &Terminal{out: out, log: log}
}

func (t *Terminal) UpdateCurrentURL(url string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "Reaping %s\n", url)
}

func (t *Terminal) UpdateCurrentLocal(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if path == "" {
		return
	}
	fmt.Fprintf(t.out, "  Created %s\n", path)
}

func (t *Terminal) UpdateStatusCode(code int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "  status %d\n", code)
}

func (t *Terminal) UpdateOperationStatus(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "  %s\n", fmt.Sprintf(format, args...))
}

func (t *Terminal) UpdateConnectionState(host, ip string, state ConnState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := map[ConnState]string{ConnConnecting: "connecting", ConnConnected: "connected", ConnClosed: "closed"}
	fmt.Fprintf(t.out, "  connection %s (%s %s)\n", names[state], host, ip)
	t.log.Info().Str("host", host).Str("ip", ip).Str("state", names[state]).Msg("connection state")
}

func (t *Terminal) UpdateCacheStatus(side frontier.Side, status CacheStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "  cache[%s] %s\n", side, cacheStatusString(status))
}

func (t *Terminal) UpdateCacheNCount(side frontier.Side, count int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "  cache[%s] count=%d\n", side, count)
}

func (t *Terminal) PutErrorMsg(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(t.out, "error: %s\n", msg)
	t.log.Error().Msg(msg)
}

func (t *Terminal) ClearErrorMsg() {
	t.mu.Lock()
	defer t.mu.Unlock()
}
