package httpwire

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"github.com/gamh86/WebReaper/pkg/urlutil"
	"github.com/gamh86/WebReaper/pkg/wirebuf"
)

// Synthetic status codes used by the crawl engine's dispatch switch
// alongside real HTTP status codes, matching webreaper.h's FL_HTTP_*
// and HTTP_ALREADY_EXISTS/HTTP_IS_XDOMAIN sentinels.
const (
	StatusAlreadyExists = -100
	StatusIsXDomain     = -101
	StatusSkipLink      = -102
)

// DoRequest sends a HEAD request first to save bandwidth; if the
// target already has a local archive copy it short-circuits with
// StatusAlreadyExists, otherwise it sends the real GET and returns its
// status. Mirrors do_request.
func DoRequest(ctx context.Context, r *Request, fs afero.Fs, archiveRoot string, rbuf *wirebuf.Buf) (int, error) {
	rbuf.Reset()
	if err := r.SendRequest(Head); err != nil {
		return 0, fmt.Errorf("httpwire: DoRequest HEAD send: %w", err)
	}
	// A HEAD response carries headers only; its Content-Length describes
	// the GET body, so only the header block is read here.
	if _, err := ReadUntilEOH(r.Conn, rbuf); err != nil {
		return 0, fmt.Errorf("httpwire: DoRequest HEAD recv: %w: %v", ErrNoEOHSentinel, err)
	}

	status, err := StatusCodeInt(rbuf)
	if err != nil {
		return 0, err
	}
	if status != 200 {
		return status, nil
	}

	if urlutil.LocalArchiveExists(fs, archiveRoot, r.FullURL) {
		return StatusAlreadyExists, nil
	}

	r.CaptureCookie(rbuf)

	if conn, ok := FetchHeader(rbuf, "Connection", 0); ok && strings.EqualFold(conn.Value, "close") {
		if err := r.Conn.Reconnect(ctx); err != nil {
			return 0, fmt.Errorf("httpwire: DoRequest reconnect after close: %w", err)
		}
	}

	rbuf.Reset()
	if err := r.SendRequest(Get); err != nil {
		return 0, fmt.Errorf("httpwire: DoRequest GET send: %w", err)
	}
	if err := RecvResponse(r.Conn, rbuf); err != nil {
		return 0, fmt.Errorf("httpwire: DoRequest GET recv: %w", err)
	}

	status, err = StatusCodeInt(rbuf)
	if err != nil {
		return 0, err
	}
	return status, nil
}
