// Package linkrewrite implements the link extraction and rewriting
// passes shared by the crawl engine: a single fixed table of URL
// attribute tokens is swept byte-by-byte over a page buffer, once to
// collect candidate links and once (before the page is written to local
// disk) to splice each relative link into its local filesystem path in
// place; absolute http(s) links are left as they are.
package linkrewrite

import (
	"strings"

	"github.com/spf13/afero"

	"github.com/gamh86/WebReaper/internal/models"
	"github.com/gamh86/WebReaper/pkg/frontier"
	"github.com/gamh86/WebReaper/pkg/urlutil"
	"github.com/gamh86/WebReaper/pkg/wirebuf"
)

// urlType is one entry of the fixed attribute-token table swept by both
// ExtractLinks and RewriteLinks.
type urlType struct {
	token string
	delim byte
}

// urlTypes is the fixed attribute table. The original_source retrieval
// did not include the header defining this table verbatim, so its
// contents here are grounded on standard HTML link-bearing attributes
// (href/src) and on the teacher's own extractor, which resolves the same
// two attributes via DOM instead of byte offsets.
var urlTypes = []urlType{
	{`href="`, '"'},
	{`href='`, '\''},
	{`src="`, '"'},
	{`src='`, '\''},
}

const maxURLLen = 1024

// suffixBlacklist marks a URL as not worth parsing further (binary
// assets), mirroring no_url_files / __url_parseable.
var suffixBlacklist = []string{
	".jpg", ".jpeg", ".png", ".gif", ".js", ".css", ".pdf", ".svg", ".ico",
}

// Parseable reports whether rawurl is worth running through ExtractLinks
// and RewriteLinks at all, matching __url_parseable.
func Parseable(rawurl string) bool {
	for _, suf := range suffixBlacklist {
		if hasSuffixFold(rawurl, suf) {
			return false
		}
	}
	return true
}

func hasSuffixFold(s, suf string) bool {
	if len(s) < len(suf) {
		return false
	}
	tail := s[len(s)-len(suf):]
	return hasPrefixFold(tail, suf)
}

// isLocalPath reports whether raw is already a spliced archive-relative
// path under archiveRoot, so a second RewriteLinks pass over an
// already-rewritten body leaves it untouched instead of resolving it as
// a page-relative reference and splicing a second path on top of it.
func isLocalPath(raw, archiveRoot string) bool {
	if archiveRoot == "" {
		return false
	}
	root := strings.TrimSuffix(archiveRoot, "/")
	return raw == root || strings.HasPrefix(raw, root+"/")
}

func hasPrefixFold(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		a, b := s[i], prefix[i]
		if 'A' <= a && a <= 'Z' {
			a += 'a' - 'A'
		}
		if a != b {
			return false
		}
	}
	return true
}

// sweep walks every urlTypes token across buf in order, invoking visit
// with each matched URL span's text and byte offsets. visit returns the
// offset to resume searching from (normally end+1, or the position just
// past a freshly spliced replacement) and whether to stop the whole
// sweep early. Re-reading buf.Len() on every iteration (rather than
// caching a tail value once) is what lets a visitor mutate buf via
// Collapse/Shift mid-sweep without invalidating the loop.
func sweep(buf *wirebuf.Buf, visit func(url string, start, end int) (resumeAt int, stop bool)) {
	for typeIdx := 0; typeIdx < len(urlTypes); typeIdx++ {
		ut := urlTypes[typeIdx]
		savep := 0

		for {
			tail := buf.Len()
			p := buf.IndexFrom(savep, []byte(ut.token))
			if p < 0 || p >= tail {
				break
			}

			urlStart := p + len(ut.token)
			urlEnd := buf.IndexByteFrom(urlStart, ut.delim)
			if urlEnd < 0 {
				break
			}

			rangeLen := urlEnd - urlStart
			if rangeLen == 0 {
				savep = urlStart + 1
				continue
			}

			resumeAt, stop := visit(string(buf.Bytes()[urlStart:urlEnd]), urlStart, urlEnd)
			if stop {
				return
			}

			savep = resumeAt
			if savep >= buf.Len() {
				break
			}
		}
	}
}

// ExtractLinks sweeps buf for every urlTypes match, resolves each into
// an absolute URL against pageFullURL, and offers it to the filling
// frontier (checking draining for cross-generation duplicates) via
// frontier.Accept + Frontier.Insert. Mirrors parse_links. Every link
// actually queued is also returned as a from/to edge, for callers that
// report the crawl's link graph rather than just its counters.
func ExtractLinks(opts frontier.Options, fs afero.Fs, archiveRoot, pageFullURL string, buf *wirebuf.Buf, filling, draining *frontier.Frontier) (frontier.FillStats, []models.Link) {
	var stats frontier.FillStats
	var links []models.Link

	sweep(buf, func(raw string, start, end int) (int, bool) {
		resumeAt := end + 1

		if len(raw) >= maxURLLen {
			return resumeAt, false
		}

		full, err := urlutil.MakeFullURL(pageFullURL, raw)
		if err != nil {
			return resumeAt, false
		}

		if !frontier.Accept(opts, fs, archiveRoot, pageFullURL, full, draining, &stats) {
			return resumeAt, false
		}

		before := stats.Inserted
		filling.Insert(full, &stats)
		if stats.Inserted > before {
			links = append(links, models.Link{FromURL: pageFullURL, ToURL: full})
		}
		return resumeAt, false
	})

	return stats, links
}

// RewriteLinks sweeps buf a second time (after extraction, just before
// archive_page writes the body) and splices every relative link into its
// local archive path in place, leaving absolute http(s) links, and any
// span that is already a local archive path, alone. The latter check is
// what makes a repeat sweep over an already-rewritten body a no-op:
// without it, a second pass would resolve the previously-spliced
// absolute local path as a page-relative reference and splice a second,
// wrong path on top of it.
// Byte offsets are recomputed from buf after each splice rather than
// carried as raw pointers, since wirebuf.Buf addresses content by
// offset, not address — this is where the most subtle invariant in the
// original implementation (offset preservation across a buffer
// reallocation) lives, now automatically satisfied by construction.
// Mirrors replace_with_local_urls.
func RewriteLinks(archiveRoot, pageFullURL string, buf *wirebuf.Buf) {
	sweep(buf, func(raw string, start, end int) (int, bool) {
		resumeAt := end + 1

		if len(raw) >= maxURLLen {
			return resumeAt, false
		}
		if hasPrefixFold(raw, "http://") || hasPrefixFold(raw, "https://") {
			return resumeAt, false
		}
		if isLocalPath(raw, archiveRoot) {
			return resumeAt, false
		}

		full, err := urlutil.MakeFullURL(pageFullURL, raw)
		if err != nil {
			return resumeAt, false
		}
		local := urlutil.MakeLocalURL(archiveRoot, full)

		buf.Collapse(start, end-start)
		buf.Shift(start, len(local))
		buf.WriteAt(start, []byte(local))

		return start + len(local) + 1, false
	})
}
