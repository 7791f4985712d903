// Package urlutil implements the URL parsing and filesystem-mapping
// helpers shared by the frontier, the HTTP client, and the archiver:
// splitting a URL into host/page components, building full and local
// URLs, and deciding whether a URL crosses a domain boundary or already
// has a local archive copy.
package urlutil

import (
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/net/publicsuffix"
)

const (
	httpPrefix  = "http://"
	httpsPrefix = "https://"
)

// ParseHost extracts the "host[:port]" portion of a URL, matching
// http_parse_host: strip the scheme, then take everything up to the
// first '/'.
func ParseHost(rawurl string) string {
	p := stripScheme(rawurl)
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return p
}

// ParsePage extracts the path+query portion of a URL, matching
// http_parse_page: strip the scheme and any trailing '/', then take
// everything from the first remaining '/' onward. An empty result
// becomes "/".
func ParsePage(rawurl string) string {
	p := stripScheme(rawurl)
	p = strings.TrimSuffix(p, "/")

	i := strings.IndexByte(p, '/')
	if i < 0 {
		return "/"
	}
	return p[i:]
}

func stripScheme(rawurl string) string {
	if strings.HasPrefix(rawurl, httpsPrefix) {
		return rawurl[len(httpsPrefix):]
	}
	if strings.HasPrefix(rawurl, httpPrefix) {
		return rawurl[len(httpPrefix):]
	}
	return rawurl
}

// MakeFullURL resolves a possibly-relative URL found on a page against
// that page's own full URL, producing an absolute URL. Mirrors
// make_full_url.
func MakeFullURL(pageFullURL, ref string) (string, error) {
	base, err := url.Parse(pageFullURL)
	if err != nil {
		return "", err
	}
	resolved, err := base.Parse(ref)
	if err != nil {
		return "", err
	}
	return resolved.String(), nil
}

// MakeLocalURL maps an absolute URL onto the local archive filesystem
// path it would be (or is) stored at, rooted at archiveRoot. Mirrors
// make_local_url: $ROOT/<host>/<path, '?' replaced with '_'>[.html].
func MakeLocalURL(archiveRoot, fullURL string) string {
	host := ParseHost(fullURL)
	page := ParsePage(fullURL)

	page = strings.ReplaceAll(page, "?", "_")
	if page == "" || page == "/" {
		page = "/index.html"
	} else if path.Ext(page) == "" {
		page = page + ".html"
	}

	return path.Join(archiveRoot, host, page)
}

// LocalArchiveExists reports whether fullURL already has a local archive
// file under archiveRoot, using fs so tests can substitute
// afero.NewMemMapFs(). Mirrors local_archive_exists.
func LocalArchiveExists(fs afero.Fs, archiveRoot, fullURL string) bool {
	local := MakeLocalURL(archiveRoot, fullURL)
	ok, err := afero.Exists(fs, local)
	return err == nil && ok
}

// IsXDomain reports whether candidate's registrable domain (eTLD+1)
// differs from origin's. Mirrors is_xdomain, backed by publicsuffix
// instead of naive hostname string comparison.
func IsXDomain(origin, candidate string) bool {
	oh := ParseHost(origin)
	ch := ParseHost(candidate)

	oh = stripPort(oh)
	ch = stripPort(ch)

	oEtld, err1 := publicsuffix.EffectiveTLDPlusOne(oh)
	cEtld, err2 := publicsuffix.EffectiveTLDPlusOne(ch)
	if err1 != nil || err2 != nil {
		return !strings.EqualFold(oh, ch)
	}
	return !strings.EqualFold(oEtld, cEtld)
}

func stripPort(host string) string {
	if i := strings.IndexByte(host, ':'); i >= 0 {
		return host[:i]
	}
	return host
}

// EnsureLocalDirs creates every directory component of localPath (all
// but the final filename segment) under fs. Mirrors check_local_dirs.
func EnsureLocalDirs(fs afero.Fs, localPath string) error {
	dir := path.Dir(localPath)
	return fs.MkdirAll(dir, os.FileMode(0o700))
}
