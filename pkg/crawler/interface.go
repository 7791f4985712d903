package crawler

import "github.com/gamh86/WebReaper/pkg/frontier"

// Options is the subset of run configuration the crawl engine consults
// directly. It composes frontier.Options (cross-domain policy) with the
// TLS and depth/delay knobs the engine itself needs.
type Options interface {
	frontier.Options
	UseTLS() bool
	Depth() int
	Delay() int // seconds, matching crawl_delay's integer sleep() argument
	LinksThreshold() int
	UserAgent() string
	FollowRobots() bool
}
