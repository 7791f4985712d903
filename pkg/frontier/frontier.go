// Package frontier implements the URL frontier: a binary search tree of
// pending links, arena-allocated, held as one of a DRAINING/FILLING
// pair during a crawl. The crawl engine drains one side while filling
// the other, then swaps.
package frontier

import (
	"strings"

	"github.com/spf13/afero"

	"github.com/gamh86/WebReaper/pkg/arenacache"
	"github.com/gamh86/WebReaper/pkg/urlutil"
)

// Side names which half of a Generation a Frontier currently plays.
type Side int

const (
	Draining Side = iota
	Filling
)

func (s Side) String() string {
	if s == Draining {
		return "draining"
	}
	return "filling"
}

// linkRecord is the arena-resident BST node.
type linkRecord struct {
	url         string
	left, right int32
	nrRequests  int
}

const maxURLLen = 256

var disallowedTokens = []string{
	"javascript:",
	"data:image",
	".exe",
	".dll",
	"cgi-",
}

// Frontier is one side of a DRAINING/FILLING pair: an arena-backed BST
// of pending links.
type Frontier struct {
	cache *arenacache.Cache[linkRecord]
	root  int32
}

// New creates an empty Frontier.
func New() *Frontier {
	return &Frontier{
		cache: arenacache.New[linkRecord](64, nil, func(r *linkRecord) {
			r.url = ""
			r.left = arenacache.Nil
			r.right = arenacache.Nil
			r.nrRequests = 0
		}),
		root: arenacache.Nil,
	}
}

// NrUsed returns the number of links currently held.
func (f *Frontier) NrUsed() int {
	if f == nil || f.cache == nil {
		return 0
	}
	return f.cache.NrUsed()
}

// Teardown releases every node back to the arena's free list and clears
// the tree root, ready for the next fill cycle. Mirrors
// deconstruct_btree + wr_cache_clear_all.
func (f *Frontier) Teardown() {
	f.cache.ClearAll()
	f.root = arenacache.Nil
}

// FillStats reports the duplicate-suppression counters accumulated by
// the most recent sequence of Accept/Insert calls, mirroring the
// original's nr_already/nr_twins/nr_dups/nr_urls_call bookkeeping.
type FillStats struct {
	Already int // rejected: already has a local archive
	Twins    int // rejected: duplicate found in the draining frontier
	Dups     int // rejected: duplicate already present in this frontier
	Inserted int
}

// Options reports whether a named crawl option is enabled. It is the
// out-of-scope Options collaborator; the frontier only ever calls
// through this interface.
type Options interface {
	AllowXDomain() bool
}

// Accept decides whether candidateURL may be added to this (filling)
// frontier, checking it against draining for cross-generation
// duplicates. It mirrors __url_acceptable. originURL is the URL of the
// page the candidate was found on, used for the cross-domain check.
func Accept(opts Options, fs afero.Fs, archiveRoot, originURL, candidateURL string, draining *Frontier, stats *FillStats) bool {
	if len(candidateURL) >= maxURLLen {
		return false
	}

	lower := strings.ToLower(candidateURL)
	if !strings.HasPrefix(lower, "http:") && !strings.HasPrefix(lower, "https:") {
		return false
	}

	if urlutil.LocalArchiveExists(fs, archiveRoot, candidateURL) {
		stats.Already++
		return false
	}

	if strings.ContainsRune(candidateURL, '#') {
		return false
	}

	for _, tok := range disallowedTokens {
		if strings.Contains(candidateURL, tok) {
			return false
		}
	}

	if urlutil.IsXDomain(originURL, candidateURL) && !opts.AllowXDomain() {
		return false
	}

	// Check the DRAINING frontier for a duplicate. Duplicate suppression
	// is strict only within a generation pair at a time; a URL already
	// reaped two generations ago can reappear, matching spec.md's
	// documented simplification.
	if draining != nil && draining.cache != nil {
		draining.cache.Lock()
		nptr := draining.root
		for nptr != arenacache.Nil {
			node := draining.cache.At(nptr)
			if node.url != "" && node.url == candidateURL {
				stats.Twins++
				draining.cache.Unlock()
				return false
			}
			if candidateURL < node.url {
				nptr = node.left
			} else {
				nptr = node.right
			}
		}
		draining.cache.Unlock()
	}

	return true
}

// Insert adds url into the frontier's BST, rejecting it silently (and
// incrementing stats.Dups) if an identical URL is already present.
// Mirrors __insert_link, minus the pointer re-derivation dance: because
// nodes are addressed by int32 arena indices, a concurrent grow during
// the walk can never invalidate nptr.
func (f *Frontier) Insert(url string, stats *FillStats) {
	f.cache.Lock()
	defer f.cache.Unlock()

	if f.root == arenacache.Nil {
		ref, node := f.cache.Alloc()
		node.url = url
		node.left = arenacache.Nil
		node.right = arenacache.Nil
		f.root = ref
		stats.Inserted++
		return
	}

	nptr := f.root
	for {
		node := f.cache.At(nptr)
		if node.url != "" && node.url == url {
			stats.Dups++
			return
		}
		if url < node.url {
			if node.left == arenacache.Nil {
				ref, child := f.cache.Alloc()
				child.url = url
				child.left = arenacache.Nil
				child.right = arenacache.Nil
				f.cache.At(nptr).left = ref
				stats.Inserted++
				return
			}
			nptr = node.left
		} else {
			if node.right == arenacache.Nil {
				ref, child := f.cache.Alloc()
				child.url = url
				child.left = arenacache.Nil
				child.right = arenacache.Nil
				f.cache.At(nptr).right = ref
				stats.Inserted++
				return
			}
			nptr = node.right
		}
	}
}

// Walk visits every URL in the frontier in arena order — the order the
// links were discovered and inserted — the way the engine drains one
// side of the generation pair. The BST built by Insert exists only to
// give Accept/Insert an O(log n) duplicate lookup; it is never used to
// order a drain.
func (f *Frontier) Walk(visit func(url string, nrRequests *int)) {
	f.cache.Each(func(ref int32, node *linkRecord) bool {
		visit(node.url, &node.nrRequests)
		return true
	})
}

// Generation holds the DRAINING/FILLING pair for one crawl. Exactly two
// Frontiers exist; which plays which role is tracked here as a typed
// side-selector rather than as package-level state.
type Generation struct {
	a, b     *Frontier
	aIsDrain bool
}

// NewGeneration creates a fresh DRAINING/FILLING pair with the seed URL
// already inserted into the draining side.
func NewGeneration(seedURL string) *Generation {
	g := &Generation{a: New(), b: New(), aIsDrain: true}
	g.a.Insert(seedURL, &FillStats{})
	return g
}

// Draining returns the side currently being consumed.
func (g *Generation) Draining() *Frontier {
	if g.aIsDrain {
		return g.a
	}
	return g.b
}

// Filling returns the side currently being populated.
func (g *Generation) Filling() *Frontier {
	if g.aIsDrain {
		return g.b
	}
	return g.a
}

// Swap tears down the (now-empty) draining side and flips roles, so the
// side that was being filled becomes the new draining side.
func (g *Generation) Swap() {
	g.Draining().Teardown()
	g.aIsDrain = !g.aIsDrain
}
