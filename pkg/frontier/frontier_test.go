package frontier

import (
	"testing"

	"github.com/spf13/afero"
)

type fakeOptions struct{ allowX bool }

func (f fakeOptions) AllowXDomain() bool { return f.allowX }

func TestAcceptRejectsJavascriptScheme(t *testing.T) {
	fs := afero.NewMemMapFs()
	stats := &FillStats{}
	ok := Accept(fakeOptions{}, fs, "/archive", "https://example.com/", "javascript:alert(1)", nil, stats)
	if ok {
		t.Fatal("javascript: scheme must be rejected")
	}
}

func TestAcceptRejectsFragment(t *testing.T) {
	fs := afero.NewMemMapFs()
	stats := &FillStats{}
	ok := Accept(fakeOptions{}, fs, "/archive", "https://example.com/", "https://example.com/page#frag", nil, stats)
	if ok {
		t.Fatal("fragment URLs must be rejected")
	}
}

func TestAcceptRejectsCrossDomainUnlessAllowed(t *testing.T) {
	fs := afero.NewMemMapFs()
	stats := &FillStats{}
	if Accept(fakeOptions{allowX: false}, fs, "/archive", "https://example.com/", "https://other.org/page", nil, stats) {
		t.Fatal("cross-domain must be rejected when not allowed")
	}
	if !Accept(fakeOptions{allowX: true}, fs, "/archive", "https://example.com/", "https://other.org/page", nil, stats) {
		t.Fatal("cross-domain must be accepted when allowed")
	}
}

func TestAcceptRejectsDuplicateInDraining(t *testing.T) {
	fs := afero.NewMemMapFs()
	draining := New()
	draining.Insert("https://example.com/dup", &FillStats{})

	stats := &FillStats{}
	if Accept(fakeOptions{}, fs, "/archive", "https://example.com/", "https://example.com/dup", draining, stats) {
		t.Fatal("URL present in draining frontier must be rejected as a twin")
	}
	if stats.Twins != 1 {
		t.Fatalf("expected 1 twin, got %d", stats.Twins)
	}
}

func TestAcceptAllowsWhenDrainingNil(t *testing.T) {
	fs := afero.NewMemMapFs()
	stats := &FillStats{}
	if !Accept(fakeOptions{}, fs, "/archive", "https://example.com/", "https://example.com/new", nil, stats) {
		t.Fatal("nil draining frontier must not reject anything as a duplicate")
	}
}

func TestInsertRejectsDuplicateWithinFrontier(t *testing.T) {
	f := New()
	stats := &FillStats{}
	f.Insert("https://example.com/a", stats)
	f.Insert("https://example.com/b", stats)
	f.Insert("https://example.com/a", stats)

	if stats.Inserted != 2 {
		t.Fatalf("expected 2 inserted, got %d", stats.Inserted)
	}
	if stats.Dups != 1 {
		t.Fatalf("expected 1 dup, got %d", stats.Dups)
	}
	if f.NrUsed() != 2 {
		t.Fatalf("expected 2 used, got %d", f.NrUsed())
	}
}

func TestInsertManyUniqueSurviveGrowth(t *testing.T) {
	f := New()
	stats := &FillStats{}
	for i := 0; i < 10000; i++ {
		f.Insert(urlFor(i), stats)
	}
	if f.NrUsed() != 10000 {
		t.Fatalf("expected 10000 used, got %d", f.NrUsed())
	}

	seen := map[string]bool{}
	f.Walk(func(url string, nr *int) { seen[url] = true })
	if len(seen) != 10000 {
		t.Fatalf("expected 10000 distinct urls visited, got %d", len(seen))
	}
}

func TestWalkVisitsInsertionOrderNotSortedOrder(t *testing.T) {
	f := New()
	stats := &FillStats{}
	inserted := []string{
		"https://example.com/zzz",
		"https://example.com/aaa",
		"https://example.com/mmm",
	}
	for _, u := range inserted {
		f.Insert(u, stats)
	}

	var got []string
	f.Walk(func(url string, nr *int) { got = append(got, url) })

	if len(got) != len(inserted) {
		t.Fatalf("expected %d urls, got %d", len(inserted), len(got))
	}
	for i, u := range inserted {
		if got[i] != u {
			t.Fatalf("walk order = %v, want insertion order %v", got, inserted)
		}
	}
}

func urlFor(i int) string {
	const letters = "0123456789abcdefghijklmnopqrstuvwxyz"
	b := []byte("https://example.com/")
	n := i
	for j := 0; j < 6; j++ {
		b = append(b, letters[n%len(letters)])
		n /= len(letters)
	}
	return string(b)
}

func TestGenerationSwapPromotesFillingSide(t *testing.T) {
	g := NewGeneration("https://example.com/seed")
	if g.Draining().NrUsed() != 1 {
		t.Fatalf("seed should be in draining, got %d used", g.Draining().NrUsed())
	}

	stats := &FillStats{}
	g.Filling().Insert("https://example.com/next", stats)

	// drain the single seed entry, simulating the engine consuming it
	drained := g.Draining()
	drained.Teardown()
	if drained.NrUsed() != 0 {
		t.Fatal("teardown should empty the frontier")
	}

	g.Swap()
	if g.Draining().NrUsed() != 1 {
		t.Fatalf("after swap, new draining side should hold the filled link, got %d", g.Draining().NrUsed())
	}
}
