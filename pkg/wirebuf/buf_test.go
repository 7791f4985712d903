package wirebuf

import "testing"

func TestCollapseShiftRoundTrip(t *testing.T) {
	b := New(64)
	b.AppendString("hello WORLD bye")

	// collapse the 5-byte span "WORLD" at offset 6
	b.Collapse(6, 5)
	if got := b.String(); got != "hello  bye" {
		t.Fatalf("after collapse: %q", got)
	}

	// shift open a 5-byte gap at the same offset and fill it
	b.Shift(6, 5)
	b.WriteAt(6, []byte("earth"))
	if got := b.String(); got != "hello earth bye" {
		t.Fatalf("after shift+write: %q", got)
	}
}

func TestIndexFrom(t *testing.T) {
	b := New(16)
	b.AppendString(`<a href="x">`)
	idx := b.IndexFrom(0, []byte(`href="`))
	if idx != 3 {
		t.Fatalf("expected 3, got %d", idx)
	}
	if b.IndexFrom(0, []byte("nope")) != -1 {
		t.Fatal("expected -1 for missing substring")
	}
}

func TestSnip(t *testing.T) {
	b := New(8)
	b.AppendString("trailing/")
	b.Snip(1)
	if got := b.String(); got != "trailing" {
		t.Fatalf("got %q", got)
	}
}
