package align

import (
	"reflect"
	"testing"
	"time"

	"github.com/coinscope/readaloud/speech"
)

func timings(words ...string) []speech.WordTiming {
	out := make([]speech.WordTiming, len(words))
	for i, w := range words {
		out[i] = speech.WordTiming{
			Text:     w,
			Start:    time.Duration(i) * 100 * time.Millisecond,
			Duration: 90 * time.Millisecond,
		}
	}
	return out
}

// textIndex unwraps TextIndex for table assertions, folding the
// unmatched case to -1.
func textIndex(m *Map, spoken int) int {
	idx, ok := m.TextIndex(spoken)
	if !ok {
		return -1
	}
	return idx
}

func TestAlignExactMatch(t *testing.T) {
	source := "Bitcoin climbed again today"
	m := Align(timings("Bitcoin", "climbed", "again", "today"), source)

	for i := 0; i < 4; i++ {
		if got := textIndex(m, i); got != i {
			t.Errorf("TextIndex(%d) = %d, want %d", i, got, i)
		}
	}
}

// TestAlignNumberExpansion tests that a digit token absorbs the spoken
// words of its expansion.
func TestAlignNumberExpansion(t *testing.T) {
	source := "The coin gained $500 overnight"
	m := Align(timings("The", "coin", "gained", "five", "hundred", "dollars", "overnight"), source)

	// "$500" is token 3.
	for _, spoken := range []int{3, 4, 5} {
		if got := textIndex(m, spoken); got != 3 {
			t.Errorf("TextIndex(%d) = %d, want 3", spoken, got)
		}
	}
	if got := textIndex(m, 6); got != 4 {
		t.Errorf("TextIndex(6) = %d, want 4", got)
	}
	if got := m.SpokenIndices(3); !reflect.DeepEqual(got, []int{3, 4, 5}) {
		t.Errorf("SpokenIndices(3) = %v, want [3 4 5]", got)
	}
}

// TestAlignPossessiveSplit tests a contraction split across two spoken
// words mapping back to one token.
func TestAlignPossessiveSplit(t *testing.T) {
	source := "the President's remarks moved markets"
	m := Align(timings("the", "president", "s", "remarks", "moved", "markets"), source)

	if got := textIndex(m, 1); got != 1 {
		t.Errorf("TextIndex(1) = %d, want 1", got)
	}
	if got := textIndex(m, 2); got != 1 {
		t.Errorf("TextIndex(2) = %d, want 1", got)
	}
	if inverse := m.SpokenIndices(1); len(inverse) != 2 {
		t.Errorf("len(SpokenIndices(1)) = %d, want 2", len(inverse))
	}
	anchor, ok := m.Anchor(1)
	if !ok || anchor != 1 {
		t.Errorf("Anchor(1) = %d, %v, want 1, true", anchor, ok)
	}
	if got := textIndex(m, 3); got != 2 {
		t.Errorf("TextIndex(3) = %d, want 2", got)
	}
}

// TestAlignSpokenContainsText tests hyphenated source words spoken as a
// single run-together word.
func TestAlignSpokenContainsText(t *testing.T) {
	source := "a well-known anti-union firm"
	m := Align(timings("a", "wellknown", "antiunion", "firm"), source)

	for spoken, want := range []int{0, 1, 2, 3} {
		if got := textIndex(m, spoken); got != want {
			t.Errorf("TextIndex(%d) = %d, want %d", spoken, got, want)
		}
	}
}

// TestAlignInheritPrevious tests that an unmatchable filler word
// inherits the previous spoken word's token.
func TestAlignInheritPrevious(t *testing.T) {
	source := "markets rallied hard"
	m := Align(timings("markets", "umm", "rallied", "hard"), source)

	if got := textIndex(m, 1); got != 0 {
		t.Errorf("TextIndex(1) = %d, want 0 (inherit previous)", got)
	}
	if got := textIndex(m, 2); got != 1 {
		t.Errorf("TextIndex(2) = %d, want 1", got)
	}
}

// TestAlignLeadingUnmatched tests that unmatched spoken words with no
// predecessor stay unmapped.
func TestAlignLeadingUnmatched(t *testing.T) {
	m := Align(timings("umm", "markets"), "markets rallied")
	if _, ok := m.TextIndex(0); ok {
		t.Error("TextIndex(0) matched, want unmatched")
	}
	if got := textIndex(m, 1); got != 0 {
		t.Errorf("TextIndex(1) = %d, want 0", got)
	}
}

// TestAlignMonotonic tests that mapped text indices never move backward
// across a realistic passage.
func TestAlignMonotonic(t *testing.T) {
	source := "Ethereum's price rose 4.2% after the U.S. Federal Reserve held rates steady, " +
		"with traders betting on a $3,000 target by year-end."
	spoken := timings(
		"ethereums", "price", "rose", "four", "point", "two", "percent",
		"after", "the", "us", "federal", "reserve", "held", "rates", "steady",
		"with", "traders", "betting", "on", "a", "three", "thousand", "dollar",
		"target", "by", "yearend",
	)
	m := Align(spoken, source)

	last := -1
	mapped := false
	for i := range spoken {
		idx, ok := m.TextIndex(i)
		if !ok {
			continue
		}
		mapped = true
		if idx < last {
			t.Fatalf("TextIndex(%d) = %d, below previous %d", i, idx, last)
		}
		last = idx
	}
	if !mapped {
		t.Fatal("no spoken words mapped at all")
	}
}

// TestAlignDeterministic tests that two runs over the same input produce
// identical maps.
func TestAlignDeterministic(t *testing.T) {
	source := "Bitcoin fell 3% as the dollar strengthened against the euro"
	spoken := timings("bitcoin", "fell", "three", "percent", "as", "the", "dollar",
		"strengthened", "against", "the", "euro")

	a := Align(spoken, source)
	b := Align(spoken, source)
	for i := range spoken {
		if textIndex(a, i) != textIndex(b, i) {
			t.Errorf("TextIndex(%d) differs between runs: %d vs %d", i, textIndex(a, i), textIndex(b, i))
		}
	}
}

// TestAlignCoverage tests that a clean read maps every spoken word.
func TestAlignCoverage(t *testing.T) {
	source := "Solana and Cardano both posted gains this week while smaller tokens lagged behind the majors"
	spoken := timings("solana", "and", "cardano", "both", "posted", "gains", "this",
		"week", "while", "smaller", "tokens", "lagged", "behind", "the", "majors")

	m := Align(spoken, source)
	mapped := 0
	for i := range spoken {
		if _, ok := m.TextIndex(i); ok {
			mapped++
		}
	}
	if mapped < len(spoken) {
		t.Errorf("mapped %d of %d spoken words", mapped, len(spoken))
	}
}

func TestAlignEmptyInputs(t *testing.T) {
	m := Align(nil, "some text here")
	if got := m.SpokenCount(); got != 0 {
		t.Errorf("SpokenCount() = %d, want 0", got)
	}
	m = Align(timings("hello"), "")
	if _, ok := m.TextIndex(0); ok {
		t.Error("TextIndex(0) matched against empty source")
	}
}

func TestTokenForSpan(t *testing.T) {
	source := "markets rallied hard"
	m := Align(timings("markets", "rallied", "hard"), source)

	tok, ok := m.TokenFor(1)
	if !ok {
		t.Fatal("TokenFor(1) not ok")
	}
	if source[tok.Start:tok.End] != "rallied" {
		t.Errorf("TokenFor(1) span = %q, want %q", source[tok.Start:tok.End], "rallied")
	}
}
