package align

import (
	"sort"
	"strings"

	"github.com/coinscope/readaloud/speech"
)

// Window bounds how far ahead of the cursor the matcher scans. It trades
// accuracy against worst-case O(n*window) cost; 10 is the validated
// default.
const Window = 10

// Map relates spoken-word indices to source-text tokens. It is derived
// state, rebuilt for every session, never persisted.
type Map struct {
	tokens       []Token
	spokenToText []int         // -1 where no match was ever found
	textToSpoken map[int][]int // sorted ascending
}

// numberWords is the fixed lexicon of words the speech engine produces
// when it expands numeric text tokens.
var numberWords = map[string]bool{
	"zero": true, "one": true, "two": true, "three": true, "four": true,
	"five": true, "six": true, "seven": true, "eight": true, "nine": true,
	"ten": true, "eleven": true, "twelve": true, "thirteen": true,
	"fourteen": true, "fifteen": true, "sixteen": true, "seventeen": true,
	"eighteen": true, "nineteen": true, "twenty": true, "thirty": true,
	"forty": true, "fifty": true, "sixty": true, "seventy": true,
	"eighty": true, "ninety": true, "hundred": true, "thousand": true,
	"million": true, "billion": true, "trillion": true,
	"first": true, "second": true, "third": true, "fourth": true,
	"fifth": true, "sixth": true, "seventh": true, "eighth": true,
	"ninth": true, "tenth": true, "twentieth": true, "thirtieth": true,
	"fortieth": true, "fiftieth": true, "hundredth": true,
	"thousandth": true, "millionth": true,
	"dollar": true, "dollars": true, "cent": true, "cents": true,
	"euro": true, "euros": true, "pound": true, "pounds": true,
	"percent": true, "point": true, "oh": true,
}

// Align maps each spoken word onto a source-text token. The sweep is a
// single left-to-right pass with a forward-only cursor; spoken order and
// text order are assumed monotonic. Spoken words that cannot be matched
// inherit the previous match and never raise an error.
func Align(spoken []speech.WordTiming, sourceText string) *Map {
	tokens := Tokenize(sourceText)
	m := &Map{
		tokens:       tokens,
		spokenToText: make([]int, len(spoken)),
		textToSpoken: make(map[int][]int),
	}

	cursor := 0
	prev := -1
	for i, w := range spoken {
		clean := cleanForm(w.Text)
		if clean == "" {
			// Stray punctuation token: inherit the previous match.
			m.spokenToText[i] = prev
			continue
		}

		match, next := matchToken(tokens, cursor, clean)
		if match < 0 {
			// Possessive suffixes and number runs past the window land
			// here; stay with the previous match.
			m.spokenToText[i] = prev
			continue
		}

		m.spokenToText[i] = match
		prev = match
		cursor = next
	}

	for spokenIdx, textIdx := range m.spokenToText {
		if textIdx < 0 {
			continue
		}
		m.textToSpoken[textIdx] = append(m.textToSpoken[textIdx], spokenIdx)
	}
	for _, indices := range m.textToSpoken {
		sort.Ints(indices)
	}
	return m
}

// matchToken scans the bounded window starting at cursor for a token
// matching the clean spoken form. It returns the matched token index (or
// -1) and the new cursor position.
func matchToken(tokens []Token, cursor int, clean string) (match, next int) {
	limit := cursor + Window
	if limit > len(tokens) {
		limit = len(tokens)
	}

	// Exact pass.
	for j := cursor; j < limit; j++ {
		if tokens[j].Clean == clean {
			return j, j + 1
		}
	}

	// Fuzzy passes, in priority order, first hit wins.
	for j := cursor; j < limit; j++ {
		tc := tokens[j].Clean
		if tc == "" {
			continue
		}
		// Text token contains the spoken word: a contraction stem. A
		// suffix token may still belong to this text word, so the cursor
		// stays on it.
		if strings.Contains(tc, clean) {
			return j, j
		}
	}
	for j := cursor; j < limit; j++ {
		tc := tokens[j].Clean
		if tc == "" {
			continue
		}
		// Spoken word contains the text token: abbreviation expansion.
		if strings.Contains(clean, tc) {
			return j, j + 1
		}
	}
	if numberWords[clean] {
		for j := cursor; j < limit; j++ {
			// A run of number words commonly maps to one numeric token
			// ("five hundred dollars" reads "$500"), so the cursor stays.
			if hasDigit(tokens[j].Clean) {
				return j, j
			}
		}
	}

	return -1, cursor
}

// TextIndex returns the source-token index the spoken word resolved to.
func (m *Map) TextIndex(spoken int) (int, bool) {
	if spoken < 0 || spoken >= len(m.spokenToText) {
		return 0, false
	}
	idx := m.spokenToText[spoken]
	if idx < 0 {
		return 0, false
	}
	return idx, true
}

// TokenFor returns the source token the spoken word resolved to.
func (m *Map) TokenFor(spoken int) (Token, bool) {
	idx, ok := m.TextIndex(spoken)
	if !ok {
		return Token{}, false
	}
	return m.tokens[idx], true
}

// SpokenIndices returns the spoken indices that resolved to the given
// source token, sorted ascending. Punctuation splitting can make this set
// larger than one ("President's" collects "President" and "'s").
func (m *Map) SpokenIndices(textIdx int) []int {
	return m.textToSpoken[textIdx]
}

// Anchor returns the canonical spoken index for a source token: the
// smallest member of its inverse set. It is the seek target when the
// playhead sits between sub-tokens of one text word.
func (m *Map) Anchor(textIdx int) (int, bool) {
	indices := m.textToSpoken[textIdx]
	if len(indices) == 0 {
		return 0, false
	}
	return indices[0], true
}

// Tokens returns the source-text tokens the map was built over.
func (m *Map) Tokens() []Token {
	return m.tokens
}

// SpokenCount returns the number of spoken words the map covers.
func (m *Map) SpokenCount() int {
	return len(m.spokenToText)
}
