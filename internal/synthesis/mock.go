package synthesis

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/coinscope/readaloud/speech"
)

// Mock implements speech.Synthesizer for testing. It splits text on
// whitespace and emits one fixed-length timing per word, with silent PCM
// of the matching length.
type Mock struct {
	mu sync.Mutex

	// WordDuration is the synthetic length of every spoken word.
	WordDuration time.Duration

	// Delay simulates backend latency per call.
	Delay time.Duration

	// FailNext holds errors returned by upcoming Synthesize calls, in
	// order. Once drained, calls succeed again.
	FailNext []error

	// SpokenWords overrides the whitespace split when set, so aligner
	// tests can feed engine-style tokenizations.
	SpokenWords []string

	synthCalls   []MockCall
	prepareCalls []MockCall
}

// MockCall records the arguments of one backend call.
type MockCall struct {
	ArticleID string
	Text      string
	Voice     string
	Rate      float64
}

// NewMock creates a mock synthesizer with fast defaults.
func NewMock() *Mock {
	return &Mock{WordDuration: 10 * time.Millisecond}
}

// Synthesize produces a silent clip with per-word timings.
func (m *Mock) Synthesize(ctx context.Context, text, voice string, rate float64) (*speech.Clip, error) {
	m.mu.Lock()
	m.synthCalls = append(m.synthCalls, MockCall{Text: text, Voice: voice, Rate: rate})
	var err error
	if len(m.FailNext) > 0 {
		err = m.FailNext[0]
		m.FailNext = m.FailNext[1:]
	}
	words := m.SpokenWords
	wordDur := m.WordDuration
	delay := m.Delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return nil, err
	}
	if words == nil {
		words = strings.Fields(text)
	}

	timings := make([]speech.WordTiming, len(words))
	for i, w := range words {
		timings[i] = speech.WordTiming{
			Text:     w,
			Start:    time.Duration(i) * wordDur,
			Duration: wordDur,
		}
	}

	sampleRate := 8000
	total := time.Duration(len(words)) * wordDur
	samples := int(total.Seconds() * float64(sampleRate))
	if samples < 1 {
		samples = 1
	}
	return &speech.Clip{
		Audio:      make([]byte, samples*2),
		SampleRate: sampleRate,
		Timings:    timings,
	}, nil
}

// Prepare records a cache-warming call.
func (m *Mock) Prepare(ctx context.Context, articleID, text, voice string, rate float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prepareCalls = append(m.prepareCalls, MockCall{
		ArticleID: articleID,
		Text:      text,
		Voice:     voice,
		Rate:      rate,
	})
	return nil
}

// SynthesizeCalls returns the recorded Synthesize calls.
func (m *Mock) SynthesizeCalls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.synthCalls))
	copy(out, m.synthCalls)
	return out
}

// PrepareCalls returns the recorded Prepare calls.
func (m *Mock) PrepareCalls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.prepareCalls))
	copy(out, m.prepareCalls)
	return out
}

// Fail queues errs to be returned by the next Synthesize calls.
func (m *Mock) Fail(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailNext = append(m.FailNext, errs...)
}
