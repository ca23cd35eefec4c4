package citations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
)

// fakeGenerator returns a fixed response for every request
type fakeGenerator struct {
	response string
	err      error
	calls    int
}

func (f *fakeGenerator) Generate(_ context.Context, _ *interfaces.GenerateRequest) (*interfaces.GenerateResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &interfaces.GenerateResult{Text: f.response}, nil
}

func (f *fakeGenerator) Name() string { return "fake" }

func newTestEngine(prober *fakeProber, gen interfaces.Generator, authorityDomains []string) *Engine {
	logger := common.GetLogger()
	validator := NewValidator(prober, 5, 0, logger)
	finder := NewFinder(gen, []string{"statista.com"}, logger)
	return NewEngine(validator, finder, authorityDomains, logger)
}

func TestEngineEmptySources(t *testing.T) {
	e := newTestEngine(&fakeProber{}, &fakeGenerator{}, nil)

	result, err := e.Process(context.Background(), &Request{Sources: ""})
	require.NoError(t, err)
	assert.Empty(t, result.CitationsHTML)
	assert.Empty(t, result.CitationMap)
	assert.Zero(t, result.Count)
}

func TestEngineValidCitationsPassThrough(t *testing.T) {
	prober := &fakeProber{results: map[string]*interfaces.ProbeResult{
		"https://example.com/a": {StatusCode: 200, FinalURL: "https://example.com/a"},
		"https://example.com/b": {StatusCode: 200, FinalURL: "https://example.com/b"},
	}}
	e := newTestEngine(prober, &fakeGenerator{}, nil)

	result, err := e.Process(context.Background(), &Request{
		Sources: "[1]: https://example.com/a – First\n[2]: https://example.com/b – Second",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, map[int]string{1: "https://example.com/a", 2: "https://example.com/b"}, result.CitationMap)
	assert.Contains(t, result.CitationsHTML, `id="source-1"`)
	assert.Contains(t, result.CitationsHTML, `<sup>[2]</sup>`)
}

func TestEngineReplacesFailedCitation(t *testing.T) {
	prober := &fakeProber{results: map[string]*interfaces.ProbeResult{
		"https://example.com/ok":          {StatusCode: 200, FinalURL: "https://example.com/ok"},
		"https://replacement.org/article": {StatusCode: 200, FinalURL: "https://replacement.org/article"},
	}}
	gen := &fakeGenerator{response: "https://replacement.org/article"}
	e := newTestEngine(prober, gen, nil)

	result, err := e.Process(context.Background(), &Request{
		Sources: "[1]: https://example.com/ok – Fine\n[2]: https://example.com/dead – Broken",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, "https://replacement.org/article", result.CitationMap[2])
}

func TestEngineDropsUnrepairableAndRenumbers(t *testing.T) {
	prober := &fakeProber{results: map[string]*interfaces.ProbeResult{
		"https://example.com/b": {StatusCode: 200, FinalURL: "https://example.com/b"},
	}}
	gen := &fakeGenerator{response: "no url in this answer"}
	e := newTestEngine(prober, gen, nil)

	result, err := e.Process(context.Background(), &Request{
		Sources: "[1]: https://example.com/dead – Broken\n[2]: https://example.com/b – Fine",
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Count)
	assert.Equal(t, 1, result.Citations[0].Number)
	assert.Equal(t, "https://example.com/b", result.CitationMap[1])
	_, hasTwo := result.CitationMap[2]
	assert.False(t, hasTwo)
}

func TestEngineRejectsAuthorityFallback(t *testing.T) {
	prober := &fakeProber{results: map[string]*interfaces.ProbeResult{
		"https://www.ibm.com":   {StatusCode: 200, FinalURL: "https://www.ibm.com"},
		"https://example.com/a": {StatusCode: 200, FinalURL: "https://example.com/a"},
	}}
	e := newTestEngine(prober, &fakeGenerator{}, []string{"ibm.com"})

	result, err := e.Process(context.Background(), &Request{
		Sources: "[1]: https://www.ibm.com – IBM\n[2]: https://example.com/a – Specific",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, map[int]string{1: "https://example.com/a"}, result.CitationMap)
}

func TestEngineUpgradesDomainOnlyFromGrounding(t *testing.T) {
	prober := &fakeProber{results: map[string]*interfaces.ProbeResult{
		"https://www.ibm.com/reports/data-breach": {StatusCode: 200, FinalURL: "https://www.ibm.com/reports/data-breach"},
	}}
	e := newTestEngine(prober, &fakeGenerator{}, []string{"ibm.com"})

	result, err := e.Process(context.Background(), &Request{
		Sources: "[1]: https://www.ibm.com – IBM",
		GroundingURLs: []interfaces.GroundingURL{
			{URL: "https://www.ibm.com/reports/data-breach", Domain: "ibm.com"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Count)
	assert.Equal(t, "https://www.ibm.com/reports/data-breach", result.CitationMap[1])
}

func TestEngineRejectsForbiddenReplacementDomain(t *testing.T) {
	prober := &fakeProber{}
	gen := &fakeGenerator{response: "https://statista.com/stats/123"}
	e := newTestEngine(prober, gen, nil)

	result, err := e.Process(context.Background(), &Request{
		Sources: "[1]: https://example.com/dead – Broken",
	})
	require.NoError(t, err)
	assert.Zero(t, result.Count)
}
