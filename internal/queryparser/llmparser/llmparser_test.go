package llmparser

import (
	"context"
	"errors"
	"testing"

	"github.com/helixir/literature-review-service/internal/domain"
	"github.com/helixir/literature-review-service/internal/llm"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExtractor struct {
	result *llm.ExtractionResult
	err    error
}

func (s *stubExtractor) ExtractKeywords(_ context.Context, _ llm.ExtractionRequest) (*llm.ExtractionResult, error) {
	return s.result, s.err
}

func (s *stubExtractor) Provider() string { return "stub" }
func (s *stubExtractor) Model() string    { return "stub-model" }

type stubFallback struct {
	called bool
	result domain.ParsedQuery
}

func (s *stubFallback) Parse(_ context.Context, _ string) (domain.ParsedQuery, error) {
	s.called = true
	return s.result, nil
}

func TestParse_UsesLLMResultWhenSuccessful(t *testing.T) {
	t.Parallel()

	extractor := &stubExtractor{result: &llm.ExtractionResult{
		Keywords: []string{"gene editing"},
		Authors:  []string{"Jennifer Doudna"},
	}}
	fallback := &stubFallback{}

	p := New(fallback, extractor, Config{}, zerolog.Nop())
	result, err := p.Parse(t.Context(), "papers by Jennifer Doudna on gene editing")

	require.NoError(t, err)
	assert.Equal(t, []string{"gene editing"}, result.Keywords)
	assert.Equal(t, []string{"Jennifer Doudna"}, result.Authors)
	assert.False(t, fallback.called)
}

func TestParse_FallsBackOnExtractorError(t *testing.T) {
	t.Parallel()

	extractor := &stubExtractor{err: errors.New("upstream timeout")}
	fallback := &stubFallback{result: domain.ParsedQuery{Keywords: []string{"fallback"}}}

	p := New(fallback, extractor, Config{}, zerolog.Nop())
	result, err := p.Parse(t.Context(), "some query")

	require.NoError(t, err)
	assert.True(t, fallback.called)
	assert.Equal(t, []string{"fallback"}, result.Keywords)
}

func TestParse_FallsBackOnEmptyExtraction(t *testing.T) {
	t.Parallel()

	extractor := &stubExtractor{result: &llm.ExtractionResult{}}
	fallback := &stubFallback{result: domain.ParsedQuery{Keywords: []string{"fallback"}}}

	p := New(fallback, extractor, Config{}, zerolog.Nop())
	result, err := p.Parse(t.Context(), "some query")

	require.NoError(t, err)
	assert.True(t, fallback.called)
	assert.Equal(t, []string{"fallback"}, result.Keywords)
}

func TestParse_NilExtractorAlwaysFallsBack(t *testing.T) {
	t.Parallel()

	fallback := &stubFallback{result: domain.ParsedQuery{Keywords: []string{"fallback"}}}

	p := New(fallback, nil, Config{}, zerolog.Nop())
	result, err := p.Parse(t.Context(), "some query")

	require.NoError(t, err)
	assert.True(t, fallback.called)
	assert.Equal(t, []string{"fallback"}, result.Keywords)
}

func TestConfig_AppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{}.applyDefaults()
	assert.Equal(t, defaultMaxKeywords, cfg.MaxKeywords)
	assert.Equal(t, defaultMinKeywords, cfg.MinKeywords)
}
