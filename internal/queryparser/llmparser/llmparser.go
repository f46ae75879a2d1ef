// Package llmparser implements queryparser.Parser on top of an LLM keyword
// extractor, falling back to a deterministic parser whenever the call fails,
// times out, or returns something unusable. The LLM is a soft dependency: it
// can improve recall on ambiguous queries, but it is never load-bearing.
package llmparser

import (
	"context"

	"github.com/helixir/literature-review-service/internal/domain"
	"github.com/helixir/literature-review-service/internal/llm"
	"github.com/helixir/literature-review-service/internal/queryparser"
	"github.com/rs/zerolog"
)

const (
	defaultMaxKeywords = 8
	defaultMinKeywords = 1
)

// Config controls extraction request shape for each call.
type Config struct {
	MaxKeywords int
	MinKeywords int
	Context     string
}

func (c Config) applyDefaults() Config {
	if c.MaxKeywords <= 0 {
		c.MaxKeywords = defaultMaxKeywords
	}
	if c.MinKeywords <= 0 {
		c.MinKeywords = defaultMinKeywords
	}
	return c
}

// Parser extracts structured search signal via an LLM, falling back to a
// deterministic parser on any failure.
type Parser struct {
	fallback  queryparser.Parser
	extractor llm.KeywordExtractor
	cfg       Config
	logger    zerolog.Logger
}

// New builds a Parser. fallback must never be nil; it is what every caller
// ultimately gets when the LLM is unavailable, slow, or wrong.
func New(fallback queryparser.Parser, extractor llm.KeywordExtractor, cfg Config, logger zerolog.Logger) *Parser {
	return &Parser{
		fallback:  fallback,
		extractor: extractor,
		cfg:       cfg.applyDefaults(),
		logger:    logger,
	}
}

// Parse implements queryparser.Parser.
func (p *Parser) Parse(ctx context.Context, text string) (domain.ParsedQuery, error) {
	if p.extractor == nil {
		return p.fallback.Parse(ctx, text)
	}

	result, err := p.extractor.ExtractKeywords(ctx, llm.ExtractionRequest{
		Text:        text,
		Mode:        llm.ExtractionModeQuery,
		MaxKeywords: p.cfg.MaxKeywords,
		MinKeywords: p.cfg.MinKeywords,
		Context:     p.cfg.Context,
	})
	if err != nil {
		p.logger.Warn().Err(err).Str("provider", p.extractor.Provider()).
			Msg("llm query extraction failed, falling back to rule-based parser")
		return p.fallback.Parse(ctx, text)
	}

	parsed := domain.ParsedQuery{
		Keywords:     result.Keywords,
		Authors:      result.Authors,
		Years:        result.Years,
		Institutions: result.Institutions,
	}
	if parsed.IsEmpty() {
		return p.fallback.Parse(ctx, text)
	}

	return parsed, nil
}
