// Package llm provides LLM-based query understanding for the paper discovery
// service.
//
// This package defines the abstractions and prompt engineering required to
// extract structured search signal -- keywords, author names, publication
// years, and institutions -- from a user's free-text search query using large
// language models (OpenAI, Anthropic). The extracted signal drives the
// structured search path in internal/queryparser/llmparser, which falls back
// to the rule-based parser whenever extraction fails or returns nothing
// useful.
//
// Example usage:
//
//	extractor, err := llm.NewKeywordExtractor(cfg)
//	req := llm.ExtractionRequest{
//		Text:        "papers on CRISPR gene editing by Jennifer Doudna since 2020",
//		Mode:        llm.ExtractionModeQuery,
//		MaxKeywords: 10,
//		MinKeywords: 1,
//	}
//	result, err := extractor.ExtractKeywords(ctx, req)
package llm

import (
	"context"
	"fmt"
	"strings"
)

// ExtractionMode specifies what kind of text is being processed.
type ExtractionMode string

const (
	// ExtractionModeQuery extracts structured search signal from a user's
	// free-text research query.
	ExtractionModeQuery ExtractionMode = "query"

	// ExtractionModeAbstract extracts keywords from a paper's abstract. No
	// caller in this service uses it; C4's parser uses ExtractionModeQuery.
	ExtractionModeAbstract ExtractionMode = "abstract"
)

// ExtractionRequest contains parameters for keyword extraction.
type ExtractionRequest struct {
	// Text is the input text to extract keywords from.
	Text string

	// Mode specifies the type of text being processed.
	Mode ExtractionMode

	// MaxKeywords is the maximum number of keywords to extract.
	MaxKeywords int

	// MinKeywords is the minimum number of keywords to extract.
	MinKeywords int

	// ExistingKeywords are keywords already found (to avoid duplicates).
	ExistingKeywords []string

	// Context provides additional context about the research domain (optional).
	Context string
}

// ExtractionResult contains the extracted search signal and metadata.
type ExtractionResult struct {
	// Keywords is the list of extracted keywords/phrases.
	Keywords []string

	// Authors is the list of author names mentioned in the query, extracted
	// only in ExtractionModeQuery.
	Authors []string

	// Years is the list of publication-year expressions mentioned in the
	// query (single years or "YYYY-YYYY" ranges), extracted only in
	// ExtractionModeQuery.
	Years []string

	// Institutions is the list of institution names mentioned in the query,
	// extracted only in ExtractionModeQuery.
	Institutions []string

	// Reasoning is the LLM's explanation of its choices (optional).
	Reasoning string

	// Model is the LLM model used.
	Model string

	// InputTokens is the number of input tokens used.
	InputTokens int

	// OutputTokens is the number of output tokens used.
	OutputTokens int
}

// KeywordExtractor defines the interface for LLM-based query extraction.
//
// Implementations should handle provider-specific API calls, response
// parsing, and error handling while conforming to this unified interface.
type KeywordExtractor interface {
	// ExtractKeywords extracts structured search signal from the given text.
	// The context should be used for cancellation and deadline propagation.
	//
	// Implementations should:
	//   - Respect context cancellation
	//   - Parse the LLM response as JSON
	//   - Return wrapped errors with provider context
	ExtractKeywords(ctx context.Context, req ExtractionRequest) (*ExtractionResult, error)

	// Provider returns the name of the LLM provider (e.g., "openai", "anthropic").
	Provider() string

	// Model returns the model identifier being used (e.g., "gpt-4o", "claude-sonnet-4-20250514").
	Model() string
}

// llmResponse is the expected JSON structure from LLM responses.
type llmResponse struct {
	Keywords     []string `json:"keywords"`
	Authors      []string `json:"authors,omitempty"`
	Years        []string `json:"years,omitempty"`
	Institutions []string `json:"institutions,omitempty"`
	Reasoning    string   `json:"reasoning,omitempty"`
}

// BuildExtractionPrompt builds the system and user prompts for extraction.
// The system prompt instructs the LLM on its role and response format. The
// user prompt provides the text to analyze along with extraction constraints.
func BuildExtractionPrompt(req ExtractionRequest) (systemPrompt, userPrompt string) {
	systemPrompt = buildSystemPrompt(req)
	userPrompt = buildUserPrompt(req)
	return systemPrompt, userPrompt
}

// buildSystemPrompt constructs the system-level instructions for the LLM.
func buildSystemPrompt(req ExtractionRequest) string {
	var sb strings.Builder

	sb.WriteString("You are a research search-query analyst with deep expertise ")
	sb.WriteString("in academic literature search. Your task is to extract precise, ")
	sb.WriteString("searchable structure from text that will be used to query the ")
	sb.WriteString("OpenAlex scholarly index.\n\n")

	if req.Mode == ExtractionModeQuery {
		sb.WriteString("You MUST respond with valid JSON in exactly this format:\n")
		sb.WriteString(`{"keywords": ["keyword1"], "authors": ["Full Name"], "years": ["2020-2023"], "institutions": ["Institution Name"], "reasoning": "Brief explanation"}`)
		sb.WriteString("\n\n")
		sb.WriteString("Guidelines:\n")
		sb.WriteString("1. keywords: specific, searchable academic terms and topics the query is about. Never include a person's name or an institution here.\n")
		sb.WriteString("2. authors: full names of researchers the query explicitly asks for (e.g. \"papers by Jane Doe\"). Leave empty if none are named.\n")
		sb.WriteString("3. years: single years (\"2021\") or ranges (\"2018-2023\") the query constrains publication date to. Leave empty if none.\n")
		sb.WriteString("4. institutions: university or organization names the query constrains authorship to. Leave empty if none.\n")
		sb.WriteString("5. Avoid overly broad or generic keyword terms (e.g., \"study\", \"research\", \"analysis\").\n")
		sb.WriteString("6. Prefer established scientific nomenclature and standard terminology where applicable.\n")
	} else {
		sb.WriteString("You MUST respond with valid JSON in exactly this format:\n")
		sb.WriteString(`{"keywords": ["keyword1", "keyword2"], "reasoning": "Brief explanation of keyword choices"}`)
		sb.WriteString("\n\n")
		sb.WriteString("Guidelines for keyword extraction:\n")
		sb.WriteString("1. Extract specific, searchable academic terms and phrases.\n")
		sb.WriteString("2. Avoid overly broad or generic terms (e.g., \"study\", \"research\", \"analysis\").\n")
		sb.WriteString("3. Include synonyms, related concepts, and standard terminology used in the field.\n")
		sb.WriteString("4. Prefer established scientific nomenclature where applicable.\n")
		sb.WriteString("5. Consider multi-word phrases that function as single concepts (e.g., \"gene editing\", \"machine learning\").\n")
	}

	if len(req.ExistingKeywords) > 0 {
		sb.WriteString("\nIMPORTANT: The following keywords have already been extracted. ")
		sb.WriteString("Do NOT repeat them. Instead, find complementary terms, synonyms, ")
		sb.WriteString("or related concepts that would broaden the search:\n")
		sb.WriteString("Already extracted: [")
		sb.WriteString(strings.Join(req.ExistingKeywords, ", "))
		sb.WriteString("]\n")
	}

	return sb.String()
}

// buildUserPrompt constructs the user-level prompt containing the text and constraints.
func buildUserPrompt(req ExtractionRequest) string {
	var sb strings.Builder

	switch req.Mode {
	case ExtractionModeQuery:
		sb.WriteString("Extract structured search signal from the following user query. ")
		sb.WriteString("Separate the topical keywords from any named authors, ")
		sb.WriteString("institutions, or publication-year constraints.\n\n")
	case ExtractionModeAbstract:
		sb.WriteString("Extract research keywords from the following paper abstract. ")
		sb.WriteString("Focus on identifying the key findings, methodologies, organisms, ")
		sb.WriteString("genes, pathways, diseases, and domain-specific terminology.\n\n")
	default:
		sb.WriteString("Extract research keywords from the following text.\n\n")
	}

	if req.Context != "" {
		sb.WriteString(fmt.Sprintf("Research domain context: %s\n\n", req.Context))
	}

	sb.WriteString(fmt.Sprintf("Extract between %d and %d keywords.\n\n", req.MinKeywords, req.MaxKeywords))

	sb.WriteString("Text to analyze:\n")
	sb.WriteString("---\n")
	sb.WriteString(req.Text)
	sb.WriteString("\n---")

	return sb.String()
}
