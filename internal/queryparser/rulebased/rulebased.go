// Package rulebased implements queryparser.Parser with deterministic
// heuristics -- no network calls, pure functions, always available. It is the
// fallback every other parser in this service ultimately chains to.
package rulebased

import (
	"context"
	"regexp"
	"strings"

	"github.com/helixir/literature-review-service/internal/domain"
)

var (
	authorMarkerPattern  = regexp.MustCompile(`(?i)\b(?:by|from|author|authors?)\s+`)
	startAuthorsPattern  = regexp.MustCompile(`^((?:[A-Z][a-z]+(?:\s+[A-Z]\.)?\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?(?:\s*,\s*)?)+)`)
	andAuthorsPattern    = regexp.MustCompile(`^((?:[A-Z][a-z]+(?:\s+[A-Z]\.)?\s+[A-Z][a-z]+(?:\s+(?:and|&)\s+[A-Z][a-z]+(?:\s+[A-Z]\.)?\s+[A-Z][a-z]+)+))`)
	authorNamePattern    = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z]\.)?\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)\b`)
	keywordLeadInPattern = regexp.MustCompile(`(?i)^\s*(?:about|on|regarding|in|papers?|research|articles?)\s+`)
	abstractLeadPattern  = regexp.MustCompile(`(?i)\b(?:papers?|research|articles?|studies?)\s+(?:about|on|regarding|in)\s+`)

	yearRangePattern   = regexp.MustCompile(`\b(19|20)\d{2}\s*-\s*(19|20)\d{2}\b`)
	yearOperatorPattern = regexp.MustCompile(`[><]\s*(19|20)\d{2}\b`)
	yearLiteralPattern  = regexp.MustCompile(`\b(19|20)\d{2}\b`)

	capitalizedKeywordMarkers = regexp.MustCompile(`(?i)\b(?:Machine|Deep|Neural|Artificial|Quantum|Classical|Statistical)\s+`)
	capitalizedKeywordNouns   = regexp.MustCompile(`(?i)\b(?:Learning|Network|Computing|Intelligence|Analysis)\b`)
)

// knownInstitutions is a small lexicon of institution names the parser
// recognizes in free text. It is deliberately short; anything not listed
// here degrades to a keyword token, which still produces a usable search.
var knownInstitutions = []string{
	"MIT", "Massachusetts Institute of Technology",
	"Stanford", "Stanford University",
	"Harvard", "Harvard University",
	"Oxford", "University of Oxford",
	"Cambridge", "University of Cambridge",
	"Berkeley", "UC Berkeley",
	"Caltech",
	"ETH Zurich",
	"Google", "Google Research", "DeepMind", "Google DeepMind",
	"Microsoft Research",
	"OpenAI",
	"Max Planck Institute",
	"Max Planck",
}

// Parser is the always-available, no-external-calls query parser.
type Parser struct{}

// New constructs a rule-based Parser.
func New() *Parser {
	return &Parser{}
}

// Parse implements queryparser.Parser.
func (p *Parser) Parse(_ context.Context, text string) (domain.ParsedQuery, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ParsedQuery{}, nil
	}

	years, remaining := extractYears(text)
	institutions, remaining := extractInstitutions(remaining)
	keywords, authors := splitKeywordsAndAuthors(remaining)

	return domain.ParsedQuery{
		Keywords:     keywords,
		Authors:      authors,
		Years:        years,
		Institutions: institutions,
	}, nil
}

// extractYears pulls out year ranges ("2018-2023"), operator-qualified years
// (">2020", "<2015"), and bare years ("2021"), returning the remaining text
// with matches removed.
func extractYears(text string) ([]string, string) {
	var years []string

	for _, m := range yearRangePattern.FindAllString(text, -1) {
		years = append(years, normalizeYearRange(m))
	}
	remaining := yearRangePattern.ReplaceAllString(text, " ")

	for _, m := range yearOperatorPattern.FindAllString(remaining, -1) {
		years = append(years, strings.ReplaceAll(m, " ", ""))
	}
	remaining = yearOperatorPattern.ReplaceAllString(remaining, " ")

	for _, m := range yearLiteralPattern.FindAllString(remaining, -1) {
		years = append(years, m)
	}
	remaining = yearLiteralPattern.ReplaceAllString(remaining, " ")

	return years, collapseSpaces(remaining)
}

func normalizeYearRange(m string) string {
	parts := strings.Split(m, "-")
	if len(parts) != 2 {
		return strings.Join(strings.Fields(m), "")
	}
	return strings.TrimSpace(parts[0]) + "-" + strings.TrimSpace(parts[1])
}

// extractInstitutions matches against the known-institution lexicon,
// case-insensitively, longest name first so "Stanford University" is
// preferred over a bare "Stanford" match.
func extractInstitutions(text string) ([]string, string) {
	var found []string
	remaining := text

	sorted := make([]string, len(knownInstitutions))
	copy(sorted, knownInstitutions)
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if len(sorted[j]) > len(sorted[i]) {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}

	for _, name := range sorted {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
		if re.MatchString(remaining) {
			found = append(found, name)
			remaining = re.ReplaceAllString(remaining, "")
		}
	}

	return found, collapseSpaces(remaining)
}

// splitKeywordsAndAuthors ports the original service's cascading heuristics:
// an explicit "by"/"from" marker, a leading comma-separated name list, names
// joined with "and"/"&", or -- failing all of those -- a conservative scan
// for capitalized name-shaped runs elsewhere in the text.
func splitKeywordsAndAuthors(text string) (keywords, authors []string) {
	if text == "" {
		return nil, nil
	}

	if loc := authorMarkerPattern.FindStringIndex(text); loc != nil {
		before := strings.TrimSpace(text[:loc[0]])
		after := strings.TrimSpace(text[loc[1]:])

		if before != "" {
			return splitCommaList(cleanKeywordLeadIn(before)), splitAuthorList(after)
		}

		words := strings.Fields(after)
		splitIdx := -1
		for i, w := range words {
			if i >= 2 && w != "" && isLower(rune(w[0])) {
				splitIdx = i
				break
			}
		}
		if splitIdx > 0 {
			authorPart := strings.Join(words[:splitIdx], " ")
			keywordPart := strings.Join(words[splitIdx:], " ")
			return splitCommaList(keywordPart), splitAuthorList(authorPart)
		}
		return nil, splitAuthorList(after)
	}

	// andAuthorsPattern is checked first: it only matches a strictly longer,
	// more specific "Name and Name" run, while startAuthorsPattern alone would
	// greedily stop at the first name and miss the joined second one.
	if loc := andAuthorsPattern.FindStringIndex(text); loc != nil {
		authorPart := strings.TrimSpace(text[loc[0]:loc[1]])
		if names := filterLikelyNames(splitAuthorList(authorPart)); len(names) > 0 {
			keywordPart := keywordLeadInPattern.ReplaceAllString(strings.TrimSpace(text[loc[1]:]), "")
			return splitCommaList(strings.TrimSpace(keywordPart)), names
		}
	}

	if loc := startAuthorsPattern.FindStringIndex(text); loc != nil {
		authorPart := strings.TrimSpace(text[loc[0]:loc[1]])
		if names := filterLikelyNames(splitAuthorList(authorPart)); len(names) > 0 {
			keywordPart := keywordLeadInPattern.ReplaceAllString(strings.TrimSpace(text[loc[1]:]), "")
			return splitCommaList(strings.TrimSpace(keywordPart)), names
		}
	}

	remaining := text
	var potentialAuthors []string
	for _, match := range authorNamePattern.FindAllString(text, -1) {
		if isLikelyAuthorName(match) {
			potentialAuthors = append(potentialAuthors, match)
			remaining = strings.Replace(remaining, match, "", 1)
		}
	}
	remaining = abstractLeadPattern.ReplaceAllString(remaining, "")
	remaining = collapseSpaces(remaining)

	return splitCommaList(remaining), potentialAuthors
}

// filterLikelyNames keeps only entries that look like a person's name,
// dropping capitalized keyword phrases an anchored regex alone can't rule out.
func filterLikelyNames(names []string) []string {
	var out []string
	for _, n := range names {
		if isLikelyAuthorName(n) {
			out = append(out, n)
		}
	}
	return out
}

func cleanKeywordLeadIn(s string) string {
	return strings.TrimSpace(abstractLeadPattern.ReplaceAllString(s, ""))
}

// splitAuthorList splits an author-name run joined by commas, "and", or "&".
func splitAuthorList(s string) []string {
	if s == "" {
		return nil
	}
	s = regexp.MustCompile(`(?i)\s+and\s+`).ReplaceAllString(s, ", ")
	s = regexp.MustCompile(`\s+&\s+`).ReplaceAllString(s, ", ")

	var authors []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			authors = append(authors, part)
		}
	}
	return authors
}

// splitCommaList splits a comma-separated keyword phrase, treating the whole
// string as one phrase if there is no comma.
func splitCommaList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// isLikelyAuthorName distinguishes a capitalized name-shaped run ("Jane Doe")
// from a capitalized keyword phrase ("Machine Learning").
func isLikelyAuthorName(name string) bool {
	if capitalizedKeywordMarkers.MatchString(name) || capitalizedKeywordNouns.MatchString(name) {
		return false
	}

	words := strings.Fields(name)
	if len(words) < 2 || len(words) > 4 {
		return false
	}

	first, last := words[0], words[len(words)-1]
	if first == "" || last == "" {
		return false
	}
	return isUpper(rune(first[0])) && isUpper(rune(last[0]))
}

func isLower(r rune) bool { return r >= 'a' && r <= 'z' }
func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }

func collapseSpaces(s string) string {
	return strings.TrimSpace(regexp.MustCompile(`\s+`).ReplaceAllString(s, " "))
}
