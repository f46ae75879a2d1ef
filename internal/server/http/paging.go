package httpserver

import (
	"net/http"
	"strconv"

	"github.com/helixir/literature-review-service/internal/domain"
)

// pagingDefaults bounds the page/perPage/limit query parameters every list
// endpoint accepts (spec.md §4.9): page >= 1, 1 <= perPage <= 200 (rejected,
// not clamped, outside that range), 1 <= limit <= 100.
type pagingDefaults struct {
	defaultPerPage int
	maxPerPage     int
	defaultLimit   int
	maxLimit       int
}

func parsePage(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 0, domain.NewValidationError("page", "must be an integer >= 1")
	}
	return page, nil
}

func (d pagingDefaults) parsePerPage(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("per_page")
	if raw == "" {
		return d.defaultPerPage, nil
	}
	perPage, err := strconv.Atoi(raw)
	if err != nil || perPage < 1 || perPage > d.maxPerPage {
		return 0, domain.NewValidationError("per_page", "must be an integer between 1 and "+strconv.Itoa(d.maxPerPage))
	}
	return perPage, nil
}

func (d pagingDefaults) parseLimit(r *http.Request, param string) (int, error) {
	raw := r.URL.Query().Get(param)
	if raw == "" {
		return d.defaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > d.maxLimit {
		return 0, domain.NewValidationError(param, "must be an integer between 1 and "+strconv.Itoa(d.maxLimit))
	}
	return limit, nil
}

// parseBoundedInt parses an arbitrary integer query parameter bounded to
// [min, max], falling back to def when absent. Used by endpoints whose limit
// semantics don't share the page/perPage/recommendation-limit conventions
// (e.g. the follow feed's per-entity and total caps).
func parseBoundedInt(r *http.Request, param string, def, min, max int) (int, error) {
	raw := r.URL.Query().Get(param)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || v > max {
		return 0, domain.NewValidationError(param, "must be an integer between "+strconv.Itoa(min)+" and "+strconv.Itoa(max))
	}
	return v, nil
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == ',' {
			if i > start {
				out = append(out, raw[start:i])
			}
			start = i + 1
		}
	}
	return out
}
