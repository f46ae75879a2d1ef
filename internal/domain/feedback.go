package domain

import "time"

// FeedbackAction is the polarity of a user's reaction to a paper.
type FeedbackAction string

const (
	// FeedbackLiked marks a paper the user explicitly liked.
	FeedbackLiked FeedbackAction = "liked"
	// FeedbackDisliked marks a paper the user explicitly disliked.
	FeedbackDisliked FeedbackAction = "disliked"
)

// FeedbackRecord is at most one per (userId, paperId); liking flips an
// existing dislike and vice versa (spec.md §3).
type FeedbackRecord struct {
	PaperID   string         `json:"paperId"`
	Action    FeedbackAction `json:"action"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// FeedbackSet is the split view returned by GET /api/feedback.
type FeedbackSet struct {
	Liked    []string `json:"liked"`
	Disliked []string `json:"disliked"`
}

// Contains reports whether paperID appears in either the liked or disliked set.
func (f FeedbackSet) Contains(paperID string) bool {
	for _, id := range f.Liked {
		if id == paperID {
			return true
		}
	}
	for _, id := range f.Disliked {
		if id == paperID {
			return true
		}
	}
	return false
}
