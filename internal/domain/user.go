package domain

import "time"

// User is an authenticated principal's identity plus denormalized counters.
// UserID is stable across logins for the same OAuth subject.
type User struct {
	UserID      string    `json:"userId"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName,omitempty"`
	PictureURL  string    `json:"pictureUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	LastLoginAt time.Time `json:"lastLoginAt"`
}

// Principal is the value-typed identity threaded through every authenticated
// call. It carries nothing beyond what authorization checks need.
type Principal struct {
	UserID string
}

// MaxProfileEntries bounds the size of a profile's topics and authors lists.
const MaxProfileEntries = 64

// Profile holds a user's declared interests, created lazily on first write.
type Profile struct {
	Topics  []string `json:"topics"`
	Authors []string `json:"authors"`
}
