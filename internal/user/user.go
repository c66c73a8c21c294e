// Package user defines the application's user model and its derivation
// from the identity provider's session record.
package user

import "time"

// User is the application-side projection of the identity provider's
// user record. It is the value persisted to the local session cache.
type User struct {
	// ID is the opaque identifier issued by the identity provider.
	ID string `json:"id"`

	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Skills []string `json:"skills"`

	// VisualPoints and TextualPoints are content-preference counters.
	// They always start at zero when a user is (re)hydrated from a
	// provider session; upstream values are never read back.
	VisualPoints  int `json:"visualPoints"`
	TextualPoints int `json:"textualPoints"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Derive builds a User from the identity fields of a provider session.
// Missing profile attributes default to empty values, point counters
// start at zero, and UpdatedAt is set to the current time.
func Derive(id, name, email string, skills []string, createdAt time.Time) *User {
	if skills == nil {
		skills = []string{}
	}

	return &User{
		ID:            id,
		Name:          name,
		Email:         email,
		Skills:        skills,
		VisualPoints:  0,
		TextualPoints: 0,
		CreatedAt:     createdAt,
		UpdatedAt:     time.Now(),
	}
}
