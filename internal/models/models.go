// Package models defines the request/response payloads and stored
// shapes of the course domain.
package models

import (
	"errors"
	"time"
)

// Module is one unit of a course outline. Generated content is stored
// separately and lazily, keyed by course and module ID.
type Module struct {
	ID      string `json:"id"`
	Title   string `json:"title" validate:"required"`
	Summary string `json:"summary"`
}

// Course is a generated course owned by one user.
type Course struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Modules     []Module  `json:"modules"`
	CreatedAt   time.Time `json:"createdAt"`
}

// VisualItem is one visual element of generated module content:
// either a mermaid diagram source or an image link.
type VisualItem struct {
	Type    string `json:"type" validate:"required,oneof=mermaid url"`
	Diagram string `json:"diagram,omitempty"`
	URL     string `json:"url,omitempty"`
}

// ModuleContent is the AI-generated content of one module.
type ModuleContent struct {
	Content        string       `json:"content"`
	VisualContent  []VisualItem `json:"visualContent"`
	TextualContent string       `json:"textualContent"`
}

// CreateCourseRequest asks for a new AI-generated course outline.
type CreateCourseRequest struct {
	Topic         string `json:"topic" validate:"required"`
	VisualPoints  int    `json:"visualPoints" validate:"gte=0"`
	TextualPoints int    `json:"textualPoints" validate:"gte=0"`
}

// GenerateContentRequest carries the learner's content-style points
// for lazy module content generation.
type GenerateContentRequest struct {
	VisualPoints  int `json:"visualPoints" validate:"gte=0"`
	TextualPoints int `json:"textualPoints" validate:"gte=0"`
}

// LoginRequest is the password sign-in payload.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignupRequest is the account registration payload.
type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// OAuthRedirectResponse carries the URL of the provider's external
// sign-in flow.
type OAuthRedirectResponse struct {
	URL string `json:"url"`
}

// ChatRequest carries a single, prior-turn-free message to the career
// assistant.
type ChatRequest struct {
	Message string `json:"message" validate:"required"`
}

// ChatResponse is the assistant's plain-text reply.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// NarrationResponse carries base64-encoded audio for a module's
// textual content.
type NarrationResponse struct {
	AudioContent string `json:"audioContent"`
}

// StatsResponse is the internal statistics payload.
type StatsResponse struct {
	Courses int64 `json:"courses"`
	Users   int64 `json:"users"`
}

// DeleteCoursesRequest is a list of course IDs to remove.
type DeleteCoursesRequest []string

// CourseDeleteJob is one user's queued course-deletion request.
type CourseDeleteJob struct {
	UserID          string
	CoursesToDelete DeleteCoursesRequest
}

const (
	StorageTypeUnknown = iota
	StorageTypePostgresql
	StorageTypeFile
	StorageTypeMemory
)

// ErrCourseMarkedAsDeleted is returned when a course exists but has
// been queued for removal.
var ErrCourseMarkedAsDeleted = errors.New("the course marked as deleted")
