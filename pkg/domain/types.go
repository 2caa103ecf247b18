package domain

import "time"

// Role identifies who authored a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// User is a registered researcher. Identity is established upstream
// (e.g. an OAuth provider); ExternalID carries that provider's subject.
type User struct {
	ID                string    `json:"id"`
	ExternalID        string    `json:"externalId"`
	Email             string    `json:"email"`
	Name              string    `json:"name"`
	Username          string    `json:"username"`
	Organization      string    `json:"organization"`
	ResearchInterests []string  `json:"researchInterests,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// PDF is the metadata row for one uploaded document. Extracted text is not
// persisted; the stored file remains the source of truth and Pages/Chunks
// record what was observed at upload time.
type PDF struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"ownerId"`
	Filename        string    `json:"filename"`
	StoragePath     string    `json:"-"`
	Pages           int       `json:"pages"`
	Chunks          int       `json:"chunks"`
	Summary         string    `json:"summary,omitempty"`
	SummaryDegraded bool      `json:"summaryDegraded,omitempty"`
	UploadedAt      time.Time `json:"uploadedAt"`
}

// ChatMessage is one turn of a user's conversation. Append-only.
type ChatMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Citations string    `json:"citations,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserStats aggregates per-user activity counts.
type UserStats struct {
	PDFsUploaded int `json:"pdfsUploaded"`
	MessagesSent int `json:"messagesSent"`
}

// Answer is the outcome of a question over the user's documents.
// Degraded is set when retrieval fell back to unranked chunks or the
// model call was replaced by a local fallback; Reason says which.
type Answer struct {
	Question  string    `json:"question"`
	Text      string    `json:"text"`
	Sources   []Source  `json:"sources"`
	Degraded  bool      `json:"degraded,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Source describes one context chunk the answer may cite.
type Source struct {
	Label    string `json:"label"`
	Location string `json:"location"`
	Snippet  string `json:"snippet"`
}

// RelatedWork is the best-effort citations section: references scraped
// from uploaded papers plus model-fabricated reading suggestions. The
// suggestions are not grounded in any real corpus and must be presented
// as suggestions, never as verified citations.
type RelatedWork struct {
	References  []string `json:"references"`
	Suggestions string   `json:"suggestions"`
	HTML        string   `json:"html"`
}
