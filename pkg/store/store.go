package store

import (
	"errors"

	"paperdesk/pkg/domain"
)

// ErrDuplicateUser reports a uniqueness violation (external id, email, or
// username already registered). Callers treat it as "user already exists",
// not as a failure.
var ErrDuplicateUser = errors.New("user already exists")

// Store defines persistence operations for users, chat history, and
// uploaded PDF metadata. Implementations must be safe for concurrent
// independent callers; no call depends on shared session state.
type Store interface {
	// users
	CreateUser(domain.User) error
	GetUserByID(id string) (domain.User, bool, error)
	GetUserByExternalID(externalID string) (domain.User, bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	DeleteUser(id string) error

	// chat history
	AppendMessage(domain.ChatMessage) error
	ListMessages(userID string, limit int) ([]domain.ChatMessage, error)
	ClearMessages(userID string) error

	// uploaded PDFs
	SavePDF(domain.PDF) error
	GetPDF(id string) (domain.PDF, bool, error)
	ListPDFsByOwner(ownerID string) ([]domain.PDF, error)
	DeletePDF(id string) error

	// aggregates
	UserStats(userID string) (domain.UserStats, error)
}
