package app

import "errors"

var (
	// ErrDuplicateIdentity reports that a user with the same external
	// id, email, or username already exists; the original record is
	// left unchanged.
	ErrDuplicateIdentity = errors.New("user identity already registered")

	// ErrNoExtractableText reports a document with no readable text.
	ErrNoExtractableText = errors.New("no text could be extracted from the document")

	// ErrNoDocuments reports a question asked before any PDF was
	// uploaded, or when none of the stored files yields content.
	ErrNoDocuments = errors.New("no document content available")

	// ErrNotFound reports a missing record or one owned by another user.
	ErrNotFound = errors.New("not found")

	// ErrUnsupportedFile reports an upload that is not a PDF.
	ErrUnsupportedFile = errors.New("unsupported file type")

	// ErrEmptyQuestion reports a blank chat question.
	ErrEmptyQuestion = errors.New("question required")
)
