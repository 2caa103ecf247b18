// Package app wires the store, file storage, extraction, retrieval, and
// the model assistant into the operations the HTTP layer exposes.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"paperdesk/internal/assistant"
	"paperdesk/internal/ingest"
	"paperdesk/internal/papers"
	"paperdesk/internal/retrieval"
	"paperdesk/pkg/domain"
	"paperdesk/pkg/storage"
	"paperdesk/pkg/store"
)

const (
	defaultTopK         = 3
	defaultHistoryLimit = 50
	sourceSnippetChars  = 160
	referenceDocLimit   = 2
)

// PageExtractor yields per-page text chunks for a stored PDF. A nil or
// empty result means the file had no readable text.
type PageExtractor interface {
	ExtractPages(ctx context.Context, path string) []retrieval.Chunk
}

// Generator is the model-backed collaborator for summaries, answers,
// and related-work suggestions.
type Generator interface {
	Summarize(ctx context.Context, docName, fullText string) assistant.Summary
	Answer(ctx context.Context, question string, chunks []retrieval.Chunk) assistant.Reply
	SuggestRelated(ctx context.Context, summaries []string, recent string) (string, error)
}

type Config struct {
	TopK         int
	HistoryLimit int
}

// App holds the service dependencies. Archive may be nil when no object
// store is configured; archival is best effort either way.
type App struct {
	store     store.Store
	files     *storage.FileStore
	archive   storage.ObjectStore
	extractor PageExtractor
	gen       Generator

	topK         int
	historyLimit int
}

func New(st store.Store, files *storage.FileStore, archive storage.ObjectStore, extractor PageExtractor, gen Generator, cfg Config) (*App, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if files == nil {
		return nil, fmt.Errorf("file store is required")
	}
	if extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if gen == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	return &App{
		store:        st,
		files:        files,
		archive:      archive,
		extractor:    extractor,
		gen:          gen,
		topK:         cfg.TopK,
		historyLimit: cfg.HistoryLimit,
	}, nil
}

type RegisterInput struct {
	ExternalID        string
	Email             string
	Name              string
	Username          string
	Organization      string
	ResearchInterests []string
}

// Register creates a new user. Registration with an external id, email,
// or username that is already taken fails and leaves the existing
// record unchanged.
func (a *App) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	in.ExternalID = strings.TrimSpace(in.ExternalID)
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if in.ExternalID == "" || in.Email == "" || in.Username == "" {
		return domain.User{}, fmt.Errorf("external id, email, and username are required")
	}
	user := domain.User{
		ID:                store.NewID(),
		ExternalID:        in.ExternalID,
		Email:             in.Email,
		Name:              strings.TrimSpace(in.Name),
		Username:          in.Username,
		Organization:      strings.TrimSpace(in.Organization),
		ResearchInterests: in.ResearchInterests,
		CreatedAt:         time.Now().UTC(),
	}
	if err := a.store.CreateUser(user); err != nil {
		if err == store.ErrDuplicateUser {
			return domain.User{}, ErrDuplicateIdentity
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// LookupUser resolves a user by external identity id.
func (a *App) LookupUser(ctx context.Context, externalID string) (domain.User, error) {
	user, ok, err := a.store.GetUserByExternalID(externalID)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return user, nil
}

// UploadPDF stores the file, extracts its text, summarizes it, and
// records the document. Files with no extractable text are rejected and
// removed from disk.
func (a *App) UploadPDF(ctx context.Context, user domain.User, filename string, r io.Reader) (domain.PDF, error) {
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return domain.PDF{}, ErrUnsupportedFile
	}
	path, err := a.files.Save(filename, r)
	if err != nil {
		return domain.PDF{}, fmt.Errorf("save file: %w", err)
	}
	chunks := a.extractor.ExtractPages(ctx, path)
	if len(chunks) == 0 {
		a.removeFile(path)
		return domain.PDF{}, ErrNoExtractableText
	}

	sum := a.gen.Summarize(ctx, filename, ingest.FullText(chunks))
	if sum.Degraded {
		slog.Warn("summary degraded", "file", filename, "reason", sum.Reason)
	}

	pdf := domain.PDF{
		ID:              store.NewID(),
		OwnerID:         user.ID,
		Filename:        filename,
		StoragePath:     path,
		Pages:           len(chunks),
		Chunks:          len(chunks),
		Summary:         sum.Text,
		SummaryDegraded: sum.Degraded,
		UploadedAt:      time.Now().UTC(),
	}
	if err := a.store.SavePDF(pdf); err != nil {
		a.removeFile(path)
		return domain.PDF{}, fmt.Errorf("save pdf: %w", err)
	}
	a.archivePDF(ctx, path)
	return pdf, nil
}

// ListPDFs returns the user's documents, newest first.
func (a *App) ListPDFs(ctx context.Context, user domain.User) ([]domain.PDF, error) {
	pdfs, err := a.store.ListPDFsByOwner(user.ID)
	if err != nil {
		return nil, fmt.Errorf("list pdfs: %w", err)
	}
	return pdfs, nil
}

// DeletePDF removes a document the user owns, along with its stored
// file. File removal failures are logged but do not block the delete.
func (a *App) DeletePDF(ctx context.Context, user domain.User, pdfID string) error {
	pdf, ok, err := a.store.GetPDF(pdfID)
	if err != nil {
		return fmt.Errorf("get pdf: %w", err)
	}
	if !ok || pdf.OwnerID != user.ID {
		return ErrNotFound
	}
	a.removeFile(pdf.StoragePath)
	if a.archive != nil {
		if err := a.archive.Delete(ctx, filepath.Base(pdf.StoragePath)); err != nil {
			slog.Warn("archive delete failed", "pdf_id", pdfID, "error", err)
		}
	}
	if err := a.store.DeletePDF(pdfID); err != nil {
		return fmt.Errorf("delete pdf: %w", err)
	}
	return nil
}

// Ask answers a question against the user's uploaded documents and
// records both sides of the exchange in the chat history.
func (a *App) Ask(ctx context.Context, user domain.User, question string) (domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.Answer{}, ErrEmptyQuestion
	}
	pdfs, err := a.store.ListPDFsByOwner(user.ID)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("list pdfs: %w", err)
	}
	if len(pdfs) == 0 {
		return domain.Answer{}, ErrNoDocuments
	}

	var pool []retrieval.Chunk
	for _, pdf := range pdfs {
		pool = append(pool, a.extractor.ExtractPages(ctx, pdf.StoragePath)...)
	}
	if len(pool) == 0 {
		return domain.Answer{}, ErrNoDocuments
	}

	res := retrieval.Retrieve(question, pool, a.topK)
	reply := a.gen.Answer(ctx, question, res.Chunks)

	degraded := reply.Degraded
	reason := reply.Reason
	if !res.Ranked {
		degraded = true
		if reason == "" {
			reason = "no chunk matched the question; answered from leading pages"
		}
	}

	citations := assistant.ExtractSourceMarkers(reply.Text)
	now := time.Now().UTC()
	userMsg := domain.ChatMessage{
		ID:        store.NewID(),
		UserID:    user.ID,
		Role:      domain.RoleUser,
		Content:   question,
		CreatedAt: now,
	}
	// The answer gets a strictly later timestamp so created_at ordering
	// keeps the question before the answer in persisted history.
	assistantMsg := domain.ChatMessage{
		ID:        store.NewID(),
		UserID:    user.ID,
		Role:      domain.RoleAssistant,
		Content:   reply.Text,
		Citations: citations,
		CreatedAt: now.Add(time.Millisecond),
	}
	if err := a.store.AppendMessage(userMsg); err != nil {
		return domain.Answer{}, fmt.Errorf("record question: %w", err)
	}
	if err := a.store.AppendMessage(assistantMsg); err != nil {
		return domain.Answer{}, fmt.Errorf("record answer: %w", err)
	}

	return domain.Answer{
		Question:  question,
		Text:      reply.Text,
		Sources:   answerSources(res.Chunks),
		Degraded:  degraded,
		Reason:    reason,
		CreatedAt: now,
	}, nil
}

// History returns the user's chat messages in chronological order.
func (a *App) History(ctx context.Context, user domain.User) ([]domain.ChatMessage, error) {
	msgs, err := a.store.ListMessages(user.ID, a.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// ClearHistory removes all of the user's chat messages.
func (a *App) ClearHistory(ctx context.Context, user domain.User) error {
	if err := a.store.ClearMessages(user.ID); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	return nil
}

// Stats reports document and message counts for the user.
func (a *App) Stats(ctx context.Context, user domain.User) (domain.UserStats, error) {
	stats, err := a.store.UserStats(user.ID)
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("user stats: %w", err)
	}
	return stats, nil
}

// DeleteAccount removes the user, their chat history and document
// records, and the stored files.
func (a *App) DeleteAccount(ctx context.Context, user domain.User) error {
	pdfs, err := a.store.ListPDFsByOwner(user.ID)
	if err != nil {
		return fmt.Errorf("list pdfs: %w", err)
	}
	for _, pdf := range pdfs {
		a.removeFile(pdf.StoragePath)
	}
	if err := a.store.DeleteUser(user.ID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// RelatedWork extracts bibliography entries from the user's documents
// and asks the model for further suggestions, rendered as an HTML
// fragment. A model failure degrades the suggestions, never the call.
func (a *App) RelatedWork(ctx context.Context, user domain.User) (domain.RelatedWork, error) {
	pdfs, err := a.store.ListPDFsByOwner(user.ID)
	if err != nil {
		return domain.RelatedWork{}, fmt.Errorf("list pdfs: %w", err)
	}
	if len(pdfs) == 0 {
		return domain.RelatedWork{}, ErrNoDocuments
	}

	var refs []string
	for i, pdf := range pdfs {
		if i >= referenceDocLimit {
			break
		}
		chunks := a.extractor.ExtractPages(ctx, pdf.StoragePath)
		refs = append(refs, papers.ExtractReferences(ingest.FullText(chunks))...)
	}

	var summaries []string
	for _, pdf := range pdfs {
		if pdf.Summary != "" {
			summaries = append(summaries, pdf.Summary)
		}
	}
	suggestions, err := a.gen.SuggestRelated(ctx, summaries, a.lastAssistantReply(ctx, user))
	if err != nil {
		slog.Warn("related-work suggestions degraded", "user_id", user.ID, "error", err)
		suggestions = fmt.Sprintf("Could not generate related papers: %v", err)
	}

	return domain.RelatedWork{
		References:  refs,
		Suggestions: suggestions,
		HTML:        papers.RenderFragment(refs, suggestions),
	}, nil
}

func (a *App) lastAssistantReply(ctx context.Context, user domain.User) string {
	msgs, err := a.store.ListMessages(user.ID, a.historyLimit)
	if err != nil {
		slog.Warn("list messages failed", "user_id", user.ID, "error", err)
		return ""
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == domain.RoleAssistant {
			return msgs[i].Content
		}
	}
	return ""
}

func (a *App) removeFile(path string) {
	if err := a.files.Remove(path); err != nil {
		slog.Warn("file remove failed", "path", path, "error", err)
	}
}

func (a *App) archivePDF(ctx context.Context, path string) {
	if a.archive == nil {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		slog.Warn("archive read failed", "path", path, "error", err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		slog.Warn("archive stat failed", "path", path, "error", err)
		return
	}
	if err := a.archive.Put(ctx, filepath.Base(path), f, info.Size(), "application/pdf"); err != nil {
		slog.Warn("archive upload failed", "path", path, "error", err)
	}
}

func answerSources(chunks []retrieval.Chunk) []domain.Source {
	sources := make([]domain.Source, 0, len(chunks))
	for i, c := range chunks {
		snippet := c.Text
		if runes := []rune(snippet); len(runes) > sourceSnippetChars {
			snippet = string(runes[:sourceSnippetChars]) + "..."
		}
		sources = append(sources, domain.Source{
			Label:    fmt.Sprintf("Source %d", i+1),
			Location: fmt.Sprintf("%s, Page %d", c.Source, c.Page),
			Snippet:  snippet,
		})
	}
	return sources
}
