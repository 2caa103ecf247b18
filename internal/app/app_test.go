package app

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"paperdesk/internal/assistant"
	"paperdesk/internal/retrieval"
	"paperdesk/pkg/domain"
	"paperdesk/pkg/storage"
	"paperdesk/pkg/store"
)

type stubExtractor struct {
	chunks []retrieval.Chunk
}

func (s *stubExtractor) ExtractPages(_ context.Context, path string) []retrieval.Chunk {
	out := make([]retrieval.Chunk, len(s.chunks))
	copy(out, s.chunks)
	return out
}

type stubGen struct {
	summary    string
	summaryErr error
	answer     string
	answerErr  error
	related    string
	relatedErr error
}

func (s *stubGen) Summarize(_ context.Context, docName, _ string) assistant.Summary {
	if s.summaryErr != nil {
		return assistant.Summary{Text: "Document: " + docName, Degraded: true, Reason: s.summaryErr.Error()}
	}
	return assistant.Summary{Text: s.summary}
}

func (s *stubGen) Answer(_ context.Context, _ string, _ []retrieval.Chunk) assistant.Reply {
	if s.answerErr != nil {
		return assistant.Reply{Text: "Error generating response", Degraded: true, Reason: s.answerErr.Error()}
	}
	return assistant.Reply{Text: s.answer}
}

func (s *stubGen) SuggestRelated(_ context.Context, _ []string, _ string) (string, error) {
	if s.relatedErr != nil {
		return "", s.relatedErr
	}
	return s.related, nil
}

func newTestApp(t *testing.T, extractor *stubExtractor, gen *stubGen) (*App, *store.MemoryStore, string) {
	t.Helper()
	dir := t.TempDir()
	files, err := storage.NewFileStore(dir)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	st := store.NewMemoryStore()
	a, err := New(st, files, nil, extractor, gen, Config{TopK: 3})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, st, dir
}

func registerUser(t *testing.T, a *App, externalID string) domain.User {
	t.Helper()
	user, err := a.Register(context.Background(), RegisterInput{
		ExternalID: externalID,
		Email:      externalID + "@example.com",
		Username:   externalID,
		Name:       "Test User",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return user
}

func uploadDoc(t *testing.T, a *App, user domain.User, filename string) domain.PDF {
	t.Helper()
	pdf, err := a.UploadPDF(context.Background(), user, filename, strings.NewReader("%PDF-1.4 payload"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return pdf
}

func TestRegisterDuplicateIdentityLeavesOriginal(t *testing.T) {
	a, st, _ := newTestApp(t, &stubExtractor{}, &stubGen{})
	ctx := context.Background()
	first, err := a.Register(ctx, RegisterInput{
		ExternalID: "ext-1", Email: "a@example.com", Username: "alice", Name: "Alice",
	})
	if err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err = a.Register(ctx, RegisterInput{
		ExternalID: "ext-1", Email: "other@example.com", Username: "other",
	})
	if !errors.Is(err, ErrDuplicateIdentity) {
		t.Fatalf("want ErrDuplicateIdentity, got %v", err)
	}
	got, ok, err := st.GetUserByExternalID("ext-1")
	if err != nil || !ok {
		t.Fatalf("lookup after duplicate: ok=%v err=%v", ok, err)
	}
	if got.Email != first.Email || got.Name != first.Name || got.ID != first.ID {
		t.Fatalf("original record changed: %+v", got)
	}
}

func TestRegisterRequiresIdentityFields(t *testing.T) {
	a, _, _ := newTestApp(t, &stubExtractor{}, &stubGen{})
	if _, err := a.Register(context.Background(), RegisterInput{Email: "x@example.com"}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestUploadPDF(t *testing.T) {
	extractor := &stubExtractor{chunks: []retrieval.Chunk{
		{Text: "page one text", Page: 1, Source: "doc.pdf"},
		{Text: "page two text", Page: 2, Source: "doc.pdf"},
	}}
	a, st, dir := newTestApp(t, extractor, &stubGen{summary: "A short summary."})
	user := registerUser(t, a, "ext-1")

	pdf := uploadDoc(t, a, user, "doc.pdf")
	if pdf.Pages != 2 || pdf.Chunks != 2 {
		t.Fatalf("wrong page counts: %+v", pdf)
	}
	if pdf.Summary != "A short summary." || pdf.SummaryDegraded {
		t.Fatalf("wrong summary: %+v", pdf)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read upload dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one stored file, got %d", len(entries))
	}
	if !strings.HasPrefix(entries[0].Name(), "doc_") {
		t.Fatalf("unexpected stored name: %s", entries[0].Name())
	}
	stored, ok, _ := st.GetPDF(pdf.ID)
	if !ok || stored.OwnerID != user.ID {
		t.Fatalf("pdf not recorded: ok=%v %+v", ok, stored)
	}
}

func TestUploadPDFRejectsNonPDF(t *testing.T) {
	a, _, _ := newTestApp(t, &stubExtractor{}, &stubGen{})
	user := registerUser(t, a, "ext-1")
	_, err := a.UploadPDF(context.Background(), user, "notes.txt", strings.NewReader("text"))
	if !errors.Is(err, ErrUnsupportedFile) {
		t.Fatalf("want ErrUnsupportedFile, got %v", err)
	}
}

func TestUploadPDFNoTextRemovesFile(t *testing.T) {
	a, _, dir := newTestApp(t, &stubExtractor{}, &stubGen{})
	user := registerUser(t, a, "ext-1")
	_, err := a.UploadPDF(context.Background(), user, "empty.pdf", strings.NewReader("%PDF"))
	if !errors.Is(err, ErrNoExtractableText) {
		t.Fatalf("want ErrNoExtractableText, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("rejected upload left %d files behind", len(entries))
	}
}

func TestUploadPDFDegradedSummaryStillSaves(t *testing.T) {
	extractor := &stubExtractor{chunks: []retrieval.Chunk{{Text: "content", Page: 1, Source: "d.pdf"}}}
	a, _, _ := newTestApp(t, extractor, &stubGen{summaryErr: errors.New("model down")})
	user := registerUser(t, a, "ext-1")
	pdf := uploadDoc(t, a, user, "d.pdf")
	if !pdf.SummaryDegraded {
		t.Fatal("expected degraded summary flag")
	}
	if pdf.Summary == "" {
		t.Fatal("degraded upload should still carry a fallback summary")
	}
}

func TestAskWithoutDocuments(t *testing.T) {
	a, _, _ := newTestApp(t, &stubExtractor{}, &stubGen{})
	user := registerUser(t, a, "ext-1")
	if _, err := a.Ask(context.Background(), user, "anything?"); !errors.Is(err, ErrNoDocuments) {
		t.Fatalf("want ErrNoDocuments, got %v", err)
	}
}

func TestAskEmptyQuestion(t *testing.T) {
	a, _, _ := newTestApp(t, &stubExtractor{}, &stubGen{})
	user := registerUser(t, a, "ext-1")
	if _, err := a.Ask(context.Background(), user, "   "); !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("want ErrEmptyQuestion, got %v", err)
	}
}

func TestAskRecordsHistoryWithCitations(t *testing.T) {
	extractor := &stubExtractor{chunks: []retrieval.Chunk{
		{Text: "deep learning image classification", Page: 1, Source: "a.pdf"},
	}}
	gen := &stubGen{summary: "sum", answer: "It covers deep learning [Source 1]."}
	a, _, _ := newTestApp(t, extractor, gen)
	user := registerUser(t, a, "ext-1")
	uploadDoc(t, a, user, "a.pdf")

	ans, err := a.Ask(context.Background(), user, "deep learning")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if ans.Degraded {
		t.Fatalf("unexpected degradation: %s", ans.Reason)
	}
	if len(ans.Sources) != 1 || ans.Sources[0].Location != "a.pdf, Page 1" {
		t.Fatalf("wrong sources: %+v", ans.Sources)
	}
	msgs, err := a.History(context.Background(), user)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != domain.RoleUser || msgs[0].Content != "deep learning" {
		t.Fatalf("wrong user message: %+v", msgs[0])
	}
	if msgs[1].Role != domain.RoleAssistant || msgs[1].Citations != "[Source 1]" {
		t.Fatalf("wrong assistant message: %+v", msgs[1])
	}
	// Stores order history by created_at, so the pair must not share a
	// timestamp or a SQL backend could flip them.
	if !msgs[0].CreatedAt.Before(msgs[1].CreatedAt) {
		t.Fatalf("question timestamp %v not before answer timestamp %v",
			msgs[0].CreatedAt, msgs[1].CreatedAt)
	}
}

func TestAskDegradesWhenNothingMatches(t *testing.T) {
	extractor := &stubExtractor{chunks: []retrieval.Chunk{
		{Text: "unrelated gardening tips", Page: 1, Source: "b.pdf"},
	}}
	a, _, _ := newTestApp(t, extractor, &stubGen{summary: "s", answer: "Not covered."})
	user := registerUser(t, a, "ext-1")
	uploadDoc(t, a, user, "b.pdf")

	ans, err := a.Ask(context.Background(), user, "quantum chromodynamics")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !ans.Degraded {
		t.Fatal("expected degraded answer on zero-overlap query")
	}
	if len(ans.Sources) == 0 {
		t.Fatal("fallback must still produce sources")
	}
}

func TestClearHistory(t *testing.T) {
	extractor := &stubExtractor{chunks: []retrieval.Chunk{{Text: "some text", Page: 1, Source: "a.pdf"}}}
	a, _, _ := newTestApp(t, extractor, &stubGen{summary: "s", answer: "a"})
	user := registerUser(t, a, "ext-1")
	uploadDoc(t, a, user, "a.pdf")
	if _, err := a.Ask(context.Background(), user, "some text"); err != nil {
		t.Fatalf("ask: %v", err)
	}
	if err := a.ClearHistory(context.Background(), user); err != nil {
		t.Fatalf("clear: %v", err)
	}
	msgs, _ := a.History(context.Background(), user)
	if len(msgs) != 0 {
		t.Fatalf("history not cleared: %d messages", len(msgs))
	}
}

func TestStats(t *testing.T) {
	extractor := &stubExtractor{chunks: []retrieval.Chunk{{Text: "text body", Page: 1, Source: "a.pdf"}}}
	a, _, _ := newTestApp(t, extractor, &stubGen{summary: "s", answer: "a"})
	user := registerUser(t, a, "ext-1")
	uploadDoc(t, a, user, "a.pdf")
	if _, err := a.Ask(context.Background(), user, "text"); err != nil {
		t.Fatalf("ask: %v", err)
	}
	stats, err := a.Stats(context.Background(), user)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.PDFsUploaded != 1 || stats.MessagesSent != 2 {
		t.Fatalf("wrong stats: %+v", stats)
	}
}

func TestDeletePDF(t *testing.T) {
	extractor := &stubExtractor{chunks: []retrieval.Chunk{{Text: "text", Page: 1, Source: "a.pdf"}}}
	a, st, dir := newTestApp(t, extractor, &stubGen{summary: "s"})
	owner := registerUser(t, a, "owner")
	other := registerUser(t, a, "other")
	pdf := uploadDoc(t, a, owner, "a.pdf")

	if err := a.DeletePDF(context.Background(), other, pdf.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign delete should be ErrNotFound, got %v", err)
	}
	if err := a.DeletePDF(context.Background(), owner, pdf.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := st.GetPDF(pdf.ID); ok {
		t.Fatal("pdf record survived delete")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("stored file survived delete: %d entries", len(entries))
	}
}

func TestDeleteAccountCascades(t *testing.T) {
	extractor := &stubExtractor{chunks: []retrieval.Chunk{{Text: "text", Page: 1, Source: "a.pdf"}}}
	a, st, dir := newTestApp(t, extractor, &stubGen{summary: "s", answer: "a"})
	user := registerUser(t, a, "ext-1")
	uploadDoc(t, a, user, "a.pdf")
	if _, err := a.Ask(context.Background(), user, "text"); err != nil {
		t.Fatalf("ask: %v", err)
	}
	if err := a.DeleteAccount(context.Background(), user); err != nil {
		t.Fatalf("delete account: %v", err)
	}
	if _, ok, _ := st.GetUserByExternalID("ext-1"); ok {
		t.Fatal("user survived account delete")
	}
	if msgs, _ := st.ListMessages(user.ID, 10); len(msgs) != 0 {
		t.Fatal("messages survived account delete")
	}
	if pdfs, _ := st.ListPDFsByOwner(user.ID); len(pdfs) != 0 {
		t.Fatal("pdf records survived account delete")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatal("stored files survived account delete")
	}
}

func TestRelatedWork(t *testing.T) {
	extractor := &stubExtractor{chunks: []retrieval.Chunk{{
		Text: "Body. References Smith, J. (2020) A study of things. Journal.",
		Page: 1, Source: "a.pdf",
	}}}
	a, _, _ := newTestApp(t, extractor, &stubGen{summary: "About things.", related: "1. **A Related Paper**"})
	user := registerUser(t, a, "ext-1")

	if _, err := a.RelatedWork(context.Background(), user); !errors.Is(err, ErrNoDocuments) {
		t.Fatal("expected ErrNoDocuments before any upload")
	}
	uploadDoc(t, a, user, "a.pdf")
	related, err := a.RelatedWork(context.Background(), user)
	if err != nil {
		t.Fatalf("related work: %v", err)
	}
	if related.Suggestions != "1. **A Related Paper**" {
		t.Fatalf("wrong suggestions: %q", related.Suggestions)
	}
	if !strings.Contains(related.HTML, "Suggested reading") {
		t.Fatalf("fragment missing suggestions section: %s", related.HTML)
	}
}

func TestRelatedWorkDegradesOnModelError(t *testing.T) {
	extractor := &stubExtractor{chunks: []retrieval.Chunk{{Text: "text", Page: 1, Source: "a.pdf"}}}
	a, _, _ := newTestApp(t, extractor, &stubGen{summary: "s", relatedErr: errors.New("down")})
	user := registerUser(t, a, "ext-1")
	uploadDoc(t, a, user, "a.pdf")
	related, err := a.RelatedWork(context.Background(), user)
	if err != nil {
		t.Fatalf("model failure must not fail the call: %v", err)
	}
	if !strings.Contains(related.Suggestions, "Could not generate related papers") {
		t.Fatalf("missing fallback text: %q", related.Suggestions)
	}
}
