package store

import (
	"testing"
	"time"

	"paperdesk/pkg/domain"
)

func testUser(id, ext string) domain.User {
	return domain.User{
		ID:         id,
		ExternalID: ext,
		Email:      ext + "@example.com",
		Username:   ext,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestMemoryStoreUserUniqueness(t *testing.T) {
	m := NewMemoryStore()
	if err := m.CreateUser(testUser("u1", "ext-1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	dupExt := testUser("u2", "ext-1")
	dupExt.Email = "different@example.com"
	dupExt.Username = "different"
	if err := m.CreateUser(dupExt); err != ErrDuplicateUser {
		t.Fatalf("duplicate external id: want ErrDuplicateUser, got %v", err)
	}
	dupEmail := testUser("u3", "ext-3")
	dupEmail.Email = "ext-1@example.com"
	if err := m.CreateUser(dupEmail); err != ErrDuplicateUser {
		t.Fatalf("duplicate email: want ErrDuplicateUser, got %v", err)
	}
	dupName := testUser("u4", "ext-4")
	dupName.Username = "ext-1"
	if err := m.CreateUser(dupName); err != ErrDuplicateUser {
		t.Fatalf("duplicate username: want ErrDuplicateUser, got %v", err)
	}
}

func TestMemoryStoreLookups(t *testing.T) {
	m := NewMemoryStore()
	u := testUser("u1", "ext-1")
	if err := m.CreateUser(u); err != nil {
		t.Fatalf("create: %v", err)
	}
	if got, ok, _ := m.GetUserByID("u1"); !ok || got.ExternalID != "ext-1" {
		t.Fatalf("by id: ok=%v %+v", ok, got)
	}
	if got, ok, _ := m.GetUserByExternalID("ext-1"); !ok || got.ID != "u1" {
		t.Fatalf("by external id: ok=%v %+v", ok, got)
	}
	if got, ok, _ := m.GetUserByEmail("ext-1@example.com"); !ok || got.ID != "u1" {
		t.Fatalf("by email: ok=%v %+v", ok, got)
	}
	if _, ok, _ := m.GetUserByID("missing"); ok {
		t.Fatal("missing id should not resolve")
	}
}

func TestMemoryStoreMessageOrderAndLimit(t *testing.T) {
	m := NewMemoryStore()
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		msg := domain.ChatMessage{
			ID:        NewID(),
			UserID:    "u1",
			Role:      domain.RoleUser,
			Content:   string(rune('a' + i)),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := m.AppendMessage(msg); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	msgs, err := m.ListMessages("u1", 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("limit ignored: got %d", len(msgs))
	}
	// The most recent messages, still in chronological order.
	if msgs[0].Content != "c" || msgs[2].Content != "e" {
		t.Fatalf("wrong window: %q..%q", msgs[0].Content, msgs[2].Content)
	}
}

func TestMemoryStorePDFOrderNewestFirst(t *testing.T) {
	m := NewMemoryStore()
	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		p := domain.PDF{
			ID:         NewID(),
			OwnerID:    "u1",
			Filename:   string(rune('a'+i)) + ".pdf",
			UploadedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := m.SavePDF(p); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	pdfs, err := m.ListPDFsByOwner("u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pdfs) != 3 {
		t.Fatalf("expected 3 pdfs, got %d", len(pdfs))
	}
	if pdfs[0].Filename != "c.pdf" || pdfs[2].Filename != "a.pdf" {
		t.Fatalf("wrong order: %s .. %s", pdfs[0].Filename, pdfs[2].Filename)
	}
}

func TestMemoryStoreDeleteUserCascades(t *testing.T) {
	m := NewMemoryStore()
	if err := m.CreateUser(testUser("u1", "ext-1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := m.AppendMessage(domain.ChatMessage{ID: "m1", UserID: "u1", Role: domain.RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := m.SavePDF(domain.PDF{ID: "p1", OwnerID: "u1", Filename: "a.pdf"}); err != nil {
		t.Fatalf("save pdf: %v", err)
	}
	if err := m.DeleteUser("u1"); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if _, ok, _ := m.GetUserByID("u1"); ok {
		t.Fatal("user survived delete")
	}
	if msgs, _ := m.ListMessages("u1", 10); len(msgs) != 0 {
		t.Fatal("messages survived user delete")
	}
	if pdfs, _ := m.ListPDFsByOwner("u1"); len(pdfs) != 0 {
		t.Fatal("pdfs survived user delete")
	}
	// Identity keys are freed for re-registration.
	if err := m.CreateUser(testUser("u2", "ext-1")); err != nil {
		t.Fatalf("re-register after delete: %v", err)
	}
}

func TestNewIDDistinct(t *testing.T) {
	a, b := NewID(), NewID()
	if a == b {
		t.Fatal("ids must be distinct")
	}
	if len(a) != 24 {
		t.Fatalf("unexpected id length %d", len(a))
	}
}
