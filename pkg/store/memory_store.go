package store

import (
	"sort"
	"sync"

	"paperdesk/pkg/domain"
)

// MemoryStore keeps all records in-process. It mirrors GormStore semantics
// (uniqueness, cascade on user delete, ordering) for tests and local runs.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	byExtID  map[string]string // external id -> user id
	byEmail  map[string]string // email -> user id
	byName   map[string]string // username -> user id
	messages map[string][]domain.ChatMessage
	pdfs     map[string]domain.PDF
	pdfOrder []string
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]domain.User),
		byExtID:  make(map[string]string),
		byEmail:  make(map[string]string),
		byName:   make(map[string]string),
		messages: make(map[string][]domain.ChatMessage),
		pdfs:     make(map[string]domain.PDF),
	}
}

// CreateUser inserts a user, enforcing the same uniqueness rules as the
// database store.
func (m *MemoryStore) CreateUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byExtID[u.ExternalID]; ok {
		return ErrDuplicateUser
	}
	if _, ok := m.byEmail[u.Email]; ok {
		return ErrDuplicateUser
	}
	if _, ok := m.byName[u.Username]; ok {
		return ErrDuplicateUser
	}
	m.users[u.ID] = u
	m.byExtID[u.ExternalID] = u.ID
	m.byEmail[u.Email] = u.ID
	m.byName[u.Username] = u.ID
	return nil
}

// GetUserByID retrieves a user by internal id.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// GetUserByExternalID retrieves a user by the upstream identity subject.
func (m *MemoryStore) GetUserByExternalID(externalID string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byExtID[externalID]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

// GetUserByEmail retrieves a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

// DeleteUser removes the user along with their chat history and PDF rows.
func (m *MemoryStore) DeleteUser(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil
	}
	delete(m.users, id)
	delete(m.byExtID, u.ExternalID)
	delete(m.byEmail, u.Email)
	delete(m.byName, u.Username)
	delete(m.messages, id)
	filtered := m.pdfOrder[:0]
	for _, pdfID := range m.pdfOrder {
		if p, ok := m.pdfs[pdfID]; ok && p.OwnerID == id {
			delete(m.pdfs, pdfID)
			continue
		}
		filtered = append(filtered, pdfID)
	}
	m.pdfOrder = filtered
	return nil
}

// AppendMessage stores one chat turn.
func (m *MemoryStore) AppendMessage(msg domain.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.UserID] = append(m.messages[msg.UserID], msg)
	return nil
}

// ListMessages returns the most recent limit messages of a user's chat
// history, ordered oldest first.
func (m *MemoryStore) ListMessages(userID string, limit int) ([]domain.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.messages[userID]
	out := make([]domain.ChatMessage, len(msgs))
	copy(out, msgs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// ClearMessages deletes all chat history for a user.
func (m *MemoryStore) ClearMessages(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.messages, userID)
	return nil
}

// SavePDF stores or replaces a PDF metadata row.
func (m *MemoryStore) SavePDF(p domain.PDF) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.pdfs[p.ID]; !exists {
		m.pdfOrder = append(m.pdfOrder, p.ID)
	}
	m.pdfs[p.ID] = p
	return nil
}

// GetPDF retrieves one PDF row by id.
func (m *MemoryStore) GetPDF(id string) (domain.PDF, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pdfs[id]
	return p, ok, nil
}

// ListPDFsByOwner returns a user's PDFs, most recent upload first.
func (m *MemoryStore) ListPDFsByOwner(ownerID string) ([]domain.PDF, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.PDF, 0, len(m.pdfOrder))
	for _, id := range m.pdfOrder {
		if p, ok := m.pdfs[id]; ok && p.OwnerID == ownerID {
			res = append(res, p)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].UploadedAt.After(res[j].UploadedAt)
	})
	return res, nil
}

// DeletePDF removes one PDF metadata row.
func (m *MemoryStore) DeletePDF(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pdfs, id)
	filtered := m.pdfOrder[:0]
	for _, item := range m.pdfOrder {
		if item != id {
			filtered = append(filtered, item)
		}
	}
	m.pdfOrder = filtered
	return nil
}

// UserStats counts a user's uploads and messages.
func (m *MemoryStore) UserStats(userID string) (domain.UserStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := domain.UserStats{MessagesSent: len(m.messages[userID])}
	for _, p := range m.pdfs {
		if p.OwnerID == userID {
			stats.PDFsUploaded++
		}
	}
	return stats, nil
}
