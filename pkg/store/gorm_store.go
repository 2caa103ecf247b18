package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"paperdesk/pkg/domain"
)

const migrateLockID int64 = 52415241

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &ChatMessageModel{}, &PDFModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		if err := tx.Exec(`
			DO $$
			BEGIN
				DELETE FROM chat_message_models m
				WHERE NOT EXISTS (SELECT 1 FROM user_models u WHERE u.id = m.user_id);
				DELETE FROM pdf_models p
				WHERE NOT EXISTS (SELECT 1 FROM user_models u WHERE u.id = p.owner_id);
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'chat_message_models'
					AND constraint_name = 'chat_message_models_user_id_fkey'
				) THEN
					ALTER TABLE chat_message_models
					ADD CONSTRAINT chat_message_models_user_id_fkey
					FOREIGN KEY (user_id) REFERENCES user_models(id) ON DELETE CASCADE;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'pdf_models'
					AND constraint_name = 'pdf_models_owner_id_fkey'
				) THEN
					ALTER TABLE pdf_models
					ADD CONSTRAINT pdf_models_owner_id_fkey
					FOREIGN KEY (owner_id) REFERENCES user_models(id) ON DELETE CASCADE;
				END IF;
			END $$;
		`).Error; err != nil {
			return fmt.Errorf("ensure user foreign keys: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

// CreateUser inserts a new user. Uniqueness violations on external id,
// email, or username surface as ErrDuplicateUser; the existing row is
// never modified.
func (s *GormStore) CreateUser(u domain.User) error {
	model, err := userToModel(u)
	if err != nil {
		return err
	}
	if err := s.db.Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by internal id.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	return s.getUser("id = ?", id)
}

// GetUserByExternalID retrieves a user by the upstream identity subject.
func (s *GormStore) GetUserByExternalID(externalID string) (domain.User, bool, error) {
	return s.getUser("external_id = ?", externalID)
}

// GetUserByEmail retrieves a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	return s.getUser("email = ?", email)
}

func (s *GormStore) getUser(query string, arg string) (domain.User, bool, error) {
	var model UserModel
	err := s.db.Where(query, arg).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.User{}, false, nil
	}
	if err != nil {
		return domain.User{}, false, fmt.Errorf("get user: %w", err)
	}
	user, err := userFromModel(model)
	if err != nil {
		return domain.User{}, false, err
	}
	return user, true, nil
}

// DeleteUser removes a user; dependent chat and PDF rows go with it via
// the ON DELETE CASCADE constraints installed at migration time.
func (s *GormStore) DeleteUser(id string) error {
	if err := s.db.Delete(&UserModel{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// AppendMessage stores one chat turn.
func (s *GormStore) AppendMessage(msg domain.ChatMessage) error {
	model := ChatMessageModel{
		ID:        msg.ID,
		UserID:    msg.UserID,
		Role:      string(msg.Role),
		Content:   msg.Content,
		Citations: msg.Citations,
		CreatedAt: msg.CreatedAt,
	}
	if err := s.db.Create(&model).Error; err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// ListMessages returns the most recent limit messages of a user's chat
// history, ordered oldest first.
func (s *GormStore) ListMessages(userID string, limit int) ([]domain.ChatMessage, error) {
	q := s.db.Where("user_id = ?", userID).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var models []ChatMessageModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	// Fetched newest first; reverse into chronological order.
	msgs := make([]domain.ChatMessage, 0, len(models))
	for i := len(models) - 1; i >= 0; i-- {
		m := models[i]
		msgs = append(msgs, domain.ChatMessage{
			ID:        m.ID,
			UserID:    m.UserID,
			Role:      domain.Role(m.Role),
			Content:   m.Content,
			Citations: m.Citations,
			CreatedAt: m.CreatedAt,
		})
	}
	return msgs, nil
}

// ClearMessages deletes all chat history for a user.
func (s *GormStore) ClearMessages(userID string) error {
	if err := s.db.Delete(&ChatMessageModel{}, "user_id = ?", userID).Error; err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	return nil
}

// SavePDF stores or replaces a PDF metadata row.
func (s *GormStore) SavePDF(p domain.PDF) error {
	model := PDFModel{
		ID:              p.ID,
		OwnerID:         p.OwnerID,
		Filename:        p.Filename,
		StoragePath:     p.StoragePath,
		Pages:           p.Pages,
		Chunks:          p.Chunks,
		Summary:         p.Summary,
		SummaryDegraded: p.SummaryDegraded,
		UploadedAt:      p.UploadedAt,
	}
	if err := s.db.Save(&model).Error; err != nil {
		return fmt.Errorf("save pdf: %w", err)
	}
	return nil
}

// GetPDF retrieves one PDF row by id.
func (s *GormStore) GetPDF(id string) (domain.PDF, bool, error) {
	var model PDFModel
	err := s.db.Where("id = ?", id).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.PDF{}, false, nil
	}
	if err != nil {
		return domain.PDF{}, false, fmt.Errorf("get pdf: %w", err)
	}
	return pdfFromModel(model), true, nil
}

// ListPDFsByOwner returns a user's PDFs, most recent upload first.
func (s *GormStore) ListPDFsByOwner(ownerID string) ([]domain.PDF, error) {
	var models []PDFModel
	if err := s.db.Where("owner_id = ?", ownerID).Order("uploaded_at DESC, id ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list pdfs: %w", err)
	}
	pdfs := make([]domain.PDF, 0, len(models))
	for _, m := range models {
		pdfs = append(pdfs, pdfFromModel(m))
	}
	return pdfs, nil
}

// DeletePDF removes one PDF metadata row.
func (s *GormStore) DeletePDF(id string) error {
	if err := s.db.Delete(&PDFModel{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete pdf: %w", err)
	}
	return nil
}

// UserStats counts a user's uploads and messages. Two independent counts;
// no cross-table transaction is needed for informational totals.
func (s *GormStore) UserStats(userID string) (domain.UserStats, error) {
	var pdfs int64
	if err := s.db.Model(&PDFModel{}).Where("owner_id = ?", userID).Count(&pdfs).Error; err != nil {
		return domain.UserStats{}, fmt.Errorf("count pdfs: %w", err)
	}
	var msgs int64
	if err := s.db.Model(&ChatMessageModel{}).Where("user_id = ?", userID).Count(&msgs).Error; err != nil {
		return domain.UserStats{}, fmt.Errorf("count messages: %w", err)
	}
	return domain.UserStats{PDFsUploaded: int(pdfs), MessagesSent: int(msgs)}, nil
}

func userToModel(u domain.User) (UserModel, error) {
	interests, err := json.Marshal(u.ResearchInterests)
	if err != nil {
		return UserModel{}, fmt.Errorf("encode research interests: %w", err)
	}
	return UserModel{
		ID:                u.ID,
		ExternalID:        u.ExternalID,
		Email:             u.Email,
		Name:              u.Name,
		Username:          u.Username,
		Organization:      u.Organization,
		ResearchInterests: datatypes.JSON(interests),
		CreatedAt:         u.CreatedAt,
	}, nil
}

func userFromModel(m UserModel) (domain.User, error) {
	var interests []string
	if len(m.ResearchInterests) > 0 {
		if err := json.Unmarshal(m.ResearchInterests, &interests); err != nil {
			return domain.User{}, fmt.Errorf("decode research interests: %w", err)
		}
	}
	return domain.User{
		ID:                m.ID,
		ExternalID:        m.ExternalID,
		Email:             m.Email,
		Name:              m.Name,
		Username:          m.Username,
		Organization:      m.Organization,
		ResearchInterests: interests,
		CreatedAt:         m.CreatedAt,
	}, nil
}

func pdfFromModel(m PDFModel) domain.PDF {
	return domain.PDF{
		ID:              m.ID,
		OwnerID:         m.OwnerID,
		Filename:        m.Filename,
		StoragePath:     m.StoragePath,
		Pages:           m.Pages,
		Chunks:          m.Chunks,
		Summary:         m.Summary,
		SummaryDegraded: m.SummaryDegraded,
		UploadedAt:      m.UploadedAt,
	}
}
