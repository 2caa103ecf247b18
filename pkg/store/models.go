package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID                string `gorm:"primaryKey"`
	ExternalID        string `gorm:"uniqueIndex;not null"`
	Email             string `gorm:"uniqueIndex;not null"`
	Name              string `gorm:"not null"`
	Username          string `gorm:"uniqueIndex;not null"`
	Organization      string `gorm:"not null"`
	ResearchInterests datatypes.JSON
	CreatedAt         time.Time `gorm:"not null"`
}

type ChatMessageModel struct {
	ID        string    `gorm:"primaryKey"`
	UserID    string    `gorm:"not null;index"`
	Role      string    `gorm:"not null"`
	Content   string    `gorm:"type:text;not null"`
	Citations string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null;index"`
}

type PDFModel struct {
	ID              string `gorm:"primaryKey"`
	OwnerID         string `gorm:"not null;index"`
	Filename        string `gorm:"not null"`
	StoragePath     string `gorm:"not null"`
	Pages           int    `gorm:"not null"`
	Chunks          int    `gorm:"not null"`
	Summary         string `gorm:"type:text"`
	SummaryDegraded bool
	UploadedAt      time.Time `gorm:"not null;index"`
}
