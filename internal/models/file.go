package models

import (
	"time"

	"gorm.io/gorm"
)

// FileRecord is the optional relational mirror of a Drive file. The storage
// provider stays the system of record; this table is best-effort and rows
// may be missing or stale.
type FileRecord struct {
	ID         string    `gorm:"primaryKey;size:128" json:"id"` // Drive file id
	Name       string    `gorm:"size:512" json:"name"`
	Type       string    `gorm:"size:255" json:"type"`
	Size       int64     `json:"size"`
	URL        string    `gorm:"size:1024" json:"url"`
	OwnerID    string    `gorm:"size:64;index" json:"owner_id"` // identity provider subject
	OwnerEmail string    `gorm:"size:255" json:"owner_email"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (FileRecord) TableName() string {
	return "files"
}

// AutoMigrate creates the mirror schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&FileRecord{})
}
