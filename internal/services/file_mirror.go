package services

import (
	"context"
	"time"

	"github.com/animdrive/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FileMirror keeps the optional relational copy of Drive file metadata.
// The mirror is never authoritative: a nil database disables it entirely
// and callers swallow its errors.
type FileMirror struct {
	db *gorm.DB
}

func NewFileMirror(db *gorm.DB) *FileMirror {
	return &FileMirror{db: db}
}

// Enabled reports whether a relational store is configured.
func (m *FileMirror) Enabled() bool {
	return m.db != nil
}

// Upsert writes one file row, replacing any previous row for the same
// Drive id.
func (m *FileMirror) Upsert(ctx context.Context, rec *models.FileRecord) error {
	if m.db == nil {
		return nil
	}

	now := time.Now().UTC()
	rec.UpdatedAt = now
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}

	return m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "type", "size", "url", "owner_id", "owner_email", "updated_at",
		}),
	}).Create(rec).Error
}
