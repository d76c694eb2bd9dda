package history

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Record inserts h, or refreshes the timestamp of an identical existing row.
func (r *Repo) Record(ctx context.Context, h *PromptHistory) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing PromptHistory
		err := tx.Where("user_id = ? AND operation_type = ? AND prompt = ? AND attachment_id = ? AND image_hash = ?",
			h.UserID, h.OperationType, h.Prompt, h.AttachmentID, h.ImageHash).
			Order("id DESC").
			First(&existing).Error
		if err == nil {
			now := r.now()
			updates := map[string]any{"created_at": now}
			if len(h.OperationData) > 0 {
				updates["operation_data"] = h.OperationData
			}
			if err := tx.Model(&PromptHistory{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
				return err
			}
			h.ID = existing.ID
			h.CreatedAt = now
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if h.CreatedAt.IsZero() {
			h.CreatedAt = r.now()
		}
		return tx.Create(h).Error
	})
}

type Query struct {
	ImageHash     string
	AttachmentID  int64
	OperationType string
	Limit         int
}

// List returns a user's history newest first.
func (r *Repo) List(ctx context.Context, userID uint64, q Query) ([]PromptHistory, error) {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}

	tx := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if q.ImageHash != "" {
		tx = tx.Where("image_hash = ?", q.ImageHash)
	}
	if q.AttachmentID > 0 {
		tx = tx.Where("attachment_id = ?", q.AttachmentID)
	}
	if q.OperationType != "" {
		tx = tx.Where("operation_type = ?", q.OperationType)
	}

	var out []PromptHistory
	if err := tx.Order("created_at DESC").Order("id DESC").Limit(q.Limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// GetInspiration returns cached suggestions, or (nil, false) on a miss.
func (r *Repo) GetInspiration(ctx context.Context, userID uint64, imageHash string) (datatypes.JSON, bool, error) {
	var row Inspiration
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND image_hash = ?", userID, imageHash).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return row.Suggestions, true, nil
}

func (r *Repo) PutInspiration(ctx context.Context, userID uint64, imageHash string, suggestions datatypes.JSON) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "image_hash"}},
		DoUpdates: clause.AssignmentColumns([]string{"suggestions", "updated_at"}),
	}).Create(&Inspiration{
		UserID:      userID,
		ImageHash:   imageHash,
		Suggestions: suggestions,
	}).Error
}
