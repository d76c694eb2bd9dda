package history

import (
	"crypto/md5"
	"encoding/hex"
	"time"

	"gorm.io/datatypes"
)

const (
	OpGenerate = "generate"
	OpEdit     = "edit"
	OpInspire  = "inspire"
)

type PromptHistory struct {
	ID            uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        uint64         `gorm:"not null;index:idx_history_user_hash,priority:1;index:idx_history_user_created,priority:1" json:"-"`
	OperationType string         `gorm:"type:varchar(32);not null;index" json:"operation_type"`
	Prompt        string         `gorm:"type:text;not null" json:"prompt"`
	AttachmentID  int64          `gorm:"not null;default:0;index" json:"attachment_id"`
	ImageHash     string         `gorm:"type:varchar(32);not null;default:'';index:idx_history_user_hash,priority:2" json:"image_hash"`
	OperationData datatypes.JSON `json:"operation_data,omitempty"`
	CreatedAt     time.Time      `gorm:"index:idx_history_user_created,priority:2" json:"created_at"`
}

func (PromptHistory) TableName() string { return "w3a11y_artisan_history" }

// Inspiration caches remote suggestions per user and image. Rows are overwritten, never expired.
type Inspiration struct {
	ID          uint64         `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID      uint64         `gorm:"not null;uniqueIndex:uniq_inspiration_user_hash,priority:1" json:"-"`
	ImageHash   string         `gorm:"type:varchar(32);not null;uniqueIndex:uniq_inspiration_user_hash,priority:2" json:"image_hash"`
	Suggestions datatypes.JSON `gorm:"not null" json:"suggestions"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (Inspiration) TableName() string { return "w3a11y_artisan_inspiration" }

// ImageHash is the lowercase hex MD5 of a base64 image payload.
func ImageHash(b64 string) string {
	sum := md5.Sum([]byte(b64))
	return hex.EncodeToString(sum[:])
}
