package media

import "time"

// Attachment is an uploaded media item together with its alt-text meta.
type Attachment struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	ParentID       int64      `gorm:"index;not null;default:0" json:"parent_id"`
	Title          string     `gorm:"type:varchar(255);not null;default:''" json:"title"`
	URL            string     `gorm:"type:varchar(2048);not null" json:"url"`
	FilePath       string     `gorm:"type:varchar(1024)" json:"-"`
	MimeType       string     `gorm:"type:varchar(100);index;not null" json:"mime_type"`
	AltText        *string    `gorm:"type:text" json:"alt_text"`
	Context        string     `gorm:"type:text" json:"context,omitempty"`
	AltProcessedAt *time.Time `gorm:"index" json:"alt_processed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (Attachment) TableName() string { return "attachments" }

// Alt returns the alt text or "" when unset.
func (a *Attachment) Alt() string {
	if a.AltText == nil {
		return ""
	}
	return *a.AltText
}

type Filter struct {
	OnlyAttached      bool
	OverwriteExisting bool
	SkipProcessed     bool
}

type Stats struct {
	TotalImages        int64 `json:"total_images"`
	WithAlt            int64 `json:"with_alt"`
	WithoutAlt         int64 `json:"without_alt"`
	AttachedWithoutAlt int64 `json:"attached_without_alt"`
	Processed          int64 `json:"processed"`
}
