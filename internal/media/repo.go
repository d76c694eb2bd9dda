package media

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) images(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&Attachment{}).Where("mime_type LIKE ?", "image/%")
}

func (r *Repo) Create(ctx context.Context, a *Attachment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *Repo) Get(ctx context.Context, id int64) (*Attachment, error) {
	var a Attachment
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// Save persists every column of a, used when an edited image replaces the file.
func (r *Repo) Save(ctx context.Context, a *Attachment) error {
	return r.db.WithContext(ctx).Save(a).Error
}

// FilterForBulk returns the bulk work-list in id order.
func (r *Repo) FilterForBulk(ctx context.Context, f Filter) ([]Attachment, error) {
	q := r.images(ctx)
	if f.OnlyAttached {
		q = q.Where("parent_id <> 0")
	}
	if !f.OverwriteExisting {
		q = q.Where("(alt_text IS NULL OR alt_text = '')")
	}
	if f.SkipProcessed {
		q = q.Where("alt_processed_at IS NULL")
	}

	var out []Attachment
	if err := q.Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateAltText sanitizes alt and stores it, returning the stored value.
func (r *Repo) UpdateAltText(ctx context.Context, id int64, alt string) (string, error) {
	clean := SanitizeText(alt)
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&Attachment{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"alt_text":         clean,
			"alt_processed_at": now,
		})
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		return "", gorm.ErrRecordNotFound
	}
	return clean, nil
}

func (r *Repo) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	if err := r.images(ctx).Count(&s.TotalImages).Error; err != nil {
		return s, err
	}
	if err := r.images(ctx).Where("alt_text IS NOT NULL AND alt_text <> ''").Count(&s.WithAlt).Error; err != nil {
		return s, err
	}
	s.WithoutAlt = s.TotalImages - s.WithAlt
	if err := r.images(ctx).
		Where("parent_id <> 0").
		Where("(alt_text IS NULL OR alt_text = '')").
		Count(&s.AttachedWithoutAlt).Error; err != nil {
		return s, err
	}
	if err := r.images(ctx).Where("alt_processed_at IS NOT NULL").Count(&s.Processed).Error; err != nil {
		return s, err
	}
	return s, nil
}
