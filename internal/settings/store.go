package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Option is one row of the key/value options table.
type Option struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	Name      string    `gorm:"column:option_name;type:varchar(191);uniqueIndex;not null"`
	Value     string    `gorm:"column:option_value;type:longtext;not null"`
	UpdatedAt time.Time
}

func (Option) TableName() string { return "options" }

type Store struct {
	db     *gorm.DB
	sealer sealer
}

func NewStore(db *gorm.DB, secret string) *Store {
	return &Store{db: db, sealer: newSealer(secret)}
}

// Load returns the stored settings merged over the defaults.
func (s *Store) Load(ctx context.Context) (Settings, error) {
	out := Defaults()

	var row Option
	err := s.db.WithContext(ctx).Where("option_name = ?", OptionName).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return out, nil
	}
	if err != nil {
		return out, err
	}

	if err := json.Unmarshal([]byte(row.Value), &out); err != nil {
		return Defaults(), fmt.Errorf("settings: decode option: %w", err)
	}
	key, err := s.sealer.open(out.APIKey)
	if err != nil {
		return Defaults(), err
	}
	out.APIKey = key
	return out.Normalize(), nil
}

func (s *Store) Save(ctx context.Context, st Settings) error {
	st = st.Normalize()
	st.APIKey = strings.TrimSpace(st.APIKey)

	sealed, err := s.sealer.seal(st.APIKey)
	if err != nil {
		return err
	}
	st.APIKey = sealed

	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "option_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"option_value", "updated_at"}),
	}).Create(&Option{Name: OptionName, Value: string(b)}).Error
}

func (s *Store) SetAPIKey(ctx context.Context, key string) error {
	st, err := s.Load(ctx)
	if err != nil {
		return err
	}
	st.APIKey = key
	return s.Save(ctx, st)
}

// APIKey lets the store act as the remote client's key source.
func (s *Store) APIKey(ctx context.Context) (string, error) {
	st, err := s.Load(ctx)
	if err != nil {
		return "", err
	}
	return st.APIKey, nil
}
