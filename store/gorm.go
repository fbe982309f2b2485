package store

import (
	"context"

	"github.com/ariebrainware/agendamento/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps keys as rows of the kv_records table.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore migrates the kv_records table and returns a store over it.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&model.KVRecord{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// Get reads one row with Find so a missing key is not logged as a gorm
// "record not found" error; absent keys are routine.
func (s *GormStore) Get(ctx context.Context, key string) ([]byte, error) {
	var rec model.KVRecord
	res := s.db.WithContext(ctx).Where("record_key = ?", key).Limit(1).Find(&rec)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return []byte(rec.Value), nil
}

// Set inserts the key or overwrites its value in place.
func (s *GormStore) Set(ctx context.Context, key string, value []byte) error {
	rec := model.KVRecord{Key: key, Value: datatypes.JSON(value)}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "record_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rec).Error
}

func (s *GormStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("record_key = ?", key).Delete(&model.KVRecord{}).Error
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
