package model

import (
	"time"

	"gorm.io/datatypes"
)

// KVRecord is one key of the key-value store when it is backed by SQL.
// Value holds the serialized JSON document for the key.
type KVRecord struct {
	Key       string         `json:"key" gorm:"column:record_key;type:varchar(191);primaryKey"`
	Value     datatypes.JSON `json:"value" gorm:"column:value;type:json;not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (KVRecord) TableName() string {
	return "kv_records"
}
