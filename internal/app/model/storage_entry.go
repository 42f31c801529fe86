package model

import "time"

// StorageEntry is one key of the persistent per-origin store when it lives in PostgreSQL.
type StorageEntry struct {
	Origin    string    `gorm:"primaryKey;size:100" json:"origin"`
	Key       string    `gorm:"primaryKey;size:191" json:"key"`
	Value     []byte    `gorm:"not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (StorageEntry) TableName() string {
	return "storage_entries"
}
