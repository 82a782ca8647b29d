package schema

import "time"

// KVBlob 本地键值存储：每个 key 对应一份完整 JSON 文档
// 目前只有 userProfile 与 experiences 两个 key
type KVBlob struct {
	Key       string    `gorm:"primaryKey;size:64"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (KVBlob) TableName() string {
	return "kv_blobs"
}
