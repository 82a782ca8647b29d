package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yuqie6/lifemap/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrReadOnly 数据库处于安全模式时拒绝写入
var ErrReadOnly = errors.New("数据库处于安全模式，禁止写入")

// BlobRepository 键值文档仓储
type BlobRepository struct {
	db       *gorm.DB
	readOnly bool
}

// NewBlobRepository 创建仓储
func NewBlobRepository(db *gorm.DB) *BlobRepository {
	return &BlobRepository{db: db}
}

// SetReadOnly 安全模式下只读
func (r *BlobRepository) SetReadOnly(readOnly bool) {
	r.readOnly = readOnly
}

// Get 读取文档，不存在返回 ok=false
func (r *BlobRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var blob schema.KVBlob
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&blob).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("读取 %s 失败: %w", key, err)
	}
	return blob.Value, true, nil
}

// Put 整体覆盖写入
func (r *BlobRepository) Put(ctx context.Context, key, value string) error {
	if r.readOnly {
		return ErrReadOnly
	}
	blob := &schema.KVBlob{Key: key, Value: value, UpdatedAt: time.Now()}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(blob).Error
	if err != nil {
		return fmt.Errorf("写入 %s 失败: %w", key, err)
	}
	return nil
}

// Delete 在同一事务内删除多个 key
func (r *BlobRepository) Delete(ctx context.Context, keys ...string) error {
	if r.readOnly {
		return ErrReadOnly
	}
	if len(keys) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Where("key IN ?", keys).Delete(&schema.KVBlob{}).Error
	})
	if err != nil {
		return fmt.Errorf("删除 %v 失败: %w", keys, err)
	}
	return nil
}
