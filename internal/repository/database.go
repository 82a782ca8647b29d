package repository

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"github.com/yuqie6/lifemap/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// connPragmas 每个连接建立时执行；agent 与 CLI 会同时打开同一文件
const connPragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

// Database 本地状态库
// SafeMode 为 true 时 schema 不可用，上层只读并提示用户
type Database struct {
	DB             *gorm.DB
	SafeMode       bool
	SchemaVersion  int
	MigrationError string
}

// migration 一个 schema 版本的升级步骤
type migration struct {
	version int
	name    string
	up      func(tx *gorm.DB) error
}

var migrations = []migration{
	{version: 1, name: "kv_blobs", up: func(tx *gorm.DB) error {
		return tx.AutoMigrate(&schema.KVBlob{})
	}},
}

var latestSchemaVersion = migrations[len(migrations)-1].version

// NewDatabase 打开（必要时创建）状态库并升级到最新 schema
func NewDatabase(dbPath string) (*Database, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?"+connPragmas), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("打开状态库失败: %w", err)
	}

	d := &Database{DB: db}
	if err := d.upgrade(); err != nil {
		d.SafeMode = true
		d.MigrationError = err.Error()
		slog.Error("状态库升级失败，进入安全模式", "path", dbPath, "error", err)
		return d, nil
	}
	slog.Info("状态库已就绪", "path", dbPath, "schema_version", d.SchemaVersion)
	return d, nil
}

// upgrade 依次执行高于当前版本的步骤，每步独立事务并写回版本号
func (d *Database) upgrade() error {
	if err := d.DB.AutoMigrate(&schema.SchemaMeta{}); err != nil {
		return fmt.Errorf("创建 schema_meta 失败: %w", err)
	}

	var meta schema.SchemaMeta
	switch err := d.DB.First(&meta, 1).Error; {
	case errors.Is(err, gorm.ErrRecordNotFound):
		meta = schema.SchemaMeta{ID: 1}
		if err := d.DB.Create(&meta).Error; err != nil {
			return fmt.Errorf("初始化 schema_meta 失败: %w", err)
		}
	case err != nil:
		return fmt.Errorf("读取 schema_meta 失败: %w", err)
	}
	d.SchemaVersion = meta.SchemaVersion

	if meta.SchemaVersion > latestSchemaVersion {
		return fmt.Errorf("数据文件 schema_version=%d 高于本程序支持的 %d，请升级程序", meta.SchemaVersion, latestSchemaVersion)
	}

	for _, m := range migrations {
		if m.version <= d.SchemaVersion {
			continue
		}
		err := d.DB.Transaction(func(tx *gorm.DB) error {
			if err := m.up(tx); err != nil {
				return err
			}
			return tx.Model(&schema.SchemaMeta{}).Where("id = ?", 1).Update("schema_version", m.version).Error
		})
		if err != nil {
			return fmt.Errorf("升级到 v%d (%s) 失败: %w", m.version, m.name, err)
		}
		slog.Debug("schema 升级完成", "version", m.version, "step", m.name)
		d.SchemaVersion = m.version
	}
	return nil
}

// Close 关闭连接池
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
