package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

func DefaultConfigPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("获取可执行文件路径失败: %w", err)
	}
	exeDir := filepath.Dir(exe)
	return filepath.Join(exeDir, "config", "config.yaml"), nil
}

// WriteFile 写出配置；api_key 保持原样（通常是 ${VAR} 占位符）
func WriteFile(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("cfg 不能为空")
	}
	if path == "" {
		return fmt.Errorf("path 不能为空")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	payload := map[string]any{
		"app": map[string]any{
			"name":      cfg.App.Name,
			"version":   cfg.App.Version,
			"log_level": cfg.App.LogLevel,
			"log_path":  cfg.App.LogPath,
		},
		"storage": map[string]any{
			"db_path": cfg.Storage.DBPath,
		},
		"ai": map[string]any{
			"base_url":        cfg.AI.BaseURL,
			"api_key":         cfg.AI.APIKey,
			"model":           cfg.AI.Model,
			"embedding_model": cfg.AI.EmbeddingModel,
			"timeout_sec":     cfg.AI.TimeoutSec,
		},
		"server": map[string]any{
			"listen_addr": cfg.Server.ListenAddr,
		},
		"layout": map[string]any{
			"width":           cfg.Layout.Width,
			"height":          cfg.Layout.Height,
			"link_distance":   cfg.Layout.LinkDistance,
			"charge_strength": cfg.Layout.ChargeStrength,
			"collide_radius":  cfg.Layout.CollideRadius,
			"tick_ms":         cfg.Layout.TickMs,
		},
		"inbox": map[string]any{
			"enabled":     cfg.Inbox.Enabled,
			"dir":         cfg.Inbox.Dir,
			"debounce_ms": cfg.Inbox.DebounceMs,
		},
		"index": map[string]any{
			"enabled":      cfg.Index.Enabled,
			"storage_path": cfg.Index.StoragePath,
			"top_k":        cfg.Index.TopK,
		},
	}

	b, err := yaml.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	return nil
}

// EnsureDefault 配置文件不存在时写出默认配置，返回是否新建
func EnsureDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("检查配置文件失败: %w", err)
	}
	if err := WriteFile(path, Default()); err != nil {
		return false, err
	}
	return true, nil
}
