package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Storage StorageConfig `mapstructure:"storage"`
	AI      AIConfig      `mapstructure:"ai"`
	Server  ServerConfig  `mapstructure:"server"`
	Layout  LayoutConfig  `mapstructure:"layout"`
	Inbox   InboxConfig   `mapstructure:"inbox"`
	Index   IndexConfig   `mapstructure:"index"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Version  string `mapstructure:"version"`
	LogLevel string `mapstructure:"log_level"`
	LogPath  string `mapstructure:"log_path"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// AIConfig OpenAI 兼容接口配置
type AIConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	TimeoutSec     int    `mapstructure:"timeout_sec"`
}

// ServerConfig 本地 HTTP 服务
type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// LayoutConfig 关系图布局
type LayoutConfig struct {
	Width          float64 `mapstructure:"width"`
	Height         float64 `mapstructure:"height"`
	LinkDistance   float64 `mapstructure:"link_distance"`
	ChargeStrength float64 `mapstructure:"charge_strength"`
	CollideRadius  float64 `mapstructure:"collide_radius"`
	TickMs         int     `mapstructure:"tick_ms"`
}

// InboxConfig 导入收件箱目录
type InboxConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Dir        string `mapstructure:"dir"`
	DebounceMs int    `mapstructure:"debounce_ms"`
}

// IndexConfig 经历语义索引
type IndexConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	StoragePath string `mapstructure:"storage_path"`
	TopK        int    `mapstructure:"top_k"`
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	// .env 只补充尚未设置的环境变量
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn(".env 读取失败，忽略", "error", err)
	}

	v := viper.New()

	// 设置默认值
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if p, err := DefaultConfigPath(); err == nil {
			v.AddConfigPath(filepath.Dir(p))
		}
	}

	// 支持环境变量
	v.SetEnvPrefix("LIFEMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			slog.Warn("配置文件未找到，使用默认配置")
		} else {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	} else {
		slog.Info("加载配置文件", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// 处理环境变量占位符
	cfg.AI.APIKey = expandEnv(cfg.AI.APIKey)

	// 处理相对路径
	cfg.Storage.DBPath = resolvePath(cfg.Storage.DBPath)
	cfg.Inbox.Dir = resolvePath(cfg.Inbox.Dir)
	cfg.Index.StoragePath = resolvePath(cfg.Index.StoragePath)
	if cfg.App.LogPath != "" {
		cfg.App.LogPath = resolvePath(cfg.App.LogPath)
	}

	return &cfg, nil
}

// Default 仅包含默认值的配置（首次运行写盘用）
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "lifemap")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_path", "")

	// Storage
	v.SetDefault("storage.db_path", "./data/lifemap.db")

	// AI
	v.SetDefault("ai.base_url", "https://api.deepseek.com/v1")
	v.SetDefault("ai.api_key", "${LIFEMAP_API_KEY}")
	v.SetDefault("ai.model", "deepseek-chat")
	v.SetDefault("ai.embedding_model", "")
	v.SetDefault("ai.timeout_sec", 90)

	// Server
	v.SetDefault("server.listen_addr", "127.0.0.1:7420")

	// Layout
	v.SetDefault("layout.width", 800)
	v.SetDefault("layout.height", 600)
	v.SetDefault("layout.link_distance", 100)
	v.SetDefault("layout.charge_strength", -300)
	v.SetDefault("layout.collide_radius", 50)
	v.SetDefault("layout.tick_ms", 16)

	// Inbox
	v.SetDefault("inbox.enabled", false)
	v.SetDefault("inbox.dir", "./inbox")
	v.SetDefault("inbox.debounce_ms", 800)

	// Index
	v.SetDefault("index.enabled", true)
	v.SetDefault("index.storage_path", "./data/index")
	v.SetDefault("index.top_k", 5)
}

// expandEnv 展开环境变量占位符 ${VAR}
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		envVar := s[2 : len(s)-1]
		return os.Getenv(envVar)
	}
	return s
}

// resolvePath 解析相对路径为绝对路径
func resolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}

	// 获取可执行文件目录
	exe, err := os.Executable()
	if err != nil {
		return path
	}

	exeDir := filepath.Dir(exe)
	return filepath.Join(exeDir, path)
}

// LoggerOptions 日志配置
type LoggerOptions struct {
	Level     string
	Path      string // 为空时只写 stdout
	Component string
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// ParseLevel 日志级别，未知值按 info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger 设置默认 logger；返回的 Closer 负责关闭日志文件
func SetupLogger(opts LoggerOptions) (io.Closer, error) {
	var w io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}

	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			return nil, fmt.Errorf("创建日志目录失败: %w", err)
		}
		f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("打开日志文件失败: %w", err)
		}
		w = io.MultiWriter(os.Stdout, f)
		closer = f
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(opts.Level),
	})
	logger := slog.New(handler)
	if opts.Component != "" {
		logger = logger.With("component", opts.Component)
	}
	slog.SetDefault(logger)
	return closer, nil
}
