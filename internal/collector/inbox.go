// Package collector 监听收件箱目录，把放入的文件当作文件导入处理。
package collector

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/yuqie6/lifemap/internal/model"
)

const (
	processedDir = "processed"
	failedDir    = "failed"

	// 超过该大小的文件不读入内存，直接移到 failed/
	maxInboxFileBytes = 32 * 1024 * 1024
)

// Importer 文件导入用例
type Importer interface {
	ImportFile(ctx context.Context, name, mimeType string, data []byte) ([]model.Experience, error)
}

// InboxWatcher 收件箱目录监听器
type InboxWatcher struct {
	dir         string
	importer    Importer
	debounceDur time.Duration

	watcher  *fsnotify.Watcher
	queue    chan string
	mu       sync.Mutex
	timers   map[string]*time.Timer
	running  bool
	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}

	// OnProcessed 每个文件处理完成后回调（err 为 nil 表示导入成功）
	OnProcessed func(name string, count int, err error)
}

// InboxConfig 配置
type InboxConfig struct {
	Dir        string
	DebounceMs int
}

// NewInboxWatcher 创建监听器并确保目录存在
func NewInboxWatcher(cfg *InboxConfig, importer Importer) (*InboxWatcher, error) {
	if cfg == nil || strings.TrimSpace(cfg.Dir) == "" {
		return nil, fmt.Errorf("收件箱目录不能为空")
	}
	if importer == nil {
		return nil, fmt.Errorf("importer 不能为空")
	}
	for _, sub := range []string{"", processedDir, failedDir} {
		if err := os.MkdirAll(filepath.Join(cfg.Dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("创建收件箱目录失败: %w", err)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("创建文件监控器失败: %w", err)
	}
	if err := watcher.Add(cfg.Dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("监听收件箱失败: %w", err)
	}

	debounce := time.Duration(cfg.DebounceMs) * time.Millisecond
	if debounce <= 0 {
		debounce = 800 * time.Millisecond
	}

	return &InboxWatcher{
		dir:         cfg.Dir,
		importer:    importer,
		debounceDur: debounce,
		watcher:     watcher,
		queue:       make(chan string, 64),
		timers:      make(map[string]*time.Timer),
		stopChan:    make(chan struct{}),
		done:        make(chan struct{}),
	}, nil
}

// Dir 收件箱目录
func (w *InboxWatcher) Dir() string {
	return w.dir
}

// Start 启动监听；目录里已有的文件也会被处理
func (w *InboxWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	go w.watchLoop(ctx)
	go w.worker(ctx)

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("读取收件箱失败: %w", err)
	}
	for _, e := range entries {
		if e.Type().IsRegular() {
			w.schedule(filepath.Join(w.dir, e.Name()))
		}
	}
	slog.Info("收件箱监听已启动", "dir", w.dir)
	return nil
}

// Stop 停止监听并等待正在处理的文件完成
func (w *InboxWatcher) Stop() error {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		running := w.running
		w.running = false
		for p, t := range w.timers {
			t.Stop()
			delete(w.timers, p)
		}
		w.mu.Unlock()

		close(w.stopChan)
		_ = w.watcher.Close()
		if running {
			<-w.done
		}
		slog.Info("收件箱监听已停止")
	})
	return nil
}

func (w *InboxWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.schedule(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("收件箱监控错误", "error", err)
		}
	}
}

// schedule 防抖：文件在 debounceDur 内没有新写入才入队
func (w *InboxWatcher) schedule(path string) {
	if filepath.Dir(path) != filepath.Clean(w.dir) || skipName(filepath.Base(path)) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	if t, ok := w.timers[path]; ok {
		t.Reset(w.debounceDur)
		return
	}
	w.timers[path] = time.AfterFunc(w.debounceDur, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		select {
		case w.queue <- path:
		case <-w.stopChan:
		}
	})
}

// skipName 隐藏文件与常见临时文件不处理
func skipName(name string) bool {
	return strings.HasPrefix(name, ".") ||
		strings.HasPrefix(name, "~$") ||
		strings.HasSuffix(name, ".tmp") ||
		strings.HasSuffix(name, ".part") ||
		strings.HasSuffix(name, ".crdownload")
}

func (w *InboxWatcher) worker(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case path := <-w.queue:
			w.process(ctx, path)
		}
	}
}

func (w *InboxWatcher) process(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		// 已被移走或删除
		return
	}
	name := filepath.Base(path)

	count, err := w.importOne(ctx, path, name, info.Size())
	target := processedDir
	if err != nil {
		target = failedDir
		slog.Warn("收件箱文件导入失败", "file", name, "error", err)
	} else {
		slog.Info("收件箱文件已导入", "file", name, "count", count)
	}
	if mvErr := moveInto(path, filepath.Join(w.dir, target)); mvErr != nil {
		slog.Error("移动收件箱文件失败", "file", name, "error", mvErr)
	}
	if w.OnProcessed != nil {
		w.OnProcessed(name, count, err)
	}
}

func (w *InboxWatcher) importOne(ctx context.Context, path, name string, size int64) (int, error) {
	if size > maxInboxFileBytes {
		return 0, fmt.Errorf("文件过大: %d bytes", size)
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("打开文件失败: %w", err)
	}
	data, err := io.ReadAll(io.LimitReader(f, maxInboxFileBytes+1))
	_ = f.Close()
	if err != nil {
		return 0, fmt.Errorf("读取文件失败: %w", err)
	}

	// 扩展名推断不出时由导入侧按内容嗅探
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	created, err := w.importer.ImportFile(ctx, name, mimeType, data)
	if err != nil {
		return 0, err
	}
	return len(created), nil
}

// moveInto 移动文件到目标目录，重名时加时间戳前缀
func moveInto(path, dir string) error {
	dst := filepath.Join(dir, filepath.Base(path))
	if _, err := os.Stat(dst); err == nil {
		dst = filepath.Join(dir, time.Now().Format("20060102-150405.000")+"-"+filepath.Base(path))
	}
	return os.Rename(path, dst)
}
