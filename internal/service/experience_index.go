package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"github.com/yuqie6/lifemap/internal/model"
)

// Embedder 生成向量（ai.LLMClient 实现）
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	CanEmbed() bool
}

// IndexConfig 向量索引配置
type IndexConfig struct {
	StoragePath string // 为空时仅在内存中
}

// ExperienceIndex 经历的语义索引，用于给清单生成挑选相关经历
type ExperienceIndex struct {
	mu         sync.Mutex
	db         *chromem.DB
	collection *chromem.Collection
	embedder   Embedder
	hashes     map[string]string
}

// NewExperienceIndex 创建索引
func NewExperienceIndex(embedder Embedder, cfg *IndexConfig) (*ExperienceIndex, error) {
	if cfg == nil {
		cfg = &IndexConfig{}
	}

	var db *chromem.DB
	if cfg.StoragePath == "" {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(cfg.StoragePath, 0755); err != nil {
			return nil, fmt.Errorf("创建索引目录失败: %w", err)
		}
		var err error
		db, err = chromem.NewPersistentDB(cfg.StoragePath, false)
		if err != nil {
			return nil, fmt.Errorf("创建向量数据库失败: %w", err)
		}
	}

	collection, err := db.GetOrCreateCollection("experiences", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("创建 collection 失败: %w", err)
	}

	return &ExperienceIndex{
		db:         db,
		collection: collection,
		embedder:   embedder,
		hashes:     make(map[string]string),
	}, nil
}

// Enabled 是否可用（配置了嵌入模型）
func (x *ExperienceIndex) Enabled() bool {
	return x != nil && x.embedder != nil && x.embedder.CanEmbed()
}

func indexContent(e model.Experience) string {
	return fmt.Sprintf("제목: %s\n분류: %s\n기간: %s ~ %s\n내용: %s",
		e.Title, e.Category, e.StartDate, e.EndDate, e.Description)
}

func contentHash(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Sync 让索引与当前有效经历一致：新增/变化的重新嵌入，消失的删除
func (x *ExperienceIndex) Sync(ctx context.Context, active []model.Experience) error {
	if !x.Enabled() {
		return nil
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	keep := make(map[string]struct{}, len(active))
	var pending []model.Experience
	var contents []string
	for _, e := range active {
		keep[e.ID] = struct{}{}
		c := indexContent(e)
		if x.hashes[e.ID] == contentHash(c) {
			continue
		}
		pending = append(pending, e)
		contents = append(contents, c)
	}

	var stale []string
	for id := range x.hashes {
		if _, ok := keep[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := x.collection.Delete(ctx, nil, nil, stale...); err != nil {
			return fmt.Errorf("删除过期索引失败: %w", err)
		}
		for _, id := range stale {
			delete(x.hashes, id)
		}
	}

	if len(pending) == 0 {
		return nil
	}

	embeddings, err := x.embedder.Embed(ctx, contents)
	if err != nil {
		return fmt.Errorf("生成嵌入失败: %w", err)
	}
	if len(embeddings) != len(pending) {
		return fmt.Errorf("嵌入数量不匹配: want=%d got=%d", len(pending), len(embeddings))
	}

	for i, e := range pending {
		if len(embeddings[i]) == 0 {
			continue
		}
		doc := chromem.Document{
			ID:        e.ID,
			Content:   contents[i],
			Embedding: embeddings[i],
			Metadata: map[string]string{
				"category": e.Category,
				"start":    e.StartDate,
			},
		}
		if err := x.collection.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("添加文档失败: %w", err)
		}
		x.hashes[e.ID] = contentHash(contents[i])
	}

	slog.Debug("经历索引已同步", "added", len(pending), "removed", len(stale), "total", x.collection.Count())
	return nil
}

// Related 按语义相似度返回最多 topK 条有效经历；索引不可用时返回 nil
func (x *ExperienceIndex) Related(ctx context.Context, query string, active []model.Experience, topK int) ([]model.Experience, error) {
	if !x.Enabled() || topK <= 0 {
		return nil, nil
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	n := x.collection.Count()
	if n == 0 {
		return nil, nil
	}
	if topK > n {
		topK = n
	}

	embeddings, err := x.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("生成查询嵌入失败: %w", err)
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, nil
	}

	results, err := x.collection.QueryEmbedding(ctx, embeddings[0], topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("查询向量数据库失败: %w", err)
	}

	byID := make(map[string]model.Experience, len(active))
	for _, e := range active {
		byID[e.ID] = e
	}
	out := make([]model.Experience, 0, len(results))
	for _, r := range results {
		if e, ok := byID[r.ID]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// Count 已索引的文档数
func (x *ExperienceIndex) Count() int {
	return x.collection.Count()
}
