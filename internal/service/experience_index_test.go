package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuqie6/lifemap/internal/model"
)

// keywordEmbedder 按关键词出现次数生成向量
type keywordEmbedder struct {
	mu       sync.Mutex
	keywords []string
	embedded int
	disabled bool
}

func (k *keywordEmbedder) CanEmbed() bool { return !k.disabled }

func (k *keywordEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	k.mu.Lock()
	k.embedded += len(texts)
	k.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, len(k.keywords)+1)
		for j, kw := range k.keywords {
			v[j] = float32(strings.Count(text, kw))
		}
		v[len(k.keywords)] = 0.01
		out[i] = v
	}
	return out, nil
}

func (k *keywordEmbedder) count() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.embedded
}

func TestExperienceIndexRelated(t *testing.T) {
	emb := &keywordEmbedder{keywords: []string{"코딩", "마라톤", "그림"}}
	idx, err := NewExperienceIndex(emb, nil)
	require.NoError(t, err)
	ctx := context.Background()

	active := []model.Experience{
		exp("a", "코딩 동아리", "2023.01.01"),
		exp("b", "마라톤 완주", "2023.01.01"),
		exp("c", "그림 전시", "2023.01.01"),
	}
	require.NoError(t, idx.Sync(ctx, active))
	assert.Equal(t, 3, idx.Count())

	got, err := idx.Related(ctx, "마라톤 준비", active, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)

	// topK 超过文档数时截断
	got, err = idx.Related(ctx, "코딩", active, 10)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, "a", got[0].ID)
}

func TestExperienceIndexSyncIsIncremental(t *testing.T) {
	emb := &keywordEmbedder{keywords: []string{"코딩"}}
	idx, err := NewExperienceIndex(emb, nil)
	require.NoError(t, err)
	ctx := context.Background()

	a, b := exp("a", "코딩", "2023.01.01"), exp("b", "독서", "2023.01.01")
	require.NoError(t, idx.Sync(ctx, []model.Experience{a, b}))
	assert.Equal(t, 2, emb.count())

	require.NoError(t, idx.Sync(ctx, []model.Experience{a, b}))
	assert.Equal(t, 2, emb.count(), "unchanged records are not re-embedded")

	b.Title = "코딩 독서"
	require.NoError(t, idx.Sync(ctx, []model.Experience{a, b}))
	assert.Equal(t, 3, emb.count())

	require.NoError(t, idx.Sync(ctx, []model.Experience{a}))
	assert.Equal(t, 1, idx.Count())

	// 已不在有效列表中的结果被过滤
	got, err := idx.Related(ctx, "코딩", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExperienceIndexDisabled(t *testing.T) {
	emb := &keywordEmbedder{disabled: true}
	idx, err := NewExperienceIndex(emb, nil)
	require.NoError(t, err)

	active := []model.Experience{exp("a", "코딩", "2023.01.01")}
	require.NoError(t, idx.Sync(context.Background(), active))
	got, err := idx.Related(context.Background(), "코딩", active, 3)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 0, emb.count())
}

func TestExperienceIndexPersistent(t *testing.T) {
	emb := &keywordEmbedder{keywords: []string{"코딩"}}
	idx, err := NewExperienceIndex(emb, &IndexConfig{StoragePath: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, idx.Sync(context.Background(), []model.Experience{exp("a", "코딩", "2023.01.01")}))
	assert.Equal(t, 1, idx.Count())
}
