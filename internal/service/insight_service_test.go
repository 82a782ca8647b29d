package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuqie6/lifemap/internal/eventbus"
	"github.com/yuqie6/lifemap/internal/model"
	"github.com/yuqie6/lifemap/internal/pkg/apperr"
)

func newInsight(env *testEnv, gw *fakeGateway, cfg *InsightConfig) *InsightService {
	s := NewInsightService(env.store, env.lifecycle, env.attachments, gw, cfg)
	s.SetPublisher(env.pub)
	return s
}

func TestAnalyzeEmptyFailsBeforeGateway(t *testing.T) {
	env := newTestEnv(t, trashed(exp("a", "삭제", "2023.01.01"), testNow))
	gw := &fakeGateway{}
	s := newInsight(env, gw, nil)

	_, err := s.Analyze(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, 0, gw.calls())
}

func TestAnalyzeSendsOnlyActive(t *testing.T) {
	env := newTestEnv(t,
		exp("a", "활성", "2023.01.01"),
		trashed(exp("b", "삭제", "2023.01.01"), testNow),
	)
	gw := &fakeGateway{result: &model.AnalysisResult{Summary: "좋아요"}}
	s := newInsight(env, gw, nil)

	res, err := s.Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "좋아요", res.Summary)
	assert.NotNil(t, res.Relationships)
	require.Len(t, gw.lastBriefs, 1)
	assert.Equal(t, "a", gw.lastBriefs[0].ID)
}

func TestAnalyzeFailureIsRemote(t *testing.T) {
	env := newTestEnv(t, exp("a", "활성", "2023.01.01"))
	s := newInsight(env, &fakeGateway{err: errors.New("timeout")}, nil)

	_, err := s.Analyze(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindRemote))
	assert.Equal(t, msgAnalyzeFailed, apperr.UserMessage(err, ""))
	assert.False(t, s.InFlight(ActionAnalyze))
}

func TestAnalyzeSingleFlight(t *testing.T) {
	env := newTestEnv(t, exp("a", "활성", "2023.01.01"))
	gw := &fakeGateway{block: make(chan struct{}), started: make(chan struct{}, 1)}
	s := newInsight(env, gw, nil)

	var wg sync.WaitGroup
	results := make([]*model.AnalysisResult, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = s.Analyze(context.Background())
	}()
	<-gw.started
	assert.True(t, s.InFlight(ActionAnalyze))

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], _ = s.Analyze(context.Background())
	}()
	// 给第二个调用者一点时间加入进行中的请求
	time.Sleep(20 * time.Millisecond)
	close(gw.block)
	wg.Wait()

	assert.Equal(t, 1, gw.calls())
	require.NotNil(t, results[0])
	require.NotNil(t, results[1])
	assert.False(t, s.InFlight(ActionAnalyze))
}

func TestGenerateChecklistUsesAllTitlesWithoutRetriever(t *testing.T) {
	env := newTestEnv(t,
		exp("a", "코딩 동아리", "2023.01.01"),
		trashed(exp("b", "삭제", "2023.01.01"), testNow),
	)
	gw := &fakeGateway{checklist: []string{"1단계"}}
	s := newInsight(env, gw, nil)

	assert.Equal(t, []string{"1단계"}, s.GenerateChecklist(context.Background(), "포트폴리오 만들기"))
	assert.Equal(t, []string{"코딩 동아리"}, gw.lastRelated)
}

type fakeRetriever struct {
	related []model.Experience
	err     error
	synced  int
}

func (f *fakeRetriever) Sync(ctx context.Context, active []model.Experience) error {
	f.synced = len(active)
	return nil
}

func (f *fakeRetriever) Related(ctx context.Context, query string, active []model.Experience, topK int) ([]model.Experience, error) {
	return f.related, f.err
}

func TestGenerateChecklistUsesRetriever(t *testing.T) {
	a, b := exp("a", "코딩 동아리", "2023.01.01"), exp("b", "마라톤", "2023.01.01")
	env := newTestEnv(t, a, b)
	gw := &fakeGateway{checklist: []string{"x"}}

	r := &fakeRetriever{related: []model.Experience{b}}
	s := newInsight(env, gw, &InsightConfig{Retriever: r, TopK: 1})
	s.GenerateChecklist(context.Background(), "체력")
	assert.Equal(t, 2, r.synced)
	assert.Equal(t, []string{"마라톤"}, gw.lastRelated)

	r.err = errors.New("index down")
	s.GenerateChecklist(context.Background(), "체력")
	assert.Equal(t, []string{"코딩 동아리", "마라톤"}, gw.lastRelated)
}

func TestImportFileAttachesSource(t *testing.T) {
	env := newTestEnv(t)
	gw := &fakeGateway{extracted: []model.ExtractedExperience{
		{Title: "인턴십", StartDate: "2023-01-01", Category: "아르바이트"},
		{Description: "봉사활동"},
	}}
	s := newInsight(env, gw, nil)

	created, err := s.ImportFile(context.Background(), "cv.txt", "", []byte("이력서 본문"))
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, "text/plain", gw.lastMIME)

	assert.Equal(t, "2023.01.01", created[0].StartDate)
	assert.Equal(t, defaultImportTitle, created[1].Title)
	assert.Equal(t, model.CategoryExternal, created[1].Category)
	for _, e := range created {
		require.Len(t, e.Attachments, 1)
		assert.Equal(t, "cv.txt", e.Attachments[0].Name)
	}
	assert.Equal(t, 1, env.pub.count(eventbus.TypeImportFinished))
	assert.Len(t, env.store.Experiences(), 2)
}

func TestImportedSourceAttachedOnlyBelowLimit(t *testing.T) {
	env := newTestEnv(t)
	gw := &fakeGateway{extracted: []model.ExtractedExperience{{Title: "장학생 선발"}}}
	s := newInsight(env, gw, nil)
	ctx := context.Background()
	atLimit := make([]byte, model.MaxAttachmentBytes)
	below := atLimit[:model.MaxAttachmentBytes-1]

	created, err := s.ImportFile(ctx, "big.txt", "text/plain", atLimit)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Empty(t, created[0].Attachments)

	created, err = s.ImportFile(ctx, "fits.txt", "text/plain", below)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Len(t, created[0].Attachments, 1)

	draft, err := s.ExtractDraft(ctx, NewDraft(0, testNow), "big.txt", "text/plain", atLimit)
	require.NoError(t, err)
	assert.Empty(t, draft.Attachments)

	draft, err = s.ExtractDraft(ctx, NewDraft(0, testNow), "fits.txt", "text/plain", below)
	require.NoError(t, err)
	assert.Len(t, draft.Attachments, 1)
}

func TestImportFileFailures(t *testing.T) {
	env := newTestEnv(t)
	s := newInsight(env, &fakeGateway{}, nil)
	_, err := s.ImportFile(context.Background(), "empty.txt", "text/plain", []byte("x"))
	require.Error(t, err)
	assert.Equal(t, msgFileImportEmpty, apperr.UserMessage(err, ""))

	s = newInsight(env, &fakeGateway{err: errors.New("boom")}, nil)
	_, err = s.ImportFile(context.Background(), "a.txt", "text/plain", []byte("x"))
	require.Error(t, err)
	assert.Equal(t, msgFileImportFailed, apperr.UserMessage(err, ""))
	assert.Empty(t, env.store.Experiences())
}

func TestValidateImportURL(t *testing.T) {
	_, err := ValidateImportURL("   ")
	assert.Equal(t, msgURLRequired, apperr.UserMessage(err, ""))

	for _, bad := range []string{"example.com", "ftp://example.com", "http://", "://x"} {
		_, err := ValidateImportURL(bad)
		assert.Equal(t, msgURLInvalid, apperr.UserMessage(err, ""), bad)
	}

	got, err := ValidateImportURL(" https://example.com/me ")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/me", got)
}

func TestImportURL(t *testing.T) {
	env := newTestEnv(t)
	gw := &fakeGateway{extracted: []model.ExtractedExperience{{Title: "해커톤 대상"}}}
	s := newInsight(env, gw, nil)

	created, err := s.ImportURL(context.Background(), "https://example.com/portfolio")
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Empty(t, created[0].Attachments)
	assert.Equal(t, "https://example.com/portfolio", gw.lastURL)

	_, err = s.ImportURL(context.Background(), "not a url")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	s = newInsight(env, &fakeGateway{}, nil)
	_, err = s.ImportURL(context.Background(), "https://example.com/empty")
	assert.Equal(t, msgURLImportEmpty, apperr.UserMessage(err, ""))

	s = newInsight(env, &fakeGateway{err: errors.New("403")}, nil)
	_, err = s.ImportURL(context.Background(), "https://example.com/private")
	assert.True(t, strings.HasPrefix(apperr.UserMessage(err, ""), "링크를 분석하는 중"))
}

func TestExtractDraftMergesFirstItem(t *testing.T) {
	env := newTestEnv(t)
	gw := &fakeGateway{extracted: []model.ExtractedExperience{
		{Title: "공모전 수상", StartDate: "2022-11-01"},
		{Title: "무시됨"},
	}}
	s := newInsight(env, gw, nil)

	draft := NewDraft(0, testNow)
	draft.Description = "직접 쓴 내용"
	got, err := s.ExtractDraft(context.Background(), draft, "award.png", "image/png", []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})
	require.NoError(t, err)
	assert.Equal(t, "공모전 수상", got.Title)
	assert.Equal(t, "직접 쓴 내용", got.Description)
	assert.Equal(t, "2022.11.01", got.StartDate)
	assert.Equal(t, "2024.05.10", got.EndDate)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "image/png", got.Attachments[0].Type)

	s = newInsight(env, &fakeGateway{err: errors.New("boom")}, nil)
	same, err := s.ExtractDraft(context.Background(), draft, "a.png", "image/png", nil)
	require.Error(t, err)
	assert.Equal(t, msgDraftExtractFail, apperr.UserMessage(err, ""))
	assert.Equal(t, draft, same)
}
