package ai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuqie6/lifemap/internal/model"
)

type fakeChat struct {
	mu         sync.Mutex
	configured bool
	responses  []string
	err        error
	calls      [][]openai.ChatCompletionMessage
}

func (f *fakeChat) ChatWithOptions(_ context.Context, messages []openai.ChatCompletionMessage, _ ChatOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", errors.New("no response queued")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func (f *fakeChat) IsConfigured() bool { return f.configured }

func (f *fakeChat) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestAnalyzeEmptyInputFailsWithoutCall(t *testing.T) {
	chat := &fakeChat{configured: true}
	a := NewInsightAnalyzer(chat, nil)

	_, err := a.Analyze(context.Background(), nil)
	require.ErrorIs(t, err, ErrNoExperiences)
	assert.Equal(t, 0, chat.callCount())
}

func TestAnalyzeParsesFencedJSON(t *testing.T) {
	chat := &fakeChat{configured: true, responses: []string{"결과입니다\n```json\n" + `{
		"strengths": ["끈기"],
		"interests": ["기획"],
		"problemSolvingStyle": "분석형",
		"energyDirection": "외향",
		"actionPlan": ["포트폴리오 정리"],
		"summary": "잘하고 있어요",
		"relationships": [{"sourceId": "a", "targetId": "b", "reason": "연결"}]
	}` + "\n```"}}
	a := NewInsightAnalyzer(chat, nil)

	res, err := a.Analyze(context.Background(), []model.ExperienceBrief{{ID: "a", Title: "t"}, {ID: "b", Title: "u"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"끈기"}, res.Strengths)
	require.Len(t, res.Relationships, 1)
	assert.Equal(t, "a", res.Relationships[0].SourceID)

	require.Equal(t, 1, chat.callCount())
	assert.Contains(t, chat.calls[0][1].Content, `"id": "a"`)
}

func TestAnalyzeNormalizesMissingLists(t *testing.T) {
	chat := &fakeChat{configured: true, responses: []string{`{"summary":"요약"}`}}
	a := NewInsightAnalyzer(chat, nil)

	res, err := a.Analyze(context.Background(), []model.ExperienceBrief{{ID: "a"}})
	require.NoError(t, err)
	assert.NotNil(t, res.Relationships)
	assert.NotNil(t, res.ActionPlan)
}

func TestAnalyzeNotConfigured(t *testing.T) {
	a := NewInsightAnalyzer(&fakeChat{}, nil)
	_, err := a.Analyze(context.Background(), []model.ExperienceBrief{{ID: "a"}})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestGenerateChecklistShapes(t *testing.T) {
	chat := &fakeChat{configured: true, responses: []string{
		`["하나", " ", "둘"]`,
		`{"checklist": ["가", "나"], "note": "x"}`,
	}}
	a := NewInsightAnalyzer(chat, nil)

	assert.Equal(t, []string{"하나", "둘"}, a.GenerateChecklist(context.Background(), "계획", []string{"경험"}))
	assert.Equal(t, []string{"가", "나"}, a.GenerateChecklist(context.Background(), "계획", nil))
}

func TestGenerateChecklistDegradesToPlaceholder(t *testing.T) {
	cases := []*fakeChat{
		{configured: true, err: errors.New("network")},
		{configured: true, responses: []string{"not json"}},
		{configured: true, responses: []string{`[]`}},
		{configured: false},
	}
	for _, chat := range cases {
		a := NewInsightAnalyzer(chat, nil)
		assert.Equal(t, []string{ChecklistPlaceholder}, a.GenerateChecklist(context.Background(), "x", nil))
	}
}

func TestExtractFromFileAcceptsObjectOrArray(t *testing.T) {
	chat := &fakeChat{configured: true, responses: []string{
		`{"experiences": [{"title": "인턴", "startDate": "2023.01.01"}, {}]}`,
		`[{"title": "공모전", "category": "공모전"}]`,
		`{"title": "단일", "startDate": 2022}`,
	}}
	a := NewInsightAnalyzer(chat, nil)
	ctx := context.Background()

	got, err := a.ExtractFromFile(ctx, []byte("이력서"), "text/plain")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "인턴", got[0].Title)

	got, err = a.ExtractFromFile(ctx, []byte("<html><body><p>수상</p></body></html>"), "text/html")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "공모전", got[0].Category)
	assert.Contains(t, chat.calls[1][1].Content, "수상")

	got, err = a.ExtractFromFile(ctx, []byte{0x89, 'P', 'N', 'G'}, "image/png")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2022", got[0].StartDate)
	require.Len(t, chat.calls[2][1].MultiContent, 2)
	assert.True(t, strings.HasPrefix(chat.calls[2][1].MultiContent[1].ImageURL.URL, "data:image/png;base64,"))
}

func TestExtractFromFileRejectsUnsupported(t *testing.T) {
	chat := &fakeChat{configured: true}
	a := NewInsightAnalyzer(chat, nil)
	ctx := context.Background()

	_, err := a.ExtractFromFile(ctx, []byte("PK\x03\x04"), "application/zip")
	assert.ErrorIs(t, err, ErrUnsupportedFile)

	_, err = a.ExtractFromFile(ctx, []byte("%PDF-1.4"), "application/pdf")
	assert.ErrorIs(t, err, ErrUnsupportedFile)
	assert.Equal(t, 0, chat.callCount())
}

func TestExtractFromFileSendsPDFText(t *testing.T) {
	chat := &fakeChat{configured: true, responses: []string{`[{"title": "해커톤 대상", "startDate": "2023.11.01"}]`}}
	a := NewInsightAnalyzer(chat, nil)

	data := buildPDF("BT /F1 12 Tf 72 720 Td (Hackathon Grand Prize 2023) Tj ET")
	got, err := a.ExtractFromFile(context.Background(), data, "application/pdf")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "해커톤 대상", got[0].Title)

	require.Equal(t, 1, chat.callCount())
	assert.Contains(t, chat.calls[0][1].Content, "Hackathon Grand Prize 2023")
	assert.Empty(t, chat.calls[0][1].MultiContent)
}

func TestExtractFromURLFailsClosedOnAccessDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	chat := &fakeChat{configured: true}
	a := NewInsightAnalyzer(chat, NewPageFetcher(0))

	_, err := a.ExtractFromURL(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Equal(t, 0, chat.callCount())
}

func TestExtractFromURLSendsPageText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>포트폴리오</title><script>var x=1;</script></head>
			<body><nav>메뉴</nav><main><h1>김지수</h1><p>2023 해커톤 대상</p><ul><li>동아리 회장</li></ul></main></body></html>`))
	}))
	defer srv.Close()

	chat := &fakeChat{configured: true, responses: []string{`{"experiences": [{"title": "해커톤 대상"}]}`}}
	a := NewInsightAnalyzer(chat, NewPageFetcher(0))

	got, err := a.ExtractFromURL(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, got, 1)

	content := chat.calls[0][1].Content
	assert.Contains(t, content, "포트폴리오")
	assert.Contains(t, content, "2023 해커톤 대상")
	assert.Contains(t, content, "동아리 회장")
	assert.NotContains(t, content, "var x=1")
	assert.NotContains(t, content, "메뉴")
}

func TestCleanJSONResponse(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanJSONResponse("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `[1,2]`, cleanJSONResponse("here: [1,2] done"))
	assert.Equal(t, `{"a":[1]}`, cleanJSONResponse(`prefix {"a":[1]} suffix`))
	assert.Equal(t, "", cleanJSONResponse("   "))
}
