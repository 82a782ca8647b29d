package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageFetcherStatusHandling(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusUnavailableForLegalReasons} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))
		_, err := NewPageFetcher(0).Fetch(context.Background(), srv.URL)
		assert.ErrorIs(t, err, ErrAccessDenied, "status %d", code)
		srv.Close()
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	_, err := NewPageFetcher(0).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAccessDenied)
}

func TestPageFetcherUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewPageFetcher(0).Fetch(context.Background(), url)
	assert.Error(t, err)
}

func TestPageFetcherPlainTextAndBinary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/txt":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("  이력서   본문 \n 두번째 줄 "))
		case "/empty":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html><body><script>x()</script></body></html>"))
		default:
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF"))
		}
	}))
	defer srv.Close()

	f := NewPageFetcher(0)
	page, err := f.Fetch(context.Background(), srv.URL+"/txt")
	require.NoError(t, err)
	assert.Equal(t, "이력서 본문 두번째 줄", page.Text)

	_, err = f.Fetch(context.Background(), srv.URL+"/empty")
	assert.ErrorIs(t, err, ErrEmptyPage)

	_, err = f.Fetch(context.Background(), srv.URL+"/pdf")
	assert.ErrorIs(t, err, ErrUnsupportedContent)
}

func TestExtractHTMLTextPrefersMain(t *testing.T) {
	html := `<html><head><title> 제목 </title><meta name="description" content="소개"></head>
	<body><header>상단</header><main><p>본문 하나</p><li><p>중첩</p></li></main><footer>하단</footer></body></html>`
	title, text, err := ExtractHTMLText(strings.NewReader(html))
	require.NoError(t, err)
	assert.Equal(t, "제목", title)
	assert.Contains(t, text, "본문 하나")
	assert.Equal(t, 1, strings.Count(text, "중첩"))
	assert.NotContains(t, text, "하단")
	assert.NotContains(t, text, "상단")
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "가나", truncateRunes("가나다", 2))
	assert.Equal(t, "가나다", truncateRunes("가나다", 0))
}
