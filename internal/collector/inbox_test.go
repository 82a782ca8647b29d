package collector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuqie6/lifemap/internal/model"
)

type fakeImporter struct {
	mu    sync.Mutex
	names []string
	mimes []string
	err   error
}

func (f *fakeImporter) ImportFile(_ context.Context, name, mimeType string, data []byte) ([]model.Experience, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, name)
	f.mimes = append(f.mimes, mimeType)
	if f.err != nil {
		return nil, f.err
	}
	return []model.Experience{{ID: "x", Title: string(data)}}, nil
}

func (f *fakeImporter) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.names...)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func startWatcher(t *testing.T, dir string, imp Importer) *InboxWatcher {
	t.Helper()
	w, err := NewInboxWatcher(&InboxConfig{Dir: dir, DebounceMs: 20}, imp)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		_ = w.Stop()
		cancel()
	})
	require.NoError(t, w.Start(ctx))
	return w
}

func TestInboxImportsExistingAndNewFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "before.txt"), []byte("동아리 회장"), 0o644))

	imp := &fakeImporter{}
	startWatcher(t, dir, imp)

	require.Eventually(t, func() bool {
		return exists(filepath.Join(dir, processedDir, "before.txt"))
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "resume.md"), []byte("인턴"), 0o644))
	require.Eventually(t, func() bool {
		return exists(filepath.Join(dir, processedDir, "resume.md"))
	}, 5*time.Second, 10*time.Millisecond)

	assert.ElementsMatch(t, []string{"before.txt", "resume.md"}, imp.calls())
	assert.False(t, exists(filepath.Join(dir, "resume.md")))
}

func TestInboxMovesFailuresAside(t *testing.T) {
	dir := t.TempDir()
	imp := &fakeImporter{err: errors.New("empty")}
	w, err := NewInboxWatcher(&InboxConfig{Dir: dir, DebounceMs: 20}, imp)
	require.NoError(t, err)
	results := make(chan error, 1)
	w.OnProcessed = func(_ string, _ int, err error) { results <- err }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "scan.png"), []byte("not really"), 0o644))
	select {
	case err := <-results:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("file was not processed")
	}

	assert.True(t, exists(filepath.Join(dir, failedDir, "scan.png")))
	assert.Equal(t, []string{"scan.png"}, imp.calls())
	imp.mu.Lock()
	assert.Equal(t, []string{"image/png"}, imp.mimes)
	imp.mu.Unlock()
}

func TestInboxHandsPDFToImporter(t *testing.T) {
	dir := t.TempDir()
	imp := &fakeImporter{}
	startWatcher(t, dir, imp)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "이력서.pdf"), []byte("%PDF-1.4\n"), 0o644))
	require.Eventually(t, func() bool {
		return exists(filepath.Join(dir, processedDir, "이력서.pdf"))
	}, 5*time.Second, 10*time.Millisecond)

	imp.mu.Lock()
	defer imp.mu.Unlock()
	assert.Equal(t, []string{"이력서.pdf"}, imp.names)
	assert.Equal(t, []string{"application/pdf"}, imp.mimes)
}

func TestInboxSkipsHiddenAndTempFiles(t *testing.T) {
	assert.True(t, skipName(".DS_Store"))
	assert.True(t, skipName("~$report.docx"))
	assert.True(t, skipName("download.crdownload"))
	assert.False(t, skipName("이력서.pdf"))
}

func TestMoveIntoAvoidsOverwrite(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(dst, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "a.txt"), []byte("old"), 0o644))

	src := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("new"), 0o644))
	require.NoError(t, moveInto(src, dst))

	entries, err := os.ReadDir(dst)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	b, err := os.ReadFile(filepath.Join(dst, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(b))
}

func TestNewInboxWatcherValidates(t *testing.T) {
	_, err := NewInboxWatcher(&InboxConfig{}, &fakeImporter{})
	assert.Error(t, err)
	_, err = NewInboxWatcher(&InboxConfig{Dir: t.TempDir()}, nil)
	assert.Error(t, err)
}
