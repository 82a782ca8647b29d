package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/yuqie6/lifemap/internal/eventbus"
	"github.com/yuqie6/lifemap/internal/model"
)

// ===== Mock Implementations =====

var errDiskFull = errors.New("disk full")

type fakeStateRepo struct {
	mu       sync.Mutex
	profile  *model.UserProfile
	list     []model.Experience
	failSave bool
	saves    int
}

func (f *fakeStateRepo) LoadProfile(ctx context.Context) *model.UserProfile {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profile == nil {
		return nil
	}
	p := *f.profile
	return &p
}

func (f *fakeStateRepo) LoadExperiences(ctx context.Context) []model.Experience {
	f.mu.Lock()
	defer f.mu.Unlock()
	return model.CloneExperiences(f.list)
}

func (f *fakeStateRepo) SaveProfile(ctx context.Context, profile model.UserProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return errDiskFull
	}
	f.profile = &profile
	return nil
}

func (f *fakeStateRepo) SaveExperiences(ctx context.Context, list []model.Experience) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return errDiskFull
	}
	f.saves++
	f.list = model.CloneExperiences(list)
	return nil
}

func (f *fakeStateRepo) Reset(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return errDiskFull
	}
	f.profile = nil
	f.list = nil
	return nil
}

func (f *fakeStateRepo) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *recordingPublisher) Publish(evt eventbus.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) count(typ string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

type fakeGateway struct {
	mu        sync.Mutex
	result    *model.AnalysisResult
	err       error
	extracted []model.ExtractedExperience
	checklist []string
	block     chan struct{}
	started   chan struct{}

	analyzeCalls  int
	lastBriefs    []model.ExperienceBrief
	lastRelated   []string
	lastMIME      string
	lastURL       string
	checklistCall int
}

func (f *fakeGateway) Analyze(ctx context.Context, experiences []model.ExperienceBrief) (*model.AnalysisResult, error) {
	f.mu.Lock()
	f.analyzeCalls++
	f.lastBriefs = experiences
	block, started := f.block, f.started
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.result == nil {
		return &model.AnalysisResult{Summary: "요약"}, nil
	}
	r := *f.result
	return &r, nil
}

func (f *fakeGateway) GenerateChecklist(ctx context.Context, action string, related []string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checklistCall++
	f.lastRelated = related
	return f.checklist
}

func (f *fakeGateway) ExtractFromFile(ctx context.Context, data []byte, mimeType string) ([]model.ExtractedExperience, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastMIME = mimeType
	if f.err != nil {
		return nil, f.err
	}
	return f.extracted, nil
}

func (f *fakeGateway) ExtractFromURL(ctx context.Context, rawURL string) ([]model.ExtractedExperience, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastURL = rawURL
	if f.err != nil {
		return nil, f.err
	}
	return f.extracted, nil
}

func (f *fakeGateway) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.analyzeCalls
}

// ===== Helpers =====

var testNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.Local)

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

type testEnv struct {
	repo        *fakeStateRepo
	store       *RecordStore
	lifecycle   *LifecycleService
	attachments *AttachmentService
	pub         *recordingPublisher
}

func newTestEnv(t *testing.T, seed ...model.Experience) *testEnv {
	t.Helper()
	repo := &fakeStateRepo{list: seed}
	store := OpenRecordStore(context.Background(), repo)
	pub := &recordingPublisher{}
	store.SetPublisher(pub)

	lc := NewLifecycleService(store)
	lc.now = func() time.Time { return testNow }
	lc.newID = sequentialIDs("exp-")

	att := NewAttachmentService()
	att.newID = sequentialIDs("att-")

	return &testEnv{repo: repo, store: store, lifecycle: lc, attachments: att, pub: pub}
}

func exp(id, title, start string) model.Experience {
	return model.Experience{
		ID:           id,
		Title:        title,
		Description:  title + " 설명",
		StartDate:    start,
		EndDate:      start,
		Category:     model.CategoryContest,
		Emotion:      model.EmotionJoy,
		Satisfaction: 5,
		Tags:         []string{},
		Attachments:  []model.Attachment{},
	}
}

func trashed(e model.Experience, at time.Time) model.Experience {
	e.DeletedAt = &at
	return e
}
