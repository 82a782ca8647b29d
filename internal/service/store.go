package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/yuqie6/lifemap/internal/eventbus"
	"github.com/yuqie6/lifemap/internal/model"
	"github.com/yuqie6/lifemap/internal/pkg/apperr"
)

const saveFailedMessage = "저장 중 오류가 발생했습니다. 다시 시도해주세요."

// RecordStore 进程内快照 + 持久化
// 变更先作用于副本，持久化成功后才替换快照，失败时内存保持原样
type RecordStore struct {
	mu          sync.RWMutex
	repo        StateRepository
	publisher   Publisher
	profile     *model.UserProfile
	experiences []model.Experience
}

// OpenRecordStore 从持久化层加载初始快照（不会失败）
func OpenRecordStore(ctx context.Context, repo StateRepository) *RecordStore {
	s := &RecordStore{repo: repo}
	s.load(ctx)
	return s
}

// SetPublisher 设置变更通知
func (s *RecordStore) SetPublisher(p Publisher) {
	s.mu.Lock()
	s.publisher = p
	s.mu.Unlock()
}

func (s *RecordStore) load(ctx context.Context) {
	profile := s.repo.LoadProfile(ctx)
	list := s.repo.LoadExperiences(ctx)
	if list == nil {
		list = []model.Experience{}
	}

	s.mu.Lock()
	s.profile = profile
	s.experiences = list
	s.mu.Unlock()

	slog.Info("记录已加载", "experiences", len(list), "has_profile", profile != nil)
}

// Reload 重新从持久化层读取
func (s *RecordStore) Reload(ctx context.Context) {
	s.load(ctx)
}

// Profile 返回档案副本，未设置返回 nil
func (s *RecordStore) Profile() *model.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return nil
	}
	p := *s.profile
	return &p
}

// Experiences 返回全部经历（含回收站）的深拷贝
func (s *RecordStore) Experiences() []model.Experience {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.CloneExperiences(s.experiences)
}

// Find 按 id 查找
func (s *RecordStore) Find(id string) (*model.Experience, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.experiences {
		if e.ID == id {
			c := e.Clone()
			return &c, true
		}
	}
	return nil, false
}

// SaveProfile 写入档案
func (s *RecordStore) SaveProfile(ctx context.Context, profile model.UserProfile) error {
	s.mu.Lock()
	if err := s.repo.SaveProfile(ctx, profile); err != nil {
		s.mu.Unlock()
		return apperr.Persistence(saveFailedMessage, err)
	}
	p := profile
	s.profile = &p
	pub := s.publisher
	s.mu.Unlock()

	if pub != nil {
		pub.Publish(eventbus.NewEvent(eventbus.TypeProfileChanged, nil))
	}
	return nil
}

// Mutate 在副本上执行 fn，持久化成功后替换快照
// fn 返回 changed=false 时不写盘
func (s *RecordStore) Mutate(ctx context.Context, fn func(list []model.Experience) ([]model.Experience, bool, error)) error {
	s.mu.Lock()
	next, changed, err := fn(model.CloneExperiences(s.experiences))
	if err != nil || !changed {
		s.mu.Unlock()
		return err
	}
	if err := s.repo.SaveExperiences(ctx, next); err != nil {
		s.mu.Unlock()
		slog.Error("保存经历失败", "error", err)
		return apperr.Persistence(saveFailedMessage, err)
	}
	s.experiences = next
	count := len(next)
	pub := s.publisher
	s.mu.Unlock()

	if pub != nil {
		pub.Publish(eventbus.NewEvent(eventbus.TypeExperiencesChanged, map[string]any{"count": count}))
	}
	return nil
}

// Reset 清空全部数据
func (s *RecordStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	if err := s.repo.Reset(ctx); err != nil {
		s.mu.Unlock()
		return apperr.Persistence("초기화 중 오류가 발생했습니다.", err)
	}
	s.profile = nil
	s.experiences = []model.Experience{}
	pub := s.publisher
	s.mu.Unlock()

	slog.Info("数据已重置")
	if pub != nil {
		pub.Publish(eventbus.NewEvent(eventbus.TypeProfileChanged, nil))
		pub.Publish(eventbus.NewEvent(eventbus.TypeExperiencesChanged, map[string]any{"count": 0}))
	}
	return nil
}
