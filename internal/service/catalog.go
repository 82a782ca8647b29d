package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/yuqie6/lifemap/internal/model"
	"github.com/yuqie6/lifemap/internal/pkg/apperr"
)

var situationCards = []model.SituationCard{
	{ID: "c1", Question: "친구들 사이에서 여행 계획 짰던 적 있어?", Title: "여행 계획 주도", Category: "대외활동", Emotion: "즐거움"},
	{ID: "c2", Question: "알바하다가 진상 손님 때문에 욱했는데 참은 적 있어?", Title: "진상 손님 대처", Category: "아르바이트", Emotion: "당황"},
	{ID: "c3", Question: "밤새서 무언가에 몰입해 본 적 있어?", Title: "밤샘 몰입 경험", Category: "교내활동", Emotion: "즐거움"},
	{ID: "c4", Question: "팀 프로젝트에서 아무도 안 하려는 역할 총대 멘 적 있어?", Title: "팀 프로젝트 총대", Category: "교내활동", Emotion: "도전"},
	{ID: "c5", Question: "처음 해보는 일인데 맨땅에 헤딩해서 성공한 적 있어?", Title: "맨땅에 헤딩 성공", Category: "대외활동", Emotion: "성취"},
	{ID: "c6", Question: "남들이 다 포기한 일, 끝까지 물고 늘어진 적 있어?", Title: "포기하지 않은 끈기", Category: "기타", Emotion: "성취"},
	{ID: "c7", Question: "내 아이디어가 채택되어서 실제로 실행된 적 있어?", Title: "아이디어 실행", Category: "공모전", Emotion: "성취"},
	{ID: "c8", Question: "취미로 시작한 일이 생각보다 커져서 성과를 얻은 적 있어?", Title: "취미의 확장", Category: "대외활동", Emotion: "즐거움"},
	{ID: "c9", Question: "누군가를 진심으로 도와주고 큰 고마움을 받은 적 있어?", Title: "타인 도움 경험", Category: "기타", Emotion: "즐거움"},
	{ID: "c10", Question: "발표나 무대 위에서 엄청 떨렸지만 무사히 마친 적 있어?", Title: "떨렸던 무대/발표", Category: "교내활동", Emotion: "성취"},
	{ID: "c11", Question: "예상치 못한 큰 실수를 했지만, 어떻게든 수습한 적 있어?", Title: "큰 실수 수습", Category: "기타", Emotion: "당황"},
	{ID: "c12", Question: "낯선 환경에 혼자 던져져서 적응한 적 있어?", Title: "낯선 환경 적응", Category: "대외활동", Emotion: "성취"},
	{ID: "c13", Question: "리더가 되어 팀원들의 갈등을 중재해 본 적 있어?", Title: "팀 갈등 중재", Category: "교내활동", Emotion: "성취"},
	{ID: "c14", Question: "평소라면 절대 안 할 법한 일에 충동적으로 도전해 본 적 있어?", Title: "충동적인 새로운 도전", Category: "기타", Emotion: "즐거움"},
	{ID: "c15", Question: "오랫동안 준비한 시험이나 대회에서 원하던 결과를 얻은 적 있어?", Title: "장기 목표 달성", Category: "성적", Emotion: "성취"},
	{ID: "c16", Question: "정말 열심히 했는데 처참하게 실패해 본 적 있어?", Title: "뼈아픈 실패 경험", Category: "기타", Emotion: "두려움"},
	{ID: "c17", Question: "나만의 루틴이나 습관을 한 달 이상 꾸준히 유지해 본 적 있어?", Title: "꾸준한 루틴 유지", Category: "기타", Emotion: "성취"},
	{ID: "c18", Question: "다른 사람을 설득해서 내 의견대로 이끌어 본 적 있어?", Title: "타인 설득 경험", Category: "교내활동", Emotion: "성취"},
	{ID: "c19", Question: "돈을 모아서 평소 갖고 싶었던 큰 물건을 내 힘으로 사본 적 있어?", Title: "스스로 모은 돈으로 성취", Category: "아르바이트", Emotion: "성취"},
	{ID: "c20", Question: "아무런 보상 없이 순수하게 좋아서 푹 빠졌던 활동이 있어?", Title: "순수한 몰입", Category: "기타", Emotion: "즐거움"},
}

var milestones = []model.Milestone{
	{ID: "m1", Title: "첫 성취의 순간", Question: "내 힘으로 무언가를 이뤄내어 가장 뿌듯했던 순간은 언제인가요?",
		Hint: "작은 목표라도 괜찮아요. 스스로 노력해서 얻어낸 결과물을 떠올려보세요.", Category: "기타", Emotion: "성취"},
	{ID: "m2", Title: "시련과 극복", Question: "가장 힘들었거나 실패했던 경험, 그리고 그것을 어떻게 넘겼나요?",
		Hint: "실패 자체보다, 그 이후에 내가 어떤 행동을 취했는지가 더 중요해요.", Category: "기타", Emotion: "두려움"},
	{ID: "m3", Title: "소중한 인연과 협력", Question: "나에게 큰 영향을 주었거나, 최고의 팀워크를 발휘했던 경험이 있나요?",
		Hint: "누군가와 함께 문제를 해결했거나, 깊은 영감을 받았던 사람을 떠올려보세요.", Category: "대외활동", Emotion: "즐거움"},
	{ID: "m4", Title: "결정적 터닝포인트", Question: "나의 생각이나 가치관, 진로가 크게 바뀌게 된 결정적인 사건이 있나요?",
		Hint: "우연한 기회, 책 한 권, 혹은 누군가의 한 마디도 좋아요.", Category: "기타", Emotion: "당황"},
	{ID: "m5", Title: "순수한 몰입", Question: "시간 가는 줄 모르고, 누가 시키지 않아도 푹 빠져서 했던 활동은 무엇인가요?",
		Hint: "나의 진짜 흥미와 열정이 어디로 향하는지 알 수 있는 중요한 단서입니다.", Category: "기타", Emotion: "즐거움"},
}

var writingGuides = []string{
	"💡 막막하다면, 가장 최근에 '즐거웠다'고 느낀 순간부터 적어보세요!",
	"💡 대학 입학 후 첫 방학 때 무엇을 했는지 떠올려보세요.",
	"💡 누군가에게 칭찬받았던 기억이 있나요?",
	"💡 밤새워도 피곤하지 않았던 활동이 있었나요?",
	"💡 정말 하기 싫었지만 억지로 해야 했던 일은 무엇인가요?",
}

const cardDescriptionSuffix = "\n\n(이때의 상황과 나의 역할을 자세히 적어보세요!)"

// SituationCards 情境卡片目录
func SituationCards() []model.SituationCard {
	return append([]model.SituationCard{}, situationCards...)
}

// Milestones 回忆引导问题
func Milestones() []model.Milestone {
	return append([]model.Milestone{}, milestones...)
}

// RandomGuide 随机一条写作提示
func RandomGuide() string {
	return writingGuides[rand.IntN(len(writingGuides))]
}

// QuickAddService 卡片与里程碑的快速添加
type QuickAddService struct {
	lifecycle *LifecycleService
	now       func() time.Time
}

// NewQuickAddService 创建服务
func NewQuickAddService(lifecycle *LifecycleService) *QuickAddService {
	return &QuickAddService{lifecycle: lifecycle, now: time.Now}
}

// AddCards 按卡片 id 批量新建，未知 id 忽略，顺序与目录一致
func (s *QuickAddService) AddCards(ctx context.Context, cardIDs []string) ([]model.Experience, error) {
	selected := make(map[string]bool, len(cardIDs))
	for _, id := range cardIDs {
		selected[strings.TrimSpace(id)] = true
	}

	today := model.FormatDate(s.now())
	drafts := make([]model.Draft, 0, len(cardIDs))
	for _, c := range situationCards {
		if !selected[c.ID] {
			continue
		}
		drafts = append(drafts, model.Draft{
			Title:        c.Title,
			Description:  c.Question + cardDescriptionSuffix,
			StartDate:    today,
			EndDate:      today,
			Category:     c.Category,
			Emotion:      c.Emotion,
			Satisfaction: model.DefaultSatisfaction,
		})
	}
	if len(drafts) == 0 {
		return nil, apperr.Validation("cards", "카드를 하나 이상 선택해주세요.")
	}
	return s.lifecycle.BulkCreate(ctx, drafts, BulkDefaults{Satisfaction: model.DefaultSatisfaction})
}

// AddMilestones 把有内容的回答转为经历；全部为空时返回空列表
func (s *QuickAddService) AddMilestones(ctx context.Context, answers []model.MilestoneAnswer) ([]model.Experience, error) {
	byID := make(map[string]model.MilestoneAnswer, len(answers))
	for _, a := range answers {
		byID[a.MilestoneID] = a
	}

	today := model.FormatDate(s.now())
	drafts := make([]model.Draft, 0, len(answers))
	for _, m := range milestones {
		ans, ok := byID[m.ID]
		if !ok {
			continue
		}
		title := strings.TrimSpace(ans.Title)
		desc := strings.TrimSpace(ans.Description)
		if title == "" && desc == "" {
			continue
		}
		if title == "" {
			title = fmt.Sprintf("%s 관련 경험", m.Title)
		}
		if desc == "" {
			desc = "내용 없음"
		}
		date := model.SanitizeDateInput(ans.Date)
		if date == "" {
			date = today
		}
		drafts = append(drafts, model.Draft{
			Title:        title,
			Description:  desc,
			StartDate:    date,
			EndDate:      date,
			Category:     m.Category,
			Emotion:      m.Emotion,
			Satisfaction: model.DefaultSatisfaction,
		})
	}
	return s.lifecycle.BulkCreate(ctx, drafts, BulkDefaults{Satisfaction: model.DefaultSatisfaction})
}
