package model

// SituationCard 快速添加用的情境卡片
type SituationCard struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Emotion  string `json:"emotion"`
}

// Milestone 引导式回忆问题
type Milestone struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Question    string `json:"question"`
	Hint        string `json:"hint"`
	Category    string `json:"category"`
	Emotion     string `json:"emotion"`
}

// MilestoneAnswer 用户对某个里程碑问题的回答
type MilestoneAnswer struct {
	MilestoneID string `json:"milestoneId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
}
