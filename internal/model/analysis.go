package model

// ExperienceBrief 分析请求中的单条经历
type ExperienceBrief struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// Relationship 两条经历之间的推断关系
type Relationship struct {
	SourceID string `json:"sourceId"`
	TargetID string `json:"targetId"`
	Reason   string `json:"reason"`
}

// AnalysisResult 自我洞察报告（只读）
type AnalysisResult struct {
	Strengths           []string       `json:"strengths"`
	Interests           []string       `json:"interests"`
	ProblemSolvingStyle string         `json:"problemSolvingStyle"`
	EnergyDirection     string         `json:"energyDirection"`
	ActionPlan          []string       `json:"actionPlan"`
	Summary             string         `json:"summary"`
	Relationships       []Relationship `json:"relationships"`
}

// Normalize 保证切片非 nil，便于序列化成 []
func (r *AnalysisResult) Normalize() {
	if r.Strengths == nil {
		r.Strengths = []string{}
	}
	if r.Interests == nil {
		r.Interests = []string{}
	}
	if r.ActionPlan == nil {
		r.ActionPlan = []string{}
	}
	if r.Relationships == nil {
		r.Relationships = []Relationship{}
	}
}

// ExtractedExperience 从文件/网页提取的候选经历，字段均可缺省
type ExtractedExperience struct {
	Title       string `json:"title,omitempty"`
	StartDate   string `json:"startDate,omitempty"`
	EndDate     string `json:"endDate,omitempty"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}

// ToDraft 转为导入草稿（不做默认值填充）
func (x ExtractedExperience) ToDraft() Draft {
	return Draft{
		Title:       x.Title,
		Description: x.Description,
		StartDate:   x.StartDate,
		EndDate:     x.EndDate,
		Category:    x.Category,
	}
}
