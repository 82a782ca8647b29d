package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// cleanJSONResponse 清理 JSON 响应（移除 markdown 代码块和额外文本）
// 同时支持对象与数组
func cleanJSONResponse(response string) string {
	response = strings.TrimSpace(response)

	// 移除 ```json ... ``` 或 ``` ... ```
	if strings.Contains(response, "```") {
		jsonStart := strings.Index(response, "```json")
		if jsonStart == -1 {
			jsonStart = strings.Index(response, "```")
		}
		if jsonStart != -1 {
			if startIdx := strings.Index(response[jsonStart:], "\n"); startIdx != -1 {
				response = response[jsonStart+startIdx+1:]
			} else {
				response = strings.TrimPrefix(response[jsonStart:], "```json")
				response = strings.TrimPrefix(response, "```")
			}
		}
		if endIdx := strings.LastIndex(response, "```"); endIdx != -1 {
			response = response[:endIdx]
		}
	}

	response = strings.TrimSpace(response)

	// 处理模型添加的前缀/后缀文字：取第一个 { 或 [ 到与之匹配类型的最后一个括号
	start := strings.IndexAny(response, "{[")
	if start == -1 {
		return response
	}
	closer := "}"
	if response[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(response, closer)
	if end < start {
		return strings.TrimSpace(response[start:])
	}
	return strings.TrimSpace(response[start : end+1])
}

// decodeExtracted 解析提取结果：数组、单个对象，或 {"experiences": [...]} 包装
func decodeExtracted(response string) ([]extractedItem, error) {
	cleaned := cleanJSONResponse(response)
	if cleaned == "" {
		return nil, fmt.Errorf("响应为空")
	}

	if strings.HasPrefix(cleaned, "[") {
		var items []extractedItem
		if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
			return nil, fmt.Errorf("解析提取结果失败: %w", err)
		}
		return items, nil
	}

	var wrapper struct {
		Experiences *[]extractedItem `json:"experiences"`
	}
	if err := json.Unmarshal([]byte(cleaned), &wrapper); err == nil && wrapper.Experiences != nil {
		return *wrapper.Experiences, nil
	}

	var single extractedItem
	if err := json.Unmarshal([]byte(cleaned), &single); err != nil {
		return nil, fmt.Errorf("解析提取结果失败: %w", err)
	}
	if single.isEmpty() {
		return []extractedItem{}, nil
	}
	return []extractedItem{single}, nil
}

// decodeChecklist 解析清单：字符串数组或 {"checklist": [...]}
func decodeChecklist(response string) ([]string, error) {
	cleaned := cleanJSONResponse(response)
	if strings.HasPrefix(cleaned, "[") {
		var items []string
		if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
			return nil, fmt.Errorf("解析清单失败: %w", err)
		}
		return items, nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &wrapper); err != nil {
		return nil, fmt.Errorf("解析清单失败: %w", err)
	}
	for _, key := range []string{"checklist", "items", "steps"} {
		if raw, ok := wrapper[key]; ok {
			var items []string
			if err := json.Unmarshal(raw, &items); err == nil {
				return items, nil
			}
		}
	}
	for _, raw := range wrapper {
		var items []string
		if err := json.Unmarshal(raw, &items); err == nil && len(items) > 0 {
			return items, nil
		}
	}
	return nil, fmt.Errorf("清单为空")
}

// extractedItem 模型返回的单条经历，字段类型宽松
type extractedItem struct {
	Title       looseString `json:"title"`
	StartDate   looseString `json:"startDate"`
	EndDate     looseString `json:"endDate"`
	Description looseString `json:"description"`
	Category    looseString `json:"category"`
}

func (x extractedItem) isEmpty() bool {
	return x.Title == "" && x.StartDate == "" && x.EndDate == "" && x.Description == "" && x.Category == ""
}

// looseString 接受字符串、数字、null
type looseString string

func (l *looseString) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*l = ""
	case string:
		*l = looseString(strings.TrimSpace(x))
	case float64, bool:
		*l = looseString(fmt.Sprint(x))
	default:
		*l = ""
	}
	return nil
}
