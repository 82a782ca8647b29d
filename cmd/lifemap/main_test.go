package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuqie6/lifemap/internal/model"
)

func TestAskYesNo(t *testing.T) {
	cases := map[string]bool{
		"y\n":   true,
		"YES\n": true,
		"n\n":   false,
		"\n":    false,
		"":      false,
		"y":     true,
	}
	for input, want := range cases {
		var out bytes.Buffer
		assert.Equal(t, want, askYesNo(strings.NewReader(input), &out, "계속?"), "input %q", input)
		assert.Contains(t, out.String(), "(y/N)")
	}
}

func TestChoiceMapsUnknownToCustom(t *testing.T) {
	v, custom := choice(model.CategoryContest, model.PresetCategories)
	assert.Equal(t, model.CategoryContest, v)
	assert.Empty(t, custom)

	v, custom = choice("봉사활동", model.PresetCategories)
	assert.Equal(t, model.CustomSentinel, v)
	assert.Equal(t, "봉사활동", custom)
}

func TestAskMilestonesSkipsBlankAnswers(t *testing.T) {
	list := []model.Milestone{
		{ID: "m1", Title: "첫 성취", Question: "q1"},
		{ID: "m2", Title: "시련", Question: "q2"},
		{ID: "m3", Title: "터닝포인트", Question: "q3"},
	}
	in := strings.NewReader("첫 대회 입상\n2020.05.01\n\n전과 결심\n\n")
	var out bytes.Buffer

	answers := askMilestones(in, &out, list)
	require.Len(t, answers, 2)
	assert.Equal(t, "m1", answers[0].MilestoneID)
	assert.Equal(t, "2020.05.01", answers[0].Date)
	assert.Equal(t, "m3", answers[1].MilestoneID)
	assert.Equal(t, "전과 결심", answers[1].Description)
	assert.Empty(t, answers[1].Date)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "짧은 글", truncate("짧은   글", 10))
	assert.Equal(t, "가나다...", truncate("가나다라마", 3))
}
