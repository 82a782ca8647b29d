package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuqie6/lifemap/internal/eventbus"
	"github.com/yuqie6/lifemap/internal/model"
	"github.com/yuqie6/lifemap/internal/pkg/apperr"
)

func TestParseDate(t *testing.T) {
	now := testNow
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2023.03.15", time.Date(2023, 3, 15, 0, 0, 0, 0, time.Local)},
		{"2023-03-15", time.Date(2023, 3, 15, 0, 0, 0, 0, time.Local)},
		{"2023.3.5", time.Date(2023, 3, 5, 0, 0, 0, 0, time.Local)},
		{"2021.07", time.Date(2021, 7, 1, 0, 0, 0, 0, time.Local)},
		{"2019", time.Date(2019, 1, 1, 0, 0, 0, 0, time.Local)},
	}
	for _, c := range cases {
		assert.True(t, c.want.Equal(ParseDate(c.in, now)), c.in)
	}

	iso := ParseDate("2022-08-01T10:00:00Z", now)
	assert.Equal(t, 2022, iso.Year())

	assert.True(t, now.Equal(ParseDate("언젠가", now)))
	assert.True(t, now.Equal(ParseDate("", now)))
	assert.False(t, IsParseableDate("abc"))
}

func TestYearRange(t *testing.T) {
	assert.Equal(t, []int{2024, 2023, 2022}, YearRange(2022, 2024))
	assert.Equal(t, []int{2024}, YearRange(2024, 2024))
	assert.Equal(t, []int{2020}, YearRange(2030, 2020))
}

func TestYearRangeSpansBirthToNow(t *testing.T) {
	years := YearRange(2000, 2024)
	require.Len(t, years, 25)
	assert.Equal(t, 2024, years[0])
	assert.Equal(t, 2000, years[24])
}

func TestCreatedRecordsLandInTheirYears(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a, err := env.lifecycle.Create(ctx, model.Draft{Title: "a", Description: "동아리 가입", StartDate: "2022.03.02"})
	require.NoError(t, err)
	b, err := env.lifecycle.Create(ctx, model.Draft{Title: "b", Description: "인턴십", StartDate: "2023.07.01"})
	require.NoError(t, err)

	ids := func(year int) []string {
		out := []string{}
		for _, e := range ByYear(env.store.Experiences(), year, testNow) {
			out = append(out, e.ID)
		}
		return out
	}
	assert.Equal(t, []string{a.ID}, ids(2022))
	assert.Equal(t, []string{b.ID}, ids(2023))
	assert.Empty(t, ids(2021))
}

func TestByYearSortsDescendingAndSkipsTrash(t *testing.T) {
	list := []model.Experience{
		exp("a", "봄", "2023.03.01"),
		exp("b", "가을", "2023.10.01"),
		exp("c", "같은날1", "2023.05.05"),
		exp("d", "같은날2", "2023.05.05"),
		trashed(exp("e", "삭제됨", "2023.12.01"), testNow),
		exp("f", "다른해", "2022.01.01"),
	}
	got := ByYear(list, 2023, testNow)
	ids := make([]string, 0, len(got))
	for _, e := range got {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"b", "c", "d", "a"}, ids)
}

func TestUnparseableDateLandsInCurrentYear(t *testing.T) {
	list := []model.Experience{exp("a", "날짜 모름", "모름")}
	assert.Len(t, ByYear(list, testNow.Year(), testNow), 1)
}

func TestTrashedExperiencesNewestFirst(t *testing.T) {
	older := testNow.Add(-time.Hour)
	list := []model.Experience{
		trashed(exp("a", "먼저", "2023.01.01"), older),
		exp("b", "활성", "2023.01.01"),
		trashed(exp("c", "나중", "2023.01.01"), testNow),
	}
	got := TrashedExperiences(list)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
	assert.Len(t, ActiveExperiences(list), 1)
}

func TestBuildTimeline(t *testing.T) {
	profile := &model.UserProfile{Name: "민수", BirthYear: "2022", Status: "대학생"}
	list := []model.Experience{
		exp("a", "올해", "2024.02.01"),
		exp("b", "오래전", "2010.01.01"),
		trashed(exp("c", "삭제", "2023.01.01"), testNow),
	}
	view := BuildTimeline(profile, list, testNow)
	require.Len(t, view.Years, 3)
	assert.Equal(t, 2024, view.Years[0].Year)
	assert.Len(t, view.Years[0].Experiences, 1)
	assert.Equal(t, 2, view.ActiveCount)
	assert.Equal(t, 1, view.Outside)
	assert.Len(t, view.Trash, 1)
}

func TestStoreMutateFailureKeepsMemory(t *testing.T) {
	env := newTestEnv(t, exp("a", "원본", "2023.01.01"))
	env.repo.failSave = true

	err := env.store.Mutate(context.Background(), func(list []model.Experience) ([]model.Experience, bool, error) {
		list[0].Title = "변경"
		return append(list, exp("b", "추가", "2023.01.01")), true, nil
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindPersistence))

	got := env.store.Experiences()
	require.Len(t, got, 1)
	assert.Equal(t, "원본", got[0].Title)
	assert.Equal(t, 0, env.pub.count(eventbus.TypeExperiencesChanged))
}

func TestStoreReturnsCopies(t *testing.T) {
	env := newTestEnv(t, exp("a", "원본", "2023.01.01"))
	got := env.store.Experiences()
	got[0].Title = "바뀜"
	got[0].Tags = append(got[0].Tags, "x")

	again, ok := env.store.Find("a")
	require.True(t, ok)
	assert.Equal(t, "원본", again.Title)
	assert.Empty(t, again.Tags)
}

func TestStoreUnchangedMutateSkipsWrite(t *testing.T) {
	env := newTestEnv(t)
	err := env.store.Mutate(context.Background(), func(list []model.Experience) ([]model.Experience, bool, error) {
		return list, false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, env.repo.saveCount())
}

func TestStoreReset(t *testing.T) {
	env := newTestEnv(t, exp("a", "원본", "2023.01.01"))
	require.NoError(t, env.store.SaveProfile(context.Background(), model.UserProfile{Name: "a", BirthYear: "2000", Status: "b"}))
	require.NoError(t, env.store.Reset(context.Background()))

	assert.Nil(t, env.store.Profile())
	assert.Empty(t, env.store.Experiences())
	assert.Equal(t, 2, env.pub.count(eventbus.TypeProfileChanged))
}
