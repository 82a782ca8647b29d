package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuqie6/lifemap/internal/model"
	"github.com/yuqie6/lifemap/internal/testutil"
)

func TestStateRepositoryRoundTrip(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewStateRepositoryFromDB(db)
	ctx := context.Background()

	assert.Nil(t, repo.LoadProfile(ctx))
	assert.Empty(t, repo.LoadExperiences(ctx))

	profile := model.UserProfile{Name: "지수", BirthYear: "2001", Status: "대학생"}
	require.NoError(t, repo.SaveProfile(ctx, profile))

	deleted := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	list := []model.Experience{
		{ID: "a", Title: "동아리", StartDate: "2022.03.01", EndDate: "2022.06.01", Satisfaction: 8,
			Category: model.CategoryCampus, Emotion: model.EmotionJoy, Tags: []string{}, Attachments: []model.Attachment{}},
		{ID: "b", Title: "알바", StartDate: "2023.01.01", EndDate: "2023.01.01", Satisfaction: 3,
			Tags: []string{"t"}, Attachments: []model.Attachment{}, DeletedAt: &deleted},
	}
	require.NoError(t, repo.SaveExperiences(ctx, list))

	gotProfile := repo.LoadProfile(ctx)
	require.NotNil(t, gotProfile)
	assert.Equal(t, profile, *gotProfile)

	got := repo.LoadExperiences(ctx)
	require.Len(t, got, 2)
	assert.Equal(t, list[0], got[0])
	require.NotNil(t, got[1].DeletedAt)
	assert.True(t, got[1].DeletedAt.Equal(deleted))
	assert.Equal(t, []string{"t"}, got[1].Tags)
}

func TestStateRepositoryCorruptBlobsDegradeToEmpty(t *testing.T) {
	db := testutil.OpenTestDB(t)
	blobs := NewBlobRepository(db)
	repo := NewStateRepository(blobs)
	ctx := context.Background()

	require.NoError(t, blobs.Put(ctx, ProfileKey, "{not json"))
	require.NoError(t, blobs.Put(ctx, ExperiencesKey, `{"oops":true}`))

	assert.Nil(t, repo.LoadProfile(ctx))
	got := repo.LoadExperiences(ctx)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	require.NoError(t, blobs.Put(ctx, ProfileKey, "null"))
	assert.Nil(t, repo.LoadProfile(ctx))
}

func TestStateRepositoryLegacyFallbacks(t *testing.T) {
	db := testutil.OpenTestDB(t)
	blobs := NewBlobRepository(db)
	repo := NewStateRepository(blobs)
	ctx := context.Background()

	legacy := `[
		{"id":"old","title":"예전 기록","date":"2021-05-03","energyLevel":7,"description":"d"},
		{"title":"아이디 없음","startDate":"2020.01.01","satisfaction":"9"},
		{"id":"plain","title":"기본값","startDate":"2019-02-02"},
		{"id":"bad","title":"삭제됨","startDate":"2019.01.01","deletedAt":"yesterday"}
	]`
	require.NoError(t, blobs.Put(ctx, ExperiencesKey, legacy))
	require.NoError(t, blobs.Put(ctx, ProfileKey, `{"name":"민수","birthYear":1998,"status":"직장인"}`))

	got := repo.LoadExperiences(ctx)
	require.Len(t, got, 4)

	assert.Equal(t, "2021.05.03", got[0].StartDate)
	assert.Equal(t, "2021.05.03", got[0].EndDate)
	assert.Equal(t, 7, got[0].Satisfaction)
	assert.NotNil(t, got[0].Tags)
	assert.NotNil(t, got[0].Attachments)

	assert.NotEmpty(t, got[1].ID)
	assert.Equal(t, 9, got[1].Satisfaction)
	assert.Equal(t, "2020.01.01", got[1].EndDate)

	assert.Equal(t, model.DefaultSatisfaction, got[2].Satisfaction)
	assert.Equal(t, "2019.02.02", got[2].StartDate)

	assert.True(t, got[3].IsTrashed())

	profile := repo.LoadProfile(ctx)
	require.NotNil(t, profile)
	assert.Equal(t, "1998", profile.BirthYear)
}

func TestStateRepositoryResetClearsBoth(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewStateRepositoryFromDB(db)
	ctx := context.Background()

	require.NoError(t, repo.SaveProfile(ctx, model.UserProfile{Name: "a", BirthYear: "2000", Status: "s"}))
	require.NoError(t, repo.SaveExperiences(ctx, []model.Experience{{ID: "x", Title: "t"}}))
	require.NoError(t, repo.Reset(ctx))

	assert.Nil(t, repo.LoadProfile(ctx))
	assert.Empty(t, repo.LoadExperiences(ctx))
}

func TestBlobRepositoryReadOnly(t *testing.T) {
	db := testutil.OpenTestDB(t)
	blobs := NewBlobRepository(db)
	ctx := context.Background()

	require.NoError(t, blobs.Put(ctx, "k", "v1"))
	require.NoError(t, blobs.Put(ctx, "k", "v2"))
	v, ok, err := blobs.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", v)

	blobs.SetReadOnly(true)
	assert.ErrorIs(t, blobs.Put(ctx, "k", "v3"), ErrReadOnly)
	assert.ErrorIs(t, blobs.Delete(ctx, "k"), ErrReadOnly)

	v, _, _ = blobs.Get(ctx, "k")
	assert.Equal(t, "v2", v)
}
