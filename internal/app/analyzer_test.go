package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental_moderation/internal/app"
	"rental_moderation/internal/domain"
)

func TestAnalyze_MapsPayload(t *testing.T) {
	v := &fakeVision{payloads: map[string]map[string]any{
		"a.jpg": {
			"roomType":          "Phòng ngủ",
			"roomCondition":     "Tốt",
			"cleanliness":       "Sạch sẽ",
			"naturalLight":      "Nhiều ánh sáng",
			"detectedAmenities": []any{"Giường", "Tủ quần áo", "giường"},
			"confidence":        85,
			"warnings":          []any{"ảnh hơi mờ"},
		},
	}}
	a := app.NewImageAnalyzer(v, time.Second, 2).Analyze(context.Background(), "a.jpg")

	require.True(t, a.Analyzed)
	assert.Equal(t, "bedroom", a.RoomType)
	assert.Equal(t, "good", a.RoomCondition)
	assert.Equal(t, "clean", a.Cleanliness)
	assert.Equal(t, "bright", a.NaturalLight)
	assert.Equal(t, []string{"Giường", "Tủ quần áo"}, a.DetectedAmenities)
	assert.InDelta(t, 0.85, a.Confidence, 1e-9)
	assert.Equal(t, []string{"ảnh hơi mờ"}, a.Warnings)
}

func TestAnalyze_FailureIsReportedNotReturned(t *testing.T) {
	v := &fakeVision{errs: map[string]error{"x.jpg": errors.New("quota exceeded")}}
	a := app.NewImageAnalyzer(v, time.Second, 2).Analyze(context.Background(), "x.jpg")

	assert.False(t, a.Analyzed)
	assert.Contains(t, a.Error, "quota exceeded")
	assert.Equal(t, domain.UnknownTier, a.RoomType)
	assert.Equal(t, "x.jpg", a.Image)
}

func TestAnalyze_UnparseablePayload(t *testing.T) {
	v := &fakeVision{payloads: map[string]map[string]any{"p.jpg": {"foo": "bar"}}}
	a := app.NewImageAnalyzer(v, time.Second, 1).Analyze(context.Background(), "p.jpg")

	assert.False(t, a.Analyzed)
	assert.NotEmpty(t, a.Error)
}

func TestAnalyze_Timeout(t *testing.T) {
	v := &fakeVision{
		payloads: map[string]map[string]any{"slow.jpg": roomPayload("bedroom", 0.9)},
		delay:    200 * time.Millisecond,
	}
	a := app.NewImageAnalyzer(v, 20*time.Millisecond, 1).Analyze(context.Background(), "slow.jpg")

	assert.False(t, a.Analyzed)
	assert.Contains(t, a.Error, "timed out")
}

func TestAnalyzeAll_KeepsOrderAndSurvivesFailures(t *testing.T) {
	v := &fakeVision{
		payloads: map[string]map[string]any{
			"1.jpg": roomPayload("bedroom", 0.8, "Giường", "Điều hòa"),
			"3.jpg": roomPayload("kitchen", 0.6, "Bếp", "điều hòa"),
		},
		errs: map[string]error{"2.jpg": errors.New("boom")},
	}
	sum := app.NewImageAnalyzer(v, time.Second, 4).AnalyzeAll(context.Background(), []string{"1.jpg", "2.jpg", "3.jpg"})

	require.Len(t, sum.PerImageDetails, 3)
	assert.Equal(t, "1.jpg", sum.PerImageDetails[0].Image)
	assert.Equal(t, "2.jpg", sum.PerImageDetails[1].Image)
	assert.False(t, sum.PerImageDetails[1].Analyzed)
	assert.Equal(t, "3.jpg", sum.PerImageDetails[2].Image)

	assert.Equal(t, 3, sum.TotalImages)
	assert.Equal(t, 2, sum.AnalyzedImages)
	assert.Equal(t, []string{"Giường", "Điều hòa", "Bếp"}, sum.AllDetectedAmenities)
	assert.InDelta(t, 0.7, sum.AverageConfidence, 1e-9)
	assert.Equal(t, "bedroom", sum.PrimaryRoomType, "tie goes to the first seen")
}

func TestAnalyzeAll_BoundedConcurrency(t *testing.T) {
	v := &fakeVision{payloads: map[string]map[string]any{}, delay: 20 * time.Millisecond}
	var images []string
	for i := 0; i < 10; i++ {
		img := fmt.Sprintf("%d.jpg", i)
		images = append(images, img)
		v.payloads[img] = roomPayload("bedroom", 0.9)
	}
	sum := app.NewImageAnalyzer(v, time.Second, 3).AnalyzeAll(context.Background(), images)

	assert.Equal(t, 10, sum.AnalyzedImages)
	assert.EqualValues(t, 10, v.calls.Load())
	assert.LessOrEqual(t, v.peak.Load(), int64(3))
}

func TestAnalyzeAll_AllFail(t *testing.T) {
	v := &fakeVision{}
	sum := app.NewImageAnalyzer(v, time.Second, 2).AnalyzeAll(context.Background(), []string{"a", "b", "c"})

	assert.Equal(t, 3, sum.TotalImages)
	assert.Zero(t, sum.AnalyzedImages)
	assert.Zero(t, sum.AverageConfidence)
	assert.Equal(t, domain.UnknownTier, sum.PrimaryRoomType)
	assert.Empty(t, sum.AllDetectedAmenities)
}

func TestAnalyzeAll_CancelledRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	v := &fakeVision{payloads: map[string]map[string]any{"a": roomPayload("bedroom", 0.9)}}
	sum := app.NewImageAnalyzer(v, time.Second, 1).AnalyzeAll(ctx, []string{"a", "b"})

	require.Len(t, sum.PerImageDetails, 2)
	assert.Zero(t, sum.AnalyzedImages)
}

func TestSummarize(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		sum := app.Summarize(nil)
		assert.Zero(t, sum.TotalImages)
		assert.Equal(t, domain.UnknownTier, sum.PrimaryRoomType)
		assert.NotNil(t, sum.PerImageDetails)
		assert.NotNil(t, sum.AllDetectedAmenities)
	})

	t.Run("modal room ignores unknown", func(t *testing.T) {
		sum := app.Summarize([]domain.ImageAssessment{
			{Analyzed: true, RoomType: domain.UnknownTier, Confidence: 0.5},
			{Analyzed: true, RoomType: domain.UnknownTier, Confidence: 0.5},
			{Analyzed: true, RoomType: "kitchen", Confidence: 0.5},
			{Analyzed: false, RoomType: "bedroom"},
		})
		assert.Equal(t, "kitchen", sum.PrimaryRoomType)
		assert.Equal(t, 3, sum.AnalyzedImages)
	})

	t.Run("majority wins", func(t *testing.T) {
		sum := app.Summarize([]domain.ImageAssessment{
			{Analyzed: true, RoomType: "kitchen"},
			{Analyzed: true, RoomType: "bedroom"},
			{Analyzed: true, RoomType: "bedroom"},
		})
		assert.Equal(t, "bedroom", sum.PrimaryRoomType)
	})
}
