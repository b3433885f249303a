package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruit-pipeline/internal/types"
)

func TestValidateMetricSet(t *testing.T) {
	tests := []struct {
		name    string
		metrics []types.MetricInput
		wantErr bool
	}{
		{"空集合合法", nil, false},
		{"权重之和为 1", []types.MetricInput{{Name: "沟通", Weight: 0.6}, {Name: "技术", Weight: 0.4}}, false},
		{"在容差范围内", []types.MetricInput{{Name: "沟通", Weight: 0.5}, {Name: "技术", Weight: 0.4995}}, false},
		{"低于下限", []types.MetricInput{{Name: "沟通", Weight: 0.5}, {Name: "技术", Weight: 0.498}}, true},
		{"高于上限", []types.MetricInput{{Name: "沟通", Weight: 0.5}, {Name: "技术", Weight: 0.502}}, true},
		{"名称为空", []types.MetricInput{{Name: " ", Weight: 1.0}}, true},
		{"权重为负", []types.MetricInput{{Name: "沟通", Weight: -0.2}, {Name: "技术", Weight: 1.2}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMetricSet(tt.metrics, 0.001)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestReplaceMetrics_ReplacesWholeSet(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.engine.ReplaceMetrics(ctx, "r0", []types.MetricInput{{Name: "沟通", Weight: 0.5}, {Name: "技术", Weight: 0.5}})
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := f.engine.ReplaceMetrics(ctx, "r0", []types.MetricInput{{Name: "文化契合", Weight: 0.3}, {Name: "技术", Weight: 0.3}, {Name: "潜力", Weight: 0.4}})
	require.NoError(t, err)
	require.Len(t, second, 3)

	listed, err := f.engine.ListMetrics(ctx, "r0")
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, []string{"文化契合", "技术", "潜力"}, []string{listed[0].Name, listed[1].Name, listed[2].Name})
	for _, m := range listed {
		assert.Equal(t, "r0", m.RecruitmentRoundID)
		assert.NotEqual(t, first[0].ID, m.ID)
	}
}

func TestReplaceMetrics_EmptySetReturnsEmptySlice(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.engine.ReplaceMetrics(ctx, "r0", []types.MetricInput{{Name: "沟通", Weight: 1.0}})
	require.NoError(t, err)

	inserted, err := f.engine.ReplaceMetrics(ctx, "r0", nil)
	require.NoError(t, err)
	assert.NotNil(t, inserted)
	assert.Empty(t, inserted)

	listed, err := f.engine.ListMetrics(ctx, "r0")
	require.NoError(t, err)
	assert.NotNil(t, listed)
	assert.Empty(t, listed)
}

func TestReplaceMetrics_RejectsBadWeightSum(t *testing.T) {
	f := newFixture()
	_, err := f.engine.ReplaceMetrics(context.Background(), "r0", []types.MetricInput{{Name: "沟通", Weight: 0.7}, {Name: "技术", Weight: 0.4}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, f.store.metrics)
}

func TestReplaceMetrics_ConflictWhenScoresExist(t *testing.T) {
	f := newFixture()
	f.store.metrics = []types.Metric{{ID: "m1", RecruitmentRoundID: "r0", Name: "沟通", Weight: 1}}
	f.store.scores = []types.Score{{ID: "s1", ApplicantRoundID: "ar-bob-r0", MetricID: "m1", ScoreValue: 7, UserID: "u-member", SubmissionID: "sub-1", CreatedAt: time.Now()}}

	_, err := f.engine.ReplaceMetrics(context.Background(), "r0", []types.MetricInput{{Name: "技术", Weight: 1.0}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)

	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Message(), "删除本轮全部评分")

	// 原维度保持不变
	require.Len(t, f.store.metrics, 1)
	assert.Equal(t, "m1", f.store.metrics[0].ID)
}

func TestReplaceMetrics_AllowedAfterDeletingScores(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.store.metrics = []types.Metric{{ID: "m1", RecruitmentRoundID: "r0", Name: "沟通", Weight: 1}}
	f.store.scores = []types.Score{{ID: "s1", ApplicantRoundID: "ar-bob-r0", MetricID: "m1", ScoreValue: 7, UserID: "u-member", SubmissionID: "sub-1"}}
	score := 7.0
	f.store.ars[1].WeightedScore = &score

	cleared, err := f.engine.DeleteAllScoresForRound(ctx, "r0")
	require.NoError(t, err)
	assert.Equal(t, 2, cleared)
	assert.Empty(t, f.store.scores)
	for _, ar := range f.store.ars {
		assert.Nil(t, ar.WeightedScore)
	}

	_, err = f.engine.ReplaceMetrics(ctx, "r0", []types.MetricInput{{Name: "技术", Weight: 1.0}})
	assert.NoError(t, err)
}

func TestReplaceMetrics_UnknownRound(t *testing.T) {
	f := newFixture()
	_, err := f.engine.ReplaceMetrics(context.Background(), "missing", []types.MetricInput{{Name: "沟通", Weight: 1.0}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReplaceMetrics_RollsBackOnInsertFailure(t *testing.T) {
	f := newFixture()
	f.store.metrics = []types.Metric{{ID: "m1", RecruitmentRoundID: "r0", Name: "沟通", Weight: 1}}
	f.store.failures["CreateMetrics"] = errors.New("connection reset")

	_, err := f.engine.ReplaceMetrics(context.Background(), "r0", []types.MetricInput{{Name: "技术", Weight: 1.0}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStore)

	require.Len(t, f.store.metrics, 1, "删除旧维度应随事务回滚")
	assert.Equal(t, "m1", f.store.metrics[0].ID)
}
