package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"recruit-pipeline/internal/config"
	"recruit-pipeline/internal/pipeline"
	"recruit-pipeline/internal/storage/models"
	"recruit-pipeline/internal/types"
)

// 集成测试需要可访问的 MySQL，连接失败或 -short 时跳过
func setupTestMySQL(t *testing.T) *MySQL {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping MySQL integration test in short mode")
	}
	cfg, err := config.LoadConfig("")
	if err != nil {
		t.Skipf("无法加载配置: %v", err)
	}
	cfg.MySQL.ConnectTimeoutSeconds = 2
	m, err := NewMySQL(&cfg.MySQL)
	if err != nil {
		t.Skipf("MySQL 不可用: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

type seeded struct {
	orgID, cycleID string
	rounds         []string
	applicantID    string
	arID           string
	ownerID        string
}

func seedPipeline(t *testing.T, db *gorm.DB) seeded {
	t.Helper()
	s := seeded{orgID: newID(), cycleID: newID(), applicantID: newID(), arID: newID(), ownerID: newID()}
	require.NoError(t, db.Create(&models.RecruitmentCycle{ID: s.cycleID, OrganizationID: s.orgID, Name: "2024 秋招"}).Error)
	for i, name := range []string{"简历筛选", "面试", "终面"} {
		id := newID()
		s.rounds = append(s.rounds, id)
		require.NoError(t, db.Create(&models.RecruitmentRound{ID: id, RecruitmentCycleID: s.cycleID, Name: name, SortOrder: i}).Error)
	}
	require.NoError(t, db.Create(&models.Applicant{ID: s.applicantID, RecruitmentCycleID: s.cycleID, Name: "Alice"}).Error)
	require.NoError(t, db.Create(&models.ApplicantRound{ID: s.arID, ApplicantID: s.applicantID, RecruitmentRoundID: s.rounds[0], Status: "in_progress", CreatedAt: time.Now(), UpdatedAt: time.Now()}).Error)
	require.NoError(t, db.Create(&models.User{ID: s.ownerID, Name: "Owen", Email: s.ownerID + "@example.com"}).Error)
	require.NoError(t, db.Create(&models.OrganizationMember{OrganizationID: s.orgID, UserID: s.ownerID, Role: "owner"}).Error)

	t.Cleanup(func() {
		db.Where("organization_id = ?", s.orgID).Delete(&models.OrganizationMember{})
		db.Where("id = ?", s.ownerID).Delete(&models.User{})
		db.Where("applicant_id = ?", s.applicantID).Delete(&models.ApplicantRound{})
		db.Where("id = ?", s.applicantID).Delete(&models.Applicant{})
		db.Where("recruitment_round_id IN ?", s.rounds).Delete(&models.Metric{})
		db.Where("recruitment_cycle_id = ?", s.cycleID).Delete(&models.RecruitmentRound{})
		db.Where("id = ?", s.cycleID).Delete(&models.RecruitmentCycle{})
		db.Where("aggregate_id = ?", s.arID).Delete(&models.OutboxMessage{})
	})
	return s
}

func TestPipelineStore_AcceptAdvancesAndWritesOutbox(t *testing.T) {
	m := setupTestMySQL(t)
	s := seedPipeline(t, m.DB())
	store := NewPipelineStore(m.DB(), "pipeline.events.exchange")
	engine := pipeline.NewEngine(store, pipeline.WithLogger(zerolog.Nop()))
	ctx := context.Background()

	res, err := engine.SetStatus(ctx, s.applicantID, s.arID, types.StatusAccepted)
	require.NoError(t, err)
	require.NotNil(t, res.NewRound)
	assert.Equal(t, s.rounds[1], res.NewRound.RecruitmentRoundID)
	assert.Equal(t, types.StatusInProgress, res.NewRound.Status)

	var outbox []models.OutboxMessage
	require.NoError(t, m.DB().Where("aggregate_id = ?", s.arID).Find(&outbox).Error)
	require.Len(t, outbox, 1)
	assert.Equal(t, pipeline.EventApplicantAdvanced, outbox[0].TargetRoutingKey)
	assert.Equal(t, models.OutboxStatusPending, outbox[0].Status)

	var event types.PipelineEvent
	require.NoError(t, json.Unmarshal([]byte(outbox[0].Payload), &event))
	assert.Equal(t, pipeline.EventApplicantAdvanced, event.EventType)
}

func TestPipelineStore_ScoresPersistWeightedCache(t *testing.T) {
	m := setupTestMySQL(t)
	s := seedPipeline(t, m.DB())
	store := NewPipelineStore(m.DB(), "pipeline.events.exchange")
	engine := pipeline.NewEngine(store, pipeline.WithLogger(zerolog.Nop()))
	ctx := context.Background()
	t.Cleanup(func() {
		m.DB().Where("applicant_round_id = ?", s.arID).Delete(&models.Score{})
	})

	metrics, err := engine.ReplaceMetrics(ctx, s.rounds[0], []types.MetricInput{{Name: "技术", Weight: 0.6}, {Name: "沟通", Weight: 0.4}})
	require.NoError(t, err)
	require.Len(t, metrics, 2)

	listed, err := store.ListMetricsByRound(ctx, s.rounds[0])
	require.NoError(t, err)
	assert.Equal(t, "技术", listed[0].Name, "按输入顺序返回")

	out, err := engine.SubmitScores(ctx, s.applicantID, s.rounds[0], s.ownerID, []types.ScoreEntry{
		{MetricID: metrics[0].ID, ScoreValue: 8},
		{MetricID: metrics[1].ID, ScoreValue: 4},
	})
	require.NoError(t, err)
	assert.InDelta(t, 6.4, out.WeightedScore, 1e-9)

	ar, err := store.GetApplicantRound(ctx, s.arID)
	require.NoError(t, err)
	require.NotNil(t, ar.WeightedScore)
	assert.InDelta(t, 6.4, *ar.WeightedScore, 1e-9)

	// 同值更新也不能被当成记录不存在
	require.NoError(t, store.SetWeightedScore(ctx, s.arID, ar.WeightedScore))
	assert.ErrorIs(t, store.SetWeightedScore(ctx, newID(), nil), pipeline.ErrRecordNotFound)

	_, err = engine.ReplaceMetrics(ctx, s.rounds[0], []types.MetricInput{{Name: "综合", Weight: 1}})
	assert.ErrorIs(t, err, pipeline.ErrConflict)
}

func TestPipelineStore_MaxSortOrderAndNextRound(t *testing.T) {
	m := setupTestMySQL(t)
	s := seedPipeline(t, m.DB())
	store := NewPipelineStore(m.DB(), "")
	ctx := context.Background()

	maxOrder, ok, err := store.MaxSortOrder(ctx, s.cycleID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, maxOrder)

	_, ok, err = store.MaxSortOrder(ctx, newID())
	require.NoError(t, err)
	assert.False(t, ok)

	next, err := store.NextRound(ctx, s.cycleID, 0)
	require.NoError(t, err)
	assert.Equal(t, s.rounds[1], next.ID)

	_, err = store.NextRound(ctx, s.cycleID, 2)
	assert.ErrorIs(t, err, pipeline.ErrRecordNotFound)
}
