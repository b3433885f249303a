package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"recruit-pipeline/internal/pipeline"
	"recruit-pipeline/internal/storage/models"
	"recruit-pipeline/internal/tracing"
	"recruit-pipeline/internal/types"
)

// PipelineStore 基于 GORM 实现 pipeline.Store
type PipelineStore struct {
	db       *gorm.DB
	exchange string // 发件箱消息的目标交换机
}

var _ pipeline.Store = (*PipelineStore)(nil)

// NewPipelineStore 创建仓储，exchange 为领域事件投递的交换机
func NewPipelineStore(db *gorm.DB, exchange string) *PipelineStore {
	return &PipelineStore{db: db, exchange: exchange}
}

func (s *PipelineStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// notFound 把 gorm 的未命中错误转换为 pipeline 约定的哨兵错误
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pipeline.ErrRecordNotFound
	}
	return err
}

// mustAffect 单条更新没有匹配到记录时返回 ErrRecordNotFound
func mustAffect(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pipeline.ErrRecordNotFound
	}
	return nil
}

// Transaction 在同一个数据库事务中执行 fn
func (s *PipelineStore) Transaction(ctx context.Context, fn func(tx pipeline.Store) error) error {
	ctx, span := mysqlTracer.Start(ctx, "pipeline.Transaction")
	defer span.End()

	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PipelineStore{db: tx, exchange: s.exchange})
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("db.tx.rolled_back", true))
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
	}
	return err
}

// ---- 周期与轮次 ----

func (s *PipelineStore) GetCycle(ctx context.Context, cycleID string) (*types.RecruitmentCycle, error) {
	var m models.RecruitmentCycle
	if err := s.conn(ctx).Where("id = ?", cycleID).Take(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return m.ToType(), nil
}

func (s *PipelineStore) DeleteCycle(ctx context.Context, cycleID string) error {
	return s.conn(ctx).Where("id = ?", cycleID).Delete(&models.RecruitmentCycle{}).Error
}

func (s *PipelineStore) CountApplicantsInCycle(ctx context.Context, cycleID string) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&models.Applicant{}).Where("recruitment_cycle_id = ?", cycleID).Count(&n).Error
	return n, err
}

func (s *PipelineStore) GetRound(ctx context.Context, roundID string) (*types.RecruitmentRound, error) {
	var m models.RecruitmentRound
	if err := s.conn(ctx).Where("id = ?", roundID).Take(&m).Error; err != nil {
		return nil, notFound(err)
	}
	r := m.ToType()
	return &r, nil
}

func (s *PipelineStore) CreateRound(ctx context.Context, round *types.RecruitmentRound) error {
	m := models.RoundFromType(round)
	return s.conn(ctx).Create(&m).Error
}

func (s *PipelineStore) DeleteRound(ctx context.Context, roundID string) error {
	return s.conn(ctx).Where("id = ?", roundID).Delete(&models.RecruitmentRound{}).Error
}

func (s *PipelineStore) CountRounds(ctx context.Context, cycleID string) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&models.RecruitmentRound{}).Where("recruitment_cycle_id = ?", cycleID).Count(&n).Error
	return n, err
}

func (s *PipelineStore) MaxSortOrder(ctx context.Context, cycleID string) (int, bool, error) {
	var maxOrder sql.NullInt64
	err := s.conn(ctx).Model(&models.RecruitmentRound{}).
		Select("MAX(sort_order)").
		Where("recruitment_cycle_id = ?", cycleID).
		Row().Scan(&maxOrder)
	if err != nil {
		return 0, false, err
	}
	return int(maxOrder.Int64), maxOrder.Valid, nil
}

func (s *PipelineStore) NextRound(ctx context.Context, cycleID string, afterSortOrder int) (*types.RecruitmentRound, error) {
	var m models.RecruitmentRound
	err := s.conn(ctx).
		Where("recruitment_cycle_id = ? AND sort_order > ?", cycleID, afterSortOrder).
		Order("sort_order ASC").
		Take(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	r := m.ToType()
	return &r, nil
}

func (s *PipelineStore) ListRoundsAfter(ctx context.Context, cycleID string, sortOrder int) ([]types.RecruitmentRound, error) {
	var rows []models.RecruitmentRound
	err := s.conn(ctx).
		Where("recruitment_cycle_id = ? AND sort_order > ?", cycleID, sortOrder).
		Order("sort_order ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.RecruitmentRound, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ToType())
	}
	return out, nil
}

func (s *PipelineStore) UpdateRoundSortOrder(ctx context.Context, roundID string, sortOrder int) error {
	return mustAffect(s.conn(ctx).Model(&models.RecruitmentRound{}).
		Where("id = ?", roundID).
		Update("sort_order", sortOrder))
}

func (s *PipelineStore) CountAnonymousReadings(ctx context.Context, roundID string) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&models.AnonymousReading{}).Where("recruitment_round_id = ?", roundID).Count(&n).Error
	return n, err
}

// ---- 申请人 ----

func (s *PipelineStore) GetApplicant(ctx context.Context, applicantID string) (*types.Applicant, error) {
	var m models.Applicant
	if err := s.conn(ctx).Where("id = ?", applicantID).Take(&m).Error; err != nil {
		return nil, notFound(err)
	}
	a := m.ToType()
	return &a, nil
}

func (s *PipelineStore) ListApplicantsByIDs(ctx context.Context, ids []string) ([]types.Applicant, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Applicant
	if err := s.conn(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.Applicant, 0, len(rows))
	for _, a := range rows {
		out = append(out, a.ToType())
	}
	return out, nil
}

func (s *PipelineStore) DeleteApplicant(ctx context.Context, applicantID string) error {
	return s.conn(ctx).Where("id = ?", applicantID).Delete(&models.Applicant{}).Error
}

// ---- 桥接记录 ----

func (s *PipelineStore) GetApplicantRound(ctx context.Context, id string) (*types.ApplicantRound, error) {
	var m models.ApplicantRound
	if err := s.conn(ctx).Where("id = ?", id).Take(&m).Error; err != nil {
		return nil, notFound(err)
	}
	ar := m.ToType()
	return &ar, nil
}

func (s *PipelineStore) FindApplicantRound(ctx context.Context, applicantID, roundID string) (*types.ApplicantRound, error) {
	var m models.ApplicantRound
	err := s.conn(ctx).
		Where("applicant_id = ? AND recruitment_round_id = ?", applicantID, roundID).
		Take(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	ar := m.ToType()
	return &ar, nil
}

func (s *PipelineStore) listApplicantRounds(ctx context.Context, column, value string) ([]types.ApplicantRound, error) {
	var rows []models.ApplicantRound
	err := s.conn(ctx).
		Where(clause.Eq{Column: clause.Column{Name: column}, Value: value}).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.ApplicantRound, 0, len(rows))
	for _, ar := range rows {
		out = append(out, ar.ToType())
	}
	return out, nil
}

func (s *PipelineStore) ListApplicantRoundsByRound(ctx context.Context, roundID string) ([]types.ApplicantRound, error) {
	return s.listApplicantRounds(ctx, "recruitment_round_id", roundID)
}

func (s *PipelineStore) ListApplicantRoundsByApplicant(ctx context.Context, applicantID string) ([]types.ApplicantRound, error) {
	return s.listApplicantRounds(ctx, "applicant_id", applicantID)
}

func (s *PipelineStore) CountApplicantRoundsByRound(ctx context.Context, roundID string) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&models.ApplicantRound{}).Where("recruitment_round_id = ?", roundID).Count(&n).Error
	return n, err
}

func (s *PipelineStore) CreateApplicantRound(ctx context.Context, ar *types.ApplicantRound) error {
	m := models.ApplicantRoundFromType(ar)
	return s.conn(ctx).Create(&m).Error
}

func (s *PipelineStore) UpdateApplicantRoundStatus(ctx context.Context, id string, status types.ApplicantRoundStatus, at time.Time) error {
	return mustAffect(s.conn(ctx).Model(&models.ApplicantRound{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": string(status), "updated_at": at}))
}

func (s *PipelineStore) SetWeightedScore(ctx context.Context, id string, score *float64) error {
	// map 形式才能把 NULL 写回去
	return mustAffect(s.conn(ctx).Model(&models.ApplicantRound{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"weighted_score": score}))
}

func (s *PipelineStore) DeleteApplicantRounds(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.conn(ctx).Where("id IN ?", ids).Delete(&models.ApplicantRound{}).Error
}

// ---- 评分维度 ----

func (s *PipelineStore) ListMetricsByRound(ctx context.Context, roundID string) ([]types.Metric, error) {
	var rows []models.Metric
	err := s.conn(ctx).
		Where("recruitment_round_id = ?", roundID).
		Order("position ASC, created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.Metric, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.ToType())
	}
	return out, nil
}

func (s *PipelineStore) DeleteMetricsByRound(ctx context.Context, roundID string) error {
	return s.conn(ctx).Where("recruitment_round_id = ?", roundID).Delete(&models.Metric{}).Error
}

func (s *PipelineStore) CreateMetrics(ctx context.Context, metrics []types.Metric) error {
	if len(metrics) == 0 {
		return nil
	}
	rows := make([]models.Metric, 0, len(metrics))
	for i, m := range metrics {
		rows = append(rows, models.Metric{
			ID:                 m.ID,
			RecruitmentRoundID: m.RecruitmentRoundID,
			Name:               m.Name,
			Weight:             m.Weight,
			Position:           i,
		})
	}
	return s.conn(ctx).Create(&rows).Error
}

// ---- 打分 ----

// scoreRowRecord 接收 scores LEFT JOIN metrics 的结果
type scoreRowRecord struct {
	models.Score
	MetricName   string
	MetricWeight float64
}

func (s *PipelineStore) scoreRows(ctx context.Context, where string, args ...interface{}) ([]types.ScoreRow, error) {
	var recs []scoreRowRecord
	// 维度被删除后分数仍保留，名称和权重取空值
	err := s.conn(ctx).Table("scores").
		Select("scores.*, COALESCE(metrics.name, '') AS metric_name, COALESCE(metrics.weight, 0) AS metric_weight").
		Joins("LEFT JOIN metrics ON metrics.id = scores.metric_id").
		Where(where, args...).
		Order("scores.created_at ASC, scores.id ASC").
		Scan(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.ScoreRow, 0, len(recs))
	for _, r := range recs {
		out = append(out, types.ScoreRow{Score: r.Score.ToType(), MetricName: r.MetricName, MetricWeight: r.MetricWeight})
	}
	return out, nil
}

func (s *PipelineStore) CreateScores(ctx context.Context, scores []types.Score) error {
	if len(scores) == 0 {
		return nil
	}
	rows := make([]models.Score, 0, len(scores))
	for _, sc := range scores {
		rows = append(rows, models.ScoreFromType(sc))
	}
	return s.conn(ctx).Create(&rows).Error
}

func (s *PipelineStore) GetScore(ctx context.Context, scoreID string) (*types.Score, error) {
	var m models.Score
	if err := s.conn(ctx).Where("id = ?", scoreID).Take(&m).Error; err != nil {
		return nil, notFound(err)
	}
	sc := m.ToType()
	return &sc, nil
}

func (s *PipelineStore) UpdateScoreValue(ctx context.Context, scoreID string, value float64) error {
	return mustAffect(s.conn(ctx).Model(&models.Score{}).Where("id = ?", scoreID).Update("score_value", value))
}

func (s *PipelineStore) ListScoreRows(ctx context.Context, applicantRoundID string) ([]types.ScoreRow, error) {
	return s.scoreRows(ctx, "scores.applicant_round_id = ?", applicantRoundID)
}

func (s *PipelineStore) ListScoreRowsBySubmission(ctx context.Context, submissionID string) ([]types.ScoreRow, error) {
	return s.scoreRows(ctx, "scores.submission_id = ?", submissionID)
}

func (s *PipelineStore) ListLegacyScoreRows(ctx context.Context, applicantRoundID, userID string, createdAt time.Time) ([]types.ScoreRow, error) {
	return s.scoreRows(ctx,
		"scores.applicant_round_id = ? AND scores.user_id = ? AND scores.created_at = ? AND scores.submission_id IS NULL",
		applicantRoundID, userID, createdAt)
}

func (s *PipelineStore) ScoresExist(ctx context.Context, applicantRoundIDs []string) (bool, error) {
	if len(applicantRoundIDs) == 0 {
		return false, nil
	}
	var m models.Score
	err := s.conn(ctx).Select("id").Where("applicant_round_id IN ?", applicantRoundIDs).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *PipelineStore) DeleteScoresBySubmission(ctx context.Context, submissionID string) error {
	return s.conn(ctx).Where("submission_id = ?", submissionID).Delete(&models.Score{}).Error
}

func (s *PipelineStore) DeleteScoresByApplicantRounds(ctx context.Context, applicantRoundIDs []string) error {
	if len(applicantRoundIDs) == 0 {
		return nil
	}
	return s.conn(ctx).Where("applicant_round_id IN ?", applicantRoundIDs).Delete(&models.Score{}).Error
}

// ---- 评论 ----

func (s *PipelineStore) CreateComment(ctx context.Context, c *types.Comment) error {
	m := models.CommentFromType(c)
	return s.conn(ctx).Create(&m).Error
}

func (s *PipelineStore) GetComment(ctx context.Context, commentID string) (*types.Comment, error) {
	var m models.Comment
	if err := s.conn(ctx).Where("id = ?", commentID).Take(&m).Error; err != nil {
		return nil, notFound(err)
	}
	c := m.ToType()
	return &c, nil
}

func (s *PipelineStore) UpdateCommentText(ctx context.Context, commentID, text string, at time.Time) error {
	return mustAffect(s.conn(ctx).Model(&models.Comment{}).
		Where("id = ?", commentID).
		Updates(map[string]interface{}{"comment_text": text, "updated_at": at}))
}

func (s *PipelineStore) DeleteComment(ctx context.Context, commentID string) error {
	return s.conn(ctx).Where("id = ?", commentID).Delete(&models.Comment{}).Error
}

func (s *PipelineStore) ListComments(ctx context.Context, applicantRoundID string) ([]types.Comment, error) {
	var rows []models.Comment
	err := s.conn(ctx).
		Where("applicant_round_id = ?", applicantRoundID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.Comment, 0, len(rows))
	for _, c := range rows {
		out = append(out, c.ToType())
	}
	return out, nil
}

func (s *PipelineStore) DeleteCommentsByApplicantRounds(ctx context.Context, applicantRoundIDs []string) error {
	if len(applicantRoundIDs) == 0 {
		return nil
	}
	return s.conn(ctx).Where("applicant_round_id IN ?", applicantRoundIDs).Delete(&models.Comment{}).Error
}

// ---- 评议 ----

func (s *PipelineStore) FindSession(ctx context.Context, roundID string) (*types.DelibsSession, error) {
	var m models.DelibsSession
	if err := s.conn(ctx).Where("recruitment_round_id = ?", roundID).Take(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return m.ToType(), nil
}

func (s *PipelineStore) CreateSessionIfAbsent(ctx context.Context, sess *types.DelibsSession) error {
	m := models.DelibsSession{
		ID:                 sess.ID,
		RecruitmentRoundID: sess.RecruitmentRoundID,
		CreatedBy:          sess.CreatedBy,
		Status:             string(sess.Status),
		CreatedAt:          sess.CreatedAt,
		UpdatedAt:          sess.UpdatedAt,
	}
	// 并发创建时由唯一索引兜底，后到者什么也不做
	return s.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error
}

func (s *PipelineStore) UpdateSessionStatus(ctx context.Context, sessionID string, status types.DelibsSessionStatus, at time.Time) error {
	return mustAffect(s.conn(ctx).Model(&models.DelibsSession{}).
		Where("id = ?", sessionID).
		Updates(map[string]interface{}{"status": string(status), "updated_at": at}))
}

func (s *PipelineStore) DeleteSessionByRound(ctx context.Context, roundID string) error {
	db := s.conn(ctx)
	sub := db.Model(&models.DelibsSession{}).Select("id").Where("recruitment_round_id = ?", roundID)
	if err := db.Where("delibs_session_id IN (?)", sub).Delete(&models.DelibsVote{}).Error; err != nil {
		return err
	}
	return db.Where("recruitment_round_id = ?", roundID).Delete(&models.DelibsSession{}).Error
}

func (s *PipelineStore) UpsertVote(ctx context.Context, v *types.DelibsVote) error {
	m := models.DelibsVote{
		ID:               v.ID,
		DelibsSessionID:  v.DelibsSessionID,
		VoterUserID:      v.VoterUserID,
		ApplicantRoundID: v.ApplicantRoundID,
		VoteValue:        v.VoteValue,
		CreatedAt:        v.UpdatedAt,
		UpdatedAt:        v.UpdatedAt,
	}
	db := s.conn(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "delibs_session_id"}, {Name: "voter_user_id"}, {Name: "applicant_round_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"vote_value", "updated_at"}),
	}).Create(&m).Error
	if err != nil {
		return err
	}

	// 覆盖已有投票时保留原记录的 ID
	var stored models.DelibsVote
	err = db.Where("delibs_session_id = ? AND voter_user_id = ? AND applicant_round_id = ?",
		v.DelibsSessionID, v.VoterUserID, v.ApplicantRoundID).Take(&stored).Error
	if err != nil {
		return fmt.Errorf("读取投票失败: %w", err)
	}
	v.ID = stored.ID
	return nil
}

func (s *PipelineStore) ListVotes(ctx context.Context, sessionID string) ([]types.DelibsVote, error) {
	var rows []models.DelibsVote
	if err := s.conn(ctx).Where("delibs_session_id = ?", sessionID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.DelibsVote, 0, len(rows))
	for _, v := range rows {
		out = append(out, v.ToType())
	}
	return out, nil
}

func (s *PipelineStore) DeleteVotesByApplicantRounds(ctx context.Context, applicantRoundIDs []string) error {
	if len(applicantRoundIDs) == 0 {
		return nil
	}
	return s.conn(ctx).Where("applicant_round_id IN ?", applicantRoundIDs).Delete(&models.DelibsVote{}).Error
}

// ---- 成员 ----

func (s *PipelineStore) GetRole(ctx context.Context, organizationID, userID string) (types.Role, error) {
	var m models.OrganizationMember
	err := s.conn(ctx).
		Where("organization_id = ? AND user_id = ?", organizationID, userID).
		Take(&m).Error
	if err != nil {
		return "", notFound(err)
	}
	return types.Role(m.Role), nil
}

func (s *PipelineStore) CountMembers(ctx context.Context, organizationID string) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&models.OrganizationMember{}).Where("organization_id = ?", organizationID).Count(&n).Error
	return n, err
}

func (s *PipelineStore) GetUserNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var users []models.User
	if err := s.conn(ctx).Select("id", "name").Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u.Name
	}
	return out, nil
}

// ---- 发件箱 ----

// AppendEvent 写入发件箱，路由键即事件类型
func (s *PipelineStore) AppendEvent(ctx context.Context, event types.PipelineEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}
	msg := models.OutboxMessage{
		AggregateID:      event.AggregateID,
		EventType:        event.EventType,
		Payload:          string(payload),
		TargetExchange:   s.exchange,
		TargetRoutingKey: event.EventType,
		Status:           models.OutboxStatusPending,
		CreatedAt:        event.OccurredAt,
	}
	return s.conn(ctx).Create(&msg).Error
}
