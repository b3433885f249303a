package pipeline

import (
	"context"
	"math"
	"sort"
	"time"

	"recruit-pipeline/internal/types"
)

// weightEpsilon 调用方提交的权重与维度表权重的比较容差
const weightEpsilon = 1e-9

// WeightedAverage 计算 Σ(score·weight)/Σ(weight)，权重之和为 0 时返回 0
func WeightedAverage(rows []types.ScoreRow) float64 {
	var weighted, total float64
	for _, r := range rows {
		weighted += r.ScoreValue * r.MetricWeight
		total += r.MetricWeight
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

// submissionGroup 一次提交的全部打分
type submissionGroup struct {
	submissionID string
	userID       string
	createdAt    time.Time
	rows         []types.ScoreRow
}

// groupSubmissions 按 submission_id 分组；历史数据没有 submission_id 时
// 以评分人 + 创建时间作为分组键。结果按创建时间倒序。
func groupSubmissions(rows []types.ScoreRow) []*submissionGroup {
	index := make(map[string]*submissionGroup)
	var groups []*submissionGroup
	for _, r := range rows {
		key := "sub:" + r.SubmissionID
		if r.SubmissionID == "" {
			key = "legacy:" + r.UserID + "@" + r.CreatedAt.UTC().Format(time.RFC3339Nano)
		}
		g, ok := index[key]
		if !ok {
			g = &submissionGroup{
				submissionID: r.SubmissionID,
				userID:       r.UserID,
				createdAt:    r.CreatedAt,
			}
			index[key] = g
			groups = append(groups, g)
		}
		if r.CreatedAt.Before(g.createdAt) {
			g.createdAt = r.CreatedAt
		}
		g.rows = append(g.rows, r)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if !groups[i].createdAt.Equal(groups[j].createdAt) {
			return groups[i].createdAt.After(groups[j].createdAt)
		}
		return groups[i].submissionID > groups[j].submissionID
	})
	return groups
}

// cachedScore 根据配置的模式从全部提交推导 weighted_score 缓存值，没有提交时为 nil
func (e *Engine) cachedScore(groups []*submissionGroup) *float64 {
	if len(groups) == 0 {
		return nil
	}
	var v float64
	switch e.settings.ScoreMode {
	case ScoreModeMean:
		for _, g := range groups {
			v += WeightedAverage(g.rows)
		}
		v /= float64(len(groups))
	default:
		v = WeightedAverage(groups[0].rows)
	}
	return &v
}

// refreshWeightedScore 从打分记录重新计算并持久化缓存
func (e *Engine) refreshWeightedScore(ctx context.Context, tx Store, op, applicantRoundID string) (*float64, error) {
	rows, err := tx.ListScoreRows(ctx, applicantRoundID)
	if err != nil {
		return nil, NewStoreError(op, "查询评分记录失败", err)
	}
	score := e.cachedScore(groupSubmissions(rows))
	if err := tx.SetWeightedScore(ctx, applicantRoundID, score); err != nil {
		return nil, NewStoreError(op, "更新加权分缓存失败", err)
	}
	return score, nil
}

// SubmitScores 记录一个评分人的一次完整打分。
// 加权平均始终使用维度表中的当前权重；调用方提交的权重仅用于比对。
func (e *Engine) SubmitScores(ctx context.Context, applicantID, roundID, userID string, entries []types.ScoreEntry) (*types.SubmitScoresResult, error) {
	const op = "SubmitScores"
	if applicantID == "" || roundID == "" || userID == "" {
		return nil, NewValidationError(op, "applicant_id、recruitment_round_id 和 user_id 不能为空")
	}
	if len(entries) == 0 {
		return nil, NewValidationError(op, "至少需要一个维度的分数")
	}
	seen := make(map[string]struct{}, len(entries))
	for _, en := range entries {
		if en.MetricID == "" {
			return nil, NewValidationError(op, "metric_id 不能为空")
		}
		if _, dup := seen[en.MetricID]; dup {
			return nil, NewValidationError(op, "维度 %s 重复提交", en.MetricID)
		}
		seen[en.MetricID] = struct{}{}
		if math.IsNaN(en.ScoreValue) || math.IsInf(en.ScoreValue, 0) {
			return nil, NewValidationError(op, "维度 %s 的分数不是有效数值", en.MetricID)
		}
	}

	log := e.logger.With().Str("op", op).Str("applicant_id", applicantID).Str("round_id", roundID).Str("user_id", userID).Logger()

	var result types.SubmitScoresResult
	err := e.store.Transaction(ctx, func(tx Store) error {
		ar, err := tx.FindApplicantRound(ctx, applicantID, roundID)
		if err != nil {
			return notFoundOr(op, err, "申请人 %s 不在轮次 %s 中", applicantID, roundID)
		}

		metrics, err := tx.ListMetricsByRound(ctx, roundID)
		if err != nil {
			return NewStoreError(op, "查询评分维度失败", err)
		}
		live := make(map[string]types.Metric, len(metrics))
		for _, m := range metrics {
			live[m.ID] = m
		}

		submissionID := e.newID()
		createdAt := e.now()
		scores := make([]types.Score, 0, len(entries))
		rows := make([]types.ScoreRow, 0, len(entries))
		for _, en := range entries {
			m, ok := live[en.MetricID]
			if !ok {
				return NewValidationError(op, "维度 %s 不属于轮次 %s", en.MetricID, roundID)
			}
			if en.Weight != nil && math.Abs(*en.Weight-m.Weight) > weightEpsilon {
				log.Warn().
					Str("metric_id", m.ID).
					Float64("supplied_weight", *en.Weight).
					Float64("live_weight", m.Weight).
					Msg("提交的权重与维度表不一致，使用维度表权重")
			}
			s := types.Score{
				ID:               e.newID(),
				ApplicantRoundID: ar.ID,
				MetricID:         m.ID,
				ScoreValue:       en.ScoreValue,
				UserID:           userID,
				SubmissionID:     submissionID,
				CreatedAt:        createdAt,
			}
			scores = append(scores, s)
			rows = append(rows, types.ScoreRow{Score: s, MetricName: m.Name, MetricWeight: m.Weight})
		}

		if err := tx.CreateScores(ctx, scores); err != nil {
			return NewStoreError(op, "写入评分失败", err)
		}
		if _, err := e.refreshWeightedScore(ctx, tx, op, ar.ID); err != nil {
			return err
		}

		result.Scores = scores
		result.WeightedScore = WeightedAverage(rows)
		return e.appendEvent(ctx, tx, op, ar.ID, EventScoresSubmitted, map[string]any{
			"applicant_round_id": ar.ID,
			"submission_id":      submissionID,
			"user_id":            userID,
			"weighted_average":   result.WeightedScore,
		})
	})
	if err != nil {
		log.Warn().Err(err).Msg("提交评分失败")
		return nil, passThrough(op, "事务执行失败", err)
	}

	log.Info().Float64("weighted_score", result.WeightedScore).Int("count", len(result.Scores)).Msg("评分已提交")
	return &result, nil
}

// UpdateScore 修改单个维度的分数，返回该次提交重新计算后的加权平均，
// 同时刷新桥接记录上的缓存。
func (e *Engine) UpdateScore(ctx context.Context, scoreID string, value float64, userID string) (float64, error) {
	const op = "UpdateScore"
	if scoreID == "" || userID == "" {
		return 0, NewValidationError(op, "score_id 和 user_id 不能为空")
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, NewValidationError(op, "分数不是有效数值")
	}

	var avg float64
	err := e.store.Transaction(ctx, func(tx Store) error {
		score, err := tx.GetScore(ctx, scoreID)
		if err != nil {
			return notFoundOr(op, err, "评分 %s 不存在", scoreID)
		}
		if score.UserID != userID {
			return NewAuthorizationError(op, "只能修改自己的评分")
		}
		if err := tx.UpdateScoreValue(ctx, scoreID, value); err != nil {
			return NewStoreError(op, "更新评分失败", err)
		}

		var rows []types.ScoreRow
		if score.SubmissionID != "" {
			rows, err = tx.ListScoreRowsBySubmission(ctx, score.SubmissionID)
		} else {
			rows, err = tx.ListLegacyScoreRows(ctx, score.ApplicantRoundID, score.UserID, score.CreatedAt)
		}
		if err != nil {
			return NewStoreError(op, "查询同次提交的评分失败", err)
		}
		avg = WeightedAverage(rows)

		_, err = e.refreshWeightedScore(ctx, tx, op, score.ApplicantRoundID)
		return err
	})
	if err != nil {
		return 0, passThrough(op, "事务执行失败", err)
	}
	return avg, nil
}

// FetchScores 返回桥接记录下的全部提交，最新的在前
func (e *Engine) FetchScores(ctx context.Context, applicantRoundID string) ([]types.Submission, error) {
	const op = "FetchScores"
	if applicantRoundID == "" {
		return nil, NewValidationError(op, "applicant_round_id 不能为空")
	}
	if _, err := e.store.GetApplicantRound(ctx, applicantRoundID); err != nil {
		return nil, notFoundOr(op, err, "桥接记录 %s 不存在", applicantRoundID)
	}
	rows, err := e.store.ListScoreRows(ctx, applicantRoundID)
	if err != nil {
		return nil, NewStoreError(op, "查询评分记录失败", err)
	}
	groups := groupSubmissions(rows)

	userIDs := make([]string, 0, len(groups))
	seen := make(map[string]struct{})
	for _, g := range groups {
		if _, ok := seen[g.userID]; ok {
			continue
		}
		seen[g.userID] = struct{}{}
		userIDs = append(userIDs, g.userID)
	}
	names := map[string]string{}
	if len(userIDs) > 0 {
		names, err = e.store.GetUserNames(ctx, userIDs)
		if err != nil {
			return nil, NewStoreError(op, "查询评分人信息失败", err)
		}
	}

	submissions := make([]types.Submission, 0, len(groups))
	for _, g := range groups {
		submissions = append(submissions, types.Submission{
			SubmissionID:    g.submissionID,
			User:            types.UserRef{ID: g.userID, Name: names[g.userID]},
			Scores:          g.rows,
			WeightedAverage: WeightedAverage(g.rows),
			CreatedAt:       g.createdAt,
		})
	}
	return submissions, nil
}

// DeleteSubmission 删除一次提交的全部打分，只有评分人本人可以删除
func (e *Engine) DeleteSubmission(ctx context.Context, submissionID, userID string) error {
	const op = "DeleteSubmission"
	if submissionID == "" || userID == "" {
		return NewValidationError(op, "submission_id 和 user_id 不能为空")
	}
	err := e.store.Transaction(ctx, func(tx Store) error {
		rows, err := tx.ListScoreRowsBySubmission(ctx, submissionID)
		if err != nil {
			return NewStoreError(op, "查询提交记录失败", err)
		}
		if len(rows) == 0 {
			return NewNotFoundError(op, "提交 %s 不存在", submissionID)
		}
		// 同一次提交的打分属于同一评分人，检查第一条即可
		if rows[0].UserID != userID {
			return NewAuthorizationError(op, "只能删除自己的提交")
		}
		if err := tx.DeleteScoresBySubmission(ctx, submissionID); err != nil {
			return NewStoreError(op, "删除评分失败", err)
		}
		_, err = e.refreshWeightedScore(ctx, tx, op, rows[0].ApplicantRoundID)
		return err
	})
	if err != nil {
		return passThrough(op, "事务执行失败", err)
	}
	e.logger.Info().Str("op", op).Str("submission_id", submissionID).Msg("提交已删除")
	return nil
}

// DeleteAllScoresForRound 删除一轮内的全部评分并清空加权分缓存，返回受影响的桥接记录数
func (e *Engine) DeleteAllScoresForRound(ctx context.Context, roundID string) (int, error) {
	const op = "DeleteAllScoresForRound"
	if roundID == "" {
		return 0, NewValidationError(op, "recruitment_round_id 不能为空")
	}
	var cleared int
	err := e.store.Transaction(ctx, func(tx Store) error {
		if _, err := tx.GetRound(ctx, roundID); err != nil {
			return notFoundOr(op, err, "轮次 %s 不存在", roundID)
		}
		ars, err := tx.ListApplicantRoundsByRound(ctx, roundID)
		if err != nil {
			return NewStoreError(op, "查询本轮申请人失败", err)
		}
		if len(ars) == 0 {
			return nil
		}
		if err := tx.DeleteScoresByApplicantRounds(ctx, applicantRoundIDs(ars)); err != nil {
			return NewStoreError(op, "删除评分失败", err)
		}
		for _, ar := range ars {
			if err := tx.SetWeightedScore(ctx, ar.ID, nil); err != nil {
				return NewStoreError(op, "清空加权分缓存失败", err)
			}
		}
		cleared = len(ars)
		return nil
	})
	if err != nil {
		return 0, passThrough(op, "事务执行失败", err)
	}
	e.logger.Info().Str("op", op).Str("round_id", roundID).Int("applicant_rounds", cleared).Msg("本轮评分已清空")
	return cleared, nil
}
