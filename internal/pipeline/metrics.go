package pipeline

import (
	"context"
	"math"
	"strings"

	"recruit-pipeline/internal/types"
)

// ValidateMetricSet 检查一组评分维度是否可以整体替换。
// 空集合合法；非空时权重之和必须落在 1±tolerance 内。
func ValidateMetricSet(metrics []types.MetricInput, tolerance float64) error {
	const op = "ReplaceMetrics"
	if len(metrics) == 0 {
		return nil
	}
	var sum float64
	for i, m := range metrics {
		if strings.TrimSpace(m.Name) == "" {
			return NewValidationError(op, "第 %d 个维度名称为空", i+1)
		}
		if math.IsNaN(m.Weight) || m.Weight < 0 || m.Weight > 1 {
			return NewValidationError(op, "维度 %q 的权重 %v 不在 [0,1] 范围内", m.Name, m.Weight)
		}
		sum += m.Weight
	}
	if math.Abs(sum-1.0) > tolerance {
		return NewValidationError(op, "权重之和必须为 1.0（当前为 %.4f）", sum)
	}
	return nil
}

// ReplaceMetrics 整体替换某一轮的评分维度：先删后插，不支持增量修改
func (e *Engine) ReplaceMetrics(ctx context.Context, roundID string, metrics []types.MetricInput) ([]types.Metric, error) {
	const op = "ReplaceMetrics"
	if roundID == "" {
		return nil, NewValidationError(op, "recruitment_round_id 不能为空")
	}
	if err := ValidateMetricSet(metrics, e.settings.WeightTolerance); err != nil {
		return nil, err
	}

	log := e.logger.With().Str("op", op).Str("round_id", roundID).Logger()

	inserted := make([]types.Metric, 0, len(metrics))
	err := e.store.Transaction(ctx, func(tx Store) error {
		if _, err := tx.GetRound(ctx, roundID); err != nil {
			return notFoundOr(op, err, "轮次 %s 不存在", roundID)
		}

		// 先解析出本轮全部桥接记录，再检查是否存在打分
		ars, err := tx.ListApplicantRoundsByRound(ctx, roundID)
		if err != nil {
			return NewStoreError(op, "查询本轮申请人失败", err)
		}
		if len(ars) > 0 {
			exists, err := tx.ScoresExist(ctx, applicantRoundIDs(ars))
			if err != nil {
				return NewStoreError(op, "检查已有评分失败", err)
			}
			if exists {
				return NewConflictError(op, "本轮已有评分，请先删除本轮全部评分再修改评分维度")
			}
		}

		if err := tx.DeleteMetricsByRound(ctx, roundID); err != nil {
			return NewStoreError(op, "删除旧评分维度失败", err)
		}
		for _, m := range metrics {
			inserted = append(inserted, types.Metric{
				ID:                 e.newID(),
				RecruitmentRoundID: roundID,
				Name:               strings.TrimSpace(m.Name),
				Weight:             m.Weight,
			})
		}
		if len(inserted) == 0 {
			return nil
		}
		if err := tx.CreateMetrics(ctx, inserted); err != nil {
			return NewStoreError(op, "写入评分维度失败", err)
		}
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Msg("替换评分维度失败")
		return nil, passThrough(op, "事务执行失败", err)
	}

	log.Info().Int("count", len(inserted)).Msg("评分维度已替换")
	return inserted, nil
}

// ListMetrics 按插入顺序返回某一轮的评分维度
func (e *Engine) ListMetrics(ctx context.Context, roundID string) ([]types.Metric, error) {
	const op = "ListMetrics"
	if roundID == "" {
		return nil, NewValidationError(op, "recruitment_round_id 不能为空")
	}
	if _, err := e.store.GetRound(ctx, roundID); err != nil {
		return nil, notFoundOr(op, err, "轮次 %s 不存在", roundID)
	}
	metrics, err := e.store.ListMetricsByRound(ctx, roundID)
	if err != nil {
		return nil, NewStoreError(op, "查询评分维度失败", err)
	}
	if metrics == nil {
		metrics = []types.Metric{}
	}
	return metrics, nil
}

func applicantRoundIDs(ars []types.ApplicantRound) []string {
	ids := make([]string, 0, len(ars))
	for _, ar := range ars {
		ids = append(ids, ar.ID)
	}
	return ids
}
