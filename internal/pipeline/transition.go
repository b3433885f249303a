package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"recruit-pipeline/internal/constants"
	"recruit-pipeline/internal/types"
)

// withLock 持有分布式锁执行 fn。锁被占用时返回 ConflictError，调用方可稍后重试。
func (e *Engine) withLock(ctx context.Context, op, key string, fn func() error) error {
	token, err := e.locker.Acquire(ctx, key, e.settings.AcceptLockTTL)
	if err != nil {
		return NewStoreError(op, "获取分布式锁失败", err)
	}
	if token == "" {
		return NewConflictError(op, "相同记录上的操作正在进行中，请稍后重试")
	}
	defer func() {
		// 使用独立的 context，请求取消后仍然释放锁
		released, rerr := e.locker.Release(context.WithoutCancel(ctx), key, token)
		if rerr != nil || !released {
			e.logger.Warn().Err(rerr).Str("op", op).Str("key", key).Msg("释放分布式锁失败，等待过期")
		}
	}()
	return fn()
}

// isLastRound 当前轮次的 sort_order 不小于周期内最大值即为最后一轮
func isLastRound(ctx context.Context, s Store, op string, round *types.RecruitmentRound) (bool, error) {
	maxOrder, ok, err := s.MaxSortOrder(ctx, round.RecruitmentCycleID)
	if err != nil {
		return false, NewStoreError(op, "查询周期最大 sort_order 失败", err)
	}
	if !ok {
		return true, nil
	}
	return round.SortOrder >= maxOrder, nil
}

// SetStatus 修改申请人在某一轮中的状态。
// accepted 在非最后一轮时会把申请人带入下一轮：已存在的下一轮记录重置为 in_progress，
// 否则新建一条。整个过程在一个事务内完成，并由分布式锁串行化，重复调用不会产生重复记录。
func (e *Engine) SetStatus(ctx context.Context, applicantID, applicantRoundID string, status types.ApplicantRoundStatus) (*types.StatusChangeResult, error) {
	const op = "SetStatus"
	if applicantID == "" || applicantRoundID == "" {
		return nil, NewValidationError(op, "applicant_id 和 applicant_round_id 不能为空")
	}
	if !status.IsValid() {
		return nil, NewValidationError(op, "未知状态 %q", status)
	}

	log := e.logger.With().
		Str("op", op).
		Str("applicant_id", applicantID).
		Str("applicant_round_id", applicantRoundID).
		Str("status", status.String()).
		Logger()

	var (
		result *types.StatusChangeResult
		err    error
	)
	if status == types.StatusAccepted {
		err = e.withLock(ctx, op, fmt.Sprintf(constants.KeyAcceptLock, applicantRoundID), func() error {
			return e.store.Transaction(ctx, func(tx Store) error {
				r, aerr := e.acceptAndAdvance(ctx, tx, applicantID, applicantRoundID)
				if aerr != nil {
					return aerr
				}
				result = r
				return nil
			})
		})
	} else {
		err = e.store.Transaction(ctx, func(tx Store) error {
			ar, err := e.loadOwnedApplicantRound(ctx, tx, op, applicantID, applicantRoundID)
			if err != nil {
				return err
			}
			from := ar.Status
			now := e.now()
			if err := tx.UpdateApplicantRoundStatus(ctx, ar.ID, status, now); err != nil {
				return NewStoreError(op, "更新状态失败", err)
			}
			ar.Status = status
			ar.UpdatedAt = now
			result = &types.StatusChangeResult{Updated: ar}
			return e.appendEvent(ctx, tx, op, ar.ID, EventApplicantStatusChanged, map[string]any{
				"applicant_id":       applicantID,
				"applicant_round_id": ar.ID,
				"from":               from,
				"to":                 status,
			})
		})
	}
	if err != nil {
		log.Warn().Err(err).Msg("状态变更失败")
		return nil, passThrough(op, "事务执行失败", err)
	}

	if result.NewRound != nil {
		log.Info().Str("next_round_id", result.NewRound.RecruitmentRoundID).Msg("申请人已晋级到下一轮")
	} else {
		log.Info().Bool("is_last_round", result.IsLastRound).Msg("状态已更新")
	}
	return result, nil
}

func (e *Engine) loadOwnedApplicantRound(ctx context.Context, tx Store, op, applicantID, applicantRoundID string) (*types.ApplicantRound, error) {
	ar, err := tx.GetApplicantRound(ctx, applicantRoundID)
	if err != nil {
		return nil, notFoundOr(op, err, "桥接记录 %s 不存在", applicantRoundID)
	}
	if ar.ApplicantID != applicantID {
		return nil, NewValidationError(op, "桥接记录 %s 不属于申请人 %s", applicantRoundID, applicantID)
	}
	return ar, nil
}

func (e *Engine) acceptAndAdvance(ctx context.Context, tx Store, applicantID, applicantRoundID string) (*types.StatusChangeResult, error) {
	const op = "SetStatus"

	// 1. 桥接记录 -> 轮次 -> 周期
	ar, err := e.loadOwnedApplicantRound(ctx, tx, op, applicantID, applicantRoundID)
	if err != nil {
		return nil, err
	}
	round, err := tx.GetRound(ctx, ar.RecruitmentRoundID)
	if err != nil {
		return nil, notFoundOr(op, err, "轮次 %s 不存在", ar.RecruitmentRoundID)
	}
	cycle, err := tx.GetCycle(ctx, round.RecruitmentCycleID)
	if err != nil {
		return nil, notFoundOr(op, err, "招聘周期 %s 不存在", round.RecruitmentCycleID)
	}

	// 2. 是否最后一轮
	last, err := isLastRound(ctx, tx, op, round)
	if err != nil {
		return nil, err
	}

	now := e.now()
	markAccepted := func() error {
		if err := tx.UpdateApplicantRoundStatus(ctx, ar.ID, types.StatusAccepted, now); err != nil {
			return NewStoreError(op, "更新当前轮状态失败", err)
		}
		ar.Status = types.StatusAccepted
		ar.UpdatedAt = now
		return nil
	}

	// 3. 最后一轮：只更新状态
	if last {
		if err := markAccepted(); err != nil {
			return nil, err
		}
		if err := e.appendEvent(ctx, tx, op, ar.ID, EventApplicantAccepted, map[string]any{
			"applicant_id":       applicantID,
			"applicant_round_id": ar.ID,
			"cycle_id":           cycle.ID,
		}); err != nil {
			return nil, err
		}
		return &types.StatusChangeResult{Updated: ar, IsLastRound: true}, nil
	}

	// 4. 下一轮：sort_order 严格大于当前轮的最小值
	next, err := tx.NextRound(ctx, cycle.ID, round.SortOrder)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, NewNoNextRoundError(op, "轮次 %s 之后没有可晋级的轮次", round.ID)
		}
		return nil, NewStoreError(op, "查询下一轮失败", err)
	}
	if err := markAccepted(); err != nil {
		return nil, err
	}

	newRound, err := tx.FindApplicantRound(ctx, applicantID, next.ID)
	switch {
	case err == nil:
		// 已经在下一轮中：重置之前的 maybe/rejected 决定
		if err := tx.UpdateApplicantRoundStatus(ctx, newRound.ID, types.StatusInProgress, now); err != nil {
			return nil, NewStoreError(op, "重置下一轮状态失败", err)
		}
		newRound.Status = types.StatusInProgress
		newRound.UpdatedAt = now
	case errors.Is(err, ErrRecordNotFound):
		newRound = &types.ApplicantRound{
			ID:                 e.newID(),
			ApplicantID:        applicantID,
			RecruitmentRoundID: next.ID,
			Status:             types.StatusInProgress,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := tx.CreateApplicantRound(ctx, newRound); err != nil {
			return nil, NewStoreError(op, "创建下一轮记录失败", err)
		}
	default:
		return nil, NewStoreError(op, "查询下一轮记录失败", err)
	}

	if err := e.appendEvent(ctx, tx, op, ar.ID, EventApplicantAdvanced, map[string]any{
		"applicant_id":           applicantID,
		"old_round_id":           round.ID,
		"new_round_id":           next.ID,
		"new_applicant_round_id": newRound.ID,
	}); err != nil {
		return nil, err
	}

	return &types.StatusChangeResult{
		Updated:    ar,
		OldRoundID: round.ID,
		NewRound:   newRound,
		NextRoundInfo: &types.NextRoundInfo{
			ID:        next.ID,
			Name:      next.Name,
			SortOrder: next.SortOrder,
		},
	}, nil
}

// DeleteApplicant 删除申请人及其全部桥接记录、评分、评论与投票
func (e *Engine) DeleteApplicant(ctx context.Context, applicantID string) error {
	const op = "DeleteApplicant"
	if applicantID == "" {
		return NewValidationError(op, "applicant_id 不能为空")
	}
	err := e.store.Transaction(ctx, func(tx Store) error {
		if _, err := tx.GetApplicant(ctx, applicantID); err != nil {
			return notFoundOr(op, err, "申请人 %s 不存在", applicantID)
		}
		ars, err := tx.ListApplicantRoundsByApplicant(ctx, applicantID)
		if err != nil {
			return NewStoreError(op, "查询申请人的桥接记录失败", err)
		}
		if ids := applicantRoundIDs(ars); len(ids) > 0 {
			if err := tx.DeleteScoresByApplicantRounds(ctx, ids); err != nil {
				return NewStoreError(op, "删除评分失败", err)
			}
			if err := tx.DeleteCommentsByApplicantRounds(ctx, ids); err != nil {
				return NewStoreError(op, "删除评论失败", err)
			}
			if err := tx.DeleteVotesByApplicantRounds(ctx, ids); err != nil {
				return NewStoreError(op, "删除投票失败", err)
			}
			if err := tx.DeleteApplicantRounds(ctx, ids); err != nil {
				return NewStoreError(op, "删除桥接记录失败", err)
			}
		}
		if err := tx.DeleteApplicant(ctx, applicantID); err != nil {
			return NewStoreError(op, "删除申请人失败", err)
		}
		return nil
	})
	if err != nil {
		return passThrough(op, "事务执行失败", err)
	}
	e.logger.Info().Str("op", op).Str("applicant_id", applicantID).Msg("申请人已删除")
	return nil
}

// DeleteRound 删除轮次，并把同一周期内之后的轮次 sort_order 逐条减 1。
// 任一步失败整个事务回滚。
func (e *Engine) DeleteRound(ctx context.Context, roundID string) error {
	const op = "DeleteRound"
	if roundID == "" {
		return NewValidationError(op, "recruitment_round_id 不能为空")
	}
	round, err := e.store.GetRound(ctx, roundID)
	if err != nil {
		return notFoundOr(op, err, "轮次 %s 不存在", roundID)
	}
	log := e.logger.With().Str("op", op).Str("round_id", roundID).Str("cycle_id", round.RecruitmentCycleID).Logger()

	var shifted int
	err = e.withLock(ctx, op, fmt.Sprintf(constants.KeyRoundLock, round.RecruitmentCycleID), func() error {
		return e.store.Transaction(ctx, func(tx Store) error {
			// 加锁后重新读取，sort_order 可能已被并发删除调整
			round, err := tx.GetRound(ctx, roundID)
			if err != nil {
				return notFoundOr(op, err, "轮次 %s 不存在", roundID)
			}
			n, err := tx.CountApplicantRoundsByRound(ctx, roundID)
			if err != nil {
				return NewStoreError(op, "统计本轮申请人失败", err)
			}
			readings, err := tx.CountAnonymousReadings(ctx, roundID)
			if err != nil {
				return NewStoreError(op, "统计匿名阅读记录失败", err)
			}
			if n > 0 || readings > 0 {
				return NewConflictError(op, "请先从本轮移除申请人（%d）和匿名阅读记录（%d）", n, readings)
			}

			if err := tx.DeleteMetricsByRound(ctx, roundID); err != nil {
				return NewStoreError(op, "删除评分维度失败", err)
			}
			if err := tx.DeleteSessionByRound(ctx, roundID); err != nil {
				return NewStoreError(op, "删除评议会话失败", err)
			}
			if err := tx.DeleteRound(ctx, roundID); err != nil {
				return NewStoreError(op, "删除轮次失败", err)
			}

			later, err := tx.ListRoundsAfter(ctx, round.RecruitmentCycleID, round.SortOrder)
			if err != nil {
				return NewStoreError(op, "查询后续轮次失败", err)
			}
			for _, r := range later {
				if err := tx.UpdateRoundSortOrder(ctx, r.ID, r.SortOrder-1); err != nil {
					log.Error().Err(err).Str("shift_round_id", r.ID).Int("sort_order", r.SortOrder).Msg("调整轮次顺序失败")
					return NewStoreError(op, fmt.Sprintf("调整轮次 %s 的顺序失败", r.ID), err)
				}
			}
			shifted = len(later)

			return e.appendEvent(ctx, tx, op, roundID, EventRoundDeleted, map[string]any{
				"round_id":   roundID,
				"cycle_id":   round.RecruitmentCycleID,
				"sort_order": round.SortOrder,
			})
		})
	})
	if err != nil {
		log.Warn().Err(err).Msg("删除轮次失败")
		return passThrough(op, "事务执行失败", err)
	}
	log.Info().Int("shifted", shifted).Msg("轮次已删除")
	return nil
}

// CreateRound 在周期末尾追加一个轮次
func (e *Engine) CreateRound(ctx context.Context, cycleID, name string) (*types.RecruitmentRound, error) {
	const op = "CreateRound"
	name = strings.TrimSpace(name)
	if cycleID == "" || name == "" {
		return nil, NewValidationError(op, "recruitment_cycle_id 和 name 不能为空")
	}
	var round *types.RecruitmentRound
	err := e.withLock(ctx, op, fmt.Sprintf(constants.KeyRoundLock, cycleID), func() error {
		return e.store.Transaction(ctx, func(tx Store) error {
			cycle, err := tx.GetCycle(ctx, cycleID)
			if err != nil {
				return notFoundOr(op, err, "招聘周期 %s 不存在", cycleID)
			}
			if cycle.Archived {
				return NewConflictError(op, "招聘周期已归档，请先取消归档再添加轮次")
			}
			maxOrder, ok, err := tx.MaxSortOrder(ctx, cycleID)
			if err != nil {
				return NewStoreError(op, "查询周期最大 sort_order 失败", err)
			}
			sortOrder := 0
			if ok {
				sortOrder = maxOrder + 1
			}
			round = &types.RecruitmentRound{
				ID:                 e.newID(),
				RecruitmentCycleID: cycleID,
				Name:               name,
				SortOrder:          sortOrder,
			}
			if err := tx.CreateRound(ctx, round); err != nil {
				return NewStoreError(op, "创建轮次失败", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, passThrough(op, "事务执行失败", err)
	}
	return round, nil
}

// DeleteCycle 删除已归档且没有轮次和申请人的周期
func (e *Engine) DeleteCycle(ctx context.Context, cycleID string) error {
	const op = "DeleteCycle"
	if cycleID == "" {
		return NewValidationError(op, "recruitment_cycle_id 不能为空")
	}
	err := e.store.Transaction(ctx, func(tx Store) error {
		cycle, err := tx.GetCycle(ctx, cycleID)
		if err != nil {
			return notFoundOr(op, err, "招聘周期 %s 不存在", cycleID)
		}
		if !cycle.Archived {
			return NewConflictError(op, "请先归档招聘周期")
		}
		rounds, err := tx.CountRounds(ctx, cycleID)
		if err != nil {
			return NewStoreError(op, "统计轮次失败", err)
		}
		if rounds > 0 {
			return NewConflictError(op, "请先删除周期内的全部轮次（%d）", rounds)
		}
		applicants, err := tx.CountApplicantsInCycle(ctx, cycleID)
		if err != nil {
			return NewStoreError(op, "统计申请人失败", err)
		}
		if applicants > 0 {
			return NewConflictError(op, "请先删除周期内的全部申请人（%d）", applicants)
		}
		if err := tx.DeleteCycle(ctx, cycleID); err != nil {
			return NewStoreError(op, "删除招聘周期失败", err)
		}
		return nil
	})
	if err != nil {
		return passThrough(op, "事务执行失败", err)
	}
	e.logger.Info().Str("op", op).Str("cycle_id", cycleID).Msg("招聘周期已删除")
	return nil
}
