package pipeline

import (
	"context"
	"errors"
	"sort"

	"recruit-pipeline/internal/types"
)

// roundContext 读取轮次及其所属周期
func (e *Engine) roundContext(ctx context.Context, s Store, op, roundID string) (*types.RecruitmentRound, *types.RecruitmentCycle, error) {
	round, err := s.GetRound(ctx, roundID)
	if err != nil {
		return nil, nil, notFoundOr(op, err, "轮次 %s 不存在", roundID)
	}
	cycle, err := s.GetCycle(ctx, round.RecruitmentCycleID)
	if err != nil {
		return nil, nil, notFoundOr(op, err, "招聘周期 %s 不存在", round.RecruitmentCycleID)
	}
	return round, cycle, nil
}

// requireMember 非组织成员一律拒绝
func (e *Engine) requireMember(ctx context.Context, s Store, op, organizationID, userID string) (types.Role, error) {
	role, err := s.GetRole(ctx, organizationID, userID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return "", NewAuthorizationError(op, "用户不是该组织成员")
		}
		return "", NewStoreError(op, "查询成员角色失败", err)
	}
	return role, nil
}

func (e *Engine) requireManager(ctx context.Context, s Store, op, organizationID, userID string) (types.Role, error) {
	role, err := e.requireMember(ctx, s, op, organizationID, userID)
	if err != nil {
		return "", err
	}
	if !role.CanViewResults() {
		return "", NewAuthorizationError(op, "只有 Owner 或 Admin 可以执行该操作")
	}
	return role, nil
}

// GetOrCreateSession 返回本轮的评议会话，不存在时以 open 状态创建。
// 并发首次访问依赖 recruitment_round_id 唯一索引，插入冲突后重新读取。
func (e *Engine) GetOrCreateSession(ctx context.Context, roundID, userID string) (*types.DelibsSession, error) {
	const op = "GetOrCreateSession"
	if roundID == "" || userID == "" {
		return nil, NewValidationError(op, "recruitment_round_id 和 user_id 不能为空")
	}
	if _, err := e.store.GetRound(ctx, roundID); err != nil {
		return nil, notFoundOr(op, err, "轮次 %s 不存在", roundID)
	}
	return e.getOrCreateSession(ctx, e.store, op, roundID, userID)
}

func (e *Engine) getOrCreateSession(ctx context.Context, s Store, op, roundID, userID string) (*types.DelibsSession, error) {
	session, err := s.FindSession(ctx, roundID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, ErrRecordNotFound) {
		return nil, NewStoreError(op, "查询评议会话失败", err)
	}

	now := e.now()
	if err := s.CreateSessionIfAbsent(ctx, &types.DelibsSession{
		ID:                 e.newID(),
		RecruitmentRoundID: roundID,
		CreatedBy:          userID,
		Status:             types.DelibsOpen,
		CreatedAt:          now,
		UpdatedAt:          now,
	}); err != nil {
		return nil, NewStoreError(op, "创建评议会话失败", err)
	}
	session, err = s.FindSession(ctx, roundID)
	if err != nil {
		return nil, NewStoreError(op, "读取评议会话失败", err)
	}
	e.logger.Debug().Str("op", op).Str("round_id", roundID).Str("session_id", session.ID).Msg("评议会话已就绪")
	return session, nil
}

// votingRows 读取本轮全部桥接记录与申请人信息
func (e *Engine) votingRows(ctx context.Context, op, roundID string) ([]types.ApplicantRound, map[string]types.Applicant, error) {
	ars, err := e.store.ListApplicantRoundsByRound(ctx, roundID)
	if err != nil {
		return nil, nil, NewStoreError(op, "查询本轮申请人失败", err)
	}
	ids := make([]string, 0, len(ars))
	for _, ar := range ars {
		ids = append(ids, ar.ApplicantID)
	}
	applicants := make(map[string]types.Applicant, len(ids))
	if len(ids) == 0 {
		return ars, applicants, nil
	}
	list, err := e.store.ListApplicantsByIDs(ctx, ids)
	if err != nil {
		return nil, nil, NewStoreError(op, "查询申请人信息失败", err)
	}
	for _, a := range list {
		applicants[a.ID] = a
	}
	return ars, applicants, nil
}

func (e *Engine) headshotURL(ctx context.Context, raw string) string {
	if raw == "" {
		return ""
	}
	url, err := e.headshots.ResolveHeadshot(ctx, raw)
	if err != nil {
		e.logger.Warn().Err(err).Str("headshot", raw).Msg("解析头像地址失败，返回原始值")
		return raw
	}
	return url
}

// ListApplicantsForVoting 成员视角的投票列表：每个申请人附带当前用户自己的投票，按姓名排序
func (e *Engine) ListApplicantsForVoting(ctx context.Context, roundID, userID string) (*types.VotingList, error) {
	const op = "ListApplicantsForVoting"
	if roundID == "" || userID == "" {
		return nil, NewValidationError(op, "recruitment_round_id 和 user_id 不能为空")
	}
	_, cycle, err := e.roundContext(ctx, e.store, op, roundID)
	if err != nil {
		return nil, err
	}
	if _, err := e.requireMember(ctx, e.store, op, cycle.OrganizationID, userID); err != nil {
		return nil, err
	}
	session, err := e.getOrCreateSession(ctx, e.store, op, roundID, userID)
	if err != nil {
		return nil, err
	}
	ars, applicants, err := e.votingRows(ctx, op, roundID)
	if err != nil {
		return nil, err
	}
	votes, err := e.store.ListVotes(ctx, session.ID)
	if err != nil {
		return nil, NewStoreError(op, "查询投票失败", err)
	}
	mine := make(map[string]int)
	for _, v := range votes {
		if v.VoterUserID == userID {
			mine[v.ApplicantRoundID] = v.VoteValue
		}
	}

	list := &types.VotingList{
		Applicants: make([]types.VotingApplicant, 0, len(ars)),
		Session:    session,
		TotalCount: len(ars),
	}
	for _, ar := range ars {
		a := applicants[ar.ApplicantID]
		item := types.VotingApplicant{
			ApplicantRoundID: ar.ID,
			ApplicantID:      ar.ApplicantID,
			Name:             a.Name,
			HeadshotURL:      e.headshotURL(ctx, a.HeadshotURL),
			Status:           ar.Status,
		}
		if v, ok := mine[ar.ID]; ok {
			vote := v
			item.MyVote = &vote
			list.VotedCount++
		}
		list.Applicants = append(list.Applicants, item)
	}
	sort.SliceStable(list.Applicants, func(i, j int) bool {
		if list.Applicants[i].Name != list.Applicants[j].Name {
			return list.Applicants[i].Name < list.Applicants[j].Name
		}
		return list.Applicants[i].ApplicantRoundID < list.Applicants[j].ApplicantRoundID
	})
	return list, nil
}

// CastVote 记录或覆盖当前用户对某个申请人的投票，会话锁定后拒绝
func (e *Engine) CastVote(ctx context.Context, roundID, userID, applicantRoundID string, value int) (*types.DelibsVote, error) {
	const op = "CastVote"
	if roundID == "" || userID == "" || applicantRoundID == "" {
		return nil, NewValidationError(op, "recruitment_round_id、user_id 和 applicant_round_id 不能为空")
	}
	if value < e.settings.MinVote || value > e.settings.MaxVote {
		return nil, NewValidationError(op, "投票值必须在 %d 到 %d 之间", e.settings.MinVote, e.settings.MaxVote)
	}
	_, cycle, err := e.roundContext(ctx, e.store, op, roundID)
	if err != nil {
		return nil, err
	}
	if _, err := e.requireMember(ctx, e.store, op, cycle.OrganizationID, userID); err != nil {
		return nil, err
	}
	session, err := e.getOrCreateSession(ctx, e.store, op, roundID, userID)
	if err != nil {
		return nil, err
	}
	if session.Status == types.DelibsLocked {
		return nil, NewConflictError(op, "评议会话已锁定，请先解锁再投票")
	}
	ar, err := e.store.GetApplicantRound(ctx, applicantRoundID)
	if err != nil {
		return nil, notFoundOr(op, err, "桥接记录 %s 不存在", applicantRoundID)
	}
	if ar.RecruitmentRoundID != roundID {
		return nil, NewValidationError(op, "桥接记录 %s 不属于轮次 %s", applicantRoundID, roundID)
	}

	vote := &types.DelibsVote{
		ID:               e.newID(),
		DelibsSessionID:  session.ID,
		VoterUserID:      userID,
		ApplicantRoundID: applicantRoundID,
		VoteValue:        value,
		UpdatedAt:        e.now(),
	}
	if err := e.store.UpsertVote(ctx, vote); err != nil {
		return nil, NewStoreError(op, "保存投票失败", err)
	}
	return vote, nil
}

// ComputeResults 汇总投票并计算密集排名，只有 Owner/Admin 可以查看
func (e *Engine) ComputeResults(ctx context.Context, roundID, userID string) (*types.DelibResults, error) {
	const op = "ComputeResults"
	if roundID == "" || userID == "" {
		return nil, NewValidationError(op, "recruitment_round_id 和 user_id 不能为空")
	}
	round, cycle, err := e.roundContext(ctx, e.store, op, roundID)
	if err != nil {
		return nil, err
	}
	if _, err := e.requireManager(ctx, e.store, op, cycle.OrganizationID, userID); err != nil {
		return nil, err
	}
	session, err := e.getOrCreateSession(ctx, e.store, op, roundID, userID)
	if err != nil {
		return nil, err
	}
	ars, applicants, err := e.votingRows(ctx, op, roundID)
	if err != nil {
		return nil, err
	}
	votes, err := e.store.ListVotes(ctx, session.ID)
	if err != nil {
		return nil, NewStoreError(op, "查询投票失败", err)
	}
	tally := tallyVotes(votes)

	results := make([]types.DelibResult, 0, len(ars))
	for _, ar := range ars {
		a := applicants[ar.ApplicantID]
		t := tally[ar.ID]
		results = append(results, types.DelibResult{
			ApplicantRoundID: ar.ID,
			ApplicantID:      ar.ApplicantID,
			Name:             a.Name,
			HeadshotURL:      e.headshotURL(ctx, a.HeadshotURL),
			Status:           ar.Status,
			AvgVote:          t.avg(),
			VoteCount:        t.count,
		})
	}
	DenseRank(results)

	members, err := e.store.CountMembers(ctx, cycle.OrganizationID)
	if err != nil {
		return nil, NewStoreError(op, "统计组织成员失败", err)
	}
	last, err := isLastRound(ctx, e.store, op, round)
	if err != nil {
		return nil, err
	}
	return &types.DelibResults{
		Results:      results,
		Session:      session,
		TotalMembers: members,
		IsLastRound:  last,
	}, nil
}

// LockSession 锁定评议会话，锁定后不再接受投票
func (e *Engine) LockSession(ctx context.Context, roundID, userID string) (*types.DelibsSession, error) {
	return e.setSessionStatus(ctx, "LockSession", roundID, userID, types.DelibsLocked)
}

// UnlockSession 重新开放评议会话
func (e *Engine) UnlockSession(ctx context.Context, roundID, userID string) (*types.DelibsSession, error) {
	return e.setSessionStatus(ctx, "UnlockSession", roundID, userID, types.DelibsOpen)
}

func (e *Engine) setSessionStatus(ctx context.Context, op, roundID, userID string, status types.DelibsSessionStatus) (*types.DelibsSession, error) {
	if roundID == "" || userID == "" {
		return nil, NewValidationError(op, "recruitment_round_id 和 user_id 不能为空")
	}
	var session *types.DelibsSession
	err := e.store.Transaction(ctx, func(tx Store) error {
		_, cycle, err := e.roundContext(ctx, tx, op, roundID)
		if err != nil {
			return err
		}
		if _, err := e.requireManager(ctx, tx, op, cycle.OrganizationID, userID); err != nil {
			return err
		}
		session, err = e.getOrCreateSession(ctx, tx, op, roundID, userID)
		if err != nil {
			return err
		}
		// 目标状态与当前一致时不做任何修改
		if session.Status == status {
			return nil
		}
		now := e.now()
		if err := tx.UpdateSessionStatus(ctx, session.ID, status, now); err != nil {
			return NewStoreError(op, "更新评议会话状态失败", err)
		}
		session.Status = status
		session.UpdatedAt = now
		if status != types.DelibsLocked {
			return nil
		}
		return e.appendEvent(ctx, tx, op, session.ID, EventDelibsLocked, map[string]any{
			"round_id":   roundID,
			"session_id": session.ID,
			"locked_by":  userID,
		})
	})
	if err != nil {
		return nil, passThrough(op, "事务执行失败", err)
	}
	e.logger.Info().Str("op", op).Str("round_id", roundID).Str("status", string(status)).Msg("评议会话状态已更新")
	return session, nil
}
