package pipeline

import (
	"context"
)

// Scope 访问检查针对的资源类型
type Scope string

const (
	ScopeCycle          Scope = "cycle"
	ScopeRound          Scope = "round"
	ScopeApplicant      Scope = "applicant"
	ScopeApplicantRound Scope = "applicant_round"
)

// Authorize 确认 userID 是资源所属组织的成员。
// 资源不存在时返回 ErrNotFound，与后续操作本身的行为一致。
func (e *Engine) Authorize(ctx context.Context, userID string, scope Scope, id string) error {
	const op = "Authorize"
	if userID == "" || id == "" {
		return NewValidationError(op, "user_id 和资源ID不能为空")
	}
	cycleID, err := e.cycleOf(ctx, op, scope, id)
	if err != nil {
		return err
	}
	cycle, err := e.store.GetCycle(ctx, cycleID)
	if err != nil {
		return notFoundOr(op, err, "招聘周期 %s 不存在", cycleID)
	}
	_, err = e.requireMember(ctx, e.store, op, cycle.OrganizationID, userID)
	return err
}

// cycleOf 沿 桥接记录 -> 轮次 -> 周期 找到资源所在的招聘周期
func (e *Engine) cycleOf(ctx context.Context, op string, scope Scope, id string) (string, error) {
	switch scope {
	case ScopeCycle:
		return id, nil
	case ScopeApplicant:
		applicant, err := e.store.GetApplicant(ctx, id)
		if err != nil {
			return "", notFoundOr(op, err, "申请人 %s 不存在", id)
		}
		return applicant.RecruitmentCycleID, nil
	case ScopeApplicantRound:
		ar, err := e.store.GetApplicantRound(ctx, id)
		if err != nil {
			return "", notFoundOr(op, err, "申请记录 %s 不存在", id)
		}
		id = ar.RecruitmentRoundID
		fallthrough
	case ScopeRound:
		round, err := e.store.GetRound(ctx, id)
		if err != nil {
			return "", notFoundOr(op, err, "轮次 %s 不存在", id)
		}
		return round.RecruitmentCycleID, nil
	default:
		return "", NewValidationError(op, "未知的资源类型 %q", scope)
	}
}
