package pipeline

import (
	"context"

	"recruit-pipeline/internal/types"
)

// 领域事件类型，与状态变更在同一事务中写入发件箱
const (
	EventApplicantAdvanced      = "applicant.advanced"
	EventApplicantAccepted      = "applicant.accepted"
	EventApplicantStatusChanged = "applicant.status_changed"
	EventScoresSubmitted        = "scores.submitted"
	EventRoundDeleted           = "round.deleted"
	EventDelibsLocked           = "delibs.locked"
)

func (e *Engine) appendEvent(ctx context.Context, tx Store, op, aggregateID, eventType string, payload map[string]any) error {
	event := types.PipelineEvent{
		AggregateID: aggregateID,
		EventType:   eventType,
		OccurredAt:  e.now(),
		Payload:     payload,
	}
	if err := tx.AppendEvent(ctx, event); err != nil {
		return NewStoreError(op, "写入发件箱失败", err)
	}
	return nil
}
