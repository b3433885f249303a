package handler

import (
	"context"

	"recruit-pipeline/internal/pipeline"
	"recruit-pipeline/internal/types"
)

// PipelineService handler 依赖的招聘流程操作，由 pipeline.Engine 实现
type PipelineService interface {
	Authorize(ctx context.Context, userID string, scope pipeline.Scope, id string) error

	ListMetrics(ctx context.Context, roundID string) ([]types.Metric, error)
	ReplaceMetrics(ctx context.Context, roundID string, metrics []types.MetricInput) ([]types.Metric, error)

	SubmitScores(ctx context.Context, applicantID, roundID, userID string, entries []types.ScoreEntry) (*types.SubmitScoresResult, error)
	UpdateScore(ctx context.Context, scoreID string, value float64, userID string) (float64, error)
	FetchScores(ctx context.Context, applicantRoundID string) ([]types.Submission, error)
	DeleteSubmission(ctx context.Context, submissionID, userID string) error
	DeleteAllScoresForRound(ctx context.Context, roundID string) (int, error)

	SetStatus(ctx context.Context, applicantID, applicantRoundID string, status types.ApplicantRoundStatus) (*types.StatusChangeResult, error)
	DeleteApplicant(ctx context.Context, applicantID string) error
	DeleteRound(ctx context.Context, roundID string) error
	CreateRound(ctx context.Context, cycleID, name string) (*types.RecruitmentRound, error)
	DeleteCycle(ctx context.Context, cycleID string) error

	GetOrCreateSession(ctx context.Context, roundID, userID string) (*types.DelibsSession, error)
	ListApplicantsForVoting(ctx context.Context, roundID, userID string) (*types.VotingList, error)
	CastVote(ctx context.Context, roundID, userID, applicantRoundID string, value int) (*types.DelibsVote, error)
	ComputeResults(ctx context.Context, roundID, userID string) (*types.DelibResults, error)
	LockSession(ctx context.Context, roundID, userID string) (*types.DelibsSession, error)
	UnlockSession(ctx context.Context, roundID, userID string) (*types.DelibsSession, error)

	AddComment(ctx context.Context, applicantRoundID, userID, text string, source types.CommentSource) (*types.CommentView, error)
	ListComments(ctx context.Context, applicantRoundID string) ([]types.CommentView, error)
	EditComment(ctx context.Context, commentID, userID, text string) (*types.CommentView, error)
	DeleteComment(ctx context.Context, commentID, userID string) error
}

var _ PipelineService = (*pipeline.Engine)(nil)
