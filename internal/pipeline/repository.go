package pipeline

import (
	"context"
	"time"

	"recruit-pipeline/internal/types"
)

// 仓储接口：每种查询形状一个方法，返回强类型结果。
// 查询单条记录未命中时必须返回 ErrRecordNotFound。

// CycleRepository 招聘周期与轮次
type CycleRepository interface {
	GetCycle(ctx context.Context, cycleID string) (*types.RecruitmentCycle, error)
	DeleteCycle(ctx context.Context, cycleID string) error
	CountApplicantsInCycle(ctx context.Context, cycleID string) (int64, error)

	GetRound(ctx context.Context, roundID string) (*types.RecruitmentRound, error)
	CreateRound(ctx context.Context, round *types.RecruitmentRound) error
	DeleteRound(ctx context.Context, roundID string) error
	CountRounds(ctx context.Context, cycleID string) (int64, error)
	// MaxSortOrder 周期内最大的 sort_order，周期没有轮次时 ok=false
	MaxSortOrder(ctx context.Context, cycleID string) (maxOrder int, ok bool, err error)
	// NextRound sort_order 严格大于 afterSortOrder 的最小轮次，按 sort_order 升序取第一条
	NextRound(ctx context.Context, cycleID string, afterSortOrder int) (*types.RecruitmentRound, error)
	// ListRoundsAfter sort_order 严格大于 sortOrder 的全部轮次，升序
	ListRoundsAfter(ctx context.Context, cycleID string, sortOrder int) ([]types.RecruitmentRound, error)
	UpdateRoundSortOrder(ctx context.Context, roundID string, sortOrder int) error
	CountAnonymousReadings(ctx context.Context, roundID string) (int64, error)
}

// ApplicantRepository 申请人
type ApplicantRepository interface {
	GetApplicant(ctx context.Context, applicantID string) (*types.Applicant, error)
	ListApplicantsByIDs(ctx context.Context, ids []string) ([]types.Applicant, error)
	DeleteApplicant(ctx context.Context, applicantID string) error
}

// ApplicantRoundRepository 桥接记录
type ApplicantRoundRepository interface {
	GetApplicantRound(ctx context.Context, id string) (*types.ApplicantRound, error)
	FindApplicantRound(ctx context.Context, applicantID, roundID string) (*types.ApplicantRound, error)
	ListApplicantRoundsByRound(ctx context.Context, roundID string) ([]types.ApplicantRound, error)
	ListApplicantRoundsByApplicant(ctx context.Context, applicantID string) ([]types.ApplicantRound, error)
	CountApplicantRoundsByRound(ctx context.Context, roundID string) (int64, error)
	CreateApplicantRound(ctx context.Context, ar *types.ApplicantRound) error
	UpdateApplicantRoundStatus(ctx context.Context, id string, status types.ApplicantRoundStatus, at time.Time) error
	SetWeightedScore(ctx context.Context, id string, score *float64) error
	DeleteApplicantRounds(ctx context.Context, ids []string) error
}

// MetricRepository 评分维度
type MetricRepository interface {
	ListMetricsByRound(ctx context.Context, roundID string) ([]types.Metric, error)
	DeleteMetricsByRound(ctx context.Context, roundID string) error
	CreateMetrics(ctx context.Context, metrics []types.Metric) error
}

// ScoreRepository 打分记录
type ScoreRepository interface {
	CreateScores(ctx context.Context, scores []types.Score) error
	GetScore(ctx context.Context, scoreID string) (*types.Score, error)
	UpdateScoreValue(ctx context.Context, scoreID string, value float64) error
	// ListScoreRows 返回桥接记录下的全部打分，并连接维度名称与当前权重
	ListScoreRows(ctx context.Context, applicantRoundID string) ([]types.ScoreRow, error)
	ListScoreRowsBySubmission(ctx context.Context, submissionID string) ([]types.ScoreRow, error)
	// ListLegacyScoreRows 历史数据没有 submission_id，用同一评分人 + 同一创建时间近似一次提交
	ListLegacyScoreRows(ctx context.Context, applicantRoundID, userID string, createdAt time.Time) ([]types.ScoreRow, error)
	ScoresExist(ctx context.Context, applicantRoundIDs []string) (bool, error)
	DeleteScoresBySubmission(ctx context.Context, submissionID string) error
	DeleteScoresByApplicantRounds(ctx context.Context, applicantRoundIDs []string) error
}

// CommentRepository 评论
type CommentRepository interface {
	CreateComment(ctx context.Context, c *types.Comment) error
	GetComment(ctx context.Context, commentID string) (*types.Comment, error)
	UpdateCommentText(ctx context.Context, commentID, text string, at time.Time) error
	DeleteComment(ctx context.Context, commentID string) error
	ListComments(ctx context.Context, applicantRoundID string) ([]types.Comment, error)
	DeleteCommentsByApplicantRounds(ctx context.Context, applicantRoundIDs []string) error
}

// DelibsRepository 评议会话与投票
type DelibsRepository interface {
	FindSession(ctx context.Context, roundID string) (*types.DelibsSession, error)
	// CreateSessionIfAbsent 依赖 recruitment_round_id 唯一索引，冲突时不报错
	CreateSessionIfAbsent(ctx context.Context, s *types.DelibsSession) error
	UpdateSessionStatus(ctx context.Context, sessionID string, status types.DelibsSessionStatus, at time.Time) error
	DeleteSessionByRound(ctx context.Context, roundID string) error
	UpsertVote(ctx context.Context, v *types.DelibsVote) error
	ListVotes(ctx context.Context, sessionID string) ([]types.DelibsVote, error)
	DeleteVotesByApplicantRounds(ctx context.Context, applicantRoundIDs []string) error
}

// MembershipRepository 组织成员（只读，由成员管理模块维护）
type MembershipRepository interface {
	GetRole(ctx context.Context, organizationID, userID string) (types.Role, error)
	CountMembers(ctx context.Context, organizationID string) (int64, error)
	GetUserNames(ctx context.Context, userIDs []string) (map[string]string, error)
}

// EventRepository 发件箱
type EventRepository interface {
	AppendEvent(ctx context.Context, event types.PipelineEvent) error
}

// Store 聚合全部仓储，并提供事务原语
type Store interface {
	CycleRepository
	ApplicantRepository
	ApplicantRoundRepository
	MetricRepository
	ScoreRepository
	CommentRepository
	DelibsRepository
	MembershipRepository
	EventRepository

	// Transaction 在同一事务中执行 fn；fn 返回错误时回滚
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

// Locker 分布式锁，用于串行化同一桥接记录上的多步操作
type Locker interface {
	// Acquire 获取锁，返回持有者标识；锁被占用时返回空字符串
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, error)
	Release(ctx context.Context, key, token string) (bool, error)
}

// HeadshotResolver 将存储中的头像地址转换为可访问的 URL
type HeadshotResolver interface {
	ResolveHeadshot(ctx context.Context, raw string) (string, error)
}
