package types

import (
	"encoding/json"
	"time"
)

// ApplicantRoundStatus 表示申请人在某一轮中的状态
type ApplicantRoundStatus string

const (
	// StatusInProgress 评估中
	StatusInProgress ApplicantRoundStatus = "in_progress"
	// StatusMaybe 待定
	StatusMaybe ApplicantRoundStatus = "maybe"
	// StatusAccepted 通过（非最后一轮时会晋级到下一轮）
	StatusAccepted ApplicantRoundStatus = "accepted"
	// StatusRejected 淘汰
	StatusRejected ApplicantRoundStatus = "rejected"
)

// IsValid 检查状态是否为合法枚举值
func (s ApplicantRoundStatus) IsValid() bool {
	switch s {
	case StatusInProgress, StatusMaybe, StatusAccepted, StatusRejected:
		return true
	default:
		return false
	}
}

func (s ApplicantRoundStatus) String() string {
	return string(s)
}

// Role 组织成员角色
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// CanViewResults Owner 和 Admin 可以查看评议汇总结果
func (r Role) CanViewResults() bool {
	return r == RoleOwner || r == RoleAdmin
}

// DelibsSessionStatus 评议会话状态
type DelibsSessionStatus string

const (
	DelibsOpen   DelibsSessionStatus = "open"
	DelibsLocked DelibsSessionStatus = "locked"
)

// CommentSource 评论来源
type CommentSource string

const (
	CommentNamed     CommentSource = "named"
	CommentAnonymous CommentSource = "anonymous"
)

// RecruitmentCycle 招聘周期
type RecruitmentCycle struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	Archived       bool   `json:"archived"`
}

// RecruitmentRound 招聘轮次
type RecruitmentRound struct {
	ID                 string          `json:"id"`
	RecruitmentCycleID string          `json:"recruitment_cycle_id"`
	Name               string          `json:"name"`
	SortOrder          int             `json:"sort_order"`
	ColumnOrder        json.RawMessage `json:"column_order,omitempty"`
}

// Metric 某一轮的评分维度及其权重
type Metric struct {
	ID                 string  `json:"id"`
	RecruitmentRoundID string  `json:"recruitment_round_id"`
	Name               string  `json:"name"`
	Weight             float64 `json:"weight"`
}

// MetricInput 替换评分维度时的输入
type MetricInput struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// Applicant 申请人
type Applicant struct {
	ID                 string          `json:"id"`
	RecruitmentCycleID string          `json:"recruitment_cycle_id"`
	Name               string          `json:"name"`
	Email              string          `json:"email"`
	HeadshotURL        string          `json:"headshot_url"`
	Data               json.RawMessage `json:"data,omitempty"`
}

// ApplicantRound 申请人与轮次的桥接记录，承载状态与加权分缓存
type ApplicantRound struct {
	ID                 string               `json:"id"`
	ApplicantID        string               `json:"applicant_id"`
	RecruitmentRoundID string               `json:"recruitment_round_id"`
	Status             ApplicantRoundStatus `json:"status"`
	WeightedScore      *float64             `json:"weighted_score"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

// Score 单个维度的打分记录
type Score struct {
	ID               string    `json:"id"`
	ApplicantRoundID string    `json:"applicant_round_id"`
	MetricID         string    `json:"metric_id"`
	ScoreValue       float64   `json:"score_value"`
	UserID           string    `json:"user_id"`
	SubmissionID     string    `json:"submission_id,omitempty"` // 历史数据可能为空
	CreatedAt        time.Time `json:"created_at"`
}

// ScoreRow 连接了维度名称与当前权重的打分记录
type ScoreRow struct {
	Score
	MetricName   string  `json:"metric_name"`
	MetricWeight float64 `json:"metric_weight"`
}

// ScoreEntry 一次提交中的单个维度分数
type ScoreEntry struct {
	MetricID   string   `json:"metric_id"`
	ScoreValue float64  `json:"score_value"`
	Weight     *float64 `json:"weight,omitempty"` // 仅用于校对，服务端始终使用维度表中的权重
}

// UserRef 用户的简要信息
type UserRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Submission 一个评分人一次提交的全部维度分数
type Submission struct {
	SubmissionID    string     `json:"submission_id"`
	User            UserRef    `json:"user"`
	Scores          []ScoreRow `json:"scores"`
	WeightedAverage float64    `json:"weighted_average"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Comment 针对桥接记录的评论
type Comment struct {
	ID               string        `json:"id"`
	ApplicantRoundID string        `json:"applicant_round_id"`
	UserID           string        `json:"user_id"`
	CommentText      string        `json:"comment_text"`
	Source           CommentSource `json:"source"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        *time.Time    `json:"updated_at"`
}

// Edited 更新时间晚于创建时间即视为已编辑
func (c Comment) Edited() bool {
	return c.UpdatedAt != nil && c.UpdatedAt.After(c.CreatedAt)
}

// DelibsSession 某一轮的评议会话，每轮一个
type DelibsSession struct {
	ID                 string              `json:"id"`
	RecruitmentRoundID string              `json:"recruitment_round_id"`
	CreatedBy          string              `json:"created_by"`
	Status             DelibsSessionStatus `json:"status"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// DelibsVote 成员对某个桥接记录的投票
type DelibsVote struct {
	ID               string    `json:"id"`
	DelibsSessionID  string    `json:"delibs_session_id"`
	VoterUserID      string    `json:"voter_user_id"`
	ApplicantRoundID string    `json:"applicant_round_id"`
	VoteValue        int       `json:"vote_value"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// PipelineEvent 写入发件箱的领域事件
type PipelineEvent struct {
	AggregateID string         `json:"aggregate_id"`
	EventType   string         `json:"event_type"`
	OccurredAt  time.Time      `json:"occurred_at"`
	Payload     map[string]any `json:"payload"`
}
