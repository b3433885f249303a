package types

import "time"

// SubmitScoresResult 提交评分的返回结果
type SubmitScoresResult struct {
	Scores        []Score `json:"scores"`
	WeightedScore float64 `json:"weighted_score"`
}

// NextRoundInfo 晋级目标轮次的信息
type NextRoundInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
}

// StatusChangeResult 状态变更的返回结果。
// 非 accepted 或最后一轮 accepted 时只有 Updated 有值。
type StatusChangeResult struct {
	Updated       *ApplicantRound `json:"updated"`
	OldRoundID    string          `json:"old_round_id,omitempty"`
	NewRound      *ApplicantRound `json:"new_round,omitempty"`
	NextRoundInfo *NextRoundInfo  `json:"next_round_info,omitempty"`
	IsLastRound   bool            `json:"is_last_round"`
}

// VotingApplicant 评议列表中的申请人
type VotingApplicant struct {
	ApplicantRoundID string               `json:"applicant_round_id"`
	ApplicantID      string               `json:"applicant_id"`
	Name             string               `json:"name"`
	HeadshotURL      string               `json:"headshot_url"`
	Status           ApplicantRoundStatus `json:"status"`
	MyVote           *int                 `json:"my_vote"`
}

// VotingList 成员视角的评议列表
type VotingList struct {
	Applicants []VotingApplicant `json:"applicants"`
	Session    *DelibsSession    `json:"session"`
	VotedCount int               `json:"voted_count"`
	TotalCount int               `json:"total_count"`
}

// DelibResult 单个申请人的评议汇总
type DelibResult struct {
	ApplicantRoundID string               `json:"applicant_round_id"`
	ApplicantID      string               `json:"applicant_id"`
	Name             string               `json:"name"`
	HeadshotURL      string               `json:"headshot_url"`
	Status           ApplicantRoundStatus `json:"status"`
	AvgVote          float64              `json:"avg_vote"`
	VoteCount        int                  `json:"vote_count"`
	RankDense        int                  `json:"rank_dense"`
	IsTied           bool                 `json:"is_tied"`
}

// DelibResults Owner/Admin 视角的评议结果
type DelibResults struct {
	Results      []DelibResult  `json:"results"`
	Session      *DelibsSession `json:"session"`
	TotalMembers int64          `json:"total_members"`
	IsLastRound  bool           `json:"is_last_round"`
}

// CommentView 对外展示的评论，匿名评论不暴露作者
type CommentView struct {
	ID               string        `json:"id"`
	ApplicantRoundID string        `json:"applicant_round_id"`
	Author           *UserRef      `json:"author"`
	CommentText      string        `json:"comment_text"`
	Source           CommentSource `json:"source"`
	Edited           bool          `json:"edited"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        *time.Time    `json:"updated_at"`
}
