package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"recruit-pipeline/internal/types"
)

// RecruitmentCycle 招聘周期表
type RecruitmentCycle struct {
	ID             string    `gorm:"type:char(36);primaryKey"`
	OrganizationID string    `gorm:"type:char(36);not null;index:idx_cycles_org"`
	Name           string    `gorm:"type:varchar(255);not null"`
	Archived       bool      `gorm:"not null;default:false"`
	CreatedAt      time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt      time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (RecruitmentCycle) TableName() string {
	return "recruitment_cycles"
}

// RecruitmentRound 招聘轮次表，sort_order 在周期内从 0 开始连续
type RecruitmentRound struct {
	ID                 string         `gorm:"type:char(36);primaryKey"`
	RecruitmentCycleID string         `gorm:"type:char(36);not null;index:idx_rounds_cycle_sort,priority:1"`
	Name               string         `gorm:"type:varchar(255);not null"`
	SortOrder          int            `gorm:"not null;index:idx_rounds_cycle_sort,priority:2"`
	ColumnOrder        datatypes.JSON `gorm:"type:json"` // 看板列顺序，由前端维护
	CreatedAt          time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt          time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (RecruitmentRound) TableName() string {
	return "recruitment_rounds"
}

// Metric 评分维度表
type Metric struct {
	ID                 string    `gorm:"type:char(36);primaryKey"`
	RecruitmentRoundID string    `gorm:"type:char(36);not null;index:idx_metrics_round"`
	Name               string    `gorm:"type:varchar(255);not null"`
	Weight             float64   `gorm:"not null"`
	Position           int       `gorm:"not null;default:0"` // 保持输入顺序
	CreatedAt          time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (Metric) TableName() string {
	return "metrics"
}

// Applicant 申请人表
type Applicant struct {
	ID                 string         `gorm:"type:char(36);primaryKey"`
	RecruitmentCycleID string         `gorm:"type:char(36);not null;index:idx_applicants_cycle"`
	Name               string         `gorm:"type:varchar(255);not null"`
	Email              string         `gorm:"type:varchar(255)"`
	HeadshotURL        string         `gorm:"type:varchar(1024)"` // 对象键或完整 URL
	Data               datatypes.JSON `gorm:"type:json"`          // 表单原始数据
	CreatedAt          time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt          time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Applicant) TableName() string {
	return "applicants"
}

// ApplicantRound 申请人-轮次桥接表
type ApplicantRound struct {
	ID                 string    `gorm:"type:char(36);primaryKey"`
	ApplicantID        string    `gorm:"type:char(36);not null;uniqueIndex:idx_ar_applicant_round,priority:1"`
	RecruitmentRoundID string    `gorm:"type:char(36);not null;uniqueIndex:idx_ar_applicant_round,priority:2;index:idx_ar_round"`
	Status             string    `gorm:"type:varchar(20);not null;default:'in_progress'"`
	WeightedScore      *float64  `gorm:"type:double"` // 加权分缓存，没有评分时为 NULL
	CreatedAt          time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt          time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime:false"`
}

func (ApplicantRound) TableName() string {
	return "applicant_rounds"
}

// Score 打分表
type Score struct {
	ID               string    `gorm:"type:char(36);primaryKey"`
	ApplicantRoundID string    `gorm:"type:char(36);not null;index:idx_scores_ar"`
	MetricID         string    `gorm:"type:char(36);not null;index:idx_scores_metric"`
	ScoreValue       float64   `gorm:"not null"`
	UserID           string    `gorm:"type:char(36);not null"`
	SubmissionID     *string   `gorm:"type:char(36);index:idx_scores_submission"` // 历史数据为 NULL
	CreatedAt        time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (Score) TableName() string {
	return "scores"
}

// Comment 评论表
type Comment struct {
	ID               string     `gorm:"type:char(36);primaryKey"`
	ApplicantRoundID string     `gorm:"type:char(36);not null;index:idx_comments_ar"`
	UserID           string     `gorm:"type:char(36);not null"`
	CommentText      string     `gorm:"type:text;not null"`
	Source           string     `gorm:"type:varchar(20);not null;default:'named'"`
	CreatedAt        time.Time  `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt        *time.Time `gorm:"type:datetime(6);autoUpdateTime:false"`
}

func (Comment) TableName() string {
	return "comments"
}

// DelibsSession 评议会话表，每轮最多一条
type DelibsSession struct {
	ID                 string    `gorm:"type:char(36);primaryKey"`
	RecruitmentRoundID string    `gorm:"type:char(36);not null;uniqueIndex:idx_delibs_round_unique"`
	CreatedBy          string    `gorm:"type:char(36);not null"`
	Status             string    `gorm:"type:varchar(20);not null;default:'open'"`
	CreatedAt          time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt          time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime:false"`
}

func (DelibsSession) TableName() string {
	return "delibs_sessions"
}

// DelibsVote 评议投票表，同一成员对同一桥接记录只保留一票
type DelibsVote struct {
	ID               string    `gorm:"type:char(36);primaryKey"`
	DelibsSessionID  string    `gorm:"type:char(36);not null;uniqueIndex:idx_votes_unique,priority:1"`
	VoterUserID      string    `gorm:"type:char(36);not null;uniqueIndex:idx_votes_unique,priority:2"`
	ApplicantRoundID string    `gorm:"type:char(36);not null;uniqueIndex:idx_votes_unique,priority:3;index:idx_votes_ar"`
	VoteValue        int       `gorm:"not null"`
	CreatedAt        time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt        time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime:false"`
}

func (DelibsVote) TableName() string {
	return "delibs_votes"
}

// AnonymousReading 匿名阅读记录，删除轮次前必须清空
type AnonymousReading struct {
	ID                 string    `gorm:"type:char(36);primaryKey"`
	RecruitmentRoundID string    `gorm:"type:char(36);not null;index:idx_anon_reading_round"`
	UserID             string    `gorm:"type:char(36);not null"`
	CreatedAt          time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (AnonymousReading) TableName() string {
	return "anonymous_readings"
}

// OrganizationMember 组织成员表，由成员管理模块写入
type OrganizationMember struct {
	OrganizationID string    `gorm:"type:char(36);primaryKey"`
	UserID         string    `gorm:"type:char(36);primaryKey"`
	Role           string    `gorm:"type:varchar(20);not null"`
	CreatedAt      time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (OrganizationMember) TableName() string {
	return "organization_members"
}

// User 用户表（只读）
type User struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	Name      string    `gorm:"type:varchar(255);not null"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex:idx_users_email_unique"`
	CreatedAt time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (User) TableName() string {
	return "users"
}

// ---- 与 types 之间的转换 ----

func (c RecruitmentCycle) ToType() *types.RecruitmentCycle {
	return &types.RecruitmentCycle{ID: c.ID, OrganizationID: c.OrganizationID, Name: c.Name, Archived: c.Archived}
}

func (r RecruitmentRound) ToType() types.RecruitmentRound {
	return types.RecruitmentRound{
		ID:                 r.ID,
		RecruitmentCycleID: r.RecruitmentCycleID,
		Name:               r.Name,
		SortOrder:          r.SortOrder,
		ColumnOrder:        json.RawMessage(r.ColumnOrder),
	}
}

func RoundFromType(r *types.RecruitmentRound) RecruitmentRound {
	return RecruitmentRound{
		ID:                 r.ID,
		RecruitmentCycleID: r.RecruitmentCycleID,
		Name:               r.Name,
		SortOrder:          r.SortOrder,
		ColumnOrder:        datatypes.JSON(r.ColumnOrder),
	}
}

func (m Metric) ToType() types.Metric {
	return types.Metric{ID: m.ID, RecruitmentRoundID: m.RecruitmentRoundID, Name: m.Name, Weight: m.Weight}
}

func (a Applicant) ToType() types.Applicant {
	return types.Applicant{
		ID:                 a.ID,
		RecruitmentCycleID: a.RecruitmentCycleID,
		Name:               a.Name,
		Email:              a.Email,
		HeadshotURL:        a.HeadshotURL,
		Data:               json.RawMessage(a.Data),
	}
}

func (ar ApplicantRound) ToType() types.ApplicantRound {
	return types.ApplicantRound{
		ID:                 ar.ID,
		ApplicantID:        ar.ApplicantID,
		RecruitmentRoundID: ar.RecruitmentRoundID,
		Status:             types.ApplicantRoundStatus(ar.Status),
		WeightedScore:      ar.WeightedScore,
		CreatedAt:          ar.CreatedAt,
		UpdatedAt:          ar.UpdatedAt,
	}
}

func ApplicantRoundFromType(ar *types.ApplicantRound) ApplicantRound {
	return ApplicantRound{
		ID:                 ar.ID,
		ApplicantID:        ar.ApplicantID,
		RecruitmentRoundID: ar.RecruitmentRoundID,
		Status:             string(ar.Status),
		WeightedScore:      ar.WeightedScore,
		CreatedAt:          ar.CreatedAt,
		UpdatedAt:          ar.UpdatedAt,
	}
}

func (s Score) ToType() types.Score {
	out := types.Score{
		ID:               s.ID,
		ApplicantRoundID: s.ApplicantRoundID,
		MetricID:         s.MetricID,
		ScoreValue:       s.ScoreValue,
		UserID:           s.UserID,
		CreatedAt:        s.CreatedAt,
	}
	if s.SubmissionID != nil {
		out.SubmissionID = *s.SubmissionID
	}
	return out
}

func ScoreFromType(s types.Score) Score {
	out := Score{
		ID:               s.ID,
		ApplicantRoundID: s.ApplicantRoundID,
		MetricID:         s.MetricID,
		ScoreValue:       s.ScoreValue,
		UserID:           s.UserID,
		CreatedAt:        s.CreatedAt,
	}
	if s.SubmissionID != "" {
		id := s.SubmissionID
		out.SubmissionID = &id
	}
	return out
}

func (c Comment) ToType() types.Comment {
	return types.Comment{
		ID:               c.ID,
		ApplicantRoundID: c.ApplicantRoundID,
		UserID:           c.UserID,
		CommentText:      c.CommentText,
		Source:           types.CommentSource(c.Source),
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

func CommentFromType(c *types.Comment) Comment {
	return Comment{
		ID:               c.ID,
		ApplicantRoundID: c.ApplicantRoundID,
		UserID:           c.UserID,
		CommentText:      c.CommentText,
		Source:           string(c.Source),
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

func (s DelibsSession) ToType() *types.DelibsSession {
	return &types.DelibsSession{
		ID:                 s.ID,
		RecruitmentRoundID: s.RecruitmentRoundID,
		CreatedBy:          s.CreatedBy,
		Status:             types.DelibsSessionStatus(s.Status),
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

func (v DelibsVote) ToType() types.DelibsVote {
	return types.DelibsVote{
		ID:               v.ID,
		DelibsSessionID:  v.DelibsSessionID,
		VoterUserID:      v.VoterUserID,
		ApplicantRoundID: v.ApplicantRoundID,
		VoteValue:        v.VoteValue,
		UpdatedAt:        v.UpdatedAt,
	}
}
