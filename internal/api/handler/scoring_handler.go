package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"recruit-pipeline/internal/pipeline"
	"recruit-pipeline/internal/types"
)

// ScoringHandler 评分维度与评分相关接口
type ScoringHandler struct {
	svc PipelineService
}

// NewScoringHandler 创建评分处理器
func NewScoringHandler(svc PipelineService) *ScoringHandler {
	return &ScoringHandler{svc: svc}
}

// ReplaceMetricsRequest 整体替换评分维度
type ReplaceMetricsRequest struct {
	Metrics []types.MetricInput `json:"metrics"`
}

// SubmitScoresRequest 一次完整的打分提交
type SubmitScoresRequest struct {
	ApplicantID        string             `json:"applicant_id"`
	RecruitmentRoundID string             `json:"recruitment_round_id"`
	Scores             []types.ScoreEntry `json:"scores"`
}

// UpdateScoreRequest 修改单个分数
type UpdateScoreRequest struct {
	ScoreValue *float64 `json:"score_value"`
}

// HandleListMetrics GET /api/v1/rounds/:round_id/metrics
func (h *ScoringHandler) HandleListMetrics(ctx context.Context, c *app.RequestContext) {
	roundID := c.Param("round_id")
	if !authorize(ctx, c, h.svc, pipeline.ScopeRound, roundID) {
		return
	}
	metrics, err := h.svc.ListMetrics(ctx, roundID)
	if err != nil {
		writeError(ctx, c, "ListMetrics", err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"metrics": metrics})
}

// HandleReplaceMetrics PUT /api/v1/rounds/:round_id/metrics
func (h *ScoringHandler) HandleReplaceMetrics(ctx context.Context, c *app.RequestContext) {
	roundID := c.Param("round_id")
	if !authorize(ctx, c, h.svc, pipeline.ScopeRound, roundID) {
		return
	}
	var req ReplaceMetricsRequest
	if !bindBody(c, &req) {
		return
	}
	metrics, err := h.svc.ReplaceMetrics(ctx, roundID, req.Metrics)
	if err != nil {
		writeError(ctx, c, "ReplaceMetrics", err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"metrics": metrics})
}

// HandleDeleteRoundScores DELETE /api/v1/rounds/:round_id/scores
func (h *ScoringHandler) HandleDeleteRoundScores(ctx context.Context, c *app.RequestContext) {
	roundID := c.Param("round_id")
	if !authorize(ctx, c, h.svc, pipeline.ScopeRound, roundID) {
		return
	}
	n, err := h.svc.DeleteAllScoresForRound(ctx, roundID)
	if err != nil {
		writeError(ctx, c, "DeleteAllScoresForRound", err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"success": true, "deleted": n})
}

// HandleSubmitScores POST /api/v1/scores
func (h *ScoringHandler) HandleSubmitScores(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req SubmitScoresRequest
	if !bindBody(c, &req) {
		return
	}
	res, err := h.svc.SubmitScores(ctx, req.ApplicantID, req.RecruitmentRoundID, userID, req.Scores)
	if err != nil {
		writeError(ctx, c, "SubmitScores", err)
		return
	}
	c.JSON(consts.StatusOK, res)
}

// HandleUpdateScore PATCH /api/v1/scores/:score_id
func (h *ScoringHandler) HandleUpdateScore(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req UpdateScoreRequest
	if !bindBody(c, &req) {
		return
	}
	if req.ScoreValue == nil {
		badRequest(c, "score_value 不能为空")
		return
	}
	avg, err := h.svc.UpdateScore(ctx, c.Param("score_id"), *req.ScoreValue, userID)
	if err != nil {
		writeError(ctx, c, "UpdateScore", err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"weighted_average": avg})
}

// HandleFetchScores GET /api/v1/applicant-rounds/:applicant_round_id/scores
func (h *ScoringHandler) HandleFetchScores(ctx context.Context, c *app.RequestContext) {
	arID := c.Param("applicant_round_id")
	if !authorize(ctx, c, h.svc, pipeline.ScopeApplicantRound, arID) {
		return
	}
	subs, err := h.svc.FetchScores(ctx, arID)
	if err != nil {
		writeError(ctx, c, "FetchScores", err)
		return
	}
	if subs == nil {
		subs = []types.Submission{}
	}
	c.JSON(consts.StatusOK, utils.H{"submissions": subs})
}

// HandleDeleteSubmission DELETE /api/v1/submissions/:submission_id
func (h *ScoringHandler) HandleDeleteSubmission(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteSubmission(ctx, c.Param("submission_id"), userID); err != nil {
		writeError(ctx, c, "DeleteSubmission", err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"success": true})
}
