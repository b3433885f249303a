package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"recruit-pipeline/internal/pipeline"
	"recruit-pipeline/internal/types"
)

// RoundHandler 轮次状态流转与周期、轮次、申请人的删除
type RoundHandler struct {
	svc PipelineService
}

func NewRoundHandler(svc PipelineService) *RoundHandler {
	return &RoundHandler{svc: svc}
}

// SetStatusRequest 修改桥接记录状态
type SetStatusRequest struct {
	ApplicantID string                     `json:"applicant_id"`
	Status      types.ApplicantRoundStatus `json:"status"`
}

// CreateRoundRequest 在周期末尾追加轮次
type CreateRoundRequest struct {
	Name string `json:"name"`
}

// HandleSetStatus PATCH /api/v1/applicant-rounds/:applicant_round_id/status
// accepted 且存在下一轮时，响应中带有新建或重置的下一轮记录。
func (h *RoundHandler) HandleSetStatus(ctx context.Context, c *app.RequestContext) {
	arID := c.Param("applicant_round_id")
	if !authorize(ctx, c, h.svc, pipeline.ScopeApplicantRound, arID) {
		return
	}
	var req SetStatusRequest
	if !bindBody(c, &req) {
		return
	}
	res, err := h.svc.SetStatus(ctx, req.ApplicantID, arID, req.Status)
	if err != nil {
		writeError(ctx, c, "SetStatus", err)
		return
	}
	c.JSON(consts.StatusOK, res)
}

// HandleCreateRound POST /api/v1/cycles/:cycle_id/rounds
func (h *RoundHandler) HandleCreateRound(ctx context.Context, c *app.RequestContext) {
	cycleID := c.Param("cycle_id")
	if !authorize(ctx, c, h.svc, pipeline.ScopeCycle, cycleID) {
		return
	}
	var req CreateRoundRequest
	if !bindBody(c, &req) {
		return
	}
	round, err := h.svc.CreateRound(ctx, cycleID, req.Name)
	if err != nil {
		writeError(ctx, c, "CreateRound", err)
		return
	}
	c.JSON(consts.StatusCreated, round)
}

// HandleDeleteRound DELETE /api/v1/rounds/:round_id
func (h *RoundHandler) HandleDeleteRound(ctx context.Context, c *app.RequestContext) {
	id := c.Param("round_id")
	if !authorize(ctx, c, h.svc, pipeline.ScopeRound, id) {
		return
	}
	if err := h.svc.DeleteRound(ctx, id); err != nil {
		writeError(ctx, c, "DeleteRound", err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"success": true})
}

// HandleDeleteCycle DELETE /api/v1/cycles/:cycle_id
func (h *RoundHandler) HandleDeleteCycle(ctx context.Context, c *app.RequestContext) {
	id := c.Param("cycle_id")
	if !authorize(ctx, c, h.svc, pipeline.ScopeCycle, id) {
		return
	}
	if err := h.svc.DeleteCycle(ctx, id); err != nil {
		writeError(ctx, c, "DeleteCycle", err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"success": true})
}

// HandleDeleteApplicant DELETE /api/v1/applicants/:applicant_id
func (h *RoundHandler) HandleDeleteApplicant(ctx context.Context, c *app.RequestContext) {
	id := c.Param("applicant_id")
	if !authorize(ctx, c, h.svc, pipeline.ScopeApplicant, id) {
		return
	}
	if err := h.svc.DeleteApplicant(ctx, id); err != nil {
		writeError(ctx, c, "DeleteApplicant", err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"success": true})
}
