package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"recruit-pipeline/internal/types"
)

// DelibsHandler 评议会话、投票与结果
type DelibsHandler struct {
	svc PipelineService
}

func NewDelibsHandler(svc PipelineService) *DelibsHandler {
	return &DelibsHandler{svc: svc}
}

// CastVoteRequest 投票请求，重复投票覆盖旧值
type CastVoteRequest struct {
	ApplicantRoundID string `json:"applicant_round_id"`
	VoteValue        *int   `json:"vote_value"`
}

// HandleGetSession GET /api/v1/rounds/:round_id/delibs/session
func (h *DelibsHandler) HandleGetSession(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	s, err := h.svc.GetOrCreateSession(ctx, c.Param("round_id"), userID)
	if err != nil {
		writeError(ctx, c, "GetOrCreateSession", err)
		return
	}
	c.JSON(consts.StatusOK, s)
}

// HandleListForVoting GET /api/v1/rounds/:round_id/delibs
func (h *DelibsHandler) HandleListForVoting(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	list, err := h.svc.ListApplicantsForVoting(ctx, c.Param("round_id"), userID)
	if err != nil {
		writeError(ctx, c, "ListApplicantsForVoting", err)
		return
	}
	if list.Applicants == nil {
		list.Applicants = []types.VotingApplicant{}
	}
	c.JSON(consts.StatusOK, list)
}

// HandleCastVote PUT /api/v1/rounds/:round_id/delibs/votes
func (h *DelibsHandler) HandleCastVote(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req CastVoteRequest
	if !bindBody(c, &req) {
		return
	}
	if req.VoteValue == nil {
		badRequest(c, "vote_value 不能为空")
		return
	}
	vote, err := h.svc.CastVote(ctx, c.Param("round_id"), userID, req.ApplicantRoundID, *req.VoteValue)
	if err != nil {
		writeError(ctx, c, "CastVote", err)
		return
	}
	c.JSON(consts.StatusOK, vote)
}

// HandleResults GET /api/v1/rounds/:round_id/delibs/results
func (h *DelibsHandler) HandleResults(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	res, err := h.svc.ComputeResults(ctx, c.Param("round_id"), userID)
	if err != nil {
		writeError(ctx, c, "ComputeResults", err)
		return
	}
	if res.Results == nil {
		res.Results = []types.DelibResult{}
	}
	c.JSON(consts.StatusOK, res)
}

// HandleLock POST /api/v1/rounds/:round_id/delibs/lock
func (h *DelibsHandler) HandleLock(ctx context.Context, c *app.RequestContext) {
	h.setLocked(ctx, c, true)
}

// HandleUnlock POST /api/v1/rounds/:round_id/delibs/unlock
func (h *DelibsHandler) HandleUnlock(ctx context.Context, c *app.RequestContext) {
	h.setLocked(ctx, c, false)
}

func (h *DelibsHandler) setLocked(ctx context.Context, c *app.RequestContext, locked bool) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	op, fn := "UnlockSession", h.svc.UnlockSession
	if locked {
		op, fn = "LockSession", h.svc.LockSession
	}
	s, err := fn(ctx, c.Param("round_id"), userID)
	if err != nil {
		writeError(ctx, c, op, err)
		return
	}
	c.JSON(consts.StatusOK, s)
}
